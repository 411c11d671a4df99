package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDelayScheduleExample(t *testing.T) {
	d := NewDelaySchedule(10, 900)

	var delays []int32
	for i := 0; i < 10; i++ {
		delays = append(delays, d.At(i))
	}
	assert.Equal(t, []int32{0, 90, 180, 270, 360, 450, 540, 630, 720, 810}, delays)
}

func TestDelayScheduleProperties(t *testing.T) {
	for _, window := range []int{0, 1, 60, 899, 900} {
		for total := 1; total <= 250; total++ {
			d := NewDelaySchedule(total, window)
			prev := int32(0)
			for i := 0; i < total; i++ {
				got := d.At(i)
				assert.Equal(t, int32(i*window/total), got)
				assert.GreaterOrEqual(t, got, prev, "non-decreasing at %d/%d window %d", i, total, window)
				if window > 0 {
					assert.Less(t, got, int32(window))
				}
				prev = got
			}
		}
	}
}

func TestDelayScheduleNoMessages(t *testing.T) {
	assert.Equal(t, int32(0), NewDelaySchedule(0, 900).At(0))
}

func TestParseDistributionWindow(t *testing.T) {
	tests := []struct {
		raw      string
		expected int
		ok       bool
	}{
		{raw: "", expected: 900, ok: true},
		{raw: "300", expected: 300, ok: true},
		{raw: " 60 ", expected: 60, ok: true},
		{raw: "0", expected: 0, ok: true},
		{raw: "900", expected: 900, ok: true},
		{raw: "abc", expected: 900, ok: false},
		{raw: "12.5", expected: 900, ok: false},
		{raw: "-5", expected: 900, ok: false},
		{raw: "1200", expected: 900, ok: false},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, ok := ParseDistributionWindow(tt.raw)
			assert.Equal(t, tt.expected, got)
			assert.Equal(t, tt.ok, ok)
		})
	}
}
