package main

import (
	"strconv"
	"strings"
)

const (
	// 15 minutes, also the largest DelaySeconds SQS accepts
	DefaultDistributionWindow = 900
	MaxDelaySeconds           = 900
)

// DelaySchedule spreads the delivery of total messages evenly across a window
// of seconds so the consumer drains them at a steady rate instead of all at once.
type DelaySchedule struct {
	total  int
	window int
}

func NewDelaySchedule(total, windowSeconds int) DelaySchedule {
	return DelaySchedule{total: total, window: windowSeconds}
}

// At returns the delay in seconds for the message at index, counted across
// every chunk of the invocation: floor(index * window / total).
func (d DelaySchedule) At(index int) int32 {
	if d.total <= 0 || index <= 0 {
		return 0
	}
	return int32(int64(index) * int64(d.window) / int64(d.total))
}

// ParseDistributionWindow reads the window override. Anything that is not a
// non-negative integer falls back to the default, and values above the queue
// limit are clamped. The second return reports whether the raw value was used
// unchanged.
func ParseDistributionWindow(raw string) (int, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return DefaultDistributionWindow, true
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return DefaultDistributionWindow, false
	}
	if v > MaxDelaySeconds {
		return MaxDelaySeconds, false
	}
	return v, true
}
