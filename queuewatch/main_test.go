package main

import (
	"context"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/sqs"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockAttributesClient struct {
	mock.Mock
}

func (m *MockAttributesClient) GetQueueAttributes(ctx context.Context, params *sqs.GetQueueAttributesInput, optFns ...func(*sqs.Options)) (*sqs.GetQueueAttributesOutput, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*sqs.GetQueueAttributesOutput), args.Error(1)
}

func TestFetchSample(t *testing.T) {
	client := new(MockAttributesClient)
	client.On("GetQueueAttributes", mock.Anything, mock.Anything).Return(&sqs.GetQueueAttributesOutput{
		Attributes: map[string]string{
			"ApproximateNumberOfMessages":           "40",
			"ApproximateNumberOfMessagesNotVisible": "5",
			"ApproximateNumberOfMessagesDelayed":    "955",
		},
	}, nil)

	s, err := fetchSample(context.Background(), client, "queue")
	require.NoError(t, err)
	assert.Equal(t, 40, s.available)
	assert.Equal(t, 5, s.inFlight)
	assert.Equal(t, 955, s.delayed)
	assert.Equal(t, 1000, s.pending())
}

func TestModelTracksPeakAndDrain(t *testing.T) {
	m := newModel(new(MockAttributesClient), "queue", time.Second)
	start := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

	next, _ := m.Update(sampleMsg{at: start, available: 100, delayed: 900})
	m = next.(model)
	next, _ = m.Update(sampleMsg{at: start.Add(10 * time.Second), available: 50, delayed: 450})
	m = next.(model)

	assert.Equal(t, 1000, m.peak)
	assert.InDelta(t, 0.5, m.drained(), 1e-9)
	assert.InDelta(t, 50.0, m.drainRate(), 1e-9)

	next, _ = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("r")})
	m = next.(model)
	assert.Equal(t, 0, m.peak)
	assert.Empty(t, m.history)
}

func TestModelDrainRateNeverNegative(t *testing.T) {
	m := newModel(new(MockAttributesClient), "queue", time.Second)
	start := time.Now()
	m.record(sample{at: start, available: 10})
	m.record(sample{at: start.Add(time.Second), available: 20})

	assert.Equal(t, 0.0, m.drainRate())
	assert.Equal(t, 20, m.peak)
}

func TestModelHistoryIsBounded(t *testing.T) {
	m := newModel(new(MockAttributesClient), "queue", time.Second)
	for i := 0; i < historySize+15; i++ {
		m.record(sample{available: i})
	}

	require.Len(t, m.history, historySize)
	assert.Equal(t, historySize+14, m.history[len(m.history)-1].available)
}

func TestModelKeepsErrorUntilNextSample(t *testing.T) {
	m := newModel(new(MockAttributesClient), "queue", time.Second)

	next, _ := m.Update(errMsg{err: assert.AnError})
	m = next.(model)
	assert.ErrorIs(t, m.lastErr, assert.AnError)

	next, _ = m.Update(sampleMsg{available: 1})
	m = next.(model)
	assert.NoError(t, m.lastErr)
}

func TestSparkline(t *testing.T) {
	assert.Equal(t, "  No data yet...", sparkline(nil, 10))
	assert.Equal(t, "   ▄█", sparkline([]int{0, 4, 8}, 8))
	assert.Equal(t, "   ", sparkline([]int{5}, 0))
}
