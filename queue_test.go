package main

import (
	"context"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const testQueueURL = "https://sqs.us-east-1.amazonaws.com/123456789012/slammer"

func TestSQSQueueEnqueueBatch(t *testing.T) {
	client := new(MockSQSClient)
	metrics := NewMetrics(prometheus.NewRegistry())

	var input *sqs.SendMessageBatchInput
	client.On("SendMessageBatch", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			input = args.Get(1).(*sqs.SendMessageBatchInput)
		}).
		Return(&sqs.SendMessageBatchOutput{
			Successful: []types.SendMessageBatchResultEntry{{Id: aws.String("a")}, {Id: aws.String("b")}},
		}, nil)

	q := NewSQSQueue(client, testQueueURL, metrics)
	err := q.EnqueueBatch(context.Background(), []QueueEntry{
		{ID: "a", DelaySeconds: 0, Body: `{"pk":"a","sk":1}`},
		{ID: "b", DelaySeconds: 90, Body: `{"pk":"b","sk":2}`},
	})
	require.NoError(t, err)

	assert.Equal(t, testQueueURL, aws.ToString(input.QueueUrl))
	require.Len(t, input.Entries, 2)
	assert.Equal(t, "b", aws.ToString(input.Entries[1].Id))
	assert.Equal(t, int32(90), input.Entries[1].DelaySeconds)
	assert.Equal(t, `{"pk":"b","sk":2}`, aws.ToString(input.Entries[1].MessageBody))

	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.messagesSent))
	assert.Equal(t, 0.0, testutil.ToFloat64(metrics.messagesFailed))
}

func TestSQSQueuePartialFailure(t *testing.T) {
	client := new(MockSQSClient)
	metrics := NewMetrics(prometheus.NewRegistry())

	client.On("SendMessageBatch", mock.Anything, mock.Anything).Return(&sqs.SendMessageBatchOutput{
		Successful: []types.SendMessageBatchResultEntry{{Id: aws.String("a")}},
		Failed: []types.BatchResultErrorEntry{
			{Id: aws.String("b"), Code: aws.String("InternalError"), Message: aws.String("try again")},
		},
	}, nil)

	q := NewSQSQueue(client, testQueueURL, metrics)
	err := q.EnqueueBatch(context.Background(), []QueueEntry{{ID: "a"}, {ID: "b"}})

	assert.NoError(t, err)
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.messagesSent))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.messagesFailed))
}

func TestSQSQueueError(t *testing.T) {
	client := new(MockSQSClient)
	client.On("SendMessageBatch", mock.Anything, mock.Anything).Return(nil, assert.AnError)

	q := NewSQSQueue(client, testQueueURL, NewMetrics(prometheus.NewRegistry()))
	err := q.EnqueueBatch(context.Background(), []QueueEntry{{ID: "a"}})

	assert.ErrorIs(t, err, assert.AnError)
}

func TestSQSQueueEmpty(t *testing.T) {
	client := new(MockSQSClient)
	q := NewSQSQueue(client, testQueueURL, NewMetrics(prometheus.NewRegistry()))

	assert.NoError(t, q.EnqueueBatch(context.Background(), nil))
	client.AssertNotCalled(t, "SendMessageBatch", mock.Anything, mock.Anything)
}

func TestFetchQueueStats(t *testing.T) {
	client := new(MockSQSClient)
	client.On("GetQueueAttributes", mock.Anything, mock.MatchedBy(func(in *sqs.GetQueueAttributesInput) bool {
		return aws.ToString(in.QueueUrl) == testQueueURL && len(in.AttributeNames) == 3
	})).Return(&sqs.GetQueueAttributesOutput{
		Attributes: map[string]string{
			"ApproximateNumberOfMessages":           "120",
			"ApproximateNumberOfMessagesNotVisible": "5",
			"ApproximateNumberOfMessagesDelayed":    "875",
		},
	}, nil)

	stats, err := fetchQueueStats(context.Background(), client, testQueueURL)
	require.NoError(t, err)
	assert.Equal(t, QueueStats{Available: 120, InFlight: 5, Delayed: 875}, stats)
}

func TestFetchQueueStatsError(t *testing.T) {
	client := new(MockSQSClient)
	client.On("GetQueueAttributes", mock.Anything, mock.Anything).Return(nil, assert.AnError)

	_, err := fetchQueueStats(context.Background(), client, testQueueURL)
	assert.ErrorIs(t, err, assert.AnError)
}
