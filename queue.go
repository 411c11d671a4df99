package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/rs/zerolog/log"
)

type SQSClientInterface interface {
	SendMessageBatch(ctx context.Context, params *sqs.SendMessageBatchInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageBatchOutput, error)
	ReceiveMessage(ctx context.Context, params *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error)
	DeleteMessage(ctx context.Context, params *sqs.DeleteMessageInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error)
	GetQueueAttributes(ctx context.Context, params *sqs.GetQueueAttributesInput, optFns ...func(*sqs.Options)) (*sqs.GetQueueAttributesOutput, error)
}

// one entry of a bulk enqueue
type QueueEntry struct {
	ID           string
	DelaySeconds int32
	Body         string
}

type BatchEnqueuer interface {
	EnqueueBatch(ctx context.Context, entries []QueueEntry) error
}

type SQSQueue struct {
	client   SQSClientInterface
	queueURL string
	metrics  *Metrics
}

func NewSQSQueue(client SQSClientInterface, queueURL string, metrics *Metrics) *SQSQueue {
	return &SQSQueue{client: client, queueURL: queueURL, metrics: metrics}
}

// EnqueueBatch sends the entries in one SendMessageBatch call. Entries the
// queue rejects are logged and counted; only a failed call returns an error.
func (q *SQSQueue) EnqueueBatch(ctx context.Context, entries []QueueEntry) error {
	if len(entries) == 0 {
		return nil
	}

	reqs := make([]types.SendMessageBatchRequestEntry, len(entries))
	for i, e := range entries {
		reqs[i] = types.SendMessageBatchRequestEntry{
			Id:           aws.String(e.ID),
			DelaySeconds: e.DelaySeconds,
			MessageBody:  aws.String(e.Body),
		}
	}

	resp, err := q.client.SendMessageBatch(ctx, &sqs.SendMessageBatchInput{
		QueueUrl: aws.String(q.queueURL),
		Entries:  reqs,
	})
	if err != nil {
		return fmt.Errorf("send message batch failed: %w", err)
	}

	q.metrics.messagesSent.Add(float64(len(resp.Successful)))
	if len(resp.Failed) > 0 {
		q.metrics.messagesFailed.Add(float64(len(resp.Failed)))
		for _, f := range resp.Failed {
			log.Warn().
				Str("entry_id", aws.ToString(f.Id)).
				Str("code", aws.ToString(f.Code)).
				Str("reason", aws.ToString(f.Message)).
				Msg("Queue rejected message")
		}
	}
	return nil
}

type QueueStats struct {
	Available int
	InFlight  int
	Delayed   int
}

func fetchQueueStats(ctx context.Context, client SQSClientInterface, queueURL string) (QueueStats, error) {
	result, err := client.GetQueueAttributes(ctx, &sqs.GetQueueAttributesInput{
		QueueUrl: aws.String(queueURL),
		AttributeNames: []types.QueueAttributeName{
			types.QueueAttributeNameApproximateNumberOfMessages,
			types.QueueAttributeNameApproximateNumberOfMessagesNotVisible,
			types.QueueAttributeNameApproximateNumberOfMessagesDelayed,
		},
	})
	if err != nil {
		return QueueStats{}, err
	}

	attr := func(name types.QueueAttributeName) int {
		n, _ := strconv.Atoi(result.Attributes[string(name)])
		return n
	}
	return QueueStats{
		Available: attr(types.QueueAttributeNameApproximateNumberOfMessages),
		InFlight:  attr(types.QueueAttributeNameApproximateNumberOfMessagesNotVisible),
		Delayed:   attr(types.QueueAttributeNameApproximateNumberOfMessagesDelayed),
	}, nil
}
