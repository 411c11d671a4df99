package main

import (
	"context"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/rs/zerolog/log"
)

// MessageHandler is the consumer side of the queue pipeline
type MessageHandler interface {
	Handle(ctx context.Context, event events.SQSEvent) (events.SQSEventResponse, error)
}

type PollerConfig struct {
	QueueURL    string
	BatchSize   int32
	WaitSeconds int32
	StatsEvery  time.Duration
}

// Poller feeds queue messages to the consumer handler outside of Lambda,
// mirroring an SQS event source mapping: a batch is deleted only when the
// handler succeeds, otherwise it becomes visible again and is redelivered.
type Poller struct {
	config    PollerConfig
	sqsClient SQSClientInterface
	handler   MessageHandler
}

func NewPoller(client SQSClientInterface, handler MessageHandler, config PollerConfig) *Poller {
	if config.BatchSize <= 0 || config.BatchSize > 10 {
		config.BatchSize = 5
	}
	if config.WaitSeconds < 0 || config.WaitSeconds > 20 {
		config.WaitSeconds = 20
	}
	return &Poller{config: config, sqsClient: client, handler: handler}
}

func (p *Poller) Run(ctx context.Context) {
	if p.config.StatsEvery > 0 {
		go p.monitorQueueStats(ctx)
	}

	log.Info().
		Str("queue_url", p.config.QueueURL).
		Int32("batch_size", p.config.BatchSize).
		Msg("Polling queue")

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if err := p.pollOnce(ctx); err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Error().Err(err).Msg("Failed to receive messages from SQS")
			select {
			case <-time.After(5 * time.Second):
			case <-ctx.Done():
				return
			}
		}
	}
}

// pollOnce receives a single batch and processes it. Only a receive error is
// returned; handler failures are logged and left for redelivery.
func (p *Poller) pollOnce(ctx context.Context) error {
	result, err := p.sqsClient.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
		QueueUrl:            aws.String(p.config.QueueURL),
		MaxNumberOfMessages: p.config.BatchSize,
		WaitTimeSeconds:     p.config.WaitSeconds,
		MessageSystemAttributeNames: []types.MessageSystemAttributeName{
			types.MessageSystemAttributeNameSentTimestamp,
			types.MessageSystemAttributeNameApproximateReceiveCount,
		},
	})
	if err != nil {
		return err
	}
	if len(result.Messages) == 0 {
		return nil
	}

	log.Debug().Int("count", len(result.Messages)).Msg("Received messages from SQS")
	p.processBatch(ctx, result.Messages)
	return nil
}

func (p *Poller) processBatch(ctx context.Context, msgs []types.Message) {
	event := toSQSEvent(msgs)

	if _, err := p.handler.Handle(ctx, event); err != nil {
		log.Warn().
			Err(err).
			Int("count", len(msgs)).
			Msg("Message batch failed, will be retried by SQS")
		return
	}

	for _, m := range msgs {
		p.deleteMessage(ctx, m)
	}
}

func (p *Poller) deleteMessage(ctx context.Context, m types.Message) {
	_, err := p.sqsClient.DeleteMessage(ctx, &sqs.DeleteMessageInput{
		QueueUrl:      aws.String(p.config.QueueURL),
		ReceiptHandle: m.ReceiptHandle,
	})
	if err != nil {
		log.Error().Str("messageID", aws.ToString(m.MessageId)).Err(err).Msg("Failed to delete message from SQS")
	} else {
		log.Debug().Str("messageID", aws.ToString(m.MessageId)).Msg("Message deleted from SQS")
	}
}

func (p *Poller) monitorQueueStats(ctx context.Context) {
	ticker := time.NewTicker(p.config.StatsEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			p.logQueueStats(ctx)
		case <-ctx.Done():
			return
		}
	}
}

func (p *Poller) logQueueStats(ctx context.Context) {
	stats, err := fetchQueueStats(ctx, p.sqsClient, p.config.QueueURL)
	if err != nil {
		log.Error().Err(err).Msg("Failed to fetch queue stats")
		return
	}

	log.Info().
		Int("available", stats.Available).
		Int("in_flight", stats.InFlight).
		Int("delayed", stats.Delayed).
		Msg("SQS queue stats")
}

// shapes received messages the way the Lambda event source delivers them
func toSQSEvent(msgs []types.Message) events.SQSEvent {
	event := events.SQSEvent{Records: make([]events.SQSMessage, len(msgs))}
	for i, m := range msgs {
		attrs := make(map[string]string, len(m.Attributes))
		for k, v := range m.Attributes {
			attrs[k] = v
		}
		event.Records[i] = events.SQSMessage{
			MessageId:     aws.ToString(m.MessageId),
			ReceiptHandle: aws.ToString(m.ReceiptHandle),
			Body:          aws.ToString(m.Body),
			Md5OfBody:     aws.ToString(m.MD5OfBody),
			Attributes:    attrs,
			EventSource:   "aws:sqs",
		}
	}
	return event
}
