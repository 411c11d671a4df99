package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/rs/zerolog/log"
)

var ErrBatchTooLarge = errors.New("message batch exceeds the batch write limit")

// writes the dataset straight to the table, one BatchWriteItem per chunk
type BatchWriteHandler struct {
	dataset *Dataset
	store   BatchItemWriter
}

func NewBatchWriteHandler(dataset *Dataset, store BatchItemWriter) *BatchWriteHandler {
	return &BatchWriteHandler{dataset: dataset, store: store}
}

func (h *BatchWriteHandler) Handle(ctx context.Context) error {
	startTime := time.Now()
	records := h.dataset.Records()

	var total WriteResult
	calls := 0
	for chunk := range Chunk(records, MaxBatchWriteItems) {
		res, err := h.store.WriteBatch(ctx, chunk)
		if err != nil {
			return fmt.Errorf("chunk %d: %w", calls, err)
		}
		calls++
		total.Items += res.Items
		total.Unprocessed += res.Unprocessed
		total.ConsumedWCU += res.ConsumedWCU
	}

	log.Info().
		Str("handler", "batch-writer").
		Int("records", len(records)).
		Int("calls", calls).
		Int("unprocessed", total.Unprocessed).
		Float64("consumed_wcu", total.ConsumedWCU).
		Dur("duration", time.Since(startTime)).
		Msg("Batch write complete")
	return nil
}

// enqueues the dataset with delays spread across the distribution window
type QueueProducerHandler struct {
	dataset *Dataset
	queue   BatchEnqueuer
	window  int
}

func NewQueueProducerHandler(dataset *Dataset, queue BatchEnqueuer, windowSeconds int) *QueueProducerHandler {
	return &QueueProducerHandler{dataset: dataset, queue: queue, window: windowSeconds}
}

func (h *QueueProducerHandler) Handle(ctx context.Context) error {
	startTime := time.Now()
	records := h.dataset.Records()
	if len(records) == 0 {
		log.Info().Str("handler", "queue-producer").Msg("Dataset is empty, nothing to enqueue")
		return nil
	}

	delays := NewDelaySchedule(len(records), h.window)

	index := 0
	calls := 0
	for chunk := range Chunk(records, MaxSendMessageBatchEntries) {
		entries := make([]QueueEntry, len(chunk))
		for i, r := range chunk {
			body, err := json.Marshal(r)
			if err != nil {
				return fmt.Errorf("failed to serialize record %s: %w", r.PK, err)
			}
			entries[i] = QueueEntry{
				ID:           r.PK,
				DelaySeconds: delays.At(index),
				Body:         string(body),
			}
			index++
		}

		if err := h.queue.EnqueueBatch(ctx, entries); err != nil {
			return fmt.Errorf("chunk %d: %w", calls, err)
		}
		calls++
	}

	log.Info().
		Str("handler", "queue-producer").
		Int("records", len(records)).
		Int("calls", calls).
		Int("window_seconds", h.window).
		Int32("last_delay", delays.At(len(records)-1)).
		Dur("duration", time.Since(startTime)).
		Msg("Messages enqueued")
	return nil
}

// writes a batch of queue messages to the table in a single call
type QueueConsumerHandler struct {
	store BatchItemWriter
}

func NewQueueConsumerHandler(store BatchItemWriter) *QueueConsumerHandler {
	return &QueueConsumerHandler{store: store}
}

// Handle fails the whole batch on any bad body or write error. Which messages
// get redelivered is up to the event source, so the response never lists
// item failures of its own.
func (h *QueueConsumerHandler) Handle(ctx context.Context, event events.SQSEvent) (events.SQSEventResponse, error) {
	var resp events.SQSEventResponse
	if len(event.Records) == 0 {
		return resp, nil
	}
	if len(event.Records) > MaxBatchWriteItems {
		return resp, fmt.Errorf("%w: %d messages", ErrBatchTooLarge, len(event.Records))
	}

	records := make([]Record, len(event.Records))
	for i, msg := range event.Records {
		if err := json.Unmarshal([]byte(msg.Body), &records[i]); err != nil {
			return resp, fmt.Errorf("failed to parse message %s: %w", msg.MessageId, err)
		}
	}

	res, err := h.store.WriteBatch(ctx, records)
	if err != nil {
		return resp, err
	}

	log.Info().
		Str("handler", "queue-consumer").
		Int("records", len(records)).
		Int("unprocessed", res.Unprocessed).
		Float64("consumed_wcu", res.ConsumedWCU).
		Msg("Message batch written")
	return resp, nil
}
