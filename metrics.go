package main

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const metricsNamespace = "slammer"

// pipeline label values
const (
	pipelineBatch = "batch"
	pipelineQueue = "queue"
)

type Metrics struct {
	consumedWCU     *prometheus.CounterVec
	itemsWritten    *prometheus.CounterVec
	unprocessed     *prometheus.CounterVec
	batchWriteCalls *prometheus.CounterVec
	messagesSent    prometheus.Counter
	messagesFailed  prometheus.Counter
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		consumedWCU: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "consumed_write_capacity_units_total",
			Help:      "Write capacity units reported consumed by BatchWriteItem.",
		}, []string{"table", "pipeline"}),
		itemsWritten: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "items_written_total",
			Help:      "Put requests sent in BatchWriteItem calls.",
		}, []string{"table", "pipeline"}),
		unprocessed: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "unprocessed_items_total",
			Help:      "Put requests returned unprocessed by BatchWriteItem.",
		}, []string{"table", "pipeline"}),
		batchWriteCalls: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "batch_write_calls_total",
			Help:      "BatchWriteItem calls by outcome.",
		}, []string{"table", "pipeline", "outcome"}),
		messagesSent: f.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "messages_sent_total",
			Help:      "Entries accepted by SendMessageBatch.",
		}),
		messagesFailed: f.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "messages_failed_total",
			Help:      "Entries rejected by SendMessageBatch.",
		}),
	}
}
