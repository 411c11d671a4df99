package main

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/rs/zerolog/log"
)

type DynamoClientInterface interface {
	BatchWriteItem(ctx context.Context, params *dynamodb.BatchWriteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.BatchWriteItemOutput, error)
}

// anything that can put one bulk of records in a single call
type BatchItemWriter interface {
	WriteBatch(ctx context.Context, records []Record) (WriteResult, error)
}

type WriteResult struct {
	Items       int
	Unprocessed int
	ConsumedWCU float64
}

type DynamoStore struct {
	client    DynamoClientInterface
	tableName string
	pipeline  string
	metrics   *Metrics
}

func NewDynamoStore(client DynamoClientInterface, tableName, pipeline string, metrics *Metrics) *DynamoStore {
	return &DynamoStore{
		client:    client,
		tableName: tableName,
		pipeline:  pipeline,
		metrics:   metrics,
	}
}

// WriteBatch issues one BatchWriteItem with a put request per record. It does
// not split or retry; callers keep batches within MaxBatchWriteItems.
func (s *DynamoStore) WriteBatch(ctx context.Context, records []Record) (WriteResult, error) {
	if len(records) == 0 {
		return WriteResult{}, nil
	}

	writeReqs := make([]types.WriteRequest, len(records))
	for i, r := range records {
		item, err := attributevalue.MarshalMap(r.Item())
		if err != nil {
			return WriteResult{}, fmt.Errorf("failed to marshal record %s: %w", r.PK, err)
		}
		writeReqs[i] = types.WriteRequest{PutRequest: &types.PutRequest{Item: item}}
	}

	resp, err := s.client.BatchWriteItem(ctx, &dynamodb.BatchWriteItemInput{
		RequestItems:           map[string][]types.WriteRequest{s.tableName: writeReqs},
		ReturnConsumedCapacity: types.ReturnConsumedCapacityTotal,
	})
	if err != nil {
		s.metrics.batchWriteCalls.WithLabelValues(s.tableName, s.pipeline, "error").Inc()
		return WriteResult{}, fmt.Errorf("batch write to %s failed: %w", s.tableName, err)
	}
	s.metrics.batchWriteCalls.WithLabelValues(s.tableName, s.pipeline, "ok").Inc()

	result := WriteResult{Items: len(records)}
	for _, cc := range resp.ConsumedCapacity {
		result.ConsumedWCU += aws.ToFloat64(cc.CapacityUnits)
	}
	result.Unprocessed = len(resp.UnprocessedItems[s.tableName])

	s.metrics.itemsWritten.WithLabelValues(s.tableName, s.pipeline).Add(float64(result.Items))
	s.metrics.consumedWCU.WithLabelValues(s.tableName, s.pipeline).Add(result.ConsumedWCU)

	if result.Unprocessed > 0 {
		// not retried, the run is a measurement not a load job
		s.metrics.unprocessed.WithLabelValues(s.tableName, s.pipeline).Add(float64(result.Unprocessed))
		log.Warn().
			Str("table", s.tableName).
			Int("unprocessed", result.Unprocessed).
			Msg("Unprocessed items writing to dynamo")
	}

	return result, nil
}
