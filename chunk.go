package main

import (
	"fmt"
	"iter"
)

const (
	// DynamoDB BatchWriteItem accepts at most 25 put/delete requests per call
	MaxBatchWriteItems = 25

	// SQS SendMessageBatch accepts at most 10 entries per call
	MaxSendMessageBatchEntries = 10
)

// Chunk yields consecutive sub-slices of items holding stride elements each,
// the last one holding whatever remains. The sequence can be ranged over any
// number of times. Chunks share the backing array of items.
func Chunk[S ~[]E, E any](items S, stride int) iter.Seq[S] {
	if stride < 1 {
		panic(fmt.Sprintf("stride is %d but must be at least 1", stride))
	}
	return func(yield func(S) bool) {
		for i := 0; i < len(items); i += stride {
			end := min(i+stride, len(items))
			if !yield(items[i:end:end]) {
				return
			}
		}
	}
}
