package bulk

import (
	"context"
	"fmt"
	"sync"

	"github.com/theory-cloud/rowstore/pkg/backend"
	"github.com/theory-cloud/rowstore/pkg/errs"
)

// MaxStatementsPerBatch is the backend's per-call statement limit
// (spec §4.4).
const MaxStatementsPerBatch = 25

// Coordinator chunks rendered statements to MaxStatementsPerBatch,
// dispatches each chunk concurrently onto a backend.Client, and
// aggregates partial errors (spec §4.4, §5).
//
// Parallelism is bounded the same way the teacher's
// pkg/query.executeBatchesParallel bounds BatchUpdate concurrency: a
// buffered channel used as a semaphore plus a sync.WaitGroup, rather
// than an explicit worker pool the coordinator would otherwise need to
// size and tear down.
type Coordinator struct {
	Client         backend.Client
	MaxConcurrency int
}

// NewCoordinator builds a Coordinator that keeps at most maxConcurrency
// chunk calls in flight (capped at the number of chunks); zero or
// negative means "one in-flight call per chunk, unbounded" per spec
// §4.4 ("all chunks may run concurrently").
func NewCoordinator(client backend.Client, maxConcurrency int) *Coordinator {
	return &Coordinator{Client: client, MaxConcurrency: maxConcurrency}
}

// Execute chunks statements into groups of at most MaxStatementsPerBatch,
// dispatches every chunk, and returns a single BatchErrorsReturnedError
// if any statement in any chunk failed (spec §4.4). An empty statements
// slice is a no-op (spec §4.3, "empty chunk is a no-op").
func (c *Coordinator) Execute(ctx context.Context, statements []string) error {
	if len(statements) == 0 {
		return nil
	}

	chunks := chunk(statements, MaxStatementsPerBatch)

	concurrency := c.MaxConcurrency
	if concurrency <= 0 || concurrency > len(chunks) {
		concurrency = len(chunks)
	}

	var wg sync.WaitGroup
	semaphore := make(chan struct{}, concurrency)
	responses := make([][]backend.BatchStatementResponse, len(chunks))
	errsCh := make(chan error, len(chunks))

	for i, ch := range chunks {
		wg.Add(1)
		semaphore <- struct{}{}

		go func(idx int, statements []string) {
			defer wg.Done()
			defer func() { <-semaphore }()

			req := backend.BatchExecuteStatementRequest{Statements: make([]backend.BatchStatementRequest, len(statements))}
			for j, s := range statements {
				req.Statements[j] = backend.BatchStatementRequest{Statement: s, ConsistentRead: true}
			}

			resp, err := c.Client.BatchExecuteStatement(ctx, req)
			if err != nil {
				errsCh <- err
				return
			}
			responses[idx] = resp.Responses
		}(i, ch)
	}

	wg.Wait()
	close(errsCh)

	for err := range errsCh {
		if err != nil {
			return err
		}
	}

	return aggregate(responses)
}

// chunk splits items into consecutive slices of at most size, preserving
// input order within each chunk (spec §4.4, step 1).
func chunk[T any](items []T, size int) [][]T {
	if size <= 0 {
		size = len(items)
	}
	var chunks [][]T
	for start := 0; start < len(items); start += size {
		end := min(start+size, len(items))
		chunks = append(chunks, items[start:end])
	}
	return chunks
}

// aggregate builds a BatchErrorsReturnedError from every chunk's
// per-statement responses, or nil if every statement succeeded (spec
// §4.4, step 4).
func aggregate(responses [][]backend.BatchStatementResponse) error {
	messageMap := make(map[string]int)
	errorCount := 0

	for _, chunkResponses := range responses {
		for _, r := range chunkResponses {
			if r.Error == nil {
				continue
			}
			errorCount++
			messageMap[messageKey(r.Error.Code, r.Error.Message)]++
		}
	}

	if errorCount == 0 {
		return nil
	}

	return &errs.BatchErrorsReturnedError{ErrorCount: errorCount, MessageMap: messageMap}
}

func messageKey(code, message string) string {
	switch {
	case code == "" && message == "":
		return ""
	case code == "":
		return message
	case message == "":
		return code
	default:
		return fmt.Sprintf("%s:%s", code, message)
	}
}
