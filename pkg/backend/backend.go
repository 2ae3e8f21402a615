// Package backend declares the wire-client shapes this spec treats as
// an external collaborator (spec §1, §6): an opaque RPC that accepts
// Put/Get/BatchGet/Delete/Query/BatchExecuteStatement shapes and
// returns typed responses or errors. Nothing in this package talks to
// a network; pkg/memstore and a thin adapter over the real AWS SDK
// client are the two implementations this spec expects.
package backend

import (
	"context"

	"github.com/theory-cloud/rowstore/pkg/attrval"
	"github.com/theory-cloud/rowstore/pkg/rowkey"
)

// PutItemRequest carries an item plus an optional condition expression
// (spec §6).
type PutItemRequest struct {
	Table               string
	Item                attrval.Map
	ConditionExpression string
}

// PutItemResponse is intentionally empty: this layer never reads back
// old values from a PutItem call.
type PutItemResponse struct{}

// GetItemRequest requests a single item by key with a consistency flag
// (spec §4.3, "strongly-consistent read").
type GetItemRequest struct {
	Table          string
	Key            rowkey.Key
	ConsistentRead bool
}

// GetItemResponse's Item is nil when the key does not exist.
type GetItemResponse struct {
	Item attrval.Map
}

// BatchGetItemRequest requests multiple keys from one table in a single
// call (spec §4.3, "does not paginate").
type BatchGetItemRequest struct {
	Table          string
	Keys           []rowkey.Key
	ConsistentRead bool
}

// BatchGetItemResponse returns only the items that existed.
type BatchGetItemResponse struct {
	Items []attrval.Map
}

// DeleteItemRequest carries a key plus an optional condition expression
// (spec §6).
type DeleteItemRequest struct {
	Table               string
	Key                 rowkey.Key
	ConditionExpression string
}

// DeleteItemResponse is intentionally empty.
type DeleteItemResponse struct{}

// SortKeyOperator names the sort-key comparisons in spec §3.
type SortKeyOperator int

const (
	OpEquals SortKeyOperator = iota
	OpLessThan
	OpLessThanOrEqual
	OpGreaterThan
	OpGreaterThanOrEqual
	OpBetween
	OpBeginsWith
)

// SortKeyCondition narrows a query to a contiguous sort-key range or
// prefix (spec §3, "Sort-key condition").
type SortKeyCondition struct {
	Operator  SortKeyOperator
	Value     string
	HighValue string // only meaningful for OpBetween
}

// QueryRequest is a single-partition range query (spec §4.3, §4.6).
type QueryRequest struct {
	Table            string
	PartitionKeyName string
	SortKeyName      string
	PartitionKey     string
	SortCondition    *SortKeyCondition
	StartToken       *string
	Limit            *int
	ScanForward      bool
	ConsistentRead   bool
}

// QueryResponse's NextToken is nil when no further page remains (spec
// §6, "opaque ASCII decimal integer").
type QueryResponse struct {
	NextToken *string
	Items     []attrval.Map
}

// BatchStatementRequest is one PartiQL statement inside a
// BatchExecuteStatement call (spec §4.4).
type BatchStatementRequest struct {
	Statement      string
	ConsistentRead bool
}

// BatchStatementError carries the backend's per-statement failure, if
// any (spec §4.4: "messageKey = code:message").
type BatchStatementError struct {
	Code    string
	Message string
}

// BatchStatementResponse is one slot in a BatchExecuteStatement
// response; Error is nil when that statement succeeded.
type BatchStatementResponse struct {
	Error *BatchStatementError
}

// BatchExecuteStatementRequest is the request shape bulk.Coordinator
// issues per chunk (spec §4.4, capped at MaxStatementsPerBatch).
type BatchExecuteStatementRequest struct {
	Statements []BatchStatementRequest
}

// BatchExecuteStatementResponse carries one response slot per input
// statement, in the same order.
type BatchExecuteStatementResponse struct {
	Responses []BatchStatementResponse
}

// Client is the opaque backend RPC this spec's core is built against
// (spec §1, §6). A transport error is surfaced unchanged (spec §7).
type Client interface {
	PutItem(ctx context.Context, req PutItemRequest) (PutItemResponse, error)
	GetItem(ctx context.Context, req GetItemRequest) (GetItemResponse, error)
	BatchGetItem(ctx context.Context, req BatchGetItemRequest) (BatchGetItemResponse, error)
	DeleteItem(ctx context.Context, req DeleteItemRequest) (DeleteItemResponse, error)
	Query(ctx context.Context, req QueryRequest) (QueryResponse, error)
	BatchExecuteStatement(ctx context.Context, req BatchExecuteStatementRequest) (BatchExecuteStatementResponse, error)
}
