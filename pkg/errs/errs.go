// Package errs defines the error taxonomy shared by every rowstore
// component. Callers should prefer errors.As/errors.Is over string
// matching; every structured type here implements Unwrap, returning its
// kind's sentinel below, so errors.Is checks against those sentinels work.
package errs

import (
	"errors"
	"fmt"
)

// Sentinels a caller can errors.Is against without caring about the
// structured payload of the concrete error type.
var (
	ErrConditionalCheckFailed = errors.New("rowstore: conditional check failed")
	ErrUnexpectedResponse     = errors.New("rowstore: unexpected response")
	ErrUnexpectedType         = errors.New("rowstore: unexpected row type")
	ErrUnableToUpdate         = errors.New("rowstore: unable to update")
	ErrBatchErrorsReturned    = errors.New("rowstore: batch errors returned")
)

// ConditionalCheckFailedError is returned when an insert/update/delete
// loses the optimistic-concurrency race or its existence precondition.
type ConditionalCheckFailedError struct {
	Message      string
	PartitionKey string
	SortKey      string
}

func (e *ConditionalCheckFailedError) Error() string {
	return fmt.Sprintf("rowstore: conditional check failed for pk=%q sk=%q: %s", e.PartitionKey, e.SortKey, e.Message)
}

func (e *ConditionalCheckFailedError) Unwrap() error { return ErrConditionalCheckFailed }

// UnexpectedResponseError is returned when the backend RPC returned a
// shape this layer cannot decode (e.g. a missing top-level item map).
type UnexpectedResponseError struct {
	Reason string
}

func (e *UnexpectedResponseError) Error() string {
	return fmt.Sprintf("rowstore: unexpected response: %s", e.Reason)
}

func (e *UnexpectedResponseError) Unwrap() error { return ErrUnexpectedResponse }

// UnexpectedTypeError is returned when a polymorphic read encounters a
// rowTypeTag with no registered provider.
type UnexpectedTypeError struct {
	Provided string
}

func (e *UnexpectedTypeError) Error() string {
	return fmt.Sprintf("rowstore: unexpected row type %q: no provider registered", e.Provided)
}

func (e *UnexpectedTypeError) Unwrap() error { return ErrUnexpectedType }

// UnableToUpdateError is returned when the diff engine encounters an
// attribute value type it does not support (Binary, sets, Unknown).
type UnableToUpdateError struct {
	Reason string
}

func (e *UnableToUpdateError) Error() string {
	return fmt.Sprintf("rowstore: unable to update: %s", e.Reason)
}

func (e *UnableToUpdateError) Unwrap() error { return ErrUnableToUpdate }

// BatchErrorsReturnedError aggregates every partial failure from a
// bulk-write, so the caller can inspect the frequency of each distinct
// backend failure without re-deriving it from raw responses.
type BatchErrorsReturnedError struct {
	MessageMap map[string]int
	ErrorCount int
}

func (e *BatchErrorsReturnedError) Error() string {
	return fmt.Sprintf("rowstore: %d batch statement(s) failed: %v", e.ErrorCount, e.MessageMap)
}

func (e *BatchErrorsReturnedError) Unwrap() error { return ErrBatchErrorsReturned }

// IsConditionalCheckFailed reports whether err (or any error it wraps) is
// a conditional-check failure.
func IsConditionalCheckFailed(err error) bool { return errors.Is(err, ErrConditionalCheckFailed) }

// IsUnexpectedType reports whether err (or any error it wraps) is an
// unregistered-row-type failure.
func IsUnexpectedType(err error) bool { return errors.Is(err, ErrUnexpectedType) }
