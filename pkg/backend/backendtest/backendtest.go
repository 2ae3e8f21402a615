// Package backendtest provides a testify mock.Mock implementation of
// backend.Client, in the same shape the teacher's pkg/mocks gives the
// real AWS SDK client: one method per interface method, each reading
// its return values out of m.Called(...) and type-asserting the first
// one.
package backendtest

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/theory-cloud/rowstore/pkg/backend"
)

// MockClient is a testify mock implementation of backend.Client.
//
// Example usage:
//
//	client := new(backendtest.MockClient)
//	client.On("GetItem", mock.Anything, mock.Anything).Return(backend.GetItemResponse{}, nil)
type MockClient struct {
	mock.Mock
}

func (m *MockClient) PutItem(ctx context.Context, req backend.PutItemRequest) (backend.PutItemResponse, error) {
	args := m.Called(ctx, req)
	resp, ok := args.Get(0).(backend.PutItemResponse)
	if !ok {
		panic("unexpected type: expected backend.PutItemResponse")
	}
	return resp, args.Error(1)
}

func (m *MockClient) GetItem(ctx context.Context, req backend.GetItemRequest) (backend.GetItemResponse, error) {
	args := m.Called(ctx, req)
	resp, ok := args.Get(0).(backend.GetItemResponse)
	if !ok {
		panic("unexpected type: expected backend.GetItemResponse")
	}
	return resp, args.Error(1)
}

func (m *MockClient) BatchGetItem(ctx context.Context, req backend.BatchGetItemRequest) (backend.BatchGetItemResponse, error) {
	args := m.Called(ctx, req)
	resp, ok := args.Get(0).(backend.BatchGetItemResponse)
	if !ok {
		panic("unexpected type: expected backend.BatchGetItemResponse")
	}
	return resp, args.Error(1)
}

func (m *MockClient) DeleteItem(ctx context.Context, req backend.DeleteItemRequest) (backend.DeleteItemResponse, error) {
	args := m.Called(ctx, req)
	resp, ok := args.Get(0).(backend.DeleteItemResponse)
	if !ok {
		panic("unexpected type: expected backend.DeleteItemResponse")
	}
	return resp, args.Error(1)
}

func (m *MockClient) Query(ctx context.Context, req backend.QueryRequest) (backend.QueryResponse, error) {
	args := m.Called(ctx, req)
	resp, ok := args.Get(0).(backend.QueryResponse)
	if !ok {
		panic("unexpected type: expected backend.QueryResponse")
	}
	return resp, args.Error(1)
}

func (m *MockClient) BatchExecuteStatement(ctx context.Context, req backend.BatchExecuteStatementRequest) (backend.BatchExecuteStatementResponse, error) {
	args := m.Called(ctx, req)
	resp, ok := args.Get(0).(backend.BatchExecuteStatementResponse)
	if !ok {
		panic("unexpected type: expected backend.BatchExecuteStatementResponse")
	}
	return resp, args.Error(1)
}
