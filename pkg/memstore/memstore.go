// Package memstore is the in-memory reference store (C8): a
// backend.Client implementation that exercises the rest of rowstore
// without a network, with the exact conditional-check and pagination
// semantics spec §4.6 specifies for the reference implementation.
//
// Every public operation enqueues a closure onto a single-consumer
// goroutine and blocks until it runs, the same "single logical
// executor" shape the teacher's pkg/consistency design notes describe
// for read-after-write guarantees — here adopted for strict
// linearizability rather than a bare mutex, since the spec calls for
// an explicit single point of serialization (§5, §9).
package memstore

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/theory-cloud/rowstore/pkg/attrval"
	"github.com/theory-cloud/rowstore/pkg/backend"
	"github.com/theory-cloud/rowstore/pkg/errs"
	"github.com/theory-cloud/rowstore/pkg/row"
	"github.com/theory-cloud/rowstore/pkg/rowkey"
	"github.com/theory-cloud/rowstore/pkg/stmt"
)

type command func(st *state)

// Store is the reference backend.Client. The zero value is not usable;
// construct with New.
type Store struct {
	schema   rowkey.Schema
	commands chan command
	stop     chan struct{}
}

// state is only ever touched from the single run loop goroutine.
type state struct {
	// table -> partitionKey -> sortKey -> item
	tables map[string]map[string]map[string]attrval.Map
}

// New starts a Store's single-consumer goroutine and returns it. schema
// names the partition/sort key attributes every table managed by this
// Store uses (spec §4.6 assumes one schema per store, matching C5's own
// single-schema-per-table-facade shape).
func New(schema rowkey.Schema) *Store {
	s := &Store{
		schema:   schema,
		commands: make(chan command),
		stop:     make(chan struct{}),
	}
	go s.run()
	return s
}

// Close stops the Store's run loop. A Store used after Close blocks
// forever on its next operation; callers own its lifetime the same way
// they would own a real connection.
func (s *Store) Close() { close(s.stop) }

func (s *Store) run() {
	st := &state{tables: make(map[string]map[string]map[string]attrval.Map)}
	for {
		select {
		case cmd := <-s.commands:
			cmd(st)
		case <-s.stop:
			return
		}
	}
}

// exec enqueues fn and waits for it to run on the single consumer
// goroutine, or for ctx to be done first.
func (s *Store) exec(ctx context.Context, fn func(st *state)) error {
	done := make(chan struct{})
	cmd := func(st *state) {
		fn(st)
		close(done)
	}
	select {
	case s.commands <- cmd:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (st *state) partitionOf(table, pk string) map[string]attrval.Map {
	t, ok := st.tables[table]
	if !ok {
		t = make(map[string]map[string]attrval.Map)
		st.tables[table] = t
	}
	p, ok := t[pk]
	if !ok {
		p = make(map[string]attrval.Map)
		t[pk] = p
	}
	return p
}

func (st *state) get(table, pk, sk string) (attrval.Map, bool) {
	t, ok := st.tables[table]
	if !ok {
		return nil, false
	}
	p, ok := t[pk]
	if !ok {
		return nil, false
	}
	item, ok := p[sk]
	return item, ok
}

func (st *state) sortedSortKeys(table, pk string) []string {
	t, ok := st.tables[table]
	if !ok {
		return nil
	}
	p, ok := t[pk]
	if !ok {
		return nil
	}
	keys := make([]string, 0, len(p))
	for k := range p {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (s *Store) keyOf(item attrval.Map) (rowkey.Key, error) {
	pk, ok := attrval.StringValue(item[s.schema.PartitionKeyName])
	if !ok {
		return rowkey.Key{}, &errs.UnexpectedResponseError{Reason: "item missing partition key attribute " + s.schema.PartitionKeyName}
	}
	sk, ok := attrval.StringValue(item[s.schema.SortKeyName])
	if !ok {
		return rowkey.Key{}, &errs.UnexpectedResponseError{Reason: "item missing sort key attribute " + s.schema.SortKeyName}
	}
	return rowkey.Key{PartitionKey: pk, SortKey: sk}, nil
}

func conditionalCheckFailed(key rowkey.Key, message string) error {
	return &errs.ConditionalCheckFailedError{Message: message, PartitionKey: key.PartitionKey, SortKey: key.SortKey}
}

// versionGateMatches reports whether existing's rowVersion/createDate
// render the same condition text stmt.VersionGateCondition produced for
// req.ConditionExpression — i.e. whether the caller's PutItem/DeleteItem
// precondition still holds against the currently-stored row.
func versionGateMatches(existing attrval.Map, conditionExpression string) bool {
	versionText, ok := attrval.NumberValue(existing[row.AttrRowVersion])
	if !ok {
		return false
	}
	version, err := strconv.ParseUint(versionText, 10, 64)
	if err != nil {
		return false
	}
	createDate, ok := attrval.StringValue(existing[row.AttrCreateDate])
	if !ok {
		return false
	}
	return stmt.VersionGateCondition(version, createDate) == conditionExpression
}

// PutItem implements backend.Client (spec §4.6's insert/clobber/update
// semantics, dispatched by the shape of req.ConditionExpression).
func (s *Store) PutItem(ctx context.Context, req backend.PutItemRequest) (backend.PutItemResponse, error) {
	key, err := s.keyOf(req.Item)
	if err != nil {
		return backend.PutItemResponse{}, err
	}

	var opErr error
	execErr := s.exec(ctx, func(st *state) {
		partition := st.partitionOf(req.Table, key.PartitionKey)
		existing, exists := partition[key.SortKey]

		switch {
		case req.ConditionExpression == "":
			partition[key.SortKey] = req.Item
		case strings.HasPrefix(req.ConditionExpression, "attribute_not_exists"):
			if exists {
				opErr = conditionalCheckFailed(key, "Row already exists.")
				return
			}
			partition[key.SortKey] = req.Item
		default:
			if !exists {
				opErr = conditionalCheckFailed(key, "Existing item does not exist.")
				return
			}
			if !versionGateMatches(existing, req.ConditionExpression) {
				opErr = conditionalCheckFailed(key, "Trying to overwrite incorrect version.")
				return
			}
			partition[key.SortKey] = req.Item
		}
	})
	if execErr != nil {
		return backend.PutItemResponse{}, execErr
	}
	return backend.PutItemResponse{}, opErr
}

// GetItem implements backend.Client.
func (s *Store) GetItem(ctx context.Context, req backend.GetItemRequest) (backend.GetItemResponse, error) {
	var resp backend.GetItemResponse
	execErr := s.exec(ctx, func(st *state) {
		if item, exists := st.get(req.Table, req.Key.PartitionKey, req.Key.SortKey); exists {
			resp.Item = item
		}
	})
	return resp, execErr
}

// BatchGetItem implements backend.Client; the response contains only
// the keys that existed (spec §4.3).
func (s *Store) BatchGetItem(ctx context.Context, req backend.BatchGetItemRequest) (backend.BatchGetItemResponse, error) {
	var resp backend.BatchGetItemResponse
	execErr := s.exec(ctx, func(st *state) {
		for _, k := range req.Keys {
			if item, exists := st.get(req.Table, k.PartitionKey, k.SortKey); exists {
				resp.Items = append(resp.Items, item)
			}
		}
	})
	return resp, execErr
}

// DeleteItem implements backend.Client (spec §4.6's deleteAtKey/deleteItem
// semantics, dispatched by whether a ConditionExpression was supplied).
func (s *Store) DeleteItem(ctx context.Context, req backend.DeleteItemRequest) (backend.DeleteItemResponse, error) {
	var opErr error
	execErr := s.exec(ctx, func(st *state) {
		partition := st.partitionOf(req.Table, req.Key.PartitionKey)
		existing, exists := partition[req.Key.SortKey]

		if req.ConditionExpression == "" {
			delete(partition, req.Key.SortKey)
			return
		}

		if !exists {
			opErr = conditionalCheckFailed(req.Key, "Existing item does not exist.")
			return
		}
		if !versionGateMatches(existing, req.ConditionExpression) {
			opErr = conditionalCheckFailed(req.Key, "Trying to delete incorrect version.")
			return
		}
		delete(partition, req.Key.SortKey)
	})
	if execErr != nil {
		return backend.DeleteItemResponse{}, execErr
	}
	return backend.DeleteItemResponse{}, opErr
}

// Query implements backend.Client (spec §4.6's query semantics: sort
// ascending, filter, reverse if !scanForward, then paginate via an
// opaque decimal-integer token).
//
// Between(lo,hi) is evaluated inclusively on both ends (spec §9's open
// question, resolved in SPEC_FULL.md §12 in favor of the backing
// store's native inclusive semantics rather than the strict source
// behavior).
func (s *Store) Query(ctx context.Context, req backend.QueryRequest) (backend.QueryResponse, error) {
	startIndex := 0
	if req.StartToken != nil {
		v, err := strconv.Atoi(*req.StartToken)
		if err != nil {
			panic(fmt.Sprintf("memstore: malformed startToken %q", *req.StartToken))
		}
		startIndex = v
	}

	var resp backend.QueryResponse
	execErr := s.exec(ctx, func(st *state) {
		sortKeys := st.sortedSortKeys(req.Table, req.PartitionKey)

		var matched []attrval.Map
		for _, sk := range sortKeys {
			if req.SortCondition != nil && !matchesSortCondition(sk, *req.SortCondition) {
				continue
			}
			item, _ := st.get(req.Table, req.PartitionKey, sk)
			matched = append(matched, item)
		}

		if !req.ScanForward {
			reverseItems(matched)
		}

		count := len(matched)
		endIndex := count
		if req.Limit != nil {
			endIndex = min(count, startIndex+*req.Limit)
		}
		if startIndex > endIndex {
			startIndex = endIndex
		}

		resp.Items = matched[startIndex:endIndex]
		if endIndex < count {
			token := strconv.Itoa(endIndex)
			resp.NextToken = &token
		}
	})
	return resp, execErr
}

func matchesSortCondition(sk string, cond backend.SortKeyCondition) bool {
	switch cond.Operator {
	case backend.OpEquals:
		return sk == cond.Value
	case backend.OpLessThan:
		return sk < cond.Value
	case backend.OpLessThanOrEqual:
		return sk <= cond.Value
	case backend.OpGreaterThan:
		return sk > cond.Value
	case backend.OpGreaterThanOrEqual:
		return sk >= cond.Value
	case backend.OpBetween:
		return sk >= cond.Value && sk <= cond.HighValue
	case backend.OpBeginsWith:
		return strings.HasPrefix(sk, cond.Value)
	default:
		return false
	}
}

func reverseItems(items []attrval.Map) {
	for i, j := 0, len(items)-1; i < j; i, j = i+1, j-1 {
		items[i], items[j] = items[j], items[i]
	}
}

// BatchExecuteStatement implements backend.Client by parsing the
// statement text pkg/stmt rendered back into structured operations and
// applying them in order (spec §4.6: "bulkWrite is defined as
// sequential application ... over the input order; partial failure
// leaves earlier successes applied").
//
// A syntactically malformed statement is a transport-level failure
// (returned verbatim), not a per-statement BatchStatementError — the
// grammar is this spec's own bit-exact output (§6). The parser tracks
// quote/bracket state rather than splitting on reserved substrings like
// " WHERE " or `SET "`, since those can legitimately occur inside a
// string attribute's own rendered value.
func (s *Store) BatchExecuteStatement(ctx context.Context, req backend.BatchExecuteStatementRequest) (backend.BatchExecuteStatementResponse, error) {
	parsed := make([]parsedStatement, len(req.Statements))
	for i, one := range req.Statements {
		p, err := parseStatement(one.Statement)
		if err != nil {
			return backend.BatchExecuteStatementResponse{}, err
		}
		parsed[i] = p
	}

	var resp backend.BatchExecuteStatementResponse
	execErr := s.exec(ctx, func(st *state) {
		resp.Responses = make([]backend.BatchStatementResponse, len(parsed))
		for i, p := range parsed {
			resp.Responses[i] = st.apply(p, s.schema)
		}
	})
	return resp, execErr
}
