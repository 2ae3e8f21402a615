// Package table is the table facade (C5): the public surface every
// other component exists to serve. It wires the attribute value model,
// the row envelope, the diff/statement builders, the bulk-write
// coordinator and the polymorphic read dispatcher together into the
// operations spec §4.3 names (insert, clobber, update, get, batchGet,
// delete, deleteItems, query, bulkWrite, bulkWriteMonomorphic).
//
// This mirrors the shape of the teacher's root tabletheory.go facade:
// a thin struct whose methods delegate straight into the packages that
// do the real work, rather than reimplementing any of it here.
package table

import (
	"context"
	"fmt"

	"github.com/theory-cloud/rowstore/pkg/attrval"
	"github.com/theory-cloud/rowstore/pkg/backend"
	"github.com/theory-cloud/rowstore/pkg/bulk"
	"github.com/theory-cloud/rowstore/pkg/diff"
	"github.com/theory-cloud/rowstore/pkg/errs"
	"github.com/theory-cloud/rowstore/pkg/poly"
	"github.com/theory-cloud/rowstore/pkg/row"
	"github.com/theory-cloud/rowstore/pkg/rowkey"
	"github.com/theory-cloud/rowstore/pkg/stmt"
)

// Table is the typed facade over a single backing table holding rows of
// one payload type P. RowTypeTag and Decode let Get/BatchGet/Query
// reject or translate a stored row the same way poly.Registry does for
// a polymorphic caller (spec §4.3's get: "Fails UnexpectedResponse if
// stored rowTypeTag does not match the caller's P").
type Table[P row.Payload] struct {
	Client         backend.Client
	Decode         poly.Provider[P]
	Name           string
	RowTypeTag     string
	Schema         rowkey.Schema
	MaxConcurrency int
}

// New builds a Table bound to a single payload type. decode turns a
// stored row's envelope metadata and payload attributes back into P;
// it is the same shape as poly.Provider so a caller already maintaining
// a poly.Registry for cross-type queries can reuse one of its entries
// here.
func New[P row.Payload](name string, schema rowkey.Schema, client backend.Client, rowTypeTag string, decode poly.Provider[P]) *Table[P] {
	return &Table[P]{
		Client:     client,
		Decode:     decode,
		Name:       name,
		RowTypeTag: rowTypeTag,
		Schema:     schema,
	}
}

func (t *Table[P]) rowFromItem(item attrval.Map) (row.Row[P], error) {
	meta, payload, err := row.SplitItem(item, t.Schema)
	if err != nil {
		var zero row.Row[P]
		return zero, err
	}
	if meta.RowTypeTag != t.RowTypeTag {
		var zero row.Row[P]
		return zero, &errs.UnexpectedResponseError{
			Reason: fmt.Sprintf("rowType: expected %q, got %q", t.RowTypeTag, meta.RowTypeTag),
		}
	}
	payloadValue, err := t.Decode(meta, payload)
	if err != nil {
		var zero row.Row[P]
		return zero, err
	}
	return row.Row[P]{
		Key:        meta.Key,
		CreateDate: meta.CreateDate,
		Status: row.Status{
			RowVersion:     meta.RowVersion,
			LastUpdateDate: meta.LastUpdateDate,
		},
		Payload: payloadValue,
	}, nil
}

// Insert sends PutItem guarded by the attribute-not-exists condition
// (spec §4.3). r.Status.RowVersion being 1 is the caller's
// responsibility, not checked here.
func (t *Table[P]) Insert(ctx context.Context, r row.Row[P]) error {
	req := stmt.InsertCondition(t.Name, t.Schema, r.ToItem(t.Schema))
	_, err := t.Client.PutItem(ctx, backend.PutItemRequest{
		Table:               req.Table,
		Item:                req.Item,
		ConditionExpression: req.ConditionExpression,
	})
	return err
}

// Clobber sends PutItem unconditionally (spec §4.3).
func (t *Table[P]) Clobber(ctx context.Context, r row.Row[P]) error {
	_, err := t.Client.PutItem(ctx, backend.PutItemRequest{
		Table: t.Name,
		Item:  r.ToItem(t.Schema),
	})
	return err
}

// Update sends PutItem guarded by existing's rowVersion+createDate
// (spec §4.3). The caller must have set
// new.Status.RowVersion = existing.Status.RowVersion + 1 and refreshed
// new.Status.LastUpdateDate — row.Row.NextVersion does both.
func (t *Table[P]) Update(ctx context.Context, newRow, existing row.Row[P]) error {
	req := stmt.UpdateCondition(t.Name, newRow.ToItem(t.Schema), existing.Status.RowVersion, row.FormatInstant(existing.CreateDate))
	_, err := t.Client.PutItem(ctx, backend.PutItemRequest{
		Table:               req.Table,
		Item:                req.Item,
		ConditionExpression: req.ConditionExpression,
	})
	return err
}

// Get performs a strongly-consistent GetItem (spec §4.3). The second
// return value is false if the key does not exist.
func (t *Table[P]) Get(ctx context.Context, key rowkey.Key) (row.Row[P], bool, error) {
	resp, err := t.Client.GetItem(ctx, backend.GetItemRequest{Table: t.Name, Key: key, ConsistentRead: true})
	if err != nil {
		var zero row.Row[P]
		return zero, false, err
	}
	if resp.Item == nil {
		var zero row.Row[P]
		return zero, false, nil
	}
	r, err := t.rowFromItem(resp.Item)
	return r, err == nil, err
}

// BatchGet performs a single BatchGetItem call (spec §4.3: "does not
// paginate"). The returned map contains only keys that existed.
func (t *Table[P]) BatchGet(ctx context.Context, keys []rowkey.Key) (map[rowkey.Key]row.Row[P], error) {
	resp, err := t.Client.BatchGetItem(ctx, backend.BatchGetItemRequest{Table: t.Name, Keys: keys, ConsistentRead: true})
	if err != nil {
		return nil, err
	}
	out := make(map[rowkey.Key]row.Row[P], len(resp.Items))
	for _, item := range resp.Items {
		r, err := t.rowFromItem(item)
		if err != nil {
			return nil, err
		}
		out[r.Key] = r
	}
	return out, nil
}

// DeleteAtKey sends an unconditional DeleteItem (spec §4.3).
func (t *Table[P]) DeleteAtKey(ctx context.Context, key rowkey.Key) error {
	_, err := t.Client.DeleteItem(ctx, backend.DeleteItemRequest{Table: t.Name, Key: key})
	return err
}

// DeleteItem sends DeleteItem guarded by existing's rowVersion+createDate
// (spec §4.3).
func (t *Table[P]) DeleteItem(ctx context.Context, existing row.Row[P]) error {
	req := stmt.DeleteItemConditionRequest(t.Name, existing.Key, existing.Status.RowVersion, row.FormatInstant(existing.CreateDate))
	_, err := t.Client.DeleteItem(ctx, backend.DeleteItemRequest{
		Table:               req.Table,
		Key:                 req.Key,
		ConditionExpression: req.ConditionExpression,
	})
	return err
}

// DeleteItemsAtKeys unconditionally deletes every key via the bulk-write
// coordinator (spec §4.3's `deleteItems(keys)`).
func (t *Table[P]) DeleteItemsAtKeys(ctx context.Context, keys []rowkey.Key) error {
	entries := make([]bulk.Entry, len(keys))
	for i, k := range keys {
		entries[i] = bulk.Entry{Kind: bulk.KindDeleteAtKey, Key: k}
	}
	return t.executeBulk(ctx, entries)
}

// DeleteExistingItems conditionally deletes each row, guarded by its own
// rowVersion, via the bulk-write coordinator (spec §4.3's
// `deleteItems(existingItems)`).
func (t *Table[P]) DeleteExistingItems(ctx context.Context, existing []row.Row[P]) error {
	entries := make([]bulk.Entry, len(existing))
	for i, r := range existing {
		entries[i] = bulk.Entry{Kind: bulk.KindDeleteItem, Key: r.Key, ExistingVersion: r.Status.RowVersion}
	}
	return t.executeBulk(ctx, entries)
}

// QueryOptions narrows a Query call (spec §4.3's
// "sortCond?, limit?, scanForward=true, startToken?, consistent").
// ScanForward's zero value is false; callers that want ascending order
// (the default spec describes) set it explicitly.
type QueryOptions struct {
	SortCondition  *backend.SortKeyCondition
	StartToken     *string
	Limit          *int
	ScanForward    bool
	ConsistentRead bool
}

// Query returns the rows in partition matching opts, plus an opaque
// continuation token when more remain (spec §4.3). Server-side
// semantics are defined by the backing backend.Client; the reference
// store's are in pkg/memstore.
func (t *Table[P]) Query(ctx context.Context, partition string, opts QueryOptions) ([]row.Row[P], *string, error) {
	resp, err := t.Client.Query(ctx, backend.QueryRequest{
		Table:            t.Name,
		PartitionKeyName: t.Schema.PartitionKeyName,
		SortKeyName:      t.Schema.SortKeyName,
		PartitionKey:     partition,
		SortCondition:    opts.SortCondition,
		StartToken:       opts.StartToken,
		Limit:            opts.Limit,
		ScanForward:      opts.ScanForward,
		ConsistentRead:   opts.ConsistentRead,
	})
	if err != nil {
		return nil, nil, err
	}
	rows := make([]row.Row[P], len(resp.Items))
	for i, item := range resp.Items {
		r, err := t.rowFromItem(item)
		if err != nil {
			return nil, nil, err
		}
		rows[i] = r
	}
	return rows, resp.NextToken, nil
}

// QueryAs runs a partition query whose results may span multiple
// payload types, decoding each surviving row through registry (spec
// §4.5: "a single query return[ing] a union of payload shapes coexisting
// under one partition"). It is a free function rather than a Table[P]
// method because a polymorphic query is not bound to any single P.
func QueryAs[R any](ctx context.Context, client backend.Client, tableName string, schema rowkey.Schema, registry poly.Registry[R], partition string, opts QueryOptions) ([]R, *string, error) {
	resp, err := client.Query(ctx, backend.QueryRequest{
		Table:            tableName,
		PartitionKeyName: schema.PartitionKeyName,
		SortKeyName:      schema.SortKeyName,
		PartitionKey:     partition,
		SortCondition:    opts.SortCondition,
		StartToken:       opts.StartToken,
		Limit:            opts.Limit,
		ScanForward:      opts.ScanForward,
		ConsistentRead:   opts.ConsistentRead,
	})
	if err != nil {
		return nil, nil, err
	}
	out := make([]R, len(resp.Items))
	for i, item := range resp.Items {
		meta, payload, err := row.SplitItem(item, schema)
		if err != nil {
			return nil, nil, err
		}
		decoded, err := registry.Decode(meta, payload)
		if err != nil {
			return nil, nil, err
		}
		out[i] = decoded
	}
	return out, resp.NextToken, nil
}

// WriteKind identifies which branch of the heterogeneous write-entry
// union W<A,P> (spec §3) a Write occupies.
type WriteKind int

const (
	WriteInsert WriteKind = iota
	WriteUpdate
	WriteDeleteAtKey
	WriteDeleteItem
)

// Write is one entry in a heterogeneous BulkWrite call. Only the fields
// relevant to Kind need be populated:
//
//   - WriteInsert:     New
//   - WriteUpdate:     New, Existing
//   - WriteDeleteAtKey: Key
//   - WriteDeleteItem:  Existing
type Write[P row.Payload] struct {
	New      row.Row[P]
	Existing row.Row[P]
	Key      rowkey.Key
	Kind     WriteKind
}

// Pair is a before/after row pair for BulkWriteMonomorphic (spec §12's
// supplemented feature: a statically-typed entry point for callers who
// only ever bulk-update a single payload type and don't need the
// Insert|Update|DeleteAtKey|DeleteItem union).
type Pair[P row.Payload] struct {
	New      row.Row[P]
	Existing row.Row[P]
}

// BulkWrite renders every write to its statement form (computing a diff
// for WriteUpdate entries) and dispatches them via the bulk-write
// coordinator (spec §4.3's `bulkWrite(entries: [W<A,P>])`).
func (t *Table[P]) BulkWrite(ctx context.Context, writes []Write[P]) error {
	entries := make([]bulk.Entry, len(writes))
	for i, w := range writes {
		switch w.Kind {
		case WriteInsert:
			entries[i] = bulk.Entry{Kind: bulk.KindInsert, NewItem: w.New.ToItem(t.Schema)}
		case WriteUpdate:
			diffs, err := diff.Compute(w.New.ToItem(t.Schema), w.Existing.ToItem(t.Schema))
			if err != nil {
				return err
			}
			entries[i] = bulk.Entry{Kind: bulk.KindUpdate, Key: w.Existing.Key, ExistingVersion: w.Existing.Status.RowVersion, Diffs: diffs}
		case WriteDeleteAtKey:
			entries[i] = bulk.Entry{Kind: bulk.KindDeleteAtKey, Key: w.Key}
		case WriteDeleteItem:
			entries[i] = bulk.Entry{Kind: bulk.KindDeleteItem, Key: w.Existing.Key, ExistingVersion: w.Existing.Status.RowVersion}
		}
	}
	return t.executeBulk(ctx, entries)
}

// BulkWriteMonomorphic bulk-updates a homogeneous slice of before/after
// row pairs without requiring the caller to build the Write union (spec
// §12).
func (t *Table[P]) BulkWriteMonomorphic(ctx context.Context, pairs []Pair[P]) error {
	writes := make([]Write[P], len(pairs))
	for i, p := range pairs {
		writes[i] = Write[P]{Kind: WriteUpdate, New: p.New, Existing: p.Existing}
	}
	return t.BulkWrite(ctx, writes)
}

func (t *Table[P]) executeBulk(ctx context.Context, entries []bulk.Entry) error {
	statements, err := bulk.Render(t.Name, t.Schema, entries)
	if err != nil {
		return err
	}
	coordinator := bulk.NewCoordinator(t.Client, t.MaxConcurrency)
	return coordinator.Execute(ctx, statements)
}
