// Package stmt is the expression builder (C3): it renders the four
// statement families spec §4.1 defines — INSERT, UPDATE, DELETE by key,
// DELETE by existing item — plus the conditional PutItem/DeleteItem
// request shapes used by single-item operations.
//
// The teacher's own internal/expr.Builder renders DynamoDB's
// placeholder-based ExpressionAttributeNames/Values form (for
// UpdateItem/Query's native API). This spec's grammar instead embeds
// literal values directly into PartiQL-style statement text for
// BatchExecuteStatement (spec §6's "bit-exact" grammar), so the
// placeholder machinery doesn't carry over — what does carry over is
// the split per statement family: here one small rendering function per
// family (Insert, Update, DeleteAtKey, DeleteItem) rather than a builder
// type.
package stmt

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/theory-cloud/rowstore/pkg/attrval"
	"github.com/theory-cloud/rowstore/pkg/diff"
	"github.com/theory-cloud/rowstore/pkg/rowkey"
)

// Insert renders `INSERT INTO "<table>" value <flatMap>` (spec §4.1). It
// fails with an UnableToUpdateError if item contains an attribute kind
// the diff/update path does not support, at any nesting depth (spec
// §13) — rather than silently dropping that attribute the way omitting
// Null does.
func Insert(table string, item attrval.Map) (string, error) {
	flat, err := renderFlatMap(item)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf(`INSERT INTO "%s" value %s`, table, flat), nil
}

// Update renders the `UPDATE ... WHERE ...` statement from an already-
// computed diff list, in the order the diff engine emitted it (spec
// §4.1, §4.2). version is the existing row's version the WHERE clause
// pins against.
func Update(table string, schema rowkey.Schema, key rowkey.Key, version uint64, diffs []diff.Diff) string {
	clauses := make([]string, 0, len(diffs))
	for _, d := range diffs {
		switch d.Kind {
		case diff.KindUpdate:
			clauses = append(clauses, fmt.Sprintf(`SET "%s"=%s`, d.Path, d.Rendered))
		case diff.KindRemove:
			clauses = append(clauses, fmt.Sprintf(`REMOVE "%s"`, d.Path))
		case diff.KindListAppend:
			clauses = append(clauses, fmt.Sprintf(`SET "%s"=list_append(%s,%s)`, d.Path, d.Path, d.Rendered))
		}
	}
	return fmt.Sprintf(`UPDATE "%s" %s WHERE %s`, table, strings.Join(clauses, " "), whereKeyAndVersion(schema, key, version))
}

// DeleteAtKey renders the unconditional `DELETE ... WHERE <pk> AND <sk>`
// statement (spec §4.1).
func DeleteAtKey(table string, schema rowkey.Schema, key rowkey.Key) string {
	return fmt.Sprintf(`DELETE FROM "%s" WHERE %s`, table, whereKey(schema, key))
}

// DeleteItem renders the conditional `DELETE ... WHERE <pk> AND <sk> AND
// rowVersion=<v>` statement (spec §4.1).
func DeleteItem(table string, schema rowkey.Schema, key rowkey.Key, version uint64) string {
	return fmt.Sprintf(`DELETE FROM "%s" WHERE %s`, table, whereKeyAndVersion(schema, key, version))
}

func whereKey(schema rowkey.Schema, key rowkey.Key) string {
	return fmt.Sprintf("%s='%s' AND %s='%s'",
		schema.PartitionKeyName, escapeLiteral(key.PartitionKey),
		schema.SortKeyName, escapeLiteral(key.SortKey))
}

func whereKeyAndVersion(schema rowkey.Schema, key rowkey.Key, version uint64) string {
	return fmt.Sprintf("%s AND rowVersion=%s", whereKey(schema, key), strconv.FormatUint(version, 10))
}

func escapeLiteral(s string) string {
	return strings.ReplaceAll(s, "'", "''")
}

// renderFlatMap renders an item's attribute map as the `{...}` literal
// used by INSERT's `value` clause (spec §4.1's map-value rendering
// rule). Keys are sorted so generated statements are deterministic.
func renderFlatMap(item attrval.Map) (string, error) {
	keys := make([]string, 0, len(item))
	for k := range item {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		v := item[k]
		if err := diff.RequireSupported(v); err != nil {
			return "", err
		}
		rendered, ok := attrval.Render(v)
		if !ok {
			// null attributes are omitted entirely from the flattened
			// map (spec §4.1).
			continue
		}
		parts = append(parts, fmt.Sprintf("'%s': %s", escapeLiteral(k), rendered))
	}
	return "{" + strings.Join(parts, ", ") + "}", nil
}

// PutItemRequest is the request shape for a conditional PutItem call
// (spec §4.1, §6).
type PutItemRequest struct {
	Item                attrval.Map
	ConditionExpression string
	Table               string
}

// InsertCondition builds the PutItem request for insert: the item plus
// the attribute_not_exists condition on both key attributes (spec
// §4.1).
//
// The real DynamoDB UpdateItem/PutItem API requires reserved-word
// attribute names to be routed through ExpressionAttributeNames
// placeholders (`#pk`). backend.Client's ConditionExpression is
// evaluated directly against item attribute names instead — this
// layer's Client is this spec's own abstraction, not the AWS API
// surface, so the placeholder indirection has nothing to buy its way
// past and is dropped (see DESIGN.md).
func InsertCondition(table string, schema rowkey.Schema, item attrval.Map) PutItemRequest {
	return PutItemRequest{
		Table: table,
		Item:  item,
		ConditionExpression: fmt.Sprintf("attribute_not_exists(%s) AND attribute_not_exists(%s)",
			schema.PartitionKeyName, schema.SortKeyName),
	}
}

// UpdateCondition builds the PutItem request for clobber-style
// replacement guarded by version+createDate (spec §4.1).
func UpdateCondition(table string, item attrval.Map, version uint64, createDate string) PutItemRequest {
	return PutItemRequest{
		Table:               table,
		Item:                item,
		ConditionExpression: VersionGateCondition(version, createDate),
	}
}

// DeleteItemRequest is the request shape for a conditional DeleteItem
// call guarded by version+createDate (spec §4.1, §6).
type DeleteItemRequest struct {
	Table               string
	Key                 rowkey.Key
	ConditionExpression string
}

// DeleteItemConditionRequest builds the DeleteItem request condition
// (spec §4.1: same condition expression as UpdateCondition).
func DeleteItemConditionRequest(table string, key rowkey.Key, version uint64, createDate string) DeleteItemRequest {
	return DeleteItemRequest{
		Table:               table,
		Key:                 key,
		ConditionExpression: VersionGateCondition(version, createDate),
	}
}

// VersionGateCondition renders the "rowVersion = N AND createDate = '...'"
// condition used by UpdateCondition/DeleteItemConditionRequest. Exported so
// pkg/memstore can recompute the same text for the stored row it is
// evaluating a condition against, rather than re-parsing condition
// expression text.
func VersionGateCondition(version uint64, createDate string) string {
	return fmt.Sprintf("rowVersion = %s AND createDate = '%s'", strconv.FormatUint(version, 10), escapeLiteral(createDate))
}
