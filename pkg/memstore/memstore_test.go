package memstore_test

import (
	"context"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/theory-cloud/rowstore/pkg/attrval"
	"github.com/theory-cloud/rowstore/pkg/backend"
	"github.com/theory-cloud/rowstore/pkg/diff"
	"github.com/theory-cloud/rowstore/pkg/errs"
	"github.com/theory-cloud/rowstore/pkg/memstore"
	"github.com/theory-cloud/rowstore/pkg/row"
	"github.com/theory-cloud/rowstore/pkg/rowkey"
	"github.com/theory-cloud/rowstore/pkg/stmt"
)

func newItem(schema rowkey.Schema, pk, sk string, version uint64, createDate string, extra attrval.Map) attrval.Map {
	item := attrval.Map{
		schema.PartitionKeyName:   attrval.String(pk),
		schema.SortKeyName:        attrval.String(sk),
		row.AttrRowVersion:        attrval.Number(strconv.FormatUint(version, 10)),
		row.AttrCreateDate:        attrval.String(createDate),
		row.AttrLastUpdateDate:    attrval.String(createDate),
		row.AttrRowType:           attrval.String("TestType"),
	}
	for k, v := range extra {
		item[k] = v
	}
	return item
}

// S1 (insert/update/version gate), spec §8.
func TestPutItemInsertUpdateVersionGate(t *testing.T) {
	schema := rowkey.DefaultSchema()
	store := memstore.New(schema)
	defer store.Close()
	ctx := context.Background()

	original := newItem(schema, "P", "S", 1, "2024-01-01T00:00:00.000Z", attrval.Map{"a": attrval.Number("1")})
	_, err := store.PutItem(ctx, backend.PutItemRequest{
		Table:               "rows",
		Item:                original,
		ConditionExpression: "attribute_not_exists(PK) AND attribute_not_exists(SK)",
	})
	require.NoError(t, err)

	// Re-inserting fails: row already exists.
	_, err = store.PutItem(ctx, backend.PutItemRequest{
		Table:               "rows",
		Item:                original,
		ConditionExpression: "attribute_not_exists(PK) AND attribute_not_exists(SK)",
	})
	require.Error(t, err)
	var condErr *errs.ConditionalCheckFailedError
	require.ErrorAs(t, err, &condErr)
	assert.True(t, errs.IsConditionalCheckFailed(err))

	updated := newItem(schema, "P", "S", 2, "2024-01-01T00:00:00.000Z", attrval.Map{"a": attrval.Number("2"), "b": attrval.Number("3")})
	_, err = store.PutItem(ctx, backend.PutItemRequest{
		Table:               "rows",
		Item:                updated,
		ConditionExpression: "rowVersion = 1 AND createDate = '2024-01-01T00:00:00.000Z'",
	})
	require.NoError(t, err)

	getResp, err := store.GetItem(ctx, backend.GetItemRequest{Table: "rows", Key: rowkey.New("P", "S"), ConsistentRead: true})
	require.NoError(t, err)
	assert.Equal(t, attrval.Number("2"), getResp.Item[row.AttrRowVersion])
	assert.Equal(t, attrval.Number("2"), getResp.Item["a"])

	// A second update against the now-stale version fails.
	_, err = store.PutItem(ctx, backend.PutItemRequest{
		Table:               "rows",
		Item:                updated,
		ConditionExpression: "rowVersion = 1 AND createDate = '2024-01-01T00:00:00.000Z'",
	})
	require.Error(t, err)
	assert.True(t, errs.IsConditionalCheckFailed(err))
}

func TestDeleteAtKeyIsIdempotent(t *testing.T) {
	schema := rowkey.DefaultSchema()
	store := memstore.New(schema)
	defer store.Close()
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := store.DeleteItem(ctx, backend.DeleteItemRequest{Table: "rows", Key: rowkey.New("P", "S")})
		require.NoError(t, err)
	}
}

func seedPartition(t *testing.T, store *memstore.Store, schema rowkey.Schema, table, pk string, n int) {
	t.Helper()
	ctx := context.Background()
	for i := 1; i <= n; i++ {
		sk := numberedSortKey(i)
		item := newItem(schema, pk, sk, 1, "2024-01-01T00:00:00.000Z", nil)
		_, err := store.PutItem(ctx, backend.PutItemRequest{Table: table, Item: item})
		require.NoError(t, err)
	}
}

func numberedSortKey(i int) string {
	s := strconv.Itoa(i)
	if len(s) < 2 {
		s = "0" + s
	}
	return s
}

// S4 (query pagination), spec §8.
func TestQueryPagination(t *testing.T) {
	schema := rowkey.DefaultSchema()
	store := memstore.New(schema)
	defer store.Close()
	seedPartition(t, store, schema, "rows", "P", 10)
	ctx := context.Background()

	limit := 3
	resp, err := store.Query(ctx, backend.QueryRequest{
		PartitionKeyName: schema.PartitionKeyName,
		SortKeyName:      schema.SortKeyName,
		PartitionKey:     "P",
		Table:            "rows",
		Limit:            &limit,
		ScanForward:      true,
	})
	require.NoError(t, err)
	require.Len(t, resp.Items, 3)
	assertSortKeys(t, schema, []string{"01", "02", "03"}, resp.Items)
	require.NotNil(t, resp.NextToken)
	assert.Equal(t, "3", *resp.NextToken)

	resp, err = store.Query(ctx, backend.QueryRequest{
		PartitionKeyName: schema.PartitionKeyName,
		SortKeyName:      schema.SortKeyName,
		PartitionKey:     "P",
		Table:            "rows",
		Limit:            &limit,
		ScanForward:      true,
		StartToken:       resp.NextToken,
	})
	require.NoError(t, err)
	assertSortKeys(t, schema, []string{"04", "05", "06"}, resp.Items)
	require.NotNil(t, resp.NextToken)
	assert.Equal(t, "6", *resp.NextToken)

	// Fetch the third page.
	token := resp.NextToken
	for i := 0; i < 1; i++ {
		resp, err = store.Query(ctx, backend.QueryRequest{
			PartitionKeyName: schema.PartitionKeyName,
			SortKeyName:      schema.SortKeyName,
			PartitionKey:     "P",
			Table:            "rows",
			Limit:            &limit,
			ScanForward:      true,
			StartToken:       token,
		})
		require.NoError(t, err)
		token = resp.NextToken
	}
	assertSortKeys(t, schema, []string{"07", "08", "09"}, resp.Items)

	resp, err = store.Query(ctx, backend.QueryRequest{
		PartitionKeyName: schema.PartitionKeyName,
		SortKeyName:      schema.SortKeyName,
		PartitionKey:     "P",
		Table:            "rows",
		Limit:            &limit,
		ScanForward:      true,
		StartToken:       resp.NextToken,
	})
	require.NoError(t, err)
	assertSortKeys(t, schema, []string{"10"}, resp.Items)
	assert.Nil(t, resp.NextToken)
}

// Property: paging round trip (spec §8, invariant 8).
func TestQueryPagingRoundTripMatchesUnpaged(t *testing.T) {
	schema := rowkey.DefaultSchema()
	store := memstore.New(schema)
	defer store.Close()
	seedPartition(t, store, schema, "rows", "P", 23)
	ctx := context.Background()

	unpaged, err := store.Query(ctx, backend.QueryRequest{
		PartitionKeyName: schema.PartitionKeyName,
		SortKeyName:      schema.SortKeyName,
		PartitionKey:     "P",
		Table:            "rows",
		ScanForward:      true,
	})
	require.NoError(t, err)
	require.Len(t, unpaged.Items, 23)

	var paged []attrval.Map
	var token *string
	pageSize := 4
	for {
		resp, err := store.Query(ctx, backend.QueryRequest{
			PartitionKeyName: schema.PartitionKeyName,
			SortKeyName:      schema.SortKeyName,
			PartitionKey:     "P",
			Table:            "rows",
			Limit:            &pageSize,
			ScanForward:      true,
			StartToken:       token,
		})
		require.NoError(t, err)
		paged = append(paged, resp.Items...)
		if resp.NextToken == nil {
			break
		}
		token = resp.NextToken
	}

	require.Len(t, paged, len(unpaged.Items))
	for i := range unpaged.Items {
		assert.True(t, attrval.Equal(unpaged.Items[i][schema.SortKeyName], paged[i][schema.SortKeyName]))
	}
}

// spec §8, invariant 6: BeginsWith ordering, both scan directions.
func TestQueryBeginsWithOrdering(t *testing.T) {
	schema := rowkey.DefaultSchema()
	store := memstore.New(schema)
	defer store.Close()
	ctx := context.Background()

	for _, sk := range []string{"user#1", "user#2", "order#1", "user#3"} {
		item := newItem(schema, "P", sk, 1, "2024-01-01T00:00:00.000Z", nil)
		_, err := store.PutItem(ctx, backend.PutItemRequest{Table: "rows", Item: item})
		require.NoError(t, err)
	}

	cond := backend.SortKeyCondition{Operator: backend.OpBeginsWith, Value: "user#"}
	resp, err := store.Query(ctx, backend.QueryRequest{
		PartitionKeyName: schema.PartitionKeyName,
		SortKeyName:      schema.SortKeyName,
		PartitionKey:     "P",
		Table:            "rows",
		SortCondition:    &cond,
		ScanForward:      true,
	})
	require.NoError(t, err)
	assertSortKeys(t, schema, []string{"user#1", "user#2", "user#3"}, resp.Items)

	resp, err = store.Query(ctx, backend.QueryRequest{
		PartitionKeyName: schema.PartitionKeyName,
		SortKeyName:      schema.SortKeyName,
		PartitionKey:     "P",
		Table:            "rows",
		SortCondition:    &cond,
		ScanForward:      false,
	})
	require.NoError(t, err)
	assertSortKeys(t, schema, []string{"user#3", "user#2", "user#1"}, resp.Items)
}

func TestQueryBetweenIsInclusive(t *testing.T) {
	schema := rowkey.DefaultSchema()
	store := memstore.New(schema)
	defer store.Close()
	seedPartition(t, store, schema, "rows", "P", 5)
	ctx := context.Background()

	cond := backend.SortKeyCondition{Operator: backend.OpBetween, Value: "02", HighValue: "04"}
	resp, err := store.Query(ctx, backend.QueryRequest{
		PartitionKeyName: schema.PartitionKeyName,
		SortKeyName:      schema.SortKeyName,
		PartitionKey:     "P",
		Table:            "rows",
		SortCondition:    &cond,
		ScanForward:      true,
	})
	require.NoError(t, err)
	assertSortKeys(t, schema, []string{"02", "03", "04"}, resp.Items)
}

func TestBatchExecuteStatementSequentialReplay(t *testing.T) {
	schema := rowkey.DefaultSchema()
	store := memstore.New(schema)
	defer store.Close()
	ctx := context.Background()

	insertStatement := `INSERT INTO "rows" value {'PK': 'P', 'SK': 'S', 'createDate': '2024-01-01T00:00:00.000Z', 'lastUpdateDate': '2024-01-01T00:00:00.000Z', 'rowType': 'TestType', 'rowVersion': 1}`
	duplicateInsert := insertStatement

	resp, err := store.BatchExecuteStatement(ctx, backend.BatchExecuteStatementRequest{
		Statements: []backend.BatchStatementRequest{
			{Statement: insertStatement},
			{Statement: duplicateInsert},
		},
	})
	require.NoError(t, err)
	require.Len(t, resp.Responses, 2)
	assert.Nil(t, resp.Responses[0].Error)
	require.NotNil(t, resp.Responses[1].Error)
	assert.Equal(t, "Row already exists.", resp.Responses[1].Error.Message)
}

// A rendered UPDATE statement's SET value is a quoted string literal
// that may itself contain the grammar's own reserved substrings
// (" WHERE ", `SET "`, `REMOVE "`); the reference store must still
// parse it as one opaque quoted literal rather than splitting on those
// substrings wherever they occur (testable property 2: apply(diff(x,y))
// yields y).
func TestBatchExecuteStatementUpdateValueContainingReservedKeywords(t *testing.T) {
	schema := rowkey.DefaultSchema()
	store := memstore.New(schema)
	defer store.Close()
	ctx := context.Background()

	existing := newItem(schema, "P", "S", 1, "2024-01-01T00:00:00.000Z", attrval.Map{"x": attrval.String("a")})
	insertStatement, err := stmt.Insert("rows", existing)
	require.NoError(t, err)
	_, err = store.BatchExecuteStatement(ctx, backend.BatchExecuteStatementRequest{
		Statements: []backend.BatchStatementRequest{{Statement: insertStatement}},
	})
	require.NoError(t, err)

	updated := newItem(schema, "P", "S", 2, "2024-01-01T00:00:00.000Z", attrval.Map{
		"x": attrval.String(`a WHERE b SET "z" REMOVE "z"`),
	})
	diffs, err := diff.Compute(updated, existing)
	require.NoError(t, err)
	updateStatement := stmt.Update("rows", schema, rowkey.New("P", "S"), 1, diffs)

	resp, err := store.BatchExecuteStatement(ctx, backend.BatchExecuteStatementRequest{
		Statements: []backend.BatchStatementRequest{{Statement: updateStatement}},
	})
	require.NoError(t, err)
	require.Len(t, resp.Responses, 1)
	assert.Nil(t, resp.Responses[0].Error)

	getResp, err := store.GetItem(ctx, backend.GetItemRequest{Table: "rows", Key: rowkey.New("P", "S")})
	require.NoError(t, err)
	x, _ := attrval.StringValue(getResp.Item["x"])
	assert.Equal(t, `a WHERE b SET "z" REMOVE "z"`, x)
}

func assertSortKeys(t *testing.T, schema rowkey.Schema, want []string, items []attrval.Map) {
	t.Helper()
	got := make([]string, len(items))
	for i, item := range items {
		sk, _ := attrval.StringValue(item[schema.SortKeyName])
		got[i] = sk
	}
	assert.Equal(t, want, got)
}
