package stmt_test

import (
	"testing"

	ddbtypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/theory-cloud/rowstore/pkg/attrval"
	"github.com/theory-cloud/rowstore/pkg/diff"
	"github.com/theory-cloud/rowstore/pkg/errs"
	"github.com/theory-cloud/rowstore/pkg/rowkey"
	"github.com/theory-cloud/rowstore/pkg/stmt"
)

func TestInsert(t *testing.T) {
	item := attrval.Map{"PK": attrval.String("P"), "SK": attrval.String("S")}
	got, err := stmt.Insert("rows", item)
	require.NoError(t, err)
	assert.Equal(t, `INSERT INTO "rows" value {'PK': 'P', 'SK': 'S'}`, got)
}

func TestInsertRejectsUnsupportedAttribute(t *testing.T) {
	item := attrval.Map{
		"PK":  attrval.String("P"),
		"bin": &ddbtypes.AttributeValueMemberB{Value: []byte("blob")},
	}
	_, err := stmt.Insert("rows", item)
	require.Error(t, err)
	var unableToUpdate *errs.UnableToUpdateError
	require.ErrorAs(t, err, &unableToUpdate)
}

func TestInsertRejectsUnsupportedAttributeNestedInList(t *testing.T) {
	item := attrval.Map{
		"PK":   attrval.String("P"),
		"list": attrval.List(attrval.Number("1"), &ddbtypes.AttributeValueMemberB{Value: []byte("blob")}),
	}
	_, err := stmt.Insert("rows", item)
	require.Error(t, err)
	var unableToUpdate *errs.UnableToUpdateError
	require.ErrorAs(t, err, &unableToUpdate)
}

func TestUpdate(t *testing.T) {
	schema := rowkey.DefaultSchema()
	key := rowkey.New("P", "S")
	diffs := []diff.Diff{
		{Kind: diff.KindUpdate, Path: "a", Rendered: "1"},
		{Kind: diff.KindRemove, Path: "b"},
		{Kind: diff.KindListAppend, Path: "list", Rendered: "[4]"},
	}
	got := stmt.Update("rows", schema, key, 3, diffs)
	assert.Equal(t,
		`UPDATE "rows" SET "a"=1 REMOVE "b" SET "list"=list_append(list,[4]) WHERE PK='P' AND SK='S' AND rowVersion=3`,
		got)
}

func TestDeleteAtKey(t *testing.T) {
	schema := rowkey.DefaultSchema()
	got := stmt.DeleteAtKey("rows", schema, rowkey.New("P", "S"))
	assert.Equal(t, `DELETE FROM "rows" WHERE PK='P' AND SK='S'`, got)
}

func TestDeleteItem(t *testing.T) {
	schema := rowkey.DefaultSchema()
	got := stmt.DeleteItem("rows", schema, rowkey.New("P", "S"), 5)
	assert.Equal(t, `DELETE FROM "rows" WHERE PK='P' AND SK='S' AND rowVersion=5`, got)
}

func TestInsertCondition(t *testing.T) {
	schema := rowkey.DefaultSchema()
	req := stmt.InsertCondition("rows", schema, attrval.Map{"PK": attrval.String("P")})
	assert.Equal(t, "attribute_not_exists(PK) AND attribute_not_exists(SK)", req.ConditionExpression)
}

func TestVersionGateCondition(t *testing.T) {
	got := stmt.VersionGateCondition(2, "2024-01-01T00:00:00.000Z")
	assert.Equal(t, "rowVersion = 2 AND createDate = '2024-01-01T00:00:00.000Z'", got)
}
