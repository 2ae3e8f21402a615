package diff_test

import (
	"testing"

	ddbtypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/theory-cloud/rowstore/pkg/attrval"
	"github.com/theory-cloud/rowstore/pkg/diff"
	"github.com/theory-cloud/rowstore/pkg/errs"
)

func TestComputeNoChangeIsEmpty(t *testing.T) {
	item := attrval.Map{
		"a":      attrval.String("x"),
		"list":   attrval.List(attrval.Number("1"), attrval.Number("2")),
		"nested": attrval.MapOf(attrval.Map{"k": attrval.Bool(true)}),
	}
	diffs, err := diff.Compute(item, item)
	require.NoError(t, err)
	assert.Empty(t, diffs)
}

// S2 (diff determinism), spec §8.
func TestComputeS2(t *testing.T) {
	newItem := attrval.Map{
		"a":    attrval.String("x"),
		"list": attrval.List(attrval.Number("1"), attrval.Number("2"), attrval.Number("3"), attrval.Number("4")),
		"nested": attrval.MapOf(attrval.Map{
			"k": attrval.Bool(true),
		}),
	}
	existing := attrval.Map{
		"a":    attrval.String("x"),
		"list": attrval.List(attrval.Number("1"), attrval.Number("9"), attrval.Number("3")),
		"nested": attrval.MapOf(attrval.Map{
			"k":    attrval.Bool(false),
			"gone": attrval.String("z"),
		}),
	}

	diffs, err := diff.Compute(newItem, existing)
	require.NoError(t, err)

	want := []diff.Diff{
		{Kind: diff.KindUpdate, Path: "list[1]", Rendered: "2"},
		{Kind: diff.KindListAppend, Path: "list", Rendered: "[4]"},
		{Kind: diff.KindUpdate, Path: "nested.k", Rendered: "true"},
		{Kind: diff.KindRemove, Path: "nested.gone"},
	}
	assert.ElementsMatch(t, want, diffs)
	assert.Len(t, diffs, len(want))
}

func TestComputeRemoveOnlyInExisting(t *testing.T) {
	diffs, err := diff.Compute(
		attrval.Map{"a": attrval.String("x")},
		attrval.Map{"a": attrval.String("x"), "b": attrval.Number("1")},
	)
	require.NoError(t, err)
	assert.Equal(t, []diff.Diff{{Kind: diff.KindRemove, Path: "b"}}, diffs)
}

func TestComputeTypeChangeRecomputes(t *testing.T) {
	diffs, err := diff.Compute(
		attrval.Map{"a": attrval.Number("1")},
		attrval.Map{"a": attrval.String("1")},
	)
	require.NoError(t, err)
	assert.Equal(t, []diff.Diff{{Kind: diff.KindUpdate, Path: "a", Rendered: "1"}}, diffs)
}

func TestComputeNullToNullIsNoChange(t *testing.T) {
	diffs, err := diff.Compute(
		attrval.Map{"a": attrval.Null()},
		attrval.Map{"a": attrval.Null()},
	)
	require.NoError(t, err)
	assert.Empty(t, diffs)
}

func TestComputeValueToNullIsRemove(t *testing.T) {
	diffs, err := diff.Compute(
		attrval.Map{"a": attrval.Null()},
		attrval.Map{"a": attrval.String("x")},
	)
	require.NoError(t, err)
	assert.Equal(t, []diff.Diff{{Kind: diff.KindRemove, Path: "a"}}, diffs)
}

func TestComputeListShrink(t *testing.T) {
	diffs, err := diff.Compute(
		attrval.Map{"list": attrval.List(attrval.Number("1"))},
		attrval.Map{"list": attrval.List(attrval.Number("1"), attrval.Number("2"), attrval.Number("3"))},
	)
	require.NoError(t, err)
	assert.ElementsMatch(t, []diff.Diff{
		{Kind: diff.KindRemove, Path: "list[1]"},
		{Kind: diff.KindRemove, Path: "list[2]"},
	}, diffs)
}

// S6 (unsupported attribute), spec §8.
func TestComputeUnsupportedAttributeType(t *testing.T) {
	binary := &ddbtypes.AttributeValueMemberB{Value: []byte("blob")}
	_, err := diff.Compute(
		attrval.Map{"a": binary},
		attrval.Map{"a": attrval.String("x")},
	)
	require.Error(t, err)
	var unableToUpdate *errs.UnableToUpdateError
	require.ErrorAs(t, err, &unableToUpdate)
	assert.Equal(t, "Unable to handle Binary types.", unableToUpdate.Reason)
}

// An unsupported attribute nested inside an otherwise-supported List or
// Map must still fail, not get silently encoded as the literal "NULL".
func TestComputeUnsupportedAttributeNestedInNewOnlyList(t *testing.T) {
	binary := &ddbtypes.AttributeValueMemberB{Value: []byte("blob")}
	_, err := diff.Compute(
		attrval.Map{"list": attrval.List(attrval.Number("1"), binary)},
		attrval.Map{},
	)
	require.Error(t, err)
	var unableToUpdate *errs.UnableToUpdateError
	require.ErrorAs(t, err, &unableToUpdate)
	assert.Equal(t, "Unable to handle Binary types.", unableToUpdate.Reason)
}

func TestComputeUnsupportedAttributeNestedInTypeChangedMap(t *testing.T) {
	binary := &ddbtypes.AttributeValueMemberB{Value: []byte("blob")}
	_, err := diff.Compute(
		attrval.Map{"a": attrval.MapOf(attrval.Map{"b": binary})},
		attrval.Map{"a": attrval.String("was-a-string")},
	)
	require.Error(t, err)
	var unableToUpdate *errs.UnableToUpdateError
	require.ErrorAs(t, err, &unableToUpdate)
	assert.Equal(t, "Unable to handle Binary types.", unableToUpdate.Reason)
}

func TestComputeUnsupportedAttributeNestedInSurplusListTail(t *testing.T) {
	binary := &ddbtypes.AttributeValueMemberB{Value: []byte("blob")}
	_, err := diff.Compute(
		attrval.Map{"list": attrval.List(attrval.Number("1"), attrval.Number("2"), binary)},
		attrval.Map{"list": attrval.List(attrval.Number("1"))},
	)
	require.Error(t, err)
	var unableToUpdate *errs.UnableToUpdateError
	require.ErrorAs(t, err, &unableToUpdate)
	assert.Equal(t, "Unable to handle Binary types.", unableToUpdate.Reason)
}
