package attrval_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/theory-cloud/rowstore/pkg/attrval"
)

func TestRenderScalars(t *testing.T) {
	cases := []struct {
		value    attrval.Value
		rendered string
	}{
		{attrval.String("hello"), "'hello'"},
		{attrval.String("it's"), "'it''s'"},
		{attrval.Number("42"), "42"},
		{attrval.Bool(true), "true"},
		{attrval.Bool(false), "false"},
	}
	for _, c := range cases {
		rendered, ok := attrval.Render(c.value)
		require.True(t, ok)
		assert.Equal(t, c.rendered, rendered)
	}
}

func TestRenderNullOmitted(t *testing.T) {
	_, ok := attrval.Render(attrval.Null())
	assert.False(t, ok)
}

func TestRenderListAndMap(t *testing.T) {
	rendered, ok := attrval.Render(attrval.List(attrval.Number("1"), attrval.Number("2"), attrval.Number("3")))
	require.True(t, ok)
	assert.Equal(t, "[1, 2, 3]", rendered)

	rendered, ok = attrval.Render(attrval.MapOf(attrval.Map{"b": attrval.Number("2"), "a": attrval.Number("1")}))
	require.True(t, ok)
	assert.Equal(t, "{'a': 1, 'b': 2}", rendered)
}

func TestKindOfAndSupported(t *testing.T) {
	assert.Equal(t, attrval.KindString, attrval.KindOf(attrval.String("x")))
	assert.Equal(t, attrval.KindNumber, attrval.KindOf(attrval.Number("1")))
	assert.Equal(t, attrval.KindBool, attrval.KindOf(attrval.Bool(true)))
	assert.Equal(t, attrval.KindNull, attrval.KindOf(attrval.Null()))
	assert.Equal(t, attrval.KindList, attrval.KindOf(attrval.List()))
	assert.Equal(t, attrval.KindMap, attrval.KindOf(attrval.MapOf(attrval.Map{})))

	assert.True(t, attrval.Supported(attrval.String("x")))
	assert.True(t, attrval.Supported(attrval.Null()))
}

func TestEqual(t *testing.T) {
	assert.True(t, attrval.Equal(attrval.String("x"), attrval.String("x")))
	assert.False(t, attrval.Equal(attrval.String("x"), attrval.String("y")))
	assert.False(t, attrval.Equal(attrval.String("x"), attrval.Number("1")))
	assert.True(t, attrval.Equal(
		attrval.List(attrval.Number("1"), attrval.Number("2")),
		attrval.List(attrval.Number("1"), attrval.Number("2")),
	))
	assert.False(t, attrval.Equal(
		attrval.List(attrval.Number("1")),
		attrval.List(attrval.Number("1"), attrval.Number("2")),
	))
}

func TestStringAndNumberValue(t *testing.T) {
	s, ok := attrval.StringValue(attrval.String("hi"))
	require.True(t, ok)
	assert.Equal(t, "hi", s)

	_, ok = attrval.StringValue(attrval.Number("1"))
	assert.False(t, ok)

	n, ok := attrval.NumberValue(attrval.Number("7"))
	require.True(t, ok)
	assert.Equal(t, "7", n)
}
