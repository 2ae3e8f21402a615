// Package attrval is the tagged-union attribute value model (C1) that the
// rest of rowstore operates on. It reuses the AWS SDK's DynamoDB
// AttributeValue union rather than re-inventing one: the variants this
// spec cares about (S, N, BOOL, NULL, L, M) plus the explicitly
// unsupported ones (B, SS, NS, BS) already exist there, named the same
// way the backing store itself names them.
package attrval

import (
	"fmt"
	"sort"
	"strings"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// Value is the tagged union described in spec §3: S | N | Bool | Null |
// L | M | B | SS | NS | BS. It is a direct alias of the SDK's
// AttributeValue interface so callers constructing or inspecting values
// never need an adapter layer to the backend RPC (§1's "opaque RPC").
type Value = types.AttributeValue

// Map is the flattened attribute map that insert/update statements are
// rendered from and that get/query responses are decoded from.
type Map = map[string]Value

// String constructs an S-typed value.
func String(s string) Value { return &types.AttributeValueMemberS{Value: s} }

// Number constructs an N-typed value from its already-formatted numeric
// string (DynamoDB numbers are always transmitted as decimal text).
func Number(numericString string) Value { return &types.AttributeValueMemberN{Value: numericString} }

// Bool constructs a BOOL-typed value.
func Bool(b bool) Value { return &types.AttributeValueMemberBOOL{Value: b} }

// Null constructs a NULL-typed value.
func Null() Value { return &types.AttributeValueMemberNULL{Value: true} }

// List constructs an L-typed value.
func List(items ...Value) Value { return &types.AttributeValueMemberL{Value: items} }

// MapOf constructs an M-typed value.
func MapOf(m Map) Value { return &types.AttributeValueMemberM{Value: m} }

// Kind identifies which branch of the union a Value occupies.
type Kind int

const (
	KindUnknown Kind = iota
	KindString
	KindNumber
	KindBool
	KindNull
	KindList
	KindMap
	KindBinary
	KindStringSet
	KindNumberSet
	KindBinarySet
)

// KindOf classifies v. Binary/BinarySet/NumberSet/StringSet values are
// classified but never supported past this point in the diff/update
// path (spec §1 Non-goals, §3's "remainder cause UnsupportedAttribute").
func KindOf(v Value) Kind {
	switch v.(type) {
	case *types.AttributeValueMemberS:
		return KindString
	case *types.AttributeValueMemberN:
		return KindNumber
	case *types.AttributeValueMemberBOOL:
		return KindBool
	case *types.AttributeValueMemberNULL:
		return KindNull
	case *types.AttributeValueMemberL:
		return KindList
	case *types.AttributeValueMemberM:
		return KindMap
	case *types.AttributeValueMemberB:
		return KindBinary
	case *types.AttributeValueMemberSS:
		return KindStringSet
	case *types.AttributeValueMemberNS:
		return KindNumberSet
	case *types.AttributeValueMemberBS:
		return KindBinarySet
	default:
		return KindUnknown
	}
}

// Supported reports whether v's kind is one the diff/flatten engine can
// operate on: S, N, Bool, Null, L, M.
func Supported(v Value) bool {
	switch KindOf(v) {
	case KindString, KindNumber, KindBool, KindNull, KindList, KindMap:
		return true
	default:
		return false
	}
}

// Equal reports structural equality of two supported-kind values. It is
// used by the diff engine to decide whether a scalar actually changed.
func Equal(a, b Value) bool {
	ka, kb := KindOf(a), KindOf(b)
	if ka != kb {
		return false
	}
	switch ka {
	case KindString:
		return a.(*types.AttributeValueMemberS).Value == b.(*types.AttributeValueMemberS).Value
	case KindNumber:
		return a.(*types.AttributeValueMemberN).Value == b.(*types.AttributeValueMemberN).Value
	case KindBool:
		return a.(*types.AttributeValueMemberBOOL).Value == b.(*types.AttributeValueMemberBOOL).Value
	case KindNull:
		return true
	case KindList:
		la := a.(*types.AttributeValueMemberL).Value
		lb := b.(*types.AttributeValueMemberL).Value
		if len(la) != len(lb) {
			return false
		}
		for i := range la {
			if !Equal(la[i], lb[i]) {
				return false
			}
		}
		return true
	case KindMap:
		ma := a.(*types.AttributeValueMemberM).Value
		mb := b.(*types.AttributeValueMemberM).Value
		if len(ma) != len(mb) {
			return false
		}
		for k, v := range ma {
			other, ok := mb[k]
			if !ok || !Equal(v, other) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// Render produces the textual literal the statement grammar in spec
// §4.1 embeds directly into INSERT/UPDATE statement text. ok is false
// for Null, whose rule is "omitted from the flattened map" — callers
// (the diff engine, the insert flattener) turn that into an absent
// attribute or a REMOVE edit rather than a literal.
//
// String literals double embedded single quotes (the standard
// SQL-family escape) before wrapping them in quotes. The source this
// spec distills defines no escaping at all (spec §9's open question);
// this resolves that question in favor of closing the injection hazard
// rather than leaving it open.
func Render(v Value) (string, bool) {
	switch KindOf(v) {
	case KindString:
		s := v.(*types.AttributeValueMemberS).Value
		return "'" + strings.ReplaceAll(s, "'", "''") + "'", true
	case KindNumber:
		return v.(*types.AttributeValueMemberN).Value, true
	case KindBool:
		if v.(*types.AttributeValueMemberBOOL).Value {
			return "true", true
		}
		return "false", true
	case KindNull:
		return "", false
	case KindList:
		items := v.(*types.AttributeValueMemberL).Value
		parts := make([]string, 0, len(items))
		for _, item := range items {
			rendered, ok := Render(item)
			if !ok {
				rendered = "NULL"
			}
			parts = append(parts, rendered)
		}
		return "[" + strings.Join(parts, ", ") + "]", true
	case KindMap:
		m := v.(*types.AttributeValueMemberM).Value
		keys := make([]string, 0, len(m))
		for key := range m {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		parts := make([]string, 0, len(keys))
		for _, key := range keys {
			rendered, ok := Render(m[key])
			if !ok {
				rendered = "NULL"
			}
			parts = append(parts, fmt.Sprintf("'%s': %s", strings.ReplaceAll(key, "'", "''"), rendered))
		}
		return "{" + strings.Join(parts, ", ") + "}", true
	default:
		return "", false
	}
}

// StringValue extracts the underlying text of an S-typed Value.
func StringValue(v Value) (string, bool) {
	s, ok := v.(*types.AttributeValueMemberS)
	if !ok {
		return "", false
	}
	return s.Value, true
}

// NumberValue extracts the underlying decimal text of an N-typed Value.
func NumberValue(v Value) (string, bool) {
	n, ok := v.(*types.AttributeValueMemberN)
	if !ok {
		return "", false
	}
	return n.Value, true
}

// ListValues extracts the element slice from an L-typed Value, or nil
// if v is not a list.
func ListValues(v Value) []Value {
	l, ok := v.(*types.AttributeValueMemberL)
	if !ok {
		return nil
	}
	return l.Value
}

// MapValues extracts the underlying map from an M-typed Value, or nil
// if v is not a map.
func MapValues(v Value) Map {
	m, ok := v.(*types.AttributeValueMemberM)
	if !ok {
		return nil
	}
	return m.Value
}
