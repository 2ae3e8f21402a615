// Package diff is the structural diff-and-expression engine's analysis
// half (C4): it recursively compares two attribute maps and emits the
// minimal ordered list of path-scoped edits between them (spec §4.2).
// Rendering those edits into statement text is pkg/stmt's job.
package diff

import (
	"fmt"
	"sort"

	"github.com/theory-cloud/rowstore/pkg/attrval"
	"github.com/theory-cloud/rowstore/pkg/errs"
)

// Kind identifies which branch of the attribute-difference union D a
// Diff value occupies (spec §3, "Attribute difference D").
type Kind int

const (
	KindUpdate Kind = iota
	KindRemove
	KindListAppend
)

// Diff is one edit in the minimal set produced by Compute: an Update
// carries the rendered literal for its path, Remove carries only the
// path, and ListAppend carries the rendered list literal of the
// surplus tail elements to append.
type Diff struct {
	Path     string
	Rendered string
	Kind     Kind
}

// Compute returns the ordered list of edits that transform existing
// into new, or an UnableToUpdateError if a value it compares or writes
// is of an attribute value type this layer does not support (spec §3
// Non-goals: binary, binary-set, number-set, string-set). A key present
// only in existing becomes a Remove without its value being checked.
//
// Map keys are visited in sorted order at every level so the emitted
// edit list — and therefore the rendered UPDATE statement — is
// deterministic (spec §9's open question, resolved explicitly; see
// DESIGN.md).
func Compute(newItem, existing attrval.Map) ([]Diff, error) {
	var out []Diff
	if err := diffMaps("", newItem, existing, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func diffMaps(path string, newItem, existing attrval.Map, out *[]Diff) error {
	keys := unionKeysSorted(newItem, existing)
	for _, key := range keys {
		childPath := extendPath(path, key)
		newVal, inNew := newItem[key]
		oldVal, inOld := existing[key]

		switch {
		case inNew && inOld:
			if err := diffValues(childPath, newVal, oldVal, out); err != nil {
				return err
			}
		case inOld && !inNew:
			*out = append(*out, Diff{Kind: KindRemove, Path: childPath})
		case inNew && !inOld:
			if err := updateOrRemove(childPath, newVal, out); err != nil {
				return err
			}
		}
	}
	return nil
}

func diffValues(path string, newVal, oldVal attrval.Value, out *[]Diff) error {
	if err := RequireSupported(newVal); err != nil {
		return err
	}
	if err := RequireSupported(oldVal); err != nil {
		return err
	}

	newKind, oldKind := attrval.KindOf(newVal), attrval.KindOf(oldVal)

	if newKind == attrval.KindNull && oldKind == attrval.KindNull {
		return nil
	}

	switch {
	case newKind == attrval.KindList && oldKind == attrval.KindList:
		return diffLists(path, asList(newVal), asList(oldVal), out)
	case newKind == attrval.KindMap && oldKind == attrval.KindMap:
		return diffMaps(path, asMap(newVal), asMap(oldVal), out)
	case newKind == oldKind:
		// Equal-typed scalars: emit Update only if the rendered literal
		// differs (spec §4.2, "Scalars equal-typed").
		if attrval.Equal(newVal, oldVal) {
			return nil
		}
		return updateOrRemove(path, newVal, out)
	default:
		// Type changed: recompute from scratch (spec §4.2).
		return updateOrRemove(path, newVal, out)
	}
}

func diffLists(path string, newList, oldList []attrval.Value, out *[]Diff) error {
	n := max(len(newList), len(oldList))
	appended := false
	for i := 0; i < n; i++ {
		childPath := fmt.Sprintf("%s[%d]", path, i)
		hasNew := i < len(newList)
		hasOld := i < len(oldList)

		switch {
		case hasNew && hasOld:
			if err := diffValues(childPath, newList[i], oldList[i], out); err != nil {
				return err
			}
		case hasOld && !hasNew:
			*out = append(*out, Diff{Kind: KindRemove, Path: childPath})
		case hasNew && !hasOld:
			if appended {
				// Folded into the single list_append already emitted
				// for the first surplus index (spec §4.2).
				continue
			}
			surplus := newList[i:]
			for _, v := range surplus {
				if err := RequireSupported(v); err != nil {
					return err
				}
			}
			rendered, _ := attrval.Render(attrval.List(surplus...))
			*out = append(*out, Diff{Kind: KindListAppend, Path: path, Rendered: rendered})
			appended = true
		}
	}
	return nil
}

// updateOrRemove renders v; if it has no literal representation (Null),
// it emits Remove, otherwise Update (spec §4.2's "updateOrRemove").
func updateOrRemove(path string, v attrval.Value, out *[]Diff) error {
	if err := RequireSupported(v); err != nil {
		return err
	}
	rendered, ok := attrval.Render(v)
	if !ok {
		*out = append(*out, Diff{Kind: KindRemove, Path: path})
		return nil
	}
	*out = append(*out, Diff{Kind: KindUpdate, Path: path, Rendered: rendered})
	return nil
}

// RequireSupported rejects v if it, or anything nested inside it, is an
// attribute kind the diff/update path does not support (spec §1
// Non-goals, §3's "remainder cause UnsupportedAttribute"). A List or Map
// is only as supported as every element or value it contains — a binary
// blob three levels deep inside a supported container is still a type
// this layer cannot encode into a SET/REMOVE/list_append edit or an
// INSERT value literal, so it must fail here rather than reach Render
// and get silently degraded to the literal "NULL" (spec §13).
func RequireSupported(v attrval.Value) error {
	switch attrval.KindOf(v) {
	case attrval.KindString, attrval.KindNumber, attrval.KindBool, attrval.KindNull:
		return nil
	case attrval.KindList:
		for _, item := range attrval.ListValues(v) {
			if err := RequireSupported(item); err != nil {
				return err
			}
		}
		return nil
	case attrval.KindMap:
		for _, item := range attrval.MapValues(v) {
			if err := RequireSupported(item); err != nil {
				return err
			}
		}
		return nil
	default:
		return &errs.UnableToUpdateError{Reason: unsupportedReason(v)}
	}
}

func unsupportedReason(v attrval.Value) string {
	switch attrval.KindOf(v) {
	case attrval.KindBinary:
		return "Unable to handle Binary types."
	case attrval.KindStringSet:
		return "Unable to handle String Set types."
	case attrval.KindNumberSet:
		return "Unable to handle Number Set types."
	case attrval.KindBinarySet:
		return "Unable to handle Binary Set types."
	default:
		return "Unable to handle unknown attribute types."
	}
}

func extendPath(path, key string) string {
	if path == "" {
		return key
	}
	return path + "." + key
}

func unionKeysSorted(a, b attrval.Map) []string {
	seen := make(map[string]struct{}, len(a)+len(b))
	keys := make([]string, 0, len(a)+len(b))
	for k := range a {
		if _, ok := seen[k]; !ok {
			seen[k] = struct{}{}
			keys = append(keys, k)
		}
	}
	for k := range b {
		if _, ok := seen[k]; !ok {
			seen[k] = struct{}{}
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}

func asList(v attrval.Value) []attrval.Value {
	return attrval.ListValues(v)
}

func asMap(v attrval.Value) attrval.Map {
	return attrval.MapValues(v)
}
