package memstore

import (
	"fmt"
	"strconv"
	"strings"

	ddbtypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/theory-cloud/rowstore/pkg/attrval"
)

// step is one hop of a diff path (pkg/diff's "a.b[2].c" grammar): either
// a map key or a list index.
type step struct {
	key  string
	idx  int
	kind stepKind
}

type stepKind int

const (
	stepMapKey stepKind = iota
	stepListIndex
)

// toSteps splits a diff path into its map-key/list-index hops.
func toSteps(path string) []step {
	var steps []step
	for _, part := range strings.Split(path, ".") {
		name := part
		for {
			open := strings.IndexByte(name, '[')
			if open < 0 {
				steps = append(steps, step{kind: stepMapKey, key: name})
				break
			}
			if open > 0 {
				steps = append(steps, step{kind: stepMapKey, key: name[:open]})
			}
			closeIdx := strings.IndexByte(name[open:], ']')
			idx, _ := strconv.Atoi(name[open+1 : open+closeIdx])
			steps = append(steps, step{kind: stepListIndex, idx: idx})
			name = name[open+closeIdx+1:]
			if name == "" {
				break
			}
		}
	}
	return steps
}

// descend resolves one step against current, returning the child value.
func descend(current attrval.Value, s step) (attrval.Value, bool) {
	switch s.kind {
	case stepMapKey:
		m, ok := current.(*ddbtypes.AttributeValueMemberM)
		if !ok {
			return nil, false
		}
		v, exists := m.Value[s.key]
		return v, exists
	case stepListIndex:
		l, ok := current.(*ddbtypes.AttributeValueMemberL)
		if !ok || s.idx < 0 || s.idx >= len(l.Value) {
			return nil, false
		}
		return l.Value[s.idx], true
	default:
		return nil, false
	}
}

// navigateParent walks all but the last step of path, returning the
// container the last step addresses (a *AttributeValueMemberM or
// *AttributeValueMemberL) plus that last step itself.
//
// Every intermediate container the diff engine emits a path through
// already exists in the row being mutated — diffMaps/diffLists only
// recurse when both sides already share that nested container (spec
// §4.2); a path whose parent is missing here means the statement was
// not produced by this module's own diff engine.
func navigateParent(root attrval.Map, steps []step) (attrval.Value, step, bool) {
	if len(steps) == 0 {
		return nil, step{}, false
	}
	var current attrval.Value = &ddbtypes.AttributeValueMemberM{Value: root}
	for i := 0; i < len(steps)-1; i++ {
		next, ok := descend(current, steps[i])
		if !ok {
			return nil, step{}, false
		}
		current = next
	}
	return current, steps[len(steps)-1], true
}

// navigateExact walks every step of path and returns the value it
// addresses (used for list_append's target, whose path names the list
// itself rather than an element within it).
func navigateExact(root attrval.Map, steps []step) (attrval.Value, bool) {
	var current attrval.Value = &ddbtypes.AttributeValueMemberM{Value: root}
	for _, s := range steps {
		next, ok := descend(current, s)
		if !ok {
			return nil, false
		}
		current = next
	}
	return current, true
}

func setAtSteps(root attrval.Map, steps []step, value attrval.Value) error {
	container, last, ok := navigateParent(root, steps)
	if !ok {
		return fmt.Errorf("memstore: SET path not found")
	}
	switch last.kind {
	case stepMapKey:
		m, ok := container.(*ddbtypes.AttributeValueMemberM)
		if !ok {
			return fmt.Errorf("memstore: SET path does not resolve to a map")
		}
		m.Value[last.key] = value
	case stepListIndex:
		l, ok := container.(*ddbtypes.AttributeValueMemberL)
		if !ok {
			return fmt.Errorf("memstore: SET path does not resolve to a list")
		}
		switch {
		case last.idx >= 0 && last.idx < len(l.Value):
			l.Value[last.idx] = value
		case last.idx == len(l.Value):
			l.Value = append(l.Value, value)
		default:
			return fmt.Errorf("memstore: SET list index %d out of range", last.idx)
		}
	}
	return nil
}

func appendAtSteps(root attrval.Map, steps []step, value attrval.Value) error {
	target, ok := navigateExact(root, steps)
	if !ok {
		return fmt.Errorf("memstore: list_append target path not found")
	}
	l, ok := target.(*ddbtypes.AttributeValueMemberL)
	if !ok {
		return fmt.Errorf("memstore: list_append target is not a list")
	}
	appended, ok := value.(*ddbtypes.AttributeValueMemberL)
	if !ok {
		return fmt.Errorf("memstore: list_append literal is not a list")
	}
	l.Value = append(l.Value, appended.Value...)
	return nil
}
