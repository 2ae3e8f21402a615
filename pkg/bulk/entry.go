// Package bulk is the bulk-write coordinator (C6): it chunks
// heterogeneous write entries to the backend's per-call statement
// limit, issues them with bounded concurrency, and aggregates partial
// errors into a structured summary (spec §4.4).
package bulk

import (
	"github.com/theory-cloud/rowstore/pkg/attrval"
	"github.com/theory-cloud/rowstore/pkg/diff"
	"github.com/theory-cloud/rowstore/pkg/rowkey"
	"github.com/theory-cloud/rowstore/pkg/stmt"
)

// EntryKind identifies which branch of the write-entry union W<A,P>
// (spec §3) an Entry occupies.
type EntryKind int

const (
	KindInsert EntryKind = iota
	KindUpdate
	KindDeleteAtKey
	KindDeleteItem
)

// Entry is one write in a bulk-write call (spec §3, "Write entry
// W<A,P>"). Only the fields relevant to Kind need be populated:
//
//   - Insert:      NewItem (the full flattened item, envelope included)
//   - Update:      Key, ExistingVersion, and Diffs precomputed between
//     the new and existing flattened items
//   - DeleteAtKey: Key
//   - DeleteItem:  Key, ExistingVersion
type Entry struct {
	NewItem         attrval.Map
	Diffs           []diff.Diff
	Key             rowkey.Key
	ExistingVersion uint64
	Kind            EntryKind
}

// Render compiles entries into the statements bulk.Coordinator
// dispatches, using pkg/stmt per variant (spec §4.4: "the rendering
// uses C3 per variant"). It fails fast on the first entry whose item
// contains an unsupported attribute kind rather than submitting a
// partially-rendered batch.
func Render(table string, schema rowkey.Schema, entries []Entry) ([]string, error) {
	statements := make([]string, len(entries))
	for i, e := range entries {
		switch e.Kind {
		case KindInsert:
			s, err := stmt.Insert(table, e.NewItem)
			if err != nil {
				return nil, err
			}
			statements[i] = s
		case KindUpdate:
			statements[i] = stmt.Update(table, schema, e.Key, e.ExistingVersion, e.Diffs)
		case KindDeleteAtKey:
			statements[i] = stmt.DeleteAtKey(table, schema, e.Key)
		case KindDeleteItem:
			statements[i] = stmt.DeleteItem(table, schema, e.Key, e.ExistingVersion)
		}
	}
	return statements, nil
}
