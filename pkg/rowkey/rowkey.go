// Package rowkey holds the composite primary key shared by every row in
// a partition (spec §3, "Composite primary key K").
package rowkey

// Schema parameterizes the two key attribute names by the caller's own
// attribute naming (e.g. "PK"/"SK"), since spec §3 leaves those names to
// the caller's attribute schema.
type Schema struct {
	PartitionKeyName string
	SortKeyName      string
}

// DefaultSchema matches the naming the teacher's own examples favor.
func DefaultSchema() Schema {
	return Schema{PartitionKeyName: "PK", SortKeyName: "SK"}
}

// Key is the composite (partitionKey, sortKey) primary key.
type Key struct {
	PartitionKey string
	SortKey      string
}

// New builds a Key, mirroring the teacher's NewKeyPair convenience
// constructor (tabletheory.NewKeyPair) but over the plain string keys
// this spec's rows use rather than arbitrary reflected values.
func New(partitionKey, sortKey string) Key {
	return Key{PartitionKey: partitionKey, SortKey: sortKey}
}

// Between, Equals and the other sort-key conditions used by query are
// kept in the backend package (backend.SortKeyCondition) next to the
// query request shape itself; Key
// stays a pure value type with no query-shaping behavior.
