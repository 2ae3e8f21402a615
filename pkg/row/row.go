// Package row defines the versioned row envelope (C2) and the
// optimistic-concurrency invariants attached to it (spec §3).
package row

import (
	"strconv"
	"time"

	ddbtypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/theory-cloud/rowstore/pkg/attrval"
	"github.com/theory-cloud/rowstore/pkg/errs"
	"github.com/theory-cloud/rowstore/pkg/rowkey"
)

// Reserved attribute names. The stored attribute map always carries the
// two key attributes plus these four; a Payload must not try to own one
// of them (spec §3, "these names are reserved").
const (
	AttrRowVersion     = "rowVersion"
	AttrCreateDate     = "createDate"
	AttrLastUpdateDate = "lastUpdateDate"
	AttrRowType        = "rowType"
)

// Payload is implemented by the caller's record type. Attributes
// returns the payload's own flattened attributes only — the envelope
// fields are added by Row.ToItem, not by the payload itself. This is
// the boundary spec §1 draws around "generic value encoder/decoder":
// rowstore never reflects over a struct to build this map, the caller's
// own type does.
type Payload interface {
	RowTypeTag() string
	Attributes() attrval.Map
}

// Status is the mutable half of the envelope: the fields every
// successful update advances (spec §3, "rowStatus").
type Status struct {
	LastUpdateDate time.Time
	RowVersion     uint64
}

// Row is the versioned envelope around a caller payload (spec §3,
// "Row<A, P>"). CreateDate is immutable after insert; RowTypeTag is
// immutable for a given stored row.
type Row[P Payload] struct {
	Key        rowkey.Key
	CreateDate time.Time
	Status     Status
	Payload    P
}

// RowTypeTag reports the payload's stable schema identifier.
func (r Row[P]) RowTypeTag() string { return r.Payload.RowTypeTag() }

// NextVersion returns a copy of r advanced by exactly one row version,
// with LastUpdateDate refreshed to now. This is the caller-side half of
// the update precondition described in spec §4.3 ("caller must have set
// new.rowStatus.rowVersion = existing.rowStatus.rowVersion + 1").
func (r Row[P]) NextVersion(payload P, now time.Time) Row[P] {
	return Row[P]{
		Key:        r.Key,
		CreateDate: r.CreateDate,
		Status: Status{
			RowVersion:     r.Status.RowVersion + 1,
			LastUpdateDate: now,
		},
		Payload: payload,
	}
}

// ToItem flattens the envelope into the full stored attribute map: the
// two key attributes, the four reserved envelope attributes, and the
// payload's own attributes (spec §3, "the stored attribute map always
// contains...").
func (r Row[P]) ToItem(schema rowkey.Schema) attrval.Map {
	item := make(attrval.Map)
	for k, v := range r.Payload.Attributes() {
		item[k] = v
	}
	item[schema.PartitionKeyName] = attrval.String(r.Key.PartitionKey)
	item[schema.SortKeyName] = attrval.String(r.Key.SortKey)
	item[AttrRowVersion] = attrval.Number(strconv.FormatUint(r.Status.RowVersion, 10))
	item[AttrCreateDate] = attrval.String(FormatInstant(r.CreateDate))
	item[AttrLastUpdateDate] = attrval.String(FormatInstant(r.Status.LastUpdateDate))
	item[AttrRowType] = attrval.String(r.RowTypeTag())
	return item
}

// FormatInstant renders an instant as ISO-8601 UTC with fractional
// seconds (spec §3). Exported so callers building a condition
// expression against a row's createDate (pkg/table's update/delete
// paths) render it identically to ToItem.
func FormatInstant(t time.Time) string {
	return t.UTC().Format(instantLayout)
}

const instantLayout = "2006-01-02T15:04:05.000Z"

// Meta is the envelope metadata read back off a stored item, separated
// from its payload attributes so a Provider (pkg/poly) can reconstruct
// any Row[P] without knowing P in advance.
type Meta struct {
	Key            rowkey.Key
	CreateDate     time.Time
	LastUpdateDate time.Time
	RowVersion     uint64
	RowTypeTag     string
}

// SplitItem separates a stored attribute map into its envelope Meta and
// the remaining payload-only attributes, using schema to identify which
// two attributes are the composite key. It fails with UnexpectedResponse
// (via the returned error) if a reserved attribute is missing or has the
// wrong AttributeValue kind — the backend returned a shape this layer
// cannot decode.
func SplitItem(item attrval.Map, schema rowkey.Schema) (Meta, attrval.Map, error) {
	pk, err := stringAttr(item, schema.PartitionKeyName)
	if err != nil {
		return Meta{}, nil, err
	}
	sk, err := stringAttr(item, schema.SortKeyName)
	if err != nil {
		return Meta{}, nil, err
	}
	createDate, err := timeAttr(item, AttrCreateDate)
	if err != nil {
		return Meta{}, nil, err
	}
	lastUpdate, err := timeAttr(item, AttrLastUpdateDate)
	if err != nil {
		return Meta{}, nil, err
	}
	version, err := uintAttr(item, AttrRowVersion)
	if err != nil {
		return Meta{}, nil, err
	}
	tag, err := stringAttr(item, AttrRowType)
	if err != nil {
		return Meta{}, nil, err
	}

	meta := Meta{
		Key:            rowkey.New(pk, sk),
		CreateDate:     createDate,
		LastUpdateDate: lastUpdate,
		RowVersion:     version,
		RowTypeTag:     tag,
	}

	payload := make(attrval.Map, len(item))
	for k, v := range item {
		switch k {
		case schema.PartitionKeyName, schema.SortKeyName, AttrRowVersion, AttrCreateDate, AttrLastUpdateDate, AttrRowType:
			continue
		default:
			payload[k] = v
		}
	}
	return meta, payload, nil
}

func stringAttr(item attrval.Map, name string) (string, error) {
	v, ok := item[name]
	if !ok {
		return "", unexpectedResponse(name, "missing")
	}
	sv, ok := asString(v)
	if !ok {
		return "", unexpectedResponse(name, "expected string")
	}
	return sv, nil
}

func timeAttr(item attrval.Map, name string) (time.Time, error) {
	s, err := stringAttr(item, name)
	if err != nil {
		return time.Time{}, err
	}
	t, parseErr := time.Parse(instantLayout, s)
	if parseErr != nil {
		return time.Time{}, unexpectedResponse(name, "malformed instant")
	}
	return t, nil
}

func uintAttr(item attrval.Map, name string) (uint64, error) {
	v, ok := item[name]
	if !ok {
		return 0, unexpectedResponse(name, "missing")
	}
	n, ok := asNumber(v)
	if !ok {
		return 0, unexpectedResponse(name, "expected number")
	}
	parsed, convErr := strconv.ParseUint(n, 10, 64)
	if convErr != nil {
		return 0, unexpectedResponse(name, "malformed row version")
	}
	return parsed, nil
}

func asString(v attrval.Value) (string, bool) {
	s, ok := v.(*ddbtypes.AttributeValueMemberS)
	if !ok {
		return "", false
	}
	return s.Value, true
}

func asNumber(v attrval.Value) (string, bool) {
	n, ok := v.(*ddbtypes.AttributeValueMemberN)
	if !ok {
		return "", false
	}
	return n.Value, true
}

func unexpectedResponse(attr, reason string) error {
	return &errs.UnexpectedResponseError{Reason: attr + ": " + reason}
}
