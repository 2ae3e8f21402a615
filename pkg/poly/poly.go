// Package poly is the polymorphic read dispatcher (C7): given a stored
// row's rowTypeTag, it finds the provider registered for that tag and
// uses it to decode the row into the caller's chosen result type R
// (spec §4.5).
//
// This replaces the teacher's reflection-driven, runtime-registry model
// lookup (pkg/model.Registry keys by reflect.Type) with an explicit,
// statically-typed capability the caller builds up front — per spec
// §9's design note, a registry of string-tag-to-closure mappings rather
// than a reflective type switch.
package poly

import (
	"github.com/theory-cloud/rowstore/pkg/attrval"
	"github.com/theory-cloud/rowstore/pkg/errs"
	"github.com/theory-cloud/rowstore/pkg/row"
)

// Provider decodes a stored row's payload attributes (plus its envelope
// metadata) into R. Registered under the rowTypeTag it understands.
type Provider[R any] func(meta row.Meta, payload attrval.Map) (R, error)

// Registry maps a stable rowTypeTag string to the Provider that can
// decode rows of that shape. The zero value is usable via New.
type Registry[R any] map[string]Provider[R]

// New builds a Registry from (tag, provider) pairs.
func New[R any](entries map[string]Provider[R]) Registry[R] {
	r := make(Registry[R], len(entries))
	for tag, p := range entries {
		r[tag] = p
	}
	return r
}

// With returns a copy of r with tag bound to provider, leaving r
// unmodified. Useful for composing a base registry across call sites.
func (r Registry[R]) With(tag string, provider Provider[R]) Registry[R] {
	out := make(Registry[R], len(r)+1)
	for k, v := range r {
		out[k] = v
	}
	out[tag] = provider
	return out
}

// Decode finds the provider for meta.RowTypeTag and invokes it. It
// returns UnexpectedTypeError{Provided: meta.RowTypeTag} if no provider
// is registered for that tag (spec §4.5, step 4).
func (r Registry[R]) Decode(meta row.Meta, payload attrval.Map) (R, error) {
	var zero R
	provider, ok := r[meta.RowTypeTag]
	if !ok {
		return zero, &errs.UnexpectedTypeError{Provided: meta.RowTypeTag}
	}
	return provider(meta, payload)
}
