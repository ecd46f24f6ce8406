// Package docstore defines the document store port the core is written
// against: a key-addressed document store with collection-scoped queries and
// eventually-consistent change subscriptions. Implementations live in the
// memory and redis subpackages.
package docstore

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"
)

// Document is a stored document with its collection-scoped id.
type Document struct {
	ID   string
	Data map[string]any
}

// Op is a filter comparison operator.
type Op string

const (
	OpEqual       Op = "=="
	OpLess        Op = "<"
	OpLessOrEq    Op = "<="
	OpGreater     Op = ">"
	OpGreaterOrEq Op = ">="
	OpNotEqual    Op = "!="
)

// Filter is one field comparison within a query.
type Filter struct {
	Field string
	Op    Op
	Value any
}

// Query selects documents from a single collection. A zero OrderBy leaves
// results in store order.
type Query struct {
	Collection string
	Filters    []Filter
	OrderBy    string
	Descending bool
	Limit      int
}

// Store is the document store port.
type Store interface {
	// Get returns the document or domain.ErrNotFound.
	Get(ctx context.Context, collection, id string) (Document, error)
	// Set writes a document under a caller-chosen id. With merge, fields are
	// merged into any existing document instead of replacing it.
	Set(ctx context.Context, collection, id string, data map[string]any, merge bool) error
	// Add writes a document under a generated id and returns the id.
	Add(ctx context.Context, collection string, data map[string]any) (string, error)
	// Update merges the given fields into an existing document; ErrNotFound
	// if the document does not exist.
	Update(ctx context.Context, collection, id string, fields map[string]any) error
	// UpdateIf replaces the document only if its stored value for field still
	// equals expect; domain.ErrConflict otherwise. Never blocks on other
	// writers beyond the store round-trip.
	UpdateIf(ctx context.Context, collection, id string, data map[string]any, field string, expect any) error
	// Query runs a collection-scoped query.
	Query(ctx context.Context, q Query) ([]Document, error)
	// Subscribe delivers the query result on every observed change until the
	// subscription is closed. Delivery is eventually consistent.
	Subscribe(ctx context.Context, q Query) (*Subscription, error)
}

// Subscription is an explicit change-feed handle. Close is idempotent.
type Subscription struct {
	C <-chan []Document

	once sync.Once
	stop func()
}

// NewSubscription wires a delivery channel to a stop function. Intended for
// Store implementations.
func NewSubscription(c <-chan []Document, stop func()) *Subscription {
	return &Subscription{C: c, stop: stop}
}

func (s *Subscription) Close() {
	s.once.Do(s.stop)
}

// Encode converts a value to a document map via its JSON form. Unset optional
// fields collapse to absent keys and nested values become plain maps/slices,
// matching what the store persists.
func Encode(v any) (map[string]any, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}
	return out, nil
}

// Decode converts a document map back into a typed value.
func Decode(data map[string]any, v any) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("decode document: %w", err)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("decode document: %w", err)
	}
	return nil
}

// Matches reports whether data satisfies all filters.
func Matches(data map[string]any, filters []Filter) bool {
	for _, f := range filters {
		got, ok := data[f.Field]
		if !ok {
			return false
		}
		cmp, comparable := Compare(got, f.Value)
		if !comparable {
			return false
		}
		switch f.Op {
		case OpEqual:
			if cmp != 0 {
				return false
			}
		case OpNotEqual:
			if cmp == 0 {
				return false
			}
		case OpLess:
			if cmp >= 0 {
				return false
			}
		case OpLessOrEq:
			if cmp > 0 {
				return false
			}
		case OpGreater:
			if cmp <= 0 {
				return false
			}
		case OpGreaterOrEq:
			if cmp < 0 {
				return false
			}
		default:
			return false
		}
	}
	return true
}

// Compare orders two document values. JSON round-tripping normalizes numbers
// to float64, so numeric comparisons work across int/float inputs; RFC 3339
// timestamps order correctly as strings.
func Compare(a, b any) (int, bool) {
	if af, ok := toFloat(a); ok {
		bf, ok := toFloat(b)
		if !ok {
			return 0, false
		}
		switch {
		case af < bf:
			return -1, true
		case af > bf:
			return 1, true
		}
		return 0, true
	}
	switch av := a.(type) {
	case string:
		bv, ok := b.(string)
		if !ok {
			return 0, false
		}
		switch {
		case av < bv:
			return -1, true
		case av > bv:
			return 1, true
		}
		return 0, true
	case bool:
		bv, ok := b.(bool)
		if !ok {
			return 0, false
		}
		if av == bv {
			return 0, true
		}
		if !av {
			return -1, true
		}
		return 1, true
	case time.Time:
		bv, ok := b.(time.Time)
		if !ok {
			return 0, false
		}
		switch {
		case av.Before(bv):
			return -1, true
		case av.After(bv):
			return 1, true
		}
		return 0, true
	case nil:
		if b == nil {
			return 0, true
		}
		return 0, false
	}
	return 0, false
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}

// SortDocuments orders docs in place by the OrderBy field of q; stable so
// equal keys keep store order.
func SortDocuments(docs []Document, q Query) {
	if q.OrderBy == "" {
		return
	}
	sort.SliceStable(docs, func(i, j int) bool {
		cmp, ok := Compare(docs[i].Data[q.OrderBy], docs[j].Data[q.OrderBy])
		if !ok {
			return false
		}
		if q.Descending {
			return cmp > 0
		}
		return cmp < 0
	})
}
