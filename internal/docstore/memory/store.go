// Package memory is an in-memory docstore.Store used for tests, demos, and
// running without external services.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"quizhub/internal/docstore"
	"quizhub/internal/domain"
)

// Store keeps collections as maps of deep-copied documents. Change
// subscriptions are notified synchronously after each write to the watched
// collection.
type Store struct {
	mu          sync.RWMutex
	collections map[string]map[string]map[string]any
	watchers    map[*watcher]struct{}
}

type watcher struct {
	query docstore.Query
	ch    chan []docstore.Document
}

func NewStore() *Store {
	return &Store{
		collections: make(map[string]map[string]map[string]any),
		watchers:    make(map[*watcher]struct{}),
	}
}

func (s *Store) Get(_ context.Context, collection, id string) (docstore.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.collections[collection][id]
	if !ok {
		return docstore.Document{}, domain.ErrNotFound
	}
	return docstore.Document{ID: id, Data: clone(data)}, nil
}

func (s *Store) Set(_ context.Context, collection, id string, data map[string]any, merge bool) error {
	s.mu.Lock()
	coll := s.collection(collection)
	if merge {
		existing, ok := coll[id]
		if !ok {
			existing = make(map[string]any)
			coll[id] = existing
		}
		for k, v := range clone(data) {
			existing[k] = v
		}
	} else {
		coll[id] = clone(data)
	}
	s.mu.Unlock()

	s.notify(collection)
	return nil
}

func (s *Store) Add(_ context.Context, collection string, data map[string]any) (string, error) {
	id := uuid.NewString()
	s.mu.Lock()
	s.collection(collection)[id] = clone(data)
	s.mu.Unlock()

	s.notify(collection)
	return id, nil
}

func (s *Store) Update(_ context.Context, collection, id string, fields map[string]any) error {
	s.mu.Lock()
	existing, ok := s.collections[collection][id]
	if !ok {
		s.mu.Unlock()
		return domain.ErrNotFound
	}
	for k, v := range clone(fields) {
		existing[k] = v
	}
	s.mu.Unlock()

	s.notify(collection)
	return nil
}

func (s *Store) UpdateIf(_ context.Context, collection, id string, data map[string]any, field string, expect any) error {
	s.mu.Lock()
	existing, ok := s.collections[collection][id]
	if !ok {
		s.mu.Unlock()
		return domain.ErrNotFound
	}
	cmp, comparable := docstore.Compare(existing[field], expect)
	if !comparable || cmp != 0 {
		s.mu.Unlock()
		return domain.ErrConflict
	}
	s.collections[collection][id] = clone(data)
	s.mu.Unlock()

	s.notify(collection)
	return nil
}

func (s *Store) Query(_ context.Context, q docstore.Query) ([]docstore.Document, error) {
	s.mu.RLock()
	docs := s.queryLocked(q)
	s.mu.RUnlock()
	return docs, nil
}

func (s *Store) Subscribe(_ context.Context, q docstore.Query) (*docstore.Subscription, error) {
	w := &watcher{query: q, ch: make(chan []docstore.Document, 8)}

	// Registration and the initial delivery happen under the same lock, so no
	// write can slip in between and reorder ahead of the initial snapshot.
	s.mu.Lock()
	s.watchers[w] = struct{}{}
	w.ch <- s.queryLocked(q)
	s.mu.Unlock()

	sub := docstore.NewSubscription(w.ch, func() {
		s.mu.Lock()
		if _, ok := s.watchers[w]; ok {
			delete(s.watchers, w)
			close(w.ch)
		}
		s.mu.Unlock()
	})
	return sub, nil
}

func (s *Store) collection(name string) map[string]map[string]any {
	coll, ok := s.collections[name]
	if !ok {
		coll = make(map[string]map[string]any)
		s.collections[name] = coll
	}
	return coll
}

func (s *Store) queryLocked(q docstore.Query) []docstore.Document {
	// Iterate ids in insertion-agnostic but deterministic order so stable
	// sorts and limits behave the same across runs.
	coll := s.collections[q.Collection]
	ids := make([]string, 0, len(coll))
	for id := range coll {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	docs := make([]docstore.Document, 0, len(ids))
	for _, id := range ids {
		data := coll[id]
		if !docstore.Matches(data, q.Filters) {
			continue
		}
		docs = append(docs, docstore.Document{ID: id, Data: clone(data)})
	}
	docstore.SortDocuments(docs, q)
	if q.Limit > 0 && len(docs) > q.Limit {
		docs = docs[:q.Limit]
	}
	return docs
}

// notify holds the write lock across delivery so a concurrent Close cannot
// shut a channel mid-send. The drop-oldest send frees a buffer slot first, so
// delivery never blocks while the lock is held.
func (s *Store) notify(collection string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for w := range s.watchers {
		if w.query.Collection != collection {
			continue
		}
		docs := s.queryLocked(w.query)
		select {
		case w.ch <- docs:
		default:
			select {
			case <-w.ch:
			default:
			}
			w.ch <- docs
		}
	}
}

func clone(data map[string]any) map[string]any {
	out := make(map[string]any, len(data))
	for k, v := range data {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		return clone(val)
	case []any:
		out := make([]any, len(val))
		for i, e := range val {
			out[i] = cloneValue(e)
		}
		return out
	default:
		return val
	}
}
