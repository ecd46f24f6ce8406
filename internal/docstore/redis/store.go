// Package redis backs the docstore port with Redis. Documents are stored as
// JSON strings under doc:{collection}:{id}; collection membership is tracked
// in a set under coll:{collection}.
package redis

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"quizhub/internal/docstore"
	"quizhub/internal/domain"
)

const defaultPollInterval = 500 * time.Millisecond

// Store implements docstore.Store on a Redis client. Change subscriptions
// poll their query at a fixed interval; Redis offers no per-query change
// feed, and the core only needs eventual delivery.
type Store struct {
	client *redis.Client
	poll   time.Duration
}

func NewStore(client *redis.Client, pollInterval time.Duration) *Store {
	if pollInterval <= 0 {
		pollInterval = defaultPollInterval
	}
	return &Store{client: client, poll: pollInterval}
}

func (s *Store) Get(ctx context.Context, collection, id string) (docstore.Document, error) {
	raw, err := s.client.Get(ctx, docKey(collection, id)).Bytes()
	if err == redis.Nil {
		return docstore.Document{}, domain.ErrNotFound
	}
	if err != nil {
		return docstore.Document{}, storeErr("get", collection, err)
	}
	data, err := unmarshalDoc(raw)
	if err != nil {
		return docstore.Document{}, err
	}
	return docstore.Document{ID: id, Data: data}, nil
}

func (s *Store) Set(ctx context.Context, collection, id string, data map[string]any, merge bool) error {
	if merge {
		existing, err := s.Get(ctx, collection, id)
		if err == nil {
			for k, v := range data {
				existing.Data[k] = v
			}
			data = existing.Data
		} else if !errors.Is(err, domain.ErrNotFound) {
			return err
		}
	}
	return s.write(ctx, collection, id, data)
}

func (s *Store) Add(ctx context.Context, collection string, data map[string]any) (string, error) {
	id := uuid.NewString()
	if err := s.write(ctx, collection, id, data); err != nil {
		return "", err
	}
	return id, nil
}

func (s *Store) Update(ctx context.Context, collection, id string, fields map[string]any) error {
	existing, err := s.Get(ctx, collection, id)
	if err != nil {
		return err
	}
	for k, v := range fields {
		existing.Data[k] = v
	}
	return s.write(ctx, collection, id, existing.Data)
}

// UpdateIf replaces the document only while the watched field is unchanged,
// using WATCH/MULTI so concurrent writers fail fast instead of blocking.
func (s *Store) UpdateIf(ctx context.Context, collection, id string, data map[string]any, field string, expect any) error {
	key := docKey(collection, id)
	err := s.client.Watch(ctx, func(tx *redis.Tx) error {
		raw, err := tx.Get(ctx, key).Bytes()
		if err == redis.Nil {
			return domain.ErrNotFound
		}
		if err != nil {
			return storeErr("watch", collection, err)
		}
		current, err := unmarshalDoc(raw)
		if err != nil {
			return err
		}
		cmp, comparable := docstore.Compare(current[field], expect)
		if !comparable || cmp != 0 {
			return domain.ErrConflict
		}
		payload, err := json.Marshal(data)
		if err != nil {
			return fmt.Errorf("marshal document: %w", err)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, payload, 0)
			pipe.SAdd(ctx, collKey(collection), id)
			return nil
		})
		return err
	}, key)
	if err == redis.TxFailedErr {
		return domain.ErrConflict
	}
	return err
}

func (s *Store) Query(ctx context.Context, q docstore.Query) ([]docstore.Document, error) {
	ids, err := s.client.SMembers(ctx, collKey(q.Collection)).Result()
	if err != nil {
		return nil, storeErr("query", q.Collection, err)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = docKey(q.Collection, id)
	}
	raws, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, storeErr("query", q.Collection, err)
	}

	docs := make([]docstore.Document, 0, len(ids))
	for i, raw := range raws {
		str, ok := raw.(string)
		if !ok {
			continue // membership set ahead of a deleted doc key
		}
		data, err := unmarshalDoc([]byte(str))
		if err != nil {
			return nil, err
		}
		if !docstore.Matches(data, q.Filters) {
			continue
		}
		docs = append(docs, docstore.Document{ID: ids[i], Data: data})
	}

	// SMembers order is unspecified; normalize before the stable sort.
	sort.Slice(docs, func(i, j int) bool { return docs[i].ID < docs[j].ID })
	docstore.SortDocuments(docs, q)
	if q.Limit > 0 && len(docs) > q.Limit {
		docs = docs[:q.Limit]
	}
	return docs, nil
}

func (s *Store) Subscribe(ctx context.Context, q docstore.Query) (*docstore.Subscription, error) {
	initial, err := s.Query(ctx, q)
	if err != nil {
		return nil, err
	}

	ch := make(chan []docstore.Document, 8)
	done := make(chan struct{})
	ch <- initial

	go func() {
		ticker := time.NewTicker(s.poll)
		defer ticker.Stop()
		last := fingerprint(initial)
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				docs, err := s.Query(ctx, q)
				if err != nil {
					continue // transient; next tick retries
				}
				fp := fingerprint(docs)
				if bytes.Equal(fp, last) {
					continue
				}
				last = fp
				select {
				case ch <- docs:
				case <-done:
					return
				}
			}
		}
	}()

	return docstore.NewSubscription(ch, func() {
		close(done)
	}), nil
}

func (s *Store) write(ctx context.Context, collection, id string, data map[string]any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal document: %w", err)
	}
	pipe := s.client.TxPipeline()
	pipe.Set(ctx, docKey(collection, id), payload, 0)
	pipe.SAdd(ctx, collKey(collection), id)
	if _, err := pipe.Exec(ctx); err != nil {
		return storeErr("set", collection, err)
	}
	return nil
}

func docKey(collection, id string) string {
	return "doc:" + collection + ":" + id
}

func collKey(collection string) string {
	return "coll:" + collection
}

func unmarshalDoc(raw []byte) (map[string]any, error) {
	var data map[string]any
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("unmarshal document: %w", err)
	}
	return data, nil
}

func storeErr(op, collection string, err error) error {
	return fmt.Errorf("%w: redis %s %s: %v", domain.ErrStore, op, collection, err)
}

func fingerprint(docs []docstore.Document) []byte {
	raw, _ := json.Marshal(docs)
	return raw
}
