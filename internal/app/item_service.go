package app

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"quizhub/internal/docstore"
	"quizhub/internal/domain"
	"quizhub/internal/identity"
)

// ItemService manages the lifecycle and edit history of quiz items: draft
// authoring, the review state machine, forking, and the publication copy into
// the permanent collection.
type ItemService struct {
	store docstore.Store
	ids   identity.Provider
	clock func() time.Time

	mu     sync.Mutex
	status domain.StatusMessage
}

func NewItemService(store docstore.Store, ids identity.Provider) *ItemService {
	return NewItemServiceWithClock(store, ids, time.Now)
}

// NewItemServiceWithClock allows deterministic timestamps in tests.
func NewItemServiceWithClock(store docstore.Store, ids identity.Provider, now func() time.Time) *ItemService {
	return &ItemService{store: store, ids: ids, clock: now}
}

// CreateDraft persists new content as a version-1 draft owned by the caller.
func (s *ItemService) CreateDraft(ctx context.Context, item domain.QuizItem) (string, error) {
	user, err := s.requireEditor()
	if err != nil {
		return "", s.fail(err)
	}

	now := s.clock()
	item.ID = ""
	item.Status = domain.StatusDraft
	item.Version = 1
	item.OwnerID = user.ID
	item.OwnerEmail = user.Email
	item.CreatedAt = now
	item.UpdatedAt = now

	doc, err := docstore.Encode(item)
	if err != nil {
		return "", s.fail(err)
	}
	id, err := s.store.Add(ctx, colItems, doc)
	if err != nil {
		return "", s.fail(fmt.Errorf("create draft: %w", err))
	}
	s.succeed("Draft saved successfully!")
	return id, nil
}

// SaveDraft replaces an existing item, bumping its version by exactly 1 and
// preserving its status. An empty id falls through to CreateDraft. The
// version bump is guarded by a conditional update: a concurrent save of the
// same item fails with ErrConflict instead of silently losing an edit, and
// no save ever waits on another.
func (s *ItemService) SaveDraft(ctx context.Context, id string, item domain.QuizItem) (string, error) {
	if id == "" {
		return s.CreateDraft(ctx, item)
	}

	user, err := s.requireEditor()
	if err != nil {
		return "", s.fail(err)
	}
	stored, err := s.load(ctx, colItems, id)
	if err != nil {
		return "", s.fail(err)
	}
	// Owner-only regardless of status; other editors fork instead.
	if stored.OwnerID != "" && stored.OwnerID != user.ID {
		return "", s.fail(fmt.Errorf("%w: %s does not own item %s", domain.ErrPermission, user.ID, id))
	}

	item.ID = id
	item.Status = stored.Status
	item.Version = stored.Version + 1
	item.OwnerID = stored.OwnerID
	item.OwnerEmail = stored.OwnerEmail
	item.ForkedFrom = stored.ForkedFrom
	item.CreatedAt = stored.CreatedAt
	item.UpdatedAt = s.clock()

	doc, err := docstore.Encode(item)
	if err != nil {
		return "", s.fail(err)
	}
	if err := s.store.UpdateIf(ctx, colItems, id, doc, "version", stored.Version); err != nil {
		if errors.Is(err, domain.ErrConflict) {
			err = fmt.Errorf("%w: item %s was saved by another editor", domain.ErrConflict, id)
		}
		return "", s.fail(err)
	}
	s.succeed("Draft updated successfully!")
	return id, nil
}

// SubmitForReview moves an item into the pending queue and records the
// transition in the edit history.
func (s *ItemService) SubmitForReview(ctx context.Context, id string) error {
	user, err := s.requireEditor()
	if err != nil {
		return s.fail(err)
	}
	stored, err := s.load(ctx, colItems, id)
	if err != nil {
		return s.fail(err)
	}
	if stored.OwnerID != "" && stored.OwnerID != user.ID {
		return s.fail(fmt.Errorf("%w: %s does not own item %s", domain.ErrPermission, user.ID, id))
	}
	if !stored.Status.CanTransitionTo(domain.StatusPending) {
		return s.fail(fmt.Errorf("%w: cannot submit %s item %s", domain.ErrInvalidState, stored.Status, id))
	}

	now := s.clock()
	fields := map[string]any{
		"status":      string(domain.StatusPending),
		"submittedAt": now.Format(time.RFC3339Nano),
		"updatedAt":   now.Format(time.RFC3339Nano),
	}
	if err := s.store.Update(ctx, colItems, id, fields); err != nil {
		return s.fail(fmt.Errorf("submit item %s: %w", id, err))
	}

	submitted := stored
	submitted.Status = domain.StatusPending
	if err := s.appendRevision(ctx, &stored, &submitted, "submitted for review"); err != nil {
		return s.fail(err)
	}
	s.succeed("Successfully submitted for review!")
	return nil
}

// AcceptItem advances a pending item to accepted. Any other current status is
// rejected without a write.
func (s *ItemService) AcceptItem(ctx context.Context, id string) error {
	if _, err := s.requireEditor(); err != nil {
		return s.fail(err)
	}
	stored, err := s.load(ctx, colItems, id)
	if err != nil {
		return s.fail(err)
	}
	if stored.Status != domain.StatusPending {
		return s.fail(fmt.Errorf("%w: item %s is %s, not pending", domain.ErrInvalidState, id, stored.Status))
	}

	now := s.clock()
	fields := map[string]any{
		"status":    string(domain.StatusAccepted),
		"updatedAt": now.Format(time.RFC3339Nano),
	}
	if err := s.store.Update(ctx, colItems, id, fields); err != nil {
		return s.fail(fmt.Errorf("accept item %s: %w", id, err))
	}
	s.succeed("Item accepted.")
	return nil
}

// ApproveItem advances an accepted item to approved and copies it into the
// permanent collection. The copy is a one-way publication: later draft edits
// never change it.
func (s *ItemService) ApproveItem(ctx context.Context, id string) error {
	if _, err := s.requireEditor(); err != nil {
		return s.fail(err)
	}
	stored, err := s.load(ctx, colItems, id)
	if err != nil {
		return s.fail(err)
	}
	if stored.Status != domain.StatusAccepted {
		return s.fail(fmt.Errorf("%w: item %s is %s, not accepted", domain.ErrInvalidState, id, stored.Status))
	}

	now := s.clock()
	approved := stored
	approved.Status = domain.StatusApproved
	approved.ApprovedAt = now
	approved.UpdatedAt = now

	permDoc, err := docstore.Encode(approved)
	if err != nil {
		return s.fail(err)
	}
	if err := s.store.Set(ctx, colPermanent, id, permDoc, false); err != nil {
		return s.fail(fmt.Errorf("publish item %s: %w", id, err))
	}

	fields := map[string]any{
		"status":     string(domain.StatusApproved),
		"approvedAt": now.Format(time.RFC3339Nano),
		"updatedAt":  now.Format(time.RFC3339Nano),
	}
	if err := s.store.Update(ctx, colItems, id, fields); err != nil {
		return s.fail(fmt.Errorf("approve item %s: %w", id, err))
	}

	if err := s.appendRevision(ctx, &stored, &approved, "approved and copied to permanent collection"); err != nil {
		return s.fail(err)
	}
	s.succeed("Item approved and published.")
	return nil
}

// ForkItem creates a fresh draft copied from another item, resetting the
// version to 1 and recording provenance. The source may live in the working
// or the permanent collection, or be legacy static content addressed by a
// numeric id.
func (s *ItemService) ForkItem(ctx context.Context, sourceID string) (string, error) {
	user, err := s.requireEditor()
	if err != nil {
		return "", s.fail(err)
	}
	source, permanent, err := s.resolve(ctx, sourceID)
	if err != nil {
		return "", s.fail(err)
	}

	now := s.clock()
	fork := source
	fork.ID = ""
	fork.LegacyID = 0
	fork.Status = domain.StatusDraft
	fork.Version = 1
	fork.OwnerID = user.ID
	fork.OwnerEmail = user.Email
	fork.ForkedFrom = &domain.ForkRef{
		ItemID:    source.ID,
		Version:   source.Version,
		Title:     source.Title,
		Permanent: permanent,
	}
	fork.CreatedAt = now
	fork.UpdatedAt = now
	fork.SubmittedAt = time.Time{}
	fork.ApprovedAt = time.Time{}

	doc, err := docstore.Encode(fork)
	if err != nil {
		return "", s.fail(err)
	}
	id, err := s.store.Add(ctx, colItems, doc)
	if err != nil {
		return "", s.fail(fmt.Errorf("fork item %s: %w", sourceID, err))
	}
	s.succeed("Fork created as a new draft.")
	return id, nil
}

// RecordEdit appends a revision record with sanitized before/after snapshots.
// The revision number is the item's current stored version, not a separate
// counter; concurrent editors of one item can therefore stamp duplicate
// numbers, which the history readers tolerate.
func (s *ItemService) RecordEdit(ctx context.Context, before, after *domain.QuizItem, message string) error {
	if after == nil && before == nil {
		return fmt.Errorf("%w: no item id for history", domain.ErrValidation)
	}
	return s.appendRevision(ctx, before, after, message)
}

func (s *ItemService) appendRevision(ctx context.Context, before, after *domain.QuizItem, message string) error {
	itemID := ""
	if after != nil && after.ID != "" {
		itemID = after.ID
	} else if before != nil && before.ID != "" {
		itemID = before.ID
	}
	if itemID == "" {
		return fmt.Errorf("%w: no item id for history", domain.ErrValidation)
	}

	revision := 1
	status := domain.StatusDraft
	if after != nil {
		revision = after.Version
		status = after.Status
	}
	if current, err := s.load(ctx, colItems, itemID); err == nil {
		revision = current.Version
		status = current.Status
	}

	user := s.ids.CurrentUser()
	rec := domain.RevisionRecord{
		ItemID:    itemID,
		Timestamp: s.clock(),
		Revision:  revision,
		Message:   message,
		Status:    status,
	}
	if user != nil {
		rec.AuthorID = user.ID
		rec.AuthorEmail = user.Email
	}
	if before != nil {
		snap, err := docstore.Encode(before)
		if err != nil {
			return err
		}
		rec.Before = snap
	}
	if after != nil {
		snap, err := docstore.Encode(after)
		if err != nil {
			return err
		}
		rec.After = snap
	}

	doc, err := docstore.Encode(rec)
	if err != nil {
		return err
	}
	if _, err := s.store.Add(ctx, colRevisions, doc); err != nil {
		return fmt.Errorf("record edit for %s: %w", itemID, err)
	}
	return nil
}

// Revisions returns the edit history for an item, newest first.
func (s *ItemService) Revisions(ctx context.Context, itemID string) ([]domain.RevisionRecord, error) {
	docs, err := s.store.Query(ctx, docstore.Query{
		Collection: colRevisions,
		Filters:    []docstore.Filter{{Field: "quizItemId", Op: docstore.OpEqual, Value: itemID}},
		OrderBy:    "revisionNumber",
		Descending: true,
	})
	if err != nil {
		return nil, fmt.Errorf("load revisions for %s: %w", itemID, err)
	}
	out := make([]domain.RevisionRecord, 0, len(docs))
	for _, doc := range docs {
		var rec domain.RevisionRecord
		if err := docstore.Decode(doc.Data, &rec); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

// Get resolves an item by id across the working and permanent collections,
// with a numeric fallback for legacy static content.
func (s *ItemService) Get(ctx context.Context, id string) (domain.QuizItem, error) {
	item, _, err := s.resolve(ctx, id)
	return item, err
}

// ListDrafts returns every draft and pending item, defaulting the version to
// 1 on legacy documents that predate version stamping.
func (s *ItemService) ListDrafts(ctx context.Context) ([]domain.QuizItem, error) {
	var out []domain.QuizItem
	for _, status := range []domain.Status{domain.StatusDraft, domain.StatusPending} {
		docs, err := s.store.Query(ctx, docstore.Query{
			Collection: colItems,
			Filters:    []docstore.Filter{{Field: "status", Op: docstore.OpEqual, Value: string(status)}},
		})
		if err != nil {
			return nil, fmt.Errorf("list %s items: %w", status, err)
		}
		for _, doc := range docs {
			item, err := decodeItem(doc)
			if err != nil {
				return nil, err
			}
			out = append(out, item)
		}
	}
	return out, nil
}

// Delete soft-deletes a draft the caller owns.
func (s *ItemService) Delete(ctx context.Context, id string) error {
	user, err := s.requireEditor()
	if err != nil {
		return s.fail(err)
	}
	stored, err := s.load(ctx, colItems, id)
	if err != nil {
		return s.fail(err)
	}
	if stored.OwnerID != "" && stored.OwnerID != user.ID {
		return s.fail(fmt.Errorf("%w: %s does not own item %s", domain.ErrPermission, user.ID, id))
	}
	if !stored.Status.CanTransitionTo(domain.StatusDeleted) {
		return s.fail(fmt.Errorf("%w: cannot delete %s item %s", domain.ErrInvalidState, stored.Status, id))
	}

	fields := map[string]any{
		"status":    string(domain.StatusDeleted),
		"updatedAt": s.clock().Format(time.RFC3339Nano),
	}
	if err := s.store.Update(ctx, colItems, id, fields); err != nil {
		return s.fail(fmt.Errorf("delete item %s: %w", id, err))
	}
	s.succeed("Draft deleted.")
	return nil
}

// LastStatus returns the user-visible outcome of the most recent operation.
func (s *ItemService) LastStatus() domain.StatusMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// ClearStatus resets the status message.
func (s *ItemService) ClearStatus() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status = domain.StatusMessage{}
}

func (s *ItemService) requireEditor() (*identity.User, error) {
	user := s.ids.CurrentUser()
	if user == nil {
		return nil, fmt.Errorf("%w: not signed in", domain.ErrPermission)
	}
	if user.Anonymous {
		return nil, fmt.Errorf("%w: anonymous users cannot edit", domain.ErrPermission)
	}
	return user, nil
}

func (s *ItemService) load(ctx context.Context, collection, id string) (domain.QuizItem, error) {
	doc, err := s.store.Get(ctx, collection, id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.QuizItem{}, fmt.Errorf("%w: quiz item %s", domain.ErrNotFound, id)
		}
		return domain.QuizItem{}, fmt.Errorf("load quiz item %s: %w", id, err)
	}
	return decodeItem(doc)
}

func (s *ItemService) resolve(ctx context.Context, id string) (domain.QuizItem, bool, error) {
	if item, err := s.load(ctx, colItems, id); err == nil {
		return item, false, nil
	} else if !errors.Is(err, domain.ErrNotFound) {
		return domain.QuizItem{}, false, err
	}

	if doc, err := s.store.Get(ctx, colPermanent, id); err == nil {
		item, err := decodeItem(doc)
		return item, true, err
	} else if !errors.Is(err, domain.ErrNotFound) {
		return domain.QuizItem{}, false, fmt.Errorf("load quiz item %s: %w", id, err)
	}

	// Legacy static content was keyed by integers before store-assigned ids.
	if n, convErr := strconv.Atoi(id); convErr == nil {
		for _, coll := range []string{colItems, colPermanent} {
			docs, err := s.store.Query(ctx, docstore.Query{
				Collection: coll,
				Filters:    []docstore.Filter{{Field: "legacyId", Op: docstore.OpEqual, Value: n}},
				Limit:      1,
			})
			if err != nil {
				return domain.QuizItem{}, false, fmt.Errorf("load quiz item %s: %w", id, err)
			}
			if len(docs) > 0 {
				item, err := decodeItem(docs[0])
				return item, coll == colPermanent, err
			}
		}
	}

	return domain.QuizItem{}, false, fmt.Errorf("%w: quiz item %s", domain.ErrNotFound, id)
}

func (s *ItemService) succeed(message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status = domain.StatusMessage{Message: message, Type: "success", Show: true}
}

func (s *ItemService) fail(err error) error {
	s.mu.Lock()
	s.status = domain.StatusMessage{Message: err.Error(), Type: "error", Show: true}
	s.mu.Unlock()
	return err
}

func decodeItem(doc docstore.Document) (domain.QuizItem, error) {
	var item domain.QuizItem
	if err := docstore.Decode(doc.Data, &item); err != nil {
		return domain.QuizItem{}, err
	}
	item.ID = doc.ID
	if item.Version == 0 {
		item.Version = 1
	}
	return item, nil
}
