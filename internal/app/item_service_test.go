package app_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"quizhub/internal/app"
	"quizhub/internal/docstore/memory"
	"quizhub/internal/domain"
	"quizhub/internal/identity"
)

var testClock = func() time.Time { return time.Date(2025, 8, 12, 10, 0, 0, 0, time.UTC) }

func newItemService(user *identity.User) (*app.ItemService, *memory.Store) {
	store := memory.NewStore()
	svc := app.NewItemServiceWithClock(store, identity.NewStatic(user), testClock)
	return svc, store
}

func editor() *identity.User {
	return &identity.User{ID: "u1", Email: "alice@example.com"}
}

func draft(title string) domain.QuizItem {
	item := domain.NewDraftTemplate()
	item.Title = title
	item.Question = "What color is the sky?"
	item.Options = []string{"Blue", "Green"}
	item.Explanation = "Rayleigh scattering favors blue."
	return item
}

func TestCreateDraftStartsAtVersionOne(t *testing.T) {
	ctx := context.Background()
	svc, _ := newItemService(editor())

	id, err := svc.CreateDraft(ctx, draft("Sky"))
	if err != nil {
		t.Fatalf("create draft: %v", err)
	}

	got, err := svc.Get(ctx, id)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Version != 1 || got.Status != domain.StatusDraft {
		t.Fatalf("expected version 1 draft, got v%d %s", got.Version, got.Status)
	}
	if got.OwnerID != "u1" {
		t.Fatalf("expected owner u1, got %q", got.OwnerID)
	}
}

func TestSaveDraftIncrementsVersionByOne(t *testing.T) {
	ctx := context.Background()
	svc, _ := newItemService(editor())

	id, err := svc.CreateDraft(ctx, draft("Sky"))
	if err != nil {
		t.Fatalf("create draft: %v", err)
	}

	for want := 2; want <= 4; want++ {
		item := draft("Sky edit")
		if _, err := svc.SaveDraft(ctx, id, item); err != nil {
			t.Fatalf("save draft: %v", err)
		}
		got, _ := svc.Get(ctx, id)
		if got.Version != want {
			t.Fatalf("expected version %d, got %d", want, got.Version)
		}
	}
}

func TestSaveDraftWithEmptyIDCreates(t *testing.T) {
	ctx := context.Background()
	svc, _ := newItemService(editor())

	id, err := svc.SaveDraft(ctx, "", draft("Fresh"))
	if err != nil {
		t.Fatalf("save draft: %v", err)
	}
	got, err := svc.Get(ctx, id)
	if err != nil || got.Version != 1 {
		t.Fatalf("expected new version-1 item, got %+v err %v", got, err)
	}
}

func TestSaveDraftConflictsOnConcurrentEdit(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	alice := app.NewItemServiceWithClock(store, identity.NewStatic(editor()), testClock)

	id, err := alice.CreateDraft(ctx, draft("Sky"))
	if err != nil {
		t.Fatalf("create draft: %v", err)
	}

	// Another writer bumps the stored version after our read of v1.
	if _, err := alice.SaveDraft(ctx, id, draft("first save")); err != nil {
		t.Fatalf("save: %v", err)
	}

	// The losing side of the race: a conditional write still expecting v1.
	err = store.UpdateIf(ctx, "quizItems", id, map[string]any{"version": 2}, "version", 1)
	if !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}

	// Winners are unaffected and the next save sees the surviving version.
	if _, err := alice.SaveDraft(ctx, id, draft("second save")); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, _ := alice.Get(ctx, id)
	if got.Version != 3 {
		t.Fatalf("expected version 3, got %d", got.Version)
	}
}

func TestSaveDraftRequiresOwnership(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	alice := app.NewItemServiceWithClock(store, identity.NewStatic(editor()), testClock)
	mallory := app.NewItemServiceWithClock(store, identity.NewStatic(&identity.User{ID: "u2", Email: "m@example.com"}), testClock)

	id, err := alice.CreateDraft(ctx, draft("Sky"))
	if err != nil {
		t.Fatalf("create draft: %v", err)
	}

	if _, err := mallory.SaveDraft(ctx, id, draft("hijack")); !errors.Is(err, domain.ErrPermission) {
		t.Fatalf("expected ErrPermission, got %v", err)
	}
	status := mallory.LastStatus()
	if status.Type != "error" || !status.Show {
		t.Fatalf("expected error status message, got %+v", status)
	}
}

func TestApprovedItemsStayOwnerOnly(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	alice := app.NewItemServiceWithClock(store, identity.NewStatic(editor()), testClock)
	bob := app.NewItemServiceWithClock(store, identity.NewStatic(&identity.User{ID: "u2", Email: "bob@example.com"}), testClock)

	id, _ := alice.CreateDraft(ctx, draft("Sky"))
	if err := alice.SubmitForReview(ctx, id); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if err := alice.AcceptItem(ctx, id); err != nil {
		t.Fatalf("accept: %v", err)
	}
	if err := alice.ApproveItem(ctx, id); err != nil {
		t.Fatalf("approve: %v", err)
	}

	if _, err := bob.SaveDraft(ctx, id, draft("takeover")); !errors.Is(err, domain.ErrPermission) {
		t.Fatalf("expected ErrPermission for non-owner save of approved item, got %v", err)
	}

	// Non-owners build on published content by forking.
	forkID, err := bob.ForkItem(ctx, id)
	if err != nil {
		t.Fatalf("fork: %v", err)
	}
	fork, _ := bob.Get(ctx, forkID)
	if fork.OwnerID != "u2" || fork.Version != 1 {
		t.Fatalf("expected bob-owned v1 fork, got %+v", fork)
	}
}

func TestAnonymousCannotEdit(t *testing.T) {
	ctx := context.Background()
	svc, _ := newItemService(&identity.User{ID: "anon", Anonymous: true})

	if _, err := svc.CreateDraft(ctx, draft("Sky")); !errors.Is(err, domain.ErrPermission) {
		t.Fatalf("expected ErrPermission for anonymous user, got %v", err)
	}

	svc, _ = newItemService(nil)
	if _, err := svc.CreateDraft(ctx, draft("Sky")); !errors.Is(err, domain.ErrPermission) {
		t.Fatalf("expected ErrPermission when signed out, got %v", err)
	}
}

func TestReviewFlowReachesPermanentCollection(t *testing.T) {
	ctx := context.Background()
	svc, store := newItemService(editor())

	id, err := svc.CreateDraft(ctx, draft("Sky"))
	if err != nil {
		t.Fatalf("create draft: %v", err)
	}
	if err := svc.SubmitForReview(ctx, id); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if err := svc.AcceptItem(ctx, id); err != nil {
		t.Fatalf("accept: %v", err)
	}
	if err := svc.ApproveItem(ctx, id); err != nil {
		t.Fatalf("approve: %v", err)
	}

	got, err := svc.Get(ctx, id)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != domain.StatusApproved {
		t.Fatalf("expected approved, got %s", got.Status)
	}

	perm, err := store.Get(ctx, "permanentQuizItems", id)
	if err != nil {
		t.Fatalf("expected permanent copy: %v", err)
	}
	if perm.Data["status"] != string(domain.StatusApproved) {
		t.Fatalf("permanent copy not approved: %v", perm.Data["status"])
	}
}

func TestAcceptRejectsNonPendingWithoutWrite(t *testing.T) {
	ctx := context.Background()
	svc, _ := newItemService(editor())

	id, err := svc.CreateDraft(ctx, draft("Sky"))
	if err != nil {
		t.Fatalf("create draft: %v", err)
	}
	if err := svc.AcceptItem(ctx, id); !errors.Is(err, domain.ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState accepting a draft, got %v", err)
	}
	got, _ := svc.Get(ctx, id)
	if got.Status != domain.StatusDraft {
		t.Fatalf("rejected accept must not change status, got %s", got.Status)
	}
}

func TestApproveRequiresAccepted(t *testing.T) {
	ctx := context.Background()
	svc, _ := newItemService(editor())

	id, _ := svc.CreateDraft(ctx, draft("Sky"))
	if err := svc.SubmitForReview(ctx, id); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if err := svc.ApproveItem(ctx, id); !errors.Is(err, domain.ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState approving a pending item, got %v", err)
	}
}

func TestApprovedItemsStayPublishedAfterLaterEdits(t *testing.T) {
	ctx := context.Background()
	svc, store := newItemService(editor())

	id, _ := svc.CreateDraft(ctx, draft("Sky"))
	_ = svc.SubmitForReview(ctx, id)
	_ = svc.AcceptItem(ctx, id)
	if err := svc.ApproveItem(ctx, id); err != nil {
		t.Fatalf("approve: %v", err)
	}

	if _, err := svc.SaveDraft(ctx, id, draft("Updated title")); err != nil {
		t.Fatalf("save after approve: %v", err)
	}

	perm, err := store.Get(ctx, "permanentQuizItems", id)
	if err != nil {
		t.Fatalf("permanent copy missing: %v", err)
	}
	if perm.Data["title"] != "Sky" {
		t.Fatalf("published copy changed after later edit: %v", perm.Data["title"])
	}
}

func TestForkResetsVersionAndRecordsProvenance(t *testing.T) {
	ctx := context.Background()
	svc, _ := newItemService(editor())

	id, _ := svc.CreateDraft(ctx, draft("Sky"))
	if _, err := svc.SaveDraft(ctx, id, draft("Sky v2")); err != nil {
		t.Fatalf("save: %v", err)
	}

	forkID, err := svc.ForkItem(ctx, id)
	if err != nil {
		t.Fatalf("fork: %v", err)
	}
	if forkID == id {
		t.Fatalf("fork must get a new id")
	}

	fork, err := svc.Get(ctx, forkID)
	if err != nil {
		t.Fatalf("get fork: %v", err)
	}
	if fork.Version != 1 || fork.Status != domain.StatusDraft {
		t.Fatalf("expected fresh v1 draft, got v%d %s", fork.Version, fork.Status)
	}
	if fork.ForkedFrom == nil || fork.ForkedFrom.ItemID != id || fork.ForkedFrom.Version != 2 {
		t.Fatalf("missing or wrong provenance: %+v", fork.ForkedFrom)
	}

	// The source is untouched.
	source, _ := svc.Get(ctx, id)
	if source.Version != 2 {
		t.Fatalf("fork must not touch the source, got v%d", source.Version)
	}
}

func TestForkResolvesLegacyNumericID(t *testing.T) {
	ctx := context.Background()
	svc, store := newItemService(editor())

	doc := map[string]any{"title": "Imported", "legacyId": 42, "status": "approved", "version": 5}
	if err := store.Set(ctx, "permanentQuizItems", "perm-42", doc, false); err != nil {
		t.Fatalf("seed: %v", err)
	}

	forkID, err := svc.ForkItem(ctx, "42")
	if err != nil {
		t.Fatalf("fork by legacy id: %v", err)
	}
	fork, _ := svc.Get(ctx, forkID)
	if fork.ForkedFrom == nil || !fork.ForkedFrom.Permanent {
		t.Fatalf("expected permanent provenance, got %+v", fork.ForkedFrom)
	}
	if fork.LegacyID != 0 {
		t.Fatalf("fork must not inherit the legacy id, got %d", fork.LegacyID)
	}
}

func TestRevisionsAlignWithItemVersion(t *testing.T) {
	ctx := context.Background()
	svc, _ := newItemService(editor())

	id, _ := svc.CreateDraft(ctx, draft("Sky"))
	if err := svc.SubmitForReview(ctx, id); err != nil {
		t.Fatalf("submit: %v", err)
	}

	before, _ := svc.Get(ctx, id)
	after := before
	after.Title = "Sky, revised"
	if err := svc.RecordEdit(ctx, &before, &after, "reviewer tweak"); err != nil {
		t.Fatalf("record edit: %v", err)
	}

	revs, err := svc.Revisions(ctx, id)
	if err != nil {
		t.Fatalf("revisions: %v", err)
	}
	if len(revs) != 2 {
		t.Fatalf("expected 2 revision records, got %d", len(revs))
	}
	for _, rev := range revs {
		if rev.Revision != 1 {
			t.Fatalf("revision number should match item version 1, got %d", rev.Revision)
		}
		if rev.ItemID != id {
			t.Fatalf("wrong item id on revision: %q", rev.ItemID)
		}
	}
	if revs[0].Message != "reviewer tweak" && revs[1].Message != "reviewer tweak" {
		t.Fatalf("missing edit message: %+v", revs)
	}
}

func TestRecordEditWithoutItemIDFailsValidation(t *testing.T) {
	ctx := context.Background()
	svc, _ := newItemService(editor())

	err := svc.RecordEdit(ctx, nil, &domain.QuizItem{}, "no id")
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

func TestListDraftsIncludesPendingAndDefaultsVersion(t *testing.T) {
	ctx := context.Background()
	svc, store := newItemService(editor())

	draftID, _ := svc.CreateDraft(ctx, draft("A"))
	pendingID, _ := svc.CreateDraft(ctx, draft("B"))
	if err := svc.SubmitForReview(ctx, pendingID); err != nil {
		t.Fatalf("submit: %v", err)
	}
	// A legacy document without a version field.
	if err := store.Set(ctx, "quizItems", "legacy", map[string]any{"title": "Old", "status": "draft"}, false); err != nil {
		t.Fatalf("seed: %v", err)
	}

	items, err := svc.ListDrafts(ctx)
	if err != nil {
		t.Fatalf("list drafts: %v", err)
	}
	if len(items) != 3 {
		t.Fatalf("expected 3 items, got %d", len(items))
	}
	seen := map[string]domain.QuizItem{}
	for _, item := range items {
		seen[item.ID] = item
	}
	if _, ok := seen[draftID]; !ok {
		t.Fatalf("draft missing from listing")
	}
	if seen[pendingID].Status != domain.StatusPending {
		t.Fatalf("pending item missing or wrong status")
	}
	if seen["legacy"].Version != 1 {
		t.Fatalf("legacy item should default to version 1, got %d", seen["legacy"].Version)
	}
}

func TestDeleteOnlyFromDraft(t *testing.T) {
	ctx := context.Background()
	svc, _ := newItemService(editor())

	id, _ := svc.CreateDraft(ctx, draft("Sky"))
	if err := svc.SubmitForReview(ctx, id); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if err := svc.Delete(ctx, id); !errors.Is(err, domain.ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState deleting a pending item, got %v", err)
	}

	other, _ := svc.CreateDraft(ctx, draft("Scratch"))
	if err := svc.Delete(ctx, other); err != nil {
		t.Fatalf("delete draft: %v", err)
	}
	got, _ := svc.Get(ctx, other)
	if got.Status != domain.StatusDeleted {
		t.Fatalf("expected deleted, got %s", got.Status)
	}
}

func TestGetUnknownItemReturnsNotFound(t *testing.T) {
	ctx := context.Background()
	svc, _ := newItemService(editor())

	if _, err := svc.Get(ctx, "nope"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestStatusMessageLifecycle(t *testing.T) {
	ctx := context.Background()
	svc, _ := newItemService(editor())

	if _, err := svc.CreateDraft(ctx, draft("Sky")); err != nil {
		t.Fatalf("create: %v", err)
	}
	status := svc.LastStatus()
	if status.Type != "success" || !status.Show {
		t.Fatalf("expected success status, got %+v", status)
	}

	svc.ClearStatus()
	if svc.LastStatus().Show {
		t.Fatalf("expected cleared status")
	}
}
