package app_test

import (
	"testing"

	"quizhub/internal/app"
	"quizhub/internal/domain"
)

func TestHubBroadcastReachesAllSubscribers(t *testing.T) {
	hub := app.NewSnapshotHub()
	k1, ch1 := hub.Subscribe()
	k2, ch2 := hub.Subscribe()
	if k1 == k2 {
		t.Fatalf("expected distinct keys")
	}

	hub.Broadcast(domain.LeaderboardSnapshot{TotalAvailableQuestions: 7})
	for _, ch := range []<-chan domain.LeaderboardSnapshot{ch1, ch2} {
		snap := <-ch
		if snap.TotalAvailableQuestions != 7 {
			t.Fatalf("unexpected snapshot: %+v", snap)
		}
	}
}

func TestHubBroadcastDropsOldestWhenFull(t *testing.T) {
	hub := app.NewSnapshotHub()
	_, ch := hub.Subscribe()

	// Overfill the buffer; Broadcast must never block.
	for i := 0; i < 20; i++ {
		hub.Broadcast(domain.LeaderboardSnapshot{TotalAvailableQuestions: i})
	}

	var last domain.LeaderboardSnapshot
	for {
		select {
		case snap := <-ch:
			last = snap
			continue
		default:
		}
		break
	}
	if last.TotalAvailableQuestions != 19 {
		t.Fatalf("expected newest update to survive, got %d", last.TotalAvailableQuestions)
	}
}

func TestHubCleanupIsIdempotent(t *testing.T) {
	hub := app.NewSnapshotHub()
	k1, ch1 := hub.Subscribe()
	hub.Subscribe()

	hub.Cleanup(k1)
	hub.Cleanup(k1)        // repeat
	hub.Cleanup("unknown") // never registered
	if _, open := <-ch1; open {
		t.Fatalf("expected closed channel after cleanup")
	}
	if hub.Len() != 1 {
		t.Fatalf("expected one remaining subscription, got %d", hub.Len())
	}

	hub.Cleanup()
	hub.Cleanup()
	if hub.Len() != 0 {
		t.Fatalf("expected empty hub, got %d", hub.Len())
	}
}
