package app

import (
	"strconv"
	"sync"

	"quizhub/internal/domain"
)

// SnapshotHub fans leaderboard snapshots out to live subscribers. Handles are
// keyed so owning scopes can tear down exactly their own subscription;
// Cleanup with no keys drops everything and is safe on an empty registry.
type SnapshotHub struct {
	mu   sync.Mutex
	seq  int
	subs map[string]chan domain.LeaderboardSnapshot
}

func NewSnapshotHub() *SnapshotHub {
	return &SnapshotHub{subs: make(map[string]chan domain.LeaderboardSnapshot)}
}

// Subscribe registers a new listener and returns its key and channel.
func (h *SnapshotHub) Subscribe() (string, <-chan domain.LeaderboardSnapshot) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.seq++
	key := "sub-" + strconv.Itoa(h.seq)
	ch := make(chan domain.LeaderboardSnapshot, 8)
	h.subs[key] = ch
	return key, ch
}

// Broadcast delivers a snapshot to every subscriber without blocking on slow
// consumers: a full buffer loses its oldest pending update.
func (h *SnapshotHub) Broadcast(snapshot domain.LeaderboardSnapshot) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, ch := range h.subs {
		select {
		case ch <- snapshot:
		default:
			select {
			case <-ch:
			default:
			}
			ch <- snapshot
		}
	}
}

// Cleanup closes and removes the named subscriptions, or all of them when no
// keys are given. Unknown keys and repeat calls are no-ops.
func (h *SnapshotHub) Cleanup(keys ...string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(keys) == 0 {
		for key, ch := range h.subs {
			close(ch)
			delete(h.subs, key)
		}
		return
	}
	for _, key := range keys {
		if ch, ok := h.subs[key]; ok {
			close(ch)
			delete(h.subs, key)
		}
	}
}

// Len reports the number of live subscriptions.
func (h *SnapshotHub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}
