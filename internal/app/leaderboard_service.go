package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"strings"
	"sync"
	"time"

	"quizhub/internal/docstore"
	"quizhub/internal/domain"
)

// scoreDoc is the per-user aggregate persisted to the userScores collection.
// CountedQuizzes holds one score per quiz so that retakes replace the old
// result instead of stacking onto the total.
type scoreDoc struct {
	UserID         string         `json:"userId"`
	DisplayName    string         `json:"displayName"`
	Username       string         `json:"username,omitempty"`
	Email          string         `json:"email,omitempty"`
	TotalScore     int            `json:"totalScore"`
	QuizCount      int            `json:"quizCount"`
	CountedQuizzes map[string]int `json:"countedQuizzes"`
	LastUpdated    time.Time      `json:"lastUpdated"`
}

// LeaderboardService maintains the singleton top-scores snapshot. Writes are
// best effort: a failed persist is logged and remembered, never surfaced to
// the quiz flow that triggered it.
type LeaderboardService struct {
	store docstore.Store
	sets  QuizSetSource
	clock func() time.Time
	hub   *SnapshotHub

	mu      sync.Mutex
	lastErr error
}

func NewLeaderboardService(store docstore.Store, sets QuizSetSource) *LeaderboardService {
	return NewLeaderboardServiceWithClock(store, sets, time.Now)
}

func NewLeaderboardServiceWithClock(store docstore.Store, sets QuizSetSource, now func() time.Time) *LeaderboardService {
	return &LeaderboardService{
		store: store,
		sets:  sets,
		clock: now,
		hub:   NewSnapshotHub(),
	}
}

// DisplayName picks a public label for a user: explicit username first, then
// a plausible email local part, then an anonymized id prefix.
func DisplayName(username, email, userID string) string {
	if username != "" {
		return username
	}
	if email != "" && strings.Contains(email, "@") &&
		!strings.EqualFold(email, "Anonymous") && !strings.Contains(email, "undefined") {
		return strings.SplitN(email, "@", 2)[0]
	}
	short := userID
	if len(short) > 6 {
		short = short[:6]
	}
	return "Anon_" + short + "..."
}

// Recompute rebuilds the snapshot from every raw attempt on record. Attempts
// are grouped by (user, quiz) keeping only the latest completion per pair, so
// the result is independent of how often a quiz was retaken and of the order
// attempts arrived in. The stored snapshot is fully overwritten.
func (s *LeaderboardService) Recompute(ctx context.Context) domain.LeaderboardSnapshot {
	docs, err := s.store.Query(ctx, docstore.Query{Collection: colAttempts})
	if err != nil {
		s.recordErr(fmt.Errorf("load attempts: %w", err))
		return domain.LeaderboardSnapshot{}
	}

	type latest struct {
		score       int
		completedAt time.Time
	}
	users := map[string]*scoreDoc{}
	counted := map[string]map[string]latest{}
	for _, doc := range docs {
		var at domain.RawAttempt
		if err := docstore.Decode(doc.Data, &at); err != nil || at.UserID == "" || at.QuizID == "" {
			continue
		}
		perQuiz := counted[at.UserID]
		if perQuiz == nil {
			perQuiz = map[string]latest{}
			counted[at.UserID] = perQuiz
		}
		prev, seen := perQuiz[at.QuizID]
		if !seen || at.CompletedAt.After(prev.completedAt) {
			perQuiz[at.QuizID] = latest{score: at.TotalCorrect, completedAt: at.CompletedAt}
		}
		u := users[at.UserID]
		if u == nil {
			u = &scoreDoc{UserID: at.UserID, CountedQuizzes: map[string]int{}}
			users[at.UserID] = u
		}
		if at.Email != "" {
			u.Email = at.Email
		}
		if at.CompletedAt.After(u.LastUpdated) {
			u.LastUpdated = at.CompletedAt
		}
	}

	for uid, perQuiz := range counted {
		u := users[uid]
		u.TotalScore = 0
		for quizID, l := range perQuiz {
			u.CountedQuizzes[quizID] = l.score
			u.TotalScore += l.score
		}
		u.QuizCount = len(u.CountedQuizzes)
	}

	records := make([]domain.ScoreRecord, 0, len(users))
	for _, u := range users {
		if u.TotalScore <= 0 {
			continue
		}
		s.resolveProfile(ctx, u)
		records = append(records, u.record())
		if doc, err := docstore.Encode(u); err == nil {
			if err := s.store.Set(ctx, colScores, u.UserID, doc, false); err != nil {
				s.recordErr(fmt.Errorf("persist score for %s: %w", u.UserID, err))
			}
		}
	}
	sortScores(records)

	snap := domain.LeaderboardSnapshot{
		Scores:      records,
		LastUpdated: s.clock(),
	}
	if sets, err := s.sets.QuizSets(ctx); err == nil {
		_, items := PublishedTotals(sets)
		snap.TotalAvailableQuestions = items
	}
	s.persist(ctx, snap)
	return snap
}

// ApplyAttempt folds one finished quiz into the snapshot without a full
// recompute. A retake of the same quiz replaces the previously counted score
// for that quiz, matching what a recompute over the raw attempts would yield.
func (s *LeaderboardService) ApplyAttempt(ctx context.Context, userID, quizID string, score int, email string) {
	if userID == "" || quizID == "" {
		return
	}

	u := &scoreDoc{UserID: userID, CountedQuizzes: map[string]int{}}
	if doc, err := s.store.Get(ctx, colScores, userID); err == nil {
		if err := docstore.Decode(doc.Data, u); err != nil {
			u = &scoreDoc{UserID: userID, CountedQuizzes: map[string]int{}}
		}
		if u.CountedQuizzes == nil {
			u.CountedQuizzes = map[string]int{}
		}
	} else if !errors.Is(err, domain.ErrNotFound) {
		s.recordErr(fmt.Errorf("load score for %s: %w", userID, err))
		return
	}

	if email != "" {
		u.Email = email
	}
	u.CountedQuizzes[quizID] = score
	u.TotalScore = 0
	for _, sc := range u.CountedQuizzes {
		u.TotalScore += sc
	}
	u.QuizCount = len(u.CountedQuizzes)
	u.LastUpdated = s.clock()
	s.resolveProfile(ctx, u)

	if doc, err := docstore.Encode(u); err == nil {
		if err := s.store.Set(ctx, colScores, userID, doc, false); err != nil {
			s.recordErr(fmt.Errorf("persist score for %s: %w", userID, err))
			return
		}
	}

	snap, err := s.loadSnapshot(ctx)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		s.recordErr(err)
		return
	}

	// Zero totals are filtered like a full recompute would, so a retake that
	// erases a user's score also removes their row.
	kept := snap.Scores[:0]
	for _, rec := range snap.Scores {
		if rec.UserID != userID {
			kept = append(kept, rec)
		}
	}
	snap.Scores = kept
	if u.TotalScore > 0 {
		snap.Scores = append(snap.Scores, u.record())
	}
	sortScores(snap.Scores)
	snap.LastUpdated = u.LastUpdated
	s.persist(ctx, snap)
}

// TopN returns the highest-ranked entries from the stored snapshot. It never
// writes; store failures are recorded and degrade to an empty result.
func (s *LeaderboardService) TopN(ctx context.Context, n int) ([]domain.ScoreRecord, error) {
	snap, err := s.loadSnapshot(ctx)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, nil
		}
		s.recordErr(err)
		return nil, nil
	}
	if n > 0 && len(snap.Scores) > n {
		snap.Scores = snap.Scores[:n]
	}
	s.refreshNames(ctx, snap.Scores)
	return snap.Scores, nil
}

// Snapshot returns the full stored snapshot. Display names are re-resolved
// against the profile collection so a username registered after the last
// write shows up without waiting for the next score change.
func (s *LeaderboardService) Snapshot(ctx context.Context) (domain.LeaderboardSnapshot, error) {
	snap, err := s.loadSnapshot(ctx)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.LeaderboardSnapshot{}, nil
		}
		return domain.LeaderboardSnapshot{}, err
	}
	s.refreshNames(ctx, snap.Scores)
	return snap, nil
}

func (s *LeaderboardService) refreshNames(ctx context.Context, records []domain.ScoreRecord) {
	for i := range records {
		u := &scoreDoc{
			UserID:   records[i].UserID,
			Username: records[i].Username,
			Email:    records[i].Email,
		}
		s.resolveProfile(ctx, u)
		records[i].Username = u.Username
		records[i].Email = u.Email
		records[i].DisplayName = u.DisplayName
	}
}

// Subscribe registers a listener for snapshot updates. The returned key must
// be released with Cleanup.
func (s *LeaderboardService) Subscribe() (string, <-chan domain.LeaderboardSnapshot) {
	return s.hub.Subscribe()
}

// Cleanup releases listener registrations. With no keys it releases all of
// them. Unknown and already-released keys are ignored.
func (s *LeaderboardService) Cleanup(keys ...string) {
	s.hub.Cleanup(keys...)
}

// Err reports the most recent background write failure, if any.
func (s *LeaderboardService) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

func (s *LeaderboardService) loadSnapshot(ctx context.Context) (domain.LeaderboardSnapshot, error) {
	doc, err := s.store.Get(ctx, colLeaderboard, leaderboardDocID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.LeaderboardSnapshot{}, domain.ErrNotFound
		}
		return domain.LeaderboardSnapshot{}, fmt.Errorf("load leaderboard: %w", err)
	}
	var snap domain.LeaderboardSnapshot
	if err := docstore.Decode(doc.Data, &snap); err != nil {
		return domain.LeaderboardSnapshot{}, err
	}
	return snap, nil
}

func (s *LeaderboardService) persist(ctx context.Context, snap domain.LeaderboardSnapshot) {
	doc, err := docstore.Encode(snap)
	if err != nil {
		s.recordErr(err)
		return
	}
	if err := s.store.Set(ctx, colLeaderboard, leaderboardDocID, doc, false); err != nil {
		s.recordErr(fmt.Errorf("persist leaderboard: %w", err))
		return
	}
	s.hub.Broadcast(snap)
}

func (s *LeaderboardService) resolveProfile(ctx context.Context, u *scoreDoc) {
	if doc, err := s.store.Get(ctx, colProfiles, u.UserID); err == nil {
		var p domain.Profile
		if docstore.Decode(doc.Data, &p) == nil {
			if p.Username != "" {
				u.Username = p.Username
			}
			if p.Email != "" {
				u.Email = p.Email
			}
		}
	}
	u.DisplayName = DisplayName(u.Username, u.Email, u.UserID)
}

func (s *LeaderboardService) recordErr(err error) {
	log.Printf("leaderboard: %v", err)
	s.mu.Lock()
	s.lastErr = err
	s.mu.Unlock()
}

func (u *scoreDoc) record() domain.ScoreRecord {
	return domain.ScoreRecord{
		UserID:      u.UserID,
		DisplayName: u.DisplayName,
		Username:    u.Username,
		Email:       u.Email,
		TotalScore:  u.TotalScore,
		QuizCount:   u.QuizCount,
		LastUpdated: u.LastUpdated,
	}
}

// sortScores orders records by total score descending; ties go to whoever
// reached the total first, then to the lexically smaller user id so the
// ordering is deterministic.
func sortScores(records []domain.ScoreRecord) {
	sort.SliceStable(records, func(i, j int) bool {
		a, b := records[i], records[j]
		if a.TotalScore != b.TotalScore {
			return a.TotalScore > b.TotalScore
		}
		if !a.LastUpdated.Equal(b.LastUpdated) {
			return a.LastUpdated.Before(b.LastUpdated)
		}
		return a.UserID < b.UserID
	})
}
