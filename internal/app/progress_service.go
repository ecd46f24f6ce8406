package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"sync"
	"time"

	"quizhub/internal/docstore"
	"quizhub/internal/domain"
	"quizhub/internal/identity"
)

// ProgressService tracks one user's quiz progress: completed quizzes and
// correctly answered items. Writes are best effort; a quiz session never
// fails because progress could not be persisted. Without a signed-in user
// every recording call is a silent no-op.
type ProgressService struct {
	store       docstore.Store
	ids         identity.Provider
	sets        QuizSetSource
	leaderboard *LeaderboardService
	clock       func() time.Time

	mu          sync.Mutex
	completed   []string
	correct     []string
	totalItems  int
	initialized bool
	lastErr     error
}

func NewProgressService(store docstore.Store, ids identity.Provider, sets QuizSetSource, leaderboard *LeaderboardService) *ProgressService {
	return NewProgressServiceWithClock(store, ids, sets, leaderboard, time.Now)
}

func NewProgressServiceWithClock(store docstore.Store, ids identity.Provider, sets QuizSetSource, leaderboard *LeaderboardService, now func() time.Time) *ProgressService {
	return &ProgressService{
		store:       store,
		ids:         ids,
		sets:        sets,
		leaderboard: leaderboard,
		clock:       now,
	}
}

// InitializeTotals counts the published question pool. Percentages stay at 0
// until this has run once.
func (s *ProgressService) InitializeTotals(ctx context.Context) error {
	sets, err := s.sets.QuizSets(ctx)
	if err != nil {
		return fmt.Errorf("initialize totals: %w", err)
	}
	_, items := PublishedTotals(sets)

	s.mu.Lock()
	s.totalItems = items
	s.initialized = true
	s.mu.Unlock()
	return nil
}

// RecordAnswer marks an item as answered correctly. Wrong answers are not
// tracked. Recording the same item twice leaves the state unchanged.
func (s *ProgressService) RecordAnswer(ctx context.Context, itemID string, correct bool) {
	user := s.ids.CurrentUser()
	if user == nil {
		log.Printf("progress: no signed-in user, skipping answer for %s", itemID)
		return
	}
	if !correct || itemID == "" {
		return
	}

	s.mu.Lock()
	if containsString(s.correct, itemID) {
		s.mu.Unlock()
		return
	}
	s.correct = append(s.correct, itemID)
	s.mu.Unlock()

	s.save(ctx, user.ID)
}

// RecordQuizComplete marks a quiz as finished, idempotently.
func (s *ProgressService) RecordQuizComplete(ctx context.Context, quizID string) {
	user := s.ids.CurrentUser()
	if user == nil {
		log.Printf("progress: no signed-in user, skipping completion of %s", quizID)
		return
	}
	if quizID == "" {
		return
	}

	s.mu.Lock()
	if containsString(s.completed, quizID) {
		s.mu.Unlock()
		return
	}
	s.completed = append(s.completed, quizID)
	s.mu.Unlock()

	s.save(ctx, user.ID)
}

// RecordAttempt files a raw attempt record, marks the quiz complete, and
// feeds the score into the leaderboard.
func (s *ProgressService) RecordAttempt(ctx context.Context, quizID string, totalCorrect, totalQuestions int) {
	user := s.ids.CurrentUser()
	if user == nil {
		log.Printf("progress: no signed-in user, skipping attempt for %s", quizID)
		return
	}
	if quizID == "" {
		return
	}

	at := domain.RawAttempt{
		UserID:         user.ID,
		Email:          user.Email,
		QuizID:         quizID,
		TotalCorrect:   totalCorrect,
		TotalQuestions: totalQuestions,
		CompletedAt:    s.clock(),
	}
	if doc, err := docstore.Encode(at); err == nil {
		if _, err := s.store.Add(ctx, colAttempts, doc); err != nil {
			s.recordErr(fmt.Errorf("record attempt for %s: %w", quizID, err))
		}
	}

	s.RecordQuizComplete(ctx, quizID)
	if s.leaderboard != nil {
		s.leaderboard.ApplyAttempt(ctx, user.ID, quizID, totalCorrect, user.Email)
	}
}

// ProgressPercentage is the share of the published question pool answered
// correctly, rounded to the nearest whole percent.
func (s *ProgressService) ProgressPercentage() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.initialized || s.totalItems == 0 {
		return 0
	}
	return int(math.Round(100 * float64(len(s.correct)) / float64(s.totalItems)))
}

// Fetch loads the stored progress for the current user into memory and
// returns it. Missing documents yield empty progress, not an error.
func (s *ProgressService) Fetch(ctx context.Context) (domain.Progress, error) {
	user := s.ids.CurrentUser()
	if user == nil {
		return domain.Progress{}, fmt.Errorf("%w: not signed in", domain.ErrPermission)
	}

	doc, err := s.store.Get(ctx, colProgress, user.ID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.Progress{UserID: user.ID}, nil
		}
		return domain.Progress{}, fmt.Errorf("load progress for %s: %w", user.ID, err)
	}
	var p domain.Progress
	if err := docstore.Decode(doc.Data, &p); err != nil {
		return domain.Progress{}, err
	}
	p.UserID = user.ID

	s.mu.Lock()
	s.completed = append([]string(nil), p.CompletedQuizzes...)
	s.correct = append([]string(nil), p.CorrectQuizItems...)
	s.mu.Unlock()
	return p, nil
}

// Err reports the most recent background write failure, if any.
func (s *ProgressService) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

func (s *ProgressService) save(ctx context.Context, userID string) {
	s.mu.Lock()
	p := domain.Progress{
		CompletedQuizzes: append([]string(nil), s.completed...),
		CorrectQuizItems: append([]string(nil), s.correct...),
		LastUpdated:      s.clock(),
	}
	s.mu.Unlock()

	doc, err := docstore.Encode(p)
	if err != nil {
		s.recordErr(err)
		return
	}
	// Merge keeps fields written by other clients of the same document.
	if err := s.store.Set(ctx, colProgress, userID, doc, true); err != nil {
		s.recordErr(fmt.Errorf("persist progress for %s: %w", userID, err))
	}
}

func (s *ProgressService) recordErr(err error) {
	log.Printf("progress: %v", err)
	s.mu.Lock()
	s.lastErr = err
	s.mu.Unlock()
}

func containsString(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
