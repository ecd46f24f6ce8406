package app

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"quizhub/internal/domain"
)

// QuizSetSource supplies the read-only quiz-set reference data.
type QuizSetSource interface {
	QuizSets(ctx context.Context) ([]domain.QuizSet, error)
}

// StaticQuizSets serves a fixed slice (tests, demos, running without postgres).
type StaticQuizSets struct {
	sets []domain.QuizSet
}

func NewStaticQuizSets(sets []domain.QuizSet) *StaticQuizSets {
	return &StaticQuizSets{sets: sets}
}

func (s *StaticQuizSets) QuizSets(_ context.Context) ([]domain.QuizSet, error) {
	return s.sets, nil
}

// CachedQuizSets caches another source with a TTL to avoid hitting the
// backing store on every totals computation.
type CachedQuizSets struct {
	source QuizSetSource
	ttl    time.Duration
	clock  func() time.Time
	sf     singleflight.Group
	rnd    *rand.Rand

	mu        sync.RWMutex
	sets      []domain.QuizSet
	expiresAt time.Time
}

func NewCachedQuizSets(source QuizSetSource, ttl time.Duration) *CachedQuizSets {
	return &CachedQuizSets{
		source: source,
		ttl:    ttl,
		clock:  time.Now,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (c *CachedQuizSets) QuizSets(ctx context.Context) ([]domain.QuizSet, error) {
	now := c.clock()

	c.mu.RLock()
	if c.sets != nil && c.expiresAt.After(now) {
		sets := c.sets
		c.mu.RUnlock()
		return sets, nil
	}
	c.mu.RUnlock()

	result, err, _ := c.sf.Do("quiz-sets", func() (interface{}, error) {
		now := c.clock()
		c.mu.RLock()
		if c.sets != nil && c.expiresAt.After(now) {
			sets := c.sets
			c.mu.RUnlock()
			return sets, nil
		}
		c.mu.RUnlock()

		sets, err := c.source.QuizSets(ctx)
		if err != nil {
			return nil, err
		}

		c.mu.Lock()
		c.sets = sets
		c.expiresAt = now.Add(c.ttlWithJitter())
		c.mu.Unlock()
		return sets, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]domain.QuizSet), nil
}

func (c *CachedQuizSets) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	// add up to 10% jitter to spread expirations
	jitterMax := int64(c.ttl) / 10
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}

// PublishedTotals counts quizzes and quiz items across the sets that count
// toward published totals (inProgress sets are excluded).
func PublishedTotals(sets []domain.QuizSet) (quizzes, items int) {
	for _, set := range sets {
		if set.InProgress {
			continue
		}
		quizzes++
		items += len(set.Items)
	}
	return quizzes, items
}
