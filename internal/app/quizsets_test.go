package app_test

import (
	"context"
	"testing"
	"time"

	"quizhub/internal/app"
	"quizhub/internal/domain"
)

type countingSource struct {
	app.QuizSetSource
	calls int
}

func (s *countingSource) QuizSets(ctx context.Context) ([]domain.QuizSet, error) {
	s.calls++
	return s.QuizSetSource.QuizSets(ctx)
}

func TestCachedQuizSetsCaches(t *testing.T) {
	ctx := context.Background()
	source := &countingSource{QuizSetSource: app.NewStaticQuizSets([]domain.QuizSet{
		{Name: "basics", Items: []string{"1", "2"}},
	})}
	cached := app.NewCachedQuizSets(source, time.Minute)

	if _, err := cached.QuizSets(ctx); err != nil {
		t.Fatalf("quiz sets: %v", err)
	}
	if source.calls != 1 {
		t.Fatalf("expected source hit once, got %d", source.calls)
	}

	if _, err := cached.QuizSets(ctx); err != nil {
		t.Fatalf("quiz sets 2: %v", err)
	}
	if source.calls != 1 {
		t.Fatalf("expected cache hit, source calls %d", source.calls)
	}
}

func TestPublishedTotalsSkipInProgress(t *testing.T) {
	sets := []domain.QuizSet{
		{Name: "a", Items: []string{"1", "2"}},
		{Name: "b", Items: []string{"3"}},
		{Name: "wip", InProgress: true, Items: []string{"4", "5"}},
	}
	quizzes, items := app.PublishedTotals(sets)
	if quizzes != 2 || items != 3 {
		t.Fatalf("expected 2 quizzes and 3 items, got %d and %d", quizzes, items)
	}
}
