package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v4/pgxpool"

	"quizhub/internal/domain"
)

// QuizSetLoader loads quiz-set JSONB from Postgres.
type QuizSetLoader struct {
	pool *pgxpool.Pool
}

func NewQuizSetLoader(pool *pgxpool.Pool) *QuizSetLoader {
	return &QuizSetLoader{pool: pool}
}

func (l *QuizSetLoader) QuizSets(ctx context.Context) ([]domain.QuizSet, error) {
	rows, err := l.pool.Query(ctx, `SELECT data FROM quiz_sets ORDER BY position`)
	if err != nil {
		return nil, fmt.Errorf("load quiz sets: %w", err)
	}
	defer rows.Close()

	var sets []domain.QuizSet
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scan quiz set: %w", err)
		}
		var set domain.QuizSet
		if err := json.Unmarshal(raw, &set); err != nil {
			return nil, fmt.Errorf("unmarshal quiz set: %w", err)
		}
		sets = append(sets, set)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load quiz sets: %w", err)
	}
	return sets, nil
}
