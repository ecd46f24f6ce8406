package cli

import (
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"quizhub/internal/app"
	"quizhub/internal/config"
	"quizhub/internal/docstore"
	memstore "quizhub/internal/docstore/memory"
	redisstore "quizhub/internal/docstore/redis"
)

// NewRecomputeCmd rebuilds the leaderboard snapshot from the raw attempts.
func NewRecomputeCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "recompute-leaderboard",
		Short: "Rebuild the leaderboard from raw quiz attempts",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}

			var store docstore.Store
			if cfg.Redis.Addr != "" {
				client := redis.NewClient(&redis.Options{
					Addr:     cfg.Redis.Addr,
					Password: cfg.Redis.Password,
					DB:       cfg.Redis.DB,
				})
				store = redisstore.NewStore(client, 500*time.Millisecond)
			} else {
				store = memstore.NewStore()
			}

			sets := app.NewStaticQuizSets(sampleQuizSets())
			leaderboard := app.NewLeaderboardService(store, sets)
			snap := leaderboard.Recompute(cmd.Context())
			if err := leaderboard.Err(); err != nil {
				return err
			}

			for i, rec := range snap.Scores {
				fmt.Printf("%3d. %-24s %4d points across %d quizzes\n", i+1, rec.DisplayName, rec.TotalScore, rec.QuizCount)
			}
			fmt.Printf("%d entries, recomputed at %s\n", len(snap.Scores), snap.LastUpdated.Format(time.RFC3339))
			return nil
		},
	}
}
