package cli

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"quizhub/internal/app"
	"quizhub/internal/config"
	"quizhub/internal/docstore"
	memstore "quizhub/internal/docstore/memory"
	redisstore "quizhub/internal/docstore/redis"
	"quizhub/internal/domain"
	"quizhub/internal/identity"
	pgloader "quizhub/internal/infra/postgres"
	transport "quizhub/internal/transport/http"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the quiz hub server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	if cfg.Postgres.URL != "" {
		if err := runMigrationsWithConfig(ctx, cfg); err != nil {
			return err
		}
	}

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
	}

	var store docstore.Store
	if cfg.Redis.Addr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		poll := config.TTLDuration(cfg.Redis.Poll, 500*time.Millisecond)
		store = redisstore.NewStore(client, poll)
	} else {
		store = memstore.NewStore()
	}

	var pool *pgxpool.Pool
	if cfg.Postgres.URL != "" {
		pool, err = pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
		defer pool.Close()
	}

	var source app.QuizSetSource = app.NewStaticQuizSets(sampleQuizSets())
	if pool != nil {
		source = pgloader.NewQuizSetLoader(pool)
	}
	setsTTL := config.TTLDuration(cfg.QuizSets.TTL, 10*time.Minute)
	sets := app.NewCachedQuizSets(source, setsTTL)

	leaderboard := app.NewLeaderboardService(store, sets)
	progressFor := func(user *identity.User) *app.ProgressService {
		svc := app.NewProgressService(store, identity.NewStatic(user), sets, leaderboard)
		if err := svc.InitializeTotals(ctx); err != nil {
			log.Printf("initialize progress totals: %v", err)
		}
		return svc
	}
	wsHandler := transport.NewWSHandler(leaderboard, progressFor)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	mux.HandleFunc("/ws", wsHandler.ServeWS)

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.Printf("starting quiz hub on :%s", finalPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("failed to start server: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		log.Println("shutting down server...")
	case <-ctx.Done():
		log.Println("context canceled, shutting down server...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// sampleQuizSets provides a minimal catalog; swap the source with the
// Postgres-backed loader in production.
func sampleQuizSets() []domain.QuizSet {
	return []domain.QuizSet{
		{
			Name:      "getting-started",
			BasicMode: true,
			Items:     []string{"1", "2", "3"},
		},
		{
			Name:       "work-in-progress",
			InProgress: true,
			Items:      []string{"4"},
		},
	}
}
