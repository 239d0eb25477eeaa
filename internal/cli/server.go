package cli

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/jonboulle/clockwork"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"quiz-duel-service/internal/app"
	"quiz-duel-service/internal/config"
	"quiz-duel-service/internal/infra/memory"
	pgstore "quiz-duel-service/internal/infra/postgres"
	redisbank "quiz-duel-service/internal/infra/redis"
	transport "quiz-duel-service/internal/transport/http"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the quiz duel server",
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
	applyLogLevel(cfg.Log.Level)

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

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
	}

	var pool *pgxpool.Pool
	if cfg.Postgres.URL != "" {
		pool, err = pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
		defer pool.Close()
	}

	var loader memory.QuestionLoader = memory.NewStaticQuestionLoader(memory.DefaultQuestions())
	if pool != nil {
		loader = pgstore.NewQuestionLoader(pool)
	}

	questionTTL := config.Duration(cfg.Questions.TTL, 10*time.Minute)
	var bank app.QuestionBank
	if redisClient != nil {
		bank = redisbank.NewQuestionBank(redisClient, loader, questionTTL)
	} else {
		bank = memory.NewQuestionBank(loader, questionTTL)
	}

	memRecorder := memory.NewRecorder()
	var recorder app.MatchRecorder = memRecorder
	var history transport.HistoryStore = memRecorder
	if pool != nil {
		pg := pgstore.NewRecorder(pool)
		recorder = pg
		history = pg
	}

	settings := app.DefaultSettings()
	if cfg.Game.TotalQuestions > 0 {
		settings.TotalQuestions = cfg.Game.TotalQuestions
	}
	settings.AnswerWindow = config.Duration(cfg.Game.AnswerWindow, settings.AnswerWindow)
	settings.ChallengeWindow = config.Duration(cfg.Game.ChallengeWindow, settings.ChallengeWindow)
	settings.StartDelay = config.Duration(cfg.Game.StartDelay, settings.StartDelay)
	settings.NextQuestionDelay = config.Duration(cfg.Game.NextQuestionDelay, settings.NextQuestionDelay)

	hub := transport.NewHub()
	service := app.NewGameService(app.NewRegistry(), bank, recorder, hub, clockwork.NewRealClock(), settings)
	wsHandler := transport.NewWSHandler(service, hub)
	statsHandler := transport.NewStatsHandler(history)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	mux.HandleFunc("/ws", wsHandler.ServeWS)
	mux.HandleFunc("/api/matches", statsHandler.Matches)
	mux.HandleFunc("/api/stats/visits", statsHandler.Visits)

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      transport.WithVisitRecording(recorder, mux),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.Info().Str("port", finalPort).Msg("starting quiz duel server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("server failed to start")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		log.Info().Msg("shutting down server")
	case <-ctx.Done():
		log.Info().Msg("context canceled, shutting down server")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
