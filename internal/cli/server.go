package cli

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"live-quiz-service/internal/app"
	"live-quiz-service/internal/config"
	"live-quiz-service/internal/infra/memory"
	"live-quiz-service/internal/infra/postgres"
	redisinfra "live-quiz-service/internal/infra/redis"
	"live-quiz-service/internal/logging"
	"live-quiz-service/internal/metrics"
	transport "live-quiz-service/internal/transport/http"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the quiz server",
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
	logger, err := logging.New(cfg.Log.Level, cfg.Log.Encoding)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Postgres.URL != "" {
		if err := runMigrationsWithConfig(ctx, cfg, logger); err != nil {
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

	hub := memory.NewBroadcaster(0)
	var publisher app.Publisher = hub

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer redisClient.Close()

		relay := redisinfra.NewRelay(redisClient, hub, logger)
		if err := relay.Start(ctx); err != nil {
			return err
		}
		defer relay.Close()
		publisher = redisinfra.NewPublisher(redisClient)
		logger.Infow("redis event fan-out enabled", "addr", cfg.Redis.Addr)
	}

	var rooms app.RoomRepository = memory.NewRoomRepository()
	var players app.PlayerRepository = memory.NewPlayerRepository()
	if cfg.Postgres.URL != "" {
		pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
		defer pool.Close()

		rooms = postgres.NewRoomRepository(pool)
		players = postgres.NewPlayerRepository(pool)
		if redisClient != nil {
			rooms = redisinfra.NewCodeCache(redisClient, rooms, config.TTLDuration(cfg.Redis.TTL, 10*time.Minute))
		}
		rooms = memory.NewCodeCache(rooms, config.TTLDuration(cfg.Quiz.CodeCacheTTL, 10*time.Minute))
		logger.Infow("using postgres store")
	}

	m := metrics.New()
	service := app.NewQuizService(rooms, players, publisher,
		app.WithLogger(logger),
		app.WithRecorder(m),
		app.WithSettings(app.Settings{
			PointsPerCorrect:       cfg.Quiz.PointsPerCorrect,
			BroadcastCorrectAnswer: cfg.Quiz.BroadcastCorrectAnswer,
		}),
	)
	router := transport.NewRouter(transport.NewHandler(service, hub, logger), transport.RouterConfig{
		Logger:     logger,
		Metrics:    m.Handler(),
		Middleware: []func(http.Handler) http.Handler{m.Middleware},
	})

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Infow("starting quiz service", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			logger.Errorw("server failed", "error", err)
			return err
		}
	case <-ctx.Done():
		logger.Infow("shutting down server")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

var (
	_ redisinfra.Sink      = (*memory.Broadcaster)(nil)
	_ transport.Subscriber = (*memory.Broadcaster)(nil)
)
