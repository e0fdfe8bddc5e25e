package app

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/gokatarajesh/livequiz/internal/auth"
	"github.com/gokatarajesh/livequiz/internal/auth/jwt"
	"github.com/gokatarajesh/livequiz/internal/config"
	"github.com/gokatarajesh/livequiz/internal/db/repository"
	"github.com/gokatarajesh/livequiz/internal/events"
	"github.com/gokatarajesh/livequiz/internal/game"
	"github.com/gokatarajesh/livequiz/internal/game/scoring"
	"github.com/gokatarajesh/livequiz/internal/gateway"
	"github.com/gokatarajesh/livequiz/internal/leaderboard"
	"github.com/gokatarajesh/livequiz/internal/logging"
	"github.com/gokatarajesh/livequiz/internal/metrics"
	"github.com/gokatarajesh/livequiz/internal/question"
	"github.com/gokatarajesh/livequiz/internal/registry"
	"github.com/gokatarajesh/livequiz/internal/server"
	ws "github.com/gokatarajesh/livequiz/pkg/http/ws"
)

// Application aggregates shared infrastructure (DB, cache, broker, HTTP server) and the game runtime.
type Application struct {
	cfg    *config.App
	logger zerolog.Logger

	pool      *pgxpool.Pool
	redis     *redis.Client
	publisher *events.JetStreamPublisher
	http      *http.Server

	hub      *ws.Hub
	sessions *game.Manager
	recorder *leaderboard.Recorder

	bgCancel context.CancelFunc
	bgWG     sync.WaitGroup
}

// New bootstraps logger, Postgres, Redis, NATS, the game manager and the HTTP server.
func New(ctx context.Context, cfg *config.App) (*Application, error) {
	logger := logging.New(cfg.Name, cfg.Env, cfg.LogLevel)
	logger.Info().Msg("starting application bootstrap")

	pool, err := pgxpool.New(ctx, cfg.Postgres.DSN())
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		DB:       cfg.Redis.DB,
		PoolSize: cfg.Redis.PoolSize,
	})

	var publisher *events.JetStreamPublisher
	var eventSink game.EventPublisher = events.Noop{}
	if cfg.NATS.URL != "" {
		publisher, err = events.NewJetStreamPublisher(ctx, events.JetStreamConfig{
			URL:           cfg.NATS.URL,
			StreamName:    cfg.NATS.StreamName,
			SubjectPrefix: cfg.NATS.SubjectPrefix,
			MaxAge:        cfg.NATS.MaxAge,
		}, logger)
		if err != nil {
			pool.Close()
			_ = redisClient.Close()
			return nil, fmt.Errorf("connect nats: %w", err)
		}
		eventSink = publisher
	} else {
		logger.Warn().Msg("NATS_URL not set; game events are not published")
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	collector := metrics.New(reg)

	tokens := jwt.NewManager(jwt.TokenConfig{
		HostSecret:   []byte(cfg.Security.JWTSecret),
		PlayerSecret: []byte(cfg.Security.PlayerTokenSecret),
		HostTTL:      cfg.Security.HostTokenTTL,
		PlayerTTL:    cfg.Security.PlayerTokenTTL,
		Issuer:       cfg.Security.Issuer,
	})

	store := repository.NewPgStore(pool)
	quizzes := repository.NewQuizRepository(store)
	results := repository.NewResultRepository(store)
	content := question.NewService(quizzes, question.NewCache(redisClient, cfg.Redis.KeyPrefix, cfg.Game.QuizCacheTTL), logger)

	sessionRegistry := registry.NewStore(redisClient, logger, registry.Options{
		PinLength: cfg.Game.PinLength,
		TTL:       cfg.Game.SessionTTL,
		KeyPrefix: cfg.Redis.KeyPrefix,
	})

	hallOfFame := leaderboard.NewService(redisClient, logger, leaderboard.ServiceOptions{
		TopN:   cfg.Leaderboard.TopN,
		Retain: cfg.Leaderboard.Retain,
	})
	recorder := leaderboard.NewRecorder(results, hallOfFame, cfg.Leaderboard.RecorderBuffer, logger)

	hub := ws.NewHub(logger)
	sessions := game.NewManager(content, game.Deps{
		Broadcaster: hub,
		Registry:    sessionRegistry,
		Hosts:       tokens,
		Tokens:      tokens,
		Scorer:      scoring.NewEngine(scoring.DefaultScoringConfig()),
		Results:     recorder,
		Events:      eventSink,
		Metrics:     collector,
		Clock:       clockwork.NewRealClock(),
		Logger:      logger,
	}, game.SessionOptions{
		Retention: cfg.Game.FinishedRetention,
	})

	gatewayHandler := gateway.NewHandler(gateway.ManagerOpener(sessions), hub, gateway.Options{
		JoinTimeout:    cfg.Game.JoinTimeout,
		CommandTimeout: cfg.Game.CommandTimeout,
		AllowedOrigins: cfg.CORS.AllowedOrigins,
		Metrics:        collector,
		Connection: ws.ConnectionConfig{
			WriteWait:  cfg.Game.WriteWait,
			PongWait:   cfg.Game.PongWait,
			PingPeriod: cfg.Game.PingPeriod,
			SendBuffer: cfg.Game.SendBuffer,
		},
	}, logger)

	sessionHandlers := game.NewHTTPHandlers(sessionRegistry, quizzes, logger)
	lbHandler := leaderboard.NewHTTPHandler(hallOfFame, results, logger)

	apiServer := server.NewHTTPServer(cfg, logger, reg, server.Handlers{
		CreateSession: sessionHandlers.CreateSession,
		Leaderboard:   lbHandler.HandleTop,
		GameSocket:    gatewayHandler.HandleWebSocket,
		HostAuth:      auth.RequireHost(tokens, logger),
	}, map[string]server.Check{
		"postgres": pool.Ping,
		"redis":    func(ctx context.Context) error { return redisClient.Ping(ctx).Err() },
	})

	return &Application{
		cfg:       cfg,
		logger:    logger,
		pool:      pool,
		redis:     redisClient,
		publisher: publisher,
		http:      apiServer,
		hub:       hub,
		sessions:  sessions,
		recorder:  recorder,
	}, nil
}

// Run starts the HTTP server and waits for termination signals.
func (a *Application) Run(ctx context.Context) error {
	errCh := make(chan error, 1)

	a.startBackgroundWorkers(ctx)

	go func() {
		a.logger.Info().Str("addr", a.cfg.HTTPAddr).Msg("http server listening")
		if err := a.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	var runErr error
	select {
	case sig := <-sigCh:
		a.logger.Info().Str("signal", sig.String()).Msg("shutdown signal received")
	case err := <-errCh:
		runErr = fmt.Errorf("http server error: %w", err)
	case <-ctx.Done():
		a.logger.Warn().Msg("context canceled")
	}

	a.shutdown()
	return runErr
}

func (a *Application) startBackgroundWorkers(ctx context.Context) {
	bgCtx, cancel := context.WithCancel(ctx)
	a.bgCancel = cancel

	a.bgWG.Add(1)
	go func() {
		defer a.bgWG.Done()
		if err := a.recorder.Run(bgCtx); err != nil && err != context.Canceled {
			a.logger.Warn().Err(err).Msg("results recorder stopped")
		}
	}()
}

// shutdown stops intake first, then live sessions, then the workers that drain their output.
func (a *Application) shutdown() {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.GracefulShutdownTimeout)
	defer cancel()

	if err := a.http.Shutdown(shutdownCtx); err != nil {
		a.logger.Error().Err(err).Msg("http shutdown error")
	}

	if err := a.sessions.Shutdown(shutdownCtx); err != nil {
		a.logger.Error().Err(err).Msg("session shutdown incomplete")
	}
	a.hub.CloseAll()

	if a.bgCancel != nil {
		a.bgCancel()
	}
	a.bgWG.Wait()

	if a.publisher != nil {
		if err := a.publisher.Close(shutdownCtx); err != nil {
			a.logger.Error().Err(err).Msg("nats drain error")
		}
	}

	a.pool.Close()
	if err := a.redis.Close(); err != nil {
		a.logger.Error().Err(err).Msg("redis shutdown error")
	}

	a.logger.Info().Msg("shutdown complete")
}
