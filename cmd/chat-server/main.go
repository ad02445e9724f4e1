package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/careline/scheduling-agent/internal/api"
	"github.com/careline/scheduling-agent/internal/booking"
	"github.com/careline/scheduling-agent/internal/config"
	"github.com/careline/scheduling-agent/internal/conversation"
	"github.com/careline/scheduling-agent/internal/db"
	"github.com/careline/scheduling-agent/internal/notify"
	"github.com/careline/scheduling-agent/internal/observability/metrics"
	redisclient "github.com/careline/scheduling-agent/internal/redis"
	"github.com/careline/scheduling-agent/internal/report"
	"github.com/careline/scheduling-agent/pkg/logging"
)

const version = "1.0.0"

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Default().Error("config load error", "error", err)
		os.Exit(1)
	}

	logger := logging.New(cfg.LogLevel)
	logger.Info("chat-server starting up", "env", cfg.Env, "http_port", cfg.HTTPPort)

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pgCtx, cancelPg := context.WithTimeout(rootCtx, 10*time.Second)
	pgPool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN)
	cancelPg()
	if err != nil {
		logger.Error("postgres connection error", "error", err)
		os.Exit(1)
	}
	defer pgPool.Close()
	logger.Info("connected to Postgres")

	rdb, err := redisclient.NewRedisClient(rootCtx, cfg.RedisAddr, cfg.RedisUsername, cfg.RedisPassword)
	if err != nil {
		logger.Error("redis connection error", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := rdb.Close(); err != nil {
			logger.Error("error closing redis", "error", err)
		}
	}()
	logger.Info("connected to Redis")

	repo := booking.NewPgRepository(pgPool)
	locker := redisclient.NewRedisScheduleLocker(rdb, cfg.LockTTL)
	booker := booking.NewService(repo, repo, locker, logger)
	resolver := booking.NewResolver(repo)

	exporter, err := report.NewCSVExporter(cfg.ExportDir)
	if err != nil {
		logger.Error("export dir error", "error", err)
		os.Exit(1)
	}
	notifier := notify.NewService(
		notify.NewStubEmailSender(logger),
		notify.NewStubSMSSender(logger),
		logger,
	)

	engine := conversation.NewEngine(conversation.EngineConfig{
		Sessions:   conversation.NewRedisStore(rdb, cfg.SessionTTL),
		Patients:   repo,
		Providers:  repo,
		Resolver:   resolver,
		Booker:     booker,
		Notifier:   notifier,
		Exporter:   exporter,
		Metrics:    metrics.NewBookingMetrics(nil),
		Logger:     logger,
		WindowDays: cfg.BookingWindow,
		PageSize:   cfg.CandidatePage,
	})

	router := api.NewRouter(api.RouterConfig{
		Engine:    engine,
		Providers: repo,
		Schedule:  repo,
		PgPool:    pgPool,
		Redis:     rdb,
		Logger:    logger,
		Env:       cfg.Env,
		Version:   version,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-rootCtx.Done():
		logger.Info("shutdown signal received")
	case err := <-errCh:
		logger.Error("http server error", "error", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown error", "error", err)
	}

	logger.Info("chat-server stopped")
}
