package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/careline/scheduling-agent/internal/booking"
	"github.com/careline/scheduling-agent/pkg/logging"
)

type RouterConfig struct {
	Engine    TurnProcessor
	Providers booking.ProviderDirectory
	Schedule  booking.ScheduleRepository
	PgPool    *pgxpool.Pool
	Redis     *redis.Client
	Logger    *logging.Logger
	Env       string
	Version   string
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(cfg.Logger))

	health := NewHealthHandler(cfg.PgPool, cfg.Redis, cfg.Env, cfg.Version)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)
	r.Handle("/metrics", promhttp.Handler())

	r.Post("/sessions/{id}/messages", postTurnHandler(cfg.Engine))
	r.Get("/providers", listProvidersHandler(cfg.Providers))
	r.Get("/appointments/{id}", getAppointmentHandler(cfg.Schedule))

	return r
}
