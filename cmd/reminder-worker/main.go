package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/careline/scheduling-agent/internal/booking"
	"github.com/careline/scheduling-agent/internal/config"
	"github.com/careline/scheduling-agent/internal/db"
	"github.com/careline/scheduling-agent/internal/notify"
	"github.com/careline/scheduling-agent/pkg/logging"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Default().Error("config load error", "error", err)
		os.Exit(1)
	}

	logger := logging.New(cfg.LogLevel)
	logger.Info("reminder-worker starting up",
		"env", cfg.Env, "interval", cfg.ReminderEvery.String(), "lead", cfg.ReminderLead.String())

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

	repo := booking.NewPgRepository(pgPool)
	svc := booking.NewService(repo, repo, nil, logger)
	notifier := notify.NewService(
		notify.NewStubEmailSender(logger),
		notify.NewStubSMSSender(logger),
		logger,
	)

	// Run once at startup
	runOnce(rootCtx, svc, notifier, cfg.ReminderLead, logger)

	ticker := time.NewTicker(cfg.ReminderEvery)
	defer ticker.Stop()

	for {
		select {
		case <-rootCtx.Done():
			logger.Info("shutdown signal received, stopping reminder worker")
			return
		case <-ticker.C:
			runOnce(rootCtx, svc, notifier, cfg.ReminderLead, logger)
		}
	}
}

func runOnce(ctx context.Context, svc *booking.Service, notifier *notify.Service, lead time.Duration, logger *logging.Logger) {
	runCtx, cancel := context.WithTimeout(ctx, 20*time.Second)
	defer cancel()

	start := time.Now()
	upcoming, err := svc.UpcomingAppointments(runCtx, start, lead)
	if err != nil {
		logger.Error("reminder run error", "error", err)
		return
	}

	sent, skipped := 0, 0
	for _, detail := range upcoming {
		kind := reminderKind(start, detail)

		// Each appointment gets each reminder kind at most once, no matter
		// how often the worker ticks inside the lead window.
		already, err := svc.ReminderAlreadySent(runCtx, detail.ID, kind)
		if err != nil {
			logger.Error("reminder lookup failed", "appointment_id", detail.ID, "error", err)
			continue
		}
		if already {
			skipped++
			continue
		}

		if err := notifier.SendReminder(runCtx, detail, kind); err != nil {
			logger.Error("reminder send failed", "appointment_id", detail.ID, "error", err)
			continue
		}
		svc.MarkReminderSent(runCtx, detail.ID, kind)
		sent++
	}

	logger.Info("reminder run complete",
		"upcoming", len(upcoming), "sent", sent, "skipped", skipped,
		"duration", time.Since(start).String())
}

// reminderKind escalates as the appointment approaches: same-day gets the
// final confirmation, next-day the forms check, everything further the basic
// reminder.
func reminderKind(now time.Time, detail booking.AppointmentDetail) int {
	today := booking.DateOf(now)
	switch {
	case detail.Date.Equal(today):
		return notify.ReminderFinal
	case detail.Date.Equal(today.AddDays(1)):
		return notify.ReminderForms
	default:
		return notify.ReminderBasic
	}
}
