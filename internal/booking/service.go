package booking

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	redisclient "github.com/careline/scheduling-agent/internal/redis"
	"github.com/careline/scheduling-agent/pkg/logging"
)

const (
	EventBookingConfirmed = "BOOKING_CONFIRMED"
	EventBookingConflict  = "BOOKING_CONFLICT"
	EventReminderSent     = "REMINDER_SENT"
)

// ErrScheduleBusy means another reservation holds the provider-day lock.
// Callers should retry shortly; no state was touched.
var ErrScheduleBusy = errors.New("schedule is currently being booked, please retry")

// Service commits reservations. Atomicity comes from the repository; the
// distributed lock on top keeps concurrent workers from hammering the same
// provider-day, mirroring how the availability re-check sits inside the
// critical section.
type Service struct {
	schedule ScheduleRepository
	events   EventRecorder
	locker   redisclient.Locker // nil when a single process owns the repository
	logger   *logging.Logger
}

func NewService(schedule ScheduleRepository, events EventRecorder, locker redisclient.Locker, logger *logging.Logger) *Service {
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{
		schedule: schedule,
		events:   events,
		locker:   locker,
		logger:   logger,
	}
}

// Reserve re-validates the full contiguous unit set at commit time and flips
// it atomically. Exactly one of two racing calls touching overlapping units
// succeeds; the loser gets ErrSlotConflict.
func (s *Service) Reserve(ctx context.Context, req Reservation) (*Appointment, error) {
	if req.Units < 1 {
		return nil, fmt.Errorf("reservation requires at least one unit, got %d", req.Units)
	}

	var appt *Appointment

	commit := func(ctx context.Context) error {
		created, err := s.schedule.Reserve(ctx, req)
		if err != nil {
			return err
		}
		appt = created
		return nil
	}

	var err error
	if s.locker != nil {
		err = s.locker.WithScheduleLock(ctx, req.ProviderID, req.Date.String(), commit)
	} else {
		err = commit(ctx)
	}

	if err != nil {
		if errors.Is(err, redisclient.ErrLockNotAcquired) {
			return nil, ErrScheduleBusy
		}
		if errors.Is(err, ErrSlotConflict) {
			s.logEvent(ctx, nil, EventBookingConflict, map[string]any{
				"provider_id": req.ProviderID.String(),
				"date":        req.Date.String(),
				"start":       req.Start.String(),
				"units":       req.Units.Units(),
			})
			return nil, err
		}
		return nil, fmt.Errorf("reserve slots: %w", err)
	}

	s.logEvent(ctx, &appt.ID, EventBookingConfirmed, map[string]any{
		"patient_id":  appt.PatientID.String(),
		"provider_id": appt.ProviderID.String(),
		"date":        appt.Date.String(),
		"start":       appt.Start.String(),
		"minutes":     appt.Duration.Minutes(),
	})

	return appt, nil
}

// UpcomingAppointments lists confirmed appointments whose date falls within
// the reminder lead window starting at now.
func (s *Service) UpcomingAppointments(ctx context.Context, now time.Time, lead time.Duration) ([]AppointmentDetail, error) {
	from := DateOf(now)
	to := DateOf(now.Add(lead))

	details, err := s.schedule.ListAppointmentsBetween(ctx, from, to)
	if err != nil {
		return nil, fmt.Errorf("list upcoming appointments: %w", err)
	}
	return details, nil
}

// ReminderAlreadySent reports whether a reminder of the given kind was
// already recorded for the appointment, so a periodic worker re-scanning the
// lead window doesn't send the same reminder on every tick.
func (s *Service) ReminderAlreadySent(ctx context.Context, appointmentID uuid.UUID, kind int) (bool, error) {
	if s.events == nil {
		return false, nil
	}

	events, err := s.events.ListEvents(ctx, appointmentID, EventReminderSent)
	if err != nil {
		return false, fmt.Errorf("list reminder events: %w", err)
	}

	for _, ev := range events {
		var payload struct {
			Kind int `json:"kind"`
		}
		if len(ev.Payload) == 0 {
			continue
		}
		if err := json.Unmarshal(ev.Payload, &payload); err != nil {
			continue
		}
		if payload.Kind == kind {
			return true, nil
		}
	}
	return false, nil
}

// MarkReminderSent records the send in the event log.
func (s *Service) MarkReminderSent(ctx context.Context, appointmentID uuid.UUID, kind int) {
	s.logEvent(ctx, &appointmentID, EventReminderSent, map[string]any{
		"kind": kind,
	})
}

func (s *Service) logEvent(ctx context.Context, appointmentID *uuid.UUID, eventType string, payload map[string]any) {
	if s.events == nil {
		return
	}

	data, err := json.Marshal(payload)
	if err != nil {
		s.logger.Error("marshal event payload failed", "event", eventType, "error", err)
		data = nil
	}

	ev := EventLog{
		EventType:     eventType,
		AppointmentID: appointmentID,
		Payload:       data,
		CreatedAt:     time.Now(),
	}

	if err := s.events.InsertEvent(ctx, ev); err != nil {
		s.logger.Error("insert event log failed", "event", eventType, "error", err)
	}
}
