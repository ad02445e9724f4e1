package conversation

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/careline/scheduling-agent/internal/booking"
	"github.com/careline/scheduling-agent/internal/observability/metrics"
	"github.com/careline/scheduling-agent/pkg/logging"
)

const cancelKeyword = "CANCEL"

// Notifier sends post-booking messages. Failures here never unwind a
// committed booking; the engine logs them and moves on.
type Notifier interface {
	SendConfirmation(ctx context.Context, appt booking.Appointment, patient booking.Patient, provider booking.Provider) error
	SendIntakeForm(ctx context.Context, patient booking.Patient, appt booking.Appointment, provider booking.Provider) error
}

// Exporter appends a committed booking to the office report.
type Exporter interface {
	ExportAppointment(ctx context.Context, appt booking.Appointment, patient booking.Patient, provider booking.Provider) error
}

// EngineConfig wires the engine's collaborators. Notifier, Exporter and
// Metrics are optional; Logger falls back to the default logger.
type EngineConfig struct {
	Sessions   SessionStore
	Patients   booking.PatientRepository
	Providers  booking.ProviderDirectory
	Resolver   *booking.Resolver
	Booker     *booking.Service
	Notifier   Notifier
	Exporter   Exporter
	Metrics    *metrics.BookingMetrics
	Logger     *logging.Logger
	WindowDays int
	PageSize   int
	Now        func() time.Time
}

// Engine drives the booking conversation. Each turn reads the session,
// applies exactly one input to the current state and persists the result, so
// a conversation can migrate between server instances mid-flow.
type Engine struct {
	sessions   SessionStore
	patients   booking.PatientRepository
	providers  booking.ProviderDirectory
	resolver   *booking.Resolver
	booker     *booking.Service
	notifier   Notifier
	exporter   Exporter
	metrics    *metrics.BookingMetrics
	logger     *logging.Logger
	windowDays int
	pageSize   int
	now        func() time.Time
}

func NewEngine(cfg EngineConfig) *Engine {
	if cfg.Logger == nil {
		cfg.Logger = logging.Default()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.WindowDays <= 0 {
		cfg.WindowDays = 14
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = 10
	}
	return &Engine{
		sessions:   cfg.Sessions,
		patients:   cfg.Patients,
		providers:  cfg.Providers,
		resolver:   cfg.Resolver,
		booker:     cfg.Booker,
		notifier:   cfg.Notifier,
		exporter:   cfg.Exporter,
		metrics:    cfg.Metrics,
		logger:     cfg.Logger,
		windowDays: cfg.WindowDays,
		pageSize:   cfg.PageSize,
		now:        cfg.Now,
	}
}

// ProcessTurn applies one user message to the session and returns the reply.
// Unknown session ids start a fresh conversation. The returned error covers
// session store failures only; domain failures produce a user-facing reply
// and leave the state where it was.
func (e *Engine) ProcessTurn(ctx context.Context, sessionID, input string) (string, error) {
	s, err := e.sessions.Get(ctx, sessionID)
	if err != nil {
		if !errors.Is(err, ErrSessionNotFound) {
			return "", fmt.Errorf("load session %s: %w", sessionID, err)
		}
		s = NewSession(sessionID)
	}

	e.metrics.ObserveTurn(s.State.String())

	text := strings.TrimSpace(input)

	// Cancelling discards the session outright; the next message starts a
	// fresh one with no collected data.
	if strings.EqualFold(text, cancelKeyword) && s.State != StateGreeting {
		if err := e.sessions.Delete(ctx, sessionID); err != nil {
			return "", fmt.Errorf("delete session %s: %w", sessionID, err)
		}
		return cancelledReply(), nil
	}

	var reply string
	if text == "" {
		reply = e.repromptFor(ctx, s)
	} else {
		reply = e.handle(ctx, s, text)
	}

	s.UpdatedAt = e.now()
	if err := e.sessions.Save(ctx, s); err != nil {
		return "", fmt.Errorf("save session %s: %w", sessionID, err)
	}
	return reply, nil
}

func (e *Engine) handle(ctx context.Context, s *Session, text string) string {
	switch s.State {
	case StateGreeting:
		s.State = StateCollectName
		return greetingReply()
	case StateCollectName:
		return e.handleName(ctx, s, text)
	case StateCollectDOB:
		return e.handleDOB(ctx, s, text)
	case StateCollectDoctor:
		return e.handleDoctor(ctx, s, text)
	case StateCollectPhone:
		return e.handlePhone(s, text)
	case StateCollectEmail:
		return e.handleEmail(ctx, s, text)
	case StateShowAvailability:
		return e.handleSlotSelection(s, text)
	case StateCollectInsurance:
		return e.handleInsurance(ctx, s, text)
	case StateConfirm:
		return e.handleConfirm(ctx, s, text)
	default:
		e.logger.Error("session in unknown state", "session_id", s.ID, "state", int(s.State))
		s.Reset()
		return cancelledReply()
	}
}

func (e *Engine) handleName(ctx context.Context, s *Session, text string) string {
	name, err := ValidateName(text)
	if err != nil {
		return fmt.Sprintf("%s. Please provide your full name:", capitalize(err.Error()))
	}
	s.Name = name

	patient, err := e.patients.FindPatient(ctx, booking.PatientQuery{Name: name})
	if err != nil && !errors.Is(err, booking.ErrPatientNotFound) {
		e.logger.Error("patient lookup failed", "session_id", s.ID, "error", err)
		return transientErrorReply()
	}
	if patient == nil {
		s.State = StateCollectDOB
		return newPatientReply(name)
	}

	providers, err := e.providers.ListProviders(ctx)
	if err != nil {
		e.logger.Error("provider listing failed", "session_id", s.ID, "error", err)
		return transientErrorReply()
	}
	s.Patient = patient
	s.State = StateCollectDoctor
	return knownPatientReply(patient, providers)
}

func (e *Engine) handleDOB(ctx context.Context, s *Session, text string) string {
	dob, err := ValidateDOB(text, e.now())
	if err != nil {
		return fmt.Sprintf("%s. Please enter your date of birth in YYYY-MM-DD format (e.g., 1990-05-15):", capitalize(err.Error()))
	}
	s.DOB = dob

	providers, err := e.providers.ListProviders(ctx)
	if err != nil {
		e.logger.Error("provider listing failed", "session_id", s.ID, "error", err)
		s.DOB = booking.Date{}
		return transientErrorReply()
	}
	s.State = StateCollectDoctor
	return doctorPromptReply(providers)
}

func (e *Engine) handleDoctor(ctx context.Context, s *Session, text string) string {
	providers, err := e.providers.ListProviders(ctx)
	if err != nil {
		e.logger.Error("provider listing failed", "session_id", s.ID, "error", err)
		return transientErrorReply()
	}

	provider := matchProvider(text, providers)
	if provider == nil {
		return unknownDoctorReply(providers)
	}
	s.Provider = provider

	// Returning patients already have contact details on file; new patients
	// still owe phone, email and insurance.
	if s.Patient != nil {
		return e.showAvailability(ctx, s)
	}
	s.State = StateCollectPhone
	return "Thank you. Please provide your phone number:"
}

func (e *Engine) handlePhone(s *Session, text string) string {
	digits, err := ValidatePhone(text)
	if err != nil {
		return fmt.Sprintf("%s. Please provide a valid phone number:", capitalize(err.Error()))
	}
	s.Phone = digits
	s.State = StateCollectEmail
	return "Got it. Please provide your email address:"
}

func (e *Engine) handleEmail(ctx context.Context, s *Session, text string) string {
	email, err := ValidateEmail(text)
	if err != nil {
		return "That doesn't look like a valid email address. Please try again:"
	}
	s.Email = email

	patient, err := e.patients.CreatePatient(ctx, booking.NewPatient{
		Name:  s.Name,
		DOB:   s.DOB,
		Phone: s.Phone,
		Email: s.Email,
	})
	if err != nil {
		e.logger.Error("patient creation failed", "session_id", s.ID, "error", err)
		return transientErrorReply()
	}
	s.Patient = patient
	return e.showAvailability(ctx, s)
}

// showAvailability resolves bookable start times for the selected provider
// and presents the first page. The required duration is computed here from
// the patient classification and pinned for the rest of the flow.
func (e *Engine) showAvailability(ctx context.Context, s *Session) string {
	units := booking.RequiredUnits(s.Patient)
	window := booking.DateWindow{From: booking.DateOf(e.now()), Days: e.windowDays}

	candidates, err := e.resolver.FindCandidates(ctx, s.Provider.ID, window, units, e.pageSize)
	if err != nil {
		e.logger.Error("availability lookup failed",
			"session_id", s.ID, "provider_id", s.Provider.ID, "error", err)
		return transientErrorReply()
	}
	if len(candidates) == 0 {
		provider := s.Provider
		s.ClearSelection()
		s.State = StateCollectDoctor
		return noAvailabilityReply(provider, e.windowDays)
	}

	s.Shown = candidates
	s.ShownUnits = units
	s.Pending = nil
	s.State = StateShowAvailability
	return availabilityReply(s.Provider, candidates)
}

func (e *Engine) handleSlotSelection(s *Session, text string) string {
	n, err := strconv.Atoi(text)
	if err != nil {
		return "Please type the number of your preferred slot:"
	}
	if n < 1 || n > len(s.Shown) {
		return fmt.Sprintf("Please choose a number between 1 and %d:", len(s.Shown))
	}

	chosen := s.Shown[n-1]
	s.Pending = &PendingSelection{Date: chosen.Date, Start: chosen.Start, Units: s.ShownUnits}

	if s.Patient.Insurance.Status() != booking.InsuranceComplete {
		s.Insurance = booking.Insurance{}
		s.State = StateCollectInsurance
		return insurancePromptReply()
	}
	s.State = StateConfirm
	return summaryReply(s)
}

func (e *Engine) handleInsurance(ctx context.Context, s *Session, text string) string {
	switch {
	case s.Insurance.Carrier == "":
		carrier, err := ValidateInsuranceField(text, 2)
		if err != nil {
			return "Please provide a valid insurance carrier name:"
		}
		s.Insurance.Carrier = carrier
		return "Thank you. Now please provide your Member ID:"
	case s.Insurance.MemberID == "":
		memberID, err := ValidateInsuranceField(text, 3)
		if err != nil {
			return "Member ID must be at least 3 characters. Please try again:"
		}
		s.Insurance.MemberID = memberID
		return "Great! Finally, please provide your Group ID:"
	default:
		groupID, err := ValidateInsuranceField(text, 2)
		if err != nil {
			return "Group ID must be at least 2 characters. Please try again:"
		}
		s.Insurance.GroupID = groupID

		updated, err := e.patients.UpdateInsurance(ctx, s.Patient.ID, s.Insurance)
		if err != nil {
			e.logger.Error("insurance update failed",
				"session_id", s.ID, "patient_id", s.Patient.ID, "error", err)
			s.Insurance.GroupID = ""
			return "Sorry, we couldn't save that just now. Please re-enter your Group ID:"
		}
		s.Patient = updated
		s.State = StateConfirm
		return summaryReply(s)
	}
}

func (e *Engine) handleConfirm(ctx context.Context, s *Session, text string) string {
	if !strings.EqualFold(text, "CONFIRM") {
		return "Please type 'CONFIRM' to book this appointment or 'CANCEL' to start over:"
	}
	return e.book(ctx, s)
}

func (e *Engine) book(ctx context.Context, s *Session) string {
	appt, err := e.booker.Reserve(ctx, booking.Reservation{
		ProviderID: s.Provider.ID,
		PatientID:  s.Patient.ID,
		Date:       s.Pending.Date,
		Start:      s.Pending.Start,
		Units:      s.Pending.Units,
	})

	switch {
	case errors.Is(err, booking.ErrSlotConflict) || errors.Is(err, booking.ErrScheduleBusy):
		e.metrics.ObserveBooking("conflict")
		return e.recoverFromConflict(ctx, s)
	case err != nil:
		e.metrics.ObserveBooking("error")
		e.logger.Error("booking commit failed", "session_id", s.ID, "error", err)
		return transientErrorReply()
	}

	e.metrics.ObserveBooking("confirmed")
	e.logger.Info("appointment booked",
		"session_id", s.ID,
		"appointment_id", appt.ID,
		"patient_id", s.Patient.ID,
		"provider_id", s.Provider.ID,
		"date", appt.Date.String(),
		"start", appt.Start.String())

	// The commit bumped the visit count, so re-read the patient record: the
	// confirmation and the report carry the post-booking state.
	patient := *s.Patient
	if fresh, perr := e.patients.GetPatientByID(ctx, s.Patient.ID); perr == nil {
		patient = *fresh
	}
	provider := *s.Provider
	if e.notifier != nil {
		if nerr := e.notifier.SendConfirmation(ctx, *appt, patient, provider); nerr != nil {
			e.logger.Error("confirmation email failed", "appointment_id", appt.ID, "error", nerr)
		}
		if nerr := e.notifier.SendIntakeForm(ctx, patient, *appt, provider); nerr != nil {
			e.logger.Error("intake form email failed", "appointment_id", appt.ID, "error", nerr)
		}
	}
	if e.exporter != nil {
		if xerr := e.exporter.ExportAppointment(ctx, *appt, patient, provider); xerr != nil {
			e.logger.Error("report export failed", "appointment_id", appt.ID, "error", xerr)
		}
	}

	s.Reset()
	return bookedReply(appt, &provider, &patient)
}

// recoverFromConflict refreshes availability after a lost race using the
// duration pinned at selection time.
func (e *Engine) recoverFromConflict(ctx context.Context, s *Session) string {
	window := booking.DateWindow{From: booking.DateOf(e.now()), Days: e.windowDays}
	candidates, err := e.resolver.FindCandidates(ctx, s.Provider.ID, window, s.Pending.Units, e.pageSize)
	if err != nil {
		e.logger.Error("availability refresh failed",
			"session_id", s.ID, "provider_id", s.Provider.ID, "error", err)
		return transientErrorReply()
	}
	if len(candidates) == 0 {
		provider := s.Provider
		s.ClearSelection()
		s.State = StateCollectDoctor
		return noAvailabilityReply(provider, e.windowDays)
	}

	s.Shown = candidates
	s.Pending = nil
	s.State = StateShowAvailability
	return conflictReply(s.Provider, candidates)
}

func (e *Engine) repromptFor(ctx context.Context, s *Session) string {
	switch s.State {
	case StateGreeting:
		return "Please type anything to get started."
	case StateCollectName:
		return "Please provide your full name:"
	case StateCollectDOB:
		return "Please provide your date of birth (YYYY-MM-DD format):"
	case StateCollectDoctor:
		providers, err := e.providers.ListProviders(ctx)
		if err != nil {
			return "Please type the doctor's name:"
		}
		return unknownDoctorReply(providers)
	case StateCollectPhone:
		return "Please provide your phone number:"
	case StateCollectEmail:
		return "Please provide your email address:"
	case StateShowAvailability:
		return "Please type the number of your preferred slot:"
	case StateCollectInsurance:
		switch {
		case s.Insurance.Carrier == "":
			return "Please provide your insurance carrier:"
		case s.Insurance.MemberID == "":
			return "Please provide your Member ID:"
		default:
			return "Please provide your Group ID:"
		}
	case StateConfirm:
		return "Please type 'CONFIRM' to book this appointment or 'CANCEL' to start over:"
	default:
		return greetingReply()
	}
}

// matchProvider resolves free-text doctor input by case-insensitive
// substring containment in either direction, so "garcia", "Dr. Garcia" and
// "dr maria garcia, please" all resolve. First match in listing order wins.
func matchProvider(input string, providers []booking.Provider) *booking.Provider {
	needle := strings.ToLower(strings.TrimSpace(input))
	if needle == "" {
		return nil
	}
	for i := range providers {
		name := strings.ToLower(providers[i].Name)
		if strings.Contains(name, needle) || strings.Contains(needle, name) {
			p := providers[i]
			return &p
		}
	}
	return nil
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
