package booking

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var (
	ErrPatientNotFound     = errors.New("patient not found")
	ErrProviderNotFound    = errors.New("provider not found")
	ErrAppointmentNotFound = errors.New("appointment not found")

	// ErrSlotConflict means at least one required unit was taken between the
	// availability snapshot and the commit.
	ErrSlotConflict = errors.New("requested time is no longer available")
)

// PatientQuery filters patients; zero-value fields are ignored, provided
// fields combine with AND. Name matches case-insensitively by containment.
type PatientQuery struct {
	Name  string
	DOB   Date
	Phone string
}

// NewPatient carries the fields collected before first booking. The
// repository assigns the identifier and a zero visit count.
type NewPatient struct {
	Name      string
	DOB       Date
	Phone     string
	Email     string
	Insurance Insurance
}

type PatientRepository interface {
	FindPatient(ctx context.Context, q PatientQuery) (*Patient, error)
	GetPatientByID(ctx context.Context, id uuid.UUID) (*Patient, error)
	CreatePatient(ctx context.Context, np NewPatient) (*Patient, error)
	UpdateInsurance(ctx context.Context, id uuid.UUID, ins Insurance) (*Patient, error)
}

type ProviderDirectory interface {
	ListProviders(ctx context.Context) ([]Provider, error)
	GetProviderByID(ctx context.Context, id uuid.UUID) (*Provider, error)
}

// Reservation is a commit request for a contiguous unit set.
type Reservation struct {
	ProviderID uuid.UUID
	PatientID  uuid.UUID
	Date       Date
	Start      TimeOfDay
	Units      Duration
}

// ScheduleRepository is the source of truth for slot availability.
//
// Reserve must execute its availability re-check and the flip of every
// required unit as one atomic action with respect to concurrent reservations
// touching any of the same units: a partial reservation is never observable,
// and a lost race surfaces as ErrSlotConflict.
type ScheduleRepository interface {
	ListAvailable(ctx context.Context, providerID uuid.UUID, window DateWindow) ([]ScheduleSlot, error)
	Reserve(ctx context.Context, req Reservation) (*Appointment, error)

	GetAppointmentDetail(ctx context.Context, id uuid.UUID) (*AppointmentDetail, error)
	ListAppointmentsBetween(ctx context.Context, from, to Date) ([]AppointmentDetail, error)
}

type EventRecorder interface {
	InsertEvent(ctx context.Context, ev EventLog) error
	ListEvents(ctx context.Context, appointmentID uuid.UUID, eventType string) ([]EventLog, error)
}
