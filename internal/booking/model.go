package booking

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

type AppointmentStatus string

const (
	StatusConfirmed AppointmentStatus = "confirmed"
	StatusCancelled AppointmentStatus = "cancelled"
)

// InsurancePlaceholder marks records imported before insurance details were
// collected. Seed data and legacy imports use this literal.
const InsurancePlaceholder = "TBD"

type InsuranceStatus int

const (
	InsuranceAbsent InsuranceStatus = iota
	InsuranceIncomplete
	InsuranceComplete
)

type Insurance struct {
	Carrier  string `json:"carrier"`
	MemberID string `json:"member_id"`
	GroupID  string `json:"group_id"`
}

// Status distinguishes "no data", "placeholder or partial data" and
// "complete" rather than comparing against a sentinel string at call sites.
func (i Insurance) Status() InsuranceStatus {
	fields := []string{i.Carrier, i.MemberID, i.GroupID}

	filled := 0
	for _, f := range fields {
		f = strings.TrimSpace(f)
		if f == "" {
			continue
		}
		if strings.EqualFold(f, InsurancePlaceholder) {
			return InsuranceIncomplete
		}
		filled++
	}

	switch filled {
	case 0:
		return InsuranceAbsent
	case len(fields):
		return InsuranceComplete
	default:
		return InsuranceIncomplete
	}
}

type Patient struct {
	ID         uuid.UUID
	Name       string
	DOB        Date
	Phone      string
	Email      string
	Insurance  Insurance
	VisitCount int
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Returning patients qualify for the shorter appointment duration.
func (p *Patient) Returning() bool {
	return p != nil && p.VisitCount > 0
}

type Provider struct {
	ID        uuid.UUID
	Name      string
	Specialty string
	Location  string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ScheduleSlot is a pre-existing capacity unit. Reservations only flip
// Available, they never create or delete slots.
type ScheduleSlot struct {
	ProviderID uuid.UUID
	Date       Date
	Start      TimeOfDay
	Available  bool
}

// CandidateSlot is a starting slot verified to have enough contiguous
// available capacity for a given duration at the time it was resolved.
type CandidateSlot struct {
	ProviderID uuid.UUID `json:"provider_id"`
	Date       Date      `json:"date"`
	Start      TimeOfDay `json:"start"`
}

type Appointment struct {
	ID         uuid.UUID
	PatientID  uuid.UUID
	ProviderID uuid.UUID
	Date       Date
	Start      TimeOfDay
	Duration   Duration
	Location   string
	Status     AppointmentStatus
	CreatedAt  time.Time
}

type AppointmentDetail struct {
	Appointment
	Patient  *Patient
	Provider *Provider
}

type EventLog struct {
	ID            int64
	EventType     string
	AppointmentID *uuid.UUID
	Payload       []byte
	CreatedAt     time.Time
}
