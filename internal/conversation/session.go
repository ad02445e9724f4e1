package conversation

import (
	"time"

	"github.com/careline/scheduling-agent/internal/booking"
)

// State identifies the single pending question of a session. Every state
// waits for exactly one field; invalid input re-prompts without advancing.
type State int

const (
	StateGreeting State = iota
	StateCollectName
	StateCollectDOB
	StateCollectDoctor
	StateCollectPhone
	StateCollectEmail
	StateShowAvailability
	StateCollectInsurance
	StateConfirm
)

func (s State) String() string {
	switch s {
	case StateGreeting:
		return "greeting"
	case StateCollectName:
		return "collect_name"
	case StateCollectDOB:
		return "collect_dob"
	case StateCollectDoctor:
		return "collect_doctor"
	case StateCollectPhone:
		return "collect_phone"
	case StateCollectEmail:
		return "collect_email"
	case StateShowAvailability:
		return "show_availability"
	case StateCollectInsurance:
		return "collect_insurance"
	case StateConfirm:
		return "confirm"
	default:
		return "unknown"
	}
}

// PendingSelection is the slot the user picked, with the duration pinned at
// selection time. It is carried unchanged through insurance collection to the
// booking commit so a classification change mid-flow cannot alter it.
type PendingSelection struct {
	Date  booking.Date      `json:"date"`
	Start booking.TimeOfDay `json:"start"`
	Units booking.Duration  `json:"units"`
}

// Session is the per-conversation aggregate. Exactly one session is active
// per conversation; sessions share no mutable state with each other.
type Session struct {
	ID         string                  `json:"id"`
	State      State                   `json:"state"`
	Name       string                  `json:"name,omitempty"`
	DOB        booking.Date            `json:"dob,omitempty"`
	Phone      string                  `json:"phone,omitempty"`
	Email      string                  `json:"email,omitempty"`
	Insurance  booking.Insurance       `json:"insurance"`
	Patient    *booking.Patient        `json:"patient,omitempty"`
	Provider   *booking.Provider       `json:"provider,omitempty"`
	Shown      []booking.CandidateSlot `json:"shown,omitempty"`
	ShownUnits booking.Duration        `json:"shown_units,omitempty"`
	Pending    *PendingSelection       `json:"pending,omitempty"`
	UpdatedAt  time.Time               `json:"updated_at"`
}

func NewSession(id string) *Session {
	return &Session{
		ID:        id,
		State:     StateGreeting,
		UpdatedAt: time.Now(),
	}
}

// Reset returns the session to the entry state with empty collected data.
func (s *Session) Reset() {
	*s = Session{
		ID:        s.ID,
		State:     StateGreeting,
		UpdatedAt: time.Now(),
	}
}

// ClearSelection drops doctor and slot choices but keeps identity fields, for
// re-entering doctor selection after a failed availability check.
func (s *Session) ClearSelection() {
	s.Provider = nil
	s.Shown = nil
	s.ShownUnits = 0
	s.Pending = nil
}
