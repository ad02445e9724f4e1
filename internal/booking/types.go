package booking

import (
	"encoding/json"
	"fmt"
	"time"
)

// SlotMinutes is the base scheduling granularity. Every slot start and every
// appointment duration is expressed in whole multiples of it.
const SlotMinutes = 30

// Date is a calendar day with no time-of-day component.
type Date time.Time

func ParseDate(s string) (Date, error) {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return Date{}, fmt.Errorf("invalid date %q, expected YYYY-MM-DD", s)
	}
	return Date(t), nil
}

// DateOf truncates t to its calendar day.
func DateOf(t time.Time) Date {
	return Date(time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC))
}

func (d Date) String() string {
	return time.Time(d).Format("2006-01-02")
}

// Long renders the date for user-facing messages, e.g. "Monday, May 5, 2025".
func (d Date) Long() string {
	return time.Time(d).Format("Monday, January 2, 2006")
}

func (d Date) AddDays(n int) Date {
	return Date(time.Time(d).AddDate(0, 0, n))
}

func (d Date) Before(o Date) bool {
	return time.Time(d).Before(time.Time(o))
}

func (d Date) Equal(o Date) bool {
	return time.Time(d).Equal(time.Time(o))
}

func (d Date) IsZero() bool {
	return time.Time(d).IsZero()
}

func (d Date) Time() time.Time {
	return time.Time(d)
}

func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *Date) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if s == "" {
		*d = Date{}
		return nil
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// TimeOfDay is minutes since midnight, aligned to the slot grid.
type TimeOfDay int

func ParseTimeOfDay(s string) (TimeOfDay, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, fmt.Errorf("invalid time %q, expected HH:MM", s)
	}
	m := t.Hour()*60 + t.Minute()
	if m%SlotMinutes != 0 {
		return 0, fmt.Errorf("time %q is not on the %d-minute grid", s, SlotMinutes)
	}
	return TimeOfDay(m), nil
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", int(t)/60, int(t)%60)
}

// Clock12 renders the 12-hour form used in user-facing messages.
func (t TimeOfDay) Clock12() string {
	ref := time.Date(2000, 1, 1, int(t)/60, int(t)%60, 0, 0, time.UTC)
	return ref.Format("3:04 PM")
}

// Next is the immediately following base unit on the same day.
func (t TimeOfDay) Next() TimeOfDay {
	return t + SlotMinutes
}

func (t TimeOfDay) Minutes() int {
	return int(t)
}

func (t TimeOfDay) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

func (t *TimeOfDay) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseTimeOfDay(s)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// Duration is an appointment length in base units.
type Duration int

func (d Duration) Units() int {
	return int(d)
}

func (d Duration) Minutes() int {
	return int(d) * SlotMinutes
}

func (d Duration) String() string {
	return fmt.Sprintf("%d minutes", d.Minutes())
}

// DateWindow is an inclusive day range starting at From.
type DateWindow struct {
	From Date `json:"from"`
	Days int  `json:"days"`
}

// End is the first day past the window.
func (w DateWindow) End() Date {
	return w.From.AddDays(w.Days)
}

func (w DateWindow) Contains(d Date) bool {
	return !d.Before(w.From) && d.Before(w.End())
}
