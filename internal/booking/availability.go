package booking

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// Resolver computes valid starting slots for a requested duration.
type Resolver struct {
	schedule ScheduleRepository
}

func NewResolver(schedule ScheduleRepository) *Resolver {
	return &Resolver{schedule: schedule}
}

// FindCandidates returns chronological starting slots within the window that
// have units contiguous available base units on the same provider and date.
// limit <= 0 disables truncation. An empty result is a normal outcome.
func (r *Resolver) FindCandidates(ctx context.Context, providerID uuid.UUID, window DateWindow, units Duration, limit int) ([]CandidateSlot, error) {
	if units < 1 {
		return nil, fmt.Errorf("duration must be at least one unit, got %d", units)
	}

	slots, err := r.schedule.ListAvailable(ctx, providerID, window)
	if err != nil {
		return nil, fmt.Errorf("list available slots: %w", err)
	}

	open := make(map[string]bool, len(slots))
	for _, s := range slots {
		open[slotKey(s.Date, s.Start)] = true
	}

	var candidates []CandidateSlot
	for _, s := range slots {
		if !contiguousFrom(open, s.Date, s.Start, units) {
			continue
		}
		candidates = append(candidates, CandidateSlot{
			ProviderID: providerID,
			Date:       s.Date,
			Start:      s.Start,
		})
		if limit > 0 && len(candidates) == limit {
			break
		}
	}

	return candidates, nil
}

// contiguousFrom reports whether start and its units-1 successors on the same
// date are all open. A trailing slot at the end of business hours fails the
// missing-neighbor check naturally.
func contiguousFrom(open map[string]bool, date Date, start TimeOfDay, units Duration) bool {
	t := start
	for i := 0; i < units.Units(); i++ {
		if !open[slotKey(date, t)] {
			return false
		}
		t = t.Next()
	}
	return true
}

func slotKey(date Date, t TimeOfDay) string {
	return date.String() + "T" + t.String()
}
