package booking

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustDate(t *testing.T, s string) Date {
	t.Helper()
	d, err := ParseDate(s)
	require.NoError(t, err)
	return d
}

func mustTime(t *testing.T, s string) TimeOfDay {
	t.Helper()
	tod, err := ParseTimeOfDay(s)
	require.NoError(t, err)
	return tod
}

func addSlots(repo *MemoryRepository, providerID uuid.UUID, date Date, starts ...TimeOfDay) {
	for _, start := range starts {
		repo.AddSlot(ScheduleSlot{ProviderID: providerID, Date: date, Start: start, Available: true})
	}
}

func TestFindCandidatesSingleUnit(t *testing.T) {
	repo := NewMemoryRepository()
	provider := repo.AddProvider(Provider{Name: "Dr. Garcia", Location: "Room 101"})

	day := mustDate(t, "2025-06-03")
	addSlots(repo, provider.ID, day,
		mustTime(t, "09:00"), mustTime(t, "09:30"), mustTime(t, "10:30"))

	resolver := NewResolver(repo)
	window := DateWindow{From: day, Days: 14}

	got, err := resolver.FindCandidates(context.Background(), provider.ID, window, 1, 0)
	require.NoError(t, err)
	require.Len(t, got, 3, "every open slot can host a single unit")
	assert.Equal(t, "09:00", got[0].Start.String())
	assert.Equal(t, "09:30", got[1].Start.String())
	assert.Equal(t, "10:30", got[2].Start.String())
}

func TestFindCandidatesNeedsContiguousPair(t *testing.T) {
	repo := NewMemoryRepository()
	provider := repo.AddProvider(Provider{Name: "Dr. Garcia", Location: "Room 101"})

	// 10:00 is missing, so 09:30 and 10:30 cannot start a 60-minute visit.
	day := mustDate(t, "2025-06-03")
	addSlots(repo, provider.ID, day,
		mustTime(t, "09:00"), mustTime(t, "09:30"), mustTime(t, "10:30"))

	resolver := NewResolver(repo)
	window := DateWindow{From: day, Days: 14}

	got, err := resolver.FindCandidates(context.Background(), provider.ID, window, 2, 0)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "09:00", got[0].Start.String())
	assert.True(t, got[0].Date.Equal(day))
}

func TestFindCandidatesSingleUnitIgnoresBookedNeighbor(t *testing.T) {
	repo := NewMemoryRepository()
	provider := repo.AddProvider(Provider{Name: "Dr. Garcia", Location: "Room 101"})
	patient := repo.AddPatient(Patient{Name: "Alex Rivera", VisitCount: 2})

	// 09:30 is already taken; a 30-minute visit at 09:00 needs no neighbor.
	day := mustDate(t, "2025-06-03")
	repo.AddSlot(ScheduleSlot{ProviderID: provider.ID, Date: day, Start: mustTime(t, "09:00"), Available: true})
	repo.AddSlot(ScheduleSlot{ProviderID: provider.ID, Date: day, Start: mustTime(t, "09:30"), Available: false})

	resolver := NewResolver(repo)
	window := DateWindow{From: day, Days: 14}

	got, err := resolver.FindCandidates(context.Background(), provider.ID, window, 1, 0)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "09:00", got[0].Start.String())

	appt, err := repo.Reserve(context.Background(), Reservation{
		ProviderID: provider.ID, PatientID: patient.ID, Date: day, Start: got[0].Start, Units: 1,
	})
	require.NoError(t, err)
	assert.Equal(t, 30, appt.Duration.Minutes())
}

func TestFindCandidatesOmitsConsumedUnitsAfterReserve(t *testing.T) {
	repo := NewMemoryRepository()
	provider := repo.AddProvider(Provider{Name: "Dr. Garcia", Location: "Room 101"})
	patient := repo.AddPatient(Patient{Name: "Alex Rivera"})

	day := mustDate(t, "2025-06-03")
	addSlots(repo, provider.ID, day,
		mustTime(t, "09:00"), mustTime(t, "09:30"), mustTime(t, "10:00"), mustTime(t, "10:30"))

	resolver := NewResolver(repo)
	window := DateWindow{From: day, Days: 14}

	_, err := repo.Reserve(context.Background(), Reservation{
		ProviderID: provider.ID, PatientID: patient.ID, Date: day, Start: mustTime(t, "09:00"), Units: 2,
	})
	require.NoError(t, err)

	singles, err := resolver.FindCandidates(context.Background(), provider.ID, window, 1, 0)
	require.NoError(t, err)
	require.Len(t, singles, 2)
	assert.Equal(t, "10:00", singles[0].Start.String())
	assert.Equal(t, "10:30", singles[1].Start.String())

	pairs, err := resolver.FindCandidates(context.Background(), provider.ID, window, 2, 0)
	require.NoError(t, err)
	require.Len(t, pairs, 1)
	assert.Equal(t, "10:00", pairs[0].Start.String())
}

func TestFindCandidatesEndOfDay(t *testing.T) {
	repo := NewMemoryRepository()
	provider := repo.AddProvider(Provider{Name: "Dr. Garcia", Location: "Room 101"})

	// Last slot of the day has no successor, so a two-unit visit cannot
	// start there.
	day := mustDate(t, "2025-06-03")
	addSlots(repo, provider.ID, day, mustTime(t, "16:30"))

	resolver := NewResolver(repo)
	window := DateWindow{From: day, Days: 14}

	got, err := resolver.FindCandidates(context.Background(), provider.ID, window, 2, 0)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestFindCandidatesOrderingAndLimit(t *testing.T) {
	repo := NewMemoryRepository()
	provider := repo.AddProvider(Provider{Name: "Dr. Garcia", Location: "Room 101"})

	day1 := mustDate(t, "2025-06-03")
	day2 := mustDate(t, "2025-06-04")
	addSlots(repo, provider.ID, day2, mustTime(t, "09:00"))
	addSlots(repo, provider.ID, day1, mustTime(t, "14:00"), mustTime(t, "09:00"))

	resolver := NewResolver(repo)
	window := DateWindow{From: day1, Days: 14}

	got, err := resolver.FindCandidates(context.Background(), provider.ID, window, 1, 0)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "09:00", got[0].Start.String())
	assert.True(t, got[0].Date.Equal(day1))
	assert.Equal(t, "14:00", got[1].Start.String())
	assert.True(t, got[2].Date.Equal(day2))

	limited, err := resolver.FindCandidates(context.Background(), provider.ID, window, 1, 2)
	require.NoError(t, err)
	assert.Len(t, limited, 2)
}

func TestFindCandidatesWindowExcludesOutsideDays(t *testing.T) {
	repo := NewMemoryRepository()
	provider := repo.AddProvider(Provider{Name: "Dr. Garcia", Location: "Room 101"})

	from := mustDate(t, "2025-06-03")
	addSlots(repo, provider.ID, from.AddDays(20), mustTime(t, "09:00"))

	resolver := NewResolver(repo)
	got, err := resolver.FindCandidates(context.Background(), provider.ID, DateWindow{From: from, Days: 14}, 1, 0)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestFindCandidatesRejectsZeroUnits(t *testing.T) {
	repo := NewMemoryRepository()
	resolver := NewResolver(repo)

	_, err := resolver.FindCandidates(context.Background(), uuid.New(), DateWindow{From: mustDate(t, "2025-06-03"), Days: 14}, 0, 0)
	assert.Error(t, err)
}
