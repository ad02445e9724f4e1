package booking

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReserveFlipsWholeFootprint(t *testing.T) {
	repo := NewMemoryRepository()
	provider := repo.AddProvider(Provider{Name: "Dr. Garcia", Location: "Room 101"})
	patient := repo.AddPatient(Patient{Name: "Jane Doe"})

	day := mustDate(t, "2025-06-03")
	addSlots(repo, provider.ID, day,
		mustTime(t, "09:00"), mustTime(t, "09:30"), mustTime(t, "10:00"))

	appt, err := repo.Reserve(context.Background(), Reservation{
		ProviderID: provider.ID,
		PatientID:  patient.ID,
		Date:       day,
		Start:      mustTime(t, "09:00"),
		Units:      2,
	})
	require.NoError(t, err)
	assert.Equal(t, StatusConfirmed, appt.Status)
	assert.Equal(t, "Room 101", appt.Location)
	assert.Equal(t, 60, appt.Duration.Minutes())

	remaining, err := repo.ListAvailable(context.Background(), provider.ID, DateWindow{From: day, Days: 1})
	require.NoError(t, err)
	require.Len(t, remaining, 1, "both units of the hour are consumed")
	assert.Equal(t, "10:00", remaining[0].Start.String())

	updated, err := repo.GetPatientByID(context.Background(), patient.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, updated.VisitCount, "booking promotes the patient to returning")
}

func TestReserveConflictOnOverlap(t *testing.T) {
	repo := NewMemoryRepository()
	provider := repo.AddProvider(Provider{Name: "Dr. Garcia", Location: "Room 101"})
	first := repo.AddPatient(Patient{Name: "Jane Doe"})
	second := repo.AddPatient(Patient{Name: "Robert Chen", VisitCount: 3})

	day := mustDate(t, "2025-06-03")
	addSlots(repo, provider.ID, day, mustTime(t, "09:00"), mustTime(t, "09:30"))

	_, err := repo.Reserve(context.Background(), Reservation{
		ProviderID: provider.ID, PatientID: first.ID,
		Date: day, Start: mustTime(t, "09:00"), Units: 2,
	})
	require.NoError(t, err)

	// A 30-minute visit at 09:30 overlaps the consumed footprint.
	_, err = repo.Reserve(context.Background(), Reservation{
		ProviderID: provider.ID, PatientID: second.ID,
		Date: day, Start: mustTime(t, "09:30"), Units: 1,
	})
	assert.ErrorIs(t, err, ErrSlotConflict)
}

func TestReservePartialFootprintNeverCommits(t *testing.T) {
	repo := NewMemoryRepository()
	provider := repo.AddProvider(Provider{Name: "Dr. Garcia", Location: "Room 101"})
	patient := repo.AddPatient(Patient{Name: "Jane Doe"})

	// Only the first half of the hour is open.
	day := mustDate(t, "2025-06-03")
	addSlots(repo, provider.ID, day, mustTime(t, "09:00"))

	_, err := repo.Reserve(context.Background(), Reservation{
		ProviderID: provider.ID, PatientID: patient.ID,
		Date: day, Start: mustTime(t, "09:00"), Units: 2,
	})
	require.ErrorIs(t, err, ErrSlotConflict)

	remaining, err := repo.ListAvailable(context.Background(), provider.ID, DateWindow{From: day, Days: 1})
	require.NoError(t, err)
	assert.Len(t, remaining, 1, "the failed reservation left the open unit untouched")
}

func TestReserveUnknownProvider(t *testing.T) {
	repo := NewMemoryRepository()
	patient := repo.AddPatient(Patient{Name: "Jane Doe"})

	_, err := repo.Reserve(context.Background(), Reservation{
		ProviderID: uuid.New(), PatientID: patient.ID,
		Date: mustDate(t, "2025-06-03"), Start: mustTime(t, "09:00"), Units: 1,
	})
	assert.ErrorIs(t, err, ErrProviderNotFound)
}

func TestConcurrentReserveExactlyOneWins(t *testing.T) {
	repo := NewMemoryRepository()
	provider := repo.AddProvider(Provider{Name: "Dr. Garcia", Location: "Room 101"})

	day := mustDate(t, "2025-06-03")
	addSlots(repo, provider.ID, day, mustTime(t, "09:00"), mustTime(t, "09:30"))

	const racers = 16
	patients := make([]*Patient, racers)
	for i := range patients {
		patients[i] = repo.AddPatient(Patient{Name: "Racer"})
	}

	var wg sync.WaitGroup
	errs := make([]error, racers)
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = repo.Reserve(context.Background(), Reservation{
				ProviderID: provider.ID, PatientID: patients[i].ID,
				Date: day, Start: mustTime(t, "09:00"), Units: 2,
			})
		}(i)
	}
	wg.Wait()

	wins, conflicts := 0, 0
	for _, err := range errs {
		switch {
		case err == nil:
			wins++
		case errors.Is(err, ErrSlotConflict):
			conflicts++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, wins)
	assert.Equal(t, racers-1, conflicts)
}

func TestFindPatientMatching(t *testing.T) {
	repo := NewMemoryRepository()
	dob := mustDate(t, "1985-04-12")
	repo.AddPatient(Patient{Name: "Jane Doe", DOB: dob, Phone: "5551234567"})

	ctx := context.Background()

	found, err := repo.FindPatient(ctx, PatientQuery{Name: "jane"})
	require.NoError(t, err)
	assert.Equal(t, "Jane Doe", found.Name)

	found, err = repo.FindPatient(ctx, PatientQuery{Name: "Jane Doe", DOB: dob})
	require.NoError(t, err)
	assert.Equal(t, "Jane Doe", found.Name)

	_, err = repo.FindPatient(ctx, PatientQuery{Name: "Jane", Phone: "0000000000"})
	assert.ErrorIs(t, err, ErrPatientNotFound, "provided fields combine with AND")

	_, err = repo.FindPatient(ctx, PatientQuery{})
	assert.ErrorIs(t, err, ErrPatientNotFound, "an empty query matches nobody")
}

func TestListAppointmentsBetween(t *testing.T) {
	repo := NewMemoryRepository()
	provider := repo.AddProvider(Provider{Name: "Dr. Garcia", Location: "Room 101"})
	patient := repo.AddPatient(Patient{Name: "Jane Doe", Email: "jane@example.com"})

	d1 := mustDate(t, "2025-06-03")
	d2 := mustDate(t, "2025-06-05")
	addSlots(repo, provider.ID, d1, mustTime(t, "09:00"))
	addSlots(repo, provider.ID, d2, mustTime(t, "10:00"))

	ctx := context.Background()
	for _, res := range []Reservation{
		{ProviderID: provider.ID, PatientID: patient.ID, Date: d1, Start: mustTime(t, "09:00"), Units: 1},
		{ProviderID: provider.ID, PatientID: patient.ID, Date: d2, Start: mustTime(t, "10:00"), Units: 1},
	} {
		_, err := repo.Reserve(ctx, res)
		require.NoError(t, err)
	}

	within, err := repo.ListAppointmentsBetween(ctx, d1, d1.AddDays(1))
	require.NoError(t, err)
	require.Len(t, within, 1)
	assert.True(t, within[0].Date.Equal(d1))
	require.NotNil(t, within[0].Patient)
	assert.Equal(t, "jane@example.com", within[0].Patient.Email)
	require.NotNil(t, within[0].Provider)
	assert.Equal(t, "Dr. Garcia", within[0].Provider.Name)

	all, err := repo.ListAppointmentsBetween(ctx, d1, d2)
	require.NoError(t, err)
	assert.Len(t, all, 2, "range ends are inclusive")
}
