package booking

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	redisclient "github.com/careline/scheduling-agent/internal/redis"
)

// stubLocker records lock usage and optionally fails acquisition.
type stubLocker struct {
	acquireErr error
	calls      int
	lastDay    string
}

func (l *stubLocker) WithScheduleLock(ctx context.Context, providerID uuid.UUID, day string, fn func(ctx context.Context) error) error {
	l.calls++
	l.lastDay = day
	if l.acquireErr != nil {
		return l.acquireErr
	}
	return fn(ctx)
}

func serviceFixture(t *testing.T) (*MemoryRepository, *Provider, *Patient, Date) {
	t.Helper()
	repo := NewMemoryRepository()
	provider := repo.AddProvider(Provider{Name: "Dr. Garcia", Location: "Room 101"})
	patient := repo.AddPatient(Patient{Name: "Jane Doe"})
	day := mustDate(t, "2025-06-03")
	addSlots(repo, provider.ID, day, mustTime(t, "09:00"), mustTime(t, "09:30"))
	return repo, provider, patient, day
}

func TestServiceReserveSuccessLogsEvent(t *testing.T) {
	repo, provider, patient, day := serviceFixture(t)
	locker := &stubLocker{}
	svc := NewService(repo, repo, locker, nil)

	appt, err := svc.Reserve(context.Background(), Reservation{
		ProviderID: provider.ID, PatientID: patient.ID,
		Date: day, Start: mustTime(t, "09:00"), Units: 2,
	})
	require.NoError(t, err)
	require.NotNil(t, appt)
	assert.Equal(t, 1, locker.calls)
	assert.Equal(t, day.String(), locker.lastDay, "lock covers the provider-day")

	events := repo.Events()
	require.Len(t, events, 1)
	assert.Equal(t, EventBookingConfirmed, events[0].EventType)
	require.NotNil(t, events[0].AppointmentID)
	assert.Equal(t, appt.ID, *events[0].AppointmentID)
}

func TestServiceReserveConflictLogsEvent(t *testing.T) {
	repo, provider, patient, day := serviceFixture(t)
	svc := NewService(repo, repo, &stubLocker{}, nil)

	ctx := context.Background()
	_, err := svc.Reserve(ctx, Reservation{
		ProviderID: provider.ID, PatientID: patient.ID,
		Date: day, Start: mustTime(t, "09:00"), Units: 2,
	})
	require.NoError(t, err)

	_, err = svc.Reserve(ctx, Reservation{
		ProviderID: provider.ID, PatientID: patient.ID,
		Date: day, Start: mustTime(t, "09:30"), Units: 1,
	})
	require.ErrorIs(t, err, ErrSlotConflict)

	events := repo.Events()
	require.Len(t, events, 2)
	assert.Equal(t, EventBookingConflict, events[1].EventType)
	assert.Nil(t, events[1].AppointmentID)
}

func TestServiceReserveLockBusy(t *testing.T) {
	repo, provider, patient, day := serviceFixture(t)
	locker := &stubLocker{acquireErr: redisclient.ErrLockNotAcquired}
	svc := NewService(repo, repo, locker, nil)

	_, err := svc.Reserve(context.Background(), Reservation{
		ProviderID: provider.ID, PatientID: patient.ID,
		Date: day, Start: mustTime(t, "09:00"), Units: 1,
	})
	assert.ErrorIs(t, err, ErrScheduleBusy)

	remaining, err := repo.ListAvailable(context.Background(), provider.ID, DateWindow{From: day, Days: 1})
	require.NoError(t, err)
	assert.Len(t, remaining, 2, "nothing was flipped")
}

func TestServiceReserveWithoutLocker(t *testing.T) {
	repo, provider, patient, day := serviceFixture(t)
	svc := NewService(repo, repo, nil, nil)

	appt, err := svc.Reserve(context.Background(), Reservation{
		ProviderID: provider.ID, PatientID: patient.ID,
		Date: day, Start: mustTime(t, "09:00"), Units: 1,
	})
	require.NoError(t, err)
	assert.NotNil(t, appt)
}

func TestServiceReserveRejectsZeroUnits(t *testing.T) {
	repo, provider, patient, day := serviceFixture(t)
	svc := NewService(repo, repo, nil, nil)

	_, err := svc.Reserve(context.Background(), Reservation{
		ProviderID: provider.ID, PatientID: patient.ID,
		Date: day, Start: mustTime(t, "09:00"), Units: 0,
	})
	assert.Error(t, err)
}

func TestUpcomingAppointmentsAndReminderEvents(t *testing.T) {
	repo, provider, patient, day := serviceFixture(t)
	svc := NewService(repo, repo, nil, nil)

	ctx := context.Background()
	appt, err := svc.Reserve(ctx, Reservation{
		ProviderID: provider.ID, PatientID: patient.ID,
		Date: day, Start: mustTime(t, "09:00"), Units: 1,
	})
	require.NoError(t, err)

	now := day.Time().Add(-18 * time.Hour) // evening before
	upcoming, err := svc.UpcomingAppointments(ctx, now, 24*time.Hour)
	require.NoError(t, err)
	require.Len(t, upcoming, 1)
	assert.Equal(t, appt.ID, upcoming[0].ID)

	svc.MarkReminderSent(ctx, appt.ID, 1)
	events := repo.Events()
	last := events[len(events)-1]
	assert.Equal(t, EventReminderSent, last.EventType)
	require.NotNil(t, last.AppointmentID)
	assert.Equal(t, appt.ID, *last.AppointmentID)
}

func TestReminderAlreadySentDistinguishesKinds(t *testing.T) {
	repo, provider, patient, day := serviceFixture(t)
	svc := NewService(repo, repo, nil, nil)

	ctx := context.Background()
	appt, err := svc.Reserve(ctx, Reservation{
		ProviderID: provider.ID, PatientID: patient.ID,
		Date: day, Start: mustTime(t, "09:00"), Units: 1,
	})
	require.NoError(t, err)

	already, err := svc.ReminderAlreadySent(ctx, appt.ID, 1)
	require.NoError(t, err)
	assert.False(t, already, "nothing recorded yet")

	svc.MarkReminderSent(ctx, appt.ID, 1)

	already, err = svc.ReminderAlreadySent(ctx, appt.ID, 1)
	require.NoError(t, err)
	assert.True(t, already)

	// A different kind for the same appointment is still due.
	already, err = svc.ReminderAlreadySent(ctx, appt.ID, 2)
	require.NoError(t, err)
	assert.False(t, already)

	// Other appointments are unaffected.
	already, err = svc.ReminderAlreadySent(ctx, uuid.New(), 1)
	require.NoError(t, err)
	assert.False(t, already)
}
