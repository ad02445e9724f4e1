package redisclient

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testClient(t *testing.T) *redis.Client {
	t.Helper()
	mr := miniredis.RunT(t)
	return redis.NewClient(&redis.Options{Addr: mr.Addr()})
}

func TestWithScheduleLockRunsFn(t *testing.T) {
	client := testClient(t)
	locker := NewRedisScheduleLocker(client, 5*time.Second)

	ran := false
	err := locker.WithScheduleLock(context.Background(), uuid.New(), "2025-06-03", func(ctx context.Context) error {
		ran = true
		return nil
	})
	require.NoError(t, err)
	assert.True(t, ran)
}

func TestWithScheduleLockContention(t *testing.T) {
	client := testClient(t)
	locker := NewRedisScheduleLocker(client, 5*time.Second)

	providerID := uuid.New()
	day := "2025-06-03"

	err := locker.WithScheduleLock(context.Background(), providerID, day, func(ctx context.Context) error {
		// A second acquisition of the same provider-day must fail while held.
		inner := locker.WithScheduleLock(ctx, providerID, day, func(ctx context.Context) error {
			t.Fatal("inner critical section must not run")
			return nil
		})
		assert.ErrorIs(t, inner, ErrLockNotAcquired)
		return nil
	})
	require.NoError(t, err)

	// Released on return, so the next acquisition succeeds.
	err = locker.WithScheduleLock(context.Background(), providerID, day, func(ctx context.Context) error {
		return nil
	})
	assert.NoError(t, err)
}

func TestWithScheduleLockDifferentDaysIndependent(t *testing.T) {
	client := testClient(t)
	locker := NewRedisScheduleLocker(client, 5*time.Second)

	providerID := uuid.New()

	err := locker.WithScheduleLock(context.Background(), providerID, "2025-06-03", func(ctx context.Context) error {
		return locker.WithScheduleLock(ctx, providerID, "2025-06-04", func(ctx context.Context) error {
			return nil
		})
	})
	assert.NoError(t, err)
}

func TestWithScheduleLockPropagatesFnError(t *testing.T) {
	client := testClient(t)
	locker := NewRedisScheduleLocker(client, 5*time.Second)

	wantErr := assert.AnError
	err := locker.WithScheduleLock(context.Background(), uuid.New(), "2025-06-03", func(ctx context.Context) error {
		return wantErr
	})
	assert.ErrorIs(t, err, wantErr)
}
