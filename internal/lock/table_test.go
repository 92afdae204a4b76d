package lock

import (
	"context"
	"testing"
	"time"

	"github.com/example/learnstats/internal/database/dbtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTableLease(t *testing.T) {
	db := dbtest.New(t)
	ctx := context.Background()
	locker := NewTable(db, time.Minute)

	lease, ok, err := locker.TryAcquire(ctx, "maintenance")
	require.NoError(t, err)
	require.True(t, ok)

	_, ok, err = locker.TryAcquire(ctx, "maintenance")
	require.NoError(t, err)
	assert.False(t, ok, "held lease must not be granted twice")

	other, ok, err := locker.TryAcquire(ctx, "other")
	require.NoError(t, err)
	assert.True(t, ok, "names are independent")
	require.NoError(t, other.Release(ctx))

	require.NoError(t, lease.Release(ctx))

	again, ok, err := locker.TryAcquire(ctx, "maintenance")
	require.NoError(t, err)
	assert.True(t, ok)
	require.NoError(t, again.Release(ctx))
}

func TestTableLeaseExpiry(t *testing.T) {
	db := dbtest.New(t)
	ctx := context.Background()
	now := time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)
	locker := NewTable(db, time.Minute)
	locker.now = func() time.Time { return now }

	stale, ok, err := locker.TryAcquire(ctx, "maintenance")
	require.NoError(t, err)
	require.True(t, ok)

	now = now.Add(30 * time.Second)
	_, ok, err = locker.TryAcquire(ctx, "maintenance")
	require.NoError(t, err)
	assert.False(t, ok)

	now = now.Add(2 * time.Minute)
	fresh, ok, err := locker.TryAcquire(ctx, "maintenance")
	require.NoError(t, err)
	require.True(t, ok, "expired lease can be taken over")

	// the stale holder must not drop the new owner's row
	require.NoError(t, stale.Release(ctx))
	_, ok, err = locker.TryAcquire(ctx, "maintenance")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, fresh.Release(ctx))
}

func TestKey(t *testing.T) {
	assert.Equal(t, Key("learnstats:analytics-maintenance"), Key("learnstats:analytics-maintenance"))
	assert.NotEqual(t, Key("a"), Key("b"))
}
