package health

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/albapepper/scoracle-tickets/internal/testutil"
)

func TestStale(t *testing.T) {
	t.Parallel()

	now := time.Date(2024, 8, 1, 12, 0, 0, 0, time.UTC)
	assert.True(t, Stale(nil, now, time.Hour))
	assert.False(t, Stale(&CycleResult{ExecutedAt: now.Add(-30 * time.Minute)}, now, time.Hour))
	assert.True(t, Stale(&CycleResult{ExecutedAt: now.Add(-2 * time.Hour)}, now, time.Hour))
}

func TestStore(t *testing.T) {
	pool := testutil.NewTestPool(t)
	testutil.Migrate(t, pool)
	store := NewStore(pool)
	ctx := context.Background()

	none, err := store.Latest(ctx, "")
	require.NoError(t, err)
	assert.Nil(t, none)

	base := time.Date(2024, 8, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, store.RecordCycleResult(ctx, CycleResult{
		ExecutedAt: base, TicketsFound: 4, Status: CycleSuccess, DurationMs: 1200,
	}))
	require.NoError(t, store.RecordCycleResult(ctx, CycleResult{
		ExecutedAt: base.Add(time.Hour), Status: CycleError, DurationMs: 30, ErrorDetails: "fetch tickets: timeout",
	}))

	latest, err := store.Latest(ctx, "")
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, CycleError, latest.Status)
	assert.Equal(t, 0, latest.TicketsFound)
	assert.Equal(t, "fetch tickets: timeout", latest.ErrorDetails)

	ok, err := store.Latest(ctx, CycleSuccess)
	require.NoError(t, err)
	require.NotNil(t, ok)
	assert.Equal(t, 4, ok.TicketsFound)
	assert.True(t, ok.ExecutedAt.Equal(base))

	n, err := store.DeleteOlderThan(ctx, base.Add(30*time.Minute))
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
}
