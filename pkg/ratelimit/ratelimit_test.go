package ratelimit

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLimiter(now *time.Time) *LocalRateLimiter {
	l := NewLocalRateLimiter(time.Minute)
	l.now = func() time.Time { return *now }
	return l
}

func TestLocalRateLimiterBurstAndRefill(t *testing.T) {
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	l := newTestLimiter(&now)

	limit := Limit{Rate: 2, Period: time.Second, Burst: 3}
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		res, err := l.Allow(ctx, "ip-1", limit)
		require.NoError(t, err)
		assert.True(t, res.Allowed, "request %d", i)
		assert.Equal(t, 2-i, res.Remaining)
	}

	res, err := l.Allow(ctx, "ip-1", limit)
	require.NoError(t, err)
	assert.False(t, res.Allowed)
	assert.Equal(t, 500*time.Millisecond, res.RetryAfter)
	assert.Equal(t, 1500*time.Millisecond, res.ResetAfter)

	// other keys have their own bucket
	res, err = l.Allow(ctx, "ip-2", limit)
	require.NoError(t, err)
	assert.True(t, res.Allowed)

	// a rejected request does not consume a token
	now = now.Add(500 * time.Millisecond)
	res, err = l.Allow(ctx, "ip-1", limit)
	require.NoError(t, err)
	assert.True(t, res.Allowed)
}

func TestLocalRateLimiterEvictsIdleKeys(t *testing.T) {
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	l := newTestLimiter(&now)
	limit := Limit{Rate: 1, Period: time.Second, Burst: 1}
	ctx := context.Background()

	for i := 0; i < 100; i++ {
		_, err := l.Allow(ctx, fmt.Sprintf("ip-%d", i), limit)
		require.NoError(t, err)
	}
	assert.Len(t, l.entries, 100)

	now = now.Add(30 * time.Second)
	_, err := l.Allow(ctx, "ip-active", limit)
	require.NoError(t, err)
	assert.Len(t, l.entries, 101)

	now = now.Add(45 * time.Second)
	_, err = l.Allow(ctx, "ip-new", limit)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"ip-active", "ip-new"}, keys(l))
}

func TestLocalRateLimiterResetsOnLimitChange(t *testing.T) {
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	l := newTestLimiter(&now)
	ctx := context.Background()

	res, err := l.Allow(ctx, "ip-1", Limit{Rate: 1, Period: time.Second, Burst: 1})
	require.NoError(t, err)
	assert.True(t, res.Allowed)

	res, err = l.Allow(ctx, "ip-1", Limit{Rate: 10, Period: time.Second, Burst: 5})
	require.NoError(t, err)
	assert.True(t, res.Allowed)
	assert.Equal(t, 4, res.Remaining)
}

func TestLocalRateLimiterRejectsInvalidLimit(t *testing.T) {
	_, err := NewLocalRateLimiter(0).Allow(context.Background(), "k", Limit{})
	assert.Error(t, err)
}

func keys(l *LocalRateLimiter) []string {
	out := make([]string, 0, len(l.entries))
	for k := range l.entries {
		out = append(out, k)
	}
	return out
}
