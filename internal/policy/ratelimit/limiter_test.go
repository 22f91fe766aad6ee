package ratelimit

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLimiter_EnforcesWindow(t *testing.T) {
	t.Parallel()

	// 10 requests/second with burst 1: one token every 100ms.
	l := New(Config{Requests: 10, Window: time.Second})
	ctx := context.Background()

	require.NoError(t, l.Wait(ctx))

	start := time.Now()
	require.NoError(t, l.Wait(ctx))
	require.GreaterOrEqual(t, time.Since(start), 80*time.Millisecond)
}

func TestLimiter_ConcurrentCallersSerialize(t *testing.T) {
	t.Parallel()

	l := New(Config{Requests: 20, Window: time.Second})
	ctx := context.Background()

	const calls = 5
	var wg sync.WaitGroup
	start := time.Now()
	for i := 0; i < calls; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			require.NoError(t, l.Wait(ctx))
		}()
	}
	wg.Wait()

	// 5 calls at 20 rps with burst 1 need at least 4 * 50ms of spacing.
	require.GreaterOrEqual(t, time.Since(start), 150*time.Millisecond)
}

func TestLimiter_UnlimitedWhenUnconfigured(t *testing.T) {
	t.Parallel()

	l := New(Config{})
	ctx := context.Background()
	start := time.Now()
	for i := 0; i < 100; i++ {
		require.NoError(t, l.Wait(ctx))
	}
	require.Less(t, time.Since(start), 100*time.Millisecond)
}

func TestLimiter_WaitHonorsContext(t *testing.T) {
	t.Parallel()

	l := New(Config{Requests: 1, Window: time.Hour})
	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, l.Wait(ctx))

	cancel()
	require.Error(t, l.Wait(ctx))
}
