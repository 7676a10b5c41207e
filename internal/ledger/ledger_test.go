package ledger

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type ledgerCase struct {
	name    string
	ledger  Ledger
	advance func(time.Duration)
}

func newLedgers(t *testing.T) []ledgerCase {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	var mu sync.Mutex
	memory := NewMemoryLedger(func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return now
	})

	return []ledgerCase{
		{
			name:    "redis",
			ledger:  NewRedisLedger(client, "test:"),
			advance: mr.FastForward,
		},
		{
			name:   "memory",
			ledger: memory,
			advance: func(d time.Duration) {
				mu.Lock()
				now = now.Add(d)
				mu.Unlock()
			},
		},
	}
}

func TestClaimIsExclusiveUntilExpiry(t *testing.T) {
	for _, tc := range newLedgers(t) {
		t.Run(tc.name, func(t *testing.T) {
			ctx := context.Background()

			ok, err := tc.ledger.Claim(ctx, "k", time.Minute)
			require.NoError(t, err)
			assert.True(t, ok)

			ok, err = tc.ledger.Claim(ctx, "k", time.Minute)
			require.NoError(t, err)
			assert.False(t, ok)

			held, err := tc.ledger.Claimed(ctx, "k")
			require.NoError(t, err)
			assert.True(t, held)

			tc.advance(61 * time.Second)

			held, err = tc.ledger.Claimed(ctx, "k")
			require.NoError(t, err)
			assert.False(t, held)

			ok, err = tc.ledger.Claim(ctx, "k", time.Minute)
			require.NoError(t, err)
			assert.True(t, ok)
		})
	}
}

func TestReleaseAllowsReclaim(t *testing.T) {
	for _, tc := range newLedgers(t) {
		t.Run(tc.name, func(t *testing.T) {
			ctx := context.Background()

			_, err := tc.ledger.Claim(ctx, "k", time.Minute)
			require.NoError(t, err)
			require.NoError(t, tc.ledger.Release(ctx, "k"))

			ok, err := tc.ledger.Claim(ctx, "k", time.Minute)
			require.NoError(t, err)
			assert.True(t, ok)
		})
	}
}

func TestAttemptCountsWithinWindow(t *testing.T) {
	for _, tc := range newLedgers(t) {
		t.Run(tc.name, func(t *testing.T) {
			ctx := context.Background()

			for want := int64(1); want <= 3; want++ {
				n, err := tc.ledger.Attempt(ctx, "tries", time.Minute)
				require.NoError(t, err)
				assert.Equal(t, want, n)
			}

			tc.advance(2 * time.Minute)

			n, err := tc.ledger.Attempt(ctx, "tries", time.Minute)
			require.NoError(t, err)
			assert.Equal(t, int64(1), n)
		})
	}
}

func TestRedisAttemptSetsWindowOnFirstHit(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	l := NewRedisLedger(client, "test:")
	ctx := context.Background()

	n, err := l.Attempt(ctx, "tries", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.Equal(t, time.Minute, mr.TTL("test:tries"))

	mr.FastForward(30 * time.Second)
	n, err = l.Attempt(ctx, "tries", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.Equal(t, 30*time.Second, mr.TTL("test:tries"))
}

func TestConcurrentClaimHasSingleWinner(t *testing.T) {
	for _, tc := range newLedgers(t) {
		t.Run(tc.name, func(t *testing.T) {
			var wins atomic.Int32
			var wg sync.WaitGroup
			for i := 0; i < 16; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					ok, err := tc.ledger.Claim(context.Background(), "race", time.Minute)
					if err == nil && ok {
						wins.Add(1)
					}
				}()
			}
			wg.Wait()
			assert.Equal(t, int32(1), wins.Load())
		})
	}
}

func TestMemorySweep(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	l := NewMemoryLedger(func() time.Time { return now })
	ctx := context.Background()

	_, _ = l.Claim(ctx, "short", time.Second)
	_, _ = l.Claim(ctx, "long", time.Hour)
	require.Equal(t, 2, l.Len())

	now = now.Add(time.Minute)
	assert.Equal(t, 1, l.Sweep())
	assert.Equal(t, 1, l.Len())
}
