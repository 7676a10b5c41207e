package queue

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingHandler struct {
	mu   sync.Mutex
	seen []string
	fail map[string]bool
}

func (h *recordingHandler) Handle(_ context.Context, msg redis.XMessage) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	recipient, _ := msg.Values["recipient"].(string)
	h.seen = append(h.seen, recipient)
	if h.fail[recipient] {
		return errors.New("smtp refused")
	}
	return nil
}

func newTestConsumer(t *testing.T, handler MessageHandler) (*Consumer, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	c := NewConsumer(client, "mail:outbound", "mailers", "worker-1", time.Minute, zerolog.Nop(), handler)
	c.block = 10 * time.Millisecond
	return c, client
}

func TestEnsureGroupIsIdempotent(t *testing.T) {
	c, _ := newTestConsumer(t, &recordingHandler{})
	ctx := context.Background()

	require.NoError(t, c.EnsureGroup(ctx))
	require.NoError(t, c.EnsureGroup(ctx))
}

func TestReadAcksHandledMessages(t *testing.T) {
	handler := &recordingHandler{fail: map[string]bool{"bounce@example.com": true}}
	c, client := newTestConsumer(t, handler)
	ctx := context.Background()
	require.NoError(t, c.EnsureGroup(ctx))

	for _, recipient := range []string{"alice@example.com", "bounce@example.com", "bob@example.com"} {
		require.NoError(t, client.XAdd(ctx, &redis.XAddArgs{
			Stream: "mail:outbound",
			Values: map[string]any{"recipient": recipient, "template": "activation"},
		}).Err())
	}

	require.NoError(t, c.read(ctx))
	assert.Equal(t, []string{"alice@example.com", "bounce@example.com", "bob@example.com"}, handler.seen)

	pending, err := client.XPending(ctx, "mail:outbound", "mailers").Result()
	require.NoError(t, err)
	assert.Equal(t, int64(1), pending.Count)

	// Nothing new: the failed message is only picked up again by claimStalled.
	require.NoError(t, c.read(ctx))
	assert.Len(t, handler.seen, 3)
}

func TestClaimStalledDropsAfterMaxDeliveries(t *testing.T) {
	handler := &recordingHandler{fail: map[string]bool{"bounce@example.com": true}}
	c, client := newTestConsumer(t, handler)
	c.claimInterval = time.Millisecond
	c.WithMaxDeliveries(2)
	ctx := context.Background()
	require.NoError(t, c.EnsureGroup(ctx))

	require.NoError(t, client.XAdd(ctx, &redis.XAddArgs{
		Stream: "mail:outbound",
		Values: map[string]any{"recipient": "bounce@example.com", "template": "activation"},
	}).Err())

	require.NoError(t, c.read(ctx))
	time.Sleep(5 * time.Millisecond)
	require.NoError(t, c.claimStalled(ctx))
	assert.Len(t, handler.seen, 2)

	time.Sleep(5 * time.Millisecond)
	require.NoError(t, c.claimStalled(ctx))
	assert.Len(t, handler.seen, 2)

	pending, err := client.XPending(ctx, "mail:outbound", "mailers").Result()
	require.NoError(t, err)
	assert.Equal(t, int64(0), pending.Count)
}

func TestStartStopsOnCancel(t *testing.T) {
	c, _ := newTestConsumer(t, &recordingHandler{})
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- c.Start(ctx) }()

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("consumer did not stop")
	}
}
