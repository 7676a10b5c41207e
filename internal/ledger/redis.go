package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

type RedisLedger struct {
	client *redis.Client
	prefix string
}

func NewRedisLedger(client *redis.Client, prefix string) *RedisLedger {
	return &RedisLedger{client: client, prefix: prefix}
}

func (l *RedisLedger) Claim(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	ok, err := l.client.SetNX(ctx, l.prefix+key, "1", minTTL(ttl)).Result()
	if err != nil {
		return false, fmt.Errorf("ledger claim: %w", err)
	}
	return ok, nil
}

func (l *RedisLedger) Release(ctx context.Context, key string) error {
	if err := l.client.Del(ctx, l.prefix+key).Err(); err != nil {
		return fmt.Errorf("ledger release: %w", err)
	}
	return nil
}

func (l *RedisLedger) Claimed(ctx context.Context, key string) (bool, error) {
	n, err := l.client.Exists(ctx, l.prefix+key).Result()
	if err != nil {
		return false, fmt.Errorf("ledger exists: %w", err)
	}
	return n > 0, nil
}

// attemptScript sets the window only on the first hit so later attempts do
// not extend it.
var attemptScript = redis.NewScript(`
local n = redis.call("INCR", KEYS[1])
if n == 1 then
	redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
return n
`)

func (l *RedisLedger) Attempt(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	n, err := attemptScript.Run(ctx, l.client, []string{l.prefix + key}, minTTL(ttl).Milliseconds()).Int64()
	if err != nil {
		return 0, fmt.Errorf("ledger attempt: %w", err)
	}
	return n, nil
}

// Redis rejects zero expirations on SET, and a token with under a millisecond
// left still deserves a marker.
func minTTL(ttl time.Duration) time.Duration {
	if ttl < time.Millisecond {
		return time.Millisecond
	}
	return ttl
}
