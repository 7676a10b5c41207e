// Package ledger keeps short-lived markers about stateless tokens: which
// refresh tokens were already rotated, which access tokens were revoked at
// logout, which activation/reset tokens were redeemed, and how many code
// guesses a token has absorbed. Every entry expires on its own, so the set is
// bounded by the lifetime of the tokens it describes.
package ledger

import (
	"context"
	"time"
)

type Ledger interface {
	// Claim records key for ttl. It returns false when key is already held.
	Claim(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, key string) error
	Claimed(ctx context.Context, key string) (bool, error)
	// Attempt increments the counter stored at key and returns the new value.
	// The ttl applies from the first attempt.
	Attempt(ctx context.Context, key string, ttl time.Duration) (int64, error)
}

func RotatedRefreshKey(jti string) string { return "rt:rotated:" + jti }

func RevokedAccessKey(jti string) string { return "at:revoked:" + jti }

func UsedActivationKey(jti string) string { return "act:used:" + jti }

func UsedResetKey(jti string) string { return "rst:used:" + jti }

func CodeAttemptsKey(jti string) string { return "code:tries:" + jti }
