package service

import (
	"context"
	"time"

	"coursehub/internal/ledger"
	"coursehub/internal/security"
)

// checkCode compares a supplied one-time code with the one embedded in a
// token. Every comparison counts against the token, so a code cannot be
// guessed by replaying the same token.
func checkCode(ctx context.Context, l ledger.Ledger, jti string, ttl time.Duration, maxAttempts int, expected, supplied string) error {
	n, err := l.Attempt(ctx, ledger.CodeAttemptsKey(jti), ttl)
	if err != nil {
		return err
	}
	if n > int64(maxAttempts) {
		return ErrTooManyAttempts
	}
	if !security.CodesEqual(expected, supplied) {
		return ErrInvalidCode
	}
	return nil
}
