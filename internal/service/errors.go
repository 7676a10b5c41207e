package service

import (
	"errors"
	"fmt"

	"coursehub/internal/security"
)

var (
	// ErrInvalidCredentials never says whether the email or the password was wrong.
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrNotVerified        = fmt.Errorf("%w: account not verified", ErrInvalidCredentials)

	ErrInvalidCode     = errors.New("invalid code")
	ErrTokenUsed       = fmt.Errorf("%w: token already redeemed", ErrInvalidCode)
	ErrTooManyAttempts = errors.New("too many code attempts")

	ErrExpired        = errors.New("token expired")
	ErrMalformed      = errors.New("token malformed")
	ErrAlreadyRotated = errors.New("refresh token already rotated")

	ErrUnauthenticated = errors.New("unauthenticated")
	ErrForbidden       = errors.New("forbidden")

	ErrAccountNotFound = errors.New("account not found")
	ErrEmailTaken      = errors.New("email already registered")
	ErrSelfRoleChange  = errors.New("cannot change own role")
	ErrInvalidRole     = errors.New("invalid role")
	ErrInvalidInput    = errors.New("invalid input")
)

func tokenError(err error) error {
	switch {
	case errors.Is(err, security.ErrTokenExpired):
		return ErrExpired
	case errors.Is(err, security.ErrTokenMalformed):
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	default:
		return err
	}
}
