package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"coursehub/internal/ledger"
	"coursehub/internal/models"
	"coursehub/internal/repository"
	"coursehub/internal/security"
)

type AuthResult struct {
	Tokens  security.TokenPair
	Account models.Account
}

// SessionService verifies credentials and issues, rotates and revokes
// access/refresh token pairs.
type SessionService struct {
	accounts AccountStore
	tokens   *security.Tokens
	hasher   security.PasswordHasher
	ledger   ledger.Ledger
	log      zerolog.Logger

	// Verified against when the email is unknown so both failure paths cost one hash.
	decoyHash []byte
}

func NewSessionService(
	accounts AccountStore,
	tokens *security.Tokens,
	hasher security.PasswordHasher,
	l ledger.Ledger,
	log zerolog.Logger,
) *SessionService {
	decoy, err := hasher.Hash("decoy-password-for-unknown-accounts")
	if err != nil {
		log.Warn().Err(err).Msg("decoy hash unavailable")
	}
	return &SessionService{
		accounts:  accounts,
		tokens:    tokens,
		hasher:    hasher,
		ledger:    l,
		log:       log,
		decoyHash: decoy,
	}
}

func (s *SessionService) Login(ctx context.Context, email string, password string) (AuthResult, error) {
	account, err := s.accounts.FindByEmail(ctx, models.NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, repository.ErrAccountNotFound) {
			_, _ = s.hasher.Verify(password, s.decoyHash)
			return AuthResult{}, ErrInvalidCredentials
		}
		return AuthResult{}, err
	}

	ok, err := s.hasher.Verify(password, account.PasswordHash)
	if err != nil {
		s.log.Warn().Err(err).Str("account_id", account.ID).Msg("stored password hash unreadable")
		return AuthResult{}, ErrInvalidCredentials
	}
	if !ok {
		return AuthResult{}, ErrInvalidCredentials
	}
	if !account.Verified {
		return AuthResult{}, ErrNotVerified
	}

	return s.Issue(account)
}

// Issue mints a fresh pair for an account that has already been verified by
// some other means (password, activation, identity provider).
func (s *SessionService) Issue(account models.Account) (AuthResult, error) {
	pair, err := s.tokens.IssuePair(account.ID, account.Role)
	if err != nil {
		return AuthResult{}, err
	}
	return AuthResult{Tokens: pair, Account: account}, nil
}

// Refresh rotates a refresh token. The presented token's id is claimed in
// the ledger before anything is minted, so of several concurrent calls with
// the same token exactly one succeeds and the rest get ErrAlreadyRotated.
func (s *SessionService) Refresh(ctx context.Context, refreshToken string) (AuthResult, error) {
	claims, err := s.tokens.ParseRefresh(refreshToken)
	if err != nil {
		return AuthResult{}, tokenError(err)
	}

	claimed, err := s.ledger.Claim(ctx, ledger.RotatedRefreshKey(claims.ID), s.tokens.Remaining(claims.RegisteredClaims))
	if err != nil {
		return AuthResult{}, fmt.Errorf("rotate refresh token: %w", err)
	}
	if !claimed {
		s.log.Warn().
			Str("account_id", claims.AccountID).
			Str("jti", claims.ID).
			Msg("refresh token reused after rotation")
		return AuthResult{}, ErrAlreadyRotated
	}

	account, err := s.accounts.GetByID(ctx, claims.AccountID)
	if err != nil {
		if errors.Is(err, repository.ErrAccountNotFound) {
			return AuthResult{}, ErrUnauthenticated
		}
		s.releaseRotation(ctx, claims.ID)
		return AuthResult{}, err
	}
	if !account.Verified {
		return AuthResult{}, ErrUnauthenticated
	}

	result, err := s.Issue(account)
	if err != nil {
		s.releaseRotation(ctx, claims.ID)
		return AuthResult{}, err
	}
	return result, nil
}

// releaseRotation hands a refresh token back after a failure that was not the
// client's fault, so a retry with the same token can still rotate.
func (s *SessionService) releaseRotation(ctx context.Context, jti string) {
	if err := s.ledger.Release(ctx, ledger.RotatedRefreshKey(jti)); err != nil {
		s.log.Error().Err(err).Str("jti", jti).Msg("release refresh rotation failed")
	}
}

// Logout retires whatever tokens the client still holds. Tokens that no
// longer verify are already useless and are skipped.
func (s *SessionService) Logout(ctx context.Context, accessToken string, refreshToken string) error {
	var errs []error

	if accessToken != "" {
		if claims, err := s.tokens.ParseAccess(accessToken); err == nil {
			if _, err := s.ledger.Claim(ctx, ledger.RevokedAccessKey(claims.ID), s.tokens.Remaining(claims.RegisteredClaims)); err != nil {
				errs = append(errs, fmt.Errorf("revoke access token: %w", err))
			}
		}
	}
	if refreshToken != "" {
		if claims, err := s.tokens.ParseRefresh(refreshToken); err == nil {
			if _, err := s.ledger.Claim(ctx, ledger.RotatedRefreshKey(claims.ID), s.tokens.Remaining(claims.RegisteredClaims)); err != nil {
				errs = append(errs, fmt.Errorf("retire refresh token: %w", err))
			}
		}
	}

	return errors.Join(errs...)
}

// Authenticate resolves an access token to the account it was issued for.
// Any token problem is reported as ErrUnauthenticated; only infrastructure
// failures come back as other errors.
func (s *SessionService) Authenticate(ctx context.Context, accessToken string) (models.Account, error) {
	if accessToken == "" {
		return models.Account{}, ErrUnauthenticated
	}

	claims, err := s.tokens.ParseAccess(accessToken)
	if err != nil {
		return models.Account{}, fmt.Errorf("%w: %w", ErrUnauthenticated, tokenError(err))
	}

	revoked, err := s.ledger.Claimed(ctx, ledger.RevokedAccessKey(claims.ID))
	if err != nil {
		return models.Account{}, fmt.Errorf("check revocation: %w", err)
	}
	if revoked {
		return models.Account{}, fmt.Errorf("%w: token revoked", ErrUnauthenticated)
	}

	account, err := s.accounts.GetByID(ctx, claims.AccountID)
	if err != nil {
		if errors.Is(err, repository.ErrAccountNotFound) {
			return models.Account{}, ErrUnauthenticated
		}
		return models.Account{}, err
	}
	if !account.Verified {
		return models.Account{}, ErrUnauthenticated
	}
	return account, nil
}
