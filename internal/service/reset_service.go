package service

import (
	"context"
	"errors"
	"net/url"
	"strings"

	"github.com/rs/zerolog"

	"coursehub/internal/config"
	"coursehub/internal/ledger"
	"coursehub/internal/mail"
	"coursehub/internal/models"
	"coursehub/internal/repository"
	"coursehub/internal/security"
)

type ResetService struct {
	accounts AccountStore
	tokens   *security.Tokens
	hasher   security.PasswordHasher
	ledger   ledger.Ledger
	mailer   *AsyncMailer
	cfg      config.SecurityConfig
	log      zerolog.Logger
}

func NewResetService(
	accounts AccountStore,
	tokens *security.Tokens,
	hasher security.PasswordHasher,
	l ledger.Ledger,
	mailer *AsyncMailer,
	cfg config.SecurityConfig,
	log zerolog.Logger,
) *ResetService {
	return &ResetService{
		accounts: accounts,
		tokens:   tokens,
		hasher:   hasher,
		ledger:   l,
		mailer:   mailer,
		cfg:      cfg,
		log:      log,
	}
}

// RequestReset mails a reset token and code when the account exists. The
// caller sees the same outcome either way, and the token is never returned.
func (s *ResetService) RequestReset(ctx context.Context, email string) error {
	account, err := s.accounts.FindByEmail(ctx, models.NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, repository.ErrAccountNotFound) {
			s.log.Debug().Msg("password reset requested for unknown email")
			return nil
		}
		return err
	}

	code, err := security.GenerateNumericCode(s.cfg.CodeLength)
	if err != nil {
		return err
	}
	issued, err := s.tokens.IssueReset(account.Snapshot(), code)
	if err != nil {
		return err
	}

	s.mailer.Send(account.Email, mail.TemplatePasswordReset, map[string]string{
		"name":      account.DisplayName,
		"code":      code,
		"token":     issued.Value,
		"link":      s.resetLink(issued.Value),
		"expiresIn": s.cfg.ResetTTL.String(),
	})

	s.log.Info().Str("account_id", account.ID).Str("jti", issued.ID).Msg("password reset issued")
	return nil
}

func (s *ResetService) resetLink(token string) string {
	sep := "?"
	if strings.Contains(s.cfg.ResetURL, "?") {
		sep = "&"
	}
	return s.cfg.ResetURL + sep + "token=" + url.QueryEscape(token)
}

func (s *ResetService) ResetPassword(ctx context.Context, token string, code string, newPassword string) error {
	if newPassword == "" {
		return ErrInvalidInput
	}

	claims, err := s.tokens.ParseReset(token)
	if err != nil {
		return tokenError(err)
	}

	ttl := s.tokens.Remaining(claims.RegisteredClaims)
	if err := checkCode(ctx, s.ledger, claims.ID, ttl, s.cfg.MaxCodeAttempts, claims.Code, code); err != nil {
		return err
	}

	usedKey := ledger.UsedResetKey(claims.ID)
	claimed, err := s.ledger.Claim(ctx, usedKey, ttl)
	if err != nil {
		return err
	}
	if !claimed {
		return ErrTokenUsed
	}

	if err := s.store(ctx, claims.Account.ID, newPassword); err != nil {
		if releaseErr := s.ledger.Release(ctx, usedKey); releaseErr != nil {
			s.log.Error().Err(releaseErr).Str("jti", claims.ID).Msg("release reset claim failed")
		}
		return err
	}

	s.log.Info().Str("account_id", claims.Account.ID).Msg("password reset completed")
	return nil
}

func (s *ResetService) store(ctx context.Context, accountID string, password string) error {
	hash, err := s.hasher.Hash(password)
	if err != nil {
		return err
	}
	if err := s.accounts.UpdatePassword(ctx, accountID, hash); err != nil {
		if errors.Is(err, repository.ErrAccountNotFound) {
			s.log.Warn().Str("account_id", accountID).Msg("reset token names a deleted account")
			return ErrAccountNotFound
		}
		return err
	}
	return nil
}
