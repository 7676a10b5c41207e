package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"coursehub/internal/config"
	"coursehub/internal/ids"
	"coursehub/internal/ledger"
	"coursehub/internal/mail"
	"coursehub/internal/models"
	"coursehub/internal/repository"
	"coursehub/internal/security"
)

type RegisterInput struct {
	Email    string
	Name     string
	Password string
}

// ActivationTicket is returned to the registering client. The code itself
// only travels by email.
type ActivationTicket struct {
	Token     string
	ExpiresAt time.Time
}

type ActivationService struct {
	accounts AccountStore
	tokens   *security.Tokens
	hasher   security.PasswordHasher
	ledger   ledger.Ledger
	mailer   *AsyncMailer
	cfg      config.SecurityConfig
	log      zerolog.Logger
}

func NewActivationService(
	accounts AccountStore,
	tokens *security.Tokens,
	hasher security.PasswordHasher,
	l ledger.Ledger,
	mailer *AsyncMailer,
	cfg config.SecurityConfig,
	log zerolog.Logger,
) *ActivationService {
	return &ActivationService{
		accounts: accounts,
		tokens:   tokens,
		hasher:   hasher,
		ledger:   l,
		mailer:   mailer,
		cfg:      cfg,
		log:      log,
	}
}

func (s *ActivationService) Register(ctx context.Context, input RegisterInput) (ActivationTicket, error) {
	email := models.NormalizeEmail(input.Email)
	name := strings.TrimSpace(input.Name)
	if email == "" || name == "" || input.Password == "" {
		return ActivationTicket{}, ErrInvalidInput
	}

	if _, err := s.accounts.FindByEmail(ctx, email); err == nil {
		return ActivationTicket{}, ErrEmailTaken
	} else if !errors.Is(err, repository.ErrAccountNotFound) {
		return ActivationTicket{}, err
	}

	code, err := security.GenerateNumericCode(s.cfg.CodeLength)
	if err != nil {
		return ActivationTicket{}, err
	}

	issued, err := s.tokens.IssueActivation(models.PendingRegistration{
		Email:    email,
		Name:     name,
		Password: input.Password,
	}, code)
	if err != nil {
		return ActivationTicket{}, err
	}

	s.mailer.Send(email, mail.TemplateActivation, map[string]string{
		"name":      name,
		"code":      code,
		"expiresIn": s.cfg.ActivationTTL.String(),
	})

	s.log.Info().Str("email", email).Str("jti", issued.ID).Msg("activation issued")

	return ActivationTicket{Token: issued.Value, ExpiresAt: issued.ExpiresAt}, nil
}

// Activate redeems an activation token and materializes a verified account.
// A token is redeemable once: the redemption is recorded in the ledger for
// the rest of the token's lifetime.
func (s *ActivationService) Activate(ctx context.Context, token string, code string) (models.Account, error) {
	claims, err := s.tokens.ParseActivation(token)
	if err != nil {
		return models.Account{}, tokenError(err)
	}

	ttl := s.tokens.Remaining(claims.RegisteredClaims)
	if err := checkCode(ctx, s.ledger, claims.ID, ttl, s.cfg.MaxCodeAttempts, claims.Code, code); err != nil {
		return models.Account{}, err
	}

	usedKey := ledger.UsedActivationKey(claims.ID)
	claimed, err := s.ledger.Claim(ctx, usedKey, ttl)
	if err != nil {
		return models.Account{}, err
	}
	if !claimed {
		return models.Account{}, ErrTokenUsed
	}

	account, err := s.materialize(ctx, claims.Registration)
	if err != nil {
		if releaseErr := s.ledger.Release(ctx, usedKey); releaseErr != nil {
			s.log.Error().Err(releaseErr).Str("jti", claims.ID).Msg("release activation claim failed")
		}
		return models.Account{}, err
	}

	s.log.Info().Str("account_id", account.ID).Msg("account activated")
	return account, nil
}

func (s *ActivationService) materialize(ctx context.Context, reg models.PendingRegistration) (models.Account, error) {
	hash, err := s.hasher.Hash(reg.Password)
	if err != nil {
		return models.Account{}, err
	}

	created, err := s.accounts.Create(ctx, models.Account{
		ID:           ids.New(),
		Email:        models.NormalizeEmail(reg.Email),
		DisplayName:  reg.Name,
		PasswordHash: hash,
		Role:         models.RoleUser,
		Verified:     true,
	})
	if err != nil {
		if errors.Is(err, repository.ErrEmailTaken) {
			return models.Account{}, ErrEmailTaken
		}
		return models.Account{}, err
	}
	return created, nil
}
