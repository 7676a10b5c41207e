package service

import (
	"context"
	"errors"
	"strings"

	"github.com/rs/zerolog"

	"coursehub/internal/ids"
	"coursehub/internal/models"
	"coursehub/internal/repository"
)

// SocialLinker maps an identity already verified by an external provider
// onto a local account, creating a verified password-less one on first
// sight. No activation step applies.
type SocialLinker struct {
	accounts AccountStore
	sessions *SessionService
	log      zerolog.Logger
}

func NewSocialLinker(accounts AccountStore, sessions *SessionService, log zerolog.Logger) *SocialLinker {
	return &SocialLinker{accounts: accounts, sessions: sessions, log: log}
}

func (l *SocialLinker) Login(ctx context.Context, asserted models.AssertedIdentity) (AuthResult, error) {
	email := models.NormalizeEmail(asserted.Email)
	if email == "" {
		return AuthResult{}, ErrInvalidInput
	}

	account, err := l.accounts.FindByEmail(ctx, email)
	switch {
	case err == nil:
		account = l.fillAvatar(ctx, account, asserted.AvatarURL)
	case errors.Is(err, repository.ErrAccountNotFound):
		account, err = l.create(ctx, email, asserted)
		if err != nil {
			return AuthResult{}, err
		}
	default:
		return AuthResult{}, err
	}

	return l.sessions.Issue(account)
}

func (l *SocialLinker) create(ctx context.Context, email string, asserted models.AssertedIdentity) (models.Account, error) {
	name := strings.TrimSpace(asserted.Name)
	if name == "" {
		name = email[:strings.Index(email+"@", "@")]
	}

	account := models.Account{
		ID:          ids.New(),
		Email:       email,
		DisplayName: name,
		Role:        models.RoleUser,
		Verified:    true,
		SocialOnly:  true,
	}
	if asserted.AvatarURL != "" {
		account.Avatar = &models.Avatar{URL: asserted.AvatarURL}
	}

	created, err := l.accounts.Create(ctx, account)
	if err == nil {
		l.log.Info().
			Str("account_id", created.ID).
			Str("provider", asserted.Provider).
			Msg("social account created")
		return created, nil
	}
	// A concurrent first login for the same email won the insert; use its row.
	if errors.Is(err, repository.ErrEmailTaken) {
		return l.accounts.FindByEmail(ctx, email)
	}
	return models.Account{}, err
}

// fillAvatar adopts the provider picture for accounts that have none yet.
func (l *SocialLinker) fillAvatar(ctx context.Context, account models.Account, avatarURL string) models.Account {
	if avatarURL == "" || account.Avatar != nil {
		return account
	}
	avatar := models.Avatar{URL: avatarURL}
	if err := l.accounts.UpdateAvatar(ctx, account.ID, avatar); err != nil {
		l.log.Warn().Err(err).Str("account_id", account.ID).Msg("adopt provider avatar failed")
		return account
	}
	account.Avatar = &avatar
	return account
}
