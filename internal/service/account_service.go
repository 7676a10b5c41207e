package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path"

	"github.com/rs/zerolog"

	"coursehub/internal/ids"
	"coursehub/internal/media/sniffer"
	"coursehub/internal/models"
	"coursehub/internal/repository"
)

var (
	ErrAvatarTooLarge    = errors.New("avatar too large")
	ErrUnsupportedAvatar = errors.New("unsupported avatar format")
)

type AccountService struct {
	accounts      AccountStore
	avatars       AvatarStore
	maxAvatarSize int64
	log           zerolog.Logger
}

func NewAccountService(accounts AccountStore, avatars AvatarStore, maxAvatarSize int64, log zerolog.Logger) *AccountService {
	return &AccountService{
		accounts:      accounts,
		avatars:       avatars,
		maxAvatarSize: maxAvatarSize,
		log:           log,
	}
}

func (s *AccountService) Get(ctx context.Context, id string) (models.Account, error) {
	account, err := s.accounts.GetByID(ctx, id)
	if errors.Is(err, repository.ErrAccountNotFound) {
		return models.Account{}, ErrAccountNotFound
	}
	return account, err
}

// UpdateRole is the only way a role changes. The actor must be an admin and
// may not change their own role.
func (s *AccountService) UpdateRole(ctx context.Context, actor models.Account, targetID string, role string) (models.Account, error) {
	if actor.Role != models.RoleAdmin {
		return models.Account{}, ErrForbidden
	}
	parsed, ok := models.ParseRole(role)
	if !ok {
		return models.Account{}, ErrInvalidRole
	}
	if actor.ID == targetID {
		return models.Account{}, ErrSelfRoleChange
	}

	if err := s.accounts.UpdateRole(ctx, targetID, parsed); err != nil {
		if errors.Is(err, repository.ErrAccountNotFound) {
			return models.Account{}, ErrAccountNotFound
		}
		return models.Account{}, err
	}

	s.log.Info().
		Str("actor_id", actor.ID).
		Str("account_id", targetID).
		Str("role", string(parsed)).
		Msg("account role changed")

	return s.Get(ctx, targetID)
}

type AvatarUpload struct {
	Body         io.Reader
	DeclaredType string
}

// UploadAvatar stores a raster image as the account avatar and records its
// {publicId, url}. SVG is refused outright.
func (s *AccountService) UploadAvatar(ctx context.Context, account models.Account, upload AvatarUpload) (models.Avatar, error) {
	data, err := io.ReadAll(io.LimitReader(upload.Body, s.maxAvatarSize+1))
	if err != nil {
		return models.Avatar{}, fmt.Errorf("read avatar: %w", err)
	}
	if int64(len(data)) > s.maxAvatarSize {
		return models.Avatar{}, ErrAvatarTooLarge
	}

	head := data
	if len(head) > 512 {
		head = head[:512]
	}
	detected, err := sniffer.DetectHead(head)
	if err != nil || !detected.Type.Raster() {
		return models.Avatar{}, ErrUnsupportedAvatar
	}
	if upload.DeclaredType != "" && upload.DeclaredType != "application/octet-stream" && upload.DeclaredType != detected.MIME {
		return models.Avatar{}, fmt.Errorf("%w: declared %s, actual %s", ErrUnsupportedAvatar, upload.DeclaredType, detected.MIME)
	}

	key := path.Join(account.ID, fmt.Sprintf("%s.%s", ids.New(), detected.Type))
	avatar, err := s.avatars.PutAvatar(ctx, key, bytes.NewReader(data), int64(len(data)), detected.MIME)
	if err != nil {
		return models.Avatar{}, err
	}

	if err := s.accounts.UpdateAvatar(ctx, account.ID, avatar); err != nil {
		s.removeObject(ctx, avatar.PublicID)
		return models.Avatar{}, err
	}

	if account.Avatar != nil && account.Avatar.PublicID != "" {
		s.removeObject(ctx, account.Avatar.PublicID)
	}
	return avatar, nil
}

func (s *AccountService) removeObject(ctx context.Context, publicID string) {
	if err := s.avatars.RemoveAvatar(ctx, publicID); err != nil {
		s.log.Warn().Err(err).Str("public_id", publicID).Msg("remove avatar object failed")
	}
}
