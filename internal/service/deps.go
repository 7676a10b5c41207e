package service

import (
	"context"
	"io"

	"coursehub/internal/models"
)

// AccountStore is the credential store as the services see it.
type AccountStore interface {
	Create(ctx context.Context, account models.Account) (models.Account, error)
	FindByEmail(ctx context.Context, email string) (models.Account, error)
	GetByID(ctx context.Context, id string) (models.Account, error)
	UpdatePassword(ctx context.Context, id string, passwordHash []byte) error
	UpdateRole(ctx context.Context, id string, role models.Role) error
	UpdateAvatar(ctx context.Context, id string, avatar models.Avatar) error
}

type AvatarStore interface {
	PutAvatar(ctx context.Context, key string, body io.Reader, size int64, contentType string) (models.Avatar, error)
	RemoveAvatar(ctx context.Context, publicID string) error
}
