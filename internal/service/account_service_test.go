package service

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"coursehub/internal/models"
)

var pngHead = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n', 0, 0, 0, 13, 'I', 'H', 'D', 'R'}

func TestUpdateRole(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	admin := h.seedVerified(t, "root@example.com", "pw", models.RoleAdmin)
	user := h.seedVerified(t, "carol@example.com", "pw", models.RoleUser)

	updated, err := h.accounts.UpdateRole(ctx, admin, user.ID, "admin")
	require.NoError(t, err)
	assert.Equal(t, models.RoleAdmin, updated.Role)

	tests := []struct {
		name   string
		actor  models.Account
		target string
		role   string
		want   error
	}{
		{"non admin", user, admin.ID, "user", ErrForbidden},
		{"unknown role", admin, user.ID, "owner", ErrInvalidRole},
		{"self", admin, admin.ID, "user", ErrSelfRoleChange},
		{"missing target", admin, "ghost", "user", ErrAccountNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := h.accounts.UpdateRole(ctx, tt.actor, tt.target, tt.role)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestUserCannotPromoteThemselves(t *testing.T) {
	h := newHarness(t)
	user := h.seedVerified(t, "carol@example.com", "pw", models.RoleUser)

	_, err := h.accounts.UpdateRole(context.Background(), user, user.ID, "admin")
	assert.ErrorIs(t, err, ErrForbidden)

	stored, err := h.store.GetByID(context.Background(), user.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RoleUser, stored.Role)
}

func TestGetAccount(t *testing.T) {
	h := newHarness(t)
	seeded := h.seedVerified(t, "carol@example.com", "pw", models.RoleUser)

	account, err := h.accounts.Get(context.Background(), seeded.ID)
	require.NoError(t, err)
	assert.Equal(t, seeded.Email, account.Email)

	_, err = h.accounts.Get(context.Background(), "ghost")
	assert.ErrorIs(t, err, ErrAccountNotFound)
}

func TestUploadAvatar(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	account := h.seedVerified(t, "carol@example.com", "pw", models.RoleUser)

	body := append(append([]byte{}, pngHead...), bytes.Repeat([]byte{1}, 64)...)
	avatar, err := h.accounts.UploadAvatar(ctx, account, AvatarUpload{Body: bytes.NewReader(body), DeclaredType: "image/png"})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(avatar.PublicID, account.ID+"/"))
	assert.True(t, strings.HasSuffix(avatar.PublicID, ".png"))
	assert.Equal(t, body, h.avatars.objects[avatar.PublicID])

	stored, err := h.store.GetByID(ctx, account.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.Avatar)
	assert.Equal(t, avatar, *stored.Avatar)

	// Replacing the avatar removes the previous object.
	second, err := h.accounts.UploadAvatar(ctx, stored, AvatarUpload{Body: bytes.NewReader(body)})
	require.NoError(t, err)
	assert.NotEqual(t, avatar.PublicID, second.PublicID)
	assert.Equal(t, []string{avatar.PublicID}, h.avatars.removed)
}

func TestUploadAvatarRejects(t *testing.T) {
	h := newHarness(t)
	account := h.seedVerified(t, "carol@example.com", "pw", models.RoleUser)

	tests := []struct {
		name   string
		upload AvatarUpload
		want   error
	}{
		{"svg", AvatarUpload{Body: strings.NewReader(`<svg xmlns="http://www.w3.org/2000/svg"></svg>`)}, ErrUnsupportedAvatar},
		{"text", AvatarUpload{Body: strings.NewReader("hello world")}, ErrUnsupportedAvatar},
		{"mismatched type", AvatarUpload{Body: bytes.NewReader(pngHead), DeclaredType: "image/jpeg"}, ErrUnsupportedAvatar},
		{"too large", AvatarUpload{Body: bytes.NewReader(append(append([]byte{}, pngHead...), make([]byte, 1<<20)...))}, ErrAvatarTooLarge},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := h.accounts.UploadAvatar(context.Background(), account, tt.upload)
			assert.ErrorIs(t, err, tt.want)
		})
	}
	assert.Empty(t, h.avatars.objects)
}

func TestUploadAvatarStoreFailure(t *testing.T) {
	h := newHarness(t)
	account := h.seedVerified(t, "carol@example.com", "pw", models.RoleUser)
	h.avatars.putErr = errors.New("bucket gone")

	_, err := h.accounts.UploadAvatar(context.Background(), account, AvatarUpload{Body: bytes.NewReader(pngHead)})
	require.Error(t, err)

	stored, err := h.store.GetByID(context.Background(), account.ID)
	require.NoError(t, err)
	assert.Nil(t, stored.Avatar)
}
