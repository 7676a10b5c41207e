package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"coursehub/internal/identity"
	"coursehub/internal/middleware"
	"coursehub/internal/service"
)

type apiError struct {
	status  int
	code    string
	message string
}

// Order matters: wrapped sentinels come before the ones they wrap.
var errorTable = []struct {
	err error
	api apiError
}{
	{service.ErrInvalidInput, apiError{http.StatusBadRequest, "invalid_input", "request is incomplete"}},
	{service.ErrInvalidCredentials, apiError{http.StatusUnauthorized, "invalid_credentials", "email or password is incorrect"}},
	{service.ErrTooManyAttempts, apiError{http.StatusTooManyRequests, "too_many_attempts", "too many attempts, request a new code"}},
	{service.ErrInvalidCode, apiError{http.StatusBadRequest, "invalid_code", "the code is invalid"}},
	{service.ErrExpired, apiError{http.StatusUnauthorized, "expired", "the token has expired"}},
	{service.ErrAlreadyRotated, apiError{http.StatusUnauthorized, "already_rotated", "the refresh token was already used"}},
	{service.ErrMalformed, apiError{http.StatusUnauthorized, "unauthenticated", "authentication required"}},
	{service.ErrUnauthenticated, apiError{http.StatusUnauthorized, "unauthenticated", "authentication required"}},
	{service.ErrForbidden, apiError{http.StatusForbidden, "forbidden", "insufficient role"}},
	{service.ErrSelfRoleChange, apiError{http.StatusForbidden, "self_role_change", "administrators cannot change their own role"}},
	{service.ErrInvalidRole, apiError{http.StatusBadRequest, "invalid_role", "unknown role"}},
	{service.ErrAccountNotFound, apiError{http.StatusNotFound, "not_found", "account not found"}},
	{service.ErrEmailTaken, apiError{http.StatusConflict, "email_taken", "an account with this email already exists"}},
	{service.ErrAvatarTooLarge, apiError{http.StatusRequestEntityTooLarge, "avatar_too_large", "avatar exceeds the size limit"}},
	{service.ErrUnsupportedAvatar, apiError{http.StatusUnsupportedMediaType, "unsupported_avatar", "avatar must be a jpeg, png, gif, webp or avif image"}},
	{identity.ErrUnknownProvider, apiError{http.StatusBadRequest, "unknown_provider", "identity provider is not supported"}},
	{identity.ErrUnverifiedEmail, apiError{http.StatusUnauthorized, "invalid_assertion", "identity could not be verified"}},
	{identity.ErrInvalidAssertion, apiError{http.StatusUnauthorized, "invalid_assertion", "identity could not be verified"}},
}

func (h HandlerSet) respondError(c *gin.Context, err error) {
	for _, entry := range errorTable {
		if errors.Is(err, entry.err) {
			c.JSON(entry.api.status, gin.H{"error": entry.api.code, "message": entry.api.message})
			return
		}
	}

	h.log.Error().
		Err(err).
		Str("path", c.Request.URL.Path).
		Str("request_id", middleware.RequestIDFrom(c)).
		Msg("request failed")
	c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_server_error"})
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_input", "message": err.Error()})
}
