package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"coursehub/internal/middleware"
	"coursehub/internal/models"
	"coursehub/internal/service"
)

type registerRequest struct {
	Email    string `json:"email" binding:"required,email,max=254"`
	Name     string `json:"name" binding:"required,max=100"`
	Password string `json:"password" binding:"required,min=6,max=128"`
}

type registerResponse struct {
	ActivationToken string    `json:"activationToken"`
	ExpiresAt       time.Time `json:"expiresAt"`
}

func (h HandlerSet) Register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	ticket, err := h.activations.Register(c.Request.Context(), service.RegisterInput{
		Email:    req.Email,
		Name:     req.Name,
		Password: req.Password,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, registerResponse{
		ActivationToken: ticket.Token,
		ExpiresAt:       ticket.ExpiresAt,
	})
}

type activateRequest struct {
	ActivationToken string `json:"activationToken" binding:"required"`
	ActivationCode  string `json:"activationCode" binding:"required,numeric"`
}

func (h HandlerSet) Activate(c *gin.Context) {
	var req activateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	account, err := h.activations.Activate(c.Request.Context(), req.ActivationToken, req.ActivationCode)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"account": newAccountResponse(account)})
}

type loginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type authResponse struct {
	AccessToken      string          `json:"accessToken"`
	RefreshToken     string          `json:"refreshToken"`
	AccessExpiresAt  time.Time       `json:"accessExpiresAt"`
	RefreshExpiresAt time.Time       `json:"refreshExpiresAt"`
	Account          accountResponse `json:"account"`
}

func (h HandlerSet) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	result, err := h.sessions.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		h.respondError(c, err)
		return
	}

	h.sendAuthResponse(c, result)
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

// Refresh takes the token from the body when given, else from its cookie.
func (h HandlerSet) Refresh(c *gin.Context) {
	var req refreshRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}
	}
	token := req.RefreshToken
	if token == "" {
		token, _ = c.Cookie(middleware.RefreshTokenCookie)
	}
	if token == "" {
		h.respondError(c, service.ErrUnauthenticated)
		return
	}

	result, err := h.sessions.Refresh(c.Request.Context(), token)
	if err != nil {
		// On ErrAlreadyRotated a concurrent refresh may already have set new cookies.
		if errors.Is(err, service.ErrExpired) {
			h.cookies.clear(c)
		}
		h.respondError(c, err)
		return
	}

	h.sendAuthResponse(c, result)
}

// Logout always clears the cookies; retiring the tokens server side is best
// effort.
func (h HandlerSet) Logout(c *gin.Context) {
	var req refreshRequest
	if c.Request.ContentLength > 0 {
		_ = c.ShouldBindJSON(&req)
	}
	refresh := req.RefreshToken
	if refresh == "" {
		refresh, _ = c.Cookie(middleware.RefreshTokenCookie)
	}

	if err := h.sessions.Logout(c.Request.Context(), middleware.AccessToken(c), refresh); err != nil {
		h.log.Error().Err(err).Str("request_id", middleware.RequestIDFrom(c)).Msg("logout revocation failed")
	}

	h.cookies.clear(c)
	c.Status(http.StatusNoContent)
}

type forgotPasswordRequest struct {
	Email string `json:"email" binding:"required,email"`
}

// ForgotPassword answers the same way whether or not the account exists.
func (h HandlerSet) ForgotPassword(c *gin.Context) {
	var req forgotPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	if err := h.resets.RequestReset(c.Request.Context(), req.Email); err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"status": "if the account exists, a reset code has been sent"})
}

type resetPasswordRequest struct {
	ResetToken  string `json:"resetToken" binding:"required"`
	ResetCode   string `json:"resetCode" binding:"required,numeric"`
	NewPassword string `json:"newPassword" binding:"required,min=6,max=128"`
}

func (h HandlerSet) ResetPassword(c *gin.Context) {
	var req resetPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	err := h.resets.ResetPassword(c.Request.Context(), req.ResetToken, req.ResetCode, req.NewPassword)
	if errors.Is(err, service.ErrAccountNotFound) {
		// Never tell the caller that the account behind a valid token is gone.
		err = service.ErrInvalidCode
	}
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "password updated"})
}

type socialLoginRequest struct {
	Provider string `json:"provider" binding:"required"`
	IDToken  string `json:"idToken" binding:"required"`
}

func (h HandlerSet) SocialLogin(c *gin.Context) {
	var req socialLoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	asserted, err := h.identities.Verify(c.Request.Context(), req.Provider, req.IDToken)
	if err != nil {
		h.log.Warn().Err(err).Str("provider", req.Provider).Msg("identity assertion rejected")
		h.respondError(c, err)
		return
	}

	result, err := h.social.Login(c.Request.Context(), asserted)
	if err != nil {
		h.respondError(c, err)
		return
	}

	h.sendAuthResponse(c, result)
}

func (h HandlerSet) sendAuthResponse(c *gin.Context, result service.AuthResult) {
	h.cookies.issue(c, result)

	c.JSON(http.StatusOK, authResponse{
		AccessToken:      result.Tokens.Access.Value,
		RefreshToken:     result.Tokens.Refresh.Value,
		AccessExpiresAt:  result.Tokens.Access.ExpiresAt,
		RefreshExpiresAt: result.Tokens.Refresh.ExpiresAt,
		Account:          newAccountResponse(result.Account),
	})
}

type avatarResponse struct {
	PublicID string `json:"publicId,omitempty"`
	URL      string `json:"url"`
}

type accountResponse struct {
	ID         string          `json:"id"`
	Email      string          `json:"email"`
	Name       string          `json:"name"`
	Role       string          `json:"role"`
	Verified   bool            `json:"verified"`
	SocialOnly bool            `json:"socialOnly"`
	Avatar     *avatarResponse `json:"avatar,omitempty"`
	CreatedAt  time.Time       `json:"createdAt"`
}

func newAccountResponse(account models.Account) accountResponse {
	resp := accountResponse{
		ID:         account.ID,
		Email:      account.Email,
		Name:       account.DisplayName,
		Role:       string(account.Role),
		Verified:   account.Verified,
		SocialOnly: account.SocialOnly,
		CreatedAt:  account.CreatedAt,
	}
	if account.Avatar != nil {
		resp.Avatar = &avatarResponse{PublicID: account.Avatar.PublicID, URL: account.Avatar.URL}
	}
	return resp
}
