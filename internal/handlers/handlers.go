package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"coursehub/internal/config"
	"coursehub/internal/middleware"
	"coursehub/internal/models"
	"coursehub/internal/rbac"
	"coursehub/internal/service"
)

type Sessions interface {
	Login(ctx context.Context, email string, password string) (service.AuthResult, error)
	Refresh(ctx context.Context, refreshToken string) (service.AuthResult, error)
	Logout(ctx context.Context, accessToken string, refreshToken string) error
}

type Activations interface {
	Register(ctx context.Context, input service.RegisterInput) (service.ActivationTicket, error)
	Activate(ctx context.Context, token string, code string) (models.Account, error)
}

type Resets interface {
	RequestReset(ctx context.Context, email string) error
	ResetPassword(ctx context.Context, token string, code string, newPassword string) error
}

type SocialLogins interface {
	Login(ctx context.Context, asserted models.AssertedIdentity) (service.AuthResult, error)
}

type IdentityVerifier interface {
	Verify(ctx context.Context, provider string, credential string) (models.AssertedIdentity, error)
}

type Accounts interface {
	Get(ctx context.Context, id string) (models.Account, error)
	UpdateRole(ctx context.Context, actor models.Account, targetID string, role string) (models.Account, error)
	UploadAvatar(ctx context.Context, account models.Account, upload service.AvatarUpload) (models.Avatar, error)
}

// HealthCheck is one dependency probed by /healthz.
type HealthCheck struct {
	Name string
	Ping func(ctx context.Context) error
}

type Deps struct {
	Log          zerolog.Logger
	Config       *config.AppConfig
	Sessions     Sessions
	Activations  Activations
	Resets       Resets
	Social       SocialLogins
	Identities   IdentityVerifier
	Accounts     Accounts
	Guard        *rbac.Guard
	HealthChecks []HealthCheck
}

type HandlerSet struct {
	log         zerolog.Logger
	cfg         *config.AppConfig
	cookies     cookieJar
	sessions    Sessions
	activations Activations
	resets      Resets
	social      SocialLogins
	identities  IdentityVerifier
	accounts    Accounts
	guard       *rbac.Guard
	checks      []HealthCheck
}

func NewHandlerSet(deps Deps) HandlerSet {
	return HandlerSet{
		log:         deps.Log,
		cfg:         deps.Config,
		cookies:     newCookieJar(deps.Config.Cookies, deps.Config.Security),
		sessions:    deps.Sessions,
		activations: deps.Activations,
		resets:      deps.Resets,
		social:      deps.Social,
		identities:  deps.Identities,
		accounts:    deps.Accounts,
		guard:       deps.Guard,
		checks:      deps.HealthChecks,
	}
}

func (h HandlerSet) Routes(router *gin.RouterGroup) {
	router.GET("/healthz", h.Health)

	v1 := router.Group("/v1")
	{
		auth := v1.Group("/auth")
		auth.POST("/register", h.Register)
		auth.POST("/activate", h.Activate)
		auth.POST("/login", h.Login)
		auth.POST("/refresh", h.Refresh)
		auth.POST("/logout", h.Logout)
		auth.POST("/forgot-password", h.ForgotPassword)
		auth.POST("/reset-password", h.ResetPassword)
		auth.POST("/social-login", h.SocialLogin)
	}

	me := v1.Group("/me")
	me.Use(middleware.Guard(h.guard, rbac.Authenticated(), h.log))
	me.GET("", h.Me)
	me.PUT("/avatar", h.UploadAvatar)

	admin := v1.Group("/admin")
	admin.Use(middleware.Guard(h.guard, rbac.RequireRole(models.RoleAdmin), h.log))
	admin.GET("/accounts/:id", h.AdminGetAccount)
	admin.PATCH("/accounts/:id/role", h.AdminUpdateRole)
}

func currentAccount(c *gin.Context) (models.Account, bool) {
	account, ok := middleware.CurrentAccount(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthenticated"})
	}
	return account, ok
}
