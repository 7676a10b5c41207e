package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"coursehub/internal/models"
	"coursehub/internal/rbac"
)

const (
	AccessTokenCookie  = "accessToken"
	RefreshTokenCookie = "refreshToken"
	RoleCookie         = "role"

	currentAccountKey = "current_account"
	accessTokenKey    = "access_token"
)

// AccessToken reads the access token from its cookie, falling back to an
// Authorization: Bearer header for non-browser clients.
func AccessToken(c *gin.Context) string {
	if token, err := c.Cookie(AccessTokenCookie); err == nil && token != "" {
		return token
	}
	header := c.GetHeader("Authorization")
	if len(header) > 7 && strings.EqualFold(header[:7], "Bearer ") {
		return strings.TrimSpace(header[7:])
	}
	return ""
}

// Guard runs the application guard for a route group. The role cookie plays
// no part here.
func Guard(guard *rbac.Guard, policy rbac.Policy, log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := AccessToken(c)

		decision, account, err := guard.Check(c.Request.Context(), token, policy)
		if err != nil {
			log.Error().
				Err(err).
				Str("request_id", RequestIDFrom(c)).
				Msg("authorization check failed")
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal_server_error"})
			return
		}

		switch decision {
		case rbac.Authorized:
			c.Set(accessTokenKey, token)
			c.Set(currentAccountKey, account)
			c.Next()
		case rbac.Forbidden:
			log.Warn().
				Str("account_id", account.ID).
				Str("role", string(account.Role)).
				Str("path", c.Request.URL.Path).
				Msg("forbidden")
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "forbidden"})
		default:
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthenticated"})
		}
	}
}

func CurrentAccount(c *gin.Context) (models.Account, bool) {
	value, ok := c.Get(currentAccountKey)
	if !ok {
		return models.Account{}, false
	}
	account, ok := value.(models.Account)
	return account, ok
}
