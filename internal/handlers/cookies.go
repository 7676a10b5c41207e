package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"coursehub/internal/config"
	"coursehub/internal/middleware"
	"coursehub/internal/service"
)

type cookieJar struct {
	domain     string
	secure     bool
	sameSite   http.SameSite
	accessTTL  time.Duration
	refreshTTL time.Duration
}

func newCookieJar(cookies config.CookieConfig, security config.SecurityConfig) cookieJar {
	return cookieJar{
		domain:     cookies.Domain,
		secure:     cookies.Secure,
		sameSite:   parseSameSite(cookies.SameSite),
		accessTTL:  security.AccessTTL,
		refreshTTL: security.RefreshTTL,
	}
}

func parseSameSite(value string) http.SameSite {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "strict":
		return http.SameSiteStrictMode
	case "none":
		return http.SameSiteNoneMode
	default:
		return http.SameSiteLaxMode
	}
}

// issue stores the pair in httpOnly cookies and mirrors the role into a
// readable one for the edge guard.
func (j cookieJar) issue(c *gin.Context, result service.AuthResult) {
	c.SetSameSite(j.sameSite)
	c.SetCookie(middleware.AccessTokenCookie, result.Tokens.Access.Value, seconds(j.accessTTL), "/", j.domain, j.secure, true)
	c.SetCookie(middleware.RefreshTokenCookie, result.Tokens.Refresh.Value, seconds(j.refreshTTL), "/", j.domain, j.secure, true)
	c.SetCookie(middleware.RoleCookie, string(result.Account.Role), seconds(j.refreshTTL), "/", j.domain, j.secure, false)
}

func (j cookieJar) clear(c *gin.Context) {
	c.SetSameSite(j.sameSite)
	c.SetCookie(middleware.AccessTokenCookie, "", -1, "/", j.domain, j.secure, true)
	c.SetCookie(middleware.RefreshTokenCookie, "", -1, "/", j.domain, j.secure, true)
	c.SetCookie(middleware.RoleCookie, "", -1, "/", j.domain, j.secure, false)
}

func seconds(d time.Duration) int {
	return int(d / time.Second)
}
