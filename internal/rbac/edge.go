package rbac

import (
	"net/url"
	"strings"

	"coursehub/internal/models"
)

const deniedSignal = "denied"

// EdgeGuard makes the cheap routing decision from the readable role cookie.
// It only steers navigation; every protected operation is checked again by
// Guard.
type EdgeGuard struct {
	prefixes []string
	landing  string
}

func NewEdgeGuard(adminPrefixes []string, landing string) *EdgeGuard {
	prefixes := make([]string, 0, len(adminPrefixes))
	for _, prefix := range adminPrefixes {
		prefix = strings.TrimRight(strings.TrimSpace(prefix), "/")
		if prefix == "" {
			continue
		}
		if !strings.HasPrefix(prefix, "/") {
			prefix = "/" + prefix
		}
		prefixes = append(prefixes, prefix)
	}
	if landing == "" {
		landing = "/"
	}
	return &EdgeGuard{prefixes: prefixes, landing: landing}
}

// Restricted reports whether path falls under an admin prefix. Matching is
// per path segment, so /admin covers /admin/users but not /administrators.
func (e *EdgeGuard) Restricted(path string) bool {
	for _, prefix := range e.prefixes {
		if path == prefix || strings.HasPrefix(path, prefix+"/") {
			return true
		}
	}
	return false
}

// Route returns allowed=true to pass the request through unchanged, or the
// location to redirect the navigation to.
func (e *EdgeGuard) Route(path string, roleCookie string) (redirect string, allowed bool) {
	if !e.Restricted(path) {
		return "", true
	}
	if role, ok := models.ParseRole(roleCookie); ok && role == models.RoleAdmin {
		return "", true
	}
	return e.deniedLocation(), false
}

func (e *EdgeGuard) deniedLocation() string {
	u, err := url.Parse(e.landing)
	if err != nil {
		return "/?access=" + deniedSignal
	}
	q := u.Query()
	q.Set("access", deniedSignal)
	u.RawQuery = q.Encode()
	return u.String()
}
