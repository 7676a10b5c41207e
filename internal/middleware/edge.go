package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"coursehub/internal/rbac"
)

// Edge redirects page navigations into admin areas when the role cookie does
// not say admin. It never answers with an error status.
func Edge(edge *rbac.EdgeGuard) gin.HandlerFunc {
	return func(c *gin.Context) {
		role, _ := c.Cookie(RoleCookie)
		if redirect, allowed := edge.Route(c.Request.URL.Path, role); !allowed {
			c.Redirect(http.StatusFound, redirect)
			c.Abort()
			return
		}
		c.Next()
	}
}
