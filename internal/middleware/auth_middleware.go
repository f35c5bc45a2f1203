package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/Doogleyarae/Doogleonline-sub000/internal/repository"
	apperrors "github.com/Doogleyarae/Doogleonline-sub000/pkg/errors"
)

const adminUserKey = "admin_user"

// RequireAdmin gates a route group behind a valid admin session. The token is
// accepted as a Bearer header or the "admin_session" cookie.
func RequireAdmin(sessions repository.SessionStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := extractToken(c)
		if token == "" {
			abortUnauthorized(c, "Authentication required")
			return
		}

		username, err := sessions.Validate(c.Request.Context(), token)
		if err != nil {
			if repository.IsNotFound(err) {
				abortUnauthorized(c, "Session expired or invalid")
				return
			}
			c.AbortWithStatusJSON(http.StatusInternalServerError,
				gin.H{"error": apperrors.NewInternalError()})
			return
		}

		c.Set(adminUserKey, username)
		c.Next()
	}
}

func extractToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimPrefix(header, "Bearer ")
	}
	if cookie, err := c.Cookie("admin_session"); err == nil {
		return cookie
	}
	return ""
}

func abortUnauthorized(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized,
		gin.H{"error": apperrors.NewUnauthorizedError(message)})
}

// AdminUser returns the username set by RequireAdmin, empty outside the gate.
func AdminUser(c *gin.Context) string {
	if v, ok := c.Get(adminUserKey); ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}
