package middleware

import (
	"errors"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/yukikurage/maintenance-tracker/internal/constants"
	apierrors "github.com/yukikurage/maintenance-tracker/internal/errors"
	"github.com/yukikurage/maintenance-tracker/internal/services"
)

// RequireAuth resolves the session cookie to a live account. Sessions whose
// account no longer exists are cleared.
func RequireAuth(authService *services.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		session := sessions.Default(c)
		username, _ := session.Get(constants.SessionKeyUsername).(string)

		if username == "" {
			apierrors.Unauthorized(c, "")
			c.Abort()
			return
		}

		current, err := authService.ResolveSession(username)
		if err != nil {
			if errors.Is(err, services.ErrUserNotFound) {
				session.Clear()
				_ = session.Save()
				apierrors.Unauthorized(c, "Session expired")
				c.Abort()
				return
			}
			logrus.WithError(err).Error("failed to resolve session")
			apierrors.InternalError(c, "")
			c.Abort()
			return
		}

		// Store the session in context for easy access in handlers
		c.Set(constants.ContextKeySession, *current)
		c.Next()
	}
}

// RequireAdmin rejects sessions without the admin role. It must run after RequireAuth.
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		session, ok := GetSession(c)
		if !ok {
			apierrors.Unauthorized(c, "")
			c.Abort()
			return
		}
		if !session.IsAdmin() {
			apierrors.Forbidden(c, "Admin role required")
			c.Abort()
			return
		}
		c.Next()
	}
}

// GetSession retrieves the current session from context
func GetSession(c *gin.Context) (services.Session, bool) {
	value, exists := c.Get(constants.ContextKeySession)
	if !exists {
		return services.Session{}, false
	}
	session, ok := value.(services.Session)
	return session, ok
}
