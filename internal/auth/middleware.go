package auth

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"classtrack/internal/apperr"
	"classtrack/internal/roster"
)

const accountKey = "account"

// Require enforces bearer JWT tokens and the single-active-session rule. A
// superseded session is reported distinctly so clients can prompt re-login.
func Require(svc *Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		authz := c.GetHeader("Authorization")
		if authz == "" || !strings.HasPrefix(strings.ToLower(authz), "bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}
		tokenStr := strings.TrimSpace(authz[len("bearer "):])
		acc, _, err := svc.Authenticate(c.Request.Context(), tokenStr)
		if err != nil {
			if errors.Is(err, apperr.ErrSessionExpired) {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "session expired", "code": "session_expired"})
				return
			}
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}
		c.Set(accountKey, acc)
		c.Next()
	}
}

// RequireAdmin allows only admin accounts past.
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		if CurrentAccount(c).Role != roster.RoleAdmin {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "admin only"})
			return
		}
		c.Next()
	}
}

// CurrentAccount returns the authenticated account set by Require.
func CurrentAccount(c *gin.Context) roster.Account {
	acc, _ := c.Get(accountKey)
	out, _ := acc.(roster.Account)
	return out
}

// CanAccessClassroom reports whether the account may read a classroom's
// attendance: admins see everything, teachers only their own classroom.
func CanAccessClassroom(acc roster.Account, classroomID int64) bool {
	if acc.Role == roster.RoleAdmin {
		return true
	}
	return acc.ClassroomID != nil && *acc.ClassroomID == classroomID
}
