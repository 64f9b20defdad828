package middleware

import (
	"net/http"

	"crm-pipeline/internal/handlers"
	"crm-pipeline/internal/models"

	"github.com/gin-gonic/gin"
)

// RequireAuth rejects requests without a signed-in user. It relies on
// InjectUser having run first, so a session whose user was deleted is
// treated as signed out.
func RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := c.Get(handlers.CurrentUserKey); !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error":   "unauthorized",
				"message": "login required",
			})
			return
		}
		c.Next()
	}
}

// RequireRole must run after RequireAuth. The role is read from the stored
// user, not the session, so a demotion takes effect on the next request.
func RequireRole(roles ...models.UserRole) gin.HandlerFunc {
	roleSet := map[models.UserRole]struct{}{}
	for _, r := range roles {
		roleSet[r] = struct{}{}
	}

	return func(c *gin.Context) {
		v, _ := c.Get(handlers.CurrentUserKey)
		user, ok := v.(*models.User)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error":   "unauthorized",
				"message": "login required",
			})
			return
		}

		if _, ok := roleSet[user.Role]; !ok {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error":   "forbidden",
				"message": "access denied",
			})
			return
		}
		c.Next()
	}
}
