package middleware

import (
	"crm-pipeline/internal/handlers"
	"crm-pipeline/internal/models"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// InjectUser loads the session's user, and through it the tenant every
// request is scoped to.
func InjectUser(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		sess := sessions.Default(c)

		if uid, ok := sess.Get("user_id").(uint); ok && uid > 0 {
			var user models.User
			if err := db.WithContext(c.Request.Context()).First(&user, uid).Error; err == nil {
				c.Set(handlers.CurrentUserKey, &user)
			}
		}

		c.Next()
	}
}
