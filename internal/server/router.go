package server

import (
	"net/http"

	"crm-pipeline/internal/config"
	"crm-pipeline/internal/handlers"
	"crm-pipeline/internal/middleware"
	"crm-pipeline/internal/models"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

const sessionName = "crm_session"

func NewRouter(cfg *config.Config, db *gorm.DB, h *handlers.Handler) *gin.Engine {
	r := gin.Default()

	store := cookie.NewStore([]byte(cfg.SessionSecret))
	r.Use(sessions.Sessions(sessionName, store))

	r.Use(middleware.InjectUser(db))

	// AUTH
	r.POST("/login", h.Login)
	r.POST("/logout", h.Logout)

	auth := r.Group("/")
	auth.Use(middleware.RequireAuth())

	auth.GET("/me", h.Me)

	writers := middleware.RequireRole(models.RoleAdmin, models.RoleSales)
	admins := middleware.RequireRole(models.RoleAdmin)

	// LEADS
	auth.GET("/leads", h.ListLeads)
	auth.POST("/leads", writers, h.CreateLead)
	auth.GET("/leads/:id", h.GetLead)
	auth.PUT("/leads/:id", writers, h.UpdateLead)
	auth.DELETE("/leads/:id", writers, h.DeleteLead)
	auth.PUT("/leads/:id/move", writers, h.MoveLead)

	// ASSIGNMENT & FOLLOWERS
	auth.POST("/leads/:id/assign", writers, h.AssignLead)
	auth.GET("/leads/:id/assignment-history", h.AssignmentHistory)
	auth.POST("/leads/:id/follow", h.FollowLead)
	auth.DELETE("/leads/:id/follow", h.UnfollowLead)
	auth.GET("/leads/:id/followers", h.ListFollowers)
	auth.GET("/followed-leads", h.ListFollowedLeads)

	// INTERACTIONS
	auth.POST("/leads/:id/interactions", writers, h.RecordInteraction)
	auth.GET("/interactions", h.ListInteractions)
	auth.GET("/interactions/upcoming-follow-ups", h.UpcomingFollowUps)

	// LEAD STATUS HISTORY
	auth.GET("/lead-status-history", h.ListActivities)
	auth.POST("/lead-status-history/:leadId", writers, h.RecordActivity)
	auth.GET("/lead-status-history/timeline/:leadId", h.Timeline)

	// LEAD COLUMNS (lane administration is admin only)
	auth.GET("/lead-columns", h.ListColumns)
	auth.GET("/lead-columns/templates", h.ListColumnTemplates)
	auth.POST("/lead-columns", admins, h.CreateColumn)
	auth.POST("/lead-columns/from-template", admins, h.CreateColumnFromTemplate)
	auth.PUT("/lead-columns/reorder", admins, h.ReorderColumns)
	auth.PUT("/lead-columns/:id", admins, h.UpdateColumn)
	auth.DELETE("/lead-columns/:id", admins, h.DeleteColumn)

	// LIVE
	auth.GET("/live", h.Live)

	// HEALTHCHECK
	r.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})

	return r
}
