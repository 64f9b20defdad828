package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

//
// ASSIGNMENT & FOLLOWERS
//

type assignForm struct {
	AssignedToID uint   `json:"assignedToId" binding:"required"`
	Reason       string `json:"reason"`
}

func (h *Handler) AssignLead(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var form assignForm
	if err := c.ShouldBindJSON(&form); err != nil {
		badRequest(c, "assignedToId is required")
		return
	}

	user := currentUser(c)
	record, err := h.assignments.AssignLead(c.Request.Context(), user.TenantID, id, form.AssignedToID, user.ID, form.Reason)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, record)
}

func (h *Handler) AssignmentHistory(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	history, err := h.assignments.History(c.Request.Context(), currentUser(c).TenantID, id)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, history)
}

func (h *Handler) FollowLead(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	user := currentUser(c)
	follower, err := h.assignments.Follow(c.Request.Context(), user.TenantID, id, user.ID)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, follower)
}

func (h *Handler) UnfollowLead(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	user := currentUser(c)
	if err := h.assignments.Unfollow(c.Request.Context(), user.TenantID, id, user.ID); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Unfollowed"})
}

func (h *Handler) ListFollowers(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	followers, err := h.assignments.ListFollowers(c.Request.Context(), currentUser(c).TenantID, id)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, followers)
}

func (h *Handler) ListFollowedLeads(c *gin.Context) {
	user := currentUser(c)
	leads, err := h.assignments.ListFollowedLeads(c.Request.Context(), user.TenantID, user.ID)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, leads)
}
