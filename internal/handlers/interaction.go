package handlers

import (
	"io"
	"net/http"

	"crm-pipeline/internal/models"
	"crm-pipeline/internal/services/interaction"

	"github.com/gin-gonic/gin"
)

//
// INTERACTIONS
//

func (h *Handler) ListInteractions(c *gin.Context) {
	leadID, ok := optionalID(c, "leadId")
	if !ok {
		return
	}
	page, err := h.interactions.List(c.Request.Context(), currentUser(c).TenantID, interaction.ListRequest{
		LeadID:     leadID,
		Category:   c.Query("category"),
		Priority:   models.Priority(c.Query("priority")),
		Type:       models.InteractionType(c.Query("type")),
		PageNumber: pageNumber(c),
	})
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

func (h *Handler) RecordInteraction(c *gin.Context) {
	leadID, ok := idParam(c, "id")
	if !ok {
		return
	}
	raw, err := io.ReadAll(c.Request.Body)
	if err != nil {
		badRequest(c, "unreadable body")
		return
	}
	req, err := interaction.Decode(raw)
	if err != nil {
		fail(c, err)
		return
	}

	user := currentUser(c)
	i, err := h.interactions.Record(c.Request.Context(), user.TenantID, leadID, user.ID, req)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, i)
}

func (h *Handler) UpcomingFollowUps(c *gin.Context) {
	page, err := h.interactions.UpcomingFollowUps(c.Request.Context(), currentUser(c).TenantID, interaction.FollowUpRequest{
		Priority:   models.Priority(c.Query("priority")),
		Category:   c.Query("category"),
		PageNumber: pageNumber(c),
	})
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}
