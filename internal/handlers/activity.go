package handlers

import (
	"encoding/json"
	"io"
	"net/http"

	"crm-pipeline/internal/models"
	"crm-pipeline/internal/services/activity"

	"github.com/gin-gonic/gin"
)

//
// LEAD STATUS HISTORY
//

func (h *Handler) ListActivities(c *gin.Context) {
	leadID, ok := optionalID(c, "leadId")
	if !ok {
		return
	}
	page, err := h.activities.List(c.Request.Context(), currentUser(c).TenantID, activity.ListRequest{
		LeadID:     leadID,
		Kind:       models.ActivityKind(c.Query("activityType")),
		PageNumber: pageNumber(c),
	})
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

// RecordActivity reads the body once: the activityType picks the schema the
// rest of the body is checked against.
func (h *Handler) RecordActivity(c *gin.Context) {
	leadID, ok := idParam(c, "leadId")
	if !ok {
		return
	}
	raw, err := io.ReadAll(c.Request.Body)
	if err != nil {
		badRequest(c, "unreadable body")
		return
	}

	var head struct {
		ActivityType models.ActivityKind `json:"activityType"`
	}
	if err := json.Unmarshal(raw, &head); err != nil {
		badRequest(c, "malformed JSON")
		return
	}

	entry, err := activity.Decode(head.ActivityType, raw)
	if err != nil {
		fail(c, err)
		return
	}

	user := currentUser(c)
	act, err := h.activities.Record(c.Request.Context(), user.TenantID, leadID, user.ID, entry)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, act)
}

func (h *Handler) Timeline(c *gin.Context) {
	leadID, ok := idParam(c, "leadId")
	if !ok {
		return
	}
	items, err := h.timeline.Timeline(c.Request.Context(), currentUser(c).TenantID, leadID)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, items)
}
