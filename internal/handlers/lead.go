package handlers

import (
	"net/http"

	"crm-pipeline/internal/services/lead"

	"github.com/gin-gonic/gin"
)

//
// LEADS
//

func (h *Handler) ListLeads(c *gin.Context) {
	user := currentUser(c)
	page, err := h.leads.ListLeads(c.Request.Context(), user.TenantID, lead.ListLeadsRequest{
		SearchParam: c.Query("searchParam"),
		PageNumber:  pageNumber(c),
	})
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"leads":   page.Items,
		"count":   page.TotalCount,
		"hasMore": page.HasMore,
	})
}

func (h *Handler) GetLead(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	l, err := h.leads.GetLead(c.Request.Context(), currentUser(c).TenantID, id)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, l)
}

func (h *Handler) CreateLead(c *gin.Context) {
	var req lead.CreateLeadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	user := currentUser(c)
	l, err := h.leads.CreateLead(c.Request.Context(), user.TenantID, user.ID, req)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, l)
}

func (h *Handler) UpdateLead(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var req lead.UpdateLeadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	user := currentUser(c)
	l, err := h.leads.UpdateLead(c.Request.Context(), user.TenantID, id, user.ID, req)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, l)
}

func (h *Handler) DeleteLead(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	if err := h.leads.DeleteLead(c.Request.Context(), currentUser(c).TenantID, id); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Lead deleted"})
}

type moveForm struct {
	ColumnID uint `json:"columnId" binding:"required"`
}

func (h *Handler) MoveLead(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var form moveForm
	if err := c.ShouldBindJSON(&form); err != nil {
		badRequest(c, "columnId is required")
		return
	}

	user := currentUser(c)
	l, err := h.leads.MoveLead(c.Request.Context(), user.TenantID, id, form.ColumnID, user.ID)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, l)
}
