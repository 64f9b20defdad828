package handlers

import (
	"net/http"

	"crm-pipeline/internal/services/column"

	"github.com/gin-gonic/gin"
)

//
// LEAD COLUMNS
//

func (h *Handler) ListColumns(c *gin.Context) {
	columns, err := h.columns.ListColumns(c.Request.Context(), currentUser(c).TenantID)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, columns)
}

func (h *Handler) ListColumnTemplates(c *gin.Context) {
	c.JSON(http.StatusOK, h.columns.Templates())
}

func (h *Handler) CreateColumn(c *gin.Context) {
	var req column.CreateColumnRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	col, err := h.columns.CreateColumn(c.Request.Context(), currentUser(c).TenantID, req)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, col)
}

type fromTemplateForm struct {
	Code string `json:"code" binding:"required"`
}

func (h *Handler) CreateColumnFromTemplate(c *gin.Context) {
	var form fromTemplateForm
	if err := c.ShouldBindJSON(&form); err != nil {
		badRequest(c, "code is required")
		return
	}
	col, err := h.columns.CreateFromTemplate(c.Request.Context(), currentUser(c).TenantID, form.Code)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, col)
}

func (h *Handler) UpdateColumn(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var req column.UpdateColumnRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	col, err := h.columns.UpdateColumn(c.Request.Context(), currentUser(c).TenantID, id, req)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, col)
}

func (h *Handler) DeleteColumn(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	if err := h.columns.DeleteColumn(c.Request.Context(), currentUser(c).TenantID, id); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Column deleted"})
}

type reorderForm struct {
	Columns []column.Position `json:"columns" binding:"required"`
}

func (h *Handler) ReorderColumns(c *gin.Context) {
	var form reorderForm
	if err := c.ShouldBindJSON(&form); err != nil {
		badRequest(c, "columns is required")
		return
	}
	columns, err := h.columns.ReorderColumns(c.Request.Context(), currentUser(c).TenantID, form.Columns)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, columns)
}
