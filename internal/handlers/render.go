package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"crm-pipeline/internal/models"

	"github.com/gin-gonic/gin"
)

// CurrentUserKey is where middleware.InjectUser puts the *models.User.
const CurrentUserKey = "CurrentUser"

func currentUser(c *gin.Context) *models.User {
	if v, ok := c.Get(CurrentUserKey); ok {
		if u, ok := v.(*models.User); ok {
			return u
		}
	}
	return nil
}

// fail writes err with the status of its kind. Unknown errors are logged and
// reported without detail.
func fail(c *gin.Context, err error) {
	status, code := http.StatusInternalServerError, "internal_error"
	switch {
	case errors.Is(err, models.ErrValidation):
		status, code = http.StatusBadRequest, "validation_error"
	case errors.Is(err, models.ErrForbidden):
		status, code = http.StatusForbidden, "forbidden"
	case errors.Is(err, models.ErrNotFound):
		status, code = http.StatusNotFound, "not_found"
	case errors.Is(err, models.ErrConflict):
		status, code = http.StatusConflict, "conflict"
	case errors.Is(err, models.ErrIntegrity):
		status, code = http.StatusUnprocessableEntity, "integrity_error"
	}

	message := err.Error()
	if status == http.StatusInternalServerError {
		slog.Error("request failed",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"error", err)
		message = "internal server error"
	}
	c.AbortWithStatusJSON(status, gin.H{"error": code, "message": message})
}

func badRequest(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "validation_error", "message": message})
}

// idParam reads a positive numeric path parameter.
func idParam(c *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		badRequest(c, "invalid "+name)
		return 0, false
	}
	return uint(id), true
}

// optionalID reads a numeric query parameter; empty means zero.
func optionalID(c *gin.Context, name string) (uint, bool) {
	raw := c.Query(name)
	if raw == "" {
		return 0, true
	}
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		badRequest(c, "invalid "+name)
		return 0, false
	}
	return uint(id), true
}

func pageNumber(c *gin.Context) int {
	n, err := strconv.Atoi(c.DefaultQuery("pageNumber", "1"))
	if err != nil || n < 1 {
		return 1
	}
	return n
}
