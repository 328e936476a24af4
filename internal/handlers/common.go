package handlers

import (
	"errors"
	"net/http"

	"taskelio/internal/services"
	"taskelio/internal/store"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Message string `json:"message"`
	Code    int    `json:"code,omitempty"`
}

// PaginatedResponse wraps one page of a list.
type PaginatedResponse struct {
	Success  bool        `json:"success"`
	Data     interface{} `json:"data"`
	Total    int64       `json:"total"`
	Page     int         `json:"page"`
	PageSize int         `json:"page_size"`
	Pages    int         `json:"pages"`
}

// SuccessResponse wraps a single result.
type SuccessResponse struct {
	Success bool        `json:"success"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

func ok(c *gin.Context, status int, data interface{}) {
	c.JSON(status, SuccessResponse{Success: true, Data: data})
}

func fail(c *gin.Context, status int, errMsg, message string) {
	c.JSON(status, ErrorResponse{Success: false, Error: errMsg, Message: message})
}

func paginated(c *gin.Context, data interface{}, total int64, page, size int) {
	page, size = services.NormalizePage(page, size)
	pages := int((total + int64(size) - 1) / int64(size))
	c.JSON(http.StatusOK, PaginatedResponse{
		Success:  true,
		Data:     data,
		Total:    total,
		Page:     page,
		PageSize: size,
		Pages:    pages,
	})
}

// ownerScope binds the request to the owner the auth middleware resolved.
func ownerScope(c *gin.Context, db *gorm.DB) (*store.Scope, bool) {
	scope, err := store.FromContext(c.Request.Context(), db)
	if err != nil {
		fail(c, http.StatusUnauthorized, "Unauthorized", "missing owner")
		return nil, false
	}
	return scope, true
}

var badRequestErrors = []error{
	services.ErrInvalidTrigger,
	services.ErrInvalidAction,
	services.ErrInvalidAutomation,
	services.ErrUnknownAction,
	services.ErrUnknownOperator,
	services.ErrInvalidCondition,
	services.ErrInvalidOptions,
	services.ErrUnknownAITask,
	services.ErrInvalidTransition,
	services.ErrMissingParameter,
}

// respondError maps service errors onto status codes. Unexpected errors are
// logged and reported generically unless gin runs in debug mode.
func respondError(c *gin.Context, logger *logrus.Logger, op string, err error) {
	for _, target := range badRequestErrors {
		if errors.Is(err, target) {
			fail(c, http.StatusBadRequest, "Invalid request", err.Error())
			return
		}
	}
	switch {
	case errors.Is(err, store.ErrNotFound):
		fail(c, http.StatusNotFound, "Not found", err.Error())
	case errors.Is(err, store.ErrMissingOwner):
		fail(c, http.StatusUnauthorized, "Unauthorized", "missing owner")
	case errors.Is(err, services.ErrGeneratorUnavailable):
		fail(c, http.StatusServiceUnavailable, "Service unavailable", "content generation is temporarily unavailable")
	case errors.Is(err, services.ErrScanTruncated):
		fail(c, http.StatusUnprocessableEntity, "Scan truncated", err.Error())
	default:
		logger.WithFields(logrus.Fields{
			"op":       op,
			"owner_id": c.GetString("owner_id"),
			"path":     c.FullPath(),
		}).Errorf("request failed: %v", err)
		msg := "internal error"
		if gin.Mode() == gin.DebugMode {
			msg = err.Error()
		}
		fail(c, http.StatusInternalServerError, "Failed to "+op, msg)
	}
}

func orDefault(logger *logrus.Logger) *logrus.Logger {
	if logger == nil {
		return logrus.StandardLogger()
	}
	return logger
}
