package handlers

import (
	"net/http"

	"taskelio/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// NotificationHandler serves the in-app notification feed.
type NotificationHandler struct {
	db      *gorm.DB
	service *services.NotificationService
	hub     *services.NotificationHub
	logger  *logrus.Logger
}

func NewNotificationHandler(db *gorm.DB, service *services.NotificationService, hub *services.NotificationHub, logger *logrus.Logger) *NotificationHandler {
	return &NotificationHandler{db: db, service: service, hub: hub, logger: orDefault(logger)}
}

func (h *NotificationHandler) List(c *gin.Context) {
	scope, okScope := ownerScope(c, h.db)
	if !okScope {
		return
	}
	var req services.NotificationListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		fail(c, http.StatusBadRequest, "Invalid request", err.Error())
		return
	}
	rows, total, err := h.service.List(c.Request.Context(), scope, req)
	if err != nil {
		respondError(c, h.logger, "list notifications", err)
		return
	}
	paginated(c, rows, total, req.Page, req.PageSize)
}

func (h *NotificationHandler) UnreadCount(c *gin.Context) {
	scope, okScope := ownerScope(c, h.db)
	if !okScope {
		return
	}
	n, err := h.service.UnreadCount(c.Request.Context(), scope)
	if err != nil {
		respondError(c, h.logger, "count notifications", err)
		return
	}
	ok(c, http.StatusOK, gin.H{"unread": n})
}

func (h *NotificationHandler) MarkRead(c *gin.Context) {
	scope, okScope := ownerScope(c, h.db)
	if !okScope {
		return
	}
	if err := h.service.MarkRead(c.Request.Context(), scope, c.Param("id")); err != nil {
		respondError(c, h.logger, "mark notification read", err)
		return
	}
	c.JSON(http.StatusOK, SuccessResponse{Success: true, Message: "marked as read"})
}

func (h *NotificationHandler) MarkAllRead(c *gin.Context) {
	scope, okScope := ownerScope(c, h.db)
	if !okScope {
		return
	}
	n, err := h.service.MarkAllRead(c.Request.Context(), scope)
	if err != nil {
		respondError(c, h.logger, "mark notifications read", err)
		return
	}
	ok(c, http.StatusOK, gin.H{"updated": n})
}

func RegisterNotificationRoutes(r *gin.RouterGroup, h *NotificationHandler) {
	n := r.Group("/notifications")
	{
		n.GET("", h.List)
		n.GET("/unread-count", h.UnreadCount)
		n.PUT("/read-all", h.MarkAllRead)
		n.PUT("/:id/read", h.MarkRead)
		n.GET("/ws", h.hub.HandleWebSocket)
	}
}
