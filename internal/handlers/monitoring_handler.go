package handlers

import (
	"net/http"

	"taskelio/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// MonitoringHandler exposes the detectors: GET previews a scan, POST runs it
// and dispatches the candidates.
type MonitoringHandler struct {
	db      *gorm.DB
	service *services.MonitoringService
	logger  *logrus.Logger
}

func NewMonitoringHandler(db *gorm.DB, service *services.MonitoringService, logger *logrus.Logger) *MonitoringHandler {
	return &MonitoringHandler{db: db, service: service, logger: orDefault(logger)}
}

func (h *MonitoringHandler) PreviewBudget(c *gin.Context) {
	scope, okScope := ownerScope(c, h.db)
	if !okScope {
		return
	}
	candidates, err := h.service.ScanBudgets(c.Request.Context(), scope)
	if err != nil {
		respondError(c, h.logger, "scan budgets", err)
		return
	}
	ok(c, http.StatusOK, candidates)
}

func (h *MonitoringHandler) RunBudget(c *gin.Context) {
	scope, okScope := ownerScope(c, h.db)
	if !okScope {
		return
	}
	res, err := h.service.RunBudgetMonitoring(c.Request.Context(), scope)
	if err != nil {
		respondError(c, h.logger, "run budget monitoring", err)
		return
	}
	ok(c, http.StatusOK, res)
}

// PreviewInactive takes its options from the query string.
func (h *MonitoringHandler) PreviewInactive(c *gin.Context) {
	scope, okScope := ownerScope(c, h.db)
	if !okScope {
		return
	}
	var opts services.InactivityOptions
	if err := c.ShouldBindQuery(&opts); err != nil {
		fail(c, http.StatusBadRequest, "Invalid request", err.Error())
		return
	}
	clients, err := h.service.ScanInactiveClients(c.Request.Context(), scope, opts)
	if err != nil {
		respondError(c, h.logger, "scan inactive clients", err)
		return
	}
	ok(c, http.StatusOK, clients)
}

// RunInactive takes its options from an optional JSON body.
func (h *MonitoringHandler) RunInactive(c *gin.Context) {
	scope, okScope := ownerScope(c, h.db)
	if !okScope {
		return
	}
	var opts services.InactivityOptions
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&opts); err != nil {
			fail(c, http.StatusBadRequest, "Invalid request", err.Error())
			return
		}
	}
	res, err := h.service.RunInactivityMonitoring(c.Request.Context(), scope, opts)
	if err != nil {
		respondError(c, h.logger, "run inactivity monitoring", err)
		return
	}
	ok(c, http.StatusOK, res)
}

func (h *MonitoringHandler) RunEvents(c *gin.Context) {
	scope, okScope := ownerScope(c, h.db)
	if !okScope {
		return
	}
	res, err := h.service.RunEventAutomations(c.Request.Context(), scope)
	if err != nil {
		respondError(c, h.logger, "run event automations", err)
		return
	}
	ok(c, http.StatusOK, res)
}

// RunAll is the scheduler entry point. It runs every detector for every owner.
func (h *MonitoringHandler) RunAll(c *gin.Context) {
	summaries, err := h.service.RunAll(c.Request.Context())
	if err != nil {
		respondError(c, h.logger, "run monitoring", err)
		return
	}
	ok(c, http.StatusOK, gin.H{"owners": len(summaries), "summaries": summaries})
}

// RegisterMonitoringRoutes mounts the per-owner detector routes under r.
func RegisterMonitoringRoutes(r *gin.RouterGroup, h *MonitoringHandler) {
	mon := r.Group("/monitoring")
	{
		mon.GET("/budget", h.PreviewBudget)
		mon.POST("/budget", h.RunBudget)
		mon.GET("/inactive-clients", h.PreviewInactive)
		mon.POST("/inactive-clients", h.RunInactive)
		mon.POST("/events", h.RunEvents)
	}
}
