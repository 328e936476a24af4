package handlers

import (
	"net/http"

	"taskelio/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// AutomationHandler serves the automation registry, dispatch and execution log.
type AutomationHandler struct {
	db      *gorm.DB
	service *services.AutomationService
	stats   *services.StatisticsService
	logger  *logrus.Logger
}

func NewAutomationHandler(db *gorm.DB, service *services.AutomationService, stats *services.StatisticsService, logger *logrus.Logger) *AutomationHandler {
	return &AutomationHandler{db: db, service: service, stats: stats, logger: orDefault(logger)}
}

type statsQuery struct {
	Days int `form:"days"`
}

type setActiveRequest struct {
	IsActive *bool `json:"is_active" binding:"required"`
}

type executeRequest struct {
	services.TriggerContext
	Force bool `json:"force"`
}

type triggerRequest struct {
	TriggerType string `json:"trigger_type" binding:"required"`
	services.TriggerContext
}

func (h *AutomationHandler) List(c *gin.Context) {
	scope, okScope := ownerScope(c, h.db)
	if !okScope {
		return
	}
	var req services.AutomationListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		fail(c, http.StatusBadRequest, "Invalid request", err.Error())
		return
	}
	rows, err := h.service.List(c.Request.Context(), scope, req)
	if err != nil {
		respondError(c, h.logger, "list automations", err)
		return
	}
	ok(c, http.StatusOK, rows)
}

func (h *AutomationHandler) Get(c *gin.Context) {
	scope, okScope := ownerScope(c, h.db)
	if !okScope {
		return
	}
	a, err := h.service.Get(c.Request.Context(), scope, c.Param("id"))
	if err != nil {
		respondError(c, h.logger, "get automation", err)
		return
	}
	ok(c, http.StatusOK, a)
}

func (h *AutomationHandler) Create(c *gin.Context) {
	scope, okScope := ownerScope(c, h.db)
	if !okScope {
		return
	}
	var req services.AutomationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "Invalid request", err.Error())
		return
	}
	a, err := h.service.Create(c.Request.Context(), scope, &req)
	if err != nil {
		respondError(c, h.logger, "create automation", err)
		return
	}
	ok(c, http.StatusCreated, a)
}

func (h *AutomationHandler) Update(c *gin.Context) {
	scope, okScope := ownerScope(c, h.db)
	if !okScope {
		return
	}
	var req services.AutomationUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "Invalid request", err.Error())
		return
	}
	a, err := h.service.Update(c.Request.Context(), scope, c.Param("id"), &req)
	if err != nil {
		respondError(c, h.logger, "update automation", err)
		return
	}
	ok(c, http.StatusOK, a)
}

// SetActive enables or disables an automation.
func (h *AutomationHandler) SetActive(c *gin.Context) {
	scope, okScope := ownerScope(c, h.db)
	if !okScope {
		return
	}
	var req setActiveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "Invalid request", err.Error())
		return
	}
	a, err := h.service.SetActive(c.Request.Context(), scope, c.Param("id"), *req.IsActive)
	if err != nil {
		respondError(c, h.logger, "toggle automation", err)
		return
	}
	ok(c, http.StatusOK, a)
}

func (h *AutomationHandler) Delete(c *gin.Context) {
	scope, okScope := ownerScope(c, h.db)
	if !okScope {
		return
	}
	if err := h.service.Delete(c.Request.Context(), scope, c.Param("id")); err != nil {
		respondError(c, h.logger, "delete automation", err)
		return
	}
	c.JSON(http.StatusOK, SuccessResponse{Success: true, Message: "deleted"})
}

// Execute runs one automation by hand against the posted trigger context.
func (h *AutomationHandler) Execute(c *gin.Context) {
	scope, okScope := ownerScope(c, h.db)
	if !okScope {
		return
	}
	var req executeRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			fail(c, http.StatusBadRequest, "Invalid request", err.Error())
			return
		}
	}
	run, err := h.service.ExecuteAutomation(c.Request.Context(), scope, c.Param("id"), req.TriggerContext, req.Force)
	if err != nil {
		respondError(c, h.logger, "execute automation", err)
		return
	}
	ok(c, http.StatusOK, run)
}

// Trigger dispatches a trigger type to every matching active automation.
func (h *AutomationHandler) Trigger(c *gin.Context) {
	scope, okScope := ownerScope(c, h.db)
	if !okScope {
		return
	}
	var req triggerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "Invalid request", err.Error())
		return
	}
	res, err := h.service.Dispatch(c.Request.Context(), scope, req.TriggerType, req.TriggerContext)
	if err != nil {
		respondError(c, h.logger, "dispatch trigger", err)
		return
	}
	ok(c, http.StatusOK, res)
}

func (h *AutomationHandler) Seed(c *gin.Context) {
	h.seed(c, false)
}

// Reseed deletes the predefined rows and inserts the catalog again.
func (h *AutomationHandler) Reseed(c *gin.Context) {
	h.seed(c, true)
}

func (h *AutomationHandler) seed(c *gin.Context, reseed bool) {
	scope, okScope := ownerScope(c, h.db)
	if !okScope {
		return
	}
	var (
		n   int
		err error
	)
	if reseed {
		n, err = h.service.ReseedPredefined(c.Request.Context(), scope)
	} else {
		n, err = h.service.SeedPredefined(c.Request.Context(), scope)
	}
	if err != nil {
		respondError(c, h.logger, "seed automations", err)
		return
	}
	ok(c, http.StatusOK, gin.H{"created": n})
}

func (h *AutomationHandler) Executions(c *gin.Context) {
	scope, okScope := ownerScope(c, h.db)
	if !okScope {
		return
	}
	var req services.ExecutionListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		fail(c, http.StatusBadRequest, "Invalid request", err.Error())
		return
	}
	rows, total, err := h.service.ListExecutions(c.Request.Context(), scope, req)
	if err != nil {
		respondError(c, h.logger, "list executions", err)
		return
	}
	paginated(c, rows, total, req.Page, req.PageSize)
}

// Stats returns totals and a daily breakdown for the last ?days= days (30 by default).
func (h *AutomationHandler) Stats(c *gin.Context) {
	scope, okScope := ownerScope(c, h.db)
	if !okScope {
		return
	}
	var q statsQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		fail(c, http.StatusBadRequest, "Invalid request", err.Error())
		return
	}
	start, end := h.stats.Window(q.Days)
	totals, err := h.stats.GetAutomationStats(c.Request.Context(), scope, start)
	if err != nil {
		respondError(c, h.logger, "load automation stats", err)
		return
	}
	daily, err := h.stats.GetDailyExecutionStats(c.Request.Context(), scope, start, end)
	if err != nil {
		respondError(c, h.logger, "load automation stats", err)
		return
	}
	ok(c, http.StatusOK, gin.H{"totals": totals, "daily": daily})
}

func (h *AutomationHandler) Catalog(c *gin.Context) {
	ok(c, http.StatusOK, h.service.Catalog())
}

// RegisterAutomationRoutes mounts the automation routes under r.
func RegisterAutomationRoutes(r *gin.RouterGroup, h *AutomationHandler) {
	auto := r.Group("/automations")
	{
		auto.GET("", h.List)
		auto.POST("", h.Create)
		auto.GET("/catalog", h.Catalog)
		auto.GET("/executions", h.Executions)
		auto.GET("/stats", h.Stats)
		auto.POST("/seed", h.Seed)
		auto.POST("/reseed", h.Reseed)
		auto.POST("/trigger", h.Trigger)
		auto.GET("/:id", h.Get)
		auto.PUT("/:id", h.Update)
		auto.DELETE("/:id", h.Delete)
		auto.PUT("/:id/active", h.SetActive)
		auto.POST("/:id/execute", h.Execute)
	}
}
