package handlers

import (
	"taskelio/internal/config"
	"taskelio/internal/metrics"
	"taskelio/internal/middleware"
	"taskelio/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"gorm.io/gorm"
)

// Deps are the services the router exposes.
type Deps struct {
	DB            *gorm.DB
	Automations   *services.AutomationService
	Statistics    *services.StatisticsService
	Monitoring    *services.MonitoringService
	Notifications *services.NotificationService
	Hub           *services.NotificationHub
	Generator     *services.ContentGenerator
	Logger        *logrus.Logger
}

// NewRouter builds the gin engine with middleware and every route.
func NewRouter(cfg *config.Config, d Deps) *gin.Engine {
	router := gin.New()
	router.Use(gin.Logger())
	router.Use(gin.Recovery())
	router.Use(middleware.CORS(cfg.Security.CORS))
	if cfg.Monitoring.Tracing.Enabled {
		router.Use(otelgin.Middleware(cfg.Monitoring.Tracing.ServiceName))
	}

	health := NewHealthHandler(d.DB)
	router.GET("/health", health.Health)
	router.GET("/ready", health.Ready)
	if cfg.Monitoring.Enabled {
		path := cfg.Monitoring.MetricsPath
		if path == "" {
			path = "/metrics"
		}
		router.GET(path, gin.WrapH(metrics.Handler()))
	}

	monitoring := NewMonitoringHandler(d.DB, d.Monitoring, d.Logger)
	internal := router.Group("/internal", middleware.RequireCronSecret(cfg.Cron.Secret))
	internal.POST("/monitoring/run", monitoring.RunAll)

	// auth runs before the limiter so authenticated callers get per-owner buckets
	api := router.Group("/api", middleware.Auth(cfg.JWT), middleware.RateLimit(cfg.Security.RateLimiting))
	RegisterAutomationRoutes(api, NewAutomationHandler(d.DB, d.Automations, d.Statistics, d.Logger))
	RegisterMonitoringRoutes(api, monitoring)
	RegisterAIRoutes(api, NewAIHandler(d.Generator, d.Logger))
	RegisterNotificationRoutes(api, NewNotificationHandler(d.DB, d.Notifications, d.Hub, d.Logger))

	return router
}
