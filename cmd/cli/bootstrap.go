package cli

import (
	"fmt"
	"strings"
	"time"

	"taskelio/internal/config"
	"taskelio/internal/services"

	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	gormtracing "gorm.io/plugin/opentelemetry/tracing"
)

// app is the wired service graph shared by the commands.
type app struct {
	cfg           *config.Config
	db            *gorm.DB
	logger        *logrus.Logger
	hub           *services.NotificationHub
	notifications *services.NotificationService
	generator     *services.ContentGenerator
	automations   *services.AutomationService
	statistics    *services.StatisticsService
	monitoring    *services.MonitoringService
}

// loadConfig reads viper state and initialises the global logger.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if err := config.InitLogger(cfg); err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	return cfg, nil
}

func openDatabase(cfg *config.Config) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch strings.ToLower(cfg.Database.Driver) {
	case "sqlite":
		dsn := cfg.Database.DSN
		if dsn == "" {
			dsn = "taskelio.db"
		}
		dialector = sqlite.Open(dsn)
	case "", "postgres", "postgresql":
		dialector = postgres.Open(cfg.Database.PostgresDSN())
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Database.Driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.New(logrus.StandardLogger(), logger.Config{
			SlowThreshold:             200 * time.Millisecond,
			LogLevel:                  gormLogLevel(cfg.Log.Level),
			IgnoreRecordNotFoundError: true,
		}),
		NowFunc: func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	if cfg.Database.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	}
	if cfg.Database.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	}
	if cfg.Database.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(cfg.Database.ConnMaxLifetime)
	}

	if cfg.Monitoring.Tracing.Enabled {
		if err := db.Use(gormtracing.NewPlugin()); err != nil {
			logrus.Warnf("gorm tracing plugin: %v", err)
		}
	}
	return db, nil
}

func gormLogLevel(level string) logger.LogLevel {
	switch strings.ToLower(level) {
	case "debug", "trace":
		return logger.Info
	case "warn", "warning", "info":
		return logger.Warn
	case "error", "fatal", "panic":
		return logger.Error
	default:
		return logger.Warn
	}
}

// newApp opens the database and wires every service.
func newApp() (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	db, err := openDatabase(cfg)
	if err != nil {
		return nil, err
	}
	log := logrus.StandardLogger()

	var breaker *services.CircuitBreaker
	if cfg.CircuitBreaker.Enabled {
		breaker = services.NewCircuitBreaker(cfg.CircuitBreaker)
	}

	a := &app{cfg: cfg, db: db, logger: log}
	a.hub = services.NewNotificationHub(log)
	a.notifications = services.NewNotificationService(db, a.hub, log)
	a.generator = services.NewContentGenerator(cfg.AI.OpenAI, breaker, log)
	executor := services.NewActionExecutor(a.generator, services.NewEmailSender(cfg.Email, log),
		a.notifications, services.NewDedupGuard(db), cfg.Automation, log)
	a.automations = services.NewAutomationService(db, executor, services.NewExecutionLogger(log), log)
	a.monitoring = services.NewMonitoringService(db, a.automations, cfg.Automation, log)
	a.statistics = services.NewStatisticsService(db, log)
	return a, nil
}

func (a *app) close() {
	if sqlDB, err := a.db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}
