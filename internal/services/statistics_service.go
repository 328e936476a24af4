package services

import (
	"context"
	"fmt"
	"time"

	"taskelio/internal/models"
	"taskelio/internal/store"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

const maxStatsDays = 90

// StatisticsService aggregates the execution log for the dashboard.
type StatisticsService struct {
	db     *gorm.DB
	logger *logrus.Logger
	now    func() time.Time
}

func NewStatisticsService(db *gorm.DB, logger *logrus.Logger) *StatisticsService {
	if logger == nil {
		logger = logrus.New()
	}
	return &StatisticsService{db: db, logger: logger, now: utcNow}
}

// AutomationStats summarises an owner's automations since a point in time.
type AutomationStats struct {
	Since               time.Time      `json:"since"`
	TotalAutomations    int64          `json:"total_automations"`
	ActiveAutomations   int64          `json:"active_automations"`
	TotalExecutions     int64          `json:"total_executions"`
	SuccessExecutions   int64          `json:"success_executions"`
	SkippedExecutions   int64          `json:"skipped_executions"`
	FailedExecutions    int64          `json:"failed_executions"`
	SuccessRate         float64        `json:"success_rate"` // success / (success + failed), skipped excluded
	UnreadNotifications int64          `json:"unread_notifications"`
	ByTrigger           []TriggerStats `json:"by_trigger"`
}

// TriggerStats counts executions of one trigger type ending in one status.
type TriggerStats struct {
	TriggerType string `json:"trigger_type"`
	Status      string `json:"status"`
	Count       int64  `json:"count"`
}

// DailyExecutionStats is one day of the execution log.
type DailyExecutionStats struct {
	Date    string `json:"date"`
	Success int64  `json:"success"`
	Skipped int64  `json:"skipped"`
	Failed  int64  `json:"failed"`
}

// GetAutomationStats counts registry rows and executions since the given day.
func (s *StatisticsService) GetAutomationStats(ctx context.Context, scope *store.Scope, since time.Time) (*AutomationStats, error) {
	stats := &AutomationStats{Since: since.UTC(), ByTrigger: []TriggerStats{}}

	if err := scope.Model(ctx, &models.AutomationConfig{}).Count(&stats.TotalAutomations).Error; err != nil {
		return nil, fmt.Errorf("count automations: %w", err)
	}
	if err := scope.Model(ctx, &models.AutomationConfig{}).Where("is_active = ?", true).Count(&stats.ActiveAutomations).Error; err != nil {
		return nil, fmt.Errorf("count active automations: %w", err)
	}
	if err := scope.Model(ctx, &models.UserNotification{}).Where("is_read = ?", false).Count(&stats.UnreadNotifications).Error; err != nil {
		return nil, fmt.Errorf("count notifications: %w", err)
	}

	if err := scope.Model(ctx, &models.AutomationExecution{}).
		Select("trigger_type, status, COUNT(*) as count").
		Where("created_at >= ?", since).
		Group("trigger_type, status").
		Order("trigger_type, status").
		Scan(&stats.ByTrigger).Error; err != nil {
		return nil, fmt.Errorf("group executions: %w", err)
	}

	for _, row := range stats.ByTrigger {
		stats.TotalExecutions += row.Count
		switch row.Status {
		case models.ExecutionSuccess:
			stats.SuccessExecutions += row.Count
		case models.ExecutionSkipped:
			stats.SkippedExecutions += row.Count
		case models.ExecutionFailed:
			stats.FailedExecutions += row.Count
		}
	}
	if decided := stats.SuccessExecutions + stats.FailedExecutions; decided > 0 {
		stats.SuccessRate = float64(stats.SuccessExecutions) / float64(decided)
	}
	return stats, nil
}

// GetDailyExecutionStats returns one entry per UTC day in [start, end],
// capped at 90 days ending at end.
func (s *StatisticsService) GetDailyExecutionStats(ctx context.Context, scope *store.Scope, start, end time.Time) ([]DailyExecutionStats, error) {
	current := start.UTC().Truncate(24 * time.Hour)
	last := end.UTC().Truncate(24 * time.Hour)
	if last.Sub(current) > maxStatsDays*24*time.Hour {
		current = last.Add(-(maxStatsDays - 1) * 24 * time.Hour)
	}

	stats := []DailyExecutionStats{}
	for !current.After(last) {
		next := current.Add(24 * time.Hour)
		var rows []TriggerStats
		if err := scope.Model(ctx, &models.AutomationExecution{}).
			Select("status, COUNT(*) as count").
			Where("created_at >= ? AND created_at < ?", current, next).
			Group("status").
			Scan(&rows).Error; err != nil {
			return nil, fmt.Errorf("daily executions %s: %w", current.Format("2006-01-02"), err)
		}
		day := DailyExecutionStats{Date: current.Format("2006-01-02")}
		for _, r := range rows {
			switch r.Status {
			case models.ExecutionSuccess:
				day.Success = r.Count
			case models.ExecutionSkipped:
				day.Skipped = r.Count
			case models.ExecutionFailed:
				day.Failed = r.Count
			}
		}
		stats = append(stats, day)
		current = next
	}
	return stats, nil
}

// Window returns [now - days + 1 day, now] for dashboard queries.
func (s *StatisticsService) Window(days int) (start, end time.Time) {
	if days <= 0 {
		days = 30
	}
	if days > maxStatsDays {
		days = maxStatsDays
	}
	end = s.now()
	start = end.Truncate(24 * time.Hour).Add(-time.Duration(days-1) * 24 * time.Hour)
	return start, end
}
