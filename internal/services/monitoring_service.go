package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"taskelio/internal/config"
	"taskelio/internal/store"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// ErrScanTruncated is returned when a detector scan hits automation.max_scan_rows.
var ErrScanTruncated = errors.New("scan truncated: row cap reached")

// MonitorRunResult summarises one detector run followed by dispatch.
type MonitorRunResult struct {
	Detector   string            `json:"detector"`
	Candidates int               `json:"candidates"`
	Dispatched int               `json:"dispatched"`
	Succeeded  int               `json:"succeeded"`
	Skipped    int               `json:"skipped"`
	Failed     int               `json:"failed"`
	Errors     []string          `json:"errors,omitempty"`
	Results    []*DispatchResult `json:"results,omitempty"`
}

func (r *MonitorRunResult) add(res *DispatchResult, err error) {
	if err != nil {
		r.Failed++
		r.Errors = append(r.Errors, err.Error())
		return
	}
	r.Dispatched++
	r.Succeeded += res.Count("success")
	r.Skipped += res.Count("skipped")
	r.Failed += res.Count("failed")
	r.Results = append(r.Results, res)
}

// OwnerRunSummary is one owner's slice of RunAll.
type OwnerRunSummary struct {
	OwnerID string              `json:"owner_id"`
	Runs    []*MonitorRunResult `json:"runs"`
	Errors  []string            `json:"errors,omitempty"`
}

// MonitoringService hosts the trigger detectors and feeds their candidates to
// the automation dispatcher.
type MonitoringService struct {
	db          *gorm.DB
	automations *AutomationService
	cfg         config.AutomationConfig
	logger      *logrus.Logger
	now         func() time.Time
}

func NewMonitoringService(db *gorm.DB, automations *AutomationService, cfg config.AutomationConfig, logger *logrus.Logger) *MonitoringService {
	if logger == nil {
		logger = logrus.New()
	}
	return &MonitoringService{db: db, automations: automations, cfg: cfg, logger: logger, now: utcNow}
}

// RunAll runs every detector for every owner. One owner's failure is logged
// and does not stop the others.
func (m *MonitoringService) RunAll(ctx context.Context) ([]OwnerRunSummary, error) {
	owners, err := store.Owners(ctx, m.db)
	if err != nil {
		return nil, err
	}

	summaries := make([]OwnerRunSummary, 0, len(owners))
	for _, owner := range owners {
		if err := ctx.Err(); err != nil {
			return summaries, err
		}
		scope, err := store.ForOwner(m.db, owner)
		if err != nil {
			continue
		}
		summary := OwnerRunSummary{OwnerID: owner}
		log := m.logger.WithField("owner_id", owner)

		if res, err := m.RunBudgetMonitoring(ctx, scope); err != nil {
			log.Errorf("budget monitoring failed: %v", err)
			summary.Errors = append(summary.Errors, err.Error())
		} else {
			summary.Runs = append(summary.Runs, res)
		}
		if res, err := m.RunInactivityMonitoring(ctx, scope, InactivityOptions{}); err != nil {
			log.Errorf("inactivity monitoring failed: %v", err)
			summary.Errors = append(summary.Errors, err.Error())
		} else {
			summary.Runs = append(summary.Runs, res)
		}
		if res, err := m.RunEventAutomations(ctx, scope); err != nil {
			log.Errorf("event automations failed: %v", err)
			summary.Errors = append(summary.Errors, err.Error())
		} else {
			summary.Runs = append(summary.Runs, res)
		}
		summaries = append(summaries, summary)
	}

	m.logger.WithField("owners", len(owners)).Info("scheduled monitoring finished")
	return summaries, nil
}

func (m *MonitoringService) scanLimit() int {
	if m.cfg.MaxScanRows > 0 {
		return m.cfg.MaxScanRows
	}
	return 5000
}

// capped applies the scan cap and maps a hit to ErrScanTruncated.
func (m *MonitoringService) capped(q *gorm.DB, dest interface{}, count func() int, what string) error {
	truncated, err := store.Capped(q, dest, m.scanLimit(), count)
	if err != nil {
		return fmt.Errorf("scan %s: %w", what, err)
	}
	if truncated {
		return fmt.Errorf("scan %s: %w (limit %d)", what, ErrScanTruncated, m.scanLimit())
	}
	return nil
}
