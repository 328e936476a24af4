package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"taskelio/internal/metrics"
	"taskelio/internal/models"
	"taskelio/internal/store"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
)

// BudgetCandidate is an active project whose spend reached the threshold.
type BudgetCandidate struct {
	Project    models.Project `json:"project"`
	Client     *models.Client `json:"client,omitempty"`
	Spent      float64        `json:"spent"`
	Budget     float64        `json:"budget"`
	Percentage float64        `json:"percentage"`
}

// ScanBudgets returns active projects whose task spend is at least the
// configured share of their budget. Read only.
func (m *MonitoringService) ScanBudgets(ctx context.Context, scope *store.Scope) ([]BudgetCandidate, error) {
	ctx, span := tracer.Start(ctx, "detector.budget")
	defer span.End()
	started := time.Now()

	threshold := m.cfg.BudgetThreshold
	if threshold <= 0 {
		threshold = 0.8
	}
	defaultRate := m.cfg.DefaultHourlyRate
	if defaultRate <= 0 {
		defaultRate = 50
	}

	var projects []models.Project
	q := scope.Query(ctx).Where("status = ? AND budget IS NOT NULL AND budget > ?", "active", 0).Order("created_at ASC")
	if err := m.capped(q, &projects, func() int { return len(projects) }, "projects"); err != nil {
		m.logger.WithField("owner_id", scope.OwnerID()).Errorf("budget scan aborted: %v", err)
		return nil, err
	}

	var candidates []BudgetCandidate
	for _, p := range projects {
		if p.Budget == nil || *p.Budget <= 0 {
			continue
		}
		var tasks []models.Task
		if err := scope.Query(ctx).Select("actual_hours", "hourly_rate").Where("project_id = ?", p.ID).Find(&tasks).Error; err != nil {
			m.logger.WithFields(logrus.Fields{"owner_id": scope.OwnerID(), "project_id": p.ID}).
				Errorf("budget scan aborted: %v", err)
			return nil, fmt.Errorf("load tasks for project %s: %w", p.ID, err)
		}

		spent := 0.0
		for _, t := range tasks {
			rate := defaultRate
			if t.HourlyRate != nil {
				rate = *t.HourlyRate
			}
			spent += t.ActualHours * rate
		}
		budget := *p.Budget
		if spent/budget < threshold {
			continue
		}

		c := BudgetCandidate{
			Project:    p,
			Spent:      spent,
			Budget:     budget,
			Percentage: math.Round(spent/budget*10000) / 100,
		}
		if p.ClientID != nil {
			var client models.Client
			err := scope.First(ctx, &client, *p.ClientID)
			switch {
			case err == nil:
				c.Client = &client
			case !errors.Is(err, store.ErrNotFound):
				return nil, fmt.Errorf("load client %s: %w", *p.ClientID, err)
			}
		}
		candidates = append(candidates, c)
	}

	span.SetAttributes(attribute.Int("projects", len(projects)), attribute.Int("candidates", len(candidates)))
	metrics.ObserveDetectorScan("budget", started, len(candidates))
	return candidates, nil
}

// RunBudgetMonitoring scans and dispatches budget_exceeded per candidate.
func (m *MonitoringService) RunBudgetMonitoring(ctx context.Context, scope *store.Scope) (*MonitorRunResult, error) {
	candidates, err := m.ScanBudgets(ctx, scope)
	if err != nil {
		return nil, err
	}
	out := &MonitorRunResult{Detector: "budget", Candidates: len(candidates)}
	for _, c := range candidates {
		tc := TriggerContext{
			EntityID:  c.Project.ID,
			ProjectID: c.Project.ID,
			Payload: map[string]interface{}{
				"project":    c.Project,
				"spent":      c.Spent,
				"budget":     c.Budget,
				"percentage": c.Percentage,
			},
		}
		if c.Client != nil {
			tc.ClientID = c.Client.ID
			tc.Payload["client"] = c.Client
		}
		out.add(m.automations.Dispatch(ctx, scope, TriggerBudgetExceeded, tc))
	}
	return out, nil
}
