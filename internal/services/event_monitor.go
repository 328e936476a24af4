package services

import (
	"context"
	"fmt"
	"math"
	"time"

	"taskelio/internal/metrics"
	"taskelio/internal/models"
	"taskelio/internal/store"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
)

const (
	meetingLookahead  = 24 * time.Hour
	deadlineLookahead = 3 * 24 * time.Hour
)

// EventCandidate is one trigger event found by the recent-event scan.
type EventCandidate struct {
	TriggerType string         `json:"trigger_type"`
	Context     TriggerContext `json:"context"`
}

func (m *MonitoringService) eventWindow() time.Duration {
	if m.cfg.EventWindow > 0 {
		return m.cfg.EventWindow
	}
	return time.Hour
}

// ScanRecentEvents collects template-driven trigger events for the owner.
func (m *MonitoringService) ScanRecentEvents(ctx context.Context, scope *store.Scope) ([]EventCandidate, error) {
	ctx, span := tracer.Start(ctx, "detector.events")
	defer span.End()
	started := time.Now()

	now := m.now()
	since := now.Add(-m.eventWindow())
	var out []EventCandidate

	var clients []models.Client
	q := scope.Query(ctx).Where("created_at >= ?", since).Order("created_at ASC")
	if err := m.capped(q, &clients, func() int { return len(clients) }, "new clients"); err != nil {
		return nil, err
	}
	for _, c := range clients {
		out = append(out, EventCandidate{TriggerType: TriggerClientCreated, Context: TriggerContext{
			EntityID: c.ID,
			ClientID: c.ID,
			Payload:  map[string]interface{}{"client": c},
		}})
	}

	var completed []models.Project
	q = scope.Query(ctx).Where("status = ? AND updated_at >= ?", "completed", since).Order("updated_at ASC")
	if err := m.capped(q, &completed, func() int { return len(completed) }, "completed projects"); err != nil {
		return nil, err
	}
	for _, p := range completed {
		out = append(out, EventCandidate{TriggerType: TriggerProjectCompleted, Context: projectContext(p, nil)})
	}

	var events []models.CalendarEvent
	q = scope.Query(ctx).Where("start_time >= ? AND start_time <= ?", now, now.Add(meetingLookahead)).Order("start_time ASC")
	if err := m.capped(q, &events, func() int { return len(events) }, "calendar events"); err != nil {
		return nil, err
	}
	for _, e := range events {
		tc := TriggerContext{
			EntityID: e.ID,
			Payload: map[string]interface{}{
				"event":      e,
				"start_time": formatTime(e.StartTime),
				"deadline":   formatTime(e.StartTime),
			},
		}
		if e.ClientID != nil {
			tc.ClientID = *e.ClientID
		}
		if e.ProjectID != nil {
			tc.ProjectID = *e.ProjectID
		}
		out = append(out, EventCandidate{TriggerType: TriggerMeetingScheduled, Context: tc})
	}

	var invoices []models.Invoice
	q = scope.Query(ctx).Where("status IN ? AND due_date IS NOT NULL AND due_date < ?", []string{"sent", "overdue"}, now).Order("due_date ASC")
	if err := m.capped(q, &invoices, func() int { return len(invoices) }, "overdue invoices"); err != nil {
		return nil, err
	}
	for _, inv := range invoices {
		out = append(out, EventCandidate{TriggerType: TriggerInvoiceOverdue, Context: TriggerContext{
			EntityID: inv.ID,
			ClientID: inv.ClientID,
			Payload: map[string]interface{}{
				"invoice":      inv,
				"days_overdue": wholeDays(now.Sub(*inv.DueDate)),
				"deadline":     formatTime(*inv.DueDate),
			},
		}})
	}

	var tasks []models.Task
	q = scope.Query(ctx).Where("status <> ? AND due_date IS NOT NULL AND due_date < ?", "done", now).Order("due_date ASC")
	if err := m.capped(q, &tasks, func() int { return len(tasks) }, "overdue tasks"); err != nil {
		return nil, err
	}
	for _, t := range tasks {
		tc := TriggerContext{
			EntityID: t.ID,
			Payload: map[string]interface{}{
				"task":         t,
				"days_overdue": wholeDays(now.Sub(*t.DueDate)),
				"deadline":     formatTime(*t.DueDate),
			},
		}
		if t.ProjectID != nil {
			tc.ProjectID = *t.ProjectID
		}
		if t.ClientID != nil {
			tc.ClientID = *t.ClientID
		}
		out = append(out, EventCandidate{TriggerType: TriggerTaskOverdue, Context: tc})
	}

	var due []models.Project
	q = scope.Query(ctx).Where("status = ? AND deadline IS NOT NULL AND deadline >= ? AND deadline <= ?",
		"active", now, now.Add(deadlineLookahead)).Order("deadline ASC")
	if err := m.capped(q, &due, func() int { return len(due) }, "project deadlines"); err != nil {
		return nil, err
	}
	for _, p := range due {
		out = append(out, EventCandidate{TriggerType: TriggerProjectDeadlineApproaching, Context: projectContext(p, map[string]interface{}{
			"days_left": int(math.Ceil(p.Deadline.Sub(now).Hours() / 24)),
			"deadline":  formatTime(*p.Deadline),
		})})
	}

	span.SetAttributes(attribute.Int("candidates", len(out)))
	metrics.ObserveDetectorScan("events", started, len(out))
	return out, nil
}

func projectContext(p models.Project, extra map[string]interface{}) TriggerContext {
	payload := map[string]interface{}{"project": p}
	for k, v := range extra {
		payload[k] = v
	}
	tc := TriggerContext{EntityID: p.ID, ProjectID: p.ID, Payload: payload}
	if p.ClientID != nil {
		tc.ClientID = *p.ClientID
	}
	return tc
}

func wholeDays(d time.Duration) int {
	if d < 0 {
		return 0
	}
	return int(d.Hours() / 24)
}

// RunEventAutomations scans recent events and dispatches each one. A failed
// dispatch is counted and the remaining events still run.
func (m *MonitoringService) RunEventAutomations(ctx context.Context, scope *store.Scope) (*MonitorRunResult, error) {
	events, err := m.ScanRecentEvents(ctx, scope)
	if err != nil {
		return nil, err
	}
	out := &MonitorRunResult{Detector: "events", Candidates: len(events)}
	for _, ev := range events {
		res, err := m.automations.Dispatch(ctx, scope, ev.TriggerType, ev.Context)
		if err != nil {
			m.logger.WithFields(logrus.Fields{
				"owner_id":     scope.OwnerID(),
				"trigger_type": ev.TriggerType,
				"entity_id":    ev.Context.EntityID,
			}).Warnf("event dispatch failed: %v", err)
			err = fmt.Errorf("%s %s: %w", ev.TriggerType, ev.Context.EntityID, err)
		}
		out.add(res, err)
	}
	return out, nil
}
