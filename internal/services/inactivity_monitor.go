package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"taskelio/internal/metrics"
	"taskelio/internal/models"
	"taskelio/internal/store"

	"go.opentelemetry.io/otel/attribute"
	"gorm.io/gorm"
)

// Inactivity reasons.
const (
	ReasonNoCommunication = "no_communication"
	ReasonNoProjectWork   = "no_project_work"
	ReasonBoth            = "both"
)

var ErrInvalidOptions = errors.New("invalid detector options")

// InactivityOptions tunes the inactive-client scan. Unset fields use the
// configured threshold and check both dimensions.
type InactivityOptions struct {
	ThresholdDays      int   `json:"threshold_days" form:"threshold_days"`
	CheckCommunication *bool `json:"check_communication" form:"check_communication"`
	CheckProjectWork   *bool `json:"check_project_work" form:"check_project_work"`
}

// InactiveClient is a client with no recent activity on a checked dimension.
type InactiveClient struct {
	Client                models.Client `json:"client"`
	LastCommunicationAt   *time.Time    `json:"last_communication_at"`
	LastProjectWorkAt     *time.Time    `json:"last_project_work_at"`
	DaysSinceLastActivity int           `json:"days_since_last_activity"`
	Reasons               []string      `json:"reasons"`
	Reason                string        `json:"reason"`
}

func (m *MonitoringService) resolveInactivity(opts InactivityOptions) (days int, checkComm, checkWork bool, err error) {
	days = opts.ThresholdDays
	if days <= 0 {
		days = m.cfg.InactivityDays
	}
	if days <= 0 {
		days = 30
	}
	checkComm, checkWork = true, true
	if opts.CheckCommunication != nil {
		checkComm = *opts.CheckCommunication
	}
	if opts.CheckProjectWork != nil {
		checkWork = *opts.CheckProjectWork
	}
	if !checkComm && !checkWork {
		return 0, false, false, fmt.Errorf("%w: at least one activity dimension must be checked", ErrInvalidOptions)
	}
	return days, checkComm, checkWork, nil
}

// ScanInactiveClients lists clients failing any checked activity dimension.
func (m *MonitoringService) ScanInactiveClients(ctx context.Context, scope *store.Scope, opts InactivityOptions) ([]InactiveClient, error) {
	days, checkComm, checkWork, err := m.resolveInactivity(opts)
	if err != nil {
		return nil, err
	}
	ctx, span := tracer.Start(ctx, "detector.inactivity")
	defer span.End()
	started := time.Now()

	now := m.now()
	cutoff := now.Add(-time.Duration(days) * 24 * time.Hour)

	var clients []models.Client
	q := scope.Query(ctx).Order("created_at ASC")
	if err := m.capped(q, &clients, func() int { return len(clients) }, "clients"); err != nil {
		return nil, err
	}

	var out []InactiveClient
	for _, c := range clients {
		lastComm, err := m.latestCommunication(ctx, scope, c.ID)
		if err != nil {
			return nil, err
		}
		lastWork, err := m.latestProjectWork(ctx, scope, c.ID)
		if err != nil {
			return nil, err
		}

		var reasons []string
		if checkComm && (lastComm == nil || !lastComm.After(cutoff)) {
			reasons = append(reasons, ReasonNoCommunication)
		}
		if checkWork && (lastWork == nil || !lastWork.After(cutoff)) {
			reasons = append(reasons, ReasonNoProjectWork)
		}
		if len(reasons) == 0 {
			continue
		}

		last := c.CreatedAt
		if t := latest(lastComm, lastWork); t != nil {
			last = *t
		}
		ic := InactiveClient{
			Client:                c,
			LastCommunicationAt:   lastComm,
			LastProjectWorkAt:     lastWork,
			DaysSinceLastActivity: int(now.Sub(last).Hours() / 24),
			Reasons:               reasons,
			Reason:                reasons[0],
		}
		if len(reasons) == 2 {
			ic.Reason = ReasonBoth
		}
		out = append(out, ic)
	}

	span.SetAttributes(attribute.Int("clients", len(clients)), attribute.Int("candidates", len(out)))
	metrics.ObserveDetectorScan("inactivity", started, len(out))
	return out, nil
}

func (m *MonitoringService) latestCommunication(ctx context.Context, scope *store.Scope, clientID string) (*time.Time, error) {
	var row models.ClientCommunication
	err := scope.Query(ctx).Select("created_at").Where("client_id = ?", clientID).
		Order("created_at DESC").Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("latest communication for client %s: %w", clientID, err)
	}
	return &row.CreatedAt, nil
}

// latestProjectWork is the newest update among the client's projects and
// their tasks.
func (m *MonitoringService) latestProjectWork(ctx context.Context, scope *store.Scope, clientID string) (*time.Time, error) {
	var projects []models.Project
	if err := scope.Query(ctx).Select("id", "updated_at").Where("client_id = ?", clientID).Find(&projects).Error; err != nil {
		return nil, fmt.Errorf("projects for client %s: %w", clientID, err)
	}
	var newest *time.Time
	ids := make([]string, 0, len(projects))
	for i := range projects {
		ids = append(ids, projects[i].ID)
		newest = latest(newest, &projects[i].UpdatedAt)
	}

	taskQuery := scope.Query(ctx).Select("updated_at")
	if len(ids) > 0 {
		taskQuery = taskQuery.Where("client_id = ? OR project_id IN ?", clientID, ids)
	} else {
		taskQuery = taskQuery.Where("client_id = ?", clientID)
	}
	var task models.Task
	err := taskQuery.Order("updated_at DESC").Take(&task).Error
	switch {
	case err == nil:
		newest = latest(newest, &task.UpdatedAt)
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return nil, fmt.Errorf("tasks for client %s: %w", clientID, err)
	}
	return newest, nil
}

func latest(ts ...*time.Time) *time.Time {
	var out *time.Time
	for _, t := range ts {
		if t != nil && (out == nil || t.After(*out)) {
			out = t
		}
	}
	return out
}

// RunInactivityMonitoring scans and dispatches client_inactive per client.
func (m *MonitoringService) RunInactivityMonitoring(ctx context.Context, scope *store.Scope, opts InactivityOptions) (*MonitorRunResult, error) {
	inactive, err := m.ScanInactiveClients(ctx, scope, opts)
	if err != nil {
		return nil, err
	}
	out := &MonitorRunResult{Detector: "inactivity", Candidates: len(inactive)}
	for _, ic := range inactive {
		payload := map[string]interface{}{
			"client":                   ic.Client,
			"days_since_last_activity": ic.DaysSinceLastActivity,
			"reasons":                  ic.Reasons,
			"reason":                   ic.Reason,
		}
		if ic.LastCommunicationAt != nil {
			payload["last_communication_at"] = formatTime(*ic.LastCommunicationAt)
		}
		if ic.LastProjectWorkAt != nil {
			payload["last_project_work_at"] = formatTime(*ic.LastProjectWorkAt)
		}
		out.add(m.automations.Dispatch(ctx, scope, TriggerClientInactive, TriggerContext{
			EntityID: ic.Client.ID,
			ClientID: ic.Client.ID,
			Payload:  payload,
		}))
	}
	return out, nil
}
