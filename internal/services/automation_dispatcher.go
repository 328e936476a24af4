package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"taskelio/internal/metrics"
	"taskelio/internal/models"
	"taskelio/internal/store"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"
)

var tracer = otel.Tracer("taskelio/services")

// Run outcomes reported per automation. Only the execution statuses are persisted.
const RunConditionFailed = "condition_failed"

// TriggerContext is a candidate trigger event. It lives only for one dispatch.
type TriggerContext struct {
	EntityID  string                 `json:"entity_id"`
	ClientID  string                 `json:"client_id,omitempty"`
	ProjectID string                 `json:"project_id,omitempty"`
	Payload   map[string]interface{} `json:"payload,omitempty"`
}

// AutomationRunResult describes one automation within a dispatch.
type AutomationRunResult struct {
	AutomationID string         `json:"automation_id"`
	Name         string         `json:"name"`
	Status       string         `json:"status"`
	ExecutionID  string         `json:"execution_id,omitempty"`
	Error        string         `json:"error,omitempty"`
	Actions      []ActionResult `json:"actions,omitempty"`
}

// DispatchResult summarises a dispatch of one trigger event.
type DispatchResult struct {
	TriggerType string                `json:"trigger_type"`
	EntityID    string                `json:"entity_id"`
	Runs        []AutomationRunResult `json:"runs"`
}

// Count returns how many runs ended with status.
func (r *DispatchResult) Count(status string) int {
	n := 0
	for _, run := range r.Runs {
		if run.Status == status {
			n++
		}
	}
	return n
}

type runContext struct {
	profile *models.Profile
	client  *models.Client
	project *models.Project
	tc      TriggerContext
	payload map[string]interface{}
}

// Dispatch runs every active automation of the owner bound to triggerType.
// A failing automation is logged and recorded; it does not stop the others.
func (s *AutomationService) Dispatch(ctx context.Context, scope *store.Scope, triggerType string, tc TriggerContext) (*DispatchResult, error) {
	if !IsValidTriggerType(triggerType) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidTrigger, triggerType)
	}
	ctx, span := tracer.Start(ctx, "automation.dispatch", trace.WithAttributes(
		attribute.String("trigger_type", triggerType),
		attribute.String("entity_id", tc.EntityID),
	))
	defer span.End()

	result := &DispatchResult{TriggerType: triggerType, EntityID: tc.EntityID, Runs: []AutomationRunResult{}}

	var automations []models.AutomationConfig
	if err := scope.Query(ctx).
		Where("trigger_type = ? AND is_active = ?", triggerType, true).
		Order("created_at ASC").
		Find(&automations).Error; err != nil {
		return nil, fmt.Errorf("load automations: %w", err)
	}
	if len(automations) == 0 {
		return result, nil
	}

	rc, err := s.loadRunContext(ctx, scope, tc)
	if err != nil {
		return nil, err
	}
	result.EntityID = rc.tc.EntityID

	for i := range automations {
		run := s.runAutomation(ctx, scope, &automations[i], triggerType, rc, false)
		result.Runs = append(result.Runs, run)
	}
	return result, nil
}

// ExecuteAutomation runs one automation by id. force skips the condition
// check; inactive automations can still be run manually.
func (s *AutomationService) ExecuteAutomation(ctx context.Context, scope *store.Scope, id string, tc TriggerContext, force bool) (*AutomationRunResult, error) {
	a, err := s.Get(ctx, scope, id)
	if err != nil {
		return nil, err
	}
	rc, err := s.loadRunContext(ctx, scope, tc)
	if err != nil {
		return nil, err
	}
	run := s.runAutomation(ctx, scope, a, a.TriggerType, rc, force)
	return &run, nil
}

func (s *AutomationService) loadRunContext(ctx context.Context, scope *store.Scope, tc TriggerContext) (*runContext, error) {
	rc := &runContext{tc: tc}

	var profile models.Profile
	err := s.db.WithContext(ctx).Where("id = ?", scope.OwnerID()).First(&profile).Error
	switch {
	case err == nil:
		rc.profile = &profile
	case errors.Is(err, gorm.ErrRecordNotFound):
	default:
		return nil, fmt.Errorf("load profile: %w", err)
	}

	if tc.ProjectID != "" {
		var project models.Project
		if err := scope.First(ctx, &project, tc.ProjectID); err != nil {
			return nil, fmt.Errorf("load project %s: %w", tc.ProjectID, err)
		}
		rc.project = &project
		if tc.ClientID == "" && project.ClientID != nil {
			tc.ClientID = *project.ClientID
			rc.tc.ClientID = tc.ClientID
		}
	}
	if tc.ClientID != "" {
		var client models.Client
		if err := scope.First(ctx, &client, tc.ClientID); err != nil {
			return nil, fmt.Errorf("load client %s: %w", tc.ClientID, err)
		}
		rc.client = &client
	}
	if rc.tc.EntityID == "" {
		switch {
		case rc.project != nil:
			rc.tc.EntityID = rc.project.ID
		case rc.client != nil:
			rc.tc.EntityID = rc.client.ID
		}
	}

	payload := normalizePayload(tc.Payload)
	if _, ok := payload["client"]; !ok && rc.client != nil {
		payload["client"] = normalizePayload(rc.client)
	}
	if _, ok := payload["project"]; !ok && rc.project != nil {
		payload["project"] = normalizePayload(rc.project)
	}
	rc.payload = payload
	return rc, nil
}

func (s *AutomationService) runAutomation(ctx context.Context, scope *store.Scope, a *models.AutomationConfig, triggerType string, rc *runContext, force bool) AutomationRunResult {
	started := s.now()
	run := AutomationRunResult{AutomationID: a.ID, Name: a.Name}
	log := s.logger.WithFields(logrus.Fields{
		"owner_id":      scope.OwnerID(),
		"automation_id": a.ID,
		"trigger_type":  triggerType,
		"entity_id":     rc.tc.EntityID,
	})

	rec := &models.AutomationExecution{
		AutomationID:   a.ID,
		TriggerType:    triggerType,
		EntityID:       rc.tc.EntityID,
		TriggerPayload: toJSON(rc.payload),
	}
	rec.ID = uuid.NewString()

	finish := func(status, errMsg string, generated map[string]interface{}) AutomationRunResult {
		rec.Status = status
		rec.ErrorMessage = errMsg
		rec.DurationMs = s.now().Sub(started).Milliseconds()
		rec.CreatedAt = s.now()
		if len(generated) > 0 {
			rec.GeneratedContent = toJSON(generated)
		}
		rec.IntegrationResponse = toJSON(run.Actions)
		if err := s.execLog.Record(ctx, scope, rec); err == nil {
			run.ExecutionID = rec.ID
		}
		if status == models.ExecutionSuccess {
			s.markExecuted(ctx, scope, a.ID, log)
		}
		metrics.ObserveAutomationRun(triggerType, status)
		run.Status = status
		run.Error = errMsg
		return run
	}

	if !force {
		conds, err := ParseConditions(a.TriggerConditions)
		if err != nil {
			log.Warnf("automation has invalid conditions: %v", err)
			return finish(models.ExecutionFailed, "invalid conditions: "+err.Error(), nil)
		}
		if !conds.Match(rc.payload) {
			log.Debug("automation conditions not met")
			metrics.ObserveAutomationRun(triggerType, RunConditionFailed)
			run.Status = RunConditionFailed
			return run
		}
	}

	actions, err := decodeActions(a.Actions)
	if err != nil {
		log.Warnf("automation has invalid actions: %v", err)
		return finish(models.ExecutionFailed, err.Error(), nil)
	}

	ec := &ExecutionContext{
		Profile:     rc.profile,
		Client:      rc.client,
		Project:     rc.project,
		Automation:  a,
		ExecutionID: rec.ID,
		EntityID:    rc.tc.EntityID,
		Payload:     rc.payload,
	}

	generated := map[string]interface{}{}
	succeeded, skipped := 0, 0
	for i, action := range actions {
		ec.Generated = nil
		ec.ActionIndex = i
		res, err := s.executor.Execute(ctx, scope, action, ec)
		run.Actions = append(run.Actions, res)
		if res.Generated != nil {
			generated[fmt.Sprintf("%d_%s", i, action.Type)] = res.Generated
		}
		if err != nil {
			log.WithField("action", action.Type).Warnf("automation action failed: %v", err)
			return finish(models.ExecutionFailed, fmt.Sprintf("action %d (%s): %v", i, action.Type, err), generated)
		}
		if res.Skipped {
			skipped++
		} else {
			succeeded++
		}
	}

	if len(actions) > 0 && succeeded == 0 && skipped > 0 {
		return finish(models.ExecutionSkipped, "", generated)
	}
	log.WithField("actions", succeeded).Info("automation executed")
	return finish(models.ExecutionSuccess, "", generated)
}

// markExecuted bumps the counter in SQL so concurrent runs do not lose updates.
func (s *AutomationService) markExecuted(ctx context.Context, scope *store.Scope, id string, log *logrus.Entry) {
	err := scope.Model(ctx, &models.AutomationConfig{}).Where("id = ?", id).
		Updates(map[string]interface{}{
			"execution_count":  gorm.Expr("execution_count + ?", 1),
			"last_executed_at": s.now(),
		}).Error
	if err != nil {
		log.Warnf("update execution counter: %v", err)
	}
}

// normalizePayload round-trips v through JSON so numbers become float64 and
// structs become maps, which is what conditions and templates expect.
func normalizePayload(v interface{}) map[string]interface{} {
	out := map[string]interface{}{}
	if v == nil {
		return out
	}
	b, err := json.Marshal(v)
	if err != nil {
		return out
	}
	if err := json.Unmarshal(b, &out); err != nil || out == nil {
		return map[string]interface{}{}
	}
	return out
}

// formatTime renders payload timestamps.
func formatTime(t time.Time) string { return t.UTC().Format(time.RFC3339) }
