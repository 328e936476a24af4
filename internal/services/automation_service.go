package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"taskelio/internal/models"
	"taskelio/internal/store"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrInvalidTrigger    = errors.New("invalid trigger type")
	ErrInvalidAction     = errors.New("invalid action")
	ErrInvalidAutomation = errors.New("invalid automation")
)

// AutomationRequest creates an automation.
type AutomationRequest struct {
	Name        string          `json:"name" binding:"required"`
	Description string          `json:"description"`
	TriggerType string          `json:"trigger_type" binding:"required"`
	Conditions  []ConditionSpec `json:"trigger_conditions"`
	Actions     []ActionSpec    `json:"actions"`
	IsActive    *bool           `json:"is_active"`
}

// AutomationUpdateRequest patches an automation; nil fields are untouched.
type AutomationUpdateRequest struct {
	Name        *string          `json:"name"`
	Description *string          `json:"description"`
	TriggerType *string          `json:"trigger_type"`
	Conditions  *[]ConditionSpec `json:"trigger_conditions"`
	Actions     *[]ActionSpec    `json:"actions"`
	IsActive    *bool            `json:"is_active"`
}

// AutomationListRequest filters the registry listing.
type AutomationListRequest struct {
	TriggerType string `form:"trigger_type"`
	ActiveOnly  bool   `form:"active_only"`
	PublicOnly  bool   `form:"public_only"`
}

// AutomationService owns the automation registry and dispatches triggers.
type AutomationService struct {
	db       *gorm.DB
	executor *ActionExecutor
	execLog  *ExecutionLogger
	logger   *logrus.Logger
	now      func() time.Time
}

func NewAutomationService(db *gorm.DB, executor *ActionExecutor, execLog *ExecutionLogger, logger *logrus.Logger) *AutomationService {
	if logger == nil {
		logger = logrus.New()
	}
	if execLog == nil {
		execLog = NewExecutionLogger(logger)
	}
	return &AutomationService{db: db, executor: executor, execLog: execLog, logger: logger, now: utcNow}
}

// List returns the owner's automations, predefined first.
func (s *AutomationService) List(ctx context.Context, scope *store.Scope, req AutomationListRequest) ([]models.AutomationConfig, error) {
	query := scope.Query(ctx)
	if req.TriggerType != "" {
		query = query.Where("trigger_type = ?", req.TriggerType)
	}
	if req.ActiveOnly {
		query = query.Where("is_active = ?", true)
	}
	if req.PublicOnly {
		query = query.Where("is_public = ?", true)
	}
	var rows []models.AutomationConfig
	if err := query.Order("is_public DESC").Order("created_at ASC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list automations: %w", err)
	}
	return rows, nil
}

func (s *AutomationService) Get(ctx context.Context, scope *store.Scope, id string) (*models.AutomationConfig, error) {
	var a models.AutomationConfig
	if err := scope.First(ctx, &a, id); err != nil {
		return nil, err
	}
	return &a, nil
}

// Create validates and stores a user automation. User rows are never public.
func (s *AutomationService) Create(ctx context.Context, scope *store.Scope, req *AutomationRequest) (*models.AutomationConfig, error) {
	if req == nil {
		return nil, fmt.Errorf("%w: request required", ErrInvalidAutomation)
	}
	if strings.TrimSpace(req.Name) == "" {
		return nil, fmt.Errorf("%w: name is required", ErrInvalidAutomation)
	}
	if err := validateAutomation(req.TriggerType, req.Conditions, req.Actions); err != nil {
		return nil, err
	}

	active := true
	if req.IsActive != nil {
		active = *req.IsActive
	}
	a := &models.AutomationConfig{
		Name:              strings.TrimSpace(req.Name),
		Description:       req.Description,
		TriggerType:       req.TriggerType,
		IsActive:          active,
		TriggerConditions: toJSON(nonNilConditions(req.Conditions)),
		Actions:           toJSON(nonNilActions(req.Actions)),
	}
	if err := scope.Create(ctx, a); err != nil {
		return nil, fmt.Errorf("create automation: %w", err)
	}
	return a, nil
}

func (s *AutomationService) Update(ctx context.Context, scope *store.Scope, id string, req *AutomationUpdateRequest) (*models.AutomationConfig, error) {
	a, err := s.Get(ctx, scope, id)
	if err != nil {
		return nil, err
	}

	triggerType := a.TriggerType
	if req.TriggerType != nil {
		if a.IsPublic && *req.TriggerType != a.TriggerType {
			return nil, fmt.Errorf("%w: predefined automations keep their trigger type", ErrInvalidTrigger)
		}
		triggerType = *req.TriggerType
	}
	conds, err := decodeConditionSpecs(a.TriggerConditions)
	if err != nil {
		conds = nil
	}
	if req.Conditions != nil {
		conds = *req.Conditions
	}
	actions, err := decodeActions(a.Actions)
	if err != nil {
		actions = nil
	}
	if req.Actions != nil {
		actions = *req.Actions
	}
	if err := validateAutomation(triggerType, conds, actions); err != nil {
		return nil, err
	}

	updates := map[string]interface{}{
		"trigger_type":       triggerType,
		"trigger_conditions": toJSON(nonNilConditions(conds)),
		"actions":            toJSON(nonNilActions(actions)),
		"updated_at":         s.now(),
	}
	if req.Name != nil {
		if strings.TrimSpace(*req.Name) == "" {
			return nil, fmt.Errorf("%w: name cannot be empty", ErrInvalidAutomation)
		}
		updates["name"] = strings.TrimSpace(*req.Name)
	}
	if req.Description != nil {
		updates["description"] = *req.Description
	}
	if req.IsActive != nil {
		updates["is_active"] = *req.IsActive
	}
	if err := scope.Model(ctx, &models.AutomationConfig{}).Where("id = ?", id).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("update automation: %w", err)
	}
	return s.Get(ctx, scope, id)
}

// SetActive enables or disables an automation.
func (s *AutomationService) SetActive(ctx context.Context, scope *store.Scope, id string, active bool) (*models.AutomationConfig, error) {
	res := scope.Model(ctx, &models.AutomationConfig{}).Where("id = ?", id).
		Updates(map[string]interface{}{"is_active": active, "updated_at": s.now()})
	if res.Error != nil {
		return nil, fmt.Errorf("toggle automation: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, store.ErrNotFound
	}
	return s.Get(ctx, scope, id)
}

func (s *AutomationService) Delete(ctx context.Context, scope *store.Scope, id string) error {
	res := scope.Query(ctx).Where("id = ?", id).Delete(&models.AutomationConfig{})
	if res.Error != nil {
		return fmt.Errorf("delete automation: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return store.ErrNotFound
	}
	return nil
}

// Catalog returns the predefined automation templates.
func (s *AutomationService) Catalog() []CatalogEntry {
	return PredefinedCatalog()
}

// SeedPredefined inserts the catalog entries whose trigger type has no
// predefined row yet and returns how many were inserted.
func (s *AutomationService) SeedPredefined(ctx context.Context, scope *store.Scope) (int, error) {
	var existing []string
	if err := scope.Model(ctx, &models.AutomationConfig{}).
		Where("is_public = ?", true).
		Pluck("trigger_type", &existing).Error; err != nil {
		return 0, fmt.Errorf("load predefined automations: %w", err)
	}
	have := make(map[string]bool, len(existing))
	for _, t := range existing {
		have[t] = true
	}

	inserted := 0
	for _, entry := range PredefinedCatalog() {
		if have[entry.TriggerType] {
			continue
		}
		row := catalogRow(entry)
		row.SetOwnerID(scope.OwnerID())
		// A concurrent seed may win the partial unique index; that row counts as present.
		res := s.db.WithContext(ctx).Clauses(clause.OnConflict{
			Columns:     []clause.Column{{Name: "owner_id"}, {Name: "trigger_type"}},
			// literal predicate so the database can match the partial index
			TargetWhere: clause.Where{Exprs: []clause.Expression{clause.Expr{SQL: "is_public = true"}}},
			DoNothing:   true,
		}).Create(row)
		if res.Error != nil {
			return inserted, fmt.Errorf("seed %s: %w", entry.TriggerType, res.Error)
		}
		inserted += int(res.RowsAffected)
	}

	s.logger.WithFields(logrus.Fields{"owner_id": scope.OwnerID(), "inserted": inserted}).Info("predefined automations seeded")
	return inserted, nil
}

// ReseedPredefined replaces every predefined row of the owner with the
// current catalog in one transaction. Edits to those rows are lost.
func (s *AutomationService) ReseedPredefined(ctx context.Context, scope *store.Scope) (int, error) {
	catalog := PredefinedCatalog()
	err := scope.Transaction(ctx, func(tx *store.Scope) error {
		if err := tx.Query(ctx).Where("is_public = ?", true).Delete(&models.AutomationConfig{}).Error; err != nil {
			return fmt.Errorf("delete predefined automations: %w", err)
		}
		for _, entry := range catalog {
			if err := tx.Create(ctx, catalogRow(entry)); err != nil {
				return fmt.Errorf("insert %s: %w", entry.TriggerType, err)
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	s.logger.WithField("owner_id", scope.OwnerID()).Info("predefined automations reseeded")
	return len(catalog), nil
}

// ListExecutions returns the paginated audit log.
func (s *AutomationService) ListExecutions(ctx context.Context, scope *store.Scope, req ExecutionListRequest) ([]models.AutomationExecution, int64, error) {
	return s.execLog.List(ctx, scope, req)
}

func catalogRow(entry CatalogEntry) *models.AutomationConfig {
	return &models.AutomationConfig{
		Name:              entry.Name,
		Description:       entry.Description,
		TriggerType:       entry.TriggerType,
		IsActive:          true,
		IsPublic:          true,
		TriggerConditions: toJSON(nonNilConditions(entry.Conditions)),
		Actions:           toJSON(nonNilActions(entry.Actions)),
	}
}

func validateAutomation(triggerType string, conds []ConditionSpec, actions []ActionSpec) error {
	if !IsValidTriggerType(triggerType) {
		return fmt.Errorf("%w: %q", ErrInvalidTrigger, triggerType)
	}
	if _, err := CompileConditions(conds); err != nil {
		return err
	}
	if len(actions) == 0 {
		return fmt.Errorf("%w: at least one action is required", ErrInvalidAction)
	}
	for i, a := range actions {
		if !IsValidActionType(a.Type) {
			return fmt.Errorf("%w: action %d: unknown type %q", ErrInvalidAction, i, a.Type)
		}
		if task := stringParam(a.Parameters, "ai_task"); task != "" && !IsValidAITask(task) {
			return fmt.Errorf("%w: action %d: unknown ai_task %q", ErrInvalidAction, i, task)
		}
	}
	return nil
}

func decodeActions(raw []byte) ([]ActionSpec, error) {
	var actions []ActionSpec
	if len(raw) == 0 || string(raw) == "null" {
		return actions, nil
	}
	if err := json.Unmarshal(raw, &actions); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidAction, err)
	}
	return actions, nil
}

func nonNilConditions(c []ConditionSpec) []ConditionSpec {
	if c == nil {
		return []ConditionSpec{}
	}
	return c
}

func nonNilActions(a []ActionSpec) []ActionSpec {
	if a == nil {
		return []ActionSpec{}
	}
	return a
}
