package services

import (
	"context"
	"encoding/json"
	"fmt"

	"taskelio/internal/models"
	"taskelio/internal/store"

	"github.com/sirupsen/logrus"
	"gorm.io/datatypes"
)

// ExecutionListRequest filters the execution log.
type ExecutionListRequest struct {
	AutomationID string `form:"automation_id"`
	TriggerType  string `form:"trigger_type"`
	Status       string `form:"status"`
	Page         int    `form:"page"`
	PageSize     int    `form:"page_size"`
}

// ExecutionLogger appends automation_executions rows.
type ExecutionLogger struct {
	logger *logrus.Logger
}

func NewExecutionLogger(logger *logrus.Logger) *ExecutionLogger {
	if logger == nil {
		logger = logrus.New()
	}
	return &ExecutionLogger{logger: logger}
}

// Record writes one execution row. A failed write is logged and returned but
// never undoes side effects already performed.
func (l *ExecutionLogger) Record(ctx context.Context, scope *store.Scope, rec *models.AutomationExecution) error {
	if err := scope.Create(ctx, rec); err != nil {
		l.logger.WithFields(logrus.Fields{
			"owner_id":      scope.OwnerID(),
			"automation_id": rec.AutomationID,
			"status":        rec.Status,
		}).Errorf("write execution log: %v", err)
		return fmt.Errorf("write execution log: %w", err)
	}
	return nil
}

// List returns execution rows newest first with the total count.
func (l *ExecutionLogger) List(ctx context.Context, scope *store.Scope, req ExecutionListRequest) ([]models.AutomationExecution, int64, error) {
	page, size := NormalizePage(req.Page, req.PageSize)

	query := scope.Model(ctx, &models.AutomationExecution{})
	if req.AutomationID != "" {
		query = query.Where("automation_id = ?", req.AutomationID)
	}
	if req.TriggerType != "" {
		query = query.Where("trigger_type = ?", req.TriggerType)
	}
	if req.Status != "" {
		query = query.Where("status = ?", req.Status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("count executions: %w", err)
	}

	var rows []models.AutomationExecution
	if err := query.Order("created_at DESC").Offset((page - 1) * size).Limit(size).Find(&rows).Error; err != nil {
		return nil, 0, fmt.Errorf("list executions: %w", err)
	}
	return rows, total, nil
}

// toJSON encodes v for a JSON column; encoding failures store null.
func toJSON(v interface{}) datatypes.JSON {
	if v == nil {
		return nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return datatypes.JSON("null")
	}
	return datatypes.JSON(b)
}
