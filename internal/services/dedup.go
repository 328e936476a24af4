package services

import (
	"context"
	"fmt"
	"time"

	"taskelio/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// DedupKey identifies one side effect of one automation for one entity.
type DedupKey struct {
	OwnerID      string
	AutomationID string
	ActionType   string
	EntityID     string
}

// DedupGuard claims side effects so an action runs at most once per window.
type DedupGuard struct {
	db  *gorm.DB
	now func() time.Time
}

func NewDedupGuard(db *gorm.DB) *DedupGuard {
	return &DedupGuard{db: db, now: time.Now}
}

// Claim inserts the key, or refreshes it when the previous claim is older
// than window, in a single statement. It returns false when a claim inside
// the window already exists.
func (g *DedupGuard) Claim(ctx context.Context, key DedupKey, window time.Duration) (bool, error) {
	now := g.now().UTC()
	row := models.AutomationDedupKey{
		OwnerID:      key.OwnerID,
		AutomationID: key.AutomationID,
		ActionType:   key.ActionType,
		EntityID:     key.EntityID,
		ClaimedAt:    now,
	}
	res := g.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "owner_id"}, {Name: "automation_id"}, {Name: "action_type"}, {Name: "entity_id"},
		},
		DoUpdates: clause.AssignmentColumns([]string{"claimed_at"}),
		Where: clause.Where{Exprs: []clause.Expression{
			clause.Lt{Column: clause.Column{Table: models.AutomationDedupKey{}.TableName(), Name: "claimed_at"}, Value: now.Add(-window)},
		}},
	}).Create(&row)
	if res.Error != nil {
		return false, fmt.Errorf("claim dedup key: %w", res.Error)
	}
	return res.RowsAffected > 0, nil
}

// Release drops a claim so a failed side effect can be retried.
func (g *DedupGuard) Release(ctx context.Context, key DedupKey) error {
	err := g.db.WithContext(ctx).
		Where("owner_id = ? AND automation_id = ? AND action_type = ? AND entity_id = ?",
			key.OwnerID, key.AutomationID, key.ActionType, key.EntityID).
		Delete(&models.AutomationDedupKey{}).Error
	if err != nil {
		return fmt.Errorf("release dedup key: %w", err)
	}
	return nil
}
