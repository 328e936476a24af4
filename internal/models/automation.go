package models

import (
	"time"

	"gorm.io/datatypes"
)

// AutomationConfig is a stored rule: trigger type + conditions + actions.
// Predefined rows (IsPublic) are unique per owner and trigger type.
type AutomationConfig struct {
	Base
	OwnerID           string         `gorm:"type:varchar(36);not null;index;uniqueIndex:idx_automations_public_trigger,where:is_public = true" json:"owner_id"`
	Name              string         `gorm:"not null" json:"name"`
	Description       string         `gorm:"type:text" json:"description"`
	TriggerType       string         `gorm:"not null;index;uniqueIndex:idx_automations_public_trigger,where:is_public = true" json:"trigger_type"`
	IsActive          bool           `gorm:"not null" json:"is_active"`
	IsPublic          bool           `gorm:"not null;index" json:"is_public"`
	TriggerConditions datatypes.JSON `json:"trigger_conditions"` // [{field,operator,value}]
	Actions           datatypes.JSON `json:"actions"`            // [{type,parameters}]
	ExecutionCount    int            `gorm:"default:0" json:"execution_count"`
	LastExecutedAt    *time.Time     `json:"last_executed_at"`
	CreatedAt         time.Time      `json:"created_at"`
	UpdatedAt         time.Time      `json:"updated_at"`
}

func (AutomationConfig) TableName() string { return "automations" }

func (a *AutomationConfig) SetOwnerID(id string) { a.OwnerID = id }

// Execution statuses
const (
	ExecutionSuccess = "success"
	ExecutionSkipped = "skipped"
	ExecutionFailed  = "failed"
)

// AutomationExecution is the append-only audit row written once per automation run.
type AutomationExecution struct {
	Base
	OwnerRef
	AutomationID        string         `gorm:"type:varchar(36);not null;index" json:"automation_id"`
	TriggerType         string         `gorm:"index" json:"trigger_type"`
	EntityID            string         `gorm:"type:varchar(36);index" json:"entity_id"`
	TriggerPayload      datatypes.JSON `json:"trigger_payload"`
	GeneratedContent    datatypes.JSON `json:"generated_content"`
	IntegrationResponse datatypes.JSON `json:"integration_response"`
	Status              string         `gorm:"index" json:"status"` // success, skipped, failed
	ErrorMessage        string         `gorm:"type:text" json:"error_message,omitempty"`
	DurationMs          int64          `json:"duration_ms"`
	CreatedAt           time.Time      `gorm:"index" json:"created_at"`
}

func (AutomationExecution) TableName() string { return "automation_executions" }

// AutomationDedupKey records the last time an action ran for an entity.
// The unique index is what makes the dedup window atomic.
type AutomationDedupKey struct {
	Base
	OwnerID      string    `gorm:"type:varchar(36);not null;uniqueIndex:ux_automation_dedup,priority:1" json:"owner_id"`
	AutomationID string    `gorm:"type:varchar(36);not null;uniqueIndex:ux_automation_dedup,priority:2" json:"automation_id"`
	ActionType   string    `gorm:"type:varchar(64);not null;uniqueIndex:ux_automation_dedup,priority:3" json:"action_type"`
	EntityID     string    `gorm:"type:varchar(36);not null;uniqueIndex:ux_automation_dedup,priority:4" json:"entity_id"`
	ClaimedAt    time.Time `gorm:"not null" json:"claimed_at"`
}

func (AutomationDedupKey) TableName() string { return "automation_dedup_keys" }
