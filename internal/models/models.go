package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Base carries the UUID primary key shared by every table.
type Base struct {
	ID string `gorm:"type:varchar(36);primaryKey" json:"id"`
}

// BeforeCreate assigns a UUID when the caller left ID empty.
func (b *Base) BeforeCreate(tx *gorm.DB) error {
	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	return nil
}

// Owned is implemented by every tenant-scoped row.
type Owned interface {
	SetOwnerID(id string)
}

// OwnerRef is embedded by tenant-scoped rows.
type OwnerRef struct {
	OwnerID string `gorm:"type:varchar(36);not null;index" json:"owner_id"`
}

func (o *OwnerRef) SetOwnerID(id string) { o.OwnerID = id }

// Profile is the freelancer account. Its ID is the owner id of every other row.
type Profile struct {
	Base
	Email       string    `gorm:"not null" json:"email"`
	FullName    string    `json:"full_name"`
	CompanyName string    `json:"company_name"`
	Timezone    string    `gorm:"default:'UTC'" json:"timezone"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// DisplayName prefers the company name, then the person.
func (p *Profile) DisplayName() string {
	if p == nil {
		return ""
	}
	if p.CompanyName != "" {
		return p.CompanyName
	}
	if p.FullName != "" {
		return p.FullName
	}
	return p.Email
}

type Client struct {
	Base
	OwnerRef
	Name      string    `gorm:"not null" json:"name"`
	Email     string    `json:"email"`
	Company   string    `json:"company"`
	Phone     string    `json:"phone"`
	Status    string    `gorm:"default:'active';index" json:"status"` // lead, active, inactive, archived
	Notes     string    `gorm:"type:text" json:"notes"`
	CreatedAt time.Time `gorm:"index" json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type Project struct {
	Base
	OwnerRef
	ClientID    *string    `gorm:"type:varchar(36);index" json:"client_id"`
	Name        string     `gorm:"not null" json:"name"`
	Description string     `gorm:"type:text" json:"description"`
	Status      string     `gorm:"default:'planning';index" json:"status"` // planning, active, on_hold, completed, cancelled
	Budget      *float64   `json:"budget"`
	HourlyRate  *float64   `json:"hourly_rate"`
	Deadline    *time.Time `json:"deadline"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `gorm:"index" json:"updated_at"`

	Client *Client `gorm:"foreignKey:ClientID" json:"client,omitempty"`
}

type Task struct {
	Base
	OwnerRef
	ProjectID    *string    `gorm:"type:varchar(36);index" json:"project_id"`
	ClientID     *string    `gorm:"type:varchar(36);index" json:"client_id"`
	AutomationID *string    `gorm:"type:varchar(36);index" json:"automation_id"`
	Title        string     `gorm:"not null" json:"title"`
	Description  string     `gorm:"type:text" json:"description"`
	Status       string     `gorm:"default:'todo';index" json:"status"` // todo, in_progress, done
	Priority     string     `gorm:"default:'medium'" json:"priority"`   // low, medium, high, urgent
	ActualHours  float64    `gorm:"default:0" json:"actual_hours"`
	HourlyRate   *float64   `json:"hourly_rate"`
	DueDate      *time.Time `json:"due_date"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `gorm:"index" json:"updated_at"`
}

type ClientCommunication struct {
	Base
	OwnerRef
	ClientID  string    `gorm:"type:varchar(36);not null;index" json:"client_id"`
	Channel   string    `json:"channel"`   // email, call, meeting, note
	Direction string    `json:"direction"` // inbound, outbound
	Subject   string    `json:"subject"`
	Content   string    `gorm:"type:text" json:"content"`
	CreatedAt time.Time `gorm:"index" json:"created_at"`
}

type CalendarEvent struct {
	Base
	OwnerRef
	ClientID     *string   `gorm:"type:varchar(36);index" json:"client_id"`
	ProjectID    *string   `gorm:"type:varchar(36);index" json:"project_id"`
	Title        string    `gorm:"not null" json:"title"`
	Description  string    `gorm:"type:text" json:"description"`
	StartTime    time.Time `gorm:"index" json:"start_time"`
	EndTime      time.Time `json:"end_time"`
	Location     string    `json:"location"`
	ExternalLink string    `json:"external_link"`
	CreatedAt    time.Time `json:"created_at"`
}

type Invoice struct {
	Base
	OwnerRef
	ClientID  string     `gorm:"type:varchar(36);not null;index" json:"client_id"`
	ProjectID *string    `gorm:"type:varchar(36);index" json:"project_id"`
	Number    string     `json:"number"`
	Amount    float64    `json:"amount"`
	Currency  string     `gorm:"default:'EUR'" json:"currency"`
	Status    string     `gorm:"default:'draft';index" json:"status"` // draft, sent, paid, overdue, cancelled
	DueDate   *time.Time `json:"due_date"`
	PaidAt    *time.Time `json:"paid_at"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

type Proposal struct {
	Base
	OwnerRef
	ClientID  string    `gorm:"type:varchar(36);not null;index" json:"client_id"`
	ProjectID *string   `gorm:"type:varchar(36);index" json:"project_id"`
	Title     string    `gorm:"not null" json:"title"`
	Content   string    `gorm:"type:text" json:"content"`
	Amount    float64   `json:"amount"`
	Status    string    `gorm:"default:'draft'" json:"status"` // draft, sent, accepted, rejected
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Notification types
const (
	NotificationInfo    = "info"
	NotificationWarning = "warning"
	NotificationError   = "error"
	NotificationSuccess = "success"
)

type UserNotification struct {
	Base
	OwnerRef
	Title      string         `gorm:"not null" json:"title"`
	Message    string         `gorm:"type:text" json:"message"`
	Type       string         `gorm:"default:'info'" json:"type"`
	Route      string         `json:"route"`
	ActionData datatypes.JSON `json:"action_data"`
	IsRead     bool           `gorm:"default:false;index" json:"is_read"`
	CreatedAt  time.Time      `gorm:"index" json:"created_at"`
}

// All lists every table for AutoMigrate.
func All() []interface{} {
	return []interface{}{
		&Profile{}, &Client{}, &Project{}, &Task{}, &ClientCommunication{},
		&CalendarEvent{}, &Invoice{}, &Proposal{}, &UserNotification{},
		&AutomationConfig{}, &AutomationExecution{}, &AutomationDedupKey{},
	}
}
