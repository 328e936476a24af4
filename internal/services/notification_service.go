package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"taskelio/internal/models"
	"taskelio/internal/store"

	"github.com/sirupsen/logrus"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// NotificationInput describes a notification to store and push.
type NotificationInput struct {
	Title      string
	Message    string
	Type       string
	Route      string
	ActionData map[string]interface{}
}

// NotificationListRequest filters the notification list.
type NotificationListRequest struct {
	UnreadOnly bool `form:"unread_only"`
	Page       int  `form:"page"`
	PageSize   int  `form:"page_size"`
}

type NotificationService struct {
	db        *gorm.DB
	publisher Publisher
	logger    *logrus.Logger
}

func NewNotificationService(db *gorm.DB, publisher Publisher, logger *logrus.Logger) *NotificationService {
	if logger == nil {
		logger = logrus.New()
	}
	return &NotificationService{db: db, publisher: publisher, logger: logger}
}

// Create stores the notification and pushes it to the owner's live sessions.
func (s *NotificationService) Create(ctx context.Context, scope *store.Scope, in NotificationInput) (*models.UserNotification, error) {
	kind := in.Type
	switch kind {
	case models.NotificationInfo, models.NotificationWarning, models.NotificationError, models.NotificationSuccess:
	case "":
		kind = models.NotificationInfo
	default:
		return nil, fmt.Errorf("invalid notification type %q", in.Type)
	}

	n := &models.UserNotification{
		Title:   in.Title,
		Message: in.Message,
		Type:    kind,
		Route:   in.Route,
	}
	if len(in.ActionData) > 0 {
		b, err := json.Marshal(in.ActionData)
		if err != nil {
			return nil, fmt.Errorf("encode action data: %w", err)
		}
		n.ActionData = datatypes.JSON(b)
	}
	if err := scope.Create(ctx, n); err != nil {
		return nil, fmt.Errorf("create notification: %w", err)
	}

	if s.publisher != nil {
		s.publisher.Publish(scope.OwnerID(), "notification", n)
	}
	return n, nil
}

// List returns the owner's notifications, newest first, and the total count.
func (s *NotificationService) List(ctx context.Context, scope *store.Scope, req NotificationListRequest) ([]models.UserNotification, int64, error) {
	page, size := NormalizePage(req.Page, req.PageSize)

	query := scope.Model(ctx, &models.UserNotification{})
	if req.UnreadOnly {
		query = query.Where("is_read = ?", false)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("count notifications: %w", err)
	}

	var items []models.UserNotification
	if err := query.Order("created_at DESC").Offset((page - 1) * size).Limit(size).Find(&items).Error; err != nil {
		return nil, 0, fmt.Errorf("list notifications: %w", err)
	}
	return items, total, nil
}

// MarkRead flags one notification as read.
func (s *NotificationService) MarkRead(ctx context.Context, scope *store.Scope, id string) error {
	res := scope.Model(ctx, &models.UserNotification{}).Where("id = ?", id).Update("is_read", true)
	if res.Error != nil {
		return fmt.Errorf("mark notification read: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return store.ErrNotFound
	}
	return nil
}

// MarkAllRead flags every unread notification and returns how many changed.
func (s *NotificationService) MarkAllRead(ctx context.Context, scope *store.Scope) (int64, error) {
	res := scope.Model(ctx, &models.UserNotification{}).Where("is_read = ?", false).Update("is_read", true)
	if res.Error != nil {
		return 0, fmt.Errorf("mark all notifications read: %w", res.Error)
	}
	return res.RowsAffected, nil
}

// UnreadCount is shown next to the bell icon.
func (s *NotificationService) UnreadCount(ctx context.Context, scope *store.Scope) (int64, error) {
	var n int64
	err := scope.Model(ctx, &models.UserNotification{}).Where("is_read = ?", false).Count(&n).Error
	return n, err
}

// NormalizePage clamps paging input: page >= 1, size in [1, 100] with 20 as default.
func NormalizePage(page, size int) (int, int) {
	if page < 1 {
		page = 1
	}
	if size < 1 {
		size = 20
	}
	if size > 100 {
		size = 100
	}
	return page, size
}

// utcNow is the default clock for services.
func utcNow() time.Time { return time.Now().UTC() }
