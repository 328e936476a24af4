// Package store is the only way services reach tenant-owned tables.
// Every query built through a Scope carries the owner filter, so a handler
// cannot forget it.
package store

import (
	"context"
	"errors"
	"fmt"

	"taskelio/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrMissingOwner = errors.New("store: missing owner id")
	ErrNotFound     = errors.New("store: not found")
)

type ownerKey struct{}

// WithOwner attaches the authenticated owner id to ctx.
func WithOwner(ctx context.Context, ownerID string) context.Context {
	return context.WithValue(ctx, ownerKey{}, ownerID)
}

// OwnerFromContext returns the owner id set by WithOwner.
func OwnerFromContext(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(ownerKey{}).(string)
	return v, ok && v != ""
}

// Scope binds a database handle to one owner.
type Scope struct {
	db      *gorm.DB
	ownerID string
}

// ForOwner returns a Scope for ownerID. It fails on an empty id.
func ForOwner(db *gorm.DB, ownerID string) (*Scope, error) {
	if ownerID == "" {
		return nil, ErrMissingOwner
	}
	if db == nil {
		return nil, errors.New("store: nil database")
	}
	return &Scope{db: db, ownerID: ownerID}, nil
}

// FromContext builds a Scope from the owner carried by ctx.
func FromContext(ctx context.Context, db *gorm.DB) (*Scope, error) {
	owner, ok := OwnerFromContext(ctx)
	if !ok {
		return nil, ErrMissingOwner
	}
	return ForOwner(db, owner)
}

func (s *Scope) OwnerID() string { return s.ownerID }

// OwnedBy is a gorm scope filtering the statement's table by owner_id.
func OwnedBy(ownerID string) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.Where(clause.Eq{
			Column: clause.Column{Table: clause.CurrentTable, Name: "owner_id"},
			Value:  ownerID,
		})
	}
}

// Query starts an owner-filtered statement.
func (s *Scope) Query(ctx context.Context) *gorm.DB {
	return s.db.WithContext(ctx).Scopes(OwnedBy(s.ownerID))
}

// Model starts an owner-filtered statement on value's table.
func (s *Scope) Model(ctx context.Context, value interface{}) *gorm.DB {
	return s.Query(ctx).Model(value)
}

// Create stamps the owner onto v and inserts it.
func (s *Scope) Create(ctx context.Context, v models.Owned) error {
	v.SetOwnerID(s.ownerID)
	return s.db.WithContext(ctx).Create(v).Error
}

// First loads the row with the given id into dest, or ErrNotFound.
func (s *Scope) First(ctx context.Context, dest interface{}, id string) error {
	err := s.Query(ctx).Where(clause.Eq{
		Column: clause.Column{Table: clause.CurrentTable, Name: "id"},
		Value:  id,
	}).First(dest).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}

// Transaction runs fn with a Scope bound to the transaction.
func (s *Scope) Transaction(ctx context.Context, fn func(tx *Scope) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&Scope{db: tx, ownerID: s.ownerID})
	})
}

// Capped runs a Find with limit+1 rows and reports whether the cap was hit.
// A non-positive limit disables the cap.
func Capped(q *gorm.DB, dest interface{}, limit int, count func() int) (truncated bool, err error) {
	if limit > 0 {
		q = q.Limit(limit + 1)
	}
	if err := q.Find(dest).Error; err != nil {
		return false, err
	}
	if limit > 0 && count() > limit {
		return true, nil
	}
	return false, nil
}

// Owners lists every profile id. Used by cross-tenant schedulers only.
func Owners(ctx context.Context, db *gorm.DB) ([]string, error) {
	var ids []string
	if err := db.WithContext(ctx).Model(&models.Profile{}).Order("created_at").Pluck("id", &ids).Error; err != nil {
		return nil, fmt.Errorf("list owners: %w", err)
	}
	return ids, nil
}
