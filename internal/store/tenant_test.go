package store

import (
	"context"
	"errors"
	"strings"
	"testing"

	"taskelio/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newStoreTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := gorm.Open(sqlite.Open("file:store_"+name+"?mode=memory&cache=shared"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, db.AutoMigrate(models.All()...))
	return db
}

func TestForOwner(t *testing.T) {
	db := newStoreTestDB(t)

	_, err := ForOwner(db, "")
	assert.ErrorIs(t, err, ErrMissingOwner)
	_, err = ForOwner(nil, "o1")
	assert.Error(t, err)

	_, err = FromContext(context.Background(), db)
	assert.ErrorIs(t, err, ErrMissingOwner)

	s, err := FromContext(WithOwner(context.Background(), "o1"), db)
	require.NoError(t, err)
	assert.Equal(t, "o1", s.OwnerID())
}

func TestScope_IsolatesOwners(t *testing.T) {
	db := newStoreTestDB(t)
	ctx := context.Background()
	alice, _ := ForOwner(db, "alice")
	bob, _ := ForOwner(db, "bob")

	c := &models.Client{Name: "Acme", OwnerRef: models.OwnerRef{OwnerID: "bob"}}
	require.NoError(t, alice.Create(ctx, c))
	assert.Equal(t, "alice", c.OwnerID, "Create overwrites the owner")
	require.NoError(t, bob.Create(ctx, &models.Client{Name: "Globex"}))

	var got models.Client
	require.NoError(t, alice.First(ctx, &got, c.ID))
	assert.Equal(t, "Acme", got.Name)
	assert.ErrorIs(t, bob.First(ctx, &got, c.ID), ErrNotFound)

	var list []models.Client
	require.NoError(t, bob.Query(ctx).Find(&list).Error)
	require.Len(t, list, 1)
	assert.Equal(t, "Globex", list[0].Name)

	res := bob.Model(ctx, &models.Client{}).Where("id = ?", c.ID).Update("name", "stolen")
	require.NoError(t, res.Error)
	assert.Zero(t, res.RowsAffected)
}

func TestScope_OwnerFilterQualifiesTable(t *testing.T) {
	db := newStoreTestDB(t)
	ctx := context.Background()
	s, _ := ForOwner(db, "alice")

	client := &models.Client{Name: "Acme"}
	require.NoError(t, s.Create(ctx, client))
	require.NoError(t, s.Create(ctx, &models.Project{Name: "Site", ClientID: &client.ID}))

	// both tables carry owner_id; the filter must not be ambiguous
	var projects []models.Project
	err := s.Query(ctx).Joins("Client").Find(&projects).Error
	require.NoError(t, err)
	require.Len(t, projects, 1)
	require.NotNil(t, projects[0].Client)
	assert.Equal(t, "Acme", projects[0].Client.Name)
}

func TestScope_TransactionRollsBack(t *testing.T) {
	db := newStoreTestDB(t)
	ctx := context.Background()
	s, _ := ForOwner(db, "alice")

	boom := errors.New("boom")
	err := s.Transaction(ctx, func(tx *Scope) error {
		require.NoError(t, tx.Create(ctx, &models.Client{Name: "temp"}))
		return boom
	})
	assert.ErrorIs(t, err, boom)

	var n int64
	require.NoError(t, s.Model(ctx, &models.Client{}).Count(&n).Error)
	assert.Zero(t, n)
}

func TestCapped(t *testing.T) {
	db := newStoreTestDB(t)
	ctx := context.Background()
	s, _ := ForOwner(db, "alice")
	for _, name := range []string{"a", "b", "c"} {
		require.NoError(t, s.Create(ctx, &models.Client{Name: name}))
	}

	var rows []models.Client
	truncated, err := Capped(s.Query(ctx), &rows, 2, func() int { return len(rows) })
	require.NoError(t, err)
	assert.True(t, truncated)

	rows = nil
	truncated, err = Capped(s.Query(ctx), &rows, 3, func() int { return len(rows) })
	require.NoError(t, err)
	assert.False(t, truncated)
	assert.Len(t, rows, 3)

	rows = nil
	truncated, err = Capped(s.Query(ctx), &rows, 0, func() int { return len(rows) })
	require.NoError(t, err)
	assert.False(t, truncated)
	assert.Len(t, rows, 3)
}

func TestOwners(t *testing.T) {
	db := newStoreTestDB(t)
	for _, email := range []string{"a@example.com", "b@example.com"} {
		require.NoError(t, db.Create(&models.Profile{Email: email}).Error)
	}
	ids, err := Owners(context.Background(), db)
	require.NoError(t, err)
	assert.Len(t, ids, 2)
}
