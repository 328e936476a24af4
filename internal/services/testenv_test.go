package services

import (
	"context"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"taskelio/internal/config"
	"taskelio/internal/models"
	"taskelio/internal/store"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var testNow = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := "file:taskelio_" + name + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:  logger.Default.LogMode(logger.Silent),
		NowFunc: func() time.Time { return time.Now().UTC() },
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(models.All()...))
	t.Cleanup(func() { _ = sqlDB.Close() })
	return db
}

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

type sentEmail struct {
	EmailMessage
	ID string
}

type recordingSender struct {
	mu   sync.Mutex
	sent []sentEmail
	err  error
}

func (s *recordingSender) Send(_ context.Context, msg EmailMessage) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return "", s.err
	}
	id := "test-" + uuid.NewString()
	s.sent = append(s.sent, sentEmail{EmailMessage: msg, ID: id})
	return id, nil
}

func (s *recordingSender) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sent)
}

type recordingPublisher struct {
	mu       sync.Mutex
	messages []HubMessage
}

func (p *recordingPublisher) Publish(ownerID, msgType string, data interface{}) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.messages = append(p.messages, HubMessage{Type: msgType, Data: data, OwnerID: ownerID})
}

// testEnv wires the automation stack against one sqlite database with a
// fixed clock.
type testEnv struct {
	db            *gorm.DB
	owner         *models.Profile
	scope         *store.Scope
	cfg           config.AutomationConfig
	sender        *recordingSender
	publisher     *recordingPublisher
	notifications *NotificationService
	dedup         *DedupGuard
	executor      *ActionExecutor
	automations   *AutomationService
	monitoring    *MonitoringService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db := newTestDB(t)
	log := quietLogger()
	clock := func() time.Time { return testNow }

	env := &testEnv{
		db:        db,
		cfg:       config.GetDefaultConfig().Automation,
		sender:    &recordingSender{},
		publisher: &recordingPublisher{},
	}
	env.owner = &models.Profile{Email: "ada@example.com", FullName: "Ada Lovelace"}
	require.NoError(t, db.Create(env.owner).Error)
	scope, err := store.ForOwner(db, env.owner.ID)
	require.NoError(t, err)
	env.scope = scope

	env.notifications = NewNotificationService(db, env.publisher, log)
	env.dedup = NewDedupGuard(db)
	env.dedup.now = clock
	generator := NewContentGeneratorWithClient(nil, config.OpenAIConfig{}, nil, log)
	env.executor = NewActionExecutor(generator, env.sender, env.notifications, env.dedup, env.cfg, log)
	env.executor.now = clock
	env.automations = NewAutomationService(db, env.executor, NewExecutionLogger(log), log)
	env.automations.now = clock
	env.monitoring = NewMonitoringService(db, env.automations, env.cfg, log)
	env.monitoring.now = clock
	return env
}

func (e *testEnv) ctx() context.Context { return context.Background() }

func (e *testEnv) createClient(t *testing.T, name string, createdAt time.Time) *models.Client {
	t.Helper()
	c := &models.Client{
		Name:      name,
		Email:     strings.ToLower(strings.ReplaceAll(name, " ", ".")) + "@example.com",
		Status:    "active",
		CreatedAt: createdAt,
		UpdatedAt: createdAt,
	}
	require.NoError(t, e.scope.Create(e.ctx(), c))
	return c
}

func (e *testEnv) createProject(t *testing.T, p *models.Project) *models.Project {
	t.Helper()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = testNow.Add(-48 * time.Hour)
	}
	if p.UpdatedAt.IsZero() {
		p.UpdatedAt = p.CreatedAt
	}
	require.NoError(t, e.scope.Create(e.ctx(), p))
	return p
}

func (e *testEnv) executions(t *testing.T) []models.AutomationExecution {
	t.Helper()
	var rows []models.AutomationExecution
	require.NoError(t, e.scope.Query(e.ctx()).Order("created_at ASC").Find(&rows).Error)
	return rows
}

func floatPtr(v float64) *float64 { return &v }

func strPtr(v string) *string { return &v }

func timePtr(v time.Time) *time.Time { return &v }
