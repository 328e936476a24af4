package handlers

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"taskelio/internal/config"
	"taskelio/internal/middleware"
	"taskelio/internal/models"
	"taskelio/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const (
	testJWTSecret  = "handler-test-secret"
	testCronSecret = "cron-test-secret"
)

type apiEnv struct {
	db     *gorm.DB
	cfg    *config.Config
	router *gin.Engine
	owner  *models.Profile
	token  string
}

func newAPIEnv(t *testing.T) *apiEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := gorm.Open(sqlite.Open("file:handlers_"+name+"?mode=memory&cache=shared"), &gorm.Config{
		Logger:  logger.Default.LogMode(logger.Silent),
		NowFunc: func() time.Time { return time.Now().UTC() },
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, db.AutoMigrate(models.All()...))

	log := logrus.New()
	log.SetOutput(io.Discard)

	cfg := config.GetDefaultConfig()
	cfg.JWT.Secret = testJWTSecret
	cfg.Cron.Secret = testCronSecret
	cfg.Security.RateLimiting.Enabled = false

	hub := services.NewNotificationHub(log)
	notifications := services.NewNotificationService(db, hub, log)
	generator := services.NewContentGeneratorWithClient(nil, cfg.AI.OpenAI, nil, log)
	executor := services.NewActionExecutor(generator, services.NewEmailSender(cfg.Email, log), notifications,
		services.NewDedupGuard(db), cfg.Automation, log)
	automations := services.NewAutomationService(db, executor, services.NewExecutionLogger(log), log)
	monitoring := services.NewMonitoringService(db, automations, cfg.Automation, log)

	env := &apiEnv{db: db, cfg: cfg}
	env.router = NewRouter(cfg, Deps{
		DB:            db,
		Automations:   automations,
		Statistics:    services.NewStatisticsService(db, log),
		Monitoring:    monitoring,
		Notifications: notifications,
		Hub:           hub,
		Generator:     generator,
		Logger:        log,
	})
	env.owner = env.newOwner(t, "ada@example.com")
	env.token = env.tokenFor(t, env.owner.ID)
	return env
}

func (e *apiEnv) newOwner(t *testing.T, email string) *models.Profile {
	t.Helper()
	p := &models.Profile{Email: email, FullName: "Ada Lovelace"}
	require.NoError(t, e.db.Create(p).Error)
	return p
}

func (e *apiEnv) tokenFor(t *testing.T, sub string) string {
	t.Helper()
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, middleware.Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   sub,
			IssuedAt:  jwt.NewNumericDate(time.Now().Add(-time.Minute)),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}).SignedString([]byte(testJWTSecret))
	require.NoError(t, err)
	return tok
}

// do sends body as JSON with the env owner's token unless token is overridden.
func (e *apiEnv) do(t *testing.T, method, path string, body interface{}, token ...string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	tok := e.token
	if len(token) > 0 {
		tok = token[0]
	}
	if tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

type envelope struct {
	Success  bool            `json:"success"`
	Data     json.RawMessage `json:"data"`
	Error    string          `json:"error"`
	Message  string          `json:"message"`
	Total    int64           `json:"total"`
	Page     int             `json:"page"`
	PageSize int             `json:"page_size"`
	Pages    int             `json:"pages"`
}

func decode(t *testing.T, w *httptest.ResponseRecorder, dest interface{}) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	if dest != nil {
		require.NoError(t, json.Unmarshal(env.Data, dest))
	}
	return env
}
