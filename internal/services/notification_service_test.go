package services

import (
	"context"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"taskelio/internal/models"
	"taskelio/internal/store"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNotificationService_Lifecycle(t *testing.T) {
	env := newTestEnv(t)
	ctx := env.ctx()
	svc := env.notifications

	_, err := svc.Create(ctx, env.scope, NotificationInput{Title: "bad", Type: "shout"})
	assert.Error(t, err)

	first, err := svc.Create(ctx, env.scope, NotificationInput{Title: "one", ActionData: map[string]interface{}{"k": "v"}})
	require.NoError(t, err)
	assert.Equal(t, models.NotificationInfo, first.Type)
	_, err = svc.Create(ctx, env.scope, NotificationInput{Title: "two", Type: models.NotificationWarning})
	require.NoError(t, err)
	_, err = svc.Create(ctx, env.scope, NotificationInput{Title: "three", Type: models.NotificationSuccess})
	require.NoError(t, err)

	require.Len(t, env.publisher.messages, 3)
	assert.Equal(t, "notification", env.publisher.messages[0].Type)
	assert.Equal(t, env.owner.ID, env.publisher.messages[0].OwnerID)

	n, err := svc.UnreadCount(ctx, env.scope)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	require.NoError(t, svc.MarkRead(ctx, env.scope, first.ID))
	assert.ErrorIs(t, svc.MarkRead(ctx, env.scope, "missing"), store.ErrNotFound)

	unread, total, err := svc.List(ctx, env.scope, NotificationListRequest{UnreadOnly: true})
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	assert.Len(t, unread, 2)

	page, total, err := svc.List(ctx, env.scope, NotificationListRequest{Page: 2, PageSize: 2})
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	assert.Len(t, page, 1)

	changed, err := svc.MarkAllRead(ctx, env.scope)
	require.NoError(t, err)
	assert.Equal(t, int64(2), changed)
	n, err = svc.UnreadCount(ctx, env.scope)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestNotificationService_OwnerScoped(t *testing.T) {
	env := newTestEnv(t)
	ctx := env.ctx()
	mine, err := env.notifications.Create(ctx, env.scope, NotificationInput{Title: "mine"})
	require.NoError(t, err)

	other := &models.Profile{Email: "mallory@example.com"}
	require.NoError(t, env.db.Create(other).Error)
	otherScope, err := store.ForOwner(env.db, other.ID)
	require.NoError(t, err)

	assert.ErrorIs(t, env.notifications.MarkRead(ctx, otherScope, mine.ID), store.ErrNotFound)
	items, total, err := env.notifications.List(ctx, otherScope, NotificationListRequest{})
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Empty(t, items)
}

func TestNormalizePage(t *testing.T) {
	p, s := NormalizePage(0, 0)
	assert.Equal(t, 1, p)
	assert.Equal(t, 20, s)
	p, s = NormalizePage(3, 500)
	assert.Equal(t, 3, p)
	assert.Equal(t, 100, s)
}

func TestNotificationHub_PushesToOwnerOnly(t *testing.T) {
	gin.SetMode(gin.TestMode)
	hub := NewNotificationHub(quietLogger())
	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		hub.Run(ctx)
	}()
	defer func() {
		cancel()
		wg.Wait()
	}()

	r := gin.New()
	r.GET("/ws", func(c *gin.Context) {
		c.Set("owner_id", c.Query("owner"))
		hub.HandleWebSocket(c)
	})
	srv := httptest.NewServer(r)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?owner=alice"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return hub.ClientCount("alice") == 1 }, 2*time.Second, 10*time.Millisecond)
	assert.Zero(t, hub.ClientCount("bob"))

	hub.Publish("bob", "notification", map[string]string{"title": "not yours"})
	hub.Publish("alice", "notification", map[string]string{"title": "hello"})

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg struct {
		Type string            `json:"type"`
		Data map[string]string `json:"data"`
	}
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, "notification", msg.Type)
	assert.Equal(t, "hello", msg.Data["title"])

	conn.Close()
	require.Eventually(t, func() bool { return hub.ClientCount("") == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestNotificationHub_RejectsAnonymous(t *testing.T) {
	gin.SetMode(gin.TestMode)
	hub := NewNotificationHub(quietLogger())
	r := gin.New()
	r.GET("/ws", hub.HandleWebSocket)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("GET", "/ws", nil))
	assert.Equal(t, 401, w.Code)
}
