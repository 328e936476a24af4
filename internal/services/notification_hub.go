package services

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

const (
	hubWriteWait  = 10 * time.Second
	hubPongWait   = 60 * time.Second
	hubPingPeriod = 54 * time.Second
)

// HubMessage is the envelope pushed to live connections.
type HubMessage struct {
	Type      string      `json:"type"`
	Data      interface{} `json:"data"`
	OwnerID   string      `json:"-"`
	Timestamp time.Time   `json:"timestamp"`
}

// Publisher pushes a payload to every live connection of one owner.
type Publisher interface {
	Publish(ownerID, msgType string, data interface{})
}

type HubClient struct {
	ID      string
	OwnerID string
	Conn    *websocket.Conn
	Send    chan HubMessage
	Hub     *NotificationHub
}

// NotificationHub fans notifications out to the websocket connections of
// their owner.
type NotificationHub struct {
	clients    map[string]*HubClient
	broadcast  chan HubMessage
	register   chan *HubClient
	unregister chan *HubClient
	done       chan struct{}
	mutex      sync.RWMutex
	logger     *logrus.Logger
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // origin is enforced by CORS and the bearer token
	},
}

func NewNotificationHub(logger *logrus.Logger) *NotificationHub {
	if logger == nil {
		logger = logrus.New()
	}
	return &NotificationHub{
		clients:    make(map[string]*HubClient),
		broadcast:  make(chan HubMessage, 256),
		register:   make(chan *HubClient),
		unregister: make(chan *HubClient),
		done:       make(chan struct{}),
		logger:     logger,
	}
}

// Run serves the hub until ctx is done. It must be called exactly once.
func (h *NotificationHub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			close(h.done)
			h.mutex.Lock()
			for id, client := range h.clients {
				close(client.Send)
				delete(h.clients, id)
			}
			h.mutex.Unlock()
			return

		case client := <-h.register:
			h.mutex.Lock()
			h.clients[client.ID] = client
			h.mutex.Unlock()
			h.logger.WithFields(logrus.Fields{"client_id": client.ID, "owner_id": client.OwnerID}).Debug("notification client connected")

		case client := <-h.unregister:
			h.mutex.Lock()
			if _, ok := h.clients[client.ID]; ok {
				delete(h.clients, client.ID)
				close(client.Send)
				h.logger.WithField("client_id", client.ID).Debug("notification client disconnected")
			}
			h.mutex.Unlock()

		case message := <-h.broadcast:
			h.mutex.Lock()
			for id, client := range h.clients {
				if client.OwnerID != message.OwnerID {
					continue
				}
				select {
				case client.Send <- message:
				default:
					// slow consumer
					close(client.Send)
					delete(h.clients, id)
				}
			}
			h.mutex.Unlock()
		}
	}
}

// Publish queues a message for ownerID. It never blocks; a full queue drops
// the message with a warning since the row is already persisted.
func (h *NotificationHub) Publish(ownerID, msgType string, data interface{}) {
	msg := HubMessage{Type: msgType, Data: data, OwnerID: ownerID, Timestamp: time.Now().UTC()}
	select {
	case h.broadcast <- msg:
	default:
		h.logger.WithField("owner_id", ownerID).Warn("notification hub queue full, dropping push")
	}
}

// ClientCount returns the number of live connections for ownerID, or all
// connections when ownerID is empty.
func (h *NotificationHub) ClientCount(ownerID string) int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	if ownerID == "" {
		return len(h.clients)
	}
	n := 0
	for _, c := range h.clients {
		if c.OwnerID == ownerID {
			n++
		}
	}
	return n
}

// HandleWebSocket upgrades an authenticated request. The auth middleware
// must have set owner_id.
func (h *NotificationHub) HandleWebSocket(c *gin.Context) {
	ownerID := c.GetString("owner_id")
	if ownerID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"success": false, "error": "Unauthorized"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Errorf("websocket upgrade failed: %v", err)
		return
	}

	client := &HubClient{
		ID:      fmt.Sprintf("client_%s", uuid.NewString()),
		OwnerID: ownerID,
		Conn:    conn,
		Send:    make(chan HubMessage, 64),
		Hub:     h,
	}
	select {
	case h.register <- client:
	case <-h.done:
		conn.Close()
		return
	}

	go client.writePump()
	go client.readPump()
}

// readPump only keeps the connection alive; clients do not send commands.
func (c *HubClient) readPump() {
	defer func() {
		select {
		case c.Hub.unregister <- c:
		case <-c.Hub.done:
		}
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(512)
	_ = c.Conn.SetReadDeadline(time.Now().Add(hubPongWait))
	c.Conn.SetPongHandler(func(string) error {
		return c.Conn.SetReadDeadline(time.Now().Add(hubPongWait))
	})

	for {
		if _, _, err := c.Conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.Hub.logger.Warnf("websocket error: %v", err)
			}
			return
		}
	}
}

func (c *HubClient) writePump() {
	ticker := time.NewTicker(hubPingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			_ = c.Conn.SetWriteDeadline(time.Now().Add(hubWriteWait))
			if !ok {
				_ = c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteJSON(message); err != nil {
				c.Hub.logger.Warnf("websocket write failed: %v", err)
				return
			}

		case <-ticker.C:
			_ = c.Conn.SetWriteDeadline(time.Now().Add(hubWriteWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
