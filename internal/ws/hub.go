// Package ws pushes realtime notifications (booking created, status changes,
// video session lifecycle, chat messages) to connected clients. Each
// authenticated user is subscribed to their own topic.
package ws

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	gorillawebsocket "github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"pulmocare-server/internal/middleware"
)

// Event types pushed over the hub.
const (
	EventConsultationBooked = "consultation.booked"
	EventConsultationStatus = "consultation.status"
	EventVideoStarted       = "video.started"
	EventVideoEnded         = "video.ended"
	EventChatMessage        = "chat.message"
)

// Event is a realtime notification sent to connected clients.
type Event struct {
	Type       string      `json:"type"`
	ResourceID string      `json:"resourceId,omitempty"`
	Timestamp  time.Time   `json:"timestamp"`
	Data       interface{} `json:"data,omitempty"`
}

// Conn abstracts a WebSocket connection for testability.
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// Client represents a single connected user socket.
type Client struct {
	UserID string
	Send   chan []byte
	conn   Conn
}

// Hub tracks connected clients per user id. All operations are thread-safe.
type Hub struct {
	mu     sync.RWMutex
	byUser map[string]map[*Client]struct{}
	log    zerolog.Logger
}

// NewHub creates a Hub ready to manage client connections.
func NewHub(log zerolog.Logger) *Hub {
	return &Hub{
		byUser: make(map[string]map[*Client]struct{}),
		log:    log,
	}
}

// Register adds a client to the hub under its user id.
func (h *Hub) Register(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.byUser[client.UserID] == nil {
		h.byUser[client.UserID] = make(map[*Client]struct{})
	}
	h.byUser[client.UserID][client] = struct{}{}
}

// Unregister removes a client and closes its send channel.
func (h *Hub) Unregister(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	clients, ok := h.byUser[client.UserID]
	if !ok {
		return
	}
	if _, ok := clients[client]; !ok {
		return
	}
	delete(clients, client)
	if len(clients) == 0 {
		delete(h.byUser, client.UserID)
	}
	close(client.Send)
}

// NotifyUsers sends an event to every connection of each given user. Users
// without an open connection are silently skipped.
func (h *Hub) NotifyUsers(userIDs []string, event Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	data, err := json.Marshal(event)
	if err != nil {
		h.log.Error().Err(err).Msg("failed to marshal websocket event")
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, userID := range userIDs {
		for client := range h.byUser[userID] {
			select {
			case client.Send <- data:
			default:
				// Client buffer full; skip to avoid blocking.
			}
		}
	}
}

// ClientCount returns the total number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	count := 0
	for _, clients := range h.byUser {
		count += len(clients)
	}
	return count
}

// UserConnectionCount returns the number of open connections for one user.
func (h *Hub) UserConnectionCount(userID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.byUser[userID])
}

var upgrader = gorillawebsocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins; tighten in production.
	},
}

// Handler upgrades an authenticated request to a WebSocket connection and
// keeps it subscribed to the user's own notifications until it closes.
func (h *Hub) Handler(c *gin.Context) {
	userID, exists := middleware.GetUserIDFromContext(c)
	if !exists {
		c.AbortWithStatus(http.StatusUnauthorized)
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Error().Err(err).Msg("websocket upgrade failed")
		return
	}

	client := &Client{
		UserID: userID,
		Send:   make(chan []byte, 16),
		conn:   conn,
	}
	h.Register(client)
	h.log.Debug().Str("user_id", userID).Msg("websocket client connected")

	go client.writePump()
	client.readPump(h)
}

// readPump drains inbound frames until the connection closes, then
// unregisters the client.
func (c *Client) readPump(h *Hub) {
	defer func() {
		h.Unregister(c)
		c.conn.Close()
		h.log.Debug().Str("user_id", c.UserID).Msg("websocket client disconnected")
	}()
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

// writePump forwards queued events to the connection.
func (c *Client) writePump() {
	for data := range c.Send {
		if err := c.conn.WriteMessage(gorillawebsocket.TextMessage, data); err != nil {
			return
		}
	}
}
