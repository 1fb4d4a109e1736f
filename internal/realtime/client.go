package realtime

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// WSMessage is the WebSocket message envelope.
type WSMessage struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Client is one admin console watching an event's check-ins.
type Client struct {
	ID      string
	EventID uuid.UUID
	AdminID uuid.UUID
	hub     *Hub
	conn    *websocket.Conn
	send    chan WSMessage
	done    chan struct{}
	logger  *zap.Logger
}

// TokenValidator resolves a console token to the admin's ID.
type TokenValidator func(token string) (uuid.UUID, error)

// NewUpgrader accepts connections from the listed origins ("*" or empty allows all).
func NewUpgrader(allowedOrigins string) *websocket.Upgrader {
	allowed := map[string]bool{}
	for _, o := range strings.Split(allowedOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			allowed[o] = true
		}
	}
	return &websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if len(allowed) == 0 || allowed["*"] {
				return true
			}
			origin := r.Header.Get("Origin")
			return origin == "" || allowed[origin]
		},
	}
}

// ServeWs handles GET /ws?event_id=&token= and streams the event's check-ins.
// The feed is read-only; inbound messages other than "ping" are ignored.
func ServeWs(hub *Hub, upgrader *websocket.Upgrader, validate TokenValidator, logger *zap.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(c *gin.Context) {
		eventID, err := uuid.Parse(c.Query("event_id"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "valid event_id required"})
			return
		}
		adminID, err := validate(c.Query("token"))
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"success": false, "error": "invalid token"})
			return
		}

		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			logger.Warn("websocket upgrade failed", zap.Error(err))
			return
		}

		client := &Client{
			ID:      uuid.New().String(),
			EventID: eventID,
			AdminID: adminID,
			hub:     hub,
			conn:    conn,
			send:    make(chan WSMessage, 64),
			done:    make(chan struct{}),
			logger:  logger,
		}
		hub.Register(client)
		go client.writePump()
		client.readPump()
	}
}

func (c *Client) readPump() {
	defer func() {
		c.hub.Unregister(c)
		close(c.done)
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(4096)
	_ = c.conn.SetReadDeadline(time.Now().Add(PongWait * time.Second))
	c.conn.SetPongHandler(func(string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(PongWait * time.Second))
		return nil
	})

	for {
		var msg WSMessage
		if err := c.conn.ReadJSON(&msg); err != nil {
			return
		}
		_ = c.conn.SetReadDeadline(time.Now().Add(PongWait * time.Second))
		if msg.Event == "ping" {
			select {
			case c.send <- WSMessage{Event: "pong"}:
			default:
			}
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(PingInterval * time.Second)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case <-c.done:
			_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		case msg := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteJSON(msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
