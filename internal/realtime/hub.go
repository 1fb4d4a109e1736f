package realtime

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/riverside-fc/backend/internal/models"
	"github.com/riverside-fc/backend/pkg/metrics"
)

const (
	// PingInterval and PongWait are used for heartbeat (seconds).
	PingInterval = 30
	PongWait     = 60

	// EventAttendanceCreated is sent for every stored check-in.
	EventAttendanceCreated = "attendance_created"
	// EventViewers carries the number of admins watching an event.
	EventViewers = "viewers"
)

// Hub maintains event_id -> set of admin connections and broadcasts messages.
// Uses Redis pub/sub for horizontal scaling so a check-in on one instance
// reaches consoles connected to another.
type Hub struct {
	rooms    map[uuid.UUID]map[string]*Client
	subs     map[uuid.UUID]func() // cancel Redis subscription per event
	mu       sync.RWMutex
	logger   *zap.Logger
	redis    RedisPublisher
	redisSub RedisSubscriber
}

// RedisPublisher publishes to Redis for cross-instance broadcast.
type RedisPublisher interface {
	PublishEventMessage(eventID uuid.UUID, name string, payload []byte) error
}

// RedisSubscriber subscribes to an event channel and invokes handler for incoming messages.
type RedisSubscriber interface {
	SubscribeEvent(eventID uuid.UUID, handler func(name string, payload []byte)) (cancel func(), err error)
}

// NewHub creates a new WebSocket hub. Both Redis sides may be nil for a single instance.
func NewHub(logger *zap.Logger, redisPub RedisPublisher, redisSub RedisSubscriber) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		rooms:    make(map[uuid.UUID]map[string]*Client),
		subs:     make(map[uuid.UUID]func()),
		logger:   logger,
		redis:    redisPub,
		redisSub: redisSub,
	}
}

// Register adds a client to an event room. Starts the Redis subscription for
// this event on the first client.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	if h.rooms[c.EventID] == nil {
		h.rooms[c.EventID] = make(map[string]*Client)
		if h.redisSub != nil {
			eventID := c.EventID
			cancel, err := h.redisSub.SubscribeEvent(eventID, func(name string, payload []byte) {
				h.Broadcast(eventID, name, json.RawMessage(payload))
			})
			if err != nil {
				h.logger.Warn("redis subscribe failed", zap.String("event_id", eventID.String()), zap.Error(err))
			} else {
				h.subs[eventID] = cancel
			}
		}
	}
	h.rooms[c.EventID][c.ID] = c
	count := len(h.rooms[c.EventID])
	h.mu.Unlock()

	metrics.AddFeedConnections(1)
	h.Broadcast(c.EventID, EventViewers, map[string]int{"count": count})
	h.logger.Debug("admin joined live feed", zap.String("client_id", c.ID), zap.String("event_id", c.EventID.String()))
}

// Unregister removes a client. Cancels the Redis subscription when the last client leaves.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	m, ok := h.rooms[c.EventID]
	if !ok || m[c.ID] == nil {
		h.mu.Unlock()
		return
	}
	delete(m, c.ID)
	count := len(m)
	if count == 0 {
		delete(h.rooms, c.EventID)
		if cancel, ok := h.subs[c.EventID]; ok {
			cancel()
			delete(h.subs, c.EventID)
		}
	}
	h.mu.Unlock()

	metrics.AddFeedConnections(-1)
	if count > 0 {
		h.Broadcast(c.EventID, EventViewers, map[string]int{"count": count})
	}
	h.logger.Debug("admin left live feed", zap.String("client_id", c.ID), zap.String("event_id", c.EventID.String()))
}

// Broadcast sends a message to all local clients watching an event.
func (h *Hub) Broadcast(eventID uuid.UUID, name string, payload any) {
	var data []byte
	switch v := payload.(type) {
	case []byte:
		data = v
	case json.RawMessage:
		data = v
	default:
		var err error
		if data, err = json.Marshal(payload); err != nil {
			return
		}
	}
	msg := WSMessage{Event: name, Data: data}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, c := range h.rooms[eventID] {
		select {
		case c.send <- msg:
		default:
			// buffer full, skip
		}
	}
}

// publish fans a message out to every instance. With Redis the subscriber
// callback does the local delivery, so local clients get it exactly once.
func (h *Hub) publish(eventID uuid.UUID, name string, payload any) {
	if h.redis == nil {
		h.Broadcast(eventID, name, payload)
		return
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return
	}
	if err := h.redis.PublishEventMessage(eventID, name, data); err != nil {
		h.logger.Warn("redis publish failed, delivering locally", zap.Error(err))
		h.Broadcast(eventID, name, json.RawMessage(data))
	}
}

// AttendanceCreated pushes a new check-in to consoles watching its event.
func (h *Hub) AttendanceCreated(_ context.Context, rec models.AttendanceRecord) {
	h.publish(rec.EventID, EventAttendanceCreated, rec)
}

// Viewers returns the number of local clients watching an event.
func (h *Hub) Viewers(eventID uuid.UUID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[eventID])
}
