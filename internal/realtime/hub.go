// AngelaMos | 2026
// hub.go

package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Event describes a row change on one of the storefront tables.
type Event struct {
	Table     string    `json:"table"`
	Action    string    `json:"action"`
	Record    any       `json:"record,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

const (
	ActionInsert = "INSERT"
	ActionUpdate = "UPDATE"
	ActionDelete = "DELETE"
)

// Hub fans events out to connected websocket clients. With Redis attached,
// Publish goes through a pub/sub channel so every API instance sees it.
type Hub struct {
	rdb     redis.UniversalClient
	channel string
	logger  *slog.Logger

	mu      sync.RWMutex
	clients map[*client]struct{}
}

func NewHub(rdb redis.UniversalClient, channel string, logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	if channel == "" {
		channel = "realtime:changes"
	}
	return &Hub{
		rdb:     rdb,
		channel: channel,
		logger:  logger,
		clients: make(map[*client]struct{}),
	}
}

// Publish never fails the caller's operation; errors are logged.
func (h *Hub) Publish(ctx context.Context, table, action string, record any) {
	ev := Event{Table: table, Action: action, Record: record, Timestamp: time.Now().UTC()}

	payload, err := json.Marshal(ev)
	if err != nil {
		h.logger.Warn("realtime event encode failed", "table", table, "error", err)
		return
	}

	if h.rdb == nil {
		h.broadcast(payload)
		return
	}

	if err := h.rdb.Publish(ctx, h.channel, payload).Err(); err != nil {
		h.logger.Warn("realtime publish failed, delivering locally",
			"table", table,
			"error", err,
		)
		h.broadcast(payload)
	}
}

// Run relays the Redis channel to local clients until ctx is done.
func (h *Hub) Run(ctx context.Context) error {
	if h.rdb == nil {
		<-ctx.Done()
		return ctx.Err()
	}

	sub := h.rdb.Subscribe(ctx, h.channel)
	defer func() { _ = sub.Close() }()

	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe %s: %w", h.channel, err)
	}

	msgs := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-msgs:
			if !ok {
				return fmt.Errorf("subscription %s closed", h.channel)
			}
			h.broadcast([]byte(msg.Payload))
		}
	}
}

func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) register(c *client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
	h.mu.Unlock()
}

// broadcast drops the message for clients whose buffer is full.
func (h *Hub) broadcast(payload []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for c := range h.clients {
		select {
		case c.send <- payload:
		default:
			h.logger.Debug("realtime client lagging, message dropped")
		}
	}
}
