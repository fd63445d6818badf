// Package stream pushes published account states to WebSocket subscribers.
package stream

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/trading-account-engine/internal/domain/shared"
	"github.com/trading-account-engine/internal/platform/metrics"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 30 * time.Second
	sendBuffer = 64
)

// Hub fans account states consumed from Kafka out to the clients subscribed
// to each account. A slow client loses messages rather than stalling the feed.
type Hub struct {
	mu          sync.RWMutex
	subscribers map[shared.AccountID]map[*client]struct{}
	upgrader    websocket.Upgrader
	logger      *slog.Logger
}

type client struct {
	conn      *websocket.Conn
	accountID shared.AccountID
	send      chan []byte
}

// NewHub creates a hub. Origins are not checked; the gateway sits behind the edge proxy.
func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		subscribers: make(map[shared.AccountID]map[*client]struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		logger: logger,
	}
}

// HandleMessage broadcasts one account_states record. It implements the consumer handler.
func (h *Hub) HandleMessage(_ context.Context, key []byte, value []byte) error {
	var head struct {
		AccountID shared.AccountID `json:"account_id"`
	}
	if err := json.Unmarshal(value, &head); err != nil || head.AccountID == "" {
		h.logger.Warn("Dropping undecodable account state", "message_key", string(key), "error", err)
		return nil
	}
	h.Broadcast(head.AccountID, value)
	return nil
}

// Broadcast queues payload for every subscriber of accountID
func (h *Hub) Broadcast(accountID shared.AccountID, payload []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.subscribers[accountID] {
		select {
		case c.send <- payload:
		default:
			h.logger.Warn("Dropping account state for slow stream client", "account_id", accountID.String())
		}
	}
}

// Subscribers returns the number of clients following accountID
func (h *Hub) Subscribers(accountID shared.AccountID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers[accountID])
}

// Serve upgrades the request and streams accountID states until the client leaves
func (h *Hub) Serve(w http.ResponseWriter, r *http.Request, accountID shared.AccountID) error {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return err
	}

	c := &client{conn: conn, accountID: accountID, send: make(chan []byte, sendBuffer)}
	h.register(c)
	defer h.unregister(c)

	go c.writePump()
	c.readPump()
	return nil
}

func (h *Hub) register(c *client) {
	h.mu.Lock()
	set, ok := h.subscribers[c.accountID]
	if !ok {
		set = make(map[*client]struct{})
		h.subscribers[c.accountID] = set
	}
	set[c] = struct{}{}
	h.mu.Unlock()

	metrics.WebSocketClients.Inc()
	h.logger.Info("Stream client connected", "account_id", c.accountID.String())
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	if set, ok := h.subscribers[c.accountID]; ok {
		if _, found := set[c]; found {
			delete(set, c)
			close(c.send)
			metrics.WebSocketClients.Dec()
		}
		if len(set) == 0 {
			delete(h.subscribers, c.accountID)
		}
	}
	h.mu.Unlock()

	h.logger.Info("Stream client disconnected", "account_id", c.accountID.String())
}

// readPump discards client frames and returns once the connection drops
func (c *client) readPump() {
	c.conn.SetReadLimit(512)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

// writePump owns all writes to the connection
func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
