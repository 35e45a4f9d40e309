// Package realtime streams scoring activity to dashboard clients over
// WebSocket: every scored transaction, plus fraud alerts for the
// high-probability ones.
package realtime

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/mbd888/fraudscore/internal/metrics"
)

var normalCloseCodes = []int{
	websocket.CloseNormalClosure,
	websocket.CloseGoingAway,
	websocket.CloseNoStatusReceived,
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true // non-browser clients
		}
		host := r.Host
		return origin == "http://"+host || origin == "https://"+host
	},
}

// EventType labels the stream's event kinds.
type EventType string

const (
	EventTransaction EventType = "transaction_update"
	EventFraudAlert  EventType = "fraud_alert"
	EventStats       EventType = "stats_update"
)

// Event is one message on the stream.
type Event struct {
	Type      EventType `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data"`
}

// Alert severities, derived from probability and amount.
const (
	SeverityCritical = "critical"
	SeverityHigh     = "high"
	SeverityMedium   = "medium"
	SeverityLow      = "low"
)

// Severity grades an alert. Critical is reserved for near-certain fraud on
// large amounts.
func Severity(probability, amount float64) string {
	switch {
	case probability >= 0.9 && amount > 500:
		return SeverityCritical
	case probability >= 0.8:
		return SeverityHigh
	case probability >= 0.5:
		return SeverityMedium
	default:
		return SeverityLow
	}
}

// Alert is the payload of a fraud_alert event.
type Alert struct {
	ID            string    `json:"id"`
	TransactionID string    `json:"transaction_id"`
	User          int64     `json:"user"`
	Card          int64     `json:"card"`
	Amount        float64   `json:"amount"`
	Merchant      int64     `json:"merchant"`
	Probability   float64   `json:"probability"`
	RiskLevel     string    `json:"risk_level"`
	Severity      string    `json:"severity"`
	CreatedAt     time.Time `json:"created_at"`
}

// Subscription filters what a client receives. A zero subscription gets
// nothing; clients start subscribed to everything and may narrow it.
type Subscription struct {
	AllEvents      bool        `json:"all_events"`
	EventTypes     []EventType `json:"event_types"`
	Users          []int64     `json:"users"`
	MinProbability float64     `json:"min_probability"`
	Severities     []string    `json:"severities"`
}

// Client is one WebSocket connection.
type Client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
	mu   sync.RWMutex
	sub  Subscription
}

// MaxClients bounds concurrent WebSocket connections.
const MaxClients = 10000

// Hub fans events out to connected clients. Slow clients are dropped
// rather than allowed to stall the broadcast loop.
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan *Event
	register   chan *Client
	unregister chan *Client
	mu         sync.RWMutex
	logger     *slog.Logger
	done       chan struct{}
	maxClients int

	totalEvents  atomic.Int64
	totalClients atomic.Int64
	peakClients  atomic.Int64
}

func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan *Event, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		logger:     logger,
		done:       make(chan struct{}),
		maxClients: MaxClients,
	}
}

// Run drives the hub until ctx ends, then closes every client.
func (h *Hub) Run(ctx context.Context) {
	h.logger.Info("realtime hub started")
	defer close(h.done)

	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for client := range h.clients {
				close(client.send)
				delete(h.clients, client)
			}
			h.mu.Unlock()
			metrics.ActiveWebSocketClients.Set(0)
			h.logger.Info("realtime hub stopped")
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.totalClients.Add(1)
			if current := int64(len(h.clients)); current > h.peakClients.Load() {
				h.peakClients.Store(current)
			}
			n := len(h.clients)
			h.mu.Unlock()
			metrics.ActiveWebSocketClients.Set(float64(n))
			h.logger.Info("dashboard client connected", "total", n)

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			n := len(h.clients)
			h.mu.Unlock()
			metrics.ActiveWebSocketClients.Set(float64(n))
			h.logger.Info("dashboard client disconnected", "total", n)

		case event := <-h.broadcast:
			h.totalEvents.Add(1)
			payload, err := json.Marshal(event)
			if err != nil {
				continue
			}
			h.mu.RLock()
			var slow []*Client
			for client := range h.clients {
				if client.wants(event) {
					select {
					case client.send <- payload:
					default:
						slow = append(slow, client)
					}
				}
			}
			h.mu.RUnlock()
			if len(slow) > 0 {
				h.mu.Lock()
				for _, client := range slow {
					if _, ok := h.clients[client]; ok {
						close(client.send)
						delete(h.clients, client)
					}
				}
				h.mu.Unlock()
			}
		}
	}
}

// Broadcast queues an event, dropping it if the hub is saturated.
func (h *Hub) Broadcast(event *Event) {
	select {
	case h.broadcast <- event:
	default:
		h.logger.Warn("broadcast channel full, dropping event", "type", event.Type)
	}
}

// BroadcastAlert emits a fraud_alert event and counts it by severity.
func (h *Hub) BroadcastAlert(alert Alert) {
	metrics.AlertsTotal.WithLabelValues(alert.Severity).Inc()
	h.Broadcast(&Event{Type: EventFraudAlert, Timestamp: time.Now(), Data: alert})
}

// BroadcastTransaction emits a transaction_update event.
func (h *Hub) BroadcastTransaction(data any) {
	h.Broadcast(&Event{Type: EventTransaction, Timestamp: time.Now(), Data: data})
}

// Stats returns hub counters for the health surface.
func (h *Hub) Stats() map[string]any {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return map[string]any{
		"connected_clients": len(h.clients),
		"total_events":      h.totalEvents.Load(),
		"total_clients":     h.totalClients.Load(),
		"peak_clients":      h.peakClients.Load(),
	}
}

// HandleWebSocket upgrades the request and registers the client.
func (h *Hub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	select {
	case <-h.done:
		http.Error(w, "server shutting down", http.StatusServiceUnavailable)
		return
	default:
	}

	h.mu.RLock()
	n := len(h.clients)
	h.mu.RUnlock()
	if n >= h.maxClients {
		http.Error(w, "too many connections", http.StatusServiceUnavailable)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("websocket upgrade failed", "error", err)
		return
	}

	client := &Client{
		hub:  h,
		conn: conn,
		send: make(chan []byte, 256),
		sub:  Subscription{AllEvents: true},
	}
	h.register <- client

	go client.writePump()
	go client.readPump()
}

// wants checks the event against the client's subscription.
func (c *Client) wants(event *Event) bool {
	c.mu.RLock()
	sub := c.sub
	c.mu.RUnlock()

	if sub.AllEvents {
		return true
	}

	if len(sub.EventTypes) > 0 {
		matched := false
		for _, t := range sub.EventTypes {
			if t == event.Type {
				matched = true
				break
			}
		}
		if !matched {
			return false
		}
	}

	alert, isAlert := event.Data.(Alert)
	if !isAlert {
		return true
	}
	if sub.MinProbability > 0 && alert.Probability < sub.MinProbability {
		return false
	}
	if len(sub.Users) > 0 {
		matched := false
		for _, u := range sub.Users {
			if u == alert.User {
				matched = true
				break
			}
		}
		if !matched {
			return false
		}
	}
	if len(sub.Severities) > 0 {
		matched := false
		for _, s := range sub.Severities {
			if s == alert.Severity {
				matched = true
				break
			}
		}
		if !matched {
			return false
		}
	}
	return true
}

// readPump consumes subscription updates and pongs until the peer goes away.
func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(512 * 1024)
	_ = c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.conn.SetPongHandler(func(string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, normalCloseCodes...) {
				c.hub.logger.Warn("websocket read error", "error", err)
			}
			break
		}

		var sub Subscription
		if err := json.Unmarshal(message, &sub); err == nil {
			c.mu.Lock()
			c.sub = sub
			c.mu.Unlock()
		}
	}
}

// writePump drains the send channel and keeps the connection alive.
func (c *Client) writePump() {
	ticker := time.NewTicker(30 * time.Second)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				c.hub.logger.Warn("websocket write error", "error", err)
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
