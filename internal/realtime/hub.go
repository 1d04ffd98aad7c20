// Package realtime pushes tenant events (new orders, bookings, payments) to
// the patissier's open dashboard tabs over WebSocket.
package realtime

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/patissio/patissio/internal/metrics"
)

const (
	// MaxClients is the maximum number of concurrent WebSocket connections.
	MaxClients = 10000
	// MaxClientsPerTenant caps the tabs a single shop may hold open.
	MaxClientsPerTenant = 20

	pongWait   = 60 * time.Second
	pingPeriod = 30 * time.Second
	writeWait  = 10 * time.Second
	sendBuffer = 64
)

// expected disconnects, not worth logging
var normalCloseCodes = []int{
	websocket.CloseNormalClosure,
	websocket.CloseGoingAway,
	websocket.CloseNoStatusReceived,
}

// Event is one message pushed to a tenant's clients.
type Event struct {
	Type      string    `json:"type"`
	TenantID  string    `json:"-"`
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data"`
}

// Subscription narrows which event types a client receives. Empty means all.
type Subscription struct {
	Types []string `json:"types"`
}

// Client is one dashboard tab of one tenant.
type Client struct {
	hub      *Hub
	conn     *websocket.Conn
	send     chan []byte
	tenantID string
	mu       sync.RWMutex
	sub      Subscription
}

// Option configures a Hub.
type Option func(*Hub)

// WithOriginCheck replaces the same-host origin check used by default.
// Requests without an Origin header (non-browser clients) are always accepted.
func WithOriginCheck(allowed func(origin string) bool) Option {
	return func(h *Hub) { h.originAllowed = allowed }
}

// Hub fans events out to the connected clients of each tenant.
type Hub struct {
	tenants    map[string]map[*Client]struct{}
	count      int
	broadcast  chan *Event
	register   chan *Client
	unregister chan *Client
	mu         sync.RWMutex
	logger     *slog.Logger
	done       chan struct{}
	upgrader   websocket.Upgrader

	originAllowed func(origin string) bool

	totalEvents  atomic.Int64
	droppedSlow  atomic.Int64
	totalClients atomic.Int64
	peakClients  atomic.Int64
}

// NewHub creates a hub. Call Run before accepting connections.
func NewHub(logger *slog.Logger, opts ...Option) *Hub {
	h := &Hub{
		tenants:    make(map[string]map[*Client]struct{}),
		broadcast:  make(chan *Event, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		logger:     logger,
		done:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(h)
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     h.checkOrigin,
	}
	return h
}

func (h *Hub) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	if h.originAllowed != nil {
		return h.originAllowed(origin)
	}
	return origin == "http://"+r.Host || origin == "https://"+r.Host
}

// Run owns the client set until ctx is done, then closes every connection.
func (h *Hub) Run(ctx context.Context) {
	h.logger.Info("realtime hub started")
	defer close(h.done)

	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for tenantID, set := range h.tenants {
				for client := range set {
					close(client.send)
				}
				delete(h.tenants, tenantID)
			}
			h.count = 0
			h.mu.Unlock()
			metrics.ActiveWebSocketClients.Set(0)
			h.logger.Info("realtime hub stopped")
			return

		case client := <-h.register:
			h.add(client)

		case client := <-h.unregister:
			h.remove(client)

		case event := <-h.broadcast:
			h.deliver(event)
		}
	}
}

func (h *Hub) add(client *Client) {
	h.mu.Lock()
	set, ok := h.tenants[client.tenantID]
	if !ok {
		set = make(map[*Client]struct{})
		h.tenants[client.tenantID] = set
	}
	set[client] = struct{}{}
	h.count++
	n := h.count
	h.mu.Unlock()

	h.totalClients.Add(1)
	if int64(n) > h.peakClients.Load() {
		h.peakClients.Store(int64(n))
	}
	metrics.ActiveWebSocketClients.Set(float64(n))
	h.logger.Debug("client connected", "tenant_id", client.tenantID, "total", n)
}

func (h *Hub) remove(client *Client) {
	h.mu.Lock()
	h.detach(client)
	n := h.count
	h.mu.Unlock()
	metrics.ActiveWebSocketClients.Set(float64(n))
	h.logger.Debug("client disconnected", "tenant_id", client.tenantID, "total", n)
}

// detach drops client and closes its send channel. Caller holds h.mu.
func (h *Hub) detach(client *Client) {
	set, ok := h.tenants[client.tenantID]
	if !ok {
		return
	}
	if _, ok := set[client]; !ok {
		return
	}
	delete(set, client)
	close(client.send)
	h.count--
	if len(set) == 0 {
		delete(h.tenants, client.tenantID)
	}
}

// deliver writes event to the tenant's clients. A client whose buffer is
// full is disconnected; the dashboard reconnects and refetches.
func (h *Hub) deliver(event *Event) {
	h.totalEvents.Add(1)
	if event.TenantID == "" {
		return
	}
	payload, err := json.Marshal(event)
	if err != nil {
		h.logger.Error("encode event", "type", event.Type, "error", err)
		return
	}

	var slow []*Client
	h.mu.RLock()
	for client := range h.tenants[event.TenantID] {
		if !shouldSend(client, event) {
			continue
		}
		select {
		case client.send <- payload:
		default:
			slow = append(slow, client)
		}
	}
	h.mu.RUnlock()

	if len(slow) == 0 {
		return
	}
	h.mu.Lock()
	for _, client := range slow {
		h.detach(client)
	}
	n := h.count
	h.mu.Unlock()
	h.droppedSlow.Add(int64(len(slow)))
	metrics.ActiveWebSocketClients.Set(float64(n))
	h.logger.Warn("dropped slow websocket clients", "tenant_id", event.TenantID, "count", len(slow))
}

// shouldSend delivers only to the event's tenant, then applies the type filter.
func shouldSend(client *Client, event *Event) bool {
	if event.TenantID == "" || client.tenantID != event.TenantID {
		return false
	}
	client.mu.RLock()
	defer client.mu.RUnlock()
	return len(client.sub.Types) == 0 || slices.Contains(client.sub.Types, event.Type)
}

// Publish queues an event for tenantID's clients. It never blocks; events
// are dropped when the queue is full.
func (h *Hub) Publish(tenantID, eventType string, data any) {
	event := &Event{
		Type:      eventType,
		TenantID:  tenantID,
		Timestamp: time.Now().UTC(),
		Data:      data,
	}
	select {
	case h.broadcast <- event:
	default:
		h.logger.Warn("event queue full, dropping event", "type", eventType, "tenant_id", tenantID)
	}
}

// Stats returns hub counters.
func (h *Hub) Stats() map[string]any {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return map[string]any{
		"connectedClients": h.count,
		"tenants":          len(h.tenants),
		"totalEvents":      h.totalEvents.Load(),
		"totalClients":     h.totalClients.Load(),
		"peakClients":      h.peakClients.Load(),
		"droppedSlow":      h.droppedSlow.Load(),
	}
}

// HandleWebSocket upgrades the request and attaches the connection to tenantID.
// The caller has already authenticated the request.
func (h *Hub) HandleWebSocket(w http.ResponseWriter, r *http.Request, tenantID string) {
	select {
	case <-h.done:
		http.Error(w, "server shutting down", http.StatusServiceUnavailable)
		return
	default:
	}

	h.mu.RLock()
	total, mine := h.count, len(h.tenants[tenantID])
	h.mu.RUnlock()
	if total >= MaxClients || mine >= MaxClientsPerTenant {
		http.Error(w, "too many connections", http.StatusServiceUnavailable)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "error", err)
		return
	}

	client := &Client{
		hub:      h,
		conn:     conn,
		send:     make(chan []byte, sendBuffer),
		tenantID: tenantID,
	}

	select {
	case h.register <- client:
	case <-h.done:
		_ = conn.Close()
		return
	}

	go client.writePump()
	go client.readPump()
}

// readPump applies subscription updates sent by the client.
func (c *Client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(4 * 1024)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, normalCloseCodes...) {
				c.hub.logger.Debug("websocket read error", "error", err)
			}
			return
		}

		var sub Subscription
		if err := json.Unmarshal(message, &sub); err != nil {
			continue
		}
		c.mu.Lock()
		c.sub = sub
		c.mu.Unlock()
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				c.hub.logger.Debug("websocket write error", "error", err)
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
