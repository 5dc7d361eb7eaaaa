// Package realtime streams alert records to websocket subscribers.
package realtime

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"SellerGuard/internal/domain/models"
	domrepo "SellerGuard/internal/domain/repository"
	svcmetrics "SellerGuard/internal/service/metrics"
	applogger "SellerGuard/pkg/logger"

	"github.com/gorilla/websocket"
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
			return true
		}
		host := r.Host
		return origin == "http://"+host || origin == "https://"+host
	},
}

// Event is one frame on the alert stream.
type Event struct {
	Type      string             `json:"type"`
	Timestamp time.Time          `json:"timestamp"`
	Alert     models.AlertRecord `json:"alert"`
}

const (
	EventAlertRaised  = "alert_raised"
	EventAlertUpdated = "alert_updated"
)

// Subscription filters what a client receives. Empty Accounts means every account.
type Subscription struct {
	Accounts    []string        `json:"accounts"`
	MinSeverity models.Severity `json:"minSeverity"`
}

func (s Subscription) matches(rec models.AlertRecord) bool {
	if len(s.Accounts) > 0 {
		found := false
		for _, a := range s.Accounts {
			if a == rec.AccountID {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if s.MinSeverity != "" && !rec.Alert.Severity.AtLeast(s.MinSeverity) {
		return false
	}
	return true
}

type client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
	mu   sync.RWMutex
	sub  Subscription
}

func (c *client) subscription() Subscription {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.sub
}

// Config tunes the hub.
type Config struct {
	SendBuffer   int
	WriteTimeout time.Duration
	PingInterval time.Duration
	MaxClients   int
}

// Hub fans alert records out to websocket clients. Clients that cannot keep up are dropped.
type Hub struct {
	cfg        Config
	clients    map[*client]bool
	broadcast  chan Event
	register   chan *client
	unregister chan *client
	mu         sync.RWMutex
	l          *applogger.Logger
	done       chan struct{}
	now        func() time.Time

	totalEvents atomic.Int64
	dropped     atomic.Int64
}

var _ domrepo.Broadcaster = (*Hub)(nil)

func NewHub(cfg Config, l *applogger.Logger) *Hub {
	if cfg.SendBuffer <= 0 {
		cfg.SendBuffer = 64
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 10 * time.Second
	}
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = 30 * time.Second
	}
	if cfg.MaxClients <= 0 {
		cfg.MaxClients = 1000
	}
	if l == nil {
		l = applogger.Nop()
	}
	return &Hub{
		cfg:        cfg,
		clients:    make(map[*client]bool),
		broadcast:  make(chan Event, 256),
		register:   make(chan *client),
		unregister: make(chan *client),
		l:          l,
		done:       make(chan struct{}),
		now:        time.Now,
	}
}

// Run is the hub loop. It returns when ctx is done, closing every client.
func (h *Hub) Run(ctx context.Context) {
	h.l.Info("alert stream hub started")
	defer close(h.done)

	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for c := range h.clients {
				close(c.send)
				delete(h.clients, c)
			}
			h.mu.Unlock()
			svcmetrics.StreamClients.Set(0)
			h.l.Info("alert stream hub stopped")
			return

		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = true
			n := len(h.clients)
			h.mu.Unlock()
			svcmetrics.StreamClients.Set(float64(n))
			h.l.Debug("stream client connected", applogger.Int("total", n))

		case c := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
			}
			n := len(h.clients)
			h.mu.Unlock()
			svcmetrics.StreamClients.Set(float64(n))
			h.l.Debug("stream client disconnected", applogger.Int("total", n))

		case ev := <-h.broadcast:
			h.totalEvents.Add(1)
			payload, err := json.Marshal(ev)
			if err != nil {
				h.l.Error("encode stream event", applogger.Error(err))
				continue
			}
			h.mu.RLock()
			var slow []*client
			for c := range h.clients {
				if !c.subscription().matches(ev.Alert) {
					continue
				}
				select {
				case c.send <- payload:
				default:
					slow = append(slow, c)
				}
			}
			h.mu.RUnlock()
			if len(slow) > 0 {
				h.mu.Lock()
				for _, c := range slow {
					if _, ok := h.clients[c]; ok {
						close(c.send)
						delete(h.clients, c)
						h.dropped.Add(1)
					}
				}
				n := len(h.clients)
				h.mu.Unlock()
				svcmetrics.StreamClients.Set(float64(n))
				h.l.Warn("slow stream clients dropped", applogger.Int("count", len(slow)))
			}
		}
	}
}

// BroadcastAlert queues rec for delivery. Never blocks; a full queue drops the event.
func (h *Hub) BroadcastAlert(rec models.AlertRecord) {
	typ := EventAlertRaised
	if rec.Status != models.AlertStatusActive {
		typ = EventAlertUpdated
	}
	select {
	case h.broadcast <- Event{Type: typ, Timestamp: h.now().UTC(), Alert: rec}:
	default:
		h.l.Warn("alert stream queue full, dropping event", applogger.String("alert", rec.ID))
	}
}

// Stats reports connection and delivery counters.
func (h *Hub) Stats() map[string]int64 {
	h.mu.RLock()
	n := len(h.clients)
	h.mu.RUnlock()
	return map[string]int64{
		"connectedClients": int64(n),
		"totalEvents":      h.totalEvents.Load(),
		"droppedClients":   h.dropped.Load(),
	}
}

// HandleWebSocket upgrades the request. The optional account query parameter
// seeds the subscription; clients may replace it by sending a Subscription frame.
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
	if n >= h.cfg.MaxClients {
		http.Error(w, "too many connections", http.StatusServiceUnavailable)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.l.Warn("websocket upgrade failed", applogger.Error(err))
		return
	}

	c := &client{hub: h, conn: conn, send: make(chan []byte, h.cfg.SendBuffer)}
	if account := r.URL.Query().Get("account"); account != "" {
		c.sub.Accounts = []string{account}
	}

	select {
	case h.register <- c:
	case <-h.done:
		_ = conn.Close()
		return
	}

	go c.writePump()
	go c.readPump()
}

func (c *client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		_ = c.conn.Close()
	}()

	wait := 2 * c.hub.cfg.PingInterval
	c.conn.SetReadLimit(64 * 1024)
	_ = c.conn.SetReadDeadline(time.Now().Add(wait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(wait))
	})

	for {
		_, msg, err := c.conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, normalCloseCodes...) {
				c.hub.l.Debug("websocket read error", applogger.Error(err))
			}
			return
		}
		var sub Subscription
		if err := json.Unmarshal(msg, &sub); err == nil {
			c.mu.Lock()
			c.sub = sub
			c.mu.Unlock()
		}
	}
}

func (c *client) writePump() {
	ticker := time.NewTicker(c.hub.cfg.PingInterval)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(c.hub.cfg.WriteTimeout))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				c.hub.l.Debug("websocket write error", applogger.Error(err))
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(c.hub.cfg.WriteTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
