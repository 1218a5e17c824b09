package live

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"example.com/ecotrack/internal/auth"
	"example.com/ecotrack/internal/observability"
)

const (
	sendBuffer   = 16
	writeTimeout = 10 * time.Second
	pongWait     = 60 * time.Second
	pingPeriod   = pongWait * 9 / 10
)

// client is one websocket connection bound to an owner.
type client struct {
	ownerID string
	send    chan []byte
}

// Hub tracks websocket clients per owner.
type Hub struct {
	mu       sync.RWMutex
	clients  map[string]map[*client]struct{}
	total    int
	upgrader websocket.Upgrader
	logger   zerolog.Logger
	onJoin   func(ownerID string)
}

// HubOption configures a Hub.
type HubOption func(*Hub)

// WithAllowedOrigin restricts websocket upgrades to origin. "*" allows any.
func WithAllowedOrigin(origin string) HubOption {
	return func(h *Hub) {
		if origin == "" || origin == "*" {
			h.upgrader.CheckOrigin = func(*http.Request) bool { return true }
			return
		}
		h.upgrader.CheckOrigin = func(r *http.Request) bool {
			o := r.Header.Get("Origin")
			return o == "" || o == origin
		}
	}
}

// NewHub constructs an empty Hub.
func NewHub(logger zerolog.Logger, opts ...HubOption) *Hub {
	h := &Hub{
		clients: make(map[string]map[*client]struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		logger: logger,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// SetJoinHook registers fn to run after a client connects, typically to push
// an initial snapshot.
func (h *Hub) SetJoinHook(fn func(ownerID string)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.onJoin = fn
}

func (h *Hub) register(ownerID string) *client {
	c := &client{ownerID: ownerID, send: make(chan []byte, sendBuffer)}
	h.mu.Lock()
	set, ok := h.clients[ownerID]
	if !ok {
		set = make(map[*client]struct{})
		h.clients[ownerID] = set
	}
	set[c] = struct{}{}
	h.total++
	total := h.total
	h.mu.Unlock()
	observability.SetLiveClients(total)
	return c
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	removed := h.removeLocked(c)
	total := h.total
	h.mu.Unlock()
	if removed {
		observability.SetLiveClients(total)
	}
}

func (h *Hub) removeLocked(c *client) bool {
	set, ok := h.clients[c.ownerID]
	if !ok {
		return false
	}
	if _, exists := set[c]; !exists {
		return false
	}
	delete(set, c)
	close(c.send)
	h.total--
	if len(set) == 0 {
		delete(h.clients, c.ownerID)
	}
	return true
}

// HasClients reports whether ownerID has at least one connection.
func (h *Hub) HasClients(ownerID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[ownerID]) > 0
}

// Count returns the number of connected clients.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.total
}

// Publish queues payload for every client of ownerID and returns how many
// received it. Clients whose buffer is full are disconnected.
func (h *Hub) Publish(ownerID string, payload []byte) int {
	h.mu.Lock()
	defer func() {
		total := h.total
		h.mu.Unlock()
		observability.SetLiveClients(total)
	}()

	sent := 0
	for c := range h.clients[ownerID] {
		select {
		case c.send <- payload:
			sent++
		default:
			h.logger.Warn().Str("owner_id", ownerID).Msg("dropping slow websocket client")
			h.removeLocked(c)
		}
	}
	return sent
}

// ServeWS upgrades an authenticated request and streams pushes until the
// connection closes. The caller identity comes from the auth middleware.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.FromContext(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	c := h.register(claims.Subject)
	h.logger.Debug().Str("owner_id", c.ownerID).Msg("websocket client connected")

	h.mu.RLock()
	onJoin := h.onJoin
	h.mu.RUnlock()
	if onJoin != nil {
		go onJoin(c.ownerID)
	}

	go h.readPump(conn, c)
	h.writePump(conn, c)
}

// readPump discards client messages and keeps the read deadline fresh.
func (h *Hub) readPump(conn *websocket.Conn, c *client) {
	defer func() {
		h.unregister(c)
		_ = conn.Close()
	}()
	conn.SetReadLimit(1024)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) writePump(conn *websocket.Conn, c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, ""))
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
