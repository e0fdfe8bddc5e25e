package ws

import (
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Hub tracks live connections and the game sessions they subscribe to.
type Hub struct {
	mu          sync.RWMutex
	connections map[uuid.UUID]*Connection            // conn_id -> connection
	sessions    map[string]map[uuid.UUID]struct{} // pin -> conn_ids
	logger      zerolog.Logger
}

// NewHub creates a new WebSocket hub.
func NewHub(logger zerolog.Logger) *Hub {
	return &Hub{
		connections: make(map[uuid.UUID]*Connection),
		sessions:    make(map[string]map[uuid.UUID]struct{}),
		logger:      logger.With().Str("component", "ws_hub").Logger(),
	}
}

// RegisterConnection adds a freshly upgraded connection.
func (h *Hub) RegisterConnection(conn *Connection) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.connections[conn.ID()] = conn
	h.logger.Debug().Str("conn_id", conn.ID().String()).Msg("connection registered")
}

// UnregisterConnection closes and forgets a connection, dropping every session subscription it held.
func (h *Hub) UnregisterConnection(connID uuid.UUID) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if conn, exists := h.connections[connID]; exists {
		conn.Close()
		delete(h.connections, connID)
		h.logger.Debug().Str("conn_id", connID.String()).Msg("connection unregistered")
	}

	for pin, members := range h.sessions {
		delete(members, connID)
		if len(members) == 0 {
			delete(h.sessions, pin)
		}
	}
}

// JoinSession subscribes a connection to a session's broadcasts.
func (h *Hub) JoinSession(pin string, connID uuid.UUID) {
	h.mu.Lock()
	defer h.mu.Unlock()

	members, ok := h.sessions[pin]
	if !ok {
		members = make(map[uuid.UUID]struct{})
		h.sessions[pin] = members
	}
	members[connID] = struct{}{}
}

// LeaveSession removes a connection from a session's broadcasts.
func (h *Hub) LeaveSession(pin string, connID uuid.UUID) {
	h.mu.Lock()
	defer h.mu.Unlock()

	members := h.sessions[pin]
	delete(members, connID)
	if len(members) == 0 {
		delete(h.sessions, pin)
	}
}

// BroadcastToSession enqueues msg on every subscriber of pin.
// Subscribers whose queue is full are closed; the rest are unaffected.
func (h *Hub) BroadcastToSession(pin string, msg Message) error {
	h.mu.RLock()
	targets := make([]*Connection, 0, len(h.sessions[pin]))
	for connID := range h.sessions[pin] {
		if conn, ok := h.connections[connID]; ok {
			targets = append(targets, conn)
		}
	}
	h.mu.RUnlock()

	var firstErr error
	for _, conn := range targets {
		if err := conn.Send(msg); err != nil {
			if firstErr == nil {
				firstErr = err
			}
			if err == ErrSendQueueFull {
				h.logger.Warn().Str("conn_id", conn.ID().String()).Str("pin", pin).Msg("slow subscriber closed")
				conn.Close()
			}
		}
	}
	return firstErr
}

// SendTo delivers a message to a single connection.
func (h *Hub) SendTo(connID uuid.UUID, msg Message) error {
	h.mu.RLock()
	conn, exists := h.connections[connID]
	h.mu.RUnlock()

	if !exists {
		return ErrConnectionNotFound
	}
	return conn.Send(msg)
}

// GetConnection retrieves a connection by id.
func (h *Hub) GetConnection(connID uuid.UUID) (*Connection, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	conn, exists := h.connections[connID]
	return conn, exists
}

// Count reports the number of live connections.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.connections)
}

// SessionSize reports how many connections subscribe to pin.
func (h *Hub) SessionSize(pin string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions[pin])
}

// CloseAll closes every connection; used during shutdown.
func (h *Hub) CloseAll() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for id, conn := range h.connections {
		conn.Close()
		delete(h.connections, id)
	}
	h.sessions = make(map[string]map[uuid.UUID]struct{})
}
