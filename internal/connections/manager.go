package connections

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// Event is an activity-feed entry broadcast to connected admin clients at
// assistant-sync and chat lifecycle points.
type Event struct {
	Type    string `json:"type"`              // "assistant_sync" | "chat"
	ItemID  string `json:"item_id,omitempty"` // content item the event belongs to
	Status  string `json:"status"`            // e.g. "created", "run_started", "failed"
	Message string `json:"message,omitempty"`
}

// EventCallback is wired into services that emit activity events.
type EventCallback func(event Event)

// TimeoutConfig holds the various timeout settings for WebSocket connections
type TimeoutConfig struct {
	PongWait   time.Duration
	PingPeriod time.Duration
	WriteWait  time.Duration
}

// Manager handles WebSocket connection lifecycle and event fan-out
type Manager struct {
	connections sync.Map
	timeouts    TimeoutConfig
}

// DefaultTimeouts provides sensible default timeout values
var DefaultTimeouts = TimeoutConfig{
	PongWait:   30 * time.Second,
	PingPeriod: 27 * time.Second, // (PongWait * 9) / 10
	WriteWait:  10 * time.Second,
}

// NewManager creates a new connection manager with the specified timeouts
func NewManager(timeouts TimeoutConfig) *Manager {
	return &Manager{
		timeouts: timeouts,
	}
}

// AddConnection registers a new WebSocket connection
func (m *Manager) AddConnection(conn *websocket.Conn) {
	m.connections.Store(conn, struct{}{})
}

// RemoveConnection removes a WebSocket connection
func (m *Manager) RemoveConnection(conn *websocket.Conn) {
	m.connections.Delete(conn)
}

// GetConnectionCount returns the current number of active connections
func (m *Manager) GetConnectionCount() int {
	count := 0
	m.connections.Range(func(key, value interface{}) bool {
		count++
		return true
	})
	return count
}

// HasConnection checks if a specific connection exists
func (m *Manager) HasConnection(conn *websocket.Conn) bool {
	_, exists := m.connections.Load(conn)
	return exists
}

// GetTimeouts returns the current timeout configuration
func (m *Manager) GetTimeouts() TimeoutConfig {
	return m.timeouts
}

// Broadcast sends an event to every connected client. Connections whose
// write fails are dropped.
func (m *Manager) Broadcast(event Event) {
	m.connections.Range(func(key, value interface{}) bool {
		conn := key.(*websocket.Conn)
		err := conn.SetWriteDeadline(time.Now().Add(m.timeouts.WriteWait))
		if err == nil {
			err = conn.WriteJSON(event)
		}
		if err != nil {
			log.Debug().Err(err).Msg("Dropping websocket connection after failed write")
			conn.Close()
			m.connections.Delete(conn)
		}
		return true
	})
}
