package app

import (
	"sync"
	"time"

	"atlas/internal/logging"
)

// clientBufferSize is the depth of each client's outbound channel. A browser
// that stops reading for longer than this many commands starts losing them.
const clientBufferSize = 100

// MapBroadcaster tracks connected map clients and fans commands out to them.
// It is the single source of truth for who is connected.
type MapBroadcaster struct {
	// Map clientID -> outbound channel
	clients map[int64]chan Command
	mu      sync.RWMutex
	logger  logging.Logger

	// Metrics tracking
	metrics broadcasterMetrics
}

// broadcasterMetrics tracks broadcaster performance metrics
type broadcasterMetrics struct {
	mu sync.RWMutex

	totalCommandsSent int64
	droppedCommands   int64 // Commands dropped due to full buffers
	totalConnections  int64 // Total connections ever made
	activeConnections int64 // Currently active connections
}

// NewMapBroadcaster creates a new map broadcaster
func NewMapBroadcaster() *MapBroadcaster {
	return &MapBroadcaster{
		clients: make(map[int64]chan Command),
		logger:  logging.NewComponentLogger("MapBroadcaster"),
	}
}

// NextClientID derives a connection id from the wall clock, truncated into a
// bounded range. Collisions are possible but rare; Register overwrites on
// collision since ids are generated fresh per connection.
func NextClientID() int64 {
	return time.Now().UnixMilli() % 1_000_000
}

// Register creates the outbound channel for a client and inserts it into the
// registry. It returns the channel the transport endpoint reads from.
func (b *MapBroadcaster) Register(clientID int64) chan Command {
	b.mu.Lock()
	defer b.mu.Unlock()

	if old, exists := b.clients[clientID]; exists {
		// Fresh ids collide only when two connects share a millisecond; the
		// displaced stream sees its channel close and tears itself down.
		b.logger.Warn("Client id %d already registered, replacing its queue", clientID)
		close(old)
	}

	ch := make(chan Command, clientBufferSize)
	b.clients[clientID] = ch
	b.metrics.incrementConnections()
	b.logger.Info("Client %d registered (total: %d)", clientID, len(b.clients))
	return ch
}

// Unregister removes a client from the registry. No-op for unknown ids, or
// when the id was reassigned to a newer connection's channel.
func (b *MapBroadcaster) Unregister(clientID int64, ch chan Command) {
	b.mu.Lock()
	defer b.mu.Unlock()

	current, ok := b.clients[clientID]
	if !ok {
		return
	}
	if current != ch {
		b.metrics.decrementConnections()
		return
	}
	delete(b.clients, clientID)
	close(ch)
	b.metrics.decrementConnections()
	b.logger.Info("Client %d disconnected, %d clients remaining", clientID, len(b.clients))
}

// ClientCount returns the number of currently registered clients
func (b *MapBroadcaster) ClientCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	return len(b.clients)
}

// Broadcast enqueues cmd into every registered client's channel. Delivery is
// per-client: a full buffer on one client is logged and skipped without
// aborting delivery to the rest. Broadcasting with zero clients is a logged
// no-op.
func (b *MapBroadcaster) Broadcast(cmd Command) {
	// Snapshot the registry so the set can change while we deliver.
	b.mu.RLock()
	snapshot := make(map[int64]chan Command, len(b.clients))
	for id, ch := range b.clients {
		snapshot[id] = ch
	}
	b.mu.RUnlock()

	if len(snapshot) == 0 {
		b.logger.Info("No connected clients to send %s to", cmd.Type)
		return
	}

	b.logger.Info("Sending %s to %d clients", cmd.Type, len(snapshot))
	for clientID, ch := range snapshot {
		b.sendToClient(clientID, ch, cmd)
	}
}

// sendToClient enqueues cmd without blocking. Sending on a channel that
// Unregister closed mid-broadcast panics, so that case is recovered and
// logged like any other per-client delivery failure.
func (b *MapBroadcaster) sendToClient(clientID int64, ch chan Command, cmd Command) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("Error sending to client %d: %v", clientID, r)
			b.metrics.incrementDroppedCommands()
		}
	}()

	select {
	case ch <- cmd:
		b.metrics.incrementCommandsSent()
	default:
		b.logger.Warn("Client %d buffer full, dropping %s", clientID, cmd.Type)
		b.metrics.incrementDroppedCommands()
	}
}

// Metrics helper methods
func (m *broadcasterMetrics) incrementCommandsSent() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.totalCommandsSent++
}

func (m *broadcasterMetrics) incrementDroppedCommands() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.droppedCommands++
}

func (m *broadcasterMetrics) incrementConnections() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.totalConnections++
	m.activeConnections++
}

func (m *broadcasterMetrics) decrementConnections() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.activeConnections--
}

// BroadcasterMetrics represents broadcaster metrics for export
type BroadcasterMetrics struct {
	TotalCommandsSent int64 `json:"total_commands_sent"`
	DroppedCommands   int64 `json:"dropped_commands"`
	TotalConnections  int64 `json:"total_connections"`
	ActiveConnections int64 `json:"active_connections"`
	ClientCount       int   `json:"client_count"`
}

// GetMetrics returns current broadcaster metrics
func (b *MapBroadcaster) GetMetrics() BroadcasterMetrics {
	b.metrics.mu.RLock()
	totalSent := b.metrics.totalCommandsSent
	dropped := b.metrics.droppedCommands
	totalConns := b.metrics.totalConnections
	activeConns := b.metrics.activeConnections
	b.metrics.mu.RUnlock()

	b.mu.RLock()
	defer b.mu.RUnlock()

	return BroadcasterMetrics{
		TotalCommandsSent: totalSent,
		DroppedCommands:   dropped,
		TotalConnections:  totalConns,
		ActiveConnections: activeConns,
		ClientCount:       len(b.clients),
	}
}
