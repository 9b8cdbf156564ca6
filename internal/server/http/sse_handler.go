package http

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"atlas/internal/logging"
	"atlas/internal/server/app"
)

// keepaliveInterval bounds how long an idle stream stays silent. A ping frame
// defeats idle-connection timeouts on intermediary proxies and browsers.
const keepaliveInterval = 30 * time.Second

// SSEHandler handles the long-lived event stream each map page opens.
type SSEHandler struct {
	broadcaster *app.MapBroadcaster
	logger      logging.Logger
}

// NewSSEHandler creates a new SSE handler
func NewSSEHandler(broadcaster *app.MapBroadcaster) *SSEHandler {
	return &SSEHandler{
		broadcaster: broadcaster,
		logger:      logging.NewComponentLogger("SSEHandler"),
	}
}

// HandleSSEStream registers the client, emits the connected handshake, then
// delivers queued commands (or pings when idle) until the client disconnects.
func (h *SSEHandler) HandleSSEStream(w http.ResponseWriter, r *http.Request) {
	// Set SSE headers (CORS headers are handled by middleware)
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // Disable nginx buffering

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming unsupported", http.StatusInternalServerError)
		return
	}

	clientID := app.NextClientID()
	commands := h.broadcaster.Register(clientID)
	defer h.broadcaster.Unregister(clientID, commands)

	h.logger.Info("SSE connection established for client %d", clientID)

	// Initial connection message
	if _, err := fmt.Fprintf(w, "data: {\"type\": \"connected\", \"id\": %d}\n\n", clientID); err != nil {
		h.logger.Error("Failed to send connection message: %v", err)
		return
	}
	flusher.Flush()

	ticker := time.NewTicker(keepaliveInterval)
	defer ticker.Stop()

	for {
		select {
		case cmd, open := <-commands:
			if !open {
				// Registry replaced this client id; treat as disconnect.
				return
			}
			payload, err := json.Marshal(cmd)
			if err != nil {
				h.logger.Error("Failed to serialize command: %v", err)
				continue
			}
			if _, err := fmt.Fprintf(w, "data: %s\n\n", payload); err != nil {
				h.logger.Error("Failed to send command to client %d: %v", clientID, err)
				return
			}
			flusher.Flush()

		case <-ticker.C:
			// No command in the keepalive window, send a ping instead of closing
			if _, err := fmt.Fprintf(w, "data: {\"type\": \"ping\"}\n\n"); err != nil {
				h.logger.Error("Failed to send ping to client %d: %v", clientID, err)
				return
			}
			flusher.Flush()

		case <-r.Context().Done():
			// Client disconnected
			h.logger.Info("SSE connection closed by client %d", clientID)
			return
		}
	}
}
