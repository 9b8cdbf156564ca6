package http

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"atlas/internal/server/app"
)

// threadSafeResponseWriter is a thread-safe ResponseWriter for testing
type threadSafeResponseWriter struct {
	mu     sync.Mutex
	buf    bytes.Buffer
	header http.Header
	code   int
}

func newThreadSafeResponseWriter() *threadSafeResponseWriter {
	return &threadSafeResponseWriter{header: make(http.Header)}
}

func (w *threadSafeResponseWriter) Header() http.Header {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.header
}

func (w *threadSafeResponseWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.buf.Write(p)
}

func (w *threadSafeResponseWriter) WriteHeader(code int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.code = code
}

func (w *threadSafeResponseWriter) Flush() {}

func (w *threadSafeResponseWriter) body() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.buf.String()
}

func (w *threadSafeResponseWriter) headerValue(key string) string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.header.Get(key)
}

func TestSSEHandlerStreamsCommands(t *testing.T) {
	broadcaster := app.NewMapBroadcaster()
	handler := NewSSEHandler(broadcaster)

	ctx, cancel := context.WithCancel(context.Background())
	req := httptest.NewRequest(http.MethodGet, "/api/sse", nil).WithContext(ctx)
	writer := newThreadSafeResponseWriter()

	done := make(chan struct{})
	go func() {
		handler.HandleSSEStream(writer, req)
		close(done)
	}()

	// Wait for the client to register
	deadline := time.Now().Add(time.Second)
	for broadcaster.ClientCount() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("client never registered")
		}
		time.Sleep(10 * time.Millisecond)
	}

	broadcaster.Broadcast(app.Command{Type: app.CommandSetTitle, Data: map[string]any{"title": "Paris"}})
	time.Sleep(100 * time.Millisecond)

	body := writer.body()
	if !strings.Contains(body, `"type": "connected"`) {
		t.Errorf("expected connected handshake, got %q", body)
	}
	if !strings.Contains(body, `"SET_TITLE"`) {
		t.Errorf("expected SET_TITLE frame, got %q", body)
	}
	if !strings.Contains(body, "data: ") {
		t.Errorf("frames must use SSE data format, got %q", body)
	}

	if got := writer.headerValue("Content-Type"); got != "text/event-stream" {
		t.Errorf("expected Content-Type text/event-stream, got %s", got)
	}
	if got := writer.headerValue("Cache-Control"); got != "no-cache" {
		t.Errorf("expected Cache-Control no-cache, got %s", got)
	}

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("handler did not exit on disconnect")
	}

	if got := broadcaster.ClientCount(); got != 0 {
		t.Errorf("expected client to unregister on disconnect, count=%d", got)
	}
}

func TestSSEHandlerRequiresFlusher(t *testing.T) {
	broadcaster := app.NewMapBroadcaster()
	handler := NewSSEHandler(broadcaster)

	req := httptest.NewRequest(http.MethodGet, "/api/sse", nil)
	// A writer without http.Flusher cannot stream
	writer := struct{ http.ResponseWriter }{httptest.NewRecorder()}

	handler.HandleSSEStream(writer, req)

	if got := broadcaster.ClientCount(); got != 0 {
		t.Errorf("no client should register without streaming support, count=%d", got)
	}
}
