package http

import (
	"net/http"

	"atlas/internal/logging"
	"atlas/internal/server/app"
)

// NewRouter creates the HTTP surface of the map bridge: the page and its
// assets, the event stream, and the three inbound report endpoints.
func NewRouter(bridge *app.MapBridge) http.Handler {
	logger := logging.NewComponentLogger("Router")

	sseHandler := NewSSEHandler(bridge.Broadcaster())
	stateHandler := NewMapStateHandler(bridge.ViewState(), bridge.Pending())

	mux := http.NewServeMux()

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		serveIndex(w, r)
	})
	mux.Handle("/static/", http.StripPrefix("/static/", staticHandler()))

	mux.Handle("/api/sse", requireMethod(http.MethodGet, http.HandlerFunc(sseHandler.HandleSSEStream)))
	mux.Handle("/api/viewChanged", requireMethod(http.MethodPost, http.HandlerFunc(stateHandler.HandleViewChanged)))
	mux.Handle("/api/screenshot", requireMethod(http.MethodPost, http.HandlerFunc(stateHandler.HandleScreenshot)))
	mux.Handle("/api/geolocateResponse", requireMethod(http.MethodPost, http.HandlerFunc(stateHandler.HandleGeolocateResponse)))

	var handler http.Handler = mux
	handler = CORSMiddleware()(handler)
	handler = LoggingMiddleware(logger)(handler)
	return handler
}

func requireMethod(method string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != method {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		next.ServeHTTP(w, r)
	})
}
