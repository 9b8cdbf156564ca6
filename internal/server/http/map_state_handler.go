package http

import (
	"encoding/json"
	"net/http"

	"atlas/internal/logging"
	"atlas/internal/server/app"
)

// MapStateHandler accepts the asynchronous reports the map page posts back:
// viewport changes, captured screenshots, and geolocate results.
type MapStateHandler struct {
	viewState *app.ViewState
	pending   *app.PendingRequests
	logger    logging.Logger
}

// NewMapStateHandler creates a new inbound report handler
func NewMapStateHandler(viewState *app.ViewState, pending *app.PendingRequests) *MapStateHandler {
	return &MapStateHandler{
		viewState: viewState,
		pending:   pending,
		logger:    logging.NewComponentLogger("MapStateHandler"),
	}
}

// HandleViewChanged merges whichever viewport fields the report carries into
// the shared view state. Partial payloads are the normal case, never an error.
func (h *MapStateHandler) HandleViewChanged(w http.ResponseWriter, r *http.Request) {
	var update app.ViewUpdate
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		// The original accepted empty bodies as a no-op; keep that behavior
		// for anything that fails to parse as a view update.
		h.logger.Warn("Ignoring malformed view-changed report: %v", err)
		writeStatusSuccess(w)
		return
	}

	h.viewState.Apply(update)
	writeStatusSuccess(w)
}

type screenshotReport struct {
	Image string `json:"image"`
}

// HandleScreenshot resolves the pending capture with the posted image.
func (h *MapStateHandler) HandleScreenshot(w http.ResponseWriter, r *http.Request) {
	var report screenshotReport
	if err := json.NewDecoder(r.Body).Decode(&report); err != nil || report.Image == "" {
		writeStatusError(w, http.StatusBadRequest, "No image data provided")
		return
	}

	h.pending.ResolveScreenshot(report.Image)
	writeStatusSuccess(w)
}

type geolocateReport struct {
	RequestID string          `json:"requestId"`
	Results   json.RawMessage `json:"results"`
}

// HandleGeolocateResponse resolves the pending geolocate wait matching the
// reported request id.
func (h *MapStateHandler) HandleGeolocateResponse(w http.ResponseWriter, r *http.Request) {
	var report geolocateReport
	if err := json.NewDecoder(r.Body).Decode(&report); err != nil || report.RequestID == "" || report.Results == nil {
		writeStatusError(w, http.StatusBadRequest, "Invalid geolocate response data")
		return
	}

	if h.pending.ResolveGeolocate(report.RequestID, report.Results) {
		h.logger.Info("Received geolocate response for request %s", report.RequestID)
	}
	writeStatusSuccess(w)
}

func writeStatusSuccess(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "success"})
}

func writeStatusError(w http.ResponseWriter, code int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"status":  "error",
		"message": message,
	})
}
