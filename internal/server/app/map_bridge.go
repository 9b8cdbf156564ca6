package app

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"atlas/internal/logging"
)

// ErrTimeout is returned when a round-trip command got no browser response
// within its deadline. Callers must treat it as a normal, if unsuccessful,
// outcome.
var ErrTimeout = errors.New("no response from map client before deadline")

const (
	defaultScreenshotTimeout = 5 * time.Second
	defaultGeolocateTimeout  = 10 * time.Second
)

// MapBridge is the outward-facing command API over the broadcaster. The agent
// tool layer validates its arguments and calls these methods; the browser
// reports back through the inbound handlers, which mutate the view state or
// resolve a pending request a caller here is blocked on.
type MapBridge struct {
	broadcaster *MapBroadcaster
	viewState   *ViewState
	pending     *PendingRequests
	logger      logging.Logger

	screenshotTimeout time.Duration
	geolocateTimeout  time.Duration
}

// MapBridgeOption mutates the bridge during construction.
type MapBridgeOption func(*MapBridge)

// WithScreenshotTimeout overrides the screenshot round-trip deadline.
func WithScreenshotTimeout(d time.Duration) MapBridgeOption {
	return func(b *MapBridge) {
		b.screenshotTimeout = d
	}
}

// WithGeolocateTimeout overrides the geolocate round-trip deadline.
func WithGeolocateTimeout(d time.Duration) MapBridgeOption {
	return func(b *MapBridge) {
		b.geolocateTimeout = d
	}
}

// NewMapBridge wires the broadcaster, view state, and correlation table into
// the command API.
func NewMapBridge(broadcaster *MapBroadcaster, viewState *ViewState, pending *PendingRequests, opts ...MapBridgeOption) *MapBridge {
	b := &MapBridge{
		broadcaster:       broadcaster,
		viewState:         viewState,
		pending:           pending,
		logger:            logging.NewComponentLogger("MapBridge"),
		screenshotTimeout: defaultScreenshotTimeout,
		geolocateTimeout:  defaultGeolocateTimeout,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(b)
		}
	}
	return b
}

// Broadcaster exposes the underlying registry for the transport endpoint.
func (b *MapBridge) Broadcaster() *MapBroadcaster {
	return b.broadcaster
}

// ViewState exposes the shared viewport for the inbound sink.
func (b *MapBridge) ViewState() *ViewState {
	return b.viewState
}

// Pending exposes the correlation table for the inbound sink.
func (b *MapBridge) Pending() *PendingRequests {
	return b.pending
}

// SetView pushes a viewport change built from only the provided fields.
func (b *MapBridge) SetView(center *[2]float64, zoom *int, bounds *[2][2]float64) {
	data := map[string]any{}
	if bounds != nil {
		data["bounds"] = *bounds
	}
	if center != nil {
		data["center"] = *center
	}
	if zoom != nil {
		data["zoom"] = *zoom
	}
	b.broadcaster.Broadcast(Command{Type: CommandSetView, Data: data})
}

// ShowMarker displays a marker at the given coordinates.
func (b *MapBridge) ShowMarker(coordinates [2]float64, text string, options map[string]any) {
	if options == nil {
		options = map[string]any{}
	}
	b.broadcaster.Broadcast(Command{Type: CommandShowMarker, Data: map[string]any{
		"coordinates": coordinates,
		"text":        text,
		"options":     options,
	}})
}

// ShowPolygon displays a polygon defined by the given ring of coordinates.
func (b *MapBridge) ShowPolygon(coordinates [][2]float64, options map[string]any) {
	if options == nil {
		options = map[string]any{}
	}
	b.broadcaster.Broadcast(Command{Type: CommandShowPolygon, Data: map[string]any{
		"coordinates": coordinates,
		"options":     options,
	}})
}

// ShowLine displays a polyline along the given coordinates.
func (b *MapBridge) ShowLine(coordinates [][2]float64, options map[string]any) {
	if options == nil {
		options = map[string]any{}
	}
	b.broadcaster.Broadcast(Command{Type: CommandShowLine, Data: map[string]any{
		"coordinates": coordinates,
		"options":     options,
	}})
}

// SetTitle sets the title overlay shown at the bottom right of the map.
func (b *MapBridge) SetTitle(title string, options map[string]any) {
	if options == nil {
		options = map[string]any{}
	}
	b.broadcaster.Broadcast(Command{Type: CommandSetTitle, Data: map[string]any{
		"title":   title,
		"options": options,
	}})
}

// CurrentView returns a snapshot of the viewport as last reported.
func (b *MapBridge) CurrentView() View {
	return b.viewState.Current()
}

// CaptureScreenshot asks the browser for a screenshot and blocks until the
// image arrives or the deadline passes. The wait is registered before the
// command goes out so the response cannot race the registration.
func (b *MapBridge) CaptureScreenshot(ctx context.Context) (string, error) {
	wait, cancel := b.pending.AwaitScreenshot()
	defer cancel()

	b.broadcaster.Broadcast(Command{Type: CommandCaptureScreenshot, Data: map[string]any{}})

	timer := time.NewTimer(b.screenshotTimeout)
	defer timer.Stop()

	select {
	case image := <-wait:
		return image, nil
	case <-timer.C:
		b.logger.Warn("Screenshot capture timed out")
		return "", ErrTimeout
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// Geolocate sends a place-name lookup to the browser and blocks until the
// matching response arrives or the deadline passes.
func (b *MapBridge) Geolocate(ctx context.Context, query string) (json.RawMessage, error) {
	requestID := newRequestID()
	wait, cancel := b.pending.AwaitGeolocate(requestID)
	defer cancel()

	b.broadcaster.Broadcast(Command{Type: CommandGeolocate, Data: map[string]any{
		"requestId": requestID,
		"query":     query,
	}})

	timer := time.NewTimer(b.geolocateTimeout)
	defer timer.Stop()

	select {
	case results := <-wait:
		return results, nil
	case <-timer.C:
		b.logger.Warn("Geolocate request for '%s' timed out", query)
		return nil, ErrTimeout
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// newRequestID produces a correlation token. Time-based, not guaranteed
// globally unique, but unique enough for the low request rates involved.
func newRequestID() string {
	return strconv.FormatInt(time.Now().UnixMilli(), 10)
}
