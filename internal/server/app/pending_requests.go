package app

import (
	"encoding/json"
	"sync"

	"atlas/internal/logging"
)

// PendingRequests correlates outbound round-trip commands (screenshot capture,
// geolocate) with the inbound reports that resolve them. Each pending request
// owns a one-shot result channel the sink resolves directly; results arriving
// after their waiter gave up are discarded rather than cached for an unrelated
// later call.
type PendingRequests struct {
	mu sync.Mutex

	// Geolocate waits keyed by request id
	geolocate map[string]chan json.RawMessage

	// At most one screenshot capture is in flight; the wire contract carries
	// no request id on the inbound screenshot report.
	screenshot chan string

	logger logging.Logger
}

// NewPendingRequests creates an empty correlation table.
func NewPendingRequests() *PendingRequests {
	return &PendingRequests{
		geolocate: make(map[string]chan json.RawMessage),
		logger:    logging.NewComponentLogger("PendingRequests"),
	}
}

// AwaitGeolocate registers a wait for the given request id and returns the
// channel the matching inbound report will resolve. Callers must invoke cancel
// once they stop waiting so a late result is dropped instead of leaking.
func (p *PendingRequests) AwaitGeolocate(requestID string) (<-chan json.RawMessage, func()) {
	ch := make(chan json.RawMessage, 1)

	p.mu.Lock()
	p.geolocate[requestID] = ch
	p.mu.Unlock()

	cancel := func() {
		p.mu.Lock()
		delete(p.geolocate, requestID)
		p.mu.Unlock()
	}
	return ch, cancel
}

// ResolveGeolocate delivers results to the waiter for requestID. It reports
// whether a waiter was found; unmatched results are discarded.
func (p *PendingRequests) ResolveGeolocate(requestID string, results json.RawMessage) bool {
	p.mu.Lock()
	ch, ok := p.geolocate[requestID]
	if ok {
		delete(p.geolocate, requestID)
	}
	p.mu.Unlock()

	if !ok {
		p.logger.Warn("Discarding geolocate results for unknown request %s", requestID)
		return false
	}
	ch <- results
	return true
}

// AwaitScreenshot registers the single screenshot wait. A capture already in
// flight is displaced: its waiter will time out and the new wait takes the
// next inbound image.
func (p *PendingRequests) AwaitScreenshot() (<-chan string, func()) {
	ch := make(chan string, 1)

	p.mu.Lock()
	if p.screenshot != nil {
		p.logger.Warn("Screenshot capture already pending, displacing previous waiter")
	}
	p.screenshot = ch
	p.mu.Unlock()

	cancel := func() {
		p.mu.Lock()
		if p.screenshot == ch {
			p.screenshot = nil
		}
		p.mu.Unlock()
	}
	return ch, cancel
}

// ResolveScreenshot delivers a captured image to the pending waiter, if any.
// Images arriving with nobody waiting are dropped.
func (p *PendingRequests) ResolveScreenshot(image string) bool {
	p.mu.Lock()
	ch := p.screenshot
	p.screenshot = nil
	p.mu.Unlock()

	if ch == nil {
		p.logger.Warn("Discarding screenshot: no capture pending")
		return false
	}
	ch <- image
	return true
}
