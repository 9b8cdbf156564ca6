package app

import "sync"

// View is a snapshot of the map viewport.
type View struct {
	Center [2]float64     `json:"center"`
	Zoom   int            `json:"zoom"`
	Bounds *[2][2]float64 `json:"bounds"`
}

// ViewUpdate carries the fields of an inbound view-changed report. Nil fields
// were absent from the report and leave the stored value untouched.
type ViewUpdate struct {
	Center *[2]float64    `json:"center"`
	Zoom   *int           `json:"zoom"`
	Bounds *[2][2]float64 `json:"bounds"`
}

// ViewState holds the single current map viewport. The browser reports
// whichever fields changed; readers get a copy of whatever was last stored.
type ViewState struct {
	mu   sync.RWMutex
	view View
}

// NewViewState returns view state initialized to the whole-world default the
// map page starts from.
func NewViewState() *ViewState {
	world := [2][2]float64{{-85, -180}, {85, 180}}
	return &ViewState{
		view: View{
			Center: [2]float64{0, 0},
			Zoom:   2,
			Bounds: &world,
		},
	}
}

// Apply merges the provided fields over the stored view. Absent fields are
// retained unchanged; this is a partial update, not a replace.
func (s *ViewState) Apply(update ViewUpdate) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if update.Center != nil {
		s.view.Center = *update.Center
	}
	if update.Zoom != nil {
		s.view.Zoom = *update.Zoom
	}
	if update.Bounds != nil {
		bounds := *update.Bounds
		s.view.Bounds = &bounds
	}
}

// Current returns a snapshot of the viewport by value.
func (s *ViewState) Current() View {
	s.mu.RLock()
	defer s.mu.RUnlock()

	view := s.view
	if s.view.Bounds != nil {
		bounds := *s.view.Bounds
		view.Bounds = &bounds
	}
	return view
}
