package maptools

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
)

// Handler executes one named tool with JSON-encoded arguments and returns the
// status text shown to the agent.
type Handler func(ctx context.Context, args json.RawMessage) string

// Definition describes one callable tool for the agent runtime.
type Definition struct {
	Name        string
	Description string
	Handler     Handler
}

// Registry maps tool names to definitions so the external agent layer can
// enumerate and invoke them.
type Registry struct {
	tools map[string]Definition
	mu    sync.RWMutex
}

// NewRegistry builds the registry with every tool the service exposes.
func NewRegistry(service *Service) *Registry {
	r := &Registry{tools: make(map[string]Definition)}
	for _, def := range service.definitions() {
		r.Register(def)
	}
	return r
}

// Register adds or replaces a tool definition.
func (r *Registry) Register(def Definition) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[def.Name] = def
}

// Get returns the named tool definition.
func (r *Registry) Get(name string) (Definition, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	def, ok := r.tools[name]
	return def, ok
}

// List returns all definitions sorted by name.
func (r *Registry) List() []Definition {
	r.mu.RLock()
	defer r.mu.RUnlock()

	defs := make([]Definition, 0, len(r.tools))
	for _, def := range r.tools {
		defs = append(defs, def)
	}
	sort.Slice(defs, func(i, j int) bool { return defs[i].Name < defs[j].Name })
	return defs
}

// Invoke runs the named tool. Unknown names are reported as status text like
// every other tool failure.
func (r *Registry) Invoke(ctx context.Context, name string, args json.RawMessage) string {
	def, ok := r.Get(name)
	if !ok {
		return fmt.Sprintf("Error: unknown tool '%s'", name)
	}
	return def.Handler(ctx, args)
}

type setViewArgs struct {
	Center []float64   `json:"center"`
	Zoom   *int        `json:"zoom"`
	Bounds [][]float64 `json:"bounds"`
}

type setTitleArgs struct {
	Title           string `json:"title"`
	Color           string `json:"color"`
	FontSize        string `json:"font_size"`
	BackgroundColor string `json:"background_color"`
}

type markerArgs struct {
	Coordinates []float64 `json:"coordinates"`
	Text        string    `json:"text"`
	Title       string    `json:"title"`
	OpenPopup   bool      `json:"open_popup"`
}

type polygonArgs struct {
	Coordinates [][]float64 `json:"coordinates"`
	Color       string      `json:"color"`
	FillColor   string      `json:"fill_color"`
	FillOpacity *float64    `json:"fill_opacity"`
	Weight      *int        `json:"weight"`
	FitBounds   bool        `json:"fit_bounds"`
}

type lineArgs struct {
	Coordinates [][]float64 `json:"coordinates"`
	Color       string      `json:"color"`
	Weight      *int        `json:"weight"`
	Opacity     *float64    `json:"opacity"`
	DashArray   string      `json:"dash_array"`
	FitBounds   bool        `json:"fit_bounds"`
}

type queryArgs struct {
	Query string `json:"query"`
}

type tableArgs struct {
	Table string `json:"table"`
}

type geolocateArgs struct {
	Query string `json:"query"`
}

func (s *Service) definitions() []Definition {
	return []Definition{
		{
			Name:        "query",
			Description: "Execute a read-only SQL query against the OSM PostGIS database.",
			Handler: func(ctx context.Context, raw json.RawMessage) string {
				var args queryArgs
				if msg := decodeArgs(raw, &args); msg != "" {
					return msg
				}
				return s.Query(ctx, args.Query)
			},
		},
		{
			Name:        "list_tables",
			Description: "List the public tables of the OSM database.",
			Handler: func(ctx context.Context, raw json.RawMessage) string {
				return s.ListTables(ctx)
			},
		},
		{
			Name:        "describe_table",
			Description: "Show columns, indexes, and approximate row count of a table.",
			Handler: func(ctx context.Context, raw json.RawMessage) string {
				var args tableArgs
				if msg := decodeArgs(raw, &args); msg != "" {
					return msg
				}
				return s.DescribeTable(ctx, args.Table)
			},
		},
		{
			Name:        "set_map_view",
			Description: "Set the map view to a center/zoom or bounding box.",
			Handler: func(ctx context.Context, raw json.RawMessage) string {
				var args setViewArgs
				if msg := decodeArgs(raw, &args); msg != "" {
					return msg
				}
				return s.SetMapView(args.Center, args.Zoom, args.Bounds)
			},
		},
		{
			Name:        "set_map_title",
			Description: "Set the title displayed at the bottom right of the map.",
			Handler: func(ctx context.Context, raw json.RawMessage) string {
				var args setTitleArgs
				if msg := decodeArgs(raw, &args); msg != "" {
					return msg
				}
				return s.SetMapTitle(args.Title, args.Color, args.FontSize, args.BackgroundColor)
			},
		},
		{
			Name:        "add_map_marker",
			Description: "Add a marker to the map at the given coordinates.",
			Handler: func(ctx context.Context, raw json.RawMessage) string {
				var args markerArgs
				if msg := decodeArgs(raw, &args); msg != "" {
					return msg
				}
				return s.AddMapMarker(args.Coordinates, args.Text, args.Title, args.OpenPopup)
			},
		},
		{
			Name:        "add_map_polygon",
			Description: "Add a polygon to the map.",
			Handler: func(ctx context.Context, raw json.RawMessage) string {
				var args polygonArgs
				if msg := decodeArgs(raw, &args); msg != "" {
					return msg
				}
				return s.AddMapPolygon(args.Coordinates, args.Color, args.FillColor, args.FillOpacity, args.Weight, args.FitBounds)
			},
		},
		{
			Name:        "add_map_line",
			Description: "Add a line (polyline) to the map.",
			Handler: func(ctx context.Context, raw json.RawMessage) string {
				var args lineArgs
				if msg := decodeArgs(raw, &args); msg != "" {
					return msg
				}
				return s.AddMapLine(args.Coordinates, args.Color, args.Weight, args.Opacity, args.DashArray, args.FitBounds)
			},
		},
		{
			Name:        "get_map_view",
			Description: "Get the current map center, zoom, and bounds.",
			Handler: func(ctx context.Context, raw json.RawMessage) string {
				return s.GetMapView()
			},
		},
		{
			Name:        "capture_screenshot",
			Description: "Capture a screenshot of the current map view.",
			Handler: func(ctx context.Context, raw json.RawMessage) string {
				return s.CaptureScreenshot(ctx)
			},
		},
		{
			Name:        "geolocate",
			Description: "Look up a place name and return candidate locations.",
			Handler: func(ctx context.Context, raw json.RawMessage) string {
				var args geolocateArgs
				if msg := decodeArgs(raw, &args); msg != "" {
					return msg
				}
				return s.Geolocate(ctx, args.Query)
			},
		},
	}
}

func decodeArgs(raw json.RawMessage, target any) string {
	if len(raw) == 0 {
		return ""
	}
	if err := json.Unmarshal(raw, target); err != nil {
		return fmt.Sprintf("Error: invalid tool arguments: %v", err)
	}
	return ""
}
