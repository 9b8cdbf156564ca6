package maptools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"atlas/internal/logging"
	"atlas/internal/server/app"
	"atlas/internal/store/postgres"
)

// QueryStore is the database surface the query tools need. Nil when the
// process runs without a database connection.
type QueryStore interface {
	ExecuteQuery(ctx context.Context, query string, maxRows int) (*postgres.QueryResult, error)
	ListTables(ctx context.Context) ([]string, error)
	DescribeTable(ctx context.Context, table string) (*postgres.TableInfo, error)
}

// Service is the validated tool surface the agent runtime calls. Every method
// returns a human-readable status string; failures of any kind are reported in
// the string, never as a panic or process exit.
type Service struct {
	bridge *app.MapBridge
	store  QueryStore
	logger logging.Logger
}

// NewService builds the tool surface. store may be nil when no database is
// available; the map tools keep working without it.
func NewService(bridge *app.MapBridge, store QueryStore) *Service {
	return &Service{
		bridge: bridge,
		store:  store,
		logger: logging.NewComponentLogger("MapTools"),
	}
}

// SetMapView sets the map viewport from any combination of center, zoom, and
// bounds. At least one must be provided.
func (s *Service) SetMapView(center []float64, zoom *int, bounds [][]float64) string {
	if center != nil && len(center) != 2 {
		return "Error: center must be a [latitude, longitude] pair of numbers."
	}
	if zoom != nil && (*zoom < 0 || *zoom > 19) {
		return "Error: zoom must be an integer between 0 and 19."
	}
	if bounds != nil && (len(bounds) != 2 || len(bounds[0]) != 2 || len(bounds[1]) != 2) {
		return "Error: bounds must be [[south, west], [north, east]] coordinates."
	}
	if center == nil && zoom == nil && bounds == nil {
		return "Error: at least one of center, zoom, or bounds must be provided."
	}

	var centerPair *[2]float64
	if center != nil {
		pair := [2]float64{center[0], center[1]}
		centerPair = &pair
	}
	var boundsBox *[2][2]float64
	if bounds != nil {
		box := [2][2]float64{
			{bounds[0][0], bounds[0][1]},
			{bounds[1][0], bounds[1][1]},
		}
		boundsBox = &box
	}

	s.bridge.SetView(centerPair, zoom, boundsBox)

	var parts []string
	if boundsBox != nil {
		parts = append(parts, fmt.Sprintf("bounds=%v", *boundsBox))
	}
	if centerPair != nil {
		parts = append(parts, fmt.Sprintf("center=%v", *centerPair))
	}
	if zoom != nil {
		parts = append(parts, fmt.Sprintf("zoom=%d", *zoom))
	}
	return "Map view updated successfully: " + strings.Join(parts, ", ")
}

// SetMapTitle sets the title overlay at the bottom right of the map.
func (s *Service) SetMapTitle(title, color, fontSize, backgroundColor string) string {
	options := map[string]any{}
	if color != "" {
		options["color"] = color
	}
	if fontSize != "" {
		options["fontSize"] = fontSize
	}
	if backgroundColor != "" {
		options["backgroundColor"] = backgroundColor
	}

	s.bridge.SetTitle(title, options)

	styleInfo := ""
	if len(options) > 0 {
		var parts []string
		if color != "" {
			parts = append(parts, "color: "+color)
		}
		if fontSize != "" {
			parts = append(parts, "size: "+fontSize)
		}
		if backgroundColor != "" {
			parts = append(parts, "background: "+backgroundColor)
		}
		styleInfo = " with " + strings.Join(parts, ", ")
	}
	return fmt.Sprintf("Map title set to '%s'%s", title, styleInfo)
}

// AddMapMarker places a marker at the given coordinates.
func (s *Service) AddMapMarker(coordinates []float64, text, title string, openPopup bool) string {
	if len(coordinates) != 2 {
		return "Error: coordinates must be a [latitude, longitude] pair of numbers."
	}

	options := map[string]any{"openPopup": openPopup}
	if title != "" {
		options["title"] = title
	}

	s.bridge.ShowMarker([2]float64{coordinates[0], coordinates[1]}, text, options)

	var details []string
	if text != "" {
		details = append(details, fmt.Sprintf("text: '%s'", text))
	}
	if title != "" {
		details = append(details, fmt.Sprintf("title: '%s'", title))
	}
	detailsStr := ""
	if len(details) > 0 {
		detailsStr = " with " + strings.Join(details, ", ")
	}
	return fmt.Sprintf("Marker added at coordinates [%v, %v]%s", coordinates[0], coordinates[1], detailsStr)
}

// AddMapPolygon draws a polygon through the given ring of coordinates.
func (s *Service) AddMapPolygon(coordinates [][]float64, color, fillColor string, fillOpacity *float64, weight *int, fitBounds bool) string {
	if msg := validateCoordinateList(coordinates); msg != "" {
		return msg
	}
	if len(coordinates) < 3 {
		return "Error: a polygon requires at least 3 points."
	}

	options := map[string]any{"fitBounds": fitBounds}
	if color != "" {
		options["color"] = color
	}
	if fillColor != "" {
		options["fillColor"] = fillColor
	}
	if fillOpacity != nil {
		if *fillOpacity < 0 || *fillOpacity > 1 {
			return "Error: fill_opacity must be between 0.0 and 1.0."
		}
		options["fillOpacity"] = *fillOpacity
	}
	if weight != nil {
		if *weight < 0 {
			return "Error: weight must be a positive integer."
		}
		options["weight"] = *weight
	}

	s.bridge.ShowPolygon(toCoordinatePairs(coordinates), options)

	var parts []string
	if color != "" {
		parts = append(parts, "color: "+color)
	}
	if fillColor != "" {
		parts = append(parts, "fill: "+fillColor)
	}
	if fillOpacity != nil {
		parts = append(parts, fmt.Sprintf("opacity: %v", *fillOpacity))
	}
	if weight != nil {
		parts = append(parts, fmt.Sprintf("weight: %d", *weight))
	}
	styleInfo := ""
	if len(parts) > 0 {
		styleInfo = " with " + strings.Join(parts, ", ")
	}
	boundsInfo := ""
	if fitBounds {
		boundsInfo = " (map zoomed to fit)"
	}
	return fmt.Sprintf("Polygon added with %d points%s%s", len(coordinates), styleInfo, boundsInfo)
}

// AddMapLine draws a polyline through the given coordinates.
func (s *Service) AddMapLine(coordinates [][]float64, color string, weight *int, opacity *float64, dashArray string, fitBounds bool) string {
	if msg := validateCoordinateList(coordinates); msg != "" {
		return msg
	}
	if len(coordinates) < 2 {
		return "Error: a line requires at least 2 points."
	}

	options := map[string]any{"fitBounds": fitBounds}
	if color != "" {
		options["color"] = color
	}
	if weight != nil {
		if *weight < 0 {
			return "Error: weight must be a positive integer."
		}
		options["weight"] = *weight
	}
	if opacity != nil {
		if *opacity < 0 || *opacity > 1 {
			return "Error: opacity must be between 0.0 and 1.0."
		}
		options["opacity"] = *opacity
	}
	if dashArray != "" {
		options["dashArray"] = dashArray
	}

	s.bridge.ShowLine(toCoordinatePairs(coordinates), options)

	var parts []string
	if color != "" {
		parts = append(parts, "color: "+color)
	}
	if weight != nil {
		parts = append(parts, fmt.Sprintf("weight: %d", *weight))
	}
	if opacity != nil {
		parts = append(parts, fmt.Sprintf("opacity: %v", *opacity))
	}
	if dashArray != "" {
		parts = append(parts, "dash pattern: "+dashArray)
	}
	styleInfo := ""
	if len(parts) > 0 {
		styleInfo = " with " + strings.Join(parts, ", ")
	}
	boundsInfo := ""
	if fitBounds {
		boundsInfo = " (map zoomed to fit)"
	}
	return fmt.Sprintf("Line added with %d points%s%s", len(coordinates), styleInfo, boundsInfo)
}

// GetMapView returns the current viewport as indented JSON. The user can pan
// and zoom at will, so this is the only reliable way to learn where the map
// is right now.
func (s *Service) GetMapView() string {
	view := s.bridge.CurrentView()
	payload, err := json.MarshalIndent(view, "", "  ")
	if err != nil {
		return fmt.Sprintf("Error reading map view: %v", err)
	}
	return string(payload)
}

// CaptureScreenshot asks the map page for a screenshot of the current view
// and returns the base64 image payload.
func (s *Service) CaptureScreenshot(ctx context.Context) string {
	image, err := s.bridge.CaptureScreenshot(ctx)
	if err != nil {
		return "Screenshot is not available. Make sure a map browser tab is open."
	}
	return image
}

// Geolocate searches for a place name through the map page and returns the
// raw results JSON.
func (s *Service) Geolocate(ctx context.Context, query string) string {
	if strings.TrimSpace(query) == "" {
		return "Error: query must not be empty."
	}
	results, err := s.bridge.Geolocate(ctx, query)
	if err != nil {
		return fmt.Sprintf("Geolocate request for '%s' timed out.", query)
	}
	return string(results)
}

func validateCoordinateList(coordinates [][]float64) string {
	if len(coordinates) == 0 {
		return "Error: coordinates must be a list of [latitude, longitude] points."
	}
	for _, point := range coordinates {
		if len(point) != 2 {
			return "Error: coordinates must be a list of [latitude, longitude] points."
		}
	}
	return ""
}

func toCoordinatePairs(coordinates [][]float64) [][2]float64 {
	pairs := make([][2]float64, len(coordinates))
	for i, point := range coordinates {
		pairs[i] = [2]float64{point[0], point[1]}
	}
	return pairs
}
