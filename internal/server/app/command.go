package app

// CommandType identifies an outbound instruction to the map page.
type CommandType string

const (
	CommandShowPolygon       CommandType = "SHOW_POLYGON"
	CommandShowMarker        CommandType = "SHOW_MARKER"
	CommandShowLine          CommandType = "SHOW_LINE"
	CommandSetView           CommandType = "SET_VIEW"
	CommandSetTitle          CommandType = "SET_TITLE"
	CommandCaptureScreenshot CommandType = "CAPTURE_SCREENSHOT"
	CommandGeolocate         CommandType = "GEOLOCATE"
)

// Command is the envelope broadcast verbatim to every connected map client.
// Commands are immutable once constructed; there is no per-client targeting.
type Command struct {
	Type CommandType    `json:"type"`
	Data map[string]any `json:"data"`
}
