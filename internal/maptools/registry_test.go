package maptools

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"atlas/internal/server/app"
)

func TestNewRegistryExposesAllTools(t *testing.T) {
	svc, _ := newTestService(t, nil)
	registry := NewRegistry(svc)

	want := []string{
		"add_map_line", "add_map_marker", "add_map_polygon", "capture_screenshot",
		"describe_table", "geolocate", "get_map_view", "list_tables",
		"query", "set_map_title", "set_map_view",
	}
	defs := registry.List()
	require.Len(t, defs, len(want))
	for i, def := range defs {
		assert.Equal(t, want[i], def.Name)
		assert.NotEmpty(t, def.Description)
	}
}

func TestInvokeUnknownTool(t *testing.T) {
	svc, _ := newTestService(t, nil)
	registry := NewRegistry(svc)

	result := registry.Invoke(context.Background(), "explode", nil)
	assert.Equal(t, "Error: unknown tool 'explode'", result)
}

func TestInvokeDecodesArguments(t *testing.T) {
	svc, commands := newTestService(t, nil)
	registry := NewRegistry(svc)

	result := registry.Invoke(context.Background(), "add_map_marker",
		json.RawMessage(`{"coordinates":[48.8584,2.2945],"text":"Eiffel Tower","open_popup":true}`))
	assert.Contains(t, result, "Marker added at coordinates [48.8584, 2.2945]")

	cmd := receiveCommand(t, commands)
	assert.Equal(t, app.CommandShowMarker, cmd.Type)
}

func TestInvokeReportsMalformedArguments(t *testing.T) {
	svc, commands := newTestService(t, nil)
	registry := NewRegistry(svc)

	result := registry.Invoke(context.Background(), "set_map_view", json.RawMessage(`{"zoom": "twelve"}`))
	assert.Contains(t, result, "Error: invalid tool arguments")
	assertNoBroadcast(t, commands)
}

func TestInvokeWithEmptyArguments(t *testing.T) {
	svc, _ := newTestService(t, nil)
	registry := NewRegistry(svc)

	result := registry.Invoke(context.Background(), "get_map_view", nil)
	assert.Contains(t, result, `"zoom": 2`)
}
