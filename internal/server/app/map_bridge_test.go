package app

import (
	"context"
	"encoding/json"
	"testing"
	"time"
)

func newTestBridge(opts ...MapBridgeOption) *MapBridge {
	return NewMapBridge(NewMapBroadcaster(), NewViewState(), NewPendingRequests(), opts...)
}

func TestSetViewBuildsDataFromProvidedFieldsOnly(t *testing.T) {
	bridge := newTestBridge()
	ch := bridge.Broadcaster().Register(1)
	defer bridge.Broadcaster().Unregister(1, ch)

	zoom := 12
	bridge.SetView(nil, &zoom, nil)

	cmd := <-ch
	if cmd.Type != CommandSetView {
		t.Fatalf("expected %s, got %s", CommandSetView, cmd.Type)
	}
	if _, ok := cmd.Data["zoom"]; !ok {
		t.Error("zoom should be present")
	}
	if _, ok := cmd.Data["center"]; ok {
		t.Error("center was not provided and must be absent")
	}
	if _, ok := cmd.Data["bounds"]; ok {
		t.Error("bounds were not provided and must be absent")
	}
}

func TestGeolocateRoundTripCorrelation(t *testing.T) {
	bridge := newTestBridge(WithGeolocateTimeout(2 * time.Second))
	ch := bridge.Broadcaster().Register(1)
	defer bridge.Broadcaster().Unregister(1, ch)

	type outcome struct {
		results json.RawMessage
		err     error
	}
	done := make(chan outcome, 1)
	go func() {
		results, err := bridge.Geolocate(context.Background(), "Paris")
		done <- outcome{results, err}
	}()

	var cmd Command
	select {
	case cmd = <-ch:
	case <-time.After(time.Second):
		t.Fatal("GEOLOCATE command was never broadcast")
	}
	if cmd.Type != CommandGeolocate {
		t.Fatalf("expected %s, got %s", CommandGeolocate, cmd.Type)
	}
	if cmd.Data["query"] != "Paris" {
		t.Errorf("expected query Paris, got %v", cmd.Data["query"])
	}

	requestID, ok := cmd.Data["requestId"].(string)
	if !ok || requestID == "" {
		t.Fatalf("command carries no request id: %v", cmd.Data)
	}

	posted := json.RawMessage(`[{"display_name":"Paris, France","lat":"48.85","lon":"2.35"}]`)
	if !bridge.Pending().ResolveGeolocate(requestID, posted) {
		t.Fatal("inbound results did not match the pending request id")
	}

	select {
	case got := <-done:
		if got.err != nil {
			t.Fatalf("geolocate returned error: %v", got.err)
		}
		if string(got.results) != string(posted) {
			t.Errorf("expected %s, got %s", posted, got.results)
		}
	case <-time.After(time.Second):
		t.Fatal("geolocate call never returned")
	}
}

func TestGeolocateTimesOutWithoutResponse(t *testing.T) {
	bridge := newTestBridge(WithGeolocateTimeout(150 * time.Millisecond))

	start := time.Now()
	_, err := bridge.Geolocate(context.Background(), "Nowhere")
	elapsed := time.Since(start)

	if err != ErrTimeout {
		t.Fatalf("expected ErrTimeout, got %v", err)
	}
	if elapsed < 150*time.Millisecond {
		t.Errorf("returned before the deadline: %s", elapsed)
	}
	if elapsed > 650*time.Millisecond {
		t.Errorf("took far longer than the deadline: %s", elapsed)
	}
}

func TestCaptureScreenshotRoundTrip(t *testing.T) {
	bridge := newTestBridge(WithScreenshotTimeout(2 * time.Second))
	ch := bridge.Broadcaster().Register(1)
	defer bridge.Broadcaster().Unregister(1, ch)

	done := make(chan string, 1)
	go func() {
		image, err := bridge.CaptureScreenshot(context.Background())
		if err != nil {
			done <- "error: " + err.Error()
			return
		}
		done <- image
	}()

	select {
	case cmd := <-ch:
		if cmd.Type != CommandCaptureScreenshot {
			t.Fatalf("expected %s, got %s", CommandCaptureScreenshot, cmd.Type)
		}
	case <-time.After(time.Second):
		t.Fatal("CAPTURE_SCREENSHOT was never broadcast")
	}

	bridge.Pending().ResolveScreenshot("data:image/png;base64,AAAA")

	select {
	case got := <-done:
		if got != "data:image/png;base64,AAAA" {
			t.Errorf("unexpected result %q", got)
		}
	case <-time.After(time.Second):
		t.Fatal("capture call never returned")
	}
}

func TestCaptureScreenshotTimesOut(t *testing.T) {
	bridge := newTestBridge(WithScreenshotTimeout(150 * time.Millisecond))

	start := time.Now()
	_, err := bridge.CaptureScreenshot(context.Background())
	elapsed := time.Since(start)

	if err != ErrTimeout {
		t.Fatalf("expected ErrTimeout, got %v", err)
	}
	if elapsed < 150*time.Millisecond {
		t.Errorf("returned before the deadline: %s", elapsed)
	}
}

func TestCaptureScreenshotHonorsContextCancel(t *testing.T) {
	bridge := newTestBridge(WithScreenshotTimeout(5 * time.Second))

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	_, err := bridge.CaptureScreenshot(ctx)
	if err != context.Canceled {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestLateGeolocateResultDoesNotLeakToNextCall(t *testing.T) {
	bridge := newTestBridge(WithGeolocateTimeout(100 * time.Millisecond))
	ch := bridge.Broadcaster().Register(1)
	defer bridge.Broadcaster().Unregister(1, ch)

	_, err := bridge.Geolocate(context.Background(), "first")
	if err != ErrTimeout {
		t.Fatalf("expected first call to time out, got %v", err)
	}
	first := <-ch

	// The response to the first request arrives after its caller gave up.
	firstID := first.Data["requestId"].(string)
	if bridge.Pending().ResolveGeolocate(firstID, json.RawMessage(`["stale"]`)) {
		t.Fatal("stale result should have been discarded")
	}

	// A second call must time out rather than pick up the stale result.
	_, err = bridge.Geolocate(context.Background(), "second")
	if err != ErrTimeout {
		t.Fatalf("expected second call to time out, got %v", err)
	}
}
