package app

import (
	"encoding/json"
	"testing"
)

func TestGeolocateResolveDeliversToWaiter(t *testing.T) {
	p := NewPendingRequests()
	wait, cancel := p.AwaitGeolocate("req-1")
	defer cancel()

	results := json.RawMessage(`[{"display_name":"Paris, France"}]`)
	if !p.ResolveGeolocate("req-1", results) {
		t.Fatal("expected resolve to find the waiter")
	}

	select {
	case got := <-wait:
		if string(got) != string(results) {
			t.Errorf("expected %s, got %s", results, got)
		}
	default:
		t.Fatal("result was not delivered")
	}
}

func TestGeolocateUnmatchedResultIsDiscarded(t *testing.T) {
	p := NewPendingRequests()

	if p.ResolveGeolocate("nobody-waiting", json.RawMessage(`[]`)) {
		t.Error("resolve should report no waiter for an unknown request id")
	}
}

func TestGeolocateLateResultAfterCancelIsDiscarded(t *testing.T) {
	p := NewPendingRequests()
	_, cancel := p.AwaitGeolocate("req-2")
	cancel() // caller timed out

	if p.ResolveGeolocate("req-2", json.RawMessage(`[]`)) {
		t.Error("a result arriving after the waiter gave up must be dropped")
	}
}

func TestGeolocateWaitsAreIndependent(t *testing.T) {
	p := NewPendingRequests()
	waitA, cancelA := p.AwaitGeolocate("req-a")
	waitB, cancelB := p.AwaitGeolocate("req-b")
	defer cancelA()
	defer cancelB()

	p.ResolveGeolocate("req-b", json.RawMessage(`["b"]`))

	select {
	case <-waitA:
		t.Error("request a must not receive request b's results")
	default:
	}
	select {
	case got := <-waitB:
		if string(got) != `["b"]` {
			t.Errorf("unexpected results %s", got)
		}
	default:
		t.Fatal("request b's waiter was not resolved")
	}
}

func TestScreenshotResolveDeliversToWaiter(t *testing.T) {
	p := NewPendingRequests()
	wait, cancel := p.AwaitScreenshot()
	defer cancel()

	if !p.ResolveScreenshot("base64-image") {
		t.Fatal("expected resolve to find the waiter")
	}
	select {
	case got := <-wait:
		if got != "base64-image" {
			t.Errorf("expected image payload, got %q", got)
		}
	default:
		t.Fatal("image was not delivered")
	}
}

func TestScreenshotWithoutWaiterIsDiscarded(t *testing.T) {
	p := NewPendingRequests()

	if p.ResolveScreenshot("orphan") {
		t.Error("an image with no capture pending must be dropped")
	}

	// A later capture must not spuriously pick up the orphaned image.
	wait, cancel := p.AwaitScreenshot()
	defer cancel()
	select {
	case got := <-wait:
		t.Errorf("unexpected stale image %q", got)
	default:
	}
}

func TestScreenshotNewCaptureDisplacesPrevious(t *testing.T) {
	p := NewPendingRequests()
	oldWait, oldCancel := p.AwaitScreenshot()
	defer oldCancel()
	newWait, newCancel := p.AwaitScreenshot()
	defer newCancel()

	p.ResolveScreenshot("image")

	select {
	case <-oldWait:
		t.Error("displaced waiter must not receive the image")
	default:
	}
	select {
	case got := <-newWait:
		if got != "image" {
			t.Errorf("expected image, got %q", got)
		}
	default:
		t.Fatal("current waiter was not resolved")
	}
}
