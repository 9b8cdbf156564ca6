package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"atlas/internal/logging"
	"atlas/internal/maptools"
	serverHTTP "atlas/internal/server/http"
)

// newDemoCommand drives a scripted tool sequence against a live browser tab,
// useful for checking the bridge end to end without an agent attached.
func newDemoCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "demo",
		Short: "Start the bridge and walk through the map tools",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDemo(cmd.Context())
		},
	}
}

func runDemo(ctx context.Context) error {
	logger := logging.NewComponentLogger("Demo")
	cfg := loadConfig()

	bridge := buildBridge()
	service := maptools.NewService(bridge, nil)
	router := serverHTTP.NewRouter(bridge)

	listener, addr, err := bindWithRetry(cfg.Server, logger)
	if err != nil {
		return err
	}

	srv := &http.Server{Handler: router, WriteTimeout: 0}
	go func() {
		if err := srv.Serve(listener); err != nil && err != http.ErrServerClosed {
			logger.Error("Demo server error: %v", err)
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	fmt.Printf("Map server started. Open http://%s in your browser.\n", addr)
	fmt.Println("This demo will show various map features after you open the page.")
	if !sleepOrDone(ctx, 5*time.Second) {
		return nil
	}

	fmt.Println("\nSetting map view to San Francisco...")
	zoom := 12
	fmt.Println(service.SetMapView([]float64{37.7749, -122.4194}, &zoom, nil))
	if !sleepOrDone(ctx, 3*time.Second) {
		return nil
	}

	fmt.Println("\nAdding a marker at Coit Tower...")
	fmt.Println(service.AddMapMarker([]float64{37.8024, -122.4058}, "Coit Tower, San Francisco", "Coit Tower", false))
	if !sleepOrDone(ctx, 3*time.Second) {
		return nil
	}

	fmt.Println("\nAdding a polygon around Golden Gate Park...")
	goldenGatePark := [][]float64{
		{37.7694, -122.5110},
		{37.7694, -122.4566},
		{37.7646, -122.4566},
		{37.7646, -122.5110},
	}
	fillOpacity := 0.3
	fmt.Println(service.AddMapPolygon(goldenGatePark, "green", "", &fillOpacity, nil, false))
	if !sleepOrDone(ctx, 3*time.Second) {
		return nil
	}

	fmt.Println("\nCurrent map view:")
	fmt.Println(service.GetMapView())

	fmt.Println("\nDemo complete! Keep the browser window open to interact with the map.")
	fmt.Println("Press Ctrl+C to stop the server when you're done.")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	select {
	case <-quit:
	case <-ctx.Done():
	}
	fmt.Println("\nStopping server...")
	return nil
}

func sleepOrDone(ctx context.Context, d time.Duration) bool {
	select {
	case <-time.After(d):
		return true
	case <-ctx.Done():
		return false
	}
}
