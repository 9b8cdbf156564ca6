package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"atlas/internal/config"
	"atlas/internal/logging"
	"atlas/internal/maptools"
	"atlas/internal/server/app"
	serverHTTP "atlas/internal/server/http"
	"atlas/internal/store/postgres"
)

// maxBindAttempts is how many consecutive ports are tried when the configured
// one is taken, matching the behavior browsers already expect from the bridge.
const maxBindAttempts = 10

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "atlas-server",
		Short: "Map bridge between a tool-calling agent and a browser map view",
		Long: `atlas-server runs the HTTP bridge that connects agent map tools to a
browser tab rendering the map, and exposes read-only query tools over an
OSM PostGIS database.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context())
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.String("host", "", "listen host for the map bridge")
	flags.Int("port", 0, "listen port for the map bridge")
	flags.String("pg-host", "", "PostgreSQL host")
	flags.Int("pg-port", 0, "PostgreSQL port")
	flags.String("pg-db", "", "PostgreSQL database name")
	flags.String("pg-user", "", "PostgreSQL user")
	flags.String("pg-password", "", "PostgreSQL password")

	for _, name := range []string{"host", "port", "pg-host", "pg-port", "pg-db", "pg-user", "pg-password"} {
		_ = viper.BindPFlag(name, flags.Lookup(name))
	}

	rootCmd.AddCommand(newDemoCommand())
	return rootCmd
}

// loadConfig layers flag values over the environment-backed defaults.
func loadConfig() config.Config {
	cfg := config.Load(nil)

	if host := viper.GetString("host"); host != "" {
		cfg.Server.Host = host
	}
	if port := viper.GetInt("port"); port > 0 {
		cfg.Server.Port = port
	}
	if host := viper.GetString("pg-host"); host != "" {
		cfg.Database.Host = host
	}
	if port := viper.GetInt("pg-port"); port > 0 {
		cfg.Database.Port = port
	}
	if name := viper.GetString("pg-db"); name != "" {
		cfg.Database.Name = name
	}
	if user := viper.GetString("pg-user"); user != "" {
		cfg.Database.User = user
	}
	if password := viper.GetString("pg-password"); password != "" {
		cfg.Database.Password = password
	}
	return cfg
}

func runServe(ctx context.Context) error {
	logger := logging.NewComponentLogger("Main")
	logger.Info("Starting atlas map bridge...")

	cfg := loadConfig()

	bridge := buildBridge()
	service := buildService(ctx, cfg, bridge, logger)
	registry := maptools.NewRegistry(service)
	for _, def := range registry.List() {
		logger.Debug("Registered tool: %s", def.Name)
	}

	router := serverHTTP.NewRouter(bridge)

	listener, addr, err := bindWithRetry(cfg.Server, logger)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Handler:     router,
		ReadTimeout: 30 * time.Second,
		// No write timeout: the SSE stream stays open for the tab's lifetime.
		WriteTimeout: 0,
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Map bridge listening at http://%s", addr)
		if err := srv.Serve(listener); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-quit:
	case <-ctx.Done():
	}

	logger.Info("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	logger.Info("Server stopped")
	return nil
}

func buildBridge() *app.MapBridge {
	broadcaster := app.NewMapBroadcaster()
	viewState := app.NewViewState()
	pending := app.NewPendingRequests()
	return app.NewMapBridge(broadcaster, viewState, pending)
}

// buildService connects the database when it is reachable, or degrades to the
// map-only tool set. The bridge must keep serving even if the database never
// connects.
func buildService(ctx context.Context, cfg config.Config, bridge *app.MapBridge, logger logging.Logger) *maptools.Service {
	var store maptools.QueryStore

	connectCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	pool, err := postgres.Connect(connectCtx, cfg.Database.DSN())
	if err != nil {
		logger.Warn("Could not connect to database: %v", err)
		logger.Warn("Continuing without database connection")
	} else {
		logger.Info("Database connection established (%s:%d/%s)", cfg.Database.Host, cfg.Database.Port, cfg.Database.Name)
		if s, err := postgres.New(pool); err == nil {
			store = s
		}
	}

	return maptools.NewService(bridge, store)
}

// bindWithRetry tries the configured port and up to maxBindAttempts-1
// successors. Running out of ports is the one unrecoverable startup failure.
func bindWithRetry(server config.Server, logger logging.Logger) (net.Listener, string, error) {
	port := server.Port
	for attempt := 0; attempt < maxBindAttempts; attempt++ {
		addr := fmt.Sprintf("%s:%d", server.Host, port+attempt)
		listener, err := net.Listen("tcp", addr)
		if err == nil {
			return listener, addr, nil
		}
		logger.Info("Port %d is not available, trying port %d", port+attempt, port+attempt+1)
	}
	return nil, "", fmt.Errorf("failed to find an available port after %d attempts starting at %d", maxBindAttempts, port)
}
