package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/mkaindl/offsetpilot/internal/app"
	"github.com/mkaindl/offsetpilot/internal/bus"
	"github.com/mkaindl/offsetpilot/internal/config"
	"github.com/mkaindl/offsetpilot/internal/jsonrpc"
	"github.com/mkaindl/offsetpilot/internal/kodi"
	"github.com/mkaindl/offsetpilot/internal/logging"
	"github.com/mkaindl/offsetpilot/internal/monitor"
	"github.com/mkaindl/offsetpilot/internal/notify"
	"github.com/mkaindl/offsetpilot/internal/offset"
	"github.com/mkaindl/offsetpilot/internal/seekback"
	"github.com/mkaindl/offsetpilot/internal/server"
	"github.com/mkaindl/offsetpilot/internal/signature"
	"github.com/mkaindl/offsetpilot/internal/store"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg := setupConfig()
	logging.InitLogger(cfg.LogLevel, cfg.LogFormat)
	clock := clockwork.NewRealClock()

	settings, err := store.NewFileStore(cfg.StateFile)
	if err != nil {
		slog.Error("Failed to open settings store", "path", cfg.StateFile, "error", err)
		os.Exit(1)
	}

	client := connectHost(cfg, clock)
	defer client.Close()

	players := kodi.NewPlayers(client)
	gui := kodi.NewGUI(client)

	resolver := signature.NewResolver(players, gui, settings, clock)
	notifier := notify.New(settings, kodi.NewNotifier(client))
	b := bus.New(clock)
	poller := monitor.NewPoller(gui, settings, resolver, b, notifier, clock)
	offsets := offset.NewPolicy(players, settings, resolver, poller, notifier)
	seekbacks := seekback.NewPolicy(players, settings, clock)
	source := kodi.NewEventAdapter(client.Notifications(), b)

	svc := app.NewService(b, source, offsets.Handle, seekbacks.Handle, seekbacks, poller)
	svc.Start()

	srv := server.NewServer(client)
	go func() {
		if err := srv.Start(cfg.HTTPPort); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("HTTP server failed", "error", err)
			os.Exit(1)
		}
	}()

	slog.Info("offsetpilot running", "host", cfg.HostURL, "http_port", cfg.HTTPPort)
	waitForExit(client)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server shutdown error", "error", err)
	}
	svc.Stop()
	slog.Info("Shutdown complete")
}

func setupConfig() *config.Config {
	cfg, err := config.Load()
	if err != nil {
		// Use log before slog is initialized
		log.Fatalf("Failed to load config: %v", err)
	}
	return cfg
}

func connectHost(cfg *config.Config, clock clockwork.Clock) *jsonrpc.Client {
	ctx, cancel := context.WithTimeout(context.Background(), cfg.ConnectTimeout)
	defer cancel()

	client, err := jsonrpc.Dial(ctx, cfg.HostURL, clock)
	if err != nil {
		slog.Error("Failed to connect to host", "url", cfg.HostURL, "error", err)
		os.Exit(1)
	}
	return client
}

// waitForExit blocks until a shutdown signal arrives or the host connection
// dies.
func waitForExit(client *jsonrpc.Client) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		slog.Info("Shutdown signal received, cleaning up...", "signal", sig.String())
	case <-client.Done():
		slog.Error("Host connection lost, shutting down")
	}
}
