package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"bimdex/internal/api"
	"bimdex/internal/engine"
	"bimdex/internal/logging"
	"bimdex/internal/watcher"
	"github.com/spf13/cobra"
)

var (
	servePort int
	serveHost string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start HTTP API server",
	Long: `Start the bimdex HTTP API server to expose the correlated scene model
over HTTP. The server provides REST endpoints for loading inputs, browsing
the element tree, searching, toggling visibility, and load history.

When watch mode is enabled in the configuration, the server re-loads the
scene automatically whenever the snapshot or metadata file changes on disk.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	// Define flags
	serveCmd.Flags().IntVar(&servePort, "port", 0, "Port to listen on (overrides config)")
	serveCmd.Flags().StringVar(&serveHost, "host", "", "Host to bind to (overrides config)")
}

func runServe(cmd *cobra.Command, args []string) error {
	// Bootstrap logger; replaced below once config is known
	logger := logging.NewLogger(logging.Config{
		Format: logging.HumanFormat,
		Level:  logging.InfoLevel,
	})

	workRoot := mustGetWorkRoot()
	cfg := loadWorkConfig(workRoot, logger)

	// Rebuild the logger with the configured format and level
	logger = logging.NewLogger(logging.Config{
		Format: logging.ParseFormat(cfg.Logging.Format),
		Level:  logging.ParseLevel(cfg.Logging.Level),
	})

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	// Build server address, flags taking precedence over config
	host := cfg.Server.Bind
	if serveHost != "" {
		host = serveHost
	}
	port := cfg.Server.Port
	if servePort != 0 {
		port = servePort
	}
	addr := fmt.Sprintf("%s:%d", host, port)

	// The metrics collector doubles as a load observer. It is only added
	// to the observer list when enabled; appending a nil *MetricsCollector
	// would hide behind a non-nil interface value.
	observers := []engine.Observer{engine.NewLogObserver(logger)}
	var metrics *api.MetricsCollector
	if cfg.Server.Metrics.Enabled {
		metrics = api.NewMetricsCollector()
		observers = append(observers, metrics)
	}

	eng, err := engine.New(cfg, logger, engine.CombineObservers(observers...))
	if err != nil {
		return fmt.Errorf("failed to create engine: %w", err)
	}

	store, err := openHistory(cfg, workRoot, logger)
	if err != nil {
		logger.Warn("Load history unavailable", map[string]interface{}{
			"error": err.Error(),
		})
		store = nil
	}
	if store != nil {
		defer store.Close()
	}

	// Load the configured inputs up front so the server comes up ready.
	// A failed initial load is not fatal; /ready reports 503 until a
	// later load succeeds.
	if cfg.Scene.Snapshot != "" {
		result, err := eng.Load(engine.LoadOptions{})
		if err != nil {
			logger.Warn("Initial load failed", map[string]interface{}{
				"snapshot": cfg.Scene.Snapshot,
				"error":    err.Error(),
			})
		} else {
			recordLoad(store, result, logger)
		}
	}

	// Watch mode: re-load when the snapshot or metadata file changes
	if cfg.Watch.Enabled && cfg.Scene.Snapshot != "" {
		fw := watcher.New(cfg.Watch, logger, func(events []watcher.Event) {
			deleted := 0
			for _, ev := range events {
				if ev.Type == watcher.EventDelete {
					deleted++
				}
			}
			if deleted == len(events) {
				logger.Warn("Watched input removed; keeping current scene", map[string]interface{}{
					"events": len(events),
				})
				return
			}
			logger.Info("Input changed, reloading scene", map[string]interface{}{
				"events": len(events),
			})
			result, err := eng.Load(engine.LoadOptions{})
			if err != nil {
				logger.Error("Reload failed", map[string]interface{}{
					"error": err.Error(),
				})
				return
			}
			recordLoad(store, result, logger)
		})
		if err := fw.Start(); err != nil {
			return fmt.Errorf("failed to start file watcher: %w", err)
		}
		defer fw.Stop()

		if err := fw.Watch(resolveInputPath(workRoot, cfg.Scene.Snapshot)); err != nil {
			logger.Warn("Failed to watch snapshot", map[string]interface{}{
				"path":  cfg.Scene.Snapshot,
				"error": err.Error(),
			})
		}
		if cfg.Scene.Metadata != "" {
			if err := fw.Watch(resolveInputPath(workRoot, cfg.Scene.Metadata)); err != nil {
				logger.Warn("Failed to watch metadata", map[string]interface{}{
					"path":  cfg.Scene.Metadata,
					"error": err.Error(),
				})
			}
		}
	}

	// Create server
	server := api.NewServer(addr, eng, store, metrics, cfg, logger)

	// Setup graceful shutdown
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	// Start server in a goroutine
	serverErr := make(chan error, 1)
	go func() {
		logger.Info("Starting bimdex HTTP API server", map[string]interface{}{
			"addr": addr,
		})
		fmt.Printf("bimdex HTTP API server listening on http://%s\n", addr)
		fmt.Println("Press Ctrl+C to stop")
		serverErr <- server.Start()
	}()

	// Wait for shutdown signal or server error
	select {
	case err := <-serverErr:
		if err != nil {
			logger.Error("Server error", map[string]interface{}{
				"error": err.Error(),
			})
			return err
		}
	case sig := <-shutdown:
		logger.Info("Received shutdown signal", map[string]interface{}{
			"signal": sig.String(),
		})

		// Create shutdown context with timeout
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		// Attempt graceful shutdown
		if err := server.Shutdown(ctx); err != nil {
			logger.Error("Error during shutdown", map[string]interface{}{
				"error": err.Error(),
			})
			return err
		}

		logger.Info("Server stopped gracefully", nil)
	}

	return nil
}
