package main

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"bimdex/internal/config"
	"bimdex/internal/engine"
	"bimdex/internal/history"
	"bimdex/internal/logging"
)

var (
	engineOnce   sync.Once
	sharedEngine *engine.Engine
	engineErr    error
)

// getEngine returns a shared engine instance.
// The engine is lazily initialized on first use.
func getEngine(workRoot string, logger *logging.Logger) (*engine.Engine, error) {
	engineOnce.Do(func() {
		cfg := loadWorkConfig(workRoot, logger)

		eng, err := engine.New(cfg, logger, engine.NopObserver{})
		if err != nil {
			engineErr = fmt.Errorf("failed to create engine: %w", err)
			return
		}

		sharedEngine = eng
	})

	return sharedEngine, engineErr
}

// mustGetEngine returns the shared engine or exits on error.
func mustGetEngine(workRoot string, logger *logging.Logger) *engine.Engine {
	eng, err := getEngine(workRoot, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error initializing engine: %v\n", err)
		os.Exit(1)
	}
	return eng
}

// loadWorkConfig loads the workspace configuration, falling back to
// defaults, and applies BIMDEX_* environment overrides.
func loadWorkConfig(workRoot string, logger *logging.Logger) *config.Config {
	cfg, err := config.LoadConfig(workRoot)
	if err != nil {
		logger.Warn("Failed to load config, using defaults", map[string]interface{}{
			"error": err.Error(),
		})
		cfg = config.DefaultConfig()
	}

	for _, o := range config.ApplyEnvOverrides(cfg) {
		logger.Debug("Config overridden from environment", map[string]interface{}{
			"variable": o.Variable,
			"field":    o.Field,
		})
	}

	return cfg
}

// getWorkRoot returns the workspace root directory.
func getWorkRoot() (string, error) {
	return os.Getwd()
}

// mustGetWorkRoot returns the workspace root or exits on error.
func mustGetWorkRoot() string {
	workRoot, err := getWorkRoot()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	return workRoot
}

// resolveInputPath resolves a configured input path against the
// workspace root. Absolute paths are returned unchanged.
func resolveInputPath(workRoot, path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(workRoot, path)
}

// openHistory opens the load history store when it is enabled. A
// relative history path is resolved against the workspace root.
func openHistory(cfg *config.Config, workRoot string, logger *logging.Logger) (*history.Store, error) {
	if !cfg.History.Enabled {
		return nil, nil
	}

	path := cfg.History.Path
	if path == "" {
		path = filepath.Join(config.WorkDirName, "history.db")
	}
	if !filepath.IsAbs(path) {
		path = filepath.Join(workRoot, path)
	}

	return history.Open(path, logger)
}

// recordLoad persists a completed load when history is enabled.
func recordLoad(store *history.Store, result *engine.LoadResult, logger *logging.Logger) {
	if store == nil {
		return
	}
	if err := store.RecordLoad(history.FromLoadResult(result)); err != nil {
		logger.Warn("Failed to record load history", map[string]interface{}{
			"error": err.Error(),
		})
	}
}

// newLogger creates a logger with the specified format.
func newLogger(format string) *logging.Logger {
	logFormat := logging.HumanFormat
	if format == "json" {
		logFormat = logging.JSONFormat
	}
	return logging.NewLogger(logging.Config{
		Format: logFormat,
		Level:  logging.InfoLevel,
	})
}
