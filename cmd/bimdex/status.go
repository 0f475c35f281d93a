package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"bimdex/internal/config"
	"bimdex/internal/history"
	"bimdex/internal/version"
)

var (
	statusFormat string
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show workspace status",
	Long: `Show the workspace configuration, the configured scene inputs, and
the load history without performing a load.

Examples:
  bimdex status
  bimdex status --format json`,
	Run: runStatus,
}

func init() {
	statusCmd.Flags().StringVar(&statusFormat, "format", "human", "Output format (json, human)")
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) {
	logger := newLogger(statusFormat)
	workRoot := mustGetWorkRoot()
	cfg := loadWorkConfig(workRoot, logger)

	configPath := filepath.Join(config.WorkDirName, "config.json")
	_, statErr := os.Stat(filepath.Join(workRoot, configPath))

	resp := &StatusResponseCLI{
		BimdexVersion: version.Version,
		WorkRoot:      workRoot,
		ConfigPath:    configPath,
		ConfigFound:   statErr == nil,
		Snapshot:      inspectInput(workRoot, cfg.Scene.Snapshot),
		Metadata:      inspectInput(workRoot, cfg.Scene.Metadata),
		Server: ServerStatusCLI{
			Bind:           cfg.Server.Bind,
			Port:           cfg.Server.Port,
			AuthEnabled:    cfg.Server.Auth.Enabled,
			MetricsEnabled: cfg.Server.Metrics.Enabled,
		},
		Watch: WatchStatusCLI{
			Enabled:        cfg.Watch.Enabled,
			DebounceMs:     cfg.Watch.DebounceMs,
			PollIntervalMs: cfg.Watch.PollIntervalMs,
		},
	}

	resp.History = &HistoryStatusCLI{Enabled: cfg.History.Enabled, Path: cfg.History.Path}
	if cfg.History.Enabled {
		store, err := openHistory(cfg, workRoot, logger)
		if err != nil {
			logger.Warn("Load history unavailable", map[string]interface{}{
				"error": err.Error(),
			})
		} else if store != nil {
			defer store.Close()
			if count, err := store.Count(); err == nil {
				resp.History.Records = count
			}
			if records, err := store.List(1); err == nil && len(records) > 0 {
				resp.History.LastLoad = records[0]
			}
		}
	}

	output, err := FormatResponse(resp, OutputFormat(statusFormat))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error formatting output: %v\n", err)
		os.Exit(1)
	}

	fmt.Println(output)
}

// inspectInput stats one configured input file
func inspectInput(workRoot, path string) *InputFileCLI {
	if path == "" {
		return nil
	}

	resolved := resolveInputPath(workRoot, path)

	input := &InputFileCLI{Path: path}
	if info, err := os.Stat(resolved); err == nil {
		input.Exists = true
		input.SizeBytes = info.Size()
	}
	return input
}

// StatusResponseCLI contains workspace status for CLI output
type StatusResponseCLI struct {
	BimdexVersion string            `json:"bimdexVersion"`
	WorkRoot      string            `json:"workRoot"`
	ConfigPath    string            `json:"configPath"`
	ConfigFound   bool              `json:"configFound"`
	Snapshot      *InputFileCLI     `json:"snapshot,omitempty"`
	Metadata      *InputFileCLI     `json:"metadata,omitempty"`
	History       *HistoryStatusCLI `json:"history,omitempty"`
	Server        ServerStatusCLI   `json:"server"`
	Watch         WatchStatusCLI    `json:"watch"`
}

// InputFileCLI describes one configured input file
type InputFileCLI struct {
	Path      string `json:"path"`
	Exists    bool   `json:"exists"`
	SizeBytes int64  `json:"sizeBytes,omitempty"`
}

// HistoryStatusCLI summarizes the load history store
type HistoryStatusCLI struct {
	Enabled  bool                `json:"enabled"`
	Path     string              `json:"path,omitempty"`
	Records  int                 `json:"records"`
	LastLoad *history.LoadRecord `json:"lastLoad,omitempty"`
}

// ServerStatusCLI summarizes the HTTP server configuration
type ServerStatusCLI struct {
	Bind           string `json:"bind"`
	Port           int    `json:"port"`
	AuthEnabled    bool   `json:"authEnabled"`
	MetricsEnabled bool   `json:"metricsEnabled"`
}

// WatchStatusCLI summarizes the file watch configuration
type WatchStatusCLI struct {
	Enabled        bool `json:"enabled"`
	DebounceMs     int  `json:"debounceMs"`
	PollIntervalMs int  `json:"pollIntervalMs"`
}
