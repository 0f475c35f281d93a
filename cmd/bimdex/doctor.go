package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"bimdex/internal/category"
	"bimdex/internal/config"
	bimerrors "bimdex/internal/errors"
	"bimdex/internal/logging"
	"bimdex/internal/metadata"
	"bimdex/internal/scene"
)

var (
	doctorCheck  string
	doctorFormat string
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Diagnose bimdex issues",
	Long: `Diagnose bimdex configuration and input issues.

Checks the workspace config, the configured scene snapshot and metadata
files, the category table, the load history database, and the auth setup.

Examples:
  bimdex doctor
  bimdex doctor --check=scene
  bimdex doctor --format json`,
	Run: runDoctor,
}

func init() {
	doctorCmd.Flags().StringVar(&doctorCheck, "check", "", "Run specific check (config, scene, metadata, categories, history, auth)")
	doctorCmd.Flags().StringVar(&doctorFormat, "format", "human", "Output format (json, human)")
	rootCmd.AddCommand(doctorCmd)
}

func runDoctor(cmd *cobra.Command, args []string) {
	start := time.Now()
	workRoot := mustGetWorkRoot()
	logger := logging.NewDiscard()

	checks := []struct {
		name string
		run  func(workRoot string, cfg *config.Config) DoctorCheckCLI
	}{
		{"config", checkConfig},
		{"scene", checkScene},
		{"metadata", checkMetadata},
		{"categories", checkCategories},
		{"history", checkHistory},
		{"auth", checkAuth},
	}

	if doctorCheck != "" {
		found := false
		for _, c := range checks {
			if c.name == doctorCheck {
				found = true
				break
			}
		}
		if !found {
			fmt.Fprintf(os.Stderr, "Error: unknown check '%s' (valid: config, scene, metadata, categories, history, auth)\n", doctorCheck)
			os.Exit(1)
		}
	}

	cfg := loadWorkConfig(workRoot, logger)

	response := &DoctorResponseCLI{Healthy: true}
	for _, c := range checks {
		if doctorCheck != "" && c.name != doctorCheck {
			continue
		}
		result := c.run(workRoot, cfg)
		result.Name = c.name
		if result.Status == "fail" {
			response.Healthy = false
		}
		response.Checks = append(response.Checks, result)
	}

	output, err := FormatResponse(response, OutputFormat(doctorFormat))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error formatting output: %v\n", err)
		os.Exit(1)
	}

	fmt.Println(output)

	if doctorFormat == "human" {
		fmt.Printf("(Diagnostics took %dms)\n", time.Since(start).Milliseconds())
	}

	// Exit with non-zero if unhealthy
	if !response.Healthy {
		os.Exit(1)
	}
}

func checkConfig(workRoot string, cfg *config.Config) DoctorCheckCLI {
	configPath := filepath.Join(workRoot, config.WorkDirName, "config.json")
	if _, err := os.Stat(configPath); err != nil {
		return DoctorCheckCLI{
			Status:  "warn",
			Message: "no config file found; using defaults",
			SuggestedFixes: []bimerrors.FixAction{
				{
					Command:     "bimdex init",
					Safe:        true,
					Description: "Create a workspace config with defaults",
				},
			},
		}
	}

	loaded, err := config.LoadConfig(workRoot)
	if err != nil {
		return DoctorCheckCLI{
			Status:  "fail",
			Message: fmt.Sprintf("config invalid: %v", err),
		}
	}
	if err := loaded.Validate(); err != nil {
		return DoctorCheckCLI{
			Status:  "fail",
			Message: fmt.Sprintf("config invalid: %v", err),
		}
	}

	return DoctorCheckCLI{
		Status:  "pass",
		Message: fmt.Sprintf("config valid (version %d)", loaded.Version),
	}
}

func checkScene(workRoot string, cfg *config.Config) DoctorCheckCLI {
	if cfg.Scene.Snapshot == "" {
		return DoctorCheckCLI{
			Status:  "warn",
			Message: "no scene snapshot configured (scene.snapshot)",
		}
	}

	path := resolveInputPath(workRoot, cfg.Scene.Snapshot)
	info, err := os.Stat(path)
	if err != nil {
		return DoctorCheckCLI{
			Status:         "fail",
			Message:        fmt.Sprintf("snapshot not found: %s", cfg.Scene.Snapshot),
			SuggestedFixes: bimerrors.GetSuggestedFixes(bimerrors.SnapshotNotFound),
		}
	}

	root, err := scene.NewLoader(logging.NewDiscard()).Load(path)
	if err != nil {
		return DoctorCheckCLI{
			Status:         "fail",
			Message:        fmt.Sprintf("snapshot invalid: %v", err),
			SuggestedFixes: bimerrors.GetSuggestedFixes(bimerrors.CodeOf(err)),
		}
	}

	summary := scene.Summarize(root)
	return DoctorCheckCLI{
		Status: "pass",
		Message: fmt.Sprintf("%s (%s, %d nodes, %d renderable)",
			cfg.Scene.Snapshot, formatBytes(info.Size()), summary.NodeCount, summary.RenderableCount),
	}
}

func checkMetadata(workRoot string, cfg *config.Config) DoctorCheckCLI {
	if cfg.Scene.Metadata == "" {
		return DoctorCheckCLI{
			Status:  "pass",
			Message: "no metadata configured; element names fall back to node names",
		}
	}

	path := resolveInputPath(workRoot, cfg.Scene.Metadata)
	info, err := os.Stat(path)
	if err != nil {
		return DoctorCheckCLI{
			Status:  "fail",
			Message: fmt.Sprintf("metadata not found: %s", cfg.Scene.Metadata),
		}
	}

	raw, err := metadata.NewFetcher(logging.NewDiscard()).Fetch(path)
	if err != nil {
		return DoctorCheckCLI{
			Status:         "fail",
			Message:        fmt.Sprintf("metadata invalid: %v", err),
			SuggestedFixes: bimerrors.GetSuggestedFixes(bimerrors.CodeOf(err)),
		}
	}

	index := metadata.Parse(raw)
	return DoctorCheckCLI{
		Status: "pass",
		Message: fmt.Sprintf("%s (%s, %d records)",
			cfg.Scene.Metadata, formatBytes(info.Size()), index.Len()),
	}
}

func checkCategories(workRoot string, cfg *config.Config) DoctorCheckCLI {
	if cfg.Scene.Categories == "" {
		table, err := category.DefaultTable()
		if err != nil {
			return DoctorCheckCLI{
				Status:  "fail",
				Message: fmt.Sprintf("built-in category table invalid: %v", err),
			}
		}
		return DoctorCheckCLI{
			Status:  "pass",
			Message: fmt.Sprintf("built-in category table (%d rules, %d code mappings)", len(table.Rules), len(table.Codes)),
		}
	}

	path := resolveInputPath(workRoot, cfg.Scene.Categories)
	table, err := category.LoadTable(path)
	if err != nil {
		return DoctorCheckCLI{
			Status:  "fail",
			Message: fmt.Sprintf("category table invalid: %v", err),
		}
	}
	return DoctorCheckCLI{
		Status:  "pass",
		Message: fmt.Sprintf("%s (%d rules, %d code mappings)", cfg.Scene.Categories, len(table.Rules), len(table.Codes)),
	}
}

func checkHistory(workRoot string, cfg *config.Config) DoctorCheckCLI {
	if !cfg.History.Enabled {
		return DoctorCheckCLI{
			Status:  "pass",
			Message: "load history disabled",
		}
	}

	store, err := openHistory(cfg, workRoot, logging.NewDiscard())
	if err != nil {
		return DoctorCheckCLI{
			Status:         "fail",
			Message:        fmt.Sprintf("history database unavailable: %v", err),
			SuggestedFixes: bimerrors.GetSuggestedFixes(bimerrors.HistoryUnavailable),
		}
	}
	defer store.Close()

	count, err := store.Count()
	if err != nil {
		return DoctorCheckCLI{
			Status:  "fail",
			Message: fmt.Sprintf("history database unreadable: %v", err),
		}
	}
	return DoctorCheckCLI{
		Status:  "pass",
		Message: fmt.Sprintf("%d loads recorded", count),
	}
}

func checkAuth(workRoot string, cfg *config.Config) DoctorCheckCLI {
	if !cfg.Server.Auth.Enabled {
		return DoctorCheckCLI{
			Status:  "pass",
			Message: "authentication disabled",
		}
	}
	if cfg.Server.Auth.TokenHash == "" {
		return DoctorCheckCLI{
			Status:  "fail",
			Message: "authentication enabled but no token hash stored",
			SuggestedFixes: []bimerrors.FixAction{
				{
					Command:     "bimdex token generate",
					Safe:        true,
					Description: "Generate a token and store its hash",
				},
			},
		}
	}
	return DoctorCheckCLI{
		Status:  "pass",
		Message: "authentication enabled",
	}
}

// DoctorResponseCLI contains diagnostic results for CLI output
type DoctorResponseCLI struct {
	Healthy bool             `json:"healthy"`
	Checks  []DoctorCheckCLI `json:"checks"`
}

// DoctorCheckCLI represents a single diagnostic check
type DoctorCheckCLI struct {
	Name           string                `json:"name"`
	Status         string                `json:"status"` // "pass", "warn", "fail"
	Message        string                `json:"message"`
	SuggestedFixes []bimerrors.FixAction `json:"suggestedFixes,omitempty"`
}
