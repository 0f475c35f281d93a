package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"bimdex/internal/engine"
	"bimdex/internal/scene"
)

var (
	statsSnapshot string
	statsMetadata string
	statsFormat   string
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show load statistics for the configured scene",
	Long: `Load the configured scene and print its statistics: scene node and
triangle counts, metadata correlation results with the per-method
breakdown, and the resulting tree shape.

Examples:
  bimdex stats
  bimdex stats --snapshot exports/model.json
  bimdex stats --format json`,
	Run: runStats,
}

func init() {
	statsCmd.Flags().StringVar(&statsSnapshot, "snapshot", "", "Snapshot file path (overrides config)")
	statsCmd.Flags().StringVar(&statsMetadata, "metadata", "", "Metadata file path (overrides config)")
	statsCmd.Flags().StringVar(&statsFormat, "format", "human", "Output format (json, human)")
	rootCmd.AddCommand(statsCmd)
}

func runStats(cmd *cobra.Command, args []string) {
	logger := newLogger(statsFormat)
	workRoot := mustGetWorkRoot()
	eng := mustGetEngine(workRoot, logger)

	if _, err := eng.Load(engine.LoadOptions{
		SnapshotPath: statsSnapshot,
		MetadataPath: statsMetadata,
	}); err != nil {
		fmt.Fprintf(os.Stderr, "Error loading scene: %v\n", err)
		os.Exit(1)
	}

	status, err := eng.Status()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading stats: %v\n", err)
		os.Exit(1)
	}

	resp := convertStatsResponse(status)

	output, err := FormatResponse(resp, OutputFormat(statsFormat))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error formatting output: %v\n", err)
		os.Exit(1)
	}

	fmt.Println(output)
}

// StatsResponseCLI contains load statistics for CLI output
type StatsResponseCLI struct {
	LoadID          string         `json:"loadId"`
	Snapshot        string         `json:"snapshot"`
	Metadata        string         `json:"metadata,omitempty"`
	LoadedAt        time.Time      `json:"loadedAt"`
	Scene           scene.Summary  `json:"scene"`
	MetadataRecords int            `json:"metadataRecords"`
	Matched         int            `json:"matched"`
	Unmatched       int            `json:"unmatched"`
	MatchRate       float64        `json:"matchRate"`
	MatchMethods    map[string]int `json:"matchMethods,omitempty"`
	TextLike        int            `json:"textLike"`
	Groups          int            `json:"groups"`
	Categories      int            `json:"categories"`
	DurationMs      int64          `json:"durationMs"`
}

func convertStatsResponse(status *engine.Status) *StatsResponseCLI {
	resp := &StatsResponseCLI{
		LoadID:          status.LoadID,
		Snapshot:        status.SnapshotPath,
		Metadata:        status.MetadataPath,
		LoadedAt:        status.LoadedAt,
		Scene:           status.Scene,
		MetadataRecords: status.MetadataRecords,
		MatchRate:       status.MatchRate,
		DurationMs:      status.DurationMs,
	}
	if status.Correlation != nil {
		resp.Matched = status.Correlation.Matched
		resp.Unmatched = status.Correlation.Unmatched
		resp.MatchMethods = status.Correlation.MatchMethods
		resp.TextLike = status.Correlation.TextLike
		resp.Groups = status.Correlation.Groups
		resp.Categories = status.Correlation.Categories
	}
	return resp
}
