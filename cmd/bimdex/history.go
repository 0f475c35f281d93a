package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"bimdex/internal/engine"
	"bimdex/internal/history"
	"bimdex/internal/logging"
)

var (
	historyFormat string
	historyLimit  int
	historyKeep   int
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Inspect the load history",
	Long: `List, inspect, and trim the recorded load history.

Every completed load is recorded with its correlation statistics, so
the history shows how match rates evolve as exports change.

Examples:
  bimdex history list
  bimdex history show <load-id>
  bimdex history replay <load-id>
  bimdex history prune --keep 50
  bimdex history clear`,
}

var historyListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recorded loads, newest first",
	Run:   runHistoryList,
}

var historyShowCmd = &cobra.Command{
	Use:   "show <load-id>",
	Short: "Show one recorded load",
	Args:  cobra.ExactArgs(1),
	Run:   runHistoryShow,
}

var historyReplayCmd = &cobra.Command{
	Use:   "replay <load-id>",
	Short: "Re-run a recorded load with the same inputs",
	Long: `Re-run a recorded load against the same snapshot and metadata paths,
then compare the outcome with the recorded statistics.

Replay goes through the normal load path; nothing is restored from the
history record itself. Drifted input files are flagged by comparing
their current content hash against the recorded one.

Examples:
  bimdex history replay <load-id>`,
	Args: cobra.ExactArgs(1),
	Run:  runHistoryReplay,
}

var historyPruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Remove all but the most recent loads",
	Run:   runHistoryPrune,
}

var historyClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove all recorded loads",
	Run:   runHistoryClear,
}

func init() {
	historyCmd.PersistentFlags().StringVar(&historyFormat, "format", "human", "Output format (json, human)")

	historyListCmd.Flags().IntVar(&historyLimit, "limit", 20, "Maximum number of loads to list")
	historyPruneCmd.Flags().IntVar(&historyKeep, "keep", 50, "Number of recent loads to keep")

	historyCmd.AddCommand(historyListCmd)
	historyCmd.AddCommand(historyShowCmd)
	historyCmd.AddCommand(historyReplayCmd)
	historyCmd.AddCommand(historyPruneCmd)
	historyCmd.AddCommand(historyClearCmd)
	rootCmd.AddCommand(historyCmd)
}

// mustOpenHistory opens the history store or exits when history is
// disabled or unavailable.
func mustOpenHistory(logger *logging.Logger) *history.Store {
	workRoot := mustGetWorkRoot()
	cfg := loadWorkConfig(workRoot, logger)

	if !cfg.History.Enabled {
		fmt.Fprintln(os.Stderr, "Error: load history is disabled (history.enabled)")
		os.Exit(1)
	}

	store, err := openHistory(cfg, workRoot, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening history: %v\n", err)
		os.Exit(1)
	}
	return store
}

func runHistoryList(cmd *cobra.Command, args []string) {
	logger := newLogger(historyFormat)
	store := mustOpenHistory(logger)
	defer store.Close()

	records, err := store.List(historyLimit)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error listing history: %v\n", err)
		os.Exit(1)
	}
	total, err := store.Count()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error counting history: %v\n", err)
		os.Exit(1)
	}

	resp := &HistoryListResponseCLI{Records: records, Total: total}

	output, err := FormatResponse(resp, OutputFormat(historyFormat))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error formatting output: %v\n", err)
		os.Exit(1)
	}

	fmt.Println(output)
}

func runHistoryShow(cmd *cobra.Command, args []string) {
	logger := newLogger(historyFormat)
	store := mustOpenHistory(logger)
	defer store.Close()

	record, err := store.Get(args[0])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading history: %v\n", err)
		os.Exit(1)
	}
	if record == nil {
		fmt.Fprintf(os.Stderr, "Error: no history record for load %s\n", args[0])
		os.Exit(1)
	}

	if historyFormat == "json" {
		printJSON(record)
		return
	}

	fmt.Printf("Load %s\n", record.ID)
	fmt.Printf("  Recorded:  %s (%s)\n", record.RecordedAt.Format("2006-01-02 15:04:05"), formatTimeAgo(record.RecordedAt))
	fmt.Printf("  Snapshot:  %s\n", record.SnapshotPath)
	if record.MetadataPath != "" {
		fmt.Printf("  Metadata:  %s\n", record.MetadataPath)
	}
	fmt.Printf("  Scene:     %d nodes, %d renderable, %d triangles\n",
		record.NodeCount, record.RenderableCount, record.TriangleCount)
	fmt.Printf("  Matched:   %d of %d records (%.1f%%)\n",
		record.Matched, record.MetadataRecords, record.MatchRate*100)
	fmt.Printf("  Tree:      %d groups, %d categories\n", record.Groups, record.Categories)
	fmt.Printf("  Duration:  %dms\n", record.DurationMs)
}

func runHistoryReplay(cmd *cobra.Command, args []string) {
	logger := newLogger(historyFormat)
	workRoot := mustGetWorkRoot()
	store := mustOpenHistory(logger)
	defer store.Close()

	record, err := store.Get(args[0])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading history: %v\n", err)
		os.Exit(1)
	}
	if record == nil {
		fmt.Fprintf(os.Stderr, "Error: no history record for load %s\n", args[0])
		os.Exit(1)
	}

	eng := mustGetEngine(workRoot, logger)
	result, err := eng.Load(engine.LoadOptions{
		SnapshotPath: record.SnapshotPath,
		MetadataPath: record.MetadataPath,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error replaying load: %v\n", err)
		os.Exit(1)
	}

	// The replay is a regular load and joins the history itself
	recordLoad(store, result, logger)

	differences := compareLoadStats(record, result)
	resp := &HistoryReplayResponseCLI{
		OriginalID:  record.ID,
		RecordedAt:  record.RecordedAt,
		Replay:      convertLoadResponse(result),
		StatsMatch:  len(differences) == 0,
		Differences: differences,
	}
	if record.SnapshotHash != "" {
		resp.SnapshotChanged = history.HashFile(record.SnapshotPath) != record.SnapshotHash
	}
	if record.MetadataPath != "" && record.MetadataHash != "" {
		resp.MetadataChanged = history.HashFile(record.MetadataPath) != record.MetadataHash
	}

	output, err := FormatResponse(resp, OutputFormat(historyFormat))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error formatting output: %v\n", err)
		os.Exit(1)
	}

	fmt.Println(output)
}

// compareLoadStats diffs the recorded statistics against a fresh load of
// the same inputs.
func compareLoadStats(rec *history.LoadRecord, result *engine.LoadResult) []string {
	var diffs []string
	add := func(name string, recorded, replayed int) {
		if recorded != replayed {
			diffs = append(diffs, fmt.Sprintf("%s: recorded %d, replayed %d", name, recorded, replayed))
		}
	}

	add("nodes", rec.NodeCount, result.Scene.NodeCount)
	add("renderable", rec.RenderableCount, result.Scene.RenderableCount)
	add("triangles", rec.TriangleCount, result.Scene.TriangleCount)
	add("metadata records", rec.MetadataRecords, result.MetadataRecords)
	if result.Correlation != nil {
		add("matched", rec.Matched, result.Correlation.Matched)
		add("unmatched", rec.Unmatched, result.Correlation.Unmatched)
		add("groups", rec.Groups, result.Correlation.Groups)
		add("categories", rec.Categories, result.Correlation.Categories)
	}
	return diffs
}

func runHistoryPrune(cmd *cobra.Command, args []string) {
	logger := newLogger(historyFormat)
	store := mustOpenHistory(logger)
	defer store.Close()

	removed, err := store.Prune(historyKeep)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error pruning history: %v\n", err)
		os.Exit(1)
	}

	if historyFormat == "json" {
		printJSON(map[string]interface{}{
			"removed": removed,
			"kept":    historyKeep,
		})
	} else {
		fmt.Printf("Removed %d loads, kept the %d most recent.\n", removed, historyKeep)
	}
}

func runHistoryClear(cmd *cobra.Command, args []string) {
	logger := newLogger(historyFormat)
	store := mustOpenHistory(logger)
	defer store.Close()

	if err := store.Clear(); err != nil {
		fmt.Fprintf(os.Stderr, "Error clearing history: %v\n", err)
		os.Exit(1)
	}

	if historyFormat == "json" {
		printJSON(map[string]interface{}{"cleared": true})
	} else {
		fmt.Println("Load history cleared.")
	}
}

// HistoryListResponseCLI contains listed loads for CLI output
type HistoryListResponseCLI struct {
	Records []*history.LoadRecord `json:"records"`
	Total   int                   `json:"total"`
}

// HistoryReplayResponseCLI contains a replayed load and its comparison
// against the recorded statistics
type HistoryReplayResponseCLI struct {
	OriginalID      string           `json:"originalId"`
	RecordedAt      time.Time        `json:"recordedAt"`
	Replay          *LoadResponseCLI `json:"replay"`
	StatsMatch      bool             `json:"statsMatch"`
	SnapshotChanged bool             `json:"snapshotChanged,omitempty"`
	MetadataChanged bool             `json:"metadataChanged,omitempty"`
	Differences     []string         `json:"differences,omitempty"`
}
