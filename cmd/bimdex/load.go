package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"bimdex/internal/engine"
	"bimdex/internal/scene"
)

var (
	loadScene    string
	loadMetadata string
	loadFormat   string
)

var loadCmd = &cobra.Command{
	Use:   "load [snapshot]",
	Short: "Load a scene snapshot and correlate metadata",
	Long: `Load a scene snapshot, correlate its renderable nodes against the
element metadata, and report the resulting browse tree.

Without arguments the snapshot and metadata paths come from the
workspace configuration (scene.snapshot, scene.metadata). Snapshots may
be JSON or YAML, optionally compressed (.gz, .zst).

Examples:
  bimdex load exports/model.json
  bimdex load --scene exports/model.json.gz --metadata exports/metadata.json
  bimdex load`,
	Args: cobra.MaximumNArgs(1),
	Run:  runLoad,
}

func init() {
	loadCmd.Flags().StringVar(&loadScene, "scene", "", "Snapshot file path (same as the positional argument)")
	loadCmd.Flags().StringVar(&loadMetadata, "metadata", "", "Metadata file path (overrides config)")
	loadCmd.Flags().StringVar(&loadFormat, "format", "human", "Output format (json, human)")
	rootCmd.AddCommand(loadCmd)
}

func runLoad(cmd *cobra.Command, args []string) {
	logger := newLogger(loadFormat)
	workRoot := mustGetWorkRoot()
	cfg := loadWorkConfig(workRoot, logger)
	eng := mustGetEngine(workRoot, logger)

	snapshot := loadScene
	if snapshot == "" && len(args) > 0 {
		snapshot = args[0]
	}

	result, err := eng.Load(engine.LoadOptions{
		SnapshotPath: snapshot,
		MetadataPath: loadMetadata,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading scene: %v\n", err)
		os.Exit(1)
	}

	store, err := openHistory(cfg, workRoot, logger)
	if err != nil {
		logger.Warn("Load history unavailable", map[string]interface{}{
			"error": err.Error(),
		})
	}
	if store != nil {
		defer store.Close()
		recordLoad(store, result, logger)
	}

	output, err := FormatResponse(convertLoadResponse(result), OutputFormat(loadFormat))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error formatting output: %v\n", err)
		os.Exit(1)
	}

	fmt.Println(output)
}

// LoadResponseCLI contains load results for CLI output
type LoadResponseCLI struct {
	LoadID          string            `json:"loadId"`
	Snapshot        string            `json:"snapshot"`
	Metadata        string            `json:"metadata,omitempty"`
	Scene           scene.Summary     `json:"scene"`
	MetadataRecords int               `json:"metadataRecords"`
	Matched         int               `json:"matched"`
	Unmatched       int               `json:"unmatched"`
	MatchRate       float64           `json:"matchRate"`
	MatchMethods    map[string]int    `json:"matchMethods,omitempty"`
	Groups          int               `json:"groups"`
	Categories      int               `json:"categories"`
	TreeNodes       []GroupSummaryCLI `json:"treeNodes"`
	DurationMs      int64             `json:"durationMs"`
}

// GroupSummaryCLI is one tree node with its element count
type GroupSummaryCLI struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
	Kind        string `json:"kind"`
	Items       int    `json:"items"`
}

func convertLoadResponse(result *engine.LoadResult) *LoadResponseCLI {
	resp := &LoadResponseCLI{
		LoadID:          result.LoadID,
		Snapshot:        result.SnapshotPath,
		Metadata:        result.MetadataPath,
		Scene:           result.Scene,
		MetadataRecords: result.MetadataRecords,
		MatchRate:       result.MatchRate,
		DurationMs:      result.DurationMs,
	}

	if result.Correlation != nil {
		resp.Matched = result.Correlation.Matched
		resp.Unmatched = result.Correlation.Unmatched
		resp.MatchMethods = result.Correlation.MatchMethods
		resp.Groups = result.Correlation.Groups
		resp.Categories = result.Correlation.Categories
	}

	if result.Tree != nil {
		resp.TreeNodes = make([]GroupSummaryCLI, 0, len(result.Tree.Nodes))
		for _, tn := range result.Tree.Nodes {
			resp.TreeNodes = append(resp.TreeNodes, GroupSummaryCLI{
				ID:          tn.ID,
				DisplayName: tn.DisplayName,
				Kind:        string(tn.Kind),
				Items:       len(tn.Items),
			})
		}
	}

	return resp
}
