package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"bimdex/internal/browse"
	"bimdex/internal/engine"
)

var (
	treeSnapshot string
	treeMetadata string
	treeFormat   string
)

var treeCmd = &cobra.Command{
	Use:   "tree",
	Short: "Show the browse tree for the configured scene",
	Long: `Load the configured scene and print its browse tree: structural
groups (or category buckets) with the display name, category, and
visibility of every renderable element.

Examples:
  bimdex tree
  bimdex tree --snapshot exports/model.json --metadata exports/metadata.json
  bimdex tree --format json`,
	Run: runTree,
}

func init() {
	treeCmd.Flags().StringVar(&treeSnapshot, "snapshot", "", "Snapshot file path (overrides config)")
	treeCmd.Flags().StringVar(&treeMetadata, "metadata", "", "Metadata file path (overrides config)")
	treeCmd.Flags().StringVar(&treeFormat, "format", "human", "Output format (json, human)")
	rootCmd.AddCommand(treeCmd)
}

func runTree(cmd *cobra.Command, args []string) {
	logger := newLogger(treeFormat)
	workRoot := mustGetWorkRoot()
	eng := mustGetEngine(workRoot, logger)

	result, err := eng.Load(engine.LoadOptions{
		SnapshotPath: treeSnapshot,
		MetadataPath: treeMetadata,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading scene: %v\n", err)
		os.Exit(1)
	}

	tree, visibility, err := eng.Tree()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading tree: %v\n", err)
		os.Exit(1)
	}

	resp := &TreeResponseCLI{
		Snapshot: result.SnapshotPath,
		Groups:   convertGroups(tree, visibility),
		Total:    tree.Len(),
	}

	output, err := FormatResponse(resp, OutputFormat(treeFormat))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error formatting output: %v\n", err)
		os.Exit(1)
	}

	fmt.Println(output)
}

// TreeResponseCLI contains the browse tree for CLI output
type TreeResponseCLI struct {
	Snapshot string     `json:"snapshot"`
	Groups   []GroupCLI `json:"groups"`
	Total    int        `json:"total"`
}

// GroupCLI is one tree node with its element entries
type GroupCLI struct {
	ID          string     `json:"id"`
	DisplayName string     `json:"displayName"`
	Kind        string     `json:"kind"`
	Items       []EntryCLI `json:"items"`
}

// EntryCLI is one renderable element in the browse tree
type EntryCLI struct {
	Identity    string `json:"identity"`
	DisplayName string `json:"displayName"`
	Category    string `json:"category"`
	Path        string `json:"path,omitempty"`
	Visible     bool   `json:"visible"`
}

// convertGroups flattens a browse tree and its visibility map into CLI
// groups. A missing visibility entry counts as visible.
func convertGroups(tree *browse.Tree, visibility browse.VisibilityMap) []GroupCLI {
	if tree == nil {
		return nil
	}

	groups := make([]GroupCLI, 0, len(tree.Nodes))
	for _, tn := range tree.Nodes {
		group := GroupCLI{
			ID:          tn.ID,
			DisplayName: tn.DisplayName,
			Kind:        string(tn.Kind),
			Items:       make([]EntryCLI, 0, len(tn.Items)),
		}
		for _, e := range tn.Items {
			visible, ok := visibility[e.Identity]
			if !ok {
				visible = true
			}
			group.Items = append(group.Items, EntryCLI{
				Identity:    e.Identity,
				DisplayName: e.DisplayName,
				Category:    e.Category,
				Path:        e.Path,
				Visible:     visible,
			})
		}
		groups = append(groups, group)
	}
	return groups
}
