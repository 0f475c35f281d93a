package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"bimdex/internal/engine"
)

var (
	searchSnapshot string
	searchMetadata string
	searchLimit    int
	searchFormat   string
)

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search the browse tree",
	Long: `Load the configured scene and search its browse tree. The query
matches element display names case-insensitively; when a group name
matches, the whole group is returned.

Examples:
  bimdex search duct
  bimdex search "basic wall" --limit 10
  bimdex search riser --snapshot exports/model.json --format json`,
	Args: cobra.ExactArgs(1),
	Run:  runSearch,
}

func init() {
	searchCmd.Flags().StringVar(&searchSnapshot, "snapshot", "", "Snapshot file path (overrides config)")
	searchCmd.Flags().StringVar(&searchMetadata, "metadata", "", "Metadata file path (overrides config)")
	searchCmd.Flags().IntVar(&searchLimit, "limit", 20, "Maximum number of results")
	searchCmd.Flags().StringVar(&searchFormat, "format", "human", "Output format (json, human)")
	rootCmd.AddCommand(searchCmd)
}

func runSearch(cmd *cobra.Command, args []string) {
	logger := newLogger(searchFormat)
	query := args[0]
	workRoot := mustGetWorkRoot()
	eng := mustGetEngine(workRoot, logger)

	if _, err := eng.Load(engine.LoadOptions{
		SnapshotPath: searchSnapshot,
		MetadataPath: searchMetadata,
	}); err != nil {
		fmt.Fprintf(os.Stderr, "Error loading scene: %v\n", err)
		os.Exit(1)
	}

	filtered, err := eng.Search(query)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error searching: %v\n", err)
		os.Exit(1)
	}

	_, visibility, err := eng.Tree()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading tree: %v\n", err)
		os.Exit(1)
	}

	groups := convertGroups(filtered, visibility)
	groups, truncated := limitGroups(groups, searchLimit)

	resp := &SearchResponseCLI{
		Query:        query,
		TotalMatches: filtered.Len(),
		Groups:       groups,
		Truncated:    truncated,
	}

	output, err := FormatResponse(resp, OutputFormat(searchFormat))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error formatting output: %v\n", err)
		os.Exit(1)
	}

	fmt.Println(output)
}

// SearchResponseCLI contains search results for CLI output
type SearchResponseCLI struct {
	Query        string     `json:"query"`
	TotalMatches int        `json:"totalMatches"`
	Groups       []GroupCLI `json:"groups"`
	Truncated    bool       `json:"truncated,omitempty"`
}

// limitGroups caps the total number of entries across groups. Groups
// emptied by the cap are dropped.
func limitGroups(groups []GroupCLI, limit int) ([]GroupCLI, bool) {
	if limit <= 0 {
		return groups, false
	}

	var out []GroupCLI
	remaining := limit
	truncated := false
	for _, g := range groups {
		if remaining == 0 {
			truncated = true
			break
		}
		if len(g.Items) > remaining {
			g.Items = g.Items[:remaining]
			truncated = true
		}
		remaining -= len(g.Items)
		out = append(out, g)
	}
	return out, truncated
}
