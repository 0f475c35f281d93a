package main

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"
)

// OutputFormat represents the output format type
type OutputFormat string

const (
	FormatJSON  OutputFormat = "json"
	FormatHuman OutputFormat = "human"
)

// FormatResponse formats a response according to the specified format
func FormatResponse(resp interface{}, format OutputFormat) (string, error) {
	switch format {
	case FormatJSON:
		return formatJSON(resp)
	case FormatHuman:
		return formatHuman(resp)
	default:
		return "", fmt.Errorf("unsupported format: %s", format)
	}
}

// formatJSON formats the response as JSON
func formatJSON(resp interface{}) (string, error) {
	data, err := json.MarshalIndent(resp, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal JSON: %w", err)
	}
	return string(data), nil
}

// formatHuman formats the response in human-readable format
func formatHuman(resp interface{}) (string, error) {
	switch v := resp.(type) {
	case *LoadResponseCLI:
		return formatLoadHuman(v)
	case *StatusResponseCLI:
		return formatStatusHuman(v)
	case *StatsResponseCLI:
		return formatStatsHuman(v)
	case *TreeResponseCLI:
		return formatTreeHuman(v)
	case *SearchResponseCLI:
		return formatSearchHuman(v)
	case *ToggleResponseCLI:
		return formatToggleHuman(v)
	case *HistoryListResponseCLI:
		return formatHistoryHuman(v)
	case *HistoryReplayResponseCLI:
		return formatReplayHuman(v)
	case *DoctorResponseCLI:
		return formatDoctorHuman(v)
	default:
		data, err := formatJSON(resp)
		if err != nil {
			return "", err
		}
		return "Human format not available; showing JSON:\n" + data, nil
	}
}

// formatLoadHuman formats a LoadResponseCLI in human-readable format
func formatLoadHuman(resp *LoadResponseCLI) (string, error) {
	var b strings.Builder

	b.WriteString("Load Complete\n")
	b.WriteString(strings.Repeat("=", 60) + "\n\n")

	b.WriteString(fmt.Sprintf("Load ID:  %s\n", resp.LoadID))
	b.WriteString(fmt.Sprintf("Snapshot: %s\n", resp.Snapshot))
	if resp.Metadata != "" {
		b.WriteString(fmt.Sprintf("Metadata: %s\n", resp.Metadata))
	} else {
		b.WriteString("Metadata: none\n")
	}
	b.WriteString("\n")

	b.WriteString("Scene:\n")
	b.WriteString(fmt.Sprintf("  Nodes: %d (%d renderable)\n", resp.Scene.NodeCount, resp.Scene.RenderableCount))
	b.WriteString(fmt.Sprintf("  Triangles: %d\n\n", resp.Scene.TriangleCount))

	b.WriteString("Correlation:\n")
	b.WriteString(fmt.Sprintf("  Metadata Records: %d\n", resp.MetadataRecords))
	b.WriteString(fmt.Sprintf("  Matched: %d (%.1f%%)\n", resp.Matched, resp.MatchRate*100))
	b.WriteString(fmt.Sprintf("  Unmatched: %d\n", resp.Unmatched))
	if len(resp.MatchMethods) > 0 {
		methods := make([]string, 0, len(resp.MatchMethods))
		for method := range resp.MatchMethods {
			methods = append(methods, method)
		}
		sort.Strings(methods)
		parts := make([]string, 0, len(methods))
		for _, method := range methods {
			parts = append(parts, fmt.Sprintf("%s=%d", method, resp.MatchMethods[method]))
		}
		b.WriteString(fmt.Sprintf("  By Method: %s\n", strings.Join(parts, ", ")))
	}
	b.WriteString("\n")

	b.WriteString(fmt.Sprintf("Tree: %d groups, %d category buckets\n", resp.Groups, resp.Categories))
	for _, g := range resp.TreeNodes {
		b.WriteString(fmt.Sprintf("  - %s [%s] %d items\n", g.DisplayName, g.Kind, g.Items))
	}

	b.WriteString(fmt.Sprintf("\n(took %dms)\n", resp.DurationMs))

	return b.String(), nil
}

// formatStatusHuman formats a StatusResponseCLI in human-readable format
func formatStatusHuman(resp *StatusResponseCLI) (string, error) {
	var b strings.Builder

	b.WriteString(fmt.Sprintf("bimdex Status - v%s\n", resp.BimdexVersion))
	b.WriteString(strings.Repeat("=", 60) + "\n\n")

	b.WriteString(fmt.Sprintf("Workspace: %s\n", resp.WorkRoot))
	if resp.ConfigFound {
		b.WriteString(fmt.Sprintf("✓ Config: %s\n\n", resp.ConfigPath))
	} else {
		b.WriteString("✗ Config: not found, using defaults\n\n")
	}

	b.WriteString("Inputs:\n")
	b.WriteString(formatInputLine("Snapshot", resp.Snapshot))
	b.WriteString(formatInputLine("Metadata", resp.Metadata))
	b.WriteString("\n")

	if resp.History != nil {
		b.WriteString("History:\n")
		if !resp.History.Enabled {
			b.WriteString("  Disabled\n")
		} else {
			b.WriteString(fmt.Sprintf("  Records: %d\n", resp.History.Records))
			if resp.History.LastLoad != nil {
				b.WriteString(fmt.Sprintf("  Last Load: %s (match rate %.1f%%)\n",
					formatTimeAgo(resp.History.LastLoad.RecordedAt),
					resp.History.LastLoad.MatchRate*100))
			}
		}
		b.WriteString("\n")
	}

	b.WriteString("Server:\n")
	b.WriteString(fmt.Sprintf("  Address: %s:%d\n", resp.Server.Bind, resp.Server.Port))
	authText := "disabled"
	if resp.Server.AuthEnabled {
		authText = "enabled"
	}
	b.WriteString(fmt.Sprintf("  Auth: %s\n", authText))
	metricsText := "disabled"
	if resp.Server.MetricsEnabled {
		metricsText = "enabled"
	}
	b.WriteString(fmt.Sprintf("  Metrics: %s\n\n", metricsText))

	b.WriteString("Watch:\n")
	if resp.Watch.Enabled {
		b.WriteString(fmt.Sprintf("  Enabled: poll %dms, debounce %dms\n",
			resp.Watch.PollIntervalMs, resp.Watch.DebounceMs))
	} else {
		b.WriteString("  Disabled\n")
	}

	return b.String(), nil
}

// formatStatsHuman formats a StatsResponseCLI in human-readable format
func formatStatsHuman(resp *StatsResponseCLI) (string, error) {
	var b strings.Builder

	b.WriteString("Scene Statistics\n")
	b.WriteString(strings.Repeat("=", 60) + "\n\n")

	b.WriteString(fmt.Sprintf("Load ID:  %s\n", resp.LoadID))
	b.WriteString(fmt.Sprintf("Snapshot: %s\n", resp.Snapshot))
	if resp.Metadata != "" {
		b.WriteString(fmt.Sprintf("Metadata: %s\n", resp.Metadata))
	}
	b.WriteString("\n")

	b.WriteString("Scene:\n")
	b.WriteString(fmt.Sprintf("  Nodes: %d\n", resp.Scene.NodeCount))
	b.WriteString(fmt.Sprintf("  Renderable: %d\n", resp.Scene.RenderableCount))
	b.WriteString(fmt.Sprintf("  Groups: %d\n", resp.Scene.GroupCount))
	b.WriteString(fmt.Sprintf("  Triangles: %d\n", resp.Scene.TriangleCount))
	b.WriteString(fmt.Sprintf("  Text-like: %d\n\n", resp.TextLike))

	b.WriteString("Correlation:\n")
	b.WriteString(fmt.Sprintf("  Metadata Records: %d\n", resp.MetadataRecords))
	b.WriteString(fmt.Sprintf("  Matched: %d (%.1f%%)\n", resp.Matched, resp.MatchRate*100))
	b.WriteString(fmt.Sprintf("  Unmatched: %d\n", resp.Unmatched))
	if len(resp.MatchMethods) > 0 {
		methods := make([]string, 0, len(resp.MatchMethods))
		for method := range resp.MatchMethods {
			methods = append(methods, method)
		}
		sort.Strings(methods)
		parts := make([]string, 0, len(methods))
		for _, method := range methods {
			parts = append(parts, fmt.Sprintf("%s=%d", method, resp.MatchMethods[method]))
		}
		b.WriteString(fmt.Sprintf("  By Method: %s\n", strings.Join(parts, ", ")))
	}
	b.WriteString("\n")

	b.WriteString(fmt.Sprintf("Tree: %d groups, %d category buckets\n", resp.Groups, resp.Categories))
	b.WriteString(fmt.Sprintf("\n(load took %dms)\n", resp.DurationMs))

	return b.String(), nil
}

// formatInputLine renders one configured input file with its presence
func formatInputLine(label string, input *InputFileCLI) string {
	if input == nil || input.Path == "" {
		return fmt.Sprintf("  %s: not configured\n", label)
	}
	if !input.Exists {
		return fmt.Sprintf("  ✗ %s: %s (missing)\n", label, input.Path)
	}
	return fmt.Sprintf("  ✓ %s: %s (%s)\n", label, input.Path, formatBytes(input.SizeBytes))
}

// formatTreeHuman formats a TreeResponseCLI in human-readable format
func formatTreeHuman(resp *TreeResponseCLI) (string, error) {
	var b strings.Builder

	b.WriteString("Browse Tree\n")
	b.WriteString(strings.Repeat("=", 60) + "\n\n")
	b.WriteString(fmt.Sprintf("Snapshot: %s\n", resp.Snapshot))
	b.WriteString(fmt.Sprintf("Elements: %d\n\n", resp.Total))

	writeGroups(&b, resp.Groups)

	return b.String(), nil
}

// formatSearchHuman formats a SearchResponseCLI in human-readable format
func formatSearchHuman(resp *SearchResponseCLI) (string, error) {
	var b strings.Builder

	b.WriteString(fmt.Sprintf("Search Results for: %s\n", resp.Query))
	b.WriteString(strings.Repeat("=", 60) + "\n\n")
	b.WriteString(fmt.Sprintf("Found %d matches\n\n", resp.TotalMatches))

	writeGroups(&b, resp.Groups)

	if resp.Truncated {
		b.WriteString("(results truncated; raise --limit to see more)\n")
	}

	return b.String(), nil
}

// writeGroups renders tree groups with their element entries
func writeGroups(b *strings.Builder, groups []GroupCLI) {
	for _, g := range groups {
		b.WriteString(fmt.Sprintf("%s [%s] (%d items)\n", g.DisplayName, g.Kind, len(g.Items)))
		for _, e := range g.Items {
			hidden := ""
			if !e.Visible {
				hidden = " [hidden]"
			}
			b.WriteString(fmt.Sprintf("  - %s (%s)%s\n", e.DisplayName, e.Category, hidden))
		}
		b.WriteString("\n")
	}
}

// formatToggleHuman formats a ToggleResponseCLI in human-readable format
func formatToggleHuman(resp *ToggleResponseCLI) (string, error) {
	state := "hidden"
	if resp.Visible {
		state = "visible"
	}

	if resp.Scope == "group" {
		return fmt.Sprintf("Group %s is now %s (%d elements affected)\n", resp.ID, state, resp.Count), nil
	}
	return fmt.Sprintf("Node %s is now %s\n", resp.ID, state), nil
}

// formatHistoryHuman formats a HistoryListResponseCLI in human-readable format
func formatHistoryHuman(resp *HistoryListResponseCLI) (string, error) {
	var b strings.Builder

	b.WriteString("Load History\n")
	b.WriteString(strings.Repeat("=", 60) + "\n\n")

	if len(resp.Records) == 0 {
		b.WriteString("No loads recorded.\n")
		return b.String(), nil
	}

	b.WriteString(fmt.Sprintf("Showing %d of %d loads\n\n", len(resp.Records), resp.Total))

	for i, r := range resp.Records {
		b.WriteString(fmt.Sprintf("%d. %s (%s)\n", i+1, r.ID, formatTimeAgo(r.RecordedAt)))
		b.WriteString(fmt.Sprintf("   Snapshot: %s\n", r.SnapshotPath))
		b.WriteString(fmt.Sprintf("   Matched: %d/%d renderable (%.1f%%), %d groups, %d categories\n",
			r.Matched, r.RenderableCount, r.MatchRate*100, r.Groups, r.Categories))
		b.WriteString(fmt.Sprintf("   Duration: %dms\n\n", r.DurationMs))
	}

	return b.String(), nil
}

// formatReplayHuman formats a HistoryReplayResponseCLI in human-readable format
func formatReplayHuman(resp *HistoryReplayResponseCLI) (string, error) {
	var b strings.Builder

	b.WriteString(fmt.Sprintf("Replay of load %s (recorded %s)\n", resp.OriginalID, formatTimeAgo(resp.RecordedAt)))
	b.WriteString(strings.Repeat("=", 60) + "\n\n")

	if resp.Replay != nil {
		b.WriteString(fmt.Sprintf("New Load ID: %s\n", resp.Replay.LoadID))
		b.WriteString(fmt.Sprintf("Scene: %d nodes (%d renderable), %d triangles\n",
			resp.Replay.Scene.NodeCount, resp.Replay.Scene.RenderableCount, resp.Replay.Scene.TriangleCount))
		b.WriteString(fmt.Sprintf("Matched: %d of %d records (%.1f%%)\n\n",
			resp.Replay.Matched, resp.Replay.MetadataRecords, resp.Replay.MatchRate*100))
	}

	if resp.SnapshotChanged {
		b.WriteString("⚠ Snapshot content changed since the load was recorded\n")
	}
	if resp.MetadataChanged {
		b.WriteString("⚠ Metadata content changed since the load was recorded\n")
	}

	if resp.StatsMatch {
		b.WriteString("✓ Statistics match the recorded load\n")
	} else {
		b.WriteString("✗ Statistics differ from the recorded load:\n")
		for _, diff := range resp.Differences {
			b.WriteString(fmt.Sprintf("  - %s\n", diff))
		}
	}

	return b.String(), nil
}

// formatDoctorHuman formats a DoctorResponseCLI in human-readable format
func formatDoctorHuman(resp *DoctorResponseCLI) (string, error) {
	var b strings.Builder

	b.WriteString("bimdex Doctor\n")
	b.WriteString(strings.Repeat("=", 60) + "\n\n")

	healthIcon := "✓"
	healthText := "All checks passed"
	if !resp.Healthy {
		healthIcon = "✗"
		healthText = "Issues found"
	}
	b.WriteString(fmt.Sprintf("%s %s\n\n", healthIcon, healthText))

	for _, check := range resp.Checks {
		var icon string
		switch check.Status {
		case "pass":
			icon = "✓"
		case "warn":
			icon = "⚠"
		case "fail":
			icon = "✗"
		default:
			icon = "?"
		}

		b.WriteString(fmt.Sprintf("%s %s: %s\n", icon, check.Name, check.Message))

		if len(check.SuggestedFixes) > 0 {
			b.WriteString("  Suggested fixes:\n")
			for _, fix := range check.SuggestedFixes {
				b.WriteString(fmt.Sprintf("    - %s\n", fix.Description))
				if fix.Command != "" {
					b.WriteString(fmt.Sprintf("      $ %s\n", fix.Command))
				}
			}
		}
		b.WriteString("\n")
	}

	return b.String(), nil
}

// formatBytes formats byte size in human-readable format
func formatBytes(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(bytes)/float64(div), "KMGTPE"[exp])
}

// formatTimeAgo formats a time as "Xm ago", "Xh ago", etc.
func formatTimeAgo(t time.Time) string {
	d := time.Since(t)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	case d < 7*24*time.Hour:
		return fmt.Sprintf("%dd ago", int(d.Hours()/24))
	default:
		return t.Format("Jan 2")
	}
}

// printJSON outputs data as formatted JSON
func printJSON(data interface{}) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(data)
}
