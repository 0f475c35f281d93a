package main

import (
	"bimdex/internal/version"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "bimdex",
	Short: "bimdex - BIM scene metadata correlation engine",
	Long: `bimdex correlates exported BIM scene graphs with their element metadata:
it matches renderable nodes to metadata records, derives display names,
classifies discipline categories, and exposes the resulting browse tree
through the CLI and an HTTP API.`,
	Version: version.Version,
}

func init() {
	rootCmd.SetVersionTemplate("bimdex version {{.Version}}\n")
}
