package main

import (
	"fmt"
	"os"
	"path/filepath"

	"bimdex/internal/config"
	"bimdex/internal/logging"

	"github.com/spf13/cobra"
)

var initForce bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize bimdex configuration",
	Long:  "Creates a .bimdex/ directory with default configuration in the current directory",
	RunE:  runInit,
}

func init() {
	initCmd.Flags().BoolVarP(&initForce, "force", "f", false, "Force reinitialization (removes existing .bimdex directory)")
	rootCmd.AddCommand(initCmd)
}

func runInit(cmd *cobra.Command, args []string) error {
	logger := logging.NewLogger(logging.Config{
		Format: logging.HumanFormat,
		Level:  logging.InfoLevel,
	})

	workRoot, err := getWorkRoot()
	if err != nil {
		return fmt.Errorf("failed to get current directory: %w", err)
	}

	// Check if .bimdex already exists
	workDir := filepath.Join(workRoot, config.WorkDirName)
	if _, statErr := os.Stat(workDir); statErr == nil {
		if !initForce {
			// Idempotent behavior: already initialized is success (CI-friendly)
			fmt.Println("bimdex already initialized.")
			fmt.Printf("Configuration at: %s\n", filepath.Join(workDir, "config.json"))
			fmt.Println("\nRun 'bimdex init --force' to reinitialize.")
			return nil
		}
		if removeErr := os.RemoveAll(workDir); removeErr != nil {
			return fmt.Errorf("failed to remove existing %s directory: %w", config.WorkDirName, removeErr)
		}
		logger.Info("Removed existing work directory", map[string]interface{}{
			"path": workDir,
		})
	}

	if mkdirErr := os.MkdirAll(workDir, 0755); mkdirErr != nil {
		return fmt.Errorf("failed to create %s directory: %w", config.WorkDirName, mkdirErr)
	}

	cfg := config.DefaultConfig()
	if err := cfg.Save(workRoot); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	configPath := filepath.Join(workDir, "config.json")
	logger.Info("bimdex initialized successfully", map[string]interface{}{
		"config_path": configPath,
	})

	fmt.Println("bimdex initialized successfully!")
	fmt.Printf("Configuration written to: %s\n", configPath)
	fmt.Println("\nNext steps:")
	fmt.Println("  1. Set scene.snapshot (and scene.metadata) in the config")
	fmt.Println("  2. Run 'bimdex doctor' to check your setup")
	fmt.Println("  3. Run 'bimdex load' to correlate the scene, or 'bimdex serve' for the HTTP API")

	return nil
}
