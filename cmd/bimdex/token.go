package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"bimdex/internal/auth"
	"bimdex/internal/config"
)

var tokenFormat string

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Manage the API token for the HTTP server",
	Long: `Generate, verify, and disable the bearer token used to authenticate
requests against the bimdex HTTP server.

Only the bcrypt hash of the token is stored in the workspace config;
the token itself is shown once at generation time.

Examples:
  bimdex token generate
  bimdex token verify bimdex_sk_abc123...
  bimdex token disable`,
}

var tokenGenerateCmd = &cobra.Command{
	Use:     "generate",
	Aliases: []string{"create"},
	Short:   "Generate a new API token and enable auth",
	Long: `Generate a new API token, store its hash in the workspace config, and
enable authentication on the HTTP server.

Generating a new token replaces any previously issued one.

Examples:
  bimdex token generate
  bimdex token generate --format json`,
	Run: runTokenGenerate,
}

var tokenVerifyCmd = &cobra.Command{
	Use:   "verify <token>",
	Short: "Check a token against the stored hash",
	Long: `Check whether a token matches the hash stored in the workspace config.

Exits with status 0 when the token is valid, 1 otherwise.

Examples:
  bimdex token verify bimdex_sk_abc123...`,
	Args: cobra.ExactArgs(1),
	Run:  runTokenVerify,
}

var tokenDisableCmd = &cobra.Command{
	Use:   "disable",
	Short: "Disable authentication",
	Long: `Disable authentication on the HTTP server and remove the stored
token hash from the workspace config.

Examples:
  bimdex token disable`,
	Run: runTokenDisable,
}

func init() {
	tokenCmd.PersistentFlags().StringVar(&tokenFormat, "format", "human", "Output format (json, human)")

	tokenCmd.AddCommand(tokenGenerateCmd)
	tokenCmd.AddCommand(tokenVerifyCmd)
	tokenCmd.AddCommand(tokenDisableCmd)
	rootCmd.AddCommand(tokenCmd)
}

func runTokenGenerate(cmd *cobra.Command, args []string) {
	logger := newLogger(tokenFormat)
	workRoot := mustGetWorkRoot()
	cfg := loadWorkConfig(workRoot, logger)

	token, err := auth.GenerateToken()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error generating token: %v\n", err)
		os.Exit(1)
	}

	hash, err := auth.HashToken(token)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error hashing token: %v\n", err)
		os.Exit(1)
	}

	cfg.Server.Auth.Enabled = true
	cfg.Server.Auth.TokenHash = hash

	if err := saveWorkConfig(cfg, workRoot); err != nil {
		fmt.Fprintf(os.Stderr, "Error saving config: %v\n", err)
		os.Exit(1)
	}

	if tokenFormat == "json" {
		printJSON(map[string]interface{}{
			"token":       token,
			"authEnabled": true,
		})
	} else {
		fmt.Println("API Token Generated:")
		fmt.Println()
		fmt.Printf("  Token: %s\n", token)
		fmt.Println()
		fmt.Println("  IMPORTANT: Store this token securely. It will not be shown again.")
		fmt.Println()
		fmt.Println("  Authentication is now enabled. Pass the token as:")
		fmt.Println("    Authorization: Bearer <token>")
	}
}

func runTokenVerify(cmd *cobra.Command, args []string) {
	logger := newLogger(tokenFormat)
	workRoot := mustGetWorkRoot()
	cfg := loadWorkConfig(workRoot, logger)

	token := args[0]

	if cfg.Server.Auth.TokenHash == "" {
		fmt.Fprintln(os.Stderr, "Error: no token configured (run 'bimdex token generate' first)")
		os.Exit(1)
	}

	valid := auth.IsValidTokenFormat(token) && auth.VerifyToken(token, cfg.Server.Auth.TokenHash)

	if tokenFormat == "json" {
		printJSON(map[string]interface{}{
			"token": auth.MaskToken(token),
			"valid": valid,
		})
	} else {
		if valid {
			fmt.Printf("Token %s is valid.\n", auth.MaskToken(token))
		} else {
			fmt.Printf("Token %s is NOT valid.\n", auth.MaskToken(token))
		}
	}

	if !valid {
		os.Exit(1)
	}
}

func runTokenDisable(cmd *cobra.Command, args []string) {
	logger := newLogger(tokenFormat)
	workRoot := mustGetWorkRoot()
	cfg := loadWorkConfig(workRoot, logger)

	cfg.Server.Auth.Enabled = false
	cfg.Server.Auth.TokenHash = ""

	if err := saveWorkConfig(cfg, workRoot); err != nil {
		fmt.Fprintf(os.Stderr, "Error saving config: %v\n", err)
		os.Exit(1)
	}

	if tokenFormat == "json" {
		printJSON(map[string]interface{}{
			"authEnabled": false,
		})
	} else {
		fmt.Println("Authentication disabled. The stored token hash was removed.")
	}
}

// saveWorkConfig writes the config back to the workspace, creating the
// work directory if needed.
func saveWorkConfig(cfg *config.Config, workRoot string) error {
	if err := os.MkdirAll(filepath.Join(workRoot, config.WorkDirName), 0755); err != nil {
		return err
	}
	return cfg.Save(workRoot)
}
