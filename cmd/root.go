// =============================================================================
// posledger - Root Command
// =============================================================================
//
// This file defines the root command for the Cobra CLI. Every other command
// is attached to it.
//
// COBRA CLI STRUCTURE:
//   rootCmd (posledger)
//   ├── syncCmd    (posledger sync)
//   ├── checkCmd   (posledger check)
//   └── versionCmd (posledger version)
//
// The root command owns the global flags and builds the configuration and
// the logger shared by the subcommands.
//
// =============================================================================

package cmd

import (
	"fmt"
	"os"

	"github.com/ginjaninja78/posledger/internal/config"
	"github.com/ginjaninja78/posledger/internal/logging"
	"github.com/spf13/cobra"
)

// =============================================================================
// GLOBAL VARIABLES
// =============================================================================

// cfgFile holds the path to the configuration file.
var cfgFile string

// verbose raises the console log level to info.
var verbose bool

// =============================================================================
// ROOT COMMAND DEFINITION
// =============================================================================

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "posledger",
	Short: "posledger - Push point-of-sale sales into the bookkeeping ledger",
	Long: `posledger reads the sales of a uniCenta point-of-sale database and
reconciles them with a Moneybird administration.

For every sale in the selected window it makes sure the ledger holds:
  - a sales invoice carrying the sale reference
  - one financial mutation per payment, on the configured financial account
  - a purchase invoice for card payment fees
  - a link between each mutation and its invoice or ledger account

Runs are idempotent: whatever already exists in the ledger is left alone.

Example Usage:
  posledger sync                                   # Sync yesterday and today
  posledger sync --noop --verbose                  # Show what would change
  posledger sync --startdate 01032024 --enddate 08032024
  posledger check                                  # Build and validate sales only`,

	// Errors are printed once by Execute.
	SilenceErrors: true,
	SilenceUsage:  true,

	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

// =============================================================================
// EXECUTE FUNCTION
// =============================================================================

// Execute runs the root command. It is called by main.main() and exits with
// status 1 on any error.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// =============================================================================
// INITIALIZATION
// =============================================================================

func init() {
	// ==========================================================================
	// PERSISTENT FLAGS
	// ==========================================================================

	rootCmd.PersistentFlags().StringVar(
		&cfgFile,
		"config",
		"config.yaml",
		"Path to the configuration file",
	)

	rootCmd.PersistentFlags().BoolVarP(
		&verbose,
		"verbose",
		"v",
		false,
		"Log progress to the console",
	)
}

// =============================================================================
// SHARED SETUP
// =============================================================================

// loadRuntime loads the configuration and builds the logger. The caller must
// close the logger.
func loadRuntime() (*config.Config, *logging.Logger, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}

	log, err := logging.New(logging.Options{
		Level:   cfg.Logging.Level,
		Verbose: verbose,
		File:    cfg.Logging.File,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to set up logging: %w", err)
	}
	return cfg, log, nil
}
