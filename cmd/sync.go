// =============================================================================
// posledger - Sync Command
// =============================================================================
//
// This file defines the 'sync' command, which reconciles the point-of-sale
// sales of a date window with the ledger.
//
// COMMAND USAGE:
//   posledger sync [flags]
//
// FLAGS:
//   --noop, -n    : Read everything, change nothing, log what would be done
//   --startdate   : First day of the window, DDMMYYYY
//   --enddate     : Day after the last day of the window, DDMMYYYY
//   --from-cache  : Rebuild sales from the cached point-of-sale collections
//
// PROCESSING PIPELINE:
//   1. Load configuration and set up logging
//   2. Resolve the sale window from the flags
//   3. Connect the database, the ledger and the snapshot cache
//   4. Run the reconciliation engine
//   5. Print the summary and write the run report
//
// =============================================================================

package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ginjaninja78/posledger/internal/reconcile"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

// =============================================================================
// COMMAND FLAGS
// =============================================================================

// noop runs the sync read-only.
var noop bool

// startDate and endDate override the default window.
var startDate, endDate string

// fromCache reads the point-of-sale collections from the snapshot cache.
var fromCache bool

// =============================================================================
// SYNC COMMAND DEFINITION
// =============================================================================

// syncCmd represents the 'sync' command.
var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Push point-of-sale sales into the ledger",
	Long: `The sync command builds the sales of the selected window from the
point-of-sale database and makes sure the ledger holds their invoices,
payments, fees and links.

Without --startdate and --enddate the window runs from sync.window_days
days before today up to and including today.

With --noop nothing is written to the ledger; every change that would be
made is logged and listed in the report.`,

	RunE: func(cmd *cobra.Command, args []string) error {
		return runSync(cmd.Context())
	},
}

// =============================================================================
// INITIALIZATION
// =============================================================================

func init() {
	rootCmd.AddCommand(syncCmd)

	syncCmd.Flags().BoolVarP(&noop, "noop", "n", false, "Do not change anything in the ledger")
	syncCmd.Flags().StringVar(&startDate, "startdate", "", "First day of the window (DDMMYYYY)")
	syncCmd.Flags().StringVar(&endDate, "enddate", "", "End of the window, exclusive (DDMMYYYY)")
	syncCmd.Flags().BoolVar(&fromCache, "from-cache", false, "Read point-of-sale data from the snapshot cache")
}

// =============================================================================
// MAIN PROCESSING FUNCTION
// =============================================================================

// runSync orchestrates one sync run.
func runSync(parent context.Context) error {
	startTime := time.Now()

	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	// =========================================================================
	// STEP 1: SET UP
	// =========================================================================

	a, err := newApp(ctx, appOptions{withLedger: true, fromCache: fromCache})
	if err != nil {
		return err
	}
	defer a.Close()

	// =========================================================================
	// STEP 2: RESOLVE THE WINDOW
	// =========================================================================

	window, err := resolveWindow(startTime, startDate, endDate, a.cfg.Sync.WindowDays)
	if err != nil {
		a.log.WithError(err).Error("invalid date flag")
		return err
	}

	runID := uuid.NewString()
	log := a.log.WithField("run_id", runID)
	log.WithField("window", window.String()).WithField("noop", noop).Info("starting sync")

	// =========================================================================
	// STEP 3: RUN
	// =========================================================================

	result, err := a.engine.Run(ctx, reconcile.Options{
		RunID:     runID,
		Window:    window,
		ReadOnly:  noop,
		FromCache: fromCache,
	})
	if err != nil {
		log.WithError(err).Error("sync failed")
		return err
	}

	// =========================================================================
	// STEP 4: SUMMARY AND REPORT
	// =========================================================================

	return a.finish(result, startTime)
}
