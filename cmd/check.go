package cmd

import (
	"context"
	"time"

	"github.com/ginjaninja78/posledger/internal/reconcile"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

// checkCmd represents the 'check' command.
var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Build and validate sales without touching the ledger",
	Long: `The check command reads the point-of-sale data of the selected window,
builds the sales and runs the validation rules. The ledger is not contacted.

It accepts the same window flags as sync.`,

	RunE: func(cmd *cobra.Command, args []string) error {
		return runCheck(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(checkCmd)

	checkCmd.Flags().StringVar(&startDate, "startdate", "", "First day of the window (DDMMYYYY)")
	checkCmd.Flags().StringVar(&endDate, "enddate", "", "End of the window, exclusive (DDMMYYYY)")
	checkCmd.Flags().BoolVar(&fromCache, "from-cache", false, "Read point-of-sale data from the snapshot cache")
}

func runCheck(ctx context.Context) error {
	startTime := time.Now()
	if ctx == nil {
		ctx = context.Background()
	}

	a, err := newApp(ctx, appOptions{fromCache: fromCache})
	if err != nil {
		return err
	}
	defer a.Close()

	window, err := resolveWindow(startTime, startDate, endDate, a.cfg.Sync.WindowDays)
	if err != nil {
		a.log.WithError(err).Error("invalid date flag")
		return err
	}

	result, err := a.engine.Check(ctx, reconcile.Options{
		RunID:     uuid.NewString(),
		Window:    window,
		ReadOnly:  true,
		FromCache: fromCache,
	})
	if err != nil {
		a.log.WithError(err).Error("check failed")
		return err
	}
	return a.finish(result, startTime)
}
