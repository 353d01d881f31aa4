package report

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/ginjaninja78/posledger/internal/reconcile"
)

const divider = "================================================================================\n"

// WriteSummary writes the plain text summary to path.
func WriteSummary(result *reconcile.Result, startedAt time.Time, path string) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create summary file: %w", err)
	}
	defer file.Close()

	writer := bufio.NewWriter(file)
	if err := PrintSummary(writer, result, startedAt); err != nil {
		return err
	}
	if err := writer.Flush(); err != nil {
		return fmt.Errorf("failed to flush summary file: %w", err)
	}
	return nil
}

// PrintSummary renders the run summary. The sync command prints it to
// stdout as well.
func PrintSummary(w io.Writer, result *reconcile.Result, startedAt time.Time) error {
	mode := "sync"
	if result.ReadOnly {
		mode = "read-only"
	}

	_, err := fmt.Fprintf(w, "posledger - Run Summary\n"+
		divider+"\n"+
		"Run Information:\n"+
		"  Run ID:         %s\n"+
		"  Start Time:     %s\n"+
		"  Duration:       %s\n"+
		"  Window:         %s\n"+
		"  Mode:           %s\n\n"+
		"Sales:\n"+
		"  Built:          %d\n"+
		"  Valid:          %d\n"+
		"  Rejected:       %d\n"+
		"  Duplicates:     %d\n\n"+
		"Ledger:\n"+
		"  Sales invoices:      %d created, %d skipped\n"+
		"  Purchase invoices:   %d created, %d skipped\n"+
		"  Financial mutations: %d created, %d skipped\n"+
		"  Links:               %d created, %d skipped\n\n",
		result.RunID,
		startedAt.Format("2006-01-02 15:04:05"),
		result.Stats.ProcessingTime.String(),
		result.Window.String(),
		mode,
		result.Stats.SalesBuilt,
		result.Stats.SalesValid,
		result.Stats.SalesRejected,
		len(result.Duplicates),
		result.Invoices.Created, result.Invoices.Skipped,
		result.Purchases.Created, result.Purchases.Skipped,
		result.Mutations.Created, result.Mutations.Skipped,
		result.Links.Created, result.Links.Skipped,
	)
	if err != nil {
		return err
	}

	if result.Validation != nil && len(result.Validation.Errors) > 0 {
		fmt.Fprint(w, "Rejected Sales:\n")
		fmt.Fprint(w, "--------------------------------------------------------------------------------\n")
		for _, verr := range result.Validation.Errors {
			fmt.Fprintf(w, "  %s\n", verr.Error())
		}
		fmt.Fprint(w, "\n")
	}

	if result.Journal != nil && len(result.Journal.Actions) > 0 {
		fmt.Fprint(w, "Ledger Actions:\n")
		fmt.Fprint(w, "--------------------------------------------------------------------------------\n")
		for _, a := range result.Journal.Actions {
			prefix := ""
			if a.Noop {
				prefix = "NOOP "
			}
			fmt.Fprintf(w, "  %s%-18s %-30s %s\n", prefix, a.Kind, a.Reference, a.Amount.String())
		}
		fmt.Fprint(w, "\n")
	}

	_, err = fmt.Fprint(w, divider+"End of Summary\n")
	return err
}
