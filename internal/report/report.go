// =============================================================================
// posledger - Run Report
// =============================================================================
//
// Every sync or check run can leave a report behind in report.dir:
//   - <name>.xlsx: one workbook with a Summary, a Sales and an Actions sheet
//   - <name>.txt:  a plain text summary of the same run
//
// SHEETS:
//   Summary  run id, window, mode and counters
//   Sales    every built sale with its totals and validation outcome
//   Actions  every ledger change, performed or planned (read-only)
//
// =============================================================================

package report

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/ginjaninja78/posledger/internal/reconcile"
	"github.com/ginjaninja78/posledger/internal/validation"
	"github.com/ginjaninja78/posledger/pkg/utils"
	"github.com/xuri/excelize/v2"
)

// Sheet names.
const (
	SheetSummary = "Summary"
	SheetSales   = "Sales"
	SheetActions = "Actions"
)

// Sale statuses in the Sales sheet.
const (
	StatusSynced    = "valid"
	StatusRejected  = "rejected"
	StatusDuplicate = "duplicate"
)

// Options configures the report writer.
type Options struct {
	Dir        string
	FileFormat string

	// KeepDays prunes reports older than this many days. 0 keeps all.
	KeepDays int
}

// Writer writes run reports.
type Writer struct {
	opts Options
}

// NewWriter creates a Writer.
func NewWriter(opts Options) *Writer {
	return &Writer{opts: opts}
}

// Write stores the workbook and the text summary and returns the workbook
// path. Old reports are pruned first.
func (w *Writer) Write(result *reconcile.Result, startedAt time.Time) (string, error) {
	if err := utils.EnsureDirectories(w.opts.Dir); err != nil {
		return "", err
	}
	if w.opts.KeepDays > 0 {
		maxAge := time.Duration(w.opts.KeepDays) * 24 * time.Hour
		if _, err := utils.CleanOldFiles(w.opts.Dir, maxAge, ".xlsx", ".txt"); err != nil {
			return "", err
		}
	}

	name := utils.GenerateFileName(w.opts.FileFormat, result.RunID, startedAt, ".xlsx")
	path := filepath.Join(w.opts.Dir, name)
	if err := WriteWorkbook(result, startedAt, path); err != nil {
		return "", err
	}
	if err := WriteSummary(result, startedAt, utils.ReplaceExt(path, ".txt")); err != nil {
		return "", err
	}
	return path, nil
}

// =============================================================================
// WORKBOOK
// =============================================================================

// WriteWorkbook writes the XLSX report to path.
func WriteWorkbook(result *reconcile.Result, startedAt time.Time, path string) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetSummary); err != nil {
		return fmt.Errorf("failed to create report: %w", err)
	}
	for _, sheet := range []string{SheetSales, SheetActions} {
		if _, err := f.NewSheet(sheet); err != nil {
			return fmt.Errorf("failed to create report: %w", err)
		}
	}

	header, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("failed to create report: %w", err)
	}

	if err := writeRows(f, SheetSummary, header, [][]any{{"Field", "Value"}}, summaryRows(result, startedAt)); err != nil {
		return err
	}
	if err := writeRows(f, SheetSales, header, [][]any{{"Reference", "Date", "Products total", "Payments total", "Status", "Rule", "Message"}}, salesRows(result)); err != nil {
		return err
	}
	if err := writeRows(f, SheetActions, header, [][]any{{"Kind", "Reference", "Detail", "Amount", "Performed"}}, actionRows(result)); err != nil {
		return err
	}

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("failed to save report %s: %w", path, err)
	}
	return nil
}

func writeRows(f *excelize.File, sheet string, headerStyle int, header, rows [][]any) error {
	all := append(header, rows...)
	for i, row := range all {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		values := row
		if err := f.SetSheetRow(sheet, cell, &values); err != nil {
			return fmt.Errorf("failed to write %s row %d: %w", sheet, i+1, err)
		}
	}
	if len(header) > 0 {
		last, err := excelize.CoordinatesToCellName(len(header[0]), 1)
		if err != nil {
			return err
		}
		if err := f.SetCellStyle(sheet, "A1", last, headerStyle); err != nil {
			return err
		}
	}
	return nil
}

func summaryRows(result *reconcile.Result, startedAt time.Time) [][]any {
	mode := "sync"
	if result.ReadOnly {
		mode = "read-only"
	}
	return [][]any{
		{"Run ID", result.RunID},
		{"Started", startedAt.Format("2006-01-02 15:04:05")},
		{"Window", result.Window.String()},
		{"Mode", mode},
		{"Sales built", result.Stats.SalesBuilt},
		{"Sales valid", result.Stats.SalesValid},
		{"Sales rejected", result.Stats.SalesRejected},
		{"Duplicate references", len(result.Duplicates)},
		{"Sales invoices created", result.Invoices.Created},
		{"Purchase invoices created", result.Purchases.Created},
		{"Financial mutations created", result.Mutations.Created},
		{"Links created", result.Links.Created},
		{"Processing time", result.Stats.ProcessingTime.String()},
	}
}

func salesRows(result *reconcile.Result) [][]any {
	rejected := make(map[string]*validation.ValidationError)
	if result.Validation != nil {
		for _, verr := range result.Validation.Errors {
			rejected[verr.Reference] = verr
		}
	}
	duplicates := make(map[string]int)
	for _, d := range result.Duplicates {
		duplicates[d.Reference]++
	}
	seen := make(map[string]bool)

	rows := make([][]any, 0, len(result.Sales))
	for _, s := range result.Sales {
		status, rule, message := StatusSynced, "", ""
		if verr, ok := rejected[s.Reference]; ok {
			status, rule, message = StatusRejected, verr.Rule, verr.Message
		} else if seen[s.Reference] && duplicates[s.Reference] > 0 {
			status = StatusDuplicate
			duplicates[s.Reference]--
		}
		seen[s.Reference] = true

		rows = append(rows, []any{
			s.Reference,
			s.Date.Format("2006-01-02 15:04:05"),
			s.ProductsTotal().InexactFloat64(),
			s.PaymentsTotal().InexactFloat64(),
			status,
			rule,
			message,
		})
	}
	return rows
}

func actionRows(result *reconcile.Result) [][]any {
	if result.Journal == nil {
		return nil
	}
	rows := make([][]any, 0, len(result.Journal.Actions))
	for _, a := range result.Journal.Actions {
		performed := "yes"
		if a.Noop {
			performed = "no (read-only)"
		}
		rows = append(rows, []any{a.Kind, a.Reference, a.Detail, a.Amount.InexactFloat64(), performed})
	}
	return rows
}
