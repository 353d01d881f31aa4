package report

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ginjaninja78/posledger/internal/reconcile"
	"github.com/ginjaninja78/posledger/internal/sale"
	"github.com/ginjaninja78/posledger/internal/validation"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func testResult() *reconcile.Result {
	at := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	good := sale.Sale{
		Reference: "POS sale 42",
		Date:      at,
		Products: []sale.Product{{
			UnitPriceExclTax: decimal.NewFromInt(10),
			Quantity:         decimal.NewFromInt(1),
			TaxRate:          decimal.RequireFromString("0.21"),
			HasTaxRate:       true,
		}},
		Payments: []sale.Payment{{Method: "cash", Amount: decimal.RequireFromString("12.1")}},
	}
	bad := good
	bad.Reference = "POS sale 43"
	bad.Payments = []sale.Payment{{Method: "cash", Amount: decimal.NewFromInt(5)}}

	journal := &reconcile.Journal{Actions: []reconcile.Action{
		{Kind: reconcile.ActionInvoice, Reference: "POS sale 42", Detail: "si-1", Amount: decimal.RequireFromString("12.1")},
		{Kind: reconcile.ActionMutation, Reference: "POS sale 42", Detail: "payment for POS sale 42", Amount: decimal.RequireFromString("12.1"), Noop: true},
	}}

	return &reconcile.Result{
		RunID:  "run-1",
		Window: sale.Window{Start: at.Truncate(24 * time.Hour), End: at.Truncate(24 * time.Hour).Add(24 * time.Hour)},
		Sales:  []sale.Sale{good, bad},
		Validation: &validation.Result{
			Valid:          []sale.Sale{good},
			SalesValidated: 2,
			Rejected:       1,
			Errors: []*validation.ValidationError{{
				Severity:  validation.SeverityWarning,
				Reference: "POS sale 43",
				Rule:      validation.RuleAmount,
				Message:   "the amount of products is 12.1, but the payment is 5",
			}},
		},
		Invoices: reconcile.Outcome{Created: 1},
		Journal:  journal,
		Stats:    reconcile.Stats{SalesBuilt: 2, SalesValid: 1, SalesRejected: 1},
	}
}

func TestWriter_WritesWorkbookAndSummary(t *testing.T) {
	dir := t.TempDir()
	started := time.Date(2024, 3, 1, 10, 15, 0, 0, time.UTC)

	w := NewWriter(Options{Dir: dir, FileFormat: "sync_{timestamp}_{uuid}.xlsx"})
	path, err := w.Write(testResult(), started)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "sync_20240301_101500_run-1.xlsx"), path)

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{SheetSummary, SheetSales, SheetActions}, f.GetSheetList())

	sales, err := f.GetRows(SheetSales)
	require.NoError(t, err)
	require.Len(t, sales, 3)
	assert.Equal(t, "Reference", sales[0][0])
	assert.Equal(t, "POS sale 42", sales[1][0])
	assert.Equal(t, StatusSynced, sales[1][4])
	assert.Equal(t, "POS sale 43", sales[2][0])
	assert.Equal(t, StatusRejected, sales[2][4])
	assert.Equal(t, validation.RuleAmount, sales[2][5])

	actions, err := f.GetRows(SheetActions)
	require.NoError(t, err)
	require.Len(t, actions, 3)
	assert.Equal(t, reconcile.ActionInvoice, actions[1][0])
	assert.Equal(t, "yes", actions[1][4])
	assert.Equal(t, "no (read-only)", actions[2][4])

	text, err := os.ReadFile(filepath.Join(dir, "sync_20240301_101500_run-1.txt"))
	require.NoError(t, err)
	assert.Contains(t, string(text), "Run ID:         run-1")
	assert.Contains(t, string(text), "Sales invoices:      1 created, 0 skipped")
	assert.Contains(t, string(text), "POS sale 43")
}

func TestWriter_PrunesOldReports(t *testing.T) {
	dir := t.TempDir()
	old := filepath.Join(dir, "old.xlsx")
	require.NoError(t, os.WriteFile(old, []byte("x"), 0644))
	past := time.Now().Add(-30 * 24 * time.Hour)
	require.NoError(t, os.Chtimes(old, past, past))

	w := NewWriter(Options{Dir: dir, FileFormat: "sync_{uuid}", KeepDays: 7})
	_, err := w.Write(testResult(), time.Now())
	require.NoError(t, err)

	_, err = os.Stat(old)
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(filepath.Join(dir, "sync_run-1.xlsx"))
	assert.NoError(t, err)
}

func TestPrintSummary_ReadOnly(t *testing.T) {
	result := testResult()
	result.ReadOnly = true

	var buf bytes.Buffer
	require.NoError(t, PrintSummary(&buf, result, time.Now()))
	assert.Contains(t, buf.String(), "Mode:           read-only")
	assert.Contains(t, buf.String(), "NOOP financial_mutation")
}
