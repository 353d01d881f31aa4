// =============================================================================
// posledger - Reconciliation
// =============================================================================
//
// This package projects validated point-of-sale sales into the ledger. Every
// step is idempotent: the ledger itself is the record of what has been
// synced, matched by human-readable references and messages.
//
// STEPS:
//   InvoiceSync   one sales invoice per sale, keyed by the sale reference
//   PurchaseSync  one purchase invoice per sale with card fees
//   MutationSync  one financial mutation per payment, keyed by message
//   Linker        links every unlinked mutation to its booking exactly once
//
// Each synchronizer reports an Outcome. A Stale outcome tells the Engine to
// download the affected snapshot again before the Linker runs.
//
// =============================================================================

package reconcile

import (
	"context"

	"github.com/ginjaninja78/posledger/internal/ledger"
	"github.com/ginjaninja78/posledger/internal/resolve"
	"github.com/ginjaninja78/posledger/internal/sale"
	"github.com/shopspring/decimal"
)

// Ledger is the part of the ledger API the reconciliation needs.
type Ledger interface {
	Contacts(ctx context.Context) ([]ledger.Contact, error)
	FinancialAccounts(ctx context.Context) ([]ledger.FinancialAccount, error)
	LedgerAccounts(ctx context.Context) ([]ledger.LedgerAccount, error)
	TaxRates(ctx context.Context) ([]ledger.TaxRate, error)
	SalesInvoices(ctx context.Context, p ledger.Period) ([]ledger.SalesInvoice, error)
	PurchaseInvoices(ctx context.Context, p ledger.Period) ([]ledger.PurchaseInvoice, error)
	FinancialMutations(ctx context.Context, p ledger.Period) ([]ledger.FinancialMutation, error)

	CreateSalesInvoice(ctx context.Context, req ledger.SalesInvoiceRequest) (ledger.SalesInvoice, error)
	SendInvoice(ctx context.Context, invoiceID string) error
	CreatePurchaseInvoice(ctx context.Context, req ledger.PurchaseInvoiceRequest) (ledger.PurchaseInvoice, error)
	CreateFinancialStatement(ctx context.Context, req ledger.FinancialStatementRequest) (ledger.FinancialStatement, error)
	LinkBooking(ctx context.Context, mutationID string, link ledger.BookingLink) error
}

// Lookups resolves configured names to ledger ids.
type Lookups struct {
	Contacts          *resolve.Names
	LedgerAccounts    *resolve.Names
	FinancialAccounts *resolve.Names
	TaxRates          *resolve.TaxRates
}

// Outcome is the result of one synchronizer run.
type Outcome struct {
	Created int
	Skipped int

	// Stale is set when the ledger changed and the matching snapshot must
	// be downloaded again.
	Stale bool
}

// =============================================================================
// JOURNAL
// =============================================================================

// Action kinds recorded in the journal.
const (
	ActionInvoice         = "sales_invoice"
	ActionSendInvoice     = "send_invoice"
	ActionPurchaseInvoice = "purchase_invoice"
	ActionMutation        = "financial_mutation"
	ActionLink            = "link"
)

// Action is one ledger change, performed or (read-only) planned.
type Action struct {
	Kind      string
	Reference string
	Detail    string
	Amount    decimal.Decimal
	Noop      bool
}

// Journal collects the actions of a run for the report.
type Journal struct {
	Actions []Action
}

func (j *Journal) add(a Action) {
	if j == nil {
		return
	}
	j.Actions = append(j.Actions, a)
}

// Count returns the number of actions of a kind.
func (j *Journal) Count(kind string) int {
	n := 0
	for _, a := range j.Actions {
		if a.Kind == kind {
			n++
		}
	}
	return n
}

// DedupeReferences keeps the first sale of every reference and returns the
// dropped duplicates.
func DedupeReferences(sales []sale.Sale) (unique []sale.Sale, dropped []sale.Sale) {
	seen := make(map[string]struct{}, len(sales))
	for _, s := range sales {
		if _, ok := seen[s.Reference]; ok {
			dropped = append(dropped, s)
			continue
		}
		seen[s.Reference] = struct{}{}
		unique = append(unique, s)
	}
	return unique, dropped
}
