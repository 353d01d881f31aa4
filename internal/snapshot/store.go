// =============================================================================
// posledger - Snapshot Cache
// =============================================================================
//
// Every collection downloaded during a run (point-of-sale tables and ledger
// collections) is written to a snapshot store under its collection name. The
// snapshots make a run inspectable afterwards and let `sync --from-cache`
// rebuild sales without touching the point-of-sale database.
//
// BACKENDS:
//   - FileStore:  one <name>.json file per collection in a directory
//   - RedisStore: one key per collection, <prefix><name>
//
// Values are JSON. Callers never depend on the encoding.
//
// =============================================================================

package snapshot

import (
	"context"
	"errors"
	"time"
)

// Collection names.
const (
	Tickets            = "unicenta_tickets"
	TicketLines        = "unicenta_ticketlines"
	Receipts           = "unicenta_receipts"
	Payments           = "unicenta_payments"
	Taxes              = "unicenta_taxes"
	Contacts           = "ledger_contacts"
	FinancialAccounts  = "ledger_financial_accounts"
	LedgerAccounts     = "ledger_ledger_accounts"
	TaxRates           = "ledger_tax_rates"
	SalesInvoices      = "ledger_sales_invoices"
	PurchaseInvoices   = "ledger_purchase_invoices"
	FinancialMutations = "ledger_financial_mutations"
)

// ErrNotFound is returned by Load when no snapshot exists for a name.
var ErrNotFound = errors.New("snapshot not found")

// Store saves and loads named snapshots.
type Store interface {
	Save(ctx context.Context, name string, v any) error
	Load(ctx context.Context, name string, v any) error
}

// Lock is a held run lock.
type Lock interface {
	Refresh(ctx context.Context, ttl time.Duration) error
	Release(ctx context.Context) error
}
