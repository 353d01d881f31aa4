// =============================================================================
// posledger - Canonical Sale
// =============================================================================
//
// A Sale is the canonical, derived form of one point-of-sale transaction: the
// receipt, its ticket, the ticket lines and the payments joined into a single
// value. Sales are rebuilt from the raw collections on every run and never
// persisted as authoritative; the ledger decides what has been synced.
//
// =============================================================================

package sale

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Sale is one point-of-sale transaction.
type Sale struct {
	// Reference is generated from the ticket number and is the sync
	// idempotency key on the ledger side.
	Reference string    `json:"reference"`
	Date      time.Time `json:"date"`
	Products  []Product `json:"products"`
	Payments  []Payment `json:"payments"`
}

// Product is one ticket line.
type Product struct {
	LineNumber       int             `json:"line_number"`
	Description      string          `json:"description"`
	UnitPriceExclTax decimal.Decimal `json:"unit_price_excl_tax"`
	Quantity         decimal.Decimal `json:"quantity"`

	// TaxRate is a fraction between 0 and 1. It is only meaningful when
	// HasTaxRate is set.
	TaxRate     decimal.Decimal `json:"tax_rate"`
	TaxCategory string          `json:"tax_category"`
	HasTaxRate  bool            `json:"has_tax_rate"`
}

// Payment is one payment of a sale.
type Payment struct {
	Method              string          `json:"method"`
	Amount              decimal.Decimal `json:"amount"`
	SourceTransactionID string          `json:"source_transaction_id"`
}

// UnitPriceInclTax returns the unit price including tax.
func (p Product) UnitPriceInclTax() decimal.Decimal {
	return p.UnitPriceExclTax.Mul(decimal.NewFromInt(1).Add(p.TaxRate))
}

// Total returns the line total including tax.
func (p Product) Total() decimal.Decimal {
	return p.UnitPriceInclTax().Mul(p.Quantity)
}

// ProductsTotal sums the tax-inclusive totals of all products.
func (s Sale) ProductsTotal() decimal.Decimal {
	total := decimal.Zero
	for _, p := range s.Products {
		total = total.Add(p.Total())
	}
	return total
}

// PaymentsTotal sums all payment amounts.
func (s Sale) PaymentsTotal() decimal.Decimal {
	total := decimal.Zero
	for _, p := range s.Payments {
		total = total.Add(p.Amount)
	}
	return total
}

// Window is a half-open time range [Start, End).
type Window struct {
	Start time.Time
	End   time.Time
}

// Contains reports whether t lies in the window.
func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.Start) && t.Before(w.End)
}

func (w Window) String() string {
	return fmt.Sprintf("[%s, %s)", w.Start.Format("2006-01-02"), w.End.Format("2006-01-02"))
}

// LookupError is returned when a ticket line refers to a tax category that
// the tax table does not contain. It aborts the run.
type LookupError struct {
	Category string
	Ticket   string
	Line     int
}

func (e *LookupError) Error() string {
	return fmt.Sprintf("cannot find tax category %q (ticket %s, line %d)", e.Category, e.Ticket, e.Line)
}
