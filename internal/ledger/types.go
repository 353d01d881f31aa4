package ledger

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Booking types accepted by the link_booking endpoint.
const (
	BookingSalesInvoice  = "SalesInvoice"
	BookingDocument      = "Document"
	BookingLedgerAccount = "LedgerAccount"
)

// Tax rate types.
const (
	TaxRateSales    = "sales_invoice"
	TaxRatePurchase = "purchase_invoice"
)

// Contact is a ledger contact. Point-of-sale bookings use companies only.
type Contact struct {
	ID          string `json:"id"`
	CompanyName string `json:"company_name"`
	Firstname   string `json:"firstname,omitempty"`
	Lastname    string `json:"lastname,omitempty"`
}

// FinancialAccount is a bank or payment provider account.
type FinancialAccount struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Type string `json:"type,omitempty"`
}

// LedgerAccount is a general ledger account.
type LedgerAccount struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	AccountType string `json:"account_type,omitempty"`
}

// TaxRate is a ledger tax rate. The zero rate has no percentage.
type TaxRate struct {
	ID          string              `json:"id"`
	Name        string              `json:"name"`
	Percentage  decimal.NullDecimal `json:"percentage"`
	TaxRateType string              `json:"tax_rate_type"`
	Active      bool                `json:"active"`
}

// InvoiceDetail is one line of a sales or purchase invoice.
type InvoiceDetail struct {
	ID              string          `json:"id,omitempty"`
	Description     string          `json:"description"`
	Price           decimal.Decimal `json:"price"`
	Amount          string          `json:"amount,omitempty"`
	TaxRateID       string          `json:"tax_rate_id"`
	LedgerAccountID string          `json:"ledger_account_id"`
}

// SalesInvoice mirrors a ledger sales invoice.
type SalesInvoice struct {
	ID                string          `json:"id"`
	Reference         string          `json:"reference"`
	ContactID         string          `json:"contact_id"`
	InvoiceDate       string          `json:"invoice_date"`
	State             string          `json:"state,omitempty"`
	TotalPriceInclTax decimal.Decimal `json:"total_price_incl_tax"`
	Details           []InvoiceDetail `json:"details,omitempty"`
}

// PurchaseInvoice mirrors a ledger purchase invoice document.
type PurchaseInvoice struct {
	ID                string          `json:"id"`
	Reference         string          `json:"reference"`
	ContactID         string          `json:"contact_id"`
	Date              string          `json:"date"`
	TotalPriceInclTax decimal.Decimal `json:"total_price_incl_tax"`
}

// MutationPayment is a payment booked on a mutation. A non-empty list means
// the mutation is linked to an invoice.
type MutationPayment struct {
	ID          string          `json:"id"`
	InvoiceType string          `json:"invoice_type"`
	InvoiceID   string          `json:"invoice_id"`
	Price       decimal.Decimal `json:"price"`
}

// LedgerAccountBooking is a booking of a mutation on a ledger account.
type LedgerAccountBooking struct {
	ID              string          `json:"id"`
	LedgerAccountID string          `json:"ledger_account_id"`
	Price           decimal.Decimal `json:"price"`
}

// FinancialMutation is one line on a financial account statement.
type FinancialMutation struct {
	ID                    string                 `json:"id"`
	FinancialAccountID    string                 `json:"financial_account_id"`
	Date                  string                 `json:"date"`
	Message               string                 `json:"message"`
	Amount                decimal.Decimal        `json:"amount"`
	Payments              []MutationPayment      `json:"payments"`
	LedgerAccountBookings []LedgerAccountBooking `json:"ledger_account_bookings"`
}

// FinancialStatement groups mutations posted together.
type FinancialStatement struct {
	ID                 string              `json:"id"`
	Reference          string              `json:"reference"`
	FinancialAccountID string              `json:"financial_account_id"`
	FinancialMutations []FinancialMutation `json:"financial_mutations"`
}

// =============================================================================
// REQUESTS
// =============================================================================

// SalesInvoiceRequest creates a sales invoice.
type SalesInvoiceRequest struct {
	Reference        string          `json:"reference"`
	InvoiceDate      string          `json:"invoice_date"`
	ContactID        string          `json:"contact_id"`
	PricesAreInclTax bool            `json:"prices_are_incl_tax"`
	Details          []InvoiceDetail `json:"details_attributes"`
}

// PurchaseInvoiceRequest creates a purchase invoice document.
type PurchaseInvoiceRequest struct {
	Reference        string          `json:"reference"`
	Date             string          `json:"date"`
	ContactID        string          `json:"contact_id"`
	PricesAreInclTax bool            `json:"prices_are_incl_tax"`
	Details          []InvoiceDetail `json:"details_attributes"`
}

// MutationRequest is one mutation of a new financial statement.
type MutationRequest struct {
	Date    string          `json:"date"`
	Message string          `json:"message"`
	Amount  decimal.Decimal `json:"amount"`
}

// FinancialStatementRequest creates a statement holding new mutations.
type FinancialStatementRequest struct {
	Reference          string
	FinancialAccountID string
	Mutations          []MutationRequest
}

// BookingLink attaches a mutation to an invoice, document or ledger account.
type BookingLink struct {
	BookingType string          `json:"booking_type"`
	BookingID   string          `json:"booking_id"`
	PriceBase   decimal.Decimal `json:"price_base"`
}

// Period is an inclusive date range used by the ledger's period filter.
type Period struct {
	Start time.Time
	End   time.Time
}

// Filter renders the period as "period:YYYYMMDD..YYYYMMDD".
func (p Period) Filter() string {
	return fmt.Sprintf("period:%s..%s", p.Start.Format("20060102"), p.End.Format("20060102"))
}

// FormatDate renders a date the way the ledger expects it.
func FormatDate(t time.Time) string {
	return t.Format("2006-01-02")
}
