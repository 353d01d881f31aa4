package reconcile

import (
	"context"
	"fmt"
	"testing"

	"github.com/ginjaninja78/posledger/internal/config"
	"github.com/ginjaninja78/posledger/internal/ledger"
	"github.com/ginjaninja78/posledger/internal/resolve"
	"github.com/ginjaninja78/posledger/internal/source"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

// fakeLedger is an in-memory ledger that behaves like the real API for the
// calls the reconciliation makes.
type fakeLedger struct {
	contacts          []ledger.Contact
	financialAccounts []ledger.FinancialAccount
	ledgerAccounts    []ledger.LedgerAccount
	taxRates          []ledger.TaxRate
	salesInvoices     []ledger.SalesInvoice
	purchaseInvoices  []ledger.PurchaseInvoice
	mutations         []ledger.FinancialMutation

	invoiceRequests   []ledger.SalesInvoiceRequest
	purchaseRequests  []ledger.PurchaseInvoiceRequest
	statementRequests []ledger.FinancialStatementRequest
	links             map[string][]ledger.BookingLink
	sent              []string

	nextID int
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{
		contacts: []ledger.Contact{
			{ID: "c-walkin", CompanyName: "Walk-in customer"},
			{ID: "c-fees", CompanyName: "Card provider"},
		},
		financialAccounts: []ledger.FinancialAccount{{ID: "fa-till", Name: "Till"}},
		ledgerAccounts: []ledger.LedgerAccount{
			{ID: "la-revenue", Name: "Revenue"},
			{ID: "la-clearing", Name: "Clearing"},
			{ID: "la-bankcosts", Name: "Bank costs"},
		},
		taxRates: []ledger.TaxRate{
			{ID: "tr-s0", Name: "Geen btw", TaxRateType: ledger.TaxRateSales},
			{ID: "tr-p0", Name: "Geen btw", TaxRateType: ledger.TaxRatePurchase},
			{ID: "tr-s21", Name: "21%", Percentage: decimal.NewNullDecimal(decimal.NewFromInt(21)), TaxRateType: ledger.TaxRateSales},
			{ID: "tr-s9", Name: "9%", Percentage: decimal.NewNullDecimal(decimal.NewFromInt(9)), TaxRateType: ledger.TaxRateSales},
		},
		links: make(map[string][]ledger.BookingLink),
	}
}

func (f *fakeLedger) id(prefix string) string {
	f.nextID++
	return fmt.Sprintf("%s-%d", prefix, f.nextID)
}

func (f *fakeLedger) Contacts(context.Context) ([]ledger.Contact, error) {
	return append([]ledger.Contact(nil), f.contacts...), nil
}

func (f *fakeLedger) FinancialAccounts(context.Context) ([]ledger.FinancialAccount, error) {
	return append([]ledger.FinancialAccount(nil), f.financialAccounts...), nil
}

func (f *fakeLedger) LedgerAccounts(context.Context) ([]ledger.LedgerAccount, error) {
	return append([]ledger.LedgerAccount(nil), f.ledgerAccounts...), nil
}

func (f *fakeLedger) TaxRates(context.Context) ([]ledger.TaxRate, error) {
	return append([]ledger.TaxRate(nil), f.taxRates...), nil
}

func (f *fakeLedger) SalesInvoices(context.Context, ledger.Period) ([]ledger.SalesInvoice, error) {
	return append([]ledger.SalesInvoice(nil), f.salesInvoices...), nil
}

func (f *fakeLedger) PurchaseInvoices(context.Context, ledger.Period) ([]ledger.PurchaseInvoice, error) {
	return append([]ledger.PurchaseInvoice(nil), f.purchaseInvoices...), nil
}

func (f *fakeLedger) FinancialMutations(context.Context, ledger.Period) ([]ledger.FinancialMutation, error) {
	out := make([]ledger.FinancialMutation, len(f.mutations))
	for i, m := range f.mutations {
		m.Payments = append([]ledger.MutationPayment(nil), m.Payments...)
		m.LedgerAccountBookings = append([]ledger.LedgerAccountBooking(nil), m.LedgerAccountBookings...)
		out[i] = m
	}
	return out, nil
}

func (f *fakeLedger) CreateSalesInvoice(_ context.Context, req ledger.SalesInvoiceRequest) (ledger.SalesInvoice, error) {
	f.invoiceRequests = append(f.invoiceRequests, req)
	total := decimal.Zero
	for _, d := range req.Details {
		amount, err := decimal.NewFromString(d.Amount)
		if err != nil {
			return ledger.SalesInvoice{}, err
		}
		total = total.Add(d.Price.Mul(amount))
	}
	inv := ledger.SalesInvoice{
		ID:                f.id("si"),
		Reference:         req.Reference,
		ContactID:         req.ContactID,
		InvoiceDate:       req.InvoiceDate,
		TotalPriceInclTax: total,
		Details:           req.Details,
	}
	f.salesInvoices = append(f.salesInvoices, inv)
	return inv, nil
}

func (f *fakeLedger) SendInvoice(_ context.Context, id string) error {
	f.sent = append(f.sent, id)
	return nil
}

func (f *fakeLedger) CreatePurchaseInvoice(_ context.Context, req ledger.PurchaseInvoiceRequest) (ledger.PurchaseInvoice, error) {
	f.purchaseRequests = append(f.purchaseRequests, req)
	inv := ledger.PurchaseInvoice{ID: f.id("pi"), Reference: req.Reference, ContactID: req.ContactID, Date: req.Date}
	f.purchaseInvoices = append(f.purchaseInvoices, inv)
	return inv, nil
}

func (f *fakeLedger) CreateFinancialStatement(_ context.Context, req ledger.FinancialStatementRequest) (ledger.FinancialStatement, error) {
	f.statementRequests = append(f.statementRequests, req)
	st := ledger.FinancialStatement{ID: f.id("st"), Reference: req.Reference, FinancialAccountID: req.FinancialAccountID}
	for _, m := range req.Mutations {
		mut := ledger.FinancialMutation{
			ID:                 f.id("fm"),
			FinancialAccountID: req.FinancialAccountID,
			Date:               m.Date,
			Message:            m.Message,
			Amount:             m.Amount,
		}
		f.mutations = append(f.mutations, mut)
		st.FinancialMutations = append(st.FinancialMutations, mut)
	}
	return st, nil
}

func (f *fakeLedger) LinkBooking(_ context.Context, mutationID string, link ledger.BookingLink) error {
	for i := range f.mutations {
		if f.mutations[i].ID != mutationID {
			continue
		}
		f.links[mutationID] = append(f.links[mutationID], link)
		switch link.BookingType {
		case ledger.BookingLedgerAccount:
			f.mutations[i].LedgerAccountBookings = append(f.mutations[i].LedgerAccountBookings,
				ledger.LedgerAccountBooking{ID: f.id("lab"), LedgerAccountID: link.BookingID, Price: link.PriceBase})
		default:
			f.mutations[i].Payments = append(f.mutations[i].Payments,
				ledger.MutationPayment{ID: f.id("pay"), InvoiceType: link.BookingType, InvoiceID: link.BookingID, Price: link.PriceBase})
		}
		return nil
	}
	return fmt.Errorf("mutation %s not found", mutationID)
}

func (f *fakeLedger) totalLinks() int {
	n := 0
	for _, l := range f.links {
		n += len(l)
	}
	return n
}

// staticSource serves fixed collections.
type staticSource struct {
	raw source.Collections
}

func (s *staticSource) Tickets(context.Context) ([]source.Ticket, error) { return s.raw.Tickets, nil }
func (s *staticSource) TicketLines(context.Context) ([]source.TicketLine, error) {
	return s.raw.TicketLines, nil
}
func (s *staticSource) Receipts(context.Context) ([]source.Receipt, error) { return s.raw.Receipts, nil }
func (s *staticSource) Payments(context.Context) ([]source.Payment, error) { return s.raw.Payments, nil }
func (s *staticSource) Taxes(context.Context) ([]source.Tax, error) { return s.raw.Taxes, nil }

func testConfig() *config.Config {
	return &config.Config{
		Source: config.SourceConfig{ReferenceFormat: "POS sale %d"},
		Ledger: config.LedgerConfig{
			WalkInContact:         "Walk-in customer",
			FeeContact:            "Card provider",
			FinancialAccount:      "Till",
			RevenueLedgerAccount:  "Revenue",
			ClearingLedgerAccount: "Clearing",
			BankCostsLedger:       "Bank costs",
			ZeroTaxRateName:       "Geen btw",
			DefaultDescription:    "Diversen",
		},
		Sync: config.SyncConfig{
			WindowDays: 1,
			PaymentKinds: map[string]string{
				"magcard": "CARD_PAYMENT",
				"fee":     "CARD_PAYMENT_FEE",
				"cashout": "PAYOUT",
			},
		},
	}
}

func testLookups(t *testing.T, f *fakeLedger) *Lookups {
	t.Helper()
	rates, err := resolve.NewTaxRates(f.taxRates, "Geen btw", nil)
	require.NoError(t, err)
	return &Lookups{
		Contacts:          resolve.Contacts(f.contacts),
		LedgerAccounts:    resolve.LedgerAccounts(f.ledgerAccounts),
		FinancialAccounts: resolve.FinancialAccounts(f.financialAccounts),
		TaxRates:          rates,
	}
}
