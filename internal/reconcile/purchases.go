package reconcile

import (
	"context"

	"github.com/ginjaninja78/posledger/internal/config"
	"github.com/ginjaninja78/posledger/internal/ledger"
	"github.com/ginjaninja78/posledger/internal/sale"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// feeDescription is the detail description of a fee purchase invoice.
const feeDescription = "Card payment fee"

// PurchaseSync ensures a purchase invoice for the card fees of a sale. The
// invoice carries the sale reference, so the Linker can match the "fee for"
// mutations against it.
type PurchaseSync struct {
	ledger   Ledger
	lookups  *Lookups
	cfg      config.LedgerConfig
	sync     config.SyncConfig
	readOnly bool
	journal  *Journal
	log      logrus.FieldLogger
}

// NewPurchaseSync creates a PurchaseSync.
func NewPurchaseSync(l Ledger, lookups *Lookups, cfg config.LedgerConfig, sync config.SyncConfig, readOnly bool, journal *Journal, log logrus.FieldLogger) *PurchaseSync {
	return &PurchaseSync{ledger: l, lookups: lookups, cfg: cfg, sync: sync, readOnly: readOnly, journal: journal, log: log}
}

// Run creates the missing fee purchase invoices.
func (s *PurchaseSync) Run(ctx context.Context, sales []sale.Sale, existing []ledger.PurchaseInvoice) (Outcome, error) {
	var out Outcome

	known := make(map[string]struct{}, len(existing))
	for _, inv := range existing {
		known[inv.Reference] = struct{}{}
	}

	for _, sl := range sales {
		fees := decimal.Zero
		hasFee := false
		for _, p := range sl.Payments {
			if s.sync.PaymentKind(p.Method) == KindCardPaymentFee {
				fees = fees.Add(p.Amount.Abs())
				hasFee = true
			}
		}
		if !hasFee {
			continue
		}

		log := s.log.WithField("reference", sl.Reference)
		if _, ok := known[sl.Reference]; ok {
			log.Debug("purchase invoice already exists")
			out.Skipped++
			continue
		}
		known[sl.Reference] = struct{}{}

		req, err := s.request(sl, fees)
		if err != nil {
			return out, err
		}

		if s.readOnly {
			log.Info("NOOP: purchase invoice should be created, but in read-only mode")
			s.journal.add(Action{Kind: ActionPurchaseInvoice, Reference: sl.Reference, Amount: fees, Noop: true})
			continue
		}

		inv, err := s.ledger.CreatePurchaseInvoice(ctx, req)
		if err != nil {
			return out, err
		}
		out.Created++
		out.Stale = true
		s.journal.add(Action{Kind: ActionPurchaseInvoice, Reference: sl.Reference, Detail: inv.ID, Amount: fees})
		log.WithField("purchase_invoice_id", inv.ID).Info("created purchase invoice")
	}
	return out, nil
}

func (s *PurchaseSync) request(sl sale.Sale, fees decimal.Decimal) (ledger.PurchaseInvoiceRequest, error) {
	contactID, err := s.lookups.Contacts.ID(s.cfg.FeeContact)
	if err != nil {
		return ledger.PurchaseInvoiceRequest{}, err
	}
	ledgerID, err := s.lookups.LedgerAccounts.ID(s.cfg.BankCostsLedger)
	if err != nil {
		return ledger.PurchaseInvoiceRequest{}, err
	}
	taxRateID, err := s.lookups.TaxRates.ID(ledger.TaxRatePurchase, decimal.Zero)
	if err != nil {
		return ledger.PurchaseInvoiceRequest{}, err
	}

	return ledger.PurchaseInvoiceRequest{
		Reference:        sl.Reference,
		Date:             ledger.FormatDate(sl.Date),
		ContactID:        contactID,
		PricesAreInclTax: true,
		Details: []ledger.InvoiceDetail{{
			Description:     feeDescription,
			Price:           fees,
			TaxRateID:       taxRateID,
			LedgerAccountID: ledgerID,
		}},
	}, nil
}
