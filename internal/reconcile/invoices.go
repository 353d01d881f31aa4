package reconcile

import (
	"context"
	"strings"

	"github.com/ginjaninja78/posledger/internal/config"
	"github.com/ginjaninja78/posledger/internal/ledger"
	"github.com/ginjaninja78/posledger/internal/sale"
	"github.com/sirupsen/logrus"
)

// InvoiceSync ensures one sales invoice per sale.
type InvoiceSync struct {
	ledger   Ledger
	lookups  *Lookups
	cfg      config.LedgerConfig
	readOnly bool
	journal  *Journal
	log      logrus.FieldLogger
}

// NewInvoiceSync creates an InvoiceSync.
func NewInvoiceSync(l Ledger, lookups *Lookups, cfg config.LedgerConfig, readOnly bool, journal *Journal, log logrus.FieldLogger) *InvoiceSync {
	return &InvoiceSync{ledger: l, lookups: lookups, cfg: cfg, readOnly: readOnly, journal: journal, log: log}
}

// Run creates the missing sales invoices. existing is the current sales
// invoice snapshot.
func (s *InvoiceSync) Run(ctx context.Context, sales []sale.Sale, existing []ledger.SalesInvoice) (Outcome, error) {
	var out Outcome

	known := make(map[string]struct{}, len(existing))
	for _, inv := range existing {
		known[inv.Reference] = struct{}{}
	}
	handled := make(map[string]struct{}, len(sales))

	for _, sl := range sales {
		log := s.log.WithField("reference", sl.Reference)

		if _, ok := handled[sl.Reference]; ok {
			log.Info("sales invoice reference already handled in this run, skipping")
			out.Skipped++
			continue
		}
		handled[sl.Reference] = struct{}{}

		if _, ok := known[sl.Reference]; ok {
			log.Debug("sales invoice already exists")
			out.Skipped++
			continue
		}

		req, err := s.request(sl)
		if err != nil {
			return out, err
		}
		total := sl.ProductsTotal()

		if s.readOnly {
			log.Info("NOOP: sales invoice should be created, but in read-only mode")
			s.journal.add(Action{Kind: ActionInvoice, Reference: sl.Reference, Amount: total, Noop: true})
			continue
		}

		inv, err := s.ledger.CreateSalesInvoice(ctx, req)
		if err != nil {
			return out, err
		}
		out.Created++
		out.Stale = true
		s.journal.add(Action{Kind: ActionInvoice, Reference: sl.Reference, Detail: inv.ID, Amount: total})
		log.WithField("invoice_id", inv.ID).Info("created sales invoice")

		if s.cfg.SendInvoices && inv.ID != "" {
			if err := s.ledger.SendInvoice(ctx, inv.ID); err != nil {
				return out, err
			}
			s.journal.add(Action{Kind: ActionSendInvoice, Reference: sl.Reference, Detail: inv.ID})
			log.WithField("invoice_id", inv.ID).Debug("sent sales invoice")
		}
	}
	return out, nil
}

// request builds the creation request for a sale. Prices are tax inclusive.
func (s *InvoiceSync) request(sl sale.Sale) (ledger.SalesInvoiceRequest, error) {
	contactID, err := s.lookups.Contacts.ID(s.cfg.WalkInContact)
	if err != nil {
		return ledger.SalesInvoiceRequest{}, err
	}
	revenueID, err := s.lookups.LedgerAccounts.ID(s.cfg.RevenueLedgerAccount)
	if err != nil {
		return ledger.SalesInvoiceRequest{}, err
	}

	req := ledger.SalesInvoiceRequest{
		Reference:        sl.Reference,
		InvoiceDate:      ledger.FormatDate(sl.Date),
		ContactID:        contactID,
		PricesAreInclTax: true,
		Details:          make([]ledger.InvoiceDetail, 0, len(sl.Products)),
	}
	for _, p := range sl.Products {
		taxRateID, err := s.lookups.TaxRates.FromFraction(ledger.TaxRateSales, p.TaxRate)
		if err != nil {
			return ledger.SalesInvoiceRequest{}, err
		}
		description := strings.TrimSpace(p.Description)
		if description == "" {
			description = s.cfg.DefaultDescription
		}
		req.Details = append(req.Details, ledger.InvoiceDetail{
			Description:     description,
			Price:           p.UnitPriceInclTax(),
			Amount:          p.Quantity.String(),
			TaxRateID:       taxRateID,
			LedgerAccountID: revenueID,
		})
	}
	return req, nil
}
