// =============================================================================
// posledger - Canonical Sale Builder
// =============================================================================
//
// The builder joins the raw point-of-sale collections into canonical Sales.
//
// BUILD STEPS (per receipt):
//   1. Skip receipts outside the requested window
//   2. Find the ticket sharing the receipt id
//   3. Collect the ticket lines, parse their attribute blobs and resolve the
//      tax category to a rate
//   4. Collect the payments of the receipt
//
// An unknown tax category is fatal for the whole run (LookupError). Anything
// else that is wrong with a single sale is left for the validator.
//
// =============================================================================

package sale

import (
	"fmt"
	"sort"

	"github.com/ginjaninja78/posledger/internal/source"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// Builder turns raw collections into Sales.
type Builder struct {
	raw             *source.Collections
	referenceFormat string
	log             logrus.FieldLogger

	ticketsByID       map[string]source.Ticket
	linesByTicket     map[string][]source.TicketLine
	paymentsByReceipt map[string][]source.Payment
	taxByCategory     map[string]source.Tax
}

// NewBuilder indexes the raw collections. referenceFormat must contain one
// %d verb for the ticket number.
func NewBuilder(raw *source.Collections, referenceFormat string, log logrus.FieldLogger) *Builder {
	b := &Builder{
		raw:               raw,
		referenceFormat:   referenceFormat,
		log:               log,
		ticketsByID:       make(map[string]source.Ticket, len(raw.Tickets)),
		linesByTicket:     make(map[string][]source.TicketLine),
		paymentsByReceipt: make(map[string][]source.Payment),
		taxByCategory:     make(map[string]source.Tax, len(raw.Taxes)),
	}

	for _, t := range raw.Tickets {
		b.ticketsByID[t.ID] = t
	}
	for _, l := range raw.TicketLines {
		b.linesByTicket[l.Ticket] = append(b.linesByTicket[l.Ticket], l)
	}
	for ticket := range b.linesByTicket {
		lines := b.linesByTicket[ticket]
		sort.SliceStable(lines, func(i, j int) bool { return lines[i].Line < lines[j].Line })
	}
	for _, p := range raw.Payments {
		b.paymentsByReceipt[p.Receipt] = append(b.paymentsByReceipt[p.Receipt], p)
	}
	// First match wins, like a linear scan of the tax table.
	for _, tax := range raw.Taxes {
		if _, seen := b.taxByCategory[tax.Category]; !seen {
			b.taxByCategory[tax.Category] = tax
		}
	}
	return b
}

// Build returns one Sale per receipt inside the window, in receipt order.
func (b *Builder) Build(w Window) ([]Sale, error) {
	var sales []Sale

	for _, receipt := range b.raw.Receipts {
		if !w.Contains(receipt.DateNew) {
			b.log.WithFields(logrus.Fields{
				"receipt": receipt.ID,
				"date":    receipt.DateNew,
			}).Debug("skipping receipt outside the selected window")
			continue
		}

		ticket, ok := b.ticketsByID[receipt.ID]
		if !ok {
			// Cash drawer movements have a receipt and payments but no ticket.
			b.log.WithField("receipt", receipt.ID).Info("skipping receipt without ticket")
			continue
		}

		s, err := b.buildSale(receipt, ticket)
		if err != nil {
			return nil, err
		}
		sales = append(sales, s)
	}

	b.log.WithField("count", len(sales)).Info("built point-of-sale sales")
	return sales, nil
}

// buildSale joins one receipt with its ticket, lines and payments.
func (b *Builder) buildSale(receipt source.Receipt, ticket source.Ticket) (Sale, error) {
	s := Sale{
		Reference: fmt.Sprintf(b.referenceFormat, ticket.TicketID),
		Date:      receipt.DateNew,
	}

	for _, line := range b.linesByTicket[ticket.ID] {
		product, err := b.buildProduct(ticket, line)
		if err != nil {
			return Sale{}, err
		}
		s.Products = append(s.Products, product)
	}

	for _, p := range b.paymentsByReceipt[receipt.ID] {
		s.Payments = append(s.Payments, Payment{
			Method:              p.Method,
			Amount:              decimal.NewFromFloat(p.Total),
			SourceTransactionID: p.TransID,
		})
	}
	return s, nil
}

func (b *Builder) buildProduct(ticket source.Ticket, line source.TicketLine) (Product, error) {
	product := Product{
		LineNumber:       line.Line,
		UnitPriceExclTax: decimal.NewFromFloat(line.Price),
		Quantity:         decimal.NewFromFloat(line.Units),
	}

	attrs, err := parseAttributes(line.Attributes)
	if err != nil {
		b.log.WithFields(logrus.Fields{
			"ticket": ticket.TicketID,
			"line":   line.Line,
		}).WithError(err).Warn("ticket line has unreadable attributes")
		return product, nil
	}

	product.Description = attrs[attrProductName]

	category, ok := attrs[attrTaxCategoryID]
	if !ok || category == "" {
		return product, nil
	}
	tax, ok := b.taxByCategory[category]
	if !ok {
		return Product{}, &LookupError{Category: category, Ticket: ticket.ID, Line: line.Line}
	}
	product.TaxCategory = category
	product.TaxRate = decimal.NewFromFloat(tax.Rate)
	product.HasTaxRate = true
	return product, nil
}
