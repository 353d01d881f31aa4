package reconcile

import (
	"context"
	"strings"
	"unicode"

	"github.com/ginjaninja78/posledger/internal/config"
	"github.com/ginjaninja78/posledger/internal/ledger"
	"github.com/sirupsen/logrus"
)

// Linker attaches unlinked mutations to their bookings.
//
// A mutation goes Unlinked -> Linked once; a mutation without a matching
// booking stays Unlinked and is retried on the next run.
type Linker struct {
	ledger   Ledger
	lookups  *Lookups
	cfg      config.LedgerConfig
	readOnly bool
	journal  *Journal
	log      logrus.FieldLogger
}

// NewLinker creates a Linker.
func NewLinker(l Ledger, lookups *Lookups, cfg config.LedgerConfig, readOnly bool, journal *Journal, log logrus.FieldLogger) *Linker {
	return &Linker{ledger: l, lookups: lookups, cfg: cfg, readOnly: readOnly, journal: journal, log: log}
}

// Run links the mutations. Skipped counts mutations that are already linked
// or have no matching booking.
func (l *Linker) Run(ctx context.Context, mutations []ledger.FinancialMutation, invoices []ledger.SalesInvoice, purchases []ledger.PurchaseInvoice) (Outcome, error) {
	var out Outcome

	invoiceIDs := make(map[string]string, len(invoices))
	for _, inv := range invoices {
		if _, ok := invoiceIDs[inv.Reference]; !ok {
			invoiceIDs[inv.Reference] = inv.ID
		}
	}
	purchaseIDs := make(map[string]string, len(purchases))
	for _, inv := range purchases {
		if _, ok := purchaseIDs[inv.Reference]; !ok {
			purchaseIDs[inv.Reference] = inv.ID
		}
	}
	linked := make(map[string]struct{})

	for _, m := range mutations {
		prefix := prefixOf(m.Message)
		if prefix == "" {
			continue
		}
		if _, ok := linked[m.ID]; ok {
			continue
		}

		log := l.log.WithFields(logrus.Fields{
			"mutation_id": m.ID,
			"message":     m.Message,
		})

		var link ledger.BookingLink
		switch prefix {
		case PrefixPayment, PrefixFee:
			if len(m.Payments) > 0 {
				log.Debug("financial mutation already linked")
				out.Skipped++
				continue
			}
			candidates, bookingType, what := invoiceIDs, ledger.BookingSalesInvoice, "sales invoice"
			if prefix == PrefixFee {
				candidates, bookingType, what = purchaseIDs, ledger.BookingDocument, "purchase invoice"
			}
			ref := matchReference(m.Message, candidates)
			if ref == "" {
				log.Info("could not find a " + what + " for financial mutation, ignoring")
				out.Skipped++
				continue
			}
			link = ledger.BookingLink{BookingType: bookingType, BookingID: candidates[ref], PriceBase: m.Amount.Abs()}

		case PrefixPayout:
			if len(m.LedgerAccountBookings) > 0 {
				log.Debug("financial mutation already booked")
				out.Skipped++
				continue
			}
			accountID, err := l.lookups.LedgerAccounts.ID(l.cfg.ClearingLedgerAccount)
			if err != nil {
				return out, err
			}
			link = ledger.BookingLink{BookingType: ledger.BookingLedgerAccount, BookingID: accountID, PriceBase: m.Amount.Abs()}
		}

		if l.readOnly {
			log.WithField("booking_type", link.BookingType).Info("NOOP: financial mutation should be linked, but in read-only mode")
			l.journal.add(Action{Kind: ActionLink, Reference: m.Message, Detail: link.BookingType + " " + link.BookingID, Amount: link.PriceBase, Noop: true})
			continue
		}

		if err := l.ledger.LinkBooking(ctx, m.ID, link); err != nil {
			return out, err
		}
		linked[m.ID] = struct{}{}
		out.Created++
		l.journal.add(Action{Kind: ActionLink, Reference: m.Message, Detail: link.BookingType + " " + link.BookingID, Amount: link.PriceBase})
		log.WithFields(logrus.Fields{
			"booking_type": link.BookingType,
			"booking_id":   link.BookingID,
		}).Info("linked financial mutation")
	}
	return out, nil
}

// matchReference returns the longest reference contained in message as a
// whole token, or "". "POS sale 1" does not match "payment for POS sale 12".
// Equal lengths resolve to the smallest reference.
func matchReference(message string, references map[string]string) string {
	best := ""
	for ref := range references {
		if len(ref) < len(best) || (len(ref) == len(best) && ref > best) {
			continue
		}
		if !containsToken(message, ref) {
			continue
		}
		best = ref
	}
	return best
}

func containsToken(s, token string) bool {
	if token == "" {
		return false
	}
	for from := 0; ; {
		i := strings.Index(s[from:], token)
		if i < 0 {
			return false
		}
		start := from + i
		end := start + len(token)
		if !isWordRune(lastRune(s[:start])) && !isWordRune(firstRune(s[end:])) {
			return true
		}
		from = start + 1
	}
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}

func firstRune(s string) rune {
	for _, r := range s {
		return r
	}
	return 0
}

func lastRune(s string) rune {
	var last rune
	for _, r := range s {
		last = r
	}
	return last
}
