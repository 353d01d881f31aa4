package reconcile

import (
	"context"
	"fmt"
	"strings"

	"github.com/ginjaninja78/posledger/internal/config"
	"github.com/ginjaninja78/posledger/internal/ledger"
	"github.com/ginjaninja78/posledger/internal/sale"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// Payment kinds with special handling. Every other kind is a plain payment.
const (
	KindPayout         = "PAYOUT"
	KindCardPaymentFee = "CARD_PAYMENT_FEE"
)

// Mutation message prefixes. The message of a mutation is the prefix
// followed by the sale reference.
const (
	PrefixPayment = "payment for "
	PrefixPayout  = "payout for "
	PrefixFee     = "fee for "
)

// MessagePrefix returns the message prefix for a payment kind.
func MessagePrefix(kind string) string {
	switch kind {
	case KindPayout:
		return PrefixPayout
	case KindCardPaymentFee:
		return PrefixFee
	default:
		return PrefixPayment
	}
}

// SignedAmount applies the sign convention: payouts and fees leave the
// financial account and are always negative; every other kind keeps the
// sign recorded at the till.
func SignedAmount(kind string, amount decimal.Decimal) decimal.Decimal {
	switch kind {
	case KindPayout, KindCardPaymentFee:
		return amount.Abs().Neg()
	default:
		return amount
	}
}

// MutationSync ensures one financial mutation per sale payment.
type MutationSync struct {
	ledger   Ledger
	lookups  *Lookups
	cfg      config.LedgerConfig
	sync     config.SyncConfig
	readOnly bool
	journal  *Journal
	log      logrus.FieldLogger
}

// NewMutationSync creates a MutationSync.
func NewMutationSync(l Ledger, lookups *Lookups, cfg config.LedgerConfig, sync config.SyncConfig, readOnly bool, journal *Journal, log logrus.FieldLogger) *MutationSync {
	return &MutationSync{ledger: l, lookups: lookups, cfg: cfg, sync: sync, readOnly: readOnly, journal: journal, log: log}
}

// Run creates the missing mutations. A sale with n payments of one kind
// needs n mutations with the same message; only the shortfall against the
// existing snapshot is created.
func (s *MutationSync) Run(ctx context.Context, sales []sale.Sale, existing []ledger.FinancialMutation) (Outcome, error) {
	var out Outcome

	available := make(map[string]int, len(existing))
	for _, m := range existing {
		available[m.Message]++
	}
	occurrence := make(map[string]int)

	for _, sl := range sales {
		for _, p := range sl.Payments {
			kind := s.sync.PaymentKind(p.Method)
			message := MessagePrefix(kind) + sl.Reference
			occurrence[message]++

			log := s.log.WithFields(logrus.Fields{
				"reference": sl.Reference,
				"message":   message,
				"kind":      kind,
			})

			if available[message] > 0 {
				available[message]--
				log.Debug("financial mutation already exists")
				out.Skipped++
				continue
			}

			accountID, err := s.lookups.FinancialAccounts.ID(s.cfg.FinancialAccount)
			if err != nil {
				return out, err
			}

			amount := SignedAmount(kind, p.Amount)
			if s.readOnly {
				log.WithField("amount", amount.String()).Info("NOOP: financial mutation should be created, but in read-only mode")
				s.journal.add(Action{Kind: ActionMutation, Reference: sl.Reference, Detail: message, Amount: amount, Noop: true})
				continue
			}

			statementRef := message
			if n := occurrence[message]; n > 1 {
				statementRef = fmt.Sprintf("%s (%d)", message, n)
			}

			st, err := s.ledger.CreateFinancialStatement(ctx, ledger.FinancialStatementRequest{
				Reference:          statementRef,
				FinancialAccountID: accountID,
				Mutations: []ledger.MutationRequest{{
					Date:    ledger.FormatDate(sl.Date),
					Message: message,
					Amount:  amount,
				}},
			})
			if err != nil {
				return out, err
			}
			out.Created++
			out.Stale = true
			s.journal.add(Action{Kind: ActionMutation, Reference: sl.Reference, Detail: message, Amount: amount})
			log.WithFields(logrus.Fields{
				"statement_id": st.ID,
				"amount":       amount.String(),
			}).Info("created financial mutation")
		}
	}
	return out, nil
}

// prefixOf returns the prefix a mutation message starts with, or "".
func prefixOf(message string) string {
	for _, prefix := range []string{PrefixPayment, PrefixPayout, PrefixFee} {
		if strings.HasPrefix(message, prefix) {
			return prefix
		}
	}
	return ""
}
