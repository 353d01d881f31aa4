// =============================================================================
// posledger - Reconciliation Engine
// =============================================================================
//
// The engine runs one sync over a date window.
//
// PIPELINE:
//   1. Take the run lock (Redis cache backend only), refreshed between stages
//   2. Load the point-of-sale collections (database or snapshot cache)
//   3. Build canonical sales
//   4. Validate sales and drop duplicate references
//   5. Download the ledger collections and build the name lookups
//   6. Sync sales invoices, fee purchase invoices and financial mutations
//   7. Download the snapshots the synchronizers marked stale
//   8. Link mutations to their bookings
//
// Fatal errors (unknown tax category, unknown ledger name, ledger API error,
// database error) stop the run. Rejected sales and unmatched mutations are
// logged and counted.
//
// =============================================================================

package reconcile

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ginjaninja78/posledger/internal/config"
	"github.com/ginjaninja78/posledger/internal/ledger"
	"github.com/ginjaninja78/posledger/internal/resolve"
	"github.com/ginjaninja78/posledger/internal/sale"
	"github.com/ginjaninja78/posledger/internal/snapshot"
	"github.com/ginjaninja78/posledger/internal/source"
	"github.com/ginjaninja78/posledger/internal/validation"
	"github.com/sirupsen/logrus"
)

// runLockTTL bounds how long a crashed run can block the next one.
const runLockTTL = 15 * time.Minute

// =============================================================================
// RESULT STRUCTURE
// =============================================================================

// Result represents the outcome of one run.
type Result struct {
	// RunID identifies the run in logs and reports.
	RunID string

	// Window is the sale window of the run.
	Window sale.Window

	// ReadOnly is set for --noop runs.
	ReadOnly bool

	// Sales are the canonical sales built from the source, before validation.
	Sales []sale.Sale

	// Validation holds the validator outcome.
	Validation *validation.Result

	// Duplicates are valid sales dropped because their reference was
	// already used earlier in the run.
	Duplicates []sale.Sale

	Invoices  Outcome
	Purchases Outcome
	Mutations Outcome
	Links     Outcome

	// Journal lists every ledger change, performed or planned.
	Journal *Journal

	// Stats contains run statistics.
	Stats Stats
}

// Stats contains statistics about the run.
type Stats struct {
	SalesBuilt     int
	SalesValid     int
	SalesRejected  int
	MutationsFound int
	ProcessingTime time.Duration
}

// Options configures one run.
type Options struct {
	RunID    string
	Window   sale.Window
	ReadOnly bool

	// FromCache loads the point-of-sale collections from the snapshot
	// cache instead of the database.
	FromCache bool
}

// Locker takes the run lock.
type Locker interface {
	ObtainRunLock(ctx context.Context, ttl time.Duration) (snapshot.Lock, error)
}

// =============================================================================
// ENGINE STRUCTURE
// =============================================================================

// Engine wires the source, the ledger and the snapshot cache together.
type Engine struct {
	cfg    *config.Config
	source source.Source
	ledger Ledger
	store  snapshot.Store
	locker Locker
	log    logrus.FieldLogger
}

// NewEngine creates an Engine. src may be nil when every run uses the
// snapshot cache; locker may be nil.
func NewEngine(cfg *config.Config, src source.Source, l Ledger, store snapshot.Store, locker Locker, log logrus.FieldLogger) *Engine {
	return &Engine{cfg: cfg, source: src, ledger: l, store: store, locker: locker, log: log}
}

// =============================================================================
// MAIN PROCESSING FUNCTIONS
// =============================================================================

// Check builds and validates the sales of the window without talking to the
// ledger.
func (e *Engine) Check(ctx context.Context, opts Options) (*Result, error) {
	startTime := time.Now()
	result := &Result{RunID: opts.RunID, Window: opts.Window, ReadOnly: true, Journal: &Journal{}}

	valid, err := e.prepareSales(ctx, opts, result)
	if err != nil {
		return result, err
	}
	e.log.WithField("count", len(valid)).Info("sales ready for sync")

	result.Stats.ProcessingTime = time.Since(startTime)
	return result, nil
}

// Run executes the sync pipeline.
func (e *Engine) Run(ctx context.Context, opts Options) (*Result, error) {
	startTime := time.Now()
	result := &Result{RunID: opts.RunID, Window: opts.Window, ReadOnly: opts.ReadOnly, Journal: &Journal{}}
	log := e.log.WithField("run_id", opts.RunID)

	// =========================================================================
	// STEP 1: RUN LOCK
	// =========================================================================

	var lock snapshot.Lock
	if e.locker != nil {
		var err error
		if lock, err = e.locker.ObtainRunLock(ctx, runLockTTL); err != nil {
			return result, err
		}
		defer func() {
			// The run context may already be cancelled.
			if err := lock.Release(context.Background()); err != nil {
				log.WithError(err).Warn("failed to release run lock")
			}
		}()
	}

	// =========================================================================
	// STEPS 2-4: SALES
	// =========================================================================

	sales, err := e.prepareSales(ctx, opts, result)
	if err != nil {
		return result, err
	}

	// =========================================================================
	// STEP 5: LEDGER SNAPSHOTS
	// =========================================================================

	period := ledger.Period{Start: opts.Window.Start, End: opts.Window.End}
	snap, err := e.downloadLedger(ctx, period)
	if err != nil {
		return result, err
	}
	lookups, err := e.buildLookups(snap)
	if err != nil {
		return result, err
	}
	if err := refreshLock(ctx, lock); err != nil {
		return result, err
	}

	// =========================================================================
	// STEP 6: SYNCHRONIZERS
	// =========================================================================

	ledgerCfg, syncCfg := e.cfg.Ledger, e.cfg.Sync

	result.Invoices, err = NewInvoiceSync(e.ledger, lookups, ledgerCfg, opts.ReadOnly, result.Journal, log).
		Run(ctx, sales, snap.salesInvoices)
	if err != nil {
		return result, fmt.Errorf("sales invoice sync failed: %w", err)
	}

	result.Purchases, err = NewPurchaseSync(e.ledger, lookups, ledgerCfg, syncCfg, opts.ReadOnly, result.Journal, log).
		Run(ctx, sales, snap.purchaseInvoices)
	if err != nil {
		return result, fmt.Errorf("purchase invoice sync failed: %w", err)
	}

	result.Mutations, err = NewMutationSync(e.ledger, lookups, ledgerCfg, syncCfg, opts.ReadOnly, result.Journal, log).
		Run(ctx, sales, snap.mutations)
	if err != nil {
		return result, fmt.Errorf("financial mutation sync failed: %w", err)
	}

	// =========================================================================
	// STEP 7: REFRESH STALE SNAPSHOTS
	// =========================================================================

	if result.Invoices.Stale {
		log.Info("sales invoices changed, downloading them again")
		if snap.salesInvoices, err = e.ledger.SalesInvoices(ctx, period); err != nil {
			return result, err
		}
		e.save(ctx, snapshot.SalesInvoices, snap.salesInvoices)
	}
	if result.Purchases.Stale {
		log.Info("purchase invoices changed, downloading them again")
		if snap.purchaseInvoices, err = e.ledger.PurchaseInvoices(ctx, period); err != nil {
			return result, err
		}
		e.save(ctx, snapshot.PurchaseInvoices, snap.purchaseInvoices)
	}
	if result.Mutations.Stale {
		log.Info("financial mutations changed, downloading them again")
		if snap.mutations, err = e.ledger.FinancialMutations(ctx, period); err != nil {
			return result, err
		}
		e.save(ctx, snapshot.FinancialMutations, snap.mutations)
	}
	result.Stats.MutationsFound = len(snap.mutations)
	if err := refreshLock(ctx, lock); err != nil {
		return result, err
	}

	// =========================================================================
	// STEP 8: LINK
	// =========================================================================

	result.Links, err = NewLinker(e.ledger, lookups, ledgerCfg, opts.ReadOnly, result.Journal, log).
		Run(ctx, snap.mutations, snap.salesInvoices, snap.purchaseInvoices)
	if err != nil {
		return result, fmt.Errorf("linking failed: %w", err)
	}

	// =========================================================================
	// COMPLETE
	// =========================================================================

	result.Stats.ProcessingTime = time.Since(startTime)
	log.WithFields(logrus.Fields{
		"invoices":  result.Invoices.Created,
		"purchases": result.Purchases.Created,
		"mutations": result.Mutations.Created,
		"links":     result.Links.Created,
	}).Info("sync complete")
	return result, nil
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

// prepareSales loads the source collections, builds and validates the sales
// and drops duplicate references.
func (e *Engine) prepareSales(ctx context.Context, opts Options, result *Result) ([]sale.Sale, error) {
	raw, err := e.loadSource(ctx, opts.FromCache)
	if err != nil {
		return nil, err
	}

	builder := sale.NewBuilder(raw, e.cfg.Source.ReferenceFormat, e.log)
	sales, err := builder.Build(opts.Window)
	if err != nil {
		return nil, err
	}
	result.Sales = sales
	result.Stats.SalesBuilt = len(sales)

	validator := validation.NewValidator(e.cfg.Source.PaymentMethodFilter, e.log)
	result.Validation = validator.ValidateAll(sales)
	result.Stats.SalesRejected = result.Validation.Rejected

	valid, dropped := DedupeReferences(result.Validation.Valid)
	for _, d := range dropped {
		e.log.WithField("reference", d.Reference).Warn("duplicate sale reference in this run, ignoring sale")
	}
	result.Duplicates = dropped
	result.Stats.SalesValid = len(valid)
	return valid, nil
}

// loadSource reads the point-of-sale collections from the database and
// caches them, or reads them back from the cache.
func (e *Engine) loadSource(ctx context.Context, fromCache bool) (*source.Collections, error) {
	raw := &source.Collections{}

	if fromCache {
		loads := []struct {
			name string
			dest any
		}{
			{snapshot.Tickets, &raw.Tickets},
			{snapshot.TicketLines, &raw.TicketLines},
			{snapshot.Receipts, &raw.Receipts},
			{snapshot.Payments, &raw.Payments},
			{snapshot.Taxes, &raw.Taxes},
		}
		for _, l := range loads {
			if err := e.store.Load(ctx, l.name, l.dest); err != nil {
				return nil, fmt.Errorf("failed to load cached source collection: %w", err)
			}
		}
		e.log.Info("loaded point-of-sale collections from the snapshot cache")
		return raw, nil
	}

	if e.source == nil {
		return nil, errors.New("no point-of-sale source configured")
	}
	raw, err := source.ReadAll(ctx, e.source)
	if err != nil {
		return nil, err
	}
	e.save(ctx, snapshot.Tickets, raw.Tickets)
	e.save(ctx, snapshot.TicketLines, raw.TicketLines)
	e.save(ctx, snapshot.Receipts, raw.Receipts)
	e.save(ctx, snapshot.Payments, raw.Payments)
	e.save(ctx, snapshot.Taxes, raw.Taxes)
	return raw, nil
}

// ledgerSnapshot holds the ledger collections of one run.
type ledgerSnapshot struct {
	contacts          []ledger.Contact
	financialAccounts []ledger.FinancialAccount
	ledgerAccounts    []ledger.LedgerAccount
	taxRates          []ledger.TaxRate
	salesInvoices     []ledger.SalesInvoice
	purchaseInvoices  []ledger.PurchaseInvoice
	mutations         []ledger.FinancialMutation
}

func (e *Engine) downloadLedger(ctx context.Context, period ledger.Period) (*ledgerSnapshot, error) {
	var (
		snap ledgerSnapshot
		err  error
	)
	if snap.contacts, err = e.ledger.Contacts(ctx); err != nil {
		return nil, err
	}
	if snap.financialAccounts, err = e.ledger.FinancialAccounts(ctx); err != nil {
		return nil, err
	}
	if snap.ledgerAccounts, err = e.ledger.LedgerAccounts(ctx); err != nil {
		return nil, err
	}
	if snap.taxRates, err = e.ledger.TaxRates(ctx); err != nil {
		return nil, err
	}
	if snap.salesInvoices, err = e.ledger.SalesInvoices(ctx, period); err != nil {
		return nil, err
	}
	if snap.purchaseInvoices, err = e.ledger.PurchaseInvoices(ctx, period); err != nil {
		return nil, err
	}
	if snap.mutations, err = e.ledger.FinancialMutations(ctx, period); err != nil {
		return nil, err
	}

	e.save(ctx, snapshot.Contacts, snap.contacts)
	e.save(ctx, snapshot.FinancialAccounts, snap.financialAccounts)
	e.save(ctx, snapshot.LedgerAccounts, snap.ledgerAccounts)
	e.save(ctx, snapshot.TaxRates, snap.taxRates)
	e.save(ctx, snapshot.SalesInvoices, snap.salesInvoices)
	e.save(ctx, snapshot.PurchaseInvoices, snap.purchaseInvoices)
	e.save(ctx, snapshot.FinancialMutations, snap.mutations)

	e.log.WithFields(logrus.Fields{
		"contacts":            len(snap.contacts),
		"sales_invoices":      len(snap.salesInvoices),
		"purchase_invoices":   len(snap.purchaseInvoices),
		"financial_mutations": len(snap.mutations),
	}).Info("downloaded ledger collections")
	return &snap, nil
}

func (e *Engine) buildLookups(snap *ledgerSnapshot) (*Lookups, error) {
	taxRates, err := resolve.NewTaxRates(snap.taxRates, e.cfg.Ledger.ZeroTaxRateName, e.cfg.Ledger.TaxRateNames)
	if err != nil {
		return nil, err
	}
	return &Lookups{
		Contacts:          resolve.Contacts(snap.contacts),
		LedgerAccounts:    resolve.LedgerAccounts(snap.ledgerAccounts),
		FinancialAccounts: resolve.FinancialAccounts(snap.financialAccounts),
		TaxRates:          taxRates,
	}, nil
}

// refreshLock extends the run lock to a full TTL. A lock that cannot be
// extended is lost, and the run stops before the next stage.
func refreshLock(ctx context.Context, lock snapshot.Lock) error {
	if lock == nil {
		return nil
	}
	if err := lock.Refresh(ctx, runLockTTL); err != nil {
		return fmt.Errorf("failed to refresh run lock: %w", err)
	}
	return nil
}

// save writes a snapshot. The cache is for inspection and --from-cache, so
// a failed write is logged and the run goes on.
func (e *Engine) save(ctx context.Context, name string, v any) {
	if e.store == nil {
		return
	}
	if err := e.store.Save(ctx, name, v); err != nil {
		e.log.WithError(err).WithField("snapshot", name).Warn("failed to save snapshot")
	}
}
