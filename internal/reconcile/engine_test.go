package reconcile

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ginjaninja78/posledger/internal/ledger"
	"github.com/ginjaninja78/posledger/internal/sale"
	"github.com/ginjaninja78/posledger/internal/snapshot"
	"github.com/ginjaninja78/posledger/internal/source"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func lineAttributes(name, category string) []byte {
	return []byte(`<?xml version="1.0" encoding="UTF-8" standalone="no"?>
<!DOCTYPE properties SYSTEM "http://java.sun.com/dtd/properties.dtd">
<properties>
<entry key="product.name">` + name + `</entry>
<entry key="product.taxcategoryid">` + category + `</entry>
</properties>`)
}

// oneSaleSource is one coffee of 10.00 at 21% paid 12.10 in cash, plus a
// sale whose payment does not cover the products.
func oneSaleSource() *staticSource {
	return &staticSource{raw: source.Collections{
		Receipts: []source.Receipt{
			{ID: "r1", DateNew: saleDate},
			{ID: "r2", DateNew: saleDate.Add(time.Hour)},
		},
		Tickets: []source.Ticket{
			{ID: "r1", TicketID: 42},
			{ID: "r2", TicketID: 43},
		},
		TicketLines: []source.TicketLine{
			{Ticket: "r1", Line: 0, Price: 10, Units: 1, Attributes: lineAttributes("Coffee", "001")},
			{Ticket: "r2", Line: 0, Price: 10, Units: 1, Attributes: lineAttributes("Coffee", "001")},
		},
		Payments: []source.Payment{
			{ID: "p1", Receipt: "r1", Method: "cash", Total: 12.1},
			{ID: "p2", Receipt: "r2", Method: "cash", Total: 5},
		},
		Taxes: []source.Tax{{ID: "t1", Category: "001", Rate: 0.21}},
	}}
}

func testWindow() sale.Window {
	return sale.Window{
		Start: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		End:   time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC),
	}
}

func TestEngine_EndToEndAndIdempotentRerun(t *testing.T) {
	f := newFakeLedger()
	store, err := snapshot.NewFileStore(t.TempDir())
	require.NoError(t, err)
	log, _ := test.NewNullLogger()

	engine := NewEngine(testConfig(), oneSaleSource(), f, store, nil, log)
	opts := Options{RunID: "run-1", Window: testWindow()}

	result, err := engine.Run(context.Background(), opts)
	require.NoError(t, err)

	assert.Equal(t, 2, result.Stats.SalesBuilt)
	assert.Equal(t, 1, result.Stats.SalesValid)
	assert.Equal(t, 1, result.Stats.SalesRejected)

	require.Len(t, f.salesInvoices, 1)
	assert.Equal(t, "POS sale 42", f.salesInvoices[0].Reference)
	assert.True(t, f.salesInvoices[0].TotalPriceInclTax.Equal(dec("12.1")))

	require.Len(t, f.mutations, 1)
	assert.Equal(t, "payment for POS sale 42", f.mutations[0].Message)
	assert.True(t, f.mutations[0].Amount.Equal(dec("12.1")))

	require.Equal(t, 1, f.totalLinks())
	link := f.links[f.mutations[0].ID][0]
	assert.Equal(t, ledger.BookingSalesInvoice, link.BookingType)
	assert.Equal(t, f.salesInvoices[0].ID, link.BookingID)
	assert.True(t, link.PriceBase.Equal(dec("12.1")))

	assert.Equal(t, 1, result.Invoices.Created)
	assert.Equal(t, 1, result.Mutations.Created)
	assert.Equal(t, 1, result.Links.Created)

	// The refreshed snapshots were cached.
	var cached []ledger.FinancialMutation
	require.NoError(t, store.Load(context.Background(), snapshot.FinancialMutations, &cached))
	assert.Len(t, cached, 1)

	// Second run: no new invoices, mutations or links.
	result, err = engine.Run(context.Background(), opts)
	require.NoError(t, err)
	assert.Zero(t, result.Invoices.Created)
	assert.Zero(t, result.Mutations.Created)
	assert.Zero(t, result.Links.Created)
	assert.Len(t, f.salesInvoices, 1)
	assert.Len(t, f.mutations, 1)
	assert.Equal(t, 1, f.totalLinks())
}

func TestEngine_ReadOnlyChangesNothing(t *testing.T) {
	f := newFakeLedger()
	log, _ := test.NewNullLogger()

	engine := NewEngine(testConfig(), oneSaleSource(), f, nil, nil, log)
	result, err := engine.Run(context.Background(), Options{Window: testWindow(), ReadOnly: true})
	require.NoError(t, err)

	assert.Empty(t, f.invoiceRequests)
	assert.Empty(t, f.statementRequests)
	assert.Zero(t, f.totalLinks())

	assert.Equal(t, 1, result.Journal.Count(ActionInvoice))
	assert.Equal(t, 1, result.Journal.Count(ActionMutation))
	for _, a := range result.Journal.Actions {
		assert.True(t, a.Noop)
	}
}

func TestEngine_FromCache(t *testing.T) {
	store, err := snapshot.NewFileStore(t.TempDir())
	require.NoError(t, err)
	log, _ := test.NewNullLogger()

	// First run fills the cache from the source.
	_, err = NewEngine(testConfig(), oneSaleSource(), newFakeLedger(), store, nil, log).
		Check(context.Background(), Options{Window: testWindow()})
	require.NoError(t, err)

	// Second run has no source at all.
	result, err := NewEngine(testConfig(), nil, newFakeLedger(), store, nil, log).
		Check(context.Background(), Options{Window: testWindow(), FromCache: true})
	require.NoError(t, err)
	assert.Equal(t, 2, result.Stats.SalesBuilt)
	assert.Equal(t, 1, result.Stats.SalesValid)
}

func TestEngine_FromCacheWithoutSnapshots(t *testing.T) {
	store, err := snapshot.NewFileStore(t.TempDir())
	require.NoError(t, err)
	log, _ := test.NewNullLogger()

	_, err = NewEngine(testConfig(), nil, newFakeLedger(), store, nil, log).
		Check(context.Background(), Options{Window: testWindow(), FromCache: true})
	assert.ErrorIs(t, err, snapshot.ErrNotFound)
}

func TestDedupeReferences(t *testing.T) {
	unique, dropped := DedupeReferences([]sale.Sale{
		{Reference: "POS sale 1"}, {Reference: "POS sale 2"}, {Reference: "POS sale 1"},
	})
	assert.Len(t, unique, 2)
	require.Len(t, dropped, 1)
	assert.Equal(t, "POS sale 1", dropped[0].Reference)
}

type fakeLock struct {
	refreshes  int
	released   bool
	refreshErr error
}

func (l *fakeLock) Refresh(context.Context, time.Duration) error {
	l.refreshes++
	return l.refreshErr
}

func (l *fakeLock) Release(context.Context) error {
	l.released = true
	return nil
}

type fakeLocker struct {
	lock *fakeLock
}

func (l *fakeLocker) ObtainRunLock(context.Context, time.Duration) (snapshot.Lock, error) {
	return l.lock, nil
}

func TestEngine_RefreshesRunLockBetweenStages(t *testing.T) {
	f := newFakeLedger()
	log, _ := test.NewNullLogger()
	locker := &fakeLocker{lock: &fakeLock{}}

	engine := NewEngine(testConfig(), oneSaleSource(), f, nil, locker, log)
	_, err := engine.Run(context.Background(), Options{Window: testWindow()})
	require.NoError(t, err)

	assert.Equal(t, 2, locker.lock.refreshes)
	assert.True(t, locker.lock.released)
}

func TestEngine_StopsWhenRunLockIsLost(t *testing.T) {
	f := newFakeLedger()
	log, _ := test.NewNullLogger()
	lost := errors.New("lock not held")
	locker := &fakeLocker{lock: &fakeLock{refreshErr: lost}}

	engine := NewEngine(testConfig(), oneSaleSource(), f, nil, locker, log)
	_, err := engine.Run(context.Background(), Options{Window: testWindow()})

	require.ErrorIs(t, err, lost)
	assert.Empty(t, f.invoiceRequests)
	assert.Empty(t, f.statementRequests)
	assert.True(t, locker.lock.released)
}
