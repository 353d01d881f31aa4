package sale

import (
	"errors"
	"testing"
	"time"

	"github.com/ginjaninja78/posledger/internal/source"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func attrs(name, category string) []byte {
	return []byte(`<?xml version="1.0" encoding="UTF-8" standalone="no"?>
<!DOCTYPE properties SYSTEM "http://java.sun.com/dtd/properties.dtd">
<properties>
<comment>uniCenta oPOS</comment>
<entry key="product.taxcategoryid">` + category + `</entry>
<entry key="product.name">` + name + `</entry>
</properties>`)
}

func day(d int, hour int) time.Time {
	return time.Date(2024, 3, d, hour, 0, 0, 0, time.UTC)
}

func fixture() *source.Collections {
	return &source.Collections{
		Receipts: []source.Receipt{
			{ID: "r1", DateNew: day(1, 10)},
			{ID: "r2", DateNew: day(5, 10)},
			{ID: "r3", DateNew: day(1, 12)},
		},
		Tickets: []source.Ticket{
			{ID: "r1", TicketID: 7},
			{ID: "r2", TicketID: 8},
		},
		TicketLines: []source.TicketLine{
			{Ticket: "r1", Line: 1, Price: 2, Units: 3, Attributes: attrs("Tea", "002")},
			{Ticket: "r1", Line: 0, Price: 10, Units: 1, Attributes: attrs("Coffee", "001")},
			{Ticket: "r2", Line: 0, Price: 5, Units: 1, Attributes: attrs("Cake", "001")},
		},
		Payments: []source.Payment{
			{ID: "p1", Receipt: "r1", Method: "cash", Total: 18.64, TransID: "tx-1"},
			{ID: "p2", Receipt: "r3", Method: "cashout", Total: -20},
		},
		Taxes: []source.Tax{
			{ID: "t1", Category: "001", Rate: 0.21},
			{ID: "t2", Category: "002", Rate: 0.09},
			{ID: "t3", Category: "001", Rate: 0.5},
		},
	}
}

func TestBuild_JoinsReceiptTicketLinesAndPayments(t *testing.T) {
	log, _ := test.NewNullLogger()
	b := NewBuilder(fixture(), "POS sale %d", log)

	sales, err := b.Build(Window{Start: day(1, 0), End: day(2, 0)})
	require.NoError(t, err)
	require.Len(t, sales, 1, "r2 is outside the window and r3 has no ticket")

	s := sales[0]
	assert.Equal(t, "POS sale 7", s.Reference)
	assert.True(t, s.Date.Equal(day(1, 10)))

	require.Len(t, s.Products, 2)
	assert.Equal(t, 0, s.Products[0].LineNumber, "lines are ordered by line number")
	assert.Equal(t, "Coffee", s.Products[0].Description)
	assert.Equal(t, "0.21", s.Products[0].TaxRate.String(), "first tax row of a category wins")
	assert.True(t, s.Products[0].HasTaxRate)
	assert.Equal(t, "Tea", s.Products[1].Description)
	assert.Equal(t, "3", s.Products[1].Quantity.String())

	require.Len(t, s.Payments, 1)
	assert.Equal(t, "cash", s.Payments[0].Method)
	assert.Equal(t, "18.64", s.Payments[0].Amount.String())
	assert.Equal(t, "tx-1", s.Payments[0].SourceTransactionID)

	// 10*1.21 + 2*1.09*3 = 12.1 + 6.54
	assert.Equal(t, "18.64", s.ProductsTotal().String())
}

func TestBuild_WindowIsHalfOpen(t *testing.T) {
	log, _ := test.NewNullLogger()
	b := NewBuilder(fixture(), "POS sale %d", log)

	sales, err := b.Build(Window{Start: day(1, 10), End: day(5, 10)})
	require.NoError(t, err)
	require.Len(t, sales, 1)
	assert.Equal(t, "POS sale 7", sales[0].Reference)
}

func TestBuild_UnknownTaxCategoryIsFatal(t *testing.T) {
	raw := fixture()
	raw.TicketLines[0].Attributes = attrs("Tea", "999")

	log, _ := test.NewNullLogger()
	_, err := NewBuilder(raw, "POS sale %d", log).Build(Window{Start: day(1, 0), End: day(2, 0)})

	var lookupErr *LookupError
	require.True(t, errors.As(err, &lookupErr))
	assert.Equal(t, "999", lookupErr.Category)
}

func TestBuild_LineWithoutCategoryIsFlagged(t *testing.T) {
	raw := fixture()
	raw.TicketLines[0].Attributes = nil

	log, _ := test.NewNullLogger()
	sales, err := NewBuilder(raw, "POS sale %d", log).Build(Window{Start: day(1, 0), End: day(2, 0)})
	require.NoError(t, err)
	require.Len(t, sales, 1)
	assert.False(t, sales[0].Products[1].HasTaxRate)
	assert.Empty(t, sales[0].Products[1].Description)
}

func TestParseAttributes(t *testing.T) {
	got, err := parseAttributes(attrs("Espresso ", "001"))
	require.NoError(t, err)
	assert.Equal(t, "Espresso", got[attrProductName])
	assert.Equal(t, "001", got[attrTaxCategoryID])

	_, err = parseAttributes([]byte("<properties><entry"))
	assert.Error(t, err)
}
