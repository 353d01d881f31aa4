package resolve

import (
	"fmt"

	"github.com/ginjaninja78/posledger/internal/ledger"
	"github.com/shopspring/decimal"
)

// percentageEpsilon is the tolerance when comparing percentages.
var percentageEpsilon = decimal.New(1, -8)

// TaxRates resolves tax rates by type and percentage.
//
// Lookup order for a percentage p within a tax rate type:
//  1. an explicit name pinned to p (ledger.tax_rate_names)
//  2. the zero rate by name when p is zero
//  3. the first rate whose percentage equals p
type TaxRates struct {
	rates    []ledger.TaxRate
	zeroName string
	pinned   map[string]string
}

// NewTaxRates creates a tax rate resolver. pinned maps a percentage string
// such as "21" or "9.5" to a tax rate name.
func NewTaxRates(rates []ledger.TaxRate, zeroName string, pinned map[string]string) (*TaxRates, error) {
	t := &TaxRates{rates: rates, zeroName: zeroName, pinned: make(map[string]string, len(pinned))}
	for pct, name := range pinned {
		d, err := decimal.NewFromString(pct)
		if err != nil {
			return nil, fmt.Errorf("invalid tax rate percentage %q: %w", pct, err)
		}
		t.pinned[d.String()] = name
	}
	return t, nil
}

// ID returns the id of the tax rate of the given type for a percentage.
func (t *TaxRates) ID(rateType string, percentage decimal.Decimal) (string, error) {
	if name, ok := t.pinned[percentage.String()]; ok {
		return t.byName(rateType, name)
	}
	if percentage.IsZero() {
		return t.byName(rateType, t.zeroName)
	}

	for _, r := range t.rates {
		if r.TaxRateType != rateType || !r.Percentage.Valid {
			continue
		}
		if r.Percentage.Decimal.Sub(percentage).Abs().LessThanOrEqual(percentageEpsilon) {
			return r.ID, nil
		}
	}
	return "", &NotFoundError{Kind: KindTaxRate, Name: fmt.Sprintf("%s %s%%", rateType, percentage)}
}

// FromFraction resolves a rate given as a fraction (0.21 for 21%).
func (t *TaxRates) FromFraction(rateType string, fraction decimal.Decimal) (string, error) {
	return t.ID(rateType, fraction.Shift(2))
}

func (t *TaxRates) byName(rateType, name string) (string, error) {
	for _, r := range t.rates {
		if r.TaxRateType == rateType && r.Name == name {
			return r.ID, nil
		}
	}
	return "", &NotFoundError{Kind: KindTaxRate, Name: name}
}
