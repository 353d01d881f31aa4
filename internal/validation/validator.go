// =============================================================================
// posledger - Sale Validator
// =============================================================================
//
// This module decides which canonical sales are safe to push to the ledger.
//
// RULES (in order):
//   1. Payment method filter: every payment method must be on the configured
//      allowlist (no allowlist means every method passes)
//   2. Tax rates: every product line must carry a resolved tax rate
//   3. Monetary consistency: the tax-inclusive product total must equal the
//      payment total within an absolute epsilon of 1e-8
//
// ERROR HANDLING:
//   - A failing sale is rejected with a warning and counted
//   - Rejections never stop the run
//
// =============================================================================

package validation

import (
	"fmt"
	"strings"

	"github.com/ginjaninja78/posledger/internal/sale"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// Epsilon is the absolute tolerance for the product/payment comparison.
// Amounts reach us as floating point values rounded independently by the
// till and the payment terminal.
var Epsilon = decimal.New(1, -8)

// Severity levels.
//
// "warning" = the sale is dropped, the run continues
// "error"   = the run stops
const (
	SeverityWarning = "warning"
	SeverityError   = "error"
)

// Rule names used in ValidationError.Rule.
const (
	RulePaymentMethod = "payment_method"
	RuleTaxRate       = "tax_rate"
	RuleAmount        = "amount"
)

// =============================================================================
// VALIDATION ERROR TYPES
// =============================================================================

// ValidationError describes why a sale was rejected.
type ValidationError struct {
	// Severity is always SeverityWarning for the built-in rules.
	Severity string

	// Reference is the sale reference.
	Reference string

	// Rule is the rule that was violated.
	Rule string

	// Message is a human-readable description.
	Message string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("[%s] sale '%s', rule '%s': %s", strings.ToUpper(e.Severity), e.Reference, e.Rule, e.Message)
}

// =============================================================================
// VALIDATION RESULT
// =============================================================================

// Result contains the outcome of validating a batch of sales.
type Result struct {
	// Valid holds the accepted sales in input order.
	Valid []sale.Sale

	// Errors holds one entry per rejected sale.
	Errors []*ValidationError

	// SalesValidated is the number of sales inspected.
	SalesValidated int

	// Rejected is the number of sales dropped.
	Rejected int
}

// =============================================================================
// VALIDATOR
// =============================================================================

// Validator checks sales against the configured rules.
type Validator struct {
	allowedMethods map[string]struct{}

	// methods keeps the allowlist in configured order for messages.
	methods []string
	log     logrus.FieldLogger
}

// NewValidator creates a Validator. An empty allowlist disables the payment
// method filter.
func NewValidator(allowedMethods []string, log logrus.FieldLogger) *Validator {
	v := &Validator{log: log}
	if len(allowedMethods) > 0 {
		v.allowedMethods = make(map[string]struct{}, len(allowedMethods))
		for _, m := range allowedMethods {
			m = strings.TrimSpace(m)
			if _, dup := v.allowedMethods[m]; dup {
				continue
			}
			v.allowedMethods[m] = struct{}{}
			v.methods = append(v.methods, m)
		}
	}
	return v
}

// Validate reports whether the sale may be synchronized. A rejection is
// logged as a warning.
func (v *Validator) Validate(s sale.Sale) bool {
	if verr := v.Check(s); verr != nil {
		v.log.WithField("reference", s.Reference).Warn(verr.Message + ". Ignoring sale.")
		return false
	}
	return true
}

// Check returns the first rule the sale violates, or nil.
func (v *Validator) Check(s sale.Sale) *ValidationError {
	// =========================================================================
	// PAYMENT METHOD FILTER
	// =========================================================================

	if v.allowedMethods != nil {
		for _, p := range s.Payments {
			if _, ok := v.allowedMethods[p.Method]; !ok {
				return &ValidationError{
					Severity:  SeverityWarning,
					Reference: s.Reference,
					Rule:      RulePaymentMethod,
					Message:   fmt.Sprintf("payment method '%s' is not allowed by the configured filter %v", p.Method, v.methods),
				}
			}
		}
	}

	// =========================================================================
	// TAX RATES
	// =========================================================================

	for _, p := range s.Products {
		if !p.HasTaxRate {
			return &ValidationError{
				Severity:  SeverityWarning,
				Reference: s.Reference,
				Rule:      RuleTaxRate,
				Message:   fmt.Sprintf("line %d has no tax category", p.LineNumber),
			}
		}
	}

	// =========================================================================
	// MONETARY CONSISTENCY
	// =========================================================================

	products := s.ProductsTotal()
	payments := s.PaymentsTotal()
	if !NumericEqual(products, payments) {
		return &ValidationError{
			Severity:  SeverityWarning,
			Reference: s.Reference,
			Rule:      RuleAmount,
			Message:   fmt.Sprintf("the amount of products is %s, but the payment is %s", products, payments),
		}
	}
	return nil
}

// ValidateAll validates every sale and collects the accepted ones.
func (v *Validator) ValidateAll(sales []sale.Sale) *Result {
	result := &Result{
		Valid:          make([]sale.Sale, 0, len(sales)),
		SalesValidated: len(sales),
	}
	for _, s := range sales {
		verr := v.Check(s)
		if verr == nil {
			result.Valid = append(result.Valid, s)
			continue
		}
		v.log.WithField("reference", s.Reference).Warn(verr.Message + ". Ignoring sale.")
		result.Errors = append(result.Errors, verr)
		result.Rejected++
	}
	return result
}

// NumericEqual reports whether x and y differ by at most Epsilon.
func NumericEqual(x, y decimal.Decimal) bool {
	return x.Sub(y).Abs().LessThanOrEqual(Epsilon)
}
