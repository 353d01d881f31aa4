// =============================================================================
// posledger - Ledger Name Resolvers
// =============================================================================
//
// Configuration refers to ledger entities by their human-readable names. The
// resolvers map those names to ledger ids using the downloaded snapshots.
//
// MATCHING:
//   - Contacts by company name, ledger and financial accounts by name
//   - Exact and case sensitive; the first match wins
//   - Tax rates by type and percentage (see TaxRates)
//
// A failed lookup returns *NotFoundError. It is fatal for the run.
//
// =============================================================================

package resolve

import (
	"fmt"

	"github.com/ginjaninja78/posledger/internal/ledger"
)

// Entity kinds used in NotFoundError.
const (
	KindContact          = "contact"
	KindLedgerAccount    = "ledger account"
	KindFinancialAccount = "financial account"
	KindTaxRate          = "tax rate"
)

// NotFoundError is returned when a configured name has no ledger entity.
type NotFoundError struct {
	Kind string
	Name string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("could not find %s with name %q (names are case sensitive)", e.Kind, e.Name)
}

// Names resolves names to ids for one entity kind.
type Names struct {
	kind string
	ids  map[string]string
}

func newNames[T any](kind string, items []T, name func(T) string, id func(T) string) *Names {
	n := &Names{kind: kind, ids: make(map[string]string, len(items))}
	for _, it := range items {
		key := name(it)
		if _, seen := n.ids[key]; !seen {
			n.ids[key] = id(it)
		}
	}
	return n
}

// Contacts resolves contacts by company name.
func Contacts(contacts []ledger.Contact) *Names {
	return newNames(KindContact, contacts,
		func(c ledger.Contact) string { return c.CompanyName },
		func(c ledger.Contact) string { return c.ID })
}

// LedgerAccounts resolves ledger accounts by name.
func LedgerAccounts(accounts []ledger.LedgerAccount) *Names {
	return newNames(KindLedgerAccount, accounts,
		func(a ledger.LedgerAccount) string { return a.Name },
		func(a ledger.LedgerAccount) string { return a.ID })
}

// FinancialAccounts resolves financial accounts by name.
func FinancialAccounts(accounts []ledger.FinancialAccount) *Names {
	return newNames(KindFinancialAccount, accounts,
		func(a ledger.FinancialAccount) string { return a.Name },
		func(a ledger.FinancialAccount) string { return a.ID })
}

// ID returns the id for name.
func (n *Names) ID(name string) (string, error) {
	if id, ok := n.ids[name]; ok && name != "" {
		return id, nil
	}
	return "", &NotFoundError{Kind: n.kind, Name: name}
}
