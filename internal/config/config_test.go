package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const minimalYAML = `
source:
  host: pos.local
  user: pos
  database: unicentaopos
ledger:
  administration_id: "123456"
  walk_in_contact: Passant
  financial_account: Kassa
  revenue_ledger_account: Omzet
`

func TestParse_AppliesDefaults(t *testing.T) {
	t.Setenv(EnvLedgerToken, "secret-token")
	t.Setenv(EnvSourcePassword, "pw")

	cfg, err := Parse([]byte(minimalYAML))
	require.NoError(t, err)

	assert.Equal(t, "secret-token", cfg.Ledger.Token)
	assert.Equal(t, "https://moneybird.com/api/v2", cfg.Ledger.BaseURL)
	assert.Equal(t, 100, cfg.Ledger.PerPage)
	assert.Equal(t, "POS sale %d", cfg.Source.ReferenceFormat)
	assert.Equal(t, "Geen btw", cfg.Ledger.ZeroTaxRateName)
	assert.Equal(t, "Diversen", cfg.Ledger.DefaultDescription)
	assert.Equal(t, 1, cfg.Sync.WindowDays)
	assert.Equal(t, "file", cfg.Cache.Backend)
	assert.Equal(t, "warn", cfg.Logging.Level)
	assert.Equal(t, "pos:pw@tcp(pos.local:3306)/unicentaopos?parseTime=true&loc=Local", cfg.Source.SourceDSN())
}

func TestRequireLedger_MissingToken(t *testing.T) {
	t.Setenv(EnvLedgerToken, "")

	cfg, err := Parse([]byte(minimalYAML))
	require.NoError(t, err, "commands that never call the ledger run without a token")

	err = cfg.RequireLedger()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Token")
}

func TestRequireSource(t *testing.T) {
	t.Setenv(EnvLedgerToken, "secret-token")
	t.Setenv(EnvSourceDSN, "")

	yml := `
ledger:
  administration_id: "123456"
  walk_in_contact: Passant
  financial_account: Kassa
  revenue_ledger_account: Omzet
`
	cfg, err := Parse([]byte(yml))
	require.NoError(t, err, "sync --from-cache needs no database settings")
	require.NoError(t, cfg.RequireLedger())
	assert.Error(t, cfg.RequireSource())

	cfg, err = Parse([]byte(minimalYAML))
	require.NoError(t, err)
	assert.NoError(t, cfg.RequireSource())
}

func TestParse_RejectsUnknownCacheBackend(t *testing.T) {
	t.Setenv(EnvLedgerToken, "secret-token")

	_, err := Parse([]byte(minimalYAML + "cache:\n  backend: memcached\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Backend")
}

func TestRequireLedger_PayoutNeedsClearingAccount(t *testing.T) {
	t.Setenv(EnvLedgerToken, "secret-token")

	cfg, err := Parse([]byte(minimalYAML + "sync:\n  payment_kinds:\n    cashout: PAYOUT\n"))
	require.NoError(t, err)

	err = cfg.RequireLedger()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "clearing_ledger_account")
}

func TestParse_ReferenceFormatNeedsVerb(t *testing.T) {
	t.Setenv(EnvLedgerToken, "secret-token")

	yml := `
source:
  dsn: "user:pw@tcp(db:3306)/pos"
  reference_format: POS sale
ledger:
  administration_id: "123456"
  walk_in_contact: Passant
  financial_account: Kassa
  revenue_ledger_account: Omzet
`
	_, err := Parse([]byte(yml))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "reference_format")
}

func TestLoad_ReadsFile(t *testing.T) {
	t.Setenv(EnvLedgerToken, "secret-token")
	t.Setenv(EnvSourceDSN, "user:pw@tcp(db:3306)/pos?parseTime=true")

	path := filepath.Join(t.TempDir(), "posledger.yaml")
	require.NoError(t, os.WriteFile(path, []byte(minimalYAML), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "user:pw@tcp(db:3306)/pos?parseTime=true", cfg.Source.SourceDSN())
}

func TestPaymentKind(t *testing.T) {
	s := SyncConfig{PaymentKinds: map[string]string{"magcard": "card_payment"}}
	assert.Equal(t, "CARD_PAYMENT", s.PaymentKind("magcard"))
	assert.Equal(t, "CASH", s.PaymentKind("cash"))
}
