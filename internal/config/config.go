// =============================================================================
// posledger - Configuration Module
// =============================================================================
//
// This module loads the application configuration. A single YAML file holds
// the settings for the point-of-sale source, the ledger, the sync rules, the
// snapshot cache, logging and the run report. Secrets (API token, database
// password, Redis password) are read from the environment, optionally loaded
// from a .env file, so the YAML file can be committed.
//
// LOADING FLOW:
//   1. Load .env (if present)
//   2. Read and parse the YAML file
//   3. Apply environment overrides
//   4. Apply default values
//   5. Validate the shared settings (ledger and source settings are
//      validated by the commands that use them)
//
// =============================================================================

package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Environment variables holding secrets.
const (
	EnvLedgerToken    = "POSLEDGER_LEDGER_TOKEN"
	EnvSourceDSN      = "POSLEDGER_SOURCE_DSN"
	EnvSourcePassword = "POSLEDGER_SOURCE_PASSWORD"
	EnvRedisPassword  = "POSLEDGER_REDIS_PASSWORD"
)

// =============================================================================
// CONFIGURATION STRUCTURE
// =============================================================================

// Config holds the complete application configuration.
type Config struct {
	Source  SourceConfig  `yaml:"source"`
	Ledger  LedgerConfig  `yaml:"ledger" validate:"-"`
	Sync    SyncConfig    `yaml:"sync"`
	Cache   CacheConfig   `yaml:"cache"`
	Logging LoggingConfig `yaml:"logging"`
	Report  ReportConfig  `yaml:"report"`
}

// SourceConfig describes the uniCenta point-of-sale database.
type SourceConfig struct {
	// DSN is a complete go-sql-driver DSN. When empty it is assembled from
	// the individual fields below.
	DSN string `yaml:"dsn"`

	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"-"`
	Database string `yaml:"database"`

	// PaymentMethodFilter is the optional allowlist of payment methods.
	// A sale paid with any other method is rejected by the validator.
	// Empty means every method is allowed.
	PaymentMethodFilter []string `yaml:"payment_method_filter"`

	// ReferenceFormat builds the sale reference from the ticket number.
	// Default: "POS sale %d"
	ReferenceFormat string `yaml:"reference_format"`
}

// LedgerConfig describes the accounting ledger API and the names of the
// ledger-side entities the sync books against. All names are matched exactly
// (case sensitive).
type LedgerConfig struct {
	BaseURL          string `yaml:"base_url" validate:"required,url"`
	AdministrationID string `yaml:"administration_id" validate:"required"`
	Token            string `yaml:"-" validate:"required"`
	PerPage          int    `yaml:"per_page" validate:"gt=0,lte=100"`
	TimeoutSeconds   int    `yaml:"timeout_seconds" validate:"gt=0"`

	WalkInContact         string `yaml:"walk_in_contact" validate:"required"`
	FeeContact            string `yaml:"fee_contact"`
	FinancialAccount      string `yaml:"financial_account" validate:"required"`
	RevenueLedgerAccount  string `yaml:"revenue_ledger_account" validate:"required"`
	ClearingLedgerAccount string `yaml:"clearing_ledger_account"`
	BankCostsLedger       string `yaml:"bank_costs_ledger_account"`

	// ZeroTaxRateName is the name of the 0% tax rate, which the ledger
	// lists without a percentage.
	ZeroTaxRateName string `yaml:"zero_tax_rate_name"`

	// TaxRateNames optionally pins a percentage (e.g. "21") to a tax rate
	// name. Percentages without an entry are matched numerically.
	TaxRateNames map[string]string `yaml:"tax_rate_names"`

	DefaultDescription string `yaml:"default_description"`
	SendInvoices       bool   `yaml:"send_invoices"`
}

// SyncConfig holds the reconciliation rules.
type SyncConfig struct {
	// WindowDays is the length of the default trailing window. The window
	// ends one day in the future.
	WindowDays int `yaml:"window_days" validate:"gt=0"`

	// PaymentKinds maps a point-of-sale payment method to a transaction
	// kind (CARD_PAYMENT, CARD_PAYMENT_FEE, PAYOUT, CASH, ...). Unmapped
	// methods use their upper-cased name.
	PaymentKinds map[string]string `yaml:"payment_kinds"`
}

// CacheConfig selects the snapshot cache backend.
type CacheConfig struct {
	Backend   string `yaml:"backend" validate:"oneof=file redis"`
	Dir       string `yaml:"dir"`
	RedisAddr string `yaml:"redis_addr"`
	RedisDB   int    `yaml:"redis_db"`
	RedisPass string `yaml:"-"`
	KeyPrefix string `yaml:"key_prefix"`
}

// LoggingConfig controls the log outputs.
type LoggingConfig struct {
	// File receives every log entry at debug level. Empty disables it.
	File string `yaml:"file"`

	// Level is the console level: "debug", "info", "warn", "error".
	// --verbose raises it to at least "info".
	Level string `yaml:"level" validate:"oneof=debug info warn error"`
}

// ReportConfig controls the run report.
type ReportConfig struct {
	Enabled bool   `yaml:"enabled"`
	Dir     string `yaml:"dir"`

	// FileFormat names the report file. Placeholders:
	//   {uuid}      - the run id
	//   {timestamp} - run start (YYYYMMDD_HHMMSS)
	FileFormat string `yaml:"file_format"`

	// KeepDays prunes reports older than this many days. 0 keeps all.
	KeepDays int `yaml:"keep_days" validate:"gte=0"`
}

// =============================================================================
// LOADING
// =============================================================================

// Load reads the configuration file, applies the environment overrides and
// defaults, and validates the result.
func Load(path string) (*Config, error) {
	// A missing .env file is normal in production.
	_ = godotenv.Load()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

// Parse builds a Config from YAML bytes and the current environment.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	applyEnv(&cfg)
	applyDefaults(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// applyEnv copies secrets from the environment.
func applyEnv(cfg *Config) {
	if v := strings.TrimSpace(os.Getenv(EnvLedgerToken)); v != "" {
		cfg.Ledger.Token = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvSourceDSN)); v != "" {
		cfg.Source.DSN = v
	}
	if v := os.Getenv(EnvSourcePassword); v != "" {
		cfg.Source.Password = v
	}
	if v := os.Getenv(EnvRedisPassword); v != "" {
		cfg.Cache.RedisPass = v
	}
}

// applyDefaults sets default values for any unset configuration options.
func applyDefaults(cfg *Config) {
	if cfg.Source.Port == 0 {
		cfg.Source.Port = 3306
	}
	if cfg.Source.ReferenceFormat == "" {
		cfg.Source.ReferenceFormat = "POS sale %d"
	}

	if cfg.Ledger.BaseURL == "" {
		cfg.Ledger.BaseURL = "https://moneybird.com/api/v2"
	}
	if cfg.Ledger.PerPage == 0 {
		cfg.Ledger.PerPage = 100
	}
	if cfg.Ledger.TimeoutSeconds == 0 {
		cfg.Ledger.TimeoutSeconds = 30
	}
	if cfg.Ledger.ZeroTaxRateName == "" {
		cfg.Ledger.ZeroTaxRateName = "Geen btw"
	}
	if cfg.Ledger.DefaultDescription == "" {
		cfg.Ledger.DefaultDescription = "Diversen"
	}

	if cfg.Sync.WindowDays == 0 {
		cfg.Sync.WindowDays = 1
	}

	if cfg.Cache.Backend == "" {
		cfg.Cache.Backend = "file"
	}
	if cfg.Cache.Dir == "" {
		cfg.Cache.Dir = "./var"
	}
	if cfg.Cache.RedisAddr == "" {
		cfg.Cache.RedisAddr = "localhost:6379"
	}
	if cfg.Cache.KeyPrefix == "" {
		cfg.Cache.KeyPrefix = "posledger:"
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "warn"
	}

	if cfg.Report.Dir == "" {
		cfg.Report.Dir = "./reports"
	}
	if cfg.Report.FileFormat == "" {
		cfg.Report.FileFormat = "sync_{timestamp}_{uuid}.xlsx"
	}
}

var structValidator = validator.New()

// validate checks the settings every command needs. The ledger and the
// point-of-sale database are checked by RequireLedger and RequireSource,
// because not every command talks to them.
func validate(cfg *Config) error {
	if err := structErrors(structValidator.Struct(cfg)); err != nil {
		return err
	}
	if cfg.Source.ReferenceFormat != "" && !strings.Contains(cfg.Source.ReferenceFormat, "%d") {
		return fmt.Errorf("source.reference_format %q must contain %%d", cfg.Source.ReferenceFormat)
	}
	return nil
}

// RequireLedger checks the ledger settings. Commands that talk to the
// ledger call it after Load.
func (c *Config) RequireLedger() error {
	if err := structErrors(structValidator.Struct(c.Ledger)); err != nil {
		return fmt.Errorf("invalid ledger configuration: %w", err)
	}

	// Kinds that need extra ledger entities must have them configured.
	for method, kind := range c.Sync.PaymentKinds {
		switch strings.ToUpper(kind) {
		case "PAYOUT":
			if c.Ledger.ClearingLedgerAccount == "" {
				return fmt.Errorf("payment method %q maps to PAYOUT but ledger.clearing_ledger_account is empty", method)
			}
		case "CARD_PAYMENT_FEE":
			if c.Ledger.FeeContact == "" || c.Ledger.BankCostsLedger == "" {
				return fmt.Errorf("payment method %q maps to CARD_PAYMENT_FEE but ledger.fee_contact or ledger.bank_costs_ledger_account is empty", method)
			}
		}
	}
	return nil
}

// RequireSource checks the point-of-sale database settings. Commands that
// open the database call it after Load.
func (c *Config) RequireSource() error {
	if c.Source.DSN == "" && (c.Source.Host == "" || c.Source.Database == "") {
		return errors.New("source: either dsn or host and database must be set")
	}
	return nil
}

// structErrors flattens validator errors into one message.
func structErrors(err error) error {
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s: failed '%s'", fe.Namespace(), fe.Tag()))
	}
	return errors.New(strings.Join(msgs, "; "))
}

// SourceDSN returns the MySQL DSN for the point-of-sale database.
// parseTime is required so DATETIME columns scan into time.Time.
func (c SourceConfig) SourceDSN() string {
	if c.DSN != "" {
		return c.DSN
	}
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true&loc=Local",
		c.User, c.Password, c.Host, c.Port, c.Database)
}

// PaymentKind returns the transaction kind for a payment method.
func (c SyncConfig) PaymentKind(method string) string {
	if kind, ok := c.PaymentKinds[method]; ok && kind != "" {
		return strings.ToUpper(kind)
	}
	return strings.ToUpper(method)
}
