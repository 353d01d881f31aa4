package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/ginjaninja78/posledger/internal/config"
	"github.com/ginjaninja78/posledger/internal/ledger"
	"github.com/ginjaninja78/posledger/internal/logging"
	"github.com/ginjaninja78/posledger/internal/reconcile"
	"github.com/ginjaninja78/posledger/internal/report"
	"github.com/ginjaninja78/posledger/internal/snapshot"
	"github.com/ginjaninja78/posledger/internal/source"
)

// app holds the components of one command invocation.
type app struct {
	cfg    *config.Config
	log    *logging.Logger
	engine *reconcile.Engine

	closers []func() error
}

// appOptions selects the components a command needs.
type appOptions struct {
	// withLedger builds the ledger client. check does not talk to the ledger.
	withLedger bool

	// fromCache skips the database connection.
	fromCache bool
}

// newApp builds the engine and everything it depends on.
func newApp(ctx context.Context, opts appOptions) (*app, error) {
	cfg, log, err := loadRuntime()
	if err != nil {
		return nil, err
	}
	a := &app{cfg: cfg, log: log}
	a.closers = append(a.closers, log.Close)

	if err := requireSettings(cfg, opts); err != nil {
		a.Close()
		return nil, err
	}

	// =========================================================================
	// POINT-OF-SALE SOURCE
	// =========================================================================

	var src source.Source
	if !opts.fromCache {
		db, err := source.Open(cfg.Source.SourceDSN())
		if err != nil {
			a.Close()
			return nil, err
		}
		src = db
		a.closers = append(a.closers, db.Close)
	}

	// =========================================================================
	// LEDGER CLIENT
	// =========================================================================

	var l reconcile.Ledger
	if opts.withLedger {
		client, err := ledger.NewClient(ledger.Options{
			BaseURL:          cfg.Ledger.BaseURL,
			AdministrationID: cfg.Ledger.AdministrationID,
			Token:            cfg.Ledger.Token,
			PerPage:          cfg.Ledger.PerPage,
			Timeout:          time.Duration(cfg.Ledger.TimeoutSeconds) * time.Second,
		})
		if err != nil {
			a.Close()
			return nil, err
		}
		l = client
	}

	// =========================================================================
	// SNAPSHOT CACHE
	// =========================================================================

	var (
		store  snapshot.Store
		locker reconcile.Locker
	)
	switch cfg.Cache.Backend {
	case "redis":
		rs, err := snapshot.NewRedisStore(ctx, snapshot.RedisOptions{
			Addr:      cfg.Cache.RedisAddr,
			Password:  cfg.Cache.RedisPass,
			DB:        cfg.Cache.RedisDB,
			KeyPrefix: cfg.Cache.KeyPrefix,
		})
		if err != nil {
			a.Close()
			return nil, err
		}
		store, locker = rs, rs
		a.closers = append(a.closers, rs.Close)
	default:
		fs, err := snapshot.NewFileStore(cfg.Cache.Dir)
		if err != nil {
			a.Close()
			return nil, err
		}
		store = fs
	}

	a.engine = reconcile.NewEngine(cfg, src, l, store, locker, log)
	return a, nil
}

// requireSettings checks the configuration of the components opts selects.
func requireSettings(cfg *config.Config, opts appOptions) error {
	if opts.withLedger {
		if err := cfg.RequireLedger(); err != nil {
			return err
		}
	}
	if !opts.fromCache {
		if err := cfg.RequireSource(); err != nil {
			return err
		}
	}
	return nil
}

// finish prints the run summary and writes the report when enabled.
func (a *app) finish(result *reconcile.Result, startedAt time.Time) error {
	if err := report.PrintSummary(os.Stdout, result, startedAt); err != nil {
		return err
	}
	if !a.cfg.Report.Enabled {
		return nil
	}

	path, err := report.NewWriter(report.Options{
		Dir:        a.cfg.Report.Dir,
		FileFormat: a.cfg.Report.FileFormat,
		KeepDays:   a.cfg.Report.KeepDays,
	}).Write(result, startedAt)
	if err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	fmt.Printf("Report written to %s\n", path)
	return nil
}

// Close releases every resource in reverse order of acquisition.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
		}
	}
}
