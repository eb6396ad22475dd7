package database

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/Tlotliso-Khosi/AQUAGUARDPROJECT-sub001/internal/config"
)

type BootstrapResult struct {
	Connected       bool
	ServerVersion   string
	DatabaseExisted bool
	DatabaseCreated bool
	Schema          SchemaResult
	Err             error
}

func (r BootstrapResult) Succeeded() bool { return r.Err == nil }

// Bootstrapper makes sure the application database and its schema exist.
// Every step is safe to rerun; nothing is retried or rolled back.
type Bootstrapper struct {
	cfg    config.DatabaseConfig
	open   Opener
	schema SchemaApplier
	logger *slog.Logger
}

type BootstrapOption func(*Bootstrapper)

// WithOpener replaces the connection opener (tests use sqlmock).
func WithOpener(open Opener) BootstrapOption {
	return func(b *Bootstrapper) { b.open = open }
}

func NewBootstrapper(cfg config.DatabaseConfig, schema SchemaApplier, logger *slog.Logger, opts ...BootstrapOption) *Bootstrapper {
	b := &Bootstrapper{
		cfg:    cfg,
		open:   Connect,
		schema: schema,
		logger: logger,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Run executes connectivity check, create-if-missing and schema application in order.
// The first failing step ends the run; its error is also stored in the result.
func (b *Bootstrapper) Run(ctx context.Context) (BootstrapResult, error) {
	var res BootstrapResult

	if err := b.provision(ctx, &res); err != nil {
		res.Err = err
		b.logger.Error("bootstrap failed", "kind", ClassifyError(err), "error", err)
		return res, err
	}

	b.logger.Info("bootstrap complete",
		"database", b.cfg.App().DBName,
		"created", res.DatabaseCreated,
		"schema", res.Schema.Status,
		"version", res.Schema.Version)
	return res, nil
}

func (b *Bootstrapper) provision(ctx context.Context, res *BootstrapResult) error {
	adminCfg := b.cfg.Admin()
	appCfg := b.cfg.App()

	b.logger.Info("checking database server connectivity", "server", adminCfg.URL())
	admin, err := b.open(ctx, adminCfg)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrConnection, err)
	}
	adminOpen := true
	closeAdmin := func() {
		if adminOpen {
			adminOpen = false
			if err := admin.Close(); err != nil {
				b.logger.Debug("closing admin connection", "error", err)
			}
		}
	}
	defer closeAdmin()

	if err := admin.GetContext(ctx, &res.ServerVersion, `SELECT version()`); err != nil {
		return fmt.Errorf("%w: %w", ErrConnection, err)
	}
	res.Connected = true
	b.logger.Info("connected to database server", "version", res.ServerVersion)

	exists, err := DatabaseExists(ctx, admin, appCfg.DBName)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrExistenceCheck, err)
	}
	res.DatabaseExisted = exists
	if exists {
		b.logger.Info("database already exists, skipping creation", "database", appCfg.DBName)
	} else {
		b.logger.Info("database does not exist, creating", "database", appCfg.DBName)
		if _, err := admin.ExecContext(ctx, "CREATE DATABASE "+pq.QuoteIdentifier(appCfg.DBName)); err != nil {
			return fmt.Errorf("%w: %w", ErrCreateDatabase, err)
		}
		res.DatabaseCreated = true
	}

	closeAdmin()

	app, err := b.open(ctx, appCfg)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrConnection, err)
	}
	defer func() {
		if err := app.Close(); err != nil {
			b.logger.Debug("closing app connection", "error", err)
		}
	}()

	b.logger.Info("applying schema", "database", appCfg.DBName)
	res.Schema, err = b.schema.Apply(ctx, app.DB)
	if err != nil {
		return err
	}
	if res.Schema.Status == SchemaAlreadyApplied {
		b.logger.Info("schema already applied", "version", res.Schema.Version)
	} else {
		b.logger.Info("schema applied", "migrations", res.Schema.Applied, "version", res.Schema.Version)
	}

	return nil
}

// DatabaseExists reports whether name is listed in pg_database.
func DatabaseExists(ctx context.Context, db *sqlx.DB, name string) (bool, error) {
	var exists bool
	err := db.GetContext(ctx, &exists, `SELECT EXISTS(SELECT 1 FROM pg_database WHERE datname = $1)`, name)
	if err != nil {
		return false, err
	}
	return exists, nil
}

// TableExists reports whether a table named name is visible on the search path.
func TableExists(ctx context.Context, db *sqlx.DB, name string) (bool, error) {
	var table sql.NullString
	err := db.GetContext(ctx, &table, `SELECT to_regclass($1)::text`, name)
	if err != nil {
		return false, err
	}
	return table.Valid, nil
}
