// Package database opens Postgres connections and provisions the application
// database: connectivity check, create-if-missing, and schema application.
package database

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/Tlotliso-Khosi/AQUAGUARDPROJECT-sub001/internal/config"
)

const driverName = "postgres"

// Opener opens and pings a connection for cfg.
type Opener func(ctx context.Context, cfg config.DatabaseConfig) (*sqlx.DB, error)

// Connect is the default Opener. The only timeout applied is cfg.ConnectTimeout.
func Connect(ctx context.Context, cfg config.DatabaseConfig) (*sqlx.DB, error) {
	if cfg.ConnectTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.ConnectTimeout)
		defer cancel()
	}

	db, err := sqlx.ConnectContext(ctx, driverName, cfg.DSN())
	if err != nil {
		return nil, err
	}
	return db, nil
}

type PoolOptions struct {
	MaxRetries      int
	RetryInterval   time.Duration
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

func DefaultPoolOptions() PoolOptions {
	return PoolOptions{
		MaxRetries:      5,
		RetryInterval:   2 * time.Second,
		MaxOpenConns:    25,
		MaxIdleConns:    5,
		ConnMaxLifetime: 5 * time.Minute,
	}
}

// OpenPool opens the long-lived pool used by the API server, retrying while
// the database container comes up.
func OpenPool(ctx context.Context, cfg config.DatabaseConfig, opts PoolOptions, open Opener, logger *slog.Logger) (*sqlx.DB, error) {
	if open == nil {
		open = Connect
	}
	if opts.MaxRetries < 1 {
		opts.MaxRetries = 1
	}

	var db *sqlx.DB
	var err error
	for i := 0; i < opts.MaxRetries; i++ {
		db, err = open(ctx, cfg)
		if err == nil {
			break
		}

		logger.Warn("database connection attempt failed",
			"attempt", i+1, "max_attempts", opts.MaxRetries,
			"kind", ClassifyError(err), "error", err)

		if i < opts.MaxRetries-1 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(opts.RetryInterval):
			}
		}
	}
	if err != nil {
		return nil, fmt.Errorf("%w after %d attempts: %w", ErrConnection, opts.MaxRetries, err)
	}

	db.SetMaxOpenConns(opts.MaxOpenConns)
	db.SetMaxIdleConns(opts.MaxIdleConns)
	db.SetConnMaxLifetime(opts.ConnMaxLifetime)

	return db, nil
}
