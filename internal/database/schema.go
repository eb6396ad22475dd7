package database

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"embed"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/jmoiron/sqlx"
	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var embedMigrations embed.FS

type SchemaStatus string

const (
	SchemaApplied        SchemaStatus = "applied"
	SchemaAlreadyApplied SchemaStatus = "already-applied"
	SchemaFailed         SchemaStatus = "failed"
)

type SchemaResult struct {
	Status SchemaStatus
	// Applied lists migration versions applied by this run.
	Applied []int64
	// Version is the schema version after the run (0 for script schemas).
	Version int64
	// Checksum identifies a script schema (empty for migrations).
	Checksum string
	Err      error
}

// SchemaApplier brings the application database up to the current schema.
type SchemaApplier interface {
	Apply(ctx context.Context, db *sql.DB) (SchemaResult, error)
}

// MigrationApplier applies goose migrations. Applied versions are recorded in goose_db_version.
type MigrationApplier struct {
	fsys fs.FS
}

// NewMigrationApplier uses the embedded migrations when dir is empty.
func NewMigrationApplier(dir string) (*MigrationApplier, error) {
	if dir == "" {
		sub, err := fs.Sub(embedMigrations, "migrations")
		if err != nil {
			return nil, err
		}
		return &MigrationApplier{fsys: sub}, nil
	}

	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("migrations directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("migrations directory: %s is not a directory", dir)
	}
	return &MigrationApplier{fsys: os.DirFS(dir)}, nil
}

func (a *MigrationApplier) Apply(ctx context.Context, db *sql.DB) (SchemaResult, error) {
	provider, err := goose.NewProvider(goose.DialectPostgres, db, a.fsys)
	if err != nil {
		return failedSchema(err)
	}

	results, err := provider.Up(ctx)
	if err != nil {
		res, wrapped := failedSchema(err)
		var partial *goose.PartialError
		if errors.As(err, &partial) {
			res.Applied = versionsOf(partial.Applied)
		}
		return res, wrapped
	}

	version, err := provider.GetDBVersion(ctx)
	if err != nil {
		return failedSchema(err)
	}

	res := SchemaResult{Status: SchemaAlreadyApplied, Version: version}
	if len(results) > 0 {
		res.Status = SchemaApplied
		res.Applied = versionsOf(results)
	}
	return res, nil
}

func versionsOf(results []*goose.MigrationResult) []int64 {
	versions := make([]int64, 0, len(results))
	for _, r := range results {
		if r != nil && r.Source != nil {
			versions = append(versions, r.Source.Version)
		}
	}
	return versions
}

const scriptTable = "schema_scripts"

// ScriptApplier executes a single DDL file as one batch, at most once per
// distinct file content. The content hash is recorded in schema_scripts.
type ScriptApplier struct {
	path string
	read func(string) ([]byte, error)
}

func NewScriptApplier(path string) *ScriptApplier {
	return &ScriptApplier{path: path, read: os.ReadFile}
}

func (a *ScriptApplier) Apply(ctx context.Context, db *sql.DB) (SchemaResult, error) {
	body, err := a.read(a.path)
	if err != nil {
		return failedSchema(fmt.Errorf("read schema file: %w", err))
	}
	if len(body) == 0 {
		return failedSchema(fmt.Errorf("schema file %s is empty", a.path))
	}

	sum := sha256.Sum256(body)
	checksum := hex.EncodeToString(sum[:])

	if _, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS `+scriptTable+` (
			checksum   TEXT PRIMARY KEY,
			name       TEXT NOT NULL,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`); err != nil {
		return failedSchema(err)
	}

	var applied bool
	if err := db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM `+scriptTable+` WHERE checksum = $1)`, checksum,
	).Scan(&applied); err != nil {
		return failedSchema(err)
	}
	if applied {
		return SchemaResult{Status: SchemaAlreadyApplied, Checksum: checksum}, nil
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return failedSchema(err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, string(body)); err != nil {
		return failedSchema(err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO `+scriptTable+` (checksum, name) VALUES ($1, $2)`,
		checksum, filepath.Base(a.path),
	); err != nil {
		return failedSchema(err)
	}
	if err := tx.Commit(); err != nil {
		return failedSchema(err)
	}

	return SchemaResult{Status: SchemaApplied, Checksum: checksum}, nil
}

func failedSchema(err error) (SchemaResult, error) {
	return SchemaResult{Status: SchemaFailed, Err: err}, fmt.Errorf("%w: %w", ErrSchema, err)
}

// SchemaVersion reads the latest applied goose version without creating anything.
// ok is false when no migration has ever been applied.
func SchemaVersion(ctx context.Context, db *sqlx.DB) (version int64, ok bool, err error) {
	var table sql.NullString
	if err := db.GetContext(ctx, &table, `SELECT to_regclass('public.goose_db_version')::text`); err != nil {
		return 0, false, err
	}
	if !table.Valid {
		return 0, false, nil
	}

	if err := db.GetContext(ctx, &version,
		`SELECT COALESCE(MAX(version_id), 0) FROM goose_db_version WHERE is_applied`); err != nil {
		return 0, false, err
	}
	return version, version > 0, nil
}

// AppliedScript is the most recent schema file recorded by ScriptApplier.
type AppliedScript struct {
	Checksum string `db:"checksum"`
	Name     string `db:"name"`
}

// LatestScript returns the last schema file applied by ScriptApplier.
// ok is false when no script has ever been applied.
func LatestScript(ctx context.Context, db *sqlx.DB) (script AppliedScript, ok bool, err error) {
	var table sql.NullString
	if err := db.GetContext(ctx, &table, `SELECT to_regclass('public.`+scriptTable+`')::text`); err != nil {
		return AppliedScript{}, false, err
	}
	if !table.Valid {
		return AppliedScript{}, false, nil
	}

	err = db.GetContext(ctx, &script,
		`SELECT checksum, name FROM `+scriptTable+` ORDER BY applied_at DESC LIMIT 1`)
	if errors.Is(err, sql.ErrNoRows) {
		return AppliedScript{}, false, nil
	}
	if err != nil {
		return AppliedScript{}, false, err
	}
	return script, true, nil
}
