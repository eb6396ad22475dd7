package database

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSchema = `CREATE TABLE IF NOT EXISTS users (id UUID PRIMARY KEY);`

var (
	createScriptTable = regexp.QuoteMeta(`CREATE TABLE IF NOT EXISTS schema_scripts`)
	scriptExists      = regexp.QuoteMeta(`SELECT EXISTS(SELECT 1 FROM schema_scripts WHERE checksum = $1)`)
	insertScript      = regexp.QuoteMeta(`INSERT INTO schema_scripts (checksum, name) VALUES ($1, $2)`)
)

func newScriptApplier(body string, readErr error) *ScriptApplier {
	return &ScriptApplier{
		path: "/srv/aquaguard/schema.sql",
		read: func(string) ([]byte, error) { return []byte(body), readErr },
	}
}

func TestScriptApplier_AppliesOnce(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	mock.ExpectExec(createScriptTable).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(scriptExists).WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(testSchema)).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(insertScript).WithArgs(sqlmock.AnyArg(), "schema.sql").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	res, err := newScriptApplier(testSchema, nil).Apply(context.Background(), db)

	require.NoError(t, err)
	assert.Equal(t, SchemaApplied, res.Status)
	assert.Len(t, res.Checksum, 64)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestScriptApplier_AlreadyApplied(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	mock.ExpectExec(createScriptTable).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(scriptExists).WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	res, err := newScriptApplier(testSchema, nil).Apply(context.Background(), db)

	require.NoError(t, err)
	assert.Equal(t, SchemaAlreadyApplied, res.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestScriptApplier_ExecFailureRollsBack(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	mock.ExpectExec(createScriptTable).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(scriptExists).WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(testSchema)).WillReturnError(errors.New("syntax error"))
	mock.ExpectRollback()

	res, err := newScriptApplier(testSchema, nil).Apply(context.Background(), db)

	assert.ErrorIs(t, err, ErrSchema)
	assert.Equal(t, SchemaFailed, res.Status)
	assert.EqualError(t, res.Err, "syntax error")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestScriptApplier_ReadErrors(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)

	_, err = newScriptApplier("", os.ErrNotExist).Apply(context.Background(), db)
	assert.ErrorIs(t, err, ErrSchema)
	assert.ErrorIs(t, err, os.ErrNotExist)

	_, err = newScriptApplier("", nil).Apply(context.Background(), db)
	assert.ErrorIs(t, err, ErrSchema)
	assert.Contains(t, err.Error(), "empty")
}

func TestNewMigrationApplier_Embedded(t *testing.T) {
	a, err := NewMigrationApplier("")
	require.NoError(t, err)

	names, err := fs.Glob(a.fsys, "*.sql")
	require.NoError(t, err)
	assert.Equal(t, []string{"00001_init.sql", "00002_marketplace.sql"}, names)

	body, err := fs.ReadFile(a.fsys, "00001_init.sql")
	require.NoError(t, err)
	assert.Contains(t, string(body), "-- +goose Up")
	assert.Contains(t, string(body), "CREATE TABLE IF NOT EXISTS users")
}

func TestNewMigrationApplier_Directory(t *testing.T) {
	dir := t.TempDir()

	_, err := NewMigrationApplier(filepath.Join(dir, "missing"))
	assert.Error(t, err)

	file := filepath.Join(dir, "schema.sql")
	require.NoError(t, os.WriteFile(file, []byte(testSchema), 0o600))
	_, err = NewMigrationApplier(file)
	assert.ErrorContains(t, err, "not a directory")

	a, err := NewMigrationApplier(dir)
	require.NoError(t, err)
	assert.NotNil(t, a.fsys)
}

func TestSchemaVersion(t *testing.T) {
	regclass := regexp.QuoteMeta(`SELECT to_regclass('public.goose_db_version')::text`)
	maxVersion := regexp.QuoteMeta(`SELECT COALESCE(MAX(version_id), 0) FROM goose_db_version WHERE is_applied`)

	t.Run("never migrated", func(t *testing.T) {
		db, mock := newMock(t)
		mock.ExpectQuery(regclass).WillReturnRows(sqlmock.NewRows([]string{"to_regclass"}).AddRow(nil))

		v, ok, err := SchemaVersion(context.Background(), db)
		require.NoError(t, err)
		assert.False(t, ok)
		assert.Zero(t, v)
	})

	t.Run("migrated", func(t *testing.T) {
		db, mock := newMock(t)
		mock.ExpectQuery(regclass).WillReturnRows(sqlmock.NewRows([]string{"to_regclass"}).AddRow("goose_db_version"))
		mock.ExpectQuery(maxVersion).WillReturnRows(sqlmock.NewRows([]string{"coalesce"}).AddRow(int64(2)))

		v, ok, err := SchemaVersion(context.Background(), db)
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, int64(2), v)
	})
}

func TestLatestScript(t *testing.T) {
	regclass := regexp.QuoteMeta(`SELECT to_regclass('public.schema_scripts')::text`)
	latest := regexp.QuoteMeta(`SELECT checksum, name FROM schema_scripts ORDER BY applied_at DESC LIMIT 1`)

	t.Run("no script table", func(t *testing.T) {
		db, mock := newMock(t)
		mock.ExpectQuery(regclass).WillReturnRows(sqlmock.NewRows([]string{"to_regclass"}).AddRow(nil))

		_, ok, err := LatestScript(context.Background(), db)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("table without rows", func(t *testing.T) {
		db, mock := newMock(t)
		mock.ExpectQuery(regclass).WillReturnRows(sqlmock.NewRows([]string{"to_regclass"}).AddRow("schema_scripts"))
		mock.ExpectQuery(latest).WillReturnRows(sqlmock.NewRows([]string{"checksum", "name"}))

		_, ok, err := LatestScript(context.Background(), db)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("applied", func(t *testing.T) {
		db, mock := newMock(t)
		mock.ExpectQuery(regclass).WillReturnRows(sqlmock.NewRows([]string{"to_regclass"}).AddRow("schema_scripts"))
		mock.ExpectQuery(latest).WillReturnRows(sqlmock.NewRows([]string{"checksum", "name"}).AddRow("abc123", "schema.sql"))

		script, ok, err := LatestScript(context.Background(), db)
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, AppliedScript{Checksum: "abc123", Name: "schema.sql"}, script)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
