package repository

import (
	"context"
	"database/sql"
	"errors"
	"io/fs"
	"strings"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/pressly/goose/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func stubGooseUp(t *testing.T, fn func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error) {
	t.Helper()
	original := gooseUpFunc
	gooseUpFunc = fn
	t.Cleanup(func() { gooseUpFunc = original })
}

func TestMigrateRunsEmbeddedMigrations(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	var gotDir string
	var gotDB *sql.DB
	stubGooseUp(t, func(_ context.Context, conn *sql.DB, dir string, _ ...goose.OptionsFunc) error {
		gotDB, gotDir = conn, dir
		return nil
	})

	require.NoError(t, Migrate(context.Background(), sqlx.NewDb(db, "sqlmock"), nil))
	assert.Equal(t, "migrations", gotDir)
	assert.Same(t, db, gotDB)
}

func TestMigratePropagatesFailure(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	stubGooseUp(t, func(context.Context, *sql.DB, string, ...goose.OptionsFunc) error {
		return errors.New("relation already exists")
	})

	err = Migrate(context.Background(), sqlx.NewDb(db, "sqlmock"), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "relation already exists")
}

func TestEmbeddedMigrationsCarryGooseAnnotations(t *testing.T) {
	entries, err := fs.ReadDir(migrationsFS, migrationsDir)
	require.NoError(t, err)
	require.NotEmpty(t, entries)
	for _, entry := range entries {
		body, err := fs.ReadFile(migrationsFS, migrationsDir+"/"+entry.Name())
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(string(body), "-- +goose Up"), entry.Name())
		assert.Contains(t, string(body), "-- +goose Down", entry.Name())
	}
}
