package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPendingFiles(t *testing.T) {
	dir := t.TempDir()
	write := func(name, body string) {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0644))
	}
	write("002_indexes.sql", "CREATE INDEX x ON y (z);")
	write("001_schema.sql", "CREATE TABLE y (z INT);")
	write("003_empty.sql", "")
	write("README.md", "notes")
	require.NoError(t, os.Mkdir(filepath.Join(dir, "old.sql"), 0755))

	files, err := pendingFiles(dir, map[string]bool{})
	require.NoError(t, err)
	assert.Equal(t, []string{"001_schema.sql", "002_indexes.sql"}, files)

	files, err = pendingFiles(dir, map[string]bool{"001_schema.sql": true})
	require.NoError(t, err)
	assert.Equal(t, []string{"002_indexes.sql"}, files)
}

func TestAppliedMigrations(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("SELECT filename FROM schema_migrations").
		WillReturnRows(sqlmock.NewRows([]string{"filename"}).AddRow("001_schema.sql"))

	applied, err := appliedMigrations(db)
	require.NoError(t, err)
	assert.True(t, applied["001_schema.sql"])
	assert.NoError(t, mock.ExpectationsWereMet())
}
