package database

import (
	"database/sql"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_CreatesAndPings(t *testing.T) {
	dir := t.TempDir()
	db, err := New(Config{Path: filepath.Join(dir, "test.db"), Name: "test"})
	require.NoError(t, err)
	defer db.Close()

	assert.Equal(t, "test", db.Name())
	assert.NoError(t, db.Conn().Ping())
}

func TestNew_DefaultsProfile(t *testing.T) {
	dir := t.TempDir()
	db, err := New(Config{Path: filepath.Join(dir, "test.db")})
	require.NoError(t, err)
	defer db.Close()
}

func TestEnsureSchema_Idempotent(t *testing.T) {
	dir := t.TempDir()
	db, err := New(Config{Path: filepath.Join(dir, "test.db"), Name: "test"})
	require.NoError(t, err)
	defer db.Close()

	schema := `CREATE TABLE IF NOT EXISTS widgets (id TEXT PRIMARY KEY);`
	require.NoError(t, db.EnsureSchema(schema))
	require.NoError(t, db.EnsureSchema(schema))

	_, err = db.Conn().Exec(`INSERT INTO widgets (id) VALUES ('a')`)
	assert.NoError(t, err)
}

func TestWithTransaction_CommitsOnSuccess(t *testing.T) {
	dir := t.TempDir()
	db, err := New(Config{Path: filepath.Join(dir, "test.db"), Name: "test"})
	require.NoError(t, err)
	defer db.Close()
	require.NoError(t, db.EnsureSchema(`CREATE TABLE IF NOT EXISTS widgets (id TEXT PRIMARY KEY);`))

	err = WithTransaction(db.Conn(), func(tx *sql.Tx) error {
		_, execErr := tx.Exec(`INSERT INTO widgets (id) VALUES ('a')`)
		return execErr
	})
	require.NoError(t, err)

	var count int
	require.NoError(t, db.Conn().QueryRow(`SELECT COUNT(*) FROM widgets`).Scan(&count))
	assert.Equal(t, 1, count)
}

func TestWithTransaction_RollsBackOnError(t *testing.T) {
	dir := t.TempDir()
	db, err := New(Config{Path: filepath.Join(dir, "test.db"), Name: "test"})
	require.NoError(t, err)
	defer db.Close()
	require.NoError(t, db.EnsureSchema(`CREATE TABLE IF NOT EXISTS widgets (id TEXT PRIMARY KEY);`))

	wantErr := errors.New("boom")
	err = WithTransaction(db.Conn(), func(tx *sql.Tx) error {
		if _, execErr := tx.Exec(`INSERT INTO widgets (id) VALUES ('a')`); execErr != nil {
			return execErr
		}
		return wantErr
	})
	assert.ErrorIs(t, err, wantErr)

	var count int
	require.NoError(t, db.Conn().QueryRow(`SELECT COUNT(*) FROM widgets`).Scan(&count))
	assert.Equal(t, 0, count, "rolled back insert should not persist")
}

func TestWithTransaction_NilConnReturnsError(t *testing.T) {
	err := WithTransaction(nil, func(tx *sql.Tx) error { return nil })
	assert.Error(t, err)
}
