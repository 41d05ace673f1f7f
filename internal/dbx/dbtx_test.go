package dbx

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"
)

// openMigrated returns a fresh database with the metadata table.
func openMigrated(t *testing.T) *sql.DB {
	t.Helper()
	db, err := OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "tx.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func metadataKeys(t *testing.T, db *sql.DB) int {
	t.Helper()
	var n int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM metadata`).Scan(&n))
	return n
}

func putKey(ctx context.Context, tx DBTX, key string) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO metadata (key, value) VALUES (?, ?)`, key, []byte("v"))
	return err
}

func TestWithTx_CommitsAllWrites(t *testing.T) {
	db := openMigrated(t)

	err := WithTx(context.Background(), db, nil, func(ctx context.Context, tx DBTX) error {
		if err := putKey(ctx, tx, "master.salt"); err != nil {
			return err
		}
		return putKey(ctx, tx, "master.verifier")
	})
	require.NoError(t, err)
	require.Equal(t, 2, metadataKeys(t, db))
}

func TestWithTx_PartialWriteRolledBack(t *testing.T) {
	db := openMigrated(t)
	sentinel := errors.New("verifier derivation failed")

	err := WithTx(context.Background(), db, nil, func(ctx context.Context, tx DBTX) error {
		require.NoError(t, putKey(ctx, tx, "master.salt"))
		return sentinel
	})
	require.ErrorIs(t, err, sentinel)
	require.Zero(t, metadataKeys(t, db))
}

func TestWithTx_PanicRolledBackAndRethrown(t *testing.T) {
	db := openMigrated(t)

	require.PanicsWithValue(t, "kaput", func() {
		_ = WithTx(context.Background(), db, nil, func(ctx context.Context, tx DBTX) error {
			require.NoError(t, putKey(ctx, tx, "master.salt"))
			panic("kaput")
		})
	})
	require.Zero(t, metadataKeys(t, db))
}

func TestWithTx_BeginError(t *testing.T) {
	db := openMigrated(t)
	require.NoError(t, db.Close())

	called := false
	err := WithTx(context.Background(), db, nil, func(context.Context, DBTX) error {
		called = true
		return nil
	})
	require.Error(t, err)
	require.False(t, called)
}

func TestWithTx_CommitErrorReturned(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectCommit().WillReturnError(errors.New("database is locked"))

	err = WithTx(context.Background(), db, nil, func(context.Context, DBTX) error { return nil })
	require.EqualError(t, err, "database is locked")
	require.NoError(t, mock.ExpectationsWereMet())
}
