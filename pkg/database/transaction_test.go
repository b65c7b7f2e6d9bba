package database

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/Gobusters/ectologger"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockDB(t *testing.T) (DB, sqlmock.Sqlmock) {
	t.Helper()

	raw, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = raw.Close() })

	logger := ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
	return NewDatabaseInstance(sqlx.NewDb(raw, "sqlmock"), logger), mock
}

func TestRollbackWithParentContextClosesTx(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectBegin()
	mock.ExpectRollback()

	parent := context.Background()
	_, tx, err := db.GetTx(parent, nil)
	require.NoError(t, err)
	require.True(t, tx.IsOpen())

	// The opener's deferred rollback runs with the pre-transaction context
	// and must actually close the transaction.
	require.NoError(t, tx.Rollback(parent))
	assert.False(t, tx.IsOpen())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRollbackWithTxContextDefersToOpener(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectBegin()

	txCtx, tx, err := db.GetTx(context.Background(), nil)
	require.NoError(t, err)

	// A callee holding the tx-scoped context must not close the caller's
	// transaction.
	require.NoError(t, tx.Rollback(txCtx))
	assert.True(t, tx.IsOpen())

	mock.ExpectRollback()
	require.NoError(t, tx.Rollback(context.Background()))
	assert.False(t, tx.IsOpen())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCommitClosesTxOnce(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectBegin()
	mock.ExpectCommit()

	parent := context.Background()
	txCtx, tx, err := db.GetTx(parent, nil)
	require.NoError(t, err)

	require.NoError(t, tx.Commit(txCtx))
	assert.False(t, tx.IsOpen())

	// A deferred rollback after commit is a no-op.
	require.NoError(t, tx.Rollback(parent))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetTxReusesOpenTransaction(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectBegin()

	txCtx, tx, err := db.GetTx(context.Background(), nil)
	require.NoError(t, err)

	nestedCtx, nested, err := db.GetTx(txCtx, nil)
	require.NoError(t, err)
	assert.Equal(t, tx, nested)
	assert.Equal(t, txCtx, nestedCtx)
}
