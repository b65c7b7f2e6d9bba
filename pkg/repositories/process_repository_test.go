package repositories

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/fern/pkg/database"
	"github.com/Ramsey-B/fern/pkg/models"
)

func newProcessRepo(t *testing.T) (*ProcessRepository, sqlmock.Sqlmock) {
	t.Helper()

	raw, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = raw.Close() })

	logger := ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
	db := database.NewDatabaseInstance(sqlx.NewDb(raw, "sqlmock"), logger)
	return NewProcessRepository(db, logger), mock
}

func TestReorderStepsRollsBackOnForeignStep(t *testing.T) {
	repo, mock := newProcessRepo(t)
	processID := uuid.New()
	stepID := uuid.New()

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM process_steps`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectBegin()
	// The step belongs to another process: zero rows updated.
	mock.ExpectExec(`UPDATE process_steps SET sort_order`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := repo.ReorderSteps(context.Background(), processID, []uuid.UUID{stepID})
	require.Error(t, err)
	assert.Equal(t, http.StatusBadRequest, httperror.GetStatusCode(err))

	// The error return must hand the connection back via rollback.
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateLinkRejectsStepsOfAnotherProcess(t *testing.T) {
	repo, mock := newProcessRepo(t)

	// Only one of the two endpoints belongs to the link's process.
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM process_steps WHERE process_id`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	created, err := repo.CreateLink(context.Background(), &models.ProcessLink{
		ProcessID:  uuid.New(),
		FromStepID: uuid.New(),
		ToStepID:   uuid.New(),
	})
	require.Error(t, err)
	assert.False(t, created)
	assert.Equal(t, http.StatusBadRequest, httperror.GetStatusCode(err))

	// No insert may run when the endpoint check fails.
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateLinkInsertsWhenEndpointsBelong(t *testing.T) {
	repo, mock := newProcessRepo(t)
	link := &models.ProcessLink{
		ProcessID:  uuid.New(),
		FromStepID: uuid.New(),
		ToStepID:   uuid.New(),
	}

	linkID := uuid.New()
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM process_steps WHERE process_id`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))
	mock.ExpectQuery(`INSERT INTO process_links`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).
			AddRow(linkID.String(), time.Now().UTC()))

	created, err := repo.CreateLink(context.Background(), link)
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, linkID, link.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}
