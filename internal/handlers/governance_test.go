package handlers

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/fern/pkg/appctx"
	"github.com/Ramsey-B/fern/pkg/billing"
	"github.com/Ramsey-B/fern/pkg/database"
	"github.com/Ramsey-B/fern/pkg/repositories"
)

func newGovernanceHandlerForTest(t *testing.T) (*GovernanceHandler, sqlmock.Sqlmock) {
	t.Helper()

	raw, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = raw.Close() })

	logger := ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
	db := database.NewDatabaseInstance(sqlx.NewDb(raw, "sqlmock"), logger)
	governance := repositories.NewGovernanceRepository(db, logger)
	memberships := repositories.NewMembershipRepository(db, logger)
	return NewGovernanceHandler(governance, memberships, nil, nil, logger, billing.TokenRates{}), mock
}

func newMappingRequest(t *testing.T, userID, useCaseID uuid.UUID, body string) echo.Context {
	t.Helper()

	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	req = req.WithContext(appctx.SetUserID(req.Context(), userID.String()))

	c := e.NewContext(req, httptest.NewRecorder())
	c.SetParamNames("id")
	c.SetParamValues(useCaseID.String())
	return c
}

func TestCreateMappingRejectsPolicyFromAnotherWorkspace(t *testing.T) {
	h, mock := newGovernanceHandlerForTest(t)

	userID := uuid.New()
	useCaseID := uuid.New()
	policyID := uuid.New()
	workspaceA := uuid.New()
	workspaceB := uuid.New()

	mock.ExpectQuery(`SELECT workspace_id FROM ai_use_cases`).
		WillReturnRows(sqlmock.NewRows([]string{"workspace_id"}).AddRow(workspaceA.String()))
	mock.ExpectQuery(`SELECT role FROM workspace_members`).
		WillReturnRows(sqlmock.NewRows([]string{"role"}).AddRow("member"))
	// The policy resolves to a different workspace.
	mock.ExpectQuery(`SELECT workspace_id FROM ai_policies`).
		WillReturnRows(sqlmock.NewRows([]string{"workspace_id"}).AddRow(workspaceB.String()))

	c := newMappingRequest(t, userID, useCaseID, `{"policy_id":"`+policyID.String()+`","status":"gap"}`)
	err := h.CreateMapping(c)
	require.Error(t, err)
	assert.Equal(t, http.StatusNotFound, httperror.GetStatusCode(err))

	// No mapping insert may run for a cross-workspace policy.
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateMappingAcceptsPolicyInSameWorkspace(t *testing.T) {
	h, mock := newGovernanceHandlerForTest(t)

	userID := uuid.New()
	useCaseID := uuid.New()
	policyID := uuid.New()
	workspaceID := uuid.New()

	mock.ExpectQuery(`SELECT workspace_id FROM ai_use_cases`).
		WillReturnRows(sqlmock.NewRows([]string{"workspace_id"}).AddRow(workspaceID.String()))
	mock.ExpectQuery(`SELECT role FROM workspace_members`).
		WillReturnRows(sqlmock.NewRows([]string{"role"}).AddRow("member"))
	mock.ExpectQuery(`SELECT workspace_id FROM ai_policies`).
		WillReturnRows(sqlmock.NewRows([]string{"workspace_id"}).AddRow(workspaceID.String()))
	now := time.Now().UTC()
	mock.ExpectQuery(`INSERT INTO ai_policy_mappings`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at", "updated_at"}).
			AddRow(uuid.New().String(), now, now))

	c := newMappingRequest(t, userID, useCaseID, `{"policy_id":"`+policyID.String()+`","status":"gap"}`)
	require.NoError(t, h.CreateMapping(c))
	assert.NoError(t, mock.ExpectationsWereMet())
}
