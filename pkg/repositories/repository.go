package repositories

import (
	"context"
	"fmt"
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"

	"github.com/Ramsey-B/fern/pkg/appctx"
	"github.com/Ramsey-B/fern/pkg/database"
)

// NotFound returns a 404 HTTP error with a descriptive message
func NotFound(format string, args ...any) error {
	return httperror.NewHTTPError(http.StatusNotFound, fmt.Sprintf(format, args...)).AddMetaValue("code", "NOT_FOUND")
}

// Unauthorized returns a 401 HTTP error
func Unauthorized(message string) error {
	return httperror.NewHTTPError(http.StatusUnauthorized, message).AddMetaValue("code", "UNAUTHORIZED")
}

// Forbidden returns a 403 HTTP error
func Forbidden(message string) error {
	return httperror.NewHTTPError(http.StatusForbidden, message).AddMetaValue("code", "FORBIDDEN")
}

// BadRequest returns a 400 HTTP error
func BadRequest(message string) error {
	return httperror.NewHTTPError(http.StatusBadRequest, message).AddMetaValue("code", "INVALID_INPUT")
}

// Internal returns a 500 HTTP error with a generic message
func Internal(message string) error {
	return httperror.NewHTTPError(http.StatusInternalServerError, message).AddMetaValue("code", "INTERNAL_ERROR")
}

// Repository provides common database access for the typed repositories
type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

// NewRepository creates a new base repository
func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{db: db, logger: logger}
}

// DB returns the database instance
func (r *Repository) DB() database.DB {
	return r.db
}

// GetUserID extracts and validates the authenticated user id from context
func GetUserID(ctx context.Context) (uuid.UUID, error) {
	userIDStr := appctx.GetUserID(ctx)
	if userIDStr == "" {
		return uuid.Nil, Unauthorized("authentication required")
	}

	userID, err := uuid.Parse(userIDStr)
	if err != nil {
		return uuid.Nil, Unauthorized("invalid authentication token")
	}

	return userID, nil
}
