package repositories

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"

	"github.com/Ramsey-B/fern/pkg/database"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

// UsageRepository tracks Intelligence Cost Units used per workspace per
// calendar month
type UsageRepository struct {
	*Repository
}

// NewUsageRepository creates a new usage repository
func NewUsageRepository(db database.DB, logger ectologger.Logger) *UsageRepository {
	return &UsageRepository{
		Repository: NewRepository(db, logger),
	}
}

// GetUsed returns the ICUs used by a workspace in the given period.
// A missing row means zero usage.
func (r *UsageRepository) GetUsed(ctx context.Context, workspaceID uuid.UUID, period string) (int64, error) {
	ctx, span := tracing.StartSpan(ctx, "UsageRepository.GetUsed")
	defer span.End()

	var used int64
	err := r.DB().GetContext(ctx, &used, `
		SELECT icus_used FROM workspace_usage WHERE workspace_id = $1 AND period = $2
	`, workspaceID, period)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithField("workspace_id", workspaceID).Error("failed to get usage")
		return 0, Internal("failed to get usage")
	}

	return used, nil
}

// Increment atomically adds icus to the workspace's usage for the period,
// creating the row on first charge of the month
func (r *UsageRepository) Increment(ctx context.Context, workspaceID uuid.UUID, period string, icus int64) (int64, error) {
	ctx, span := tracing.StartSpan(ctx, "UsageRepository.Increment")
	defer span.End()

	var total int64
	err := r.DB().QueryRowContext(ctx, `
		INSERT INTO workspace_usage (workspace_id, period, icus_used, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (workspace_id, period) DO UPDATE SET
			icus_used = workspace_usage.icus_used + EXCLUDED.icus_used,
			updated_at = EXCLUDED.updated_at
		RETURNING icus_used
	`, workspaceID, period, icus, time.Now().UTC()).Scan(&total)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithField("workspace_id", workspaceID).Error("failed to record usage")
		return 0, Internal("failed to record usage")
	}

	return total, nil
}
