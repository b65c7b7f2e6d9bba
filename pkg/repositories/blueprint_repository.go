package repositories

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"

	"github.com/Ramsey-B/fern/pkg/database"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

// BlueprintRepository handles database operations for blueprints
type BlueprintRepository struct {
	*Repository
}

// NewBlueprintRepository creates a new blueprint repository
func NewBlueprintRepository(db database.DB, logger ectologger.Logger) *BlueprintRepository {
	return &BlueprintRepository{
		Repository: NewRepository(db, logger),
	}
}

// Create creates a new blueprint
func (r *BlueprintRepository) Create(ctx context.Context, bp *models.Blueprint) error {
	ctx, span := tracing.StartSpan(ctx, "BlueprintRepository.Create")
	defer span.End()

	if bp.ID == uuid.Nil {
		bp.ID = uuid.New()
	}
	if bp.Version == 0 {
		bp.Version = 1
	}
	now := time.Now().UTC()

	err := r.DB().QueryRowContext(ctx, `
		INSERT INTO blueprints (id, workspace_id, project_id, title, markdown, content, version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $8)
		RETURNING created_at, updated_at
	`, bp.ID, bp.WorkspaceID, bp.ProjectID, bp.Title, bp.Markdown, bp.Content, bp.Version, now).
		Scan(&bp.CreatedAt, &bp.UpdatedAt)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithField("workspace_id", bp.WorkspaceID).Error("failed to create blueprint")
		return Internal("failed to create blueprint")
	}

	return nil
}

// GetByID retrieves a blueprint by id
func (r *BlueprintRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Blueprint, error) {
	ctx, span := tracing.StartSpan(ctx, "BlueprintRepository.GetByID")
	defer span.End()

	var bp models.Blueprint
	err := r.DB().GetContext(ctx, &bp, `SELECT * FROM blueprints WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, NotFound("blueprint %s does not exist", id)
	}
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithField("blueprint_id", id).Error("failed to get blueprint")
		return nil, Internal("failed to get blueprint")
	}

	return &bp, nil
}

// ListByWorkspace lists the blueprints of a workspace
func (r *BlueprintRepository) ListByWorkspace(ctx context.Context, workspaceID uuid.UUID) ([]models.Blueprint, error) {
	ctx, span := tracing.StartSpan(ctx, "BlueprintRepository.ListByWorkspace")
	defer span.End()

	blueprints := []models.Blueprint{}
	err := r.DB().SelectContext(ctx, &blueprints, `
		SELECT * FROM blueprints WHERE workspace_id = $1 ORDER BY created_at DESC
	`, workspaceID)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithField("workspace_id", workspaceID).Error("failed to list blueprints")
		return nil, Internal("failed to list blueprints")
	}

	return blueprints, nil
}

// Update updates title and/or markdown, bumping the version when the body
// changes
func (r *BlueprintRepository) Update(ctx context.Context, id uuid.UUID, title, markdown *string) (*models.Blueprint, error) {
	ctx, span := tracing.StartSpan(ctx, "BlueprintRepository.Update")
	defer span.End()

	var bp models.Blueprint
	err := r.DB().QueryRowxContext(ctx, `
		UPDATE blueprints
		SET title = COALESCE($1, title),
		    markdown = COALESCE($2, markdown),
		    version = version + CASE WHEN $2 IS NULL THEN 0 ELSE 1 END,
		    updated_at = $3
		WHERE id = $4
		RETURNING *
	`, title, markdown, time.Now().UTC(), id).StructScan(&bp)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, NotFound("blueprint %s does not exist", id)
	}
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithField("blueprint_id", id).Error("failed to update blueprint")
		return nil, Internal("failed to update blueprint")
	}

	return &bp, nil
}

// Delete removes a blueprint
func (r *BlueprintRepository) Delete(ctx context.Context, id uuid.UUID) error {
	ctx, span := tracing.StartSpan(ctx, "BlueprintRepository.Delete")
	defer span.End()

	result, err := r.DB().ExecContext(ctx, `DELETE FROM blueprints WHERE id = $1`, id)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithField("blueprint_id", id).Error("failed to delete blueprint")
		return Internal("failed to delete blueprint")
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return NotFound("blueprint %s does not exist", id)
	}

	return nil
}
