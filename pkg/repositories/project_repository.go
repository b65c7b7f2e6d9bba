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

// ProjectRepository handles database operations for projects
type ProjectRepository struct {
	*Repository
}

// NewProjectRepository creates a new project repository
func NewProjectRepository(db database.DB, logger ectologger.Logger) *ProjectRepository {
	return &ProjectRepository{
		Repository: NewRepository(db, logger),
	}
}

// Create creates a new project
func (r *ProjectRepository) Create(ctx context.Context, project *models.Project) error {
	ctx, span := tracing.StartSpan(ctx, "ProjectRepository.Create")
	defer span.End()

	if project.ID == uuid.Nil {
		project.ID = uuid.New()
	}
	now := time.Now().UTC()

	err := r.DB().QueryRowContext(ctx, `
		INSERT INTO projects (id, workspace_id, name, description, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $5)
		RETURNING created_at, updated_at
	`, project.ID, project.WorkspaceID, project.Name, project.Description, now).
		Scan(&project.CreatedAt, &project.UpdatedAt)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithField("workspace_id", project.WorkspaceID).Error("failed to create project")
		return Internal("failed to create project")
	}

	return nil
}

// GetByID retrieves a project by id
func (r *ProjectRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Project, error) {
	ctx, span := tracing.StartSpan(ctx, "ProjectRepository.GetByID")
	defer span.End()

	var project models.Project
	err := r.DB().GetContext(ctx, &project, `SELECT * FROM projects WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, NotFound("project %s does not exist", id)
	}
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithField("project_id", id).Error("failed to get project")
		return nil, Internal("failed to get project")
	}

	return &project, nil
}

// ListByWorkspace lists the projects of a workspace
func (r *ProjectRepository) ListByWorkspace(ctx context.Context, workspaceID uuid.UUID) ([]models.Project, error) {
	ctx, span := tracing.StartSpan(ctx, "ProjectRepository.ListByWorkspace")
	defer span.End()

	projects := []models.Project{}
	err := r.DB().SelectContext(ctx, &projects, `
		SELECT * FROM projects WHERE workspace_id = $1 ORDER BY created_at
	`, workspaceID)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithField("workspace_id", workspaceID).Error("failed to list projects")
		return nil, Internal("failed to list projects")
	}

	return projects, nil
}

// Update applies partial field updates to a project
func (r *ProjectRepository) Update(ctx context.Context, id uuid.UUID, name, description *string) (*models.Project, error) {
	ctx, span := tracing.StartSpan(ctx, "ProjectRepository.Update")
	defer span.End()

	var project models.Project
	err := r.DB().QueryRowxContext(ctx, `
		UPDATE projects
		SET name = COALESCE($1, name),
		    description = COALESCE($2, description),
		    updated_at = $3
		WHERE id = $4
		RETURNING *
	`, name, description, time.Now().UTC(), id).StructScan(&project)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, NotFound("project %s does not exist", id)
	}
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithField("project_id", id).Error("failed to update project")
		return nil, Internal("failed to update project")
	}

	return &project, nil
}

// Delete removes a project. Processes keep their rows with project_id nulled.
func (r *ProjectRepository) Delete(ctx context.Context, id uuid.UUID) error {
	ctx, span := tracing.StartSpan(ctx, "ProjectRepository.Delete")
	defer span.End()

	result, err := r.DB().ExecContext(ctx, `DELETE FROM projects WHERE id = $1`, id)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithField("project_id", id).Error("failed to delete project")
		return Internal("failed to delete project")
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return NotFound("project %s does not exist", id)
	}

	return nil
}
