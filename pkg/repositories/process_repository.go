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

// ProcessRepository handles database operations for processes, their steps
// and their links
type ProcessRepository struct {
	*Repository
}

// NewProcessRepository creates a new process repository
func NewProcessRepository(db database.DB, logger ectologger.Logger) *ProcessRepository {
	return &ProcessRepository{
		Repository: NewRepository(db, logger),
	}
}

// Create creates a new process
func (r *ProcessRepository) Create(ctx context.Context, process *models.Process) error {
	ctx, span := tracing.StartSpan(ctx, "ProcessRepository.Create")
	defer span.End()

	if process.ID == uuid.Nil {
		process.ID = uuid.New()
	}
	now := time.Now().UTC()

	err := r.DB().QueryRowContext(ctx, `
		INSERT INTO processes (id, workspace_id, project_id, name, description, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $6)
		RETURNING created_at, updated_at
	`, process.ID, process.WorkspaceID, process.ProjectID, process.Name, process.Description, now).
		Scan(&process.CreatedAt, &process.UpdatedAt)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithField("workspace_id", process.WorkspaceID).Error("failed to create process")
		return Internal("failed to create process")
	}

	return nil
}

// GetByID retrieves a process by id
func (r *ProcessRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Process, error) {
	ctx, span := tracing.StartSpan(ctx, "ProcessRepository.GetByID")
	defer span.End()

	var process models.Process
	err := r.DB().GetContext(ctx, &process, `SELECT * FROM processes WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, NotFound("process %s does not exist", id)
	}
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithField("process_id", id).Error("failed to get process")
		return nil, Internal("failed to get process")
	}

	return &process, nil
}

// GetGraph retrieves a process with its full step and link graph
func (r *ProcessRepository) GetGraph(ctx context.Context, id uuid.UUID) (*models.ProcessGraph, error) {
	ctx, span := tracing.StartSpan(ctx, "ProcessRepository.GetGraph")
	defer span.End()

	process, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	steps, err := r.ListSteps(ctx, id)
	if err != nil {
		return nil, err
	}

	links, err := r.ListLinks(ctx, id)
	if err != nil {
		return nil, err
	}

	return &models.ProcessGraph{
		Process: *process,
		Steps:   steps,
		Links:   links,
	}, nil
}

// ListByWorkspace lists processes in a workspace with their step counts
func (r *ProcessRepository) ListByWorkspace(ctx context.Context, workspaceID uuid.UUID) ([]models.ProcessWithStepCount, error) {
	ctx, span := tracing.StartSpan(ctx, "ProcessRepository.ListByWorkspace")
	defer span.End()

	processes := []models.ProcessWithStepCount{}
	query := `
		SELECT p.*, COUNT(s.id) AS step_count
		FROM processes p
		LEFT JOIN process_steps s ON s.process_id = p.id
		WHERE p.workspace_id = $1
		GROUP BY p.id
		ORDER BY p.created_at
	`
	if err := r.DB().SelectContext(ctx, &processes, query, workspaceID); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithField("workspace_id", workspaceID).Error("failed to list processes")
		return nil, Internal("failed to list processes")
	}

	return processes, nil
}

// Update applies partial field updates to a process
func (r *ProcessRepository) Update(ctx context.Context, id uuid.UUID, name, description *string, projectID *uuid.UUID) (*models.Process, error) {
	ctx, span := tracing.StartSpan(ctx, "ProcessRepository.Update")
	defer span.End()

	var process models.Process
	err := r.DB().QueryRowxContext(ctx, `
		UPDATE processes
		SET name = COALESCE($1, name),
		    description = COALESCE($2, description),
		    project_id = COALESCE($3, project_id),
		    updated_at = $4
		WHERE id = $5
		RETURNING *
	`, name, description, projectID, time.Now().UTC(), id).StructScan(&process)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, NotFound("process %s does not exist", id)
	}
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithField("process_id", id).Error("failed to update process")
		return nil, Internal("failed to update process")
	}

	return &process, nil
}

// Delete removes a process and, via cascades, its steps, links and opportunities
func (r *ProcessRepository) Delete(ctx context.Context, id uuid.UUID) error {
	ctx, span := tracing.StartSpan(ctx, "ProcessRepository.Delete")
	defer span.End()

	result, err := r.DB().ExecContext(ctx, `DELETE FROM processes WHERE id = $1`, id)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithField("process_id", id).Error("failed to delete process")
		return Internal("failed to delete process")
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return NotFound("process %s does not exist", id)
	}

	return nil
}

// ListSteps lists the steps of a process in sort order
func (r *ProcessRepository) ListSteps(ctx context.Context, processID uuid.UUID) ([]models.ProcessStep, error) {
	ctx, span := tracing.StartSpan(ctx, "ProcessRepository.ListSteps")
	defer span.End()

	steps := []models.ProcessStep{}
	err := r.DB().SelectContext(ctx, &steps, `
		SELECT * FROM process_steps WHERE process_id = $1 ORDER BY sort_order, created_at
	`, processID)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithField("process_id", processID).Error("failed to list steps")
		return nil, Internal("failed to list steps")
	}

	return steps, nil
}

// CountSteps returns the number of steps in a process
func (r *ProcessRepository) CountSteps(ctx context.Context, processID uuid.UUID) (int, error) {
	ctx, span := tracing.StartSpan(ctx, "ProcessRepository.CountSteps")
	defer span.End()

	var count int
	err := r.DB().GetContext(ctx, &count, `SELECT COUNT(*) FROM process_steps WHERE process_id = $1`, processID)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithField("process_id", processID).Error("failed to count steps")
		return 0, Internal("failed to count steps")
	}

	return count, nil
}

// CreateStep creates a new step on a process
func (r *ProcessRepository) CreateStep(ctx context.Context, step *models.ProcessStep) error {
	ctx, span := tracing.StartSpan(ctx, "ProcessRepository.CreateStep")
	defer span.End()

	if step.ID == uuid.Nil {
		step.ID = uuid.New()
	}
	now := time.Now().UTC()

	err := r.DB().QueryRowContext(ctx, `
		INSERT INTO process_steps (
			id, process_id, name, description, owner, inputs, outputs,
			frequency, duration_minutes, position_x, position_y, sort_order,
			created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $13)
		RETURNING created_at, updated_at
	`, step.ID, step.ProcessID, step.Name, step.Description, step.Owner,
		step.Inputs, step.Outputs, step.Frequency, step.DurationMinutes,
		step.PositionX, step.PositionY, step.SortOrder, now).
		Scan(&step.CreatedAt, &step.UpdatedAt)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithField("process_id", step.ProcessID).Error("failed to create step")
		return Internal("failed to create step")
	}

	return nil
}

// StepUpdate carries partial field updates for a step. Nil fields are left
// unchanged.
type StepUpdate struct {
	Name            *string
	Description     *string
	Owner           *string
	Inputs          *[]string
	Outputs         *[]string
	Frequency       *string
	DurationMinutes *int
	PositionX       *float64
	PositionY       *float64
}

// UpdateStep applies partial field updates to a step
func (r *ProcessRepository) UpdateStep(ctx context.Context, processID, stepID uuid.UUID, update StepUpdate) (*models.ProcessStep, error) {
	ctx, span := tracing.StartSpan(ctx, "ProcessRepository.UpdateStep")
	defer span.End()

	var inputs, outputs any
	if update.Inputs != nil {
		inputs = database.JSONB[[]string]{Data: *update.Inputs}
	}
	if update.Outputs != nil {
		outputs = database.JSONB[[]string]{Data: *update.Outputs}
	}

	var step models.ProcessStep
	err := r.DB().QueryRowxContext(ctx, `
		UPDATE process_steps
		SET name = COALESCE($1, name),
		    description = COALESCE($2, description),
		    owner = COALESCE($3, owner),
		    inputs = COALESCE($4, inputs),
		    outputs = COALESCE($5, outputs),
		    frequency = COALESCE($6, frequency),
		    duration_minutes = COALESCE($7, duration_minutes),
		    position_x = COALESCE($8, position_x),
		    position_y = COALESCE($9, position_y),
		    updated_at = $10
		WHERE id = $11 AND process_id = $12
		RETURNING *
	`, update.Name, update.Description, update.Owner, inputs, outputs,
		update.Frequency, update.DurationMinutes, update.PositionX, update.PositionY,
		time.Now().UTC(), stepID, processID).StructScan(&step)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, NotFound("step %s does not exist", stepID)
	}
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithField("step_id", stepID).Error("failed to update step")
		return nil, Internal("failed to update step")
	}

	return &step, nil
}

// DeleteStep removes a step and its links
func (r *ProcessRepository) DeleteStep(ctx context.Context, processID, stepID uuid.UUID) error {
	ctx, span := tracing.StartSpan(ctx, "ProcessRepository.DeleteStep")
	defer span.End()

	result, err := r.DB().ExecContext(ctx, `
		DELETE FROM process_steps WHERE id = $1 AND process_id = $2
	`, stepID, processID)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithField("step_id", stepID).Error("failed to delete step")
		return Internal("failed to delete step")
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return NotFound("step %s does not exist", stepID)
	}

	return nil
}

// ReorderSteps rewrites sort_order for the given step ids in one transaction.
// Every step of the process must appear exactly once.
func (r *ProcessRepository) ReorderSteps(ctx context.Context, processID uuid.UUID, stepIDs []uuid.UUID) error {
	ctx, span := tracing.StartSpan(ctx, "ProcessRepository.ReorderSteps")
	defer span.End()

	count, err := r.CountSteps(ctx, processID)
	if err != nil {
		return err
	}
	if count != len(stepIDs) {
		return BadRequest("reorder must include every step of the process exactly once")
	}

	// Rollback must run against the pre-transaction context: the tx-scoped
	// context marks the transaction as owned by a caller further up, which
	// would turn the deferred rollback into a no-op and leak the connection.
	parent := ctx
	ctx, tx, err := r.DB().GetTx(ctx, nil)
	if err != nil {
		return Internal("failed to reorder steps")
	}
	defer func() { _ = tx.Rollback(parent) }()

	now := time.Now().UTC()
	for i, stepID := range stepIDs {
		result, err := tx.ExecContext(ctx, `
			UPDATE process_steps SET sort_order = $1, updated_at = $2
			WHERE id = $3 AND process_id = $4
		`, i, now, stepID, processID)
		if err != nil {
			r.logger.WithContext(ctx).WithError(err).WithField("step_id", stepID).Error("failed to reorder step")
			return Internal("failed to reorder steps")
		}
		rows, _ := result.RowsAffected()
		if rows == 0 {
			return BadRequest("step " + stepID.String() + " does not belong to the process")
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return Internal("failed to reorder steps")
	}

	return nil
}

// ListLinks lists the links of a process
func (r *ProcessRepository) ListLinks(ctx context.Context, processID uuid.UUID) ([]models.ProcessLink, error) {
	ctx, span := tracing.StartSpan(ctx, "ProcessRepository.ListLinks")
	defer span.End()

	links := []models.ProcessLink{}
	err := r.DB().SelectContext(ctx, &links, `
		SELECT * FROM process_links WHERE process_id = $1 ORDER BY created_at
	`, processID)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithField("process_id", processID).Error("failed to list links")
		return nil, Internal("failed to list links")
	}

	return links, nil
}

// CreateLink inserts a link between two steps of the same process. Both
// endpoints must belong to the link's process; steps of other processes are
// rejected even when they exist. The insert is idempotent on
// (process_id, from_step_id, to_step_id): re-creating an existing link
// returns the existing row with created false.
func (r *ProcessRepository) CreateLink(ctx context.Context, link *models.ProcessLink) (created bool, err error) {
	ctx, span := tracing.StartSpan(ctx, "ProcessRepository.CreateLink")
	defer span.End()

	if link.ID == uuid.Nil {
		link.ID = uuid.New()
	}

	var endpoints int
	err = r.DB().GetContext(ctx, &endpoints, `
		SELECT COUNT(*) FROM process_steps WHERE process_id = $1 AND id IN ($2, $3)
	`, link.ProcessID, link.FromStepID, link.ToStepID)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithField("process_id", link.ProcessID).Error("failed to check link endpoints")
		return false, Internal("failed to create link")
	}
	want := 2
	if link.FromStepID == link.ToStepID {
		want = 1
	}
	if endpoints != want {
		return false, BadRequest("link endpoints must be steps of the process")
	}

	err = r.DB().QueryRowContext(ctx, `
		INSERT INTO process_links (id, process_id, from_step_id, to_step_id, label, link_type, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (process_id, from_step_id, to_step_id) DO NOTHING
		RETURNING id, created_at
	`, link.ID, link.ProcessID, link.FromStepID, link.ToStepID, link.Label, link.LinkType, time.Now().UTC()).
		Scan(&link.ID, &link.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		// Conflict: the link already exists. Load it so the caller gets the
		// canonical row either way.
		err = r.DB().GetContext(ctx, link, `
			SELECT * FROM process_links
			WHERE process_id = $1 AND from_step_id = $2 AND to_step_id = $3
		`, link.ProcessID, link.FromStepID, link.ToStepID)
		if err != nil {
			r.logger.WithContext(ctx).WithError(err).WithField("process_id", link.ProcessID).Error("failed to load existing link")
			return false, Internal("failed to create link")
		}
		return false, nil
	}
	if err != nil {
		if isForeignKeyViolation(err) {
			return false, BadRequest("link endpoints must be steps of the process")
		}
		r.logger.WithContext(ctx).WithError(err).WithField("process_id", link.ProcessID).Error("failed to create link")
		return false, Internal("failed to create link")
	}

	return true, nil
}

// DeleteLink removes a link
func (r *ProcessRepository) DeleteLink(ctx context.Context, processID, linkID uuid.UUID) error {
	ctx, span := tracing.StartSpan(ctx, "ProcessRepository.DeleteLink")
	defer span.End()

	result, err := r.DB().ExecContext(ctx, `
		DELETE FROM process_links WHERE id = $1 AND process_id = $2
	`, linkID, processID)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithField("link_id", linkID).Error("failed to delete link")
		return Internal("failed to delete link")
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return NotFound("link %s does not exist", linkID)
	}

	return nil
}
