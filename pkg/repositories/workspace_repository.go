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

// WorkspaceRepository handles database operations for workspaces
type WorkspaceRepository struct {
	*Repository
}

// NewWorkspaceRepository creates a new workspace repository
func NewWorkspaceRepository(db database.DB, logger ectologger.Logger) *WorkspaceRepository {
	return &WorkspaceRepository{
		Repository: NewRepository(db, logger),
	}
}

// Create creates a workspace and its owner membership in one transaction
func (r *WorkspaceRepository) Create(ctx context.Context, ws *models.Workspace, ownerID uuid.UUID) error {
	ctx, span := tracing.StartSpan(ctx, "WorkspaceRepository.Create")
	defer span.End()

	if ws.ID == uuid.Nil {
		ws.ID = uuid.New()
	}
	if ws.Plan == "" {
		ws.Plan = models.PlanStarter
	}
	now := time.Now().UTC()

	// The deferred rollback uses the pre-transaction context; the tx-scoped
	// one would mark the tx as caller-owned and make the rollback a no-op.
	parent := ctx
	ctx, tx, err := r.DB().GetTx(ctx, nil)
	if err != nil {
		return Internal("failed to create workspace")
	}
	defer func() { _ = tx.Rollback(parent) }()

	err = tx.QueryRowContext(ctx, `
		INSERT INTO workspaces (id, name, plan, trial_ends_at, payg_enabled, payg_cap_icus, created_at, updated_at)
		VALUES ($1, $2, $3, $4, false, 0, $5, $5)
		RETURNING created_at, updated_at
	`, ws.ID, ws.Name, ws.Plan, ws.TrialEndsAt, now).Scan(&ws.CreatedAt, &ws.UpdatedAt)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("failed to create workspace")
		return Internal("failed to create workspace")
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO workspace_members (workspace_id, user_id, role, created_at)
		VALUES ($1, $2, $3, $4)
	`, ws.ID, ownerID, models.RoleOwner, now)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("failed to create owner membership")
		return Internal("failed to create workspace")
	}

	if err := tx.Commit(ctx); err != nil {
		return Internal("failed to create workspace")
	}

	r.logger.WithContext(ctx).WithField("workspace_id", ws.ID).Debug("Created workspace")
	return nil
}

// GetByID retrieves a workspace by id
func (r *WorkspaceRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Workspace, error) {
	ctx, span := tracing.StartSpan(ctx, "WorkspaceRepository.GetByID")
	defer span.End()

	var ws models.Workspace
	err := r.DB().GetContext(ctx, &ws, `SELECT * FROM workspaces WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, NotFound("workspace %s does not exist", id)
	}
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithField("workspace_id", id).Error("failed to get workspace")
		return nil, Internal("failed to get workspace")
	}

	return &ws, nil
}

// ListForUser retrieves the workspaces the user is a member of
func (r *WorkspaceRepository) ListForUser(ctx context.Context, userID uuid.UUID) ([]models.Workspace, error) {
	ctx, span := tracing.StartSpan(ctx, "WorkspaceRepository.ListForUser")
	defer span.End()

	workspaces := []models.Workspace{}
	query := `
		SELECT w.* FROM workspaces w
		INNER JOIN workspace_members m ON m.workspace_id = w.id
		WHERE m.user_id = $1
		ORDER BY w.created_at
	`
	if err := r.DB().SelectContext(ctx, &workspaces, query, userID); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("failed to list workspaces")
		return nil, Internal("failed to list workspaces")
	}

	return workspaces, nil
}

// Update updates the workspace name
func (r *WorkspaceRepository) Update(ctx context.Context, id uuid.UUID, name string) (*models.Workspace, error) {
	ctx, span := tracing.StartSpan(ctx, "WorkspaceRepository.Update")
	defer span.End()

	var ws models.Workspace
	err := r.DB().QueryRowxContext(ctx, `
		UPDATE workspaces SET name = $1, updated_at = $2 WHERE id = $3
		RETURNING *
	`, name, time.Now().UTC(), id).StructScan(&ws)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, NotFound("workspace %s does not exist", id)
	}
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithField("workspace_id", id).Error("failed to update workspace")
		return nil, Internal("failed to update workspace")
	}

	return &ws, nil
}

// Delete removes a workspace and, via FK cascades, everything in it
func (r *WorkspaceRepository) Delete(ctx context.Context, id uuid.UUID) error {
	ctx, span := tracing.StartSpan(ctx, "WorkspaceRepository.Delete")
	defer span.End()

	result, err := r.DB().ExecContext(ctx, `DELETE FROM workspaces WHERE id = $1`, id)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithField("workspace_id", id).Error("failed to delete workspace")
		return Internal("failed to delete workspace")
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return NotFound("workspace %s does not exist", id)
	}

	return nil
}

// SetPayg enables pay-as-you-go with the given ICU cap
func (r *WorkspaceRepository) SetPayg(ctx context.Context, id uuid.UUID, enabled bool, capICUs int64) error {
	ctx, span := tracing.StartSpan(ctx, "WorkspaceRepository.SetPayg")
	defer span.End()

	result, err := r.DB().ExecContext(ctx, `
		UPDATE workspaces SET payg_enabled = $1, payg_cap_icus = $2, updated_at = $3 WHERE id = $4
	`, enabled, capICUs, time.Now().UTC(), id)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithField("workspace_id", id).Error("failed to update payg settings")
		return Internal("failed to update payg settings")
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return NotFound("workspace %s does not exist", id)
	}

	return nil
}

// GetByStripeCustomerID retrieves a workspace by its Stripe customer id
func (r *WorkspaceRepository) GetByStripeCustomerID(ctx context.Context, customerID string) (*models.Workspace, error) {
	ctx, span := tracing.StartSpan(ctx, "WorkspaceRepository.GetByStripeCustomerID")
	defer span.End()

	var ws models.Workspace
	err := r.DB().GetContext(ctx, &ws, `SELECT * FROM workspaces WHERE stripe_customer_id = $1`, customerID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, NotFound("no workspace for customer")
	}
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("failed to get workspace by customer id")
		return nil, Internal("failed to get workspace")
	}

	return &ws, nil
}

// SyncSubscription updates the plan and subscription id for a Stripe customer
func (r *WorkspaceRepository) SyncSubscription(ctx context.Context, customerID, plan string, subscriptionID *string) error {
	ctx, span := tracing.StartSpan(ctx, "WorkspaceRepository.SyncSubscription")
	defer span.End()

	_, err := r.DB().ExecContext(ctx, `
		UPDATE workspaces
		SET plan = $1, stripe_subscription_id = $2, updated_at = $3
		WHERE stripe_customer_id = $4
	`, plan, subscriptionID, time.Now().UTC(), customerID)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("failed to sync subscription")
		return Internal("failed to sync subscription")
	}

	return nil
}
