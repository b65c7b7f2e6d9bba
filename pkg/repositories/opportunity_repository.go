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

// OpportunityRepository handles database operations for automation opportunities
type OpportunityRepository struct {
	*Repository
}

// NewOpportunityRepository creates a new opportunity repository
func NewOpportunityRepository(db database.DB, logger ectologger.Logger) *OpportunityRepository {
	return &OpportunityRepository{
		Repository: NewRepository(db, logger),
	}
}

// Create creates a new opportunity
func (r *OpportunityRepository) Create(ctx context.Context, opp *models.Opportunity) error {
	ctx, span := tracing.StartSpan(ctx, "OpportunityRepository.Create")
	defer span.End()

	if opp.ID == uuid.Nil {
		opp.ID = uuid.New()
	}
	if opp.Status == "" {
		opp.Status = models.OpportunityStatusIdentified
	}
	now := time.Now().UTC()

	err := r.DB().QueryRowContext(ctx, `
		INSERT INTO opportunities (id, process_id, step_id, title, summary, impact, feasibility, effort, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $10)
		RETURNING created_at, updated_at
	`, opp.ID, opp.ProcessID, opp.StepID, opp.Title, opp.Summary,
		opp.Impact, opp.Feasibility, opp.Effort, opp.Status, now).
		Scan(&opp.CreatedAt, &opp.UpdatedAt)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithField("process_id", opp.ProcessID).Error("failed to create opportunity")
		return Internal("failed to create opportunity")
	}

	return nil
}

// CreateMany persists a batch of opportunities in a single insert
func (r *OpportunityRepository) CreateMany(ctx context.Context, opps []*models.Opportunity) error {
	ctx, span := tracing.StartSpan(ctx, "OpportunityRepository.CreateMany")
	defer span.End()

	if len(opps) == 0 {
		return nil
	}

	now := time.Now().UTC()
	ib := database.NewInsertBuilder().
		InsertInto("opportunities").
		Cols("id", "process_id", "step_id", "title", "summary", "impact", "feasibility", "effort", "status", "created_at", "updated_at")
	for _, opp := range opps {
		if opp.ID == uuid.Nil {
			opp.ID = uuid.New()
		}
		if opp.Status == "" {
			opp.Status = models.OpportunityStatusIdentified
		}
		opp.CreatedAt = now
		opp.UpdatedAt = now

		ib = ib.Values(opp.ID, opp.ProcessID, opp.StepID, opp.Title, opp.Summary,
			opp.Impact, opp.Feasibility, opp.Effort, opp.Status, now, now)
	}

	query, args := ib.Build()
	if _, err := r.DB().ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithField("count", len(opps)).Error("failed to create opportunity batch")
		return Internal("failed to create opportunities")
	}

	return nil
}

// GetByID retrieves an opportunity by id
func (r *OpportunityRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Opportunity, error) {
	ctx, span := tracing.StartSpan(ctx, "OpportunityRepository.GetByID")
	defer span.End()

	var opp models.Opportunity
	err := r.DB().GetContext(ctx, &opp, `SELECT * FROM opportunities WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, NotFound("opportunity %s does not exist", id)
	}
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithField("opportunity_id", id).Error("failed to get opportunity")
		return nil, Internal("failed to get opportunity")
	}

	return &opp, nil
}

// ListByProcess lists the opportunities of a process, highest score first
func (r *OpportunityRepository) ListByProcess(ctx context.Context, processID uuid.UUID) ([]models.Opportunity, error) {
	ctx, span := tracing.StartSpan(ctx, "OpportunityRepository.ListByProcess")
	defer span.End()

	opps := []models.Opportunity{}
	err := r.DB().SelectContext(ctx, &opps, `
		SELECT * FROM opportunities WHERE process_id = $1
		ORDER BY (impact + feasibility - effort) DESC, created_at
	`, processID)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithField("process_id", processID).Error("failed to list opportunities")
		return nil, Internal("failed to list opportunities")
	}

	return opps, nil
}

// OpportunityUpdate carries partial field updates. Nil fields are unchanged.
type OpportunityUpdate struct {
	Title       *string
	Summary     *string
	Impact      *int
	Feasibility *int
	Effort      *int
	Status      *string
}

// Update applies partial field updates to an opportunity
func (r *OpportunityRepository) Update(ctx context.Context, id uuid.UUID, update OpportunityUpdate) (*models.Opportunity, error) {
	ctx, span := tracing.StartSpan(ctx, "OpportunityRepository.Update")
	defer span.End()

	var opp models.Opportunity
	err := r.DB().QueryRowxContext(ctx, `
		UPDATE opportunities
		SET title = COALESCE($1, title),
		    summary = COALESCE($2, summary),
		    impact = COALESCE($3, impact),
		    feasibility = COALESCE($4, feasibility),
		    effort = COALESCE($5, effort),
		    status = COALESCE($6, status),
		    updated_at = $7
		WHERE id = $8
		RETURNING *
	`, update.Title, update.Summary, update.Impact, update.Feasibility,
		update.Effort, update.Status, time.Now().UTC(), id).StructScan(&opp)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, NotFound("opportunity %s does not exist", id)
	}
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithField("opportunity_id", id).Error("failed to update opportunity")
		return nil, Internal("failed to update opportunity")
	}

	return &opp, nil
}

// Delete removes an opportunity
func (r *OpportunityRepository) Delete(ctx context.Context, id uuid.UUID) error {
	ctx, span := tracing.StartSpan(ctx, "OpportunityRepository.Delete")
	defer span.End()

	result, err := r.DB().ExecContext(ctx, `DELETE FROM opportunities WHERE id = $1`, id)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithField("opportunity_id", id).Error("failed to delete opportunity")
		return Internal("failed to delete opportunity")
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return NotFound("opportunity %s does not exist", id)
	}

	return nil
}
