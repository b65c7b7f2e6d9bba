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

// GovernanceRepository handles database operations for the AI governance
// inventory: use cases, risk assessments, policies and policy mappings
type GovernanceRepository struct {
	*Repository
}

// NewGovernanceRepository creates a new governance repository
func NewGovernanceRepository(db database.DB, logger ectologger.Logger) *GovernanceRepository {
	return &GovernanceRepository{
		Repository: NewRepository(db, logger),
	}
}

// CreateUseCase creates a new AI use case
func (r *GovernanceRepository) CreateUseCase(ctx context.Context, uc *models.AiUseCase) error {
	ctx, span := tracing.StartSpan(ctx, "GovernanceRepository.CreateUseCase")
	defer span.End()

	if uc.ID == uuid.Nil {
		uc.ID = uuid.New()
	}
	if uc.Status == "" {
		uc.Status = models.UseCaseStatusPlanned
	}
	now := time.Now().UTC()

	err := r.DB().QueryRowContext(ctx, `
		INSERT INTO ai_use_cases (id, workspace_id, name, description, status, process_ids, opportunity_ids, tools, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $9)
		RETURNING created_at, updated_at
	`, uc.ID, uc.WorkspaceID, uc.Name, uc.Description, uc.Status,
		uc.ProcessIDs, uc.OpportunityIDs, uc.Tools, now).
		Scan(&uc.CreatedAt, &uc.UpdatedAt)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithField("workspace_id", uc.WorkspaceID).Error("failed to create use case")
		return Internal("failed to create use case")
	}

	return nil
}

// GetUseCase retrieves an AI use case by id
func (r *GovernanceRepository) GetUseCase(ctx context.Context, id uuid.UUID) (*models.AiUseCase, error) {
	ctx, span := tracing.StartSpan(ctx, "GovernanceRepository.GetUseCase")
	defer span.End()

	var uc models.AiUseCase
	err := r.DB().GetContext(ctx, &uc, `SELECT * FROM ai_use_cases WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, NotFound("use case %s does not exist", id)
	}
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithField("use_case_id", id).Error("failed to get use case")
		return nil, Internal("failed to get use case")
	}

	return &uc, nil
}

// ListUseCases lists the AI use cases of a workspace
func (r *GovernanceRepository) ListUseCases(ctx context.Context, workspaceID uuid.UUID) ([]models.AiUseCase, error) {
	ctx, span := tracing.StartSpan(ctx, "GovernanceRepository.ListUseCases")
	defer span.End()

	useCases := []models.AiUseCase{}
	err := r.DB().SelectContext(ctx, &useCases, `
		SELECT * FROM ai_use_cases WHERE workspace_id = $1 ORDER BY created_at
	`, workspaceID)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithField("workspace_id", workspaceID).Error("failed to list use cases")
		return nil, Internal("failed to list use cases")
	}

	return useCases, nil
}

// UseCaseUpdate carries partial field updates. Nil fields are unchanged.
type UseCaseUpdate struct {
	Name        *string
	Description *string
	Status      *string
	Tools       *[]string
}

// UpdateUseCase applies partial field updates to a use case. Status values
// are validated against the authoritative set.
func (r *GovernanceRepository) UpdateUseCase(ctx context.Context, id uuid.UUID, update UseCaseUpdate) (*models.AiUseCase, error) {
	ctx, span := tracing.StartSpan(ctx, "GovernanceRepository.UpdateUseCase")
	defer span.End()

	if update.Status != nil && !models.IsValidUseCaseStatus(*update.Status) {
		return nil, BadRequest("invalid status: " + *update.Status)
	}

	var tools any
	if update.Tools != nil {
		tools = database.JSONB[[]string]{Data: *update.Tools}
	}

	var uc models.AiUseCase
	err := r.DB().QueryRowxContext(ctx, `
		UPDATE ai_use_cases
		SET name = COALESCE($1, name),
		    description = COALESCE($2, description),
		    status = COALESCE($3, status),
		    tools = COALESCE($4, tools),
		    updated_at = $5
		WHERE id = $6
		RETURNING *
	`, update.Name, update.Description, update.Status, tools, time.Now().UTC(), id).StructScan(&uc)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, NotFound("use case %s does not exist", id)
	}
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithField("use_case_id", id).Error("failed to update use case")
		return nil, Internal("failed to update use case")
	}

	return &uc, nil
}

// DeleteUseCase removes a use case and, via cascades, its risk assessment
// and policy mappings
func (r *GovernanceRepository) DeleteUseCase(ctx context.Context, id uuid.UUID) error {
	ctx, span := tracing.StartSpan(ctx, "GovernanceRepository.DeleteUseCase")
	defer span.End()

	result, err := r.DB().ExecContext(ctx, `DELETE FROM ai_use_cases WHERE id = $1`, id)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithField("use_case_id", id).Error("failed to delete use case")
		return Internal("failed to delete use case")
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return NotFound("use case %s does not exist", id)
	}

	return nil
}

// UpsertRiskAssessment writes the (single) risk assessment of a use case
func (r *GovernanceRepository) UpsertRiskAssessment(ctx context.Context, ra *models.RiskAssessment) error {
	ctx, span := tracing.StartSpan(ctx, "GovernanceRepository.UpsertRiskAssessment")
	defer span.End()

	if ra.ID == uuid.Nil {
		ra.ID = uuid.New()
	}
	now := time.Now().UTC()

	err := r.DB().QueryRowContext(ctx, `
		INSERT INTO risk_assessments (id, use_case_id, risk_level, summary, hazards, drafted, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $7)
		ON CONFLICT (use_case_id) DO UPDATE SET
			risk_level = EXCLUDED.risk_level,
			summary = EXCLUDED.summary,
			hazards = EXCLUDED.hazards,
			drafted = EXCLUDED.drafted,
			updated_at = EXCLUDED.updated_at
		RETURNING id, created_at, updated_at
	`, ra.ID, ra.UseCaseID, ra.RiskLevel, ra.Summary, ra.Hazards, ra.Drafted, now).
		Scan(&ra.ID, &ra.CreatedAt, &ra.UpdatedAt)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithField("use_case_id", ra.UseCaseID).Error("failed to upsert risk assessment")
		return Internal("failed to save risk assessment")
	}

	return nil
}

// GetRiskAssessment retrieves the risk assessment of a use case
func (r *GovernanceRepository) GetRiskAssessment(ctx context.Context, useCaseID uuid.UUID) (*models.RiskAssessment, error) {
	ctx, span := tracing.StartSpan(ctx, "GovernanceRepository.GetRiskAssessment")
	defer span.End()

	var ra models.RiskAssessment
	err := r.DB().GetContext(ctx, &ra, `SELECT * FROM risk_assessments WHERE use_case_id = $1`, useCaseID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, NotFound("use case %s has no risk assessment", useCaseID)
	}
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithField("use_case_id", useCaseID).Error("failed to get risk assessment")
		return nil, Internal("failed to get risk assessment")
	}

	return &ra, nil
}

// CreatePolicy creates a new AI policy
func (r *GovernanceRepository) CreatePolicy(ctx context.Context, policy *models.AiPolicy) error {
	ctx, span := tracing.StartSpan(ctx, "GovernanceRepository.CreatePolicy")
	defer span.End()

	if policy.ID == uuid.Nil {
		policy.ID = uuid.New()
	}
	now := time.Now().UTC()

	err := r.DB().QueryRowContext(ctx, `
		INSERT INTO ai_policies (id, workspace_id, title, body, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $5)
		RETURNING created_at, updated_at
	`, policy.ID, policy.WorkspaceID, policy.Title, policy.Body, now).
		Scan(&policy.CreatedAt, &policy.UpdatedAt)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithField("workspace_id", policy.WorkspaceID).Error("failed to create policy")
		return Internal("failed to create policy")
	}

	return nil
}

// GetPolicy retrieves an AI policy by id
func (r *GovernanceRepository) GetPolicy(ctx context.Context, id uuid.UUID) (*models.AiPolicy, error) {
	ctx, span := tracing.StartSpan(ctx, "GovernanceRepository.GetPolicy")
	defer span.End()

	var policy models.AiPolicy
	err := r.DB().GetContext(ctx, &policy, `SELECT * FROM ai_policies WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, NotFound("policy %s does not exist", id)
	}
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithField("policy_id", id).Error("failed to get policy")
		return nil, Internal("failed to get policy")
	}

	return &policy, nil
}

// ListPolicies lists the AI policies of a workspace
func (r *GovernanceRepository) ListPolicies(ctx context.Context, workspaceID uuid.UUID) ([]models.AiPolicy, error) {
	ctx, span := tracing.StartSpan(ctx, "GovernanceRepository.ListPolicies")
	defer span.End()

	policies := []models.AiPolicy{}
	err := r.DB().SelectContext(ctx, &policies, `
		SELECT * FROM ai_policies WHERE workspace_id = $1 ORDER BY created_at
	`, workspaceID)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithField("workspace_id", workspaceID).Error("failed to list policies")
		return nil, Internal("failed to list policies")
	}

	return policies, nil
}

// UpdatePolicy applies partial field updates to a policy
func (r *GovernanceRepository) UpdatePolicy(ctx context.Context, id uuid.UUID, title, body *string) (*models.AiPolicy, error) {
	ctx, span := tracing.StartSpan(ctx, "GovernanceRepository.UpdatePolicy")
	defer span.End()

	var policy models.AiPolicy
	err := r.DB().QueryRowxContext(ctx, `
		UPDATE ai_policies
		SET title = COALESCE($1, title),
		    body = COALESCE($2, body),
		    updated_at = $3
		WHERE id = $4
		RETURNING *
	`, title, body, time.Now().UTC(), id).StructScan(&policy)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, NotFound("policy %s does not exist", id)
	}
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithField("policy_id", id).Error("failed to update policy")
		return nil, Internal("failed to update policy")
	}

	return &policy, nil
}

// DeletePolicy removes a policy and, via cascades, its mappings
func (r *GovernanceRepository) DeletePolicy(ctx context.Context, id uuid.UUID) error {
	ctx, span := tracing.StartSpan(ctx, "GovernanceRepository.DeletePolicy")
	defer span.End()

	result, err := r.DB().ExecContext(ctx, `DELETE FROM ai_policies WHERE id = $1`, id)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithField("policy_id", id).Error("failed to delete policy")
		return Internal("failed to delete policy")
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return NotFound("policy %s does not exist", id)
	}

	return nil
}

// CreateMapping links a use case to a policy with a compliance status
func (r *GovernanceRepository) CreateMapping(ctx context.Context, m *models.AiPolicyMapping) error {
	ctx, span := tracing.StartSpan(ctx, "GovernanceRepository.CreateMapping")
	defer span.End()

	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	now := time.Now().UTC()

	err := r.DB().QueryRowContext(ctx, `
		INSERT INTO ai_policy_mappings (id, use_case_id, policy_id, status, notes, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $6)
		ON CONFLICT (use_case_id, policy_id) DO UPDATE SET
			status = EXCLUDED.status,
			notes = EXCLUDED.notes,
			updated_at = EXCLUDED.updated_at
		RETURNING id, created_at, updated_at
	`, m.ID, m.UseCaseID, m.PolicyID, m.Status, m.Notes, now).
		Scan(&m.ID, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		if isForeignKeyViolation(err) {
			return BadRequest("use case and policy must exist in the same workspace")
		}
		r.logger.WithContext(ctx).WithError(err).WithField("use_case_id", m.UseCaseID).Error("failed to create policy mapping")
		return Internal("failed to create policy mapping")
	}

	return nil
}

// ListMappings lists the policy mappings of a use case
func (r *GovernanceRepository) ListMappings(ctx context.Context, useCaseID uuid.UUID) ([]models.AiPolicyMapping, error) {
	ctx, span := tracing.StartSpan(ctx, "GovernanceRepository.ListMappings")
	defer span.End()

	mappings := []models.AiPolicyMapping{}
	err := r.DB().SelectContext(ctx, &mappings, `
		SELECT * FROM ai_policy_mappings WHERE use_case_id = $1 ORDER BY created_at
	`, useCaseID)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithField("use_case_id", useCaseID).Error("failed to list policy mappings")
		return nil, Internal("failed to list policy mappings")
	}

	return mappings, nil
}

// UpdateMapping updates a mapping's status and notes
func (r *GovernanceRepository) UpdateMapping(ctx context.Context, id uuid.UUID, status, notes *string) (*models.AiPolicyMapping, error) {
	ctx, span := tracing.StartSpan(ctx, "GovernanceRepository.UpdateMapping")
	defer span.End()

	var m models.AiPolicyMapping
	err := r.DB().QueryRowxContext(ctx, `
		UPDATE ai_policy_mappings
		SET status = COALESCE($1, status),
		    notes = COALESCE($2, notes),
		    updated_at = $3
		WHERE id = $4
		RETURNING *
	`, status, notes, time.Now().UTC(), id).StructScan(&m)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, NotFound("policy mapping %s does not exist", id)
	}
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithField("mapping_id", id).Error("failed to update policy mapping")
		return nil, Internal("failed to update policy mapping")
	}

	return &m, nil
}

// DeleteMapping removes a policy mapping
func (r *GovernanceRepository) DeleteMapping(ctx context.Context, id uuid.UUID) error {
	ctx, span := tracing.StartSpan(ctx, "GovernanceRepository.DeleteMapping")
	defer span.End()

	result, err := r.DB().ExecContext(ctx, `DELETE FROM ai_policy_mappings WHERE id = $1`, id)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithField("mapping_id", id).Error("failed to delete policy mapping")
		return Internal("failed to delete policy mapping")
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return NotFound("policy mapping %s does not exist", id)
	}

	return nil
}

// GetMappingUseCase resolves a mapping id to its use case id
func (r *GovernanceRepository) GetMappingUseCase(ctx context.Context, id uuid.UUID) (uuid.UUID, error) {
	ctx, span := tracing.StartSpan(ctx, "GovernanceRepository.GetMappingUseCase")
	defer span.End()

	var useCaseID uuid.UUID
	err := r.DB().GetContext(ctx, &useCaseID, `SELECT use_case_id FROM ai_policy_mappings WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return uuid.Nil, NotFound("policy mapping %s does not exist", id)
	}
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithField("mapping_id", id).Error("failed to resolve mapping")
		return uuid.Nil, Internal("failed to resolve mapping")
	}

	return useCaseID, nil
}
