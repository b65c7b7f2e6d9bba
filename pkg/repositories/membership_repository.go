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

// MembershipRepository answers "who can touch what". Every workspace-scoped
// handler goes through it before reading or mutating anything.
type MembershipRepository struct {
	*Repository
}

// NewMembershipRepository creates a new membership repository
func NewMembershipRepository(db database.DB, logger ectologger.Logger) *MembershipRepository {
	return &MembershipRepository{
		Repository: NewRepository(db, logger),
	}
}

// GetRole returns the authenticated user's role in the workspace.
// ok is false when the user is not a member.
func (r *MembershipRepository) GetRole(ctx context.Context, workspaceID uuid.UUID) (role string, ok bool, err error) {
	ctx, span := tracing.StartSpan(ctx, "MembershipRepository.GetRole")
	defer span.End()

	userID, err := GetUserID(ctx)
	if err != nil {
		return "", false, err
	}

	err = r.DB().GetContext(ctx, &role, `
		SELECT role FROM workspace_members WHERE workspace_id = $1 AND user_id = $2
	`, workspaceID, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithField("workspace_id", workspaceID).Error("failed to check membership")
		return "", false, Internal("failed to check membership")
	}

	return role, true, nil
}

// RequireMember returns 404 when the user is not a member of the workspace.
// Non-members are told the resource does not exist rather than that it is
// off limits.
func (r *MembershipRepository) RequireMember(ctx context.Context, workspaceID uuid.UUID) error {
	_, ok, err := r.GetRole(ctx, workspaceID)
	if err != nil {
		return err
	}
	if !ok {
		return NotFound("workspace %s does not exist", workspaceID)
	}
	return nil
}

// RequireOwner returns 403 when the user is a member but not the owner, and
// 404 when not a member at all.
func (r *MembershipRepository) RequireOwner(ctx context.Context, workspaceID uuid.UUID) error {
	role, ok, err := r.GetRole(ctx, workspaceID)
	if err != nil {
		return err
	}
	if !ok {
		return NotFound("workspace %s does not exist", workspaceID)
	}
	if role != models.RoleOwner {
		return Forbidden("workspace owner required")
	}
	return nil
}

// AddMember adds a user to a workspace
func (r *MembershipRepository) AddMember(ctx context.Context, workspaceID, userID uuid.UUID, role string) error {
	ctx, span := tracing.StartSpan(ctx, "MembershipRepository.AddMember")
	defer span.End()

	_, err := r.DB().ExecContext(ctx, `
		INSERT INTO workspace_members (workspace_id, user_id, role, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (workspace_id, user_id) DO UPDATE SET role = EXCLUDED.role
	`, workspaceID, userID, role, time.Now().UTC())
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithField("workspace_id", workspaceID).Error("failed to add member")
		return Internal("failed to add member")
	}

	return nil
}

// RemoveMember removes a user from a workspace
func (r *MembershipRepository) RemoveMember(ctx context.Context, workspaceID, userID uuid.UUID) error {
	ctx, span := tracing.StartSpan(ctx, "MembershipRepository.RemoveMember")
	defer span.End()

	result, err := r.DB().ExecContext(ctx, `
		DELETE FROM workspace_members WHERE workspace_id = $1 AND user_id = $2
	`, workspaceID, userID)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithField("workspace_id", workspaceID).Error("failed to remove member")
		return Internal("failed to remove member")
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return NotFound("member does not exist")
	}

	return nil
}

// ListMembers lists the members of a workspace
func (r *MembershipRepository) ListMembers(ctx context.Context, workspaceID uuid.UUID) ([]models.WorkspaceMember, error) {
	ctx, span := tracing.StartSpan(ctx, "MembershipRepository.ListMembers")
	defer span.End()

	members := []models.WorkspaceMember{}
	err := r.DB().SelectContext(ctx, &members, `
		SELECT * FROM workspace_members WHERE workspace_id = $1 ORDER BY created_at
	`, workspaceID)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithField("workspace_id", workspaceID).Error("failed to list members")
		return nil, Internal("failed to list members")
	}

	return members, nil
}

// Workspace resolution chains. Each follows the FK path from a resource id up
// to its workspace in a single query, so the membership check and existence
// check collapse into one round trip.

func (r *MembershipRepository) workspaceIDFrom(ctx context.Context, query string, id uuid.UUID, resource string) (uuid.UUID, error) {
	var workspaceID uuid.UUID
	err := r.DB().GetContext(ctx, &workspaceID, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return uuid.Nil, NotFound("%s %s does not exist", resource, id)
	}
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithField(resource+"_id", id).Errorf("failed to resolve %s workspace", resource)
		return uuid.Nil, Internal("failed to resolve " + resource)
	}
	return workspaceID, nil
}

// WorkspaceForProject resolves a project id to its workspace
func (r *MembershipRepository) WorkspaceForProject(ctx context.Context, projectID uuid.UUID) (uuid.UUID, error) {
	ctx, span := tracing.StartSpan(ctx, "MembershipRepository.WorkspaceForProject")
	defer span.End()
	return r.workspaceIDFrom(ctx, `SELECT workspace_id FROM projects WHERE id = $1`, projectID, "project")
}

// WorkspaceForProcess resolves a process id to its workspace
func (r *MembershipRepository) WorkspaceForProcess(ctx context.Context, processID uuid.UUID) (uuid.UUID, error) {
	ctx, span := tracing.StartSpan(ctx, "MembershipRepository.WorkspaceForProcess")
	defer span.End()
	return r.workspaceIDFrom(ctx, `SELECT workspace_id FROM processes WHERE id = $1`, processID, "process")
}

// WorkspaceForOpportunity resolves an opportunity id through its process
func (r *MembershipRepository) WorkspaceForOpportunity(ctx context.Context, opportunityID uuid.UUID) (uuid.UUID, error) {
	ctx, span := tracing.StartSpan(ctx, "MembershipRepository.WorkspaceForOpportunity")
	defer span.End()
	return r.workspaceIDFrom(ctx, `
		SELECT p.workspace_id FROM opportunities o
		INNER JOIN processes p ON p.id = o.process_id
		WHERE o.id = $1
	`, opportunityID, "opportunity")
}

// WorkspaceForBlueprint resolves a blueprint id to its workspace
func (r *MembershipRepository) WorkspaceForBlueprint(ctx context.Context, blueprintID uuid.UUID) (uuid.UUID, error) {
	ctx, span := tracing.StartSpan(ctx, "MembershipRepository.WorkspaceForBlueprint")
	defer span.End()
	return r.workspaceIDFrom(ctx, `SELECT workspace_id FROM blueprints WHERE id = $1`, blueprintID, "blueprint")
}

// WorkspaceForUseCase resolves an AI use case id to its workspace
func (r *MembershipRepository) WorkspaceForUseCase(ctx context.Context, useCaseID uuid.UUID) (uuid.UUID, error) {
	ctx, span := tracing.StartSpan(ctx, "MembershipRepository.WorkspaceForUseCase")
	defer span.End()
	return r.workspaceIDFrom(ctx, `SELECT workspace_id FROM ai_use_cases WHERE id = $1`, useCaseID, "use case")
}

// WorkspaceForPolicy resolves an AI policy id to its workspace
func (r *MembershipRepository) WorkspaceForPolicy(ctx context.Context, policyID uuid.UUID) (uuid.UUID, error) {
	ctx, span := tracing.StartSpan(ctx, "MembershipRepository.WorkspaceForPolicy")
	defer span.End()
	return r.workspaceIDFrom(ctx, `SELECT workspace_id FROM ai_policies WHERE id = $1`, policyID, "policy")
}

// WorkspaceForSession resolves an assistant session id to its workspace
func (r *MembershipRepository) WorkspaceForSession(ctx context.Context, sessionID uuid.UUID) (uuid.UUID, error) {
	ctx, span := tracing.StartSpan(ctx, "MembershipRepository.WorkspaceForSession")
	defer span.End()
	return r.workspaceIDFrom(ctx, `SELECT workspace_id FROM assistant_sessions WHERE id = $1`, sessionID, "session")
}
