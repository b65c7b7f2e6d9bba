package handlers

import (
	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/Ramsey-B/fern/pkg/billing"
	"github.com/Ramsey-B/fern/pkg/database"
	"github.com/Ramsey-B/fern/pkg/llm"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/repositories"
	"github.com/Ramsey-B/fern/pkg/tracing"
	"github.com/Ramsey-B/fern/pkg/validation"
)

// Metered action names for governance drafts
const (
	ChargeActionRiskDraft     = "governance.risk_draft"
	ChargeActionPolicySuggest = "governance.policy_suggest"
)

// GovernanceHandler handles AI use case, risk assessment, policy and policy
// mapping endpoints
type GovernanceHandler struct {
	governance  *repositories.GovernanceRepository
	memberships *repositories.MembershipRepository
	client      *llm.Client
	meter       *billing.Meter
	logger      ectologger.Logger
	tokenRates  billing.TokenRates
}

// NewGovernanceHandler creates a new governance handler
func NewGovernanceHandler(
	governance *repositories.GovernanceRepository,
	memberships *repositories.MembershipRepository,
	client *llm.Client,
	meter *billing.Meter,
	logger ectologger.Logger,
	tokenRates billing.TokenRates,
) *GovernanceHandler {
	return &GovernanceHandler{
		governance:  governance,
		memberships: memberships,
		client:      client,
		meter:       meter,
		logger:      logger,
		tokenRates:  tokenRates,
	}
}

// CreateUseCaseRequest represents the create use case request body
type CreateUseCaseRequest struct {
	Name           string   `json:"name" validate:"required"`
	Description    *string  `json:"description,omitempty"`
	ProcessIDs     []string `json:"process_ids,omitempty"`
	OpportunityIDs []string `json:"opportunity_ids,omitempty"`
	Tools          []string `json:"tools,omitempty"`
}

// UpdateUseCaseRequest represents the update use case request body
type UpdateUseCaseRequest struct {
	Name        *string   `json:"name,omitempty"`
	Description *string   `json:"description,omitempty"`
	Status      *string   `json:"status,omitempty" validate:"omitempty,oneof=planned pilot production paused"`
	Tools       *[]string `json:"tools,omitempty"`
}

// UpsertRiskRequest represents the manual risk assessment request body
type UpsertRiskRequest struct {
	RiskLevel string          `json:"risk_level" validate:"oneof=low medium high critical"`
	Summary   string          `json:"summary" validate:"required"`
	Hazards   []models.Hazard `json:"hazards" validate:"required,min=1,dive"`
}

// CreatePolicyRequest represents the create policy request body
type CreatePolicyRequest struct {
	Title string `json:"title" validate:"required"`
	Body  string `json:"body" validate:"required"`
}

// UpdatePolicyRequest represents the update policy request body
type UpdatePolicyRequest struct {
	Title *string `json:"title,omitempty"`
	Body  *string `json:"body,omitempty"`
}

// CreateMappingRequest represents the create mapping request body
type CreateMappingRequest struct {
	PolicyID string  `json:"policy_id" validate:"required,uuid"`
	Status   string  `json:"status" validate:"oneof=compliant gap waived"`
	Notes    *string `json:"notes,omitempty"`
}

// UpdateMappingRequest represents the update mapping request body
type UpdateMappingRequest struct {
	Status *string `json:"status,omitempty" validate:"omitempty,oneof=compliant gap waived"`
	Notes  *string `json:"notes,omitempty"`
}

// RegisterWorkspaceScoped registers the workspace-nested governance routes
func (h *GovernanceHandler) RegisterWorkspaceScoped(g *echo.Group) {
	g.GET("/:id/ai-use-cases", h.ListUseCases)
	g.POST("/:id/ai-use-cases", h.CreateUseCase)
	g.GET("/:id/ai-policies", h.ListPolicies)
	g.POST("/:id/ai-policies", h.CreatePolicy)
	g.POST("/:id/ai-policies/suggest", h.SuggestPolicy)
}

// RegisterUseCases registers the use-case-id routes
func (h *GovernanceHandler) RegisterUseCases(g *echo.Group) {
	g.GET("/:id", h.GetUseCase)
	g.PATCH("/:id", h.UpdateUseCase)
	g.DELETE("/:id", h.DeleteUseCase)
	g.GET("/:id/risk-assessment", h.GetRiskAssessment)
	g.PUT("/:id/risk-assessment", h.UpsertRiskAssessment)
	g.POST("/:id/risk-assessment/draft", h.DraftRiskAssessment)
	g.GET("/:id/mappings", h.ListMappings)
	g.POST("/:id/mappings", h.CreateMapping)
}

// RegisterPolicies registers the policy-id routes
func (h *GovernanceHandler) RegisterPolicies(g *echo.Group) {
	g.GET("/:id", h.GetPolicy)
	g.PATCH("/:id", h.UpdatePolicy)
	g.DELETE("/:id", h.DeletePolicy)
}

// RegisterMappings registers the mapping-id routes
func (h *GovernanceHandler) RegisterMappings(g *echo.Group) {
	g.PATCH("/:id", h.UpdateMapping)
	g.DELETE("/:id", h.DeleteMapping)
}

func (h *GovernanceHandler) requireMemberForUseCase(c echo.Context, useCaseID uuid.UUID) error {
	ctx := c.Request().Context()
	workspaceID, err := h.memberships.WorkspaceForUseCase(ctx, useCaseID)
	if err != nil {
		return err
	}
	return h.memberships.RequireMember(ctx, workspaceID)
}

func (h *GovernanceHandler) requireMemberForPolicy(c echo.Context, policyID uuid.UUID) error {
	ctx := c.Request().Context()
	workspaceID, err := h.memberships.WorkspaceForPolicy(ctx, policyID)
	if err != nil {
		return err
	}
	return h.memberships.RequireMember(ctx, workspaceID)
}

// ListUseCases lists the AI use cases of a workspace
func (h *GovernanceHandler) ListUseCases(c echo.Context) error {
	ctx, span := tracing.StartSpan(c.Request().Context(), "GovernanceHandler.ListUseCases")
	defer span.End()
	c.SetRequest(c.Request().WithContext(ctx))

	workspaceID, err := ParseUUID(c, "id")
	if err != nil {
		return err
	}
	if err := h.memberships.RequireMember(ctx, workspaceID); err != nil {
		return err
	}

	useCases, err := h.governance.ListUseCases(ctx, workspaceID)
	if err != nil {
		return err
	}

	return SuccessResponse(c, useCases)
}

// CreateUseCase registers an AI use case in the workspace inventory
func (h *GovernanceHandler) CreateUseCase(c echo.Context) error {
	ctx, span := tracing.StartSpan(c.Request().Context(), "GovernanceHandler.CreateUseCase")
	defer span.End()
	c.SetRequest(c.Request().WithContext(ctx))

	workspaceID, err := ParseUUID(c, "id")
	if err != nil {
		return err
	}
	if err := h.memberships.RequireMember(ctx, workspaceID); err != nil {
		return err
	}

	req, err := validation.BindRequest[CreateUseCaseRequest](c)
	if err != nil {
		return err
	}

	uc := &models.AiUseCase{
		WorkspaceID:    workspaceID,
		Name:           req.Name,
		Description:    req.Description,
		ProcessIDs:     database.JSONB[[]string]{Data: emptyIfNil(req.ProcessIDs)},
		OpportunityIDs: database.JSONB[[]string]{Data: emptyIfNil(req.OpportunityIDs)},
		Tools:          database.JSONB[[]string]{Data: emptyIfNil(req.Tools)},
	}
	if err := h.governance.CreateUseCase(ctx, uc); err != nil {
		return err
	}

	return CreatedResponse(c, uc)
}

// GetUseCase returns an AI use case
func (h *GovernanceHandler) GetUseCase(c echo.Context) error {
	ctx, span := tracing.StartSpan(c.Request().Context(), "GovernanceHandler.GetUseCase")
	defer span.End()
	c.SetRequest(c.Request().WithContext(ctx))

	id, err := ParseUUID(c, "id")
	if err != nil {
		return err
	}
	if err := h.requireMemberForUseCase(c, id); err != nil {
		return err
	}

	uc, err := h.governance.GetUseCase(ctx, id)
	if err != nil {
		return err
	}

	return SuccessResponse(c, uc)
}

// UpdateUseCase applies partial updates to a use case. Status transitions are
// free-form within the known status set.
func (h *GovernanceHandler) UpdateUseCase(c echo.Context) error {
	ctx, span := tracing.StartSpan(c.Request().Context(), "GovernanceHandler.UpdateUseCase")
	defer span.End()
	c.SetRequest(c.Request().WithContext(ctx))

	id, err := ParseUUID(c, "id")
	if err != nil {
		return err
	}
	if err := h.requireMemberForUseCase(c, id); err != nil {
		return err
	}

	req, err := validation.BindRequest[UpdateUseCaseRequest](c)
	if err != nil {
		return err
	}

	uc, err := h.governance.UpdateUseCase(ctx, id, repositories.UseCaseUpdate{
		Name:        req.Name,
		Description: req.Description,
		Status:      req.Status,
		Tools:       req.Tools,
	})
	if err != nil {
		return err
	}

	return SuccessResponse(c, uc)
}

// DeleteUseCase removes a use case and its risk assessment and mappings
func (h *GovernanceHandler) DeleteUseCase(c echo.Context) error {
	ctx, span := tracing.StartSpan(c.Request().Context(), "GovernanceHandler.DeleteUseCase")
	defer span.End()
	c.SetRequest(c.Request().WithContext(ctx))

	id, err := ParseUUID(c, "id")
	if err != nil {
		return err
	}
	if err := h.requireMemberForUseCase(c, id); err != nil {
		return err
	}

	if err := h.governance.DeleteUseCase(ctx, id); err != nil {
		return err
	}

	return NoContentResponse(c)
}

// GetRiskAssessment returns the use case's risk assessment
func (h *GovernanceHandler) GetRiskAssessment(c echo.Context) error {
	ctx, span := tracing.StartSpan(c.Request().Context(), "GovernanceHandler.GetRiskAssessment")
	defer span.End()
	c.SetRequest(c.Request().WithContext(ctx))

	id, err := ParseUUID(c, "id")
	if err != nil {
		return err
	}
	if err := h.requireMemberForUseCase(c, id); err != nil {
		return err
	}

	ra, err := h.governance.GetRiskAssessment(ctx, id)
	if err != nil {
		return err
	}

	return SuccessResponse(c, ra)
}

// UpsertRiskAssessment writes the use case's risk assessment. A use case has
// at most one; writing replaces it.
func (h *GovernanceHandler) UpsertRiskAssessment(c echo.Context) error {
	ctx, span := tracing.StartSpan(c.Request().Context(), "GovernanceHandler.UpsertRiskAssessment")
	defer span.End()
	c.SetRequest(c.Request().WithContext(ctx))

	id, err := ParseUUID(c, "id")
	if err != nil {
		return err
	}
	if err := h.requireMemberForUseCase(c, id); err != nil {
		return err
	}

	req, err := validation.BindRequest[UpsertRiskRequest](c)
	if err != nil {
		return err
	}

	ra := &models.RiskAssessment{
		UseCaseID: id,
		RiskLevel: req.RiskLevel,
		Summary:   req.Summary,
		Hazards:   database.JSONB[[]models.Hazard]{Data: req.Hazards},
		Drafted:   false,
	}
	if err := h.governance.UpsertRiskAssessment(ctx, ra); err != nil {
		return err
	}

	return SuccessResponse(c, ra)
}

// DraftRiskAssessment asks the model to draft the use case's risk assessment
// and stores it. The call is metered.
func (h *GovernanceHandler) DraftRiskAssessment(c echo.Context) error {
	ctx, span := tracing.StartSpan(c.Request().Context(), "GovernanceHandler.DraftRiskAssessment")
	defer span.End()
	c.SetRequest(c.Request().WithContext(ctx))

	id, err := ParseUUID(c, "id")
	if err != nil {
		return err
	}

	workspaceID, err := h.memberships.WorkspaceForUseCase(ctx, id)
	if err != nil {
		return err
	}
	if err := h.memberships.RequireMember(ctx, workspaceID); err != nil {
		return err
	}
	if err := h.meter.Authorize(ctx, workspaceID); err != nil {
		return err
	}

	uc, err := h.governance.GetUseCase(ctx, id)
	if err != nil {
		return err
	}

	system, user := llm.RiskPrompts(uc)
	raw, usage, err := h.client.Complete(ctx, system, user, nil)
	if err != nil {
		return err
	}

	draft, err := llm.Parse[llm.RiskDraft](ctx, h.logger, raw)
	if err != nil {
		return err
	}

	hazards := make([]models.Hazard, 0, len(draft.Hazards))
	for _, hz := range draft.Hazards {
		hazards = append(hazards, models.Hazard{
			Title:      hz.Title,
			Severity:   hz.Severity,
			Likelihood: hz.Likelihood,
			Mitigation: hz.Mitigation,
		})
	}

	ra := &models.RiskAssessment{
		UseCaseID: id,
		RiskLevel: draft.RiskLevel,
		Summary:   draft.Summary,
		Hazards:   database.JSONB[[]models.Hazard]{Data: hazards},
		Drafted:   true,
	}
	if err := h.governance.UpsertRiskAssessment(ctx, ra); err != nil {
		return err
	}

	icus := billing.ICUsForTokens(usage.PromptTokens, usage.CompletionTokens, h.tokenRates)
	h.meter.Charge(ctx, workspaceID, ChargeActionRiskDraft, icus)

	return CreatedResponse(c, ra)
}

// ListPolicies lists the AI policies of a workspace
func (h *GovernanceHandler) ListPolicies(c echo.Context) error {
	ctx, span := tracing.StartSpan(c.Request().Context(), "GovernanceHandler.ListPolicies")
	defer span.End()
	c.SetRequest(c.Request().WithContext(ctx))

	workspaceID, err := ParseUUID(c, "id")
	if err != nil {
		return err
	}
	if err := h.memberships.RequireMember(ctx, workspaceID); err != nil {
		return err
	}

	policies, err := h.governance.ListPolicies(ctx, workspaceID)
	if err != nil {
		return err
	}

	return SuccessResponse(c, policies)
}

// CreatePolicy creates an AI policy
func (h *GovernanceHandler) CreatePolicy(c echo.Context) error {
	ctx, span := tracing.StartSpan(c.Request().Context(), "GovernanceHandler.CreatePolicy")
	defer span.End()
	c.SetRequest(c.Request().WithContext(ctx))

	workspaceID, err := ParseUUID(c, "id")
	if err != nil {
		return err
	}
	if err := h.memberships.RequireMember(ctx, workspaceID); err != nil {
		return err
	}

	req, err := validation.BindRequest[CreatePolicyRequest](c)
	if err != nil {
		return err
	}

	policy := &models.AiPolicy{
		WorkspaceID: workspaceID,
		Title:       req.Title,
		Body:        req.Body,
	}
	if err := h.governance.CreatePolicy(ctx, policy); err != nil {
		return err
	}

	return CreatedResponse(c, policy)
}

// SuggestPolicy asks the model for a policy grounded in the workspace's use
// case inventory. The call is metered; the suggestion is stored as a policy.
func (h *GovernanceHandler) SuggestPolicy(c echo.Context) error {
	ctx, span := tracing.StartSpan(c.Request().Context(), "GovernanceHandler.SuggestPolicy")
	defer span.End()
	c.SetRequest(c.Request().WithContext(ctx))

	workspaceID, err := ParseUUID(c, "id")
	if err != nil {
		return err
	}
	if err := h.memberships.RequireMember(ctx, workspaceID); err != nil {
		return err
	}
	if err := h.meter.Authorize(ctx, workspaceID); err != nil {
		return err
	}

	useCases, err := h.governance.ListUseCases(ctx, workspaceID)
	if err != nil {
		return err
	}
	if len(useCases) == 0 {
		return BadRequest("workspace has no AI use cases to ground a policy in")
	}

	system, user := llm.PolicyPrompts(useCases)
	raw, usage, err := h.client.Complete(ctx, system, user, nil)
	if err != nil {
		return err
	}

	suggestion, err := llm.Parse[llm.PolicySuggestion](ctx, h.logger, raw)
	if err != nil {
		return err
	}

	policy := &models.AiPolicy{
		WorkspaceID: workspaceID,
		Title:       suggestion.Title,
		Body:        suggestion.Body,
	}
	if err := h.governance.CreatePolicy(ctx, policy); err != nil {
		return err
	}

	icus := billing.ICUsForTokens(usage.PromptTokens, usage.CompletionTokens, h.tokenRates)
	h.meter.Charge(ctx, workspaceID, ChargeActionPolicySuggest, icus)

	return CreatedResponse(c, policy)
}

// GetPolicy returns a policy
func (h *GovernanceHandler) GetPolicy(c echo.Context) error {
	ctx, span := tracing.StartSpan(c.Request().Context(), "GovernanceHandler.GetPolicy")
	defer span.End()
	c.SetRequest(c.Request().WithContext(ctx))

	id, err := ParseUUID(c, "id")
	if err != nil {
		return err
	}
	if err := h.requireMemberForPolicy(c, id); err != nil {
		return err
	}

	policy, err := h.governance.GetPolicy(ctx, id)
	if err != nil {
		return err
	}

	return SuccessResponse(c, policy)
}

// UpdatePolicy applies partial updates to a policy
func (h *GovernanceHandler) UpdatePolicy(c echo.Context) error {
	ctx, span := tracing.StartSpan(c.Request().Context(), "GovernanceHandler.UpdatePolicy")
	defer span.End()
	c.SetRequest(c.Request().WithContext(ctx))

	id, err := ParseUUID(c, "id")
	if err != nil {
		return err
	}
	if err := h.requireMemberForPolicy(c, id); err != nil {
		return err
	}

	req, err := validation.BindRequest[UpdatePolicyRequest](c)
	if err != nil {
		return err
	}

	policy, err := h.governance.UpdatePolicy(ctx, id, req.Title, req.Body)
	if err != nil {
		return err
	}

	return SuccessResponse(c, policy)
}

// DeletePolicy removes a policy and its mappings
func (h *GovernanceHandler) DeletePolicy(c echo.Context) error {
	ctx, span := tracing.StartSpan(c.Request().Context(), "GovernanceHandler.DeletePolicy")
	defer span.End()
	c.SetRequest(c.Request().WithContext(ctx))

	id, err := ParseUUID(c, "id")
	if err != nil {
		return err
	}
	if err := h.requireMemberForPolicy(c, id); err != nil {
		return err
	}

	if err := h.governance.DeletePolicy(ctx, id); err != nil {
		return err
	}

	return NoContentResponse(c)
}

// ListMappings lists a use case's policy mappings
func (h *GovernanceHandler) ListMappings(c echo.Context) error {
	ctx, span := tracing.StartSpan(c.Request().Context(), "GovernanceHandler.ListMappings")
	defer span.End()
	c.SetRequest(c.Request().WithContext(ctx))

	id, err := ParseUUID(c, "id")
	if err != nil {
		return err
	}
	if err := h.requireMemberForUseCase(c, id); err != nil {
		return err
	}

	mappings, err := h.governance.ListMappings(ctx, id)
	if err != nil {
		return err
	}

	return SuccessResponse(c, mappings)
}

// CreateMapping records how a use case stands against one policy. One row per
// (use case, policy); re-creating overwrites status and notes. The policy must
// live in the same workspace as the use case; a policy from another workspace
// is reported as nonexistent.
func (h *GovernanceHandler) CreateMapping(c echo.Context) error {
	ctx, span := tracing.StartSpan(c.Request().Context(), "GovernanceHandler.CreateMapping")
	defer span.End()
	c.SetRequest(c.Request().WithContext(ctx))

	id, err := ParseUUID(c, "id")
	if err != nil {
		return err
	}
	useCaseWorkspace, err := h.memberships.WorkspaceForUseCase(ctx, id)
	if err != nil {
		return err
	}
	if err := h.memberships.RequireMember(ctx, useCaseWorkspace); err != nil {
		return err
	}

	req, err := validation.BindRequest[CreateMappingRequest](c)
	if err != nil {
		return err
	}

	policyID := uuid.MustParse(req.PolicyID)
	policyWorkspace, err := h.memberships.WorkspaceForPolicy(ctx, policyID)
	if err != nil {
		return err
	}
	if policyWorkspace != useCaseWorkspace {
		return repositories.NotFound("policy %s does not exist", policyID)
	}

	mapping := &models.AiPolicyMapping{
		UseCaseID: id,
		PolicyID:  policyID,
		Status:    req.Status,
		Notes:     req.Notes,
	}
	if err := h.governance.CreateMapping(ctx, mapping); err != nil {
		return err
	}

	return CreatedResponse(c, mapping)
}

// UpdateMapping applies partial updates to a mapping
func (h *GovernanceHandler) UpdateMapping(c echo.Context) error {
	ctx, span := tracing.StartSpan(c.Request().Context(), "GovernanceHandler.UpdateMapping")
	defer span.End()
	c.SetRequest(c.Request().WithContext(ctx))

	id, err := ParseUUID(c, "id")
	if err != nil {
		return err
	}

	useCaseID, err := h.governance.GetMappingUseCase(ctx, id)
	if err != nil {
		return err
	}
	if err := h.requireMemberForUseCase(c, useCaseID); err != nil {
		return err
	}

	req, err := validation.BindRequest[UpdateMappingRequest](c)
	if err != nil {
		return err
	}

	mapping, err := h.governance.UpdateMapping(ctx, id, req.Status, req.Notes)
	if err != nil {
		return err
	}

	return SuccessResponse(c, mapping)
}

// DeleteMapping removes a mapping
func (h *GovernanceHandler) DeleteMapping(c echo.Context) error {
	ctx, span := tracing.StartSpan(c.Request().Context(), "GovernanceHandler.DeleteMapping")
	defer span.End()
	c.SetRequest(c.Request().WithContext(ctx))

	id, err := ParseUUID(c, "id")
	if err != nil {
		return err
	}

	useCaseID, err := h.governance.GetMappingUseCase(ctx, id)
	if err != nil {
		return err
	}
	if err := h.requireMemberForUseCase(c, useCaseID); err != nil {
		return err
	}

	if err := h.governance.DeleteMapping(ctx, id); err != nil {
		return err
	}

	return NoContentResponse(c)
}
