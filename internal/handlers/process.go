package handlers

import (
	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/Ramsey-B/fern/pkg/appctx"
	"github.com/Ramsey-B/fern/pkg/billing"
	"github.com/Ramsey-B/fern/pkg/database"
	"github.com/Ramsey-B/fern/pkg/events"
	"github.com/Ramsey-B/fern/pkg/llm"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/repositories"
	"github.com/Ramsey-B/fern/pkg/tracing"
	"github.com/Ramsey-B/fern/pkg/validation"
	"github.com/Ramsey-B/fern/pkg/workflow"
)

// ChargeActionScan is the metered action name for opportunity scans
const ChargeActionScan = "process.scan_opportunities"

// ProcessHandler handles process, step and link endpoints
type ProcessHandler struct {
	processes     *repositories.ProcessRepository
	opportunities *repositories.OpportunityRepository
	memberships   *repositories.MembershipRepository
	applier       *workflow.Applier
	client        *llm.Client
	meter         *billing.Meter
	emitter       *events.Emitter
	logger        ectologger.Logger
	tokenRates    billing.TokenRates
}

// NewProcessHandler creates a new process handler
func NewProcessHandler(
	processes *repositories.ProcessRepository,
	opportunities *repositories.OpportunityRepository,
	memberships *repositories.MembershipRepository,
	applier *workflow.Applier,
	client *llm.Client,
	meter *billing.Meter,
	emitter *events.Emitter,
	logger ectologger.Logger,
	tokenRates billing.TokenRates,
) *ProcessHandler {
	return &ProcessHandler{
		processes:     processes,
		opportunities: opportunities,
		memberships:   memberships,
		applier:       applier,
		client:        client,
		meter:         meter,
		emitter:       emitter,
		logger:        logger,
		tokenRates:    tokenRates,
	}
}

// CreateProcessRequest represents the create process request body
type CreateProcessRequest struct {
	Name        string  `json:"name" validate:"required"`
	Description *string `json:"description,omitempty"`
	ProjectID   *string `json:"project_id,omitempty"`
}

// UpdateProcessRequest represents the update process request body
type UpdateProcessRequest struct {
	Name        *string `json:"name,omitempty"`
	Description *string `json:"description,omitempty"`
	ProjectID   *string `json:"project_id,omitempty"`
}

// CreateStepRequest represents the create step request body
type CreateStepRequest struct {
	Name            string   `json:"name" validate:"required"`
	Description     *string  `json:"description,omitempty"`
	Owner           *string  `json:"owner,omitempty"`
	Inputs          []string `json:"inputs,omitempty"`
	Outputs         []string `json:"outputs,omitempty"`
	Frequency       *string  `json:"frequency,omitempty"`
	DurationMinutes *int     `json:"duration_minutes,omitempty"`
	PositionX       *float64 `json:"position_x,omitempty"`
	PositionY       *float64 `json:"position_y,omitempty"`
}

// UpdateStepRequest represents the update step request body
type UpdateStepRequest struct {
	Name            *string   `json:"name,omitempty"`
	Description     *string   `json:"description,omitempty"`
	Owner           *string   `json:"owner,omitempty"`
	Inputs          *[]string `json:"inputs,omitempty"`
	Outputs         *[]string `json:"outputs,omitempty"`
	Frequency       *string   `json:"frequency,omitempty"`
	DurationMinutes *int      `json:"duration_minutes,omitempty"`
	PositionX       *float64  `json:"position_x,omitempty"`
	PositionY       *float64  `json:"position_y,omitempty"`
}

// ReorderStepsRequest represents the reorder request body
type ReorderStepsRequest struct {
	StepIDs []string `json:"step_ids" validate:"required,min=1"`
}

// CreateLinkRequest represents the create link request body
type CreateLinkRequest struct {
	FromStepID string  `json:"from_step_id" validate:"required,uuid"`
	ToStepID   string  `json:"to_step_id" validate:"required,uuid"`
	Label      *string `json:"label,omitempty"`
	LinkType   *string `json:"link_type,omitempty"`
}

// ApplyDeltaRequest represents the apply-delta request body
type ApplyDeltaRequest struct {
	Delta llm.WorkflowDelta `json:"delta"`
}

// RegisterWorkspaceScoped registers the workspace-nested process routes
func (h *ProcessHandler) RegisterWorkspaceScoped(g *echo.Group) {
	g.GET("/:id/processes", h.List)
	g.POST("/:id/processes", h.Create)
}

// Register registers the process-id routes
func (h *ProcessHandler) Register(g *echo.Group) {
	g.GET("/:id", h.GetGraph)
	g.PATCH("/:id", h.Update)
	g.DELETE("/:id", h.Delete)
	g.POST("/:id/steps", h.CreateStep)
	g.PATCH("/:id/steps/:step_id", h.UpdateStep)
	g.DELETE("/:id/steps/:step_id", h.DeleteStep)
	g.POST("/:id/steps/reorder", h.ReorderSteps)
	g.POST("/:id/links", h.CreateLink)
	g.DELETE("/:id/links/:link_id", h.DeleteLink)
	g.POST("/:id/apply-delta", h.ApplyDelta)
	g.POST("/:id/scan-opportunities", h.ScanOpportunities)
}

// requireMember resolves the process's workspace and checks membership
func (h *ProcessHandler) requireMember(c echo.Context, processID uuid.UUID) error {
	ctx := c.Request().Context()
	workspaceID, err := h.memberships.WorkspaceForProcess(ctx, processID)
	if err != nil {
		return err
	}
	return h.memberships.RequireMember(ctx, workspaceID)
}

// List lists the processes of a workspace with their step counts
func (h *ProcessHandler) List(c echo.Context) error {
	ctx, span := tracing.StartSpan(c.Request().Context(), "ProcessHandler.List")
	defer span.End()
	c.SetRequest(c.Request().WithContext(ctx))

	workspaceID, err := ParseUUID(c, "id")
	if err != nil {
		return err
	}
	if err := h.memberships.RequireMember(ctx, workspaceID); err != nil {
		return err
	}

	processes, err := h.processes.ListByWorkspace(ctx, workspaceID)
	if err != nil {
		return err
	}

	return SuccessResponse(c, processes)
}

// Create creates a process in a workspace
func (h *ProcessHandler) Create(c echo.Context) error {
	ctx, span := tracing.StartSpan(c.Request().Context(), "ProcessHandler.Create")
	defer span.End()
	c.SetRequest(c.Request().WithContext(ctx))

	workspaceID, err := ParseUUID(c, "id")
	if err != nil {
		return err
	}
	if err := h.memberships.RequireMember(ctx, workspaceID); err != nil {
		return err
	}

	req, err := validation.BindRequest[CreateProcessRequest](c)
	if err != nil {
		return err
	}

	process := &models.Process{
		WorkspaceID: workspaceID,
		Name:        req.Name,
		Description: req.Description,
	}
	if req.ProjectID != nil {
		projectID, err := uuid.Parse(*req.ProjectID)
		if err != nil {
			return BadRequest("invalid project_id")
		}
		process.ProjectID = &projectID
	}

	if err := h.processes.Create(ctx, process); err != nil {
		return err
	}

	_ = h.emitter.EmitResourceCreated(ctx, workspaceID.String(), appctx.GetUserID(ctx), "process", process.ID.String())
	return CreatedResponse(c, process)
}

// GetGraph returns a process with its full step and link graph
func (h *ProcessHandler) GetGraph(c echo.Context) error {
	ctx, span := tracing.StartSpan(c.Request().Context(), "ProcessHandler.GetGraph")
	defer span.End()
	c.SetRequest(c.Request().WithContext(ctx))

	id, err := ParseUUID(c, "id")
	if err != nil {
		return err
	}
	if err := h.requireMember(c, id); err != nil {
		return err
	}

	graph, err := h.processes.GetGraph(ctx, id)
	if err != nil {
		return err
	}

	return SuccessResponse(c, graph)
}

// Update applies partial updates to a process
func (h *ProcessHandler) Update(c echo.Context) error {
	ctx, span := tracing.StartSpan(c.Request().Context(), "ProcessHandler.Update")
	defer span.End()
	c.SetRequest(c.Request().WithContext(ctx))

	id, err := ParseUUID(c, "id")
	if err != nil {
		return err
	}
	if err := h.requireMember(c, id); err != nil {
		return err
	}

	req, err := validation.BindRequest[UpdateProcessRequest](c)
	if err != nil {
		return err
	}

	var projectID *uuid.UUID
	if req.ProjectID != nil {
		parsed, err := uuid.Parse(*req.ProjectID)
		if err != nil {
			return BadRequest("invalid project_id")
		}
		projectID = &parsed
	}

	process, err := h.processes.Update(ctx, id, req.Name, req.Description, projectID)
	if err != nil {
		return err
	}

	return SuccessResponse(c, process)
}

// Delete removes a process and, via cascades, its steps, links and
// opportunities
func (h *ProcessHandler) Delete(c echo.Context) error {
	ctx, span := tracing.StartSpan(c.Request().Context(), "ProcessHandler.Delete")
	defer span.End()
	c.SetRequest(c.Request().WithContext(ctx))

	id, err := ParseUUID(c, "id")
	if err != nil {
		return err
	}

	workspaceID, err := h.memberships.WorkspaceForProcess(ctx, id)
	if err != nil {
		return err
	}
	if err := h.memberships.RequireMember(ctx, workspaceID); err != nil {
		return err
	}

	if err := h.processes.Delete(ctx, id); err != nil {
		return err
	}

	_ = h.emitter.EmitResourceDeleted(ctx, workspaceID.String(), appctx.GetUserID(ctx), "process", id.String())
	return NoContentResponse(c)
}

// CreateStep adds a step to a process. Position defaults to the next slot in
// the vertical layout.
func (h *ProcessHandler) CreateStep(c echo.Context) error {
	ctx, span := tracing.StartSpan(c.Request().Context(), "ProcessHandler.CreateStep")
	defer span.End()
	c.SetRequest(c.Request().WithContext(ctx))

	id, err := ParseUUID(c, "id")
	if err != nil {
		return err
	}
	if err := h.requireMember(c, id); err != nil {
		return err
	}

	req, err := validation.BindRequest[CreateStepRequest](c)
	if err != nil {
		return err
	}

	count, err := h.processes.CountSteps(ctx, id)
	if err != nil {
		return err
	}

	step := &models.ProcessStep{
		ProcessID:       id,
		Name:            req.Name,
		Description:     req.Description,
		Owner:           req.Owner,
		Inputs:          database.JSONB[[]string]{Data: emptyIfNil(req.Inputs)},
		Outputs:         database.JSONB[[]string]{Data: emptyIfNil(req.Outputs)},
		Frequency:       req.Frequency,
		DurationMinutes: req.DurationMinutes,
		PositionX:       250,
		PositionY:       80 + 140*float64(count),
		SortOrder:       count,
	}
	if req.PositionX != nil {
		step.PositionX = *req.PositionX
	}
	if req.PositionY != nil {
		step.PositionY = *req.PositionY
	}

	if err := h.processes.CreateStep(ctx, step); err != nil {
		return err
	}

	return CreatedResponse(c, step)
}

// UpdateStep applies partial updates to a step
func (h *ProcessHandler) UpdateStep(c echo.Context) error {
	ctx, span := tracing.StartSpan(c.Request().Context(), "ProcessHandler.UpdateStep")
	defer span.End()
	c.SetRequest(c.Request().WithContext(ctx))

	id, err := ParseUUID(c, "id")
	if err != nil {
		return err
	}
	if err := h.requireMember(c, id); err != nil {
		return err
	}

	stepID, err := ParseUUID(c, "step_id")
	if err != nil {
		return err
	}

	req, err := validation.BindRequest[UpdateStepRequest](c)
	if err != nil {
		return err
	}

	step, err := h.processes.UpdateStep(ctx, id, stepID, repositories.StepUpdate{
		Name:            req.Name,
		Description:     req.Description,
		Owner:           req.Owner,
		Inputs:          req.Inputs,
		Outputs:         req.Outputs,
		Frequency:       req.Frequency,
		DurationMinutes: req.DurationMinutes,
		PositionX:       req.PositionX,
		PositionY:       req.PositionY,
	})
	if err != nil {
		return err
	}

	return SuccessResponse(c, step)
}

// DeleteStep removes a step and its links
func (h *ProcessHandler) DeleteStep(c echo.Context) error {
	ctx, span := tracing.StartSpan(c.Request().Context(), "ProcessHandler.DeleteStep")
	defer span.End()
	c.SetRequest(c.Request().WithContext(ctx))

	id, err := ParseUUID(c, "id")
	if err != nil {
		return err
	}
	if err := h.requireMember(c, id); err != nil {
		return err
	}

	stepID, err := ParseUUID(c, "step_id")
	if err != nil {
		return err
	}

	if err := h.processes.DeleteStep(ctx, id, stepID); err != nil {
		return err
	}

	return NoContentResponse(c)
}

// ReorderSteps rewrites the sort order of all steps in one transaction
func (h *ProcessHandler) ReorderSteps(c echo.Context) error {
	ctx, span := tracing.StartSpan(c.Request().Context(), "ProcessHandler.ReorderSteps")
	defer span.End()
	c.SetRequest(c.Request().WithContext(ctx))

	id, err := ParseUUID(c, "id")
	if err != nil {
		return err
	}
	if err := h.requireMember(c, id); err != nil {
		return err
	}

	req, err := validation.BindRequest[ReorderStepsRequest](c)
	if err != nil {
		return err
	}

	stepIDs := make([]uuid.UUID, 0, len(req.StepIDs))
	for _, s := range req.StepIDs {
		stepID, err := uuid.Parse(s)
		if err != nil {
			return BadRequest("invalid step id: " + s)
		}
		stepIDs = append(stepIDs, stepID)
	}

	if err := h.processes.ReorderSteps(ctx, id, stepIDs); err != nil {
		return err
	}

	return SuccessResponse(c, map[string]any{"step_ids": req.StepIDs})
}

// CreateLink adds a directed edge between two steps. Re-creating an existing
// (from, to) pair returns the existing link.
func (h *ProcessHandler) CreateLink(c echo.Context) error {
	ctx, span := tracing.StartSpan(c.Request().Context(), "ProcessHandler.CreateLink")
	defer span.End()
	c.SetRequest(c.Request().WithContext(ctx))

	id, err := ParseUUID(c, "id")
	if err != nil {
		return err
	}
	if err := h.requireMember(c, id); err != nil {
		return err
	}

	req, err := validation.BindRequest[CreateLinkRequest](c)
	if err != nil {
		return err
	}

	link := &models.ProcessLink{
		ProcessID:  id,
		FromStepID: uuid.MustParse(req.FromStepID),
		ToStepID:   uuid.MustParse(req.ToStepID),
		Label:      req.Label,
		LinkType:   req.LinkType,
	}
	created, err := h.processes.CreateLink(ctx, link)
	if err != nil {
		return err
	}

	if created {
		return CreatedResponse(c, link)
	}
	return SuccessResponse(c, link)
}

// DeleteLink removes a link
func (h *ProcessHandler) DeleteLink(c echo.Context) error {
	ctx, span := tracing.StartSpan(c.Request().Context(), "ProcessHandler.DeleteLink")
	defer span.End()
	c.SetRequest(c.Request().WithContext(ctx))

	id, err := ParseUUID(c, "id")
	if err != nil {
		return err
	}
	if err := h.requireMember(c, id); err != nil {
		return err
	}

	linkID, err := ParseUUID(c, "link_id")
	if err != nil {
		return err
	}

	if err := h.processes.DeleteLink(ctx, id, linkID); err != nil {
		return err
	}

	return NoContentResponse(c)
}

// ApplyDelta applies a workflow delta directly, outside a chat session
func (h *ProcessHandler) ApplyDelta(c echo.Context) error {
	ctx, span := tracing.StartSpan(c.Request().Context(), "ProcessHandler.ApplyDelta")
	defer span.End()
	c.SetRequest(c.Request().WithContext(ctx))

	id, err := ParseUUID(c, "id")
	if err != nil {
		return err
	}
	if err := h.requireMember(c, id); err != nil {
		return err
	}

	req, err := validation.BindRequest[ApplyDeltaRequest](c)
	if err != nil {
		return err
	}

	result, err := h.applier.Apply(ctx, id, &req.Delta)
	if err != nil {
		return err
	}

	return SuccessResponse(c, result)
}

// ScanOpportunities asks the model for automation opportunities on a process
// and persists them. The call is metered.
func (h *ProcessHandler) ScanOpportunities(c echo.Context) error {
	ctx, span := tracing.StartSpan(c.Request().Context(), "ProcessHandler.ScanOpportunities")
	defer span.End()
	c.SetRequest(c.Request().WithContext(ctx))

	id, err := ParseUUID(c, "id")
	if err != nil {
		return err
	}

	workspaceID, err := h.memberships.WorkspaceForProcess(ctx, id)
	if err != nil {
		return err
	}
	if err := h.memberships.RequireMember(ctx, workspaceID); err != nil {
		return err
	}
	if err := h.meter.Authorize(ctx, workspaceID); err != nil {
		return err
	}

	graph, err := h.processes.GetGraph(ctx, id)
	if err != nil {
		return err
	}

	system, user := llm.ScanPrompts(graph)
	raw, usage, err := h.client.Complete(ctx, system, user, nil)
	if err != nil {
		return err
	}

	scan, err := llm.Parse[llm.OpportunityScan](ctx, h.logger, raw)
	if err != nil {
		return err
	}

	known := make(map[uuid.UUID]bool, len(graph.Steps))
	for _, step := range graph.Steps {
		known[step.ID] = true
	}

	opps := make([]*models.Opportunity, 0, len(scan.Opportunities))
	for _, draft := range scan.Opportunities {
		opp := &models.Opportunity{
			ProcessID:   id,
			Title:       draft.Title,
			Summary:     draft.Summary,
			Impact:      draft.Impact,
			Feasibility: draft.Feasibility,
			Effort:      draft.Effort,
		}
		if draft.StepID != nil {
			if stepID, err := uuid.Parse(*draft.StepID); err == nil && known[stepID] {
				opp.StepID = &stepID
			}
		}
		opps = append(opps, opp)
	}

	if err := h.opportunities.CreateMany(ctx, opps); err != nil {
		return err
	}

	icus := billing.ICUsForTokens(usage.PromptTokens, usage.CompletionTokens, h.tokenRates)
	h.meter.Charge(ctx, workspaceID, ChargeActionScan, icus)

	h.logger.WithContext(ctx).WithFields(map[string]any{
		"process_id":    id,
		"opportunities": len(opps),
	}).Info("Scanned process for opportunities")
	return CreatedResponse(c, map[string]any{
		"opportunities": opps,
		"icus_charged":  icus,
	})
}

func emptyIfNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
