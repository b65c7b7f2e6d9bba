package handlers

import (
	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/repositories"
	"github.com/Ramsey-B/fern/pkg/tracing"
	"github.com/Ramsey-B/fern/pkg/validation"
)

// OpportunityHandler handles opportunity endpoints
type OpportunityHandler struct {
	opportunities *repositories.OpportunityRepository
	memberships   *repositories.MembershipRepository
	logger        ectologger.Logger
}

// NewOpportunityHandler creates a new opportunity handler
func NewOpportunityHandler(opportunities *repositories.OpportunityRepository, memberships *repositories.MembershipRepository, logger ectologger.Logger) *OpportunityHandler {
	return &OpportunityHandler{
		opportunities: opportunities,
		memberships:   memberships,
		logger:        logger,
	}
}

// CreateOpportunityRequest represents the create opportunity request body
type CreateOpportunityRequest struct {
	Title       string  `json:"title" validate:"required"`
	Summary     *string `json:"summary,omitempty"`
	StepID      *string `json:"step_id,omitempty"`
	Impact      int     `json:"impact" validate:"min=1,max=5"`
	Feasibility int     `json:"feasibility" validate:"min=1,max=5"`
	Effort      int     `json:"effort" validate:"min=1,max=5"`
}

// UpdateOpportunityRequest represents the update opportunity request body
type UpdateOpportunityRequest struct {
	Title       *string `json:"title,omitempty"`
	Summary     *string `json:"summary,omitempty"`
	Impact      *int    `json:"impact,omitempty" validate:"omitempty,min=1,max=5"`
	Feasibility *int    `json:"feasibility,omitempty" validate:"omitempty,min=1,max=5"`
	Effort      *int    `json:"effort,omitempty" validate:"omitempty,min=1,max=5"`
	Status      *string `json:"status,omitempty" validate:"omitempty,oneof=identified planned in_progress done dismissed"`
}

// RegisterProcessScoped registers the process-nested opportunity routes
func (h *OpportunityHandler) RegisterProcessScoped(g *echo.Group) {
	g.GET("/:id/opportunities", h.List)
	g.POST("/:id/opportunities", h.Create)
}

// Register registers the opportunity-id routes
func (h *OpportunityHandler) Register(g *echo.Group) {
	g.GET("/:id", h.GetByID)
	g.PATCH("/:id", h.Update)
	g.DELETE("/:id", h.Delete)
}

// requireMemberForProcess checks membership via the process's workspace
func (h *OpportunityHandler) requireMemberForProcess(c echo.Context, processID uuid.UUID) error {
	ctx := c.Request().Context()
	workspaceID, err := h.memberships.WorkspaceForProcess(ctx, processID)
	if err != nil {
		return err
	}
	return h.memberships.RequireMember(ctx, workspaceID)
}

// requireMember checks membership via the opportunity's workspace
func (h *OpportunityHandler) requireMember(c echo.Context, opportunityID uuid.UUID) error {
	ctx := c.Request().Context()
	workspaceID, err := h.memberships.WorkspaceForOpportunity(ctx, opportunityID)
	if err != nil {
		return err
	}
	return h.memberships.RequireMember(ctx, workspaceID)
}

// List lists a process's opportunities ranked by score
func (h *OpportunityHandler) List(c echo.Context) error {
	ctx, span := tracing.StartSpan(c.Request().Context(), "OpportunityHandler.List")
	defer span.End()
	c.SetRequest(c.Request().WithContext(ctx))

	processID, err := ParseUUID(c, "id")
	if err != nil {
		return err
	}
	if err := h.requireMemberForProcess(c, processID); err != nil {
		return err
	}

	opportunities, err := h.opportunities.ListByProcess(ctx, processID)
	if err != nil {
		return err
	}

	return SuccessResponse(c, opportunities)
}

// Create creates an opportunity on a process
func (h *OpportunityHandler) Create(c echo.Context) error {
	ctx, span := tracing.StartSpan(c.Request().Context(), "OpportunityHandler.Create")
	defer span.End()
	c.SetRequest(c.Request().WithContext(ctx))

	processID, err := ParseUUID(c, "id")
	if err != nil {
		return err
	}
	if err := h.requireMemberForProcess(c, processID); err != nil {
		return err
	}

	req, err := validation.BindRequest[CreateOpportunityRequest](c)
	if err != nil {
		return err
	}

	opp := &models.Opportunity{
		ProcessID:   processID,
		Title:       req.Title,
		Summary:     req.Summary,
		Impact:      req.Impact,
		Feasibility: req.Feasibility,
		Effort:      req.Effort,
	}
	if req.StepID != nil {
		stepID, err := uuid.Parse(*req.StepID)
		if err != nil {
			return BadRequest("invalid step_id")
		}
		opp.StepID = &stepID
	}

	if err := h.opportunities.Create(ctx, opp); err != nil {
		return err
	}

	return CreatedResponse(c, opp)
}

// GetByID returns an opportunity
func (h *OpportunityHandler) GetByID(c echo.Context) error {
	ctx, span := tracing.StartSpan(c.Request().Context(), "OpportunityHandler.GetByID")
	defer span.End()
	c.SetRequest(c.Request().WithContext(ctx))

	id, err := ParseUUID(c, "id")
	if err != nil {
		return err
	}
	if err := h.requireMember(c, id); err != nil {
		return err
	}

	opp, err := h.opportunities.GetByID(ctx, id)
	if err != nil {
		return err
	}

	return SuccessResponse(c, opp)
}

// Update applies partial updates to an opportunity
func (h *OpportunityHandler) Update(c echo.Context) error {
	ctx, span := tracing.StartSpan(c.Request().Context(), "OpportunityHandler.Update")
	defer span.End()
	c.SetRequest(c.Request().WithContext(ctx))

	id, err := ParseUUID(c, "id")
	if err != nil {
		return err
	}
	if err := h.requireMember(c, id); err != nil {
		return err
	}

	req, err := validation.BindRequest[UpdateOpportunityRequest](c)
	if err != nil {
		return err
	}

	opp, err := h.opportunities.Update(ctx, id, repositories.OpportunityUpdate{
		Title:       req.Title,
		Summary:     req.Summary,
		Impact:      req.Impact,
		Feasibility: req.Feasibility,
		Effort:      req.Effort,
		Status:      req.Status,
	})
	if err != nil {
		return err
	}

	return SuccessResponse(c, opp)
}

// Delete removes an opportunity
func (h *OpportunityHandler) Delete(c echo.Context) error {
	ctx, span := tracing.StartSpan(c.Request().Context(), "OpportunityHandler.Delete")
	defer span.End()
	c.SetRequest(c.Request().WithContext(ctx))

	id, err := ParseUUID(c, "id")
	if err != nil {
		return err
	}
	if err := h.requireMember(c, id); err != nil {
		return err
	}

	if err := h.opportunities.Delete(ctx, id); err != nil {
		return err
	}

	return NoContentResponse(c)
}
