package handlers

import (
	"github.com/Gobusters/ectologger"
	"github.com/labstack/echo/v4"

	"github.com/Ramsey-B/fern/pkg/appctx"
	"github.com/Ramsey-B/fern/pkg/billing"
	"github.com/Ramsey-B/fern/pkg/events"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/repositories"
	"github.com/Ramsey-B/fern/pkg/tracing"
	"github.com/Ramsey-B/fern/pkg/validation"
)

// WorkspaceHandler handles workspace and membership endpoints
type WorkspaceHandler struct {
	workspaces  *repositories.WorkspaceRepository
	memberships *repositories.MembershipRepository
	users       *repositories.UserRepository
	meter       *billing.Meter
	emitter     *events.Emitter
	logger      ectologger.Logger
}

// NewWorkspaceHandler creates a new workspace handler
func NewWorkspaceHandler(
	workspaces *repositories.WorkspaceRepository,
	memberships *repositories.MembershipRepository,
	users *repositories.UserRepository,
	meter *billing.Meter,
	emitter *events.Emitter,
	logger ectologger.Logger,
) *WorkspaceHandler {
	return &WorkspaceHandler{
		workspaces:  workspaces,
		memberships: memberships,
		users:       users,
		meter:       meter,
		emitter:     emitter,
		logger:      logger,
	}
}

// CreateWorkspaceRequest represents the create workspace request body
type CreateWorkspaceRequest struct {
	Name string `json:"name" validate:"required"`
}

// UpdateWorkspaceRequest represents the update workspace request body
type UpdateWorkspaceRequest struct {
	Name string `json:"name" validate:"required"`
}

// AddMemberRequest represents the add member request body
type AddMemberRequest struct {
	Email string `json:"email" validate:"required,email"`
	Role  string `json:"role" validate:"omitempty,oneof=owner member"`
}

// PaygRequest represents the pay-as-you-go enablement request body
type PaygRequest struct {
	Enabled bool    `json:"enabled"`
	CapEUR  float64 `json:"cap_eur"`
}

// Register registers workspace routes
func (h *WorkspaceHandler) Register(g *echo.Group) {
	g.GET("", h.List)
	g.POST("", h.Create)
	g.GET("/:id", h.GetByID)
	g.PATCH("/:id", h.Update)
	g.DELETE("/:id", h.Delete)
	g.GET("/:id/members", h.ListMembers)
	g.POST("/:id/members", h.AddMember)
	g.DELETE("/:id/members/:user_id", h.RemoveMember)
	g.GET("/:id/usage", h.Usage)
	g.POST("/:id/payg", h.SetPayg)
}

// List returns the workspaces the user belongs to
func (h *WorkspaceHandler) List(c echo.Context) error {
	ctx, span := tracing.StartSpan(c.Request().Context(), "WorkspaceHandler.List")
	defer span.End()
	c.SetRequest(c.Request().WithContext(ctx))

	userID, err := GetUserID(c)
	if err != nil {
		return err
	}

	workspaces, err := h.workspaces.ListForUser(ctx, userID)
	if err != nil {
		return err
	}

	return SuccessResponse(c, workspaces)
}

// Create creates a workspace with the caller as owner
func (h *WorkspaceHandler) Create(c echo.Context) error {
	ctx, span := tracing.StartSpan(c.Request().Context(), "WorkspaceHandler.Create")
	defer span.End()
	c.SetRequest(c.Request().WithContext(ctx))

	userID, err := GetUserID(c)
	if err != nil {
		return err
	}

	req, err := validation.BindRequest[CreateWorkspaceRequest](c)
	if err != nil {
		return err
	}

	ws := &models.Workspace{Name: req.Name}
	if err := h.workspaces.Create(ctx, ws, userID); err != nil {
		return err
	}

	h.logger.WithContext(ctx).WithField("workspace_id", ws.ID).Info("Created workspace")
	_ = h.emitter.EmitResourceCreated(ctx, ws.ID.String(), userID.String(), "workspace", ws.ID.String())
	return CreatedResponse(c, ws)
}

// GetByID returns a workspace the user is a member of
func (h *WorkspaceHandler) GetByID(c echo.Context) error {
	ctx, span := tracing.StartSpan(c.Request().Context(), "WorkspaceHandler.GetByID")
	defer span.End()
	c.SetRequest(c.Request().WithContext(ctx))

	id, err := ParseUUID(c, "id")
	if err != nil {
		return err
	}
	if err := h.memberships.RequireMember(ctx, id); err != nil {
		return err
	}

	ws, err := h.workspaces.GetByID(ctx, id)
	if err != nil {
		return err
	}

	return SuccessResponse(c, ws)
}

// Update renames a workspace
func (h *WorkspaceHandler) Update(c echo.Context) error {
	ctx, span := tracing.StartSpan(c.Request().Context(), "WorkspaceHandler.Update")
	defer span.End()
	c.SetRequest(c.Request().WithContext(ctx))

	id, err := ParseUUID(c, "id")
	if err != nil {
		return err
	}
	if err := h.memberships.RequireMember(ctx, id); err != nil {
		return err
	}

	req, err := validation.BindRequest[UpdateWorkspaceRequest](c)
	if err != nil {
		return err
	}

	ws, err := h.workspaces.Update(ctx, id, req.Name)
	if err != nil {
		return err
	}

	return SuccessResponse(c, ws)
}

// Delete removes a workspace and everything in it. Owner only.
func (h *WorkspaceHandler) Delete(c echo.Context) error {
	ctx, span := tracing.StartSpan(c.Request().Context(), "WorkspaceHandler.Delete")
	defer span.End()
	c.SetRequest(c.Request().WithContext(ctx))

	id, err := ParseUUID(c, "id")
	if err != nil {
		return err
	}
	if err := h.memberships.RequireOwner(ctx, id); err != nil {
		return err
	}

	if err := h.workspaces.Delete(ctx, id); err != nil {
		return err
	}

	h.logger.WithContext(ctx).WithField("workspace_id", id).Info("Deleted workspace")
	_ = h.emitter.EmitResourceDeleted(ctx, id.String(), appctx.GetUserID(ctx), "workspace", id.String())
	return NoContentResponse(c)
}

// ListMembers lists the members of a workspace
func (h *WorkspaceHandler) ListMembers(c echo.Context) error {
	ctx, span := tracing.StartSpan(c.Request().Context(), "WorkspaceHandler.ListMembers")
	defer span.End()
	c.SetRequest(c.Request().WithContext(ctx))

	id, err := ParseUUID(c, "id")
	if err != nil {
		return err
	}
	if err := h.memberships.RequireMember(ctx, id); err != nil {
		return err
	}

	members, err := h.memberships.ListMembers(ctx, id)
	if err != nil {
		return err
	}

	return SuccessResponse(c, members)
}

// AddMember adds a user to the workspace by email. Owner only.
func (h *WorkspaceHandler) AddMember(c echo.Context) error {
	ctx, span := tracing.StartSpan(c.Request().Context(), "WorkspaceHandler.AddMember")
	defer span.End()
	c.SetRequest(c.Request().WithContext(ctx))

	id, err := ParseUUID(c, "id")
	if err != nil {
		return err
	}
	if err := h.memberships.RequireOwner(ctx, id); err != nil {
		return err
	}

	req, err := validation.BindRequest[AddMemberRequest](c)
	if err != nil {
		return err
	}
	role := req.Role
	if role == "" {
		role = models.RoleMember
	}

	user, err := h.users.GetByEmail(ctx, req.Email)
	if err != nil {
		return err
	}

	if err := h.memberships.AddMember(ctx, id, user.ID, role); err != nil {
		return err
	}

	h.logger.WithContext(ctx).WithFields(map[string]any{
		"workspace_id": id,
		"member_id":    user.ID,
	}).Info("Added workspace member")
	return CreatedResponse(c, map[string]string{"user_id": user.ID.String(), "role": role})
}

// RemoveMember removes a member from the workspace. Owner only.
func (h *WorkspaceHandler) RemoveMember(c echo.Context) error {
	ctx, span := tracing.StartSpan(c.Request().Context(), "WorkspaceHandler.RemoveMember")
	defer span.End()
	c.SetRequest(c.Request().WithContext(ctx))

	id, err := ParseUUID(c, "id")
	if err != nil {
		return err
	}
	if err := h.memberships.RequireOwner(ctx, id); err != nil {
		return err
	}

	memberID, err := ParseUUID(c, "user_id")
	if err != nil {
		return err
	}

	if err := h.memberships.RemoveMember(ctx, id, memberID); err != nil {
		return err
	}

	return NoContentResponse(c)
}

// Usage returns the workspace's usage summary for the current period
func (h *WorkspaceHandler) Usage(c echo.Context) error {
	ctx, span := tracing.StartSpan(c.Request().Context(), "WorkspaceHandler.Usage")
	defer span.End()
	c.SetRequest(c.Request().WithContext(ctx))

	id, err := ParseUUID(c, "id")
	if err != nil {
		return err
	}
	if err := h.memberships.RequireMember(ctx, id); err != nil {
		return err
	}

	summary, err := h.meter.Summary(ctx, id)
	if err != nil {
		return err
	}

	return SuccessResponse(c, summary)
}

// SetPayg enables or disables pay-as-you-go. Owner only, non-starter plans
// only, and the cap must be within the configured euro bounds. The stored cap
// is the euro amount converted to ICUs.
func (h *WorkspaceHandler) SetPayg(c echo.Context) error {
	ctx, span := tracing.StartSpan(c.Request().Context(), "WorkspaceHandler.SetPayg")
	defer span.End()
	c.SetRequest(c.Request().WithContext(ctx))

	id, err := ParseUUID(c, "id")
	if err != nil {
		return err
	}
	if err := h.memberships.RequireOwner(ctx, id); err != nil {
		return err
	}

	req, err := validation.BindRequest[PaygRequest](c)
	if err != nil {
		return err
	}

	if !req.Enabled {
		if err := h.workspaces.SetPayg(ctx, id, false, 0); err != nil {
			return err
		}
		return SuccessResponse(c, map[string]any{"payg_enabled": false})
	}

	ws, err := h.workspaces.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if reason, ok := billing.ValidatePaygCap(ws.Plan, req.CapEUR); !ok {
		return BadRequest(reason)
	}

	capICUs := billing.CapToICUs(req.CapEUR)
	if err := h.workspaces.SetPayg(ctx, id, true, capICUs); err != nil {
		return err
	}

	h.logger.WithContext(ctx).WithFields(map[string]any{
		"workspace_id": id,
		"cap_icus":     capICUs,
	}).Info("Enabled pay-as-you-go")
	return SuccessResponse(c, map[string]any{
		"payg_enabled": true,
		"cap_icus":     capICUs,
	})
}
