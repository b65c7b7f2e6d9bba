package handlers

import (
	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/Ramsey-B/fern/pkg/assistant"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/repositories"
	"github.com/Ramsey-B/fern/pkg/tracing"
	"github.com/Ramsey-B/fern/pkg/validation"
)

// SessionHandler handles assistant session endpoints
type SessionHandler struct {
	sessions     *repositories.SessionRepository
	memberships  *repositories.MembershipRepository
	orchestrator *assistant.Orchestrator
	logger       ectologger.Logger
}

// NewSessionHandler creates a new session handler
func NewSessionHandler(
	sessions *repositories.SessionRepository,
	memberships *repositories.MembershipRepository,
	orchestrator *assistant.Orchestrator,
	logger ectologger.Logger,
) *SessionHandler {
	return &SessionHandler{
		sessions:     sessions,
		memberships:  memberships,
		orchestrator: orchestrator,
		logger:       logger,
	}
}

// CreateSessionRequest represents the create session request body
type CreateSessionRequest struct {
	Title string `json:"title,omitempty"`
}

// UpdateSessionRequest represents the rename session request body
type UpdateSessionRequest struct {
	Title string `json:"title" validate:"required"`
}

// OrchestrateRequest represents the assistant turn request body
type OrchestrateRequest struct {
	Message string `json:"message" validate:"required"`
}

// LinkArtifactRequest represents the manual artifact link request body
type LinkArtifactRequest struct {
	ArtifactType string `json:"artifact_type" validate:"oneof=process opportunity blueprint ai_use_case"`
	ArtifactID   string `json:"artifact_id" validate:"required,uuid"`
}

// RegisterWorkspaceScoped registers the workspace-nested session routes
func (h *SessionHandler) RegisterWorkspaceScoped(g *echo.Group) {
	g.GET("/:id/sessions", h.List)
	g.POST("/:id/sessions", h.Create)
}

// Register registers the session-id routes
func (h *SessionHandler) Register(g *echo.Group) {
	g.GET("/:id", h.GetByID)
	g.PATCH("/:id", h.Update)
	g.DELETE("/:id", h.Delete)
	g.POST("/:id/orchestrate", h.OrchestrateTurn)
	g.POST("/:id/artifacts", h.LinkArtifact)
}

// requireMember checks membership via the session's workspace
func (h *SessionHandler) requireMember(c echo.Context, sessionID uuid.UUID) error {
	ctx := c.Request().Context()
	workspaceID, err := h.memberships.WorkspaceForSession(ctx, sessionID)
	if err != nil {
		return err
	}
	return h.memberships.RequireMember(ctx, workspaceID)
}

// List lists the sessions of a workspace, newest first
func (h *SessionHandler) List(c echo.Context) error {
	ctx, span := tracing.StartSpan(c.Request().Context(), "SessionHandler.List")
	defer span.End()
	c.SetRequest(c.Request().WithContext(ctx))

	workspaceID, err := ParseUUID(c, "id")
	if err != nil {
		return err
	}
	if err := h.memberships.RequireMember(ctx, workspaceID); err != nil {
		return err
	}

	sessions, err := h.sessions.ListByWorkspace(ctx, workspaceID)
	if err != nil {
		return err
	}

	return SuccessResponse(c, sessions)
}

// Create starts a new assistant session in a workspace
func (h *SessionHandler) Create(c echo.Context) error {
	ctx, span := tracing.StartSpan(c.Request().Context(), "SessionHandler.Create")
	defer span.End()
	c.SetRequest(c.Request().WithContext(ctx))

	workspaceID, err := ParseUUID(c, "id")
	if err != nil {
		return err
	}
	if err := h.memberships.RequireMember(ctx, workspaceID); err != nil {
		return err
	}

	userID, err := GetUserID(c)
	if err != nil {
		return err
	}

	req, err := validation.BindRequest[CreateSessionRequest](c)
	if err != nil {
		return err
	}

	title := req.Title
	if title == "" {
		title = "New session"
	}

	session := &models.AssistantSession{
		WorkspaceID: workspaceID,
		CreatedBy:   userID,
		Title:       title,
	}
	if err := h.sessions.Create(ctx, session); err != nil {
		return err
	}

	return CreatedResponse(c, session)
}

// GetByID returns a session with its transcript and artifact metadata
func (h *SessionHandler) GetByID(c echo.Context) error {
	ctx, span := tracing.StartSpan(c.Request().Context(), "SessionHandler.GetByID")
	defer span.End()
	c.SetRequest(c.Request().WithContext(ctx))

	id, err := ParseUUID(c, "id")
	if err != nil {
		return err
	}
	if err := h.requireMember(c, id); err != nil {
		return err
	}

	detail, err := h.sessions.GetDetail(ctx, id)
	if err != nil {
		return err
	}

	return SuccessResponse(c, detail)
}

// Update renames a session
func (h *SessionHandler) Update(c echo.Context) error {
	ctx, span := tracing.StartSpan(c.Request().Context(), "SessionHandler.Update")
	defer span.End()
	c.SetRequest(c.Request().WithContext(ctx))

	id, err := ParseUUID(c, "id")
	if err != nil {
		return err
	}
	if err := h.requireMember(c, id); err != nil {
		return err
	}

	req, err := validation.BindRequest[UpdateSessionRequest](c)
	if err != nil {
		return err
	}

	session, err := h.sessions.UpdateTitle(ctx, id, req.Title)
	if err != nil {
		return err
	}

	return SuccessResponse(c, session)
}

// Delete removes a session and its transcript. Artifacts the session created
// survive; only the links go.
func (h *SessionHandler) Delete(c echo.Context) error {
	ctx, span := tracing.StartSpan(c.Request().Context(), "SessionHandler.Delete")
	defer span.End()
	c.SetRequest(c.Request().WithContext(ctx))

	id, err := ParseUUID(c, "id")
	if err != nil {
		return err
	}
	if err := h.requireMember(c, id); err != nil {
		return err
	}

	if err := h.sessions.Delete(ctx, id); err != nil {
		return err
	}

	return NoContentResponse(c)
}

// OrchestrateTurn runs one assistant turn. Membership, rate limiting and usage
// metering are enforced by the orchestrator.
func (h *SessionHandler) OrchestrateTurn(c echo.Context) error {
	ctx, span := tracing.StartSpan(c.Request().Context(), "SessionHandler.OrchestrateTurn")
	defer span.End()
	c.SetRequest(c.Request().WithContext(ctx))

	id, err := ParseUUID(c, "id")
	if err != nil {
		return err
	}

	req, err := validation.BindRequest[OrchestrateRequest](c)
	if err != nil {
		return err
	}

	result, err := h.orchestrator.Orchestrate(ctx, id, req.Message)
	if err != nil {
		return err
	}

	return SuccessResponse(c, result)
}

// LinkArtifact manually links an existing artifact to the session. Linking is
// idempotent.
func (h *SessionHandler) LinkArtifact(c echo.Context) error {
	ctx, span := tracing.StartSpan(c.Request().Context(), "SessionHandler.LinkArtifact")
	defer span.End()
	c.SetRequest(c.Request().WithContext(ctx))

	id, err := ParseUUID(c, "id")
	if err != nil {
		return err
	}
	if err := h.requireMember(c, id); err != nil {
		return err
	}

	req, err := validation.BindRequest[LinkArtifactRequest](c)
	if err != nil {
		return err
	}

	if err := h.sessions.LinkArtifact(ctx, id, req.ArtifactType, uuid.MustParse(req.ArtifactID)); err != nil {
		return err
	}

	return NoContentResponse(c)
}
