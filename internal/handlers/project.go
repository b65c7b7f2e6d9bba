package handlers

import (
	"github.com/Gobusters/ectologger"
	"github.com/labstack/echo/v4"

	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/repositories"
	"github.com/Ramsey-B/fern/pkg/tracing"
	"github.com/Ramsey-B/fern/pkg/validation"
)

// ProjectHandler handles project endpoints
type ProjectHandler struct {
	projects    *repositories.ProjectRepository
	memberships *repositories.MembershipRepository
	logger      ectologger.Logger
}

// NewProjectHandler creates a new project handler
func NewProjectHandler(projects *repositories.ProjectRepository, memberships *repositories.MembershipRepository, logger ectologger.Logger) *ProjectHandler {
	return &ProjectHandler{
		projects:    projects,
		memberships: memberships,
		logger:      logger,
	}
}

// CreateProjectRequest represents the create project request body
type CreateProjectRequest struct {
	Name        string  `json:"name" validate:"required"`
	Description *string `json:"description,omitempty"`
}

// UpdateProjectRequest represents the update project request body
type UpdateProjectRequest struct {
	Name        *string `json:"name,omitempty"`
	Description *string `json:"description,omitempty"`
}

// RegisterWorkspaceScoped registers the workspace-nested project routes
func (h *ProjectHandler) RegisterWorkspaceScoped(g *echo.Group) {
	g.GET("/:id/projects", h.List)
	g.POST("/:id/projects", h.Create)
}

// Register registers the project-id routes
func (h *ProjectHandler) Register(g *echo.Group) {
	g.GET("/:id", h.GetByID)
	g.PATCH("/:id", h.Update)
	g.DELETE("/:id", h.Delete)
}

// List lists the projects of a workspace
func (h *ProjectHandler) List(c echo.Context) error {
	ctx, span := tracing.StartSpan(c.Request().Context(), "ProjectHandler.List")
	defer span.End()
	c.SetRequest(c.Request().WithContext(ctx))

	workspaceID, err := ParseUUID(c, "id")
	if err != nil {
		return err
	}
	if err := h.memberships.RequireMember(ctx, workspaceID); err != nil {
		return err
	}

	projects, err := h.projects.ListByWorkspace(ctx, workspaceID)
	if err != nil {
		return err
	}

	return SuccessResponse(c, projects)
}

// Create creates a project in a workspace
func (h *ProjectHandler) Create(c echo.Context) error {
	ctx, span := tracing.StartSpan(c.Request().Context(), "ProjectHandler.Create")
	defer span.End()
	c.SetRequest(c.Request().WithContext(ctx))

	workspaceID, err := ParseUUID(c, "id")
	if err != nil {
		return err
	}
	if err := h.memberships.RequireMember(ctx, workspaceID); err != nil {
		return err
	}

	req, err := validation.BindRequest[CreateProjectRequest](c)
	if err != nil {
		return err
	}

	project := &models.Project{
		WorkspaceID: workspaceID,
		Name:        req.Name,
		Description: req.Description,
	}
	if err := h.projects.Create(ctx, project); err != nil {
		return err
	}

	return CreatedResponse(c, project)
}

// GetByID returns a project
func (h *ProjectHandler) GetByID(c echo.Context) error {
	ctx, span := tracing.StartSpan(c.Request().Context(), "ProjectHandler.GetByID")
	defer span.End()
	c.SetRequest(c.Request().WithContext(ctx))

	id, err := ParseUUID(c, "id")
	if err != nil {
		return err
	}

	workspaceID, err := h.memberships.WorkspaceForProject(ctx, id)
	if err != nil {
		return err
	}
	if err := h.memberships.RequireMember(ctx, workspaceID); err != nil {
		return err
	}

	project, err := h.projects.GetByID(ctx, id)
	if err != nil {
		return err
	}

	return SuccessResponse(c, project)
}

// Update applies partial updates to a project
func (h *ProjectHandler) Update(c echo.Context) error {
	ctx, span := tracing.StartSpan(c.Request().Context(), "ProjectHandler.Update")
	defer span.End()
	c.SetRequest(c.Request().WithContext(ctx))

	id, err := ParseUUID(c, "id")
	if err != nil {
		return err
	}

	workspaceID, err := h.memberships.WorkspaceForProject(ctx, id)
	if err != nil {
		return err
	}
	if err := h.memberships.RequireMember(ctx, workspaceID); err != nil {
		return err
	}

	req, err := validation.BindRequest[UpdateProjectRequest](c)
	if err != nil {
		return err
	}

	project, err := h.projects.Update(ctx, id, req.Name, req.Description)
	if err != nil {
		return err
	}

	return SuccessResponse(c, project)
}

// Delete removes a project. Its processes survive with project_id unset.
func (h *ProjectHandler) Delete(c echo.Context) error {
	ctx, span := tracing.StartSpan(c.Request().Context(), "ProjectHandler.Delete")
	defer span.End()
	c.SetRequest(c.Request().WithContext(ctx))

	id, err := ParseUUID(c, "id")
	if err != nil {
		return err
	}

	workspaceID, err := h.memberships.WorkspaceForProject(ctx, id)
	if err != nil {
		return err
	}
	if err := h.memberships.RequireMember(ctx, workspaceID); err != nil {
		return err
	}

	if err := h.projects.Delete(ctx, id); err != nil {
		return err
	}

	return NoContentResponse(c)
}
