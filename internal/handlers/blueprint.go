package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

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

// ChargeActionBlueprint is the metered action name for blueprint drafts
const ChargeActionBlueprint = "blueprint.generate"

// BlueprintHandler handles blueprint endpoints
type BlueprintHandler struct {
	blueprints    *repositories.BlueprintRepository
	processes     *repositories.ProcessRepository
	opportunities *repositories.OpportunityRepository
	memberships   *repositories.MembershipRepository
	client        *llm.Client
	meter         *billing.Meter
	logger        ectologger.Logger
	tokenRates    billing.TokenRates
}

// NewBlueprintHandler creates a new blueprint handler
func NewBlueprintHandler(
	blueprints *repositories.BlueprintRepository,
	processes *repositories.ProcessRepository,
	opportunities *repositories.OpportunityRepository,
	memberships *repositories.MembershipRepository,
	client *llm.Client,
	meter *billing.Meter,
	logger ectologger.Logger,
	tokenRates billing.TokenRates,
) *BlueprintHandler {
	return &BlueprintHandler{
		blueprints:    blueprints,
		processes:     processes,
		opportunities: opportunities,
		memberships:   memberships,
		client:        client,
		meter:         meter,
		logger:        logger,
		tokenRates:    tokenRates,
	}
}

// UpdateBlueprintRequest represents the update blueprint request body. Any
// update bumps the version.
type UpdateBlueprintRequest struct {
	Title    *string `json:"title,omitempty"`
	Markdown *string `json:"markdown,omitempty"`
}

// RegisterWorkspaceScoped registers the workspace-nested blueprint routes
func (h *BlueprintHandler) RegisterWorkspaceScoped(g *echo.Group) {
	g.GET("/:id/blueprints", h.List)
	g.POST("/:id/blueprints/generate", h.Generate)
}

// Register registers the blueprint-id routes
func (h *BlueprintHandler) Register(g *echo.Group) {
	g.GET("/:id", h.GetByID)
	g.PATCH("/:id", h.Update)
	g.DELETE("/:id", h.Delete)
	g.GET("/:id/export", h.Export)
}

// requireMember checks membership via the blueprint's workspace
func (h *BlueprintHandler) requireMember(c echo.Context, blueprintID uuid.UUID) error {
	ctx := c.Request().Context()
	workspaceID, err := h.memberships.WorkspaceForBlueprint(ctx, blueprintID)
	if err != nil {
		return err
	}
	return h.memberships.RequireMember(ctx, workspaceID)
}

// List lists the blueprints of a workspace, newest first
func (h *BlueprintHandler) List(c echo.Context) error {
	ctx, span := tracing.StartSpan(c.Request().Context(), "BlueprintHandler.List")
	defer span.End()
	c.SetRequest(c.Request().WithContext(ctx))

	workspaceID, err := ParseUUID(c, "id")
	if err != nil {
		return err
	}
	if err := h.memberships.RequireMember(ctx, workspaceID); err != nil {
		return err
	}

	blueprints, err := h.blueprints.ListByWorkspace(ctx, workspaceID)
	if err != nil {
		return err
	}

	return SuccessResponse(c, blueprints)
}

// Generate drafts a blueprint from the workspace's processes and their
// opportunities. The call is metered.
func (h *BlueprintHandler) Generate(c echo.Context) error {
	ctx, span := tracing.StartSpan(c.Request().Context(), "BlueprintHandler.Generate")
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

	processes, err := h.processes.ListByWorkspace(ctx, workspaceID)
	if err != nil {
		return err
	}
	if len(processes) == 0 {
		return BadRequest("workspace has no processes to draft a blueprint from")
	}

	graphs := make([]models.ProcessGraph, 0, len(processes))
	opportunities := make(map[string][]models.Opportunity, len(processes))
	for _, p := range processes {
		graph, err := h.processes.GetGraph(ctx, p.ID)
		if err != nil {
			return err
		}
		graphs = append(graphs, *graph)

		opps, err := h.opportunities.ListByProcess(ctx, p.ID)
		if err != nil {
			return err
		}
		opportunities[p.ID.String()] = opps
	}

	system, user := llm.BlueprintPrompts(graphs, opportunities)
	raw, usage, err := h.client.Complete(ctx, system, user, nil)
	if err != nil {
		return err
	}

	draft, err := llm.Parse[llm.BlueprintDraft](ctx, h.logger, raw)
	if err != nil {
		return err
	}

	content := models.BlueprintContent{Summary: draft.Summary}
	for _, section := range draft.Sections {
		content.Sections = append(content.Sections, models.BlueprintSection{
			Heading: section.Heading,
			Body:    section.Body,
		})
	}

	blueprint := &models.Blueprint{
		WorkspaceID: workspaceID,
		Title:       draft.Title,
		Markdown:    renderMarkdown(draft.Title, content),
		Content:     database.JSONB[models.BlueprintContent]{Data: content},
	}
	if err := h.blueprints.Create(ctx, blueprint); err != nil {
		return err
	}

	icus := billing.ICUsForTokens(usage.PromptTokens, usage.CompletionTokens, h.tokenRates)
	h.meter.Charge(ctx, workspaceID, ChargeActionBlueprint, icus)

	h.logger.WithContext(ctx).WithField("blueprint_id", blueprint.ID).Info("Generated blueprint")
	return CreatedResponse(c, blueprint)
}

// GetByID returns a blueprint
func (h *BlueprintHandler) GetByID(c echo.Context) error {
	ctx, span := tracing.StartSpan(c.Request().Context(), "BlueprintHandler.GetByID")
	defer span.End()
	c.SetRequest(c.Request().WithContext(ctx))

	id, err := ParseUUID(c, "id")
	if err != nil {
		return err
	}
	if err := h.requireMember(c, id); err != nil {
		return err
	}

	blueprint, err := h.blueprints.GetByID(ctx, id)
	if err != nil {
		return err
	}

	return SuccessResponse(c, blueprint)
}

// Update edits a blueprint's title or markdown, bumping the version
func (h *BlueprintHandler) Update(c echo.Context) error {
	ctx, span := tracing.StartSpan(c.Request().Context(), "BlueprintHandler.Update")
	defer span.End()
	c.SetRequest(c.Request().WithContext(ctx))

	id, err := ParseUUID(c, "id")
	if err != nil {
		return err
	}
	if err := h.requireMember(c, id); err != nil {
		return err
	}

	req, err := validation.BindRequest[UpdateBlueprintRequest](c)
	if err != nil {
		return err
	}

	blueprint, err := h.blueprints.Update(ctx, id, req.Title, req.Markdown)
	if err != nil {
		return err
	}

	return SuccessResponse(c, blueprint)
}

// Delete removes a blueprint
func (h *BlueprintHandler) Delete(c echo.Context) error {
	ctx, span := tracing.StartSpan(c.Request().Context(), "BlueprintHandler.Delete")
	defer span.End()
	c.SetRequest(c.Request().WithContext(ctx))

	id, err := ParseUUID(c, "id")
	if err != nil {
		return err
	}
	if err := h.requireMember(c, id); err != nil {
		return err
	}

	if err := h.blueprints.Delete(ctx, id); err != nil {
		return err
	}

	return NoContentResponse(c)
}

// Export downloads a blueprint as markdown (default) or JSON with a
// Content-Disposition attachment header
func (h *BlueprintHandler) Export(c echo.Context) error {
	ctx, span := tracing.StartSpan(c.Request().Context(), "BlueprintHandler.Export")
	defer span.End()
	c.SetRequest(c.Request().WithContext(ctx))

	id, err := ParseUUID(c, "id")
	if err != nil {
		return err
	}
	if err := h.requireMember(c, id); err != nil {
		return err
	}

	blueprint, err := h.blueprints.GetByID(ctx, id)
	if err != nil {
		return err
	}

	format := c.QueryParam("format")
	if format == "" {
		format = "markdown"
	}

	filename := fmt.Sprintf("blueprint-%s-v%d", blueprint.ID, blueprint.Version)
	switch format {
	case "markdown":
		c.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf(`attachment; filename="%s.md"`, filename))
		return c.Blob(http.StatusOK, "text/markdown; charset=utf-8", []byte(blueprint.Markdown))
	case "json":
		body, err := json.MarshalIndent(blueprint, "", "  ")
		if err != nil {
			return repositories.Internal("failed to export blueprint")
		}
		c.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf(`attachment; filename="%s.json"`, filename))
		return c.Blob(http.StatusOK, echo.MIMEApplicationJSON, body)
	default:
		return BadRequest("format must be markdown or json")
	}
}

// renderMarkdown flattens structured blueprint content into the stored
// markdown document
func renderMarkdown(title string, content models.BlueprintContent) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n%s\n", title, content.Summary)
	for _, section := range content.Sections {
		fmt.Fprintf(&b, "\n## %s\n\n%s\n", section.Heading, section.Body)
	}
	return b.String()
}
