// Package assistant runs chat orchestration turns against a session
package assistant

import (
	"context"
	"net/http"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"

	"github.com/Ramsey-B/fern/pkg/appctx"
	"github.com/Ramsey-B/fern/pkg/billing"
	"github.com/Ramsey-B/fern/pkg/events"
	"github.com/Ramsey-B/fern/pkg/llm"
	"github.com/Ramsey-B/fern/pkg/metrics"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/redis"
	"github.com/Ramsey-B/fern/pkg/repositories"
	"github.com/Ramsey-B/fern/pkg/tracing"
	"github.com/Ramsey-B/fern/pkg/workflow"
)

// historyLimit caps how much transcript goes into the prompt
const historyLimit = 20

// ChargeActionChat is the metered action name for orchestration turns
const ChargeActionChat = "assistant.chat"

// Config holds orchestration limits
type Config struct {
	// RateLimit is the per-workspace orchestration budget per window
	RateLimit  int64
	RateWindow time.Duration
	// TokenRates price the provider's tokens in euros
	TokenRates billing.TokenRates
}

// TurnResult is the API view of one completed orchestration turn
type TurnResult struct {
	Reply         string           `json:"reply"`
	ProcessID     *uuid.UUID       `json:"process_id,omitempty"`
	Delta         *workflow.Result `json:"delta,omitempty"`
	Opportunities []uuid.UUID      `json:"opportunity_ids,omitempty"`
	ICUsCharged   int64            `json:"icus_charged"`
}

// Orchestrator runs assistant turns: one LLM call per user message, with the
// returned contract applied to workspace data
type Orchestrator struct {
	sessions      *repositories.SessionRepository
	memberships   *repositories.MembershipRepository
	processes     *repositories.ProcessRepository
	opportunities *repositories.OpportunityRepository
	applier       *workflow.Applier
	client        *llm.Client
	meter         *billing.Meter
	limiter       *redis.RateLimiter
	emitter       *events.Emitter
	logger        ectologger.Logger
	config        Config
}

// NewOrchestrator creates a new orchestrator
func NewOrchestrator(
	sessions *repositories.SessionRepository,
	memberships *repositories.MembershipRepository,
	processes *repositories.ProcessRepository,
	opportunities *repositories.OpportunityRepository,
	applier *workflow.Applier,
	client *llm.Client,
	meter *billing.Meter,
	limiter *redis.RateLimiter,
	emitter *events.Emitter,
	logger ectologger.Logger,
	config Config,
) *Orchestrator {
	if config.RateLimit == 0 {
		config.RateLimit = 30
	}
	if config.RateWindow == 0 {
		config.RateWindow = time.Minute
	}
	return &Orchestrator{
		sessions:      sessions,
		memberships:   memberships,
		processes:     processes,
		opportunities: opportunities,
		applier:       applier,
		client:        client,
		meter:         meter,
		limiter:       limiter,
		emitter:       emitter,
		logger:        logger,
		config:        config,
	}
}

// Orchestrate runs one turn: authorization and quota gates, then the LLM
// call, then applying whatever the turn produced. Concurrent turns on the
// same session are last-write-wins.
func (o *Orchestrator) Orchestrate(ctx context.Context, sessionID uuid.UUID, message string) (*TurnResult, error) {
	ctx, span := tracing.StartSpan(ctx, "assistant.Orchestrator.Orchestrate")
	defer span.End()

	start := time.Now()

	session, err := o.sessions.GetByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if err := o.memberships.RequireMember(ctx, session.WorkspaceID); err != nil {
		return nil, err
	}

	workspaceID := session.WorkspaceID.String()
	if err := o.allowRate(ctx, workspaceID); err != nil {
		metrics.RecordAssistantRun(workspaceID, "rate_limited", time.Since(start).Seconds())
		return nil, err
	}
	if err := o.meter.Authorize(ctx, session.WorkspaceID); err != nil {
		metrics.RecordAssistantRun(workspaceID, "quota_denied", time.Since(start).Seconds())
		return nil, err
	}

	graph, err := o.activeGraph(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	history, err := o.sessions.ListMessages(ctx, sessionID, historyLimit)
	if err != nil {
		return nil, err
	}

	system, user := llm.AssistantPrompts(graph, message)
	raw, usage, err := o.client.Complete(ctx, system, user, llm.History(history))
	if err != nil {
		metrics.RecordAssistantRun(workspaceID, "llm_error", time.Since(start).Seconds())
		return nil, err
	}

	turn, err := llm.Parse[llm.AssistantTurn](ctx, o.logger, raw)
	if err != nil {
		metrics.RecordAssistantRun(workspaceID, "bad_format", time.Since(start).Seconds())
		return nil, err
	}

	result, err := o.applyTurn(ctx, session, graph, &turn)
	if err != nil {
		return nil, err
	}

	if err := o.persistTranscript(ctx, sessionID, message, turn.Reply); err != nil {
		return nil, err
	}

	icus := billing.ICUsForTokens(usage.PromptTokens, usage.CompletionTokens, o.config.TokenRates)
	o.meter.Charge(ctx, session.WorkspaceID, ChargeActionChat, icus)
	result.ICUsCharged = icus

	metrics.RecordAssistantRun(workspaceID, "ok", time.Since(start).Seconds())
	return result, nil
}

// allowRate checks the per-workspace orchestration rate limit. A nil limiter
// (Redis disabled) allows everything.
func (o *Orchestrator) allowRate(ctx context.Context, workspaceID string) error {
	if o.limiter == nil {
		return nil
	}

	result, err := o.limiter.Allow(ctx, "assistant:"+workspaceID, o.config.RateLimit, o.config.RateWindow)
	if err != nil {
		o.logger.WithContext(ctx).WithError(err).Warn("rate limiter unavailable, allowing request")
		return nil
	}
	if !result.Allowed {
		metrics.RateLimitHits.WithLabelValues(workspaceID, "assistant").Inc()
		return httperror.NewHTTPError(http.StatusTooManyRequests, "too many assistant requests, slow down").
			AddMetaValue("code", "RATE_LIMITED").
			AddMetaValue("retry_in_seconds", int(result.RetryIn.Seconds()))
	}
	return nil
}

// activeGraph loads the session's most recently linked process, if any
func (o *Orchestrator) activeGraph(ctx context.Context, sessionID uuid.UUID) (*models.ProcessGraph, error) {
	artifacts, err := o.sessions.ListArtifacts(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	var processID *uuid.UUID
	for _, a := range artifacts {
		if a.ArtifactType == models.ArtifactTypeProcess {
			id := a.ArtifactID
			processID = &id
		}
	}
	if processID == nil {
		return nil, nil
	}

	graph, err := o.processes.GetGraph(ctx, *processID)
	if err != nil {
		// The process may have been deleted after linking; the stale id stays
		// in the metadata but the turn proceeds without a graph
		if httperror.GetStatusCode(err) == http.StatusNotFound {
			return nil, nil
		}
		return nil, err
	}
	return graph, nil
}

// applyTurn persists everything a parsed turn asks for
func (o *Orchestrator) applyTurn(ctx context.Context, session *models.AssistantSession, graph *models.ProcessGraph, turn *llm.AssistantTurn) (*TurnResult, error) {
	result := &TurnResult{Reply: turn.Reply}
	created := map[string][]string{}

	// A turn may start a new process; it becomes the delta target
	if turn.NewProcessName != nil && *turn.NewProcessName != "" {
		process := &models.Process{
			WorkspaceID: session.WorkspaceID,
			Name:        *turn.NewProcessName,
		}
		if err := o.processes.Create(ctx, process); err != nil {
			return nil, err
		}
		if err := o.sessions.LinkArtifact(ctx, session.ID, models.ArtifactTypeProcess, process.ID); err != nil {
			return nil, err
		}

		graph = &models.ProcessGraph{Process: *process, Steps: []models.ProcessStep{}, Links: []models.ProcessLink{}}
		created[models.ArtifactTypeProcess] = append(created[models.ArtifactTypeProcess], process.ID.String())
	}

	if !turn.WorkflowDelta.Empty() {
		if graph == nil {
			o.logger.WithContext(ctx).WithField("session_id", session.ID).Warn("turn produced a delta but the session has no process")
		} else {
			delta, err := o.applier.Apply(ctx, graph.ID, turn.WorkflowDelta)
			if err != nil {
				return nil, err
			}
			result.Delta = delta
		}
	}
	if graph != nil {
		id := graph.ID
		result.ProcessID = &id
	}

	if len(turn.NewOpportunities) > 0 && graph != nil {
		opps, err := o.createOpportunities(ctx, graph, turn.NewOpportunities, result.Delta)
		if err != nil {
			return nil, err
		}
		for _, opp := range opps {
			result.Opportunities = append(result.Opportunities, opp.ID)
			created[models.ArtifactTypeOpportunity] = append(created[models.ArtifactTypeOpportunity], opp.ID.String())
			if err := o.sessions.LinkArtifact(ctx, session.ID, models.ArtifactTypeOpportunity, opp.ID); err != nil {
				return nil, err
			}
		}
	}

	for _, link := range turn.LinkArtifacts {
		artifactID, err := uuid.Parse(link.ID)
		if err != nil {
			o.logger.WithContext(ctx).WithField("artifact_id", link.ID).Warn("turn linked an unparseable artifact id")
			continue
		}
		if err := o.sessions.LinkArtifact(ctx, session.ID, link.Type, artifactID); err != nil {
			return nil, err
		}
	}

	if len(created) > 0 {
		_ = o.emitter.EmitArtifactsApplied(ctx, session.WorkspaceID.String(), appctx.GetUserID(ctx), session.ID.String(), created)
	}

	return result, nil
}

// createOpportunities persists drafted opportunities against the process,
// resolving step references through the delta's temp-id map when present
func (o *Orchestrator) createOpportunities(ctx context.Context, graph *models.ProcessGraph, drafts []llm.OpportunityDraft, delta *workflow.Result) ([]*models.Opportunity, error) {
	known := make(map[uuid.UUID]bool, len(graph.Steps))
	for _, step := range graph.Steps {
		known[step.ID] = true
	}
	if delta != nil {
		for _, id := range delta.CreatedStepIDs {
			known[id] = true
		}
	}

	opps := make([]*models.Opportunity, 0, len(drafts))
	for _, draft := range drafts {
		opp := &models.Opportunity{
			ProcessID:   graph.ID,
			Title:       draft.Title,
			Summary:     draft.Summary,
			Impact:      draft.Impact,
			Feasibility: draft.Feasibility,
			Effort:      draft.Effort,
		}
		if draft.StepID != nil {
			if resolved := resolveStep(*draft.StepID, delta, known); resolved != uuid.Nil {
				opp.StepID = &resolved
			}
		}
		opps = append(opps, opp)
	}

	if err := o.opportunities.CreateMany(ctx, opps); err != nil {
		return nil, err
	}
	return opps, nil
}

// resolveStep maps a step reference (temp or real id) to a known step id,
// returning uuid.Nil when it resolves to nothing
func resolveStep(ref string, delta *workflow.Result, known map[uuid.UUID]bool) uuid.UUID {
	if delta != nil {
		if real, ok := delta.TempIDs[ref]; ok {
			if id, err := uuid.Parse(real); err == nil {
				return id
			}
		}
	}
	if id, err := uuid.Parse(ref); err == nil && known[id] {
		return id
	}
	return uuid.Nil
}

// persistTranscript appends the user and assistant messages. The turn's side
// effects are already committed at this point; a failed append loses
// transcript, not data.
func (o *Orchestrator) persistTranscript(ctx context.Context, sessionID uuid.UUID, userMessage, reply string) error {
	if err := o.sessions.AppendMessage(ctx, &models.SessionMessage{
		SessionID: sessionID,
		Role:      models.MessageRoleUser,
		Content:   userMessage,
	}); err != nil {
		return err
	}

	return o.sessions.AppendMessage(ctx, &models.SessionMessage{
		SessionID: sessionID,
		Role:      models.MessageRoleAssistant,
		Content:   reply,
	})
}
