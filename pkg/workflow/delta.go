// Package workflow applies model-produced graph deltas to persisted processes
package workflow

import (
	"context"

	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"

	"github.com/Ramsey-B/fern/pkg/database"
	"github.com/Ramsey-B/fern/pkg/llm"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/repositories"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

// Vertical layout constants for auto-positioned steps
const (
	layoutX       = 250.0
	layoutBaseY   = 80.0
	layoutSpacing = 140.0
)

// GraphStore is the subset of the process repository the applier needs
type GraphStore interface {
	ListSteps(ctx context.Context, processID uuid.UUID) ([]models.ProcessStep, error)
	CreateStep(ctx context.Context, step *models.ProcessStep) error
	UpdateStep(ctx context.Context, processID, stepID uuid.UUID, update repositories.StepUpdate) (*models.ProcessStep, error)
	CreateLink(ctx context.Context, link *models.ProcessLink) (bool, error)
}

// Result reports what a delta application changed. Skipped collects
// human-readable notes for entries that could not be applied; they are
// reported, not fatal.
type Result struct {
	CreatedStepIDs []uuid.UUID       `json:"created_step_ids"`
	UpdatedStepIDs []uuid.UUID       `json:"updated_step_ids"`
	CreatedLinkIDs []uuid.UUID       `json:"created_link_ids"`
	TempIDs        map[string]string `json:"temp_ids"`
	Skipped        []string          `json:"skipped,omitempty"`
}

// Applier persists workflow deltas produced by assistant turns
type Applier struct {
	store  GraphStore
	logger ectologger.Logger
}

// NewApplier creates a new delta applier
func NewApplier(store GraphStore, logger ectologger.Logger) *Applier {
	return &Applier{
		store:  store,
		logger: logger,
	}
}

// Apply persists a delta against a process. New steps are laid out
// vertically below the existing ones and recorded in a temp_id → real-id
// map; link endpoints resolve through that map, falling back to treating
// the value as the id of an existing step. Link creation is idempotent on
// (process, from, to); step creation is not, so re-applying the same delta
// duplicates its steps.
func (a *Applier) Apply(ctx context.Context, processID uuid.UUID, delta *llm.WorkflowDelta) (*Result, error) {
	ctx, span := tracing.StartSpan(ctx, "workflow.Applier.Apply")
	defer span.End()

	result := &Result{
		CreatedStepIDs: []uuid.UUID{},
		UpdatedStepIDs: []uuid.UUID{},
		CreatedLinkIDs: []uuid.UUID{},
		TempIDs:        map[string]string{},
	}
	if delta.Empty() {
		return result, nil
	}

	existing, err := a.store.ListSteps(ctx, processID)
	if err != nil {
		return nil, err
	}

	known := make(map[uuid.UUID]bool, len(existing))
	for _, step := range existing {
		known[step.ID] = true
	}

	tempToReal := make(map[string]uuid.UUID, len(delta.NewSteps))
	for i, draft := range delta.NewSteps {
		index := len(existing) + i
		step := &models.ProcessStep{
			ProcessID:       processID,
			Name:            draft.Name,
			Description:     draft.Description,
			Owner:           draft.Owner,
			Inputs:          database.JSONB[[]string]{Data: orEmpty(draft.Inputs)},
			Outputs:         database.JSONB[[]string]{Data: orEmpty(draft.Outputs)},
			Frequency:       draft.Frequency,
			DurationMinutes: draft.DurationMinutes,
			PositionX:       layoutX,
			PositionY:       layoutBaseY + layoutSpacing*float64(index),
			SortOrder:       index,
		}
		if err := a.store.CreateStep(ctx, step); err != nil {
			return nil, err
		}

		tempToReal[draft.TempID] = step.ID
		known[step.ID] = true
		result.CreatedStepIDs = append(result.CreatedStepIDs, step.ID)
		result.TempIDs[draft.TempID] = step.ID.String()
	}

	for _, patch := range delta.UpdatedSteps {
		stepID, err := uuid.Parse(patch.ID)
		if err != nil || !known[stepID] {
			result.Skipped = append(result.Skipped, "updated step "+patch.ID+" does not exist")
			continue
		}

		update := repositories.StepUpdate{
			Name:            patch.Name,
			Description:     patch.Description,
			Owner:           patch.Owner,
			Frequency:       patch.Frequency,
			DurationMinutes: patch.DurationMinutes,
		}
		if patch.Inputs != nil {
			update.Inputs = &patch.Inputs
		}
		if patch.Outputs != nil {
			update.Outputs = &patch.Outputs
		}

		if _, err := a.store.UpdateStep(ctx, processID, stepID, update); err != nil {
			return nil, err
		}
		result.UpdatedStepIDs = append(result.UpdatedStepIDs, stepID)
	}

	for _, draft := range delta.NewLinks {
		from, ok := a.resolve(draft.FromStep, tempToReal, known)
		if !ok {
			result.Skipped = append(result.Skipped, "link endpoint "+draft.FromStep+" does not resolve to a step")
			continue
		}
		to, ok := a.resolve(draft.ToStep, tempToReal, known)
		if !ok {
			result.Skipped = append(result.Skipped, "link endpoint "+draft.ToStep+" does not resolve to a step")
			continue
		}

		link := &models.ProcessLink{
			ProcessID:  processID,
			FromStepID: from,
			ToStepID:   to,
			Label:      draft.Label,
			LinkType:   draft.LinkType,
		}
		created, err := a.store.CreateLink(ctx, link)
		if err != nil {
			return nil, err
		}
		if created {
			result.CreatedLinkIDs = append(result.CreatedLinkIDs, link.ID)
		}
	}

	if len(result.Skipped) > 0 {
		a.logger.WithContext(ctx).WithFields(map[string]any{
			"process_id": processID,
			"skipped":    result.Skipped,
		}).Warn("delta entries skipped")
	}

	return result, nil
}

// resolve maps a link endpoint to a step id: temp ids win, then the value is
// treated as a real step id
func (a *Applier) resolve(endpoint string, tempToReal map[string]uuid.UUID, known map[uuid.UUID]bool) (uuid.UUID, bool) {
	if id, ok := tempToReal[endpoint]; ok {
		return id, true
	}
	id, err := uuid.Parse(endpoint)
	if err != nil || !known[id] {
		return uuid.Nil, false
	}
	return id, true
}

func orEmpty(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
