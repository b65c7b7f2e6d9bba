package workflow

import (
	"context"
	"testing"

	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/fern/pkg/llm"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/repositories"
)

type fakeGraphStore struct {
	steps []models.ProcessStep
	links []models.ProcessLink
}

func (f *fakeGraphStore) ListSteps(_ context.Context, processID uuid.UUID) ([]models.ProcessStep, error) {
	steps := []models.ProcessStep{}
	for _, s := range f.steps {
		if s.ProcessID == processID {
			steps = append(steps, s)
		}
	}
	return steps, nil
}

func (f *fakeGraphStore) CreateStep(_ context.Context, step *models.ProcessStep) error {
	if step.ID == uuid.Nil {
		step.ID = uuid.New()
	}
	f.steps = append(f.steps, *step)
	return nil
}

func (f *fakeGraphStore) UpdateStep(_ context.Context, processID, stepID uuid.UUID, update repositories.StepUpdate) (*models.ProcessStep, error) {
	for i := range f.steps {
		if f.steps[i].ID != stepID || f.steps[i].ProcessID != processID {
			continue
		}
		if update.Name != nil {
			f.steps[i].Name = *update.Name
		}
		if update.Owner != nil {
			f.steps[i].Owner = update.Owner
		}
		return &f.steps[i], nil
	}
	return nil, repositories.NotFound("step %s does not exist", stepID)
}

func (f *fakeGraphStore) CreateLink(_ context.Context, link *models.ProcessLink) (bool, error) {
	for _, existing := range f.links {
		if existing.ProcessID == link.ProcessID &&
			existing.FromStepID == link.FromStepID &&
			existing.ToStepID == link.ToStepID {
			*link = existing
			return false, nil
		}
	}
	if link.ID == uuid.Nil {
		link.ID = uuid.New()
	}
	f.links = append(f.links, *link)
	return true, nil
}

func newTestApplier(store *fakeGraphStore) *Applier {
	return NewApplier(store, ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {}))
}

func TestApplyResolvesTempIDs(t *testing.T) {
	store := &fakeGraphStore{}
	applier := newTestApplier(store)
	processID := uuid.New()

	delta := &llm.WorkflowDelta{
		NewSteps: []llm.NewStep{
			{TempID: "s1", Name: "Receive invoice"},
			{TempID: "s2", Name: "Approve invoice"},
		},
		NewLinks: []llm.NewLink{
			{FromStep: "s1", ToStep: "s2"},
		},
	}

	result, err := applier.Apply(context.Background(), processID, delta)
	require.NoError(t, err)
	require.Len(t, result.CreatedStepIDs, 2)
	require.Len(t, result.CreatedLinkIDs, 1)
	assert.Empty(t, result.Skipped)

	// Link endpoints must be the persisted step ids the temp ids mapped to
	link := store.links[0]
	assert.Equal(t, result.TempIDs["s1"], link.FromStepID.String())
	assert.Equal(t, result.TempIDs["s2"], link.ToStepID.String())
}

func TestApplyLayoutContinuesBelowExistingSteps(t *testing.T) {
	processID := uuid.New()
	store := &fakeGraphStore{
		steps: []models.ProcessStep{
			{ID: uuid.New(), ProcessID: processID, Name: "Existing"},
		},
	}
	applier := newTestApplier(store)

	delta := &llm.WorkflowDelta{
		NewSteps: []llm.NewStep{
			{TempID: "s1", Name: "First new"},
			{TempID: "s2", Name: "Second new"},
		},
	}

	_, err := applier.Apply(context.Background(), processID, delta)
	require.NoError(t, err)

	// One existing step, so new steps take indexes 1 and 2
	assert.Equal(t, 80.0+140.0, store.steps[1].PositionY)
	assert.Equal(t, 80.0+280.0, store.steps[2].PositionY)
	assert.Equal(t, 1, store.steps[1].SortOrder)
	assert.Equal(t, 2, store.steps[2].SortOrder)
}

func TestApplyLinksFallBackToRealIDs(t *testing.T) {
	processID := uuid.New()
	existing := models.ProcessStep{ID: uuid.New(), ProcessID: processID, Name: "Existing"}
	store := &fakeGraphStore{steps: []models.ProcessStep{existing}}
	applier := newTestApplier(store)

	delta := &llm.WorkflowDelta{
		NewSteps: []llm.NewStep{{TempID: "s1", Name: "New"}},
		NewLinks: []llm.NewLink{{FromStep: existing.ID.String(), ToStep: "s1"}},
	}

	result, err := applier.Apply(context.Background(), processID, delta)
	require.NoError(t, err)
	require.Len(t, result.CreatedLinkIDs, 1)
	assert.Equal(t, existing.ID, store.links[0].FromStepID)
}

func TestApplyLinkCreationIsIdempotent(t *testing.T) {
	processID := uuid.New()
	from := models.ProcessStep{ID: uuid.New(), ProcessID: processID, Name: "A"}
	to := models.ProcessStep{ID: uuid.New(), ProcessID: processID, Name: "B"}
	store := &fakeGraphStore{steps: []models.ProcessStep{from, to}}
	applier := newTestApplier(store)

	delta := &llm.WorkflowDelta{
		NewLinks: []llm.NewLink{{FromStep: from.ID.String(), ToStep: to.ID.String()}},
	}

	first, err := applier.Apply(context.Background(), processID, delta)
	require.NoError(t, err)
	assert.Len(t, first.CreatedLinkIDs, 1)

	second, err := applier.Apply(context.Background(), processID, delta)
	require.NoError(t, err)
	assert.Empty(t, second.CreatedLinkIDs)
	assert.Len(t, store.links, 1)
}

func TestApplyStepCreationIsNotIdempotent(t *testing.T) {
	// Re-applying the same delta duplicates steps; only links carry a guard
	store := &fakeGraphStore{}
	applier := newTestApplier(store)
	processID := uuid.New()

	delta := &llm.WorkflowDelta{
		NewSteps: []llm.NewStep{{TempID: "s1", Name: "Receive invoice"}},
	}

	_, err := applier.Apply(context.Background(), processID, delta)
	require.NoError(t, err)
	_, err = applier.Apply(context.Background(), processID, delta)
	require.NoError(t, err)

	assert.Len(t, store.steps, 2)
}

func TestApplySkipsUnknownIDs(t *testing.T) {
	store := &fakeGraphStore{}
	applier := newTestApplier(store)
	processID := uuid.New()

	name := "Renamed"
	delta := &llm.WorkflowDelta{
		UpdatedSteps: []llm.StepPatch{{ID: uuid.New().String(), Name: &name}},
		NewLinks:     []llm.NewLink{{FromStep: "ghost", ToStep: "also-ghost"}},
	}

	result, err := applier.Apply(context.Background(), processID, delta)
	require.NoError(t, err)
	assert.Empty(t, result.UpdatedStepIDs)
	assert.Empty(t, result.CreatedLinkIDs)
	assert.Len(t, result.Skipped, 2)
}

func TestApplyUpdatesExistingStep(t *testing.T) {
	processID := uuid.New()
	step := models.ProcessStep{ID: uuid.New(), ProcessID: processID, Name: "Old name"}
	store := &fakeGraphStore{steps: []models.ProcessStep{step}}
	applier := newTestApplier(store)

	name := "New name"
	delta := &llm.WorkflowDelta{
		UpdatedSteps: []llm.StepPatch{{ID: step.ID.String(), Name: &name}},
	}

	result, err := applier.Apply(context.Background(), processID, delta)
	require.NoError(t, err)
	require.Len(t, result.UpdatedStepIDs, 1)
	assert.Equal(t, "New name", store.steps[0].Name)
}
