package llm

// The model replies in JSON-object mode; every feature has a typed contract
// here that the raw completion is unmarshalled and validated against.

// NewStep is a step the model wants added to a process. TempID is chosen by
// the model and only meaningful within the same delta.
type NewStep struct {
	TempID          string   `json:"temp_id" validate:"required"`
	Name            string   `json:"name" validate:"required"`
	Description     *string  `json:"description,omitempty"`
	Owner           *string  `json:"owner,omitempty"`
	Inputs          []string `json:"inputs,omitempty"`
	Outputs         []string `json:"outputs,omitempty"`
	Frequency       *string  `json:"frequency,omitempty"`
	DurationMinutes *int     `json:"duration_minutes,omitempty"`
}

// StepPatch is a field-level update to an existing step. Nil fields are left
// untouched.
type StepPatch struct {
	ID              string   `json:"id" validate:"required"`
	Name            *string  `json:"name,omitempty"`
	Description     *string  `json:"description,omitempty"`
	Owner           *string  `json:"owner,omitempty"`
	Inputs          []string `json:"inputs,omitempty"`
	Outputs         []string `json:"outputs,omitempty"`
	Frequency       *string  `json:"frequency,omitempty"`
	DurationMinutes *int     `json:"duration_minutes,omitempty"`
}

// NewLink is a directed edge to create. FromStep and ToStep may be a temp_id
// from the same delta or the real id of an existing step.
type NewLink struct {
	FromStep string  `json:"from_step" validate:"required"`
	ToStep   string  `json:"to_step" validate:"required"`
	Label    *string `json:"label,omitempty"`
	LinkType *string `json:"link_type,omitempty"`
}

// WorkflowDelta is the set of graph changes produced by one assistant turn
type WorkflowDelta struct {
	NewSteps     []NewStep   `json:"new_steps,omitempty" validate:"dive"`
	UpdatedSteps []StepPatch `json:"updated_steps,omitempty" validate:"dive"`
	NewLinks     []NewLink   `json:"new_links,omitempty" validate:"dive"`
}

// Empty reports whether the delta changes nothing
func (d *WorkflowDelta) Empty() bool {
	return d == nil || (len(d.NewSteps) == 0 && len(d.UpdatedSteps) == 0 && len(d.NewLinks) == 0)
}

// OpportunityDraft is one automation opportunity proposed by the model
type OpportunityDraft struct {
	Title       string  `json:"title" validate:"required"`
	Summary     *string `json:"summary,omitempty"`
	StepID      *string `json:"step_id,omitempty"`
	Impact      int     `json:"impact" validate:"min=1,max=5"`
	Feasibility int     `json:"feasibility" validate:"min=1,max=5"`
	Effort      int     `json:"effort" validate:"min=1,max=5"`
}

// OpportunityScan is the contract for the opportunity-scan feature
type OpportunityScan struct {
	Opportunities []OpportunityDraft `json:"opportunities" validate:"required,min=1,dive"`
}

// BlueprintSectionDraft is one section of a drafted blueprint
type BlueprintSectionDraft struct {
	Heading string `json:"heading" validate:"required"`
	Body    string `json:"body" validate:"required"`
}

// BlueprintDraft is the contract for blueprint generation
type BlueprintDraft struct {
	Title    string                  `json:"title" validate:"required"`
	Summary  string                  `json:"summary" validate:"required"`
	Sections []BlueprintSectionDraft `json:"sections" validate:"required,min=1,dive"`
}

// HazardDraft is one hazard in a drafted risk assessment
type HazardDraft struct {
	Title      string `json:"title" validate:"required"`
	Severity   string `json:"severity" validate:"oneof=low medium high critical"`
	Likelihood string `json:"likelihood" validate:"oneof=rare possible likely"`
	Mitigation string `json:"mitigation" validate:"required"`
}

// RiskDraft is the contract for the risk-assessment draft feature
type RiskDraft struct {
	RiskLevel string        `json:"risk_level" validate:"oneof=low medium high critical"`
	Summary   string        `json:"summary" validate:"required"`
	Hazards   []HazardDraft `json:"hazards" validate:"required,min=1,dive"`
}

// PolicySuggestion is the contract for the policy suggestion feature
type PolicySuggestion struct {
	Title string `json:"title" validate:"required"`
	Body  string `json:"body" validate:"required"`
}

// ArtifactLink asks the orchestrator to link an existing artifact to the
// session
type ArtifactLink struct {
	Type string `json:"type" validate:"oneof=process opportunity blueprint ai_use_case"`
	ID   string `json:"id" validate:"required"`
}

// AssistantTurn is the contract for one chat orchestration turn
type AssistantTurn struct {
	Reply            string             `json:"reply" validate:"required"`
	NewProcessName   *string            `json:"new_process_name,omitempty"`
	WorkflowDelta    *WorkflowDelta     `json:"workflow_delta,omitempty"`
	NewOpportunities []OpportunityDraft `json:"new_opportunities,omitempty" validate:"dive"`
	LinkArtifacts    []ArtifactLink     `json:"link_artifacts,omitempty" validate:"dive"`
}
