package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/Ramsey-B/fern/pkg/database"
)

// Process is a mapped business process: a graph of steps and links
type Process struct {
	ID          uuid.UUID  `db:"id" json:"id"`
	WorkspaceID uuid.UUID  `db:"workspace_id" json:"workspace_id"`
	ProjectID   *uuid.UUID `db:"project_id" json:"project_id,omitempty"`
	Name        string     `db:"name" json:"name"`
	Description *string    `db:"description" json:"description,omitempty"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time  `db:"updated_at" json:"updated_at"`
}

// TableName returns the database table name
func (Process) TableName() string {
	return "processes"
}

// ProcessWithStepCount is the list-view projection of a process
type ProcessWithStepCount struct {
	Process
	StepCount int `db:"step_count" json:"step_count"`
}

// ProcessStep is a node in the process graph
type ProcessStep struct {
	ID              uuid.UUID                `db:"id" json:"id"`
	ProcessID       uuid.UUID                `db:"process_id" json:"process_id"`
	Name            string                   `db:"name" json:"name"`
	Description     *string                  `db:"description" json:"description,omitempty"`
	Owner           *string                  `db:"owner" json:"owner,omitempty"`
	Inputs          database.JSONB[[]string] `db:"inputs" json:"inputs"`
	Outputs         database.JSONB[[]string] `db:"outputs" json:"outputs"`
	Frequency       *string                  `db:"frequency" json:"frequency,omitempty"`
	DurationMinutes *int                     `db:"duration_minutes" json:"duration_minutes,omitempty"`
	PositionX       float64                  `db:"position_x" json:"position_x"`
	PositionY       float64                  `db:"position_y" json:"position_y"`
	SortOrder       int                      `db:"sort_order" json:"sort_order"`
	CreatedAt       time.Time                `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time                `db:"updated_at" json:"updated_at"`
}

// TableName returns the database table name
func (ProcessStep) TableName() string {
	return "process_steps"
}

// ProcessLink is a directed edge between two steps of the same process.
// (process_id, from_step_id, to_step_id) is unique.
type ProcessLink struct {
	ID         uuid.UUID `db:"id" json:"id"`
	ProcessID  uuid.UUID `db:"process_id" json:"process_id"`
	FromStepID uuid.UUID `db:"from_step_id" json:"from_step_id"`
	ToStepID   uuid.UUID `db:"to_step_id" json:"to_step_id"`
	Label      *string   `db:"label" json:"label,omitempty"`
	LinkType   *string   `db:"link_type" json:"link_type,omitempty"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}

// TableName returns the database table name
func (ProcessLink) TableName() string {
	return "process_links"
}

// ProcessGraph is the detail view of a process with its full graph
type ProcessGraph struct {
	Process
	Steps []ProcessStep `json:"steps"`
	Links []ProcessLink `json:"links"`
}
