package models

import (
	"time"

	"github.com/google/uuid"
)

// Opportunity statuses
const (
	OpportunityStatusIdentified = "identified"
	OpportunityStatusPlanned    = "planned"
	OpportunityStatusInProgress = "in_progress"
	OpportunityStatusDone       = "done"
	OpportunityStatusDismissed  = "dismissed"
)

// Opportunity is an automation opportunity identified on a process,
// optionally pinned to a single step.
type Opportunity struct {
	ID          uuid.UUID  `db:"id" json:"id"`
	ProcessID   uuid.UUID  `db:"process_id" json:"process_id"`
	StepID      *uuid.UUID `db:"step_id" json:"step_id,omitempty"`
	Title       string     `db:"title" json:"title"`
	Summary     *string    `db:"summary" json:"summary,omitempty"`
	Impact      int        `db:"impact" json:"impact"`
	Feasibility int        `db:"feasibility" json:"feasibility"`
	Effort      int        `db:"effort" json:"effort"`
	Status      string     `db:"status" json:"status"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time  `db:"updated_at" json:"updated_at"`
}

// TableName returns the database table name
func (Opportunity) TableName() string {
	return "opportunities"
}
