package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/Ramsey-B/fern/pkg/database"
)

// AI use case lifecycle statuses
const (
	UseCaseStatusPlanned    = "planned"
	UseCaseStatusPilot      = "pilot"
	UseCaseStatusProduction = "production"
	UseCaseStatusPaused     = "paused"
)

// UseCaseStatuses is the authoritative status set
var UseCaseStatuses = []string{
	UseCaseStatusPlanned,
	UseCaseStatusPilot,
	UseCaseStatusProduction,
	UseCaseStatusPaused,
}

// IsValidUseCaseStatus reports whether s is a known use case status
func IsValidUseCaseStatus(s string) bool {
	for _, status := range UseCaseStatuses {
		if s == status {
			return true
		}
	}
	return false
}

// AiUseCase is a registered AI system in the workspace's governance inventory
type AiUseCase struct {
	ID             uuid.UUID                  `db:"id" json:"id"`
	WorkspaceID    uuid.UUID                  `db:"workspace_id" json:"workspace_id"`
	Name           string                     `db:"name" json:"name"`
	Description    *string                    `db:"description" json:"description,omitempty"`
	Status         string                     `db:"status" json:"status"`
	ProcessIDs     database.JSONB[[]string]   `db:"process_ids" json:"process_ids"`
	OpportunityIDs database.JSONB[[]string]   `db:"opportunity_ids" json:"opportunity_ids"`
	Tools          database.JSONB[[]string]   `db:"tools" json:"tools"`
	CreatedAt      time.Time                  `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time                  `db:"updated_at" json:"updated_at"`
}

// TableName returns the database table name
func (AiUseCase) TableName() string {
	return "ai_use_cases"
}

// Risk levels
const (
	RiskLevelLow      = "low"
	RiskLevelMedium   = "medium"
	RiskLevelHigh     = "high"
	RiskLevelCritical = "critical"
)

// Hazard is one identified hazard in a risk assessment
type Hazard struct {
	Title      string `json:"title"`
	Severity   string `json:"severity" validate:"oneof=low medium high critical"`
	Likelihood string `json:"likelihood" validate:"oneof=rare possible likely"`
	Mitigation string `json:"mitigation"`
}

// RiskAssessment is the (at most one) risk assessment of an AI use case
type RiskAssessment struct {
	ID        uuid.UUID                `db:"id" json:"id"`
	UseCaseID uuid.UUID                `db:"use_case_id" json:"use_case_id"`
	RiskLevel string                   `db:"risk_level" json:"risk_level"`
	Summary   string                   `db:"summary" json:"summary"`
	Hazards   database.JSONB[[]Hazard] `db:"hazards" json:"hazards"`
	Drafted   bool                     `db:"drafted" json:"drafted"`
	CreatedAt time.Time                `db:"created_at" json:"created_at"`
	UpdatedAt time.Time                `db:"updated_at" json:"updated_at"`
}

// TableName returns the database table name
func (RiskAssessment) TableName() string {
	return "risk_assessments"
}

// AiPolicy is a workspace AI policy document (markdown body)
type AiPolicy struct {
	ID          uuid.UUID `db:"id" json:"id"`
	WorkspaceID uuid.UUID `db:"workspace_id" json:"workspace_id"`
	Title       string    `db:"title" json:"title"`
	Body        string    `db:"body" json:"body"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// TableName returns the database table name
func (AiPolicy) TableName() string {
	return "ai_policies"
}

// Policy mapping statuses
const (
	MappingStatusCompliant = "compliant"
	MappingStatusGap       = "gap"
	MappingStatusWaived    = "waived"
)

// AiPolicyMapping records how a use case stands against one policy
type AiPolicyMapping struct {
	ID        uuid.UUID `db:"id" json:"id"`
	UseCaseID uuid.UUID `db:"use_case_id" json:"use_case_id"`
	PolicyID  uuid.UUID `db:"policy_id" json:"policy_id"`
	Status    string    `db:"status" json:"status"`
	Notes     *string   `db:"notes" json:"notes,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// TableName returns the database table name
func (AiPolicyMapping) TableName() string {
	return "ai_policy_mappings"
}
