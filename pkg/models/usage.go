package models

import (
	"time"

	"github.com/google/uuid"
)

// WorkspaceUsage tracks Intelligence Cost Units (ICUs) used by a workspace in a
// calendar month. The period key ('YYYY-MM') gives the monthly reset for free.
type WorkspaceUsage struct {
	WorkspaceID uuid.UUID `db:"workspace_id" json:"workspace_id"`
	Period      string    `db:"period" json:"period"`
	ICUsUsed    int64     `db:"icus_used" json:"icus_used"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// TableName returns the database table name
func (WorkspaceUsage) TableName() string {
	return "workspace_usage"
}

// UsageSummary is the billing view returned to clients
type UsageSummary struct {
	WorkspaceID   uuid.UUID `json:"workspace_id"`
	Period        string    `json:"period"`
	Plan          string    `json:"plan"`
	PlanICUs      int64     `json:"plan_icus"`
	PaygEnabled   bool      `json:"payg_enabled"`
	PaygCapICUs   int64     `json:"payg_cap_icus"`
	ICUsUsed      int64     `json:"icus_used"`
	ICUsRemaining int64     `json:"icus_remaining"`
}
