package models

import (
	"time"

	"github.com/google/uuid"
)

// Plan tiers
const (
	PlanStarter = "starter"
	PlanGrowth  = "growth"
	PlanScale   = "scale"
)

// Member roles
const (
	RoleOwner  = "owner"
	RoleMember = "member"
)

// Workspace is the tenancy boundary. Every project, process, blueprint and
// governance record hangs off a workspace.
type Workspace struct {
	ID                   uuid.UUID  `db:"id" json:"id"`
	Name                 string     `db:"name" json:"name"`
	Plan                 string     `db:"plan" json:"plan"`
	TrialEndsAt          *time.Time `db:"trial_ends_at" json:"trial_ends_at,omitempty"`
	StripeCustomerID     *string    `db:"stripe_customer_id" json:"-"`
	StripeSubscriptionID *string    `db:"stripe_subscription_id" json:"-"`
	PaygEnabled          bool       `db:"payg_enabled" json:"payg_enabled"`
	PaygCapICUs          int64      `db:"payg_cap_icus" json:"payg_cap_icus"`
	CreatedAt            time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt            time.Time  `db:"updated_at" json:"updated_at"`
}

// TableName returns the database table name
func (Workspace) TableName() string {
	return "workspaces"
}

// WorkspaceMember links a user to a workspace with a role
type WorkspaceMember struct {
	WorkspaceID uuid.UUID `db:"workspace_id" json:"workspace_id"`
	UserID      uuid.UUID `db:"user_id" json:"user_id"`
	Role        string    `db:"role" json:"role"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// TableName returns the database table name
func (WorkspaceMember) TableName() string {
	return "workspace_members"
}
