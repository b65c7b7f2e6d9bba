package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/Ramsey-B/fern/pkg/database"
)

// BlueprintSection is one typed section of a generated blueprint
type BlueprintSection struct {
	Heading string `json:"heading"`
	Body    string `json:"body"`
}

// BlueprintContent is the structured form of a blueprint
type BlueprintContent struct {
	Summary  string             `json:"summary"`
	Sections []BlueprintSection `json:"sections"`
}

// Blueprint is a generated automation blueprint document. Markdown is the
// rendered form, Content the structured one; both are stored.
type Blueprint struct {
	ID          uuid.UUID                        `db:"id" json:"id"`
	WorkspaceID uuid.UUID                        `db:"workspace_id" json:"workspace_id"`
	ProjectID   *uuid.UUID                       `db:"project_id" json:"project_id,omitempty"`
	Title       string                           `db:"title" json:"title"`
	Markdown    string                           `db:"markdown" json:"markdown"`
	Content     database.JSONB[BlueprintContent] `db:"content" json:"content"`
	Version     int                              `db:"version" json:"version"`
	CreatedAt   time.Time                        `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time                        `db:"updated_at" json:"updated_at"`
}

// TableName returns the database table name
func (Blueprint) TableName() string {
	return "blueprints"
}
