package models

import (
	"time"

	"github.com/google/uuid"
)

// Message roles
const (
	MessageRoleUser      = "user"
	MessageRoleAssistant = "assistant"
	MessageRoleSystem    = "system"
)

// Artifact types linkable to a session
const (
	ArtifactTypeProcess     = "process"
	ArtifactTypeOpportunity = "opportunity"
	ArtifactTypeBlueprint   = "blueprint"
	ArtifactTypeAiUseCase   = "ai_use_case"
)

// AssistantSession is a chat session scoped to a workspace
type AssistantSession struct {
	ID          uuid.UUID `db:"id" json:"id"`
	WorkspaceID uuid.UUID `db:"workspace_id" json:"workspace_id"`
	CreatedBy   uuid.UUID `db:"created_by" json:"created_by"`
	Title       string    `db:"title" json:"title"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// TableName returns the database table name
func (AssistantSession) TableName() string {
	return "assistant_sessions"
}

// SessionMessage is one turn in a session transcript
type SessionMessage struct {
	ID        uuid.UUID `db:"id" json:"id"`
	SessionID uuid.UUID `db:"session_id" json:"session_id"`
	Role      string    `db:"role" json:"role"`
	Content   string    `db:"content" json:"content"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// TableName returns the database table name
func (SessionMessage) TableName() string {
	return "session_messages"
}

// SessionArtifact links a session to an artifact it produced.
// The (session, type, id) primary key makes linking idempotent.
type SessionArtifact struct {
	SessionID    uuid.UUID `db:"session_id" json:"session_id"`
	ArtifactType string    `db:"artifact_type" json:"artifact_type"`
	ArtifactID   uuid.UUID `db:"artifact_id" json:"artifact_id"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

// TableName returns the database table name
func (SessionArtifact) TableName() string {
	return "session_artifacts"
}

// SessionMetadata is the accumulated artifact-id shape returned by the API.
// IDs are appended once and never removed; deleting an artifact leaves its id
// behind.
type SessionMetadata struct {
	ProcessIDs     []string `json:"process_ids"`
	OpportunityIDs []string `json:"opportunity_ids"`
	BlueprintIDs   []string `json:"blueprint_ids"`
	UseCaseIDs     []string `json:"use_case_ids"`
}

// Add appends the artifact id to the bucket for its type if absent.
// Unknown types are ignored.
func (m *SessionMetadata) Add(artifactType, id string) {
	switch artifactType {
	case ArtifactTypeProcess:
		m.ProcessIDs = appendIfAbsent(m.ProcessIDs, id)
	case ArtifactTypeOpportunity:
		m.OpportunityIDs = appendIfAbsent(m.OpportunityIDs, id)
	case ArtifactTypeBlueprint:
		m.BlueprintIDs = appendIfAbsent(m.BlueprintIDs, id)
	case ArtifactTypeAiUseCase:
		m.UseCaseIDs = appendIfAbsent(m.UseCaseIDs, id)
	}
}

// FromArtifacts builds the metadata shape from session artifact rows
func (m *SessionMetadata) FromArtifacts(artifacts []SessionArtifact) {
	for _, a := range artifacts {
		m.Add(a.ArtifactType, a.ArtifactID.String())
	}
}

func appendIfAbsent(ids []string, id string) []string {
	for _, existing := range ids {
		if existing == id {
			return ids
		}
	}
	return append(ids, id)
}

// SessionDetail is the GET view of a session
type SessionDetail struct {
	AssistantSession
	Messages []SessionMessage `json:"messages"`
	Metadata SessionMetadata  `json:"metadata"`
}
