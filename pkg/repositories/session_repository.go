package repositories

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"

	"github.com/Ramsey-B/fern/pkg/database"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

// SessionRepository handles database operations for assistant sessions,
// their transcripts and their artifact links
type SessionRepository struct {
	*Repository
}

// NewSessionRepository creates a new session repository
func NewSessionRepository(db database.DB, logger ectologger.Logger) *SessionRepository {
	return &SessionRepository{
		Repository: NewRepository(db, logger),
	}
}

// Create creates a new assistant session
func (r *SessionRepository) Create(ctx context.Context, session *models.AssistantSession) error {
	ctx, span := tracing.StartSpan(ctx, "SessionRepository.Create")
	defer span.End()

	if session.ID == uuid.Nil {
		session.ID = uuid.New()
	}
	if session.Title == "" {
		session.Title = "New session"
	}
	now := time.Now().UTC()

	err := r.DB().QueryRowContext(ctx, `
		INSERT INTO assistant_sessions (id, workspace_id, created_by, title, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $5)
		RETURNING created_at, updated_at
	`, session.ID, session.WorkspaceID, session.CreatedBy, session.Title, now).
		Scan(&session.CreatedAt, &session.UpdatedAt)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithField("workspace_id", session.WorkspaceID).Error("failed to create session")
		return Internal("failed to create session")
	}

	return nil
}

// GetByID retrieves a session by id
func (r *SessionRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.AssistantSession, error) {
	ctx, span := tracing.StartSpan(ctx, "SessionRepository.GetByID")
	defer span.End()

	var session models.AssistantSession
	err := r.DB().GetContext(ctx, &session, `SELECT * FROM assistant_sessions WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, NotFound("session %s does not exist", id)
	}
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithField("session_id", id).Error("failed to get session")
		return nil, Internal("failed to get session")
	}

	return &session, nil
}

// GetDetail retrieves a session with its transcript and accumulated artifact
// metadata
func (r *SessionRepository) GetDetail(ctx context.Context, id uuid.UUID) (*models.SessionDetail, error) {
	ctx, span := tracing.StartSpan(ctx, "SessionRepository.GetDetail")
	defer span.End()

	session, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	messages, err := r.ListMessages(ctx, id, 0)
	if err != nil {
		return nil, err
	}

	artifacts, err := r.ListArtifacts(ctx, id)
	if err != nil {
		return nil, err
	}

	detail := &models.SessionDetail{
		AssistantSession: *session,
		Messages:         messages,
	}
	detail.Metadata.FromArtifacts(artifacts)

	return detail, nil
}

// ListByWorkspace lists the sessions of a workspace, newest first
func (r *SessionRepository) ListByWorkspace(ctx context.Context, workspaceID uuid.UUID) ([]models.AssistantSession, error) {
	ctx, span := tracing.StartSpan(ctx, "SessionRepository.ListByWorkspace")
	defer span.End()

	sessions := []models.AssistantSession{}
	err := r.DB().SelectContext(ctx, &sessions, `
		SELECT * FROM assistant_sessions WHERE workspace_id = $1 ORDER BY updated_at DESC
	`, workspaceID)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithField("workspace_id", workspaceID).Error("failed to list sessions")
		return nil, Internal("failed to list sessions")
	}

	return sessions, nil
}

// UpdateTitle renames a session
func (r *SessionRepository) UpdateTitle(ctx context.Context, id uuid.UUID, title string) (*models.AssistantSession, error) {
	ctx, span := tracing.StartSpan(ctx, "SessionRepository.UpdateTitle")
	defer span.End()

	var session models.AssistantSession
	err := r.DB().QueryRowxContext(ctx, `
		UPDATE assistant_sessions SET title = $1, updated_at = $2 WHERE id = $3
		RETURNING *
	`, title, time.Now().UTC(), id).StructScan(&session)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, NotFound("session %s does not exist", id)
	}
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithField("session_id", id).Error("failed to update session")
		return nil, Internal("failed to update session")
	}

	return &session, nil
}

// Delete removes a session and, via cascades, its messages and artifact links
func (r *SessionRepository) Delete(ctx context.Context, id uuid.UUID) error {
	ctx, span := tracing.StartSpan(ctx, "SessionRepository.Delete")
	defer span.End()

	result, err := r.DB().ExecContext(ctx, `DELETE FROM assistant_sessions WHERE id = $1`, id)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithField("session_id", id).Error("failed to delete session")
		return Internal("failed to delete session")
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return NotFound("session %s does not exist", id)
	}

	return nil
}

// AppendMessage appends a message to the session transcript and touches the
// session's updated_at
func (r *SessionRepository) AppendMessage(ctx context.Context, msg *models.SessionMessage) error {
	ctx, span := tracing.StartSpan(ctx, "SessionRepository.AppendMessage")
	defer span.End()

	if msg.ID == uuid.Nil {
		msg.ID = uuid.New()
	}
	now := time.Now().UTC()

	err := r.DB().QueryRowContext(ctx, `
		INSERT INTO session_messages (id, session_id, role, content, created_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at
	`, msg.ID, msg.SessionID, msg.Role, msg.Content, now).Scan(&msg.CreatedAt)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithField("session_id", msg.SessionID).Error("failed to append message")
		return Internal("failed to append message")
	}

	_, err = r.DB().ExecContext(ctx, `
		UPDATE assistant_sessions SET updated_at = $1 WHERE id = $2
	`, now, msg.SessionID)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithField("session_id", msg.SessionID).Warn("failed to touch session")
	}

	return nil
}

// ListMessages lists the transcript in chronological order. limit <= 0 means
// all messages; otherwise the most recent limit messages are returned.
func (r *SessionRepository) ListMessages(ctx context.Context, sessionID uuid.UUID, limit int) ([]models.SessionMessage, error) {
	ctx, span := tracing.StartSpan(ctx, "SessionRepository.ListMessages")
	defer span.End()

	messages := []models.SessionMessage{}
	var err error
	if limit > 0 {
		err = r.DB().SelectContext(ctx, &messages, `
			SELECT * FROM (
				SELECT * FROM session_messages WHERE session_id = $1
				ORDER BY created_at DESC LIMIT $2
			) recent ORDER BY created_at
		`, sessionID, limit)
	} else {
		err = r.DB().SelectContext(ctx, &messages, `
			SELECT * FROM session_messages WHERE session_id = $1 ORDER BY created_at
		`, sessionID)
	}
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithField("session_id", sessionID).Error("failed to list messages")
		return nil, Internal("failed to list messages")
	}

	return messages, nil
}

// LinkArtifact records that a session produced an artifact. The primary key
// makes the link idempotent; re-linking is a no-op.
func (r *SessionRepository) LinkArtifact(ctx context.Context, sessionID uuid.UUID, artifactType string, artifactID uuid.UUID) error {
	ctx, span := tracing.StartSpan(ctx, "SessionRepository.LinkArtifact")
	defer span.End()

	_, err := r.DB().ExecContext(ctx, `
		INSERT INTO session_artifacts (session_id, artifact_type, artifact_id, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT DO NOTHING
	`, sessionID, artifactType, artifactID, time.Now().UTC())
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithField("session_id", sessionID).Error("failed to link artifact")
		return Internal("failed to link artifact")
	}

	return nil
}

// ListArtifacts lists the artifact links of a session in link order
func (r *SessionRepository) ListArtifacts(ctx context.Context, sessionID uuid.UUID) ([]models.SessionArtifact, error) {
	ctx, span := tracing.StartSpan(ctx, "SessionRepository.ListArtifacts")
	defer span.End()

	artifacts := []models.SessionArtifact{}
	err := r.DB().SelectContext(ctx, &artifacts, `
		SELECT * FROM session_artifacts WHERE session_id = $1 ORDER BY created_at
	`, sessionID)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithField("session_id", sessionID).Error("failed to list artifacts")
		return nil, Internal("failed to list artifacts")
	}

	return artifacts, nil
}
