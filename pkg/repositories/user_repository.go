package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/Ramsey-B/fern/pkg/database"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

// UserRepository handles database operations for user accounts
type UserRepository struct {
	*Repository
}

// NewUserRepository creates a new user repository
func NewUserRepository(db database.DB, logger ectologger.Logger) *UserRepository {
	return &UserRepository{
		Repository: NewRepository(db, logger),
	}
}

// Create creates a new user account
func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	ctx, span := tracing.StartSpan(ctx, "UserRepository.Create")
	defer span.End()

	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	now := time.Now().UTC()

	query := `
		INSERT INTO users (id, email, password_hash, name, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $5)
		RETURNING created_at, updated_at
	`

	err := r.DB().QueryRowContext(ctx, query, user.ID, user.Email, user.PasswordHash, user.Name, now).
		Scan(&user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return BadRequest("an account with this email already exists")
		}
		r.logger.WithContext(ctx).WithError(err).Error("failed to create user")
		return Internal("failed to create user")
	}

	return nil
}

// GetByEmail retrieves an active user by email
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	ctx, span := tracing.StartSpan(ctx, "UserRepository.GetByEmail")
	defer span.End()

	var user models.User
	query := `SELECT * FROM users WHERE email = $1 AND deleted_at IS NULL`
	err := r.DB().GetContext(ctx, &user, query, email)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, NotFound("user does not exist")
	}
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("failed to get user by email")
		return nil, Internal("failed to get user")
	}

	return &user, nil
}

// GetByID retrieves an active user by id
func (r *UserRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	ctx, span := tracing.StartSpan(ctx, "UserRepository.GetByID")
	defer span.End()

	var user models.User
	query := `SELECT * FROM users WHERE id = $1 AND deleted_at IS NULL`
	err := r.DB().GetContext(ctx, &user, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, NotFound("user %s does not exist", id)
	}
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithField("user_id", id).Error("failed to get user")
		return nil, Internal("failed to get user")
	}

	return &user, nil
}

// DeleteAccount erases a user in one transaction: the email is replaced with
// a placeholder, deleted_at is set, and all workspace memberships are removed.
func (r *UserRepository) DeleteAccount(ctx context.Context, userID uuid.UUID) error {
	ctx, span := tracing.StartSpan(ctx, "UserRepository.DeleteAccount")
	defer span.End()

	// The deferred rollback uses the pre-transaction context; the tx-scoped
	// one would mark the tx as caller-owned and make the rollback a no-op.
	parent := ctx
	ctx, tx, err := r.DB().GetTx(ctx, nil)
	if err != nil {
		return Internal("failed to delete account")
	}
	defer func() { _ = tx.Rollback(parent) }()

	now := time.Now().UTC()
	placeholder := fmt.Sprintf("deleted-user-%s@example.invalid", userID)

	result, err := tx.ExecContext(ctx, `
		UPDATE users
		SET email = $1, deleted_at = $2, updated_at = $2
		WHERE id = $3 AND deleted_at IS NULL
	`, placeholder, now, userID)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithField("user_id", userID).Error("failed to erase user")
		return Internal("failed to delete account")
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return Internal("failed to delete account")
	}
	if rows == 0 {
		return NotFound("user %s does not exist", userID)
	}

	_, err = tx.ExecContext(ctx, `DELETE FROM workspace_members WHERE user_id = $1`, userID)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithField("user_id", userID).Error("failed to remove memberships")
		return Internal("failed to delete account")
	}

	if err := tx.Commit(ctx); err != nil {
		return Internal("failed to delete account")
	}

	r.logger.WithContext(ctx).WithField("user_id", userID).Info("Deleted user account")
	return nil
}

func isUniqueViolation(err error) bool {
	// lib/pq unique_violation
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	return false
}

func isForeignKeyViolation(err error) bool {
	// lib/pq foreign_key_violation
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23503"
	}
	return false
}
