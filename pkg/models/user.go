package models

import (
	"time"

	"github.com/google/uuid"
)

// User is an account holder. Deleted accounts keep their row with an
// anonymized email and deleted_at set.
type User struct {
	ID           uuid.UUID  `db:"id" json:"id"`
	Email        string     `db:"email" json:"email"`
	PasswordHash string     `db:"password_hash" json:"-"`
	Name         string     `db:"name" json:"name"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time  `db:"updated_at" json:"updated_at"`
	DeletedAt    *time.Time `db:"deleted_at" json:"deleted_at,omitempty"`
}

// TableName returns the database table name
func (User) TableName() string {
	return "users"
}
