package database

import (
	"context"
	"fmt"
	"time"

	"github.com/example/learnstats/pkg/models"
	"github.com/jmoiron/sqlx"
)

// UserRepository handles database operations for users
type UserRepository struct{}

// NewUserRepository creates a new repository instance
func NewUserRepository() *UserRepository {
	return &UserRepository{}
}

const userColumns = "id, username, time_zone, created_at, updated_at"

// GetByID returns a user by ID. With lock set the row stays locked until the
// enclosing transaction ends.
func (r *UserRepository) GetByID(ctx context.Context, q sqlx.ExtContext, id int64, lock bool) (*models.User, error) {
	query := q.Rebind("SELECT " + userColumns + " FROM users WHERE id = ?" + forUpdate(q, lock))

	var user models.User
	if err := sqlx.GetContext(ctx, q, &user, query, id); err != nil {
		return nil, fmt.Errorf("failed to get user by ID: %w", notFound(err))
	}
	return &user, nil
}

// Create inserts a new user. The id is owned by the account system, so it is
// always supplied by the caller.
func (r *UserRepository) Create(ctx context.Context, q sqlx.ExtContext, user *models.User) error {
	now := time.Now().UTC()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	user.UpdatedAt = now
	if user.TimeZone == "" {
		user.TimeZone = "UTC"
	}

	query := q.Rebind(`
		INSERT INTO users (id, username, time_zone, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
	`)
	_, err := q.ExecContext(ctx, query, user.ID, user.Username, user.TimeZone, user.CreatedAt, user.UpdatedAt)
	if err != nil {
		if IsUniqueViolation(err) {
			return fmt.Errorf("failed to create user: %w", ErrDuplicate)
		}
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

// UpdateTimeZone stores a new canonical time zone for the user
func (r *UserRepository) UpdateTimeZone(ctx context.Context, q sqlx.ExtContext, id int64, tz string, now time.Time) error {
	query := q.Rebind("UPDATE users SET time_zone = ?, updated_at = ? WHERE id = ?")
	result, err := q.ExecContext(ctx, query, tz, now.UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to update user time zone: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("failed to update user time zone: %w", ErrNotFound)
	}
	return nil
}
