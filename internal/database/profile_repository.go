package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/example/learnstats/pkg/models"
	"github.com/jmoiron/sqlx"
)

// ProfileRepository handles database operations for learning profiles
type ProfileRepository struct{}

// NewProfileRepository creates a new repository instance
func NewProfileRepository() *ProfileRepository {
	return &ProfileRepository{}
}

const profileColumns = `user_id, first_active_date, last_active_date,
	current_streak, longest_streak, updated_at`

// Get returns a user's profile
func (r *ProfileRepository) Get(ctx context.Context, q sqlx.ExtContext, userID int64, lock bool) (*models.UserLearningProfile, error) {
	query := q.Rebind("SELECT " + profileColumns + " FROM user_learning_profiles WHERE user_id = ?" + forUpdate(q, lock))

	var profile models.UserLearningProfile
	if err := sqlx.GetContext(ctx, q, &profile, query, userID); err != nil {
		return nil, fmt.Errorf("failed to get learning profile: %w", notFound(err))
	}
	return &profile, nil
}

// CreateIfAbsent starts a profile at its first active day. It reports false
// when the user already had one, leaving that row untouched.
func (r *ProfileRepository) CreateIfAbsent(ctx context.Context, q sqlx.ExtContext, userID int64, activeDate string, now time.Time) (bool, error) {
	query := q.Rebind(`
		INSERT INTO user_learning_profiles (
			user_id, first_active_date, last_active_date,
			current_streak, longest_streak, updated_at
		) VALUES (?, ?, ?, 1, 1, ?)
		ON CONFLICT (user_id) DO NOTHING
	`)
	result, err := q.ExecContext(ctx, query, userID, activeDate, activeDate, now.UTC())
	if err != nil {
		return false, fmt.Errorf("failed to create learning profile: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rows == 1, nil
}

// Update stores a profile's dates and streaks
func (r *ProfileRepository) Update(ctx context.Context, q sqlx.ExtContext, profile *models.UserLearningProfile) error {
	profile.UpdatedAt = profile.UpdatedAt.UTC()

	query := q.Rebind(`
		UPDATE user_learning_profiles SET
			first_active_date = ?,
			last_active_date = ?,
			current_streak = ?,
			longest_streak = ?,
			updated_at = ?
		WHERE user_id = ?
	`)
	result, err := q.ExecContext(ctx, query,
		profile.FirstActiveDate,
		profile.LastActiveDate,
		profile.CurrentStreak,
		profile.LongestStreak,
		profile.UpdatedAt,
		profile.UserID,
	)
	if err != nil {
		return fmt.Errorf("failed to update learning profile: %w", err)
	}
	return requireRow(result, "failed to update learning profile")
}

// EarliestFirstActiveDate returns the oldest cohort date, or "" when no user
// has been active yet
func (r *ProfileRepository) EarliestFirstActiveDate(ctx context.Context, q sqlx.ExtContext) (string, error) {
	var earliest sql.NullString
	err := sqlx.GetContext(ctx, q, &earliest, "SELECT MIN(first_active_date) FROM user_learning_profiles")
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("failed to get earliest first active date: %w", err)
	}
	return earliest.String, nil
}

// NewUsersPerDay counts profiles by first active date within [from, to]
func (r *ProfileRepository) NewUsersPerDay(ctx context.Context, q sqlx.ExtContext, from, to string) ([]models.DateCount, error) {
	query := q.Rebind(`
		SELECT first_active_date AS date, COUNT(*) AS count
		FROM user_learning_profiles
		WHERE first_active_date BETWEEN ? AND ?
		GROUP BY first_active_date
		ORDER BY first_active_date ASC
	`)

	var counts []models.DateCount
	if err := sqlx.SelectContext(ctx, q, &counts, query, from, to); err != nil {
		return nil, fmt.Errorf("failed to count new users: %w", err)
	}
	return counts, nil
}
