package database

import (
	"context"
	"fmt"

	"github.com/example/learnstats/pkg/models"
	"github.com/jmoiron/sqlx"
)

// RetentionRepository handles database operations for cohort retention
type RetentionRepository struct{}

// NewRetentionRepository creates a new repository instance
func NewRetentionRepository() *RetentionRepository {
	return &RetentionRepository{}
}

// CohortSize counts users whose first active day is cohortDate
func (r *RetentionRepository) CohortSize(ctx context.Context, q sqlx.ExtContext, cohortDate string) (int, error) {
	var size int
	query := q.Rebind("SELECT COUNT(*) FROM user_learning_profiles WHERE first_active_date = ?")
	if err := sqlx.GetContext(ctx, q, &size, query, cohortDate); err != nil {
		return 0, fmt.Errorf("failed to count cohort: %w", err)
	}
	return size, nil
}

// RetainedUsers counts members of the cohortDate cohort whose day on
// activeDate was active
func (r *RetentionRepository) RetainedUsers(ctx context.Context, q sqlx.ExtContext, cohortDate, activeDate string) (int, error) {
	var retained int
	query := q.Rebind(`
		SELECT COUNT(*)
		FROM user_learning_profiles p
		JOIN daily_learning_stats s ON s.user_id = p.user_id
		WHERE p.first_active_date = ?
			AND s.stat_date = ?
			AND s.active = ?
	`)
	if err := sqlx.GetContext(ctx, q, &retained, query, cohortDate, activeDate, true); err != nil {
		return 0, fmt.Errorf("failed to count retained users: %w", err)
	}
	return retained, nil
}

// Upsert writes a metric, replacing any earlier calculation for the same
// cohort and offset
func (r *RetentionRepository) Upsert(ctx context.Context, q sqlx.ExtContext, metric *models.RetentionMetric) error {
	query := q.Rebind(`
		INSERT INTO retention_metrics (
			cohort_date, day_offset, cohort_size, retained_users,
			retention_rate, calculated_at
		) VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (cohort_date, day_offset) DO UPDATE SET
			cohort_size = excluded.cohort_size,
			retained_users = excluded.retained_users,
			retention_rate = excluded.retention_rate,
			calculated_at = excluded.calculated_at
	`)
	_, err := q.ExecContext(ctx, query,
		metric.CohortDate,
		metric.DayOffset,
		metric.CohortSize,
		metric.RetainedUsers,
		metric.RetentionRate,
		metric.CalculatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert retention metric: %w", err)
	}
	return nil
}

// Get returns the metric for one cohort and offset
func (r *RetentionRepository) Get(ctx context.Context, q sqlx.ExtContext, cohortDate string, dayOffset int) (*models.RetentionMetric, error) {
	query := q.Rebind(`
		SELECT cohort_date, day_offset, cohort_size, retained_users,
			retention_rate, calculated_at
		FROM retention_metrics
		WHERE cohort_date = ? AND day_offset = ?
	`)

	var metric models.RetentionMetric
	if err := sqlx.GetContext(ctx, q, &metric, query, cohortDate, dayOffset); err != nil {
		return nil, fmt.Errorf("failed to get retention metric: %w", notFound(err))
	}
	return &metric, nil
}

// ListRange returns metrics for one offset with from <= cohort_date <= to
func (r *RetentionRepository) ListRange(ctx context.Context, q sqlx.ExtContext, dayOffset int, from, to string) ([]models.RetentionMetric, error) {
	query := q.Rebind(`
		SELECT cohort_date, day_offset, cohort_size, retained_users,
			retention_rate, calculated_at
		FROM retention_metrics
		WHERE day_offset = ? AND cohort_date BETWEEN ? AND ?
		ORDER BY cohort_date ASC
	`)

	var metrics []models.RetentionMetric
	if err := sqlx.SelectContext(ctx, q, &metrics, query, dayOffset, from, to); err != nil {
		return nil, fmt.Errorf("failed to list retention metrics: %w", err)
	}
	return metrics, nil
}
