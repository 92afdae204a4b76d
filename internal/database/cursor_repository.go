package database

import (
	"context"
	"fmt"
	"time"

	"github.com/example/learnstats/pkg/models"
	"github.com/jmoiron/sqlx"
)

// CursorRepository reads and advances the singleton analytics cursor
type CursorRepository struct{}

// NewCursorRepository creates a new repository instance
func NewCursorRepository() *CursorRepository {
	return &CursorRepository{}
}

// Get returns the cursor row seeded by Migrate
func (r *CursorRepository) Get(ctx context.Context, q sqlx.ExtContext, lock bool) (*models.AnalyticsCursor, error) {
	query := "SELECT last_reconciled_date, updated_at FROM analytics_cursor WHERE id = 1" + forUpdate(q, lock)

	var cursor models.AnalyticsCursor
	if err := sqlx.GetContext(ctx, q, &cursor, query); err != nil {
		return nil, fmt.Errorf("failed to get analytics cursor: %w", notFound(err))
	}
	return &cursor, nil
}

// Advance moves the cursor to day
func (r *CursorRepository) Advance(ctx context.Context, q sqlx.ExtContext, day string, now time.Time) error {
	query := q.Rebind(`
		UPDATE analytics_cursor SET
			last_reconciled_date = ?,
			updated_at = ?
		WHERE id = 1
	`)
	result, err := q.ExecContext(ctx, query, day, now.UTC())
	if err != nil {
		return fmt.Errorf("failed to advance analytics cursor: %w", err)
	}
	return requireRow(result, "failed to advance analytics cursor")
}
