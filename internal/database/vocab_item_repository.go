package database

import (
	"context"
	"fmt"
	"time"

	"github.com/example/learnstats/pkg/models"
	"github.com/jmoiron/sqlx"
)

// VocabItemRepository handles database operations for a user's vocabulary items
type VocabItemRepository struct{}

// NewVocabItemRepository creates a new repository instance
func NewVocabItemRepository() *VocabItemRepository {
	return &VocabItemRepository{}
}

const vocabItemColumns = `id, user_id, term, translation, strength, last_seen_at,
	next_review_at, created_at, updated_at`

// Create inserts a new item and fills in its generated ID
func (r *VocabItemRepository) Create(ctx context.Context, q sqlx.ExtContext, item *models.VocabItem) error {
	now := time.Now().UTC()
	item.CreatedAt = now
	item.UpdatedAt = now

	args := []interface{}{
		item.UserID,
		item.Term,
		item.Translation,
		item.Strength,
		item.LastSeenAt,
		item.NextReviewAt,
		item.CreatedAt,
		item.UpdatedAt,
	}
	query := `
		INSERT INTO vocab_items (
			user_id, term, translation, strength, last_seen_at,
			next_review_at, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	if IsPostgres(q) {
		row := q.QueryRowxContext(ctx, q.Rebind(query+" RETURNING id"), args...)
		if err := row.Scan(&item.ID); err != nil {
			return fmt.Errorf("failed to create vocab item: %w", err)
		}
		return nil
	}

	result, err := q.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to create vocab item: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert ID: %w", err)
	}
	item.ID = id
	return nil
}

// GetForUser returns an item only when it belongs to userID
func (r *VocabItemRepository) GetForUser(ctx context.Context, q sqlx.ExtContext, userID, itemID int64, lock bool) (*models.VocabItem, error) {
	query := q.Rebind("SELECT " + vocabItemColumns + " FROM vocab_items WHERE id = ? AND user_id = ?" + forUpdate(q, lock))

	var item models.VocabItem
	if err := sqlx.GetContext(ctx, q, &item, query, itemID, userID); err != nil {
		return nil, fmt.Errorf("failed to get vocab item: %w", notFound(err))
	}
	return &item, nil
}

// UpdateReview stores the spaced repetition state after an answer
func (r *VocabItemRepository) UpdateReview(ctx context.Context, q sqlx.ExtContext, item *models.VocabItem) error {
	item.UpdatedAt = time.Now().UTC()

	query := q.Rebind(`
		UPDATE vocab_items SET
			strength = ?,
			last_seen_at = ?,
			next_review_at = ?,
			updated_at = ?
		WHERE id = ? AND user_id = ?
	`)
	result, err := q.ExecContext(ctx, query,
		item.Strength,
		item.LastSeenAt,
		item.NextReviewAt,
		item.UpdatedAt,
		item.ID,
		item.UserID,
	)
	if err != nil {
		return fmt.Errorf("failed to update vocab item: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("failed to update vocab item: %w", ErrNotFound)
	}
	return nil
}
