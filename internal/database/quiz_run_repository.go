package database

import (
	"context"
	"fmt"

	"github.com/example/learnstats/pkg/models"
	"github.com/jmoiron/sqlx"
)

// QuizRunRepository handles database operations for quiz runs and their answers
type QuizRunRepository struct{}

// NewQuizRunRepository creates a new repository instance
func NewQuizRunRepository() *QuizRunRepository {
	return &QuizRunRepository{}
}

const quizRunColumns = `id, user_id, source, planned_cards, status, time_zone,
	started_at, completed_at, exited_at, duration_sec, answered_count,
	knew_count, didnt_know_count, unknown_ratio, updated_at`

// Create inserts a new run. The caller assigns the ID.
func (r *QuizRunRepository) Create(ctx context.Context, q sqlx.ExtContext, run *models.QuizRun) error {
	query := q.Rebind(`
		INSERT INTO quiz_runs (
			id, user_id, source, planned_cards, status, time_zone,
			started_at, answered_count, knew_count, didnt_know_count, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	_, err := q.ExecContext(ctx, query,
		run.ID,
		run.UserID,
		run.Source,
		run.PlannedCards,
		run.Status,
		run.TimeZone,
		run.StartedAt.UTC(),
		run.AnsweredCount,
		run.KnewCount,
		run.DidntKnowCount,
		run.UpdatedAt.UTC(),
	)
	if err != nil {
		if IsUniqueViolation(err) {
			return fmt.Errorf("failed to create quiz run: %w", ErrDuplicate)
		}
		return fmt.Errorf("failed to create quiz run: %w", err)
	}
	return nil
}

// GetForUser returns a run only when it belongs to userID
func (r *QuizRunRepository) GetForUser(ctx context.Context, q sqlx.ExtContext, userID int64, id string, lock bool) (*models.QuizRun, error) {
	query := q.Rebind("SELECT " + quizRunColumns + " FROM quiz_runs WHERE id = ? AND user_id = ?" + forUpdate(q, lock))

	var run models.QuizRun
	if err := sqlx.GetContext(ctx, q, &run, query, id, userID); err != nil {
		return nil, fmt.Errorf("failed to get quiz run: %w", notFound(err))
	}
	return &run, nil
}

// Update stores the mutable fields of a run
func (r *QuizRunRepository) Update(ctx context.Context, q sqlx.ExtContext, run *models.QuizRun) error {
	query := q.Rebind(`
		UPDATE quiz_runs SET
			status = ?,
			completed_at = ?,
			exited_at = ?,
			duration_sec = ?,
			answered_count = ?,
			knew_count = ?,
			didnt_know_count = ?,
			unknown_ratio = ?,
			updated_at = ?
		WHERE id = ? AND user_id = ?
	`)
	result, err := q.ExecContext(ctx, query,
		run.Status,
		run.CompletedAt,
		run.ExitedAt,
		run.DurationSec,
		run.AnsweredCount,
		run.KnewCount,
		run.DidntKnowCount,
		run.UnknownRatio,
		run.UpdatedAt.UTC(),
		run.ID,
		run.UserID,
	)
	if err != nil {
		return fmt.Errorf("failed to update quiz run: %w", err)
	}
	return requireRow(result, "failed to update quiz run")
}

// GetAnswer returns the answer stored for one attempt of a run
func (r *QuizRunRepository) GetAnswer(ctx context.Context, q sqlx.ExtContext, runID string, attemptIndex int) (*models.QuizRunAnswer, error) {
	query := q.Rebind(`
		SELECT quiz_run_id, attempt_index, vocab_item_id, knew, answered_at
		FROM quiz_run_answers
		WHERE quiz_run_id = ? AND attempt_index = ?
	`)

	var answer models.QuizRunAnswer
	if err := sqlx.GetContext(ctx, q, &answer, query, runID, attemptIndex); err != nil {
		return nil, fmt.Errorf("failed to get quiz answer: %w", notFound(err))
	}
	return &answer, nil
}

// InsertAnswer records an attempt. It reports false when the attempt was
// already recorded, in which case nothing is written.
func (r *QuizRunRepository) InsertAnswer(ctx context.Context, q sqlx.ExtContext, answer *models.QuizRunAnswer) (bool, error) {
	query := q.Rebind(`
		INSERT INTO quiz_run_answers (
			quiz_run_id, attempt_index, vocab_item_id, knew, answered_at
		) VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (quiz_run_id, attempt_index) DO NOTHING
	`)
	result, err := q.ExecContext(ctx, query,
		answer.QuizRunID,
		answer.AttemptIndex,
		answer.VocabItemID,
		answer.Knew,
		answer.AnsweredAt.UTC(),
	)
	if err != nil {
		return false, fmt.Errorf("failed to record quiz answer: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rows == 1, nil
}

// CountAnswers returns how many attempts a run has recorded
func (r *QuizRunRepository) CountAnswers(ctx context.Context, q sqlx.ExtContext, runID string) (int, error) {
	var count int
	query := q.Rebind("SELECT COUNT(*) FROM quiz_run_answers WHERE quiz_run_id = ?")
	if err := sqlx.GetContext(ctx, q, &count, query, runID); err != nil {
		return 0, fmt.Errorf("failed to count quiz answers: %w", err)
	}
	return count, nil
}
