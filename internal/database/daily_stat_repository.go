package database

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/example/learnstats/pkg/models"
	"github.com/jmoiron/sqlx"
)

// StatIncrement is a set of counter increments for one daily stat row.
// Zero fields are left out of the update entirely.
type StatIncrement struct {
	QuizStarted   int
	QuizCompleted int
	Reviews       int
	Answered      int
	DidntKnow     int
}

// IsZero reports whether applying inc would change nothing
func (inc StatIncrement) IsZero() bool {
	return inc == StatIncrement{}
}

func (inc StatIncrement) columns() []struct {
	name  string
	value int
} {
	return []struct {
		name  string
		value int
	}{
		{"quiz_started_count", inc.QuizStarted},
		{"quiz_completed_count", inc.QuizCompleted},
		{"review_count", inc.Reviews},
		{"answered_count", inc.Answered},
		{"didnt_know_count", inc.DidntKnow},
	}
}

// DailyStatRepository handles database operations for daily learning stats
type DailyStatRepository struct{}

// NewDailyStatRepository creates a new repository instance
func NewDailyStatRepository() *DailyStatRepository {
	return &DailyStatRepository{}
}

const dailyStatColumns = `user_id, stat_date, time_zone, quiz_started_count,
	quiz_completed_count, review_count, answered_count, didnt_know_count,
	unknown_ratio_raw, active, streak_at_end_of_day, created_at, updated_at`

// Get returns the stat row for one user and day
func (r *DailyStatRepository) Get(ctx context.Context, q sqlx.ExtContext, userID int64, statDate string, lock bool) (*models.DailyLearningStat, error) {
	query := q.Rebind("SELECT " + dailyStatColumns +
		" FROM daily_learning_stats WHERE user_id = ? AND stat_date = ?" + forUpdate(q, lock))

	var stat models.DailyLearningStat
	if err := sqlx.GetContext(ctx, q, &stat, query, userID, statDate); err != nil {
		return nil, fmt.Errorf("failed to get daily stat: %w", notFound(err))
	}
	return &stat, nil
}

// Increment adds inc to the row for (userID, statDate), creating it seeded
// with inc when absent. Only the non-zero counters appear in the conflict
// branch so an untouched column is never rewritten.
func (r *DailyStatRepository) Increment(ctx context.Context, q sqlx.ExtContext, userID int64, statDate, tz string, inc StatIncrement, now time.Time) error {
	if inc.IsZero() {
		return nil
	}
	now = now.UTC()

	cols := inc.columns()
	names := make([]string, 0, len(cols))
	sets := make([]string, 0, len(cols)+2)
	args := []interface{}{userID, statDate, tz}
	for _, c := range cols {
		names = append(names, c.name)
		args = append(args, c.value)
		if c.value != 0 {
			sets = append(sets, fmt.Sprintf("%[1]s = daily_learning_stats.%[1]s + excluded.%[1]s", c.name))
		}
	}
	sets = append(sets, "time_zone = excluded.time_zone", "updated_at = excluded.updated_at")
	args = append(args, now, now)

	query := q.Rebind(fmt.Sprintf(`
		INSERT INTO daily_learning_stats (
			user_id, stat_date, time_zone, %s, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (user_id, stat_date) DO UPDATE SET %s
	`, strings.Join(names, ", "), strings.Join(sets, ", ")))

	if _, err := q.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to increment daily stat: %w", err)
	}
	return nil
}

// UpdateDerived stores the fields computed from the counters
func (r *DailyStatRepository) UpdateDerived(ctx context.Context, q sqlx.ExtContext, userID int64, statDate string, unknownRatio *float64, active bool, now time.Time) error {
	query := q.Rebind(`
		UPDATE daily_learning_stats SET
			unknown_ratio_raw = ?,
			active = ?,
			updated_at = ?
		WHERE user_id = ? AND stat_date = ?
	`)
	result, err := q.ExecContext(ctx, query, unknownRatio, active, now.UTC(), userID, statDate)
	if err != nil {
		return fmt.Errorf("failed to update derived daily stat fields: %w", err)
	}
	return requireRow(result, "failed to update derived daily stat fields")
}

// SetStreakSnapshot records the user's streak as of the day turning active
func (r *DailyStatRepository) SetStreakSnapshot(ctx context.Context, q sqlx.ExtContext, userID int64, statDate string, streak int, now time.Time) error {
	query := q.Rebind(`
		UPDATE daily_learning_stats SET
			streak_at_end_of_day = ?,
			updated_at = ?
		WHERE user_id = ? AND stat_date = ?
	`)
	result, err := q.ExecContext(ctx, query, streak, now.UTC(), userID, statDate)
	if err != nil {
		return fmt.Errorf("failed to set streak snapshot: %w", err)
	}
	return requireRow(result, "failed to set streak snapshot")
}

// ListForUser returns a user's rows with from <= stat_date <= to, oldest first
func (r *DailyStatRepository) ListForUser(ctx context.Context, q sqlx.ExtContext, userID int64, from, to string) ([]models.DailyLearningStat, error) {
	query := q.Rebind("SELECT " + dailyStatColumns + `
		FROM daily_learning_stats
		WHERE user_id = ? AND stat_date BETWEEN ? AND ?
		ORDER BY stat_date ASC
	`)

	var stats []models.DailyLearningStat
	if err := sqlx.SelectContext(ctx, q, &stats, query, userID, from, to); err != nil {
		return nil, fmt.Errorf("failed to list daily stats: %w", err)
	}
	return stats, nil
}

// Totals sums every user's counters per day. Days without any rows are
// absent from the result.
func (r *DailyStatRepository) Totals(ctx context.Context, q sqlx.ExtContext, from, to string) ([]models.DailyTotals, error) {
	query := q.Rebind(`
		SELECT stat_date,
			SUM(CASE WHEN active THEN 1 ELSE 0 END) AS active_users,
			SUM(quiz_started_count) AS quiz_started,
			SUM(quiz_completed_count) AS quiz_completed,
			SUM(review_count) AS reviews,
			SUM(answered_count) AS answered,
			SUM(didnt_know_count) AS didnt_know
		FROM daily_learning_stats
		WHERE stat_date BETWEEN ? AND ?
		GROUP BY stat_date
		ORDER BY stat_date ASC
	`)

	var totals []models.DailyTotals
	if err := sqlx.SelectContext(ctx, q, &totals, query, from, to); err != nil {
		return nil, fmt.Errorf("failed to get daily totals: %w", err)
	}
	return totals, nil
}
