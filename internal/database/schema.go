package database

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
)

// schema is written once with dialect placeholders so both stores share it
var schema = []struct {
	name string
	ddl  string
}{
	{"users", `
		CREATE TABLE IF NOT EXISTS users (
			id {{bigint}} PRIMARY KEY,
			username TEXT NOT NULL DEFAULT '',
			time_zone TEXT NOT NULL DEFAULT 'UTC',
			created_at {{timestamp}} NOT NULL,
			updated_at {{timestamp}} NOT NULL
		)`},
	{"vocab_items", `
		CREATE TABLE IF NOT EXISTS vocab_items (
			id {{serial_pk}},
			user_id {{bigint}} NOT NULL REFERENCES users(id),
			term TEXT NOT NULL,
			translation TEXT NOT NULL DEFAULT '',
			strength INTEGER NOT NULL DEFAULT 0 CHECK (strength BETWEEN 0 AND 5),
			last_seen_at {{timestamp}},
			next_review_at {{timestamp}},
			created_at {{timestamp}} NOT NULL,
			updated_at {{timestamp}} NOT NULL
		)`},
	{"vocab_items_user_idx", `CREATE INDEX IF NOT EXISTS vocab_items_user_idx ON vocab_items (user_id)`},
	{"daily_learning_stats", `
		CREATE TABLE IF NOT EXISTS daily_learning_stats (
			user_id {{bigint}} NOT NULL REFERENCES users(id),
			stat_date TEXT NOT NULL,
			time_zone TEXT NOT NULL,
			quiz_started_count INTEGER NOT NULL DEFAULT 0 CHECK (quiz_started_count >= 0),
			quiz_completed_count INTEGER NOT NULL DEFAULT 0 CHECK (quiz_completed_count >= 0),
			review_count INTEGER NOT NULL DEFAULT 0 CHECK (review_count >= 0),
			answered_count INTEGER NOT NULL DEFAULT 0 CHECK (answered_count >= 0),
			didnt_know_count INTEGER NOT NULL DEFAULT 0 CHECK (didnt_know_count >= 0),
			unknown_ratio_raw {{float}},
			active BOOLEAN NOT NULL DEFAULT FALSE,
			streak_at_end_of_day INTEGER,
			created_at {{timestamp}} NOT NULL,
			updated_at {{timestamp}} NOT NULL,
			PRIMARY KEY (user_id, stat_date)
		)`},
	{"daily_learning_stats_date_idx", `CREATE INDEX IF NOT EXISTS daily_learning_stats_date_idx ON daily_learning_stats (stat_date, active)`},
	{"user_learning_profiles", `
		CREATE TABLE IF NOT EXISTS user_learning_profiles (
			user_id {{bigint}} PRIMARY KEY REFERENCES users(id),
			first_active_date TEXT NOT NULL,
			last_active_date TEXT NOT NULL,
			current_streak INTEGER NOT NULL DEFAULT 0,
			longest_streak INTEGER NOT NULL DEFAULT 0,
			updated_at {{timestamp}} NOT NULL
		)`},
	{"user_learning_profiles_first_idx", `CREATE INDEX IF NOT EXISTS user_learning_profiles_first_idx ON user_learning_profiles (first_active_date)`},
	{"quiz_runs", `
		CREATE TABLE IF NOT EXISTS quiz_runs (
			id TEXT PRIMARY KEY,
			user_id {{bigint}} NOT NULL REFERENCES users(id),
			source TEXT NOT NULL,
			planned_cards INTEGER NOT NULL DEFAULT 0,
			status TEXT NOT NULL CHECK (status IN ('started', 'completed', 'exited')),
			time_zone TEXT NOT NULL,
			started_at {{timestamp}} NOT NULL,
			completed_at {{timestamp}},
			exited_at {{timestamp}},
			duration_sec INTEGER,
			answered_count INTEGER NOT NULL DEFAULT 0,
			knew_count INTEGER NOT NULL DEFAULT 0,
			didnt_know_count INTEGER NOT NULL DEFAULT 0,
			unknown_ratio {{float}},
			updated_at {{timestamp}} NOT NULL
		)`},
	{"quiz_runs_user_idx", `CREATE INDEX IF NOT EXISTS quiz_runs_user_idx ON quiz_runs (user_id, started_at)`},
	{"quiz_run_answers", `
		CREATE TABLE IF NOT EXISTS quiz_run_answers (
			quiz_run_id TEXT NOT NULL REFERENCES quiz_runs(id),
			attempt_index INTEGER NOT NULL,
			vocab_item_id {{bigint}} NOT NULL REFERENCES vocab_items(id),
			knew BOOLEAN NOT NULL,
			answered_at {{timestamp}} NOT NULL,
			PRIMARY KEY (quiz_run_id, attempt_index)
		)`},
	{"retention_metrics", `
		CREATE TABLE IF NOT EXISTS retention_metrics (
			cohort_date TEXT NOT NULL,
			day_offset INTEGER NOT NULL,
			cohort_size INTEGER NOT NULL DEFAULT 0,
			retained_users INTEGER NOT NULL DEFAULT 0,
			retention_rate {{float}} NOT NULL DEFAULT 0,
			calculated_at {{timestamp}} NOT NULL,
			PRIMARY KEY (cohort_date, day_offset)
		)`},
	{"analytics_cursor", `
		CREATE TABLE IF NOT EXISTS analytics_cursor (
			id INTEGER PRIMARY KEY CHECK (id = 1),
			last_reconciled_date TEXT,
			updated_at {{timestamp}} NOT NULL
		)`},
	{"analytics_cursor_seed", `
		INSERT INTO analytics_cursor (id, last_reconciled_date, updated_at)
		VALUES (1, NULL, CURRENT_TIMESTAMP)
		ON CONFLICT (id) DO NOTHING`},
	{"analytics_locks", `
		CREATE TABLE IF NOT EXISTS analytics_locks (
			name TEXT PRIMARY KEY,
			owner TEXT NOT NULL,
			expires_at {{timestamp}} NOT NULL
		)`},
}

func dialect(driver string) *strings.Replacer {
	if driver == DriverPostgres {
		return strings.NewReplacer(
			"{{bigint}}", "BIGINT",
			"{{serial_pk}}", "BIGSERIAL PRIMARY KEY",
			"{{float}}", "DOUBLE PRECISION",
			"{{timestamp}}", "TIMESTAMPTZ",
		)
	}
	return strings.NewReplacer(
		"{{bigint}}", "INTEGER",
		"{{serial_pk}}", "INTEGER PRIMARY KEY AUTOINCREMENT",
		"{{float}}", "REAL",
		"{{timestamp}}", "TIMESTAMP",
	)
}

// Migrate creates any missing tables and seeds the analytics cursor row.
// It is safe to run on every start.
func Migrate(ctx context.Context, db *sqlx.DB) error {
	r := dialect(db.DriverName())
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, r.Replace(stmt.ddl)); err != nil {
			return fmt.Errorf("failed to create %s: %w", stmt.name, err)
		}
	}
	return nil
}
