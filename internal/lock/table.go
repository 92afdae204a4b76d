package lock

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// Table leases rows of analytics_locks. It works on any store the schema
// supports; an expired lease can be taken over so a crashed holder only
// blocks others for one TTL.
type Table struct {
	db  *sqlx.DB
	ttl time.Duration
	now func() time.Time
}

// NewTable creates a lease locker with the given lease length
func NewTable(db *sqlx.DB, ttl time.Duration) *Table {
	return &Table{db: db, ttl: ttl, now: time.Now}
}

func (t *Table) TryAcquire(ctx context.Context, name string) (Lease, bool, error) {
	owner := uuid.NewString()
	now := t.now().UTC()

	query := t.db.Rebind(`
		INSERT INTO analytics_locks (name, owner, expires_at)
		VALUES (?, ?, ?)
		ON CONFLICT (name) DO UPDATE SET
			owner = excluded.owner,
			expires_at = excluded.expires_at
		WHERE analytics_locks.expires_at < ?
	`)
	result, err := t.db.ExecContext(ctx, query, name, owner, now.Add(t.ttl), now)
	if err != nil {
		return nil, false, fmt.Errorf("failed to acquire lease %s: %w", name, err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return nil, false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return nil, false, nil
	}
	return &tableLease{db: t.db, name: name, owner: owner}, true, nil
}

type tableLease struct {
	db    *sqlx.DB
	name  string
	owner string
}

// Release drops the row only if this lease still owns it
func (l *tableLease) Release(ctx context.Context) error {
	query := l.db.Rebind("DELETE FROM analytics_locks WHERE name = ? AND owner = ?")
	if _, err := l.db.ExecContext(ctx, query, l.name, l.owner); err != nil {
		return fmt.Errorf("failed to release lease %s: %w", l.name, err)
	}
	return nil
}
