package lock

import (
	"context"
	"database/sql"
	"fmt"
	"hash/fnv"

	"github.com/jmoiron/sqlx"
)

// Postgres uses session-level advisory locks. Each lease pins one pooled
// connection because the lock belongs to the session that took it.
type Postgres struct {
	db *sqlx.DB
}

// NewPostgres creates an advisory locker on db
func NewPostgres(db *sqlx.DB) *Postgres {
	return &Postgres{db: db}
}

// Key maps a lock name onto the bigint key space of pg_try_advisory_lock
func Key(name string) int64 {
	h := fnv.New64a()
	h.Write([]byte(name))
	return int64(h.Sum64())
}

func (p *Postgres) TryAcquire(ctx context.Context, name string) (Lease, bool, error) {
	conn, err := p.db.Conn(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("failed to get connection for advisory lock: %w", err)
	}

	key := Key(name)
	var ok bool
	if err := conn.QueryRowContext(ctx, "SELECT pg_try_advisory_lock($1)", key).Scan(&ok); err != nil {
		conn.Close()
		return nil, false, fmt.Errorf("failed to try advisory lock %s: %w", name, err)
	}
	if !ok {
		conn.Close()
		return nil, false, nil
	}
	return &postgresLease{conn: conn, key: key, name: name}, true, nil
}

type postgresLease struct {
	conn *sql.Conn
	key  int64
	name string
}

func (l *postgresLease) Release(ctx context.Context) error {
	defer l.conn.Close()

	var released bool
	if err := l.conn.QueryRowContext(ctx, "SELECT pg_advisory_unlock($1)", l.key).Scan(&released); err != nil {
		return fmt.Errorf("failed to release advisory lock %s: %w", l.name, err)
	}
	if !released {
		return fmt.Errorf("advisory lock %s was not held", l.name)
	}
	return nil
}
