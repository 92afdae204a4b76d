// Package lock provides named, cluster-wide, non-blocking mutual exclusion.
package lock

import (
	"context"
	"fmt"

	"github.com/example/learnstats/internal/config"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
)

// Lease is a held lock
type Lease interface {
	Release(ctx context.Context) error
}

// Locker hands out named leases. TryAcquire never waits: when another holder
// owns name it returns ok=false and a nil error.
type Locker interface {
	TryAcquire(ctx context.Context, name string) (lease Lease, ok bool, err error)
}

// New builds the locker selected by cfg. The returned close func releases
// any client the locker owns.
func New(ctx context.Context, cfg config.LockConfig, backend string, db *sqlx.DB) (Locker, func() error, error) {
	noop := func() error { return nil }

	switch backend {
	case config.LockBackendPostgres:
		return NewPostgres(db), noop, nil
	case config.LockBackendTable:
		return NewTable(db, cfg.TTL), noop, nil
	case config.LockBackendRedis:
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		if err := client.Ping(ctx).Err(); err != nil {
			client.Close()
			return nil, nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		return NewRedis(client, cfg.TTL), client.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown lock backend %q", backend)
	}
}
