package lock

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// releaseScript deletes the key only when it still carries our token
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Redis holds leases as expiring keys
type Redis struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedis creates a redis locker with the given lease length
func NewRedis(client *redis.Client, ttl time.Duration) *Redis {
	return &Redis{client: client, ttl: ttl}
}

// Ping checks that the redis server answers
func (r *Redis) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *Redis) TryAcquire(ctx context.Context, name string) (Lease, bool, error) {
	token := uuid.NewString()
	ok, err := r.client.SetNX(ctx, name, token, r.ttl).Result()
	if err != nil {
		return nil, false, fmt.Errorf("failed to acquire redis lock %s: %w", name, err)
	}
	if !ok {
		return nil, false, nil
	}
	return &redisLease{client: r.client, name: name, token: token}, true, nil
}

type redisLease struct {
	client *redis.Client
	name   string
	token  string
}

func (l *redisLease) Release(ctx context.Context) error {
	if err := releaseScript.Run(ctx, l.client, []string{l.name}, l.token).Err(); err != nil {
		return fmt.Errorf("failed to release redis lock %s: %w", l.name, err)
	}
	return nil
}
