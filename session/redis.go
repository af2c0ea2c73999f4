package session

import (
	"context"
	"fmt"
	"time"

	"github.com/authomatic/authomatic-sub000/oauth"
	"github.com/redis/go-redis/v9"
)

// Redis is a Backend keeping each session in a Redis hash that expires after
// the session TTL.
type Redis struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
}

var _ Backend = (*Redis)(nil)

// NewRedis creates a Redis backend over client.
// Supported options: WithTTL, WithKeyPrefix
func NewRedis(client redis.UniversalClient, opt ...Option) (*Redis, error) {
	const op = "session.NewRedis"
	if client == nil {
		return nil, fmt.Errorf("%s: client is nil: %w", op, oauth.ErrNilParameter)
	}
	opts := getOpts(opt...)
	return &Redis{client: client, prefix: opts.withKeyPrefix, ttl: opts.withTTL}, nil
}

func (r *Redis) key(id string) string {
	return r.prefix + id
}

// Load returns the values of session id.
func (r *Redis) Load(ctx context.Context, id string) (map[string]string, bool, error) {
	const op = "session.(Redis).Load"
	values, err := r.client.HGetAll(ctx, r.key(id)).Result()
	if err != nil {
		return nil, false, fmt.Errorf("%s: %w", op, err)
	}
	if len(values) == 0 {
		return nil, false, nil
	}
	return values, true, nil
}

// Store replaces the values of session id in one transaction.
func (r *Redis) Store(ctx context.Context, id string, values map[string]string) error {
	const op = "session.(Redis).Store"
	key := r.key(id)
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key)
		if len(values) == 0 {
			return nil
		}
		fields := make(map[string]interface{}, len(values))
		for k, v := range values {
			fields[k] = v
		}
		pipe.HSet(ctx, key, fields)
		pipe.Expire(ctx, key, r.ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// Remove deletes session id.
func (r *Redis) Remove(ctx context.Context, id string) error {
	const op = "session.(Redis).Remove"
	if err := r.client.Del(ctx, r.key(id)).Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}
