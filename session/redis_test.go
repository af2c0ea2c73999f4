package session

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/authomatic/authomatic-sub000/oauth"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRedis(t *testing.T) {
	_, err := NewRedis(nil)
	assert.ErrorIs(t, err, oauth.ErrNilParameter)
}

// TestRedis runs against the server at REDIS_ADDR.
func TestRedis(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}
	assert, require := assert.New(t), require.New(t)
	ctx := context.Background()
	client := redis.NewClient(&redis.Options{Addr: addr})
	t.Cleanup(func() { _ = client.Close() })

	prefix := "authomatic:test:" + t.Name() + ":"
	r, err := NewRedis(client, WithKeyPrefix(prefix), WithTTL(time.Minute))
	require.NoError(err)

	require.NoError(r.Store(ctx, "id", map[string]string{"a": "1", "b": "2"}))
	ttl, err := client.TTL(ctx, prefix+"id").Result()
	require.NoError(err)
	assert.True(ttl > 0 && ttl <= time.Minute)

	require.NoError(r.Store(ctx, "id", map[string]string{"a": "3"}))
	values, ok, err := r.Load(ctx, "id")
	require.NoError(err)
	assert.True(ok)
	assert.Equal(map[string]string{"a": "3"}, values)

	require.NoError(r.Remove(ctx, "id"))
	_, ok, err = r.Load(ctx, "id")
	require.NoError(err)
	assert.False(ok)
}
