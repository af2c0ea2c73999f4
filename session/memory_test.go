package session

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemory(t *testing.T) {
	ctx := context.Background()

	t.Run("copies", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		m := NewMemory()
		in := map[string]string{"k": "v"}
		require.NoError(m.Store(ctx, "id", in))
		in["k"] = "changed"

		out, ok, err := m.Load(ctx, "id")
		require.NoError(err)
		assert.True(ok)
		assert.Equal("v", out["k"])
		out["k"] = "changed"

		again, _, err := m.Load(ctx, "id")
		require.NoError(err)
		assert.Equal("v", again["k"])
		assert.Equal(1, m.Len())

		require.NoError(m.Remove(ctx, "id"))
		_, ok, err = m.Load(ctx, "id")
		require.NoError(err)
		assert.False(ok)
	})
	t.Run("expires", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		m := NewMemory(WithTTL(20 * time.Millisecond))
		require.NoError(m.Store(ctx, "id", map[string]string{"k": "v"}))
		assert.Eventually(func() bool {
			_, ok, err := m.Load(ctx, "id")
			return err == nil && !ok
		}, time.Second, 10*time.Millisecond)
	})
}
