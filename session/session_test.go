package session

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/authomatic/authomatic-sub000/oauth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// roundTrip loads a session for a request carrying cookies, lets fn use it,
// saves it and returns the cookies set by the response.
func roundTrip(t *testing.T, load func(http.ResponseWriter, *http.Request) (oauth.SessionStore, error), cookies []*http.Cookie, fn func(oauth.SessionStore)) []*http.Cookie {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "https://app.example.com/login/test", nil)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	s, err := load(rec, req)
	require.NoError(t, err)
	fn(s)
	require.NoError(t, s.Save(req.Context()))
	return rec.Result().Cookies()
}

func TestNewManager(t *testing.T) {
	_, err := NewManager(nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, oauth.ErrNilParameter)
}

func TestManager_Load(t *testing.T) {
	ctx := context.Background()
	backend := NewMemory()
	m, err := NewManager(backend, WithCookieName("sid"))
	require.NoError(t, err)

	t.Run("new-session", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		cookies := roundTrip(t, m.Load, nil, func(s oauth.SessionStore) {
			_, ok, err := s.Get(ctx, "k")
			require.NoError(err)
			assert.False(ok)
			require.NoError(s.Set(ctx, "k", "v"))
		})
		require.Len(cookies, 1)
		c := cookies[0]
		assert.Equal("sid", c.Name)
		assert.NotEmpty(c.Value)
		assert.True(c.HttpOnly)
		assert.True(c.Secure)
		assert.Equal(http.SameSiteLaxMode, c.SameSite)
		assert.Equal(int(DefaultTTL.Seconds()), c.MaxAge)

		values, ok, err := backend.Load(ctx, c.Value)
		require.NoError(err)
		assert.True(ok)
		assert.Equal(map[string]string{"k": "v"}, values)
	})
	t.Run("existing-session", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		first := roundTrip(t, m.Load, nil, func(s oauth.SessionStore) {
			require.NoError(s.Set(ctx, "k", "v"))
		})
		require.Len(first, 1)
		second := roundTrip(t, m.Load, first, func(s oauth.SessionStore) {
			v, ok, err := s.Get(ctx, "k")
			require.NoError(err)
			assert.True(ok)
			assert.Equal("v", v)
			require.NoError(s.Delete(ctx, "k"))
			require.NoError(s.Set(ctx, "other", "x"))
			assert.Equal(first[0].Value, s.(*Store).ID())
		})
		assert.Empty(second, "an existing session doesn't set its cookie again")
		values, _, err := backend.Load(ctx, first[0].Value)
		require.NoError(err)
		assert.Equal(map[string]string{"other": "x"}, values)
	})
	t.Run("unknown-id", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		forged := &http.Cookie{Name: "sid", Value: "attacker-chosen"}
		cookies := roundTrip(t, m.Load, []*http.Cookie{forged}, func(s oauth.SessionStore) {
			require.NoError(s.Set(ctx, "k", "v"))
		})
		require.Len(cookies, 1)
		assert.NotEqual(forged.Value, cookies[0].Value)
		_, ok, err := backend.Load(ctx, forged.Value)
		require.NoError(err)
		assert.False(ok)
	})
	t.Run("unchanged-not-saved", func(t *testing.T) {
		before := backend.Len()
		cookies := roundTrip(t, m.Load, nil, func(oauth.SessionStore) {})
		assert.Empty(t, cookies)
		assert.Equal(t, before, backend.Len())
	})
}

func TestManager_Session(t *testing.T) {
	assert, require := assert.New(t), require.New(t)
	ctx := context.Background()
	m, err := NewManager(NewMemory(), WithInsecureCookies(true))
	require.NoError(err)

	_, err = m.Session(ctx, "")
	assert.ErrorIs(err, oauth.ErrInvalidParameter)

	s, err := m.Session(ctx, "abc")
	require.NoError(err)
	require.NoError(s.Set(ctx, "k", "v"))
	require.NoError(s.Save(ctx))

	again, err := m.Session(ctx, "abc")
	require.NoError(err)
	v, ok, err := again.Get(ctx, "k")
	require.NoError(err)
	assert.True(ok)
	assert.Equal("v", v)

	require.NoError(again.Destroy(ctx))
	gone, err := m.Session(ctx, "abc")
	require.NoError(err)
	_, ok, err = gone.Get(ctx, "k")
	require.NoError(err)
	assert.False(ok)
}
