package session

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/alexedwards/scs/v2"
	"github.com/authomatic/authomatic-sub000/oauth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newCookieRequest() (*http.Request, *httptest.ResponseRecorder) {
	return httptest.NewRequest(http.MethodGet, "https://app.example.com/", nil), httptest.NewRecorder()
}

func TestNewSCS(t *testing.T) {
	_, err := NewSCS(nil)
	assert.ErrorIs(t, err, oauth.ErrNilParameter)
}

func TestSCS(t *testing.T) {
	require := require.New(t)
	manager := scs.New()
	s, err := NewSCS(manager)
	require.NoError(err)

	var got string
	var found bool
	h := manager.LoadAndSave(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		store, err := s.Load(w, req)
		require.NoError(err)
		ctx := req.Context()
		switch req.URL.Path {
		case "/set":
			require.NoError(store.Set(ctx, "k", "v"))
			require.NoError(store.Set(ctx, "gone", "x"))
			require.NoError(store.Delete(ctx, "gone"))
		default:
			got, found, err = store.Get(ctx, "k")
			require.NoError(err)
			_, gone, err := store.Get(ctx, "gone")
			require.NoError(err)
			assert.False(t, gone)
		}
		require.NoError(store.Save(ctx))
		w.WriteHeader(http.StatusNoContent)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/set", nil))
	cookies := rec.Result().Cookies()
	require.Len(cookies, 1)

	req := httptest.NewRequest(http.MethodGet, "/get", nil)
	req.AddCookie(cookies[0])
	h.ServeHTTP(httptest.NewRecorder(), req)
	assert.True(t, found)
	assert.Equal(t, "v", got)
}
