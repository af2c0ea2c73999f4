package callback

import (
	"encoding/json"
	"net/http"

	"github.com/authomatic/authomatic-sub000/oauth"
)

// testSuccessFn is a test SuccessResponseFunc
func testSuccessFn(r *oauth.LoginResult, w http.ResponseWriter, req *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"provider": r.ProviderName,
		"id":       r.User.ID,
		"token":    r.Credentials.Token,
	})
}

// testSessions is a SessionFunc that hands every request the same session.
func testSessions(s oauth.SessionStore) SessionFunc {
	return func(http.ResponseWriter, *http.Request) (oauth.SessionStore, error) {
		return s, nil
	}
}
