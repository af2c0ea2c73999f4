package session

import (
	"context"
	"fmt"
	"net/http"

	"github.com/alexedwards/scs/v2"
	"github.com/authomatic/authomatic-sub000/oauth"
)

// SCS adapts an scs.SessionManager.  Handlers using it must be wrapped in the
// manager's LoadAndSave middleware, which also commits the session.
type SCS struct {
	manager *scs.SessionManager
}

// NewSCS creates an SCS adapter over manager.
func NewSCS(manager *scs.SessionManager) (*SCS, error) {
	const op = "session.NewSCS"
	if manager == nil {
		return nil, fmt.Errorf("%s: manager is nil: %w", op, oauth.ErrNilParameter)
	}
	return &SCS{manager: manager}, nil
}

// Load returns the scs session of req.
func (s *SCS) Load(_ http.ResponseWriter, req *http.Request) (oauth.SessionStore, error) {
	return &SCSStore{manager: s.manager, ctx: req.Context()}, nil
}

// SCSStore is the scs session of one request.  It reads and writes the
// session data loaded into the request context by LoadAndSave.
type SCSStore struct {
	manager *scs.SessionManager
	ctx     context.Context
}

var _ oauth.SessionStore = (*SCSStore)(nil)

// Get returns the value of key.
func (s *SCSStore) Get(_ context.Context, key string) (string, bool, error) {
	if !s.manager.Exists(s.ctx, key) {
		return "", false, nil
	}
	return s.manager.GetString(s.ctx, key), true, nil
}

// Set stores value under key.
func (s *SCSStore) Set(_ context.Context, key, value string) error {
	s.manager.Put(s.ctx, key, value)
	return nil
}

// Delete removes key.
func (s *SCSStore) Delete(_ context.Context, key string) error {
	s.manager.Remove(s.ctx, key)
	return nil
}

// Save is a no-op; LoadAndSave commits the session before the response is
// written.
func (s *SCSStore) Save(context.Context) error {
	return nil
}
