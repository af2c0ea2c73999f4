// Copyright IBM Corp. 2020, 2025
// SPDX-License-Identifier: MPL-2.0

// Package session has oauth.SessionStore implementations for net/http
// applications: server side sessions keyed by a cookie (Memory and Redis
// backends), sessions kept in an encrypted cookie (Cookie), and sessions of
// an scs.SessionManager (SCS).
package session

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/authomatic/authomatic-sub000/oauth"
	"github.com/authomatic/authomatic-sub000/sdk/id"
	"github.com/hashicorp/go-hclog"
)

// idSize is the number of random bytes in a session id.
const idSize = 32

// Backend persists the values of server side sessions.
type Backend interface {
	// Load returns the values of session id and whether it exists.
	Load(ctx context.Context, id string) (map[string]string, bool, error)

	// Store replaces the values of session id and renews its lifetime.
	Store(ctx context.Context, id string, values map[string]string) error

	// Remove deletes session id.
	Remove(ctx context.Context, id string) error
}

// Manager hands out server side sessions identified by a cookie.  It's safe
// for concurrent use.
type Manager struct {
	backend Backend
	logger  hclog.Logger
	cookie  http.Cookie
}

// NewManager creates a Manager over backend.
// Supported options: WithLogger, WithCookieName, WithCookiePath, WithTTL,
// WithInsecureCookies, WithSameSite
func NewManager(backend Backend, opt ...Option) (*Manager, error) {
	const op = "session.NewManager"
	if backend == nil {
		return nil, fmt.Errorf("%s: backend is nil: %w", op, oauth.ErrNilParameter)
	}
	opts := getOpts(opt...)
	return &Manager{
		backend: backend,
		logger:  opts.withLogger,
		cookie: http.Cookie{
			Name:     opts.withCookieName,
			Path:     opts.withCookiePath,
			MaxAge:   int(opts.withTTL / time.Second),
			Secure:   !opts.withInsecure,
			HttpOnly: true,
			SameSite: opts.withSameSite,
		},
	}, nil
}

// Load returns the session of the user agent behind req.  A request without
// a session cookie, or with the id of an expired session, gets a new session
// whose cookie is set on w when the session is saved.
func (m *Manager) Load(w http.ResponseWriter, req *http.Request) (oauth.SessionStore, error) {
	const op = "session.(Manager).Load"
	if c, err := req.Cookie(m.cookie.Name); err == nil && c.Value != "" {
		values, ok, err := m.backend.Load(req.Context(), c.Value)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		if ok {
			return &Store{backend: m.backend, id: c.Value, values: values}, nil
		}
		m.logger.Debug("session cookie refers to an unknown session, starting a new one")
	}
	s, err := m.newStore()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	cookie := m.cookie
	cookie.Value = s.id
	s.onSave = func() { http.SetCookie(w, &cookie) }
	return s, nil
}

// Session returns the session with the given id, for callers that track
// session ids themselves.  Unknown ids start empty.
func (m *Manager) Session(ctx context.Context, id string) (*Store, error) {
	const op = "session.(Manager).Session"
	if id == "" {
		return nil, fmt.Errorf("%s: id is empty: %w", op, oauth.ErrInvalidParameter)
	}
	values, _, err := m.backend.Load(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &Store{backend: m.backend, id: id, values: values}, nil
}

func (m *Manager) newStore() (*Store, error) {
	sid, err := id.NewWithSize("", idSize)
	if err != nil {
		return nil, err
	}
	return &Store{backend: m.backend, id: sid}, nil
}

// Store is one server side session.  Writes are buffered until Save.
type Store struct {
	mu      sync.Mutex
	backend Backend
	id      string
	values  map[string]string
	dirty   bool
	onSave  func()
}

var _ oauth.SessionStore = (*Store)(nil)

// ID returns the session id.
func (s *Store) ID() string { return s.id }

// Get returns the value of key.
func (s *Store) Get(_ context.Context, key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.values[key]
	return v, ok, nil
}

// Set stores value under key.
func (s *Store) Set(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.values == nil {
		s.values = map[string]string{}
	}
	s.values[key] = value
	s.dirty = true
	return nil
}

// Delete removes key.
func (s *Store) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.values[key]; ok {
		delete(s.values, key)
		s.dirty = true
	}
	return nil
}

// Save writes the session to the backend when it changed, and sets the
// cookie of a new session.
func (s *Store) Save(ctx context.Context) error {
	const op = "session.(Store).Save"
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.dirty {
		return nil
	}
	values := make(map[string]string, len(s.values))
	for k, v := range s.values {
		values[k] = v
	}
	if err := s.backend.Store(ctx, s.id, values); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	s.dirty = false
	if s.onSave != nil {
		s.onSave()
		s.onSave = nil
	}
	return nil
}

// Destroy removes the session from the backend.
func (s *Store) Destroy(ctx context.Context) error {
	const op = "session.(Store).Destroy"
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.backend.Remove(ctx, s.id); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	s.values, s.dirty = nil, false
	return nil
}
