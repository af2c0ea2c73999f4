package oauth

import (
	"context"
	"fmt"
)

// DefaultSessionPrefix is the first segment of every session key.
const DefaultSessionPrefix = "authomatic"

// SessionStore carries login state across the provider redirect.  It holds
// the values of one user session and must be integrity protected; the OAuth
// 1.0a token secret it stores must not be readable by the user agent.
type SessionStore interface {
	// Get returns the value of key and whether it's present.
	Get(ctx context.Context, key string) (string, bool, error)

	// Set stores value under key.
	Set(ctx context.Context, key, value string) error

	// Delete removes key.
	Delete(ctx context.Context, key string) error

	// Save makes previous writes durable.  A login calls it before issuing a
	// redirect.
	Save(ctx context.Context) error
}

// SessionKey returns prefix:provider:key.
func SessionKey(prefix, provider, key string) string {
	return prefix + ":" + provider + ":" + key
}

// sessionView scopes a SessionStore to one provider.
type sessionView struct {
	store    SessionStore
	prefix   string
	provider string
}

func newSessionView(store SessionStore, prefix, provider string) *sessionView {
	if prefix == "" {
		prefix = DefaultSessionPrefix
	}
	return &sessionView{store: store, prefix: prefix, provider: provider}
}

func (s *sessionView) key(k string) string {
	return SessionKey(s.prefix, s.provider, k)
}

func (s *sessionView) get(ctx context.Context, k string) (string, bool, error) {
	const op = "oauth.(sessionView).get"
	v, ok, err := s.store.Get(ctx, s.key(k))
	if err != nil {
		return "", false, fmt.Errorf("%s: unable to read %s: %w", op, s.key(k), err)
	}
	return v, ok, nil
}

func (s *sessionView) set(ctx context.Context, k, v string) error {
	const op = "oauth.(sessionView).set"
	if err := s.store.Set(ctx, s.key(k), v); err != nil {
		return fmt.Errorf("%s: unable to write %s: %w", op, s.key(k), err)
	}
	return nil
}

func (s *sessionView) delete(ctx context.Context, k string) error {
	const op = "oauth.(sessionView).delete"
	if err := s.store.Delete(ctx, s.key(k)); err != nil {
		return fmt.Errorf("%s: unable to delete %s: %w", op, s.key(k), err)
	}
	return nil
}

func (s *sessionView) save(ctx context.Context) error {
	const op = "oauth.(sessionView).save"
	if err := s.store.Save(ctx); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}
