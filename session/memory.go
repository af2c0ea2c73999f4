package session

import (
	"context"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// Memory is an in-process Backend.  Sessions are lost on restart and aren't
// shared between instances.
type Memory struct {
	cache *gocache.Cache
}

var _ Backend = (*Memory)(nil)

// NewMemory creates a Memory backend.
// Supported options: WithTTL
func NewMemory(opt ...Option) *Memory {
	opts := getOpts(opt...)
	return &Memory{cache: gocache.New(opts.withTTL, time.Minute)}
}

// Load returns a copy of the values of session id.
func (m *Memory) Load(_ context.Context, id string) (map[string]string, bool, error) {
	v, ok := m.cache.Get(id)
	if !ok {
		return nil, false, nil
	}
	return copyValues(v.(map[string]string)), true, nil
}

// Store replaces the values of session id.
func (m *Memory) Store(_ context.Context, id string, values map[string]string) error {
	m.cache.Set(id, copyValues(values), gocache.DefaultExpiration)
	return nil
}

// Remove deletes session id.
func (m *Memory) Remove(_ context.Context, id string) error {
	m.cache.Delete(id)
	return nil
}

// Len returns the number of live sessions.
func (m *Memory) Len() int {
	return m.cache.ItemCount()
}

func copyValues(in map[string]string) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
