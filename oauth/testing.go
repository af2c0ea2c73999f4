package oauth

import (
	"bytes"
	"context"
	"net/http"
	"net/url"
	"sync"
)

// TestAdapter is an in-memory Adapter for tests.  It records what a login
// writes to the response.
type TestAdapter struct {
	mu       sync.Mutex
	url      string
	params   map[string]string
	cookies  map[string]string
	headers  map[string]string
	status   int
	header   http.Header
	body     bytes.Buffer
	redirect string
}

// NewTestAdapter returns a TestAdapter for an inbound request to rawURL.  The
// query of rawURL becomes the request params; params, when given, are merged
// over it.
func NewTestAdapter(rawURL string, params map[string]string) *TestAdapter {
	a := &TestAdapter{
		url:     rawURL,
		params:  map[string]string{},
		cookies: map[string]string{},
		headers: map[string]string{},
		header:  http.Header{},
	}
	if u, err := url.Parse(rawURL); err == nil {
		for k, v := range u.Query() {
			a.params[k] = v[len(v)-1]
		}
		u.RawQuery, u.Fragment = "", ""
		a.url = u.String()
	}
	for k, v := range params {
		a.params[k] = v
	}
	return a
}

// SetCookie sets an inbound request cookie.
func (a *TestAdapter) SetCookie(name, value string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.cookies[name] = value
}

// SetRequestHeader sets an inbound request header.
func (a *TestAdapter) SetRequestHeader(key, value string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.headers[key] = value
}

// Params implements Adapter.
func (a *TestAdapter) Params() map[string]string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return copyMap(a.params)
}

// URL implements Adapter.
func (a *TestAdapter) URL() string { return a.url }

// Write implements Adapter.
func (a *TestAdapter) Write(p []byte) (int, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.redirect != "" {
		return len(p), nil
	}
	return a.body.Write(p)
}

// SetHeader implements Adapter.
func (a *TestAdapter) SetHeader(key, value string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.header.Set(key, value)
}

// SetStatus implements Adapter.
func (a *TestAdapter) SetStatus(code int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.redirect == "" {
		a.status = code
	}
}

// Cookies implements Adapter.
func (a *TestAdapter) Cookies() map[string]string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return copyMap(a.cookies)
}

// Headers implements Adapter.
func (a *TestAdapter) Headers() map[string]string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return copyMap(a.headers)
}

// Redirect implements Adapter.
func (a *TestAdapter) Redirect(u string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.redirect = u
	a.status = http.StatusFound
	a.header.Set("Location", u)
	a.body.Reset()
}

// RedirectURL returns the URL the login redirected to, or "".
func (a *TestAdapter) RedirectURL() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.redirect
}

// Status returns the response status.
func (a *TestAdapter) Status() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.status
}

// Body returns the response body.
func (a *TestAdapter) Body() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.body.String()
}

// ResponseHeader returns a copy of the response headers.
func (a *TestAdapter) ResponseHeader() http.Header {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.header.Clone()
}

// TestSession is an in-memory SessionStore for tests.
type TestSession struct {
	mu       sync.Mutex
	values   map[string]string
	saved    map[string]string
	saves    int
	failWith error
}

// NewTestSession returns an empty TestSession.
func NewTestSession() *TestSession {
	return &TestSession{values: map[string]string{}, saved: map[string]string{}}
}

// SetError makes every following call fail with err.  A nil err clears it.
func (s *TestSession) SetError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failWith = err
}

// Get implements SessionStore.
func (s *TestSession) Get(_ context.Context, key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWith != nil {
		return "", false, s.failWith
	}
	v, ok := s.values[key]
	return v, ok, nil
}

// Set implements SessionStore.
func (s *TestSession) Set(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWith != nil {
		return s.failWith
	}
	s.values[key] = value
	return nil
}

// Delete implements SessionStore.
func (s *TestSession) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWith != nil {
		return s.failWith
	}
	delete(s.values, key)
	return nil
}

// Save implements SessionStore.
func (s *TestSession) Save(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWith != nil {
		return s.failWith
	}
	s.saved = copyMap(s.values)
	s.saves++
	return nil
}

// Values returns a copy of the current values, saved or not.
func (s *TestSession) Values() map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return copyMap(s.values)
}

// Saved returns a copy of the values as of the last Save.
func (s *TestSession) Saved() map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return copyMap(s.saved)
}

// Saves returns how many times Save succeeded.
func (s *TestSession) Saves() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saves
}

func copyMap(m map[string]string) map[string]string {
	cp := make(map[string]string, len(m))
	for k, v := range m {
		cp[k] = v
	}
	return cp
}
