package oauth

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/oauth2"
)

// accessOptions is the set of available options for protected resource
// requests
type accessOptions struct {
	withMethod        string
	withParams        Params
	withHeaders       map[string]string
	withBody          []byte
	withContentParser ContentParser
}

func accessDefaults() accessOptions {
	return accessOptions{}
}

func getAccessOpts(opt ...Option) accessOptions {
	opts := accessDefaults()
	ApplyOpts(&opts, opt...)
	return opts
}

// WithMethod provides an optional HTTP method for: Access, AccessAsync,
// RequestElements.  Defaults to GET.
func WithMethod(method string) Option {
	return func(o interface{}) {
		if o, ok := o.(*accessOptions); ok {
			o.withMethod = method
		}
	}
}

// WithParams provides optional request params for: Access, AccessAsync,
// RequestElements
func WithParams(p Params) Option {
	return func(o interface{}) {
		if o, ok := o.(*accessOptions); ok {
			o.withParams = append(o.withParams, p...)
		}
	}
}

// WithHeaders provides optional request headers for: Access, AccessAsync,
// RequestElements
func WithHeaders(h map[string]string) Option {
	return func(o interface{}) {
		if o, ok := o.(*accessOptions); ok {
			if o.withHeaders == nil {
				o.withHeaders = make(map[string]string, len(h))
			}
			for k, v := range h {
				o.withHeaders[k] = v
			}
		}
	}
}

// WithBody provides an optional raw request body for: Access, AccessAsync,
// RequestElements.  With a body, params are sent on the query.
func WithBody(b []byte) Option {
	return func(o interface{}) {
		if o, ok := o.(*accessOptions); ok {
			o.withBody = b
		}
	}
}

// WithContentParser provides an optional parser of the response body for:
// Access, AccessAsync
func WithContentParser(p ContentParser) Option {
	return func(o interface{}) {
		if o, ok := o.(*accessOptions); ok {
			o.withContentParser = p
		}
	}
}

// Access sends a protected resource request on behalf of the user.  The
// credentials are copied; when they're expired and refreshable the copy is
// refreshed first and returned on Response.Refreshed.
// Supported options: WithMethod, WithParams, WithHeaders, WithBody,
// WithContentParser
func (a *Authomatic) Access(ctx context.Context, c Credentials, url string, opt ...Option) (*Response, error) {
	const op = "oauth.(Authomatic).Access"
	p, err := a.resourceProvider(&c)
	if err != nil {
		return nil, err
	}
	ctx, cancel := a.withTimeout(ctx)
	defer cancel()

	var refreshed *Credentials
	if p.behavior.shouldRefresh(&c) && !c.ValidAt(a.now()) {
		f, err := p.flow()
		if err != nil {
			return nil, err
		}
		p.logger.Info("credentials expired, refreshing before access")
		if _, err := f.refresh(ctx, &c); err != nil {
			return nil, NewError(ErrFailure, WithOp(op), WithMsg("unable to refresh credentials"), WithURL(p.behavior.AccessTokenURL), WithWrap(err))
		}
		refreshed = &c
	}

	resp, err := p.access(ctx, &c, url, getAccessOpts(opt...))
	if err != nil {
		return nil, err
	}
	if refreshed != nil {
		cp := *refreshed
		resp.Refreshed = &cp
	}
	return resp, nil
}

// AccessSerialized is Access with serialized credentials.
func (a *Authomatic) AccessSerialized(ctx context.Context, serialized, url string, opt ...Option) (*Response, error) {
	c, err := a.Credentials(serialized)
	if err != nil {
		return nil, err
	}
	return a.Access(ctx, *c, url, opt...)
}

// RequestElements builds, and signs for OAuth 1.0a, a protected resource
// request without sending it.
// Supported options: WithMethod, WithParams, WithHeaders, WithBody
func (a *Authomatic) RequestElements(c Credentials, url string, opt ...Option) (*RequestElements, error) {
	p, err := a.resourceProvider(&c)
	if err != nil {
		return nil, err
	}
	return p.request(&c, url, getAccessOpts(opt...))
}

// UpdateUser fetches the user info of stored credentials.
func (a *Authomatic) UpdateUser(ctx context.Context, c Credentials) (*User, error) {
	const op = "oauth.(Authomatic).UpdateUser"
	p, err := a.resourceProvider(&c)
	if err != nil {
		return nil, err
	}
	if p.behavior.UserInfoURL == "" {
		return nil, NewError(ErrConfig, WithOp(op), WithMsg(fmt.Sprintf("provider %q has no user info url", p.cfg.Name)))
	}
	ctx, cancel := a.withTimeout(ctx)
	defer cancel()
	return p.fetchUser(ctx, &c, nil)
}

// Handle is a pending AccessAsync request.
type Handle struct {
	done   chan struct{}
	cancel context.CancelFunc
	once   sync.Once
	resp   *Response
	err    error
}

// Response waits for the request to complete and returns its outcome.
func (h *Handle) Response() (*Response, error) {
	<-h.done
	return h.resp, h.err
}

// Done is closed when the request completes.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// Cancel asks the request to stop.  A request that already completed keeps
// its outcome.
func (h *Handle) Cancel() {
	h.once.Do(h.cancel)
}

// AccessAsync runs Access in its own goroutine.  At most the configured
// number of requests run at once; others wait for a slot or for ctx.
// Supported options: same as Access
func (a *Authomatic) AccessAsync(ctx context.Context, c Credentials, url string, opt ...Option) *Handle {
	const op = "oauth.(Authomatic).AccessAsync"
	ctx, cancel := context.WithCancel(ctx)
	h := &Handle{done: make(chan struct{}), cancel: cancel}
	go func() {
		defer close(h.done)
		defer h.Cancel()
		if err := a.fetches.Acquire(ctx, 1); err != nil {
			h.err = NewError(ErrFailure, WithOp(op), WithMsg("request was cancelled before it started"), WithURL(url), WithWrap(err))
			return
		}
		defer a.fetches.Release(1)
		h.resp, h.err = a.Access(ctx, c, url, opt...)
	}()
	return h
}

// TokenSource returns an oauth2.TokenSource over OAuth 2.0 credentials.
// Tokens are refreshed with the provider's behavior when they expire.
func (a *Authomatic) TokenSource(ctx context.Context, c Credentials) (oauth2.TokenSource, error) {
	const op = "oauth.(Authomatic).TokenSource"
	p, err := a.resourceProvider(&c)
	if err != nil {
		return nil, err
	}
	if p.behavior.Kind != KindOAuth2 {
		return nil, NewError(ErrConfig, WithOp(op), WithMsg(fmt.Sprintf("provider %q is not an oauth2 provider", p.cfg.Name)))
	}
	return oauth2.ReuseTokenSource(c.OAuth2Token(), &tokenSource{ctx: ctx, a: a, c: c}), nil
}

type tokenSource struct {
	ctx context.Context
	a   *Authomatic
	mu  sync.Mutex
	c   Credentials
}

func (s *tokenSource) Token() (*oauth2.Token, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	const op = "oauth.(tokenSource).Token"
	resp, err := s.a.Refresh(s.ctx, &s.c)
	if err != nil {
		return nil, err
	}
	if resp == nil {
		return nil, NewError(ErrFailure, WithOp(op), WithMsg(fmt.Sprintf("%s credentials expired and can't be refreshed", s.c.ProviderName)))
	}
	return s.c.OAuth2Token(), nil
}
