package oauth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hashicorp/go-hclog"
	"golang.org/x/sync/semaphore"
)

// DefaultMaxConcurrentFetches bounds the AccessAsync requests running at
// once.
const DefaultMaxConcurrentFetches = 16

// Authomatic drives logins and resource access for the providers of a
// Registry.  It's safe for concurrent use; every login gets its own provider
// state and only the caller's SessionStore is shared.
type Authomatic struct {
	registry     *Registry
	client       HTTPClient
	logger       hclog.Logger
	prefix       string
	reportErrors bool
	timeout      time.Duration
	now          func() time.Time
	nonce        func() (string, error)
	callback     func(*LoginResult)
	fetches      *semaphore.Weighted
}

// authomaticOptions is the set of available options for New and Login
type authomaticOptions struct {
	withLogger               hclog.Logger
	withHTTPClient           HTTPClient
	withSessionPrefix        string
	withReportErrors         bool
	withTimeout              time.Duration
	withNow                  func() time.Time
	withNonceFunc            func() (string, error)
	withCallback             func(*LoginResult)
	withMaxConcurrentFetches int
}

func authomaticDefaults() authomaticOptions {
	return authomaticOptions{
		withLogger:               hclog.NewNullLogger(),
		withSessionPrefix:        DefaultSessionPrefix,
		withReportErrors:         true,
		withNow:                  time.Now,
		withNonceFunc:            NewNonce,
		withMaxConcurrentFetches: DefaultMaxConcurrentFetches,
	}
}

func getAuthomaticOpts(opt ...Option) authomaticOptions {
	opts := authomaticDefaults()
	ApplyOpts(&opts, opt...)
	return opts
}

// WithHTTPClient provides an optional HTTPClient for: New.  The default is a
// Client from NewHTTPClient.
func WithHTTPClient(c HTTPClient) Option {
	return func(o interface{}) {
		if o, ok := o.(*authomaticOptions); ok && c != nil {
			o.withHTTPClient = c
		}
	}
}

// WithSessionPrefix provides an optional first segment of session keys for:
// New.  Defaults to DefaultSessionPrefix.
func WithSessionPrefix(prefix string) Option {
	return func(o interface{}) {
		if o, ok := o.(*authomaticOptions); ok && prefix != "" {
			o.withSessionPrefix = prefix
		}
	}
}

// WithReportErrors provides an optional error policy for: New, Login.  When
// true, the default, login errors other than ErrConfig are returned on
// LoginResult.Error; when false they're returned as errors.
func WithReportErrors(report bool) Option {
	return func(o interface{}) {
		if o, ok := o.(*authomaticOptions); ok {
			o.withReportErrors = report
		}
	}
}

// WithCallback provides an optional func called with every terminal login
// result for: New, Login.  It isn't called when a login redirects.
func WithCallback(fn func(*LoginResult)) Option {
	return func(o interface{}) {
		if o, ok := o.(*authomaticOptions); ok {
			o.withCallback = fn
		}
	}
}

// WithMaxConcurrentFetches provides an optional bound on concurrent
// AccessAsync requests for: New
func WithMaxConcurrentFetches(n int) Option {
	return func(o interface{}) {
		if o, ok := o.(*authomaticOptions); ok && n > 0 {
			o.withMaxConcurrentFetches = n
		}
	}
}

// New creates an Authomatic for the providers of r.
// Supported options: WithLogger, WithHTTPClient, WithSessionPrefix,
// WithReportErrors, WithCallback, WithTimeout, WithNow, WithNonceFunc,
// WithMaxConcurrentFetches
func New(r *Registry, opt ...Option) (*Authomatic, error) {
	const op = "oauth.New"
	if r == nil {
		return nil, NewError(ErrConfig, WithOp(op), WithMsg("registry is nil"), WithWrap(ErrNilParameter))
	}
	opts := getAuthomaticOpts(opt...)
	client := opts.withHTTPClient
	if client == nil {
		c, err := NewHTTPClient(WithLogger(opts.withLogger.Named("http")))
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		client = c
	}
	return &Authomatic{
		registry:     r,
		client:       client,
		logger:       opts.withLogger,
		prefix:       opts.withSessionPrefix,
		reportErrors: opts.withReportErrors,
		timeout:      opts.withTimeout,
		now:          opts.withNow,
		nonce:        opts.withNonceFunc,
		callback:     opts.withCallback,
		fetches:      semaphore.NewWeighted(int64(opts.withMaxConcurrentFetches)),
	}, nil
}

// Registry returns the providers a is configured with.
func (a *Authomatic) Registry() *Registry {
	return a.registry
}

// Login runs one step of a login with the named provider for the inbound
// request behind adapter.  It returns a nil result and a nil error when it
// issued a redirect; the caller should then return without writing.
// Otherwise the result is terminal.  ErrConfig errors are always returned
// as errors.
// Supported options: WithReportErrors, WithCallback
func (a *Authomatic) Login(ctx context.Context, adapter Adapter, session SessionStore, name string, opt ...Option) (*LoginResult, error) {
	const op = "oauth.(Authomatic).Login"
	opts := authomaticOptions{
		withReportErrors: a.reportErrors,
		withCallback:     a.callback,
	}
	ApplyOpts(&opts, opt...)

	cfg, err := a.registry.Lookup(name)
	if err != nil {
		return nil, err
	}
	switch {
	case adapter == nil:
		return nil, NewError(ErrConfig, WithOp(op), WithMsg("adapter is nil"), WithWrap(ErrNilParameter))
	case session == nil:
		return nil, NewError(ErrConfig, WithOp(op), WithMsg("session store is nil"), WithWrap(ErrNilParameter))
	}

	p, err := a.newProvider(cfg)
	if err != nil {
		return nil, err
	}
	p.adapter = adapter
	p.session = newSessionView(session, a.prefix, cfg.Name)
	f, err := p.flow()
	if err != nil {
		return nil, err
	}

	ctx, cancel := a.withTimeout(ctx)
	defer cancel()
	result, err := f.login(ctx)
	if err != nil {
		if errors.Is(err, ErrConfig) || !opts.withReportErrors {
			return nil, err
		}
		if errors.Is(err, ErrCancellation) {
			p.logger.Info("login cancelled", "error", err)
		} else {
			p.logger.Error("login failed", "error", err)
		}
		result = &LoginResult{ProviderName: cfg.Name, Error: err}
	}
	if result == nil {
		return nil, nil
	}
	if result.Error == nil {
		p.logger.Info("login succeeded", "user_id", result.User.ID)
	}
	if opts.withCallback != nil {
		opts.withCallback(result)
	}
	return result, nil
}

// Credentials deserializes credentials produced by Serialize.
func (a *Authomatic) Credentials(serialized string) (*Credentials, error) {
	return a.registry.Deserialize(serialized)
}

// Serialize encodes credentials for storage.
func (a *Authomatic) Serialize(c *Credentials) (string, error) {
	return a.registry.Serialize(c)
}

// Refresh exchanges the refresh token of c and updates c in place.  It
// returns a nil Response and a nil error without any request when the
// provider doesn't refresh c.
func (a *Authomatic) Refresh(ctx context.Context, c *Credentials) (*Response, error) {
	const op = "oauth.(Authomatic).Refresh"
	if c == nil {
		return nil, NewError(ErrCredentials, WithOp(op), WithMsg("credentials are nil"), WithWrap(ErrNilParameter))
	}
	p, err := a.resourceProvider(c)
	if err != nil {
		return nil, err
	}
	f, err := p.flow()
	if err != nil {
		return nil, err
	}
	ctx, cancel := a.withTimeout(ctx)
	defer cancel()
	return f.refresh(ctx, c)
}

func (a *Authomatic) newProvider(cfg *ProviderConfig) (*provider, error) {
	b, err := NewRequestBuilder(cfg.Consumer, cfg.Behavior, WithNow(a.now), WithNonceFunc(a.nonce))
	if err != nil {
		return nil, err
	}
	return &provider{
		cfg:      cfg,
		behavior: cfg.Behavior,
		builder:  b,
		client:   a.client,
		logger:   a.logger.Named(cfg.Name),
		now:      a.now,
		nonce:    a.nonce,
	}, nil
}

// resourceProvider resolves the provider of c and attaches its consumer and
// identity to c.
func (a *Authomatic) resourceProvider(c *Credentials) (*provider, error) {
	cfg, err := a.registry.resolve(c)
	if err != nil {
		return nil, err
	}
	c.Consumer = cfg.Consumer
	c.ProviderName, c.ProviderID, c.ProviderKind = cfg.Name, cfg.ShortID, cfg.Kind()
	return a.newProvider(cfg)
}

func (a *Authomatic) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if a.timeout > 0 {
		return context.WithTimeout(ctx, a.timeout)
	}
	return context.WithCancel(ctx)
}
