package session

import (
	"net/http"
	"time"

	"github.com/hashicorp/go-hclog"
)

// Option defines a common functional options type which can be used in a
// variadic parameter pattern.
type Option func(interface{})

// ApplyOpts takes a pointer to the options struct as a set of default options
// and applies the slice of opts as overrides.
func ApplyOpts(opts interface{}, opt ...Option) {
	for _, o := range opt {
		if o == nil {
			continue
		}
		o(opts)
	}
}

const (
	// DefaultCookieName names the cookie carrying the session id or, for
	// Cookie, the session itself.
	DefaultCookieName = "authomatic_session"

	// DefaultTTL is how long an untouched session lives.
	DefaultTTL = time.Hour

	// DefaultKeyPrefix prefixes Redis keys.
	DefaultKeyPrefix = "authomatic:session:"
)

// options is the set of available options
type options struct {
	withLogger     hclog.Logger
	withCookieName string
	withCookiePath string
	withTTL        time.Duration
	withInsecure   bool
	withSameSite   http.SameSite
	withKeyPrefix  string
	withNow        func() time.Time
}

func optionDefaults() options {
	return options{
		withLogger:     hclog.NewNullLogger(),
		withCookieName: DefaultCookieName,
		withCookiePath: "/",
		withTTL:        DefaultTTL,
		withSameSite:   http.SameSiteLaxMode,
		withKeyPrefix:  DefaultKeyPrefix,
		withNow:        time.Now,
	}
}

func getOpts(opt ...Option) options {
	opts := optionDefaults()
	ApplyOpts(&opts, opt...)
	return opts
}

// WithLogger provides an optional logger for: NewManager, NewCookie
func WithLogger(l hclog.Logger) Option {
	return func(o interface{}) {
		if o, ok := o.(*options); ok && l != nil {
			o.withLogger = l
		}
	}
}

// WithCookieName provides an optional cookie name for: NewManager, NewCookie.
// Defaults to DefaultCookieName.
func WithCookieName(name string) Option {
	return func(o interface{}) {
		if o, ok := o.(*options); ok && name != "" {
			o.withCookieName = name
		}
	}
}

// WithCookiePath provides an optional cookie path for: NewManager,
// NewCookie.  Defaults to "/".
func WithCookiePath(path string) Option {
	return func(o interface{}) {
		if o, ok := o.(*options); ok && path != "" {
			o.withCookiePath = path
		}
	}
}

// WithTTL provides an optional session lifetime for: NewManager, NewCookie,
// NewMemory, NewRedis.  Defaults to DefaultTTL.
func WithTTL(d time.Duration) Option {
	return func(o interface{}) {
		if o, ok := o.(*options); ok && d > 0 {
			o.withTTL = d
		}
	}
}

// WithInsecureCookies provides an optional flag for: NewManager, NewCookie.
// When true, cookies are sent over plain http, which is only fit for local
// development.
func WithInsecureCookies(insecure bool) Option {
	return func(o interface{}) {
		if o, ok := o.(*options); ok {
			o.withInsecure = insecure
		}
	}
}

// WithSameSite provides an optional SameSite cookie attribute for:
// NewManager, NewCookie.  Defaults to http.SameSiteLaxMode.  Strict mode
// drops the cookie on the provider's redirect back.
func WithSameSite(s http.SameSite) Option {
	return func(o interface{}) {
		if o, ok := o.(*options); ok && s != 0 {
			o.withSameSite = s
		}
	}
}

// WithKeyPrefix provides an optional key prefix for: NewRedis.  Defaults to
// DefaultKeyPrefix.
func WithKeyPrefix(prefix string) Option {
	return func(o interface{}) {
		if o, ok := o.(*options); ok && prefix != "" {
			o.withKeyPrefix = prefix
		}
	}
}

// WithNow provides an optional func returning the current time for:
// NewCookie
func WithNow(fn func() time.Time) Option {
	return func(o interface{}) {
		if o, ok := o.(*options); ok && fn != nil {
			o.withNow = fn
		}
	}
}
