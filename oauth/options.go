package oauth

import (
	"time"

	"github.com/hashicorp/go-hclog"
)

// Option defines a common functional options type
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

// WithLogger provides an optional logger for: New, NewHTTPClient
func WithLogger(l hclog.Logger) Option {
	return func(o interface{}) {
		if l == nil {
			return
		}
		switch v := o.(type) {
		case *authomaticOptions:
			v.withLogger = l
		case *httpClientOptions:
			v.withLogger = l
		}
	}
}

// WithNow provides an optional clock for: New, NewRequestBuilder
func WithNow(now func() time.Time) Option {
	return func(o interface{}) {
		if now == nil {
			return
		}
		switch v := o.(type) {
		case *authomaticOptions:
			v.withNow = now
		case *builderOptions:
			v.withNow = now
		}
	}
}

// WithNonceFunc provides an optional nonce generator for: New,
// NewRequestBuilder.  The default is NewNonce.
func WithNonceFunc(fn func() (string, error)) Option {
	return func(o interface{}) {
		if fn == nil {
			return
		}
		switch v := o.(type) {
		case *authomaticOptions:
			v.withNonceFunc = fn
		case *builderOptions:
			v.withNonceFunc = fn
		}
	}
}

// WithTimeout provides an optional timeout for: New (per login and per
// access), NewHTTPClient (per request), Discover (per request)
func WithTimeout(d time.Duration) Option {
	return func(o interface{}) {
		switch v := o.(type) {
		case *authomaticOptions:
			v.withTimeout = d
		case *httpClientOptions:
			v.withTimeout = d
		case *discoverOptions:
			v.withTimeout = d
		}
	}
}

// WithProviderCA provides an optional CA certificate PEM used when
// connecting to providers for: NewHTTPClient, Discover
func WithProviderCA(caPEM string) Option {
	return func(o interface{}) {
		switch v := o.(type) {
		case *httpClientOptions:
			v.withProviderCA = caPEM
		case *discoverOptions:
			v.withProviderCA = caPEM
		}
	}
}
