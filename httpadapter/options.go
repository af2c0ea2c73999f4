package httpadapter

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

// options is the set of available options for New
type options struct {
	withTrustForwardedHeaders bool
	withMaxFormBytes          int64
}

func optionDefaults() options {
	return options{
		withMaxFormBytes: DefaultMaxFormBytes,
	}
}

func getOpts(opt ...Option) options {
	opts := optionDefaults()
	ApplyOpts(&opts, opt...)
	return opts
}

// WithTrustForwardedHeaders provides an optional flag for: New.  When true
// the request URL is built from X-Forwarded-Proto and X-Forwarded-Host, for
// applications behind a reverse proxy.
func WithTrustForwardedHeaders(trust bool) Option {
	return func(o interface{}) {
		if o, ok := o.(*options); ok {
			o.withTrustForwardedHeaders = trust
		}
	}
}

// WithMaxFormBytes provides an optional limit on the request body read for
// form parameters for: New.  Defaults to DefaultMaxFormBytes.
func WithMaxFormBytes(n int64) Option {
	return func(o interface{}) {
		if o, ok := o.(*options); ok && n > 0 {
			o.withMaxFormBytes = n
		}
	}
}
