package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
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

// DefaultNamespace prefixes every metric name.
const DefaultNamespace = "authomatic"

// options is the set of available options
type options struct {
	withRegisterer prometheus.Registerer
	withNamespace  string
	withBuckets    []float64
}

func optionDefaults() options {
	return options{
		withRegisterer: prometheus.DefaultRegisterer,
		withNamespace:  DefaultNamespace,
		withBuckets:    prometheus.DefBuckets,
	}
}

func getOpts(opt ...Option) options {
	opts := optionDefaults()
	ApplyOpts(&opts, opt...)
	return opts
}

// WithRegisterer provides an optional registerer for: NewClient.  Defaults to
// prometheus.DefaultRegisterer.
func WithRegisterer(r prometheus.Registerer) Option {
	return func(o interface{}) {
		if o, ok := o.(*options); ok && r != nil {
			o.withRegisterer = r
		}
	}
}

// WithNamespace provides an optional metric namespace for: NewClient.
// Defaults to DefaultNamespace.
func WithNamespace(ns string) Option {
	return func(o interface{}) {
		if o, ok := o.(*options); ok {
			o.withNamespace = ns
		}
	}
}

// WithBuckets provides optional latency histogram buckets, in seconds, for:
// NewClient.  Defaults to prometheus.DefBuckets.
func WithBuckets(b []float64) Option {
	return func(o interface{}) {
		if o, ok := o.(*options); ok && len(b) > 0 {
			o.withBuckets = b
		}
	}
}
