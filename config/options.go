package config

import (
	"strings"

	"github.com/authomatic/authomatic-sub000/oauth/providers"
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

// options is the set of available options
type options struct {
	withClasses map[string]providers.Constructor
}

func getOpts(opt ...Option) options {
	opts := options{withClasses: map[string]providers.Constructor{}}
	ApplyOpts(&opts, opt...)
	return opts
}

// WithClass provides an optional provider class for: Registry.  It takes
// precedence over a built-in class of the same name.
func WithClass(name string, c providers.Constructor) Option {
	return func(o interface{}) {
		if o, ok := o.(*options); ok && name != "" && c != nil {
			o.withClasses[strings.ToLower(name)] = c
		}
	}
}
