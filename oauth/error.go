package oauth

import (
	"errors"
	"fmt"
	"strings"
)

// Error kinds.  Every *Error returned by this package unwraps to exactly one
// of them, so callers can classify a failure with errors.Is.
var (
	// ErrConfig is a missing or invalid provider configuration.
	ErrConfig = errors.New("config error")

	// ErrCredentials means a serialized credentials blob is malformed or
	// refers to a provider that isn't registered.
	ErrCredentials = errors.New("credentials error")

	// ErrCSRF is a state mismatch on an OAuth 2.0 callback.
	ErrCSRF = errors.New("csrf error")

	// ErrCancellation means the user declined at the provider.
	ErrCancellation = errors.New("cancellation")

	// ErrFailure means the provider returned a non-success status or a
	// malformed response, or could not be reached.
	ErrFailure = errors.New("failure")

	// ErrProtocol is a request builder invariant violation.
	ErrProtocol = errors.New("protocol error")
)

var (
	ErrInvalidParameter  = errors.New("invalid parameter")
	ErrNilParameter      = errors.New("nil parameter")
	ErrNotFound          = errors.New("not found")
	ErrIdGeneratorFailed = errors.New("id generation failed")
	ErrInvalidCACert     = errors.New("invalid CA certificate")
)

// Error describes a failed login, refresh or resource access.
type Error struct {
	// Kind is one of ErrConfig, ErrCredentials, ErrCSRF, ErrCancellation,
	// ErrFailure or ErrProtocol.
	Kind error

	// Op is the operation that raised the error.
	Op string

	// Msg is a human readable message.
	Msg string

	// OriginalMsg is the raw error text or response body returned by the
	// provider, if any.
	OriginalMsg string

	// URL is the provider endpoint involved, if any.
	URL string

	// Status is the HTTP status returned by the provider, if any.
	Status int

	// Wrapped is the underlying cause, if any.
	Wrapped error
}

// NewError creates a new *Error of the given kind.
// Supported options: WithOp, WithMsg, WithOriginalMsg, WithURL, WithStatus,
// WithWrap
func NewError(kind error, opt ...Option) *Error {
	opts := getErrOpts(opt...)
	return &Error{
		Kind:        kind,
		Op:          opts.withOp,
		Msg:         opts.withMsg,
		OriginalMsg: opts.withOriginalMsg,
		URL:         opts.withURL,
		Status:      opts.withStatus,
		Wrapped:     opts.withWrap,
	}
}

// Error satisfies the error interface.
func (e *Error) Error() string {
	var b strings.Builder
	if e.Op != "" {
		b.WriteString(e.Op)
		b.WriteString(": ")
	}
	switch {
	case e.Msg != "":
		b.WriteString(e.Msg)
	case e.Kind != nil:
		b.WriteString(e.Kind.Error())
	default:
		b.WriteString("unknown error")
	}
	if e.Status != 0 {
		fmt.Fprintf(&b, " (status %d)", e.Status)
	}
	if e.Wrapped != nil {
		b.WriteString(": ")
		b.WriteString(e.Wrapped.Error())
	}
	return b.String()
}

// Unwrap returns the error kind and the wrapped cause.
func (e *Error) Unwrap() []error {
	errs := make([]error, 0, 2)
	if e.Kind != nil {
		errs = append(errs, e.Kind)
	}
	if e.Wrapped != nil {
		errs = append(errs, e.Wrapped)
	}
	return errs
}

// errOptions is the set of available options for NewError
type errOptions struct {
	withOp          string
	withMsg         string
	withOriginalMsg string
	withURL         string
	withStatus      int
	withWrap        error
}

func errDefaults() errOptions {
	return errOptions{}
}

func getErrOpts(opt ...Option) errOptions {
	opts := errDefaults()
	ApplyOpts(&opts, opt...)
	return opts
}

// WithOp provides an optional op (operation) for an error.
func WithOp(op string) Option {
	return func(o interface{}) {
		if o, ok := o.(*errOptions); ok {
			o.withOp = op
		}
	}
}

// WithMsg provides an optional message for an error.
func WithMsg(msg string) Option {
	return func(o interface{}) {
		if o, ok := o.(*errOptions); ok {
			o.withMsg = msg
		}
	}
}

// WithOriginalMsg provides the provider's raw error text for an error.
func WithOriginalMsg(msg string) Option {
	return func(o interface{}) {
		if o, ok := o.(*errOptions); ok {
			o.withOriginalMsg = msg
		}
	}
}

// WithURL provides the offending provider endpoint for an error.
func WithURL(u string) Option {
	return func(o interface{}) {
		if o, ok := o.(*errOptions); ok {
			o.withURL = u
		}
	}
}

// WithStatus provides the provider's HTTP status for an error.
func WithStatus(status int) Option {
	return func(o interface{}) {
		if o, ok := o.(*errOptions); ok {
			o.withStatus = status
		}
	}
}

// WithWrap provides an optional wrapped cause for an error.
func WithWrap(err error) Option {
	return func(o interface{}) {
		if o, ok := o.(*errOptions); ok {
			o.withWrap = err
		}
	}
}
