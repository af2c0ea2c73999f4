package oauth

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	sdkhttp "github.com/authomatic/authomatic-sub000/sdk/http"
	"github.com/hashicorp/go-hclog"
)

// HTTPClient performs provider requests.
type HTTPClient interface {
	Do(ctx context.Context, r *RequestElements) (*Response, error)
}

// DefaultMaxRedirects is the number of redirects a Client follows for
// protected resource GET requests.
const DefaultMaxRedirects = 4

// maxBodySize bounds provider response bodies.
const maxBodySize = 10 << 20

// Client is the default HTTPClient.  It follows redirects only for protected
// resource GET requests and never for token endpoints.
type Client struct {
	client       *http.Client
	maxRedirects int
	userAgent    string
	logger       hclog.Logger
}

// httpClientOptions is the set of available options for NewHTTPClient
type httpClientOptions struct {
	withProviderCA   string
	withTimeout      time.Duration
	withMaxRedirects int
	withUserAgent    string
	withLogger       hclog.Logger
	withClient       *http.Client
}

func httpClientDefaults() httpClientOptions {
	return httpClientOptions{
		withTimeout:      30 * time.Second,
		withMaxRedirects: DefaultMaxRedirects,
		withLogger:       hclog.NewNullLogger(),
	}
}

func getHTTPClientOpts(opt ...Option) httpClientOptions {
	opts := httpClientDefaults()
	ApplyOpts(&opts, opt...)
	return opts
}

// WithMaxRedirects provides an optional limit of followed redirects for:
// NewHTTPClient.  Zero disables redirects.
func WithMaxRedirects(n int) Option {
	return func(o interface{}) {
		if o, ok := o.(*httpClientOptions); ok && n >= 0 {
			o.withMaxRedirects = n
		}
	}
}

// WithUserAgent provides an optional User-Agent header for: NewHTTPClient
func WithUserAgent(ua string) Option {
	return func(o interface{}) {
		if o, ok := o.(*httpClientOptions); ok {
			o.withUserAgent = ua
		}
	}
}

// WithStdClient provides an optional *http.Client for: NewHTTPClient.  Its
// redirect policy is replaced.  WithProviderCA and WithTimeout are ignored
// when it's used.
func WithStdClient(c *http.Client) Option {
	return func(o interface{}) {
		if o, ok := o.(*httpClientOptions); ok {
			o.withClient = c
		}
	}
}

// NewHTTPClient creates a Client on a pooled transport.
// Supported options: WithProviderCA, WithTimeout, WithMaxRedirects,
// WithUserAgent, WithLogger, WithStdClient
func NewHTTPClient(opt ...Option) (*Client, error) {
	const op = "oauth.NewHTTPClient"
	opts := getHTTPClientOpts(opt...)
	c := opts.withClient
	if c == nil {
		var err error
		c, err = sdkhttp.NewClient(opts.withProviderCA, opts.withTimeout)
		if err != nil {
			if errors.Is(err, sdkhttp.ErrInvalidCertificatePem) {
				return nil, NewError(ErrConfig, WithOp(op), WithMsg("could not parse CA PEM value"), WithWrap(ErrInvalidCACert))
			}
			return nil, NewError(ErrConfig, WithOp(op), WithMsg("could not create an http client"), WithWrap(err))
		}
	} else {
		cp := *c
		cp.CheckRedirect = func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		}
		c = &cp
	}
	return &Client{
		client:       c,
		maxRedirects: opts.withMaxRedirects,
		userAgent:    opts.withUserAgent,
		logger:       opts.withLogger,
	}, nil
}

// Do sends the request.  Transport errors are returned as ErrFailure with the
// cause wrapped; a response with any status is returned as is.
func (c *Client) Do(ctx context.Context, r *RequestElements) (*Response, error) {
	const op = "oauth.(Client).Do"
	if r == nil {
		return nil, NewError(ErrProtocol, WithOp(op), WithMsg("request is nil"), WithWrap(ErrNilParameter))
	}
	follow := 0
	if r.Kind == ProtectedResourceRequest && r.Method == http.MethodGet {
		follow = c.maxRedirects
	}
	cur := r.FullURL()
	for hop := 0; ; hop++ {
		resp, err := c.do(ctx, r, cur)
		if err != nil {
			return nil, NewError(ErrFailure, WithOp(op), WithMsg(fmt.Sprintf("%s request failed", r.Kind)), WithURL(r.URL), WithWrap(err))
		}
		loc := resp.Header.Get("Location")
		if hop >= follow || !isRedirect(resp.Status) || loc == "" {
			return resp, nil
		}
		next, err := resolveRedirect(cur, loc)
		if err != nil {
			return nil, NewError(ErrFailure, WithOp(op), WithMsg("invalid redirect location"), WithURL(cur), WithStatus(resp.Status), WithWrap(err))
		}
		if next == cur {
			return nil, NewError(ErrFailure, WithOp(op), WithMsg("url redirects to itself"), WithURL(cur), WithStatus(resp.Status))
		}
		c.logger.Debug("following redirect", "from", stripQuery(cur), "to", stripQuery(next))
		cur = next
	}
}

func (c *Client) do(ctx context.Context, r *RequestElements, rawURL string) (*Response, error) {
	req, err := r.HTTPRequest(ctx)
	if err != nil {
		return nil, err
	}
	if rawURL != r.FullURL() {
		u, err := url.Parse(rawURL)
		if err != nil {
			return nil, err
		}
		if u.Host != req.URL.Host {
			req.Header.Del("Authorization")
		}
		req.URL = u
		req.Host = u.Host
	}
	if c.userAgent != "" && req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	c.logger.Debug("sending request", "kind", r.Kind.String(), "method", req.Method, "url", stripQuery(rawURL))
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, err
	}
	out := NewResponse(resp.StatusCode, resp.Header, body, nil)
	out.URL = rawURL
	return out, nil
}

func isRedirect(status int) bool {
	switch status {
	case http.StatusMovedPermanently, http.StatusFound, http.StatusSeeOther,
		http.StatusTemporaryRedirect, http.StatusPermanentRedirect:
		return true
	}
	return false
}

func resolveRedirect(cur, loc string) (string, error) {
	base, err := url.Parse(cur)
	if err != nil {
		return "", err
	}
	ref, err := url.Parse(loc)
	if err != nil {
		return "", err
	}
	return base.ResolveReference(ref).String(), nil
}

// stripQuery keeps tokens sent as query params out of logs.
func stripQuery(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	u.RawQuery = ""
	u.Fragment = ""
	return u.String()
}
