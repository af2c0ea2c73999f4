package oauth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/hashicorp/go-hclog"
)

// LoginResult is the terminal outcome of a login.  Exactly one of User and
// Error is set.  Credentials are set with User.
type LoginResult struct {
	ProviderName string
	User         *User
	Credentials  *Credentials
	Error        error
}

// flow is a provider state machine.  login observes the inbound request and
// either issues a redirect and returns a nil result, or returns a terminal
// result or error.
type flow interface {
	login(ctx context.Context) (*LoginResult, error)
	refresh(ctx context.Context, c *Credentials) (*Response, error)
}

// provider holds what every flow shares.  One provider serves one login or
// one resource access and is discarded afterwards.
type provider struct {
	cfg      *ProviderConfig
	behavior *Behavior
	builder  *RequestBuilder
	adapter  Adapter
	session  *sessionView
	client   HTTPClient
	logger   hclog.Logger
	now      func() time.Time
	nonce    func() (string, error)
}

func (p *provider) flow() (flow, error) {
	const op = "oauth.(provider).flow"
	switch p.behavior.Kind {
	case KindOAuth1:
		return &oauth1Flow{provider: p}, nil
	case KindOAuth2:
		return &oauth2Flow{provider: p}, nil
	}
	return nil, NewError(ErrConfig, WithOp(op), WithMsg(fmt.Sprintf("provider %q kind %s is not supported", p.cfg.Name, p.behavior.Kind)))
}

func (p *provider) newCredentials() *Credentials {
	return &Credentials{
		ProviderName: p.cfg.Name,
		ProviderKind: p.cfg.Kind(),
		ProviderID:   p.cfg.ShortID,
		Consumer:     p.cfg.Consumer,
	}
}

// fetch sends a request.  Every transport error becomes ErrFailure.
func (p *provider) fetch(ctx context.Context, r *RequestElements) (*Response, error) {
	const op = "oauth.(provider).fetch"
	resp, err := p.client.Do(ctx, r)
	if err != nil {
		if errors.Is(err, ErrFailure) {
			return nil, err
		}
		return nil, NewError(ErrFailure, WithOp(op), WithMsg(fmt.Sprintf("%s request failed", r.Kind)), WithURL(r.URL), WithWrap(err))
	}
	return resp, nil
}

// request builds a protected resource request for c with the config's and
// behavior's access params and headers.
func (p *provider) request(c *Credentials, rawURL string, opts accessOptions) (*RequestElements, error) {
	header := p.cfg.accessHeaders()
	for k, v := range opts.withHeaders {
		header[k] = v
	}
	return p.builder.Build(ProtectedResourceRequest, RequestInput{
		URL:         rawURL,
		Method:      opts.withMethod,
		Params:      p.cfg.accessParams().Merge(opts.withParams),
		Header:      header,
		Body:        opts.withBody,
		Credentials: c,
	})
}

// access sends a protected resource request.
func (p *provider) access(ctx context.Context, c *Credentials, rawURL string, opts accessOptions) (*Response, error) {
	r, err := p.request(c, rawURL, opts)
	if err != nil {
		return nil, err
	}
	resp, err := p.fetch(ctx, r)
	if err != nil {
		return nil, err
	}
	if opts.withContentParser != nil {
		resp.parser = opts.withContentParser
	}
	return resp, nil
}

// fetchUser builds the User.  With a user info URL, Raw is the fetched
// payload and fallback only fills fields it left empty; otherwise the user is
// built from fallback.  Token values are stripped from fallback first.
func (p *provider) fetchUser(ctx context.Context, c *Credentials, fallback map[string]any) (*User, error) {
	const op = "oauth.(provider).fetchUser"
	fallback = withoutTokens(fallback)
	u := &User{ProviderName: p.cfg.Name, Credentials: c}
	if p.behavior.UserInfoURL == "" || p.cfg.NoUserInfo {
		if err := u.update(p.behavior, fallback); err != nil {
			return nil, NewError(ErrFailure, WithOp(op), WithMsg("unable to parse user"), WithWrap(err))
		}
		return u, nil
	}
	p.logger.Info("fetching user info", "url", stripQuery(p.behavior.UserInfoURL))
	resp, err := p.access(ctx, c, p.behavior.UserInfoURL, accessOptions{})
	if err != nil {
		return nil, err
	}
	if resp.Status != http.StatusOK {
		return nil, NewError(ErrFailure, WithOp(op), WithMsg("unable to fetch user info"), WithURL(p.behavior.UserInfoURL), WithStatus(resp.Status), WithOriginalMsg(resp.Content()))
	}
	data, err := resp.Data()
	if err != nil {
		return nil, NewError(ErrFailure, WithOp(op), WithMsg("unable to parse user info"), WithURL(p.behavior.UserInfoURL), WithStatus(resp.Status), WithOriginalMsg(resp.Content()), WithWrap(err))
	}
	if err := u.update(p.behavior, data); err != nil {
		return nil, NewError(ErrFailure, WithOp(op), WithMsg("unable to parse user info"), WithURL(p.behavior.UserInfoURL), WithWrap(err))
	}
	if len(fallback) > 0 {
		from := &User{}
		if err := from.update(p.behavior, fallback); err != nil {
			p.logger.Warn("unable to read user fields from token response", "error", err)
		} else {
			u.fill(from)
		}
	}
	return u, nil
}

// tokenKeys never reach User.Raw.
var tokenKeys = []string{"access_token", "refresh_token", "id_token", "oauth_token", "oauth_token_secret"}

func withoutTokens(m map[string]any) map[string]any {
	if len(m) == 0 {
		return m
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	for _, k := range tokenKeys {
		delete(out, k)
	}
	return out
}

// providerError describes a non-success token or resource response.
func providerError(op, msg string, resp *Response, rawURL string) *Error {
	detail := msg
	if m := resp.Map(); m != nil {
		for _, k := range []string{"error_description", "error_message", "error"} {
			if s := LookupString(m, k); s != "" {
				detail = msg + ": " + s
				break
			}
		}
	}
	return NewError(ErrFailure,
		WithOp(op),
		WithMsg(detail),
		WithURL(rawURL),
		WithStatus(resp.Status),
		WithOriginalMsg(strings.TrimSpace(resp.Content())),
	)
}
