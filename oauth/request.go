package oauth

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/oauth2"
)

// RequestKind is one of the five requests a provider flow issues.
type RequestKind int

const (
	RequestTokenRequest RequestKind = iota + 1
	UserAuthorizationRequest
	AccessTokenRequest
	ProtectedResourceRequest
	RefreshTokenRequest
)

func (k RequestKind) String() string {
	switch k {
	case RequestTokenRequest:
		return "request_token"
	case UserAuthorizationRequest:
		return "user_authorization"
	case AccessTokenRequest:
		return "access_token"
	case ProtectedResourceRequest:
		return "protected_resource"
	case RefreshTokenRequest:
		return "refresh_token"
	default:
		return "unknown"
	}
}

const formContentType = "application/x-www-form-urlencoded"

// RequestElements is a fully built request, ready for an HTTPClient.
type RequestElements struct {
	Kind   RequestKind
	Method string

	// URL has no query; see Query.
	URL string

	Query Params
	Body  Params

	Header http.Header

	// RawBody, when set, is sent verbatim instead of the form encoded Body.
	RawBody []byte
}

// FullURL returns URL with the encoded Query.
func (r *RequestElements) FullURL() string {
	if len(r.Query) == 0 {
		return r.URL
	}
	return r.URL + "?" + r.Query.Encode()
}

// BodyBytes returns the request body.
func (r *RequestElements) BodyBytes() []byte {
	if r.RawBody != nil {
		return r.RawBody
	}
	if len(r.Body) == 0 {
		return nil
	}
	return []byte(r.Body.Encode())
}

// HTTPRequest converts the elements to an *http.Request.
func (r *RequestElements) HTTPRequest(ctx context.Context) (*http.Request, error) {
	const op = "oauth.(RequestElements).HTTPRequest"
	var body io.Reader
	if b := r.BodyBytes(); b != nil {
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, r.Method, r.FullURL(), body)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	for k, v := range r.Header {
		req.Header[k] = append([]string(nil), v...)
	}
	return req, nil
}

// RequestInput carries the per-call inputs of a request.
type RequestInput struct {
	// URL may carry a query; its params are kept.
	URL    string
	Method string
	Params Params
	Header map[string]string
	Body   []byte

	// Credentials are the current credentials.  During a login they're
	// partial: the request token for an OAuth 1.0a access token request.
	Credentials *Credentials

	// Callback and Verifier are OAuth 1.0a inputs.
	Callback string
	Verifier string

	// RedirectURI, Scope, State and Code are OAuth 2.0 inputs.
	RedirectURI string
	Scope       string
	State       string
	Code        string
}

// RequestBuilder assembles RequestElements for one provider.
type RequestBuilder struct {
	consumer Consumer
	behavior *Behavior
	now      func() time.Time
	nonce    func() (string, error)
}

// builderOptions is the set of available options for NewRequestBuilder
type builderOptions struct {
	withNow       func() time.Time
	withNonceFunc func() (string, error)
}

func builderDefaults() builderOptions {
	return builderOptions{
		withNow:       time.Now,
		withNonceFunc: NewNonce,
	}
}

func getBuilderOpts(opt ...Option) builderOptions {
	opts := builderDefaults()
	ApplyOpts(&opts, opt...)
	return opts
}

// NewRequestBuilder creates a RequestBuilder.
// Supported options: WithNow, WithNonceFunc
func NewRequestBuilder(consumer Consumer, b *Behavior, opt ...Option) (*RequestBuilder, error) {
	const op = "oauth.NewRequestBuilder"
	if b == nil {
		return nil, NewError(ErrConfig, WithOp(op), WithMsg("behavior is nil"), WithWrap(ErrNilParameter))
	}
	opts := getBuilderOpts(opt...)
	return &RequestBuilder{
		consumer: consumer,
		behavior: b,
		now:      opts.withNow,
		nonce:    opts.withNonceFunc,
	}, nil
}

// Build assembles the request of the given kind.  Signing happens here for
// OAuth 1.0a.  The behavior's RequestFilter runs last.
func (b *RequestBuilder) Build(kind RequestKind, in RequestInput) (*RequestElements, error) {
	const op = "oauth.(RequestBuilder).Build"
	if in.URL == "" {
		return nil, NewError(ErrProtocol, WithOp(op), WithMsg(fmt.Sprintf("%s url is empty", kind)))
	}
	if b.consumer.Key == "" {
		return nil, NewError(ErrConfig, WithOp(op), WithMsg("consumer key is empty"))
	}
	var (
		r   *RequestElements
		err error
	)
	switch b.behavior.Kind {
	case KindOAuth1:
		r, err = b.oauth1(kind, in)
	case KindOAuth2:
		r, err = b.oauth2(kind, in)
	default:
		return nil, NewError(ErrConfig, WithOp(op), WithMsg(fmt.Sprintf("provider kind %s can't build requests", b.behavior.Kind)))
	}
	if err != nil {
		return nil, err
	}
	if b.behavior.RequestFilter != nil {
		if err := b.behavior.RequestFilter(kind, r, in.Credentials); err != nil {
			return nil, NewError(ErrProtocol, WithOp(op), WithMsg(fmt.Sprintf("%s request filter", kind)), WithWrap(err))
		}
	}
	return r, nil
}

func (b *RequestBuilder) oauth1(kind RequestKind, in RequestInput) (*RequestElements, error) {
	const op = "oauth.(RequestBuilder).oauth1"
	c := in.Credentials
	var (
		method      string
		params      Params
		tokenSecret string
		sign        = true
	)
	switch kind {
	case RequestTokenRequest:
		if in.Callback == "" {
			return nil, NewError(ErrProtocol, WithOp(op), WithMsg("callback is empty"))
		}
		method = orDefault(in.Method, b.behavior.requestTokenMethod())
		params = params.Add("oauth_consumer_key", b.consumer.Key).Add("oauth_callback", in.Callback)
	case UserAuthorizationRequest:
		if c == nil || c.Token == "" {
			return nil, NewError(ErrProtocol, WithOp(op), WithMsg("request token is empty"))
		}
		method = http.MethodGet
		params = params.Add("oauth_token", c.Token)
		sign = false
	case AccessTokenRequest:
		if c == nil || c.Token == "" {
			return nil, NewError(ErrProtocol, WithOp(op), WithMsg("request token is empty"))
		}
		if in.Verifier == "" {
			return nil, NewError(ErrProtocol, WithOp(op), WithMsg("verifier is empty"))
		}
		method = orDefault(in.Method, b.behavior.tokenRequestMethod())
		params = params.Add("oauth_token", c.Token).Add("oauth_consumer_key", b.consumer.Key).Add("oauth_verifier", in.Verifier)
		tokenSecret = c.TokenSecret
	case ProtectedResourceRequest:
		if c == nil || c.Token == "" || c.TokenSecret == "" {
			return nil, NewError(ErrProtocol, WithOp(op), WithMsg("access token or token secret is empty"))
		}
		method = orDefault(in.Method, http.MethodGet)
		params = params.Add("oauth_token", c.Token).Add("oauth_consumer_key", b.consumer.Key)
		tokenSecret = c.TokenSecret
	case RefreshTokenRequest:
		return nil, NewError(ErrProtocol, WithOp(op), WithMsg("oauth 1.0a doesn't support refresh"))
	default:
		return nil, NewError(ErrProtocol, WithOp(op), WithMsg(fmt.Sprintf("unknown request kind %d", kind)))
	}

	base, query, err := splitURL(in.URL)
	if err != nil {
		return nil, NewError(ErrProtocol, WithOp(op), WithMsg("invalid url"), WithWrap(err))
	}
	all := append(query, in.Params...)
	all = append(all, params...)

	if sign {
		if b.consumer.Secret == "" {
			return nil, NewError(ErrConfig, WithOp(op), WithMsg("consumer secret is empty"))
		}
		nonce, err := b.nonce()
		if err != nil {
			return nil, NewError(ErrProtocol, WithOp(op), WithMsg("unable to generate nonce"), WithWrap(err))
		}
		sm := b.behavior.signatureMethod()
		all = all.Add("oauth_signature_method", string(sm)).
			Add("oauth_timestamp", strconv.FormatInt(b.now().Unix(), 10)).
			Add("oauth_nonce", nonce).
			Add("oauth_version", "1.0")
		sig, err := Sign(sm, method, base, all, string(b.consumer.Secret), tokenSecret)
		if err != nil {
			return nil, NewError(ErrProtocol, WithOp(op), WithMsg("unable to sign request"), WithWrap(err))
		}
		all = all.Add("oauth_signature", sig)
	}
	return place(kind, method, base, all, in.Header, in.Body), nil
}

func (b *RequestBuilder) oauth2(kind RequestKind, in RequestInput) (*RequestElements, error) {
	const op = "oauth.(RequestBuilder).oauth2"
	c := in.Credentials
	var (
		method string
		params Params
		header = map[string]string{}
	)
	clientAuth := func() error {
		if b.consumer.Secret == "" {
			return NewError(ErrConfig, WithOp(op), WithMsg("consumer secret is empty"))
		}
		if b.behavior.AuthStyle == oauth2.AuthStyleInHeader {
			header["Authorization"] = basicAuth(b.consumer.Key, string(b.consumer.Secret))
			return nil
		}
		params = params.Add("client_id", b.consumer.Key).Add("client_secret", string(b.consumer.Secret))
		return nil
	}
	switch kind {
	case UserAuthorizationRequest:
		if in.RedirectURI == "" {
			return nil, NewError(ErrProtocol, WithOp(op), WithMsg("redirect uri is empty"))
		}
		method = http.MethodGet
		params = params.Add("client_id", b.consumer.Key).Add("redirect_uri", in.RedirectURI)
		if in.Scope != "" {
			params = params.Add("scope", in.Scope)
		}
		if in.State != "" {
			params = params.Add("state", in.State)
		}
		params = params.Add("response_type", "code")
	case AccessTokenRequest:
		if in.Code == "" {
			return nil, NewError(ErrProtocol, WithOp(op), WithMsg("authorization code is empty"))
		}
		if in.RedirectURI == "" {
			return nil, NewError(ErrProtocol, WithOp(op), WithMsg("redirect uri is empty"))
		}
		method = orDefault(in.Method, b.behavior.tokenRequestMethod())
		params = params.Add("code", in.Code)
		if err := clientAuth(); err != nil {
			return nil, err
		}
		params = params.Add("redirect_uri", in.RedirectURI).Add("grant_type", "authorization_code")
	case RefreshTokenRequest:
		if c == nil || c.RefreshToken == "" {
			return nil, NewError(ErrProtocol, WithOp(op), WithMsg("refresh token is empty"))
		}
		method = orDefault(in.Method, b.behavior.tokenRequestMethod())
		params = params.Add("refresh_token", c.RefreshToken)
		if err := clientAuth(); err != nil {
			return nil, err
		}
		params = params.Add("grant_type", "refresh_token")
	case ProtectedResourceRequest:
		if c == nil || c.Token == "" {
			return nil, NewError(ErrProtocol, WithOp(op), WithMsg("access token is empty"))
		}
		method = orDefault(in.Method, http.MethodGet)
		switch b.behavior.ResourceAuth {
		case ResourceAuthQuery:
			params = params.Add(b.behavior.accessTokenParam(), c.Token)
		default:
			header["Authorization"] = "Bearer " + c.Token
		}
	case RequestTokenRequest:
		return nil, NewError(ErrProtocol, WithOp(op), WithMsg("oauth 2.0 has no request token"))
	default:
		return nil, NewError(ErrProtocol, WithOp(op), WithMsg(fmt.Sprintf("unknown request kind %d", kind)))
	}

	base, query, err := splitURL(in.URL)
	if err != nil {
		return nil, NewError(ErrProtocol, WithOp(op), WithMsg("invalid url"), WithWrap(err))
	}
	all := append(query, params...)
	all = all.Merge(in.Params)
	for k, v := range in.Header {
		header[k] = v
	}
	return place(kind, method, base, all, header, in.Body), nil
}

// place puts params on the query for GET-like methods and in a form body for
// POST, PUT and PATCH.  With a raw body the params stay on the query.
func place(kind RequestKind, method, base string, params Params, header map[string]string, raw []byte) *RequestElements {
	r := &RequestElements{
		Kind:   kind,
		Method: strings.ToUpper(method),
		URL:    base,
		Header: http.Header{},
	}
	for k, v := range header {
		r.Header.Set(k, v)
	}
	switch {
	case raw != nil:
		r.Query = params
		r.RawBody = raw
	case r.Method == http.MethodPost || r.Method == http.MethodPut || r.Method == http.MethodPatch:
		r.Body = params
		if r.Header.Get("Content-Type") == "" {
			r.Header.Set("Content-Type", formContentType)
		}
	default:
		r.Query = params
	}
	return r
}

func basicAuth(id, secret string) string {
	creds := url.QueryEscape(id) + ":" + url.QueryEscape(secret)
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(creds))
}

func orDefault(s, def string) string {
	if s != "" {
		return strings.ToUpper(s)
	}
	return def
}
