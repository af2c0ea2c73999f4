package oauth

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"
)

// ProviderKind is the protocol family of a provider.  The numeric values are
// stable tags.
type ProviderKind int

const (
	KindUnknown ProviderKind = iota
	KindOAuth1
	KindOAuth2
	// KindOpenID is the legacy OpenID 2.0 family.  It isn't supported and a
	// registry rejects it.
	KindOpenID
)

func (k ProviderKind) String() string {
	switch k {
	case KindOAuth1:
		return "oauth1"
	case KindOAuth2:
		return "oauth2"
	case KindOpenID:
		return "openid"
	default:
		return "unknown"
	}
}

// ParseProviderKind is the inverse of ProviderKind.String.
func ParseProviderKind(s string) (ProviderKind, error) {
	switch strings.ToLower(s) {
	case "oauth1", "oauth1a":
		return KindOAuth1, nil
	case "oauth2":
		return KindOAuth2, nil
	case "openid":
		return KindOpenID, nil
	}
	return KindUnknown, fmt.Errorf("oauth.ParseProviderKind: unknown provider kind %q: %w", s, ErrInvalidParameter)
}

// ResourceAuth selects how an OAuth 2.0 access token is presented to a
// protected resource.
type ResourceAuth int

const (
	// ResourceAuthHeader sends "Authorization: Bearer <token>".
	ResourceAuthHeader ResourceAuth = iota
	// ResourceAuthQuery sends the token as a request parameter named by
	// Behavior.AccessTokenParam.
	ResourceAuthQuery
)

// DefaultAccessTokenParam is the parameter used by ResourceAuthQuery when
// Behavior.AccessTokenParam is empty.
const DefaultAccessTokenParam = "access_token"

// Behavior describes a provider: its endpoints and the hooks that adapt the
// generic OAuth 1.0a and OAuth 2.0 flows to the provider's quirks.  A
// Behavior is read-only once handed to a Registry and may be shared by
// concurrent logins.
type Behavior struct {
	// Name is the behavior's class name, e.g. "github".
	Name string

	// Kind selects the OAuth 1.0a or OAuth 2.0 flow.
	Kind ProviderKind

	// RequestTokenURL is the OAuth 1.0a temporary credentials endpoint.
	RequestTokenURL string

	// AuthorizationURL is the page the user is redirected to.
	AuthorizationURL string

	// AccessTokenURL is the token endpoint.
	AccessTokenURL string

	// UserInfoURL is fetched after a successful login to build the User.
	// When empty, the User is built from the access token response.
	UserInfoURL string

	// RequestTokenMethod is the method of the OAuth 1.0a request token
	// request.  Defaults to POST.
	RequestTokenMethod string

	// TokenRequestMethod is the method of access token and refresh token
	// requests.  Defaults to POST.
	TokenRequestMethod string

	// SignatureMethod is the OAuth 1.0a signature method.  Defaults to
	// HMACSHA1.
	SignatureMethod SignatureMethod

	// AuthStyle selects where OAuth 2.0 client credentials are sent on token
	// requests.  oauth2.AuthStyleInHeader sends them as HTTP Basic; any other
	// value sends them as body parameters.
	AuthStyle oauth2.AuthStyle

	// ResourceAuth selects how OAuth 2.0 tokens are presented to protected
	// resources.
	ResourceAuth ResourceAuth

	// AccessTokenParam names the token parameter for ResourceAuthQuery.
	AccessTokenParam string

	// ScopeSeparator joins scopes.  Defaults to a single space.
	ScopeSeparator string

	// NoCSRF disables the OAuth 2.0 state parameter for providers that
	// reject it.
	NoCSRF bool

	// UserInfoScope is the scope needed to read UserInfoURL.  It's used when
	// a ProviderConfig doesn't list any scope.
	UserInfoScope []string

	// UserAuthorizationParams are added to the user authorization redirect.
	UserAuthorizationParams Params

	// OfflineParams are added to the user authorization redirect when the
	// ProviderConfig asks for offline access.
	OfflineParams Params

	// AccessParams and AccessHeaders are added to every protected resource
	// request.
	AccessParams  Params
	AccessHeaders map[string]string

	// UserFields maps canonical User fields (see UserFieldNames) to dotted
	// paths into the user info payload, e.g. "username": "login" or
	// "first_name": "response.user.firstName".  Canonical fields not listed
	// are read from the key with the same name.
	UserFields map[string]string

	// UserParser runs after UserFields are applied, for shapes a field map
	// can't express.
	UserParser func(u *User, data any) error

	// CredentialsParser runs after the standard token response fields are
	// read, e.g. to accept "expires" instead of "expires_in".
	CredentialsParser func(c *Credentials, data map[string]any) error

	// RequestFilter may rewrite any request before it's sent.
	RequestFilter func(kind RequestKind, r *RequestElements, c *Credentials) error

	// ShouldRefresh decides whether credentials can be refreshed.  The
	// default refreshes OAuth 2.0 credentials that carry a refresh token.
	ShouldRefresh func(c *Credentials) bool

	// IDTokenVerifier, when set, verifies an id_token found in the OAuth 2.0
	// token response.  Its claims feed the User.
	IDTokenVerifier *oidc.IDTokenVerifier
}

// Endpoint returns the OAuth 2.0 endpoint of the behavior.
func (b *Behavior) Endpoint() oauth2.Endpoint {
	return oauth2.Endpoint{
		AuthURL:   b.AuthorizationURL,
		TokenURL:  b.AccessTokenURL,
		AuthStyle: b.AuthStyle,
	}
}

// Validate the behavior.
func (b *Behavior) Validate() error {
	const op = "oauth.(Behavior).Validate"
	if b == nil {
		return fmt.Errorf("%s: behavior is nil: %w", op, ErrNilParameter)
	}
	switch b.Kind {
	case KindOAuth1:
		if err := validURL(b.RequestTokenURL); err != nil {
			return fmt.Errorf("%s: %s request token url: %w", op, b.Name, err)
		}
		if b.SignatureMethod != "" && !b.SignatureMethod.Valid() {
			return fmt.Errorf("%s: %s signature method %q: %w", op, b.Name, b.SignatureMethod, ErrInvalidParameter)
		}
	case KindOAuth2:
	case KindOpenID:
		return fmt.Errorf("%s: %s: openid providers are not supported: %w", op, b.Name, ErrInvalidParameter)
	default:
		return fmt.Errorf("%s: %s: unknown provider kind %d: %w", op, b.Name, b.Kind, ErrInvalidParameter)
	}
	if err := validURL(b.AuthorizationURL); err != nil {
		return fmt.Errorf("%s: %s authorization url: %w", op, b.Name, err)
	}
	if err := validURL(b.AccessTokenURL); err != nil {
		return fmt.Errorf("%s: %s access token url: %w", op, b.Name, err)
	}
	if b.UserInfoURL != "" {
		if err := validURL(b.UserInfoURL); err != nil {
			return fmt.Errorf("%s: %s user info url: %w", op, b.Name, err)
		}
	}
	return nil
}

func validURL(s string) error {
	if s == "" {
		return fmt.Errorf("url is empty: %w", ErrInvalidParameter)
	}
	u, err := url.Parse(s)
	if err != nil {
		return fmt.Errorf("url %q is invalid: %w", s, ErrInvalidParameter)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("url %q scheme is not http or https: %w", s, ErrInvalidParameter)
	}
	if u.Host == "" {
		return fmt.Errorf("url %q has no host: %w", s, ErrInvalidParameter)
	}
	return nil
}

func (b *Behavior) scope(scopes []string) string {
	if len(scopes) == 0 {
		scopes = b.UserInfoScope
	}
	sep := b.ScopeSeparator
	if sep == "" {
		sep = " "
	}
	return strings.Join(scopes, sep)
}

func (b *Behavior) shouldRefresh(c *Credentials) bool {
	if c == nil {
		return false
	}
	if b.ShouldRefresh != nil {
		return b.ShouldRefresh(c)
	}
	return b.Kind == KindOAuth2 && c.RefreshToken != ""
}

func (b *Behavior) requestTokenMethod() string {
	if b.RequestTokenMethod != "" {
		return strings.ToUpper(b.RequestTokenMethod)
	}
	return http.MethodPost
}

func (b *Behavior) tokenRequestMethod() string {
	if b.TokenRequestMethod != "" {
		return strings.ToUpper(b.TokenRequestMethod)
	}
	return http.MethodPost
}

func (b *Behavior) signatureMethod() SignatureMethod {
	if b.SignatureMethod != "" {
		return b.SignatureMethod
	}
	return HMACSHA1
}

func (b *Behavior) accessTokenParam() string {
	if b.AccessTokenParam != "" {
		return b.AccessTokenParam
	}
	return DefaultAccessTokenParam
}
