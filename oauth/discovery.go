package oauth

import (
	"context"
	"fmt"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"

	sdkhttp "github.com/authomatic/authomatic-sub000/sdk/http"
)

// discoverOptions is the set of available options for Discover
type discoverOptions struct {
	withProviderCA string
	withTimeout    time.Duration
	withScopes     []string
}

func discoverDefaults() discoverOptions {
	return discoverOptions{
		withTimeout: 30 * time.Second,
		withScopes:  []string{oidc.ScopeOpenID, "profile", "email"},
	}
}

func getDiscoverOpts(opt ...Option) discoverOptions {
	opts := discoverDefaults()
	ApplyOpts(&opts, opt...)
	return opts
}

// WithScopes provides optional default scopes of a discovered behavior for:
// Discover.  Defaults to openid, profile and email.
func WithScopes(scopes ...string) Option {
	return func(o interface{}) {
		if o, ok := o.(*discoverOptions); ok && len(scopes) > 0 {
			o.withScopes = scopes
		}
	}
}

// oidcUserFields maps standard OIDC claims to User fields.
var oidcUserFields = map[string]string{
	"id":          "sub",
	"username":    "preferred_username",
	"first_name":  "given_name",
	"last_name":   "family_name",
	"link":        "profile",
	"birth_date":  "birthdate",
	"timezone":    "zoneinfo",
	"phone":       "phone_number",
	"city":        "address.locality",
	"country":     "address.country",
	"postal_code": "address.postal_code",
}

// Discover builds an OAuth 2.0 Behavior from an OIDC issuer's discovery
// document.  The behavior verifies id_tokens issued to clientID and feeds
// their claims to the User.
// Supported options: WithProviderCA, WithTimeout, WithScopes
func Discover(ctx context.Context, name, issuer, clientID string, opt ...Option) (*Behavior, error) {
	const op = "oauth.Discover"
	switch {
	case name == "":
		return nil, NewError(ErrConfig, WithOp(op), WithMsg("behavior name is empty"), WithWrap(ErrInvalidParameter))
	case issuer == "":
		return nil, NewError(ErrConfig, WithOp(op), WithMsg("issuer is empty"), WithWrap(ErrInvalidParameter))
	case clientID == "":
		return nil, NewError(ErrConfig, WithOp(op), WithMsg("client id is empty"), WithWrap(ErrInvalidParameter))
	}
	opts := getDiscoverOpts(opt...)
	client, err := sdkhttp.NewClient(opts.withProviderCA, opts.withTimeout)
	if err != nil {
		return nil, NewError(ErrConfig, WithOp(op), WithMsg("could not parse CA PEM value"), WithWrap(ErrInvalidCACert))
	}
	// the verifier keeps using the client carried by this context to fetch
	// keys, so it must outlive the call.
	oidcCtx := sdkhttp.ClientContext(context.WithoutCancel(ctx), client)
	p, err := oidc.NewProvider(oidcCtx, issuer)
	if err != nil {
		return nil, NewError(ErrConfig, WithOp(op), WithMsg(fmt.Sprintf("unable to discover issuer %q", issuer)), WithURL(issuer), WithWrap(err))
	}
	var claims struct {
		UserInfoURL      string   `json:"userinfo_endpoint"`
		SigningAlgs      []string `json:"id_token_signing_alg_values_supported"`
		TokenAuthMethods []string `json:"token_endpoint_auth_methods_supported"`
	}
	if err := p.Claims(&claims); err != nil {
		return nil, NewError(ErrConfig, WithOp(op), WithMsg("unable to read discovery document"), WithURL(issuer), WithWrap(err))
	}

	ep := p.Endpoint()
	fields := make(map[string]string, len(oidcUserFields))
	for k, v := range oidcUserFields {
		fields[k] = v
	}
	b := &Behavior{
		Name:             name,
		Kind:             KindOAuth2,
		AuthorizationURL: ep.AuthURL,
		AccessTokenURL:   ep.TokenURL,
		UserInfoURL:      claims.UserInfoURL,
		AuthStyle:        authStyle(claims.TokenAuthMethods),
		UserInfoScope:    append([]string(nil), opts.withScopes...),
		UserFields:       fields,
		IDTokenVerifier: p.Verifier(&oidc.Config{
			ClientID:             clientID,
			SupportedSigningAlgs: claims.SigningAlgs,
		}),
	}
	if err := b.Validate(); err != nil {
		return nil, NewError(ErrConfig, WithOp(op), WithMsg("discovered behavior is invalid"), WithURL(issuer), WithWrap(err))
	}
	return b, nil
}

// authStyle prefers client_secret_post, which is also the default when the
// issuer doesn't list its methods.
func authStyle(methods []string) oauth2.AuthStyle {
	if len(methods) == 0 {
		return oauth2.AuthStyleInParams
	}
	for _, m := range methods {
		if m == "client_secret_post" {
			return oauth2.AuthStyleInParams
		}
	}
	for _, m := range methods {
		if m == "client_secret_basic" {
			return oauth2.AuthStyleInHeader
		}
	}
	return oauth2.AuthStyleInParams
}
