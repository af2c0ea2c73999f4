package oauth

import (
	"context"
	"crypto/subtle"
	"fmt"
	"net/http"
	"strings"
)

const sessionStateKey = "state"

type oauth2Flow struct {
	*provider
}

// login dispatches on the callback parameters: a code completes the flow, an
// error ends it, and a request without either starts it.
func (p *oauth2Flow) login(ctx context.Context) (*LoginResult, error) {
	const op = "oauth.(oauth2Flow).login"
	params := p.adapter.Params()
	switch {
	case params["code"] != "":
		return p.callback(ctx, params)
	case params["error"] != "" || params["error_message"] != "":
		return nil, p.callbackError(ctx, params)
	case params["state"] != "":
		return nil, NewError(ErrFailure, WithOp(op), WithMsg("callback has a state but no code"), WithURL(p.behavior.AuthorizationURL))
	default:
		return nil, p.authorize(ctx)
	}
}

func (p *oauth2Flow) authorize(ctx context.Context) error {
	const op = "oauth.(oauth2Flow).authorize"
	p.logger.Info("starting OAuth 2.0 authorization")

	var state string
	if p.behavior.NoCSRF {
		p.logger.Warn("CSRF protection is disabled for this provider")
	} else {
		var err error
		if state, err = p.nonce(); err != nil {
			return NewError(ErrFailure, WithOp(op), WithMsg("unable to generate state"), WithWrap(err))
		}
		if err := p.session.set(ctx, sessionStateKey, state); err != nil {
			return NewError(ErrFailure, WithOp(op), WithMsg("unable to store state"), WithWrap(err))
		}
		if err := p.session.save(ctx); err != nil {
			return NewError(ErrFailure, WithOp(op), WithMsg("unable to save session"), WithWrap(err))
		}
	}

	r, err := p.builder.Build(UserAuthorizationRequest, RequestInput{
		URL:         p.behavior.AuthorizationURL,
		Params:      p.cfg.userAuthorizationParams(),
		RedirectURI: p.adapter.URL(),
		Scope:       p.behavior.scope(p.cfg.Scope),
		State:       state,
	})
	if err != nil {
		return err
	}
	p.logger.Info("redirecting user to the provider", "url", r.URL)
	p.adapter.Redirect(r.FullURL())
	return nil
}

func (p *oauth2Flow) callback(ctx context.Context, params map[string]string) (*LoginResult, error) {
	const op = "oauth.(oauth2Flow).callback"
	if !p.behavior.NoCSRF {
		stored, ok, err := p.session.get(ctx, sessionStateKey)
		if err != nil {
			return nil, NewError(ErrFailure, WithOp(op), WithMsg("unable to read state"), WithWrap(err))
		}
		got := params["state"]
		if !ok || stored == "" || got == "" || subtle.ConstantTimeCompare([]byte(got), []byte(stored)) != 1 {
			return nil, NewError(ErrCSRF, WithOp(op), WithMsg("state parameter doesn't match the session"), WithURL(p.behavior.AuthorizationURL))
		}
		if err := p.session.delete(ctx, sessionStateKey); err != nil {
			return nil, NewError(ErrFailure, WithOp(op), WithMsg("unable to delete state"), WithWrap(err))
		}
		if err := p.session.save(ctx); err != nil {
			return nil, NewError(ErrFailure, WithOp(op), WithMsg("unable to save session"), WithWrap(err))
		}
	}

	r, err := p.builder.Build(AccessTokenRequest, RequestInput{
		URL:         p.behavior.AccessTokenURL,
		Params:      p.cfg.AccessTokenParams,
		Code:        params["code"],
		RedirectURI: p.adapter.URL(),
	})
	if err != nil {
		return nil, err
	}
	p.logger.Info("fetching access token", "url", r.URL)
	resp, err := p.fetch(ctx, r)
	if err != nil {
		return nil, err
	}
	data := resp.Map()
	if resp.Status != http.StatusOK || LookupString(data, "access_token") == "" {
		return nil, providerError(op, "failed to obtain an access token", resp, p.behavior.AccessTokenURL)
	}

	c := p.newCredentials()
	if err := p.updateCredentials(c, data); err != nil {
		return nil, NewError(ErrFailure, WithOp(op), WithMsg("unable to parse credentials"), WithURL(p.behavior.AccessTokenURL), WithWrap(err))
	}

	fallback := data
	if p.behavior.IDTokenVerifier != nil {
		if raw := LookupString(data, "id_token"); raw != "" {
			claims, err := p.verifyIDToken(ctx, raw)
			if err != nil {
				return nil, err
			}
			fallback = claims
		}
	}

	u, err := p.fetchUser(ctx, c, fallback)
	if err != nil {
		return nil, err
	}
	return &LoginResult{ProviderName: p.cfg.Name, User: u, Credentials: c}, nil
}

func (p *oauth2Flow) verifyIDToken(ctx context.Context, raw string) (map[string]any, error) {
	const op = "oauth.(oauth2Flow).verifyIDToken"
	tk, err := p.behavior.IDTokenVerifier.Verify(ctx, raw)
	if err != nil {
		return nil, NewError(ErrFailure, WithOp(op), WithMsg("id_token verification failed"), WithURL(p.behavior.AccessTokenURL), WithWrap(err))
	}
	var claims map[string]any
	if err := tk.Claims(&claims); err != nil {
		return nil, NewError(ErrFailure, WithOp(op), WithMsg("unable to read id_token claims"), WithWrap(err))
	}
	return claims, nil
}

// callbackError classifies an error callback.  A reason mentioning "denied"
// is a cancellation; anything else is a failure.
func (p *oauth2Flow) callbackError(ctx context.Context, params map[string]string) error {
	const op = "oauth.(oauth2Flow).callbackError"
	if !p.behavior.NoCSRF {
		if err := p.session.delete(ctx, sessionStateKey); err == nil {
			_ = p.session.save(ctx)
		}
	}
	code := params["error"]
	if code == "" {
		code = params["error_message"]
	}
	reason := params["error_reason"]
	if reason == "" {
		reason = code
	}
	desc := params["error_description"]
	if desc == "" {
		desc = params["error_message"]
	}
	if desc == "" {
		desc = code
	}
	if strings.Contains(reason, "denied") {
		p.logger.Info("user denied access", "reason", reason)
		return NewError(ErrCancellation, WithOp(op), WithMsg(desc), WithOriginalMsg(code), WithURL(p.behavior.AuthorizationURL))
	}
	return NewError(ErrFailure, WithOp(op), WithMsg(desc), WithOriginalMsg(code), WithURL(p.behavior.AuthorizationURL))
}

// updateCredentials reads a token response into c.  A missing refresh token
// or token type keeps the current one.
func (p *oauth2Flow) updateCredentials(c *Credentials, data map[string]any) error {
	if tok := LookupString(data, "access_token"); tok != "" {
		c.Token = tok
	}
	if rt := LookupString(data, "refresh_token"); rt != "" {
		c.RefreshToken = rt
	}
	if exp, ok := toInt64(data["expires_in"]); ok {
		c.SetExpiresIn(p.now(), exp)
	}
	if tt, ok := data["token_type"]; ok {
		c.TokenType = NormalizeTokenType(Stringify(tt))
	}
	if p.behavior.CredentialsParser != nil {
		if err := p.behavior.CredentialsParser(c, data); err != nil {
			return fmt.Errorf("%s credentials parser: %w", p.behavior.Name, err)
		}
	}
	return nil
}

// refresh exchanges the refresh token of c and updates c in place.  It
// returns nil without a request when the behavior doesn't refresh c.
func (p *oauth2Flow) refresh(ctx context.Context, c *Credentials) (*Response, error) {
	const op = "oauth.(oauth2Flow).refresh"
	if !p.behavior.shouldRefresh(c) {
		return nil, nil
	}
	r, err := p.builder.Build(RefreshTokenRequest, RequestInput{
		URL:         p.behavior.AccessTokenURL,
		Credentials: c,
	})
	if err != nil {
		return nil, err
	}
	p.logger.Info("refreshing credentials", "url", r.URL)
	resp, err := p.fetch(ctx, r)
	if err != nil {
		return nil, err
	}
	data := resp.Map()
	if resp.Status != http.StatusOK || LookupString(data, "access_token") == "" {
		return resp, providerError(op, "failed to refresh credentials", resp, p.behavior.AccessTokenURL)
	}
	if err := p.updateCredentials(c, data); err != nil {
		return resp, NewError(ErrFailure, WithOp(op), WithMsg("unable to parse credentials"), WithURL(p.behavior.AccessTokenURL), WithWrap(err))
	}
	return resp, nil
}
