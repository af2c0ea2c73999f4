package oauth

import (
	"context"
	"net/http"
)

const sessionTokenSecretKey = "token_secret"

type oauth1Flow struct {
	*provider
}

// login dispatches on the callback parameters: a denial ends the flow, a
// token or verifier completes it, and a request without either starts it.
func (p *oauth1Flow) login(ctx context.Context) (*LoginResult, error) {
	const op = "oauth.(oauth1Flow).login"
	params := p.adapter.Params()
	switch {
	case params["denied"] != "":
		p.cleanup(ctx)
		p.logger.Info("user denied access")
		return nil, NewError(ErrCancellation, WithOp(op), WithMsg("user denied access"), WithOriginalMsg(params["denied"]), WithURL(p.behavior.AuthorizationURL))
	case params["oauth_token"] != "" || params["oauth_verifier"] != "":
		return p.callback(ctx, params)
	default:
		return nil, p.authorize(ctx)
	}
}

func (p *oauth1Flow) authorize(ctx context.Context) error {
	const op = "oauth.(oauth1Flow).authorize"
	p.logger.Info("starting OAuth 1.0a authorization")

	r, err := p.builder.Build(RequestTokenRequest, RequestInput{
		URL:      p.behavior.RequestTokenURL,
		Params:   p.cfg.RequestTokenParams,
		Callback: p.adapter.URL(),
	})
	if err != nil {
		return err
	}
	p.logger.Info("fetching request token", "url", r.URL)
	resp, err := p.fetch(ctx, r)
	if err != nil {
		return err
	}
	data := resp.Map()
	token, secret := LookupString(data, "oauth_token"), LookupString(data, "oauth_token_secret")
	if resp.Status != http.StatusOK || token == "" || secret == "" {
		return providerError(op, "failed to obtain a request token", resp, p.behavior.RequestTokenURL)
	}

	if err := p.session.set(ctx, sessionTokenSecretKey, secret); err != nil {
		return NewError(ErrFailure, WithOp(op), WithMsg("unable to store token secret"), WithWrap(err))
	}
	if err := p.session.save(ctx); err != nil {
		return NewError(ErrFailure, WithOp(op), WithMsg("unable to save session"), WithWrap(err))
	}

	r, err = p.builder.Build(UserAuthorizationRequest, RequestInput{
		URL:         p.behavior.AuthorizationURL,
		Params:      p.cfg.userAuthorizationParams(),
		Credentials: &Credentials{Token: token},
	})
	if err != nil {
		return err
	}
	p.logger.Info("redirecting user to the provider", "url", r.URL)
	p.adapter.Redirect(r.FullURL())
	return nil
}

func (p *oauth1Flow) callback(ctx context.Context, params map[string]string) (*LoginResult, error) {
	const op = "oauth.(oauth1Flow).callback"
	token, verifier := params["oauth_token"], params["oauth_verifier"]
	if token == "" || verifier == "" {
		return nil, NewError(ErrFailure, WithOp(op), WithMsg("callback requires oauth_token and oauth_verifier"), WithURL(p.behavior.AuthorizationURL))
	}

	secret, ok, err := p.session.get(ctx, sessionTokenSecretKey)
	if err != nil {
		return nil, NewError(ErrFailure, WithOp(op), WithMsg("unable to read token secret"), WithWrap(err))
	}
	if !ok || secret == "" {
		return nil, NewError(ErrFailure, WithOp(op), WithMsg("token secret is missing from the session"), WithURL(p.behavior.AccessTokenURL))
	}
	if err := p.session.delete(ctx, sessionTokenSecretKey); err != nil {
		return nil, NewError(ErrFailure, WithOp(op), WithMsg("unable to delete token secret"), WithWrap(err))
	}
	if err := p.session.save(ctx); err != nil {
		return nil, NewError(ErrFailure, WithOp(op), WithMsg("unable to save session"), WithWrap(err))
	}

	r, err := p.builder.Build(AccessTokenRequest, RequestInput{
		URL:         p.behavior.AccessTokenURL,
		Params:      p.cfg.AccessTokenParams,
		Credentials: &Credentials{Token: token, TokenSecret: secret},
		Verifier:    verifier,
	})
	if err != nil {
		return nil, err
	}
	p.logger.Info("fetching access token", "url", r.URL)
	resp, err := p.fetch(ctx, r)
	if err != nil {
		return nil, err
	}
	if resp.Status != http.StatusOK {
		return nil, providerError(op, "failed to obtain an access token", resp, p.behavior.AccessTokenURL)
	}
	data := resp.Map()
	c := p.newCredentials()
	c.Token, c.TokenSecret = LookupString(data, "oauth_token"), LookupString(data, "oauth_token_secret")
	if p.behavior.CredentialsParser != nil {
		if err := p.behavior.CredentialsParser(c, data); err != nil {
			return nil, NewError(ErrFailure, WithOp(op), WithMsg("unable to parse credentials"), WithURL(p.behavior.AccessTokenURL), WithWrap(err))
		}
	}
	if c.Token == "" || c.TokenSecret == "" {
		return nil, providerError(op, "access token response has no oauth_token or oauth_token_secret", resp, p.behavior.AccessTokenURL)
	}

	u, err := p.fetchUser(ctx, c, data)
	if err != nil {
		return nil, err
	}
	return &LoginResult{ProviderName: p.cfg.Name, User: u, Credentials: c}, nil
}

// refresh is a no-op: OAuth 1.0a has no refresh.
func (p *oauth1Flow) refresh(context.Context, *Credentials) (*Response, error) {
	return nil, nil
}

func (p *oauth1Flow) cleanup(ctx context.Context) {
	if p.session == nil {
		return
	}
	if err := p.session.delete(ctx, sessionTokenSecretKey); err != nil {
		p.logger.Warn("unable to delete token secret", "error", err)
		return
	}
	if err := p.session.save(ctx); err != nil {
		p.logger.Warn("unable to save session", "error", err)
	}
}
