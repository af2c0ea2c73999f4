package callback

import (
	"net/http"

	"github.com/authomatic/authomatic-sub000/httpadapter"
	"github.com/authomatic/authomatic-sub000/oauth"
)

// ProviderFunc returns the provider name a request logs in with, e.g. from
// a route parameter.
type ProviderFunc func(req *http.Request) string

// Login creates a login handler for the named provider.  The same handler
// serves the first request, which it answers with a redirect to the
// provider, and the provider's redirect back, which it answers with sFn or
// eFn.  Mount it at the URL registered as the application's callback.
func Login(a *oauth.Authomatic, provider string, sessions SessionFunc, sFn SuccessResponseFunc, eFn ErrorResponseFunc, opt ...httpadapter.Option) http.HandlerFunc {
	return LoginFunc(a, func(*http.Request) string { return provider }, sessions, sFn, eFn, opt...)
}

// LoginFunc is Login with the provider name chosen per request.  A nil eFn
// selects JSONError.
func LoginFunc(a *oauth.Authomatic, provider ProviderFunc, sessions SessionFunc, sFn SuccessResponseFunc, eFn ErrorResponseFunc, opt ...httpadapter.Option) http.HandlerFunc {
	if eFn == nil {
		eFn = JSONError
	}
	return func(w http.ResponseWriter, req *http.Request) {
		const op = "callback.Login"
		var name string
		if provider != nil {
			name = provider(req)
		}

		switch {
		case a == nil:
			eFn(name, oauth.NewError(oauth.ErrConfig, oauth.WithOp(op), oauth.WithMsg("authomatic is nil"), oauth.WithWrap(oauth.ErrNilParameter)), w, req)
			return
		case sessions == nil:
			eFn(name, oauth.NewError(oauth.ErrConfig, oauth.WithOp(op), oauth.WithMsg("session func is nil"), oauth.WithWrap(oauth.ErrNilParameter)), w, req)
			return
		case sFn == nil:
			eFn(name, oauth.NewError(oauth.ErrConfig, oauth.WithOp(op), oauth.WithMsg("success response func is nil"), oauth.WithWrap(oauth.ErrNilParameter)), w, req)
			return
		case name == "":
			eFn(name, oauth.NewError(oauth.ErrConfig, oauth.WithOp(op), oauth.WithMsg("provider name is empty"), oauth.WithWrap(oauth.ErrInvalidParameter)), w, req)
			return
		}

		session, err := sessions(w, req)
		if err != nil {
			eFn(name, oauth.NewError(oauth.ErrFailure, oauth.WithOp(op), oauth.WithMsg("unable to load session"), oauth.WithWrap(err)), w, req)
			return
		}
		adapter, err := httpadapter.New(w, req, opt...)
		if err != nil {
			eFn(name, oauth.NewError(oauth.ErrFailure, oauth.WithOp(op), oauth.WithMsg("unable to read request"), oauth.WithWrap(err)), w, req)
			return
		}

		result, err := a.Login(req.Context(), adapter, session, name)
		switch {
		case err != nil:
			eFn(name, err, w, req)
		case result == nil:
			// redirected to the provider
		case result.Error != nil:
			eFn(name, result.Error, w, req)
		default:
			sFn(result, w, req)
		}
	}
}
