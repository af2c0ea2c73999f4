// Copyright IBM Corp. 2020, 2025
// SPDX-License-Identifier: MPL-2.0

package callback

import (
	"encoding/json"
	"errors"
	"html/template"
	"net/http"

	"github.com/authomatic/authomatic-sub000/oauth"
)

// SessionFunc returns the session of the user agent behind req.  It may set
// cookies on w.
type SessionFunc func(w http.ResponseWriter, req *http.Request) (oauth.SessionStore, error)

// SuccessResponseFunc is used by Login to create a http response when a
// login succeeds.
//
// The result carries the normalized user and the credentials the
// application should store.  The function should use the http.ResponseWriter
// to send back whatever content (headers, html, JSON, etc) it wishes to the
// client that started the login.
type SuccessResponseFunc func(result *oauth.LoginResult, w http.ResponseWriter, req *http.Request)

// ErrorResponseFunc is used by Login to create a http response when a login
// fails or is cancelled by the user.
//
// The function receives the provider name and the error.  Use errors.Is with
// the oauth error kinds (oauth.ErrCancellation, oauth.ErrCSRF, ...) to tell
// them apart.
type ErrorResponseFunc func(provider string, e error, w http.ResponseWriter, req *http.Request)

// ErrorResponse is the JSON body written by JSONError.
type ErrorResponse struct {
	Provider    string `json:"provider"`
	Error       string `json:"error"`
	Description string `json:"description"`
}

// StatusCode maps a login error to a http status.
func StatusCode(err error) int {
	switch {
	case errors.Is(err, oauth.ErrCancellation):
		return http.StatusForbidden
	case errors.Is(err, oauth.ErrCSRF):
		return http.StatusBadRequest
	case errors.Is(err, oauth.ErrCredentials):
		return http.StatusUnauthorized
	case errors.Is(err, oauth.ErrFailure):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// errorCode names the kind of a login error for ErrorResponse.Error.
func errorCode(err error) string {
	var e *oauth.Error
	if errors.As(err, &e) && e.Kind != nil {
		return e.Kind.Error()
	}
	return "internal error"
}

// JSONError is an ErrorResponseFunc writing an ErrorResponse with the status
// of StatusCode.
func JSONError(provider string, e error, w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(StatusCode(e))
	_ = json.NewEncoder(w).Encode(&ErrorResponse{
		Provider:    provider,
		Error:       errorCode(e),
		Description: e.Error(),
	})
}

// SuccessResponse is the login result written by JSONSuccess and
// PopupSuccess.  Credentials are serialized; pass them to
// oauth.(Authomatic).Credentials to restore them.
type SuccessResponse struct {
	Provider    string      `json:"provider"`
	User        *oauth.User `json:"user,omitempty"`
	Credentials string      `json:"credentials"`
}

func newSuccessResponse(a *oauth.Authomatic, result *oauth.LoginResult) (*SuccessResponse, error) {
	const op = "callback.newSuccessResponse"
	if a == nil {
		return nil, oauth.NewError(oauth.ErrConfig, oauth.WithOp(op), oauth.WithMsg("authomatic is nil"), oauth.WithWrap(oauth.ErrNilParameter))
	}
	serialized, err := a.Serialize(result.Credentials)
	if err != nil {
		return nil, err
	}
	out := &SuccessResponse{Provider: result.ProviderName, Credentials: serialized}
	if result.User != nil {
		user := *result.User
		user.Credentials = nil
		out.User = &user
	}
	return out, nil
}

// JSONSuccess returns a SuccessResponseFunc writing a SuccessResponse.
func JSONSuccess(a *oauth.Authomatic) SuccessResponseFunc {
	return func(result *oauth.LoginResult, w http.ResponseWriter, req *http.Request) {
		out, err := newSuccessResponse(a, result)
		if err != nil {
			JSONError(result.ProviderName, err, w, req)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(out)
	}
}

var popupTemplate = template.Must(template.New("popup").Parse(`<!DOCTYPE html>
<html>
<head><title>Login | {{.Result.Provider}}</title></head>
<body>
<script type="text/javascript">
(function() {
var result = {{.Result}};
var origin = {{if .Origin}}{{.Origin}}{{else}}window.location.origin{{end}};
try { window.opener.postMessage(result, origin); } catch (e) {}
window.close();
})();
</script>
</body>
</html>
`))

// PopupSuccess returns a SuccessResponseFunc for logins started in a popup
// window.  It writes a page that posts the SuccessResponse to the opener
// with targetOrigin origin, and closes the popup.  An empty origin is the
// popup's own origin.
func PopupSuccess(a *oauth.Authomatic, origin string) SuccessResponseFunc {
	return func(result *oauth.LoginResult, w http.ResponseWriter, req *http.Request) {
		out, err := newSuccessResponse(a, result)
		if err != nil {
			JSONError(result.ProviderName, err, w, req)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Header().Set("Cache-Control", "no-store")
		w.WriteHeader(http.StatusOK)
		_ = popupTemplate.Execute(w, struct {
			Result *SuccessResponse
			Origin string
		}{Result: out, Origin: origin})
	}
}
