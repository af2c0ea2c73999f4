package oauth

import (
	"bytes"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/hmac"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"encoding/pem"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

const testKeyID = "test-key"

// TestProvider is a local HTTPS server that plays an OAuth 1.0a provider and
// an OAuth 2.0 / OIDC provider, so logins can run end to end in tests.  It
// verifies OAuth 1.0a signatures and client credentials, and counts the hits
// of every endpoint.
type TestProvider struct {
	httpServer *httptest.Server
	caCert     string
	signingKey *ecdsa.PrivateKey

	mu             sync.Mutex
	consumerKey    string
	consumerSecret string

	authCode       string
	accessToken    string
	refreshToken   string
	refreshedToken string
	expiresIn      int
	tokenStatus    int
	formResponse   bool
	omitIDToken    bool
	userInfo       map[string]interface{}

	requestToken       string
	requestTokenSecret string
	verifier           string
	oauth1Token        string
	oauth1TokenSecret  string
	oauth1User         map[string]interface{}

	hits       map[string]int
	lastForms  map[string]url.Values
	lastHeader map[string]http.Header
}

// StartTestProvider creates a disposable TestProvider.  It's stopped when
// the test ends.
func StartTestProvider(t *testing.T) *TestProvider {
	t.Helper()
	require := require.New(t)

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(err)

	p := &TestProvider{
		signingKey:         key,
		consumerKey:        "test-consumer-key",
		consumerSecret:     "test-consumer-secret",
		authCode:           "test-code",
		accessToken:        "test-access-token",
		refreshToken:       "test-refresh-token",
		refreshedToken:     "test-refreshed-token",
		expiresIn:          3600,
		requestToken:       "test-request-token",
		requestTokenSecret: "test-request-token-secret",
		verifier:           "test-verifier",
		oauth1Token:        "test-oauth1-token",
		oauth1TokenSecret:  "test-oauth1-token-secret",
		userInfo: map[string]interface{}{
			"sub":                "alice-id",
			"email":              "alice@example.com",
			"given_name":         "Alice",
			"family_name":        "Doe",
			"preferred_username": "alice",
			"locale":             "en_US",
		},
		oauth1User: map[string]interface{}{
			"id":          json.Number("1234567890123456789"),
			"screen_name": "alice",
			"name":        "Alice Doe",
			"location":    "Prague",
		},
		hits:       map[string]int{},
		lastForms:  map[string]url.Values{},
		lastHeader: map[string]http.Header{},
	}

	p.httpServer = httptest.NewUnstartedServer(p)
	p.httpServer.Config.ErrorLog = log.New(io.Discard, "", 0)
	p.httpServer.StartTLS()
	t.Cleanup(p.httpServer.Close)

	var buf bytes.Buffer
	err = pem.Encode(&buf, &pem.Block{Type: "CERTIFICATE", Bytes: p.httpServer.Certificate().Raw})
	require.NoError(err)
	p.caCert = buf.String()
	return p
}

// Stop stops the running TestProvider.
func (p *TestProvider) Stop() {
	p.httpServer.Close()
}

// Addr returns the base URL of the provider.
func (p *TestProvider) Addr() string { return p.httpServer.URL }

// CACert returns the pem-encoded CA certificate of the provider's server.
func (p *TestProvider) CACert() string { return p.caCert }

// HTTPClient returns a Client that trusts the provider.
func (p *TestProvider) HTTPClient(t *testing.T, opt ...Option) *Client {
	t.Helper()
	c, err := NewHTTPClient(append([]Option{WithProviderCA(p.caCert)}, opt...)...)
	require.NoError(t, err)
	return c
}

// Consumer returns the consumer the provider accepts.
func (p *TestProvider) Consumer() Consumer {
	p.mu.Lock()
	defer p.mu.Unlock()
	return Consumer{Key: p.consumerKey, Secret: ConsumerSecret(p.consumerSecret)}
}

// SetConsumer configures the consumer the provider accepts.
func (p *TestProvider) SetConsumer(key, secret string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.consumerKey, p.consumerSecret = key, secret
}

// SetAuthCode configures the OAuth 2.0 authorization code the token endpoint
// accepts.
func (p *TestProvider) SetAuthCode(code string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.authCode = code
}

// SetTokens configures the OAuth 2.0 tokens returned for an authorization
// code.  An empty refresh token is omitted from the response.
func (p *TestProvider) SetTokens(access, refresh string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.accessToken, p.refreshToken = access, refresh
}

// SetRefreshedToken configures the access token returned for a refresh
// grant.
func (p *TestProvider) SetRefreshedToken(token string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.refreshedToken = token
}

// SetExpiresIn configures expires_in of token responses.  Zero omits it.
func (p *TestProvider) SetExpiresIn(seconds int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.expiresIn = seconds
}

// SetTokenStatus makes the token endpoints fail with status.  Zero restores
// normal replies.
func (p *TestProvider) SetTokenStatus(status int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.tokenStatus = status
}

// SetFormResponse makes the token endpoint reply form encoded instead of
// JSON.
func (p *TestProvider) SetFormResponse(form bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.formResponse = form
}

// OmitIDToken stops the token endpoint from issuing id_tokens.
func (p *TestProvider) OmitIDToken() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.omitIDToken = true
}

// SetUserInfo configures the OAuth 2.0 user info reply and id_token claims.
func (p *TestProvider) SetUserInfo(info map[string]interface{}) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.userInfo = info
}

// SetOAuth1User configures the OAuth 1.0a user info reply.
func (p *TestProvider) SetOAuth1User(user map[string]interface{}) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.oauth1User = user
}

// SetOAuth1Tokens configures the OAuth 1.0a request token, verifier and
// access token.
func (p *TestProvider) SetOAuth1Tokens(requestToken, requestSecret, verifier, token, secret string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.requestToken, p.requestTokenSecret = requestToken, requestSecret
	p.verifier = verifier
	p.oauth1Token, p.oauth1TokenSecret = token, secret
}

// Hits returns how many requests path received.
func (p *TestProvider) Hits(path string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.hits[path]
}

// LastForm returns the query and form params of the last request to path.
func (p *TestProvider) LastForm(path string) url.Values {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastForms[path]
}

// LastHeader returns the headers of the last request to path.
func (p *TestProvider) LastHeader(path string) http.Header {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastHeader[path]
}

// OAuth2Behavior returns a Behavior for the provider's OAuth 2.0 endpoints.
func (p *TestProvider) OAuth2Behavior() *Behavior {
	return &Behavior{
		Name:             "test-oauth2",
		Kind:             KindOAuth2,
		AuthorizationURL: p.Addr() + "/oauth2/auth",
		AccessTokenURL:   p.Addr() + "/oauth2/token",
		UserInfoURL:      p.Addr() + "/oauth2/userinfo",
		UserInfoScope:    []string{"profile", "email"},
		UserFields: map[string]string{
			"id":         "sub",
			"username":   "preferred_username",
			"first_name": "given_name",
			"last_name":  "family_name",
		},
	}
}

// OAuth1Behavior returns a Behavior for the provider's OAuth 1.0a endpoints.
func (p *TestProvider) OAuth1Behavior() *Behavior {
	return &Behavior{
		Name:             "test-oauth1",
		Kind:             KindOAuth1,
		RequestTokenURL:  p.Addr() + "/oauth1/request_token",
		AuthorizationURL: p.Addr() + "/oauth1/authorize",
		AccessTokenURL:   p.Addr() + "/oauth1/access_token",
		UserInfoURL:      p.Addr() + "/oauth1/user",
		UserFields: map[string]string{
			"username": "screen_name",
		},
	}
}

func (p *TestProvider) writeJSON(w http.ResponseWriter, status int, out interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(out)
}

func (p *TestProvider) writeForm(w http.ResponseWriter, status int, v url.Values) {
	w.Header().Set("Content-Type", formContentType)
	w.WriteHeader(status)
	_, _ = w.Write([]byte(v.Encode()))
}

func (p *TestProvider) writeTokenError(w http.ResponseWriter, status int, code, desc string) {
	p.writeJSON(w, status, map[string]string{"error": code, "error_description": desc})
}

// verifySignature checks the OAuth 1.0a signature of req, whose form must
// already be parsed.
func (p *TestProvider) verifySignature(req *http.Request, tokenSecret string) bool {
	params := ParamsFromValues(req.Form)
	got, _ := params.Get("oauth_signature")
	m := SignatureMethod(req.Form.Get("oauth_signature_method"))
	want, err := Sign(m, req.Method, p.Addr()+req.URL.Path, params, p.consumerSecret, tokenSecret)
	if err != nil {
		return false
	}
	return req.Form.Get("oauth_consumer_key") == p.consumerKey && hmac.Equal([]byte(got), []byte(want))
}

// clientAuthenticated checks OAuth 2.0 client credentials sent as HTTP Basic
// or as form params.
func (p *TestProvider) clientAuthenticated(req *http.Request) bool {
	id, secret, ok := req.BasicAuth()
	if ok {
		id, _ = url.QueryUnescape(id)
		secret, _ = url.QueryUnescape(secret)
	} else {
		id, secret = req.Form.Get("client_id"), req.Form.Get("client_secret")
	}
	return id == p.consumerKey && secret == p.consumerSecret
}

func (p *TestProvider) idToken() (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"iss": p.Addr(),
		"aud": p.consumerKey,
		"iat": now.Unix(),
		"exp": now.Add(time.Hour).Unix(),
	}
	for k, v := range p.userInfo {
		claims[k] = v
	}
	tk := jwt.NewWithClaims(jwt.SigningMethodES256, claims)
	tk.Header["kid"] = testKeyID
	return tk.SignedString(p.signingKey)
}

func (p *TestProvider) jwks() map[string]interface{} {
	pub := p.signingKey.PublicKey
	b64 := func(i interface{ FillBytes([]byte) []byte }) string {
		return base64.RawURLEncoding.EncodeToString(i.FillBytes(make([]byte, 32)))
	}
	return map[string]interface{}{
		"keys": []map[string]string{{
			"kty": "EC",
			"crv": "P-256",
			"kid": testKeyID,
			"alg": "ES256",
			"use": "sig",
			"x":   b64(pub.X),
			"y":   b64(pub.Y),
		}},
	}
}

// ServeHTTP implements the test provider's http.Handler.
func (p *TestProvider) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := req.ParseForm(); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	p.hits[req.URL.Path]++
	p.lastForms[req.URL.Path] = req.Form
	p.lastHeader[req.URL.Path] = req.Header.Clone()

	switch req.URL.Path {
	case "/.well-known/openid-configuration":
		p.writeJSON(w, http.StatusOK, map[string]interface{}{
			"issuer":                                p.Addr(),
			"authorization_endpoint":                p.Addr() + "/oauth2/auth",
			"token_endpoint":                        p.Addr() + "/oauth2/token",
			"userinfo_endpoint":                     p.Addr() + "/oauth2/userinfo",
			"jwks_uri":                              p.Addr() + "/oauth2/certs",
			"id_token_signing_alg_values_supported": []string{"ES256"},
			"token_endpoint_auth_methods_supported": []string{"client_secret_basic"},
		})

	case "/oauth2/certs":
		p.writeJSON(w, http.StatusOK, p.jwks())

	case "/oauth2/auth":
		redirectURI := req.Form.Get("redirect_uri")
		if req.Form.Get("response_type") != "code" || redirectURI == "" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		v := url.Values{"code": {p.authCode}}
		if s := req.Form.Get("state"); s != "" {
			v.Set("state", s)
		}
		http.Redirect(w, req, redirectURI+"?"+v.Encode(), http.StatusFound)

	case "/oauth2/token":
		if req.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		if p.tokenStatus != 0 {
			p.writeTokenError(w, p.tokenStatus, "server_error", "token endpoint failure")
			return
		}
		if !p.clientAuthenticated(req) {
			p.writeTokenError(w, http.StatusUnauthorized, "invalid_client", "bad client credentials")
			return
		}
		reply := url.Values{}
		switch req.Form.Get("grant_type") {
		case "authorization_code":
			if req.Form.Get("code") != p.authCode || req.Form.Get("redirect_uri") == "" {
				p.writeTokenError(w, http.StatusBadRequest, "invalid_grant", "unexpected auth code")
				return
			}
			reply.Set("access_token", p.accessToken)
			reply.Set("token_type", "bearer")
			if p.refreshToken != "" {
				reply.Set("refresh_token", p.refreshToken)
			}
			if !p.omitIDToken && !p.formResponse {
				tk, err := p.idToken()
				if err != nil {
					w.WriteHeader(http.StatusInternalServerError)
					return
				}
				reply.Set("id_token", tk)
			}
		case "refresh_token":
			if p.refreshToken == "" || req.Form.Get("refresh_token") != p.refreshToken {
				p.writeTokenError(w, http.StatusBadRequest, "invalid_grant", "unexpected refresh token")
				return
			}
			reply.Set("access_token", p.refreshedToken)
		default:
			p.writeTokenError(w, http.StatusBadRequest, "unsupported_grant_type", "bad grant_type")
			return
		}
		if p.expiresIn != 0 {
			reply.Set("expires_in", strconv.Itoa(p.expiresIn))
		}
		if p.formResponse {
			p.writeForm(w, http.StatusOK, reply)
			return
		}
		out := make(map[string]interface{}, len(reply))
		for k := range reply {
			out[k] = reply.Get(k)
		}
		if p.expiresIn != 0 {
			out["expires_in"] = p.expiresIn
		}
		p.writeJSON(w, http.StatusOK, out)

	case "/oauth2/userinfo":
		token := strings.TrimPrefix(req.Header.Get("Authorization"), "Bearer ")
		if token == "" {
			token = req.Form.Get("access_token")
		}
		if token != p.accessToken && token != p.refreshedToken {
			w.Header().Set("WWW-Authenticate", `Bearer error="invalid_token"`)
			p.writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid_token"})
			return
		}
		p.writeJSON(w, http.StatusOK, p.userInfo)

	case "/oauth1/request_token":
		if !p.verifySignature(req, "") || req.Form.Get("oauth_callback") == "" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte("invalid signature"))
			return
		}
		p.writeForm(w, http.StatusOK, url.Values{
			"oauth_token":              {p.requestToken},
			"oauth_token_secret":       {p.requestTokenSecret},
			"oauth_callback_confirmed": {"true"},
		})

	case "/oauth1/access_token":
		switch {
		case req.Form.Get("oauth_token") != p.requestToken:
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte("unknown request token"))
		case req.Form.Get("oauth_verifier") != p.verifier:
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte("invalid verifier"))
		case !p.verifySignature(req, p.requestTokenSecret):
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte("invalid signature"))
		default:
			p.writeForm(w, http.StatusOK, url.Values{
				"oauth_token":        {p.oauth1Token},
				"oauth_token_secret": {p.oauth1TokenSecret},
				"user_id":            {"1234567890123456789"},
			})
		}

	case "/oauth1/user":
		if req.Form.Get("oauth_token") != p.oauth1Token || !p.verifySignature(req, p.oauth1TokenSecret) {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		p.writeJSON(w, http.StatusOK, p.oauth1User)

	case "/redirect/self":
		w.Header().Set("Location", p.Addr()+req.URL.RequestURI())
		w.WriteHeader(http.StatusFound)

	case "/redirect/userinfo":
		http.Redirect(w, req, "/oauth2/userinfo", http.StatusFound)

	default:
		w.WriteHeader(http.StatusNotFound)
	}
}
