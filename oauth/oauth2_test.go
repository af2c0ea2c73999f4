// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package oauth

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const exTokenReply = `{"access_token":"T","expires_in":3600,"token_type":"bearer"}`

func TestOAuth2_Login(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("happy-path", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		client := newStubClient(stubReply{status: http.StatusOK, contentType: "application/json", body: exTokenReply})
		a := testAuthomatic(t, testRegistry(t, exConfig()), client, WithNonceFunc(fixedNonce("N")))
		sess := NewTestSession()

		ad := NewTestAdapter("https://app/cb", nil)
		res, err := a.Login(ctx, ad, sess, "ex")
		require.NoError(err)
		assert.Nil(res)
		assert.Equal("https://p/auth?client_id=K&redirect_uri=https%3A%2F%2Fapp%2Fcb&scope=r&state=N&response_type=code", ad.RedirectURL())
		assert.Equal(http.StatusFound, ad.Status())
		assert.Equal(map[string]string{"authomatic:ex:state": "N"}, sess.Saved())
		assert.Empty(client.Requests())

		ad = NewTestAdapter("https://app/cb?code=C&state=N", nil)
		res, err = a.Login(ctx, ad, sess, "ex")
		require.NoError(err)
		require.NotNil(res)
		require.NoError(res.Error)

		reqs := client.Requests()
		require.Len(reqs, 1)
		assert.Equal(http.MethodPost, reqs[0].Method)
		assert.Equal("https://p/token", reqs[0].URL)
		assert.Equal("code=C&client_id=K&client_secret=S&redirect_uri=https%3A%2F%2Fapp%2Fcb&grant_type=authorization_code", string(reqs[0].BodyBytes()))

		c := res.Credentials
		require.NotNil(c)
		assert.Equal("T", c.Token)
		assert.Equal(TokenTypeBearer, c.TokenType)
		assert.Equal(testNow.Add(3600*time.Second), c.Expiration)
		assert.Equal("ex", c.ProviderName)
		assert.Equal(5, c.ProviderID)
		assert.Empty(c.RefreshToken)
		require.NotNil(res.User)
		assert.Same(c, res.User.Credentials)
		assert.Empty(ad.RedirectURL())

		_, ok := sess.Values()["authomatic:ex:state"]
		assert.False(ok, "state must be consumed")
	})

	t.Run("csrf-mismatch", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		client := newStubClient()
		a := testAuthomatic(t, testRegistry(t, exConfig()), client, WithNonceFunc(fixedNonce("N")))
		sess := NewTestSession()
		_, err := a.Login(ctx, NewTestAdapter("https://app/cb", nil), sess, "ex")
		require.NoError(err)

		for _, query := range []string{"?code=C&state=X", "?code=C"} {
			res, err := a.Login(ctx, NewTestAdapter("https://app/cb"+query, nil), sess, "ex")
			require.NoError(err)
			require.NotNil(res)
			assert.Truef(errors.Is(res.Error, ErrCSRF), "wanted \"%s\" but got \"%s\"", ErrCSRF, res.Error)
			assert.Nil(res.Credentials)
		}
		assert.Empty(client.Requests(), "no token exchange on csrf failure")
		assert.Equal("N", sess.Values()["authomatic:ex:state"], "state must not be consumed")
	})

	t.Run("user-denied", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		client := newStubClient()
		a := testAuthomatic(t, testRegistry(t, exConfig()), client, WithNonceFunc(fixedNonce("N")))
		sess := NewTestSession()
		_, err := a.Login(ctx, NewTestAdapter("https://app/cb", nil), sess, "ex")
		require.NoError(err)

		res, err := a.Login(ctx, NewTestAdapter("https://app/cb?error=access_denied&error_reason=user_denied&error_description=no", nil), sess, "ex")
		require.NoError(err)
		require.NotNil(res)
		assert.Truef(errors.Is(res.Error, ErrCancellation), "wanted \"%s\" but got \"%s\"", ErrCancellation, res.Error)
		var e *Error
		require.True(errors.As(res.Error, &e))
		assert.Equal("no", e.Msg)
		assert.Equal("access_denied", e.OriginalMsg)
		assert.Equal("https://p/auth", e.URL)
		assert.Empty(client.Requests())
	})

	t.Run("callback-errors", func(t *testing.T) {
		tests := []struct {
			name      string
			query     string
			wantIsErr error
		}{
			{name: "provider-error", query: "?error=server_error&error_description=oops", wantIsErr: ErrFailure},
			{name: "error-message", query: "?error_message=Permissions+error", wantIsErr: ErrFailure},
			{name: "denied-without-reason", query: "?error=access_denied", wantIsErr: ErrCancellation},
			{name: "state-without-code", query: "?state=N", wantIsErr: ErrFailure},
		}
		for _, tt := range tests {
			tt := tt
			t.Run(tt.name, func(t *testing.T) {
				assert, require := assert.New(t), require.New(t)
				client := newStubClient()
				a := testAuthomatic(t, testRegistry(t, exConfig()), client)
				res, err := a.Login(ctx, NewTestAdapter("https://app/cb"+tt.query, nil), NewTestSession(), "ex")
				require.NoError(err)
				require.NotNil(res)
				assert.Truef(errors.Is(res.Error, tt.wantIsErr), "wanted \"%s\" but got \"%s\"", tt.wantIsErr, res.Error)
				assert.Empty(client.Requests())
			})
		}
	})

	t.Run("token-endpoint-failure", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		client := newStubClient(stubReply{status: http.StatusBadRequest, contentType: "application/json", body: `{"error":"invalid_grant","error_description":"code expired"}`})
		a := testAuthomatic(t, testRegistry(t, exConfig()), client, WithNonceFunc(fixedNonce("N")))
		sess := NewTestSession()
		require.NoError(sess.Set(ctx, "authomatic:ex:state", "N"))

		res, err := a.Login(ctx, NewTestAdapter("https://app/cb?code=C&state=N", nil), sess, "ex")
		require.NoError(err)
		var e *Error
		require.True(errors.As(res.Error, &e))
		assert.True(errors.Is(res.Error, ErrFailure))
		assert.Equal(http.StatusBadRequest, e.Status)
		assert.Equal("https://p/token", e.URL)
		assert.Contains(e.Msg, "code expired")
		assert.Contains(e.OriginalMsg, "invalid_grant")
	})

	t.Run("token-without-access-token", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		client := newStubClient(stubReply{status: http.StatusOK, contentType: "application/json", body: `{"token_type":"bearer"}`})
		a := testAuthomatic(t, testRegistry(t, exConfig()), client, WithNonceFunc(fixedNonce("N")))
		sess := NewTestSession()
		require.NoError(sess.Set(ctx, "authomatic:ex:state", "N"))
		res, err := a.Login(ctx, NewTestAdapter("https://app/cb?code=C&state=N", nil), sess, "ex")
		require.NoError(err)
		assert.True(errors.Is(res.Error, ErrFailure))
	})

	t.Run("transport-error", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		client := newStubClient(stubReply{err: context.DeadlineExceeded})
		a := testAuthomatic(t, testRegistry(t, exConfig()), client, WithNonceFunc(fixedNonce("N")))
		sess := NewTestSession()
		require.NoError(sess.Set(ctx, "authomatic:ex:state", "N"))
		res, err := a.Login(ctx, NewTestAdapter("https://app/cb?code=C&state=N", nil), sess, "ex")
		require.NoError(err)
		assert.True(errors.Is(res.Error, ErrFailure))
		assert.True(errors.Is(res.Error, context.DeadlineExceeded))
	})

	t.Run("no-csrf", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		cfg := exConfig()
		cfg.Behavior.NoCSRF = true
		client := newStubClient(stubReply{status: http.StatusOK, contentType: "application/json", body: exTokenReply})
		a := testAuthomatic(t, testRegistry(t, cfg), client)
		sess := NewTestSession()

		ad := NewTestAdapter("https://app/cb", nil)
		_, err := a.Login(ctx, ad, sess, "ex")
		require.NoError(err)
		u, err := url.Parse(ad.RedirectURL())
		require.NoError(err)
		assert.False(u.Query().Has("state"))
		assert.Empty(sess.Values())

		res, err := a.Login(ctx, NewTestAdapter("https://app/cb?code=C", nil), sess, "ex")
		require.NoError(err)
		require.NoError(res.Error)
		assert.Equal("T", res.Credentials.Token)
	})

	t.Run("session-failure", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		a := testAuthomatic(t, testRegistry(t, exConfig()), newStubClient())
		sess := NewTestSession()
		sess.SetError(errors.New("store is down"))
		ad := NewTestAdapter("https://app/cb", nil)
		res, err := a.Login(ctx, ad, sess, "ex")
		require.NoError(err)
		require.NotNil(res)
		assert.True(errors.Is(res.Error, ErrFailure))
		assert.Empty(ad.RedirectURL(), "no redirect before the state is durable")
	})
}

func TestOAuth2_RedirectGap(t *testing.T) {
	t.Parallel()
	assert, require := assert.New(t), require.New(t)
	ctx := context.Background()
	client := newStubClient(stubReply{status: http.StatusOK, contentType: "application/json", body: exTokenReply})
	a := testAuthomatic(t, testRegistry(t, exConfig()), client)

	stateOf := func(ad *TestAdapter) string {
		u, err := url.Parse(ad.RedirectURL())
		require.NoError(err)
		return u.Query().Get("state")
	}
	sess1, sess2 := NewTestSession(), NewTestSession()
	ad1, ad2 := NewTestAdapter("https://app/cb", nil), NewTestAdapter("https://app/cb", nil)
	_, err := a.Login(ctx, ad1, sess1, "ex")
	require.NoError(err)
	_, err = a.Login(ctx, ad2, sess2, "ex")
	require.NoError(err)
	s1, s2 := stateOf(ad1), stateOf(ad2)
	require.NotEmpty(s1)
	assert.NotEqual(s1, s2)
	assert.Equal(s1, sess1.Saved()[SessionKey(DefaultSessionPrefix, "ex", "state")])

	callback := "https://app/cb?code=C&state=" + url.QueryEscape(s1)
	res, err := a.Login(ctx, NewTestAdapter(callback, nil), sess1, "ex")
	require.NoError(err)
	require.NoError(res.Error)

	res, err = a.Login(ctx, NewTestAdapter(callback, nil), sess1, "ex")
	require.NoError(err)
	assert.True(errors.Is(res.Error, ErrCSRF), "a replayed callback must fail")
	assert.Len(client.Requests(), 1)
}

func TestOAuth2_Refresh(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("new-access-token", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		client := newStubClient(stubReply{status: http.StatusOK, contentType: "application/json", body: `{"access_token":"T2","expires_in":3600}`})
		a := testAuthomatic(t, testRegistry(t, exConfig()), client)
		c := &Credentials{Token: "T", RefreshToken: "R", TokenType: TokenTypeBearer, Expiration: testNow.Add(-time.Hour), ProviderName: "ex"}

		resp, err := a.Refresh(ctx, c)
		require.NoError(err)
		require.NotNil(resp)
		assert.Equal(http.StatusOK, resp.Status)
		assert.Equal("T2", c.Token)
		assert.Equal("R", c.RefreshToken)
		assert.Equal(TokenTypeBearer, c.TokenType)
		assert.Equal(testNow.Add(time.Hour), c.Expiration)

		reqs := client.Requests()
		require.Len(reqs, 1)
		assert.Equal("refresh_token=R&client_id=K&client_secret=S&grant_type=refresh_token", string(reqs[0].BodyBytes()))
	})
	t.Run("rotated-refresh-token", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		client := newStubClient(stubReply{status: http.StatusOK, contentType: "application/x-www-form-urlencoded", body: "access_token=T2&refresh_token=R2"})
		a := testAuthomatic(t, testRegistry(t, exConfig()), client)
		c := &Credentials{Token: "T", RefreshToken: "R", ProviderName: "ex"}
		_, err := a.Refresh(ctx, c)
		require.NoError(err)
		assert.Equal("T2", c.Token)
		assert.Equal("R2", c.RefreshToken)
		assert.True(c.Expiration.IsZero())
	})
	t.Run("not-refreshable", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		client := newStubClient()
		a := testAuthomatic(t, testRegistry(t, exConfig()), client)
		resp, err := a.Refresh(ctx, &Credentials{Token: "T", ProviderName: "ex"})
		require.NoError(err)
		assert.Nil(resp)

		cfg := exConfig()
		cfg.Behavior.ShouldRefresh = func(*Credentials) bool { return false }
		a = testAuthomatic(t, testRegistry(t, cfg), client)
		resp, err = a.Refresh(ctx, &Credentials{Token: "T", RefreshToken: "R", ProviderName: "ex"})
		require.NoError(err)
		assert.Nil(resp)
		assert.Empty(client.Requests())
	})
	t.Run("failure", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		client := newStubClient(stubReply{status: http.StatusBadRequest, contentType: "application/json", body: `{"error":"invalid_grant"}`})
		a := testAuthomatic(t, testRegistry(t, exConfig()), client)
		c := &Credentials{Token: "T", RefreshToken: "R", ProviderName: "ex"}
		resp, err := a.Refresh(ctx, c)
		require.Error(err)
		assert.True(errors.Is(err, ErrFailure))
		require.NotNil(resp)
		assert.Equal(http.StatusBadRequest, resp.Status)
		assert.Equal("T", c.Token)
	})
	t.Run("unknown-provider", func(t *testing.T) {
		a := testAuthomatic(t, testRegistry(t, exConfig()), newStubClient())
		_, err := a.Refresh(ctx, &Credentials{Token: "T", ProviderName: "gone"})
		assert.True(t, errors.Is(err, ErrCredentials))
	})
}

func TestOAuth2_TestProvider(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	login := func(t *testing.T, tp *TestProvider, consumer Consumer) *LoginResult {
		t.Helper()
		require := require.New(t)
		r := testRegistry(t, &ProviderConfig{Name: "test", ShortID: 1, Consumer: consumer, Behavior: tp.OAuth2Behavior()})
		a, err := New(r, WithHTTPClient(tp.HTTPClient(t)))
		require.NoError(err)
		sess := NewTestSession()
		ad := NewTestAdapter("https://app/cb", nil)
		res, err := a.Login(ctx, ad, sess, "test")
		require.NoError(err)
		require.Nil(res)
		u, err := url.Parse(ad.RedirectURL())
		require.NoError(err)
		require.Equal(tp.Addr()+"/oauth2/auth", u.Scheme+"://"+u.Host+u.Path)
		require.Equal("profile email", u.Query().Get("scope"))

		cb := "https://app/cb?code=test-code&state=" + url.QueryEscape(u.Query().Get("state"))
		res, err = a.Login(ctx, NewTestAdapter(cb, nil), sess, "test")
		require.NoError(err)
		require.NotNil(res)
		return res
	}

	t.Run("json", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		tp := StartTestProvider(t)
		res := login(t, tp, tp.Consumer())
		require.NoError(res.Error)
		assert.Equal("alice-id", res.User.ID)
		assert.Equal("alice", res.User.Username)
		assert.Equal("Alice Doe", res.User.Name)
		assert.Equal("alice@example.com", res.User.Email)
		assert.Equal("test-access-token", res.Credentials.Token)
		assert.Equal("test-refresh-token", res.Credentials.RefreshToken)
		assert.Equal(TokenTypeBearer, res.Credentials.TokenType)
		assert.Equal(1, tp.Hits("/oauth2/token"))
		assert.Equal(1, tp.Hits("/oauth2/userinfo"))
		assert.Equal("Bearer test-access-token", tp.LastHeader("/oauth2/userinfo").Get("Authorization"))

		raw, ok := res.User.Raw.(map[string]any)
		require.True(ok)
		assert.Equal("alice-id", raw["sub"])
		for _, k := range []string{"access_token", "refresh_token", "token_type", "expires_in"} {
			assert.NotContains(raw, k)
		}
	})
	t.Run("form", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		tp := StartTestProvider(t)
		tp.SetFormResponse(true)
		res := login(t, tp, tp.Consumer())
		require.NoError(res.Error)
		assert.Equal("test-access-token", res.Credentials.Token)
		assert.False(res.Credentials.Expiration.IsZero())
	})
	t.Run("bad-client-secret", func(t *testing.T) {
		assert := assert.New(t)
		tp := StartTestProvider(t)
		consumer := tp.Consumer()
		tp.SetConsumer(consumer.Key, "rotated")
		res := login(t, tp, consumer)
		assert.True(errors.Is(res.Error, ErrFailure))
		assert.Zero(tp.Hits("/oauth2/userinfo"))
	})
}
