package providers

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/authomatic/authomatic-sub000/oauth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2/github"
	"golang.org/x/oauth2/google"
)

func TestLookup(t *testing.T) {
	t.Parallel()
	for _, name := range Names() {
		name := name
		t.Run(name, func(t *testing.T) {
			assert, require := assert.New(t), require.New(t)
			b, err := Lookup(name)
			require.NoError(err)
			assert.Equal(name, b.Name)
			assert.NoError(b.Validate())

			other, err := Lookup(name)
			require.NoError(err)
			assert.NotSame(b, other, "every lookup returns a new behavior")
		})
	}
	t.Run("case-insensitive", func(t *testing.T) {
		b, err := Lookup("GitHub")
		require.NoError(t, err)
		assert.Equal(t, github.Endpoint.AuthURL, b.AuthorizationURL)
		assert.Equal(t, github.Endpoint.TokenURL, b.AccessTokenURL)
	})
	t.Run("unknown", func(t *testing.T) {
		_, err := Lookup("myspace")
		assert.True(t, errors.Is(err, oauth.ErrNotFound))
	})
}

func TestNames(t *testing.T) {
	t.Parallel()
	assert.Equal(t, []string{
		"amazon", "bitbucket", "bitly", "facebook", "flickr", "foursquare", "github",
		"google", "linkedin", "tumblr", "twitter", "windowslive", "xero",
	}, Names())
}

func TestKinds(t *testing.T) {
	t.Parallel()
	for _, fn := range []Constructor{Bitbucket, Flickr, Tumblr, Twitter, Xero} {
		assert.Equal(t, oauth.KindOAuth1, fn().Kind)
	}
	for _, fn := range []Constructor{Amazon, Bitly, Facebook, Foursquare, GitHub, Google, LinkedIn, WindowsLive} {
		assert.Equal(t, oauth.KindOAuth2, fn().Kind)
	}
}

// updateUser fetches the user info of b from a TestProvider serving info.
func updateUser(t *testing.T, b *oauth.Behavior, info map[string]interface{}) *oauth.User {
	t.Helper()
	require := require.New(t)
	tp := oauth.StartTestProvider(t)
	tp.SetUserInfo(info)
	b.AuthorizationURL = tp.Addr() + "/oauth2/auth"
	b.AccessTokenURL = tp.Addr() + "/oauth2/token"
	b.UserInfoURL = tp.Addr() + "/oauth2/userinfo"
	b.ResourceAuth = oauth.ResourceAuthHeader
	b.AccessParams = nil

	r, err := oauth.NewRegistry(&oauth.ProviderConfig{Name: b.Name, ShortID: 1, Consumer: tp.Consumer(), Behavior: b})
	require.NoError(err)
	a, err := oauth.New(r, oauth.WithHTTPClient(tp.HTTPClient(t)))
	require.NoError(err)
	u, err := a.UpdateUser(context.Background(), oauth.Credentials{Token: "test-access-token", ProviderName: b.Name})
	require.NoError(err)
	return u
}

func TestUsers(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		b    *oauth.Behavior
		info map[string]interface{}
		want oauth.User
	}{
		{
			name: "github",
			b:    GitHub(),
			info: map[string]interface{}{
				"id": 583231, "login": "octocat", "name": "The Octocat", "email": "octocat@github.com",
				"avatar_url": "https://avatars/583231", "html_url": "https://github.com/octocat", "location": "San Francisco",
			},
			want: oauth.User{
				ID: "583231", Username: "octocat", Name: "The Octocat", Email: "octocat@github.com",
				Picture: "https://avatars/583231", Link: "https://github.com/octocat", Location: "San Francisco",
			},
		},
		{
			name: "google",
			b:    Google(),
			info: map[string]interface{}{
				"sub": "1090", "given_name": "Alice", "family_name": "Doe", "locale": "en", "picture": "https://pic",
				"emails": []map[string]string{{"value": "alice@other.com"}, {"value": "alice@gmail.com", "type": "account"}},
			},
			want: oauth.User{
				ID: "1090", FirstName: "Alice", LastName: "Doe", Name: "Alice Doe", Locale: "en",
				Picture: "https://pic", Email: "alice@gmail.com",
			},
		},
		{
			name: "facebook",
			b:    Facebook(),
			info: map[string]interface{}{
				"id": "10001", "first_name": "Alice", "last_name": "Doe", "birthday": "02/29/1992",
				"location": map[string]string{"name": "Prague, Czech Republic"},
			},
			want: oauth.User{
				ID: "10001", FirstName: "Alice", LastName: "Doe", Name: "Alice Doe", BirthDate: "1992-02-29",
				Location: "Prague, Czech Republic", City: "Prague", Country: "Czech Republic",
				Picture: "https://graph.facebook.com/10001/picture?type=large",
			},
		},
		{
			name: "foursquare",
			b:    Foursquare(),
			info: map[string]interface{}{
				"response": map[string]interface{}{
					"user": map[string]interface{}{
						"id": "42", "firstName": "Alice", "lastName": "Doe", "gender": "female", "birthday": 631152000,
						"homeCity": "Brno, CZ",
						"photo":    map[string]string{"prefix": "https://img/", "suffix": "/a.jpg"},
						"contact":  map[string]string{"email": "alice@example.com", "phone": "123"},
					},
				},
			},
			want: oauth.User{
				ID: "42", FirstName: "Alice", LastName: "Doe", Name: "Alice Doe", Gender: "female", BirthDate: "1990-01-01",
				Location: "Brno, CZ", City: "Brno", Country: "CZ", Picture: "https://img/a.jpg",
				Email: "alice@example.com", Phone: "123",
			},
		},
		{
			name: "bitly",
			b:    Bitly(),
			info: map[string]interface{}{
				"data": map[string]string{"login": "alice", "full_name": "Alice Doe", "display_name": "ali", "profile_url": "https://bit.ly/u/alice"},
			},
			want: oauth.User{ID: "alice", Name: "Alice Doe", Username: "ali", Link: "https://bit.ly/u/alice"},
		},
		{
			name: "amazon",
			b:    Amazon(),
			info: map[string]interface{}{"user_id": "amzn1.account.X", "name": "Alice", "email": "alice@example.com", "postal_code": "60200"},
			want: oauth.User{ID: "amzn1.account.X", Name: "Alice", Email: "alice@example.com", PostalCode: "60200"},
		},
		{
			name: "windowslive",
			b:    WindowsLive(),
			info: map[string]interface{}{"id": "8c8ce076", "name": "Alice Doe", "emails": map[string]string{"preferred": "alice@live.com"}},
			want: oauth.User{ID: "8c8ce076", Name: "Alice Doe", Email: "alice@live.com", Picture: "https://apis.live.net/v5.0/8c8ce076/picture"},
		},
		{
			name: "linkedin",
			b:    LinkedIn(),
			info: map[string]interface{}{"sub": "li-1", "given_name": "Alice", "family_name": "Doe", "email": "alice@example.com"},
			want: oauth.User{ID: "li-1", FirstName: "Alice", LastName: "Doe", Name: "Alice Doe", Email: "alice@example.com"},
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert := assert.New(t)
			got := updateUser(t, tt.b, tt.info)
			tt.want.ProviderName = tt.b.Name
			got.Raw, got.Credentials = nil, nil
			assert.Equal(tt.want, *got)
		})
	}
}

func TestTwitter_user(t *testing.T) {
	t.Parallel()
	assert, require := assert.New(t), require.New(t)
	b := Twitter()
	u := &oauth.User{Location: " Prague, CZ "}
	require.NoError(b.UserParser(u, map[string]any{"user_id": "1234"}))
	assert.Equal("1234", u.ID)
	assert.Equal("Prague, CZ", u.Location)
	assert.Equal("Prague", u.City)
	assert.Equal("CZ", u.Country)

	u = &oauth.User{ID: "99"}
	require.NoError(b.UserParser(u, map[string]any{"user_id": "1234"}))
	assert.Equal("99", u.ID)
}

func TestXero_user(t *testing.T) {
	t.Parallel()
	const doc = `<Response>
  <Users>
    <User>
      <UserID>7cf47fe2</UserID>
      <EmailAddress>alice@example.com</EmailAddress>
      <FirstName>Alice</FirstName>
      <LastName>Doe</LastName>
    </User>
  </Users>
</Response>`
	tests := []struct {
		name      string
		data      any
		want      oauth.User
		wantIsErr error
	}{
		{name: "valid", data: doc, want: oauth.User{ID: "7cf47fe2", Email: "alice@example.com", FirstName: "Alice", LastName: "Doe"}},
		{name: "token-response", data: map[string]any{"oauth_token": "T"}},
		{name: "no-user", data: "<Response><Users/></Response>", wantIsErr: oauth.ErrNotFound},
		{name: "not-xml", data: "<<<"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			assert := assert.New(t)
			var u oauth.User
			err := Xero().UserParser(&u, tt.data)
			switch {
			case tt.wantIsErr != nil:
				assert.Truef(errors.Is(err, tt.wantIsErr), "wanted \"%s\" but got \"%s\"", tt.wantIsErr, err)
				return
			case tt.name == "not-xml":
				assert.Error(err)
				return
			}
			assert.NoError(err)
			assert.Equal(tt.want, u)
		})
	}
}

func TestFacebook_credentials(t *testing.T) {
	t.Parallel()
	assert, require := assert.New(t), require.New(t)
	b := Facebook()

	c := &oauth.Credentials{Token: "fb-token"}
	require.NoError(b.CredentialsParser(c, map[string]any{"access_token": "fb-token", "expires": "5183999"}))
	assert.Equal("fb-token", c.RefreshToken)
	assert.WithinDuration(time.Now().Add(5183999*time.Second), c.Expiration, time.Minute)

	assert.Error(b.CredentialsParser(&oauth.Credentials{}, map[string]any{"expires": "soon"}))

	rb, err := oauth.NewRequestBuilder(oauth.Consumer{Key: "K", Secret: "S"}, b)
	require.NoError(err)
	r, err := rb.Build(oauth.RefreshTokenRequest, oauth.RequestInput{URL: b.AccessTokenURL, Credentials: c})
	require.NoError(err)
	v, ok := r.Body.Get("fb_exchange_token")
	assert.True(ok)
	assert.Equal("fb-token", v)
	assert.False(r.Body.Has("refresh_token"))
	grant, _ := r.Body.Get("grant_type")
	assert.Equal("fb_exchange_token", grant)
}

func TestResourceAuth(t *testing.T) {
	t.Parallel()
	cfg := func(name string, id int, b *oauth.Behavior) *oauth.ProviderConfig {
		return &oauth.ProviderConfig{Name: name, ShortID: id, Consumer: oauth.Consumer{Key: "K", Secret: "S"}, Behavior: b}
	}
	r, err := oauth.NewRegistry(cfg("foursquare", 1, Foursquare()), cfg("linkedin", 2, LinkedIn()), cfg("google", 3, Google()), cfg("flickr", 4, Flickr()))
	require.NoError(t, err)
	a, err := oauth.New(r)
	require.NoError(t, err)

	tests := []struct {
		name       string
		c          oauth.Credentials
		url        string
		opt        []oauth.Option
		wantQuery  map[string]string
		wantHeader string
	}{
		{name: "foursquare", c: oauth.Credentials{Token: "T", ProviderName: "foursquare"}, url: "https://api.foursquare.com/v2/venues", wantQuery: map[string]string{"oauth_token": "T", "v": "20140501"}},
		{name: "foursquare-version", c: oauth.Credentials{Token: "T", ProviderName: "foursquare"}, url: "https://api.foursquare.com/v2/venues", opt: []oauth.Option{oauth.WithParams(oauth.Params{{Key: "v", Value: "20240101"}})}, wantQuery: map[string]string{"oauth_token": "T", "v": "20240101"}},
		{name: "linkedin", c: oauth.Credentials{Token: "T", ProviderName: "linkedin"}, url: "https://api.linkedin.com/v2/me", wantQuery: map[string]string{"oauth2_access_token": "T"}},
		{name: "google", c: oauth.Credentials{Token: "T", ProviderName: "google"}, url: "https://www.googleapis.com/drive/v3/files", wantQuery: map[string]string{}, wantHeader: "Bearer T"},
		{name: "flickr", c: oauth.Credentials{Token: "T", TokenSecret: "TS", ProviderName: "flickr"}, url: "https://api.flickr.com/services/rest", wantQuery: map[string]string{"format": "json", "nojsoncallback": "1", "oauth_token": "T"}},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			assert, require := assert.New(t), require.New(t)
			req, err := a.RequestElements(tt.c, tt.url, tt.opt...)
			require.NoError(err)
			assert.Equal(http.MethodGet, req.Method)
			for k, v := range tt.wantQuery {
				got, ok := req.Query.Get(k)
				assert.True(ok, k)
				assert.Equal(v, got, k)
			}
			assert.Equal(tt.wantHeader, req.Header.Get("Authorization"))
		})
	}
}

func TestGoogle_offline(t *testing.T) {
	t.Parallel()
	assert, require := assert.New(t), require.New(t)
	b := Google()
	assert.Equal(google.Endpoint.TokenURL, b.AccessTokenURL)
	r, err := oauth.NewRegistry(&oauth.ProviderConfig{
		Name: "google", ShortID: 1, Consumer: oauth.Consumer{Key: "K", Secret: "S"}, Behavior: b, Offline: true,
	})
	require.NoError(err)
	a, err := oauth.New(r)
	require.NoError(err)
	ad := oauth.NewTestAdapter("https://app/login/google", nil)
	res, err := a.Login(context.Background(), ad, oauth.NewTestSession(), "google")
	require.NoError(err)
	require.Nil(res)
	assert.Contains(ad.RedirectURL(), "access_type=offline")
	assert.Contains(ad.RedirectURL(), "approval_prompt=force")
	assert.Contains(ad.RedirectURL(), "scope=profile%20email")
}
