package providers

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/authomatic/authomatic-sub000/oauth"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/amazon"
	"golang.org/x/oauth2/facebook"
	"golang.org/x/oauth2/foursquare"
	"golang.org/x/oauth2/github"
	"golang.org/x/oauth2/google"
	"golang.org/x/oauth2/linkedin"
	"golang.org/x/oauth2/microsoft"
)

// Amazon is Login with Amazon.
func Amazon() *oauth.Behavior {
	b := oauth2Behavior("amazon", amazon.Endpoint)
	b.UserInfoURL = "https://api.amazon.com/user/profile"
	b.UserInfoScope = []string{"profile", "postal_code"}
	b.UserFields = map[string]string{
		"id": "user_id",
	}
	return b
}

// Bitly doesn't round trip the state parameter, so logins with it aren't
// CSRF protected.
func Bitly() *oauth.Behavior {
	b := oauth2Behavior("bitly", oauth2.Endpoint{
		AuthURL:   "https://bitly.com/oauth/authorize",
		TokenURL:  "https://api-ssl.bitly.com/oauth/access_token",
		AuthStyle: oauth2.AuthStyleInParams,
	})
	b.UserInfoURL = "https://api-ssl.bitly.com/v3/user/info"
	b.NoCSRF = true
	b.ResourceAuth = oauth.ResourceAuthQuery
	b.UserFields = map[string]string{
		"id":       "data.login",
		"name":     "data.full_name",
		"username": "data.display_name",
		"picture":  "data.profile_image",
		"link":     "data.profile_url",
	}
	return b
}

// Facebook issues long lived tokens without a refresh token.  The access
// token doubles as the refresh token and is renewed with the
// fb_exchange_token grant.
func Facebook() *oauth.Behavior {
	b := oauth2Behavior("facebook", facebook.Endpoint)
	b.UserInfoURL = "https://graph.facebook.com/me?fields=id,first_name,last_name,name,picture,email,gender,timezone,location,birthday,locale"
	b.UserInfoScope = []string{"email", "public_profile"}
	b.ScopeSeparator = ","
	b.UserFields = map[string]string{
		"birth_date": "birthday",
		"location":   "location.name",
		"picture":    "picture.data.url",
	}
	b.CredentialsParser = func(c *oauth.Credentials, data map[string]any) error {
		if _, ok := data["expires_in"]; !ok {
			if s := oauth.LookupString(data, "expires"); s != "" {
				n, err := strconv.ParseInt(s, 10, 64)
				if err != nil {
					return fmt.Errorf("expires %q is not a number", s)
				}
				c.SetExpiresIn(time.Now(), n)
			}
		}
		c.RefreshToken = c.Token
		return nil
	}
	b.RequestFilter = func(kind oauth.RequestKind, r *oauth.RequestElements, _ *oauth.Credentials) error {
		if kind != oauth.RefreshTokenRequest {
			return nil
		}
		swap := func(p oauth.Params) oauth.Params {
			if v, ok := p.Get("refresh_token"); ok {
				p = p.Del("refresh_token").Set("fb_exchange_token", v).Set("grant_type", "fb_exchange_token")
			}
			return p
		}
		r.Query, r.Body = swap(r.Query), swap(r.Body)
		return nil
	}
	b.UserParser = func(u *oauth.User, data any) error {
		if u.BirthDate != "" {
			if t, err := time.Parse("01/02/2006", u.BirthDate); err == nil {
				u.BirthDate = t.Format(time.DateOnly)
			}
		}
		if u.Picture == "" && u.ID != "" {
			u.Picture = "https://graph.facebook.com/" + u.ID + "/picture?type=large"
		}
		splitLocation(u)
		return nil
	}
	return b
}

// Foursquare wants its API version on every request; pass a "v" access
// param to override the default.
func Foursquare() *oauth.Behavior {
	b := oauth2Behavior("foursquare", foursquare.Endpoint)
	b.UserInfoURL = "https://api.foursquare.com/v2/users/self"
	b.ResourceAuth = oauth.ResourceAuthQuery
	b.AccessTokenParam = "oauth_token"
	b.AccessParams = oauth.Params{{Key: "v", Value: "20140501"}}
	b.UserFields = map[string]string{
		"id":         "response.user.id",
		"first_name": "response.user.firstName",
		"last_name":  "response.user.lastName",
		"gender":     "response.user.gender",
		"email":      "response.user.contact.email",
		"phone":      "response.user.contact.phone",
		"location":   "response.user.homeCity",
	}
	b.UserParser = func(u *oauth.User, data any) error {
		if v, ok := oauth.Lookup(data, "response.user.birthday"); ok {
			if sec, err := strconv.ParseInt(oauth.Stringify(v), 10, 64); err == nil {
				u.BirthDate = time.Unix(sec, 0).UTC().Format(time.DateOnly)
			}
		}
		switch photo, _ := oauth.Lookup(data, "response.user.photo"); p := photo.(type) {
		case string:
			u.Picture = p
		case map[string]any:
			prefix := strings.Trim(oauth.Stringify(p["prefix"]), "/")
			suffix := strings.Trim(oauth.Stringify(p["suffix"]), "/")
			if prefix != "" || suffix != "" {
				u.Picture = prefix + "/" + suffix
			}
		}
		splitLocation(u)
		return nil
	}
	return b
}

// GitHub returns tokens form encoded unless asked otherwise.  Its API
// requires a User-Agent, which the default HTTP client sends.
func GitHub() *oauth.Behavior {
	b := oauth2Behavior("github", github.Endpoint)
	b.UserInfoURL = "https://api.github.com/user"
	b.ScopeSeparator = ","
	b.AccessHeaders = map[string]string{"Accept": "application/vnd.github+json"}
	b.UserFields = map[string]string{
		"username": "login",
		"picture":  "avatar_url",
		"link":     "html_url",
	}
	return b
}

// Google asks for offline access with access_type=offline and forces the
// consent screen so a refresh token is issued again.
func Google() *oauth.Behavior {
	b := oauth2Behavior("google", google.Endpoint)
	b.UserInfoURL = "https://www.googleapis.com/oauth2/v3/userinfo"
	b.UserInfoScope = []string{"profile", "email"}
	b.OfflineParams = oauth.Params{
		{Key: "access_type", Value: "offline"},
		{Key: "approval_prompt", Value: "force"},
	}
	b.UserFields = map[string]string{
		"id":         "sub",
		"first_name": "given_name",
		"last_name":  "family_name",
	}
	b.UserParser = func(u *oauth.User, data any) error {
		emails, _ := oauth.Lookup(data, "emails")
		list, _ := emails.([]any)
		for i, e := range list {
			addr := oauth.LookupString(e, "value")
			if i == 0 {
				u.Email = addr
			}
			if oauth.LookupString(e, "type") == "account" {
				u.Email = addr
				break
			}
		}
		return nil
	}
	return b
}

// LinkedIn reads the access token from the oauth2_access_token parameter
// and only accepts GET token requests.
func LinkedIn() *oauth.Behavior {
	b := oauth2Behavior("linkedin", linkedin.Endpoint)
	b.UserInfoURL = "https://api.linkedin.com/v2/userinfo"
	b.UserInfoScope = []string{"openid", "profile", "email"}
	b.TokenRequestMethod = "GET"
	b.ResourceAuth = oauth.ResourceAuthQuery
	b.AccessTokenParam = "oauth2_access_token"
	b.ShouldRefresh = func(*oauth.Credentials) bool { return false }
	b.UserFields = map[string]string{
		"id":         "sub",
		"first_name": "given_name",
		"last_name":  "family_name",
	}
	return b
}

// WindowsLive is the Microsoft account (Live Connect) provider.
func WindowsLive() *oauth.Behavior {
	b := oauth2Behavior("windowslive", microsoft.LiveConnectEndpoint)
	b.UserInfoURL = "https://apis.live.net/v5.0/me"
	b.UserInfoScope = []string{"wl.basic", "wl.emails", "wl.photos"}
	b.UserFields = map[string]string{
		"email": "emails.preferred",
	}
	b.UserParser = func(u *oauth.User, _ any) error {
		if u.ID != "" {
			u.Picture = "https://apis.live.net/v5.0/" + u.ID + "/picture"
		}
		return nil
	}
	return b
}
