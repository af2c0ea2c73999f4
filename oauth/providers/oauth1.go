package providers

import (
	"fmt"
	"strings"

	"github.com/authomatic/authomatic-sub000/oauth"
	"github.com/beevik/etree"
)

func oauth1Behavior(name, requestTokenURL, authorizationURL, accessTokenURL string) *oauth.Behavior {
	return &oauth.Behavior{
		Name:             name,
		Kind:             oauth.KindOAuth1,
		RequestTokenURL:  requestTokenURL,
		AuthorizationURL: authorizationURL,
		AccessTokenURL:   accessTokenURL,
	}
}

// Bitbucket is the Bitbucket 1.0 API.
func Bitbucket() *oauth.Behavior {
	b := oauth1Behavior("bitbucket",
		"https://bitbucket.org/!api/1.0/oauth/request_token",
		"https://bitbucket.org/!api/1.0/oauth/authenticate",
		"https://bitbucket.org/!api/1.0/oauth/access_token",
	)
	b.UserInfoURL = "https://api.bitbucket.org/1.0/user"
	b.UserFields = map[string]string{
		"id":         "user.username",
		"username":   "user.username",
		"name":       "user.display_name",
		"first_name": "user.first_name",
		"last_name":  "user.last_name",
		"picture":    "user.avatar",
	}
	b.UserParser = func(u *oauth.User, data any) error {
		if uri := oauth.LookupString(data, "user.resource_uri"); uri != "" {
			u.Link = "https://bitbucket.org/api" + uri
		}
		return nil
	}
	return b
}

// Flickr has no user info endpoint; the user comes from the access token
// response.  Add a "perms" user authorization param to pick the permission
// set.
func Flickr() *oauth.Behavior {
	b := oauth1Behavior("flickr",
		"https://www.flickr.com/services/oauth/request_token",
		"https://www.flickr.com/services/oauth/authorize",
		"https://www.flickr.com/services/oauth/access_token",
	)
	b.AccessParams = oauth.Params{
		{Key: "format", Value: "json"},
		{Key: "nojsoncallback", Value: "1"},
	}
	b.UserFields = map[string]string{
		"id":   "user_nsid",
		"name": "fullname",
	}
	return b
}

// Tumblr identifies users by blog name.
func Tumblr() *oauth.Behavior {
	b := oauth1Behavior("tumblr",
		"https://www.tumblr.com/oauth/request_token",
		"https://www.tumblr.com/oauth/authorize",
		"https://www.tumblr.com/oauth/access_token",
	)
	b.UserInfoURL = "https://api.tumblr.com/v2/user/info"
	b.UserFields = map[string]string{
		"id":       "response.user.name",
		"username": "response.user.name",
		"name":     "response.user.name",
	}
	return b
}

// Twitter.
func Twitter() *oauth.Behavior {
	b := oauth1Behavior("twitter",
		"https://api.twitter.com/oauth/request_token",
		"https://api.twitter.com/oauth/authenticate",
		"https://api.twitter.com/oauth/access_token",
	)
	b.UserInfoURL = "https://api.twitter.com/1.1/account/verify_credentials.json?include_entities=true&include_email=true"
	b.UserFields = map[string]string{
		"id":       "id_str",
		"username": "screen_name",
		"picture":  "profile_image_url_https",
		"locale":   "lang",
		"link":     "url",
	}
	b.UserParser = func(u *oauth.User, data any) error {
		if u.ID == "" {
			u.ID = oauth.LookupString(data, "user_id")
		}
		u.Location = strings.TrimSpace(u.Location)
		splitLocation(u)
		return nil
	}
	return b
}

// Xero answers with XML.
func Xero() *oauth.Behavior {
	b := oauth1Behavior("xero",
		"https://api.xero.com/oauth/RequestToken",
		"https://api.xero.com/oauth/Authorize",
		"https://api.xero.com/oauth/AccessToken",
	)
	b.UserInfoURL = "https://api.xero.com/api.xro/2.0/Users"
	b.AccessHeaders = map[string]string{"Accept": "application/xml"}
	b.UserParser = xeroUser
	return b
}

// xeroUser reads the first Users/User element.  Token responses are form
// encoded maps and are left alone.
func xeroUser(u *oauth.User, data any) error {
	const op = "providers.xeroUser"
	s, ok := data.(string)
	if !ok {
		return nil
	}
	doc := etree.NewDocument()
	if err := doc.ReadFromString(s); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	user := doc.FindElement("//Users/User")
	if user == nil {
		return fmt.Errorf("%s: no Users/User element: %w", op, oauth.ErrNotFound)
	}
	text := func(tag string) string {
		if e := user.SelectElement(tag); e != nil {
			return strings.TrimSpace(e.Text())
		}
		return ""
	}
	u.ID = text("UserID")
	u.FirstName = text("FirstName")
	u.LastName = text("LastName")
	u.Email = text("EmailAddress")
	return nil
}
