// Package providers has Behaviors for well known OAuth 1.0a and OAuth 2.0
// providers.  Each constructor returns a new Behavior, so callers may tweak
// it before handing it to an oauth.Registry.
package providers

import (
	"fmt"
	"sort"
	"strings"

	"github.com/authomatic/authomatic-sub000/oauth"
	"golang.org/x/oauth2"
)

// Constructor returns a new Behavior.
type Constructor func() *oauth.Behavior

var builtin = map[string]Constructor{
	"amazon":      Amazon,
	"bitbucket":   Bitbucket,
	"bitly":       Bitly,
	"facebook":    Facebook,
	"flickr":      Flickr,
	"foursquare":  Foursquare,
	"github":      GitHub,
	"google":      Google,
	"linkedin":    LinkedIn,
	"tumblr":      Tumblr,
	"twitter":     Twitter,
	"windowslive": WindowsLive,
	"xero":        Xero,
}

// Names returns the names Lookup accepts, sorted.
func Names() []string {
	names := make([]string, 0, len(builtin))
	for n := range builtin {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Lookup returns a new Behavior for the named provider.  Names are case
// insensitive.
func Lookup(name string) (*oauth.Behavior, error) {
	const op = "providers.Lookup"
	fn, ok := builtin[strings.ToLower(name)]
	if !ok {
		return nil, fmt.Errorf("%s: unknown provider %q: %w", op, name, oauth.ErrNotFound)
	}
	return fn(), nil
}

// oauth2Behavior starts an OAuth 2.0 behavior from an x/oauth2 endpoint.
func oauth2Behavior(name string, ep oauth2.Endpoint) *oauth.Behavior {
	return &oauth.Behavior{
		Name:             name,
		Kind:             oauth.KindOAuth2,
		AuthorizationURL: ep.AuthURL,
		AccessTokenURL:   ep.TokenURL,
		AuthStyle:        ep.AuthStyle,
	}
}

// splitLocation fills city and country from "City, Country" when they're
// empty.
func splitLocation(u *oauth.User) {
	if u.Location == "" {
		return
	}
	parts := strings.SplitN(u.Location, ",", 2)
	if u.City == "" {
		u.City = strings.TrimSpace(parts[0])
	}
	if len(parts) > 1 && u.Country == "" {
		u.Country = strings.TrimSpace(parts[1])
	}
}
