package oauth

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"golang.org/x/oauth2"
)

// TokenType is the OAuth 2.0 token type.  Only the two values below are
// representable in serialized credentials.
type TokenType string

const (
	TokenTypeNone   TokenType = ""
	TokenTypeBearer TokenType = "Bearer"
)

// NormalizeTokenType maps a token_type value from a token response to a
// TokenType.  "bearer" in any case becomes TokenTypeBearer; anything else
// becomes TokenTypeNone.
func NormalizeTokenType(s string) TokenType {
	if strings.EqualFold(strings.TrimSpace(s), string(TokenTypeBearer)) {
		return TokenTypeBearer
	}
	return TokenTypeNone
}

// tokenTypeIndex and tokenTypeAt implement the serialized token type table
// ["", "Bearer"].  The positions are part of the serialized format.
func tokenTypeIndex(t TokenType) int {
	if t == TokenTypeBearer {
		return 1
	}
	return 0
}

func tokenTypeAt(i int) (TokenType, bool) {
	switch i {
	case 0:
		return TokenTypeNone, true
	case 1:
		return TokenTypeBearer, true
	}
	return TokenTypeNone, false
}

// RedactedToken is the redacted string for a token value
const RedactedToken = "[REDACTED: token]"

// Credentials are the user-specific tokens returned by a login.  They are
// plain values: copy them freely, but serialize access to a single value
// when refreshing it.
type Credentials struct {
	// Token is the access token.
	Token string

	// TokenSecret is the OAuth 1.0a token secret.
	TokenSecret string

	// RefreshToken is the OAuth 2.0 refresh token, if any.
	RefreshToken string

	// TokenType is the OAuth 2.0 token type.
	TokenType TokenType

	// Expiration is when Token expires.  The zero value means it doesn't.
	Expiration time.Time

	// ProviderName, ProviderKind and ProviderID identify the provider entry
	// the credentials belong to.
	ProviderName string
	ProviderKind ProviderKind
	ProviderID   int

	// Consumer is the application's key and secret.  It's never serialized
	// and is restored from the registry on deserialization.
	Consumer Consumer
}

// Valid reports whether the credentials haven't expired.
func (c *Credentials) Valid() bool {
	return c.ValidAt(time.Now())
}

// ValidAt reports whether the credentials are unexpired at now.
func (c *Credentials) ValidAt(now time.Time) bool {
	if c == nil {
		return false
	}
	if c.Expiration.IsZero() {
		return true
	}
	return c.Expiration.After(now)
}

// ExpireSoon reports whether the credentials expire within d.  Credentials
// without an expiration never expire soon.
func (c *Credentials) ExpireSoon(d time.Duration) bool {
	if c == nil || c.Expiration.IsZero() {
		return false
	}
	return !c.Expiration.After(time.Now().Add(d))
}

// ExpiresIn returns the time left before expiration, or zero when the
// credentials don't expire or already expired.
func (c *Credentials) ExpiresIn() time.Duration {
	if c == nil || c.Expiration.IsZero() {
		return 0
	}
	if d := time.Until(c.Expiration); d > 0 {
		return d
	}
	return 0
}

// maxExpiresIn caps expires_in at about a century.
const maxExpiresIn = int64(100 * 365 * 24 * 60 * 60)

// SetExpiresIn sets Expiration to now plus seconds, capped at maxExpiresIn.
// A non-positive value leaves Expiration unchanged.
func (c *Credentials) SetExpiresIn(now time.Time, seconds int64) {
	if seconds <= 0 {
		return
	}
	if seconds > maxExpiresIn {
		seconds = maxExpiresIn
	}
	c.Expiration = now.Add(time.Duration(seconds) * time.Second)
}

// OAuth2Token converts OAuth 2.0 credentials to an *oauth2.Token.
func (c *Credentials) OAuth2Token() *oauth2.Token {
	if c == nil {
		return nil
	}
	return &oauth2.Token{
		AccessToken:  c.Token,
		TokenType:    string(c.TokenType),
		RefreshToken: c.RefreshToken,
		Expiry:       c.Expiration,
	}
}

// String will redact the tokens.
func (c Credentials) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Credentials{provider: %q, id: %d, kind: %s", c.ProviderName, c.ProviderID, c.ProviderKind)
	if c.Token != "" {
		fmt.Fprintf(&b, ", token: %s", RedactedToken)
	}
	if c.TokenSecret != "" {
		fmt.Fprintf(&b, ", token_secret: %s", RedactedToken)
	}
	if c.RefreshToken != "" {
		fmt.Fprintf(&b, ", refresh_token: %s", RedactedToken)
	}
	if c.TokenType != TokenTypeNone {
		fmt.Fprintf(&b, ", token_type: %s", c.TokenType)
	}
	if !c.Expiration.IsZero() {
		fmt.Fprintf(&b, ", expiration: %s", c.Expiration.UTC().Format(time.RFC3339))
	}
	b.WriteString("}")
	return b.String()
}

// Serialize encodes the credentials as a URL safe ASCII string.  The decoded
// layout is a newline separated list whose first field is the provider short
// id, followed by (token, token_secret) for OAuth 1.0a or (token,
// refresh_token, expiration epoch, token type index) for OAuth 2.0.  Consumer
// secrets are not included.
func (c *Credentials) Serialize() (string, error) {
	const op = "oauth.(Credentials).Serialize"
	if c == nil {
		return "", NewError(ErrConfig, WithOp(op), WithMsg("credentials are nil"), WithWrap(ErrNilParameter))
	}
	if c.ProviderID < MinShortID || c.ProviderID > MaxShortID {
		return "", NewError(ErrConfig, WithOp(op), WithMsg(fmt.Sprintf("provider %q has no valid short id", c.ProviderName)))
	}
	fields := []string{strconv.Itoa(c.ProviderID)}
	switch c.ProviderKind {
	case KindOAuth1:
		fields = append(fields, c.Token, c.TokenSecret)
	case KindOAuth2:
		var exp int64
		if !c.Expiration.IsZero() {
			exp = c.Expiration.Unix()
		}
		fields = append(fields, c.Token, c.RefreshToken, strconv.FormatInt(exp, 10), strconv.Itoa(tokenTypeIndex(c.TokenType)))
	default:
		return "", NewError(ErrConfig, WithOp(op), WithMsg(fmt.Sprintf("provider %q kind %s can't be serialized", c.ProviderName, c.ProviderKind)))
	}
	return encodeFields(fields), nil
}

// encodeFields escapes every field, joins them with newlines and escapes the
// result again, so fields may contain any byte.
func encodeFields(fields []string) string {
	escaped := make([]string, len(fields))
	for i, f := range fields {
		escaped[i] = Escape(f)
	}
	return Escape(strings.Join(escaped, "\n"))
}

func decodeFields(s string) ([]string, error) {
	joined, err := Unescape(s)
	if err != nil {
		return nil, err
	}
	parts := strings.Split(joined, "\n")
	fields := make([]string, len(parts))
	for i, p := range parts {
		if fields[i], err = Unescape(p); err != nil {
			return nil, err
		}
	}
	return fields, nil
}

// reconstruct populates a fresh Credentials from the decoded fields that
// follow the short id.
func reconstruct(cfg *ProviderConfig, fields []string) (*Credentials, error) {
	const op = "oauth.reconstruct"
	c := &Credentials{
		ProviderName: cfg.Name,
		ProviderKind: cfg.Kind(),
		ProviderID:   cfg.ShortID,
		Consumer:     cfg.Consumer,
	}
	switch cfg.Kind() {
	case KindOAuth1:
		if len(fields) != 2 {
			return nil, NewError(ErrCredentials, WithOp(op), WithMsg(fmt.Sprintf("%s credentials have %d fields, wanted 2", cfg.Name, len(fields))))
		}
		c.Token, c.TokenSecret = fields[0], fields[1]
	case KindOAuth2:
		if len(fields) != 4 {
			return nil, NewError(ErrCredentials, WithOp(op), WithMsg(fmt.Sprintf("%s credentials have %d fields, wanted 4", cfg.Name, len(fields))))
		}
		c.Token, c.RefreshToken = fields[0], fields[1]
		exp, err := strconv.ParseInt(fields[2], 10, 64)
		if err != nil {
			return nil, NewError(ErrCredentials, WithOp(op), WithMsg("invalid expiration"), WithWrap(err))
		}
		if exp != 0 {
			c.Expiration = time.Unix(exp, 0)
		}
		idx, err := strconv.Atoi(fields[3])
		if err != nil {
			return nil, NewError(ErrCredentials, WithOp(op), WithMsg("invalid token type"), WithWrap(err))
		}
		tt, ok := tokenTypeAt(idx)
		if !ok {
			return nil, NewError(ErrCredentials, WithOp(op), WithMsg(fmt.Sprintf("unknown token type index %d", idx)))
		}
		c.TokenType = tt
	default:
		return nil, NewError(ErrCredentials, WithOp(op), WithMsg(fmt.Sprintf("provider %q kind %s has no credentials", cfg.Name, cfg.Kind())))
	}
	if c.Token == "" {
		return nil, NewError(ErrCredentials, WithOp(op), WithMsg("token is empty"))
	}
	return c, nil
}
