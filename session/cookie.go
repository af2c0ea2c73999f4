package session

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/authomatic/authomatic-sub000/oauth"
	"github.com/golang-jwt/jwt/v5"
	"github.com/hashicorp/go-hclog"
	"golang.org/x/crypto/hkdf"
	"golang.org/x/crypto/nacl/secretbox"
)

const (
	// MinSecretSize is the minimum length of the secret of NewCookie.
	MinSecretSize = 32

	// MaxCookieSize is the largest cookie user agents are required to keep.
	MaxCookieSize = 4096

	nonceSize = 24
	keySize   = 32
)

// ErrCookieTooLarge is returned by Save when the encoded session doesn't fit
// in a cookie.
var ErrCookieTooLarge = errors.New("session cookie too large")

// Cookie keeps whole sessions in a cookie.  Values are encrypted with
// secretbox and wrapped in an HS256 signed JWT carrying the expiry, so the
// user agent can neither read nor alter them.
type Cookie struct {
	signKey []byte
	encKey  [keySize]byte
	cookie  http.Cookie
	ttl     time.Duration
	now     func() time.Time
	logger  hclog.Logger
}

type cookieClaims struct {
	Box string `json:"box"`
	jwt.RegisteredClaims
}

// NewCookie creates a Cookie session codec.  The signing and encryption keys
// are derived from secret, which must be at least MinSecretSize bytes.
// Supported options: WithLogger, WithCookieName, WithCookiePath, WithTTL,
// WithInsecureCookies, WithSameSite, WithNow
func NewCookie(secret []byte, opt ...Option) (*Cookie, error) {
	const op = "session.NewCookie"
	if len(secret) < MinSecretSize {
		return nil, fmt.Errorf("%s: secret must be at least %d bytes: %w", op, MinSecretSize, oauth.ErrInvalidParameter)
	}
	opts := getOpts(opt...)
	c := &Cookie{
		signKey: make([]byte, keySize),
		ttl:     opts.withTTL,
		now:     opts.withNow,
		logger:  opts.withLogger,
		cookie: http.Cookie{
			Name:     opts.withCookieName,
			Path:     opts.withCookiePath,
			MaxAge:   int(opts.withTTL / time.Second),
			Secure:   !opts.withInsecure,
			HttpOnly: true,
			SameSite: opts.withSameSite,
		},
	}
	if _, err := io.ReadFull(hkdf.New(sha256.New, secret, nil, []byte("authomatic session signing")), c.signKey); err != nil {
		return nil, fmt.Errorf("%s: unable to derive signing key: %w", op, err)
	}
	if _, err := io.ReadFull(hkdf.New(sha256.New, secret, nil, []byte("authomatic session encryption")), c.encKey[:]); err != nil {
		return nil, fmt.Errorf("%s: unable to derive encryption key: %w", op, err)
	}
	return c, nil
}

// Load returns the session carried by the request's cookie.  A missing,
// tampered or expired cookie yields an empty session.
func (c *Cookie) Load(w http.ResponseWriter, req *http.Request) (oauth.SessionStore, error) {
	s := &CookieStore{codec: c, w: w, values: map[string]string{}}
	rc, err := req.Cookie(c.cookie.Name)
	if err != nil || rc.Value == "" {
		return s, nil
	}
	values, err := c.decode(rc.Value)
	if err != nil {
		c.logger.Debug("ignoring session cookie", "error", err)
		return s, nil
	}
	s.values = values
	return s, nil
}

func (c *Cookie) encode(values map[string]string) (string, error) {
	const op = "session.(Cookie).encode"
	plain, err := json.Marshal(values)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	var nonce [nonceSize]byte
	if _, err := io.ReadFull(rand.Reader, nonce[:]); err != nil {
		return "", fmt.Errorf("%s: unable to read nonce: %w", op, err)
	}
	box := secretbox.Seal(nonce[:], plain, &nonce, &c.encKey)
	now := c.now()
	claims := cookieClaims{
		Box: base64.RawURLEncoding.EncodeToString(box),
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(c.ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.signKey)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return signed, nil
}

func (c *Cookie) decode(raw string) (map[string]string, error) {
	const op = "session.(Cookie).decode"
	var claims cookieClaims
	_, err := jwt.ParseWithClaims(raw, &claims,
		func(*jwt.Token) (interface{}, error) { return c.signKey, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(c.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	box, err := base64.RawURLEncoding.DecodeString(claims.Box)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if len(box) < nonceSize+secretbox.Overhead {
		return nil, fmt.Errorf("%s: box too short: %w", op, oauth.ErrInvalidParameter)
	}
	var nonce [nonceSize]byte
	copy(nonce[:], box[:nonceSize])
	plain, ok := secretbox.Open(nil, box[nonceSize:], &nonce, &c.encKey)
	if !ok {
		return nil, fmt.Errorf("%s: unable to open box: %w", op, oauth.ErrInvalidParameter)
	}
	values := map[string]string{}
	if err := json.Unmarshal(plain, &values); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return values, nil
}

// CookieStore is a session held in a cookie.  Save writes the cookie, so it
// must run before the response headers are sent.
type CookieStore struct {
	mu     sync.Mutex
	codec  *Cookie
	w      http.ResponseWriter
	values map[string]string
	dirty  bool
}

var _ oauth.SessionStore = (*CookieStore)(nil)

// Get returns the value of key.
func (s *CookieStore) Get(_ context.Context, key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.values[key]
	return v, ok, nil
}

// Set stores value under key.
func (s *CookieStore) Set(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = value
	s.dirty = true
	return nil
}

// Delete removes key.
func (s *CookieStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.values[key]; ok {
		delete(s.values, key)
		s.dirty = true
	}
	return nil
}

// Save sets the session cookie when the session changed.  An empty session
// expires the cookie.
func (s *CookieStore) Save(_ context.Context) error {
	const op = "session.(CookieStore).Save"
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.dirty {
		return nil
	}
	cookie := s.codec.cookie
	if len(s.values) == 0 {
		cookie.MaxAge = -1
	} else {
		v, err := s.codec.encode(s.values)
		if err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
		cookie.Value = v
	}
	if n := len(cookie.String()); n > MaxCookieSize {
		return fmt.Errorf("%s: %d bytes: %w", op, n, ErrCookieTooLarge)
	}
	http.SetCookie(s.w, &cookie)
	s.dirty = false
	return nil
}
