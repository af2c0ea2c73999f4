package oauth

import (
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"fmt"
	"net/url"
	"sort"
	"strings"
)

// SignatureMethod is an OAuth 1.0a oauth_signature_method.
type SignatureMethod string

const (
	HMACSHA1  SignatureMethod = "HMAC-SHA1"
	PLAINTEXT SignatureMethod = "PLAINTEXT"
)

// Valid reports whether the signature method is supported.
func (m SignatureMethod) Valid() bool {
	switch m {
	case HMACSHA1, PLAINTEXT:
		return true
	}
	return false
}

// NormalizeParams returns the normalized request parameter string of RFC 5849
// section 3.4.1.3.2.  oauth_signature and realm are excluded.  Keys and
// values are percent-encoded and the pairs are sorted by encoded key, then by
// encoded value, so the result doesn't depend on the order of params.
func NormalizeParams(params Params) string {
	pairs := make([][2]string, 0, len(params))
	for _, kv := range params {
		if kv.Key == "oauth_signature" || kv.Key == "realm" {
			continue
		}
		pairs = append(pairs, [2]string{Escape(kv.Key), Escape(kv.Value)})
	}
	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i][0] != pairs[j][0] {
			return pairs[i][0] < pairs[j][0]
		}
		return pairs[i][1] < pairs[j][1]
	})
	parts := make([]string, len(pairs))
	for i, p := range pairs {
		parts[i] = p[0] + "=" + p[1]
	}
	return strings.Join(parts, "&")
}

// BaseURL returns the base string URI of RFC 5849 section 3.4.1.2: lower case
// scheme and host, default port removed, no query or fragment.
func BaseURL(rawURL string) (string, error) {
	const op = "oauth.BaseURL"
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("%s: unable to parse url: %w", op, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("%s: url %q is not absolute: %w", op, rawURL, ErrInvalidParameter)
	}
	scheme := strings.ToLower(u.Scheme)
	host := strings.ToLower(u.Hostname())
	if port := u.Port(); port != "" {
		if !(scheme == "http" && port == "80") && !(scheme == "https" && port == "443") {
			host = host + ":" + port
		}
	}
	path := u.EscapedPath()
	if path == "" {
		path = "/"
	}
	return scheme + "://" + host + path, nil
}

// SignatureBaseString returns METHOD&pct(base url)&pct(normalized params).
// Params found in the query of rawURL are included.
func SignatureBaseString(method, rawURL string, params Params) (string, error) {
	const op = "oauth.SignatureBaseString"
	base, err := BaseURL(rawURL)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	_, query, err := splitURL(rawURL)
	if err != nil {
		return "", fmt.Errorf("%s: unable to parse query: %w", op, err)
	}
	all := append(query, params...)
	return strings.ToUpper(method) + "&" + Escape(base) + "&" + Escape(NormalizeParams(all)), nil
}

// signingKey is pct(consumer secret)&pct(token secret).
func signingKey(consumerSecret, tokenSecret string) string {
	return Escape(consumerSecret) + "&" + Escape(tokenSecret)
}

// Sign computes the oauth_signature of a request.  For HMACSHA1 it is the
// base64 HMAC-SHA1 of the signature base string keyed with the consumer and
// token secrets.  For PLAINTEXT it is the percent-encoded key itself and the
// request is ignored.
func Sign(m SignatureMethod, method, rawURL string, params Params, consumerSecret, tokenSecret string) (string, error) {
	const op = "oauth.Sign"
	key := signingKey(consumerSecret, tokenSecret)
	switch m {
	case HMACSHA1:
		base, err := SignatureBaseString(method, rawURL, params)
		if err != nil {
			return "", fmt.Errorf("%s: %w", op, err)
		}
		mac := hmac.New(sha1.New, []byte(key))
		mac.Write([]byte(base))
		return base64.StdEncoding.EncodeToString(mac.Sum(nil)), nil
	case PLAINTEXT:
		return Escape(key), nil
	default:
		return "", fmt.Errorf("%s: unsupported signature method %q: %w", op, m, ErrInvalidParameter)
	}
}
