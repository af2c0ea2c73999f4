package oauth

import (
	"net/url"
	"sort"
	"strings"
)

// Param is a single request parameter.
type Param struct {
	Key   string
	Value string
}

// Params is an ordered list of request parameters.  Keys may repeat.
type Params []Param

// Add appends key=value and returns the result.
func (p Params) Add(key, value string) Params {
	return append(p, Param{Key: key, Value: value})
}

// Get returns the first value for key.
func (p Params) Get(key string) (string, bool) {
	for _, kv := range p {
		if kv.Key == key {
			return kv.Value, true
		}
	}
	return "", false
}

// Has reports whether key is present.
func (p Params) Has(key string) bool {
	_, ok := p.Get(key)
	return ok
}

// Set replaces every value of key with value, keeping the position of the
// first occurrence.  The pair is appended when key isn't present.
func (p Params) Set(key, value string) Params {
	out := make(Params, 0, len(p)+1)
	found := false
	for _, kv := range p {
		if kv.Key != key {
			out = append(out, kv)
			continue
		}
		if !found {
			out = append(out, Param{Key: key, Value: value})
			found = true
		}
	}
	if !found {
		out = append(out, Param{Key: key, Value: value})
	}
	return out
}

// Del removes every value of key.
func (p Params) Del(key string) Params {
	out := make(Params, 0, len(p))
	for _, kv := range p {
		if kv.Key != key {
			out = append(out, kv)
		}
	}
	return out
}

// Merge appends other, replacing values of keys already present.
func (p Params) Merge(other Params) Params {
	out := append(Params(nil), p...)
	for _, kv := range other {
		out = out.Set(kv.Key, kv.Value)
	}
	return out
}

// Encode serializes the params in order as k1=v1&k2=v2, with keys and values
// percent-encoded over the RFC 3986 unreserved set.
func (p Params) Encode() string {
	if len(p) == 0 {
		return ""
	}
	var b strings.Builder
	for i, kv := range p {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(Escape(kv.Key))
		b.WriteByte('=')
		b.WriteString(Escape(kv.Value))
	}
	return b.String()
}

// Map returns the params as a map.  The last value wins on duplicates.
func (p Params) Map() map[string]string {
	m := make(map[string]string, len(p))
	for _, kv := range p {
		m[kv.Key] = kv.Value
	}
	return m
}

// ParamsFromValues converts url.Values to Params, sorted by key so the result
// is deterministic.
func ParamsFromValues(v url.Values) Params {
	keys := make([]string, 0, len(v))
	for k := range v {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var p Params
	for _, k := range keys {
		for _, val := range v[k] {
			p = p.Add(k, val)
		}
	}
	return p
}

// ParamsFromMap converts a map to Params, sorted by key.
func ParamsFromMap(m map[string]string) Params {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	p := make(Params, 0, len(m))
	for _, k := range keys {
		p = p.Add(k, m[k])
	}
	return p
}

const upperhex = "0123456789ABCDEF"

func unreserved(c byte) bool {
	switch {
	case 'A' <= c && c <= 'Z', 'a' <= c && c <= 'z', '0' <= c && c <= '9':
		return true
	case c == '-', c == '.', c == '_', c == '~':
		return true
	}
	return false
}

// Escape percent-encodes s as required by RFC 5849 section 3.6: every byte
// outside ALPHA / DIGIT / "-" / "." / "_" / "~" is encoded with uppercase
// hex.  A space becomes %20, never "+".
func Escape(s string) string {
	n := 0
	for i := 0; i < len(s); i++ {
		if !unreserved(s[i]) {
			n++
		}
	}
	if n == 0 {
		return s
	}
	b := make([]byte, 0, len(s)+2*n)
	for i := 0; i < len(s); i++ {
		c := s[i]
		if unreserved(c) {
			b = append(b, c)
			continue
		}
		b = append(b, '%', upperhex[c>>4], upperhex[c&15])
	}
	return string(b)
}

// Unescape reverses Escape.  A "+" is kept literally.
func Unescape(s string) (string, error) {
	return url.PathUnescape(s)
}

// splitURL separates the query of rawURL into Params and returns the URL
// without query and fragment.
func splitURL(rawURL string) (string, Params, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", nil, err
	}
	q, err := url.ParseQuery(u.RawQuery)
	if err != nil {
		return "", nil, err
	}
	var params Params
	if u.RawQuery != "" {
		params = orderedQuery(u.RawQuery, q)
	}
	u.RawQuery = ""
	u.Fragment = ""
	u.RawFragment = ""
	return u.String(), params, nil
}

// orderedQuery keeps the order of raw while using the already decoded values.
func orderedQuery(raw string, decoded map[string][]string) Params {
	var params Params
	seen := map[string]int{}
	for _, part := range strings.Split(raw, "&") {
		if part == "" {
			continue
		}
		k, _, _ := strings.Cut(part, "=")
		key, err := url.QueryUnescape(k)
		if err != nil {
			continue
		}
		vals := decoded[key]
		i := seen[key]
		if i >= len(vals) {
			continue
		}
		seen[key] = i + 1
		params = params.Add(key, vals[i])
	}
	return params
}
