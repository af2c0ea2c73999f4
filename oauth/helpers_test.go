package oauth

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// stubReply is a canned stubClient response.
type stubReply struct {
	status      int
	contentType string
	body        string
	err         error
}

// stubClient is an HTTPClient that records requests and replays canned
// responses in order.
type stubClient struct {
	mu       sync.Mutex
	requests []*RequestElements
	replies  []stubReply
}

func newStubClient(replies ...stubReply) *stubClient {
	return &stubClient{replies: replies}
}

func (c *stubClient) Do(_ context.Context, r *RequestElements) (*Response, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.requests = append(c.requests, r)
	if len(c.replies) == 0 {
		return nil, errors.New("stub client has no reply left")
	}
	reply := c.replies[0]
	c.replies = c.replies[1:]
	if reply.err != nil {
		return nil, reply.err
	}
	h := http.Header{}
	if reply.contentType != "" {
		h.Set("Content-Type", reply.contentType)
	}
	resp := NewResponse(reply.status, h, []byte(reply.body), nil)
	resp.URL = r.FullURL()
	return resp, nil
}

func (c *stubClient) Requests() []*RequestElements {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]*RequestElements(nil), c.requests...)
}

var testNow = time.Date(2023, 11, 14, 22, 13, 20, 0, time.UTC)

func fixedNow() time.Time { return testNow }

func fixedNonce(n string) func() (string, error) {
	return func() (string, error) { return n, nil }
}

// exBehavior is the "ex" OAuth 2.0 provider used by the literal scenarios.
func exBehavior() *Behavior {
	return &Behavior{
		Name:             "ex",
		Kind:             KindOAuth2,
		AuthorizationURL: "https://p/auth",
		AccessTokenURL:   "https://p/token",
	}
}

func exConfig() *ProviderConfig {
	return &ProviderConfig{
		Name:       "ex",
		ShortID:    5,
		Consumer:   Consumer{Key: "K", Secret: "S"},
		Scope:      []string{"r"},
		Behavior:   exBehavior(),
		NoUserInfo: true,
	}
}

// oauth1Config is the "p" OAuth 1.0a provider used by the literal scenarios.
func oauth1Config() *ProviderConfig {
	return &ProviderConfig{
		Name:     "p",
		ShortID:  7,
		Consumer: Consumer{Key: "CK", Secret: "CS"},
		Behavior: &Behavior{
			Name:             "p",
			Kind:             KindOAuth1,
			RequestTokenURL:  "https://p/request_token",
			AuthorizationURL: "https://p/authorize",
			AccessTokenURL:   "https://p/access_token",
		},
		NoUserInfo: true,
	}
}

func testRegistry(t *testing.T, configs ...*ProviderConfig) *Registry {
	t.Helper()
	r, err := NewRegistry(configs...)
	require.NoError(t, err)
	return r
}

func testAuthomatic(t *testing.T, r *Registry, client HTTPClient, opt ...Option) *Authomatic {
	t.Helper()
	opts := append([]Option{WithHTTPClient(client), WithNow(fixedNow)}, opt...)
	a, err := New(r, opts...)
	require.NoError(t, err)
	return a
}
