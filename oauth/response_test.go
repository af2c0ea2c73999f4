package oauth

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultContentParser(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name        string
		contentType string
		body        string
		want        any
	}{
		{
			name:        "json",
			contentType: "application/json; charset=utf-8",
			body:        `{"access_token":"T","expires_in":3600}`,
			want:        map[string]any{"access_token": "T", "expires_in": json.Number("3600")},
		},
		{
			name: "json-without-content-type",
			body: `[1, "a"]`,
			want: []any{json.Number("1"), "a"},
		},
		{
			name:        "json-keeps-big-ids",
			contentType: "application/json",
			body:        `{"id":1234567890123456789}`,
			want:        map[string]any{"id": json.Number("1234567890123456789")},
		},
		{
			name:        "form",
			contentType: "application/x-www-form-urlencoded",
			body:        "oauth_token=RT&oauth_token_secret=RS&oauth_callback_confirmed=true",
			want:        map[string]any{"oauth_token": "RT", "oauth_token_secret": "RS", "oauth_callback_confirmed": "true"},
		},
		{
			name:        "form-sent-as-text",
			contentType: "text/plain",
			body:        "access_token=T&expires=5108",
			want:        map[string]any{"access_token": "T", "expires": "5108"},
		},
		{
			name:        "xml-is-raw",
			contentType: "text/xml",
			body:        `<user><id>1</id></user>`,
			want:        `<user><id>1</id></user>`,
		},
		{
			name: "xml-sniffed",
			body: `<?xml version="1.0"?><user a="b"/>`,
			want: `<?xml version="1.0"?><user a="b"/>`,
		},
		{
			name: "plain-text",
			body: "hello",
			want: "hello",
		},
		{
			name: "empty",
			body: "  ",
			want: nil,
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert, require := assert.New(t), require.New(t)
			got, err := DefaultContentParser(tt.contentType, []byte(tt.body))
			require.NoError(err)
			assert.Equal(tt.want, got)
		})
	}
}

func TestResponse(t *testing.T) {
	t.Parallel()
	t.Run("lazy-once", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		calls := 0
		parser := func(string, []byte) (any, error) {
			calls++
			return map[string]any{"a": "b"}, nil
		}
		r := NewResponse(http.StatusOK, nil, []byte("x"), parser)
		assert.Zero(calls)
		d, err := r.Data()
		require.NoError(err)
		assert.Equal(map[string]any{"a": "b"}, d)
		assert.Equal(map[string]any{"a": "b"}, r.Map())
		assert.Equal(1, calls)
		assert.Equal("x", r.Content())
		assert.NotNil(r.Header)
	})
	t.Run("map-of-non-map", func(t *testing.T) {
		assert := assert.New(t)
		r := NewResponse(http.StatusOK, nil, []byte(`[1]`), nil)
		assert.Nil(r.Map())
	})
	t.Run("xml", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		r := NewResponse(http.StatusOK, nil, []byte(`<User><Name>Alice</Name></User>`), nil)
		doc, err := r.XML()
		require.NoError(err)
		assert.Equal("Alice", doc.FindElement("//Name").Text())

		_, err = NewResponse(http.StatusOK, nil, []byte("not xml"), nil).XML()
		assert.Error(err)
	})
}
