package oauth

import (
	"bytes"
	"encoding/json"
	"fmt"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/beevik/etree"
)

// ContentParser turns a response body into data.
type ContentParser func(contentType string, body []byte) (any, error)

// Response is a provider response.  Its body is parsed lazily by Data.
type Response struct {
	// Status is the HTTP status code.
	Status int

	// Header holds the response headers.
	Header http.Header

	// Body is the raw response body.
	Body []byte

	// URL is the URL that produced the response, after redirects.
	URL string

	// Refreshed holds the credentials used for the request when they had to
	// be refreshed first.  Persist them to avoid refreshing again.
	Refreshed *Credentials

	parser ContentParser
	once   sync.Once
	data   any
	err    error
}

// NewResponse creates a Response.  A nil parser selects DefaultContentParser.
func NewResponse(status int, header http.Header, body []byte, parser ContentParser) *Response {
	if header == nil {
		header = http.Header{}
	}
	if parser == nil {
		parser = DefaultContentParser
	}
	return &Response{
		Status: status,
		Header: header,
		Body:   body,
		parser: parser,
	}
}

// Content returns the body as a string.
func (r *Response) Content() string {
	return string(r.Body)
}

// Data returns the parsed body: a map[string]any or []any for JSON, a
// map[string]any of strings for form encoded bodies, and the raw string for
// XML and anything else.  The body is parsed once.
func (r *Response) Data() (any, error) {
	r.once.Do(func() {
		parser := r.parser
		if parser == nil {
			parser = DefaultContentParser
		}
		r.data, r.err = parser(r.Header.Get("Content-Type"), r.Body)
	})
	return r.data, r.err
}

// Map returns Data when it's a map, and nil otherwise.
func (r *Response) Map() map[string]any {
	d, err := r.Data()
	if err != nil {
		return nil
	}
	m, _ := d.(map[string]any)
	return m
}

// XML parses the body as an XML document.
func (r *Response) XML() (*etree.Document, error) {
	const op = "oauth.(Response).XML"
	return parseXML(op, r.Body)
}

func parseXML(op string, b []byte) (*etree.Document, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(b); err != nil {
		return nil, fmt.Errorf("%s: unable to parse xml: %w", op, err)
	}
	if doc.Root() == nil {
		return nil, fmt.Errorf("%s: xml document has no root: %w", op, ErrInvalidParameter)
	}
	return doc, nil
}

// DefaultContentParser parses JSON first and form encoded bodies second.  An
// XML body is returned as a string, as is any body that's neither.  JSON
// numbers are kept as json.Number so ids survive untouched.
func DefaultContentParser(contentType string, body []byte) (any, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return nil, nil
	}
	mediaType, _, _ := mime.ParseMediaType(contentType)
	switch {
	case strings.Contains(mediaType, "xml"):
		return string(body), nil
	case mediaType == "application/x-www-form-urlencoded":
		return parseForm(string(trimmed))
	}
	if trimmed[0] == '{' || trimmed[0] == '[' || mediaType == "application/json" || strings.HasSuffix(mediaType, "+json") {
		if v, err := parseJSON(trimmed); err == nil {
			return v, nil
		}
	}
	if trimmed[0] == '<' {
		return string(body), nil
	}
	if bytes.ContainsRune(trimmed, '=') {
		if v, err := parseForm(string(trimmed)); err == nil {
			return v, nil
		}
	}
	return string(body), nil
}

func parseJSON(b []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	if dec.More() {
		return nil, fmt.Errorf("trailing data after json value")
	}
	return v, nil
}

func parseForm(s string) (any, error) {
	values, err := url.ParseQuery(s)
	if err != nil {
		return nil, err
	}
	m := make(map[string]any, len(values))
	for k, v := range values {
		if len(v) > 0 {
			m[k] = v[0]
		}
	}
	return m, nil
}
