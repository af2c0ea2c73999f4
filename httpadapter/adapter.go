// Copyright IBM Corp. 2020, 2025
// SPDX-License-Identifier: MPL-2.0

// Package httpadapter connects logins to net/http handlers.
package httpadapter

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/authomatic/authomatic-sub000/oauth"
)

// DefaultMaxFormBytes bounds the request body read for form parameters.
const DefaultMaxFormBytes = 1 << 20

var _ oauth.Adapter = (*Adapter)(nil)

// Adapter is an oauth.Adapter over one net/http request.  It's not safe for
// concurrent use, like the http.ResponseWriter it wraps.
type Adapter struct {
	w      http.ResponseWriter
	req    *http.Request
	params map[string]string
	url    string

	status      int
	wroteHeader bool
	redirected  bool
}

// New creates an Adapter for req and w.  The request form is parsed
// immediately.
// Supported options: WithTrustForwardedHeaders, WithMaxFormBytes
func New(w http.ResponseWriter, req *http.Request, opt ...Option) (*Adapter, error) {
	const op = "httpadapter.New"
	switch {
	case w == nil:
		return nil, fmt.Errorf("%s: response writer is nil: %w", op, oauth.ErrNilParameter)
	case req == nil:
		return nil, fmt.Errorf("%s: request is nil: %w", op, oauth.ErrNilParameter)
	}
	opts := getOpts(opt...)
	if req.Body != nil {
		req.Body = http.MaxBytesReader(w, req.Body, opts.withMaxFormBytes)
	}
	if err := req.ParseForm(); err != nil {
		return nil, fmt.Errorf("%s: unable to parse form: %w", op, err)
	}
	params := make(map[string]string, len(req.Form))
	for k, v := range req.URL.Query() {
		if len(v) > 0 {
			params[k] = v[len(v)-1]
		}
	}
	for k, v := range req.PostForm {
		if len(v) > 0 {
			params[k] = v[len(v)-1]
		}
	}
	return &Adapter{
		w:      w,
		req:    req,
		params: params,
		url:    requestURL(req, opts.withTrustForwardedHeaders),
		status: http.StatusOK,
	}, nil
}

func requestURL(req *http.Request, trustForwarded bool) string {
	scheme := "http"
	if req.TLS != nil {
		scheme = "https"
	}
	host := req.Host
	if trustForwarded {
		if p := firstValue(req.Header.Get("X-Forwarded-Proto")); p != "" {
			scheme = strings.ToLower(p)
		}
		if h := firstValue(req.Header.Get("X-Forwarded-Host")); h != "" {
			host = h
		}
	}
	return scheme + "://" + host + req.URL.EscapedPath()
}

func firstValue(v string) string {
	if i := strings.IndexByte(v, ','); i >= 0 {
		v = v[:i]
	}
	return strings.TrimSpace(v)
}

// Params returns the query and form parameters.  Form values win, and the
// last value of a repeated key wins.
func (a *Adapter) Params() map[string]string {
	out := make(map[string]string, len(a.params))
	for k, v := range a.params {
		out[k] = v
	}
	return out
}

// URL returns the absolute request URL without query.
func (a *Adapter) URL() string { return a.url }

// Write appends to the response body.  Writes after a redirect are
// discarded.
func (a *Adapter) Write(p []byte) (int, error) {
	if a.redirected {
		return len(p), nil
	}
	a.writeHeader()
	return a.w.Write(p)
}

// SetHeader sets a response header.
func (a *Adapter) SetHeader(key, value string) {
	if a.redirected {
		return
	}
	a.w.Header().Set(key, value)
}

// SetStatus sets the response status.  It has no effect once the body was
// written.
func (a *Adapter) SetStatus(code int) {
	if a.redirected || a.wroteHeader {
		return
	}
	a.status = code
}

// SetStatusLine sets the response status from either a bare code or a
// "code reason" line such as "404 Not Found".  The reason phrase is not
// sent; net/http writes its own.
func (a *Adapter) SetStatusLine(line string) error {
	const op = "httpadapter.(Adapter).SetStatusLine"
	code, err := oauth.ParseStatus(line)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	a.SetStatus(code)
	return nil
}

// Cookies returns the request cookies.  The first cookie of a name wins.
func (a *Adapter) Cookies() map[string]string {
	out := map[string]string{}
	for _, c := range a.req.Cookies() {
		if _, ok := out[c.Name]; !ok {
			out[c.Name] = c.Value
		}
	}
	return out
}

// Headers returns the first value of every request header, keyed by the
// canonical header name.
func (a *Adapter) Headers() map[string]string {
	out := make(map[string]string, len(a.req.Header))
	for k, v := range a.req.Header {
		if len(v) > 0 {
			out[k] = v[0]
		}
	}
	if a.req.Host != "" {
		out["Host"] = a.req.Host
	}
	return out
}

// Redirect responds with a 302 to u and an empty body.
func (a *Adapter) Redirect(u string) {
	if a.redirected || a.wroteHeader {
		return
	}
	a.redirected = true
	a.w.Header().Set("Location", u)
	a.w.Header().Del("Content-Type")
	a.w.Header().Del("Content-Length")
	a.w.WriteHeader(http.StatusFound)
}

// Redirected reports whether Redirect was called.
func (a *Adapter) Redirected() bool { return a.redirected }

// Request returns the wrapped request.
func (a *Adapter) Request() *http.Request { return a.req }

// ResponseWriter returns the wrapped response writer.
func (a *Adapter) ResponseWriter() http.ResponseWriter { return a.w }

func (a *Adapter) writeHeader() {
	if a.wroteHeader {
		return
	}
	a.wroteHeader = true
	a.w.WriteHeader(a.status)
}
