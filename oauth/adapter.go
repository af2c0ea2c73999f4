// Copyright IBM Corp. 2020, 2025
// SPDX-License-Identifier: MPL-2.0

package oauth

import (
	"fmt"
	"strconv"
	"strings"
)

// Adapter is the boundary to the host web framework for the inbound request
// a login call processes.
type Adapter interface {
	// Params returns the merged query and form parameters of the request.
	// Form values win over query values with the same key, and the last
	// value of a repeated key wins.
	Params() map[string]string

	// URL returns the absolute URL of the request without query or
	// fragment.  It's used as the OAuth 1.0a callback and the OAuth 2.0
	// redirect_uri.
	URL() string

	// Write appends to the response body.
	Write(p []byte) (int, error)

	// SetHeader sets a response header.
	SetHeader(key, value string)

	// SetStatus sets the response status code.  Use ParseStatus for a
	// "code reason" status line.
	SetStatus(code int)

	// Cookies returns the request cookies.
	Cookies() map[string]string

	// Headers returns the request headers.
	Headers() map[string]string

	// Redirect responds with a 302 to url and an empty body.  Writes after a
	// redirect are discarded.
	Redirect(url string)
}

// ParseStatus returns the code of a status given either as a bare code
// ("404") or as a status line with a reason phrase ("404 Not Found").
func ParseStatus(s string) (int, error) {
	const op = "oauth.ParseStatus"
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, ' '); i >= 0 {
		s = s[:i]
	}
	code, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("%s: status %q is not numeric: %w", op, s, ErrInvalidParameter)
	}
	if code < 100 || code > 999 {
		return 0, fmt.Errorf("%s: status %d is out of range: %w", op, code, ErrInvalidParameter)
	}
	return code, nil
}
