// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

/*
callback is a package that provides login handlers (in the form of
http.HandlerFunc) which run both halves of a login: the redirect to the
provider and the provider's redirect back to the application.

Ready-made response funcs write the result as JSON (JSONSuccess, JSONError)
or hand it to the window that opened a login popup (PopupSuccess).
*/
package callback
