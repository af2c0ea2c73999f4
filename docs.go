// Copyright IBM Corp. 2020, 2025
// SPDX-License-Identifier: MPL-2.0

// authomatic logs users in with OAuth 1.0a and OAuth 2.0 providers and lets
// an application access their protected resources afterwards.
//
// The oauth package holds the login driver, the provider state machines and
// the credentials codec.  oauth/providers has behaviors for well known
// providers, oauth/callback and httpadapter bind logins to net/http, session
// has session stores, config loads providers from YAML and metrics
// instruments provider requests.
package authomatic
