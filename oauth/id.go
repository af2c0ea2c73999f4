package oauth

import "github.com/authomatic/authomatic-sub000/sdk/id"

// NewNonce generates a random, unguessable string suitable for an OAuth 2.0
// state parameter or an OAuth 1.0a oauth_nonce.  It carries 128 bits of
// entropy.
func NewNonce() (string, error) {
	const op = "oauth.NewNonce"
	n, err := id.New("")
	if err != nil {
		return "", NewError(ErrIdGeneratorFailed, WithOp(op), WithMsg("unable to generate nonce"), WithWrap(err))
	}
	return n, nil
}
