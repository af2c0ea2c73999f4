package id

import (
	"encoding/base64"
	"fmt"

	"github.com/hashicorp/go-uuid"
)

// DefaultSize is the number of random bytes in an ID generated by New.
const DefaultSize = 16

// New generates a random ID with an optional prefix.  The random part carries
// DefaultSize bytes of entropy and only uses characters from the RFC 3986
// unreserved set, so it can be used as-is in URLs and OAuth parameters.
func New(optionalPrefix string) (string, error) {
	return NewWithSize(optionalPrefix, DefaultSize)
}

// NewWithSize generates a random ID with an optional prefix and the given
// number of random bytes.
func NewWithSize(optionalPrefix string, size int) (string, error) {
	if size < 8 {
		return "", fmt.Errorf("unable to generate id: size %d is less than 8 bytes", size)
	}
	b, err := uuid.GenerateRandomBytes(size)
	if err != nil {
		return "", fmt.Errorf("unable to generate id: %w", err)
	}
	id := base64.RawURLEncoding.EncodeToString(b)
	switch {
	case optionalPrefix != "":
		return fmt.Sprintf("%s_%s", optionalPrefix, id), nil
	default:
		return id, nil
	}
}
