package oauth

import (
	"encoding/json"
	"fmt"
)

// ConsumerSecret is an application's secret with a provider.
type ConsumerSecret string

// RedactedConsumerSecret is the redacted string or json for a consumer secret
const RedactedConsumerSecret = "[REDACTED: consumer secret]"

// String will redact the consumer secret
func (s ConsumerSecret) String() string {
	return RedactedConsumerSecret
}

// MarshalJSON will redact the consumer secret
func (s ConsumerSecret) MarshalJSON() ([]byte, error) {
	return json.Marshal(RedactedConsumerSecret)
}

// Consumer is the relying application as known to a provider.
type Consumer struct {
	Key    string
	Secret ConsumerSecret
}

// MinShortID and MaxShortID bound ProviderConfig.ShortID.
const (
	MinShortID = 1
	MaxShortID = 255
)

// ProviderConfig is a configured provider entry.
type ProviderConfig struct {
	// Name is the provider name used in Login and in session keys.
	Name string

	// ShortID identifies the entry in serialized credentials.  It must be
	// unique within a Registry and stable across deploys.
	ShortID int

	// Consumer holds the application's key and secret.
	Consumer Consumer

	// Scope is the list of scopes to request.  When empty, the behavior's
	// UserInfoScope is requested.
	Scope []string

	// Behavior describes the provider.
	Behavior *Behavior

	// UserAuthorizationParams, AccessTokenParams and RequestTokenParams are
	// added to the corresponding requests.
	UserAuthorizationParams Params
	AccessTokenParams       Params
	RequestTokenParams      Params

	// AccessParams and AccessHeaders are added to every protected resource
	// request, after the behavior's own.
	AccessParams  Params
	AccessHeaders map[string]string

	// Offline asks the provider for a refresh token, for providers that need
	// extra authorization parameters to issue one.
	Offline bool

	// NoUserInfo skips the user info request after login.
	NoUserInfo bool
}

// Kind returns the protocol family of the provider.
func (c *ProviderConfig) Kind() ProviderKind {
	if c == nil || c.Behavior == nil {
		return KindUnknown
	}
	return c.Behavior.Kind
}

// Validate the provider configuration.
func (c *ProviderConfig) Validate() error {
	const op = "oauth.(ProviderConfig).Validate"
	if c == nil {
		return fmt.Errorf("%s: provider config is nil: %w", op, ErrNilParameter)
	}
	if c.Name == "" {
		return fmt.Errorf("%s: provider name is empty: %w", op, ErrInvalidParameter)
	}
	if c.ShortID < MinShortID || c.ShortID > MaxShortID {
		return fmt.Errorf("%s: %s short id %d is not within %d..%d: %w", op, c.Name, c.ShortID, MinShortID, MaxShortID, ErrInvalidParameter)
	}
	if c.Consumer.Key == "" {
		return fmt.Errorf("%s: %s consumer key is empty: %w", op, c.Name, ErrInvalidParameter)
	}
	if c.Consumer.Secret == "" {
		return fmt.Errorf("%s: %s consumer secret is empty: %w", op, c.Name, ErrInvalidParameter)
	}
	if c.Behavior == nil {
		return fmt.Errorf("%s: %s behavior is nil: %w", op, c.Name, ErrNilParameter)
	}
	if err := c.Behavior.Validate(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func (c *ProviderConfig) userAuthorizationParams() Params {
	p := append(Params(nil), c.Behavior.UserAuthorizationParams...)
	if c.Offline {
		for _, kv := range c.Behavior.OfflineParams {
			if !c.UserAuthorizationParams.Has(kv.Key) {
				p = p.Set(kv.Key, kv.Value)
			}
		}
	}
	return p.Merge(c.UserAuthorizationParams)
}

func (c *ProviderConfig) accessParams() Params {
	return append(Params(nil), c.Behavior.AccessParams...).Merge(c.AccessParams)
}

func (c *ProviderConfig) accessHeaders() map[string]string {
	h := make(map[string]string, len(c.Behavior.AccessHeaders)+len(c.AccessHeaders))
	for k, v := range c.Behavior.AccessHeaders {
		h[k] = v
	}
	for k, v := range c.AccessHeaders {
		h[k] = v
	}
	return h
}
