package oauth

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/hashicorp/go-multierror"
)

// Registry maps provider names and short ids to their configuration.  It's
// read-only after NewRegistry returns and safe for concurrent use.
type Registry struct {
	byName map[string]*ProviderConfig
	byID   map[int]*ProviderConfig
	names  []string
}

// NewRegistry validates the configs and builds a Registry.  Every invalid
// config, duplicate name and duplicate short id is reported in a single
// ErrConfig error.
func NewRegistry(configs ...*ProviderConfig) (*Registry, error) {
	const op = "oauth.NewRegistry"
	r := &Registry{
		byName: make(map[string]*ProviderConfig, len(configs)),
		byID:   make(map[int]*ProviderConfig, len(configs)),
	}
	var errs *multierror.Error
	for _, c := range configs {
		if err := c.Validate(); err != nil {
			errs = multierror.Append(errs, err)
			continue
		}
		if _, ok := r.byName[c.Name]; ok {
			errs = multierror.Append(errs, fmt.Errorf("duplicate provider name %q: %w", c.Name, ErrInvalidParameter))
			continue
		}
		if other, ok := r.byID[c.ShortID]; ok {
			errs = multierror.Append(errs, fmt.Errorf("providers %q and %q share short id %d: %w", other.Name, c.Name, c.ShortID, ErrInvalidParameter))
			continue
		}
		cp := *c
		r.byName[cp.Name] = &cp
		r.byID[cp.ShortID] = &cp
		r.names = append(r.names, cp.Name)
	}
	if err := errs.ErrorOrNil(); err != nil {
		return nil, NewError(ErrConfig, WithOp(op), WithMsg("invalid provider configuration"), WithWrap(err))
	}
	sort.Strings(r.names)
	return r, nil
}

// Lookup returns the config of the named provider.
func (r *Registry) Lookup(name string) (*ProviderConfig, error) {
	const op = "oauth.(Registry).Lookup"
	c, ok := r.byName[name]
	if !ok {
		return nil, NewError(ErrConfig, WithOp(op), WithMsg(fmt.Sprintf("provider %q is not configured", name)), WithWrap(ErrNotFound))
	}
	return c, nil
}

// LookupID returns the config registered under a short id.
func (r *Registry) LookupID(shortID int) (*ProviderConfig, error) {
	const op = "oauth.(Registry).LookupID"
	c, ok := r.byID[shortID]
	if !ok {
		return nil, NewError(ErrConfig, WithOp(op), WithMsg(fmt.Sprintf("no provider has short id %d", shortID)), WithWrap(ErrNotFound))
	}
	return c, nil
}

// Names returns the configured provider names, sorted.
func (r *Registry) Names() []string {
	return append([]string(nil), r.names...)
}

// Serialize encodes c, filling its provider identity from the registry when
// c only carries a provider name.
func (r *Registry) Serialize(c *Credentials) (string, error) {
	const op = "oauth.(Registry).Serialize"
	if c == nil {
		return "", NewError(ErrConfig, WithOp(op), WithMsg("credentials are nil"), WithWrap(ErrNilParameter))
	}
	cp := *c
	if cp.ProviderID == 0 || cp.ProviderKind == KindUnknown {
		cfg, err := r.Lookup(cp.ProviderName)
		if err != nil {
			return "", err
		}
		cp.ProviderID, cp.ProviderKind = cfg.ShortID, cfg.Kind()
	}
	return cp.Serialize()
}

// Deserialize decodes credentials produced by Serialize.  The provider is
// resolved from the leading short id and the consumer is restored from its
// config.
func (r *Registry) Deserialize(s string) (*Credentials, error) {
	const op = "oauth.(Registry).Deserialize"
	if s == "" {
		return nil, NewError(ErrCredentials, WithOp(op), WithMsg("serialized credentials are empty"))
	}
	fields, err := decodeFields(s)
	if err != nil {
		return nil, NewError(ErrCredentials, WithOp(op), WithMsg("unable to decode credentials"), WithWrap(err))
	}
	id, err := strconv.Atoi(fields[0])
	if err != nil {
		return nil, NewError(ErrCredentials, WithOp(op), WithMsg("invalid short id"), WithWrap(err))
	}
	cfg, ok := r.byID[id]
	if !ok {
		return nil, NewError(ErrCredentials, WithOp(op), WithMsg(fmt.Sprintf("no provider has short id %d", id)), WithWrap(ErrNotFound))
	}
	c, err := reconstruct(cfg, fields[1:])
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return c, nil
}

// resolve finds the config credentials belong to, by name first and by short
// id second.
func (r *Registry) resolve(c *Credentials) (*ProviderConfig, error) {
	const op = "oauth.(Registry).resolve"
	if cfg, ok := r.byName[c.ProviderName]; ok {
		return cfg, nil
	}
	if cfg, ok := r.byID[c.ProviderID]; ok {
		return cfg, nil
	}
	return nil, NewError(ErrCredentials, WithOp(op), WithMsg(fmt.Sprintf("credentials refer to unknown provider %q (short id %d)", c.ProviderName, c.ProviderID)), WithWrap(ErrNotFound))
}
