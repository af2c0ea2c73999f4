// Package config loads provider configuration from YAML files into an
// oauth.Registry.
//
// Values may reference environment variables as ${NAME}; they are expanded
// before the document is parsed.  An example file:
//
//	session_prefix: myapp
//	timeout: 10s
//	providers:
//	  github:
//	    short_id: 1
//	    consumer_key: ${GITHUB_CLIENT_ID}
//	    consumer_secret: ${GITHUB_CLIENT_SECRET}
//	    scope: [read:user, user:email]
//	  corp:
//	    class: oidc
//	    issuer: https://login.example.com
//	    short_id: 2
//	    consumer_key: ${CORP_CLIENT_ID}
//	    consumer_secret: ${CORP_CLIENT_SECRET}
package config

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/authomatic/authomatic-sub000/oauth"
	"github.com/authomatic/authomatic-sub000/oauth/providers"
	"github.com/hashicorp/go-multierror"
	"gopkg.in/yaml.v3"
)

// ClassOIDC is the provider class built from an issuer's discovery document.
const ClassOIDC = "oidc"

// Config is a configuration file.
type Config struct {
	// SessionPrefix is the first segment of session keys.
	SessionPrefix string `yaml:"session_prefix"`

	// ReportErrors controls whether login errors end up in the result
	// rather than being returned.  Defaults to true.
	ReportErrors *bool `yaml:"report_errors"`

	Timeout              time.Duration `yaml:"timeout"`
	MaxConcurrentFetches int           `yaml:"max_concurrent_fetches"`

	// ProviderCA is a PEM bundle trusted for provider connections.
	// ProviderCAFile names a file holding one.
	ProviderCA     string `yaml:"provider_ca"`
	ProviderCAFile string `yaml:"provider_ca_file"`

	Providers map[string]Provider `yaml:"providers"`

	Server Server `yaml:"server"`
}

// Provider is one entry of Config.Providers; the entry's key is the
// provider name.
type Provider struct {
	// Class names a built-in behavior (see providers.Names) or ClassOIDC.
	// Defaults to the provider name.
	Class string `yaml:"class"`

	// Issuer is the OIDC issuer of ClassOIDC providers.
	Issuer string `yaml:"issuer"`

	ShortID        int      `yaml:"short_id"`
	ConsumerKey    string   `yaml:"consumer_key"`
	ConsumerSecret string   `yaml:"consumer_secret"`
	Scope          []string `yaml:"scope"`
	Offline        bool     `yaml:"offline"`
	NoUserInfo     bool     `yaml:"no_user_info"`

	UserAuthorizationParams map[string]string `yaml:"user_authorization_params"`
	AccessTokenParams       map[string]string `yaml:"access_token_params"`
	RequestTokenParams      map[string]string `yaml:"request_token_params"`
	AccessParams            map[string]string `yaml:"access_params"`
	AccessHeaders           map[string]string `yaml:"access_headers"`
}

// Server holds the settings of the demo login server.
type Server struct {
	Addr string `yaml:"addr"`

	// BaseURL is the externally visible origin, used for redirect URIs.
	BaseURL string `yaml:"base_url"`

	TrustForwardedHeaders bool `yaml:"trust_forwarded_headers"`

	Session Session `yaml:"session"`
}

// Session selects the session store of the demo login server.
type Session struct {
	// Store is one of memory, cookie or redis.  Defaults to memory.
	Store string `yaml:"store"`

	// Secret keys the cookie store.
	Secret string `yaml:"secret"`

	// RedisAddr is the address of the redis store's server.
	RedisAddr string `yaml:"redis_addr"`

	TTL             time.Duration `yaml:"ttl"`
	InsecureCookies bool          `yaml:"insecure_cookies"`
}

// Load reads, expands and parses the file at path.
func Load(path string) (*Config, error) {
	const op = "config.Load"
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, oauth.NewError(oauth.ErrConfig, oauth.WithOp(op), oauth.WithMsg("unable to read config file"), oauth.WithWrap(err))
	}
	c, err := Parse(b)
	if err != nil {
		return nil, fmt.Errorf("%s: %s: %w", op, path, err)
	}
	if c.ProviderCA == "" && c.ProviderCAFile != "" {
		ca, err := os.ReadFile(c.ProviderCAFile)
		if err != nil {
			return nil, oauth.NewError(oauth.ErrConfig, oauth.WithOp(op), oauth.WithMsg("unable to read provider CA file"), oauth.WithWrap(err))
		}
		c.ProviderCA = string(ca)
	}
	return c, nil
}

// Parse expands environment variables in data and parses it.  Unknown keys
// are errors; an empty document is an empty Config.
func Parse(data []byte) (*Config, error) {
	const op = "config.Parse"
	expanded := os.ExpandEnv(string(data))
	dec := yaml.NewDecoder(bytes.NewReader([]byte(expanded)))
	dec.KnownFields(true)
	var c Config
	if err := dec.Decode(&c); err != nil && !errors.Is(err, io.EOF) {
		return nil, oauth.NewError(oauth.ErrConfig, oauth.WithOp(op), oauth.WithMsg("unable to parse config"), oauth.WithWrap(err))
	}
	return &c, nil
}

// ProviderNames returns the configured provider names, sorted.
func (c *Config) ProviderNames() []string {
	names := make([]string, 0, len(c.Providers))
	for name := range c.Providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Registry builds the configured providers.  ClassOIDC providers are
// discovered, which needs network access to their issuers.  Every invalid
// provider is reported in one ErrConfig error.
// Supported options: WithClass
func (c *Config) Registry(ctx context.Context, opt ...Option) (*oauth.Registry, error) {
	const op = "config.(Config).Registry"
	opts := getOpts(opt...)
	var errs *multierror.Error
	configs := make([]*oauth.ProviderConfig, 0, len(c.Providers))
	for _, name := range c.ProviderNames() {
		pc, err := c.providerConfig(ctx, name, c.Providers[name], opts)
		if err != nil {
			errs = multierror.Append(errs, err)
			continue
		}
		configs = append(configs, pc)
	}
	if err := errs.ErrorOrNil(); err != nil {
		return nil, oauth.NewError(oauth.ErrConfig, oauth.WithOp(op), oauth.WithMsg("invalid providers"), oauth.WithWrap(err))
	}
	r, err := oauth.NewRegistry(configs...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return r, nil
}

func (c *Config) providerConfig(ctx context.Context, name string, p Provider, opts options) (*oauth.ProviderConfig, error) {
	class := strings.ToLower(p.Class)
	if class == "" {
		class = strings.ToLower(name)
	}
	var b *oauth.Behavior
	switch {
	case class == ClassOIDC:
		var dopts []oauth.Option
		if c.ProviderCA != "" {
			dopts = append(dopts, oauth.WithProviderCA(c.ProviderCA))
		}
		if c.Timeout > 0 {
			dopts = append(dopts, oauth.WithTimeout(c.Timeout))
		}
		var err error
		if b, err = oauth.Discover(ctx, name, p.Issuer, p.ConsumerKey, dopts...); err != nil {
			return nil, fmt.Errorf("provider %q: %w", name, err)
		}
	case opts.withClasses[class] != nil:
		b = opts.withClasses[class]()
	default:
		var err error
		if b, err = providers.Lookup(class); err != nil {
			return nil, fmt.Errorf("provider %q: unknown class %q: %w", name, class, err)
		}
	}
	return &oauth.ProviderConfig{
		Name:                    name,
		ShortID:                 p.ShortID,
		Consumer:                oauth.Consumer{Key: p.ConsumerKey, Secret: oauth.ConsumerSecret(p.ConsumerSecret)},
		Scope:                   p.Scope,
		Behavior:                b,
		UserAuthorizationParams: params(p.UserAuthorizationParams),
		AccessTokenParams:       params(p.AccessTokenParams),
		RequestTokenParams:      params(p.RequestTokenParams),
		AccessParams:            params(p.AccessParams),
		AccessHeaders:           p.AccessHeaders,
		Offline:                 p.Offline,
		NoUserInfo:              p.NoUserInfo,
	}, nil
}

// Options returns the oauth.New options the file sets.
func (c *Config) Options() []oauth.Option {
	var opts []oauth.Option
	if c.SessionPrefix != "" {
		opts = append(opts, oauth.WithSessionPrefix(c.SessionPrefix))
	}
	if c.ReportErrors != nil {
		opts = append(opts, oauth.WithReportErrors(*c.ReportErrors))
	}
	if c.Timeout > 0 {
		opts = append(opts, oauth.WithTimeout(c.Timeout))
	}
	if c.MaxConcurrentFetches > 0 {
		opts = append(opts, oauth.WithMaxConcurrentFetches(c.MaxConcurrentFetches))
	}
	return opts
}

// HTTPClientOptions returns the oauth.NewHTTPClient options the file sets.
func (c *Config) HTTPClientOptions() []oauth.Option {
	var opts []oauth.Option
	if c.ProviderCA != "" {
		opts = append(opts, oauth.WithProviderCA(c.ProviderCA))
	}
	if c.Timeout > 0 {
		opts = append(opts, oauth.WithTimeout(c.Timeout))
	}
	return opts
}

// params converts m to Params sorted by key.
func params(m map[string]string) oauth.Params {
	if len(m) == 0 {
		return nil
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	p := make(oauth.Params, 0, len(keys))
	for _, k := range keys {
		p = p.Add(k, m[k])
	}
	return p
}
