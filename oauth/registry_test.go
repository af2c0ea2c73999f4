package oauth

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRegistry(t *testing.T) {
	t.Parallel()
	withName := func(c *ProviderConfig, name string) *ProviderConfig {
		c.Name = name
		return c
	}
	withID := func(c *ProviderConfig, id int) *ProviderConfig {
		c.ShortID = id
		return c
	}
	tests := []struct {
		name      string
		configs   []*ProviderConfig
		wantErr   bool
		wantErrIs error
		wantNames []string
	}{
		{name: "valid", configs: []*ProviderConfig{exConfig(), oauth1Config()}, wantNames: []string{"ex", "p"}},
		{name: "empty", wantNames: nil},
		{name: "duplicate-name", configs: []*ProviderConfig{exConfig(), withID(exConfig(), 6)}, wantErr: true},
		{name: "duplicate-short-id", configs: []*ProviderConfig{exConfig(), withName(exConfig(), "other")}, wantErr: true},
		{name: "short-id-zero", configs: []*ProviderConfig{withID(exConfig(), 0)}, wantErr: true},
		{name: "short-id-too-big", configs: []*ProviderConfig{withID(exConfig(), 256)}, wantErr: true},
		{name: "nil-config", configs: []*ProviderConfig{nil}, wantErr: true},
		{
			name: "missing-secret",
			configs: []*ProviderConfig{func() *ProviderConfig {
				c := exConfig()
				c.Consumer.Secret = ""
				return c
			}()},
			wantErr:   true,
			wantErrIs: ErrInvalidParameter,
		},
		{
			name: "missing-key",
			configs: []*ProviderConfig{func() *ProviderConfig {
				c := exConfig()
				c.Consumer.Key = ""
				return c
			}()},
			wantErr:   true,
			wantErrIs: ErrInvalidParameter,
		},
		{
			name: "openid-rejected",
			configs: []*ProviderConfig{func() *ProviderConfig {
				c := exConfig()
				c.Behavior.Kind = KindOpenID
				return c
			}()},
			wantErr: true,
		},
		{
			name: "oauth1-without-request-token-url",
			configs: []*ProviderConfig{func() *ProviderConfig {
				c := oauth1Config()
				c.Behavior.RequestTokenURL = ""
				return c
			}()},
			wantErr: true,
		},
		{
			name: "bad-authorization-url",
			configs: []*ProviderConfig{func() *ProviderConfig {
				c := exConfig()
				c.Behavior.AuthorizationURL = "ftp://p/auth"
				return c
			}()},
			wantErr: true,
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert, require := assert.New(t), require.New(t)
			r, err := NewRegistry(tt.configs...)
			if tt.wantErr {
				require.Error(err)
				assert.Truef(errors.Is(err, ErrConfig), "wanted \"%s\" but got \"%s\"", ErrConfig, err)
				if tt.wantErrIs != nil {
					assert.Truef(errors.Is(err, tt.wantErrIs), "wanted \"%s\" but got \"%s\"", tt.wantErrIs, err)
				}
				return
			}
			require.NoError(err)
			assert.Equal(tt.wantNames, r.Names())
		})
	}
	t.Run("all-problems-reported", func(t *testing.T) {
		assert := assert.New(t)
		_, err := NewRegistry(withID(exConfig(), 0), withName(withID(exConfig(), 300), "other"))
		assert.Contains(err.Error(), "short id 0")
		assert.Contains(err.Error(), "short id 300")
	})
}

func TestRegistry_Lookup(t *testing.T) {
	t.Parallel()
	assert, require := assert.New(t), require.New(t)
	cfg := exConfig()
	r := testRegistry(t, cfg)

	got, err := r.Lookup("ex")
	require.NoError(err)
	assert.Equal(5, got.ShortID)

	cfg.Name = "mutated"
	got, err = r.Lookup("ex")
	require.NoError(err, "registry must keep its own copy")
	assert.Equal("ex", got.Name)

	got, err = r.LookupID(5)
	require.NoError(err)
	assert.Equal("ex", got.Name)

	_, err = r.Lookup("missing")
	assert.True(errors.Is(err, ErrConfig))
	assert.True(errors.Is(err, ErrNotFound))
	_, err = r.LookupID(99)
	assert.True(errors.Is(err, ErrNotFound))
}

func TestRegistry_resolve(t *testing.T) {
	t.Parallel()
	assert, require := assert.New(t), require.New(t)
	r := testRegistry(t, exConfig(), oauth1Config())

	cfg, err := r.resolve(&Credentials{ProviderName: "p", ProviderID: 5})
	require.NoError(err)
	assert.Equal("p", cfg.Name, "name wins over short id")

	cfg, err = r.resolve(&Credentials{ProviderID: 5})
	require.NoError(err)
	assert.Equal("ex", cfg.Name)

	_, err = r.resolve(&Credentials{ProviderName: "gone", ProviderID: 99})
	assert.True(errors.Is(err, ErrCredentials))
}
