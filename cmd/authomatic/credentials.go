package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/authomatic/authomatic-sub000/config"
	"github.com/authomatic/authomatic-sub000/oauth"
	"github.com/authomatic/authomatic-sub000/oauth/providers"
	"github.com/hashicorp/go-hclog"
	"github.com/spf13/cobra"
)

// credentialsInfo is the printed form of deserialized credentials.
type credentialsInfo struct {
	Provider     string     `json:"provider"`
	Kind         string     `json:"kind"`
	ShortID      int        `json:"short_id"`
	TokenType    string     `json:"token_type,omitempty"`
	Token        string     `json:"token"`
	TokenSecret  string     `json:"token_secret,omitempty"`
	RefreshToken string     `json:"refresh_token,omitempty"`
	Expiration   *time.Time `json:"expiration,omitempty"`
	Valid        bool       `json:"valid"`
}

func describe(c *oauth.Credentials, showTokens bool) credentialsInfo {
	redact := func(s string) string {
		if s == "" || showTokens {
			return s
		}
		return oauth.RedactedToken
	}
	info := credentialsInfo{
		Provider:     c.ProviderName,
		Kind:         c.ProviderKind.String(),
		ShortID:      c.ProviderID,
		TokenType:    string(c.TokenType),
		Token:        redact(c.Token),
		TokenSecret:  redact(c.TokenSecret),
		RefreshToken: redact(c.RefreshToken),
		Valid:        c.Valid(),
	}
	if !c.Expiration.IsZero() {
		exp := c.Expiration.UTC()
		info.Expiration = &exp
	}
	return info
}

// newAuthomatic builds an Authomatic from the config file, for commands
// working with stored credentials.
func newAuthomatic(ctx context.Context, cfg *config.Config, logger hclog.Logger) (*oauth.Authomatic, error) {
	registry, err := cfg.Registry(ctx)
	if err != nil {
		return nil, err
	}
	client, err := oauth.NewHTTPClient(append(cfg.HTTPClientOptions(), oauth.WithLogger(logger.Named("http")))...)
	if err != nil {
		return nil, err
	}
	return oauth.New(registry, append(cfg.Options(), oauth.WithHTTPClient(client), oauth.WithLogger(logger))...)
}

func newCredentialsCmd(g *globals) *cobra.Command {
	var showTokens, refresh bool
	cmd := &cobra.Command{
		Use:   "credentials SERIALIZED",
		Short: "Decode serialized credentials, optionally refreshing them",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := g.load()
			if err != nil {
				return err
			}
			a, err := newAuthomatic(cmd.Context(), cfg, g.logger())
			if err != nil {
				return err
			}
			c, err := a.Credentials(strings.TrimSpace(args[0]))
			if err != nil {
				return err
			}
			if refresh {
				resp, err := a.Refresh(cmd.Context(), c)
				if err != nil {
					return err
				}
				if resp == nil {
					fmt.Fprintln(cmd.ErrOrStderr(), "credentials can't be refreshed")
				} else {
					serialized, err := a.Serialize(c)
					if err != nil {
						return err
					}
					fmt.Fprintln(cmd.ErrOrStderr(), "refreshed:", serialized)
				}
			}
			return printJSON(cmd.OutOrStdout(), describe(c, showTokens))
		},
	}
	cmd.Flags().BoolVar(&showTokens, "show-tokens", false, "Print token values instead of redacting them")
	cmd.Flags().BoolVar(&refresh, "refresh", false, "Refresh the credentials and print the new serialized value")
	return cmd
}

func newProvidersCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "providers",
		Short: "List the built-in provider classes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			for _, name := range providers.Names() {
				b, err := providers.Lookup(name)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", name, b.Kind)
			}
			return nil
		},
	}
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
