package main

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/authomatic/authomatic-sub000/oauth"
	"github.com/spf13/cobra"
)

func newAccessCmd(g *globals) *cobra.Command {
	var (
		method  string
		params  []string
		headers []string
		body    string
	)
	cmd := &cobra.Command{
		Use:   "access SERIALIZED URL",
		Short: "Request a protected resource with serialized credentials",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			h, err := keyValues(headers)
			if err != nil {
				return err
			}
			cfg, err := g.load()
			if err != nil {
				return err
			}
			a, err := newAuthomatic(cmd.Context(), cfg, g.logger())
			if err != nil {
				return err
			}
			opts := []oauth.Option{oauth.WithMethod(strings.ToUpper(method)), oauth.WithHeaders(h)}
			if len(params) > 0 {
				var ps oauth.Params
				for _, kv := range params {
					k, v, ok := strings.Cut(kv, "=")
					if !ok || k == "" {
						return fmt.Errorf("%q is not key=value", kv)
					}
					ps = ps.Add(k, v)
				}
				opts = append(opts, oauth.WithParams(ps))
			}
			if body != "" {
				opts = append(opts, oauth.WithBody([]byte(body)))
			}
			resp, err := a.AccessSerialized(cmd.Context(), strings.TrimSpace(args[0]), args[1], opts...)
			if err != nil {
				return err
			}
			if resp.Refreshed != nil {
				serialized, err := a.Serialize(resp.Refreshed)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.ErrOrStderr(), "refreshed:", serialized)
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "%d %s\n", resp.Status, http.StatusText(resp.Status))
			fmt.Fprintln(cmd.OutOrStdout(), resp.Content())
			return nil
		},
	}
	cmd.Flags().StringVarP(&method, "method", "X", http.MethodGet, "HTTP method")
	cmd.Flags().StringArrayVarP(&params, "param", "p", nil, "Request parameter as key=value, repeatable")
	cmd.Flags().StringArrayVarP(&headers, "header", "H", nil, "Request header as key=value, repeatable")
	cmd.Flags().StringVarP(&body, "data", "d", "", "Raw request body")
	return cmd
}
