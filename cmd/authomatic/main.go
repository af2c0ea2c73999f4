// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

// Command authomatic runs a demo login server for the configured providers
// and inspects or uses serialized credentials.
package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/authomatic/authomatic-sub000/config"
	"github.com/hashicorp/go-hclog"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

const defaultConfigFile = "authomatic.yaml"

// globals are the persistent flags shared by every command.
type globals struct {
	configFile string
	envFile    string
	logLevel   string
}

func (g *globals) logger() hclog.Logger {
	return hclog.New(&hclog.LoggerOptions{
		Name:   "authomatic",
		Level:  hclog.LevelFromString(g.logLevel),
		Output: os.Stderr,
	})
}

// load reads the env file, if any, then the config file.
func (g *globals) load() (*config.Config, error) {
	if g.envFile != "" {
		if err := godotenv.Load(g.envFile); err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("unable to load %s: %w", g.envFile, err)
		}
	}
	return config.Load(g.configFile)
}

func newRootCmd() *cobra.Command {
	g := &globals{}
	root := &cobra.Command{
		Use:           "authomatic",
		Short:         "Log users in with OAuth 1.0a and OAuth 2.0 providers",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&g.configFile, "config", "c", envOr("AUTHOMATIC_CONFIG", defaultConfigFile), "Config file (env AUTHOMATIC_CONFIG)")
	root.PersistentFlags().StringVar(&g.envFile, "env-file", ".env", "File of environment variables loaded before the config")
	root.PersistentFlags().StringVar(&g.logLevel, "log-level", envOr("AUTHOMATIC_LOG_LEVEL", "info"), "Log level: trace|debug|info|warn|error")

	root.AddCommand(newServeCmd(g))
	root.AddCommand(newCredentialsCmd(g))
	root.AddCommand(newAccessCmd(g))
	root.AddCommand(newProvidersCmd())
	return root
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}
}

func envOr(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

// keyValues parses repeated k=v flag values.
func keyValues(in []string) (map[string]string, error) {
	out := make(map[string]string, len(in))
	for _, kv := range in {
		k, v, ok := strings.Cut(kv, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("%q is not key=value", kv)
		}
		out[k] = v
	}
	return out, nil
}
