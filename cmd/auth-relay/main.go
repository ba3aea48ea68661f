// Package main is the entry point for auth-relay.
package main

import (
	"context"
	"os"

	"charm.land/fang/v2"
	"github.com/spf13/cobra"
)

const (
	defaultConfigFile = "config.yaml"
	defaultEnvFile    = ".env"
)

var (
	cfgFile string
	envFile string
)

var rootCmd = &cobra.Command{
	Use:   "auth-relay",
	Short: "HTTP bridge in front of an authentication engine",
	Long: `auth-relay forwards every request under {global_prefix}/api/auth to an
authentication engine, validating headers, host, URL and body on the way in
and rate limiting each client. Everything else passes through to the host
application routes.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "",
		"config file path (default: ./"+defaultConfigFile+" or ~/.config/auth-relay/"+defaultConfigFile+")")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", "",
		"dotenv file loaded before the config is read (default: ./"+defaultEnvFile+" if present)")
}

func main() {
	if err := fang.Execute(context.Background(), rootCmd); err != nil {
		os.Exit(1)
	}
}
