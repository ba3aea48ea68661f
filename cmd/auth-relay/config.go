package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/omarluq/auth-relay/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Configuration management commands",
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration file",
	Long: `Validate the configuration file without starting the server.
Checks YAML or TOML syntax, the listen address, the engine URL and every
bridge and logging option.`,
	RunE: runConfigValidate,
}

func init() {
	configCmd.AddCommand(configValidateCmd)
	rootCmd.AddCommand(configCmd)
}

func runConfigValidate(cmd *cobra.Command, _ []string) error {
	if _, err := loadEnvFile(envFile); err != nil {
		return err
	}
	return validateConfigFile(cmd.OutOrStdout(), resolveConfigPath(cfgFile))
}

// validateConfigFile reports on path to w and returns the validation error.
func validateConfigFile(w io.Writer, path string) error {
	cfg, err := config.LoadAndValidate(path)
	if err != nil {
		_, _ = fmt.Fprintf(w, "✗ Config validation failed: %s\n", err)
		return err
	}

	_, _ = fmt.Fprintf(w, "✓ %s is valid\n", path)
	_, _ = fmt.Fprintf(w, "  %s\n", cfg)
	return nil
}
