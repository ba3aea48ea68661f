package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
)

var configCandidates = []string{"config.yaml", "config.yml", "config.toml"}

// resolveConfigPath returns flagPath when set, otherwise the first config
// file found in the working directory or ~/.config/auth-relay.
func resolveConfigPath(flagPath string) string {
	if flagPath != "" {
		return flagPath
	}
	if found := findConfigIn("."); found != "" {
		return found
	}
	if home, err := os.UserHomeDir(); err == nil && home != "" {
		if found := findConfigIn(filepath.Join(home, ".config", "auth-relay")); found != "" {
			return found
		}
	}
	return defaultConfigFile // Default, will error if not found
}

// findConfigIn returns the first config candidate present in dir, or "".
func findConfigIn(dir string) string {
	for _, name := range configCandidates {
		p := filepath.Join(dir, name)
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// loadEnvFile loads a dotenv file into the process environment without
// overriding variables already set. A missing default file is not an error;
// a missing explicit one is.
func loadEnvFile(path string) (string, error) {
	explicit := path != ""
	if !explicit {
		path = defaultEnvFile
	}

	if err := godotenv.Load(path); err != nil {
		if !explicit && errors.Is(err, fs.ErrNotExist) {
			return "", nil
		}
		return "", fmt.Errorf("failed to load env file %s: %w", path, err)
	}
	return path, nil
}
