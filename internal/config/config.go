// Package config implements the depot's layered runtime configuration
// (§6, §10): a Viper instance with a project → XDG → home search path and
// POLY_-prefixed environment overrides, plus a TOML static bootstrap
// descriptor for `polytoped serve`.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

var v *viper.Viper

// Initialize sets up the Viper configuration singleton. Call once at
// process startup, before any Get* call.
func Initialize() error {
	v = viper.New()
	v.SetConfigType("toml")

	configFileSet := false

	// 1. Walk up from CWD to find a project .polytope/config.toml, so
	// subcommands work from any subdirectory of a checked-out depot.
	if cwd, err := os.Getwd(); err == nil {
		for dir := cwd; dir != filepath.Dir(dir); dir = filepath.Dir(dir) {
			configPath := filepath.Join(dir, ".polytope", "config.toml")
			if _, err := os.Stat(configPath); err == nil {
				v.SetConfigFile(configPath)
				configFileSet = true
				break
			}
		}
	}

	// 2. XDG user config directory.
	if !configFileSet {
		if configDir, err := os.UserConfigDir(); err == nil {
			configPath := filepath.Join(configDir, "polytoped", "config.toml")
			if _, err := os.Stat(configPath); err == nil {
				v.SetConfigFile(configPath)
				configFileSet = true
			}
		}
	}

	// 3. Home directory fallback.
	if !configFileSet {
		if homeDir, err := os.UserHomeDir(); err == nil {
			configPath := filepath.Join(homeDir, ".polytope", "config.toml")
			if _, err := os.Stat(configPath); err == nil {
				v.SetConfigFile(configPath)
				configFileSet = true
			}
		}
	}

	v.SetEnvPrefix("POLY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	// §6 names rootUser/rootEmail/rootPassword/dbPath as the bootstrap
	// keys; the rest are operational tunables the depot core needs.
	v.SetDefault("rootUser", "admin")
	v.SetDefault("rootEmail", "")
	v.SetDefault("rootPassword", "")
	v.SetDefault("dbPath", "polytope.db")
	v.SetDefault("bindAddr", "127.0.0.1:8080")
	v.SetDefault("lockTimeout", "30s")
	v.SetDefault("defaultHasher", "bcrypt")

	if configFileSet {
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("reading config file: %w", err)
		}
	}
	return nil
}

// GetString retrieves a string configuration value.
func GetString(key string) string {
	if v == nil {
		return ""
	}
	return v.GetString(key)
}

// GetBool retrieves a boolean configuration value.
func GetBool(key string) bool {
	if v == nil {
		return false
	}
	return v.GetBool(key)
}

// GetInt retrieves an integer configuration value.
func GetInt(key string) int {
	if v == nil {
		return 0
	}
	return v.GetInt(key)
}

// GetDuration retrieves a duration configuration value.
func GetDuration(key string) time.Duration {
	if v == nil {
		return 0
	}
	return v.GetDuration(key)
}

// ConfigFileUsed returns the path of the config file that was loaded, or
// "" if none was found.
func ConfigFileUsed() string {
	if v == nil {
		return ""
	}
	return v.ConfigFileUsed()
}
