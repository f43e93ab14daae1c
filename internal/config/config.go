// Package config loads server configuration from a YAML file, environment
// variables, and command-line flags, in that order of increasing precedence.
package config

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

// envPrefix namespaces the environment variables, e.g. RETAIN_LISTEN.
const envPrefix = "RETAIN_"

// Config holds the server configuration.
type Config struct {
	DB       string `koanf:"db" validate:"required"`
	Listen   string `koanf:"listen" validate:"required,hostname_port"`
	ReposDir string `koanf:"repos_dir" validate:"required"`
	PageSize int    `koanf:"page_size" validate:"gte=1,lte=500"`
}

// RegisterFlags defines the command-line flags. Flag defaults are the
// configuration defaults; file and environment values override them only
// when the flag is not set explicitly.
func RegisterFlags(f *pflag.FlagSet) {
	f.String("config", "", "Path to a YAML config file (optional)")
	f.String("db", "retain.db", "Path to the SQLite database file")
	f.String("listen", "localhost:8484", "Address for the HTTP server to listen on")
	f.String("repos_dir", "repos", "Directory where git deck sources are cloned")
	f.Int("page_size", 50, "Default page size for due-card listings")
}

// Load merges the config file (if any), RETAIN_* environment variables, and
// flags, then validates the result.
func Load(f *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	if path, _ := f.GetString("config"); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(".", env.Opt{
		Prefix: envPrefix,
		TransformFunc: func(key, value string) (string, any) {
			return strings.ToLower(strings.TrimPrefix(key, envPrefix)), value
		},
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment config: %w", err)
	}

	// Passing k makes unset flag defaults yield to file/env values.
	if err := k.Load(posflag.Provider(f, ".", k), nil); err != nil {
		return nil, fmt.Errorf("failed to load flag config: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validator.New().Struct(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}
