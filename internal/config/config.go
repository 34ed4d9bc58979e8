// Package config loads the core's static settings — the knobs spec.md
// leaves as implementer choices rather than per-session shell state:
// strict-glob mode, the default TERM, and whether direnv overlays are
// enabled. It follows canonical-lxd's lxc/config package in using
// spf13/viper over an XDG-resolved config file rather than a bespoke
// parser.
package config

import (
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// Config holds the settings this layer resolves.
type Config struct {
	StrictGlob    bool   `mapstructure:"strict_glob"`
	DefaultTerm   string `mapstructure:"default_term"`
	DirenvEnabled bool   `mapstructure:"direnv_enabled"`
}

// defaults mirror spec.md's stated defaults: literal-keep glob, direnv
// on. DefaultTerm is loaded but not applied anywhere: TERM always comes
// from the environment snapshot (xterm-256color when that is empty).
var defaults = Config{
	StrictGlob:    false,
	DefaultTerm:   "",
	DirenvEnabled: true,
}

// Load reads dsh's config file from the XDG config directory
// ($XDG_CONFIG_HOME/dsh/config.yaml, falling back to ~/.config/dsh),
// returning the defaults unmodified if no file is present — a missing
// config file is not an error (spec.md §4's implementer-choice knobs are
// meant to have sane defaults).
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(configDir())
	v.SetDefault("strict_glob", defaults.StrictGlob)
	v.SetDefault("default_term", defaults.DefaultTerm)
	v.SetDefault("direnv_enabled", defaults.DirenvEnabled)

	if err := v.ReadInConfig(); err != nil {
		if _, notFound := err.(viper.ConfigFileNotFoundError); !notFound {
			return nil, err
		}
	}

	cfg := defaults
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func configDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "dsh")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".config/dsh"
	}
	return filepath.Join(home, ".config", "dsh")
}
