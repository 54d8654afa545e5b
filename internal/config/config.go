// Package config handles tool configuration for the cdml compiler front
// end, loaded from an optional cdml.toml next to the model sources.
package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// DefaultSelfDepth is the maximum nesting of $self comparisons the ON
// condition rewriter supports. Deeper conditions are rejected instead of
// producing a wrong join.
const DefaultSelfDepth = 2

// DefaultFileName is the config file looked up when none is given.
const DefaultFileName = "cdml.toml"

// Config carries the resolve-pass options a model author can set.
type Config struct {
	// AutoExpose controls whether association targets not exposed in a
	// service get a generated projection instead of an error.
	AutoExpose bool `toml:"auto_expose"`

	// SelfDepth overrides DefaultSelfDepth.
	SelfDepth int `toml:"self_depth"`

	// Severities overrides the default severity per diagnostic code ID,
	// e.g. keys-to-many-navigation = "error". Only error, warning and
	// info are accepted.
	Severities map[string]string `toml:"severities"`

	// MaxProblems truncates emitter output; 0 means unlimited.
	MaxProblems int `toml:"max_problems"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		AutoExpose: true,
		SelfDepth:  DefaultSelfDepth,
		Severities: map[string]string{},
	}
}

// Load reads a cdml.toml. A missing file is not an error: defaults apply.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		path = DefaultFileName
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	if cfg.SelfDepth <= 0 {
		cfg.SelfDepth = DefaultSelfDepth
	}
	for code, sev := range cfg.Severities {
		switch sev {
		case "error", "warning", "info":
		default:
			return nil, fmt.Errorf("config %s: invalid severity %q for %s", path, sev, code)
		}
	}
	return cfg, nil
}
