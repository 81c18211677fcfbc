package cliconfig

import "fmt"

// Loader resolves a Config with precedence flag > env > file > default.
type Loader struct {
	// Path is the TOML file; a missing file is skipped.
	Path string

	// Base holds defaults overlaid with parsed flag values.
	Base Config

	// Changed names the flags set on the command line.
	Changed map[string]bool
}

// Load builds and validates the configuration.
func (l Loader) Load() (Config, error) {
	cfg := l.Base
	if l.Path != "" && FileExists(l.Path) {
		fc, err := LoadFileConfig(l.Path)
		if err != nil {
			return Config{}, fmt.Errorf("load config: %w", err)
		}
		if err := ApplyFileConfig(&cfg, fc, l.Changed); err != nil {
			return Config{}, err
		}
	}
	if err := ApplyEnvConfig(&cfg, l.Changed); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
