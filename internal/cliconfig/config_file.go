package cliconfig

import (
	"os"
	"path/filepath"
	"time"

	toml "github.com/pelletier/go-toml/v2"
)

// FileConfig mirrors Config but uses strings for durations to make TOML friendly.
type FileConfig struct {
	Iterations       int    `toml:"iterations"`
	Requests         int    `toml:"requests"`
	TargetURL        string `toml:"target_url"`
	RequestTimeout   string `toml:"request_timeout"`
	WorkTimeout      string `toml:"work_timeout"`
	ShutdownTimeout  string `toml:"shutdown_timeout"`
	BlockedThreshold string `toml:"blocked_threshold"`
	Pause            string `toml:"pause"`
	MaxBackoff       string `toml:"max_backoff"`
	BreakerThreshold *int   `toml:"breaker_threshold"`
	BreakerCooldown  string `toml:"breaker_cooldown"`
	MetricsAddr      string `toml:"metrics_addr"`
	LogLevel         string `toml:"log_level"`
}

// LoadFileConfig reads and parses a TOML config file from the given path.
func LoadFileConfig(path string) (FileConfig, error) {
	var fc FileConfig
	b, err := os.ReadFile(path)
	if err != nil {
		return fc, err
	}
	if err := toml.Unmarshal(b, &fc); err != nil {
		return fc, err
	}
	return fc, nil
}

// DefaultConfigPath returns ~/.loopleak/config.toml, or "" when the home
// directory is unknown.
func DefaultConfigPath() string {
	if h, err := os.UserHomeDir(); err == nil {
		return filepath.Join(h, ".loopleak", "config.toml")
	}
	return ""
}

// ApplyFileConfig applies configuration from a file to the Config struct.
// It respects flags that have been explicitly set (changed map).
func ApplyFileConfig(cfg *Config, fc FileConfig, changed map[string]bool) error {
	s := newConfigSetter(changed)

	s.setInt("iterations", fc.Iterations, &cfg.Iterations)
	s.setInt("requests", fc.Requests, &cfg.Requests)
	s.setNonNegInt("breaker-threshold", fc.BreakerThreshold, &cfg.BreakerThreshold)

	s.setString("target-url", fc.TargetURL, &cfg.TargetURL)
	s.setString("metrics-addr", fc.MetricsAddr, &cfg.MetricsAddr)
	s.setString("log-level", fc.LogLevel, &cfg.LogLevel)

	durations := []struct {
		flag  string
		value string
		dst   *time.Duration
	}{
		{"request-timeout", fc.RequestTimeout, &cfg.RequestTimeout},
		{"work-timeout", fc.WorkTimeout, &cfg.WorkTimeout},
		{"shutdown-timeout", fc.ShutdownTimeout, &cfg.ShutdownTimeout},
		{"blocked-threshold", fc.BlockedThreshold, &cfg.BlockedThreshold},
		{"pause", fc.Pause, &cfg.Pause},
		{"max-backoff", fc.MaxBackoff, &cfg.MaxBackoff},
		{"breaker-cooldown", fc.BreakerCooldown, &cfg.BreakerCooldown},
	}
	for _, d := range durations {
		if err := s.setDuration(d.flag, d.value, d.dst); err != nil {
			return err
		}
	}
	return nil
}

// FileExists checks if a file exists at the given path.
func FileExists(p string) bool {
	_, err := os.Stat(p)
	return err == nil
}
