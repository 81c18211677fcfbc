package cliconfig

import "os"

// ApplyEnvConfig applies configuration from environment variables (LOOPLEAK_*).
// It respects flags that have been explicitly set (changed map).
// Returns error if any environment variable has an invalid format.
func ApplyEnvConfig(cfg *Config, changed map[string]bool) error {
	s := newConfigSetter(changed)

	s.setString("target-url", os.Getenv("LOOPLEAK_TARGET_URL"), &cfg.TargetURL)
	s.setString("metrics-addr", os.Getenv("LOOPLEAK_METRICS_ADDR"), &cfg.MetricsAddr)
	s.setString("log-level", os.Getenv("LOOPLEAK_LOG_LEVEL"), &cfg.LogLevel)

	if err := s.setIntFromString("iterations", os.Getenv("LOOPLEAK_ITERATIONS"), &cfg.Iterations); err != nil {
		return err
	}
	if err := s.setIntFromString("requests", os.Getenv("LOOPLEAK_REQUESTS"), &cfg.Requests); err != nil {
		return err
	}
	if err := s.setNonNegIntFromString("breaker-threshold", os.Getenv("LOOPLEAK_BREAKER_THRESHOLD"), &cfg.BreakerThreshold); err != nil {
		return err
	}

	if err := s.setDuration("request-timeout", os.Getenv("LOOPLEAK_REQUEST_TIMEOUT"), &cfg.RequestTimeout); err != nil {
		return err
	}
	if err := s.setDuration("work-timeout", os.Getenv("LOOPLEAK_WORK_TIMEOUT"), &cfg.WorkTimeout); err != nil {
		return err
	}
	if err := s.setDuration("shutdown-timeout", os.Getenv("LOOPLEAK_SHUTDOWN_TIMEOUT"), &cfg.ShutdownTimeout); err != nil {
		return err
	}
	if err := s.setDuration("blocked-threshold", os.Getenv("LOOPLEAK_BLOCKED_THRESHOLD"), &cfg.BlockedThreshold); err != nil {
		return err
	}
	if err := s.setDuration("pause", os.Getenv("LOOPLEAK_PAUSE"), &cfg.Pause); err != nil {
		return err
	}
	if err := s.setDuration("max-backoff", os.Getenv("LOOPLEAK_MAX_BACKOFF"), &cfg.MaxBackoff); err != nil {
		return err
	}
	if err := s.setDuration("breaker-cooldown", os.Getenv("LOOPLEAK_BREAKER_COOLDOWN"), &cfg.BreakerCooldown); err != nil {
		return err
	}

	return nil
}
