package cliconfig

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// DefaultTargetURL is the probe endpoint; {n} is replaced by the request
// number, starting at 1.
const DefaultTargetURL = "https://httpbin.org/delay/{n}"

// Placeholder is substituted with the request number in TargetURL.
const Placeholder = "{n}"

// Config holds CLI configuration for loopleak.
type Config struct {
	Iterations int    `validate:"gte=1"`
	Requests   int    `validate:"gte=1,lte=1000"`
	TargetURL  string `validate:"required"`

	RequestTimeout   time.Duration `validate:"gt=0"`
	WorkTimeout      time.Duration `validate:"gt=0"`
	ShutdownTimeout  time.Duration `validate:"gt=0"`
	BlockedThreshold time.Duration `validate:"gt=0"`
	Pause            time.Duration `validate:"gte=0"`
	MaxBackoff       time.Duration `validate:"gte=0"`

	BreakerThreshold int           `validate:"gte=0"`
	BreakerCooldown  time.Duration `validate:"gte=0"`

	MetricsAddr string `validate:"omitempty,hostname_port"`
	LogLevel    string `validate:"oneof=debug info warn error"`
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() Config {
	return Config{
		Iterations:       100,
		Requests:         20,
		TargetURL:        DefaultTargetURL,
		RequestTimeout:   8 * time.Second,
		WorkTimeout:      10 * time.Second,
		ShutdownTimeout:  5 * time.Second,
		BlockedThreshold: 2 * time.Second,
		MaxBackoff:       30 * time.Second,
		BreakerCooldown:  30 * time.Second,
		LogLevel:         "info",
	}
}

var validate = validator.New()

// Validate checks the configuration for errors and normalizes it.
func (c *Config) Validate() error {
	c.LogLevel = strings.ToLower(strings.TrimSpace(c.LogLevel))
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	c.TargetURL = strings.TrimSpace(c.TargetURL)

	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			return fmt.Errorf("invalid config: %s", describe(verrs))
		}
		return fmt.Errorf("invalid config: %w", err)
	}

	u, err := url.Parse(c.RequestURL(1))
	if err != nil {
		return fmt.Errorf("invalid target url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("target url must be http or https, got %q", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("target url has no host")
	}
	if c.WorkTimeout < c.RequestTimeout {
		return fmt.Errorf("work timeout (%s) must not be shorter than request timeout (%s)", c.WorkTimeout, c.RequestTimeout)
	}
	return nil
}

// RequestURL returns the target URL for request n.
func (c *Config) RequestURL(n int) string {
	return strings.ReplaceAll(c.TargetURL, Placeholder, strconv.Itoa(n))
}

func describe(verrs validator.ValidationErrors) string {
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		if fe.Param() != "" {
			parts = append(parts, fmt.Sprintf("%s must satisfy %s=%s (got %v)", fe.Field(), fe.Tag(), fe.Param(), fe.Value()))
			continue
		}
		parts = append(parts, fmt.Sprintf("%s must satisfy %s (got %v)", fe.Field(), fe.Tag(), fe.Value()))
	}
	return strings.Join(parts, "; ")
}

// configSetter helps apply configuration values while respecting flag precedence.
// It only applies values if the corresponding flag hasn't been explicitly set.
type configSetter struct {
	changed map[string]bool
}

func newConfigSetter(changed map[string]bool) *configSetter {
	return &configSetter{changed: changed}
}

// setString sets a string value if not empty and flag not changed.
func (s *configSetter) setString(flag, value string, dst *string) {
	if value == "" || s.changed[flag] {
		return
	}
	*dst = value
}

// setInt sets an int value if positive and flag not changed.
func (s *configSetter) setInt(flag string, value int, dst *int) {
	if value <= 0 || s.changed[flag] {
		return
	}
	*dst = value
}

// setNonNegInt sets an int value if present, non-negative and flag not
// changed. Zero is a meaningful setting, so nil marks an absent value.
func (s *configSetter) setNonNegInt(flag string, value *int, dst *int) {
	if value == nil || *value < 0 || s.changed[flag] {
		return
	}
	*dst = *value
}

// setDuration parses and sets a duration from string if valid and flag not changed.
func (s *configSetter) setDuration(flag, value string, dst *time.Duration) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("parse %s: %w", flag, err)
	}
	*dst = d
	return nil
}

// setIntFromString parses a string to int and sets the destination if valid.
// Used for environment variables that come as strings.
func (s *configSetter) setIntFromString(flag, value string, dst *int) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	i, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("parse %s: %w", flag, err)
	}
	if i <= 0 {
		return nil
	}
	*dst = i
	return nil
}

// setNonNegIntFromString is setIntFromString for settings where 0 is valid.
func (s *configSetter) setNonNegIntFromString(flag, value string, dst *int) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	i, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("parse %s: %w", flag, err)
	}
	s.setNonNegInt(flag, &i, dst)
	return nil
}
