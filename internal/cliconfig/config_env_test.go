package cliconfig

import (
	"testing"
	"time"
)

func TestApplyEnvConfig(t *testing.T) {
	tests := []struct {
		name     string
		envVars  map[string]string
		changed  map[string]bool
		initial  Config
		expected Config
		wantErr  bool
	}{
		{
			name: "applies all valid env vars",
			envVars: map[string]string{
				"LOOPLEAK_ITERATIONS":        "7",
				"LOOPLEAK_REQUESTS":          "2",
				"LOOPLEAK_TARGET_URL":        "http://localhost/{n}",
				"LOOPLEAK_REQUEST_TIMEOUT":   "1s",
				"LOOPLEAK_WORK_TIMEOUT":      "2s",
				"LOOPLEAK_SHUTDOWN_TIMEOUT":  "300ms",
				"LOOPLEAK_BLOCKED_THRESHOLD": "1s",
				"LOOPLEAK_PAUSE":             "10ms",
				"LOOPLEAK_MAX_BACKOFF":       "5s",
				"LOOPLEAK_BREAKER_THRESHOLD": "3",
				"LOOPLEAK_BREAKER_COOLDOWN":  "1m",
				"LOOPLEAK_METRICS_ADDR":      "127.0.0.1:9100",
				"LOOPLEAK_LOG_LEVEL":         "error",
			},
			changed: map[string]bool{},
			initial: Config{},
			expected: Config{
				Iterations:       7,
				Requests:         2,
				TargetURL:        "http://localhost/{n}",
				RequestTimeout:   time.Second,
				WorkTimeout:      2 * time.Second,
				ShutdownTimeout:  300 * time.Millisecond,
				BlockedThreshold: time.Second,
				Pause:            10 * time.Millisecond,
				MaxBackoff:       5 * time.Second,
				BreakerThreshold: 3,
				BreakerCooldown:  time.Minute,
				MetricsAddr:      "127.0.0.1:9100",
				LogLevel:         "error",
			},
		},
		{
			name: "respects changed flags",
			envVars: map[string]string{
				"LOOPLEAK_ITERATIONS": "7",
				"LOOPLEAK_REQUESTS":   "2",
			},
			changed:  map[string]bool{"iterations": true},
			initial:  Config{Iterations: 1},
			expected: Config{Iterations: 1, Requests: 2},
		},
		{
			name: "ignores non-positive ints",
			envVars: map[string]string{
				"LOOPLEAK_ITERATIONS": "0",
			},
			changed:  map[string]bool{},
			initial:  Config{Iterations: 5},
			expected: Config{Iterations: 5},
		},
		{
			name: "zero breaker threshold disables the breaker",
			envVars: map[string]string{
				"LOOPLEAK_BREAKER_THRESHOLD": "0",
			},
			changed:  map[string]bool{},
			initial:  Config{BreakerThreshold: 5},
			expected: Config{BreakerThreshold: 0},
		},
		{
			name:    "returns error for invalid duration",
			envVars: map[string]string{"LOOPLEAK_WORK_TIMEOUT": "not-a-duration"},
			changed: map[string]bool{},
			wantErr: true,
		},
		{
			name:    "returns error for invalid int",
			envVars: map[string]string{"LOOPLEAK_REQUESTS": "many"},
			changed: map[string]bool{},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.envVars {
				t.Setenv(k, v)
			}

			cfg := tt.initial
			err := ApplyEnvConfig(&cfg, tt.changed)

			if tt.wantErr {
				if err == nil {
					t.Error("ApplyEnvConfig() expected error but got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("ApplyEnvConfig() unexpected error: %v", err)
			}
			if cfg != tt.expected {
				t.Errorf("ApplyEnvConfig() = %+v, want %+v", cfg, tt.expected)
			}
		})
	}
}
