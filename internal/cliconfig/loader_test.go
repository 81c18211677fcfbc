package cliconfig

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoader_Precedence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	content := `
iterations = 10
requests = 4
work_timeout = "12s"
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("LOOPLEAK_REQUESTS", "6")
	t.Setenv("LOOPLEAK_ITERATIONS", "11")

	base := DefaultConfig()
	base.Iterations = 3 // set by flag
	l := Loader{Path: path, Base: base, Changed: map[string]bool{"iterations": true}}

	cfg, err := l.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Iterations != 3 {
		t.Errorf("Iterations = %d, want flag value 3", cfg.Iterations)
	}
	if cfg.Requests != 6 {
		t.Errorf("Requests = %d, want env value 6", cfg.Requests)
	}
	if cfg.WorkTimeout != 12*time.Second {
		t.Errorf("WorkTimeout = %v, want file value 12s", cfg.WorkTimeout)
	}
	if cfg.ShutdownTimeout != 5*time.Second {
		t.Errorf("ShutdownTimeout = %v, want default 5s", cfg.ShutdownTimeout)
	}
}

func TestLoader_EnvZeroOverridesFileBreakerThreshold(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte("breaker_threshold = 5\n"), 0644); err != nil {
		t.Fatal(err)
	}

	l := Loader{Path: path, Base: DefaultConfig()}
	cfg, err := l.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.BreakerThreshold != 5 {
		t.Fatalf("BreakerThreshold = %d, want file value 5", cfg.BreakerThreshold)
	}

	t.Setenv("LOOPLEAK_BREAKER_THRESHOLD", "0")
	cfg, err = l.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.BreakerThreshold != 0 {
		t.Errorf("BreakerThreshold = %d, want env value 0", cfg.BreakerThreshold)
	}
}

func TestLoader_MissingFileAndInvalid(t *testing.T) {
	l := Loader{Path: filepath.Join(t.TempDir(), "absent.toml"), Base: DefaultConfig()}
	if _, err := l.Load(); err != nil {
		t.Fatalf("Load() with missing file error = %v", err)
	}

	bad := DefaultConfig()
	bad.Requests = 0
	l.Base = bad
	if _, err := l.Load(); err == nil {
		t.Error("Load() accepted an invalid config")
	}
}
