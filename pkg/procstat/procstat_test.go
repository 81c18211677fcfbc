package procstat

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

func TestTake(t *testing.T) {
	if runtime.GOOS != "linux" && runtime.GOOS != "darwin" {
		t.Skip("needs a descriptor directory")
	}
	before, err := Take()
	if err != nil {
		t.Fatalf("Take() error = %v", err)
	}
	if before.PID != os.Getpid() {
		t.Errorf("PID = %d, want %d", before.PID, os.Getpid())
	}
	if before.Goroutines < 1 || before.Threads < 1 {
		t.Errorf("implausible snapshot: %+v", before)
	}
	if before.FDLimit == 0 {
		t.Error("FDLimit = 0")
	}

	var files []*os.File
	for i := 0; i < 3; i++ {
		f, err := os.Create(filepath.Join(t.TempDir(), "fd"))
		if err != nil {
			t.Fatal(err)
		}
		files = append(files, f)
	}
	after, err := Take()
	if err != nil {
		t.Fatal(err)
	}
	for _, f := range files {
		f.Close()
	}

	if d := after.Sub(before); d.OpenFDs < 3 {
		t.Errorf("fd drift = %d after opening 3 files, want at least 3", d.OpenFDs)
	}
}

func TestParseThreads(t *testing.T) {
	tests := []struct {
		name   string
		status string
		want   int
		ok     bool
	}{
		{"present", "Name:\tloopleak\nThreads:\t12\nSigQ:\t0/1\n", 12, true},
		{"missing", "Name:\tloopleak\n", 0, false},
		{"garbled", "Threads:\tmany\n", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := parseThreads([]byte(tt.status))
			if got != tt.want || ok != tt.ok {
				t.Errorf("parseThreads() = %d, %v, want %d, %v", got, ok, tt.want, tt.ok)
			}
		})
	}
}

func TestTake_PartialWithoutDescriptorDir(t *testing.T) {
	orig := fdDirs
	fdDirs = []string{filepath.Join(t.TempDir(), "missing")}
	t.Cleanup(func() { fdDirs = orig })

	s, err := Take()
	if err == nil {
		t.Fatal("Take() error = nil without a descriptor directory")
	}
	if s.PID != os.Getpid() {
		t.Errorf("PID = %d, want %d", s.PID, os.Getpid())
	}
	if s.Goroutines < 1 || s.Threads < 1 {
		t.Errorf("partial snapshot lacks runtime counts: %+v", s)
	}
	if s.OpenFDs != 0 {
		t.Errorf("OpenFDs = %d, want 0", s.OpenFDs)
	}
}
