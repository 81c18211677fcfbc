// Package procstat samples the resources a process holds: open file
// descriptors, goroutines and OS threads.
package procstat

import (
	"bufio"
	"bytes"
	"fmt"
	"os"
	"runtime"
	"runtime/pprof"
	"strconv"
)

// Snapshot is one resource sample.
type Snapshot struct {
	PID        int
	OpenFDs    int
	FDLimit    uint64
	Goroutines int
	Threads    int
}

// Drift is the difference between two snapshots.
type Drift struct {
	OpenFDs    int
	Goroutines int
	Threads    int
}

// Sub returns s minus base.
func (s Snapshot) Sub(base Snapshot) Drift {
	return Drift{
		OpenFDs:    s.OpenFDs - base.OpenFDs,
		Goroutines: s.Goroutines - base.Goroutines,
		Threads:    s.Threads - base.Threads,
	}
}

// fdDirs are listed in order; the first readable one is used.
var fdDirs = []string{"/proc/self/fd", "/dev/fd"}

const statusPath = "/proc/self/status"

// Take samples the current process. When open descriptors or the fd limit
// cannot be read, as on platforms without a descriptor directory, the
// returned snapshot still carries PID, goroutines and threads alongside the
// error.
func Take() (Snapshot, error) {
	s := Snapshot{
		PID:        pid(),
		Goroutines: runtime.NumGoroutine(),
		Threads:    threads(),
	}
	fds, err := openFDs()
	if err != nil {
		return s, err
	}
	s.OpenFDs = fds
	limit, err := fdLimit()
	if err != nil {
		return s, fmt.Errorf("procstat: fd limit: %w", err)
	}
	s.FDLimit = limit
	return s, nil
}

// openFDs counts entries in the descriptor directory, excluding the one
// opened to read it.
func openFDs() (int, error) {
	var lastErr error
	for _, dir := range fdDirs {
		entries, err := os.ReadDir(dir)
		if err != nil {
			lastErr = err
			continue
		}
		return len(entries) - 1, nil
	}
	return 0, fmt.Errorf("procstat: count fds: %w", lastErr)
}

// threads reads the kernel's thread count, falling back to the number of
// threads the Go runtime has created.
func threads() int {
	data, err := os.ReadFile(statusPath)
	if err == nil {
		if n, ok := parseThreads(data); ok {
			return n
		}
	}
	return pprof.Lookup("threadcreate").Count()
}

func parseThreads(status []byte) (int, bool) {
	sc := bufio.NewScanner(bytes.NewReader(status))
	for sc.Scan() {
		line := sc.Bytes()
		rest, ok := bytes.CutPrefix(line, []byte("Threads:"))
		if !ok {
			continue
		}
		n, err := strconv.Atoi(string(bytes.TrimSpace(rest)))
		if err != nil {
			return 0, false
		}
		return n, true
	}
	return 0, false
}
