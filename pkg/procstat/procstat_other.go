//go:build !unix

// Without /proc or /dev/fd, Take cannot count descriptors here and returns
// a partial snapshot with an error.

package procstat

import "os"

func pid() int {
	return os.Getpid()
}

// fdLimit reports no limit where the platform has no rlimit.
func fdLimit() (uint64, error) {
	return 0, nil
}
