//go:build unix

package procstat

import "golang.org/x/sys/unix"

func pid() int {
	return unix.Getpid()
}

func fdLimit() (uint64, error) {
	var rl unix.Rlimit
	if err := unix.Getrlimit(unix.RLIMIT_NOFILE, &rl); err != nil {
		return 0, err
	}
	return rl.Cur, nil
}
