package leap

import (
	"os"

	"golang.org/x/sys/unix"
)

// tuneStdioPipes grows the stdin/stdout pipe buffers. Best effort: the
// fcntl fails when a descriptor is not a pipe or the size exceeds the
// system cap, and the protocol works either way.
func tuneStdioPipes() error {
	var firstErr error
	for _, f := range []*os.File{os.Stdin, os.Stdout} {
		if _, err := unix.FcntlInt(f.Fd(), unix.F_SETPIPE_SZ, stdioPipeSize); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
