//go:build linux

package platform

import (
	"errors"
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// preallocate reserves size bytes for dst so a full destination is reported
// before any data moves. Only ENOSPC and EDQUOT are returned; filesystems
// without fallocate support just copy without a reservation.
//
//nolint:gosec // G115: fd values are small non-negative integers
func preallocate(dst *os.File, size int64) error {
	if size <= 0 {
		return nil
	}
	err := unix.Fallocate(int(dst.Fd()), 0, 0, size)
	if errors.Is(err, unix.ENOSPC) || errors.Is(err, unix.EDQUOT) {
		return fmt.Errorf("reserve %d bytes for %s: %w", size, dst.Name(), err)
	}
	return nil
}
