//go:build linux

package platform

import (
	"errors"
	"io"
	"os"

	"golang.org/x/sys/unix"
)

// copyFile tries copy_file_range, then sendfile, then read/write, falling
// through on unsupported or cross-device errors that hit before any byte
// was written.
func copyFile(dst, src *os.File, size int64) (CopyResult, error) {
	result, err := copyFileRange(dst, src, size)
	if !shouldFallBack(result, err) {
		return result, err
	}

	result, err = copySendfile(dst, src, size)
	if !shouldFallBack(result, err) {
		return result, err
	}

	return copyReadWrite(dst, src, size)
}

func shouldFallBack(result CopyResult, err error) bool {
	return err != nil && result.BytesWritten == 0 && isFallbackErr(err)
}

//nolint:gosec // G115: fd values are small non-negative integers
func copyFileRange(dst, src *os.File, size int64) (CopyResult, error) {
	var roff, woff int64
	var total int64
	for total < size {
		n, err := unix.CopyFileRange(int(src.Fd()), &roff, int(dst.Fd()), &woff, int(size-total), 0)
		if err != nil {
			return CopyResult{BytesWritten: total, Method: CopyFileRange}, err
		}
		if n == 0 {
			// Source shrank below the size we started with.
			return CopyResult{BytesWritten: total, Method: CopyFileRange}, io.ErrUnexpectedEOF
		}
		total += int64(n)
	}
	return CopyResult{BytesWritten: total, Method: CopyFileRange}, nil
}

//nolint:gosec // G115: fd values are small non-negative integers
func copySendfile(dst, src *os.File, size int64) (CopyResult, error) {
	var offset int64
	var total int64
	for total < size {
		n, err := unix.Sendfile(int(dst.Fd()), int(src.Fd()), &offset, int(size-total))
		if err != nil {
			return CopyResult{BytesWritten: total, Method: Sendfile}, err
		}
		if n == 0 {
			return CopyResult{BytesWritten: total, Method: Sendfile}, io.ErrUnexpectedEOF
		}
		total += int64(n)
	}
	return CopyResult{BytesWritten: total, Method: Sendfile}, nil
}

// isFallbackErr reports errors meaning "this syscall can't do it here" as
// opposed to real I/O failures.
func isFallbackErr(err error) bool {
	return errors.Is(err, unix.EXDEV) || errors.Is(err, unix.ENOSYS) ||
		errors.Is(err, unix.EINVAL) || errors.Is(err, unix.EOPNOTSUPP)
}
