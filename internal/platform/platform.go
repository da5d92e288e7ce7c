package platform

import (
	"fmt"
	"os"
)

// CopyMethod identifies which syscall/strategy was used for a copy.
type CopyMethod int

const (
	ReadWrite     CopyMethod = iota
	CopyFileRange            // Linux copy_file_range(2)
	Sendfile                 // Linux sendfile(2)
)

func (m CopyMethod) String() string {
	switch m {
	case ReadWrite:
		return "read_write"
	case CopyFileRange:
		return "copy_file_range"
	case Sendfile:
		return "sendfile"
	default:
		return "unknown"
	}
}

// CopyResult reports the outcome of a copy operation.
type CopyResult struct {
	BytesWritten int64
	Method       CopyMethod
}

// CopyFile copies the whole of src into dst, starting at offset 0 of both,
// using the fastest method the platform offers. On Linux the destination
// space is reserved first, so a full volume fails before any byte is
// written. Errors keep their errno so callers can classify ENOSPC and
// friends.
func CopyFile(dst, src *os.File) (CopyResult, error) {
	info, err := src.Stat()
	if err != nil {
		return CopyResult{}, fmt.Errorf("stat %s: %w", src.Name(), err)
	}
	size := info.Size()
	if err := preallocate(dst, size); err != nil {
		return CopyResult{}, err
	}
	return copyFile(dst, src, size)
}
