package transport

import (
	"context"
	"errors"
	"time"
)

// Reader errors. Readers wrap one of these so callers can classify failures
// with errors.Is without knowing the reader implementation.
var (
	// ErrUnsupported means the reader declined to interpret the filesystem.
	ErrUnsupported = errors.New("filesystem not supported")
	// ErrIO means the reader hit a read failure.
	ErrIO = errors.New("filesystem read failed")
)

// Handle locates an entry inside a reader. Ref is reader-specific (a local
// path, a remote path); Inode mirrors the entry's inode.
type Handle struct {
	Ref   string
	Inode uint64
}

// RawEntry is one child returned by Reader.ListChildren.
type RawEntry struct {
	ModTime time.Time
	Name    string
	Handle  Handle
	Inode   uint64
	Size    uint64
	IsDir   bool
}

// Reader exposes a filesystem as "list children of a directory" and "copy a
// file out". Implementations must not mutate the source filesystem.
type Reader interface {
	// Root returns the filesystem's root directory.
	Root() RawEntry

	// TotalSize returns the size of the underlying volume in bytes, or 0 if
	// it is unknown.
	TotalSize() uint64

	// ListChildren lists the immediate children of a directory. It may be
	// called repeatedly for the same handle.
	ListChildren(ctx context.Context, dir Handle) ([]RawEntry, error)

	// CopyFile copies the file at h to the local path dst.
	CopyFile(ctx context.Context, h Handle, dst string) CopyStatus
}

// Hasher is implemented by readers that can checksum a source file.
type Hasher interface {
	Hash(ctx context.Context, h Handle) (string, error)
}
