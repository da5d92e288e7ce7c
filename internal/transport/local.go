package transport

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"syscall"

	"golang.org/x/sys/unix"
)

// Compile-time interface checks.
var (
	_ Reader = (*LocalReader)(nil)
	_ Hasher = (*LocalReader)(nil)
)

// LocalReader reads a mounted volume (or any directory) through the OS.
type LocalReader struct {
	root      RawEntry
	totalSize uint64
	opts      WriteOpts
}

// NewLocalReader opens the directory at root. The volume size used for
// entry validation comes from statfs on root.
func NewLocalReader(root string, opts WriteOpts) (*LocalReader, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("%w: resolve %s: %v", ErrIO, root, err)
	}

	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("%w: stat %s: %v", ErrIO, abs, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s is not a directory", ErrUnsupported, abs)
	}

	entry, err := entryFromInfo(abs, info)
	if err != nil {
		return nil, err
	}
	entry.Name = "/"

	var st unix.Statfs_t
	var total uint64
	if err := unix.Statfs(abs, &st); err == nil {
		total = uint64(st.Blocks) * uint64(st.Bsize) //nolint:gosec // G115: block counts are non-negative
	}

	return &LocalReader{root: entry, totalSize: total, opts: opts}, nil
}

func (r *LocalReader) Root() RawEntry    { return r.root }
func (r *LocalReader) TotalSize() uint64 { return r.totalSize }

func (r *LocalReader) ListChildren(_ context.Context, dir Handle) ([]RawEntry, error) {
	dirents, err := os.ReadDir(dir.Ref)
	if err != nil {
		return nil, fmt.Errorf("%w: readdir %s: %v", ErrIO, dir.Ref, err)
	}

	entries := make([]RawEntry, 0, len(dirents))
	for _, d := range dirents {
		path := filepath.Join(dir.Ref, d.Name())
		info, err := os.Lstat(path)
		if err != nil {
			continue
		}
		// Only regular files and directories are recoverable.
		if !info.Mode().IsRegular() && !info.IsDir() {
			continue
		}
		entry, err := entryFromInfo(path, info)
		if err != nil {
			continue
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

func (r *LocalReader) CopyFile(ctx context.Context, h Handle, dst string) CopyStatus {
	info, err := os.Lstat(h.Ref)
	if err != nil || !info.Mode().IsRegular() {
		return StatFailed
	}

	src, err := os.Open(h.Ref)
	if err != nil {
		return statusFor(err, OpenFailed)
	}
	defer src.Close()

	return writeDest(ctx, src, dst, info.ModTime(), r.opts)
}

func (r *LocalReader) Hash(_ context.Context, h Handle) (string, error) {
	return HashFile(h.Ref)
}

func entryFromInfo(path string, info os.FileInfo) (RawEntry, error) {
	stat, ok := info.Sys().(*syscall.Stat_t)
	if !ok {
		return RawEntry{}, fmt.Errorf("%w: no inode information for %s", ErrUnsupported, path)
	}
	return RawEntry{
		Name:    info.Name(),
		Inode:   stat.Ino,
		Handle:  Handle{Ref: path, Inode: stat.Ino},
		IsDir:   info.IsDir(),
		Size:    uint64(info.Size()), //nolint:gosec // G115: sizes are non-negative
		ModTime: info.ModTime(),
	}, nil
}
