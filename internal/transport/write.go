package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sys/unix"
	"golang.org/x/time/rate"

	"github.com/bamsammich/salvage/internal/platform"
)

// WriteOpts controls how recovered data lands on the destination.
type WriteOpts struct {
	// Limiter caps write throughput. Nil means unlimited.
	Limiter *rate.Limiter
}

// writeDest writes src to dst through a temp file in the same directory and
// renames it into place. Parent directories are created as needed.
func writeDest(ctx context.Context, src io.Reader, dst string, modTime time.Time, opts WriteOpts) CopyStatus {
	dir := filepath.Dir(dst)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return statusFor(err, CreateFailed)
	}

	tmpPath := filepath.Join(dir, fmt.Sprintf(".%s.%s.salvage-tmp", filepath.Base(dst), uuid.New().String()[:8]))
	tmp, err := os.OpenFile(tmpPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return statusFor(err, CreateFailed)
	}

	committed := false
	defer func() {
		if !committed {
			_ = os.Remove(tmpPath)
		}
	}()

	if status := fill(ctx, tmp, src, opts); status != Copied {
		tmp.Close()
		return status
	}

	if err := tmp.Close(); err != nil {
		return statusFor(err, CloseFailed)
	}
	if err := os.Rename(tmpPath, dst); err != nil {
		return statusFor(err, CreateFailed)
	}
	committed = true

	if !modTime.IsZero() {
		_ = os.Chtimes(dst, modTime, modTime)
	}
	return Copied
}

func fill(ctx context.Context, dst *os.File, src io.Reader, opts WriteOpts) CopyStatus {
	if f, ok := src.(*os.File); ok && opts.Limiter == nil {
		if _, err := platform.CopyFile(dst, f); err != nil {
			return statusFor(err, ReadFailed)
		}
		return Copied
	}

	tr := &trackedReader{r: src}
	var r io.Reader = tr
	if opts.Limiter != nil {
		// An in-flight copy always completes; cancellation is observed
		// between files, not inside one.
		r = newRateLimitedReader(context.WithoutCancel(ctx), tr, opts.Limiter)
	}

	if _, err := io.Copy(dst, r); err != nil {
		if tr.err != nil {
			return statusFor(tr.err, ReadFailed)
		}
		return statusFor(err, Unknown)
	}
	return Copied
}

// statusFor maps an OS error onto a copy status, using fallback when the
// error carries no more specific meaning.
func statusFor(err error, fallback CopyStatus) CopyStatus {
	switch {
	case err == nil:
		return Copied
	case errors.Is(err, unix.ENOSPC), errors.Is(err, unix.EDQUOT):
		return NoSpace
	case errors.Is(err, unix.ENOMEM):
		return NoMemory
	default:
		return fallback
	}
}

// trackedReader remembers the first non-EOF read error so write-side and
// read-side failures can be told apart after io.Copy returns.
type trackedReader struct {
	r   io.Reader
	err error
}

func (t *trackedReader) Read(p []byte) (int, error) {
	n, err := t.r.Read(p)
	if err != nil && !errors.Is(err, io.EOF) && t.err == nil {
		t.err = err
	}
	return n, err
}
