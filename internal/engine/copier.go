package engine

import (
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"strings"
	"sync/atomic"

	"github.com/bamsammich/salvage/internal/event"
	"github.com/bamsammich/salvage/internal/stats"
	"github.com/bamsammich/salvage/internal/transport"
)

// CopyOutcome is the terminal state of a copy run.
type CopyOutcome int

const (
	CopyCompleted CopyOutcome = iota
	CopyCancelled
	CopyFailed
)

var copyOutcomeNames = [...]string{
	CopyCompleted: "completed",
	CopyCancelled: "cancelled",
	CopyFailed:    "failed",
}

func (o CopyOutcome) String() string {
	if o >= 0 && int(o) < len(copyOutcomeNames) {
		return copyOutcomeNames[o]
	}
	return "unknown"
}

// FileRecord describes one attempted file for a FileRecorder.
type FileRecord struct {
	Path         string
	Hash         string // BLAKE3 of the source, set when verified
	Size         int64
	Status       transport.CopyStatus
	Verified     bool
	VerifyFailed bool
}

// FileRecorder receives a record for every attempted file.
type FileRecorder interface {
	RecordFile(rec FileRecord) error
}

// CopyConfig controls a copy run.
type CopyConfig struct {
	Stats   *stats.Collector   // nil = private collector
	Events  chan<- event.Event // nil = no events
	Logger  *slog.Logger       // nil = slog.Default()
	Cancel  *atomic.Bool       // optional cooperative cancel flag
	Journal FileRecorder       // nil = no journal
	// Limit caps the number of files attempted. Zero means the tree's
	// current selected file count.
	Limit  int64
	Verify bool // compare BLAKE3 hashes when the reader implements transport.Hasher
}

// CopyResult is returned by CopySelected.
type CopyResult struct {
	Failed         *Node // the node that stopped the run, if any
	Outcome        CopyOutcome
	FailedStatus   transport.CopyStatus
	Attempted      int64
	Copied         int64
	BytesCopied    int64
	VerifyFailures int64
}

var (
	errCopyCancelled = errors.New("copy cancelled")
	errCopyLimit     = errors.New("copy limit reached")
	errCopyFailed    = errors.New("copy failed")
)

type copier struct {
	reader  transport.Reader
	hasher  transport.Hasher
	cfg     CopyConfig
	log     *slog.Logger
	stats   *stats.Collector
	dstRoot string
	segs    []string
	memo    map[*Node]bool
	result  *CopyResult
}

// CopySelected copies every effectively selected file of tree below dstRoot,
// in pre-order. The first file that does not copy stops the run.
func CopySelected(ctx context.Context, tree *Tree, dstRoot string, reader transport.Reader, cfg CopyConfig) CopyResult {
	if cfg.Stats == nil {
		cfg.Stats = stats.NewCollector()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	totals := Totals(tree)
	if cfg.Limit <= 0 {
		cfg.Limit = totals.Files
	}
	cfg.Stats.ResetCopy()

	var result CopyResult
	c := &copier{
		reader:  reader,
		cfg:     cfg,
		log:     cfg.Logger,
		stats:   cfg.Stats,
		dstRoot: dstRoot,
		memo:    make(map[*Node]bool),
		result:  &result,
	}
	if cfg.Verify {
		c.hasher, _ = reader.(transport.Hasher)
		if c.hasher == nil {
			c.log.Warn("reader cannot hash source files; verification disabled")
		}
	}

	event.Emit(cfg.Events, event.Event{Type: event.CopyStarted, Total: totals.Files, TotalSize: totals.Bytes})

	var err error
	if tree != nil && tree.Root != nil && tree.Root.Selected && hasSelectedFile(tree.Root, c.memo) {
		err = c.copyDir(ctx, tree.Root)
	}
	switch {
	case errors.Is(err, errCopyCancelled):
		result.Outcome = CopyCancelled
	case errors.Is(err, errCopyFailed):
		result.Outcome = CopyFailed
	default:
		result.Outcome = CopyCompleted
	}

	c.log.Debug("copy finished",
		"outcome", result.Outcome.String(),
		"attempted", result.Attempted,
		"copied", result.Copied,
		"bytes", result.BytesCopied,
	)
	event.Emit(cfg.Events, event.Event{
		Type:      event.CopyComplete,
		Total:     result.Copied,
		TotalSize: result.BytesCopied,
		Status:    result.FailedStatus,
	})
	return result
}

func (c *copier) cancelled(ctx context.Context) bool {
	if c.cfg.Cancel != nil && c.cfg.Cancel.Load() {
		return true
	}
	return ctx.Err() != nil
}

func (c *copier) copyDir(ctx context.Context, dir *Node) error {
	for _, child := range dir.Children {
		if !child.Selected {
			continue
		}
		if child.IsDir {
			if !hasSelectedFile(child, c.memo) {
				continue
			}
			c.segs = append(c.segs, child.Name)
			err := c.copyDir(ctx, child)
			c.segs = c.segs[:len(c.segs)-1]
			if err != nil {
				return err
			}
			continue
		}
		if err := c.copyFile(ctx, child); err != nil {
			return err
		}
	}
	return nil
}

func (c *copier) copyFile(ctx context.Context, n *Node) error {
	if c.cancelled(ctx) {
		return errCopyCancelled
	}
	if c.result.Attempted >= c.cfg.Limit {
		return errCopyLimit
	}
	c.result.Attempted++
	n.FullPath = c.fullPath(n.Name)

	var status transport.CopyStatus
	dst, ok := c.destination(n)
	if ok {
		status = c.reader.CopyFile(ctx, n.Handle, dst)
	} else {
		status = transport.CreateFailed
	}
	n.Status = status

	if status != transport.Copied {
		c.result.Failed = n
		c.result.FailedStatus = status
		c.stats.AddFilesFailed(1)
		c.log.Warn("copy failed", "path", n.FullPath, "inode", n.Inode, "status", status.String())
		event.Emit(c.cfg.Events, event.Event{Type: event.FileFailed, Path: n.FullPath, Size: int64(n.Size), Status: status}) //nolint:gosec // G115: bounded by volume size
		c.record(FileRecord{Path: n.FullPath, Size: int64(n.Size), Status: status})                                        //nolint:gosec // G115: bounded by volume size
		return errCopyFailed
	}

	size := int64(n.Size) //nolint:gosec // G115: bounded by volume size
	c.result.Copied++
	c.result.BytesCopied += size
	c.stats.AddFilesCopied(1)
	c.stats.AddBytesCopied(size)
	c.log.Debug("copied", "path", n.FullPath, "inode", n.Inode, "size", size)
	event.Emit(c.cfg.Events, event.Event{Type: event.FileCopied, Path: n.FullPath, Size: size, Status: status})

	rec := FileRecord{Path: n.FullPath, Size: size, Status: status}
	if c.hasher != nil {
		c.verify(ctx, n, dst, &rec)
	}
	c.record(rec)
	return nil
}

// verify compares source and destination hashes. Mismatches are counted and
// reported but never stop the run.
func (c *copier) verify(ctx context.Context, n *Node, dst string, rec *FileRecord) {
	rec.Verified = true
	srcHash, err := c.hasher.Hash(ctx, n.Handle)
	if err != nil {
		c.verifyFailed(n, rec, err)
		return
	}
	rec.Hash = srcHash
	dstHash, err := transport.HashFile(dst)
	if err != nil {
		c.verifyFailed(n, rec, err)
		return
	}
	if srcHash != dstHash {
		c.verifyFailed(n, rec, errors.New("hash mismatch"))
		return
	}
	c.stats.AddFilesVerified(1)
	event.Emit(c.cfg.Events, event.Event{Type: event.VerifyOK, Path: n.FullPath, Size: rec.Size})
}

func (c *copier) verifyFailed(n *Node, rec *FileRecord, err error) {
	rec.VerifyFailed = true
	c.result.VerifyFailures++
	c.stats.AddFilesVerifyFailed(1)
	c.log.Warn("verify failed", "path", n.FullPath, "error", err)
	event.Emit(c.cfg.Events, event.Event{Type: event.VerifyFailed, Path: n.FullPath, Size: rec.Size, Error: err})
}

func (c *copier) record(rec FileRecord) {
	if c.cfg.Journal == nil {
		return
	}
	if err := c.cfg.Journal.RecordFile(rec); err != nil {
		c.log.Warn("journal write failed", "path", rec.Path, "error", err)
	}
}

func (c *copier) fullPath(name string) string {
	var b strings.Builder
	for _, s := range c.segs {
		b.WriteByte('/')
		b.WriteString(s)
	}
	b.WriteByte('/')
	b.WriteString(name)
	return b.String()
}

// destination maps the node's volume path below dstRoot. Names that would
// escape dstRoot are refused.
func (c *copier) destination(n *Node) (string, bool) {
	if n.Name == "." || n.Name == ".." || strings.ContainsRune(n.Name, '/') {
		return "", false
	}
	dst := filepath.Join(c.dstRoot, filepath.FromSlash(n.FullPath))
	rel, err := filepath.Rel(c.dstRoot, dst)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", false
	}
	return dst, true
}
