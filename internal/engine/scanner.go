package engine

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"

	"github.com/bamsammich/salvage/internal/event"
	"github.com/bamsammich/salvage/internal/stats"
	"github.com/bamsammich/salvage/internal/transport"
)

// DefaultMaxDepth bounds directory nesting when ScanConfig.MaxDepth is unset.
const DefaultMaxDepth = 256

// ScanOutcome is the terminal state of a scan.
type ScanOutcome int

const (
	ScanCompleted ScanOutcome = iota
	ScanCancelled
	ScanUnsupported
	ScanIOError
)

var scanOutcomeNames = [...]string{
	ScanCompleted:   "completed",
	ScanCancelled:   "cancelled",
	ScanUnsupported: "unsupported",
	ScanIOError:     "io-error",
}

func (o ScanOutcome) String() string {
	if o >= 0 && int(o) < len(scanOutcomeNames) {
		return scanOutcomeNames[o]
	}
	return "unknown"
}

// ScanConfig controls a scan.
type ScanConfig struct {
	Stats  *stats.Collector   // nil = private collector
	Events chan<- event.Event // nil = no events
	Logger *slog.Logger       // nil = slog.Default()
	Cancel *atomic.Bool       // optional cooperative cancel flag
	// MaxDepth bounds directory nesting; the root is depth 0. Zero means
	// DefaultMaxDepth.
	MaxDepth int
}

// ScanResult is returned by Scan. Tree is always non-nil and holds whatever
// was built before the scan stopped.
type ScanResult struct {
	Err          error
	Tree         *Tree
	Outcome      ScanOutcome
	Files        int64
	Bytes        int64
	Ignored      int64
	DepthLimited bool
}

var errScanCancelled = errors.New("scan cancelled")

type scanner struct {
	reader    transport.Reader
	cfg       ScanConfig
	log       *slog.Logger
	stats     *stats.Collector
	ancestors map[uint64]struct{}
	result    *ScanResult
}

// Scan builds a tree from reader by depth-first descent from its root.
// Entries failing validation are counted as ignored and skipped. The first
// reader error aborts the scan.
func Scan(ctx context.Context, reader transport.Reader, cfg ScanConfig) ScanResult {
	if cfg.MaxDepth <= 0 {
		cfg.MaxDepth = DefaultMaxDepth
	}
	if cfg.Stats == nil {
		cfg.Stats = stats.NewCollector()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	cfg.Stats.ResetScan()

	rootEntry := reader.Root()
	root := NewDirNode(rootEntry, 0)
	root.Name = "/"

	result := ScanResult{Tree: &Tree{Root: root, TotalSize: reader.TotalSize()}}
	s := &scanner{
		reader:    reader,
		cfg:       cfg,
		log:       cfg.Logger,
		stats:     cfg.Stats,
		ancestors: map[uint64]struct{}{root.Inode: {}},
		result:    &result,
	}

	event.Emit(cfg.Events, event.Event{Type: event.ScanStarted, Path: "/"})

	err := s.walk(ctx, root, "/", 0)
	result.Outcome, result.Err = classifyScanErr(err)

	s.log.Debug("scan finished",
		"outcome", result.Outcome.String(),
		"files", result.Files,
		"bytes", result.Bytes,
		"ignored", result.Ignored,
		"depth_limited", result.DepthLimited,
	)
	event.Emit(cfg.Events, event.Event{
		Type:      event.ScanComplete,
		Total:     result.Files,
		TotalSize: result.Bytes,
		Error:     result.Err,
	})
	return result
}

func classifyScanErr(err error) (ScanOutcome, error) {
	switch {
	case err == nil:
		return ScanCompleted, nil
	case errors.Is(err, errScanCancelled):
		return ScanCancelled, nil
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return ScanCancelled, nil
	case errors.Is(err, transport.ErrUnsupported):
		return ScanUnsupported, err
	default:
		return ScanIOError, err
	}
}

func (s *scanner) cancelled(ctx context.Context) bool {
	if s.cfg.Cancel != nil && s.cfg.Cancel.Load() {
		return true
	}
	return ctx.Err() != nil
}

func (s *scanner) walk(ctx context.Context, dir *Node, dirPath string, depth int) error {
	if s.cancelled(ctx) {
		return errScanCancelled
	}

	entries, err := s.reader.ListChildren(ctx, dir.Handle)
	if err != nil {
		s.log.Warn("list directory failed", "path", dirPath, "inode", dir.Inode, "error", err)
		return err
	}
	s.stats.AddDirsListed(1)
	event.Emit(s.cfg.Events, event.Event{Type: event.DirListed, Path: dirPath, Total: int64(len(entries))})

	seen := make(map[uint64]struct{}, len(entries))
	for _, e := range entries {
		if s.cancelled(ctx) {
			return errScanCancelled
		}

		childPath := joinVolumePath(dirPath, e.Name)
		if reason := s.reject(e, seen); reason != "" {
			s.ignore(childPath, e, reason)
			continue
		}
		seen[e.Inode] = struct{}{}

		if !e.IsDir {
			dir.Children = append(dir.Children, NewFileNode(e, dir.Inode))
			s.result.Files++
			s.result.Bytes += int64(e.Size) //nolint:gosec // G115: bounded by volume size
			s.stats.AddFilesAccepted(1)
			s.stats.AddBytesAccepted(int64(e.Size)) //nolint:gosec // G115: bounded by volume size
			continue
		}

		child := NewDirNode(e, dir.Inode)
		dir.Children = append(dir.Children, child)

		if depth+1 >= s.cfg.MaxDepth {
			s.result.DepthLimited = true
			s.log.Debug("depth limit reached", "path", childPath, "inode", e.Inode, "max_depth", s.cfg.MaxDepth)
			continue
		}

		s.ancestors[e.Inode] = struct{}{}
		err := s.walk(ctx, child, childPath, depth+1)
		delete(s.ancestors, e.Inode)
		if err != nil {
			return err
		}
	}
	return nil
}

// reject returns a non-empty reason when e must not enter the tree.
func (s *scanner) reject(e transport.RawEntry, seen map[uint64]struct{}) string {
	switch {
	case s.result.Tree.TotalSize > 0 && e.Size > s.result.Tree.TotalSize:
		return "size exceeds volume"
	case e.Inode == 0:
		return "zero inode"
	case e.Name == "":
		return "empty name"
	}
	if _, dup := seen[e.Inode]; dup {
		return "duplicate inode"
	}
	if !e.IsDir {
		return ""
	}
	if _, loop := s.ancestors[e.Inode]; loop {
		return "directory cycle"
	}
	switch {
	case e.Inode < 2:
		return "reserved inode"
	case e.Name == "." || e.Name == "..":
		return "dot entry"
	}
	return ""
}

func (s *scanner) ignore(path string, e transport.RawEntry, reason string) {
	s.result.Ignored++
	s.stats.AddEntriesIgnored(1)
	s.log.Debug("entry ignored", "path", path, "inode", e.Inode, "reason", reason)
	event.Emit(s.cfg.Events, event.Event{Type: event.EntryIgnored, Path: path, Size: int64(e.Size)}) //nolint:gosec // G115: display only
}

// joinVolumePath joins a volume-absolute directory path and a name with "/".
func joinVolumePath(dir, name string) string {
	if dir == "/" {
		return "/" + name
	}
	return dir + "/" + name
}
