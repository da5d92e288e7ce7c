package engine

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/bamsammich/salvage/internal/event"
	"github.com/bamsammich/salvage/internal/stats"
	"github.com/bamsammich/salvage/internal/transport"
)

// RunState is the lifecycle state of a scan or copy run.
type RunState int32

const (
	StateIdle RunState = iota
	StateRunning
	StateCompleted
	StateCancelled
	StateFailed
)

var runStateNames = [...]string{
	StateIdle:      "idle",
	StateRunning:   "running",
	StateCompleted: "completed",
	StateCancelled: "cancelled",
	StateFailed:    "failed",
}

func (s RunState) String() string {
	if s >= 0 && int(s) < len(runStateNames) {
		return runStateNames[s]
	}
	return "unknown"
}

// Terminal reports whether the run has finished.
func (s RunState) Terminal() bool {
	return s == StateCompleted || s == StateCancelled || s == StateFailed
}

var (
	// ErrBusy is returned when a scan or copy is already running.
	ErrBusy = errors.New("a scan or copy is already running")
	// ErrNoTree is returned when copying before a scan has produced a tree.
	ErrNoTree = errors.New("no scanned tree")
)

// SessionConfig configures a Session.
type SessionConfig struct {
	Reader   transport.Reader
	Stats    *stats.Collector   // nil = new collector
	Events   chan<- event.Event // nil = no events
	Logger   *slog.Logger       // nil = slog.Default()
	Journal  FileRecorder       // nil = no journal
	MaxDepth int
	Verify   bool
}

// Session owns one source and runs scans and copies against it in the
// background, one at a time. Callers poll Snapshot, Progress and the state
// accessors, or block on WaitScan / WaitCopy.
type Session struct {
	cfg   SessionConfig
	stats *stats.Collector
	log   *slog.Logger

	scanState atomic.Int32
	copyState atomic.Int32

	mu         sync.Mutex
	active     bool
	cancel     *atomic.Bool // flag of the active run
	tree       *Tree
	totals     SelectionTotals
	scanResult ScanResult
	copyResult CopyResult
	scanDone   chan struct{}
	copyDone   chan struct{}
}

// NewSession creates an idle session over cfg.Reader.
func NewSession(cfg SessionConfig) *Session {
	if cfg.Stats == nil {
		cfg.Stats = stats.NewCollector()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Session{cfg: cfg, stats: cfg.Stats, log: cfg.Logger}
}

// StartScan discards any previous tree and copy result and starts a new
// scan in the background. The run state is published before the session
// accepts the next run.
func (s *Session) StartScan(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active {
		return ErrBusy
	}

	flag := &atomic.Bool{}
	done := make(chan struct{})
	s.active = true
	s.cancel = flag
	s.tree = nil
	s.totals = SelectionTotals{}
	s.scanResult = ScanResult{}
	s.copyResult = CopyResult{}
	s.scanDone = done
	s.stats.ResetCopy()
	s.copyState.Store(int32(StateIdle))
	s.scanState.Store(int32(StateRunning))

	go func() {
		defer close(done)
		res := Scan(ctx, s.cfg.Reader, ScanConfig{
			Stats:    s.stats,
			Events:   s.cfg.Events,
			Logger:   s.log,
			Cancel:   flag,
			MaxDepth: s.cfg.MaxDepth,
		})
		totals := Totals(res.Tree)
		s.stats.SetSelection(totals.Files, totals.Bytes)

		s.mu.Lock()
		s.tree = res.Tree
		s.totals = totals
		s.scanResult = res
		s.scanState.Store(int32(scanRunState(res.Outcome)))
		s.active = false
		s.cancel = nil
		s.mu.Unlock()
	}()
	return nil
}

func scanRunState(o ScanOutcome) RunState {
	switch o {
	case ScanCompleted:
		return StateCompleted
	case ScanCancelled:
		return StateCancelled
	default:
		return StateFailed
	}
}

// CancelScan asks the running scan to stop before its next entry.
func (s *Session) CancelScan() {
	if RunState(s.scanState.Load()) == StateRunning {
		s.cancelActive()
	}
}

// CancelCopy asks the running copy to stop before its next file.
func (s *Session) CancelCopy() {
	if RunState(s.copyState.Load()) == StateRunning {
		s.cancelActive()
	}
}

func (s *Session) cancelActive() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		s.cancel.Store(true)
	}
}

// WaitScan blocks until the current scan finishes and returns its result.
// It returns immediately when no scan was started.
func (s *Session) WaitScan() ScanResult {
	s.mu.Lock()
	done := s.scanDone
	s.mu.Unlock()
	if done != nil {
		<-done
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.scanResult
}

// ReconcileSelection merges view into the tree and publishes the new
// selection totals. It is refused while a run is active.
func (s *Session) ReconcileSelection(view *View) (SelectionTotals, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active {
		return SelectionTotals{}, ErrBusy
	}
	if s.tree == nil {
		return SelectionTotals{}, ErrNoTree
	}
	s.totals = Reconcile(s.tree, view)
	s.stats.SetSelection(s.totals.Files, s.totals.Bytes)
	return s.totals, nil
}

// StartCopy copies the current selection below dstRoot in the background.
func (s *Session) StartCopy(ctx context.Context, dstRoot string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active {
		return ErrBusy
	}
	if s.tree == nil {
		return ErrNoTree
	}

	flag := &atomic.Bool{}
	done := make(chan struct{})
	tree := s.tree
	limit := s.totals.Files
	s.active = true
	s.cancel = flag
	s.copyResult = CopyResult{}
	s.copyDone = done
	s.copyState.Store(int32(StateRunning))

	go func() {
		defer close(done)
		var res CopyResult
		if limit > 0 {
			res = CopySelected(ctx, tree, dstRoot, s.cfg.Reader, CopyConfig{
				Stats:   s.stats,
				Events:  s.cfg.Events,
				Logger:  s.log,
				Cancel:  flag,
				Journal: s.cfg.Journal,
				Limit:   limit,
				Verify:  s.cfg.Verify,
			})
		} else {
			s.stats.ResetCopy()
		}

		s.mu.Lock()
		s.copyResult = res
		s.copyState.Store(int32(copyRunState(res.Outcome)))
		s.active = false
		s.cancel = nil
		s.mu.Unlock()
	}()
	return nil
}

func copyRunState(o CopyOutcome) RunState {
	switch o {
	case CopyCompleted:
		return StateCompleted
	case CopyCancelled:
		return StateCancelled
	default:
		return StateFailed
	}
}

// WaitCopy blocks until the current copy finishes and returns its result.
// It returns immediately when no copy was started.
func (s *Session) WaitCopy() CopyResult {
	s.mu.Lock()
	done := s.copyDone
	s.mu.Unlock()
	if done != nil {
		<-done
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.copyResult
}

func (s *Session) ScanState() RunState { return RunState(s.scanState.Load()) }
func (s *Session) CopyState() RunState { return RunState(s.copyState.Load()) }

// Snapshot returns the live counters.
func (s *Session) Snapshot() stats.Snapshot { return s.stats.Snapshot() }

// Stats returns the collector the session publishes to.
func (s *Session) Stats() *stats.Collector { return s.stats }

// Progress returns copied bytes as a percentage of selected bytes, clamped
// to [0, 100]. With nothing selected it is 0, or 100 once the copy completed.
func (s *Session) Progress() float64 {
	snap := s.stats.Snapshot()
	if snap.BytesSelected <= 0 {
		if s.CopyState() == StateCompleted {
			return 100
		}
		return 0
	}
	pct := float64(snap.BytesCopied) / float64(snap.BytesSelected) * 100
	return min(max(pct, 0), 100)
}

// Tree returns the scanned tree, or nil while a run is active or before the
// first scan finished.
func (s *Session) Tree() *Tree {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active {
		return nil
	}
	return s.tree
}

// View returns a fresh lazily expandable view of the scanned tree, or nil
// when no tree is available.
func (s *Session) View() *View {
	tree := s.Tree()
	if tree == nil {
		return nil
	}
	return NewView(tree)
}
