package stats

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

const ringSize = 60

// Collector tracks scan, selection and copy statistics using lock-free
// atomic counters. Writers are the running scan or copy task; readers poll
// with Snapshot.
type Collector struct {
	// scan
	filesAccepted  atomic.Int64
	bytesAccepted  atomic.Int64
	entriesIgnored atomic.Int64
	dirsListed     atomic.Int64

	// selection
	filesSelected atomic.Int64
	bytesSelected atomic.Int64

	// copy
	filesCopied       atomic.Int64
	bytesCopied       atomic.Int64
	filesFailed       atomic.Int64
	filesVerified     atomic.Int64
	filesVerifyFailed atomic.Int64

	startNanos atomic.Int64

	// Ring buffer, written only by the presenter's Tick().
	mu          sync.Mutex
	throughput  [ringSize]int64 // bytes delta per second
	filesPerSec [ringSize]int64 // files delta per second
	ringIdx     int
	ringCount   int // samples written, capped at ringSize
	lastBytes   int64
	lastFiles   int64
}

// NewCollector creates a Collector with its clock started now.
func NewCollector() *Collector {
	c := &Collector{}
	c.startNanos.Store(time.Now().UnixNano())
	return c
}

// ResetScan zeroes the scan counters. Called when a scan starts so a
// rescan never reports figures from the previous tree.
func (c *Collector) ResetScan() {
	c.filesAccepted.Store(0)
	c.bytesAccepted.Store(0)
	c.entriesIgnored.Store(0)
	c.dirsListed.Store(0)
	c.filesSelected.Store(0)
	c.bytesSelected.Store(0)
	c.startNanos.Store(time.Now().UnixNano())
}

// ResetCopy zeroes the copy counters and the throughput window.
func (c *Collector) ResetCopy() {
	c.filesCopied.Store(0)
	c.bytesCopied.Store(0)
	c.filesFailed.Store(0)
	c.filesVerified.Store(0)
	c.filesVerifyFailed.Store(0)
	c.startNanos.Store(time.Now().UnixNano())

	c.mu.Lock()
	defer c.mu.Unlock()
	c.throughput = [ringSize]int64{}
	c.filesPerSec = [ringSize]int64{}
	c.ringIdx, c.ringCount = 0, 0
	c.lastBytes, c.lastFiles = 0, 0
}

// SetSelection records selection totals (called after each reconcile).
func (c *Collector) SetSelection(files, bytes int64) {
	c.filesSelected.Store(files)
	c.bytesSelected.Store(bytes)
}

func (c *Collector) AddFilesAccepted(n int64)     { c.filesAccepted.Add(n) }
func (c *Collector) AddBytesAccepted(n int64)     { c.bytesAccepted.Add(n) }
func (c *Collector) AddEntriesIgnored(n int64)    { c.entriesIgnored.Add(n) }
func (c *Collector) AddDirsListed(n int64)        { c.dirsListed.Add(n) }
func (c *Collector) AddFilesCopied(n int64)       { c.filesCopied.Add(n) }
func (c *Collector) AddBytesCopied(n int64)       { c.bytesCopied.Add(n) }
func (c *Collector) AddFilesFailed(n int64)       { c.filesFailed.Add(n) }
func (c *Collector) AddFilesVerified(n int64)     { c.filesVerified.Add(n) }
func (c *Collector) AddFilesVerifyFailed(n int64) { c.filesVerifyFailed.Add(n) }

// Snapshot is a point-in-time read of all counters.
type Snapshot struct {
	FilesAccepted     int64
	BytesAccepted     int64
	EntriesIgnored    int64
	DirsListed        int64
	FilesSelected     int64
	BytesSelected     int64
	FilesCopied       int64
	BytesCopied       int64
	FilesFailed       int64
	FilesVerified     int64
	FilesVerifyFailed int64
	Elapsed           time.Duration
}

// Snapshot returns a point-in-time read of all counters. Individual fields
// are atomic; the set as a whole may straddle an update.
func (c *Collector) Snapshot() Snapshot {
	return Snapshot{
		FilesAccepted:     c.filesAccepted.Load(),
		BytesAccepted:     c.bytesAccepted.Load(),
		EntriesIgnored:    c.entriesIgnored.Load(),
		DirsListed:        c.dirsListed.Load(),
		FilesSelected:     c.filesSelected.Load(),
		BytesSelected:     c.bytesSelected.Load(),
		FilesCopied:       c.filesCopied.Load(),
		BytesCopied:       c.bytesCopied.Load(),
		FilesFailed:       c.filesFailed.Load(),
		FilesVerified:     c.filesVerified.Load(),
		FilesVerifyFailed: c.filesVerifyFailed.Load(),
		Elapsed:           c.Elapsed(),
	}
}

// Tick snapshots byte/file deltas into the ring buffer. Called 1/sec by the presenter.
func (c *Collector) Tick() {
	currentBytes := c.bytesCopied.Load()
	currentFiles := c.filesCopied.Load()

	c.mu.Lock()
	defer c.mu.Unlock()

	c.throughput[c.ringIdx] = currentBytes - c.lastBytes
	c.filesPerSec[c.ringIdx] = currentFiles - c.lastFiles
	c.lastBytes = currentBytes
	c.lastFiles = currentFiles

	c.ringIdx = (c.ringIdx + 1) % ringSize
	if c.ringCount < ringSize {
		c.ringCount++
	}
}

// RollingSpeed returns average bytes/sec over the last n seconds of samples.
func (c *Collector) RollingSpeed(seconds int) float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.rollingAvg(c.throughput[:], seconds)
}

// RollingFilesPerSec returns average files/sec over the last n seconds.
func (c *Collector) RollingFilesPerSec(seconds int) float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.rollingAvg(c.filesPerSec[:], seconds)
}

func (c *Collector) rollingAvg(buf []int64, n int) float64 {
	count := min(n, c.ringCount)
	if count <= 0 {
		return 0
	}
	var sum int64
	for i := range count {
		idx := (c.ringIdx - 1 - i + ringSize) % ringSize
		sum += buf[idx]
	}
	return float64(sum) / float64(count)
}

// ETA estimates remaining copy time from the rolling speed and the
// selected bytes not yet copied.
func (c *Collector) ETA() time.Duration {
	speed := c.RollingSpeed(10)
	if speed <= 0 {
		return 0
	}
	remaining := c.bytesSelected.Load() - c.bytesCopied.Load()
	if remaining <= 0 {
		return 0
	}
	return time.Duration(float64(remaining)/speed) * time.Second
}

// Elapsed returns time since the collector was created or last reset.
func (c *Collector) Elapsed() time.Duration {
	return time.Since(time.Unix(0, c.startNanos.Load()))
}

func (s Snapshot) String() string {
	return fmt.Sprintf(
		"files=%d bytes=%d ignored=%d selected=%d copied=%d failed=%d",
		s.FilesAccepted, s.BytesAccepted, s.EntriesIgnored,
		s.FilesSelected, s.FilesCopied, s.FilesFailed,
	)
}

// FormatBytes returns a human-readable byte count.
func FormatBytes(b int64) string {
	const unit = 1024
	if b < unit {
		return fmt.Sprintf("%d B", b)
	}
	div, exp := int64(unit), 0
	for n := b / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(b)/float64(div), "KMGTPE"[exp])
}
