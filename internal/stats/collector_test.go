package stats

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollectorConcurrent(t *testing.T) {
	c := NewCollector()
	const goroutines = 100
	const opsPerGoroutine = 1000

	var wg sync.WaitGroup
	wg.Add(goroutines)
	for range goroutines {
		go func() {
			defer wg.Done()
			for range opsPerGoroutine {
				c.AddFilesAccepted(1)
				c.AddBytesAccepted(512)
				c.AddEntriesIgnored(1)
				c.AddFilesCopied(1)
				c.AddBytesCopied(256)
				c.AddFilesFailed(1)
			}
		}()
	}
	wg.Wait()

	s := c.Snapshot()
	expected := int64(goroutines * opsPerGoroutine)
	assert.Equal(t, expected, s.FilesAccepted)
	assert.Equal(t, expected*512, s.BytesAccepted)
	assert.Equal(t, expected, s.EntriesIgnored)
	assert.Equal(t, expected, s.FilesCopied)
	assert.Equal(t, expected*256, s.BytesCopied)
	assert.Equal(t, expected, s.FilesFailed)
}

func TestResetScan(t *testing.T) {
	c := NewCollector()
	c.AddFilesAccepted(3)
	c.AddBytesAccepted(300)
	c.AddEntriesIgnored(2)
	c.AddDirsListed(4)
	c.SetSelection(3, 300)
	c.AddFilesCopied(1)

	c.ResetScan()
	s := c.Snapshot()
	assert.Zero(t, s.FilesAccepted)
	assert.Zero(t, s.BytesAccepted)
	assert.Zero(t, s.EntriesIgnored)
	assert.Zero(t, s.DirsListed)
	assert.Zero(t, s.FilesSelected)
	assert.Zero(t, s.BytesSelected)
	// Copy counters are left alone.
	assert.Equal(t, int64(1), s.FilesCopied)
}

func TestResetCopy(t *testing.T) {
	c := NewCollector()
	c.SetSelection(2, 200)
	c.AddFilesCopied(1)
	c.AddBytesCopied(100)
	c.AddFilesVerified(1)
	c.AddFilesVerifyFailed(1)
	c.AddFilesFailed(1)
	c.Tick()

	c.ResetCopy()
	s := c.Snapshot()
	assert.Zero(t, s.FilesCopied)
	assert.Zero(t, s.BytesCopied)
	assert.Zero(t, s.FilesFailed)
	assert.Zero(t, s.FilesVerified)
	assert.Zero(t, s.FilesVerifyFailed)
	assert.Equal(t, int64(2), s.FilesSelected)
	assert.Equal(t, 0.0, c.RollingSpeed(5))
}

func TestSnapshotString(t *testing.T) {
	s := Snapshot{
		FilesAccepted:  10,
		BytesAccepted:  4096,
		EntriesIgnored: 2,
		FilesSelected:  8,
		FilesCopied:    7,
		FilesFailed:    1,
	}
	assert.Equal(t, "files=10 bytes=4096 ignored=2 selected=8 copied=7 failed=1", s.String())
}

func TestFormatBytes(t *testing.T) {
	tests := []struct {
		input    int64
		expected string
	}{
		{0, "0 B"},
		{512, "512 B"},
		{1024, "1.0 KiB"},
		{1536, "1.5 KiB"},
		{1048576, "1.0 MiB"},
		{1073741824, "1.0 GiB"},
	}
	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			require.Equal(t, tt.expected, FormatBytes(tt.input))
		})
	}
}

func TestTickAndRollingSpeed(t *testing.T) {
	c := NewCollector()

	for range 5 {
		c.AddBytesCopied(1000)
		c.AddFilesCopied(10)
		c.Tick()
	}

	assert.InDelta(t, 1000.0, c.RollingSpeed(5), 0.01)
	assert.InDelta(t, 10.0, c.RollingFilesPerSec(5), 0.01)
}

func TestRollingSpeedPartialWindow(t *testing.T) {
	c := NewCollector()

	c.AddBytesCopied(500)
	c.Tick()
	c.AddBytesCopied(500)
	c.Tick()

	// Ask for 10 but only have 2.
	assert.InDelta(t, 500.0, c.RollingSpeed(10), 0.01)
}

func TestRingWraparound(t *testing.T) {
	c := NewCollector()
	for range ringSize + 10 {
		c.AddBytesCopied(100)
		c.Tick()
	}
	assert.InDelta(t, 100.0, c.RollingSpeed(ringSize), 0.01)
}

func TestETA(t *testing.T) {
	c := NewCollector()
	c.SetSelection(100, 10000)

	for range 5 {
		c.AddBytesCopied(1000)
		c.Tick()
	}

	assert.InDelta(t, 5.0, c.ETA().Seconds(), 1.0)
}

func TestETANoSpeed(t *testing.T) {
	c := NewCollector()
	c.SetSelection(100, 10000)
	assert.Equal(t, time.Duration(0), c.ETA())
}

func TestSnapshotIncludesElapsed(t *testing.T) {
	c := NewCollector()
	time.Sleep(10 * time.Millisecond)
	assert.Greater(t, c.Snapshot().Elapsed, time.Duration(0))
}
