package engine_test

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bamsammich/salvage/internal/engine"
	"github.com/bamsammich/salvage/internal/event"
	"github.com/bamsammich/salvage/internal/stats"
	"github.com/bamsammich/salvage/internal/transport"
)

func childNames(n *engine.Node) []string {
	out := make([]string, 0, len(n.Children))
	for _, c := range n.Children {
		out = append(out, c.Name)
	}
	return out
}

func TestScanBuildsTree(t *testing.T) {
	t.Parallel()
	r := photoVolume()
	collector := stats.NewCollector()
	events, drain := collectEvents()

	res := engine.Scan(context.Background(), r, engine.ScanConfig{Stats: collector, Events: events})
	require.Equal(t, engine.ScanCompleted, res.Outcome)
	require.NoError(t, res.Err)
	assert.False(t, res.DepthLimited)

	root := res.Tree.Root
	assert.Equal(t, "/", root.Name)
	assert.True(t, root.IsDir)
	assert.Equal(t, []string{"readme.txt", "DCIM", "Music"}, childNames(root))

	dcim := findNode(t, res.Tree, "/DCIM")
	assert.Equal(t, []string{"a.jpg", "b.jpg", "raw"}, childNames(dcim))
	assert.Equal(t, uint64(rootInode), dcim.ParentInode)

	a := findNode(t, res.Tree, "/DCIM/a.jpg")
	assert.Equal(t, uint64(10), a.ParentInode)
	assert.Equal(t, uint64(3), a.Size)
	assert.True(t, a.Selected)
	assert.Nil(t, a.Children)
	assert.Equal(t, transport.StatusUnset, a.Status)

	// Children is non-nil for every directory, empty or not.
	empty := newFakeReader()
	empty.dir("/", "empty", 5)
	emptyTree := scanTree(t, empty)
	assert.NotNil(t, findNode(t, emptyTree, "/empty").Children)

	assert.Equal(t, int64(5), res.Files)
	assert.Equal(t, int64(5+3+4+6+8), res.Bytes)
	assert.Zero(t, res.Ignored)

	snap := collector.Snapshot()
	assert.Equal(t, int64(5), snap.FilesAccepted)
	assert.Equal(t, res.Bytes, snap.BytesAccepted)
	assert.Equal(t, int64(4), snap.DirsListed)

	files, dirs := res.Tree.Count()
	assert.Equal(t, 5, files)
	assert.Equal(t, 3, dirs)

	got := drain()
	require.NotEmpty(t, got)
	assert.Equal(t, event.ScanStarted, got[0].Type)
	assert.Equal(t, event.ScanComplete, got[len(got)-1].Type)
	assert.Equal(t, int64(5), got[len(got)-1].Total)
}

func TestScanPreOrder(t *testing.T) {
	t.Parallel()
	r := photoVolume()
	scanTree(t, r)

	// A directory is fully listed before its next sibling.
	assert.Equal(t, []string{"/", "/DCIM", "/DCIM/raw", "/Music"}, r.listedRefs())
}

func TestScanRejectsInvalidEntries(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		entry transport.RawEntry
	}{
		{name: "zero inode file", entry: transport.RawEntry{Name: "f", Inode: 0, Size: 1}},
		{name: "empty name", entry: transport.RawEntry{Name: "", Inode: 40, Size: 1}},
		{name: "larger than volume", entry: transport.RawEntry{Name: "huge", Inode: 41, Size: 1 << 40}},
		{name: "reserved dir inode", entry: transport.RawEntry{Name: "d", Inode: 1, IsDir: true}},
		{name: "dot dir", entry: transport.RawEntry{Name: ".", Inode: 42, IsDir: true}},
		{name: "dotdot dir", entry: transport.RawEntry{Name: "..", Inode: 43, IsDir: true}},
		{name: "duplicate sibling inode", entry: transport.RawEntry{Name: "twin", Inode: 3, Size: 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			r := newFakeReader()
			r.total = 1 << 30
			r.file("/", "keep.txt", 3, "data")
			r.add("/", tt.entry)

			collector := stats.NewCollector()
			res := engine.Scan(context.Background(), r, engine.ScanConfig{Stats: collector})
			require.Equal(t, engine.ScanCompleted, res.Outcome)
			assert.Equal(t, []string{"keep.txt"}, childNames(res.Tree.Root))
			assert.Equal(t, int64(1), res.Ignored)
			assert.Equal(t, int64(1), res.Files)

			// The rejected entry adds nothing to the byte totals.
			assert.Equal(t, int64(4), res.Bytes)
			snap := collector.Snapshot()
			assert.Equal(t, int64(4), snap.BytesAccepted)
			assert.Equal(t, int64(1), snap.FilesAccepted)
			assert.Equal(t, int64(1), snap.EntriesIgnored)
		})
	}
}

func TestScanDuplicateInodeAcrossDirectoriesKept(t *testing.T) {
	t.Parallel()
	r := newFakeReader()
	a := r.dir("/", "a", 10)
	b := r.dir("/", "b", 11)
	r.file(a, "x", 50, "1")
	r.file(b, "x", 50, "1") // hard link in another directory

	res := engine.Scan(context.Background(), r, engine.ScanConfig{})
	assert.Equal(t, int64(2), res.Files)
	assert.Zero(t, res.Ignored)
}

func TestScanUnknownVolumeSizeIsUnbounded(t *testing.T) {
	t.Parallel()
	r := newFakeReader()
	r.add("/", transport.RawEntry{Name: "big", Inode: 9, Size: 1 << 50})

	res := engine.Scan(context.Background(), r, engine.ScanConfig{})
	assert.Equal(t, int64(1), res.Files)
	assert.Zero(t, res.Ignored)
}

func TestScanCycleSafety(t *testing.T) {
	t.Parallel()
	r := newFakeReader()
	a := r.dir("/", "a", 10)
	b := r.dir(a, "b", 11)
	r.file(b, "f", 12, "x")
	// b lists an entry that points back at a, and another at the root.
	r.add(b, transport.RawEntry{Name: "up", Inode: 10, IsDir: true})
	r.add(b, transport.RawEntry{Name: "top", Inode: rootInode, IsDir: true})
	// A directory listing itself.
	r.add(a, transport.RawEntry{Name: "self", Inode: 10, IsDir: true})

	res := engine.Scan(context.Background(), r, engine.ScanConfig{})
	require.Equal(t, engine.ScanCompleted, res.Outcome)
	assert.Equal(t, int64(3), res.Ignored)
	assert.Equal(t, []string{"f"}, childNames(findNode(t, res.Tree, "/a/b")))
	assert.Equal(t, []string{"b"}, childNames(findNode(t, res.Tree, "/a")))
}

func TestScanDepthLimit(t *testing.T) {
	t.Parallel()
	r := newFakeReader()
	parent := "/"
	for i := range 6 {
		parent = r.dir(parent, fmt.Sprintf("d%d", i+1), uint64(100+i))
	}
	r.file(parent, "deep.txt", 200, "deep")

	res := engine.Scan(context.Background(), r, engine.ScanConfig{MaxDepth: 3})
	require.Equal(t, engine.ScanCompleted, res.Outcome)
	require.NoError(t, res.Err)
	assert.True(t, res.DepthLimited)

	// d3 sits at depth 3: kept, empty, never listed.
	d3 := findNode(t, res.Tree, "/d1/d2/d3")
	assert.NotNil(t, d3.Children)
	assert.Empty(t, d3.Children)
	assert.NotContains(t, r.listedRefs(), "/d1/d2/d3")
	assert.Zero(t, res.Files)
}

func TestScanDefaultDepth(t *testing.T) {
	t.Parallel()
	r := newFakeReader()
	parent := "/"
	for i := range engine.DefaultMaxDepth + 5 {
		parent = r.dir(parent, "d", uint64(100+i))
	}

	res := engine.Scan(context.Background(), r, engine.ScanConfig{})
	require.Equal(t, engine.ScanCompleted, res.Outcome)
	assert.True(t, res.DepthLimited)

	depth := 0
	n := res.Tree.Root
	for len(n.Children) > 0 {
		n = n.Children[0]
		depth++
	}
	assert.Equal(t, engine.DefaultMaxDepth, depth)
}

func TestScanCancelledKeepsPartialTree(t *testing.T) {
	t.Parallel()
	r := photoVolume()
	var cancel atomic.Bool
	r.onList = func(ref string) {
		if ref == "/DCIM" {
			cancel.Store(true)
		}
	}
	collector := stats.NewCollector()

	res := engine.Scan(context.Background(), r, engine.ScanConfig{Stats: collector, Cancel: &cancel})
	assert.Equal(t, engine.ScanCancelled, res.Outcome)
	require.NoError(t, res.Err)
	assert.Equal(t, []string{"readme.txt", "DCIM"}, childNames(res.Tree.Root))
	assert.Empty(t, findNode(t, res.Tree, "/DCIM").Children)
	assert.Equal(t, int64(1), collector.Snapshot().FilesAccepted)

	// A fresh scan starts from zeroed counters.
	r.onList = nil
	res = engine.Scan(context.Background(), r, engine.ScanConfig{Stats: collector})
	require.Equal(t, engine.ScanCompleted, res.Outcome)
	assert.Equal(t, int64(5), collector.Snapshot().FilesAccepted)
}

func TestScanContextCancelled(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res := engine.Scan(ctx, photoVolume(), engine.ScanConfig{})
	assert.Equal(t, engine.ScanCancelled, res.Outcome)
	require.NotNil(t, res.Tree)
	assert.Empty(t, res.Tree.Root.Children)
}

func TestScanReaderErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		err     error
		want    engine.ScanOutcome
		wantErr error
	}{
		{name: "unsupported", err: transport.ErrUnsupported, want: engine.ScanUnsupported, wantErr: transport.ErrUnsupported},
		{name: "io", err: fmt.Errorf("sector 9: %w", transport.ErrIO), want: engine.ScanIOError, wantErr: transport.ErrIO},
		{name: "unclassified", err: errors.New("boom"), want: engine.ScanIOError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			r := photoVolume()
			r.listErr["/DCIM/raw"] = tt.err

			res := engine.Scan(context.Background(), r, engine.ScanConfig{})
			assert.Equal(t, tt.want, res.Outcome)
			require.Error(t, res.Err)
			if tt.wantErr != nil {
				require.ErrorIs(t, res.Err, tt.wantErr)
			}

			// Everything before the failing directory is kept; later
			// siblings are never visited.
			assert.Equal(t, []string{"readme.txt", "DCIM"}, childNames(res.Tree.Root))
			assert.Equal(t, []string{"a.jpg", "b.jpg", "raw"}, childNames(findNode(t, res.Tree, "/DCIM")))
			assert.NotContains(t, r.listedRefs(), "/Music")
		})
	}
}

func TestScanOutcomeString(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "completed", engine.ScanCompleted.String())
	assert.Equal(t, "cancelled", engine.ScanCancelled.String())
	assert.Equal(t, "unsupported", engine.ScanUnsupported.String())
	assert.Equal(t, "io-error", engine.ScanIOError.String())
	assert.Equal(t, "unknown", engine.ScanOutcome(99).String())
}
