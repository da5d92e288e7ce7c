package engine_test

import (
	"context"
	"encoding/hex"
	"errors"
	"os"
	"path"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/zeebo/blake3"

	"github.com/bamsammich/salvage/internal/engine"
	"github.com/bamsammich/salvage/internal/event"
	"github.com/bamsammich/salvage/internal/transport"
)

const rootInode = 2

// fakeReader is an in-memory transport.Reader. Handles are volume paths.
type fakeReader struct {
	root  transport.RawEntry
	total uint64

	dirs     map[string][]transport.RawEntry
	listErr  map[string]error
	statuses map[string]transport.CopyStatus
	data     map[string]string
	badHash  map[string]bool

	// Hooks run at the start of ListChildren / CopyFile.
	onList func(ref string)
	onCopy func(ref string)

	mu     sync.Mutex
	listed []string
	copied []string
}

var (
	_ transport.Reader = (*fakeReader)(nil)
	_ transport.Hasher = (*fakeReader)(nil)
)

func newFakeReader() *fakeReader {
	return &fakeReader{
		root: transport.RawEntry{
			Name:   "/",
			Inode:  rootInode,
			Handle: transport.Handle{Ref: "/", Inode: rootInode},
			IsDir:  true,
		},
		dirs:     map[string][]transport.RawEntry{"/": {}},
		listErr:  map[string]error{},
		statuses: map[string]transport.CopyStatus{},
		data:     map[string]string{},
		badHash:  map[string]bool{},
	}
}

// add appends a raw entry to the listing of parent and returns its ref.
func (f *fakeReader) add(parent string, e transport.RawEntry) string {
	ref := path.Join(parent, e.Name)
	e.Handle = transport.Handle{Ref: ref, Inode: e.Inode}
	f.dirs[parent] = append(f.dirs[parent], e)
	if e.IsDir {
		if _, ok := f.dirs[ref]; !ok {
			f.dirs[ref] = []transport.RawEntry{}
		}
	}
	return ref
}

func (f *fakeReader) dir(parent, name string, ino uint64) string {
	return f.add(parent, transport.RawEntry{Name: name, Inode: ino, IsDir: true})
}

func (f *fakeReader) file(parent, name string, ino uint64, content string) string {
	ref := f.add(parent, transport.RawEntry{Name: name, Inode: ino, Size: uint64(len(content))})
	f.data[ref] = content
	return ref
}

func (f *fakeReader) Root() transport.RawEntry { return f.root }
func (f *fakeReader) TotalSize() uint64        { return f.total }

func (f *fakeReader) ListChildren(_ context.Context, dir transport.Handle) ([]transport.RawEntry, error) {
	if f.onList != nil {
		f.onList(dir.Ref)
	}
	f.mu.Lock()
	f.listed = append(f.listed, dir.Ref)
	f.mu.Unlock()

	if err := f.listErr[dir.Ref]; err != nil {
		return nil, err
	}
	entries, ok := f.dirs[dir.Ref]
	if !ok {
		return nil, transport.ErrIO
	}
	return entries, nil
}

func (f *fakeReader) CopyFile(_ context.Context, h transport.Handle, dst string) transport.CopyStatus {
	if f.onCopy != nil {
		f.onCopy(h.Ref)
	}
	f.mu.Lock()
	f.copied = append(f.copied, h.Ref)
	f.mu.Unlock()

	if st, ok := f.statuses[h.Ref]; ok {
		return st
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return transport.CreateFailed
	}
	if err := os.WriteFile(dst, []byte(f.data[h.Ref]), 0o644); err != nil {
		return transport.CreateFailed
	}
	return transport.Copied
}

func (f *fakeReader) Hash(_ context.Context, h transport.Handle) (string, error) {
	content, ok := f.data[h.Ref]
	if !ok {
		return "", errors.New("no such file")
	}
	if f.badHash[h.Ref] {
		content += "corrupt"
	}
	sum := blake3.Sum256([]byte(content))
	return hex.EncodeToString(sum[:]), nil
}

func (f *fakeReader) copiedRefs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.copied...)
}

func (f *fakeReader) listedRefs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.listed...)
}

// photoVolume builds:
//
//	/readme.txt           (5 bytes)
//	/DCIM/                 inode 10
//	/DCIM/a.jpg           (3 bytes)
//	/DCIM/b.jpg           (4 bytes)
//	/DCIM/raw/             inode 20
//	/DCIM/raw/c.cr2       (6 bytes)
//	/Music/                inode 30
//	/Music/song.mp3       (8 bytes)
func photoVolume() *fakeReader {
	f := newFakeReader()
	f.file("/", "readme.txt", 3, "hello")
	dcim := f.dir("/", "DCIM", 10)
	f.file(dcim, "a.jpg", 11, "aaa")
	f.file(dcim, "b.jpg", 12, "bbbb")
	raw := f.dir(dcim, "raw", 20)
	f.file(raw, "c.cr2", 21, "cccccc")
	music := f.dir("/", "Music", 30)
	f.file(music, "song.mp3", 31, "mp3mp3mp")
	return f
}

func scanTree(t *testing.T, r transport.Reader) *engine.Tree {
	t.Helper()
	res := engine.Scan(context.Background(), r, engine.ScanConfig{})
	require.Equal(t, engine.ScanCompleted, res.Outcome)
	require.NoError(t, res.Err)
	return res.Tree
}

// findNode returns the node at a volume path such as "/DCIM/a.jpg".
func findNode(t *testing.T, tree *engine.Tree, p string) *engine.Node {
	t.Helper()
	var found *engine.Node
	var walk func(n *engine.Node, cur string)
	walk = func(n *engine.Node, cur string) {
		if cur == p {
			found = n
			return
		}
		for _, c := range n.Children {
			walk(c, path.Join(cur, c.Name))
		}
	}
	walk(tree.Root, "/")
	require.NotNil(t, found, "node %s not found", p)
	return found
}

// findView materializes the view down to p and returns its view node.
func findView(t *testing.T, v *engine.View, p string) *engine.ViewNode {
	t.Helper()
	var found *engine.ViewNode
	v.Walk(func(vn *engine.ViewNode) bool {
		if vn.Path() == p {
			found = vn
		}
		return found == nil
	})
	require.NotNil(t, found, "view node %s not found", p)
	return found
}

// collectEvents returns a buffered event channel and a function that closes
// it and returns everything received.
func collectEvents() (chan event.Event, func() []event.Event) {
	ch := make(chan event.Event, 1024)
	return ch, func() []event.Event {
		close(ch)
		var out []event.Event
		for e := range ch {
			out = append(out, e)
		}
		return out
	}
}
