package engine

import (
	"time"

	"github.com/bamsammich/salvage/internal/stats"
	"github.com/bamsammich/salvage/internal/transport"
)

// NodeKey identifies a node among its siblings.
type NodeKey struct {
	Inode       uint64
	ParentInode uint64
}

// Node is one filesystem entry in a scanned tree. Nodes own their children;
// there are no parent pointers.
type Node struct {
	ModTime  time.Time
	Handle   transport.Handle
	Name     string
	FullPath string // set at copy time, e.g. "/DCIM/100CANON/IMG_0001.JPG"
	Children []*Node

	Inode       uint64
	ParentInode uint64
	Size        uint64
	Status      transport.CopyStatus

	IsDir    bool
	Selected bool
}

// NewFileNode builds a selected file node from a reader entry.
func NewFileNode(e transport.RawEntry, parentInode uint64) *Node {
	return &Node{
		Name:        e.Name,
		Handle:      e.Handle,
		ModTime:     e.ModTime,
		Inode:       e.Inode,
		ParentInode: parentInode,
		Size:        e.Size,
		Selected:    true,
	}
}

// NewDirNode builds a selected directory node with an empty, non-nil child list.
func NewDirNode(e transport.RawEntry, parentInode uint64) *Node {
	return &Node{
		Name:        e.Name,
		Handle:      e.Handle,
		ModTime:     e.ModTime,
		Inode:       e.Inode,
		ParentInode: parentInode,
		Children:    []*Node{},
		IsDir:       true,
		Selected:    true,
	}
}

func (n *Node) Key() NodeKey {
	return NodeKey{Inode: n.Inode, ParentInode: n.ParentInode}
}

// Child returns the direct child matching key and name exactly, or nil.
func (n *Node) Child(key NodeKey, name string) *Node {
	for _, c := range n.Children {
		if c.Key() == key && c.Name == name {
			return c
		}
	}
	return nil
}

// Walk visits n and its descendants in pre-order. Returning false from fn
// skips the children of the visited node.
func (n *Node) Walk(fn func(n *Node, depth int) bool) {
	n.walk(fn, 0)
}

func (n *Node) walk(fn func(*Node, int) bool, depth int) {
	if !fn(n, depth) {
		return
	}
	for _, c := range n.Children {
		c.walk(fn, depth+1)
	}
}

// DateString formats the modification time for display.
func (n *Node) DateString() string {
	if n.ModTime.IsZero() {
		return ""
	}
	return n.ModTime.Local().Format("2006-01-02 15:04")
}

// SizeString formats the size for display. Directories have no size.
func (n *Node) SizeString() string {
	if n.IsDir {
		return ""
	}
	return stats.FormatBytes(int64(n.Size)) //nolint:gosec // G115: display only
}

// Tree is the result of one scan.
type Tree struct {
	Root      *Node
	TotalSize uint64 // volume size used to bound entry sizes; 0 if unknown
}

// Count returns the number of files and directories in the tree, excluding
// the root.
func (t *Tree) Count() (files, dirs int) {
	if t == nil || t.Root == nil {
		return 0, 0
	}
	t.Root.Walk(func(n *Node, depth int) bool {
		switch {
		case depth == 0:
		case n.IsDir:
			dirs++
		default:
			files++
		}
		return true
	})
	return files, dirs
}
