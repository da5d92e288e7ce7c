package engine

import (
	"strings"
	"time"
)

// ExpandState records whether a view directory's children are materialized.
type ExpandState int

const (
	Partial ExpandState = iota
	Expanded
)

// ViewNode mirrors one tree node for an interactive selection editor. The
// parent pointer exists only inside the view and is never stored on Nodes.
type ViewNode struct {
	ModTime     time.Time
	parent      *ViewNode
	Name        string
	Children    []*ViewNode
	Inode       uint64
	ParentInode uint64
	Size        uint64
	State       ExpandState
	IsDir       bool
	Checked     bool
}

func (vn *ViewNode) Key() NodeKey {
	return NodeKey{Inode: vn.Inode, ParentInode: vn.ParentInode}
}

// Parent returns the containing view node, or nil for the root.
func (vn *ViewNode) Parent() *ViewNode { return vn.parent }

// Path returns the volume-absolute path of vn, e.g. "/DCIM/IMG_0001.JPG".
func (vn *ViewNode) Path() string {
	if vn.parent == nil {
		return "/"
	}
	var segs []string
	for n := vn; n.parent != nil; n = n.parent {
		segs = append(segs, n.Name)
	}
	var b strings.Builder
	for i := len(segs) - 1; i >= 0; i-- {
		b.WriteByte('/')
		b.WriteString(segs[i])
	}
	return b.String()
}

// Matcher decides whether an entry stays selected. relPath has no leading
// slash. *filter.Chain satisfies it.
type Matcher interface {
	Match(relPath string, isDir bool, size int64) bool
}

// View is a lazily materialized selection view over a Tree.
type View struct {
	tree *Tree
	root *ViewNode
}

// NewView creates a view whose root mirrors the tree root. Nothing below the
// root is materialized until ChildrenOf is called.
func NewView(tree *Tree) *View {
	r := tree.Root
	return &View{
		tree: tree,
		root: &ViewNode{
			Name:        r.Name,
			Inode:       r.Inode,
			ParentInode: r.ParentInode,
			IsDir:       true,
			ModTime:     r.ModTime,
			Checked:     r.Selected,
			State:       Partial,
		},
	}
}

func (v *View) Root() *ViewNode { return v.root }

// ChildrenOf returns the children of vn, materializing them from the tree
// on first access. New children start with the stored Selected flag of
// their node. It returns nil for files and for view nodes that no longer
// match the tree.
func (v *View) ChildrenOf(vn *ViewNode) []*ViewNode {
	if !vn.IsDir {
		return nil
	}
	if vn.State == Expanded {
		return vn.Children
	}

	node := v.locate(vn)
	if node == nil {
		return nil
	}

	children := make([]*ViewNode, 0, len(node.Children))
	for _, c := range node.Children {
		children = append(children, &ViewNode{
			parent:      vn,
			Name:        c.Name,
			Inode:       c.Inode,
			ParentInode: c.ParentInode,
			IsDir:       c.IsDir,
			Size:        c.Size,
			ModTime:     c.ModTime,
			Checked:     c.Selected,
			State:       Partial,
		})
	}
	vn.Children = children
	vn.State = Expanded
	return children
}

// locate finds the tree node behind vn by descending from the root with
// exact key and name matches at every level.
func (v *View) locate(vn *ViewNode) *Node {
	var chain []*ViewNode
	for n := vn; n.parent != nil; n = n.parent {
		chain = append(chain, n)
	}

	node := v.tree.Root
	for i := len(chain) - 1; i >= 0; i-- {
		node = node.Child(chain[i].Key(), chain[i].Name)
		if node == nil {
			return nil
		}
	}
	return node
}

// SetChecked changes the check state of vn. Checking also checks every
// ancestor. Unchecking leaves descendants alone: an unchecked directory
// already excludes its subtree from the totals.
func (v *View) SetChecked(vn *ViewNode, checked bool) {
	vn.Checked = checked
	if !checked {
		return
	}
	for p := vn.parent; p != nil; p = p.parent {
		p.Checked = true
	}
}

// ExpandAll materializes the whole view.
func (v *View) ExpandAll() {
	v.Walk(func(*ViewNode) bool { return true })
}

// Walk visits view nodes in pre-order, materializing directories as it
// descends. Returning false skips the children of the visited node.
func (v *View) Walk(fn func(vn *ViewNode) bool) {
	var visit func(*ViewNode)
	visit = func(vn *ViewNode) {
		if !fn(vn) {
			return
		}
		for _, c := range v.ChildrenOf(vn) {
			visit(c)
		}
	}
	visit(v.root)
}

// ApplyFilter expands the view and unchecks every entry m rejects, returning
// the number of entries unchecked. It never re-checks anything and does not
// descend into rejected directories.
func (v *View) ApplyFilter(m Matcher) int {
	unchecked := 0
	v.Walk(func(vn *ViewNode) bool {
		if vn.parent == nil {
			return true
		}
		rel := strings.TrimPrefix(vn.Path(), "/")
		if !m.Match(rel, vn.IsDir, int64(vn.Size)) { //nolint:gosec // G115: sizes bounded by volume
			if vn.Checked {
				unchecked++
			}
			v.SetChecked(vn, false)
			return false
		}
		return true
	})
	return unchecked
}
