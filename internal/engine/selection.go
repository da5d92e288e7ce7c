package engine

// SelectionTotals counts the files a copy would attempt.
type SelectionTotals struct {
	Files int64
	Bytes int64
}

// Reconcile copies the check state of view into the tree's Selected flags
// and returns the resulting totals. A nil view leaves the flags untouched.
//
// Only materialized parts of the view are merged. Within a directory the
// merge stops at the first tree child whose view counterpart is missing or
// named differently; later siblings keep their previous flags. Running it
// twice with the same view gives the same flags and totals.
func Reconcile(tree *Tree, view *View) SelectionTotals {
	if view != nil && view.root.Key() == tree.Root.Key() {
		tree.Root.Selected = view.root.Checked
		mergeView(tree.Root, view.root)
	}
	return Totals(tree)
}

func mergeView(dir *Node, vdir *ViewNode) {
	if vdir.State != Expanded {
		return
	}
	byKey := make(map[NodeKey]*ViewNode, len(vdir.Children))
	for _, vc := range vdir.Children {
		byKey[vc.Key()] = vc
	}
	for _, c := range dir.Children {
		vc, ok := byKey[c.Key()]
		if !ok || vc.Name != c.Name {
			return
		}
		c.Selected = vc.Checked
		if c.IsDir {
			mergeView(c, vc)
		}
	}
}

// Totals counts files that are selected and have every ancestor directory
// selected. Directory sizes never count.
func Totals(tree *Tree) SelectionTotals {
	var t SelectionTotals
	if tree == nil || tree.Root == nil {
		return t
	}
	tree.Root.Walk(func(n *Node, _ int) bool {
		if !n.Selected {
			return false
		}
		if !n.IsDir {
			t.Files++
			t.Bytes += int64(n.Size) //nolint:gosec // G115: bounded by volume size
		}
		return true
	})
	return t
}

// hasSelectedFile reports whether dir holds at least one effectively
// selected file, memoizing per directory.
func hasSelectedFile(dir *Node, memo map[*Node]bool) bool {
	if v, ok := memo[dir]; ok {
		return v
	}
	found := false
	for _, c := range dir.Children {
		if !c.Selected {
			continue
		}
		if !c.IsDir || hasSelectedFile(c, memo) {
			found = true
			break
		}
	}
	memo[dir] = found
	return found
}
