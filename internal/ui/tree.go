package ui

import (
	"fmt"
	"io"
	"strings"

	"github.com/bamsammich/salvage/internal/engine"
)

// RenderTree writes an indented listing of the tree below root with sizes
// and modification dates. maxDepth <= 0 prints everything.
func RenderTree(w io.Writer, root *engine.Node, maxDepth int) {
	root.Walk(func(n *engine.Node, depth int) bool {
		if depth == 0 {
			fmt.Fprintln(w, styleMuted.Render(n.Name))
			return true
		}
		name := n.Name
		if n.IsDir {
			name += "/"
		}
		indent := strings.Repeat("  ", depth-1)
		fmt.Fprintf(w, "%s%-*s  %10s  %s\n",
			indent, max(40-len(indent), 1), name, n.SizeString(), styleMuted.Render(n.DateString()))
		return maxDepth <= 0 || depth < maxDepth
	})
}
