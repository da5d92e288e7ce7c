package filter

import (
	"fmt"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// pattern is an rsync-style glob. Matching uses doublestar semantics:
// "*" and "?" stop at "/", "**" spans directories.
type pattern struct {
	glob     string
	original string
	dirOnly  bool // pattern ends with /
}

// compilePattern validates an rsync-style pattern.
//
// A trailing "/" restricts the pattern to directories. A leading "/" or any
// inner "/" anchors it to the volume root; otherwise it matches the base
// name at any depth.
func compilePattern(raw string) (*pattern, error) {
	p := &pattern{original: raw}
	glob := raw

	if strings.HasSuffix(glob, "/") {
		p.dirOnly = true
		glob = strings.TrimSuffix(glob, "/")
	}

	switch {
	case strings.HasPrefix(glob, "/"):
		glob = strings.TrimPrefix(glob, "/")
	case strings.Contains(glob, "/"):
	default:
		glob = "**/" + glob
	}

	if glob == "" || glob == "**/" {
		return nil, fmt.Errorf("empty pattern %q", raw)
	}
	if !doublestar.ValidatePattern(glob) {
		return nil, fmt.Errorf("invalid pattern %q", raw)
	}
	p.glob = glob
	return p, nil
}

// match tests a slash-separated path relative to the volume root.
func (p *pattern) match(relPath string, isDir bool) bool {
	if p.dirOnly && !isDir {
		return false
	}
	ok, err := doublestar.Match(p.glob, relPath)
	return err == nil && ok
}

func (p *pattern) String() string { return p.original }
