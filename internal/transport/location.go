package transport

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Location is a parsed SOURCE argument.
type Location struct {
	Host string
	User string
	Path string
}

// IsRemote reports whether the volume lives on another host.
func (l Location) IsRemote() bool {
	return l.Host != ""
}

func (l Location) String() string {
	switch {
	case !l.IsRemote():
		return l.Path
	case l.User != "":
		return fmt.Sprintf("%s@%s:%s", l.User, l.Host, l.Path)
	default:
		return fmt.Sprintf("%s:%s", l.Host, l.Path)
	}
}

// ParseLocation parses a CLI argument into a Location.
//
// Supported formats:
//   - /absolute/path, relative/path  → local
//   - host:path                      → SFTP (current user)
//   - user@host:path                 → SFTP
//
// A path containing ":" is only remote when the part before the colon has no
// path separators, so "/mnt/a:b" and "./host:path" stay local.
func ParseLocation(arg string) Location {
	if filepath.IsAbs(arg) || strings.HasPrefix(arg, "./") || strings.HasPrefix(arg, "../") {
		return Location{Path: arg}
	}

	hostPart, pathPart, found := strings.Cut(arg, ":")
	if !found || hostPart == "" || strings.ContainsRune(hostPart, '/') ||
		strings.ContainsRune(hostPart, filepath.Separator) {
		return Location{Path: arg}
	}

	var userName, host string
	if at := strings.LastIndexByte(hostPart, '@'); at >= 0 {
		userName, host = hostPart[:at], hostPart[at+1:]
	} else {
		host = hostPart
	}
	if host == "" {
		return Location{Path: arg}
	}

	if pathPart == "" {
		pathPart = "."
	}
	return Location{Host: host, User: userName, Path: pathPart}
}
