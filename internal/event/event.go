package event

import (
	"time"

	"github.com/bamsammich/salvage/internal/transport"
)

// Type identifies the kind of event.
type Type int

const (
	ScanStarted Type = iota + 1
	DirListed
	EntryIgnored
	ScanComplete
	CopyStarted
	FileCopied
	FileFailed
	VerifyOK
	VerifyFailed
	CopyComplete
)

var typeNames = [...]string{
	ScanStarted:  "ScanStarted",
	DirListed:    "DirListed",
	EntryIgnored: "EntryIgnored",
	ScanComplete: "ScanComplete",
	CopyStarted:  "CopyStarted",
	FileCopied:   "FileCopied",
	FileFailed:   "FileFailed",
	VerifyOK:     "VerifyOK",
	VerifyFailed: "VerifyFailed",
	CopyComplete: "CopyComplete",
}

func (t Type) String() string {
	if t > 0 && int(t) < len(typeNames) {
		return typeNames[t]
	}
	return "Unknown"
}

// Event is a single progress message from a scan or copy run.
type Event struct {
	Type      Type
	Timestamp time.Time
	Path      string // volume-absolute path
	Size      int64  // file size
	Total     int64  // file count (ScanComplete, CopyStarted)
	TotalSize int64  // byte count (ScanComplete, CopyStarted)
	Status    transport.CopyStatus
	Error     error
}

// Emit sends e on ch without blocking. A nil channel or a full buffer drops
// the event; counters in stats.Collector remain the source of truth.
func Emit(ch chan<- Event, e Event) {
	if ch == nil {
		return
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}
	select {
	case ch <- e:
	default:
	}
}
