package transport

// CopyStatus is the result of one file copy attempt.
type CopyStatus int

const (
	StatusUnset CopyStatus = iota
	Copied
	StatFailed
	OpenFailed
	ReadFailed
	CreateFailed
	NoSpace
	CloseFailed
	NoMemory
	Unknown
)

var statusNames = [...]string{
	StatusUnset:  "Unset",
	Copied:       "Copied",
	StatFailed:   "StatFailed",
	OpenFailed:   "OpenFailed",
	ReadFailed:   "ReadFailed",
	CreateFailed: "CreateFailed",
	NoSpace:      "NoSpace",
	CloseFailed:  "CloseFailed",
	NoMemory:     "NoMemory",
	Unknown:      "Unknown",
}

var statusDescriptions = [...]string{
	StatusUnset:  "",
	Copied:       "Restored",
	StatFailed:   "File stat failed",
	OpenFailed:   "File open failed",
	ReadFailed:   "File read failed",
	CreateFailed: "File create failed",
	NoSpace:      "Restore failed: No space available",
	CloseFailed:  "Restore failed: Close failed",
	NoMemory:     "Restore failed: No memory available",
	Unknown:      "Something went wrong",
}

func (s CopyStatus) String() string {
	if s >= 0 && int(s) < len(statusNames) {
		return statusNames[s]
	}
	return "Unknown"
}

// Description returns the user-facing text for the status.
func (s CopyStatus) Description() string {
	if s >= 0 && int(s) < len(statusDescriptions) {
		return statusDescriptions[s]
	}
	return statusDescriptions[Unknown]
}

// OK reports whether the copy succeeded.
func (s CopyStatus) OK() bool { return s == Copied }
