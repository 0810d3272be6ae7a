package watcher

import "time"

// EventKind classifies a file change.
type EventKind int

const (
	KindCreated EventKind = iota
	KindModified
	KindDeleted
	KindMoved
)

// String returns the kind's name for logging.
func (k EventKind) String() string {
	switch k {
	case KindCreated:
		return "created"
	case KindModified:
		return "modified"
	case KindDeleted:
		return "deleted"
	case KindMoved:
		return "moved"
	default:
		return "unknown"
	}
}

// Event is one normalized file change. For KindMoved, PrevPath holds the
// path the file moved away from; the destination surfaces as an independent
// KindCreated event.
type Event struct {
	Kind     EventKind
	Path     string // absolute
	RelPath  string // relative to the watched root, forward slashes
	PrevPath string // set for KindMoved
	Time     time.Time
	IsDir    bool
	Size     int64 // best effort; zero when the file is already gone
}
