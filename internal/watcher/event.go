package watcher

import (
	"time"

	"github.com/fsnotify/fsnotify"
)

// Operation is a file system operation.
type Operation int

const (
	OpCreate Operation = iota
	OpModify
	OpDelete
	OpRename
)

func (op Operation) String() string {
	switch op {
	case OpCreate:
		return "CREATE"
	case OpModify:
		return "MODIFY"
	case OpDelete:
		return "DELETE"
	case OpRename:
		return "RENAME"
	default:
		return "UNKNOWN"
	}
}

// FileEvent is one change to a path in the inbox.
type FileEvent struct {
	Path      string
	Operation Operation
	Timestamp time.Time
}

// fromFsnotify maps an fsnotify event. Chmod-only events are dropped.
func fromFsnotify(ev fsnotify.Event) (FileEvent, bool) {
	out := FileEvent{Path: ev.Name, Timestamp: time.Now()}
	switch {
	case ev.Has(fsnotify.Create):
		out.Operation = OpCreate
	case ev.Has(fsnotify.Write):
		out.Operation = OpModify
	case ev.Has(fsnotify.Remove):
		out.Operation = OpDelete
	case ev.Has(fsnotify.Rename):
		out.Operation = OpRename
	default:
		return FileEvent{}, false
	}
	return out, true
}
