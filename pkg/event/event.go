// Package event defines the common event vocabulary that every pathwatch
// emitter translates its platform-specific notifications into.
package event

import (
	"fmt"
	"path/filepath"
)

// Kind identifies the category of filesystem mutation an Event represents.
type Kind uint8

const (
	// Created indicates that a path came into existence.
	Created Kind = iota
	// Deleted indicates that a path ceased to exist.
	Deleted
	// Modified indicates that a path's content or metadata changed.
	Modified
	// Moved indicates that a path was renamed or relocated; DestPath carries
	// the new location.
	Moved
	// Opened indicates that a path was opened for access.
	Opened
	// Closed indicates that a path opened for writing was closed.
	Closed
	// ClosedNoWrite indicates that a path opened read-only was closed.
	ClosedNoWrite
)

// String renders the kind using the same vocabulary as the platform-neutral
// event names (e.g. "created", "moved").
func (k Kind) String() string {
	switch k {
	case Created:
		return "created"
	case Deleted:
		return "deleted"
	case Modified:
		return "modified"
	case Moved:
		return "moved"
	case Opened:
		return "opened"
	case Closed:
		return "closed"
	case ClosedNoWrite:
		return "closed_no_write"
	default:
		return "unknown"
	}
}

// Event is an immutable, value-typed filesystem mutation notification.
//
// Equality (and therefore hashing, via Key) covers every field, including
// IsDirectory and DestPath, so that e.g. a directory-modified event and a
// file-modified event for the same path never compare equal.
type Event struct {
	// Kind is the category of mutation.
	Kind Kind
	// SrcPath is the path the event concerns. For Moved events this is the
	// path before the move.
	SrcPath string
	// DestPath is the path after a move. It is the empty string for every
	// kind except Moved.
	DestPath string
	// IsDirectory indicates whether SrcPath refers to a directory.
	IsDirectory bool
	// IsSynthetic indicates that the emitter generated this event itself
	// (e.g. a per-descendant Moved event following a recursive directory
	// rename) rather than translating it directly from an OS notification.
	IsSynthetic bool
}

// New constructs a non-move event.
func New(kind Kind, path string, isDirectory bool) Event {
	return Event{Kind: kind, SrcPath: path, IsDirectory: isDirectory}
}

// NewMoved constructs a Moved event from src to dest.
func NewMoved(src, dest string, isDirectory bool) Event {
	return Event{Kind: Moved, SrcPath: src, DestPath: dest, IsDirectory: isDirectory}
}

// Synthetic returns a copy of the event with IsSynthetic set to true.
func (e Event) Synthetic() Event {
	e.IsSynthetic = true
	return e
}

// Key returns a comparable value suitable for using Event as a map key or for
// equality comparisons that must consider every field. Event already
// satisfies Go's comparable-struct equality (all fields are comparable), so
// Key exists mainly for callers that want to be explicit that they're relying
// on full-field equality (e.g. the deduping bus).
func (e Event) Key() Event {
	return e
}

// String renders the event for logging and debugging.
func (e Event) String() string {
	what := "file"
	if e.IsDirectory {
		what = "dir"
	}
	if e.Kind == Moved {
		return fmt.Sprintf("%s %s: %s -> %s", what, e.Kind, e.SrcPath, e.DestPath)
	}
	suffix := ""
	if e.IsSynthetic {
		suffix = " (synthetic)"
	}
	return fmt.Sprintf("%s %s: %s%s", what, e.Kind, e.SrcPath, suffix)
}

// SyntheticMovesForRename walks newDir (which must already reflect the
// post-rename tree) and returns one synthetic Moved event per descendant of
// oldDir/newDir, mapping each descendant's path under oldDir to its
// corresponding path under newDir. walk is expected to yield, for each
// descendant, its path relative to newDir and whether it is a directory; the
// caller supplies it so that this package has no direct filesystem
// dependency.
func SyntheticMovesForRename(oldDir, newDir string, walk func(yield func(relPath string, isDirectory bool) bool)) []Event {
	var events []Event
	walk(func(relPath string, isDirectory bool) bool {
		events = append(events, NewMoved(
			joinRel(oldDir, relPath),
			joinRel(newDir, relPath),
			isDirectory,
		).Synthetic())
		return true
	})
	return events
}

// SyntheticCreatesForTree walks a newly created directory and returns one
// synthetic Created event per descendant, using the same walk convention as
// SyntheticMovesForRename.
func SyntheticCreatesForTree(root string, walk func(yield func(relPath string, isDirectory bool) bool)) []Event {
	var events []Event
	walk(func(relPath string, isDirectory bool) bool {
		events = append(events, New(Created, joinRel(root, relPath), isDirectory).Synthetic())
		return true
	})
	return events
}

// joinRel joins a base path with a relative path using OS-native path
// joining rules.
func joinRel(base, relPath string) string {
	if relPath == "" {
		return base
	}
	return filepath.Join(base, relPath)
}
