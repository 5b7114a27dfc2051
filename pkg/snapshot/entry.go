package snapshot

import "time"

// Entry is a single path's recorded state within a Snapshot: its stable
// identity, mode bits, and the timestamps needed to classify a diff.
type Entry struct {
	// Identity is the entry's stable file identity.
	Identity Identity
	// IsDir is the mode bit the diff algorithm splits buckets on.
	IsDir bool
	// ModTime is the last-modification time used to detect "modified".
	ModTime time.Time
	// ChangeTime is the last-status-change time (ctime), recorded via
	// extstat where the platform makes it available. It is informational —
	// Diff keys off ModTime, not ChangeTime — but callers (e.g. a logging
	// handler) may want the richer timestamp.
	ChangeTime time.Time
}
