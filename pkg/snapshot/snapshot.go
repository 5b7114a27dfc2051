// Package snapshot implements directory-tree snapshotting and diffing: the
// mechanism a polling-based emitter (and the initial pass of any emitter)
// uses to turn two points-in-time of a directory tree into a set of events.
//
// Grounded in the Python original's src/watchdog/utils/dirsnapshot.py
// (DirectorySnapshot.scan / _walk / walk and DirectorySnapshotDiff.init),
// rewritten around Go's os.ReadDir and a stable (device, inode) Identity
// instead of Python's os.stat tuples.
package snapshot

import (
	"os"
	"path/filepath"
	"sort"

	"github.com/pkg/errors"
)

// ScanOptions configures Scan.
type ScanOptions struct {
	// Recursive controls whether subdirectories are descended into. A
	// non-recursive scan records only the immediate children of root.
	Recursive bool
	// FollowSymlinks controls whether a symbolic link is stat'd through to
	// its target (and, for a directory target, descended into) rather than
	// recorded as the link itself.
	FollowSymlinks bool
	// IgnoreDevice zeroes every recorded Identity.Device, so that entries
	// remain comparable across a remount that reassigns device ids but
	// leaves inodes stable. Mutually reasonable default is false: a
	// snapshot normally records a mount point but does not descend past it
	// onto another device (see walk) rather than conflate ids from two
	// different devices.
	IgnoreDevice bool
}

// Snapshot is a point-in-time record of a directory tree, indexed both by
// path and by stable Identity so that Diff can detect moves.
type Snapshot struct {
	root    string
	byPath  map[string]Entry
	byIdent map[Identity]string
	// errors accumulates paths that could not be stat'd during the scan
	// (e.g. raced out from under us, or permission denied on a subtree).
	// Scan does not fail outright on these: a best-effort snapshot is more
	// useful to an emitter than no snapshot, matching the Python original's
	// behavior of skipping entries it can't stat rather than aborting.
	errors map[string]error
}

// Root returns the path the snapshot was scanned from.
func (s *Snapshot) Root() string {
	return s.root
}

// Paths returns every relative path recorded in the snapshot, in sorted
// order.
func (s *Snapshot) Paths() []string {
	paths := make([]string, 0, len(s.byPath))
	for p := range s.byPath {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// Entry returns the recorded Entry for relPath and whether it exists.
func (s *Snapshot) Entry(relPath string) (Entry, bool) {
	e, ok := s.byPath[relPath]
	return e, ok
}

// Errors returns the per-path errors accumulated during Scan, keyed by the
// relative path that could not be stat'd.
func (s *Snapshot) Errors() map[string]error {
	return s.errors
}

// Empty returns a snapshot of root with no entries, as though root had just
// been created. Diffing a populated snapshot against Empty(root) yields a
// "everything is created" result, which is how an emitter seeds its first
// real diff after establishing a baseline.
func Empty(root string) *Snapshot {
	return &Snapshot{
		root:    root,
		byPath:  make(map[string]Entry),
		byIdent: make(map[Identity]string),
		errors:  make(map[string]error),
	}
}

// Scan walks root according to opts and returns the resulting Snapshot.
//
// Scan never fails because of a single unreadable path below root; it
// records the failure in Snapshot.Errors and continues. It fails outright
// only if root itself cannot be stat'd or listed.
func Scan(root string, opts ScanOptions) (*Snapshot, error) {
	snap := Empty(root)

	rootDevice := uint64(0)
	if !opts.IgnoreDevice {
		if d, err := deviceID(root); err == nil {
			rootDevice = d
		}
	}

	if _, _, err := statEntry(root); err != nil {
		return nil, errors.Wrap(err, "unable to stat snapshot root")
	}

	walkErr := walk(root, "", opts, rootDevice, snap)
	if walkErr != nil {
		return nil, walkErr
	}

	return snap, nil
}

// walk recursively records dir's children (relPath is dir's path relative
// to the snapshot root; "" for root itself) into snap.
func walk(dir, relPath string, opts ScanOptions, rootDevice uint64, snap *Snapshot) error {
	children, err := os.ReadDir(dir)
	if err != nil {
		if relPath != "" {
			snap.errors[relPath] = err
			return nil
		}
		return errors.Wrap(err, "unable to read snapshot root")
	}

	for _, child := range children {
		childRel := child.Name()
		if relPath != "" {
			childRel = filepath.Join(relPath, child.Name())
		}
		childAbs := filepath.Join(dir, child.Name())

		entry, info, err := statEntry(childAbs)
		if err != nil {
			snap.errors[childRel] = err
			continue
		}
		if opts.IgnoreDevice {
			entry.Identity.Device = 0
		}

		followedDir := false
		if isSymlink(info) {
			if !opts.FollowSymlinks {
				snap.track(childRel, entry)
				continue
			}
			resolved, _, resolveErr := statFollow(childAbs)
			if resolveErr != nil {
				// A dangling symlink: record it as the link itself rather
				// than dropping it from the snapshot entirely.
				snap.track(childRel, entry)
				continue
			}
			entry = resolved
			followedDir = entry.IsDir
		}

		if opts.IgnoreDevice {
			entry.Identity.Device = 0
		} else if entry.Identity.Device != rootDevice {
			// Crossed onto a different device: record the mount point
			// itself but do not descend, staying on the root device for
			// recursive scans.
			snap.track(childRel, entry)
			continue
		}

		snap.track(childRel, entry)

		descend := entry.IsDir && !isSymlink(info) || followedDir
		if descend && opts.Recursive {
			if err := walk(childAbs, childRel, opts, rootDevice, snap); err != nil {
				return err
			}
		}
	}

	return nil
}

// track records entry for relPath in both of the snapshot's indexes.
func (s *Snapshot) track(relPath string, entry Entry) {
	s.byPath[relPath] = entry
	s.byIdent[entry.Identity] = relPath
}

// Result is the classified output of Diff, split by mode (file vs.
// directory) and kind. Within each bucket, paths (or moved-pairs, ordered
// by their "to" path) are sorted for deterministic output.
type Result struct {
	FilesCreated  []string
	FilesDeleted  []string
	FilesModified []string
	FilesMoved    []MovedPair

	DirsCreated  []string
	DirsDeleted  []string
	DirsModified []string
	DirsMoved    []MovedPair
}

// MovedPair is a single from/to relative-path pair identified by a stable
// Identity surviving between two snapshots at a different path.
type MovedPair struct {
	From string
	To   string
}

// Empty reports whether the diff found no changes at all.
func (r Result) Empty() bool {
	return len(r.FilesCreated) == 0 && len(r.FilesDeleted) == 0 &&
		len(r.FilesModified) == 0 && len(r.FilesMoved) == 0 &&
		len(r.DirsCreated) == 0 && len(r.DirsDeleted) == 0 &&
		len(r.DirsModified) == 0 && len(r.DirsMoved) == 0
}

// Diff compares ref (the older snapshot) against cur (the newer one) and
// classifies every change, keyed on stable Identity rather than path so
// that a rename is reported as a single moved pair instead of a
// delete-then-create.
//
// Grounded directly in DirectorySnapshotDiff.init: identities present in
// both snapshots but at different paths are "moved"; identities present in
// both at the same path with a changed ModTime are "modified"; identities
// only in ref are "deleted"; identities only in cur are "created".
func Diff(ref, cur *Snapshot) Result {
	var result Result

	for ident, curPath := range cur.byIdent {
		curEntry := cur.byPath[curPath]

		refPath, existed := ref.byIdent[ident]
		if !existed {
			if curEntry.IsDir {
				result.DirsCreated = append(result.DirsCreated, curPath)
			} else {
				result.FilesCreated = append(result.FilesCreated, curPath)
			}
			continue
		}

		refEntry := ref.byPath[refPath]

		if refPath != curPath {
			pair := MovedPair{From: refPath, To: curPath}
			if curEntry.IsDir {
				result.DirsMoved = append(result.DirsMoved, pair)
			} else {
				result.FilesMoved = append(result.FilesMoved, pair)
			}
			continue
		}

		if !refEntry.ModTime.Equal(curEntry.ModTime) {
			if curEntry.IsDir {
				result.DirsModified = append(result.DirsModified, curPath)
			} else {
				result.FilesModified = append(result.FilesModified, curPath)
			}
		}
	}

	for ident, refPath := range ref.byIdent {
		if _, stillExists := cur.byIdent[ident]; stillExists {
			continue
		}
		refEntry := ref.byPath[refPath]
		if refEntry.IsDir {
			result.DirsDeleted = append(result.DirsDeleted, refPath)
		} else {
			result.FilesDeleted = append(result.FilesDeleted, refPath)
		}
	}

	sort.Strings(result.FilesCreated)
	sort.Strings(result.FilesDeleted)
	sort.Strings(result.FilesModified)
	sort.Strings(result.DirsCreated)
	sort.Strings(result.DirsDeleted)
	sort.Strings(result.DirsModified)
	sortMovedPairs(result.FilesMoved)
	sortMovedPairs(result.DirsMoved)

	return result
}

func sortMovedPairs(pairs []MovedPair) {
	sort.Slice(pairs, func(i, j int) bool {
		return pairs[i].To < pairs[j].To
	})
}
