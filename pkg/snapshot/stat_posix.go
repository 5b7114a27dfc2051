//go:build !windows

package snapshot

import (
	"os"
	"syscall"
	"time"

	"github.com/mutagen-io/extstat"
	"github.com/pkg/errors"
)

// statEntry stats path (without following a terminal symlink) and returns the
// Entry that should be recorded for it in a snapshot.
//
// st_dev is extracted from the raw syscall.Stat_t; extstat.NewFromFileName
// supplies the richer change-time that os.Lstat's os.FileInfo cannot
// portably expose.
func statEntry(path string) (Entry, os.FileInfo, error) {
	info, err := os.Lstat(path)
	if err != nil {
		return Entry{}, nil, errors.Wrap(err, "unable to query filesystem information")
	}

	raw, ok := info.Sys().(*syscall.Stat_t)
	if !ok {
		return Entry{}, nil, errors.New("unable to extract raw filesystem information")
	}

	changeTime := time.Unix(int64(raw.Ctim.Sec), int64(raw.Ctim.Nsec)) // #nosec G115 -- kernel-supplied timestamp
	if ext, extErr := extstat.NewFromFileName(path); extErr == nil {
		changeTime = ext.ChangeTime
	}

	return Entry{
		Identity: Identity{
			Device: uint64(raw.Dev),
			Inode:  uint64(raw.Ino),
		},
		IsDir:      info.IsDir(),
		ModTime:    info.ModTime(),
		ChangeTime: changeTime,
	}, info, nil
}

// statFollow is statEntry but follows a terminal symlink through to its
// target, for use when ScanOptions.FollowSymlinks is set.
func statFollow(path string) (Entry, os.FileInfo, error) {
	info, err := os.Stat(path)
	if err != nil {
		return Entry{}, nil, errors.Wrap(err, "unable to query filesystem information")
	}

	raw, ok := info.Sys().(*syscall.Stat_t)
	if !ok {
		return Entry{}, nil, errors.New("unable to extract raw filesystem information")
	}

	changeTime := time.Unix(int64(raw.Ctim.Sec), int64(raw.Ctim.Nsec)) // #nosec G115 -- kernel-supplied timestamp
	if ext, extErr := extstat.NewFromFileName(path); extErr == nil {
		changeTime = ext.ChangeTime
	}

	return Entry{
		Identity: Identity{
			Device: uint64(raw.Dev),
			Inode:  uint64(raw.Ino),
		},
		IsDir:      info.IsDir(),
		ModTime:    info.ModTime(),
		ChangeTime: changeTime,
	}, info, nil
}

// deviceID returns the device id that path resides on, used by Scan to keep
// a scan on the snapshot root's device unless ScanOptions.IgnoreDevice is
// set.
func deviceID(path string) (uint64, error) {
	info, err := os.Lstat(path)
	if err != nil {
		return 0, errors.Wrap(err, "unable to query filesystem information")
	}
	stat, ok := info.Sys().(*syscall.Stat_t)
	if !ok {
		return 0, errors.New("unable to extract raw filesystem information")
	}
	return uint64(stat.Dev), nil
}

// isSymlink reports whether info (from an Lstat) describes a symbolic link.
func isSymlink(info os.FileInfo) bool {
	return info.Mode()&os.ModeSymlink != 0
}
