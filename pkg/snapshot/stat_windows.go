//go:build windows

package snapshot

import (
	"os"
	"syscall"

	"github.com/mutagen-io/extstat"
	"github.com/pkg/errors"
)

// statEntry stats path and returns the Entry that should be recorded for it
// in a snapshot. Windows has no inode, so identity is synthesized from the
// volume serial number and file index that extstat.NewFromFileName reports;
// the same call also supplies change-time.
func statEntry(path string) (Entry, os.FileInfo, error) {
	info, err := os.Lstat(path)
	if err != nil {
		return Entry{}, nil, errors.Wrap(err, "unable to query filesystem information")
	}

	ext, err := extstat.NewFromFileName(path)
	if err != nil {
		return Entry{}, nil, errors.Wrap(err, "unable to query extended filesystem information")
	}

	return Entry{
		Identity: Identity{
			Device: uint64(ext.VolumeSerialNumber),
			Inode:  ext.FileIndex,
		},
		IsDir:      info.IsDir(),
		ModTime:    info.ModTime(),
		ChangeTime: ext.ChangeTime,
	}, info, nil
}

// statFollow is statEntry but follows a terminal symlink/reparse point
// through to its target, for use when ScanOptions.FollowSymlinks is set.
func statFollow(path string) (Entry, os.FileInfo, error) {
	info, err := os.Stat(path)
	if err != nil {
		return Entry{}, nil, errors.Wrap(err, "unable to query filesystem information")
	}

	ext, err := extstat.NewFromFileName(path)
	if err != nil {
		return Entry{}, nil, errors.Wrap(err, "unable to query extended filesystem information")
	}

	return Entry{
		Identity: Identity{
			Device: uint64(ext.VolumeSerialNumber),
			Inode:  ext.FileIndex,
		},
		IsDir:      info.IsDir(),
		ModTime:    info.ModTime(),
		ChangeTime: ext.ChangeTime,
	}, info, nil
}

// deviceID returns the volume serial number of the volume path resides on,
// the same value statEntry records as Identity.Device, so that Scan keeps
// to the root's volume unless ScanOptions.IgnoreDevice is set.
func deviceID(path string) (uint64, error) {
	ext, err := extstat.NewFromFileName(path)
	if err != nil {
		return 0, errors.Wrap(err, "unable to query extended filesystem information")
	}
	return uint64(ext.VolumeSerialNumber), nil
}

// isSymlink reports whether info describes a symbolic link or a directory
// junction/reparse point, both of which Windows surfaces via the reparse
// point attribute.
func isSymlink(info os.FileInfo) bool {
	if info.Mode()&os.ModeSymlink != 0 {
		return true
	}
	if stat, ok := info.Sys().(*syscall.Win32FileAttributeData); ok {
		return stat.FileAttributes&syscall.FILE_ATTRIBUTE_REPARSE_POINT != 0
	}
	return false
}
