package snapshot

// Identity is the stable identifier spec.md calls "stable file identity":
// the (device id, inode-or-equivalent) pair that survives a rename within a
// single filesystem. A single Identity maps to at most one path within a
// given Snapshot.
type Identity struct {
	// Device is the device id the entry resides on. It is zeroed out when
	// ScanOptions.IgnoreDevice is set, so that identities remain comparable
	// across a device-id reassignment (e.g. a remount).
	Device uint64
	// Inode is the platform's inode number (or closest equivalent).
	Inode uint64
}
