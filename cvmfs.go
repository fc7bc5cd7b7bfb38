// Package cvmfs holds the domain model for a read-only CernVM-FS client:
// directory entries and their flag decoding, file chunks, split-MD5 path
// hashing, content-addressed object naming, and the error taxonomy shared by
// the component packages.
//
// A repository is a hierarchy of SQLite catalogs referencing compressed,
// hash-named data objects served over HTTP or from a local directory. The
// component packages (cache, fetcher, rootfile, manifest, catalog, history,
// repository) implement the resolution and retrieval engine over this model.
package cvmfs

// Well-known repository entry points, resolved relative to the repository
// source prefix.
const (
	// ManifestName is the repository's published root file.
	ManifestName = ".cvmfspublished"

	// WhitelistName is the repository's certificate whitelist root file.
	WhitelistName = ".cvmfswhitelist"

	// LastReplicationName is an optional sentinel holding the timestamp of
	// the last completed replication.
	LastReplicationName = ".cvmfs_last_snapshot"

	// ReplicatingName is an optional sentinel present while a replication
	// is in flight, holding its start timestamp.
	ReplicatingName = ".cvmfs_is_snapshotting"
)

// ReplicationTimeFormat is the reference layout of the replication sentinel
// files, e.g. "Tue  3 Jan 15:04:05 UTC 2006".
const ReplicationTimeFormat = "Mon _2 Jan 15:04:05 MST 2006"
