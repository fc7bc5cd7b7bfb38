package cvmfs

import "io"

// FileReader is the capability set exposed for materialised file content:
// sequential reads, seeking, closing, and an opaque pseudo file descriptor
// for the host mount layer. Implementations are a plain reader over a cached
// object file and a chunked reader reassembling multi-chunk files; callers
// stay polymorphic over this set and never discover the concrete kind.
//
// A FileReader is not safe for concurrent use; each open produces an
// independent instance.
type FileReader interface {
	io.Reader
	io.Seeker
	io.Closer

	// FD returns an opaque handle for the host mount API. It is derived
	// from the file's content hashes and is not a kernel descriptor.
	FD() uint64
}
