package cvmfs

import (
	"math/bits"

	"github.com/cernvm/go-cvmfs/digest"
)

// Flags is the bitmask field attached to every catalog entry.
type Flags uint32

const (
	// FlagDirectory marks directories.
	FlagDirectory Flags = 1

	// FlagNestedCatalogMountpoint marks a directory whose subtree is held
	// by a nested catalog. The mountpoint entry in the parent catalog is
	// authoritative for attribute queries before descent.
	FlagNestedCatalogMountpoint Flags = 2

	// FlagFile marks regular files.
	FlagFile Flags = 4

	// FlagLink marks symbolic links.
	FlagLink Flags = 8

	// FlagFileStat is reserved by the wire format.
	FlagFileStat Flags = 16

	// FlagNestedCatalogRoot marks the root entry of a nested catalog,
	// mirroring the mountpoint entry in the parent.
	FlagNestedCatalogRoot Flags = 32

	// FlagFileChunk marks files stored as multiple chunks.
	FlagFileChunk Flags = 64

	// FlagContentHashType covers the bits encoding the entry's content
	// hash algorithm.
	FlagContentHashType Flags = 256 | 512 | 1024
)

// HashAlgorithm extracts the content hash algorithm encoded in the flag
// field: the masked bits are shifted down and incremented by one to form the
// algorithm id.
func (f Flags) HashAlgorithm() digest.Algorithm {
	shift := bits.TrailingZeros32(uint32(FlagContentHashType))
	id := int(uint32(f&FlagContentHashType)>>shift) + 1
	return digest.FromID(id)
}

// PathHash is the 128-bit MD5 of a canonicalised path split into two signed
// 64-bit halves, the primary key for catalog entry lookup. The on-disk
// fields are two's-complement encodings of the raw digest bytes; the bit
// patterns must be preserved when binding query parameters.
type PathHash struct {
	Hash1 int64
	Hash2 int64
}

// Chunk is one piece of a chunked file. The chunks of a file form a
// contiguous, non-overlapping, ordered cover of [0, size).
type Chunk struct {
	Offset      uint64
	Size        uint64
	ContentHash string
	Algorithm   digest.Algorithm
}

// Digest returns the chunk's content hash in canonical form.
func (c Chunk) Digest() digest.Digest {
	return digest.Digest(c.ContentHash + c.Algorithm.Suffix())
}

// DirectoryEntry is a decoded catalog metadata record.
type DirectoryEntry struct {
	MD5Path PathHash
	Parent  PathHash

	// ContentHash is the bare hex content hash. Empty iff the entry is a
	// chunked file, in which case Chunks carries the content.
	ContentHash string

	Flags Flags
	Size  uint64
	Mode  uint16
	Mtime int64
	Name  string

	// Symlink is the link target, present iff the entry is a link.
	Symlink string

	Algorithm digest.Algorithm
	Chunks    []Chunk
}

func (e *DirectoryEntry) IsDirectory() bool {
	return e.Flags&FlagDirectory != 0
}

func (e *DirectoryEntry) IsNestedCatalogMountpoint() bool {
	return e.Flags&FlagNestedCatalogMountpoint != 0
}

func (e *DirectoryEntry) IsNestedCatalogRoot() bool {
	return e.Flags&FlagNestedCatalogRoot != 0
}

func (e *DirectoryEntry) IsFile() bool {
	return e.Flags&FlagFile != 0
}

func (e *DirectoryEntry) IsSymlink() bool {
	return e.Flags&FlagLink != 0
}

// HasChunks reports whether the entry's content is chunked.
func (e *DirectoryEntry) HasChunks() bool {
	return len(e.Chunks) > 0
}

// PathHash returns the entry's own split-MD5 key.
func (e *DirectoryEntry) PathHash() PathHash {
	return e.MD5Path
}

// ParentHash returns the split-MD5 key of the entry's parent directory.
func (e *DirectoryEntry) ParentHash() PathHash {
	return e.Parent
}

// ContentHashString returns the canonical hex+suffix form of the entry's
// content hash, or the empty string for chunked entries.
func (e *DirectoryEntry) ContentHashString() string {
	if e.ContentHash == "" {
		return ""
	}
	return e.ContentHash + e.Algorithm.Suffix()
}

// ContentDigest returns the entry's content hash as a Digest. Empty for
// chunked entries.
func (e *DirectoryEntry) ContentDigest() digest.Digest {
	return digest.Digest(e.ContentHashString())
}
