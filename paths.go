package cvmfs

import (
	"crypto/md5"
	"encoding/binary"
	gopath "path"
)

// ObjectKind selects the per-kind suffix appended to content-addressed
// object names.
type ObjectKind string

const (
	// KindData names plain file objects; it carries no suffix.
	KindData ObjectKind = ""

	// KindCatalog names catalog databases.
	KindCatalog ObjectKind = "C"

	// KindHistory names history databases.
	KindHistory ObjectKind = "H"

	// KindCertificate names repository certificates.
	KindCertificate ObjectKind = "X"
)

// CanonicalizePath reduces a repository path to its canonical lookup form:
// a cleaned, absolute path, except that the root maps to the empty string.
func CanonicalizePath(path string) string {
	if path == "" {
		return ""
	}
	cleaned := gopath.Clean("/" + path)
	if cleaned == "/" {
		return ""
	}
	return cleaned
}

// SplitMD5 splits a 16-byte MD5 digest into the two signed 64-bit halves
// used as catalog keys. Bytes 0..8 form Hash1 and bytes 8..16 form Hash2,
// little-endian by byte index; the raw bit patterns are preserved.
func SplitMD5(sum [md5.Size]byte) PathHash {
	return PathHash{
		Hash1: int64(binary.LittleEndian.Uint64(sum[0:8])),
		Hash2: int64(binary.LittleEndian.Uint64(sum[8:16])),
	}
}

// HashPath returns the split-MD5 catalog key for a repository path.
func HashPath(path string) PathHash {
	return SplitMD5(md5.Sum([]byte(CanonicalizePath(path))))
}

// ObjectPath composes the logical name of a content-addressed object: the
// first two hex characters become a subdirectory under "data/", the rest the
// file name, followed by the kind suffix.
func ObjectPath(contentHash string, kind ObjectKind) string {
	return "data/" + contentHash[:2] + "/" + contentHash[2:] + string(kind)
}
