package repository

import (
	"crypto/md5"
	"encoding/binary"
	"os"

	cvmfs "github.com/cernvm/go-cvmfs"
)

// plainFile reads a single-object file straight from its decompressed
// cache file.
type plainFile struct {
	*os.File
	fd uint64
}

var _ cvmfs.FileReader = (*plainFile)(nil)

func openPlainFile(localPath string, entry *cvmfs.DirectoryEntry) (*plainFile, error) {
	f, err := os.Open(localPath)
	if err != nil {
		return nil, err
	}
	return &plainFile{File: f, fd: pseudoFD([]string{entry.ContentHashString()})}, nil
}

// FD returns the pseudo file descriptor for the host mount API.
func (p *plainFile) FD() uint64 {
	return p.fd
}

// pseudoFD derives an opaque handle from the file's content hashes: the
// first 8 bytes of the MD5 of their concatenation, little-endian. It is
// never handed to the kernel.
func pseudoFD(hashes []string) uint64 {
	h := md5.New()
	for _, hash := range hashes {
		h.Write([]byte(hash))
	}
	sum := h.Sum(nil)
	return binary.LittleEndian.Uint64(sum[:8])
}
