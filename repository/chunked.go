package repository

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"

	cvmfs "github.com/cernvm/go-cvmfs"
	"github.com/cernvm/go-cvmfs/fetcher"
)

// ChunkedFile is a seekable reader over the ordered chunk list of a
// chunked file. Chunks are fetched on first touch; reads stream through
// the fetcher and the local cache. A ChunkedFile owns a snapshot of its
// chunk list and is not safe for concurrent use.
type ChunkedFile struct {
	ctx     context.Context
	fetcher *fetcher.Fetcher

	chunks []chunkRef
	size   int64
	pos    int64
	fd     uint64

	// open cache file of the chunk last read from
	current      *os.File
	currentIndex int
}

type chunkRef struct {
	objectPath string
	cvmfs.Chunk
}

var _ cvmfs.FileReader = (*ChunkedFile)(nil)

func newChunkedFile(ctx context.Context, f *fetcher.Fetcher, entry *cvmfs.DirectoryEntry) (*ChunkedFile, error) {
	chunks := make([]chunkRef, len(entry.Chunks))
	hashes := make([]string, len(entry.Chunks))
	for i, chunk := range entry.Chunks {
		chunks[i] = chunkRef{
			objectPath: cvmfs.ObjectPath(string(chunk.Digest()), cvmfs.KindData),
			Chunk:      chunk,
		}
		hashes[i] = string(chunk.Digest())
	}

	return &ChunkedFile{
		ctx:          ctx,
		fetcher:      f,
		chunks:       chunks,
		size:         int64(entry.Size),
		fd:           pseudoFD(hashes),
		currentIndex: -1,
	}, nil
}

// FD returns the pseudo file descriptor for the host mount API.
func (cf *ChunkedFile) FD() uint64 {
	return cf.fd
}

// Size returns the total file size.
func (cf *ChunkedFile) Size() int64 {
	return cf.size
}

// Seek repositions the read offset with the usual start/current/end
// semantics. Seeking before the start of the file is an error.
func (cf *ChunkedFile) Seek(offset int64, whence int) (int64, error) {
	var target int64
	switch whence {
	case io.SeekStart:
		target = offset
	case io.SeekCurrent:
		target = cf.pos + offset
	case io.SeekEnd:
		target = cf.size + offset
	default:
		return 0, fmt.Errorf("invalid whence %d", whence)
	}
	if target < 0 {
		return 0, io.ErrUnexpectedEOF
	}
	cf.pos = target
	return target, nil
}

// Read fills p from the current position, crossing chunk boundaries as
// needed. At end of file the bytes produced so far are returned; a read
// starting at or past the end returns io.EOF.
func (cf *ChunkedFile) Read(p []byte) (int, error) {
	if cf.pos >= cf.size {
		return 0, io.EOF
	}

	total := 0
	for len(p) > 0 && cf.pos < cf.size {
		chunk, err := cf.chunkAt(cf.pos)
		if err != nil {
			if total > 0 {
				return total, nil
			}
			return 0, err
		}

		within := cf.pos - int64(chunk.Offset)
		remaining := int64(chunk.Size) - within
		n := int64(len(p))
		if n > remaining {
			n = remaining
		}

		read, err := cf.current.ReadAt(p[:n], within)
		total += read
		cf.pos += int64(read)
		p = p[read:]
		if err != nil && err != io.EOF {
			if total > 0 {
				return total, nil
			}
			return 0, err
		}
		if read == 0 {
			// a truncated cache file must not stall the read loop
			if total > 0 {
				return total, nil
			}
			return 0, io.ErrUnexpectedEOF
		}
	}
	return total, nil
}

// chunkAt locates, fetches and opens the chunk covering pos. The chunk
// list is a contiguous ordered cover, so the containing chunk is the last
// one starting at or before pos.
func (cf *ChunkedFile) chunkAt(pos int64) (*chunkRef, error) {
	idx := sort.Search(len(cf.chunks), func(i int) bool {
		return int64(cf.chunks[i].Offset) > pos
	}) - 1
	if idx < 0 {
		return nil, fmt.Errorf("no chunk covers offset %d", pos)
	}
	chunk := &cf.chunks[idx]

	if cf.currentIndex != idx {
		local, err := cf.fetcher.RetrieveFile(cf.ctx, chunk.objectPath)
		if err != nil {
			return nil, err
		}
		f, err := os.Open(local)
		if err != nil {
			return nil, err
		}
		if cf.current != nil {
			cf.current.Close()
		}
		cf.current = f
		cf.currentIndex = idx
	}
	return chunk, nil
}

// Close releases the currently open chunk file.
func (cf *ChunkedFile) Close() error {
	cf.currentIndex = -1
	if cf.current == nil {
		return nil
	}
	err := cf.current.Close()
	cf.current = nil
	return err
}
