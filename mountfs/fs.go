// Package mountfs bridges a repository to the host via FUSE: attribute
// lookup, directory reads, open/read/release and readlink, translated onto
// the repository's synchronous core API.
package mountfs

import (
	"context"
	"io"
	"sync"
	"syscall"

	"github.com/hanwen/go-fuse/v2/fs"
	"github.com/hanwen/go-fuse/v2/fuse"

	cvmfs "github.com/cernvm/go-cvmfs"
	"github.com/cernvm/go-cvmfs/internal/dcontext"
	"github.com/cernvm/go-cvmfs/repository"
)

// root is the filesystem root for a FUSE mount backed by one repository
// revision. It owns the table of open file handles, keyed by pseudo file
// descriptor.
type root struct {
	treeNode

	repo *repository.Repository
	ctx  context.Context

	mu   sync.Mutex
	open map[uint64]*fileHandle
}

// treeNode represents one resolved path in the mounted tree.
type treeNode struct {
	fs.Inode

	fsRoot *root
	path   string
	entry  *cvmfs.DirectoryEntry
}

// Mount mounts repo at mountpoint and returns the serving FUSE server.
// The caller waits on the server and unmounts it.
func Mount(ctx context.Context, repo *repository.Repository, mountpoint string, debug bool) (*fuse.Server, error) {
	entry, err := repo.Lookup(ctx, "/")
	if err != nil {
		return nil, err
	}

	r := &root{
		repo: repo,
		ctx:  ctx,
		open: make(map[uint64]*fileHandle),
	}
	r.fsRoot = r
	r.path = "/"
	r.entry = entry

	server, err := fs.Mount(mountpoint, r, &fs.Options{
		MountOptions: fuse.MountOptions{
			FsName: repo.FQRN(),
			Name:   "cvmfs",
			Debug:  debug,
		},
	})
	if err != nil {
		return nil, err
	}

	dcontext.GetLoggerWithField(ctx, "mountpoint", mountpoint).Info("filesystem mounted")
	return server, nil
}

// errno maps core errors onto the POSIX codes the kernel expects.
func errno(err error) syscall.Errno {
	switch err.(type) {
	case cvmfs.ErrFileNotFound, cvmfs.ErrTagNotFound:
		return syscall.ENOENT
	case cvmfs.ErrNotAFile, cvmfs.ErrNotADirectory:
		return syscall.EISDIR
	case cvmfs.ErrRetrieval:
		return syscall.EIO
	case cvmfs.ErrCatalogInitialization, cvmfs.ErrHistoryInitialization, cvmfs.ErrUnknownHashAlgorithm:
		return syscall.EIO
	}
	return syscall.ENOSYS
}

func fuseMode(entry *cvmfs.DirectoryEntry) uint32 {
	mode := uint32(entry.Mode) & 0o7777
	switch {
	case entry.IsDirectory():
		mode |= syscall.S_IFDIR
	case entry.IsSymlink():
		mode |= syscall.S_IFLNK
	default:
		mode |= syscall.S_IFREG
	}
	return mode
}

func fillAttr(entry *cvmfs.DirectoryEntry, attr *fuse.Attr) {
	attr.Mode = fuseMode(entry)
	attr.Size = entry.Size
	attr.Mtime = uint64(entry.Mtime)
	attr.Ctime = uint64(entry.Mtime)
	if entry.IsDirectory() {
		attr.Nlink = 2
	} else {
		attr.Nlink = 1
	}
}

// stableIno derives a stable inode number from the entry's split-MD5 path
// key.
func stableIno(entry *cvmfs.DirectoryEntry) uint64 {
	return uint64(entry.MD5Path.Hash1) ^ uint64(entry.MD5Path.Hash2)
}

func childPath(parent, name string) string {
	if parent == "/" {
		return "/" + name
	}
	return parent + "/" + name
}

var _ = (fs.NodeLookuper)((*treeNode)(nil))

func (n *treeNode) Lookup(ctx context.Context, name string, out *fuse.EntryOut) (*fs.Inode, syscall.Errno) {
	path := childPath(n.path, name)
	entry, ok, err := n.fsRoot.repo.LookupOpt(n.fsRoot.ctx, path)
	if err != nil {
		return nil, errno(err)
	}
	if !ok {
		return nil, syscall.ENOENT
	}

	child := &treeNode{fsRoot: n.fsRoot, path: path, entry: entry}
	fillAttr(entry, &out.Attr)
	return n.NewInode(ctx, child, fs.StableAttr{
		Mode: fuseMode(entry),
		Ino:  stableIno(entry),
	}), 0
}

var _ = (fs.NodeGetattrer)((*treeNode)(nil))

func (n *treeNode) Getattr(ctx context.Context, fh fs.FileHandle, out *fuse.AttrOut) syscall.Errno {
	fillAttr(n.entry, &out.Attr)
	return 0
}

var _ = (fs.NodeReaddirer)((*treeNode)(nil))

func (n *treeNode) Readdir(ctx context.Context) (fs.DirStream, syscall.Errno) {
	entries, err := n.fsRoot.repo.ListDirectory(n.fsRoot.ctx, n.path)
	if err != nil {
		return nil, errno(err)
	}

	listing := make([]fuse.DirEntry, 0, len(entries))
	for _, entry := range entries {
		listing = append(listing, fuse.DirEntry{
			Name: entry.Name,
			Mode: fuseMode(entry),
			Ino:  stableIno(entry),
		})
	}
	return fs.NewListDirStream(listing), 0
}

var _ = (fs.NodeReadlinker)((*treeNode)(nil))

func (n *treeNode) Readlink(ctx context.Context) ([]byte, syscall.Errno) {
	if !n.entry.IsSymlink() {
		return nil, syscall.ENOLINK
	}
	return []byte(n.entry.Symlink), 0
}

var _ = (fs.NodeGetxattrer)((*treeNode)(nil))

// Getxattr reports no extended attributes.
func (n *treeNode) Getxattr(ctx context.Context, attr string, dest []byte) (uint32, syscall.Errno) {
	return 0, syscall.ENODATA
}

var _ = (fs.NodeListxattrer)((*treeNode)(nil))

func (n *treeNode) Listxattr(ctx context.Context, dest []byte) (uint32, syscall.Errno) {
	return 0, 0
}

var _ = (fs.NodeOpener)((*treeNode)(nil))

func (n *treeNode) Open(ctx context.Context, flags uint32) (fs.FileHandle, uint32, syscall.Errno) {
	if flags&(syscall.O_WRONLY|syscall.O_RDWR) != 0 {
		return nil, 0, syscall.EROFS
	}

	reader, err := n.fsRoot.repo.GetFile(n.fsRoot.ctx, n.path)
	if err != nil {
		return nil, 0, errno(err)
	}

	handle := &fileHandle{root: n.fsRoot, reader: reader}
	n.fsRoot.mu.Lock()
	n.fsRoot.open[reader.FD()] = handle
	n.fsRoot.mu.Unlock()

	return handle, fuse.FOPEN_KEEP_CACHE, 0
}

// fileHandle adapts a FileReader to the FUSE read-at-offset protocol. The
// kernel may issue concurrent reads on one handle; the reader's position is
// guarded here.
type fileHandle struct {
	root *root

	mu     sync.Mutex
	reader cvmfs.FileReader
}

var _ = (fs.FileReader)((*fileHandle)(nil))

func (h *fileHandle) Read(ctx context.Context, dest []byte, off int64) (fuse.ReadResult, syscall.Errno) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, err := h.reader.Seek(off, io.SeekStart); err != nil {
		return nil, syscall.EIO
	}

	total := 0
	for total < len(dest) {
		n, err := h.reader.Read(dest[total:])
		total += n
		if err != nil {
			break
		}
	}
	return fuse.ReadResultData(dest[:total]), 0
}

var _ = (fs.FileReleaser)((*fileHandle)(nil))

func (h *fileHandle) Release(ctx context.Context) syscall.Errno {
	h.mu.Lock()
	fd := h.reader.FD()
	err := h.reader.Close()
	h.mu.Unlock()

	h.root.mu.Lock()
	delete(h.root.open, fd)
	h.root.mu.Unlock()

	if err != nil {
		return syscall.EIO
	}
	return 0
}
