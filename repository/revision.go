package repository

import (
	"context"

	cvmfs "github.com/cernvm/go-cvmfs"
	"github.com/cernvm/go-cvmfs/catalog"
	"github.com/cernvm/go-cvmfs/history"
)

// Revision is a tag-pinned view over the repository: the concrete state of
// the repository at one named, numbered snapshot. All operations resolve
// against the tag's root catalog regardless of the repository's current
// tag.
type Revision struct {
	repo *Repository
	tag  history.Tag
}

// CurrentRevision returns the revision the mount tracks.
func (r *Repository) CurrentRevision(ctx context.Context) (*Revision, error) {
	tag, err := r.CurrentTag(ctx)
	if err != nil {
		return nil, err
	}
	return &Revision{repo: r, tag: *tag}, nil
}

// GetRevision returns the view pinned to a revision number.
func (r *Repository) GetRevision(ctx context.Context, revision uint32) (*Revision, error) {
	h, err := r.History(ctx)
	if err != nil {
		return nil, err
	}
	tag, err := h.GetTagByRevision(revision)
	if err != nil {
		return nil, err
	}
	return &Revision{repo: r, tag: *tag}, nil
}

// GetTag returns the view pinned to a named tag.
func (r *Repository) GetTag(ctx context.Context, name string) (*Revision, error) {
	h, err := r.History(ctx)
	if err != nil {
		return nil, err
	}
	tag, err := h.GetTagByName(name)
	if err != nil {
		return nil, err
	}
	return &Revision{repo: r, tag: *tag}, nil
}

// Tag returns the tag backing this view.
func (rev *Revision) Tag() history.Tag {
	return rev.tag
}

// RevisionNumber returns the revision number of the view.
func (rev *Revision) RevisionNumber() int64 {
	return rev.tag.Revision
}

// RootHash returns the root catalog hash of the view.
func (rev *Revision) RootHash() string {
	return rev.tag.Hash
}

// Lookup resolves path against this revision's catalog tree.
func (rev *Revision) Lookup(ctx context.Context, path string) (*cvmfs.DirectoryEntry, error) {
	rev.repo.mu.Lock()
	defer rev.repo.mu.Unlock()
	return rev.repo.lookupLocked(ctx, rev.tag.Hash, path)
}

// ListDirectory lists the directory at path in this revision.
func (rev *Revision) ListDirectory(ctx context.Context, path string) ([]*cvmfs.DirectoryEntry, error) {
	rev.repo.mu.Lock()
	defer rev.repo.mu.Unlock()
	return rev.repo.listDirectoryLocked(ctx, rev.tag.Hash, path)
}

// GetFile materialises the file at path in this revision.
func (rev *Revision) GetFile(ctx context.Context, path string) (cvmfs.FileReader, error) {
	rev.repo.mu.Lock()
	defer rev.repo.mu.Unlock()
	return rev.repo.getFileLocked(ctx, rev.tag.Hash, path)
}

// Statistics returns the subtree counters of this revision's root catalog.
func (rev *Revision) Statistics(ctx context.Context) (catalog.Statistics, error) {
	rev.repo.mu.Lock()
	defer rev.repo.mu.Unlock()

	c, err := rev.repo.retrieveCatalogLocked(ctx, rev.tag.Hash)
	if err != nil {
		return catalog.Statistics{}, err
	}
	return c.Statistics()
}
