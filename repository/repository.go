// Package repository orchestrates the catalog-resolution and
// content-retrieval engine: manifest, tag selection, the demand-loaded
// catalog tree, entry lookup and object materialisation.
package repository

import (
	"context"
	"crypto/x509"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	cvmfs "github.com/cernvm/go-cvmfs"
	"github.com/cernvm/go-cvmfs/catalog"
	"github.com/cernvm/go-cvmfs/fetcher"
	"github.com/cernvm/go-cvmfs/history"
	"github.com/cernvm/go-cvmfs/internal/dcontext"
	"github.com/cernvm/go-cvmfs/manifest"
	"github.com/cernvm/go-cvmfs/rootfile"
)

// Verifier validates a repository's certificate chain against its
// whitelist. Certificate validation is pluggable; the core only enforces
// the checksum integrity of the root files themselves.
type Verifier interface {
	Verify(ctx context.Context, mf *manifest.Manifest, whitelist *rootfile.RootFile, certificate *x509.Certificate) error
}

// Repository is a read-only view of one mounted repository revision. All
// shared state (the resident catalog map, the lazily opened history, the
// current tag) sits behind a single lock; concurrent path resolution
// serialises on it.
type Repository struct {
	mu sync.Mutex

	fetcher  *fetcher.Fetcher
	manifest *manifest.Manifest
	fqrn     string

	// catalogs maps catalog hash to resident catalog. Entries are
	// inserted on demand and never evicted during the mount lifetime.
	catalogs map[string]*catalog.Catalog

	history       *history.History
	historyOpened bool

	currentTag *history.Tag

	lastReplication  time.Time
	replicatingSince time.Time
	replicating      bool
}

// New fetches and parses the repository manifest and prepares an empty
// catalog tree. The replication sentinels are probed best-effort; their
// absence is benign.
func New(ctx context.Context, f *fetcher.Fetcher) (*Repository, error) {
	mf, err := readManifest(ctx, f)
	if err != nil {
		return nil, err
	}

	r := &Repository{
		fetcher:  f,
		manifest: mf,
		fqrn:     mf.RepositoryName,
		catalogs: make(map[string]*catalog.Catalog),
	}

	r.lastReplication = readReplicationDate(ctx, f, cvmfs.LastReplicationName)
	r.replicatingSince = readReplicationDate(ctx, f, cvmfs.ReplicatingName)
	r.replicating = !r.replicatingSince.IsZero()

	dcontext.GetLoggerWithFields(ctx, map[string]any{
		"repository": r.fqrn,
		"revision":   mf.Revision,
	}).Info("repository opened")

	return r, nil
}

func readManifest(ctx context.Context, f *fetcher.Fetcher) (*manifest.Manifest, error) {
	path, err := f.RetrieveRawFile(ctx, cvmfs.ManifestName)
	if err != nil {
		return nil, err
	}
	rf, err := rootfile.Open(path)
	if err != nil {
		return nil, err
	}
	return manifest.New(rf)
}

// readReplicationDate probes an optional replication sentinel. Absence or
// a malformed timestamp yields the zero time, not an error.
func readReplicationDate(ctx context.Context, f *fetcher.Fetcher, name string) time.Time {
	path, err := f.RetrieveRawFile(ctx, name)
	if err != nil {
		return time.Time{}
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return time.Time{}
	}
	when, err := time.Parse(cvmfs.ReplicationTimeFormat, strings.TrimSpace(string(raw)))
	if err != nil {
		dcontext.GetLoggerWithField(ctx, "sentinel", name).
			WithError(err).Debug("unparseable replication timestamp")
		return time.Time{}
	}
	return when
}

// Close releases all resident catalogs and the history database.
func (r *Repository) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var firstErr error
	for _, c := range r.catalogs {
		if err := c.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	r.catalogs = make(map[string]*catalog.Catalog)

	if r.history != nil {
		if err := r.history.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		r.history = nil
		r.historyOpened = false
	}
	return firstErr
}

// Manifest returns the parsed repository manifest.
func (r *Repository) Manifest() *manifest.Manifest {
	return r.manifest
}

// FQRN returns the fully qualified repository name.
func (r *Repository) FQRN() string {
	return r.fqrn
}

// LastReplication returns the timestamp of the last completed replication,
// or the zero time if unknown.
func (r *Repository) LastReplication() time.Time {
	return r.lastReplication
}

// ReplicatingSince returns the start of an in-flight replication and
// whether one is in flight.
func (r *Repository) ReplicatingSince() (time.Time, bool) {
	return r.replicatingSince, r.replicating
}

// RetrieveObject resolves a content-addressed object to its local cache
// path, downloading it on miss.
func (r *Repository) RetrieveObject(ctx context.Context, contentHash string, kind cvmfs.ObjectKind) (string, error) {
	return r.fetcher.RetrieveFile(ctx, cvmfs.ObjectPath(contentHash, kind))
}

// RetrieveCatalog returns the resident catalog for hash, fetching and
// opening it on first use. A failed fetch or open inserts nothing.
func (r *Repository) RetrieveCatalog(ctx context.Context, hash string) (*catalog.Catalog, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.retrieveCatalogLocked(ctx, hash)
}

func (r *Repository) retrieveCatalogLocked(ctx context.Context, hash string) (*catalog.Catalog, error) {
	if c, ok := r.catalogs[hash]; ok {
		return c, nil
	}

	path, err := r.fetcher.RetrieveFile(ctx, cvmfs.ObjectPath(hash, cvmfs.KindCatalog))
	if err != nil {
		return nil, err
	}
	c, err := catalog.Open(path, hash)
	if err != nil {
		return nil, err
	}

	dcontext.GetLoggerWithField(ctx, "catalog", hash).Debugf("loaded %s", c)
	r.catalogs[hash] = c
	return c, nil
}

// History returns the repository's tag database, opening it on first use.
// ErrNoHistory if the manifest references none.
func (r *Repository) History(ctx context.Context) (*history.History, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.historyLocked(ctx)
}

func (r *Repository) historyLocked(ctx context.Context) (*history.History, error) {
	if !r.manifest.HasHistory() {
		return nil, cvmfs.ErrNoHistory
	}
	if r.historyOpened {
		return r.history, nil
	}

	path, err := r.fetcher.RetrieveFile(ctx, cvmfs.ObjectPath(r.manifest.HistoryDatabase, cvmfs.KindHistory))
	if err != nil {
		return nil, err
	}
	h, err := history.Open(path)
	if err != nil {
		return nil, err
	}
	r.history = h
	r.historyOpened = true
	return h, nil
}

// CurrentTag returns the tag the mount tracks: the history tag matching the
// manifest revision, or a tag synthesized from the manifest when the
// repository publishes no history.
func (r *Repository) CurrentTag(ctx context.Context) (*history.Tag, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.currentTagLocked(ctx)
}

func (r *Repository) currentTagLocked(ctx context.Context) (*history.Tag, error) {
	if r.currentTag != nil {
		return r.currentTag, nil
	}

	if r.manifest.HasHistory() {
		h, err := r.historyLocked(ctx)
		if err != nil {
			return nil, err
		}
		tag, err := h.GetTagByRevision(r.manifest.Revision)
		if err != nil {
			return nil, err
		}
		r.currentTag = tag
		return tag, nil
	}

	r.currentTag = &history.Tag{
		Name:        "trunk",
		Hash:        r.manifest.RootCatalog,
		Revision:    int64(r.manifest.Revision),
		Timestamp:   r.manifest.LastModified.Unix(),
		Description: "synthesized from manifest",
	}
	return r.currentTag, nil
}

// PinTag makes the repository track the named tag instead of the
// published revision.
func (r *Repository) PinTag(ctx context.Context, name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	h, err := r.historyLocked(ctx)
	if err != nil {
		return err
	}
	tag, err := h.GetTagByName(name)
	if err != nil {
		return err
	}
	r.currentTag = tag
	return nil
}

// PinRevision makes the repository track a revision number instead of the
// published one.
func (r *Repository) PinRevision(ctx context.Context, revision uint32) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	h, err := r.historyLocked(ctx)
	if err != nil {
		return err
	}
	tag, err := h.GetTagByRevision(revision)
	if err != nil {
		return err
	}
	r.currentTag = tag
	return nil
}

// Lookup resolves path to its directory entry, walking nested catalog
// mountpoints downward from the current root. A missing entry is
// ErrFileNotFound.
func (r *Repository) Lookup(ctx context.Context, path string) (*cvmfs.DirectoryEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	tag, err := r.currentTagLocked(ctx)
	if err != nil {
		return nil, err
	}
	return r.lookupLocked(ctx, tag.Hash, path)
}

// LookupOpt is a thin adapter over Lookup for callers preferring an
// optional result: a missing entry yields (nil, false, nil).
func (r *Repository) LookupOpt(ctx context.Context, path string) (*cvmfs.DirectoryEntry, bool, error) {
	entry, err := r.Lookup(ctx, path)
	if err != nil {
		if _, ok := err.(cvmfs.ErrFileNotFound); ok {
			return nil, false, nil
		}
		return nil, false, err
	}
	return entry, true, nil
}

func (r *Repository) lookupLocked(ctx context.Context, rootHash, path string) (*cvmfs.DirectoryEntry, error) {
	c, err := r.catalogForPathLocked(ctx, rootHash, path)
	if err != nil {
		return nil, err
	}
	return c.FindDirectoryEntry(cvmfs.CanonicalizePath(path))
}

// catalogForPathLocked walks strictly downward from the root catalog to
// the catalog authoritative for path. Termination is guaranteed: every
// iteration strictly increases the matched prefix length or stops.
func (r *Repository) catalogForPathLocked(ctx context.Context, rootHash, path string) (*catalog.Catalog, error) {
	hash := rootHash
	for {
		c, err := r.retrieveCatalogLocked(ctx, hash)
		if err != nil {
			return nil, err
		}
		ref, err := c.FindNestedForPath(path)
		if err != nil {
			return nil, err
		}
		if ref == nil {
			return c, nil
		}
		hash = ref.CatalogHash
	}
}

// ListDirectory returns the entries of the directory at path, ordered by
// name. ErrNotADirectory if the path resolves to something else.
func (r *Repository) ListDirectory(ctx context.Context, path string) ([]*cvmfs.DirectoryEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	tag, err := r.currentTagLocked(ctx)
	if err != nil {
		return nil, err
	}
	return r.listDirectoryLocked(ctx, tag.Hash, path)
}

func (r *Repository) listDirectoryLocked(ctx context.Context, rootHash, path string) ([]*cvmfs.DirectoryEntry, error) {
	entry, err := r.lookupLocked(ctx, rootHash, path)
	if err != nil {
		return nil, err
	}
	if !entry.IsDirectory() {
		return nil, cvmfs.ErrNotADirectory{Path: path}
	}

	c, err := r.catalogForPathLocked(ctx, rootHash, path)
	if err != nil {
		return nil, err
	}
	return c.ListDirectory(cvmfs.CanonicalizePath(path))
}

// GetFile materialises the file at path: a plain reader over the cached
// object for single-object files, a chunked reader for chunked files.
func (r *Repository) GetFile(ctx context.Context, path string) (cvmfs.FileReader, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	tag, err := r.currentTagLocked(ctx)
	if err != nil {
		return nil, err
	}
	return r.getFileLocked(ctx, tag.Hash, path)
}

func (r *Repository) getFileLocked(ctx context.Context, rootHash, path string) (cvmfs.FileReader, error) {
	entry, err := r.lookupLocked(ctx, rootHash, path)
	if err != nil {
		return nil, err
	}
	if !entry.IsFile() {
		return nil, cvmfs.ErrNotAFile{Path: path}
	}
	if !entry.Algorithm.Available() {
		return nil, cvmfs.ErrUnknownHashAlgorithm{Path: path, Algorithm: entry.Algorithm}
	}

	if !entry.HasChunks() {
		local, err := r.fetcher.RetrieveFile(ctx, cvmfs.ObjectPath(entry.ContentHashString(), cvmfs.KindData))
		if err != nil {
			return nil, err
		}
		return openPlainFile(local, entry)
	}

	return newChunkedFile(ctx, r.fetcher, entry)
}

// Statistics returns the subtree counters of the current root catalog.
func (r *Repository) Statistics(ctx context.Context) (catalog.Statistics, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	tag, err := r.currentTagLocked(ctx)
	if err != nil {
		return catalog.Statistics{}, err
	}
	c, err := r.retrieveCatalogLocked(ctx, tag.Hash)
	if err != nil {
		return catalog.Statistics{}, err
	}
	return c.Statistics()
}

// Whitelist fetches and parses the repository's certificate whitelist.
func (r *Repository) Whitelist(ctx context.Context) (*rootfile.RootFile, error) {
	path, err := r.fetcher.RetrieveRawFile(ctx, cvmfs.WhitelistName)
	if err != nil {
		return nil, err
	}
	return rootfile.Open(path)
}

// Certificate fetches and parses the repository certificate.
func (r *Repository) Certificate(ctx context.Context) (*x509.Certificate, error) {
	if r.manifest.Certificate == "" {
		return nil, fmt.Errorf("manifest names no certificate")
	}
	path, err := r.RetrieveObject(ctx, r.manifest.Certificate, cvmfs.KindCertificate)
	if err != nil {
		return nil, err
	}
	der, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return x509.ParseCertificate(der)
}

// Verify gathers the whitelist and certificate and hands them to the
// pluggable verifier.
func (r *Repository) Verify(ctx context.Context, v Verifier) error {
	whitelist, err := r.Whitelist(ctx)
	if err != nil {
		return err
	}
	certificate, err := r.Certificate(ctx)
	if err != nil {
		return err
	}
	return v.Verify(ctx, r.manifest, whitelist, certificate)
}
