// Package catalog implements the schema-versioned SQLite metadata catalogs
// a repository is organised into: directory listing and lookup by split-MD5
// key, chunk attachment, nested catalog references, and subtree statistics.
package catalog

import (
	"database/sql"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"

	cvmfs "github.com/cernvm/go-cvmfs"
	"github.com/cernvm/go-cvmfs/internal/sqlite"
)

const (
	listingQuery = `SELECT md5path_1, md5path_2, parent_1, parent_2, hash, flags, size, mode, mtime, name, symlink ` +
		`FROM catalog WHERE parent_1 = ? AND parent_2 = ? ORDER BY name ASC`
	findQuery = `SELECT md5path_1, md5path_2, parent_1, parent_2, hash, flags, size, mode, mtime, name, symlink ` +
		`FROM catalog WHERE md5path_1 = ? AND md5path_2 = ? LIMIT 1`
	chunksQuery = `SELECT offset, size, hash ` +
		`FROM chunks WHERE md5path_1 = ? AND md5path_2 = ? ORDER BY offset ASC`
	nestedCountQuery = `SELECT count(*) FROM nested_catalogs`
	statisticsQuery  = `SELECT counter, value FROM statistics ORDER BY counter`
)

// Reference points at a nested catalog: the path it is mounted on, its
// content hash and its compressed size. Size is zero when the schema
// predates size tracking.
type Reference struct {
	RootPath    string
	CatalogHash string
	CatalogSize uint64
}

// Statistics carries the subtree counters a catalog publishes.
type Statistics struct {
	Chunked          uint64
	ChunkedSize      uint64
	Chunks           uint64
	Dir              uint64
	External         uint64
	ExternalFileSize uint64
	Nested           uint64
	Regular          uint64
	Special          uint64
	Symlink          uint64
	Xattr            uint64
}

// Catalog wraps one read-only catalog database. A catalog is authoritative
// for the subtree rooted at its root prefix, up to the mount points of its
// nested catalogs.
type Catalog struct {
	db *sqlite.Database

	stmtListing *sql.Stmt
	stmtFind    *sql.Stmt
	stmtChunks  *sql.Stmt

	// Hash is the catalog's own content hash.
	Hash string

	Schema           float64
	SchemaRevision   float64
	Revision         int64
	PreviousRevision string
	LastModified     time.Time

	// RootPrefix is the catalog's mount point inside the repository; "/"
	// for the root catalog.
	RootPrefix string
}

// Open opens the catalog database at path. hash is the catalog's own
// content hash, kept for identification. The properties table must provide
// a non-zero revision and schema.
func Open(path, hash string) (*Catalog, error) {
	db, err := sqlite.Open(path)
	if err != nil {
		return nil, err
	}

	c := &Catalog{db: db, Hash: hash, RootPrefix: "/"}
	if err := c.readProperties(); err != nil {
		db.Close()
		return nil, err
	}

	for _, stmt := range []struct {
		target **sql.Stmt
		query  string
	}{
		{&c.stmtListing, listingQuery},
		{&c.stmtFind, findQuery},
		{&c.stmtChunks, chunksQuery},
	} {
		if *stmt.target, err = db.Prepare(stmt.query); err != nil {
			c.Close()
			return nil, err
		}
	}

	return c, nil
}

func (c *Catalog) readProperties() error {
	properties, err := c.db.ReadPropertiesTable()
	if err != nil {
		return err
	}

	for key, value := range properties {
		var err error
		switch key {
		case "revision":
			c.Revision, err = strconv.ParseInt(value, 10, 64)
		case "schema":
			c.Schema, err = strconv.ParseFloat(value, 64)
		case "schema_revision":
			c.SchemaRevision, err = strconv.ParseFloat(value, 64)
		case "last_modified":
			var seconds int64
			seconds, err = strconv.ParseInt(value, 10, 64)
			c.LastModified = time.Unix(seconds, 0).UTC()
		case "previous_revision":
			c.PreviousRevision = value
		case "root_prefix":
			c.RootPrefix = value
		}
		if err != nil {
			return cvmfs.ErrCatalogInitialization{
				Reason: fmt.Sprintf("property %q has invalid value %q", key, value),
			}
		}
	}

	if c.Revision == 0 {
		return cvmfs.ErrCatalogInitialization{Reason: "missing revision"}
	}
	if c.Schema == 0 {
		return cvmfs.ErrCatalogInitialization{Reason: "missing schema"}
	}
	return nil
}

// Close releases the prepared statements and the database connection.
func (c *Catalog) Close() error {
	for _, stmt := range []*sql.Stmt{c.stmtListing, c.stmtFind, c.stmtChunks} {
		if stmt != nil {
			stmt.Close()
		}
	}
	return c.db.Close()
}

// IsRoot reports whether this is the repository's root catalog.
func (c *Catalog) IsRoot() bool {
	return c.RootPrefix == "/"
}

func (c *Catalog) String() string {
	return fmt.Sprintf("catalog %s (prefix %s, revision %d)", c.Hash, c.RootPrefix, c.Revision)
}

// ListDirectory returns the entries whose parent is path, ordered by name.
func (c *Catalog) ListDirectory(path string) ([]*cvmfs.DirectoryEntry, error) {
	return c.ListDirectorySplitMD5(cvmfs.HashPath(path))
}

// ListDirectorySplitMD5 returns the entries whose parent has the given
// split-MD5 key, ordered by name.
func (c *Catalog) ListDirectorySplitMD5(parent cvmfs.PathHash) ([]*cvmfs.DirectoryEntry, error) {
	rows, err := c.stmtListing.Query(parent.Hash1, parent.Hash2)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []*cvmfs.DirectoryEntry
	for rows.Next() {
		entry, err := c.scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, entry := range entries {
		if err := c.readChunks(entry); err != nil {
			return nil, err
		}
	}
	return entries, nil
}

// FindDirectoryEntry looks up the single entry for path. A missing entry is
// ErrFileNotFound.
func (c *Catalog) FindDirectoryEntry(path string) (*cvmfs.DirectoryEntry, error) {
	entry, err := c.FindDirectoryEntrySplitMD5(cvmfs.HashPath(path))
	if err != nil {
		if _, ok := err.(cvmfs.ErrFileNotFound); ok {
			return nil, cvmfs.ErrFileNotFound{Path: path}
		}
		return nil, err
	}
	return entry, nil
}

// FindDirectoryEntrySplitMD5 looks up the single entry with the given
// split-MD5 key.
func (c *Catalog) FindDirectoryEntrySplitMD5(ph cvmfs.PathHash) (*cvmfs.DirectoryEntry, error) {
	rows, err := c.stmtFind.Query(ph.Hash1, ph.Hash2)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, err
		}
		return nil, cvmfs.ErrFileNotFound{}
	}
	entry, err := c.scanEntry(rows)
	if err != nil {
		return nil, err
	}
	rows.Close()

	if err := c.readChunks(entry); err != nil {
		return nil, err
	}
	return entry, nil
}

// ListNested returns references to all nested catalogs contained in this
// catalog. Whether sizes are available depends on the schema.
func (c *Catalog) ListNested() ([]Reference, error) {
	query, withSize := "SELECT path, sha1 FROM nested_catalogs", false
	if c.Schema <= 1.2 && c.SchemaRevision > 0 {
		query, withSize = "SELECT path, sha1, size FROM nested_catalogs", true
	}

	rows, err := c.db.Query(query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var refs []Reference
	for rows.Next() {
		var ref Reference
		if withSize {
			err = rows.Scan(&ref.RootPath, &ref.CatalogHash, &ref.CatalogSize)
		} else {
			err = rows.Scan(&ref.RootPath, &ref.CatalogHash)
		}
		if err != nil {
			return nil, err
		}
		refs = append(refs, ref)
	}
	return refs, rows.Err()
}

// NestedCount returns the number of nested catalogs.
func (c *Catalog) NestedCount() (int64, error) {
	rows, err := c.db.Query(nestedCountQuery)
	if err != nil {
		return 0, err
	}
	defer rows.Close()

	var count int64
	if rows.Next() {
		if err := rows.Scan(&count); err != nil {
			return 0, err
		}
	}
	return count, rows.Err()
}

// HasNested reports whether the catalog contains nested catalogs.
func (c *Catalog) HasNested() (bool, error) {
	count, err := c.NestedCount()
	return count > 0, err
}

// FindNestedForPath returns the nested catalog reference with the longest
// root path that is a sanitised prefix of path, or nil if this catalog is
// authoritative for path.
func (c *Catalog) FindNestedForPath(path string) (*Reference, error) {
	refs, err := c.ListNested()
	if err != nil {
		return nil, err
	}

	needle := cvmfs.CanonicalizePath(path)
	var best *Reference
	bestLen := 0
	for i := range refs {
		ref := &refs[i]
		if strings.HasPrefix(needle, ref.RootPath) &&
			len(ref.RootPath) > bestLen &&
			pathSanitized(needle, ref.RootPath) {
			best = ref
			bestLen = len(ref.RootPath)
		}
	}
	return best, nil
}

// pathSanitized reports whether catalogPath matches needle on a path
// component boundary: either the paths are equal in length or the next
// character of needle is a separator. This prevents a nested catalog at
// "/foo" from capturing "/foobar".
func pathSanitized(needle, catalogPath string) bool {
	if len(needle) == len(catalogPath) {
		return true
	}
	return len(needle) > len(catalogPath) && needle[len(catalogPath)] == '/'
}

// Statistics reads the subtree_* counters from the statistics table.
func (c *Catalog) Statistics() (Statistics, error) {
	rows, err := c.db.Query(statisticsQuery)
	if err != nil {
		return Statistics{}, err
	}
	defer rows.Close()

	var stats Statistics
	for rows.Next() {
		var counter string
		var value uint64
		if err := rows.Scan(&counter, &value); err != nil {
			return Statistics{}, err
		}
		switch counter {
		case "subtree_chunked":
			stats.Chunked = value
		case "subtree_chunked_size":
			stats.ChunkedSize = value
		case "subtree_chunks":
			stats.Chunks = value
		case "subtree_dir":
			stats.Dir = value
		case "subtree_external":
			stats.External = value
		case "subtree_external_file_size":
			stats.ExternalFileSize = value
		case "subtree_nested":
			stats.Nested = value
		case "subtree_regular":
			stats.Regular = value
		case "subtree_special":
			stats.Special = value
		case "subtree_symlink":
			stats.Symlink = value
		case "subtree_xattr":
			stats.Xattr = value
		}
	}
	return stats, rows.Err()
}

// scanEntry decodes one catalog row. The content hash column is NULL for
// chunked files; the symlink column is NULL for everything but links.
func (c *Catalog) scanEntry(rows *sql.Rows) (*cvmfs.DirectoryEntry, error) {
	var (
		hashBlob []byte
		flags    int64
		size     int64
		mode     int64
		symlink  sql.NullString
		entry    cvmfs.DirectoryEntry
	)
	err := rows.Scan(
		&entry.MD5Path.Hash1, &entry.MD5Path.Hash2,
		&entry.Parent.Hash1, &entry.Parent.Hash2,
		&hashBlob, &flags, &size, &mode, &entry.Mtime,
		&entry.Name, &symlink,
	)
	if err != nil {
		return nil, err
	}

	entry.ContentHash = hex.EncodeToString(hashBlob)
	entry.Flags = cvmfs.Flags(uint32(flags))
	entry.Size = uint64(size)
	entry.Mode = uint16(mode)
	entry.Symlink = symlink.String
	entry.Algorithm = entry.Flags.HashAlgorithm()
	return &entry, nil
}

// readChunks attaches the chunk list of a chunked entry, inheriting the
// entry's hash algorithm.
func (c *Catalog) readChunks(entry *cvmfs.DirectoryEntry) error {
	rows, err := c.stmtChunks.Query(entry.MD5Path.Hash1, entry.MD5Path.Hash2)
	if err != nil {
		return err
	}
	defer rows.Close()

	entry.Chunks = entry.Chunks[:0]
	for rows.Next() {
		var (
			offset, size int64
			hashBlob     []byte
		)
		if err := rows.Scan(&offset, &size, &hashBlob); err != nil {
			return err
		}
		entry.Chunks = append(entry.Chunks, cvmfs.Chunk{
			Offset:      uint64(offset),
			Size:        uint64(size),
			ContentHash: hex.EncodeToString(hashBlob),
			Algorithm:   entry.Algorithm,
		})
	}
	return rows.Err()
}
