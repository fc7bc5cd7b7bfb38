// Package testutil builds the SQLite fixtures (catalogs and history
// databases) the component tests run against.
package testutil

import (
	"database/sql"
	gopath "path"
	"testing"

	_ "github.com/mattn/go-sqlite3"

	cvmfs "github.com/cernvm/go-cvmfs"
)

// EntrySpec describes one catalog row. Name, the split-MD5 keys and the
// parent keys are derived from Path.
type EntrySpec struct {
	Path    string
	Flags   cvmfs.Flags
	Hash    []byte // nil for chunked entries
	Size    uint64
	Mode    uint16
	Mtime   int64
	Symlink string
	Chunks  []ChunkSpec
}

// ChunkSpec describes one chunk row attached to an entry.
type ChunkSpec struct {
	Offset uint64
	Size   uint64
	Hash   []byte
}

// NestedSpec describes one nested catalog reference.
type NestedSpec struct {
	Path string
	Hash string
	Size uint64
}

// CatalogSpec describes a complete catalog database.
type CatalogSpec struct {
	// Properties overrides or extends the defaults (schema 2.5, schema
	// revision 5, revision 1, root_prefix "/").
	Properties map[string]string

	Entries    []EntrySpec
	Nested     []NestedSpec
	Statistics map[string]uint64
}

// CreateCatalog writes a catalog database to file.
func CreateCatalog(t *testing.T, file string, spec CatalogSpec) {
	t.Helper()

	db, err := sql.Open("sqlite3", file)
	if err != nil {
		t.Fatalf("opening catalog fixture: %v", err)
	}
	defer db.Close()

	exec(t, db, `CREATE TABLE properties (key TEXT, value TEXT)`)
	exec(t, db, `CREATE TABLE catalog (
		md5path_1 INTEGER, md5path_2 INTEGER,
		parent_1 INTEGER, parent_2 INTEGER,
		hash BLOB, flags INTEGER, size INTEGER, mode INTEGER, mtime INTEGER,
		name TEXT, symlink TEXT,
		CONSTRAINT pk_catalog PRIMARY KEY (md5path_1, md5path_2))`)
	exec(t, db, `CREATE INDEX idx_catalog_parent ON catalog (parent_1, parent_2)`)
	exec(t, db, `CREATE TABLE chunks (
		md5path_1 INTEGER, md5path_2 INTEGER,
		offset INTEGER, size INTEGER, hash BLOB)`)
	exec(t, db, `CREATE TABLE nested_catalogs (path TEXT, sha1 TEXT, size INTEGER)`)
	exec(t, db, `CREATE TABLE statistics (counter TEXT, value INTEGER)`)

	properties := map[string]string{
		"schema":          "2.5",
		"schema_revision": "5",
		"revision":        "1",
		"root_prefix":     "/",
	}
	for key, value := range spec.Properties {
		if value == "" {
			delete(properties, key)
			continue
		}
		properties[key] = value
	}
	for key, value := range properties {
		exec(t, db, `INSERT INTO properties (key, value) VALUES (?, ?)`, key, value)
	}

	for _, entry := range spec.Entries {
		md5path := cvmfs.HashPath(entry.Path)

		// the root entry hangs off the zero key so that listing the
		// root does not return the root itself
		var parent cvmfs.PathHash
		if cvmfs.CanonicalizePath(entry.Path) != "" {
			parent = cvmfs.HashPath(parentOf(entry.Path))
		}

		var hash any
		if entry.Hash != nil {
			hash = entry.Hash
		}
		var symlink any
		if entry.Symlink != "" {
			symlink = entry.Symlink
		}

		name := ""
		if canonical := cvmfs.CanonicalizePath(entry.Path); canonical != "" {
			name = gopath.Base(canonical)
		}

		exec(t, db, `INSERT INTO catalog
			(md5path_1, md5path_2, parent_1, parent_2, hash, flags, size, mode, mtime, name, symlink)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			md5path.Hash1, md5path.Hash2, parent.Hash1, parent.Hash2,
			hash, int64(entry.Flags), int64(entry.Size), int64(entry.Mode), entry.Mtime,
			name, symlink)

		for _, chunk := range entry.Chunks {
			exec(t, db, `INSERT INTO chunks (md5path_1, md5path_2, offset, size, hash)
				VALUES (?, ?, ?, ?, ?)`,
				md5path.Hash1, md5path.Hash2, int64(chunk.Offset), int64(chunk.Size), chunk.Hash)
		}
	}

	for _, nested := range spec.Nested {
		exec(t, db, `INSERT INTO nested_catalogs (path, sha1, size) VALUES (?, ?, ?)`,
			nested.Path, nested.Hash, int64(nested.Size))
	}

	for counter, value := range spec.Statistics {
		exec(t, db, `INSERT INTO statistics (counter, value) VALUES (?, ?)`, counter, int64(value))
	}
}

// TagSpec describes one history tag row.
type TagSpec struct {
	Name        string
	Hash        string
	Revision    int64
	Timestamp   int64
	Channel     int64
	Description string
}

// CreateHistory writes a history database to file. schema and fqrn go into
// the properties table verbatim.
func CreateHistory(t *testing.T, file, schema, fqrn string, tags []TagSpec) {
	t.Helper()

	db, err := sql.Open("sqlite3", file)
	if err != nil {
		t.Fatalf("opening history fixture: %v", err)
	}
	defer db.Close()

	exec(t, db, `CREATE TABLE properties (key TEXT, value TEXT)`)
	exec(t, db, `CREATE TABLE tags (
		name TEXT, hash TEXT, revision INTEGER, timestamp INTEGER,
		channel INTEGER, description TEXT)`)

	exec(t, db, `INSERT INTO properties (key, value) VALUES ('schema', ?)`, schema)
	exec(t, db, `INSERT INTO properties (key, value) VALUES ('fqrn', ?)`, fqrn)

	for _, tag := range tags {
		exec(t, db, `INSERT INTO tags (name, hash, revision, timestamp, channel, description)
			VALUES (?, ?, ?, ?, ?, ?)`,
			tag.Name, tag.Hash, tag.Revision, tag.Timestamp, tag.Channel, tag.Description)
	}
}

func parentOf(path string) string {
	canonical := cvmfs.CanonicalizePath(path)
	if canonical == "" {
		return ""
	}
	return gopath.Dir(canonical)
}

func exec(t *testing.T, db *sql.DB, query string, args ...any) {
	t.Helper()
	if _, err := db.Exec(query, args...); err != nil {
		t.Fatalf("executing %q: %v", query, err)
	}
}
