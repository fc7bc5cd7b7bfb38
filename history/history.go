// Package history implements the repository tag database: named, numbered
// snapshots selectable by name, revision or timestamp.
package history

import (
	"database/sql"
	"fmt"

	cvmfs "github.com/cernvm/go-cvmfs"
	"github.com/cernvm/go-cvmfs/internal/sqlite"
)

// supportedSchema is the only history schema this client reads.
const supportedSchema = "1.0"

const (
	tagColumns = "name, hash, revision, timestamp, channel, description"

	queryAll      = "SELECT " + tagColumns + " FROM tags ORDER BY timestamp DESC"
	queryName     = "SELECT " + tagColumns + " FROM tags WHERE name = ? LIMIT 1"
	queryRevision = "SELECT " + tagColumns + " FROM tags WHERE revision = ? LIMIT 1"

	// by-date returns the earliest tag published strictly after the input
	// timestamp
	queryDate = "SELECT " + tagColumns + " FROM tags WHERE timestamp > ? ORDER BY timestamp ASC LIMIT 1"
)

// Tag is one named snapshot of the repository.
type Tag struct {
	Name        string
	Hash        string
	Revision    int64
	Timestamp   int64
	Channel     int64
	Description string
}

// History is a read-only view over a repository's tag database.
type History struct {
	db *sqlite.Database

	// FQRN is the fully qualified repository name the database belongs
	// to.
	FQRN string

	Schema string
}

// Open opens the history database at path. Any schema other than "1.0" is
// rejected.
func Open(path string) (*History, error) {
	db, err := sqlite.Open(path)
	if err != nil {
		return nil, err
	}

	properties, err := db.ReadPropertiesTable()
	if err != nil {
		db.Close()
		return nil, err
	}

	h := &History{
		db:     db,
		FQRN:   properties["fqrn"],
		Schema: properties["schema"],
	}
	if h.Schema != supportedSchema {
		db.Close()
		return nil, cvmfs.ErrHistoryInitialization{Schema: h.Schema}
	}
	return h, nil
}

// Close releases the database connection.
func (h *History) Close() error {
	return h.db.Close()
}

// ListTags returns all tags, newest first.
func (h *History) ListTags() ([]Tag, error) {
	rows, err := h.db.Query(queryAll)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tags []Tag
	for rows.Next() {
		tag, err := scanTag(rows)
		if err != nil {
			return nil, err
		}
		tags = append(tags, tag)
	}
	return tags, rows.Err()
}

// GetTagByName returns the tag with the given name.
func (h *History) GetTagByName(name string) (*Tag, error) {
	return h.getTag(queryName, name, fmt.Sprintf("name %q", name))
}

// GetTagByRevision returns the tag for the given revision number.
func (h *History) GetTagByRevision(revision uint32) (*Tag, error) {
	return h.getTag(queryRevision, int64(revision), fmt.Sprintf("revision %d", revision))
}

// GetTagByDate returns the earliest tag with a timestamp strictly greater
// than the given Unix time. Callers wanting the tag active at an instant
// must account for the strictness.
func (h *History) GetTagByDate(timestamp int64) (*Tag, error) {
	return h.getTag(queryDate, timestamp, fmt.Sprintf("date %d", timestamp))
}

func (h *History) getTag(query string, param any, description string) (*Tag, error) {
	rows, err := h.db.Query(query, param)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, err
		}
		return nil, cvmfs.ErrTagNotFound{Query: description}
	}
	tag, err := scanTag(rows)
	if err != nil {
		return nil, err
	}
	return &tag, nil
}

func scanTag(rows *sql.Rows) (Tag, error) {
	var tag Tag
	err := rows.Scan(&tag.Name, &tag.Hash, &tag.Revision, &tag.Timestamp,
		&tag.Channel, &tag.Description)
	return tag, err
}
