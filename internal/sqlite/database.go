// Package sqlite wraps read-only access to the SQLite files a repository
// publishes (catalogs and the history database): connection setup, a
// prepared-statement factory, and the shared properties table.
package sqlite

import (
	"database/sql"

	// read-only driver for catalog and history databases
	_ "github.com/mattn/go-sqlite3"
)

// Database is a read-only connection to a repository SQLite file. The
// connection is opened without an internal mutex; callers serialise access
// themselves, so the pool is pinned to a single connection.
type Database struct {
	db *sql.DB
}

// Open opens the database file read-only.
func Open(path string) (*Database, error) {
	db, err := sql.Open("sqlite3", "file:"+path+"?mode=ro&_mutex=no")
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, err
	}
	return &Database{db: db}, nil
}

// Prepare returns a prepared statement for sql, owned by the caller.
func (d *Database) Prepare(query string) (*sql.Stmt, error) {
	return d.db.Prepare(query)
}

// Query runs a one-off query.
func (d *Database) Query(query string, args ...any) (*sql.Rows, error) {
	return d.db.Query(query, args...)
}

// ReadPropertiesTable returns the key-value properties table common to all
// repository databases.
func (d *Database) ReadPropertiesTable() (map[string]string, error) {
	rows, err := d.db.Query("SELECT key, value FROM properties;")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	properties := make(map[string]string)
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, err
		}
		properties[key] = value
	}
	return properties, rows.Err()
}

// Close releases the connection.
func (d *Database) Close() error {
	return d.db.Close()
}
