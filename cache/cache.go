// Package cache implements the local content-addressed object store backing
// both metadata and data objects: a flat mapping from logical object names
// (e.g. "data/ab/cdef...C") to files under a root directory, laid out as 256
// hex-named subdirectories of <root>/data.
package cache

import (
	"fmt"
	"os"
	"path/filepath"
)

// Cache is a disk-backed object store keyed by logical file name. It makes
// no atomicity guarantees about concurrent writers; content-addressed writes
// are idempotent, so the last writer wins with identical bytes.
type Cache struct {
	root string
}

// New returns a cache rooted at root. The directory structure is not
// created until Initialize is called.
func New(root string) *Cache {
	return &Cache{root: root}
}

// Root returns the cache root directory.
func (c *Cache) Root() string {
	return c.root
}

// Initialize creates <root>/data and the 256 subdirectories 00..ff inside
// it. It is idempotent.
func (c *Cache) Initialize() error {
	base := filepath.Join(c.root, "data")
	if err := os.MkdirAll(base, 0o755); err != nil {
		return err
	}
	for i := 0x00; i <= 0xff; i++ {
		if err := os.MkdirAll(filepath.Join(base, fmt.Sprintf("%02x", i)), 0o755); err != nil {
			return err
		}
	}
	return nil
}

// Add returns the local path a file with the given logical name maps to. It
// is a pure path join and performs no I/O.
func (c *Cache) Add(name string) string {
	return filepath.Join(c.root, filepath.FromSlash(name))
}

// Get returns the local path for name iff the file currently exists on
// disk.
func (c *Cache) Get(name string) (string, bool) {
	path := c.Add(name)
	if fi, err := os.Stat(path); err == nil && fi.Mode().IsRegular() {
		return path, true
	}
	return "", false
}

// Evict removes <root>/data recursively and re-initializes the directory
// structure.
func (c *Cache) Evict() error {
	if err := os.RemoveAll(filepath.Join(c.root, "data")); err != nil {
		return err
	}
	return c.Initialize()
}
