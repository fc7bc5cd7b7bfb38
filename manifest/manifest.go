// Package manifest provides the typed view over a repository's published
// root file (.cvmfspublished).
package manifest

import (
	"fmt"
	"strconv"
	"time"

	"github.com/cernvm/go-cvmfs/rootfile"
)

// Manifest wraps the information published in .cvmfspublished. Single
// character keys map to fields; unknown keys are ignored for forward
// compatibility.
type Manifest struct {
	// RootCatalog is the content hash of the current root catalog (C).
	RootCatalog string

	// RootHash is the alternative root catalog hash (R).
	RootHash string

	// RootCatalogSize is the compressed size of the root catalog (B).
	RootCatalogSize uint64

	// Certificate is the content hash of the repository certificate (X).
	Certificate string

	// HistoryDatabase is the content hash of the tag database (H); empty
	// if the repository publishes no history.
	HistoryDatabase string

	// LastModified is the publication timestamp (T, milliseconds).
	LastModified time.Time

	// TTL is the advised refresh interval in seconds (D).
	TTL uint32

	// Revision is the published revision number (S).
	Revision uint32

	// RepositoryName is the fully qualified repository name (N).
	RepositoryName string

	// MicroCatalog is the micro catalog hash (L).
	MicroCatalog string

	// GarbageCollectable reports whether the repository is garbage
	// collectable (G).
	GarbageCollectable bool

	// AllowsAlternativeName reports whether alternative root catalog
	// naming is allowed (A).
	AllowsAlternativeName bool
}

// New builds a Manifest from a parsed root file.
func New(rf *rootfile.RootFile) (*Manifest, error) {
	m := &Manifest{}
	for _, line := range rf.Lines() {
		if line == "" {
			continue
		}
		key, value := line[0], line[1:]

		var err error
		switch key {
		case 'C':
			m.RootCatalog = value
		case 'R':
			m.RootHash = value
		case 'B':
			m.RootCatalogSize, err = strconv.ParseUint(value, 10, 64)
		case 'X':
			m.Certificate = value
		case 'H':
			m.HistoryDatabase = value
		case 'T':
			var millis int64
			millis, err = strconv.ParseInt(value, 10, 64)
			m.LastModified = time.UnixMilli(millis).UTC()
		case 'D':
			var ttl uint64
			ttl, err = strconv.ParseUint(value, 10, 32)
			m.TTL = uint32(ttl)
		case 'S':
			var revision uint64
			revision, err = strconv.ParseUint(value, 10, 32)
			m.Revision = uint32(revision)
		case 'N':
			m.RepositoryName = value
		case 'L':
			m.MicroCatalog = value
		case 'G':
			m.GarbageCollectable, err = parseBoolean(value)
		case 'A':
			m.AllowsAlternativeName, err = parseBoolean(value)
		}
		if err != nil {
			return nil, fmt.Errorf("manifest: invalid value %q for key %q: %v", value, string(key), err)
		}
	}
	return m, nil
}

// HasHistory reports whether the manifest references a tag database.
func (m *Manifest) HasHistory() bool {
	return m.HistoryDatabase != ""
}

// parseBoolean accepts exactly the wire literals "yes" and "no".
func parseBoolean(value string) (bool, error) {
	switch value {
	case "yes":
		return true, nil
	case "no":
		return false, nil
	}
	return false, fmt.Errorf("not a boolean literal")
}
