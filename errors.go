package cvmfs

import (
	"fmt"

	"github.com/cernvm/go-cvmfs/digest"
)

var (
	// ErrInvalidRootFileSignature returned when the embedded SHA-1 of a
	// root file does not match its body.
	ErrInvalidRootFileSignature = fmt.Errorf("invalid root file signature")

	// ErrIncompleteRootFileSignature returned when a root file terminator
	// is not followed by a full checksum line.
	ErrIncompleteRootFileSignature = fmt.Errorf("incomplete root file signature")

	// ErrNoHistory returned when a tag operation is attempted on a
	// repository whose manifest references no history database.
	ErrNoHistory = fmt.Errorf("repository has no history database")

	// ErrCacheDirectoryNotFound returned when the cache root cannot be
	// created or entered.
	ErrCacheDirectoryNotFound = fmt.Errorf("cache directory not found")
)

// ErrFileNotFound is returned when a path has no entry in its authoritative
// catalog.
type ErrFileNotFound struct {
	Path string
}

func (err ErrFileNotFound) Error() string {
	return fmt.Sprintf("no entry for path %q", err.Path)
}

// ErrNotAFile is returned when content is requested for a path whose entry
// is not a regular file.
type ErrNotAFile struct {
	Path string
}

func (err ErrNotAFile) Error() string {
	return fmt.Sprintf("path %q is not a file", err.Path)
}

// ErrNotADirectory is returned when a listing is requested for a path whose
// entry is not a directory.
type ErrNotADirectory struct {
	Path string
}

func (err ErrNotADirectory) Error() string {
	return fmt.Sprintf("path %q is not a directory", err.Path)
}

// ErrTagNotFound is returned when no tag matches a history lookup. Query
// describes the lookup that failed.
type ErrTagNotFound struct {
	Query string
}

func (err ErrTagNotFound) Error() string {
	return fmt.Sprintf("no tag matching %s", err.Query)
}

// ErrCatalogInitialization is returned when a catalog database is missing a
// required property or carries a zero value for one.
type ErrCatalogInitialization struct {
	Reason string
}

func (err ErrCatalogInitialization) Error() string {
	return fmt.Sprintf("catalog initialization: %s", err.Reason)
}

// ErrHistoryInitialization is returned when the history database schema is
// not the supported version.
type ErrHistoryInitialization struct {
	Schema string
}

func (err ErrHistoryInitialization) Error() string {
	return fmt.Sprintf("unsupported history schema %q", err.Schema)
}

// ErrUnknownHashAlgorithm is returned when an entry's flags decode to a hash
// algorithm outside the supported set; such content is never materialised.
type ErrUnknownHashAlgorithm struct {
	Path      string
	Algorithm digest.Algorithm
}

func (err ErrUnknownHashAlgorithm) Error() string {
	return fmt.Sprintf("entry %q has unusable hash algorithm %v", err.Path, err.Algorithm)
}

// ErrRetrieval is returned when an object cannot be fetched from the
// repository source. It wraps the transport or decompression failure.
type ErrRetrieval struct {
	Name   string
	Reason error
}

func (err ErrRetrieval) Error() string {
	return fmt.Sprintf("retrieving %q: %v", err.Name, err.Reason)
}

func (err ErrRetrieval) Unwrap() error {
	return err.Reason
}
