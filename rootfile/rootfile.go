// Package rootfile parses the signed "root files" that serve as a
// repository's entry points: the manifest (.cvmfspublished) and the
// whitelist (.cvmfswhitelist).
//
// A root file is a list of line-by-line key-value pairs where the key is the
// first character of a line and the value the remainder. The key-value body
// is terminated either by EOF or by a termination line ("--"), followed by a
// SHA-1 checksum of the body and a binary private-key signature. The binary
// signature is consumed by a certificate verifier, not here; this package
// enforces only the checksum.
package rootfile

import (
	"bufio"
	"io"
	"os"
	"strings"

	cvmfs "github.com/cernvm/go-cvmfs"
	"github.com/cernvm/go-cvmfs/digest"
)

const checksumLineLength = 41 // 40 hex characters plus newline

// RootFile is the parsed key-value body of a signed root file.
type RootFile struct {
	// checksum is the embedded SHA-1 of the body; empty if the file is
	// unsigned.
	checksum string

	// contents is the raw body, without terminator or signature.
	contents string
}

// Open reads and parses the root file at path.
func Open(path string) (*RootFile, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return New(f)
}

// New parses a root file from r, verifying the embedded checksum if a
// termination line is present.
func New(r io.Reader) (*RootFile, error) {
	br := bufio.NewReader(r)

	var contents strings.Builder
	var checksum string

	for {
		line, err := br.ReadString('\n')
		if err != nil && err != io.EOF {
			return nil, err
		}

		if strings.HasPrefix(line, "--") {
			sig, serr := br.ReadString('\n')
			if serr != nil && serr != io.EOF {
				return nil, serr
			}
			if len(sig) != checksumLineLength {
				return nil, cvmfs.ErrIncompleteRootFileSignature
			}
			checksum = sig[:checksumLineLength-1]
			break
		}

		contents.WriteString(line)
		if err == io.EOF {
			break
		}
	}

	rf := &RootFile{checksum: checksum, contents: contents.String()}

	if rf.HasSignature() {
		if string(digest.FromBytes(digest.SHA1, []byte(rf.contents))) != rf.checksum {
			return nil, cvmfs.ErrInvalidRootFileSignature
		}
	}

	return rf, nil
}

// HasSignature reports whether the file carried a verified checksum block.
func (rf *RootFile) HasSignature() bool {
	return rf.checksum != ""
}

// Checksum returns the embedded SHA-1 of the body, or the empty string for
// unsigned files.
func (rf *RootFile) Checksum() string {
	return rf.checksum
}

// Lines returns the body split into lines. The first character of each line
// is its key, the remainder its value.
func (rf *RootFile) Lines() []string {
	return strings.Split(rf.contents, "\n")
}
