package digest

import (
	"crypto/sha1"
	"fmt"
	"hash"
	"regexp"
	"strings"

	"golang.org/x/crypto/ripemd160"
)

// Digest allows simple protection of hex formatted content hash strings,
// optionally followed by their algorithm suffix. Strings of type Digest have
// some guarantee of being in the correct format and it provides quick access
// to the components of a hash string.
//
// The following are examples of the contents of Digest types:
//
//	7173b809ca12ec5dee4506cd86be934c4596dd23
//	b83e1c342b8a3732e78a2d8a4d886ec7e0b0b0a1-rmd160
//
// The default algorithm, SHA-1, carries no suffix. This is the canonical
// content-addressing form used throughout the repository wire format and the
// local cache.
type Digest string

// Algorithm identifies a content hash algorithm. The numeric values are the
// algorithm ids decoded from catalog entry flags (the encoded field plus one).
type Algorithm int

const (
	// Unknown marks an algorithm id outside the supported set. Objects
	// carrying it cannot be materialised.
	Unknown Algorithm = -1

	// SHA1 is the default content hash algorithm.
	SHA1 Algorithm = 1

	// RIPEMD160 is the alternative content hash algorithm, suffixed
	// "-rmd160" in canonical form.
	RIPEMD160 Algorithm = 2

	// UpperBound is a reserved sentinel one past the last real algorithm.
	UpperBound Algorithm = 3
)

var (
	// ErrDigestInvalidFormat returned when digest format invalid.
	ErrDigestInvalidFormat = fmt.Errorf("invalid content hash format")

	// ErrDigestUnsupported returned when the digest algorithm is unsupported.
	ErrDigestUnsupported = fmt.Errorf("unsupported content hash algorithm")
)

const rmd160Suffix = "-rmd160"

var hexRegexp = regexp.MustCompile(`^[a-f0-9]+$`)

// FromID maps a numeric algorithm id, as decoded from catalog flags, to an
// Algorithm. Ids outside {1, 2, 3} map to Unknown.
func FromID(id int) Algorithm {
	switch Algorithm(id) {
	case SHA1, RIPEMD160, UpperBound:
		return Algorithm(id)
	default:
		return Unknown
	}
}

// Suffix returns the canonical object name suffix for the algorithm. SHA-1,
// the default, has none.
func (a Algorithm) Suffix() string {
	if a == RIPEMD160 {
		return rmd160Suffix
	}
	return ""
}

// Available reports whether the algorithm can be instantiated as a hash.
func (a Algorithm) Available() bool {
	return a == SHA1 || a == RIPEMD160
}

// Hash returns a new hash.Hash for the algorithm. It panics if the algorithm
// is not available; callers gate on Available.
func (a Algorithm) Hash() hash.Hash {
	switch a {
	case SHA1:
		return sha1.New()
	case RIPEMD160:
		return ripemd160.New()
	}
	panic("digest: algorithm " + a.String() + " is not available")
}

func (a Algorithm) String() string {
	switch a {
	case SHA1:
		return "sha1"
	case RIPEMD160:
		return "rmd160"
	case UpperBound:
		return "upper-bound"
	}
	return "unknown"
}

// NewDigest returns the canonical Digest for raw hash bytes under alg.
func NewDigest(alg Algorithm, sum []byte) Digest {
	return Digest(fmt.Sprintf("%x%s", sum, alg.Suffix()))
}

// FromBytes digests the input under alg and returns the canonical Digest.
func FromBytes(alg Algorithm, p []byte) Digest {
	h := alg.Hash()
	h.Write(p)
	return NewDigest(alg, h.Sum(nil))
}

// Parse validates s as a canonical content hash string and returns it as a
// Digest. An error is returned if the format is invalid or the suffix names
// an unsupported algorithm.
func Parse(s string) (Digest, error) {
	hex := s
	if i := strings.IndexByte(s, '-'); i >= 0 {
		if s[i:] != rmd160Suffix {
			return "", ErrDigestUnsupported
		}
		hex = s[:i]
	}
	if len(hex) < 2 || !hexRegexp.MatchString(hex) {
		return "", ErrDigestInvalidFormat
	}
	return Digest(s), nil
}

// Algorithm returns the algorithm portion of the digest, decoded from the
// presence or absence of a suffix.
func (d Digest) Algorithm() Algorithm {
	if strings.HasSuffix(string(d), rmd160Suffix) {
		return RIPEMD160
	}
	return SHA1
}

// Hex returns the bare hex portion of the digest, without any suffix.
func (d Digest) Hex() string {
	if i := strings.IndexByte(string(d), '-'); i >= 0 {
		return string(d[:i])
	}
	return string(d)
}

func (d Digest) String() string {
	return string(d)
}

// Verify reports whether content hashes to d under d's algorithm.
func (d Digest) Verify(content []byte) bool {
	return FromBytes(d.Algorithm(), content) == d
}
