package cvmfs

import (
	"crypto/md5"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanonicalizePath(t *testing.T) {
	for _, testcase := range []struct {
		input, want string
	}{
		{"/", ""},
		{"", ""},
		{"/foo", "/foo"},
		{"foo", "/foo"},
		{"/foo/", "/foo"},
		{"/foo//bar", "/foo/bar"},
		{"/foo/./bar", "/foo/bar"},
		{"/a/b/c", "/a/b/c"},
	} {
		assert.Equal(t, testcase.want, CanonicalizePath(testcase.input), "input %q", testcase.input)
	}
}

func TestSplitMD5PreservesBitPatterns(t *testing.T) {
	var sum [md5.Size]byte
	for i := range sum {
		sum[i] = 0xff
	}
	ph := SplitMD5(sum)
	// all-ones digests map to -1 in two's complement, not to a resigned
	// unsigned reinterpretation
	assert.Equal(t, int64(-1), ph.Hash1)
	assert.Equal(t, int64(-1), ph.Hash2)

	sum = md5.Sum([]byte("/foo"))
	ph = SplitMD5(sum)
	assert.Equal(t, int64(binary.LittleEndian.Uint64(sum[0:8])), ph.Hash1)
	assert.Equal(t, int64(binary.LittleEndian.Uint64(sum[8:16])), ph.Hash2)
}

func TestHashPathMatchesManualSplit(t *testing.T) {
	// lookups by path and by precomputed split key must agree
	for _, path := range []string{"/", "/foo", "/a/b/c", "/foo/"} {
		want := SplitMD5(md5.Sum([]byte(CanonicalizePath(path))))
		assert.Equal(t, want, HashPath(path), "path %q", path)
	}

	// the root hashes as the empty string
	assert.Equal(t, SplitMD5(md5.Sum(nil)), HashPath("/"))
}

func TestObjectPath(t *testing.T) {
	const h = "abcdef0123456789abcdef0123456789abcdef01"
	for _, testcase := range []struct {
		kind ObjectKind
		want string
	}{
		{KindData, "data/ab/cdef0123456789abcdef0123456789abcdef01"},
		{KindCatalog, "data/ab/cdef0123456789abcdef0123456789abcdef01C"},
		{KindHistory, "data/ab/cdef0123456789abcdef0123456789abcdef01H"},
		{KindCertificate, "data/ab/cdef0123456789abcdef0123456789abcdef01X"},
	} {
		assert.Equal(t, testcase.want, ObjectPath(h, testcase.kind))
	}
}
