package digest

import (
	"crypto/sha1"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDigest(t *testing.T) {
	for _, testcase := range []struct {
		input string
		err   error
		alg   Algorithm
		hex   string
	}{
		{
			input: "e58fcf7418d4390dec8e8fb69d88c06ec07039d6",
			alg:   SHA1,
			hex:   "e58fcf7418d4390dec8e8fb69d88c06ec07039d6",
		},
		{
			input: "b83e1c342b8a3732e78a2d8a4d886ec7e0b0b0a1-rmd160",
			alg:   RIPEMD160,
			hex:   "b83e1c342b8a3732e78a2d8a4d886ec7e0b0b0a1",
		},
		{
			// hex shorter than a directory prefix
			input: "a",
			err:   ErrDigestInvalidFormat,
		},
		{
			input: "",
			err:   ErrDigestInvalidFormat,
		},
		{
			input: "not hex at all",
			err:   ErrDigestInvalidFormat,
		},
		{
			input: "e58fcf7418d4390dec8e8fb69d88c06ec07039d6-whirlpool",
			err:   ErrDigestUnsupported,
		},
	} {
		d, err := Parse(testcase.input)
		if testcase.err != nil {
			assert.Equal(t, testcase.err, err, "input %q", testcase.input)
			continue
		}
		require.NoError(t, err, "input %q", testcase.input)
		assert.Equal(t, testcase.alg, d.Algorithm())
		assert.Equal(t, testcase.hex, d.Hex())
		assert.Equal(t, testcase.input, d.String())
	}
}

func TestFromID(t *testing.T) {
	assert.Equal(t, SHA1, FromID(1))
	assert.Equal(t, RIPEMD160, FromID(2))
	assert.Equal(t, UpperBound, FromID(3))
	assert.Equal(t, Unknown, FromID(0))
	assert.Equal(t, Unknown, FromID(4))
	assert.Equal(t, Unknown, FromID(-7))
}

func TestFromBytes(t *testing.T) {
	content := []byte("cvmfs test object")
	sum := sha1.Sum(content)

	d := FromBytes(SHA1, content)
	assert.Equal(t, NewDigest(SHA1, sum[:]), d)
	assert.True(t, d.Verify(content))
	assert.False(t, d.Verify([]byte("tampered")))

	r := FromBytes(RIPEMD160, content)
	assert.Equal(t, RIPEMD160, r.Algorithm())
	assert.True(t, r.Verify(content))
}

func TestAlgorithmAvailability(t *testing.T) {
	assert.True(t, SHA1.Available())
	assert.True(t, RIPEMD160.Available())
	assert.False(t, UpperBound.Available())
	assert.False(t, Unknown.Available())
	assert.Panics(t, func() { Unknown.Hash() })
}
