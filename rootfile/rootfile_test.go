package rootfile

import (
	"crypto/sha1"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cvmfs "github.com/cernvm/go-cvmfs"
)

func signed(body string) string {
	return fmt.Sprintf("%s--\n%x\n", body, sha1.Sum([]byte(body)))
}

func TestSignedRootFile(t *testing.T) {
	body := "Cabc123\nNexample.org\nS7\n"
	rf, err := New(strings.NewReader(signed(body) + "binary signature trailer"))
	require.NoError(t, err)

	assert.True(t, rf.HasSignature())
	assert.Equal(t, fmt.Sprintf("%x", sha1.Sum([]byte(body))), rf.Checksum())
	assert.Equal(t, []string{"Cabc123", "Nexample.org", "S7", ""}, rf.Lines())
}

func TestUnsignedRootFile(t *testing.T) {
	rf, err := New(strings.NewReader("Cabc123\nNexample.org"))
	require.NoError(t, err)

	assert.False(t, rf.HasSignature())
	assert.Equal(t, []string{"Cabc123", "Nexample.org"}, rf.Lines())
}

func TestInvalidSignature(t *testing.T) {
	body := "Cabc123\n"
	input := body + "--\n" + strings.Repeat("0", 40) + "\n"
	_, err := New(strings.NewReader(input))
	assert.ErrorIs(t, err, cvmfs.ErrInvalidRootFileSignature)
}

func TestIncompleteSignature(t *testing.T) {
	for _, trailer := range []string{
		"--\n",              // terminator then EOF
		"--\nabcdef\n",      // checksum line too short
		"--\n" + strings.Repeat("0", 40), // missing newline
	} {
		_, err := New(strings.NewReader("Cabc123\n" + trailer))
		assert.ErrorIs(t, err, cvmfs.ErrIncompleteRootFileSignature, "trailer %q", trailer)
	}
}

func TestChecksumCoversExactlyBodyBytes(t *testing.T) {
	// the terminator and checksum lines are not part of the hashed body
	body := "Cdeadbeef\nT1700000000000\n"
	rf, err := New(strings.NewReader(signed(body)))
	require.NoError(t, err)
	assert.True(t, rf.HasSignature())
}
