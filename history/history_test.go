package history

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cvmfs "github.com/cernvm/go-cvmfs"
	"github.com/cernvm/go-cvmfs/testutil"
)

func fixtureTags() []testutil.TagSpec {
	return []testutil.TagSpec{
		{Name: "initial", Hash: "1111", Revision: 1, Timestamp: 1000, Channel: 0, Description: "first publish"},
		{Name: "stable", Hash: "2222", Revision: 4, Timestamp: 2000, Channel: 0, Description: "known good"},
		{Name: "trunk", Hash: "3333", Revision: 7, Timestamp: 3000, Channel: 0, Description: "latest"},
	}
}

func openFixture(t *testing.T) *History {
	t.Helper()
	file := filepath.Join(t.TempDir(), "history.db")
	testutil.CreateHistory(t, file, "1.0", "example.org", fixtureTags())
	h, err := Open(file)
	require.NoError(t, err)
	t.Cleanup(func() { h.Close() })
	return h
}

func TestOpenChecksSchema(t *testing.T) {
	h := openFixture(t)
	assert.Equal(t, "1.0", h.Schema)
	assert.Equal(t, "example.org", h.FQRN)

	file := filepath.Join(t.TempDir(), "history.db")
	testutil.CreateHistory(t, file, "2.0", "example.org", nil)
	_, err := Open(file)
	var initErr cvmfs.ErrHistoryInitialization
	require.ErrorAs(t, err, &initErr)
	assert.Equal(t, "2.0", initErr.Schema)
}

func TestListTags(t *testing.T) {
	h := openFixture(t)

	tags, err := h.ListTags()
	require.NoError(t, err)
	require.Len(t, tags, 3)
	// newest first
	assert.Equal(t, "trunk", tags[0].Name)
	assert.Equal(t, "initial", tags[2].Name)
}

func TestGetTagByName(t *testing.T) {
	h := openFixture(t)

	tag, err := h.GetTagByName("stable")
	require.NoError(t, err)
	assert.Equal(t, "2222", tag.Hash)
	assert.EqualValues(t, 4, tag.Revision)

	_, err = h.GetTagByName("nope")
	assert.ErrorAs(t, err, &cvmfs.ErrTagNotFound{})
}

func TestGetTagByRevision(t *testing.T) {
	h := openFixture(t)

	tag, err := h.GetTagByRevision(7)
	require.NoError(t, err)
	assert.Equal(t, "trunk", tag.Name)

	_, err = h.GetTagByRevision(5)
	assert.ErrorAs(t, err, &cvmfs.ErrTagNotFound{})
}

func TestGetTagByDateIsStrict(t *testing.T) {
	h := openFixture(t)

	// strictly greater: a tag's own timestamp selects the next tag
	tag, err := h.GetTagByDate(2000)
	require.NoError(t, err)
	assert.Equal(t, "trunk", tag.Name)

	tag, err = h.GetTagByDate(999)
	require.NoError(t, err)
	assert.Equal(t, "initial", tag.Name)

	_, err = h.GetTagByDate(3000)
	assert.ErrorAs(t, err, &cvmfs.ErrTagNotFound{})
}
