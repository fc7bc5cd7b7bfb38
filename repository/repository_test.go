package repository

import (
	"bytes"
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/klauspost/compress/zlib"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cvmfs "github.com/cernvm/go-cvmfs"
	"github.com/cernvm/go-cvmfs/fetcher"
	"github.com/cernvm/go-cvmfs/testutil"
)

const (
	rootCatalogHash   = "1000000000000000000000000000000000000001"
	nestedCatalogHash = "2000000000000000000000000000000000000002"
	historyHash       = "3000000000000000000000000000000000000003"
	fooObjectHash     = "aabbccddeeff00112233445566778899aabbccdd"
	chunk0Hash        = "0102030405060708090a0b0c0d0e0f1011121314"
	chunk1Hash        = "2122232425262728292a2b2c2d2e2f3031323334"
)

// server is a repository laid out in a local directory, consumed through
// the fetcher's file:// source handling.
type server struct {
	dir string
}

func newServer(t *testing.T) *server {
	t.Helper()
	return &server{dir: t.TempDir()}
}

func (s *server) writeRaw(t *testing.T, name string, content []byte) {
	t.Helper()
	path := filepath.Join(s.dir, filepath.FromSlash(name))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, content, 0o644))
}

// writeObject stores content zlib-compressed under its object path, as on
// the wire.
func (s *server) writeObject(t *testing.T, contentHash string, kind cvmfs.ObjectKind, content []byte) {
	t.Helper()
	var buf bytes.Buffer
	zw := zlib.NewWriter(&buf)
	_, err := zw.Write(content)
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	s.writeRaw(t, cvmfs.ObjectPath(contentHash, kind), buf.Bytes())
}

func (s *server) writeManifest(t *testing.T, lines ...string) {
	t.Helper()
	body := strings.Join(lines, "\n") + "\n"
	signed := fmt.Sprintf("%s--\n%x\n", body, sha1.Sum([]byte(body)))
	s.writeRaw(t, cvmfs.ManifestName, []byte(signed))
}

func catalogBytes(t *testing.T, spec testutil.CatalogSpec) []byte {
	t.Helper()
	file := filepath.Join(t.TempDir(), "catalog.db")
	testutil.CreateCatalog(t, file, spec)
	raw, err := os.ReadFile(file)
	require.NoError(t, err)
	return raw
}

// singleCatalogServer publishes one root catalog with /foo (file, "abc"),
// /bar (empty directory) and /big (chunked, "0123456789" over 4+6 bytes).
func singleCatalogServer(t *testing.T, manifestExtra ...string) *server {
	t.Helper()
	s := newServer(t)

	fooHashBytes := hexBytes(fooObjectHash)
	c0 := hexBytes(chunk0Hash)
	c1 := hexBytes(chunk1Hash)

	s.writeObject(t, rootCatalogHash, cvmfs.KindCatalog, catalogBytes(t, testutil.CatalogSpec{
		Properties: map[string]string{"revision": "7"},
		Entries: []testutil.EntrySpec{
			{Path: "/", Flags: cvmfs.FlagDirectory, Mode: 0o755},
			{Path: "/bar", Flags: cvmfs.FlagDirectory, Mode: 0o755},
			{Path: "/foo", Flags: cvmfs.FlagFile, Hash: fooHashBytes, Size: 3, Mode: 0o644},
			{
				Path:  "/big",
				Flags: cvmfs.FlagFile | cvmfs.FlagFileChunk,
				Size:  10,
				Mode:  0o644,
				Chunks: []testutil.ChunkSpec{
					{Offset: 0, Size: 4, Hash: c0},
					{Offset: 4, Size: 6, Hash: c1},
				},
			},
		},
	}))
	s.writeObject(t, fooObjectHash, cvmfs.KindData, []byte("abc"))
	s.writeObject(t, chunk0Hash, cvmfs.KindData, []byte("0123"))
	s.writeObject(t, chunk1Hash, cvmfs.KindData, []byte("456789"))

	lines := append([]string{
		"C" + rootCatalogHash,
		"B42",
		"T1700000000000",
		"D240",
		"S7",
		"Nexample.org",
	}, manifestExtra...)
	s.writeManifest(t, lines...)
	return s
}

func hexBytes(s string) []byte {
	b, err := hex.DecodeString(s)
	if err != nil {
		panic(err)
	}
	return b
}

func openRepository(t *testing.T, s *server) *Repository {
	t.Helper()
	f, err := fetcher.New(s.dir, t.TempDir())
	require.NoError(t, err)
	r, err := New(context.Background(), f)
	require.NoError(t, err)
	t.Cleanup(func() { r.Close() })
	return r
}

func TestStartupSynthesizesTagWithoutHistory(t *testing.T) {
	r := openRepository(t, singleCatalogServer(t))

	assert.Equal(t, "example.org", r.FQRN())
	assert.EqualValues(t, 7, r.Manifest().Revision)

	tag, err := r.CurrentTag(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "trunk", tag.Name)
	assert.Equal(t, rootCatalogHash, tag.Hash)
	assert.EqualValues(t, 7, tag.Revision)

	_, err = r.History(context.Background())
	assert.ErrorIs(t, err, cvmfs.ErrNoHistory)
}

func TestLookupSingleCatalog(t *testing.T) {
	r := openRepository(t, singleCatalogServer(t))
	ctx := context.Background()

	entry, err := r.Lookup(ctx, "/foo")
	require.NoError(t, err)
	assert.True(t, entry.IsFile())
	assert.EqualValues(t, 3, entry.Size)

	root, err := r.Lookup(ctx, "/")
	require.NoError(t, err)
	assert.True(t, root.IsDirectory())

	_, err = r.Lookup(ctx, "/missing")
	var notFound cvmfs.ErrFileNotFound
	assert.ErrorAs(t, err, &notFound)

	entry, ok, err := r.LookupOpt(ctx, "/missing")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, entry)
}

func TestListDirectory(t *testing.T) {
	r := openRepository(t, singleCatalogServer(t))
	ctx := context.Background()

	entries, err := r.ListDirectory(ctx, "/")
	require.NoError(t, err)
	names := make([]string, len(entries))
	for i, entry := range entries {
		names[i] = entry.Name
	}
	assert.Equal(t, []string{"bar", "big", "foo"}, names)

	entries, err = r.ListDirectory(ctx, "/bar")
	require.NoError(t, err)
	assert.Empty(t, entries)

	_, err = r.ListDirectory(ctx, "/foo")
	var notDir cvmfs.ErrNotADirectory
	assert.ErrorAs(t, err, &notDir)
}

func TestGetFilePlain(t *testing.T) {
	r := openRepository(t, singleCatalogServer(t))
	ctx := context.Background()

	file, err := r.GetFile(ctx, "/foo")
	require.NoError(t, err)
	defer file.Close()

	content, err := io.ReadAll(file)
	require.NoError(t, err)
	assert.Equal(t, []byte("abc"), content)
	assert.NotZero(t, file.FD())

	// a directory is not materialisable
	_, err = r.GetFile(ctx, "/bar")
	var notFile cvmfs.ErrNotAFile
	assert.ErrorAs(t, err, &notFile)
}

func TestGetFileChunked(t *testing.T) {
	r := openRepository(t, singleCatalogServer(t))
	ctx := context.Background()

	file, err := r.GetFile(ctx, "/big")
	require.NoError(t, err)
	defer file.Close()

	content, err := io.ReadAll(file)
	require.NoError(t, err)
	assert.Equal(t, []byte("0123456789"), content)

	// seek into the second chunk
	_, err = file.Seek(5, io.SeekStart)
	require.NoError(t, err)
	buf := make([]byte, 3)
	n, err := file.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, []byte("567"), buf)
}

func TestNestedCatalogDescent(t *testing.T) {
	s := newServer(t)

	s.writeObject(t, rootCatalogHash, cvmfs.KindCatalog, catalogBytes(t, testutil.CatalogSpec{
		Properties: map[string]string{"revision": "7"},
		Entries: []testutil.EntrySpec{
			{Path: "/", Flags: cvmfs.FlagDirectory, Mode: 0o755},
			{Path: "/a", Flags: cvmfs.FlagDirectory, Mode: 0o755},
			{Path: "/a/b", Flags: cvmfs.FlagDirectory | cvmfs.FlagNestedCatalogMountpoint, Mode: 0o755},
			{Path: "/a/bx", Flags: cvmfs.FlagFile, Hash: []byte{0xca, 0xfe}, Size: 2, Mode: 0o644},
		},
		Nested: []testutil.NestedSpec{
			{Path: "/a/b", Hash: nestedCatalogHash},
		},
	}))
	s.writeObject(t, nestedCatalogHash, cvmfs.KindCatalog, catalogBytes(t, testutil.CatalogSpec{
		Properties: map[string]string{"revision": "7", "root_prefix": "/a/b"},
		Entries: []testutil.EntrySpec{
			{Path: "/a/b", Flags: cvmfs.FlagDirectory | cvmfs.FlagNestedCatalogRoot, Mode: 0o755},
			{Path: "/a/b/c", Flags: cvmfs.FlagFile, Hash: []byte{0xbe, 0xef}, Size: 5, Mode: 0o644},
		},
	}))
	s.writeManifest(t, "C"+rootCatalogHash, "S7", "Nexample.org", "T1700000000000")

	r := openRepository(t, s)
	ctx := context.Background()

	// resolution follows the nested catalog
	entry, err := r.Lookup(ctx, "/a/b/c")
	require.NoError(t, err)
	assert.True(t, entry.IsFile())
	assert.EqualValues(t, 5, entry.Size)

	// the sanitised-prefix check keeps /a/bx in the root catalog
	entry, err = r.Lookup(ctx, "/a/bx")
	require.NoError(t, err)
	assert.True(t, entry.IsFile())
	assert.EqualValues(t, 2, entry.Size)

	// the mountpoint path resolves in the nested catalog as its root
	entry, err = r.Lookup(ctx, "/a/b")
	require.NoError(t, err)
	assert.True(t, entry.IsNestedCatalogRoot())
}

func TestCurrentTagFromHistory(t *testing.T) {
	s := singleCatalogServer(t, "H"+historyHash)

	historyFile := filepath.Join(t.TempDir(), "history.db")
	testutil.CreateHistory(t, historyFile, "1.0", "example.org", []testutil.TagSpec{
		{Name: "initial", Hash: "4000000000000000000000000000000000000004", Revision: 1, Timestamp: 1000},
		{Name: "current", Hash: rootCatalogHash, Revision: 7, Timestamp: 2000},
	})
	raw, err := os.ReadFile(historyFile)
	require.NoError(t, err)
	s.writeObject(t, historyHash, cvmfs.KindHistory, raw)

	r := openRepository(t, s)
	ctx := context.Background()

	tag, err := r.CurrentTag(ctx)
	require.NoError(t, err)
	assert.Equal(t, "current", tag.Name)
	assert.Equal(t, rootCatalogHash, tag.Hash)

	// pinned revision views resolve against their own root
	rev, err := r.GetTag(ctx, "current")
	require.NoError(t, err)
	assert.EqualValues(t, 7, rev.RevisionNumber())
	entry, err := rev.Lookup(ctx, "/foo")
	require.NoError(t, err)
	assert.True(t, entry.IsFile())

	_, err = r.GetRevision(ctx, 99)
	assert.ErrorAs(t, err, &cvmfs.ErrTagNotFound{})
}

func TestReplicationSentinels(t *testing.T) {
	s := singleCatalogServer(t)
	s.writeRaw(t, cvmfs.LastReplicationName, []byte("Tue  3 Jan 15:04:05 UTC 2023\n"))

	r := openRepository(t, s)
	assert.EqualValues(t, time.Date(2023, 1, 3, 15, 4, 5, 0, time.UTC).Unix(),
		r.LastReplication().Unix())

	// no snapshot in flight
	_, replicating := r.ReplicatingSince()
	assert.False(t, replicating)
}

func TestCatalogsAreMemoised(t *testing.T) {
	r := openRepository(t, singleCatalogServer(t))
	ctx := context.Background()

	first, err := r.RetrieveCatalog(ctx, rootCatalogHash)
	require.NoError(t, err)
	second, err := r.RetrieveCatalog(ctx, rootCatalogHash)
	require.NoError(t, err)
	assert.Same(t, first, second)
}

func TestStatistics(t *testing.T) {
	s := newServer(t)
	s.writeObject(t, rootCatalogHash, cvmfs.KindCatalog, catalogBytes(t, testutil.CatalogSpec{
		Properties: map[string]string{"revision": "7"},
		Entries: []testutil.EntrySpec{
			{Path: "/", Flags: cvmfs.FlagDirectory, Mode: 0o755},
		},
		Statistics: map[string]uint64{"subtree_regular": 3, "subtree_dir": 1},
	}))
	s.writeManifest(t, "C"+rootCatalogHash, "S7", "Nexample.org", "T1700000000000")

	r := openRepository(t, s)
	stats, err := r.Statistics(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 3, stats.Regular)
	assert.EqualValues(t, 1, stats.Dir)
}
