package fetcher

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/klauspost/compress/zlib"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cvmfs "github.com/cernvm/go-cvmfs"
)

func deflate(t *testing.T, p []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zlib.NewWriter(&buf)
	_, err := zw.Write(p)
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func TestRetrieveFileMissThenHit(t *testing.T) {
	var gets atomic.Int32
	content := []byte("decompressed object payload")
	compressed := deflate(t, content)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/data/ab/cdefC" {
			http.NotFound(w, r)
			return
		}
		gets.Add(1)
		w.Write(compressed)
	}))
	defer srv.Close()

	f, err := New(srv.URL, t.TempDir())
	require.NoError(t, err)

	path, err := f.RetrieveFile(context.Background(), "data/ab/cdefC")
	require.NoError(t, err)
	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, content, got)
	assert.EqualValues(t, 1, gets.Load())

	// second retrieval must be served from the cache without a GET
	again, err := f.RetrieveFile(context.Background(), "data/ab/cdefC")
	require.NoError(t, err)
	assert.Equal(t, path, again)
	assert.EqualValues(t, 1, gets.Load())
}

func TestRetrieveRawFileIsUnconditional(t *testing.T) {
	var gets atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gets.Add(1)
		w.Write([]byte("N example.org\n"))
	}))
	defer srv.Close()

	f, err := New(srv.URL, t.TempDir())
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		path, err := f.RetrieveRawFile(context.Background(), ".cvmfspublished")
		require.NoError(t, err)
		got, err := os.ReadFile(path)
		require.NoError(t, err)
		// bytes are stored verbatim, no decompression
		assert.Equal(t, []byte("N example.org\n"), got)
	}
	assert.EqualValues(t, 2, gets.Load())
}

func TestLocalDirectorySource(t *testing.T) {
	src := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(src, "data", "ab"), 0o755))
	require.NoError(t, os.WriteFile(
		filepath.Join(src, "data", "ab", "cdef"),
		deflate(t, []byte("local object")), 0o644))

	f, err := New(src, t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, "file://"+src, f.Source())

	path, err := f.RetrieveFile(context.Background(), "data/ab/cdef")
	require.NoError(t, err)
	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, []byte("local object"), got)
}

func TestRetrieveFileFailures(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/data/00/garbage":
			w.Write([]byte("this is not zlib"))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	f, err := New(srv.URL, t.TempDir())
	require.NoError(t, err)

	_, err = f.RetrieveFile(context.Background(), "data/00/missing")
	var retrieval cvmfs.ErrRetrieval
	require.ErrorAs(t, err, &retrieval)
	assert.Equal(t, "data/00/missing", retrieval.Name)

	_, err = f.RetrieveFile(context.Background(), "data/00/garbage")
	require.ErrorAs(t, err, &retrieval)

	// a failed fetch leaves nothing behind in the cache
	_, ok := f.Cache().Get("data/00/garbage")
	assert.False(t, ok)
}
