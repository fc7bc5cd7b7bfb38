// Package fetcher resolves logical object names to local file paths,
// downloading and decompressing objects from the repository source on cache
// miss. The source is either an HTTP(S) URL prefix or a local directory.
package fetcher

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/hashicorp/go-retryablehttp"
	"github.com/klauspost/compress/zlib"

	cvmfs "github.com/cernvm/go-cvmfs"
	"github.com/cernvm/go-cvmfs/cache"
	"github.com/cernvm/go-cvmfs/internal/dcontext"
)

const defaultRetryMax = 2

// Fetcher retrieves repository objects into a local content-addressed
// cache. Writes go to a temporary name and are renamed into place, so
// concurrent fetchers racing on the same object converge on identical
// bytes.
type Fetcher struct {
	cache  *cache.Cache
	source string
	client *retryablehttp.Client
}

// New constructs a Fetcher for the given source and cache directory. A
// source naming an existing local directory is treated as a file:// URL;
// anything else is used verbatim as an HTTP(S) prefix. The cache directory
// structure is created eagerly.
func New(source, cacheDirectory string) (*Fetcher, error) {
	if fi, err := os.Stat(source); err == nil && fi.IsDir() {
		source = "file://" + source
	}

	c := cache.New(cacheDirectory)
	if err := c.Initialize(); err != nil {
		return nil, fmt.Errorf("%w: %v", cvmfs.ErrCacheDirectoryNotFound, err)
	}

	client := retryablehttp.NewClient()
	client.RetryMax = defaultRetryMax
	client.Logger = nil

	return &Fetcher{
		cache:  c,
		source: strings.TrimRight(source, "/"),
		client: client,
	}, nil
}

// Cache exposes the underlying object store, for eviction.
func (f *Fetcher) Cache() *cache.Cache {
	return f.cache
}

// Source returns the normalised source prefix.
func (f *Fetcher) Source() string {
	return f.source
}

// RetrieveFile returns the local path of the decompressed object with the
// given logical name, downloading it on cache miss.
func (f *Fetcher) RetrieveFile(ctx context.Context, name string) (string, error) {
	if path, ok := f.cache.Get(name); ok {
		return path, nil
	}

	dcontext.GetLoggerWithField(ctx, "object", name).Debug("cache miss, fetching")

	body, err := f.open(ctx, name)
	if err != nil {
		return "", cvmfs.ErrRetrieval{Name: name, Reason: err}
	}
	defer body.Close()

	zr, err := zlib.NewReader(body)
	if err != nil {
		return "", cvmfs.ErrRetrieval{Name: name, Reason: err}
	}
	defer zr.Close()

	if err := f.store(name, zr); err != nil {
		return "", cvmfs.ErrRetrieval{Name: name, Reason: err}
	}

	path, ok := f.cache.Get(name)
	if !ok {
		return "", cvmfs.ErrRetrieval{Name: name, Reason: fmt.Errorf("stored object missing")}
	}
	return path, nil
}

// RetrieveRawFile downloads the named file unconditionally and stores its
// bytes verbatim, without decompression. Used for the manifest, whitelist
// and replication sentinels, which are not compressed and must always be
// fetched fresh.
func (f *Fetcher) RetrieveRawFile(ctx context.Context, name string) (string, error) {
	body, err := f.open(ctx, name)
	if err != nil {
		return "", cvmfs.ErrRetrieval{Name: name, Reason: err}
	}
	defer body.Close()

	if err := f.store(name, body); err != nil {
		return "", cvmfs.ErrRetrieval{Name: name, Reason: err}
	}

	path, ok := f.cache.Get(name)
	if !ok {
		return "", cvmfs.ErrRetrieval{Name: name, Reason: fmt.Errorf("stored file missing")}
	}
	return path, nil
}

// open returns a reader over the remote bytes of name.
func (f *Fetcher) open(ctx context.Context, name string) (io.ReadCloser, error) {
	url := f.source + "/" + name

	if local, ok := strings.CutPrefix(url, "file://"); ok {
		return os.Open(filepath.FromSlash(local))
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("unexpected status %s for %s", resp.Status, url)
	}
	return resp.Body, nil
}

// store writes r to the cache path for name via a temporary file and
// rename.
func (f *Fetcher) store(name string, r io.Reader) error {
	target := f.cache.Add(name)
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return err
	}

	tempPath := fmt.Sprintf("%s.%s.tmp", target, uuid.NewString())
	tmp, err := os.OpenFile(tempPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return err
	}

	if _, err := io.Copy(tmp, r); err != nil {
		tmp.Close()
		os.Remove(tempPath)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tempPath)
		return err
	}

	return os.Rename(tempPath, target)
}
