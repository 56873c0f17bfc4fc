// Package loader fetches snapshot manifests and database bytes over HTTP,
// reading through the local content cache when one is available.
package loader

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/sync/errgroup"

	"github.com/amodell/mailsnap/internal/cache"
	"github.com/amodell/mailsnap/internal/manifest"
)

// ErrFetchFailed indicates a manifest or database fetch did not complete.
// It is fatal to the load: there is no partial result and no built-in retry.
var ErrFetchFailed = eris.New("fetch failed")

// chunkFetchConcurrency bounds parallel chunk downloads. Chunks are
// reassembled by index, so download order does not matter.
const chunkFetchConcurrency = 4

// Snapshot is a loaded, locally materialized snapshot database.
type Snapshot struct {
	Manifest *manifest.Manifest
	Path     string // local path of the database file
	Source   string // "cache" or "network"
	Size     int64
}

// Loader fetches snapshots described by a manifest URL.
type Loader struct {
	manifestURL *url.URL
	client      *http.Client
	cache       *cache.Store // nil when caching is disabled
	workDir     string
	logger      *slog.Logger

	cacheWrites sync.WaitGroup
}

// Options configures a Loader.
type Options struct {
	// ManifestURL locates the manifest; database paths in the manifest are
	// resolved relative to it.
	ManifestURL string
	// Cache is the content cache, or nil to disable caching.
	Cache *cache.Store
	// WorkDir receives network-fetched snapshots that bypass the cache.
	WorkDir string
	Client  *http.Client
	Logger  *slog.Logger
}

// New creates a Loader.
func New(opts Options) (*Loader, error) {
	u, err := url.Parse(opts.ManifestURL)
	if err != nil {
		return nil, fmt.Errorf("parse manifest URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("manifest URL scheme must be http or https, got %q", u.Scheme)
	}

	client := opts.Client
	if client == nil {
		client = &http.Client{Timeout: 60 * time.Second}
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	workDir := opts.WorkDir
	if workDir == "" {
		workDir = os.TempDir()
	}

	return &Loader{
		manifestURL: u,
		client:      client,
		cache:       opts.Cache,
		workDir:     workDir,
		logger:      logger,
	}, nil
}

// LoadManifest fetches and decodes the snapshot manifest.
func (l *Loader) LoadManifest(ctx context.Context) (*manifest.Manifest, error) {
	body, err := l.fetch(ctx, l.manifestURL.String())
	if err != nil {
		return nil, err
	}
	defer body.Close()

	m, err := manifest.Decode(body)
	if err != nil {
		return nil, eris.Wrapf(ErrFetchFailed, "manifest: %v", err)
	}
	return m, nil
}

// Load materializes the snapshot database described by m. The cache is
// consulted first; on a miss the bytes are fetched from the network,
// verified, written to the work directory, and opportunistically written
// back to the cache without blocking the caller.
func (l *Loader) Load(ctx context.Context, m *manifest.Manifest) (*Snapshot, error) {
	key, keyed := m.CacheKey()

	if l.cache != nil && keyed {
		if path, ok := l.cache.Get(key); ok {
			info, err := os.Stat(path)
			if err == nil {
				l.logger.Debug("snapshot cache hit", "key", key, "bytes", info.Size())
				return &Snapshot{Manifest: m, Path: path, Source: "cache", Size: info.Size()}, nil
			}
		}
	}

	data, err := l.fetchDatabase(ctx, m)
	if err != nil {
		return nil, err
	}

	if m.Database.SHA256 != "" {
		sum := sha256.Sum256(data)
		if got := hex.EncodeToString(sum[:]); got != m.Database.SHA256 {
			return nil, eris.Wrapf(ErrFetchFailed, "checksum mismatch: manifest %s, fetched %s", m.Database.SHA256, got)
		}
	}

	path := filepath.Join(l.workDir, m.BaseName())
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return nil, fmt.Errorf("write snapshot: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return nil, fmt.Errorf("commit snapshot: %w", err)
	}

	if l.cache != nil && keyed {
		// Best effort: a failed cache write costs a refetch next session,
		// nothing more, and must not delay presentation.
		l.cacheWrites.Add(1)
		go func() {
			defer l.cacheWrites.Done()
			if err := l.cache.Put(key, data); err != nil {
				l.logger.Warn("snapshot cache write failed", "key", key, "error", err)
			}
		}()
	}

	return &Snapshot{Manifest: m, Path: path, Source: "network", Size: int64(len(data))}, nil
}

// WaitCacheWrites blocks until pending write-backs settle. Used on shutdown
// and in tests; normal operation never waits.
func (l *Loader) WaitCacheWrites() {
	l.cacheWrites.Wait()
}

// fetchDatabase retrieves the snapshot bytes, either as a single file or by
// assembling ordered chunks.
func (l *Loader) fetchDatabase(ctx context.Context, m *manifest.Manifest) ([]byte, error) {
	if m.Database.Chunks == nil {
		return l.fetchAll(ctx, m.Database.Path)
	}

	paths := m.Database.Chunks.ChunkPaths()
	parts := make([][]byte, len(paths))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(chunkFetchConcurrency)
	for i, p := range paths {
		g.Go(func() error {
			data, err := l.fetchAll(gctx, p)
			if err != nil {
				return err
			}
			parts[i] = data
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var total int
	for _, p := range parts {
		total += len(p)
	}
	out := make([]byte, 0, total)
	for _, p := range parts {
		out = append(out, p...)
	}
	l.logger.Debug("assembled chunked snapshot", "chunks", len(parts), "bytes", total)
	return out, nil
}

// fetchAll fetches a manifest-relative path and reads the whole body.
func (l *Loader) fetchAll(ctx context.Context, path string) ([]byte, error) {
	ref, err := url.Parse(path)
	if err != nil {
		return nil, eris.Wrapf(ErrFetchFailed, "bad path %q: %v", path, err)
	}
	body, err := l.fetch(ctx, l.manifestURL.ResolveReference(ref).String())
	if err != nil {
		return nil, err
	}
	defer body.Close()

	data, err := io.ReadAll(body)
	if err != nil {
		return nil, eris.Wrapf(ErrFetchFailed, "read %q: %v", path, err)
	}
	return data, nil
}

// fetch issues a GET and returns the body. Any non-2xx status is a fatal
// FetchFailed; there is no partial result.
func (l *Loader) fetch(ctx context.Context, rawURL string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, eris.Wrapf(ErrFetchFailed, "create request: %v", err)
	}

	resp, err := l.client.Do(req)
	if err != nil {
		return nil, eris.Wrapf(ErrFetchFailed, "GET %s: %v", rawURL, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		resp.Body.Close()
		return nil, eris.Wrapf(ErrFetchFailed, "GET %s: status %d", rawURL, resp.StatusCode)
	}
	return resp.Body, nil
}
