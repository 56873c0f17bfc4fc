// Package cache provides a local store for snapshot database bytes. It holds
// a single snapshot at a time: entries are immutable and new content always
// arrives under a new key, so replacing the previous entry on key change
// bounds storage growth without any eviction policy.
package cache

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rotisserie/eris"
)

// ErrUnavailable indicates the cache directory cannot be used at all.
// Callers degrade to network-only loads; this is never fatal.
var ErrUnavailable = eris.New("cache unavailable")

// metadataVersion is bumped when the on-disk entry layout changes.
// Entries with any other version are invalidated unconditionally.
const metadataVersion = 1

const (
	bytesName = "snapshot.db"
	metaName  = "metadata.json"
)

// metadata is the sidecar record written next to the cached entry.
type metadata struct {
	CacheKey string `json:"cacheKey"`
	CachedAt string `json:"cachedAt"`
	Version  int    `json:"version"`
}

// Store is a directory-backed single-entry byte cache keyed by content key.
type Store struct {
	dir string
	now func() time.Time
}

// Open prepares the cache directory. A failure to create or probe the
// directory returns ErrUnavailable so callers can disable caching for the
// session.
func Open(dir string) (*Store, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, eris.Wrap(ErrUnavailable, "empty cache dir")
	}
	clean := filepath.Clean(dir)
	if strings.Contains(clean, "..") {
		return nil, eris.Wrapf(ErrUnavailable, "cache dir %q contains traversal", dir)
	}
	if err := os.MkdirAll(clean, 0o700); err != nil {
		return nil, eris.Wrapf(ErrUnavailable, "create cache dir: %v", err)
	}
	return &Store{dir: clean, now: time.Now}, nil
}

func (s *Store) bytesPath() string { return filepath.Join(s.dir, bytesName) }
func (s *Store) metaPath() string  { return filepath.Join(s.dir, metaName) }

// Get returns the path of the cached bytes for key. A hit requires the
// stored metadata to carry the same key and the current layout version.
// Any mismatch clears the entry so a stale snapshot can never be served
// and the follow-up network load starts from a clean slate.
func (s *Store) Get(key string) (path string, ok bool) {
	raw, err := os.ReadFile(s.metaPath())
	if err != nil {
		return "", false
	}

	var meta metadata
	if err := json.Unmarshal(raw, &meta); err != nil || meta.Version != metadataVersion || meta.CacheKey != key {
		s.Clear()
		return "", false
	}

	p := s.bytesPath()
	if _, err := os.Stat(p); err != nil {
		s.Clear()
		return "", false
	}
	return p, true
}

// Put writes bytes under key and then the sidecar metadata. The metadata is
// written last so a crash mid-write leaves a miss, not a corrupt hit.
func (s *Store) Put(key string, data []byte) error {
	tmp := s.bytesPath() + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write cache entry: %w", err)
	}
	if err := os.Rename(tmp, s.bytesPath()); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("commit cache entry: %w", err)
	}

	meta := metadata{
		CacheKey: key,
		CachedAt: s.now().UTC().Format(time.RFC3339),
		Version:  metadataVersion,
	}
	raw, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("encode cache metadata: %w", err)
	}
	if err := os.WriteFile(s.metaPath(), raw, 0o600); err != nil {
		_ = os.Remove(s.bytesPath())
		return fmt.Errorf("write cache metadata: %w", err)
	}
	return nil
}

// Clear removes the cached entry and its metadata, if present.
func (s *Store) Clear() {
	_ = os.Remove(s.bytesPath())
	_ = os.Remove(s.metaPath())
}

// Dir returns the cache directory.
func (s *Store) Dir() string {
	return s.dir
}
