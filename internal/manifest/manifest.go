// Package manifest decodes snapshot manifests and derives cache keys
// and chunk paths from them.
package manifest

import (
	"encoding/json"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"
)

// Manifest describes a snapshot export: where the database file lives,
// how to verify it, and whether it was split into chunks.
type Manifest struct {
	Database Database `json:"database"`
}

// Database is the database section of a snapshot manifest.
type Database struct {
	Path       string         `json:"path"`
	SHA256     string         `json:"sha256,omitempty"`
	SizeBytes  int64          `json:"size_bytes,omitempty"`
	FTSEnabled bool           `json:"fts_enabled"`
	Chunks     *ChunkManifest `json:"chunk_manifest,omitempty"`
}

// ChunkManifest describes a database split into ordered byte chunks.
// Pattern contains an {index} placeholder, optionally zero-padded as
// {index:0Nd}.
type ChunkManifest struct {
	Pattern    string `json:"pattern"`
	ChunkCount int    `json:"chunk_count"`
}

// Decode reads a manifest from r and validates the fields the loader
// depends on.
func Decode(r io.Reader) (*Manifest, error) {
	var m Manifest
	if err := json.NewDecoder(r).Decode(&m); err != nil {
		return nil, fmt.Errorf("decode manifest: %w", err)
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

// Validate checks structural requirements: a database path, and a usable
// chunk manifest when one is present.
func (m *Manifest) Validate() error {
	if m.Database.Path == "" {
		return fmt.Errorf("manifest: database.path is required")
	}
	if c := m.Database.Chunks; c != nil {
		if c.ChunkCount <= 0 {
			return fmt.Errorf("manifest: chunk_count must be positive, got %d", c.ChunkCount)
		}
		if !indexPlaceholder.MatchString(c.Pattern) {
			return fmt.Errorf("manifest: chunk pattern %q has no {index} placeholder", c.Pattern)
		}
	}
	return nil
}

// CacheKey returns the content key for this snapshot. The sha256 digest is
// preferred; without one, path plus size is a weaker but workable stand-in.
// ok is false when neither is available, which disables caching for the load.
func (m *Manifest) CacheKey() (key string, ok bool) {
	if m.Database.SHA256 != "" {
		return m.Database.SHA256, true
	}
	if m.Database.SizeBytes > 0 {
		return m.Database.Path + ":" + strconv.FormatInt(m.Database.SizeBytes, 10), true
	}
	return "", false
}

// indexPlaceholder matches {index} or {index:0Nd} where N is the pad width.
var indexPlaceholder = regexp.MustCompile(`\{index(?::0(\d+)d)?\}`)

// ChunkPath renders the chunk path for the given zero-based index.
func (c *ChunkManifest) ChunkPath(index int) string {
	return indexPlaceholder.ReplaceAllStringFunc(c.Pattern, func(match string) string {
		sub := indexPlaceholder.FindStringSubmatch(match)
		if sub[1] == "" {
			return strconv.Itoa(index)
		}
		width, _ := strconv.Atoi(sub[1])
		return fmt.Sprintf("%0*d", width, index)
	})
}

// ChunkPaths renders every chunk path in fetch order.
func (c *ChunkManifest) ChunkPaths() []string {
	paths := make([]string, c.ChunkCount)
	for i := range paths {
		paths[i] = c.ChunkPath(i)
	}
	return paths
}

// BaseName returns the final path component of the database path, used to
// name locally materialized copies.
func (m *Manifest) BaseName() string {
	p := m.Database.Path
	if i := strings.LastIndexByte(p, '/'); i >= 0 {
		p = p[i+1:]
	}
	if p == "" {
		p = "snapshot.db"
	}
	return p
}
