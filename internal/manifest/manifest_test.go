package manifest

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestDecode(t *testing.T) {
	input := `{
		"database": {
			"path": "exports/mailbox.db",
			"sha256": "abc123",
			"size_bytes": 4096,
			"fts_enabled": true,
			"chunk_manifest": {"pattern": "exports/mailbox.db.{index:04d}", "chunk_count": 3}
		}
	}`

	m, err := Decode(strings.NewReader(input))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}

	want := &Manifest{Database: Database{
		Path:       "exports/mailbox.db",
		SHA256:     "abc123",
		SizeBytes:  4096,
		FTSEnabled: true,
		Chunks:     &ChunkManifest{Pattern: "exports/mailbox.db.{index:04d}", ChunkCount: 3},
	}}
	if diff := cmp.Diff(want, m); diff != "" {
		t.Errorf("manifest mismatch (-want +got):\n%s", diff)
	}
}

func TestDecodeErrors(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"missing path", `{"database": {"sha256": "abc"}}`},
		{"bad chunk count", `{"database": {"path": "a.db", "chunk_manifest": {"pattern": "a.{index}", "chunk_count": 0}}}`},
		{"no placeholder", `{"database": {"path": "a.db", "chunk_manifest": {"pattern": "a.part", "chunk_count": 2}}}`},
		{"malformed json", `{"database":`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Decode(strings.NewReader(tt.input)); err == nil {
				t.Error("expected error, got nil")
			}
		})
	}
}

func TestCacheKey(t *testing.T) {
	tests := []struct {
		name    string
		db      Database
		wantKey string
		wantOK  bool
	}{
		{"sha256 preferred", Database{Path: "a.db", SHA256: "deadbeef", SizeBytes: 10}, "deadbeef", true},
		{"path:size fallback", Database{Path: "a.db", SizeBytes: 10}, "a.db:10", true},
		{"no key available", Database{Path: "a.db"}, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := &Manifest{Database: tt.db}
			key, ok := m.CacheKey()
			if key != tt.wantKey || ok != tt.wantOK {
				t.Errorf("CacheKey() = (%q, %v), want (%q, %v)", key, ok, tt.wantKey, tt.wantOK)
			}
		})
	}
}

func TestChunkPath(t *testing.T) {
	tests := []struct {
		pattern string
		index   int
		want    string
	}{
		{"db.{index}", 0, "db.0"},
		{"db.{index}", 12, "db.12"},
		{"db.{index:04d}", 7, "db.0007"},
		{"db.{index:02d}", 123, "db.123"},
	}
	for _, tt := range tests {
		c := &ChunkManifest{Pattern: tt.pattern, ChunkCount: 1}
		if got := c.ChunkPath(tt.index); got != tt.want {
			t.Errorf("ChunkPath(%q, %d) = %q, want %q", tt.pattern, tt.index, got, tt.want)
		}
	}
}

func TestChunkPaths(t *testing.T) {
	c := &ChunkManifest{Pattern: "part-{index:03d}", ChunkCount: 3}
	got := c.ChunkPaths()
	want := []string{"part-000", "part-001", "part-002"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("ChunkPaths mismatch (-want +got):\n%s", diff)
	}
}

func TestBaseName(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"exports/mailbox.db", "mailbox.db"},
		{"mailbox.db", "mailbox.db"},
		{"", "snapshot.db"},
	}
	for _, tt := range tests {
		m := &Manifest{Database: Database{Path: tt.path}}
		if got := m.BaseName(); got != tt.want {
			t.Errorf("BaseName(%q) = %q, want %q", tt.path, got, tt.want)
		}
	}
}
