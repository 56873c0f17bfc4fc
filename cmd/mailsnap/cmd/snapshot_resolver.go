package cmd

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/amodell/mailsnap/internal/cache"
	"github.com/amodell/mailsnap/internal/loader"
	"github.com/amodell/mailsnap/internal/store"
)

// openSnapshot materializes the current snapshot and opens it read-only.
// With --snapshot the given file is opened directly; otherwise the manifest
// is fetched and the database is read through the content cache.
func openSnapshot(ctx context.Context) (*store.Store, error) {
	path, err := resolveSnapshot(ctx)
	if err != nil {
		return nil, err
	}
	return store.Open(path)
}

func resolveSnapshot(ctx context.Context) (string, error) {
	if snapshotFile != "" {
		return snapshotFile, nil
	}

	if cfg.Snapshot.ManifestURL == "" {
		return "", fmt.Errorf(`no snapshot source configured

Either point at a local snapshot file:
  mailsnap --snapshot /path/to/snapshot.db <command>

Or configure the manifest endpoint (run 'mailsnap setup', or edit %s):
  [snapshot]
  manifest_url = "https://mail.example.com/snapshots/manifest.json"`, cfg.ConfigFilePath())
	}

	var contentCache *cache.Store
	if !cfg.Cache.Disabled {
		c, err := cache.Open(cfg.Cache.Dir)
		if err != nil {
			logger.Warn("content cache unavailable, fetching without it", "dir", cfg.Cache.Dir, "error", err)
		} else {
			contentCache = c
		}
	}

	l, err := loader.New(loader.Options{
		ManifestURL: cfg.Snapshot.ManifestURL,
		Cache:       contentCache,
		WorkDir:     cfg.WorkDir(),
		Client:      &http.Client{Timeout: time.Duration(cfg.Snapshot.Timeout) * time.Second},
		Logger:      logger,
	})
	if err != nil {
		return "", fmt.Errorf("create loader: %w", err)
	}

	m, err := l.LoadManifest(ctx)
	if err != nil {
		return "", fmt.Errorf("load manifest: %w", err)
	}

	snap, err := l.Load(ctx, m)
	if err != nil {
		return "", fmt.Errorf("load snapshot: %w", err)
	}
	logger.Debug("snapshot ready", "source", snap.Source, "path", snap.Path, "bytes", snap.Size)

	// Short-lived commands exit right after querying; the async cache
	// write-back must land before the process does.
	l.WaitCacheWrites()

	return snap.Path, nil
}
