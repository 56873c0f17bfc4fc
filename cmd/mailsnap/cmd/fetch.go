package cmd

import (
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/amodell/mailsnap/internal/cache"
	"github.com/amodell/mailsnap/internal/loader"
)

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Fetch the current snapshot from the mail server",
	Long: `Fetch the snapshot manifest and materialize the snapshot database
locally. The content cache is consulted first; a cache hit skips the
network entirely.

Other commands fetch on demand, so running fetch explicitly is only needed
to warm the cache or to verify connectivity.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg.Snapshot.ManifestURL == "" {
			return fmt.Errorf("no manifest_url configured (run 'mailsnap setup')")
		}

		var contentCache *cache.Store
		if !cfg.Cache.Disabled {
			c, err := cache.Open(cfg.Cache.Dir)
			if err != nil {
				logger.Warn("content cache unavailable", "dir", cfg.Cache.Dir, "error", err)
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
			return fmt.Errorf("create loader: %w", err)
		}

		m, err := l.LoadManifest(cmd.Context())
		if err != nil {
			return fmt.Errorf("load manifest: %w", err)
		}

		snap, err := l.Load(cmd.Context(), m)
		if err != nil {
			return fmt.Errorf("load snapshot: %w", err)
		}
		// Fetch exists to warm the cache, so wait for the write-back here.
		l.WaitCacheWrites()

		fmt.Printf("Snapshot ready (%s)\n", snap.Source)
		fmt.Printf("  Path: %s\n", snap.Path)
		fmt.Printf("  Size: %.2f MB\n", float64(snap.Size)/(1024*1024))
		if snap.Manifest.Database.SHA256 != "" {
			fmt.Printf("  SHA256: %s\n", snap.Manifest.Database.SHA256)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(fetchCmd)
}
