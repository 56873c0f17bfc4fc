package cmd

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/amodell/mailsnap/internal/api"
	"github.com/amodell/mailsnap/internal/query"
	"github.com/amodell/mailsnap/internal/search"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the snapshot over a read-only HTTP API",
	Long: `Serve the current snapshot over a local HTTP API.

Endpoints (under /api/v1, GET only):
  /stats                Snapshot statistics
  /threads              Thread roll-up rows
  /threads/{key}        Messages of one thread
  /messages             Paginated message list
  /messages/{id}        One message with its full body
  /search?q=...         Boolean search

Set [server].api_key in config.toml to require authentication. The server
binds to 127.0.0.1 only.

Use Ctrl+C to stop.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openSnapshot(cmd.Context())
		if err != nil {
			return fmt.Errorf("open snapshot: %w", err)
		}
		defer s.Close()

		engine := query.NewSQLiteEngine(s.DB())
		searcher := search.NewSearcher(s.DB(), s.HasFTS(), logger)

		server := api.NewServer(cfg, engine, searcher, s, logger)

		serverErr := make(chan error, 1)
		go func() {
			if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				serverErr <- err
			}
		}()

		fmt.Printf("mailsnap API server started\n")
		fmt.Printf("  Address:  http://%s\n", net.JoinHostPort("127.0.0.1", strconv.Itoa(cfg.Server.APIPort)))
		fmt.Printf("  Snapshot: %s\n", s.Path())
		fmt.Println()
		fmt.Println("Press Ctrl+C to stop.")

		select {
		case <-cmd.Context().Done():
			logger.Info("shutting down")
		case err := <-serverErr:
			return fmt.Errorf("api server: %w", err)
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("api server shutdown", "error", err)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
