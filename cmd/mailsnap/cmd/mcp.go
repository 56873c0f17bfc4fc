package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	mcpserver "github.com/amodell/mailsnap/internal/mcp"
	"github.com/amodell/mailsnap/internal/query"
	"github.com/amodell/mailsnap/internal/search"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Run an MCP server over stdio",
	Long: `Start an MCP (Model Context Protocol) server over stdio, exposing the
snapshot to MCP clients through read-only tools: search_messages,
get_message, list_threads, get_thread, and get_stats.

Add to your MCP client config:
  {
    "mcpServers": {
      "mailsnap": {
        "command": "mailsnap",
        "args": ["mcp"]
      }
    }
  }`,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openSnapshot(cmd.Context())
		if err != nil {
			return fmt.Errorf("open snapshot: %w", err)
		}
		defer s.Close()

		engine := query.NewSQLiteEngine(s.DB())
		searcher := search.NewSearcher(s.DB(), s.HasFTS(), logger)

		return mcpserver.Serve(cmd.Context(), engine, searcher, s)
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}
