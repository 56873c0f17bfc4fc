package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/amodell/mailsnap/internal/query"
)

var (
	threadsLimit int
	threadsJSON  bool
)

var threadsCmd = &cobra.Command{
	Use:   "threads",
	Short: "List threads by most recent activity",
	Long: `List one row per thread, newest activity first. Messages without an
explicit thread appear as their own single-message rows under a synthetic
'msg:<id>' key.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openSnapshot(cmd.Context())
		if err != nil {
			return fmt.Errorf("open snapshot: %w", err)
		}
		defer s.Close()

		engine := query.NewSQLiteEngine(s.DB())
		rows, err := engine.ThreadRollup(cmd.Context(), threadsLimit)
		if err != nil {
			return fmt.Errorf("thread rollup: %w", err)
		}

		if len(rows) == 0 {
			fmt.Println("No threads found.")
			return nil
		}

		if threadsJSON {
			return outputJSON(rows)
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "KEY\tMSGS\tLAST ACTIVITY\t!\tSUBJECT")
		fmt.Fprintln(w, "───\t────\t─────────────\t─\t───────")
		for _, row := range rows {
			marker := ""
			if row.LatestImportance == query.ImportanceUrgent || row.LatestImportance == query.ImportanceHigh {
				marker = "!"
			}
			fmt.Fprintf(w, "%s\t%d\t%s\t%s\t%s\n",
				truncate(row.ThreadKey, 24),
				row.MessageCount,
				row.LastCreatedTS,
				marker,
				truncate(row.LatestSubject, 50),
			)
		}
		w.Flush()
		fmt.Printf("\nShowing %d threads\n", len(rows))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(threadsCmd)
	threadsCmd.Flags().IntVarP(&threadsLimit, "limit", "n", query.DefaultRollupLimit, "Maximum number of threads")
	threadsCmd.Flags().BoolVar(&threadsJSON, "json", false, "Output as JSON")
}
