package cmd

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/amodell/mailsnap/internal/query"
	"github.com/amodell/mailsnap/internal/search"
)

var (
	searchLimit int
	searchJSON  bool
)

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search messages with a boolean query",
	Long: `Search message subjects and bodies using boolean query syntax.

Terms must be joined explicitly with AND, OR (or |), and NOT; there is no
implicit AND between adjacent words. Parentheses group, double quotes make
phrases. Matching is case-insensitive.

Examples:
  mailsnap search 'deploy AND NOT draft'
  mailsnap search '"contact request" OR handshake'
  mailsnap search '(parser OR grammar) AND refactor'`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		queryStr := strings.Join(args, " ")

		s, err := openSnapshot(cmd.Context())
		if err != nil {
			return fmt.Errorf("open snapshot: %w", err)
		}
		defer s.Close()

		engine := query.NewSQLiteEngine(s.DB())
		searcher := search.NewSearcher(s.DB(), s.HasFTS(), logger)

		if verbose {
			roots := search.Parse(queryStr)
			clause, args := search.LowerSubstring(roots)
			logger.Debug("compiled query",
				"fts", search.LowerFullText(roots),
				"substring", clause,
				"args", args,
			)
		}

		ids, err := searcher.Search(cmd.Context(), queryStr)
		if err != nil {
			return fmt.Errorf("search: %w", err)
		}
		if len(ids) == 0 {
			fmt.Println("No messages found.")
			return nil
		}

		overviews, err := engine.MessagesOverview(cmd.Context())
		if err != nil {
			return fmt.Errorf("load messages: %w", err)
		}

		var results []query.MessageOverview
		for _, o := range overviews {
			if ids.Contains(o.ID) {
				results = append(results, o)
				if len(results) >= searchLimit {
					break
				}
			}
		}

		if searchJSON {
			return outputJSON(results)
		}
		return outputSearchResultsTable(results)
	},
}

func outputSearchResultsTable(results []query.MessageOverview) error {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tDATE\tFROM\tSUBJECT\tPROJECT")
	fmt.Fprintln(w, "──\t────\t────\t───────\t───────")

	for _, msg := range results {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\n",
			msg.ID,
			msg.CreatedTS,
			truncate(msg.SenderName, 20),
			truncate(msg.Subject, 50),
			msg.ProjectSlug,
		)
	}

	w.Flush()
	fmt.Printf("\nShowing %d results\n", len(results))
	return nil
}

func init() {
	rootCmd.AddCommand(searchCmd)
	searchCmd.Flags().IntVarP(&searchLimit, "limit", "n", 50, "Maximum number of results")
	searchCmd.Flags().BoolVar(&searchJSON, "json", false, "Output as JSON")
}
