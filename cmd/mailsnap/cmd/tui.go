package cmd

import (
	"fmt"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/amodell/mailsnap/internal/query"
	"github.com/amodell/mailsnap/internal/search"
	"github.com/amodell/mailsnap/internal/tui"
)

var tuiCmd = &cobra.Command{
	Use:   "tui",
	Short: "Open the interactive snapshot browser",
	Long: `Open an interactive terminal UI over the current snapshot.

Levels:
  Threads     One row per thread, newest activity first
  Messages    Flat message list with filters, sort, and search
  Thread      All messages of the selected thread, oldest first
  Detail      Full message body

Navigation:
  ↑/k, ↓/j    Move up/down
  g/G         Jump to top/bottom
  Enter       Drill down / open message
  Esc         Go back
  Tab         Switch threads/messages
  /           Search (boolean query, 300ms debounce)
  f           Cycle classification (user/admin/all)
  s           Cycle sort order
  i           Cycle importance filter
  t           Cycle has-thread filter
  q           Quit`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if !isatty.IsTerminal(os.Stdout.Fd()) && !isatty.IsCygwinTerminal(os.Stdout.Fd()) {
			return fmt.Errorf("tui requires an interactive terminal (try 'mailsnap threads' or 'mailsnap search')")
		}

		s, err := openSnapshot(cmd.Context())
		if err != nil {
			return fmt.Errorf("open snapshot: %w", err)
		}
		defer s.Close()

		engine := query.NewSQLiteEngine(s.DB())
		searcher := search.NewSearcher(s.DB(), s.HasFTS(), logger)

		model := tui.New(engine, searcher, tui.Options{
			Version:        Version,
			Overscan:       cfg.UI.Overscan,
			RowHeight:      cfg.UI.RowHeight,
			SearchDebounce: time.Duration(cfg.UI.SearchDebounceMS) * time.Millisecond,
		})
		p := tea.NewProgram(model, tea.WithAltScreen())

		if _, err := p.Run(); err != nil {
			return fmt.Errorf("run tui: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(tuiCmd)
}
