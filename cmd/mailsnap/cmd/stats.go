package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show snapshot statistics",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openSnapshot(cmd.Context())
		if err != nil {
			return fmt.Errorf("open snapshot: %w", err)
		}
		defer s.Close()

		stats, err := s.GetStats()
		if err != nil {
			return fmt.Errorf("get stats: %w", err)
		}

		fmt.Printf("Snapshot: %s\n", s.Path())
		fmt.Printf("  Messages:   %d\n", stats.MessageCount)
		fmt.Printf("  Projects:   %d\n", stats.ProjectCount)
		fmt.Printf("  Agents:     %d\n", stats.AgentCount)
		fmt.Printf("  Recipients: %d\n", stats.RecipientRows)
		fmt.Printf("  Full text:  %v\n", stats.FTSAvailable)
		fmt.Printf("  Size:       %.2f MB\n", float64(stats.SnapshotSize)/(1024*1024))

		return nil
	},
}

func init() {
	rootCmd.AddCommand(statsCmd)
}
