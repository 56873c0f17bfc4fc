package cmd

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/amodell/mailsnap/internal/query"
	"github.com/amodell/mailsnap/internal/thread"
)

var showCmd = &cobra.Command{
	Use:   "show <id|thread-key>",
	Short: "Show a message body or a whole thread",
	Long: `Show a single message (by numeric id) or every message in a thread
(by thread key, including synthetic 'msg:<id>' keys).`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openSnapshot(cmd.Context())
		if err != nil {
			return fmt.Errorf("open snapshot: %w", err)
		}
		defer s.Close()

		engine := query.NewSQLiteEngine(s.DB())

		if id, err := strconv.ParseInt(args[0], 10, 64); err == nil {
			return showMessage(cmd, engine, id)
		}
		return showThread(cmd, engine, args[0])
	},
}

func showMessage(cmd *cobra.Command, engine query.Engine, id int64) error {
	overviews, err := engine.MessagesOverview(cmd.Context())
	if err != nil {
		return fmt.Errorf("load messages: %w", err)
	}

	var msg *query.MessageOverview
	for i := range overviews {
		if overviews[i].ID == id {
			msg = &overviews[i]
			break
		}
	}
	if msg == nil {
		return fmt.Errorf("message %d not found", id)
	}

	body, err := engine.MessageBody(cmd.Context(), id)
	if err != nil {
		return fmt.Errorf("load body: %w", err)
	}

	roster, err := engine.RecipientsRoster(cmd.Context())
	if err != nil {
		roster = map[int64]string{}
	}

	fmt.Printf("Subject:    %s\n", msg.Subject)
	fmt.Printf("From:       %s\n", msg.SenderName)
	if to := roster[msg.ID]; to != "" {
		fmt.Printf("To:         %s\n", to)
	}
	if msg.ProjectSlug != "" {
		fmt.Printf("Project:    %s (%s)\n", msg.ProjectHumanKey, msg.ProjectSlug)
	}
	fmt.Printf("Date:       %s\n", msg.CreatedTS)
	fmt.Printf("Importance: %s\n", msg.Importance)
	fmt.Printf("Thread:     %s\n", thread.KeyFor(msg.Message))
	fmt.Println()
	fmt.Println(body)
	return nil
}

func showThread(cmd *cobra.Command, engine query.Engine, key string) error {
	messages, err := engine.MessagesInThread(cmd.Context(), key)
	if err != nil {
		return fmt.Errorf("load thread: %w", err)
	}
	if len(messages) == 0 {
		return fmt.Errorf("thread %q not found", key)
	}

	fmt.Printf("Thread %s (%d messages)\n\n", key, len(messages))
	for i, msg := range messages {
		if i > 0 {
			fmt.Println("────")
		}
		body, err := engine.MessageBody(cmd.Context(), msg.ID)
		if err != nil {
			return fmt.Errorf("load body of %d: %w", msg.ID, err)
		}
		fmt.Printf("[%d] %s  %s\n", msg.ID, msg.CreatedTS, msg.Subject)
		fmt.Println()
		fmt.Println(body)
	}
	return nil
}

func init() {
	rootCmd.AddCommand(showCmd)
}
