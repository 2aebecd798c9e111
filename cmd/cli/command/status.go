package command

import (
	"fmt"

	"github.com/spf13/cobra"

	"robotbridge/cmd/cli/command/client"
)

// statusCmd represents the status command
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show server health, sessions and queue",
	RunE: func(cmd *cobra.Command, args []string) error {
		api := client.NewHTTPClient(apiURL)

		health, err := api.Health()
		if err != nil {
			return fmt.Errorf("failed to reach status API: %w", err)
		}
		fmt.Printf("Status: %s (up %ds)\n", health.Status, health.UptimeSeconds)
		fmt.Printf("Log client attached: %v\n", health.LogAttached)

		queue, err := api.Queue()
		if err != nil {
			return err
		}
		fmt.Printf("\nQueue depth: %d\n", queue.Depth)
		fmt.Printf("  Processed: %d  Succeeded: %d  Failed: %d\n",
			queue.Consumer.Processed, queue.Consumer.Succeeded, queue.Consumer.Failed)

		sessions, err := api.Sessions()
		if err != nil {
			return err
		}
		fmt.Printf("\nSessions (%d):\n", sessions.Count)
		for _, s := range sessions.Sessions {
			marker := ""
			if s.LogSink {
				marker = " (log sink)"
			}
			fmt.Printf("  %s  %-4s %-21s %s  commands=%d%s\n",
				shortID(s.ID), s.Kind, s.Remote, s.ConnectedAt.Format("2006-01-02 15:04:05"), s.Commands, marker)
		}
		return nil
	},
}

// historyCmd represents the history command
var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recently processed commands",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		resp, err := client.NewHTTPClient(apiURL).Commands(limit)
		if err != nil {
			return err
		}
		if resp.Count == 0 {
			fmt.Println("No commands recorded yet.")
			return nil
		}
		for _, r := range resp.Commands {
			line := fmt.Sprintf("#%-6d %s  %-18s id=%-10s %-14s %dms",
				r.Seq, r.ReceivedAt.Format("15:04:05.000"), r.Action, r.CommandID, r.Outcome, r.DurationMs)
			if r.Error != "" {
				line += "  " + r.Error
			}
			fmt.Println(line)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(historyCmd)

	historyCmd.Flags().Int("limit", 20, "number of records to show")
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
