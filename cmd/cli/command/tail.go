package command

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"robotbridge/cmd/cli/command/client"
)

// tailCmd represents the tail command
var tailCmd = &cobra.Command{
	Use:   "tail",
	Short: "Attach to the log channel and print server logs",
	Long: `Attach as the log client. While attached the server accepts task
connections. Attaching again from elsewhere takes the log stream over.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		filter, _ := cmd.Flags().GetString("tag")

		c, err := client.DialLog(logAddr(), timeout)
		if err != nil {
			return err
		}
		defer c.Close()

		color.Green("✓ attached to %s", logAddr())
		for {
			line, ok := c.Next()
			if !ok {
				break
			}
			if filter != "" && !strings.EqualFold(line.Tag, filter) {
				continue
			}
			printLogLine(line)
		}
		if err := c.Err(); err != nil {
			return fmt.Errorf("log channel closed: %w", err)
		}
		color.HiBlack("log channel closed by server")
		return nil
	},
}

func printLogLine(line client.LogLine) {
	if line.Tag == "" {
		fmt.Println(line.Raw)
		return
	}
	tag := tagColor(line.Tag).Sprintf("[%s]", line.Tag)
	fmt.Printf("%s %s %s\n", color.HiBlackString(line.Time), tag, line.Message)
}

func tagColor(tag string) *color.Color {
	switch tag {
	case "EXECUTOR":
		return color.New(color.FgCyan)
	case "TCP":
		return color.New(color.FgYellow)
	case "SIM":
		return color.New(color.FgMagenta)
	case "ERROR":
		return color.New(color.FgRed, color.Bold)
	case "WARN":
		return color.New(color.FgRed)
	default:
		return color.New(color.FgWhite)
	}
}

func init() {
	rootCmd.AddCommand(tailCmd)

	tailCmd.Flags().String("tag", "", "only print lines with this tag")
}
