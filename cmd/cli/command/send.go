package command

import (
	"fmt"
	"strconv"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"robotbridge/cmd/cli/command/client"
	"robotbridge/internal/command"
	"robotbridge/internal/protocol"
)

var commandID string // --id shared by every task command

// sendCmd represents the send command
var sendCmd = &cobra.Command{
	Use:   "send <frame>",
	Short: "Send a raw task frame",
	Long: `Send a frame exactly as written and print the server reply. The '#' terminator
is appended when missing.

Example:
  robotctl send "9|0||1|2|true|||100|io-1"`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withTaskClient(func(c *client.TaskClient) (protocol.Reply, error) {
			return c.SendRaw(args[0])
		})
	},
}

// callCmd represents the call command
var callCmd = &cobra.Command{
	Use:   "call <program>",
	Short: "Run a stored program on the controller",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		program, err := strconv.Atoi(args[0])
		if err != nil || program < 0 {
			return fmt.Errorf("invalid program number %q", args[0])
		}
		return sendCommand(&command.ProgramCall{CommandID: resolveID(), ProgramID: program})
	},
}

// resolveID returns --id, or a short random id when it is empty.
func resolveID() string {
	if commandID != "" {
		return commandID
	}
	return uuid.NewString()[:8]
}

func sendCommand(cmd command.Command) error {
	return withTaskClient(func(c *client.TaskClient) (protocol.Reply, error) {
		return c.Send(cmd)
	})
}

// withTaskClient opens a task connection, runs one exchange and prints the reply.
func withTaskClient(exchange func(*client.TaskClient) (protocol.Reply, error)) error {
	c, err := client.DialTask(taskAddr(), timeout)
	if err != nil {
		return err
	}
	defer c.Close()

	reply, err := exchange(c)
	if err != nil {
		return err
	}
	if !reply.OK() {
		return fmt.Errorf("command %s rejected: %s", reply.ID, reply.Reason)
	}
	fmt.Printf("✓ %s|%s\n", reply.Status, reply.ID)
	return nil
}

func init() {
	rootCmd.AddCommand(sendCmd)
	rootCmd.AddCommand(callCmd)
	rootCmd.PersistentFlags().StringVar(&commandID, "id", "", "command id (random when empty)")
}
