package command

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"robotbridge/internal/command"
)

// ioCmd represents the io command
var ioCmd = &cobra.Command{
	Use:   "io",
	Short: "Drive a digital output",
	Long: `Set, pulse or toggle a digital output. Pins 1-2 are the tool outputs and
pins 3-4 the flange outputs.

Example:
  robotctl io --point 1 --pin 2 --state=true --op pulse`,
	RunE: func(cmd *cobra.Command, args []string) error {
		point, _ := cmd.Flags().GetInt("point")
		pin, _ := cmd.Flags().GetInt("pin")
		state, _ := cmd.Flags().GetBool("state")
		op, _ := cmd.Flags().GetString("op")

		c, err := buildIoAction(op, point, pin, state, resolveID())
		if err != nil {
			return err
		}
		return sendCommand(c)
	},
}

func buildIoAction(op string, point, pin int, state bool, id string) (*command.IoAction, error) {
	var code command.ActionCode
	switch strings.ToLower(op) {
	case "set":
		code = command.ActionIOSet
	case "pulse":
		code = command.ActionIOPulse
	case "toggle":
		code = command.ActionIOToggle
	default:
		return nil, fmt.Errorf("--op must be set, pulse or toggle, got %q", op)
	}
	if point < 0 || pin < 0 {
		return nil, fmt.Errorf("point and pin must not be negative")
	}
	return &command.IoAction{CommandID: id, Code: code, Point: point, Pin: pin, State: state}, nil
}

func init() {
	rootCmd.AddCommand(ioCmd)

	ioCmd.Flags().Int("point", 1, "IO point")
	ioCmd.Flags().Int("pin", 1, "output pin (1-4)")
	ioCmd.Flags().Bool("state", true, "output state")
	ioCmd.Flags().String("op", "set", "set, pulse or toggle")
}
