package command

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"robotbridge/internal/command"
	"robotbridge/internal/protocol"
)

var (
	jointAction  string
	frameAction  string
	motionPoints string
	motionSpeed  float64 // percent
	motionTool   string
	motionBase   string
)

// jointCmd represents the joint command
var jointCmd = &cobra.Command{
	Use:   "joint",
	Short: "Move through joint-space targets",
	Long: `Send a joint-space movement. Points are separated by ',' and joint values
by ';', seven values per point.

Example:
  robotctl joint --action PTP_AXIS --points "0;10;0;-90;0;90;0" --speed 50`,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := buildJointMovement(jointAction, motionPoints, motionSpeed, motionTool, motionBase, resolveID())
		if err != nil {
			return err
		}
		return sendCommand(c)
	},
}

// frameCmd represents the frame command
var frameCmd = &cobra.Command{
	Use:   "frame",
	Short: "Move through Cartesian targets or by a relative offset",
	Long: `Send a Cartesian movement. Each point is x;y;z;a;b;c. LIN_REL_TOOL and
LIN_REL_BASE treat the points as deltas.

Example:
  robotctl frame --action LIN_FRAME --points "400;0;300;180;0;180"
  robotctl frame --action LIN_REL_TOOL --points "0;0;-20;0;0;0"`,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := buildFrameMovement(frameAction, motionPoints, motionSpeed, motionTool, motionBase, resolveID())
		if err != nil {
			return err
		}
		return sendCommand(c)
	},
}

func buildJointMovement(action, points string, speedPct float64, tool, base, id string) (*command.AxisMovement, error) {
	spec, err := lookupMotion(action, command.PayloadJoints)
	if err != nil {
		return nil, err
	}
	params, err := command.NewMotionParameters(speedPct/100, tool, base)
	if err != nil {
		return nil, err
	}
	groups, err := parsePoints(points, command.JointCount)
	if err != nil {
		return nil, err
	}

	m := &command.AxisMovement{CommandID: id, Code: spec.Code, Params: params}
	for _, g := range groups {
		var v command.JointVector
		copy(v[:], g)
		m.Points = append(m.Points, v)
	}
	return m, nil
}

func buildFrameMovement(action, points string, speedPct float64, tool, base, id string) (*command.FrameMovement, error) {
	spec, err := lookupMotion(action, command.PayloadPoses, command.PayloadDeltas)
	if err != nil {
		return nil, err
	}
	params, err := command.NewMotionParameters(speedPct/100, tool, base)
	if err != nil {
		return nil, err
	}
	groups, err := parsePoints(points, command.PoseComponents)
	if err != nil {
		return nil, err
	}

	m := &command.FrameMovement{CommandID: id, Code: spec.Code, Params: params, Offset: spec.Offset}
	for _, g := range groups {
		var c [command.PoseComponents]float64
		copy(c[:], g)
		m.Points = append(m.Points, command.PoseFromComponents(c))
	}
	return m, nil
}

func lookupMotion(action string, payloads ...command.Payload) (command.ActionSpec, error) {
	spec, ok := command.ByName(action)
	if !ok {
		return spec, fmt.Errorf("unknown action %q", action)
	}
	for _, p := range payloads {
		if spec.Payload == p {
			return spec, nil
		}
	}
	return spec, fmt.Errorf("action %s does not fit this command", spec.Name)
}

// parsePoints splits "a;b;c,d;e;f" into groups of exactly arity values.
func parsePoints(s string, arity int) ([][]float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, fmt.Errorf("at least one point is required")
	}
	var groups [][]float64
	for i, group := range strings.Split(s, protocol.PointSep) {
		parts := strings.Split(group, protocol.ComponentSep)
		if len(parts) != arity {
			return nil, fmt.Errorf("point %d: expected %d values, got %d", i+1, arity, len(parts))
		}
		values := make([]float64, arity)
		for j, p := range parts {
			v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
			if err != nil {
				return nil, fmt.Errorf("point %d value %d: %q is not a number", i+1, j+1, p)
			}
			values[j] = v
		}
		groups = append(groups, values)
	}
	return groups, nil
}

func init() {
	rootCmd.AddCommand(jointCmd)
	rootCmd.AddCommand(frameCmd)

	for _, c := range []*cobra.Command{jointCmd, frameCmd} {
		c.Flags().StringVar(&motionPoints, "points", "", "targets, ',' between points and ';' between values")
		c.Flags().Float64Var(&motionSpeed, "speed", protocol.DefaultSpeedPercent, "speed override in percent")
		c.Flags().StringVar(&motionTool, "tool", "", "tool name")
		c.Flags().StringVar(&motionBase, "base", "", "base frame name")
		c.MarkFlagRequired("points")
	}
	jointCmd.Flags().StringVar(&jointAction, "action", "PTP_AXIS", "PTP_AXIS, LIN_AXIS, SPLINE_AXIS or PTP_AXIS_CONT")
	frameCmd.Flags().StringVar(&frameAction, "action", "PTP_FRAME", "PTP_FRAME, LIN_FRAME, SPLINE_FRAME, *_CONT, LIN_REL_TOOL or LIN_REL_BASE")
}
