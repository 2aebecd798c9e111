package protocol

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"robotbridge/internal/command"
)

// ErrUnencodable is returned when a command holds text that would break framing.
var ErrUnencodable = errors.New("command cannot be encoded")

const reserved = "|#,;"

// Encode renders a command as a canonical wire message, terminator included.
// Decode(Encode(c)) yields a command equivalent to c.
func Encode(cmd command.Command) (string, error) {
	if cmd == nil {
		return "", fmt.Errorf("%w: nil command", ErrUnencodable)
	}
	if strings.ContainsAny(cmd.ID(), reserved) {
		return "", fmt.Errorf("%w: id %q contains a delimiter", ErrUnencodable, cmd.ID())
	}

	f := [MaxFields]string{
		FieldNumPoints: "0",
		FieldIOPoint:   "0",
		FieldIOPin:     "0",
		FieldIOState:   "false",
		FieldSpeed:     formatFloat(DefaultSpeedPercent),
		FieldID:        cmd.ID(),
	}

	switch c := cmd.(type) {
	case *command.AxisMovement:
		groups := make([]string, len(c.Points))
		for i, p := range c.Points {
			groups[i] = joinFloats(p[:])
		}
		if err := encodeMotion(&f, int(c.Code), groups, c.Params); err != nil {
			return "", err
		}
	case *command.FrameMovement:
		groups := make([]string, len(c.Points))
		for i, p := range c.Points {
			comps := p.Components()
			groups[i] = joinFloats(comps[:])
		}
		if err := encodeMotion(&f, int(c.Code), groups, c.Params); err != nil {
			return "", err
		}
	case *command.IoAction:
		f[FieldAction] = strconv.Itoa(int(c.Code))
		f[FieldIOPoint] = strconv.Itoa(c.Point)
		f[FieldIOPin] = strconv.Itoa(c.Pin)
		f[FieldIOState] = strconv.FormatBool(c.State)
	case *command.ProgramCall:
		f[FieldAction] = strconv.Itoa(c.ProgramID + command.ProgramCallOffset)
	case *command.Unknown:
		if c.Code != command.ActionUnknown {
			f[FieldAction] = strconv.Itoa(int(c.Code))
		}
	default:
		return "", fmt.Errorf("%w: unsupported type %T", ErrUnencodable, cmd)
	}

	return strings.Join(f[:], FieldSep) + string(Terminator), nil
}

func encodeMotion(f *[MaxFields]string, code int, groups []string, params command.MotionParameters) error {
	if strings.ContainsAny(params.Tool, reserved) || strings.ContainsAny(params.Base, reserved) {
		return fmt.Errorf("%w: tool or base contains a delimiter", ErrUnencodable)
	}
	f[FieldAction] = strconv.Itoa(code)
	f[FieldNumPoints] = strconv.Itoa(len(groups))
	f[FieldPoints] = strings.Join(groups, PointSep)
	f[FieldTool] = params.Tool
	f[FieldBase] = params.Base
	f[FieldSpeed] = formatFloat(params.SpeedOverride * 100)
	return nil
}

func joinFloats(values []float64) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = formatFloat(v)
	}
	return strings.Join(parts, ComponentSep)
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
