// Package command defines the typed robot operations decoded from the task channel.
//
// Command is a closed sum type: AxisMovement, FrameMovement, IoAction, ProgramCall
// and Unknown are its only variants. Consumers switch on the concrete type:
//
//	switch c := cmd.(type) {
//	case *command.AxisMovement:
//	case *command.FrameMovement:
//	case *command.IoAction:
//	case *command.ProgramCall:
//	case *command.Unknown:
//	}
package command

import "fmt"

// DefaultFrame is the base frame used when a command carries no base name.
const DefaultFrame = ""

// Command is implemented only by the variants in this package.
type Command interface {
	// ID is the correlation label supplied by the controller. It is not unique.
	ID() string
	// Action is the real action code (program-call offset removed).
	Action() ActionCode
	Category() Category
	isCommand()
}

// JointVector holds one target in joint space, in degrees.
type JointVector [JointCount]float64

// Pose is a Cartesian target: X, Y, Z in millimetres and A, B, C in degrees.
type Pose struct {
	X, Y, Z float64
	A, B, C float64
}

// Components returns the pose in wire order.
func (p Pose) Components() [PoseComponents]float64 {
	return [PoseComponents]float64{p.X, p.Y, p.Z, p.A, p.B, p.C}
}

// PoseFromComponents builds a pose from wire-ordered components.
func PoseFromComponents(c [PoseComponents]float64) Pose {
	return Pose{X: c[0], Y: c[1], Z: c[2], A: c[3], B: c[4], C: c[5]}
}

// MotionParameters are shared by every movement variant.
type MotionParameters struct {
	SpeedOverride float64 // fraction of nominal speed, 0..1
	Tool          string
	Base          string // DefaultFrame when empty
}

// NewMotionParameters validates the speed override.
func NewMotionParameters(speed float64, tool, base string) (MotionParameters, error) {
	if speed != speed || speed < 0 || speed > 1 {
		return MotionParameters{}, &ValidationError{
			Field:  "speedOverride",
			Reason: fmt.Sprintf("%v is outside [0, 1]", speed),
		}
	}
	return MotionParameters{SpeedOverride: speed, Tool: tool, Base: base}, nil
}

// AxisMovement moves through one or more joint-space targets.
type AxisMovement struct {
	CommandID string
	Code      ActionCode
	Points    []JointVector
	Params    MotionParameters
}

// FrameMovement moves through one or more Cartesian targets. When Offset is not
// OffsetNone the points are deltas relative to the current pose.
type FrameMovement struct {
	CommandID string
	Code      ActionCode
	Points    []Pose
	Params    MotionParameters
	Offset    OffsetFrame
}

// IoAction drives a single digital output.
type IoAction struct {
	CommandID string
	Code      ActionCode
	Point     int
	Pin       int
	State     bool
}

// ProgramCall asks the controller to run a stored subprogram.
type ProgramCall struct {
	CommandID string
	ProgramID int
}

// Unknown carries an action code outside the table. Executing it always fails.
type Unknown struct {
	CommandID string
	Code      ActionCode
}

func (c *AxisMovement) ID() string        { return c.CommandID }
func (c *AxisMovement) Action() ActionCode { return c.Code }
func (c *AxisMovement) Category() Category { return Classify(c.Code) }
func (*AxisMovement) isCommand()           {}

func (c *FrameMovement) ID() string        { return c.CommandID }
func (c *FrameMovement) Action() ActionCode { return c.Code }
func (c *FrameMovement) Category() Category { return Classify(c.Code) }
func (*FrameMovement) isCommand()           {}

// Spec returns the table entry of the movement's action code.
func (c *FrameMovement) Spec() ActionSpec {
	spec, _ := Lookup(c.Code)
	return spec
}

// Spec returns the table entry of the movement's action code.
func (c *AxisMovement) Spec() ActionSpec {
	spec, _ := Lookup(c.Code)
	return spec
}

func (c *IoAction) ID() string        { return c.CommandID }
func (c *IoAction) Action() ActionCode { return c.Code }
func (c *IoAction) Category() Category { return CategoryIO }
func (*IoAction) isCommand()           {}

// Op returns the output operation for the action code.
func (c *IoAction) Op() IOOp {
	spec, _ := Lookup(c.Code)
	return spec.IOOp
}

func (c *ProgramCall) ID() string        { return c.CommandID }
func (c *ProgramCall) Action() ActionCode { return ActionCode(c.ProgramID) }
func (c *ProgramCall) Category() Category { return CategoryProgramCall }
func (*ProgramCall) isCommand()           {}

func (c *Unknown) ID() string        { return c.CommandID }
func (c *Unknown) Action() ActionCode { return c.Code }
func (c *Unknown) Category() Category { return CategoryUnknown }
func (*Unknown) isCommand()           {}

// Describe renders a short human readable summary for logs.
func Describe(cmd Command) string {
	switch c := cmd.(type) {
	case *AxisMovement:
		return fmt.Sprintf("%s points=%d speed=%.2f tool=%q base=%q", c.Code, len(c.Points), c.Params.SpeedOverride, c.Params.Tool, c.Params.Base)
	case *FrameMovement:
		return fmt.Sprintf("%s points=%d speed=%.2f tool=%q base=%q offset=%s", c.Code, len(c.Points), c.Params.SpeedOverride, c.Params.Tool, c.Params.Base, c.Offset)
	case *IoAction:
		return fmt.Sprintf("%s point=%d pin=%d state=%t", c.Code, c.Point, c.Pin, c.State)
	case *ProgramCall:
		return fmt.Sprintf("PROGRAM_CALL program=%d", c.ProgramID)
	case *Unknown:
		return c.Code.String()
	default:
		return "<nil>"
	}
}

// ActionName is the action label used in logs and records. Program calls are
// labelled with their program id instead of a table name.
func ActionName(cmd Command) string {
	if c, ok := cmd.(*ProgramCall); ok {
		return fmt.Sprintf("PROGRAM_CALL(%d)", c.ProgramID)
	}
	return cmd.Action().String()
}
