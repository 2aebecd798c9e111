package command

import (
	"fmt"
	"strings"
)

// ActionCode is the numeric command identifier carried in the first wire field.
// Values >= ProgramCallOffset encode a subprogram call.
type ActionCode int

const (
	ProgramCallOffset = 100

	// ActionUnknown is used when the wire field is missing or empty.
	ActionUnknown ActionCode = -1
)

const (
	ActionPTPAxis ActionCode = iota
	ActionPTPFrame
	ActionLINAxis
	ActionLINFrame
	ActionSplineAxis
	ActionSplineFrame
	ActionPTPAxisCont
	ActionLINFrameCont
	ActionSplineFrameCont
	ActionIOSet
	ActionLINRelTool
	ActionLINRelBase
	ActionIOPulse
	ActionIOToggle
)

// Category is the coarse partition of action codes.
type Category int

const (
	CategoryUnknown Category = iota
	CategoryMovement
	CategoryIO
	CategoryProgramCall
)

func (c Category) String() string {
	switch c {
	case CategoryMovement:
		return "MOVEMENT"
	case CategoryIO:
		return "IO"
	case CategoryProgramCall:
		return "PROGRAM_CALL"
	default:
		return "UNKNOWN"
	}
}

// Payload tells the codec which wire fields carry the command arguments.
type Payload int

const (
	PayloadNone    Payload = iota
	PayloadJoints  // points blob, 7 components per group
	PayloadPoses   // points blob, 6 components per group
	PayloadDeltas  // points blob, 6 component relative offsets
	PayloadIOField // ioPoint, ioPin, ioState
)

// Space selects joint-space or Cartesian interpolation.
type Space int

const (
	SpaceNone Space = iota
	SpaceJoint
	SpaceCartesian
)

func (s Space) String() string {
	switch s {
	case SpaceJoint:
		return "joint"
	case SpaceCartesian:
		return "cartesian"
	default:
		return "none"
	}
}

// MotionKind is the interpolation type of a motion primitive.
type MotionKind int

const (
	KindNone MotionKind = iota
	KindPTP
	KindLIN
	KindSpline
)

func (k MotionKind) String() string {
	switch k {
	case KindPTP:
		return "PTP"
	case KindLIN:
		return "LIN"
	case KindSpline:
		return "SPLINE"
	default:
		return "NONE"
	}
}

// OffsetFrame marks a relative movement and the frame its delta is expressed in.
type OffsetFrame int

const (
	OffsetNone OffsetFrame = iota
	OffsetTool
	OffsetBase
)

func (o OffsetFrame) String() string {
	switch o {
	case OffsetTool:
		return "tool"
	case OffsetBase:
		return "base"
	default:
		return "none"
	}
}

// IOOp is the digital output operation of an IO command.
type IOOp int

const (
	IOOpNone IOOp = iota
	IOOpSet
	IOOpPulse
	IOOpToggle
)

func (o IOOp) String() string {
	switch o {
	case IOOpSet:
		return "set"
	case IOOpPulse:
		return "pulse"
	case IOOpToggle:
		return "toggle"
	default:
		return "none"
	}
}

const (
	JointCount     = 7
	PoseComponents = 6
)

// ActionSpec describes everything the codec and the executor need to know about a code.
type ActionSpec struct {
	Code       ActionCode
	Name       string
	Category   Category
	Payload    Payload
	Space      Space
	Kind       MotionKind
	Arity      int
	Continuous bool
	Offset     OffsetFrame
	IOOp       IOOp
}

// actionTable is the single source of truth for code classification.
// Codes 10 and 11 stay in the IO range; their payload routes them to the delta parser.
var actionTable = [...]ActionSpec{
	{Code: ActionPTPAxis, Name: "PTP_AXIS", Category: CategoryMovement, Payload: PayloadJoints, Space: SpaceJoint, Kind: KindPTP, Arity: JointCount},
	{Code: ActionPTPFrame, Name: "PTP_FRAME", Category: CategoryMovement, Payload: PayloadPoses, Space: SpaceCartesian, Kind: KindPTP, Arity: PoseComponents},
	{Code: ActionLINAxis, Name: "LIN_AXIS", Category: CategoryMovement, Payload: PayloadJoints, Space: SpaceJoint, Kind: KindLIN, Arity: JointCount},
	{Code: ActionLINFrame, Name: "LIN_FRAME", Category: CategoryMovement, Payload: PayloadPoses, Space: SpaceCartesian, Kind: KindLIN, Arity: PoseComponents},
	{Code: ActionSplineAxis, Name: "SPLINE_AXIS", Category: CategoryMovement, Payload: PayloadJoints, Space: SpaceJoint, Kind: KindSpline, Arity: JointCount},
	{Code: ActionSplineFrame, Name: "SPLINE_FRAME", Category: CategoryMovement, Payload: PayloadPoses, Space: SpaceCartesian, Kind: KindSpline, Arity: PoseComponents},
	{Code: ActionPTPAxisCont, Name: "PTP_AXIS_CONT", Category: CategoryMovement, Payload: PayloadJoints, Space: SpaceJoint, Kind: KindPTP, Arity: JointCount, Continuous: true},
	{Code: ActionLINFrameCont, Name: "LIN_FRAME_CONT", Category: CategoryMovement, Payload: PayloadPoses, Space: SpaceCartesian, Kind: KindLIN, Arity: PoseComponents, Continuous: true},
	{Code: ActionSplineFrameCont, Name: "SPLINE_FRAME_CONT", Category: CategoryMovement, Payload: PayloadPoses, Space: SpaceCartesian, Kind: KindSpline, Arity: PoseComponents, Continuous: true},
	{Code: ActionIOSet, Name: "IO_SET", Category: CategoryIO, Payload: PayloadIOField, IOOp: IOOpSet},
	{Code: ActionLINRelTool, Name: "LIN_REL_TOOL", Category: CategoryIO, Payload: PayloadDeltas, Space: SpaceCartesian, Kind: KindLIN, Arity: PoseComponents, Offset: OffsetTool},
	{Code: ActionLINRelBase, Name: "LIN_REL_BASE", Category: CategoryIO, Payload: PayloadDeltas, Space: SpaceCartesian, Kind: KindLIN, Arity: PoseComponents, Offset: OffsetBase},
	{Code: ActionIOPulse, Name: "IO_PULSE", Category: CategoryIO, Payload: PayloadIOField, IOOp: IOOpPulse},
	{Code: ActionIOToggle, Name: "IO_TOGGLE", Category: CategoryIO, Payload: PayloadIOField, IOOp: IOOpToggle},
}

// Lookup returns the table entry for a real (offset-free) action code.
func Lookup(code ActionCode) (ActionSpec, bool) {
	if code < 0 || int(code) >= len(actionTable) {
		return ActionSpec{Code: code, Name: "UNKNOWN", Category: CategoryUnknown}, false
	}
	return actionTable[code], true
}

// ByName finds a table entry by its name (PTP_AXIS, IO_SET, ...), ignoring case.
func ByName(name string) (ActionSpec, bool) {
	for _, spec := range actionTable {
		if strings.EqualFold(spec.Name, name) {
			return spec, true
		}
	}
	return ActionSpec{}, false
}

// Classify maps a real action code onto the fixed range partition.
func Classify(code ActionCode) Category {
	spec, _ := Lookup(code)
	return spec.Category
}

// SplitRaw separates the program-call flag from a raw wire code.
func SplitRaw(raw int) (code ActionCode, programCall bool) {
	if raw >= ProgramCallOffset {
		return ActionCode(raw - ProgramCallOffset), true
	}
	return ActionCode(raw), false
}

func (c ActionCode) String() string {
	if c == ActionUnknown {
		return "UNKNOWN"
	}
	spec, ok := Lookup(c)
	if !ok {
		return fmt.Sprintf("UNKNOWN(%d)", int(c))
	}
	return spec.Name
}
