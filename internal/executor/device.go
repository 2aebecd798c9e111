package executor

import (
	"context"
	"errors"
	"fmt"

	"robotbridge/internal/command"
)

// Motion is one primitive handed to the motion controller.
type Motion struct {
	Space      command.Space
	Kind       command.MotionKind
	Continuous bool
	Offset     command.OffsetFrame
	Joints     command.JointVector // SpaceJoint
	Pose       command.Pose        // SpaceCartesian; a delta when Offset != OffsetNone
	Speed      float64
	Tool       string
	Base       string
}

// MotionController executes motions on the arm. Both calls block until the motion
// has finished or faulted; implementations should stop early when ctx is cancelled.
type MotionController interface {
	Move(ctx context.Context, m Motion) error
	// MoveBatch runs several primitives as one compound motion.
	MoveBatch(ctx context.Context, batch []Motion) error
}

// IOController drives digital outputs addressed by IO point and output name.
type IOController interface {
	SetOutput(ctx context.Context, point int, output string, state bool) error
	Output(ctx context.Context, point int, output string) (bool, error)
}

var (
	ErrNoTargets              = errors.New("movement has no target points")
	ErrUnknownPin             = errors.New("unknown io pin")
	ErrProgramCallUnsupported = errors.New("program calls are not supported")
	ErrUnknownAction          = errors.New("unknown action code")
	ErrNoController           = errors.New("no controller configured")
)

// ExecutionFault wraps any error or panic raised by a device collaborator.
type ExecutionFault struct {
	Op  string
	Err error
}

func (e *ExecutionFault) Error() string {
	return fmt.Sprintf("execution fault during %s: %v", e.Op, e.Err)
}

func (e *ExecutionFault) Unwrap() error { return e.Err }

// DefaultPins maps logical pin numbers from the wire to controller outputs.
var DefaultPins = map[int]string{
	1: "TOOL_OUT_1",
	2: "TOOL_OUT_2",
	3: "FLANGE_OUT_1",
	4: "FLANGE_OUT_2",
}
