package command

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassify_RangePartition(t *testing.T) {
	for code := ActionPTPAxis; code <= ActionSplineFrameCont; code++ {
		assert.Equal(t, CategoryMovement, Classify(code), code.String())
	}
	for code := ActionIOSet; code <= ActionIOToggle; code++ {
		assert.Equal(t, CategoryIO, Classify(code), code.String())
	}
	assert.Equal(t, CategoryUnknown, Classify(14))
	assert.Equal(t, CategoryUnknown, Classify(ActionUnknown))
}

func TestActionTable_Arity(t *testing.T) {
	for _, code := range []ActionCode{ActionPTPAxis, ActionLINAxis, ActionSplineAxis, ActionPTPAxisCont} {
		spec, ok := Lookup(code)
		require.True(t, ok)
		assert.Equal(t, JointCount, spec.Arity, spec.Name)
		assert.Equal(t, SpaceJoint, spec.Space)
	}
	for _, code := range []ActionCode{ActionPTPFrame, ActionLINFrame, ActionSplineFrame, ActionLINFrameCont, ActionSplineFrameCont, ActionLINRelTool, ActionLINRelBase} {
		spec, ok := Lookup(code)
		require.True(t, ok)
		assert.Equal(t, PoseComponents, spec.Arity, spec.Name)
		assert.Equal(t, SpaceCartesian, spec.Space)
	}

	continuous := map[ActionCode]bool{ActionPTPAxisCont: true, ActionLINFrameCont: true, ActionSplineFrameCont: true}
	for code := ActionPTPAxis; code <= ActionIOToggle; code++ {
		spec, _ := Lookup(code)
		assert.Equal(t, continuous[code], spec.Continuous, spec.Name)
		assert.Equal(t, code, spec.Code)
	}
}

func TestSplitRaw(t *testing.T) {
	code, call := SplitRaw(103)
	assert.True(t, call)
	assert.Equal(t, ActionCode(3), code)

	code, call = SplitRaw(99)
	assert.False(t, call)
	assert.Equal(t, ActionCode(99), code)

	code, call = SplitRaw(100)
	assert.True(t, call)
	assert.Equal(t, ActionCode(0), code)
}

func TestByName(t *testing.T) {
	spec, ok := ByName("lin_rel_tool")
	require.True(t, ok)
	assert.Equal(t, ActionLINRelTool, spec.Code)
	assert.Equal(t, OffsetTool, spec.Offset)

	_, ok = ByName("JUMP")
	assert.False(t, ok)
}

func TestNewMotionParameters(t *testing.T) {
	p, err := NewMotionParameters(0.25, "gripper", "")
	require.NoError(t, err)
	assert.Equal(t, 0.25, p.SpeedOverride)
	assert.Equal(t, DefaultFrame, p.Base)

	for _, bad := range []float64{-0.1, 1.01, math.NaN()} {
		_, err := NewMotionParameters(bad, "", "")
		assert.ErrorIs(t, err, ErrValidation)
		var verr *ValidationError
		assert.True(t, errors.As(err, &verr))
	}
}

func TestProtocolError_Is(t *testing.T) {
	inner := errors.New("strconv")
	err := error(&ProtocolError{Field: "numPoints", Value: "x", Reason: "not an integer", Err: inner})
	assert.ErrorIs(t, err, ErrProtocol)
	assert.ErrorIs(t, err, inner)
	assert.Equal(t, `protocol error in field "numPoints" (value "x"): not an integer`, err.Error())
}

func TestActionName(t *testing.T) {
	assert.Equal(t, "PROGRAM_CALL(9)", ActionName(&ProgramCall{ProgramID: 9}))
	assert.Equal(t, "IO_PULSE", ActionName(&IoAction{Code: ActionIOPulse}))
	assert.Equal(t, "UNKNOWN(42)", ActionName(&Unknown{Code: 42}))
}

func TestDescribe(t *testing.T) {
	cmd := &FrameMovement{
		Code:   ActionLINRelBase,
		Points: []Pose{{X: 1}},
		Params: MotionParameters{SpeedOverride: 0.5},
		Offset: OffsetBase,
	}
	assert.Contains(t, Describe(cmd), "LIN_REL_BASE points=1 speed=0.50")
	assert.Equal(t, "<nil>", Describe(nil))
}
