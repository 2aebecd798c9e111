package protocol

import (
	"errors"
	"testing"

	"robotbridge/internal/command"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecode_AxisMovement(t *testing.T) {
	cmd, err := Decode("0|1|10.0;20.0;30.0;40.0;50.0;60.0;70.0|0|0|false|T1|B1|50.0|id-1#")
	require.NoError(t, err)

	axis, ok := cmd.(*command.AxisMovement)
	require.True(t, ok, "expected *AxisMovement, got %T", cmd)

	assert.Equal(t, "id-1", axis.ID())
	assert.Equal(t, command.ActionPTPAxis, axis.Code)
	require.Len(t, axis.Points, 1)
	assert.Equal(t, command.JointVector{10, 20, 30, 40, 50, 60, 70}, axis.Points[0])
	assert.Equal(t, 0.5, axis.Params.SpeedOverride)
	assert.Equal(t, "T1", axis.Params.Tool)
	assert.Equal(t, "B1", axis.Params.Base)
	assert.Equal(t, command.CategoryMovement, axis.Category())
}

func TestDecode_IoAction(t *testing.T) {
	cmd, err := Decode("9|0||1|1|true|||100.0|id-2#")
	require.NoError(t, err)

	io, ok := cmd.(*command.IoAction)
	require.True(t, ok, "expected *IoAction, got %T", cmd)
	assert.Equal(t, 1, io.Point)
	assert.Equal(t, 1, io.Pin)
	assert.True(t, io.State)
	assert.Equal(t, "id-2", io.ID())
	assert.Equal(t, command.IOOpSet, io.Op())
}

func TestDecode_ProgramCall(t *testing.T) {
	cmd, err := Decode("101|0||0|0|false|||100|prog#")
	require.NoError(t, err)

	call, ok := cmd.(*command.ProgramCall)
	require.True(t, ok, "expected *ProgramCall, got %T", cmd)
	assert.Equal(t, 1, call.ProgramID)
	assert.Equal(t, command.CategoryProgramCall, call.Category())
}

func TestDecode_FrameMovementMultiplePoints(t *testing.T) {
	cmd, err := Decode("7|2|1;2;3;4;5;6,7;8;9;10;11;12|0|0|false|gripper||25|blend#")
	require.NoError(t, err)

	frame, ok := cmd.(*command.FrameMovement)
	require.True(t, ok, "expected *FrameMovement, got %T", cmd)
	require.Len(t, frame.Points, 2)
	assert.Equal(t, command.Pose{X: 1, Y: 2, Z: 3, A: 4, B: 5, C: 6}, frame.Points[0])
	assert.Equal(t, command.Pose{X: 7, Y: 8, Z: 9, A: 10, B: 11, C: 12}, frame.Points[1])
	assert.Equal(t, command.DefaultFrame, frame.Params.Base)
	assert.Equal(t, 0.25, frame.Params.SpeedOverride)
	assert.True(t, frame.Spec().Continuous)
	assert.Equal(t, command.OffsetNone, frame.Offset)
}

func TestDecode_RelativeOffsets(t *testing.T) {
	tests := []struct {
		raw    string
		offset command.OffsetFrame
	}{
		{"10|1|0;0;5;0;0;0|0|0|false|T1||100|rel-tool#", command.OffsetTool},
		{"11|1|0;0;-5;0;0;0|0|0|false|T1||100|rel-base#", command.OffsetBase},
	}
	for _, tt := range tests {
		cmd, err := Decode(tt.raw)
		require.NoError(t, err, tt.raw)

		frame, ok := cmd.(*command.FrameMovement)
		require.True(t, ok, "expected *FrameMovement, got %T", cmd)
		assert.Equal(t, tt.offset, frame.Offset)
		// the range partition still reports IO for 10 and 11
		assert.Equal(t, command.CategoryIO, frame.Category())
	}

	_, err := Decode("10|1|0;0;5;0;0;0;0|0|0|false|T1||100|rel-tool#")
	assert.ErrorIs(t, err, command.ErrProtocol, "relative offsets take 6 components")
}

func TestDecode_PointCountMismatch(t *testing.T) {
	inputs := []string{
		"0|2|10;20;30;40;50;60;70|0|0|false|T1|B1|50|id#",
		"1|1|1;2;3;4;5;6,1;2;3;4;5;6|0|0|false|||100|id#",
		"1|1||0|0|false|||100|id#",
		"0|0|1;2;3;4;5;6;7|0|0|false|||100|id#",
	}
	for _, raw := range inputs {
		cmd, err := Decode(raw)
		assert.Nil(t, cmd, raw)

		var perr *command.ProtocolError
		require.True(t, errors.As(err, &perr), "%s: expected ProtocolError, got %v", raw, err)
		assert.Equal(t, "points", perr.Field)
	}
}

func TestDecode_ArityMismatch(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"axis with 6 components", "0|1|1;2;3;4;5;6|0|0|false|||100|id#"},
		{"axis with 8 components", "2|1|1;2;3;4;5;6;7;8|0|0|false|||100|id#"},
		{"frame with 7 components", "1|1|1;2;3;4;5;6;7|0|0|false|||100|id#"},
		{"frame with 5 components", "3|1|1;2;3;4;5|0|0|false|||100|id#"},
		{"second group short", "5|2|1;2;3;4;5;6,1;2;3|0|0|false|||100|id#"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(tt.raw)
			assert.ErrorIs(t, err, command.ErrProtocol)
		})
	}
}

func TestDecode_MalformedFields(t *testing.T) {
	tests := []struct {
		name  string
		raw   string
		field string
	}{
		{"missing terminator", "0|1|1;2;3;4;5;6;7|0|0|false|||100|id", "frame"},
		{"too few fields", "0#", "frame"},
		{"too many fields", "9|0||1|1|true|||100|id|extra#", "frame"},
		{"non numeric action", "move|0||0|0|false|||100|id#", "action"},
		{"non numeric count", "0|one|1;2;3;4;5;6;7|0|0|false|||100|id#", "numPoints"},
		{"negative count", "0|-1||0|0|false|||100|id#", "numPoints"},
		{"non numeric component", "0|1|1;2;x;4;5;6;7|0|0|false|||100|id#", "points"},
		{"infinite component", "0|1|1;2;Inf;4;5;6;7|0|0|false|||100|id#", "points"},
		{"non numeric io point", "9|0||a|1|true|||100|id#", "ioPoint"},
		{"non numeric io pin", "9|0||1|b|true|||100|id#", "ioPin"},
		{"non boolean io state", "9|0||1|1|maybe|||100|id#", "ioState"},
		{"non numeric speed", "0|1|1;2;3;4;5;6;7|0|0|false|||fast|id#", "speedOverride"},
		{"embedded terminator", "9|0||1#|1|true|||100|id#", "frame"},
		{"io with non numeric count", "9|abc|garbage|1|1|true|||100|io#", "numPoints"},
		{"io with points", "9|1|1;2;3;4;5;6|1|1|true|||100|io#", "points"},
		{"program call with non numeric count", "101|x||0|0|false|||100|id#", "numPoints"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd, err := Decode(tt.raw)
			assert.Nil(t, cmd)

			var perr *command.ProtocolError
			require.True(t, errors.As(err, &perr), "expected ProtocolError, got %v", err)
			assert.Equal(t, tt.field, perr.Field)
		})
	}
}

func TestDecode_SpeedOutOfRange(t *testing.T) {
	for _, raw := range []string{
		"0|1|1;2;3;4;5;6;7|0|0|false|||150|id#",
		"1|1|1;2;3;4;5;6|0|0|false|||-1|id#",
	} {
		_, err := Decode(raw)
		assert.ErrorIs(t, err, command.ErrValidation, raw)
		assert.NotErrorIs(t, err, command.ErrProtocol, raw)
	}
}

func TestDecode_Defaults(t *testing.T) {
	t.Run("empty action is unknown", func(t *testing.T) {
		cmd, err := Decode("|0||||||||x#")
		require.NoError(t, err)
		unknown, ok := cmd.(*command.Unknown)
		require.True(t, ok)
		assert.Equal(t, command.ActionUnknown, unknown.Code)
		assert.Equal(t, "x", unknown.ID())
	})

	t.Run("out of table code is unknown", func(t *testing.T) {
		cmd, err := Decode("42|0||0|0|false|||100|y#")
		require.NoError(t, err)
		assert.Equal(t, command.CategoryUnknown, cmd.Category())
	})

	t.Run("missing trailing fields", func(t *testing.T) {
		cmd, err := Decode("9|0#")
		require.NoError(t, err)
		io := cmd.(*command.IoAction)
		assert.Equal(t, 0, io.Point)
		assert.Equal(t, 0, io.Pin)
		assert.False(t, io.State)
		assert.Equal(t, "", io.ID())
	})

	t.Run("speed defaults to full", func(t *testing.T) {
		cmd, err := Decode("0|1|1;2;3;4;5;6;7#")
		require.NoError(t, err)
		assert.Equal(t, 1.0, cmd.(*command.AxisMovement).Params.SpeedOverride)
	})

	t.Run("surrounding whitespace", func(t *testing.T) {
		cmd, err := Decode("\r\n 9|0||2|3|1|||100|ws# \n")
		require.NoError(t, err)
		assert.Equal(t, "ws", cmd.ID())
	})
}

func TestEncodeDecode_RoundTrip(t *testing.T) {
	params, err := command.NewMotionParameters(0.5, "T1", "B1")
	require.NoError(t, err)

	cmds := []command.Command{
		&command.AxisMovement{
			CommandID: "axis",
			Code:      command.ActionPTPAxisCont,
			Points:    []command.JointVector{{1, 2, 3, 4, 5, 6, 7}, {-1.5, 0, 0.25, 90, -90, 45, 0}},
			Params:    params,
		},
		&command.FrameMovement{
			CommandID: "frame",
			Code:      command.ActionLINFrame,
			Points:    []command.Pose{{X: 100, Y: -200, Z: 300.5, A: 0, B: 90, C: 180}},
			Params:    command.MotionParameters{SpeedOverride: 1, Tool: "gripper"},
		},
		&command.FrameMovement{
			CommandID: "delta",
			Code:      command.ActionLINRelTool,
			Points:    []command.Pose{{Z: 10}},
			Params:    command.MotionParameters{SpeedOverride: 0.25},
			Offset:    command.OffsetTool,
		},
		&command.IoAction{CommandID: "io", Code: command.ActionIOToggle, Point: 2, Pin: 4, State: true},
		&command.ProgramCall{CommandID: "prog", ProgramID: 7},
		&command.Unknown{CommandID: "unk", Code: 55},
		&command.Unknown{CommandID: "none", Code: command.ActionUnknown},
	}

	for _, original := range cmds {
		wire, err := Encode(original)
		require.NoError(t, err)

		decoded, err := Decode(wire)
		require.NoError(t, err, wire)
		assert.Equal(t, original, decoded, wire)
	}
}

func TestEncode_RejectsDelimiters(t *testing.T) {
	_, err := Encode(&command.IoAction{CommandID: "a|b", Code: command.ActionIOSet})
	assert.ErrorIs(t, err, ErrUnencodable)

	_, err = Encode(&command.AxisMovement{
		CommandID: "ok",
		Code:      command.ActionPTPAxis,
		Points:    []command.JointVector{{}},
		Params:    command.MotionParameters{SpeedOverride: 1, Tool: "t#1"},
	})
	assert.ErrorIs(t, err, ErrUnencodable)

	_, err = Encode(nil)
	assert.ErrorIs(t, err, ErrUnencodable)
}

func TestPeekID(t *testing.T) {
	assert.Equal(t, "id-9", PeekID("1|2|bad|0|0|false|||100|id-9#"))
	assert.Equal(t, "", PeekID("1|2#"))
	assert.Equal(t, "x", PeekID("  |||||||||x#\n"))
}
