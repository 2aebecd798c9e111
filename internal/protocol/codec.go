// Package protocol implements the task-channel line protocol.
//
// Every message is ASCII text terminated by '#'. Fields are ordinal and separated
// by '|'; the points field holds groups separated by ',' whose components are
// separated by ';':
//
//	<action>|<numPoints>|<points>|<ioPoint>|<ioPin>|<ioState>|<tool>|<base>|<speedPct>|<id>#
//	0|1|10;20;30;40;50;60;70|0|0|false|T1|B1|50.0|id-1#
//
// Action codes >= 100 encode a program call whose id is the code minus 100.
package protocol

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"robotbridge/internal/command"
)

const (
	Terminator   = '#'
	FieldSep     = "|"
	PointSep     = ","
	ComponentSep = ";"

	MinFields = 2
	MaxFields = 10

	DefaultSpeedPercent = 100.0
)

// Ordinal field positions.
const (
	FieldAction = iota
	FieldNumPoints
	FieldPoints
	FieldIOPoint
	FieldIOPin
	FieldIOState
	FieldTool
	FieldBase
	FieldSpeed
	FieldID
)

var fieldNames = [MaxFields]string{
	"action", "numPoints", "points", "ioPoint", "ioPin", "ioState", "tool", "base", "speedOverride", "id",
}

// fields gives defaulted access to the ordinal fields of one message.
type fields []string

func (f fields) get(i int) string {
	if i >= len(f) {
		return ""
	}
	return strings.TrimSpace(f[i])
}

func (f fields) intField(i int) (int, error) {
	s := f.get(i)
	if s == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, &command.ProtocolError{Field: fieldNames[i], Value: s, Reason: "not an integer", Err: err}
	}
	return n, nil
}

func (f fields) boolField(i int) (bool, error) {
	s := f.get(i)
	if s == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(s)
	if err != nil {
		return false, &command.ProtocolError{Field: fieldNames[i], Value: s, Reason: "not a boolean", Err: err}
	}
	return b, nil
}

// Decode parses one '#'-terminated message. It returns either a complete command
// or an error; partial commands are never produced.
func Decode(raw string) (command.Command, error) {
	msg := strings.TrimSpace(raw)
	if len(msg) == 0 || msg[len(msg)-1] != Terminator {
		return nil, &command.ProtocolError{Field: "frame", Reason: "missing terminator"}
	}
	body := msg[:len(msg)-1]
	if strings.IndexByte(body, Terminator) >= 0 {
		return nil, &command.ProtocolError{Field: "frame", Reason: "terminator inside message"}
	}

	f := fields(strings.Split(body, FieldSep))
	if len(f) < MinFields {
		return nil, &command.ProtocolError{Field: "frame", Value: body, Reason: fmt.Sprintf("too few fields: %d < %d", len(f), MinFields)}
	}
	if len(f) > MaxFields {
		return nil, &command.ProtocolError{Field: "frame", Value: body, Reason: fmt.Sprintf("too many fields: %d > %d", len(f), MaxFields)}
	}

	// numPoints must be an integer whatever the category
	numPoints, err := f.intField(FieldNumPoints)
	if err != nil {
		return nil, err
	}

	id := f.get(FieldID)

	actionStr := f.get(FieldAction)
	if actionStr == "" {
		return &command.Unknown{CommandID: id, Code: command.ActionUnknown}, nil
	}
	rawCode, err := strconv.Atoi(actionStr)
	if err != nil {
		return nil, &command.ProtocolError{Field: fieldNames[FieldAction], Value: actionStr, Reason: "not an integer", Err: err}
	}

	code, programCall := command.SplitRaw(rawCode)
	if programCall {
		return &command.ProgramCall{CommandID: id, ProgramID: int(code)}, nil
	}

	spec, ok := command.Lookup(code)
	if !ok {
		return &command.Unknown{CommandID: id, Code: code}, nil
	}

	switch spec.Payload {
	case command.PayloadJoints:
		return decodeAxis(f, spec, id)
	case command.PayloadPoses, command.PayloadDeltas:
		return decodeFrame(f, spec, id)
	case command.PayloadIOField:
		return decodeIO(f, spec, id, numPoints)
	default:
		return &command.Unknown{CommandID: id, Code: code}, nil
	}
}

func decodeAxis(f fields, spec command.ActionSpec, id string) (command.Command, error) {
	groups, err := decodePoints(f, spec.Arity)
	if err != nil {
		return nil, err
	}
	params, err := decodeMotionParams(f)
	if err != nil {
		return nil, err
	}
	points := make([]command.JointVector, len(groups))
	for i, g := range groups {
		copy(points[i][:], g)
	}
	return &command.AxisMovement{CommandID: id, Code: spec.Code, Points: points, Params: params}, nil
}

func decodeFrame(f fields, spec command.ActionSpec, id string) (command.Command, error) {
	groups, err := decodePoints(f, spec.Arity)
	if err != nil {
		return nil, err
	}
	params, err := decodeMotionParams(f)
	if err != nil {
		return nil, err
	}
	points := make([]command.Pose, len(groups))
	for i, g := range groups {
		var c [command.PoseComponents]float64
		copy(c[:], g)
		points[i] = command.PoseFromComponents(c)
	}
	return &command.FrameMovement{CommandID: id, Code: spec.Code, Points: points, Params: params, Offset: spec.Offset}, nil
}

func decodeIO(f fields, spec command.ActionSpec, id string, numPoints int) (command.Command, error) {
	if numPoints != 0 || f.get(FieldPoints) != "" {
		return nil, &command.ProtocolError{
			Field:  fieldNames[FieldPoints],
			Value:  f.get(FieldPoints),
			Reason: fmt.Sprintf("IO command carries %d points, want none", numPoints),
		}
	}
	point, err := f.intField(FieldIOPoint)
	if err != nil {
		return nil, err
	}
	pin, err := f.intField(FieldIOPin)
	if err != nil {
		return nil, err
	}
	state, err := f.boolField(FieldIOState)
	if err != nil {
		return nil, err
	}
	return &command.IoAction{CommandID: id, Code: spec.Code, Point: point, Pin: pin, State: state}, nil
}

// decodePoints splits the points blob into exactly numPoints groups of arity components.
func decodePoints(f fields, arity int) ([][]float64, error) {
	numPoints, err := f.intField(FieldNumPoints)
	if err != nil {
		return nil, err
	}
	if numPoints < 0 {
		return nil, &command.ProtocolError{Field: fieldNames[FieldNumPoints], Value: f.get(FieldNumPoints), Reason: "negative point count"}
	}

	blob := f.get(FieldPoints)
	var rawGroups []string
	if blob != "" {
		rawGroups = strings.Split(blob, PointSep)
	}
	if len(rawGroups) != numPoints {
		return nil, &command.ProtocolError{
			Field:  fieldNames[FieldPoints],
			Value:  blob,
			Reason: fmt.Sprintf("declared %d points, found %d", numPoints, len(rawGroups)),
		}
	}

	groups := make([][]float64, 0, numPoints)
	for gi, g := range rawGroups {
		parts := strings.Split(g, ComponentSep)
		if len(parts) != arity {
			return nil, &command.ProtocolError{
				Field:  fieldNames[FieldPoints],
				Value:  g,
				Reason: fmt.Sprintf("point %d has %d components, want %d", gi, len(parts), arity),
			}
		}
		values := make([]float64, arity)
		for ci, p := range parts {
			p = strings.TrimSpace(p)
			v, err := strconv.ParseFloat(p, 64)
			if err != nil {
				return nil, &command.ProtocolError{
					Field:  fieldNames[FieldPoints],
					Value:  p,
					Reason: fmt.Sprintf("point %d component %d is not a number", gi, ci),
					Err:    err,
				}
			}
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return nil, &command.ProtocolError{
					Field:  fieldNames[FieldPoints],
					Value:  p,
					Reason: fmt.Sprintf("point %d component %d is not finite", gi, ci),
				}
			}
			values[ci] = v
		}
		groups = append(groups, values)
	}
	return groups, nil
}

func decodeMotionParams(f fields) (command.MotionParameters, error) {
	pct := DefaultSpeedPercent
	if s := f.get(FieldSpeed); s != "" {
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return command.MotionParameters{}, &command.ProtocolError{Field: fieldNames[FieldSpeed], Value: s, Reason: "not a number", Err: err}
		}
		pct = v
	}
	return command.NewMotionParameters(pct/100, f.get(FieldTool), f.get(FieldBase))
}

// PeekID returns the id field of a frame that may not decode, so a reply can
// still be correlated. It returns "" when the frame has no id field.
func PeekID(raw string) string {
	body := strings.TrimSuffix(strings.TrimSpace(raw), string(Terminator))
	f := strings.Split(body, FieldSep)
	if len(f) <= FieldID {
		return ""
	}
	return strings.TrimSpace(f[FieldID])
}
