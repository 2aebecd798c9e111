package executor

import (
	"context"
	"fmt"
	"time"

	"robotbridge/internal/command"
)

// AxisMotions builds one joint-space primitive per target.
func AxisMotions(cmd *command.AxisMovement) []Motion {
	spec := cmd.Spec()
	motions := make([]Motion, len(cmd.Points))
	for i, p := range cmd.Points {
		motions[i] = Motion{
			Space:      command.SpaceJoint,
			Kind:       spec.Kind,
			Continuous: spec.Continuous,
			Joints:     p,
			Speed:      cmd.Params.SpeedOverride,
			Tool:       cmd.Params.Tool,
			Base:       cmd.Params.Base,
		}
	}
	return motions
}

// FrameMotions builds one Cartesian primitive per target or delta.
func FrameMotions(cmd *command.FrameMovement) []Motion {
	spec := cmd.Spec()
	motions := make([]Motion, len(cmd.Points))
	for i, p := range cmd.Points {
		motions[i] = Motion{
			Space:      command.SpaceCartesian,
			Kind:       spec.Kind,
			Continuous: spec.Continuous,
			Offset:     cmd.Offset,
			Pose:       p,
			Speed:      cmd.Params.SpeedOverride,
			Tool:       cmd.Params.Tool,
			Base:       cmd.Params.Base,
		}
	}
	return motions
}

func (c *Consumer) moveAxis(ctx context.Context, cmd *command.AxisMovement) error {
	return c.run(ctx, cmd.Code, AxisMotions(cmd))
}

func (c *Consumer) moveFrame(ctx context.Context, cmd *command.FrameMovement) error {
	return c.run(ctx, cmd.Code, FrameMotions(cmd))
}

// run sends a single primitive directly and several as one compound motion.
func (c *Consumer) run(ctx context.Context, code command.ActionCode, motions []Motion) error {
	if c.motion == nil {
		return &ExecutionFault{Op: "move", Err: ErrNoController}
	}
	switch len(motions) {
	case 0:
		return ErrNoTargets
	case 1:
		c.logger.Debug("motion_start", "action", code.String(), "space", motions[0].Space.String(), "kind", motions[0].Kind.String())
		if err := c.motion.Move(ctx, motions[0]); err != nil {
			return &ExecutionFault{Op: "move", Err: err}
		}
	default:
		c.logger.Debug("motion_batch_start", "action", code.String(), "points", len(motions))
		if err := c.motion.MoveBatch(ctx, motions); err != nil {
			return &ExecutionFault{Op: "move_batch", Err: err}
		}
	}
	return nil
}

func (c *Consumer) setIO(ctx context.Context, cmd *command.IoAction) error {
	if c.io == nil {
		return &ExecutionFault{Op: "io", Err: ErrNoController}
	}
	output, ok := c.opts.Pins[cmd.Pin]
	if !ok {
		return fmt.Errorf("pin %d: %w", cmd.Pin, ErrUnknownPin)
	}

	switch cmd.Op() {
	case command.IOOpPulse:
		if err := c.io.SetOutput(ctx, cmd.Point, output, cmd.State); err != nil {
			return &ExecutionFault{Op: "io_pulse", Err: err}
		}
		timer := time.NewTimer(c.opts.PulseWidth)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
		}
		// the output is restored even when the pulse was cut short
		if err := c.io.SetOutput(context.WithoutCancel(ctx), cmd.Point, output, !cmd.State); err != nil {
			return &ExecutionFault{Op: "io_pulse", Err: err}
		}
		return ctx.Err()
	case command.IOOpToggle:
		current, err := c.io.Output(ctx, cmd.Point, output)
		if err != nil {
			return &ExecutionFault{Op: "io_toggle", Err: err}
		}
		if err := c.io.SetOutput(ctx, cmd.Point, output, !current); err != nil {
			return &ExecutionFault{Op: "io_toggle", Err: err}
		}
		return nil
	default:
		if err := c.io.SetOutput(ctx, cmd.Point, output, cmd.State); err != nil {
			return &ExecutionFault{Op: "io_set", Err: err}
		}
		return nil
	}
}
