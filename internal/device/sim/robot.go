// Package sim provides an in-memory robot used when no controller is attached.
package sim

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"robotbridge/internal/command"
	"robotbridge/internal/executor"
)

var ErrInjectedFault = errors.New("injected fault")

// Robot keeps joint, pose and output state and moves instantly after Latency.
type Robot struct {
	Latency time.Duration

	logger *slog.Logger

	mu        sync.Mutex
	joints    command.JointVector
	pose      command.Pose
	outputs   map[string]bool
	failNext  error
	motions   uint64
	lastSpeed float64
}

var (
	_ executor.MotionController = (*Robot)(nil)
	_ executor.IOController     = (*Robot)(nil)
)

func New(latency time.Duration, logger *slog.Logger) *Robot {
	if logger == nil {
		logger = slog.Default()
	}
	return &Robot{
		Latency: latency,
		logger:  logger.With("component", "sim"),
		outputs: make(map[string]bool),
	}
}

// FailNext makes the next device call return err. A nil err injects ErrInjectedFault.
func (r *Robot) FailNext(err error) {
	if err == nil {
		err = ErrInjectedFault
	}
	r.mu.Lock()
	r.failNext = err
	r.mu.Unlock()
}

func (r *Robot) takeFault() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	err := r.failNext
	r.failNext = nil
	return err
}

func (r *Robot) wait(ctx context.Context) error {
	if r.Latency <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(r.Latency)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *Robot) Move(ctx context.Context, m executor.Motion) error {
	if err := r.takeFault(); err != nil {
		return err
	}
	if m.Speed < 0 || m.Speed > 1 {
		return fmt.Errorf("speed override %v out of range", m.Speed)
	}
	if err := r.wait(ctx); err != nil {
		return fmt.Errorf("motion interrupted: %w", err)
	}
	r.apply(m)
	r.logger.Debug("motion_done", "space", m.Space.String(), "kind", m.Kind.String(), "offset", m.Offset.String())
	return nil
}

func (r *Robot) MoveBatch(ctx context.Context, batch []executor.Motion) error {
	for i, m := range batch {
		if err := r.Move(ctx, m); err != nil {
			return fmt.Errorf("batch point %d: %w", i, err)
		}
	}
	return nil
}

func (r *Robot) apply(m executor.Motion) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.motions++
	r.lastSpeed = m.Speed
	switch m.Space {
	case command.SpaceJoint:
		r.joints = m.Joints
	case command.SpaceCartesian:
		if m.Offset == command.OffsetNone {
			r.pose = m.Pose
			return
		}
		// tool and base deltas are both applied in the world frame here
		r.pose = command.Pose{
			X: r.pose.X + m.Pose.X,
			Y: r.pose.Y + m.Pose.Y,
			Z: r.pose.Z + m.Pose.Z,
			A: r.pose.A + m.Pose.A,
			B: r.pose.B + m.Pose.B,
			C: r.pose.C + m.Pose.C,
		}
	}
}

func outputKey(point int, output string) string {
	return fmt.Sprintf("%d/%s", point, output)
}

func (r *Robot) SetOutput(ctx context.Context, point int, output string, state bool) error {
	if err := r.takeFault(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	r.outputs[outputKey(point, output)] = state
	r.mu.Unlock()
	r.logger.Debug("output_set", "point", point, "output", output, "state", state)
	return nil
}

func (r *Robot) Output(ctx context.Context, point int, output string) (bool, error) {
	if err := r.takeFault(); err != nil {
		return false, err
	}
	if err := ctx.Err(); err != nil {
		return false, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.outputs[outputKey(point, output)], nil
}

// State is a snapshot of the simulated arm.
type State struct {
	Joints    command.JointVector `json:"joints"`
	Pose      command.Pose        `json:"pose"`
	Motions   uint64              `json:"motions"`
	LastSpeed float64             `json:"last_speed"`
}

func (r *Robot) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return State{Joints: r.joints, Pose: r.pose, Motions: r.motions, LastSpeed: r.lastSpeed}
}
