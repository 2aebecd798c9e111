// Package executor runs queued commands one at a time against the robot.
//
// The device accepts a single motion at a time, so exactly one Consumer drains
// the queue:
//
//	Run ─► Dequeue(poll) ─► Process ─► execute (motion / io / program / unknown)
//	                           └────► Pending.Resolve exactly once, even on panic
package executor

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync/atomic"
	"time"

	"robotbridge/internal/command"
	"robotbridge/internal/queue"
)

const (
	DefaultPollInterval = 100 * time.Millisecond
	DefaultPulseWidth   = 200 * time.Millisecond
)

type Options struct {
	PollInterval time.Duration
	PulseWidth   time.Duration
	Pins         map[int]string // nil means DefaultPins
}

// Stats is a snapshot of the consumer counters.
type Stats struct {
	Processed uint64 `json:"processed"`
	Succeeded uint64 `json:"succeeded"`
	Failed    uint64 `json:"failed"`
	Running   bool   `json:"running"`
	Current   uint64 `json:"current_seq,omitempty"` // sequence number in execution, 0 when idle
}

type Consumer struct {
	queue  *queue.Queue
	motion MotionController
	io     IOController
	logger *slog.Logger
	opts   Options

	processed atomic.Uint64
	succeeded atomic.Uint64
	failed    atomic.Uint64
	running   atomic.Bool
	current   atomic.Uint64
}

func NewConsumer(q *queue.Queue, motion MotionController, io IOController, logger *slog.Logger, opts Options) *Consumer {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}
	if opts.PulseWidth <= 0 {
		opts.PulseWidth = DefaultPulseWidth
	}
	if opts.Pins == nil {
		opts.Pins = DefaultPins
	}
	return &Consumer{
		queue:  q,
		motion: motion,
		io:     io,
		logger: logger.With("component", "executor"),
		opts:   opts,
	}
}

// Run drains the queue until ctx is cancelled. The command in progress when ctx
// is cancelled finishes first.
func (c *Consumer) Run(ctx context.Context) {
	c.running.Store(true)
	defer c.running.Store(false)
	c.logger.Info("consumer_started", "poll_interval", c.opts.PollInterval.String())

	for {
		select {
		case <-ctx.Done():
			c.logger.Info("consumer_stopped", "processed", c.processed.Load())
			return
		default:
		}

		p, ok := c.queue.Dequeue(c.opts.PollInterval)
		if !ok {
			continue
		}
		c.Process(p)
	}
}

// Process executes one pending command and resolves it exactly once.
func (c *Consumer) Process(p *queue.Pending) {
	c.current.Store(p.Seq)
	defer c.current.Store(0)

	start := time.Now()
	err := c.safeExecute(p)
	success := err == nil

	if rerr := p.Resolve(success, err); rerr != nil {
		c.logger.Error("resolve_failed",
			"seq", p.Seq,
			"id", p.Command.ID(),
			"error", rerr,
		)
	}

	c.processed.Add(1)
	if success {
		c.succeeded.Add(1)
		c.logger.Info("command_succeeded",
			"seq", p.Seq,
			"id", p.Command.ID(),
			"action", command.ActionName(p.Command),
			"duration_ms", time.Since(start).Milliseconds(),
		)
		return
	}
	c.failed.Add(1)
	c.logger.Warn("command_failed",
		"seq", p.Seq,
		"id", p.Command.ID(),
		"action", command.ActionName(p.Command),
		"error", err.Error(),
		"duration_ms", time.Since(start).Milliseconds(),
	)
}

// safeExecute turns panics from collaborators into an ExecutionFault.
func (c *Consumer) safeExecute(p *queue.Pending) (err error) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("collaborator_panic",
				"seq", p.Seq,
				"panic", fmt.Sprint(r),
				"stack", string(debug.Stack()),
			)
			err = &ExecutionFault{Op: "execute", Err: fmt.Errorf("panic: %v", r)}
		}
	}()
	return c.execute(p.Context(), p.Command)
}

func (c *Consumer) execute(ctx context.Context, cmd command.Command) error {
	switch cmd := cmd.(type) {
	case *command.AxisMovement:
		return c.moveAxis(ctx, cmd)
	case *command.FrameMovement:
		return c.moveFrame(ctx, cmd)
	case *command.IoAction:
		return c.setIO(ctx, cmd)
	case *command.ProgramCall:
		c.logger.Warn("program_call_unsupported", "program_id", cmd.ProgramID, "id", cmd.ID())
		return fmt.Errorf("program %d: %w", cmd.ProgramID, ErrProgramCallUnsupported)
	case *command.Unknown:
		c.logger.Warn("unknown_action", "action", cmd.Code.String(), "id", cmd.ID())
		return fmt.Errorf("%s: %w", cmd.Code, ErrUnknownAction)
	default:
		return fmt.Errorf("%T: %w", cmd, ErrUnknownAction)
	}
}

// Stats returns the current counters.
func (c *Consumer) Stats() Stats {
	return Stats{
		Processed: c.processed.Load(),
		Succeeded: c.succeeded.Load(),
		Failed:    c.failed.Load(),
		Running:   c.running.Load(),
		Current:   c.current.Load(),
	}
}
