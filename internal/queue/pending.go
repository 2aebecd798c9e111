package queue

import (
	"context"
	"errors"
	"sync"
	"time"

	"robotbridge/internal/command"
)

var (
	ErrAckTimeout      = errors.New("timed out waiting for command completion")
	ErrNotEnqueued     = errors.New("pending command resolved before it was enqueued")
	ErrAlreadyResolved = errors.New("pending command already resolved")
)

// Result is the outcome recorded by the consumer.
type Result struct {
	Success    bool
	Err        error
	FinishedAt time.Time
}

// Pending pairs a command with a one-shot completion signal. The consumer resolves
// it exactly once; the producer waits on it and then drops it.
type Pending struct {
	Command    command.Command
	Seq        uint64
	EnqueuedAt time.Time

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	mu       sync.Mutex
	enqueued bool
	resolved bool
	result   Result
}

func newPending(cmd command.Command) *Pending {
	ctx, cancel := context.WithCancel(context.Background())
	return &Pending{
		Command: cmd,
		ctx:     ctx,
		cancel:  cancel,
		done:    make(chan struct{}),
	}
}

// Resolve records the outcome and fires the completion signal.
func (p *Pending) Resolve(success bool, err error) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.enqueued {
		return ErrNotEnqueued
	}
	if p.resolved {
		return ErrAlreadyResolved
	}
	p.resolved = true
	p.result = Result{Success: success, Err: err, FinishedAt: time.Now()}
	close(p.done)
	p.cancel()
	return nil
}

// Done is closed once the command has been resolved.
func (p *Pending) Done() <-chan struct{} { return p.done }

// Wait blocks until resolution or until timeout elapses. A timeout does not stop
// the command; see Cancel.
func (p *Pending) Wait(timeout time.Duration) (Result, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-p.done:
		return p.Result(), nil
	case <-timer.C:
		return Result{}, ErrAckTimeout
	}
}

// Result returns the recorded outcome; it is the zero Result until resolved.
func (p *Pending) Result() Result {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.result
}

// Resolved reports whether Resolve has succeeded.
func (p *Pending) Resolved() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.resolved
}

// Context is handed to the device collaborators. It is cancelled by Cancel or
// after resolution.
func (p *Pending) Context() context.Context { return p.ctx }

// Cancel requests cooperative cancellation of the in-flight execution. The
// command is still resolved by the consumer.
func (p *Pending) Cancel() { p.cancel() }
