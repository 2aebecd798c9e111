// Package logsink streams process log output to the attached log-channel client.
//
// A Switch holds the current Sink. Attaching a new client replaces the previous
// one (last writer wins); writes in flight to the old sink are not drained.
// Handler is a slog.Handler that mirrors every record to a Switch as
//
//	[15:04:05.000] [TAG] message key=value ...
package logsink

import (
	"sync"
)

// Sink receives formatted log lines, newline included.
type Sink interface {
	WriteLine(line string) error
}

// Nop discards everything. It is the sink while no client is attached.
type Nop struct{}

func (Nop) WriteLine(string) error { return nil }

// Switch is the handle components share instead of a global logger.
type Switch struct {
	mu      sync.RWMutex
	current Sink
	dropped uint64
}

func NewSwitch() *Switch {
	return &Switch{current: Nop{}}
}

// Attach makes s the current sink and returns the one it replaced.
func (sw *Switch) Attach(s Sink) Sink {
	if s == nil {
		s = Nop{}
	}
	sw.mu.Lock()
	defer sw.mu.Unlock()
	prev := sw.current
	sw.current = s
	return prev
}

// Detach reverts to Nop only if s is still the current sink.
func (sw *Switch) Detach(s Sink) bool {
	sw.mu.Lock()
	defer sw.mu.Unlock()
	if sw.current != s {
		return false
	}
	sw.current = Nop{}
	return true
}

// Current returns the attached sink.
func (sw *Switch) Current() Sink {
	sw.mu.RLock()
	defer sw.mu.RUnlock()
	return sw.current
}

// Attached reports whether a real sink is installed.
func (sw *Switch) Attached() bool {
	_, nop := sw.Current().(Nop)
	return !nop
}

// WriteLine forwards a line to the current sink. Write errors are counted, not returned,
// so a dead client never blocks logging.
func (sw *Switch) WriteLine(line string) error {
	if err := sw.Current().WriteLine(line); err != nil {
		sw.mu.Lock()
		sw.dropped++
		sw.mu.Unlock()
	}
	return nil
}

// Dropped returns how many lines failed to reach a sink.
func (sw *Switch) Dropped() uint64 {
	sw.mu.RLock()
	defer sw.mu.RUnlock()
	return sw.dropped
}
