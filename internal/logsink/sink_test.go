package logsink

import (
	"errors"
	"log/slog"
	"regexp"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type bufferSink struct {
	mu    sync.Mutex
	lines []string
	err   error
}

func (b *bufferSink) WriteLine(line string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.err != nil {
		return b.err
	}
	b.lines = append(b.lines, line)
	return nil
}

func (b *bufferSink) Lines() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.lines...)
}

func TestSwitch_LastWriterWins(t *testing.T) {
	sw := NewSwitch()
	assert.False(t, sw.Attached())

	first, second := &bufferSink{}, &bufferSink{}
	prev := sw.Attach(first)
	assert.IsType(t, Nop{}, prev)

	prev = sw.Attach(second)
	assert.Same(t, first, prev)

	sw.WriteLine("hello\n")
	assert.Empty(t, first.Lines())
	assert.Equal(t, []string{"hello\n"}, second.Lines())

	// detaching a replaced sink leaves the current one in place
	assert.False(t, sw.Detach(first))
	assert.True(t, sw.Attached())

	assert.True(t, sw.Detach(second))
	assert.False(t, sw.Attached())
}

func TestSwitch_WriteErrorsAreCounted(t *testing.T) {
	sw := NewSwitch()
	sw.Attach(&bufferSink{err: errors.New("broken pipe")})

	assert.NoError(t, sw.WriteLine("x\n"))
	assert.Equal(t, uint64(1), sw.Dropped())
}

var lineFormat = regexp.MustCompile(`^\[\d{2}:\d{2}:\d{2}\.\d{3}\] \[[A-Z_]+\] .*\n$`)

func TestHandler_FormatsLines(t *testing.T) {
	sw := NewSwitch()
	sink := &bufferSink{}
	sw.Attach(sink)

	logger := slog.New(NewHandler(slog.DiscardHandler, sw, slog.LevelInfo))
	logger.Info("command_done", "component", "executor", "id", "id-1", "success", true)
	logger.Warn("plain warning")
	logger.Debug("not streamed")

	lines := sink.Lines()
	require.Len(t, lines, 2)

	assert.Regexp(t, lineFormat, lines[0])
	assert.True(t, strings.HasSuffix(lines[0], "[EXECUTOR] command_done id=id-1 success=true\n"), lines[0])

	assert.Regexp(t, lineFormat, lines[1])
	assert.Contains(t, lines[1], "[WARN] plain warning")
}

func TestHandler_WithAttrsCarriesTag(t *testing.T) {
	sw := NewSwitch()
	sink := &bufferSink{}
	sw.Attach(sink)

	logger := slog.New(NewHandler(nil, sw, nil)).With("component", "tcp", "port", 30001)
	logger.WithGroup("session").Info("accepted", "id", "abc")

	lines := sink.Lines()
	require.Len(t, lines, 1)
	assert.Contains(t, lines[0], "[TCP] accepted port=30001 session.id=abc")
}

func TestHandler_NoSinkAttached(t *testing.T) {
	sw := NewSwitch()
	logger := slog.New(NewHandler(slog.DiscardHandler, sw, slog.LevelInfo))
	assert.NotPanics(t, func() { logger.Error("nobody listening") })
}
