package tcp

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

const sinkWriteTimeout = 2 * time.Second

type Kind int

const (
	KindTask Kind = iota
	KindLog
)

func (k Kind) String() string {
	if k == KindLog {
		return "log"
	}
	return "task"
}

// Session is one accepted socket on either channel.
type Session struct {
	ID          string
	Kind        Kind
	Remote      string
	ConnectedAt time.Time

	conn    net.Conn
	limiter *rate.Limiter // task sessions only

	wmu    sync.Mutex
	writer *bufio.Writer

	commands atomic.Uint64
	closed   atomic.Bool
}

// SessionInfo is the snapshot served by the status API.
type SessionInfo struct {
	ID          string    `json:"id"`
	Kind        string    `json:"kind"`
	Remote      string    `json:"remote"`
	ConnectedAt time.Time `json:"connected_at"`
	Commands    uint64    `json:"commands"`
	LogSink     bool      `json:"log_sink,omitempty"`
}

func newSession(conn net.Conn, kind Kind, limiter *rate.Limiter) *Session {
	return &Session{
		ID:          uuid.NewString(),
		Kind:        kind,
		Remote:      conn.RemoteAddr().String(),
		ConnectedAt: time.Now(),
		conn:        conn,
		limiter:     limiter,
		writer:      bufio.NewWriter(conn),
	}
}

// Send writes one reply frame and flushes it.
func (s *Session) Send(frame string) error {
	s.wmu.Lock()
	defer s.wmu.Unlock()
	if _, err := s.writer.WriteString(frame); err != nil {
		return fmt.Errorf("failed to write frame: %w", err)
	}
	if err := s.writer.Flush(); err != nil {
		return fmt.Errorf("failed to flush writer: %w", err)
	}
	return nil
}

// WriteLine makes a log session usable as a logsink.Sink.
func (s *Session) WriteLine(line string) error {
	s.wmu.Lock()
	defer s.wmu.Unlock()
	if s.closed.Load() {
		return net.ErrClosed
	}
	s.conn.SetWriteDeadline(time.Now().Add(sinkWriteTimeout))
	if _, err := s.writer.WriteString(line); err != nil {
		return err
	}
	return s.writer.Flush()
}

func (s *Session) Info() SessionInfo {
	return SessionInfo{
		ID:          s.ID,
		Kind:        s.Kind.String(),
		Remote:      s.Remote,
		ConnectedAt: s.ConnectedAt,
		Commands:    s.commands.Load(),
	}
}

func (s *Session) Close() {
	if s.closed.CompareAndSwap(false, true) {
		s.conn.Close()
	}
}

// isDisconnect reports read errors that simply mean the peer or the server
// closed the socket.
func isDisconnect(err error) bool {
	if errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) {
		return true
	}
	// Windows: "connection was aborted", "forcibly closed"
	msg := err.Error()
	return strings.Contains(msg, "closed network connection") ||
		strings.Contains(msg, "connection reset") ||
		strings.Contains(msg, "connection was aborted") ||
		strings.Contains(msg, "forcibly closed")
}

func isTimeout(err error) bool {
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
