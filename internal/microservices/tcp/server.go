// Package tcp serves the two robot sockets: the task channel that carries
// commands and the log channel that streams process logs back to the operator.
package tcp

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"robotbridge/internal/journal"
	"robotbridge/internal/logsink"
	"robotbridge/internal/queue"
)

var ErrNotListening = errors.New("server is not listening")

type Options struct {
	Host     string
	TaskPort int
	LogPort  int

	AckTimeout      time.Duration
	CancelOnTimeout bool // cancel the pending command when AckTimeout expires
	GateRetryDelay  time.Duration
	IdleTimeout     time.Duration // task read deadline, 0 disables
	MaxFrameSize    int
	RateLimit       float64 // frames per second per task session, 0 disables
	RateBurst       int
	ReplyErrors     bool // send ERROR|id|reason# instead of FREE|id# on failure
}

func (o *Options) setDefaults() {
	if o.AckTimeout <= 0 {
		o.AckTimeout = 60 * time.Second
	}
	if o.GateRetryDelay <= 0 {
		o.GateRetryDelay = 500 * time.Millisecond
	}
	if o.RateBurst <= 0 {
		o.RateBurst = 1
	}
}

// Server owns the task and log listeners.
type Server struct {
	opts    Options
	Manager *SessionManager
	queue   *queue.Queue
	logs    *logsink.Switch
	journal journal.Journal // may be nil
	logger  *slog.Logger

	taskLn net.Listener
	logLn  net.Listener

	quitChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

func NewServer(opts Options, q *queue.Queue, logs *logsink.Switch, j journal.Journal, logger *slog.Logger) *Server {
	opts.setDefaults()
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "tcp")
	return &Server{
		opts:     opts,
		Manager:  NewSessionManager(logger),
		queue:    q,
		logs:     logs,
		journal:  j,
		logger:   logger,
		quitChan: make(chan struct{}),
	}
}

// Listen binds both ports. Failing to bind is fatal for the caller.
func (s *Server) Listen() error {
	taskLn, err := net.Listen("tcp", net.JoinHostPort(s.opts.Host, strconv.Itoa(s.opts.TaskPort)))
	if err != nil {
		return fmt.Errorf("failed to bind task port %d: %w", s.opts.TaskPort, err)
	}
	logLn, err := net.Listen("tcp", net.JoinHostPort(s.opts.Host, strconv.Itoa(s.opts.LogPort)))
	if err != nil {
		taskLn.Close()
		return fmt.Errorf("failed to bind log port %d: %w", s.opts.LogPort, err)
	}
	s.taskLn, s.logLn = taskLn, logLn
	return nil
}

// Serve starts both accept loops and returns immediately.
func (s *Server) Serve() error {
	if s.taskLn == nil || s.logLn == nil {
		return ErrNotListening
	}
	s.logger.Info("server_started",
		"task_addr", s.taskLn.Addr().String(),
		"log_addr", s.logLn.Addr().String(),
	)
	s.wg.Add(2)
	go func() {
		defer s.wg.Done()
		s.acceptLoop(s.taskLn, KindTask)
	}()
	go func() {
		defer s.wg.Done()
		s.acceptLoop(s.logLn, KindLog)
	}()
	return nil
}

// Start is Listen followed by Serve.
func (s *Server) Start() error {
	if err := s.Listen(); err != nil {
		return err
	}
	return s.Serve()
}

func (s *Server) TaskAddr() net.Addr {
	if s.taskLn == nil {
		return nil
	}
	return s.taskLn.Addr()
}

func (s *Server) LogAddr() net.Addr {
	if s.logLn == nil {
		return nil
	}
	return s.logLn.Addr()
}

func (s *Server) stopping() bool {
	select {
	case <-s.quitChan:
		return true
	default:
		return false
	}
}

// acceptLoop accepts one connection at a time and hands it to its own goroutine.
func (s *Server) acceptLoop(ln net.Listener, kind Kind) {
	for {
		conn, err := ln.Accept()
		if err != nil {
			if s.stopping() || errors.Is(err, net.ErrClosed) {
				return
			}
			s.logger.Error("accept_failed", "kind", kind.String(), "error", err)
			time.Sleep(50 * time.Millisecond)
			continue
		}

		if kind == KindTask && !s.Manager.LogAttached() {
			// gate: no bytes are exchanged with a task client until a log client is attached
			conn.Close()
			s.logger.Warn("task_rejected_no_log_client", "remote_addr", conn.RemoteAddr().String())
			select {
			case <-s.quitChan:
				return
			case <-time.After(s.opts.GateRetryDelay):
			}
			continue
		}

		s.wg.Add(1)
		go func(conn net.Conn) {
			defer s.wg.Done()
			s.handleConnection(conn, kind)
		}(conn)
	}
}

func (s *Server) handleConnection(conn net.Conn, kind Kind) {
	var limiter *rate.Limiter
	if kind == KindTask && s.opts.RateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(s.opts.RateLimit), s.opts.RateBurst)
	}
	sess := newSession(conn, kind, limiter)
	s.Manager.Add(sess)
	defer s.Manager.Remove(sess)
	defer sess.Close()

	if s.stopping() {
		return
	}
	if kind == KindLog {
		s.serveLog(sess)
		return
	}
	s.serveTask(sess)
}

// Stop closes the listeners and every session, then waits up to timeout for the
// handlers to return.
func (s *Server) Stop(timeout time.Duration) error {
	s.stopOnce.Do(func() {
		close(s.quitChan)
		if s.taskLn != nil {
			s.taskLn.Close()
		}
		if s.logLn != nil {
			s.logLn.Close()
		}
		s.Manager.CloseAll()
	})

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		s.logger.Info("server_stopped")
		return nil
	case <-time.After(timeout):
		return fmt.Errorf("tcp server: handlers still running after %s", timeout)
	}
}
