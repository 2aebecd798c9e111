package tcp

import (
	"context"
	"errors"
	"io"
	"time"

	"robotbridge/internal/command"
	"robotbridge/internal/journal"
	"robotbridge/internal/protocol"
	"robotbridge/internal/queue"
)

var (
	ErrRateLimited  = errors.New("rate limit exceeded")
	ErrShuttingDown = errors.New("server shutting down")
)

// serveLog makes sess the process log sink until the client disconnects.
// Anything the client sends is discarded.
func (s *Server) serveLog(sess *Session) {
	if prev := s.Manager.AttachLog(sess, s.logs); prev != "" {
		s.logger.Info("log_client_replaced", "session_id", sess.ID, "previous_session_id", prev)
	} else {
		s.logger.Info("log_client_attached", "session_id", sess.ID, "remote_addr", sess.Remote)
	}

	_, err := io.Copy(io.Discard, sess.conn)

	next := s.Manager.DetachLog(sess, s.logs)
	if err != nil && !isDisconnect(err) {
		s.logger.Warn("log_client_read_error", "session_id", sess.ID, "error", err)
	}
	s.logger.Info("log_client_disconnected", "session_id", sess.ID, "sink_session_id", next)
}

// serveTask greets the client and then answers every frame it sends.
func (s *Server) serveTask(sess *Session) {
	if err := sess.Send(protocol.Greeting); err != nil {
		s.logger.Warn("greeting_failed", "session_id", sess.ID, "error", err)
		return
	}
	s.logger.Info("task_client_connected", "session_id", sess.ID, "remote_addr", sess.Remote)

	reader := protocol.NewReader(sess.conn, s.opts.MaxFrameSize)
	for {
		if s.opts.IdleTimeout > 0 {
			sess.conn.SetReadDeadline(time.Now().Add(s.opts.IdleTimeout))
		}
		frame, err := reader.ReadFrame()
		if err != nil {
			switch {
			case errors.Is(err, protocol.ErrFrameTooLarge):
				s.logger.Warn("frame_too_large", "session_id", sess.ID, "max_size", s.opts.MaxFrameSize)
				s.reply(sess, "", err)
				continue
			case errors.Is(err, protocol.ErrPartialFrame):
				s.logger.Warn("partial_frame_dropped", "session_id", sess.ID)
			case isTimeout(err):
				s.logger.Warn("task_client_idle_timeout", "session_id", sess.ID)
			case isDisconnect(err):
				s.logger.Info("task_client_disconnected", "session_id", sess.ID)
			default:
				s.logger.Error("task_read_error", "session_id", sess.ID, "error", err)
			}
			return
		}
		if protocol.IsBlank(frame) {
			continue
		}

		if sess.limiter != nil && !sess.limiter.Allow() {
			id := protocol.PeekID(frame)
			s.logger.Warn("rate_limit_exceeded", "session_id", sess.ID, "id", id)
			rec := journal.NewRecord(nil, journal.OutcomeRejected, time.Now(), ErrRateLimited)
			rec.CommandID = id
			s.reply(sess, id, ErrRateLimited)
			s.record(sess, rec)
			continue
		}

		if err := s.handleFrame(sess, frame); err != nil {
			s.logger.Info("task_reply_failed", "session_id", sess.ID, "error", err)
			return
		}
	}
}

// handleFrame decodes, enqueues and waits for one command, then replies.
// The returned error is a write failure on the socket.
func (s *Server) handleFrame(sess *Session, frame string) error {
	received := time.Now()
	sess.commands.Add(1)

	cmd, err := protocol.Decode(frame)
	if err != nil {
		id := protocol.PeekID(frame)
		s.logger.Warn("decode_failed", "session_id", sess.ID, "id", id, "error", err.Error())
		rec := journal.NewRecord(nil, journal.OutcomeProtocolError, received, err)
		rec.CommandID = id
		return s.replyAndRecord(sess, id, err, rec)
	}

	p, err := s.queue.Enqueue(cmd)
	if err != nil {
		s.logger.Error("enqueue_failed", "session_id", sess.ID, "id", cmd.ID(), "error", err)
		return s.replyAndRecord(sess, cmd.ID(), err, journal.NewRecord(cmd, journal.OutcomeRejected, received, err))
	}
	s.logger.Info("command_enqueued",
		"session_id", sess.ID,
		"id", cmd.ID(),
		"seq", p.Seq,
		"command", command.Describe(cmd),
	)

	outcome, failure := s.await(p)
	rec := journal.NewRecord(cmd, outcome, received, failure)
	rec.Seq = p.Seq
	return s.replyAndRecord(sess, cmd.ID(), failure, rec)
}

// replyAndRecord acknowledges first so a slow journal never delays the reply.
func (s *Server) replyAndRecord(sess *Session, id string, failure error, rec journal.Record) error {
	err := s.reply(sess, id, failure)
	s.record(sess, rec)
	return err
}

// await blocks until p is resolved, AckTimeout expires or the server stops.
func (s *Server) await(p *queue.Pending) (journal.Outcome, error) {
	timer := time.NewTimer(s.opts.AckTimeout)
	defer timer.Stop()

	select {
	case <-p.Done():
		res := p.Result()
		if res.Success {
			return journal.OutcomeSucceeded, nil
		}
		return journal.OutcomeFailed, res.Err
	case <-timer.C:
		if s.opts.CancelOnTimeout {
			p.Cancel()
		}
		s.logger.Warn("ack_timeout",
			"id", p.Command.ID(),
			"seq", p.Seq,
			"timeout", s.opts.AckTimeout.String(),
			"cancelled", s.opts.CancelOnTimeout,
		)
		return journal.OutcomeTimeout, queue.ErrAckTimeout
	case <-s.quitChan:
		return journal.OutcomeTimeout, ErrShuttingDown
	}
}

// reply always acknowledges with FREE|id#. With ReplyErrors a failure is sent as
// ERROR|id|reason# instead.
func (s *Server) reply(sess *Session, id string, failure error) error {
	frame := protocol.Free(id)
	if failure != nil && s.opts.ReplyErrors {
		frame = protocol.Fail(id, failure.Error())
	}
	return sess.Send(frame)
}

func (s *Server) record(sess *Session, rec journal.Record) {
	if s.journal == nil {
		return
	}
	rec.SessionID = sess.ID
	rec.Remote = sess.Remote
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := s.journal.Save(ctx, rec); err != nil {
		s.logger.Warn("journal_save_failed", "id", rec.CommandID, "error", err)
	}
}
