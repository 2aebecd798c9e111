package tcp

import (
	"context"
	"io"
	"log/slog"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"robotbridge/internal/device/sim"
	"robotbridge/internal/executor"
	"robotbridge/internal/journal"
	"robotbridge/internal/logsink"
	"robotbridge/internal/protocol"
	"robotbridge/internal/queue"
)

type harness struct {
	srv     *Server
	queue   *queue.Queue
	logs    *logsink.Switch
	journal *journal.Memory
	robot   *sim.Robot
}

func newHarness(t *testing.T, runConsumer bool, tweak func(*Options)) *harness {
	t.Helper()
	logs := logsink.NewSwitch()
	logger := slog.New(logsink.NewHandler(slog.NewTextHandler(io.Discard, nil), logs, slog.LevelInfo))

	opts := Options{
		Host:           "127.0.0.1",
		AckTimeout:     2 * time.Second,
		GateRetryDelay: 20 * time.Millisecond,
		MaxFrameSize:   protocol.DefaultMaxFrameSize,
	}
	if tweak != nil {
		tweak(&opts)
	}

	q := queue.New()
	j := journal.NewMemory(100)
	robot := sim.New(time.Millisecond, logger)
	srv := NewServer(opts, q, logs, j, logger)
	require.NoError(t, srv.Start())

	ctx, cancel := context.WithCancel(context.Background())
	if runConsumer {
		c := executor.NewConsumer(q, robot, robot, logger, executor.Options{PollInterval: 5 * time.Millisecond, PulseWidth: time.Millisecond})
		go c.Run(ctx)
	}
	t.Cleanup(func() {
		cancel()
		assert.NoError(t, srv.Stop(2*time.Second))
	})
	return &harness{srv: srv, queue: q, logs: logs, journal: j, robot: robot}
}

func dial(t *testing.T, addr net.Addr) net.Conn {
	t.Helper()
	conn, err := net.DialTimeout("tcp", addr.String(), time.Second)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func (h *harness) attachLog(t *testing.T) net.Conn {
	t.Helper()
	before := h.srv.Manager.LogSession()
	conn := dial(t, h.srv.LogAddr())
	require.Eventually(t, func() bool {
		id := h.srv.Manager.LogSession()
		return id != "" && id != before
	}, time.Second, 5*time.Millisecond)
	return conn
}

// waitRecord returns the newest journal record for id. Records are written
// after the reply, so they may trail it slightly.
func (h *harness) waitRecord(t *testing.T, id string) journal.Record {
	t.Helper()
	var found journal.Record
	require.Eventually(t, func() bool {
		records, err := h.journal.Recent(context.Background(), 0)
		if err != nil {
			return false
		}
		for _, r := range records {
			if r.CommandID == id {
				found = r
				return true
			}
		}
		return false
	}, 2*time.Second, 5*time.Millisecond)
	return found
}

type taskClient struct {
	conn   net.Conn
	reader *protocol.Reader
}

func (h *harness) openTask(t *testing.T) *taskClient {
	t.Helper()
	conn := dial(t, h.srv.TaskAddr())
	c := &taskClient{conn: conn, reader: protocol.NewReader(conn, 0)}
	assert.Equal(t, protocol.Greeting, c.read(t))
	return c
}

func (c *taskClient) read(t *testing.T) string {
	t.Helper()
	c.conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	frame, err := c.reader.ReadFrame()
	require.NoError(t, err)
	return frame
}

func (c *taskClient) send(t *testing.T, frame string) string {
	t.Helper()
	_, err := io.WriteString(c.conn, frame)
	require.NoError(t, err)
	return c.read(t)
}

func TestTaskRejectedWithoutLogClient(t *testing.T) {
	h := newHarness(t, true, nil)

	conn := dial(t, h.srv.TaskAddr())
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	buf := make([]byte, 16)
	n, err := conn.Read(buf)
	assert.Zero(t, n)
	assert.Error(t, err)
	assert.Zero(t, h.queue.Len())
}

func TestTaskAcceptedAfterLogAttach(t *testing.T) {
	h := newHarness(t, true, nil)
	h.attachLog(t)

	c := h.openTask(t)
	reply := c.send(t, "0|1|1;2;3;4;5;6;7|0|0|false|T|B|50|mv-1#")
	assert.Equal(t, "FREE|mv-1#", reply)
	assert.Equal(t, 0.5, h.robot.State().LastSpeed)

	rec := h.waitRecord(t, "mv-1")
	assert.Equal(t, journal.OutcomeSucceeded, rec.Outcome)
	assert.NotZero(t, rec.Seq)
}

func TestGateClosesAgainAfterLogDetach(t *testing.T) {
	h := newHarness(t, true, nil)
	logConn := h.attachLog(t)
	logConn.Close()
	require.Eventually(t, func() bool { return !h.srv.Manager.LogAttached() }, time.Second, 5*time.Millisecond)

	conn := dial(t, h.srv.TaskAddr())
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	n, err := conn.Read(make([]byte, 8))
	assert.Zero(t, n)
	assert.Error(t, err)
}

func TestProtocolErrorStillAcknowledged(t *testing.T) {
	h := newHarness(t, true, nil)
	h.attachLog(t)
	c := h.openTask(t)

	// two groups declared, one sent
	reply := c.send(t, "0|2|1;2;3;4;5;6;7|0|0|false|||100|bad-1#")
	assert.Equal(t, "FREE|bad-1#", reply)
	assert.Zero(t, h.queue.Len())

	assert.Equal(t, journal.OutcomeProtocolError, h.waitRecord(t, "bad-1").Outcome)
}

func TestReplyErrorsSendsExplicitNack(t *testing.T) {
	h := newHarness(t, true, func(o *Options) { o.ReplyErrors = true })
	h.attachLog(t)
	c := h.openTask(t)

	reply, err := protocol.ParseReply(c.send(t, "9|0||1|99|true|||100|io-1#"))
	require.NoError(t, err)
	assert.False(t, reply.OK())
	assert.Equal(t, "io-1", reply.ID)
	assert.Contains(t, reply.Reason, "unknown io pin")

	reply, err = protocol.ParseReply(c.send(t, "9|0||1|1|true|||100|io-2#"))
	require.NoError(t, err)
	assert.True(t, reply.OK())
}

func TestAckTimeoutCancelsPending(t *testing.T) {
	h := newHarness(t, false, func(o *Options) {
		o.AckTimeout = 50 * time.Millisecond
		o.CancelOnTimeout = true
	})
	h.attachLog(t)
	c := h.openTask(t)

	assert.Equal(t, "FREE|slow#", c.send(t, "0|1|0;0;0;0;0;0;0|0|0|false|||100|slow#"))

	p, ok := h.queue.Dequeue(time.Second)
	require.True(t, ok)
	assert.Error(t, p.Context().Err())
	assert.False(t, p.Resolved())

	assert.Equal(t, journal.OutcomeTimeout, h.waitRecord(t, "slow").Outcome)
}

func TestLogLinesStreamToLatestClient(t *testing.T) {
	h := newHarness(t, true, nil)
	first := h.attachLog(t)
	firstID := h.srv.Manager.LogSession()
	second := h.attachLog(t)
	assert.NotEqual(t, firstID, h.srv.Manager.LogSession())

	c := h.openTask(t)
	c.send(t, "9|0||1|1|true|||100|io-7#")

	second.SetReadDeadline(time.Now().Add(2 * time.Second))
	var got strings.Builder
	buf := make([]byte, 4096)
	require.Eventually(t, func() bool {
		n, _ := second.Read(buf)
		got.Write(buf[:n])
		return strings.Contains(got.String(), "io-7")
	}, 3*time.Second, 10*time.Millisecond)
	assert.Regexp(t, `\[\d{2}:\d{2}:\d{2}\.\d{3}\] \[TCP\] command_enqueued`, got.String())

	// closing the replaced client does not detach the current one
	first.Close()
	time.Sleep(50 * time.Millisecond)
	assert.True(t, h.srv.Manager.LogAttached())
	assert.True(t, h.logs.Attached())
}

func TestSessionsListed(t *testing.T) {
	h := newHarness(t, true, nil)
	h.attachLog(t)
	h.openTask(t)

	require.Eventually(t, func() bool { return h.srv.Manager.Count() == 2 }, time.Second, 5*time.Millisecond)
	sessions := h.srv.Manager.Sessions()
	require.Len(t, sessions, 2)
	assert.Equal(t, "log", sessions[0].Kind)
	assert.True(t, sessions[0].LogSink)
	assert.Equal(t, "task", sessions[1].Kind)
}

func TestRateLimitedFramesAreRejected(t *testing.T) {
	h := newHarness(t, true, func(o *Options) {
		o.RateLimit = 0.001
		o.RateBurst = 1
	})
	h.attachLog(t)
	c := h.openTask(t)

	assert.Equal(t, "FREE|a#", c.send(t, "9|0||1|1|true|||100|a#"))
	assert.Equal(t, "FREE|b#", c.send(t, "9|0||1|1|true|||100|b#"))

	assert.Equal(t, journal.OutcomeRejected, h.waitRecord(t, "b").Outcome)
}

func TestSessionManagerGate(t *testing.T) {
	m := NewSessionManager(nil)
	assert.False(t, m.LogAttached())

	m.SetLogSession("a")
	m.SetLogSession("b")
	assert.False(t, m.ClearLogSession("a"))
	assert.True(t, m.LogAttached())
	assert.True(t, m.ClearLogSession("b"))
	assert.False(t, m.LogAttached())
}

func TestGateStaysOpenWhenSinkLeavesFirst(t *testing.T) {
	h := newHarness(t, true, nil)
	first := h.attachLog(t)
	firstID := h.srv.Manager.LogSession()
	second := h.attachLog(t)
	require.Equal(t, 2, h.srv.Manager.LogCount())

	second.Close()
	require.Eventually(t, func() bool { return h.srv.Manager.LogCount() == 1 }, time.Second, 5*time.Millisecond)
	assert.True(t, h.srv.Manager.LogAttached())
	assert.Equal(t, firstID, h.srv.Manager.LogSession())

	// the remaining client takes the sink back
	c := h.openTask(t)
	assert.Equal(t, protocol.Free("io-9"), c.send(t, "9|0||1|1|true|||100|io-9#"))

	first.SetReadDeadline(time.Now().Add(2 * time.Second))
	var got strings.Builder
	buf := make([]byte, 4096)
	require.Eventually(t, func() bool {
		n, _ := first.Read(buf)
		got.Write(buf[:n])
		return strings.Contains(got.String(), "io-9")
	}, 3*time.Second, 10*time.Millisecond)
}

func TestSessionManager_AttachLogKeepsSinkAndGateTogether(t *testing.T) {
	m := NewSessionManager(slog.New(slog.NewTextHandler(io.Discard, nil)))
	sw := logsink.NewSwitch()

	sessions := make([]*Session, 8)
	for i := range sessions {
		server, client := net.Pipe()
		t.Cleanup(func() { server.Close(); client.Close() })
		sessions[i] = newSession(server, KindLog, nil)
		m.Add(sessions[i])
	}

	var wg sync.WaitGroup
	for _, sess := range sessions {
		wg.Add(1)
		go func(sess *Session) {
			defer wg.Done()
			m.AttachLog(sess, sw)
		}(sess)
	}
	wg.Wait()

	assert.Equal(t, len(sessions), m.LogCount())
	current, ok := sw.Current().(*Session)
	require.True(t, ok)
	assert.Equal(t, m.LogSession(), current.ID)

	// detach in attach order; the sink always follows the gate
	for i, sess := range sessions {
		next := m.DetachLog(sess, sw)
		assert.Equal(t, len(sessions)-i-1, m.LogCount())
		if next == "" {
			assert.False(t, sw.Attached())
			continue
		}
		current, ok := sw.Current().(*Session)
		require.True(t, ok)
		assert.Equal(t, next, current.ID)
		assert.Equal(t, next, m.LogSession())
	}
	assert.False(t, m.LogAttached())
}

// slowJournal blocks every Save until release is closed.
type slowJournal struct {
	*journal.Memory
	release chan struct{}
}

func (j *slowJournal) Save(ctx context.Context, r journal.Record) error {
	select {
	case <-j.release:
	case <-ctx.Done():
		return ctx.Err()
	}
	return j.Memory.Save(ctx, r)
}

func TestReplyDoesNotWaitForJournal(t *testing.T) {
	logs := logsink.NewSwitch()
	logger := slog.New(logsink.NewHandler(slog.NewTextHandler(io.Discard, nil), logs, slog.LevelInfo))
	j := &slowJournal{Memory: journal.NewMemory(10), release: make(chan struct{})}

	q := queue.New()
	robot := sim.New(time.Millisecond, logger)
	srv := NewServer(Options{
		Host:           "127.0.0.1",
		AckTimeout:     2 * time.Second,
		GateRetryDelay: 20 * time.Millisecond,
	}, q, logs, j, logger)
	require.NoError(t, srv.Start())

	ctx, cancel := context.WithCancel(context.Background())
	go executor.NewConsumer(q, robot, robot, logger, executor.Options{PollInterval: 5 * time.Millisecond}).Run(ctx)
	t.Cleanup(func() {
		close(j.release)
		cancel()
		assert.NoError(t, srv.Stop(2*time.Second))
	})

	h := &harness{srv: srv, queue: q, logs: logs, robot: robot}
	h.attachLog(t)
	c := h.openTask(t)

	start := time.Now()
	assert.Equal(t, "FREE|io-1#", c.send(t, "9|0||1|1|true|||100|io-1#"))
	assert.Less(t, time.Since(start), time.Second)
	assert.Zero(t, j.Len())
}
