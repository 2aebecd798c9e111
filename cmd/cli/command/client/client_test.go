package client

import (
	"bufio"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"robotbridge/internal/command"
	"robotbridge/internal/protocol"
)

// fakeServer accepts a single connection and runs fn on it.
func fakeServer(t *testing.T, fn func(net.Conn)) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		fn(conn)
	}()
	return ln.Addr().String()
}

func TestDialTask_Gated(t *testing.T) {
	addr := fakeServer(t, func(conn net.Conn) {})
	_, err := DialTask(addr, time.Second)
	assert.ErrorIs(t, err, ErrGated)
}

func TestTaskClient_SendAndReply(t *testing.T) {
	received := make(chan string, 1)
	addr := fakeServer(t, func(conn net.Conn) {
		io.WriteString(conn, protocol.Greeting)
		r := protocol.NewReader(conn, 0)
		frame, err := r.ReadFrame()
		if err != nil {
			return
		}
		received <- frame
		io.WriteString(conn, protocol.Free(protocol.PeekID(frame)))
	})

	c, err := DialTask(addr, time.Second)
	require.NoError(t, err)
	defer c.Close()

	reply, err := c.Send(&command.IoAction{CommandID: "io-1", Code: command.ActionIOSet, Point: 1, Pin: 2, State: true})
	require.NoError(t, err)
	assert.True(t, reply.OK())
	assert.Equal(t, "io-1", reply.ID)
	assert.Equal(t, 1, c.Sent())

	frame := <-received
	cmd, err := protocol.Decode(frame)
	require.NoError(t, err)
	assert.Equal(t, "io-1", cmd.ID())
}

func TestTaskClient_SendRawAddsTerminator(t *testing.T) {
	addr := fakeServer(t, func(conn net.Conn) {
		io.WriteString(conn, protocol.Greeting)
		line, err := bufio.NewReader(conn).ReadString('#')
		if err != nil {
			return
		}
		if strings.HasSuffix(line, "|x#") {
			io.WriteString(conn, protocol.Fail("x", "nope"))
		}
	})

	c, err := DialTask(addr, time.Second)
	require.NoError(t, err)
	defer c.Close()

	reply, err := c.SendRaw("9|0||1|1|true|||100|x")
	require.NoError(t, err)
	assert.False(t, reply.OK())
	assert.Equal(t, "nope", reply.Reason)
}

func TestLogClient_Lines(t *testing.T) {
	addr := fakeServer(t, func(conn net.Conn) {
		io.WriteString(conn, "[12:00:01.250] [EXECUTOR] command_succeeded id=a\nplain text\n")
	})

	c, err := DialLog(addr, time.Second)
	require.NoError(t, err)
	defer c.Close()

	line, ok := c.Next()
	require.True(t, ok)
	assert.Equal(t, "12:00:01.250", line.Time)
	assert.Equal(t, "EXECUTOR", line.Tag)
	assert.Equal(t, "command_succeeded id=a", line.Message)

	line, ok = c.Next()
	require.True(t, ok)
	assert.Empty(t, line.Tag)
	assert.Equal(t, "plain text", line.Raw)

	_, ok = c.Next()
	assert.False(t, ok)
	assert.NoError(t, c.Err())
}

func TestHTTPClient_Commands(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/commands":
			assert.Equal(t, "5", r.URL.Query().Get("limit"))
			w.Header().Set("Content-Type", "application/json")
			io.WriteString(w, `{"count":1,"commands":[{"seq":3,"command_id":"a","action":"IO_SET","outcome":"succeeded"}]}`)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL)
	resp, err := c.Commands(5)
	require.NoError(t, err)
	require.Len(t, resp.Commands, 1)
	assert.Equal(t, "IO_SET", resp.Commands[0].Action)
	assert.EqualValues(t, 3, resp.Commands[0].Seq)

	_, err = c.Sessions()
	assert.Error(t, err)
}
