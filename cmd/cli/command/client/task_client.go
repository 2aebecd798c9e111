package client

// task_client.go = speaks the task channel protocol for robotctl.

import (
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"time"

	"robotbridge/internal/command"
	"robotbridge/internal/protocol"
)

// ErrGated is returned when the server closes the task socket before greeting,
// which it does while no log client is attached.
var ErrGated = errors.New("task channel closed before greeting (is a log client attached?)")

// TaskClient sends commands and waits for their acknowledgement.
type TaskClient struct {
	conn    net.Conn
	reader  *protocol.Reader
	timeout time.Duration
	sent    int
}

// DialTask connects and waits for the FREE|0# greeting. timeout bounds the dial,
// the greeting and every later reply.
func DialTask(addr string, timeout time.Duration) (*TaskClient, error) {
	conn, err := net.DialTimeout("tcp", addr, timeout)
	if err != nil {
		return nil, fmt.Errorf("connection failed: %w", err)
	}
	c := &TaskClient{conn: conn, reader: protocol.NewReader(conn, 0), timeout: timeout}

	greeting, err := c.readFrame()
	if err != nil {
		conn.Close()
		if errors.Is(err, io.EOF) || errors.Is(err, protocol.ErrPartialFrame) {
			return nil, ErrGated
		}
		return nil, fmt.Errorf("waiting for greeting: %w", err)
	}
	if strings.TrimSpace(greeting) != protocol.Greeting {
		conn.Close()
		return nil, fmt.Errorf("unexpected greeting %q", greeting)
	}
	return c, nil
}

// Send encodes cmd and returns the server's reply.
func (c *TaskClient) Send(cmd command.Command) (protocol.Reply, error) {
	frame, err := protocol.Encode(cmd)
	if err != nil {
		return protocol.Reply{}, err
	}
	return c.SendRaw(frame)
}

// SendRaw sends a frame as is, adding the terminator when it is missing.
func (c *TaskClient) SendRaw(frame string) (protocol.Reply, error) {
	frame = strings.TrimSpace(frame)
	if !strings.HasSuffix(frame, string(protocol.Terminator)) {
		frame += string(protocol.Terminator)
	}

	c.conn.SetWriteDeadline(time.Now().Add(c.timeout))
	if _, err := io.WriteString(c.conn, frame); err != nil {
		return protocol.Reply{}, fmt.Errorf("failed to send frame: %w", err)
	}
	c.sent++

	raw, err := c.readFrame()
	if err != nil {
		return protocol.Reply{}, fmt.Errorf("waiting for reply: %w", err)
	}
	return protocol.ParseReply(raw)
}

func (c *TaskClient) readFrame() (string, error) {
	c.conn.SetReadDeadline(time.Now().Add(c.timeout))
	return c.reader.ReadFrame()
}

// Sent is the number of frames written so far.
func (c *TaskClient) Sent() int { return c.sent }

func (c *TaskClient) Close() error {
	return c.conn.Close()
}
