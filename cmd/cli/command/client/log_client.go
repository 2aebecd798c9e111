package client

// log_client.go = attaches to the log channel and reads streamed log lines.

import (
	"bufio"
	"fmt"
	"net"
	"regexp"
	"time"
)

// LogLine is one parsed "[HH:mm:ss.SSS] [TAG] message" line.
type LogLine struct {
	Time    string
	Tag     string
	Message string
	Raw     string
}

var logLinePattern = regexp.MustCompile(`^\[(\d{2}:\d{2}:\d{2}\.\d{3})\] \[([^\]]+)\] (.*)$`)

// ParseLogLine splits a log line. Lines in another format come back with only Raw set.
func ParseLogLine(s string) LogLine {
	m := logLinePattern.FindStringSubmatch(s)
	if m == nil {
		return LogLine{Raw: s}
	}
	return LogLine{Time: m[1], Tag: m[2], Message: m[3], Raw: s}
}

type LogClient struct {
	conn    net.Conn
	scanner *bufio.Scanner
}

// DialLog attaches to the log channel. The server routes all logs to the most
// recently attached client.
func DialLog(addr string, timeout time.Duration) (*LogClient, error) {
	conn, err := net.DialTimeout("tcp", addr, timeout)
	if err != nil {
		return nil, fmt.Errorf("connection failed: %w", err)
	}
	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	return &LogClient{conn: conn, scanner: scanner}, nil
}

// Next blocks until the next line arrives. It returns false once the server
// closes the channel.
func (c *LogClient) Next() (LogLine, bool) {
	if !c.scanner.Scan() {
		return LogLine{}, false
	}
	return ParseLogLine(c.scanner.Text()), true
}

// Err reports the read error that ended Next, nil on a clean close.
func (c *LogClient) Err() error { return c.scanner.Err() }

func (c *LogClient) Close() error {
	return c.conn.Close()
}
