package protocol

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"
)

const DefaultMaxFrameSize = 64 * 1024

var (
	// ErrPartialFrame is returned when the stream ends in the middle of a message.
	ErrPartialFrame = errors.New("partial frame: stream ended before terminator")
	// ErrFrameTooLarge is returned after an oversized message has been skipped.
	ErrFrameTooLarge = errors.New("frame exceeds maximum size")
)

// Reader splits a byte stream into '#'-terminated frames.
// It is not safe for concurrent use; each connection owns one Reader.
type Reader struct {
	r       *bufio.Reader
	maxSize int
}

func NewReader(r io.Reader, maxSize int) *Reader {
	if maxSize <= 0 {
		maxSize = DefaultMaxFrameSize
	}
	return &Reader{r: bufio.NewReader(r), maxSize: maxSize}
}

// ReadFrame returns the next frame including its terminator. An oversized frame
// is consumed and reported as ErrFrameTooLarge so the caller can keep reading.
// At end of stream it returns io.EOF, or ErrPartialFrame if unterminated bytes
// were pending.
func (fr *Reader) ReadFrame() (string, error) {
	var buf bytes.Buffer
	oversized := false
	for {
		chunk, err := fr.r.ReadSlice(Terminator)
		if !oversized {
			if buf.Len()+len(chunk) > fr.maxSize {
				oversized = true
				buf.Reset()
			} else {
				buf.Write(chunk)
			}
		}

		switch {
		case err == nil:
			if oversized {
				return "", ErrFrameTooLarge
			}
			return buf.String(), nil
		case errors.Is(err, bufio.ErrBufferFull):
			continue
		case errors.Is(err, io.EOF):
			if oversized || len(bytes.TrimSpace(buf.Bytes())) > 0 {
				return "", ErrPartialFrame
			}
			return "", io.EOF
		default:
			return "", err
		}
	}
}

// IsBlank reports whether a frame carries nothing but its terminator.
func IsBlank(frame string) bool {
	return strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(frame), string(Terminator))) == ""
}

// Reply frames sent on the task channel.
const (
	StatusFree  = "FREE"
	StatusError = "ERROR"

	// Greeting marks a freshly accepted task channel as ready.
	Greeting = "FREE|0#"
)

// Free acknowledges the command with the given id.
func Free(id string) string {
	return StatusFree + FieldSep + id + string(Terminator)
}

// Fail is the explicit negative acknowledgement, enabled with REPLY_ERRORS.
func Fail(id, reason string) string {
	reason = strings.Map(func(r rune) rune {
		if r == Terminator || r == '|' || r == '\n' || r == '\r' {
			return ' '
		}
		return r
	}, reason)
	return StatusError + FieldSep + id + FieldSep + reason + string(Terminator)
}

// Reply is a parsed server acknowledgement.
type Reply struct {
	Status string
	ID     string
	Reason string
}

// OK reports whether the reply is a FREE frame.
func (r Reply) OK() bool { return r.Status == StatusFree }

// ParseReply decodes a FREE or ERROR frame.
func ParseReply(frame string) (Reply, error) {
	msg := strings.TrimSpace(frame)
	if !strings.HasSuffix(msg, string(Terminator)) {
		return Reply{}, fmt.Errorf("reply %q: missing terminator", frame)
	}
	parts := strings.SplitN(strings.TrimSuffix(msg, string(Terminator)), FieldSep, 3)
	switch {
	case parts[0] == StatusFree && len(parts) == 2:
		return Reply{Status: StatusFree, ID: parts[1]}, nil
	case parts[0] == StatusError && len(parts) >= 2:
		r := Reply{Status: StatusError, ID: parts[1]}
		if len(parts) == 3 {
			r.Reason = parts[2]
		}
		return r, nil
	default:
		return Reply{}, fmt.Errorf("reply %q: unrecognised status", frame)
	}
}
