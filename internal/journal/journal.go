// Package journal records the outcome of every acknowledged task command.
//
// Memory is the default backend. Redis keeps a capped list for fast reads,
// Postgres keeps the full history, and Hybrid writes Redis synchronously while
// batching rows into Postgres in the background.
package journal

import (
	"context"
	"errors"
	"time"

	"robotbridge/internal/command"
)

var ErrClosed = errors.New("journal is closed")

// Outcome is how a task command ended from the client's point of view.
type Outcome string

const (
	OutcomeSucceeded     Outcome = "succeeded"
	OutcomeFailed        Outcome = "failed"
	OutcomeTimeout       Outcome = "timeout"
	OutcomeProtocolError Outcome = "protocol_error"
	OutcomeRejected      Outcome = "rejected"
)

// Record is one journal entry.
type Record struct {
	Seq        uint64    `json:"seq"`
	CommandID  string    `json:"command_id"`
	Action     string    `json:"action"`
	Category   string    `json:"category"`
	SessionID  string    `json:"session_id"`
	Remote     string    `json:"remote"`
	Outcome    Outcome   `json:"outcome"`
	Error      string    `json:"error,omitempty"`
	ReceivedAt time.Time `json:"received_at"`
	DurationMs int64     `json:"duration_ms"`
}

// NewRecord fills the command fields of a record. cmd may be nil for frames that
// failed to decode.
func NewRecord(cmd command.Command, outcome Outcome, receivedAt time.Time, err error) Record {
	r := Record{
		Outcome:    outcome,
		ReceivedAt: receivedAt,
		DurationMs: time.Since(receivedAt).Milliseconds(),
	}
	if cmd != nil {
		r.CommandID = cmd.ID()
		r.Action = command.ActionName(cmd)
		r.Category = cmd.Category().String()
	}
	if err != nil {
		r.Error = err.Error()
	}
	return r
}

// Journal stores records. Recent returns at most n records, newest first.
type Journal interface {
	Save(ctx context.Context, r Record) error
	Recent(ctx context.Context, n int) ([]Record, error)
	Close() error
}

// BatchJournal can persist many records in one round trip.
type BatchJournal interface {
	Journal
	SaveBatch(ctx context.Context, batch []Record) error
}
