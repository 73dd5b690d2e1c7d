package history

import (
	"context"
	"time"
)

// EventType defines the kind of audit event.
type EventType string

const (
	EventSessionOpen  EventType = "session_open"
	EventSessionClose EventType = "session_close"
	EventAuthOK       EventType = "auth_ok"
	EventAuthFail     EventType = "auth_fail"
	EventCommand      EventType = "command"
)

// Event is one audit record emitted by the server: connection lifecycle,
// authentication outcomes, and executed commands.
type Event struct {
	Type       EventType `json:"type"`
	OccurredAt time.Time `json:"occurred_at"`
	RemoteAddr string    `json:"remote_addr"`
	Username   string    `json:"username,omitempty"`
	Command    string    `json:"command,omitempty"`
	ExitCode   int       `json:"exit_code,omitempty"`
}

// Sink is a destination for audit events (analytics/forensics systems).
// Implementations must be safe for concurrent use.
type Sink interface {
	Send(ctx context.Context, e Event) error
}

// Multi fans an event out to every sink; the first error wins but all sinks
// are attempted.
type Multi []Sink

func (m Multi) Send(ctx context.Context, e Event) error {
	var first error
	for _, s := range m {
		if err := s.Send(ctx, e); err != nil && first == nil {
			first = err
		}
	}
	return first
}
