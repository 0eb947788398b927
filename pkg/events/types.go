// Package events defines dispatch events and the publishers that deliver them.
package events

import "context"

// Outcome values for DispatchedEvent.
const (
	OutcomeOK     = "ok"
	OutcomeError  = "error"
	OutcomeFailed = "failed"
)

// DispatchedEvent is emitted once per completed tool dispatch.
type DispatchedEvent struct {
	ID         string `json:"id"`
	SessionID  string `json:"sessionId,omitempty"`
	Tool       string `json:"tool"`
	Endpoint   string `json:"endpoint,omitempty"`
	Attempts   int    `json:"attempts"`
	Outcome    string `json:"outcome"`
	ErrorKind  string `json:"errorKind,omitempty"`
	DurationMs int64  `json:"durationMs"`
	Timestamp  string `json:"timestamp"`
}

type sessionKey struct{}

// WithSessionID returns a context carrying the conversation session id.
func WithSessionID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, sessionKey{}, id)
}

// SessionIDFromContext returns the session id stored by WithSessionID, if any.
func SessionIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(sessionKey{}).(string)
	return id
}
