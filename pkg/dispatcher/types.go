// Package dispatcher sends tool calls to the order service with failover
// across endpoint replicas.
package dispatcher

import (
	"errors"
	"fmt"
)

// Well-known tools exposed by the order service.
const (
	ToolOrderStatus  = "get_order_status"
	ToolOrderHistory = "get_order_history_by_email"
)

// ErrorKind classifies a failed ToolResult. Error strings reported by the
// service itself pass through as their own kind.
type ErrorKind string

const (
	KindNotFound           ErrorKind = "not_found"
	KindServiceUnavailable ErrorKind = "service_unavailable"
	KindInvalidJSON        ErrorKind = "invalid_json"
	KindUnknownTool        ErrorKind = "unknown_tool"
)

// UnavailableMessage is the user-facing text for KindServiceUnavailable.
const UnavailableMessage = "Could not reach order service. Please try again in a few minutes."

// ToolCall names a tool and its arguments.
type ToolCall struct {
	Tool string         `json:"tool"`
	Args map[string]any `json:"args"`
}

// ToolError is the error half of a ToolResult.
type ToolError struct {
	Kind   ErrorKind `json:"error"`
	Detail string    `json:"details,omitempty"`
	// Body is the raw service payload for errors the service reported itself.
	Body map[string]any `json:"-"`
}

func (e *ToolError) Error() string {
	if e.Detail == "" {
		return string(e.Kind)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Detail)
}

// IsKind reports whether err is a *ToolError of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	var te *ToolError
	return errors.As(err, &te) && te.Kind == kind
}

// ToolResult is either a well-formed payload or a ToolError.
type ToolResult struct {
	Payload  any
	Err      *ToolError
	Endpoint string
	Attempts int
}

// OK reports whether the call produced a payload.
func (r *ToolResult) OK() bool {
	return r.Err == nil
}

// Object returns the payload as a JSON object.
func (r *ToolResult) Object() (map[string]any, bool) {
	if r.Err != nil {
		return nil, false
	}
	m, ok := r.Payload.(map[string]any)
	return m, ok
}

// AttemptError is one failed try against one endpoint.
type AttemptError struct {
	Kind     AttemptKind
	Endpoint string
	Err      error
	Status   int
}

// AttemptKind classifies an AttemptError.
type AttemptKind int

const (
	AttemptTimeout AttemptKind = iota
	AttemptConnect
	AttemptStatus
	AttemptInvalidJSON
	AttemptOther
)

func (e *AttemptError) Error() string {
	switch e.Kind {
	case AttemptTimeout:
		return "Timeout from " + e.Endpoint
	case AttemptConnect:
		return "Cannot connect to " + e.Endpoint
	case AttemptStatus:
		return fmt.Sprintf("Error from %s: status %d", e.Endpoint, e.Status)
	case AttemptInvalidJSON:
		return "Invalid JSON from " + e.Endpoint
	default:
		return fmt.Sprintf("Error from %s: %v", e.Endpoint, e.Err)
	}
}

func (e *AttemptError) Unwrap() error {
	return e.Err
}
