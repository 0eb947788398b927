package dispatcher

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/morezero/order-assistant/pkg/endpoint"
	"github.com/morezero/order-assistant/pkg/events"
)

const logPrefix = "dispatcher:dispatch"

// Service routes used by the dispatcher.
const (
	InvokePath = "/mcp/invoke"
	ToolsPath  = "/mcp/tools"
)

// Defaults applied by NewDispatcher.
const (
	DefaultRetries = 2
	DefaultTimeout = 5 * time.Second
)

// Dispatcher sends tool calls to one endpoint at a time, moving to an untried
// endpoint after each failure until the attempt budget is spent.
type Dispatcher struct {
	reg       *endpoint.Registry
	policy    endpoint.Policy
	client    *http.Client
	retries   int
	timeout   time.Duration
	tools     map[string]bool
	publisher events.EventPublisher
}

// NewDispatcherParams holds parameters for NewDispatcher.
type NewDispatcherParams struct {
	Registry *endpoint.Registry
	// Policy picks among untried endpoints (default uniform random).
	Policy endpoint.Policy
	Client *http.Client
	// Retries is the attempt budget per call (default 2), capped at the endpoint count.
	Retries int
	// Timeout bounds each attempt (default 5s).
	Timeout time.Duration
	// Tools lists the tool names accepted by Invoke (default the two order tools).
	Tools     []string
	Publisher events.EventPublisher
}

// NewDispatcher creates a Dispatcher.
func NewDispatcher(params NewDispatcherParams) *Dispatcher {
	d := &Dispatcher{
		reg:       params.Registry,
		policy:    params.Policy,
		client:    params.Client,
		retries:   params.Retries,
		timeout:   params.Timeout,
		tools:     make(map[string]bool),
		publisher: params.Publisher,
	}
	if d.reg == nil {
		d.reg = endpoint.NewRegistry(nil)
	}
	if d.policy == nil {
		d.policy = endpoint.NewUniformRandom(nil)
	}
	if d.client == nil {
		d.client = &http.Client{}
	}
	if d.retries <= 0 {
		d.retries = DefaultRetries
	}
	if d.timeout <= 0 {
		d.timeout = DefaultTimeout
	}
	if d.publisher == nil {
		d.publisher = &events.NoOpPublisher{}
	}
	tools := params.Tools
	if len(tools) == 0 {
		tools = []string{ToolOrderStatus, ToolOrderHistory}
	}
	for _, t := range tools {
		d.tools[t] = true
	}
	return d
}

// Registry returns the endpoint registry the dispatcher draws from.
func (d *Dispatcher) Registry() *endpoint.Registry {
	return d.reg
}

// Invoke runs call against the order service. It never returns a Go error:
// every failure is carried in the result.
func (d *Dispatcher) Invoke(ctx context.Context, call ToolCall) *ToolResult {
	start := time.Now()
	requestID := uuid.NewString()

	if !d.tools[call.Tool] {
		res := &ToolResult{Err: &ToolError{Kind: KindUnknownTool, Detail: fmt.Sprintf("tool %q is not offered by the order service", call.Tool)}}
		d.publish(ctx, requestID, call.Tool, res, start)
		return res
	}

	args := call.Args
	if args == nil {
		args = map[string]any{}
	}
	body, err := json.Marshal(ToolCall{Tool: call.Tool, Args: args})
	if err != nil {
		res := &ToolResult{Err: &ToolError{Kind: KindInvalidJSON, Detail: err.Error()}}
		d.publish(ctx, requestID, call.Tool, res, start)
		return res
	}

	slog.Debug(fmt.Sprintf("%s - tool=%s request=%s", logPrefix, call.Tool, requestID))
	res := d.failover(ctx, call.Tool, func(ctx context.Context, base string) (any, error) {
		return d.do(ctx, http.MethodPost, base, InvokePath, requestID, body)
	})
	if res.Err == nil {
		res.Err = payloadError(res.Payload)
	}
	d.publish(ctx, requestID, call.Tool, res, start)
	return res
}

// ListTools fetches the tool descriptors the service advertises, with the
// same failover rules as Invoke.
func (d *Dispatcher) ListTools(ctx context.Context) *ToolResult {
	requestID := uuid.NewString()
	return d.failover(ctx, "tools", func(ctx context.Context, base string) (any, error) {
		return d.do(ctx, http.MethodGet, base, ToolsPath, requestID, nil)
	})
}

// failover tries fn against distinct endpoints until one returns a
// well-formed payload or the attempt budget is spent.
func (d *Dispatcher) failover(ctx context.Context, label string, fn func(ctx context.Context, base string) (any, error)) *ToolResult {
	budget := d.retries
	if n := d.reg.Len(); budget > n {
		budget = n
	}
	if budget == 0 {
		return &ToolResult{Err: &ToolError{Kind: KindServiceUnavailable, Detail: "no endpoints configured"}}
	}

	tried := make(map[string]bool, budget)
	var failures []string
	attempts := 0
	for attempts < budget {
		candidates := d.reg.Candidates(tried)
		if len(candidates) == 0 {
			break
		}
		target := d.policy.Pick(candidates).URL
		tried[target] = true
		attempts++

		attemptCtx, cancel := context.WithTimeout(ctx, d.timeout)
		payload, err := fn(attemptCtx, target)
		cancel()
		if err == nil {
			d.reg.MarkHealthy(target, "")
			return &ToolResult{Payload: payload, Endpoint: target, Attempts: attempts}
		}

		d.reg.MarkUnreachable(target)
		failures = append(failures, err.Error())
		slog.Warn(fmt.Sprintf("%s - %s attempt %d/%d failed: %v", logPrefix, label, attempts, budget, err))
		if ctx.Err() != nil {
			break
		}
	}

	detail := strings.Join(failures, ", ")
	slog.Warn(fmt.Sprintf("%s - %s failed after %d attempts: %s", logPrefix, label, attempts, detail))
	return &ToolResult{
		Err:      &ToolError{Kind: KindServiceUnavailable, Detail: detail},
		Attempts: attempts,
	}
}

// do performs one HTTP exchange and decodes the JSON body.
func (d *Dispatcher) do(ctx context.Context, method, base, path, requestID string, body []byte) (any, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, base+path, reader)
	if err != nil {
		return nil, &AttemptError{Kind: AttemptOther, Endpoint: base, Err: err}
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("X-Request-ID", requestID)

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, transportError(base, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, transportError(base, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &AttemptError{Kind: AttemptStatus, Endpoint: base, Status: resp.StatusCode}
	}

	var payload any
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, &AttemptError{Kind: AttemptInvalidJSON, Endpoint: base, Err: err}
	}
	return payload, nil
}

func transportError(base string, err error) *AttemptError {
	if errors.Is(err, context.DeadlineExceeded) {
		return &AttemptError{Kind: AttemptTimeout, Endpoint: base, Err: err}
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return &AttemptError{Kind: AttemptTimeout, Endpoint: base, Err: err}
	}
	return &AttemptError{Kind: AttemptConnect, Endpoint: base, Err: err}
}

// payloadError turns a service-reported {"error": ...} body into a ToolError.
func payloadError(payload any) *ToolError {
	m, ok := payload.(map[string]any)
	if !ok {
		return nil
	}
	kind, ok := m["error"].(string)
	if !ok || kind == "" {
		return nil
	}
	te := &ToolError{Kind: ErrorKind(kind), Body: m}
	for _, key := range []string{"details", "detail", "message"} {
		if s, ok := m[key].(string); ok && s != "" {
			te.Detail = s
			break
		}
	}
	return te
}

func (d *Dispatcher) publish(ctx context.Context, id, tool string, res *ToolResult, start time.Time) {
	event := &events.DispatchedEvent{
		ID:         id,
		SessionID:  events.SessionIDFromContext(ctx),
		Tool:       tool,
		Endpoint:   res.Endpoint,
		Attempts:   res.Attempts,
		Outcome:    events.OutcomeOK,
		DurationMs: time.Since(start).Milliseconds(),
		Timestamp:  time.Now().UTC().Format(time.RFC3339),
	}
	if res.Err != nil {
		event.ErrorKind = string(res.Err.Kind)
		event.Outcome = events.OutcomeError
		if res.Err.Kind == KindServiceUnavailable {
			event.Outcome = events.OutcomeFailed
		}
	}
	if err := d.publisher.PublishDispatched(ctx, event); err != nil {
		slog.Warn(fmt.Sprintf("%s - failed to publish dispatch event: %v", logPrefix, err))
	}
}
