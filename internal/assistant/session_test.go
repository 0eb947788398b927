package assistant

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/morezero/order-assistant/pkg/dispatcher"
	"github.com/morezero/order-assistant/pkg/endpoint"
)

const orderDoc = `{
	"order_number": "ORD-2024-001",
	"customer": {"name": "Alice", "email": "alice@example.com"},
	"status": "shipped",
	"items": [{"name": "Pen", "qty": 2, "price": 1.25}],
	"total_amount": 12.5,
	"shipping": {"address": {"street": "1 Main St", "city": "Austin", "state": "TX"}, "tracking_number": "1Z999"}
}`

const historyDoc = `{
	"email": "alice@example.com",
	"orders": [
		{"order_number": "ORD-2024-002", "status": "processing", "total_amount": 40, "order_date": "2024-02-01"},
		{"order_number": "ORD-2024-001", "status": "shipped", "total_amount": 12.5, "order_date": "2024-01-05"}
	]
}`

// replica is a fake order-service replica that counts invoke calls per tool.
type replica struct {
	srv   *httptest.Server
	calls atomic.Int32
	tools []string
}

func newReplica(t *testing.T, handle func(call dispatcher.ToolCall) (int, string)) *replica {
	t.Helper()
	r := &replica{}
	r.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		if req.URL.Path == endpoint.HealthPath {
			_, _ = w.Write([]byte(`{"status":"ok","version":"0.3.0"}`))
			return
		}
		var call dispatcher.ToolCall
		if err := json.NewDecoder(req.Body).Decode(&call); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		r.calls.Add(1)
		r.tools = append(r.tools, call.Tool)
		code, body := handle(call)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(r.srv.Close)
	return r
}

func orderService(call dispatcher.ToolCall) (int, string) {
	switch call.Tool {
	case dispatcher.ToolOrderStatus:
		if call.Args["order_number"] == "ORD-2024-001" {
			return http.StatusOK, orderDoc
		}
		return http.StatusOK, `{"error":"not_found","order_number":"` + call.Args["order_number"].(string) + `"}`
	case dispatcher.ToolOrderHistory:
		if call.Args["email"] == "alice@example.com" {
			return http.StatusOK, historyDoc
		}
		return http.StatusOK, `{"error":"not_found"}`
	}
	return http.StatusNotFound, `{"detail":"unknown tool"}`
}

type fakeGenerator struct {
	reply   string
	err     error
	prompts []string
}

func (g *fakeGenerator) Generate(_ context.Context, prompt string) (string, error) {
	g.prompts = append(g.prompts, prompt)
	return g.reply, g.err
}

func newTestSession(gen *fakeGenerator, urls ...string) *Session {
	d := dispatcher.NewDispatcher(dispatcher.NewDispatcherParams{
		Registry: endpoint.NewRegistry(urls),
		Policy:   endpoint.NewRoundRobin(),
	})
	p := NewSessionParams{Invoker: d}
	if gen != nil {
		p.Generator = gen
	}
	return NewSession(p)
}

func TestHandle_OrderSummaryThenCacheHit(t *testing.T) {
	r := newReplica(t, orderService)
	s := newTestSession(nil, r.srv.URL)
	ctx := context.Background()

	got := s.Handle(ctx, "where is ord-2024-001?")
	assert.True(t, strings.HasPrefix(got, "Hello Alice! Your order ORD-2024-001 is shipped."), got)
	assert.Equal(t, int32(1), r.calls.Load())

	got = s.Handle(ctx, "what is the total for ORD-2024-001")
	assert.Equal(t, "The total cost of ORD-2024-001 is $12.50.", got)
	got = s.Handle(ctx, "tracking for ORD-2024-001")
	assert.Equal(t, "Tracking for ORD-2024-001: 1Z999", got)
	assert.Equal(t, int32(1), r.calls.Load(), "cached order must not be fetched again")
}

func TestHandle_OrderNotFound(t *testing.T) {
	r := newReplica(t, orderService)
	s := newTestSession(nil, r.srv.URL)

	got := s.Handle(context.Background(), "status of ORD-2024-999")
	assert.Equal(t, "I can't find order ORD-2024-999. Please check the order number and try again.", got)
	assert.Zero(t, s.Cache().Len(), "failed lookups are not cached")
}

func TestHandle_OrderServiceUnavailable(t *testing.T) {
	r := newReplica(t, func(dispatcher.ToolCall) (int, string) {
		return http.StatusInternalServerError, `{"detail":"boom"}`
	})
	s := newTestSession(nil, r.srv.URL, "http://127.0.0.1:1")

	got := s.Handle(context.Background(), "ORD-2024-001")
	assert.Equal(t, dispatcher.UnavailableMessage, got)
}

func TestHandle_OrderOtherError(t *testing.T) {
	r := newReplica(t, func(dispatcher.ToolCall) (int, string) {
		return http.StatusOK, `{"error":"database_error","details":"conn reset"}`
	})
	s := newTestSession(nil, r.srv.URL)

	got := s.Handle(context.Background(), "ORD-2024-001")
	assert.Equal(t, "Sorry, I encountered an error looking up your order. Please try again in a few minutes.", got)
}

func TestHandle_HistoryCachesEachOrder(t *testing.T) {
	r := newReplica(t, orderService)
	s := newTestSession(nil, r.srv.URL)
	ctx := context.Background()

	got := s.Handle(ctx, "orders for Alice@Example.com")
	assert.Contains(t, got, "You have 2 orders:")
	assert.Contains(t, got, "1. ORD-2024-002, processing, Total: $40.00")
	assert.Contains(t, got, "Customer email: alice@example.com")
	assert.Equal(t, []string{"ORD-2024-001", "ORD-2024-002"}, s.Cache().Keys())
	assert.Equal(t, int32(1), r.calls.Load())

	got = s.Handle(ctx, "status of ORD-2024-002")
	assert.Equal(t, "ORD-2024-002 status: processing.", got)
	assert.Equal(t, int32(1), r.calls.Load(), "history results serve later order lookups")
	assert.Equal(t, []string{dispatcher.ToolOrderHistory}, r.tools)
}

func TestHandle_HistoryField(t *testing.T) {
	r := newReplica(t, orderService)
	s := newTestSession(nil, r.srv.URL)

	got := s.Handle(context.Background(), "status of orders for alice@example.com")
	assert.Equal(t, "Orders for alice@example.com, status:\nORD-2024-002: processing\nORD-2024-001: shipped", got)
}

func TestHandle_HistoryErrors(t *testing.T) {
	r := newReplica(t, orderService)
	s := newTestSession(nil, r.srv.URL)
	assert.Equal(t, "I couldn't find any orders for bob@example.com.", s.Handle(context.Background(), "bob@example.com"))

	down := newTestSession(nil, "http://127.0.0.1:1")
	assert.Equal(t, dispatcher.UnavailableMessage, down.Handle(context.Background(), "bob@example.com"))

	bad := newReplica(t, func(dispatcher.ToolCall) (int, string) { return http.StatusOK, `[1,2]` })
	s = newTestSession(nil, bad.srv.URL)
	assert.Equal(t, "Sorry, I encountered an error looking up orders. Please try again in a few minutes.", s.Handle(context.Background(), "bob@example.com"))
}

func TestHandle_FreeTextPassthrough(t *testing.T) {
	gen := &fakeGenerator{reply: "Orders usually ship in two days."}
	s := newTestSession(gen)

	got := s.Handle(context.Background(), "how long does shipping take?")
	assert.Equal(t, "Orders usually ship in two days.", got)
	require.Len(t, gen.prompts, 1)
	assert.Equal(t, "You are an assistant. Answer briefly.\nUser: how long does shipping take?\nRespond now.", gen.prompts[0])
}

func TestHandle_FreeTextGenerateError(t *testing.T) {
	s := newTestSession(&fakeGenerator{err: errors.New("connection refused")})
	assert.Equal(t, "LLM error: connection refused", s.Handle(context.Background(), "hello"))

	s = newTestSession(nil)
	assert.Equal(t, "LLM error: no generation backend configured", s.Handle(context.Background(), "hello"))
}

func TestHandle_FreeTextErrorHidesLogPrefix(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"wrapped cause", fmt.Errorf("generate:ollama - ollama request: %w", errors.New("connection refused")), "LLM error: connection refused"},
		{"unwrapped", errors.New("generate:ollama - ollama status 500: model not loaded"), "LLM error: ollama status 500: model not loaded"},
		{"deadline", fmt.Errorf("generate:openai - openai completion: %w", context.DeadlineExceeded), "LLM error: context deadline exceeded"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestSession(&fakeGenerator{err: tt.err})
			assert.Equal(t, tt.want, s.Handle(context.Background(), "hello"))
		})
	}
}

func TestHandle_FreeTextToolSuggestion(t *testing.T) {
	r := newReplica(t, orderService)
	ctx := context.Background()

	gen := &fakeGenerator{reply: `Sure: {"tool": "get_order_status", "args": {"order_number": "ORD-2024-001"}} done`}
	s := newTestSession(gen, r.srv.URL)
	assert.True(t, strings.HasPrefix(s.Handle(ctx, "hi there"), "Hello Alice!"))
	assert.Equal(t, []string{"ORD-2024-001"}, s.Cache().Keys())

	gen.reply = `{"tool": "get_order_status", "args": {}}`
	assert.Equal(t, "order_number required in tool args", s.Handle(ctx, "hi there"))

	gen.reply = `{"tool": "get_order_status", "args": {"order_number": "ORD-2024-404"}}`
	assert.Equal(t, "I can't find order ORD-2024-404.", s.Handle(ctx, "hi there"))

	gen.reply = `{"tool": "get_order_history_by_email", "args": {"email": "alice@example.com"}}`
	got := s.Handle(ctx, "hi there")
	var payload map[string]any
	require.NoError(t, json.Unmarshal([]byte(got), &payload), got)
	assert.Equal(t, "alice@example.com", payload["email"])

	gen.reply = `{"tool": "cancel_order", "args": {}}`
	assert.JSONEq(t, `{"error":"unknown_tool","details":"tool \"cancel_order\" is not offered by the order service"}`, s.Handle(ctx, "hi there"))

	gen.reply = `{"answer": 42}`
	assert.Equal(t, `{"answer": 42}`, s.Handle(ctx, "hi there"))
}

func TestHandle_FreeTextLookupFailed(t *testing.T) {
	gen := &fakeGenerator{reply: `{"tool": "get_order_status", "args": {"order_number": "ORD-2024-001"}}`}
	s := newTestSession(gen, "http://127.0.0.1:1")
	got := s.Handle(context.Background(), "anything")
	assert.True(t, strings.HasPrefix(got, "Order lookup failed: service_unavailable"), got)
}

func TestRun_REPL(t *testing.T) {
	r := newReplica(t, orderService)
	s := newTestSession(&fakeGenerator{reply: "hi!"}, r.srv.URL)

	var out bytes.Buffer
	in := strings.NewReader("\n   \nhello\nstatus of ORD-2024-001\nQUIT\nhello\n")
	require.NoError(t, s.Run(context.Background(), in, &out))
	assert.Equal(t, "> > > hi!\n> ORD-2024-001 status: shipped.\n> ", out.String())
}

func TestRun_EOF(t *testing.T) {
	s := newTestSession(&fakeGenerator{reply: "hi!"})

	var out bytes.Buffer
	require.NoError(t, s.Run(context.Background(), strings.NewReader("hello"), &out))
	assert.Equal(t, "> hi!\n> \nExiting assistant.\n", out.String())
}

func TestRun_LongLines(t *testing.T) {
	r := newReplica(t, orderService)
	s := newTestSession(&fakeGenerator{reply: "hi!"}, r.srv.URL)

	big := "status of ORD-2024-001" + strings.Repeat(" please", 10000)
	in := strings.NewReader(strings.Repeat("a", maxLineBytes+10) + "\n" + big + "\n")

	var out bytes.Buffer
	require.NoError(t, s.Run(context.Background(), in, &out))
	got := out.String()
	assert.True(t, strings.HasPrefix(got, "> That message is too long (over 1.0 MiB)."), got)
	assert.True(t, strings.HasSuffix(got, "> ORD-2024-001 status: shipped.\n> \nExiting assistant.\n"), got)
}

func TestStartup(t *testing.T) {
	r := newReplica(t, orderService)
	reg := endpoint.NewRegistry([]string{r.srv.URL, "http://127.0.0.1:1"})
	prober := endpoint.NewProber(endpoint.NewProberParams{})

	banner, err := Startup(context.Background(), prober, reg)
	require.NoError(t, err)
	assert.Equal(t, "Assistant ready. 1/2 endpoints available.", banner)

	down := endpoint.NewRegistry([]string{"http://127.0.0.1:1"})
	_, err = Startup(context.Background(), prober, down)
	require.ErrorIs(t, err, endpoint.ErrNoUsableEndpoints)
	assert.Contains(t, StartupError(down), "Endpoints tried:\n  - http://127.0.0.1:1")
}

func TestSessionIDsAreDistinct(t *testing.T) {
	a, b := newTestSession(nil), newTestSession(nil)
	assert.NotEmpty(t, a.ID())
	assert.NotEqual(t, a.ID(), b.ID())
}
