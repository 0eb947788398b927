package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	commsserver "github.com/nats-io/nats-server/v2/server"
	comms "github.com/nats-io/nats.go"

	"github.com/morezero/order-assistant/internal/config"
	"github.com/morezero/order-assistant/pkg/db"
)

const serverTestPrefix = "server:server_test"

type mockStore struct {
	orders  map[string]map[string]any
	history []db.OrderSummary
	pingErr error
}

func (m *mockStore) GetOrderByNumber(_ context.Context, n string) (map[string]any, error) {
	return m.orders[n], nil
}

func (m *mockStore) ListOrdersByEmail(_ context.Context, _ string, _ int) ([]db.OrderSummary, error) {
	return m.history, nil
}

func (m *mockStore) Ping(context.Context) error { return m.pingErr }

type mockGenerator struct {
	prompt string
	text   string
	err    error
}

func (m *mockGenerator) Generate(_ context.Context, prompt string) (string, error) {
	m.prompt = prompt
	return m.text, m.err
}

func testConfig() *config.Config {
	return &config.Config{
		HealthCheckTimeout: 5 * time.Second,
		RequestTimeout:     5 * time.Second,
		HistoryLimit:       10,
		ServiceVersion:     "0.3.0",
	}
}

// testServer returns a Server with mock collaborators for HTTP handler tests.
// A nil store leaves the Server without a database.
func testServer(t *testing.T, store *mockStore, gen *mockGenerator) *Server {
	t.Helper()
	p := NewServerParams{Config: testConfig()}
	if store != nil {
		p.Store = store
	}
	if gen != nil {
		p.Generator = gen
	}
	return NewServer(p)
}

func do(t *testing.T, s *Server, method, path, body string) (*http.Response, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	resp := rec.Result()
	raw, _ := io.ReadAll(resp.Body)
	var out map[string]any
	if strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json") {
		if err := json.Unmarshal(raw, &out); err != nil {
			t.Fatalf("%s - %s %s: invalid JSON %q: %v", serverTestPrefix, method, path, raw, err)
		}
	}
	return resp, out
}

func TestHealth(t *testing.T) {
	tests := []struct {
		name       string
		store      *mockStore
		wantStatus string
		wantDB     string
		wantDetail bool
	}{
		{"ok", &mockStore{}, "ok", "ok", false},
		{"not configured", nil, "degraded", "not_configured", false},
		{"ping failure", &mockStore{pingErr: errors.New("connection refused")}, "degraded", "error", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, body := do(t, testServer(t, tt.store, nil), http.MethodGet, "/mcp/health", "")
			if resp.StatusCode != http.StatusOK {
				t.Fatalf("%s - status = %d, want 200", serverTestPrefix, resp.StatusCode)
			}
			if body["status"] != tt.wantStatus || body["database"] != tt.wantDB {
				t.Errorf("%s - body = %v, want status=%s database=%s", serverTestPrefix, body, tt.wantStatus, tt.wantDB)
			}
			if _, ok := body["detail"]; ok != tt.wantDetail {
				t.Errorf("%s - detail present = %v, want %v", serverTestPrefix, ok, tt.wantDetail)
			}
			if body["version"] != "0.3.0" {
				t.Errorf("%s - version = %v, want 0.3.0", serverTestPrefix, body["version"])
			}
		})
	}
}

func TestTools(t *testing.T) {
	resp, body := do(t, testServer(t, &mockStore{}, nil), http.MethodGet, "/mcp/tools", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("%s - status = %d", serverTestPrefix, resp.StatusCode)
	}
	tools, ok := body["tools"].(map[string]any)
	if !ok {
		t.Fatalf("%s - tools = %T", serverTestPrefix, body["tools"])
	}
	for _, name := range []string{"get_order_status", "get_order_history_by_email"} {
		if _, ok := tools[name]; !ok {
			t.Errorf("%s - missing tool %s", serverTestPrefix, name)
		}
	}
}

func TestInvoke(t *testing.T) {
	store := &mockStore{
		orders:  map[string]map[string]any{"ORD-2024-001": {"order_number": "ORD-2024-001", "status": "shipped"}},
		history: []db.OrderSummary{{OrderNumber: "ORD-2024-001", Status: "shipped"}},
	}

	tests := []struct {
		name       string
		store      *mockStore
		method     string
		body       string
		wantStatus int
		check      func(t *testing.T, body map[string]any)
	}{
		{
			name: "order found", store: store, method: http.MethodPost,
			body:       `{"tool":"get_order_status","args":{"order_number":"ORD-2024-001"}}`,
			wantStatus: http.StatusOK,
			check: func(t *testing.T, body map[string]any) {
				if body["status"] != "shipped" {
					t.Errorf("%s - body = %v", serverTestPrefix, body)
				}
			},
		},
		{
			name: "order not found", store: store, method: http.MethodPost,
			body:       `{"tool":"get_order_status","args":{"order_number":"ORD-2024-404"}}`,
			wantStatus: http.StatusOK,
			check: func(t *testing.T, body map[string]any) {
				if body["error"] != "not_found" || body["order_number"] != "ORD-2024-404" {
					t.Errorf("%s - body = %v", serverTestPrefix, body)
				}
			},
		},
		{
			name: "history", store: store, method: http.MethodPost,
			body:       `{"tool":"get_order_history_by_email","args":{"email":"alice@example.com","limit":"x"}}`,
			wantStatus: http.StatusOK,
			check: func(t *testing.T, body map[string]any) {
				orders, _ := body["orders"].([]any)
				if body["email"] != "alice@example.com" || len(orders) != 1 {
					t.Errorf("%s - body = %v", serverTestPrefix, body)
				}
			},
		},
		{name: "missing arg", store: store, method: http.MethodPost, body: `{"tool":"get_order_status","args":{}}`, wantStatus: http.StatusBadRequest},
		{name: "unknown tool", store: store, method: http.MethodPost, body: `{"tool":"refund","args":{}}`, wantStatus: http.StatusNotFound},
		{name: "no database", store: nil, method: http.MethodPost, body: `{"tool":"get_order_status","args":{"order_number":"ORD-2024-001"}}`, wantStatus: http.StatusServiceUnavailable},
		{name: "bad body", store: store, method: http.MethodPost, body: `{not json`, wantStatus: http.StatusBadRequest},
		{name: "missing tool", store: store, method: http.MethodPost, body: `{"args":{}}`, wantStatus: http.StatusBadRequest},
		{name: "wrong method", store: store, method: http.MethodGet, body: "", wantStatus: http.StatusMethodNotAllowed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, body := do(t, testServer(t, tt.store, nil), tt.method, "/mcp/invoke", tt.body)
			if resp.StatusCode != tt.wantStatus {
				t.Fatalf("%s - status = %d, want %d (body %v)", serverTestPrefix, resp.StatusCode, tt.wantStatus, body)
			}
			if tt.wantStatus != http.StatusOK {
				if _, ok := body["detail"]; !ok {
					t.Errorf("%s - error body should carry detail, got %v", serverTestPrefix, body)
				}
			}
			if tt.check != nil {
				tt.check(t, body)
			}
		})
	}
}

func TestChat(t *testing.T) {
	gen := &mockGenerator{text: "It shipped on Monday."}
	resp, body := do(t, testServer(t, &mockStore{}, gen), http.MethodPost, "/mcp/chat",
		`{"message":"when did it ship?","context":{"status":"shipped"}}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("%s - status = %d", serverTestPrefix, resp.StatusCode)
	}
	if body["response"] != "It shipped on Monday." {
		t.Errorf("%s - response = %v", serverTestPrefix, body["response"])
	}
	if !strings.Contains(gen.prompt, `Context: {"status":"shipped"}`) || !strings.Contains(gen.prompt, "Question: when did it ship?") {
		t.Errorf("%s - prompt = %q", serverTestPrefix, gen.prompt)
	}

	failing := &mockGenerator{err: errors.New("backend down")}
	resp, _ = do(t, testServer(t, &mockStore{}, failing), http.MethodPost, "/mcp/chat", `{"message":"hi","context":{}}`)
	if resp.StatusCode != http.StatusInternalServerError {
		t.Errorf("%s - failing generator status = %d, want 500", serverTestPrefix, resp.StatusCode)
	}

	resp, body = do(t, testServer(t, &mockStore{}, nil), http.MethodPost, "/mcp/chat", `{"message":"hi","context":{}}`)
	if resp.StatusCode != http.StatusInternalServerError || body["detail"] != "LLM service unavailable" {
		t.Errorf("%s - no generator: status=%d body=%v", serverTestPrefix, resp.StatusCode, body)
	}
}

func TestHomeAndReady(t *testing.T) {
	s := testServer(t, &mockStore{}, nil)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("%s - home status = %d", serverTestPrefix, rec.Code)
	}
	page := rec.Body.String()
	for _, want := range []string{"Order Management MCP Server", "get_order_status", "get_order_history_by_email", "status-ok"} {
		if !strings.Contains(page, want) {
			t.Errorf("%s - home page missing %q", serverTestPrefix, want)
		}
	}

	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/nope", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("%s - unknown path status = %d, want 404", serverTestPrefix, rec.Code)
	}

	resp, body := do(t, s, http.MethodGet, "/ready", "")
	if resp.StatusCode != http.StatusOK || body["status"] != "ready" {
		t.Errorf("%s - ready: status=%d body=%v", serverTestPrefix, resp.StatusCode, body)
	}
}

func TestCommsInvoke(t *testing.T) {
	ns, err := commsserver.NewServer(&commsserver.Options{Host: "127.0.0.1", Port: 14250, NoLog: true, NoSigs: true})
	if err != nil {
		t.Fatalf("%s - failed to create COMMS server: %v", serverTestPrefix, err)
	}
	go ns.Start()
	if !ns.ReadyForConnections(10 * time.Second) {
		t.Fatalf("%s - COMMS server failed to start", serverTestPrefix)
	}
	defer func() {
		ns.Shutdown()
		ns.WaitForShutdown()
	}()

	nc, err := comms.Connect(ns.ClientURL())
	if err != nil {
		t.Fatalf("%s - connect: %v", serverTestPrefix, err)
	}
	defer nc.Close()

	s := testServer(t, &mockStore{orders: map[string]map[string]any{"ORD-2024-001": {"status": "shipped"}}}, nil)
	s.nc = nc
	sub, err := s.subscribeInvoke(context.Background(), "test.invoke")
	if err != nil {
		t.Fatalf("%s - subscribeInvoke: %v", serverTestPrefix, err)
	}
	defer sub.Unsubscribe()

	request := func(body string) invokeReply {
		t.Helper()
		msg, err := nc.Request("test.invoke", []byte(body), 5*time.Second)
		if err != nil {
			t.Fatalf("%s - request: %v", serverTestPrefix, err)
		}
		var reply invokeReply
		if err := json.Unmarshal(msg.Data, &reply); err != nil {
			t.Fatalf("%s - decode reply: %v", serverTestPrefix, err)
		}
		return reply
	}

	reply := request(`{"tool":"get_order_status","args":{"order_number":"ORD-2024-001"}}`)
	result, _ := reply.Result.(map[string]any)
	if !reply.Ok || result["status"] != "shipped" {
		t.Errorf("%s - reply = %+v", serverTestPrefix, reply)
	}

	reply = request(`{"tool":"nope"}`)
	if reply.Ok || reply.Status != http.StatusNotFound {
		t.Errorf("%s - unknown tool reply = %+v", serverTestPrefix, reply)
	}

	reply = request(`garbage`)
	if reply.Ok || reply.Status != http.StatusBadRequest {
		t.Errorf("%s - garbage reply = %+v", serverTestPrefix, reply)
	}
}
