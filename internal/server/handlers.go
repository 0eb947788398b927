package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/morezero/order-assistant/pkg/generate"
	"github.com/morezero/order-assistant/pkg/toolserver"
)

// HealthOutput is the GET /mcp/health body.
type HealthOutput struct {
	Status   string `json:"status"`
	Database string `json:"database"`
	Detail   string `json:"detail,omitempty"`
	Version  string `json:"version"`
}

// ToolsOutput is the GET /mcp/tools body.
type ToolsOutput struct {
	Tools   map[string]toolserver.ToolSpec `json:"tools"`
	Version string                         `json:"version"`
}

// ChatRequest is the POST /mcp/chat body.
type ChatRequest struct {
	Message string         `json:"message"`
	Context map[string]any `json:"context"`
}

// ChatResponse is the POST /mcp/chat reply.
type ChatResponse struct {
	Response string `json:"response"`
}

// Health reports database reachability. The service is never "error": a missing
// or failing database degrades it.
func (s *Server) Health(ctx context.Context) *HealthOutput {
	h := &HealthOutput{Status: "ok", Database: "ok", Version: s.cfg.ServiceVersion}
	if s.store == nil {
		h.Status, h.Database = "degraded", "not_configured"
		return h
	}
	ctx, cancel := context.WithTimeout(ctx, s.cfg.HealthCheckTimeout)
	defer cancel()
	if err := s.store.Ping(ctx); err != nil {
		slog.Warn(fmt.Sprintf("%s - database health check failed: %v", logPrefix, err))
		h.Status, h.Database, h.Detail = "degraded", "error", err.Error()
	}
	return h
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeDetail(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	writeJSON(w, http.StatusOK, s.Health(r.Context()))
}

func (s *Server) handleTools(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeDetail(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	writeJSON(w, http.StatusOK, &ToolsOutput{Tools: toolserver.Tools(), Version: s.cfg.ServiceVersion})
}

func (s *Server) handleInvoke(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeDetail(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var req toolserver.InvokeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeDetail(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Tool == "" {
		writeDetail(w, http.StatusBadRequest, "tool required")
		return
	}

	slog.Debug(fmt.Sprintf("%s - invoke tool=%s request_id=%s", logPrefix, req.Tool, r.Header.Get("X-Request-ID")))
	result, terr := s.router.Dispatch(r.Context(), &req)
	if terr != nil {
		writeDetail(w, terr.Status, terr.Detail)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeDetail(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeDetail(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if s.gen == nil {
		writeDetail(w, http.StatusInternalServerError, "LLM service unavailable")
		return
	}

	orderContext, err := json.Marshal(req.Context)
	if err != nil {
		writeDetail(w, http.StatusBadRequest, "context is not serializable")
		return
	}
	text, err := s.gen.Generate(r.Context(), generate.ChatPrompt(req.Message, string(orderContext)))
	if err != nil {
		slog.Error(fmt.Sprintf("%s - chat error: %v", logPrefix, err))
		writeDetail(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, &ChatResponse{Response: text})
}

func (s *Server) handleReady(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error(fmt.Sprintf("%s - encode response: %v", logPrefix, err))
	}
}

func writeDetail(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}
