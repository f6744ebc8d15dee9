package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/arbiterhq/switchboard/orchestrator"
	"github.com/arbiterhq/switchboard/store"
)

// streamRequest is the body of both the SSE endpoint and the first
// WebSocket frame.
type streamRequest struct {
	TenantID string                    `json:"tenant_id"`
	UserID   string                    `json:"user_id"`
	Messages []orchestrator.RawMessage `json:"messages"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// handleStreamSSE runs the handoff loop and streams its events as
// Server-Sent Events. Errors that occur before any event has been
// produced become a plain JSON error response; once the stream has
// started, failures surface as a terminal error event followed by
// connection close.
func (s *Server) handleStreamSSE(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, errorResponse{Error: "method not allowed"})
		return
	}

	var req streamRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body: " + err.Error()})
		return
	}
	if req.TenantID == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "tenant_id is required"})
		return
	}

	ctx := r.Context()
	events, err := s.loop.Run(ctx, req.Messages, store.TenantContext{TenantID: req.TenantID, UserID: req.UserID})
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "streaming unsupported"})
		return
	}

	// Hold off on the SSE headers until the first event arrives: if the
	// loop fails before producing anything, the client gets a regular
	// JSON error instead of an empty stream.
	first, open := <-events
	if !open {
		writeJSON(w, http.StatusBadGateway, errorResponse{Error: "no output produced"})
		return
	}
	if first.Type == orchestrator.EventError {
		writeJSON(w, http.StatusBadGateway, errorResponse{Error: first.Err})
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	writeSSE := func(ev orchestrator.Event) bool {
		data, err := json.Marshal(ev)
		if err != nil {
			s.logger.Error("marshal event", zap.Error(err))
			return false
		}
		if _, err := w.Write([]byte("data: ")); err != nil {
			return false
		}
		if _, err := w.Write(data); err != nil {
			return false
		}
		if _, err := w.Write([]byte("\n\n")); err != nil {
			return false
		}
		flusher.Flush()
		return true
	}

	if !writeSSE(first) {
		return
	}
	for ev := range events {
		if !writeSSE(ev) {
			// Client went away. The request context cancels the loop.
			return
		}
	}
	_, _ = w.Write([]byte("data: [DONE]\n\n"))
	flusher.Flush()
}

// handleHealth reports provider reachability in addition to liveness.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	type health struct {
		Status   string `json:"status"`
		Provider string `json:"provider"`
		Error    string `json:"error,omitempty"`
	}

	h := health{Status: "ok", Provider: s.provider.Name()}
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()
	status, err := s.provider.HealthCheck(ctx)
	if err != nil || status == nil || !status.Healthy {
		h.Status = "degraded"
		if err != nil {
			h.Error = err.Error()
		}
		writeJSON(w, http.StatusServiceUnavailable, h)
		return
	}
	writeJSON(w, http.StatusOK, h)
}

// handleHealthz is the liveness probe: the process is up.
func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
