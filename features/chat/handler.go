package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"unicode/utf8"

	"itassist/internal/agent"
	"itassist/internal/middleware"
)

const (
	MaxMessageChars = 2000

	startupFailedMessage = "The AI engine failed to initialize. Please contact your system administrator."
	notReadyMessage      = "The AI agent is not yet ready. Please try again."
)

type Agent interface {
	Run(ctx context.Context, message string, history []agent.Turn) agent.Result
}

// Status is the startup state reported by health endpoints.
type Status struct {
	Ready      bool
	Err        error
	Components map[string]string
}

type StatusFunc func() Status

type Handler struct {
	agent  Agent
	status StatusFunc
}

// NewHandler accepts a nil agent while startup is still running or after it
// failed; status explains which.
func NewHandler(a Agent, status StatusFunc) *Handler {
	if status == nil {
		status = func() Status { return Status{Ready: a != nil} }
	}
	return &Handler{agent: a, status: status}
}

type HistoryMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type Request struct {
	Message     string           `json:"message"`
	ChatHistory []HistoryMessage `json:"chat_history"`
}

type Response struct {
	Response  string   `json:"response"`
	ToolCalls []string `json:"tool_calls"`
}

func (h *Handler) Chat(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(ctx, w, "INVALID_JSON", "request body must be a JSON object", http.StatusBadRequest)
		return
	}
	message := strings.TrimSpace(req.Message)
	if message == "" {
		h.writeError(ctx, w, "VALIDATION_ERROR", "message is required", http.StatusBadRequest)
		return
	}
	if utf8.RuneCountInString(message) > MaxMessageChars {
		h.writeError(ctx, w, "VALIDATION_ERROR", fmt.Sprintf("message must be at most %d characters", MaxMessageChars), http.StatusBadRequest)
		return
	}
	history, err := toTurns(req.ChatHistory)
	if err != nil {
		h.writeError(ctx, w, "VALIDATION_ERROR", err.Error(), http.StatusBadRequest)
		return
	}

	st := h.status()
	if st.Err != nil {
		h.writeError(ctx, w, "ENGINE_UNAVAILABLE", startupFailedMessage, http.StatusServiceUnavailable)
		return
	}
	if !st.Ready || h.agent == nil {
		h.writeError(ctx, w, "ENGINE_NOT_READY", notReadyMessage, http.StatusServiceUnavailable)
		return
	}

	slog.InfoContext(ctx, "chat request", "message_chars", utf8.RuneCountInString(message), "history", len(history))

	// The conversation runs to completion even if the client goes away.
	res := h.agent.Run(context.WithoutCancel(ctx), message, history)
	if res.Err != nil {
		slog.WarnContext(ctx, "chat answered with fallback", "outcome", res.Outcome, "error", res.Err)
	}
	slog.InfoContext(ctx, "chat response", "outcome", res.Outcome, "iterations", res.Iterations, "tools", res.ToolsUsed)

	h.writeJSON(ctx, w, http.StatusOK, Response{Response: res.Answer, ToolCalls: res.ToolsUsed})
}

func toTurns(msgs []HistoryMessage) ([]agent.Turn, error) {
	turns := make([]agent.Turn, 0, len(msgs))
	for i, m := range msgs {
		role, ok := agent.ParseRole(m.Role)
		if !ok {
			return nil, fmt.Errorf("chat_history[%d]: unknown role %q", i, m.Role)
		}
		turns = append(turns, agent.Turn{Role: role, Text: m.Content})
	}
	return turns, nil
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	st := h.status()
	if st.Err != nil {
		h.writeError(ctx, w, "STARTUP_FAILED", "AI engine failed: "+st.Err.Error(), http.StatusServiceUnavailable)
		return
	}
	if !st.Ready {
		h.writeError(ctx, w, "ENGINE_NOT_READY", notReadyMessage, http.StatusServiceUnavailable)
		return
	}
	h.writeJSON(ctx, w, http.StatusOK, map[string]any{
		"status":     "healthy",
		"components": st.Components,
	})
}

func (h *Handler) Root(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	st := h.status()
	body := map[string]any{
		"service": "itassist",
		"status":  "healthy",
	}
	if st.Err != nil {
		body["status"] = "degraded"
		body["error"] = st.Err.Error()
	} else if !st.Ready {
		body["status"] = "starting"
	}
	h.writeJSON(ctx, w, http.StatusOK, body)
}

func (h *Handler) writeJSON(ctx context.Context, w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.ErrorContext(ctx, "failed to encode response", "error", err)
	}
}

func (h *Handler) writeError(ctx context.Context, w http.ResponseWriter, code, message string, status int) {
	h.writeJSON(ctx, w, status, map[string]any{
		"error": map[string]string{
			"code":    code,
			"message": message,
		},
		"correlationId": middleware.GetCorrelationID(ctx),
	})
}
