package stats

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"itassist/internal/index"
	"itassist/internal/middleware"
)

type Index interface {
	Manifest() index.Manifest
	Len() int
	Documents() int
}

type SnapshotStore interface {
	CountChunks(ctx context.Context) (int, error)
}

type Handler struct {
	index  Index
	store  SnapshotStore
	driver string
}

// NewHandler accepts a nil index before startup completes.
func NewHandler(ix Index, store SnapshotStore, driver string) *Handler {
	return &Handler{index: ix, store: store, driver: driver}
}

type StatsResponse struct {
	Documents       int       `json:"documents"`
	Chunks          int       `json:"chunks"`
	PersistedChunks int       `json:"persisted_chunks"`
	Dimension       int       `json:"dimension"`
	Model           string    `json:"model"`
	ChunkSize       int       `json:"chunk_size"`
	ChunkOverlap    int       `json:"chunk_overlap"`
	SnapshotDriver  string    `json:"snapshot_driver"`
	CreatedAt       time.Time `json:"created_at"`
}

func (h *Handler) GetStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	correlationID := middleware.GetCorrelationID(ctx)

	slog.InfoContext(ctx, "getting stats", "correlationId", correlationID)

	if h.index == nil {
		h.writeError(ctx, w, "INDEX_UNAVAILABLE", "semantic index is not loaded", http.StatusServiceUnavailable)
		return
	}

	persisted := 0
	if h.store != nil {
		n, err := h.store.CountChunks(ctx)
		if err != nil {
			slog.ErrorContext(ctx, "failed to count persisted chunks", "error", err, "correlationId", correlationID)
			h.writeError(ctx, w, "INTERNAL_ERROR", "failed to count persisted chunks", http.StatusInternalServerError)
			return
		}
		persisted = n
	}

	m := h.index.Manifest()
	resp := StatsResponse{
		Documents:       h.index.Documents(),
		Chunks:          h.index.Len(),
		PersistedChunks: persisted,
		Dimension:       m.Dimension,
		Model:           m.Model,
		ChunkSize:       m.ChunkSize,
		ChunkOverlap:    m.ChunkOverlap,
		SnapshotDriver:  h.driver,
		CreatedAt:       m.CreatedAt,
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]any{"data": resp}); err != nil {
		slog.ErrorContext(ctx, "failed to encode response", "error", err)
	}
}

func (h *Handler) writeError(ctx context.Context, w http.ResponseWriter, code, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	resp := map[string]any{
		"error": map[string]string{
			"code":    code,
			"message": message,
		},
		"correlationId": middleware.GetCorrelationID(ctx),
	}

	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.Error("failed to encode error response", "error", err)
	}
}
