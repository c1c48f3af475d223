package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/alanyoungcy/dexarb/internal/domain"
)

// ExecutionReader is the read side of the execution audit store.
type ExecutionReader interface {
	GetByID(ctx context.Context, id string) (domain.Execution, error)
	ListRecent(ctx context.Context, limit int) ([]domain.Execution, error)
}

// ExecutionHandler serves the settlement audit trail.
type ExecutionHandler struct {
	store  ExecutionReader
	logger *slog.Logger
}

// NewExecutionHandler creates an ExecutionHandler.
func NewExecutionHandler(store ExecutionReader, logger *slog.Logger) *ExecutionHandler {
	return &ExecutionHandler{store: store, logger: logHandler(logger, "executions")}
}

// executionView renders big integers as decimal strings.
type executionView struct {
	ID           string     `json:"id"`
	BuyVenue     string     `json:"buy_venue"`
	SellVenue    string     `json:"sell_venue"`
	InputAmount  string     `json:"input_amount,omitempty"`
	DryRun       bool       `json:"dry_run"`
	TxHash       string     `json:"tx_hash,omitempty"`
	Status       string     `json:"status"`
	NativeSpent  string     `json:"native_spent"`
	Token0Gained string     `json:"token0_gained"`
	GasUsed      uint64     `json:"gas_used,omitempty"`
	Error        string     `json:"error,omitempty"`
	StartedAt    time.Time  `json:"started_at"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
}

func toExecutionView(e domain.Execution) executionView {
	v := executionView{
		ID:           e.ID,
		BuyVenue:     e.BuyVenue,
		SellVenue:    e.SellVenue,
		DryRun:       e.DryRun,
		TxHash:       e.TxHash,
		Status:       string(e.Status),
		NativeSpent:  e.NativeSpent().String(),
		Token0Gained: e.Token0Gained().String(),
		GasUsed:      e.GasUsed,
		Error:        e.Error,
		StartedAt:    e.StartedAt,
		CompletedAt:  e.CompletedAt,
	}
	if e.InputAmount != nil {
		v.InputAmount = e.InputAmount.String()
	}
	return v
}

// List returns recent executions.
// GET /api/executions?limit=20
func (h *ExecutionHandler) List(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = min(n, 200)
		}
	}

	execs, err := h.store.ListRecent(r.Context(), limit)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "list executions failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to list executions")
		return
	}
	out := make([]executionView, 0, len(execs))
	for _, e := range execs {
		out = append(out, toExecutionView(e))
	}
	writeJSON(w, http.StatusOK, map[string]any{"executions": out})
}

// Get returns one execution.
// GET /api/executions/{id}
func (h *ExecutionHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	exec, err := h.store.GetByID(r.Context(), id)
	if errors.Is(err, domain.ErrNotFound) {
		writeError(w, http.StatusNotFound, "execution not found")
		return
	}
	if err != nil {
		h.logger.ErrorContext(r.Context(), "get execution failed",
			slog.String("id", id),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to get execution")
		return
	}
	writeJSON(w, http.StatusOK, toExecutionView(exec))
}
