package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/alanyoungcy/dexarb/internal/domain"
	"github.com/alanyoungcy/dexarb/internal/metrics"
)

const maxTradeLogBody = 64 << 10

// Broadcaster pushes accepted trade logs to live listeners.
type Broadcaster interface {
	BroadcastTradeLog(log domain.TradeLog)
}

// TradeLogHandler receives and lists trade logs posted by the bot.
type TradeLogHandler struct {
	store  domain.TradeLogStore
	live   Broadcaster
	logger *slog.Logger
}

// NewTradeLogHandler creates a TradeLogHandler. live may be nil.
func NewTradeLogHandler(store domain.TradeLogStore, live Broadcaster, logger *slog.Logger) *TradeLogHandler {
	return &TradeLogHandler{store: store, live: live, logger: logHandler(logger, "trade_logs")}
}

type createTradeLogResponse struct {
	Success bool  `json:"success"`
	ID      int64 `json:"id,omitempty"`
}

// Create validates and stores one trade log.
// POST /api/trade-logs
func (h *TradeLogHandler) Create(w http.ResponseWriter, r *http.Request) {
	var in domain.TradeLog
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxTradeLogBody))
	if err := dec.Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	// Identity and receive time belong to the sink.
	in.ID = 0
	in.ReceivedAt = time.Time{}

	if err := in.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	stored, err := h.store.Insert(r.Context(), in)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "store trade log failed",
			slog.String("venue", in.Venue),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to store trade log")
		return
	}

	metrics.TradeLogsReceived.Inc()
	h.logger.DebugContext(r.Context(), "trade log stored",
		slog.Int64("id", stored.ID),
		slog.String("venue", stored.Venue),
		slog.Uint64("block", stored.BlockNumber),
	)
	if h.live != nil {
		h.live.BroadcastTradeLog(stored)
	}
	writeJSON(w, http.StatusOK, createTradeLogResponse{Success: true, ID: stored.ID})
}

// List returns stored trade logs newest first as a bare JSON array.
// GET /api/trade-logs?limit=50&offset=0&venue=uniswap
func (h *TradeLogHandler) List(w http.ResponseWriter, r *http.Request) {
	opts := parseListOpts(r)
	logs, err := h.store.List(r.Context(), opts)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "list trade logs failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to list trade logs")
		return
	}
	if logs == nil {
		logs = []domain.TradeLog{}
	}
	writeJSON(w, http.StatusOK, logs)
}
