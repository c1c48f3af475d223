package handler

import (
	"context"
	"log/slog"
	"net/http"
	"sort"
	"time"
)

const probeTimeout = 2 * time.Second

// Counter reports how many trade logs the sink holds.
type Counter interface {
	Count(ctx context.Context) (int64, error)
}

// Probe checks one backing service.
type Probe func(ctx context.Context) error

// HealthHandler serves the health-check endpoint.
type HealthHandler struct {
	logs      Counter
	probes    map[string]Probe
	startedAt time.Time
	logger    *slog.Logger
}

// NewHealthHandler creates a HealthHandler. logs may be nil; probes maps a
// backend name (postgres, redis, s3) to its check.
func NewHealthHandler(logs Counter, probes map[string]Probe, logger *slog.Logger) *HealthHandler {
	return &HealthHandler{logs: logs, probes: probes, startedAt: time.Now().UTC(), logger: logger}
}

// HealthCheck reports liveness, uptime, the stored trade-log count and each
// backend's state. Any failure turns the status to degraded but still
// answers 200.
// GET /api/health
func (h *HealthHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	resp := map[string]any{
		"status":         "ok",
		"timestamp":      time.Now().UTC().Format(time.RFC3339),
		"uptime_seconds": int64(time.Since(h.startedAt).Seconds()),
	}
	if h.logs != nil {
		n, err := h.logs.Count(ctx)
		if err != nil {
			h.logger.WarnContext(ctx, "health: count trade logs failed",
				slog.String("error", err.Error()),
			)
			resp["status"] = "degraded"
		} else {
			resp["trade_logs"] = n
		}
	}

	if len(h.probes) > 0 {
		names := make([]string, 0, len(h.probes))
		for name := range h.probes {
			names = append(names, name)
		}
		sort.Strings(names)

		backends := make(map[string]string, len(names))
		for _, name := range names {
			pctx, cancel := context.WithTimeout(ctx, probeTimeout)
			err := h.probes[name](pctx)
			cancel()
			if err != nil {
				h.logger.WarnContext(ctx, "health: backend check failed",
					slog.String("backend", name),
					slog.String("error", err.Error()),
				)
				backends[name] = "error"
				resp["status"] = "degraded"
				continue
			}
			backends[name] = "ok"
		}
		resp["backends"] = backends
	}
	writeJSON(w, http.StatusOK, resp)
}
