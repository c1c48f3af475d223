// Package publisher ships swap observations to the trade-log sink. It is
// fire and forget: nothing here can stall or fail the decision pipeline.
package publisher

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/alanyoungcy/dexarb/internal/domain"
	"github.com/alanyoungcy/dexarb/internal/metrics"
)

// SwapChannel is the pub/sub channel observations are mirrored to.
const SwapChannel = "ch:swaps"

const (
	defaultQueueSize = 256
	defaultTimeout   = 5 * time.Second
)

// Config configures an HTTPPublisher.
type Config struct {
	SinkURL   string // base URL; records go to <SinkURL>/api/trade-logs
	APIKey    string // sent as X-API-Key when set
	QueueSize int
	Timeout   time.Duration
	Bus       domain.SignalBus // optional
	Client    *http.Client
	Logger    *slog.Logger
}

// HTTPPublisher queues trade logs and POSTs them from a single worker.
type HTTPPublisher struct {
	endpoint string
	apiKey   string
	queue    chan domain.TradeLog
	timeout  time.Duration
	bus      domain.SignalBus
	client   *http.Client
	logger   *slog.Logger
}

// New creates an HTTPPublisher. Run must be started for records to leave
// the queue.
func New(cfg Config) *HTTPPublisher {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = defaultQueueSize
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.Client == nil {
		cfg.Client = &http.Client{}
	}
	return &HTTPPublisher{
		endpoint: strings.TrimRight(cfg.SinkURL, "/") + "/api/trade-logs",
		apiKey:   cfg.APIKey,
		queue:    make(chan domain.TradeLog, cfg.QueueSize),
		timeout:  cfg.Timeout,
		bus:      cfg.Bus,
		client:   cfg.Client,
		logger:   cfg.Logger.With(slog.String("component", "publisher")),
	}
}

// Publish enqueues obs without blocking. When the queue is full the record
// is dropped and counted.
func (p *HTTPPublisher) Publish(obs domain.SwapObservation) {
	rec := domain.TradeLogFromObservation(obs)
	select {
	case p.queue <- rec:
	default:
		metrics.TradeLogsPublished.WithLabelValues("dropped").Inc()
		p.logger.Warn("trade log queue full, dropping record",
			slog.String("venue", rec.Venue),
			slog.Uint64("block", rec.BlockNumber),
		)
	}
}

// Run delivers queued records until ctx is cancelled. It always returns nil.
func (p *HTTPPublisher) Run(ctx context.Context) error {
	p.logger.Info("publisher started", slog.String("endpoint", p.endpoint))
	defer p.logger.Info("publisher stopped")
	for {
		select {
		case <-ctx.Done():
			return nil
		case rec := <-p.queue:
			p.deliver(ctx, rec)
		}
	}
}

func (p *HTTPPublisher) deliver(ctx context.Context, rec domain.TradeLog) {
	body, err := json.Marshal(rec)
	if err != nil {
		p.logger.Error("marshal trade log", slog.String("error", err.Error()))
		return
	}

	if p.bus != nil {
		if err := p.bus.Publish(ctx, SwapChannel, body); err != nil {
			p.logger.Debug("mirror to bus failed", slog.String("error", err.Error()))
		}
	}

	if err := p.post(ctx, body); err != nil {
		metrics.TradeLogsPublished.WithLabelValues("error").Inc()
		p.logger.Warn("post trade log failed",
			slog.String("venue", rec.Venue),
			slog.Uint64("block", rec.BlockNumber),
			slog.String("error", err.Error()),
		)
		return
	}
	metrics.TradeLogsPublished.WithLabelValues("ok").Inc()
}

func (p *HTTPPublisher) post(ctx context.Context, body []byte) error {
	reqCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, p.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("publisher: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if p.apiKey != "" {
		req.Header.Set("X-API-Key", p.apiKey)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("publisher: send: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("publisher: sink returned %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}
