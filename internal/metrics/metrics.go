// Package metrics holds the process-wide Prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// SwapsObserved counts Swap events received per venue.
	SwapsObserved = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dexarb_swaps_observed_total",
		Help: "Swap events received from venue pools",
	}, []string{"venue"})

	// SwapsSkipped counts swaps that arrived while a cycle was running, by
	// busy policy outcome (dropped, coalesced).
	SwapsSkipped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dexarb_swaps_skipped_total",
		Help: "Swap events not evaluated because the execution gate was busy",
	}, []string{"outcome"})

	// Cycles counts decision cycles by result.
	Cycles = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dexarb_cycles_total",
		Help: "Decision cycles by result",
	}, []string{"result"})

	// CycleDuration tracks decision cycle latency.
	CycleDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "dexarb_cycle_duration_seconds",
		Help:    "Duration of a decision cycle from gate entry to release",
		Buckets: prometheus.DefBuckets,
	})

	// Divergence records the last computed divergence in percent.
	Divergence = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "dexarb_divergence_percent",
		Help: "Last computed price divergence of venue A over venue B",
	})

	// GateBusy is 1 while a decision cycle holds the gate.
	GateBusy = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "dexarb_gate_busy",
		Help: "Whether a decision cycle currently holds the execution gate",
	})

	// Executions counts settlement attempts by status.
	Executions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dexarb_executions_total",
		Help: "Settlement attempts by status",
	}, []string{"status"})

	// TradeLogsPublished counts sink deliveries by result (ok, error, dropped).
	TradeLogsPublished = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dexarb_trade_logs_published_total",
		Help: "Trade logs shipped to the sink by result",
	}, []string{"result"})

	// TradeLogsReceived counts trade logs accepted by the sink.
	TradeLogsReceived = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dexarb_trade_logs_received_total",
		Help: "Trade logs accepted by the sink",
	})

	// TradeLogsArchived counts trade logs moved to object storage.
	TradeLogsArchived = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dexarb_trade_logs_archived_total",
		Help: "Trade logs exported to object storage",
	})

	// HTTPRequests counts sink API requests by method and status code.
	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dexarb_http_requests_total",
		Help: "Sink API requests by method and status code",
	}, []string{"method", "code"})

	// WSClients is the number of connected websocket clients.
	WSClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "dexarb_ws_clients",
		Help: "Connected websocket clients on the sink stream",
	})
)
