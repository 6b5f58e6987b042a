package monitor

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus collectors for the execution pipeline. Registered on the
// default registry; exposed by the ops server at /metrics.
var (
	TicksReceived = promauto.NewCounter(prometheus.CounterOpts{
		Name: "futures_ticks_received_total",
		Help: "Ticks accepted from the quote feed.",
	})

	BarsCompleted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "futures_bars_completed_total",
		Help: "Finalized OHLCV bars.",
	})

	SignalsGenerated = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "futures_signals_total",
		Help: "Trade signals by action.",
	}, []string{"action"})

	OrdersSubmitted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "futures_orders_submitted_total",
		Help: "Orders submitted by action.",
	}, []string{"action"})

	QueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "futures_execution_queue_depth",
		Help: "Requests waiting in the execution queue.",
	})

	RequestsProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "futures_execution_requests_total",
		Help: "Queue requests processed by operation and outcome.",
	}, []string{"operation", "outcome"})

	WorkerRetries = promauto.NewCounter(prometheus.CounterOpts{
		Name: "futures_worker_retries_total",
		Help: "Transparent worker retries after transient broker errors.",
	})

	SessionReconnects = promauto.NewCounter(prometheus.CounterOpts{
		Name: "futures_session_reconnects_total",
		Help: "Broker session teardowns followed by re-login.",
	})

	StopsTriggered = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "futures_stops_triggered_total",
		Help: "Stop-loss exits by reason.",
	}, []string{"reason"})

	ReconciliationCorrections = promauto.NewCounter(prometheus.CounterOpts{
		Name: "futures_reconciliation_corrections_total",
		Help: "Times broker truth overwrote local position belief.",
	})

	QuoteBatchesDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "futures_quote_batches_dropped_total",
		Help: "Quote history batches dropped after retry exhaustion.",
	})
)
