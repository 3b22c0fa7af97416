package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "pair_dashboard"

// ── HTTP request metrics (RED method) ──────────────────────────────────

var (
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "Total number of HTTP requests.",
	}, []string{"method", "path", "status_code"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request latency in seconds.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "path"})

	HTTPRequestsInFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "requests_in_flight",
		Help:      "Number of HTTP requests currently being processed.",
	})
)

// ── Polling / source metrics ───────────────────────────────────────────

var (
	PollTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "poll",
		Name:      "total",
		Help:      "Total number of upstream fetches per source.",
	}, []string{"source", "status"})

	PollDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "poll",
		Name:      "duration_seconds",
		Help:      "Duration of an upstream fetch per source in seconds.",
		Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
	}, []string{"source"})

	PollLastSuccess = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "poll",
		Name:      "last_success_timestamp",
		Help:      "Unix timestamp of the last successful fetch per source.",
	}, []string{"source"})

	TickErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "poll",
		Name:      "tick_errors_total",
		Help:      "Ticks aborted by an unexpected error and retried after the retry delay.",
	})

	SearchRateLimitedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "poll",
		Name:      "search_rate_limited_total",
		Help:      "Search requests that hit an exhausted rate-limit window.",
	})
)

// ── Store metrics ──────────────────────────────────────────────────────

var (
	TicksAppendedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "store",
		Name:      "ticks_appended_total",
		Help:      "Tick records written to at least one store file.",
	})

	StoreWriteErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "store",
		Name:      "write_errors_total",
		Help:      "Failed appends per file kind (target or shard).",
	}, []string{"file"})

	ArchiveErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "store",
		Name:      "archive_errors_total",
		Help:      "Failed tick mirrors to the archive database.",
	})
)

// ── Push / alert delivery metrics ──────────────────────────────────────

var (
	PushClients = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "push",
		Name:      "clients",
		Help:      "Connected websocket subscribers.",
	})

	PushDroppedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "push",
		Name:      "dropped_total",
		Help:      "Messages dropped because a subscriber buffer was full.",
	})

	AlertsSentTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "alerts",
		Name:      "sent_total",
		Help:      "Total alerts successfully delivered.",
	}, []string{"type"})

	AlertsFailedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "alerts",
		Name:      "failed_total",
		Help:      "Total alert delivery failures.",
	}, []string{"type"})

	AlertsDeduplicatedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "alerts",
		Name:      "deduplicated_total",
		Help:      "Total alerts suppressed by deduplication.",
	}, []string{"type"})
)

// ── Business metrics ───────────────────────────────────────────────────

var (
	MarketCapUSD = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "business",
		Name:      "market_cap_usd",
		Help:      "Market cap of the configured pair at the latest tick.",
	})

	Holders = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "business",
		Name:      "holders",
		Help:      "Holder count of the configured pair at the latest tick.",
	})

	SolPriceUSD = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "business",
		Name:      "sol_price_usd",
		Help:      "Cached SOL price used for USD conversions.",
	})

	ExitPeakMarketCap = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "exit",
		Name:      "peak_market_cap_usd",
		Help:      "Highest market cap observed by the exit monitor.",
	})

	ExitLowActive = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "exit",
		Name:      "low_active",
		Help:      "1 while the low market cap condition holds, else 0.",
	})
)
