package observability

import (
	"strconv"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type set struct {
	httpRequestsTotal          *prometheus.CounterVec
	httpRequestDurationSeconds *prometheus.HistogramVec
	upstreamLatencySeconds     *prometheus.HistogramVec
	boundsLoadTotal            *prometheus.CounterVec
	boundsDatasets             prometheus.Gauge
	sessionMutationsTotal      *prometheus.CounterVec
	viewRequestsTotal          *prometheus.CounterVec
	refreshEventsTotal         *prometheus.CounterVec
	snapshotOpsTotal           *prometheus.CounterVec
}

var cur atomic.Pointer[set]

// Init wires the service collectors into reg. A nil registerer or
// enabled=false turns every helper below into a no-op; tests call Init again
// with their own registry.
func Init(reg prometheus.Registerer, enabled bool) {
	if !enabled || reg == nil {
		cur.Store(nil)
		return
	}

	f := promauto.With(reg)
	s := &set{
		httpRequestsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests.",
			},
			[]string{"method", "route", "status"},
		),
		httpRequestDurationSeconds: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Duration of HTTP requests in seconds.",
				Buckets: prometheus.ExponentialBuckets(0.005, 2, 12), // 5ms to ~20s
			},
			[]string{"method", "route", "status"},
		),
		upstreamLatencySeconds: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "upstream_latency_seconds",
				Help:    "Latency of platform API calls in seconds.",
				Buckets: prometheus.ExponentialBuckets(0.005, 2, 12),
			},
			[]string{"upstream"},
		),
		boundsLoadTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bounds_load_total",
				Help: "Dataset bounds load attempts by outcome.",
			},
			[]string{"outcome"},
		),
		boundsDatasets: f.NewGauge(
			prometheus.GaugeOpts{
				Name: "bounds_datasets",
				Help: "Datasets in the currently applied bounds collection.",
			},
		),
		sessionMutationsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "session_mutations_total",
				Help: "Session state mutations by operation.",
			},
			[]string{"op"},
		),
		viewRequestsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "view_requests_total",
				Help: "Derived view requests by view and outcome.",
			},
			[]string{"view", "outcome"},
		),
		refreshEventsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "refresh_events_total",
				Help: "Dataset change events by outcome.",
			},
			[]string{"outcome"},
		),
		snapshotOpsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "snapshot_ops_total",
				Help: "Bounds snapshot store operations by op and outcome.",
			},
			[]string{"op", "outcome"},
		),
	}
	cur.Store(s)
}

func ObserveHTTP(method, route string, status int, durationSeconds float64) {
	s := cur.Load()
	if s == nil {
		return
	}
	st := strconv.Itoa(status)
	s.httpRequestsTotal.WithLabelValues(method, route, st).Inc()
	s.httpRequestDurationSeconds.WithLabelValues(method, route, st).Observe(durationSeconds)
}

func ObserveUpstreamLatency(upstream string, durationSeconds float64) {
	if s := cur.Load(); s != nil {
		s.upstreamLatencySeconds.WithLabelValues(upstream).Observe(durationSeconds)
	}
}

func ObserveBoundsLoad(outcome string) {
	if s := cur.Load(); s != nil {
		s.boundsLoadTotal.WithLabelValues(outcome).Inc()
	}
}

func SetBoundsDatasets(n int) {
	if s := cur.Load(); s != nil {
		s.boundsDatasets.Set(float64(n))
	}
}

func ObserveSessionMutation(op string) {
	if s := cur.Load(); s != nil {
		s.sessionMutationsTotal.WithLabelValues(op).Inc()
	}
}

func ObserveViewRequest(view, outcome string) {
	if s := cur.Load(); s != nil {
		s.viewRequestsTotal.WithLabelValues(view, outcome).Inc()
	}
}

func ObserveRefreshEvent(outcome string) {
	if s := cur.Load(); s != nil {
		s.refreshEventsTotal.WithLabelValues(outcome).Inc()
	}
}

func ObserveSnapshotOp(op, outcome string) {
	if s := cur.Load(); s != nil {
		s.snapshotOpsTotal.WithLabelValues(op, outcome).Inc()
	}
}
