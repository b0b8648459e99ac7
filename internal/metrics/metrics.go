package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "buyzaar"

// CheckoutMetrics holds the checkout counters. A nil *CheckoutMetrics is a no-op.
type CheckoutMetrics struct {
	Checkouts       *prometheus.CounterVec
	CheckoutLatency *prometheus.HistogramVec
	FollowUps       *prometheus.CounterVec
	Inconsistencies *prometheus.CounterVec
}

func NewCheckoutMetrics(reg prometheus.Registerer) *CheckoutMetrics {
	m := &CheckoutMetrics{
		Checkouts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "checkout",
			Name:      "orders_total",
			Help:      "placeOrder outcomes by result kind.",
		}, []string{"result"}),
		CheckoutLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "checkout",
			Name:      "duration_ms",
			Help:      "placeOrder latency in milliseconds.",
			Buckets:   []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
		}, []string{"result"}),
		FollowUps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "checkout",
			Name:      "followups_total",
			Help:      "Post-commit follow-up attempts by step and result.",
		}, []string{"step", "result"}),
		Inconsistencies: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "checkout",
			Name:      "post_commit_inconsistencies_total",
			Help:      "Orders committed whose follow-up step failed for good and needs reconciliation.",
		}, []string{"step"}),
	}
	reg.MustRegister(m.Checkouts, m.CheckoutLatency, m.FollowUps, m.Inconsistencies)
	return m
}

func (m *CheckoutMetrics) ObserveCheckout(result string, d time.Duration) {
	if m == nil {
		return
	}
	m.Checkouts.WithLabelValues(result).Inc()
	m.CheckoutLatency.WithLabelValues(result).Observe(float64(d.Milliseconds()))
}

func (m *CheckoutMetrics) FollowUp(step, result string) {
	if m == nil {
		return
	}
	m.FollowUps.WithLabelValues(step, result).Inc()
}

func (m *CheckoutMetrics) Inconsistency(step string) {
	if m == nil {
		return
	}
	m.Inconsistencies.WithLabelValues(step).Inc()
}

// HTTPMetrics counts requests per route.
type HTTPMetrics struct {
	Requests  *prometheus.CounterVec
	LatencyMS *prometheus.HistogramVec
}

func NewHTTPMetrics(reg prometheus.Registerer) *HTTPMetrics {
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "Total number of HTTP requests.",
	}, []string{"route", "status"})
	latency := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "request_duration_ms",
		Help:      "HTTP request latency in milliseconds.",
		Buckets:   []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
	}, []string{"route"})

	reg.MustRegister(requests, latency)
	return &HTTPMetrics{Requests: requests, LatencyMS: latency}
}

func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
