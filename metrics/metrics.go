package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Registry holds the application-specific Prometheus collectors.
	Registry = prometheus.NewRegistry()

	httpInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "barrim_ledger",
			Subsystem: "http",
			Name:      "inflight_requests",
			Help:      "Current number of in-flight HTTP requests.",
		},
	)

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "barrim_ledger",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		},
		[]string{"method", "path", "status"},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "barrim_ledger",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10), // 5ms to ~5s
		},
		[]string{"method", "path"},
	)

	// EarningsRecorded counts recorded earnings by source type.
	EarningsRecorded = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "barrim_ledger",
			Subsystem: "commission",
			Name:      "earnings_recorded_total",
			Help:      "Total number of commission earnings recorded.",
		},
		[]string{"source"},
	)

	// EarningTransitions counts earning status changes by target status.
	EarningTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "barrim_ledger",
			Subsystem: "commission",
			Name:      "earning_transitions_total",
			Help:      "Total number of earning status transitions.",
		},
		[]string{"status"},
	)

	// PayoutTransitions counts payouts entering a status.
	PayoutTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "barrim_ledger",
			Subsystem: "payout",
			Name:      "transitions_total",
			Help:      "Total number of payouts entering each status.",
		},
		[]string{"status"},
	)

	// PayoutNetPaid sums the net amount of paid payouts.
	PayoutNetPaid = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "barrim_ledger",
			Subsystem: "payout",
			Name:      "net_paid_total",
			Help:      "Net amount disbursed by paid payouts.",
		},
	)
)

func init() {
	Registry.MustRegister(
		httpInFlight,
		httpRequests,
		httpDuration,
		EarningsRecorded,
		EarningTransitions,
		PayoutTransitions,
		PayoutNetPaid,
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		prometheus.NewGoCollector(),
	)
}

// Handler returns an HTTP handler exposing the registered Prometheus metrics.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// Middleware records request count and latency per route template.
func Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if c.Request().URL.Path == "/metrics" {
				return next(c)
			}

			httpInFlight.Inc()
			defer httpInFlight.Dec()

			start := time.Now()
			err := next(c)
			if err != nil {
				c.Error(err)
			}

			path := c.Path()
			if path == "" {
				path = "unmatched"
			}
			status := strconv.Itoa(c.Response().Status)
			httpRequests.WithLabelValues(c.Request().Method, path, status).Inc()
			httpDuration.WithLabelValues(c.Request().Method, path).Observe(time.Since(start).Seconds())
			return nil
		}
	}
}
