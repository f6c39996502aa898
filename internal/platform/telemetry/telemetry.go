// Package telemetry provides Prometheus metrics for the medication core:
// HTTP server metrics plus domain counters for stock movements,
// administrations, and stock-guard rejections.
package telemetry

import (
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all application metrics.
type Metrics struct {
	RequestDuration *prometheus.HistogramVec
	ActiveRequests  prometheus.Gauge

	StockMovementsApplied   *prometheus.CounterVec
	AdministrationsRecorded *prometheus.CounterVec
	InsufficientStockTotal  prometheus.Counter
	ExpiryScansTotal        prometheus.Counter
}

// New creates and registers all metrics on a private registry.
func New() (*Metrics, *prometheus.Registry) {
	m := &Metrics{
		RequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_server_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds.",
			Buckets: []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		}, []string{"method", "route", "status_code"}),
		ActiveRequests: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "http_server_active_requests",
			Help: "Number of active HTTP requests.",
		}),
		StockMovementsApplied: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "stock_movements_applied_total",
			Help: "Stock ledger movements applied, by adjustment type.",
		}, []string{"adjustment_type"}),
		AdministrationsRecorded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "administrations_recorded_total",
			Help: "Medication administration events recorded, by status.",
		}, []string{"status"}),
		InsufficientStockTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "insufficient_stock_rejections_total",
			Help: "Operations rejected by the stock-never-negative guard.",
		}),
		ExpiryScansTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "expiry_scans_total",
			Help: "Clinic expiration scans performed.",
		}),
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		m.RequestDuration,
		m.ActiveRequests,
		m.StockMovementsApplied,
		m.AdministrationsRecorded,
		m.InsufficientStockTotal,
		m.ExpiryScansTotal,
	)

	return m, reg
}

// Middleware records HTTP server metrics for every request.
func (m *Metrics) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			m.ActiveRequests.Inc()
			start := time.Now()

			err := next(c)

			m.ActiveRequests.Dec()

			// Route pattern, not the concrete path.
			route := c.Path()
			if route == "" {
				route = c.Request().URL.Path
			}
			m.RequestDuration.WithLabelValues(
				c.Request().Method,
				route,
				strconv.Itoa(c.Response().Status),
			).Observe(time.Since(start).Seconds())

			return err
		}
	}
}

// Handler returns the /metrics endpoint for the given registry.
func Handler(reg *prometheus.Registry) echo.HandlerFunc {
	return echo.WrapHandler(promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
}
