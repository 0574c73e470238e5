package handler

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jmerrifield20/trustchain/internal/chain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "trustchain_requests_total",
		Help: "Total HTTP requests by method, path, and response status.",
	}, []string{"method", "path", "status"})

	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "trustchain_request_duration_seconds",
		Help:    "Request duration in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path"})

	blocksAppendedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "trustchain_blocks_appended_total",
		Help: "Chain append attempts by action and result.",
	}, []string{"action", "result"})

	auditRunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "trustchain_audit_runs_total",
		Help: "Background fleet audits by result.",
	}, []string{"result"})

	auditBrokenVendors = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "trustchain_audit_broken_vendors",
		Help: "Vendors whose chain failed the most recent audit.",
	})

	auditVendorsChecked = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "trustchain_audit_vendors_checked",
		Help: "Vendors covered by the most recent audit.",
	})

	alertDeliveriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "trustchain_alert_deliveries_total",
		Help: "Tamper alert delivery attempts by status.",
	}, []string{"status"})
)

// PrometheusMiddleware returns a Gin middleware that records per-request metrics.
func PrometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())
		method := c.Request.Method
		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}

		requestsTotal.WithLabelValues(method, path, status).Inc()
		requestDuration.WithLabelValues(method, path).Observe(duration)
	}
}

// MetricsHandler returns a Gin handler that serves Prometheus metrics.
func MetricsHandler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}

// RecordAppend records a chain append attempt. Matches chain.AppendRecorder.
func RecordAppend(action string, ok bool) {
	blocksAppendedTotal.WithLabelValues(action, result(ok)).Inc()
}

// RecordAudit records a background fleet audit. Matches audit.MetricsRecordFunc.
func RecordAudit(fleet *chain.FleetResult, err error) {
	if err != nil {
		auditRunsTotal.WithLabelValues("error").Inc()
		return
	}
	auditRunsTotal.WithLabelValues(result(fleet.OverallValid)).Inc()
	auditVendorsChecked.Set(float64(fleet.VendorsChecked))
	auditBrokenVendors.Set(float64(len(fleet.BrokenVendors())))
}

// RecordAlertDelivery records a tamper alert delivery attempt.
func RecordAlertDelivery(success bool) {
	if success {
		alertDeliveriesTotal.WithLabelValues("success").Inc()
	} else {
		alertDeliveriesTotal.WithLabelValues("failure").Inc()
	}
}

func result(ok bool) string {
	if ok {
		return "ok"
	}
	return "failed"
}
