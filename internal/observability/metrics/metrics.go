package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics aggregates the prometheus instruments used across the service.
type Metrics struct {
	HTTPRequests    *prometheus.CounterVec
	HTTPDuration    *prometheus.HistogramVec
	CheckoutTotal   *prometheus.CounterVec
	OrderTransition *prometheus.CounterVec
	ReaperRuns      *prometheus.CounterVec
	ReaperErrors    *prometheus.CounterVec
	ReaperDuration  *prometheus.HistogramVec
	WebhookTotal    *prometheus.CounterVec
}

func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		HTTPRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "smartorder_http_requests_total",
			Help: "HTTP requests by method, path and status.",
		}, []string{"method", "path", "status"}),
		HTTPDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "smartorder_http_request_duration_seconds",
			Help:    "HTTP request latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path"}),
		CheckoutTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "smartorder_checkout_total",
			Help: "Checkout attempts by outcome.",
		}, []string{"outcome"}),
		OrderTransition: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "smartorder_order_transitions_total",
			Help: "Order status transitions.",
		}, []string{"from", "to"}),
		ReaperRuns: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "smartorder_reaper_job_runs_total",
			Help: "Reaper job executions.",
		}, []string{"job"}),
		ReaperErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "smartorder_reaper_job_errors_total",
			Help: "Reaper job failures.",
		}, []string{"job"}),
		ReaperDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "smartorder_reaper_job_duration_seconds",
			Help:    "Reaper job duration.",
			Buckets: prometheus.DefBuckets,
		}, []string{"job"}),
		WebhookTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "smartorder_payment_webhooks_total",
			Help: "Payment webhook deliveries by provider and outcome.",
		}, []string{"provider", "outcome"}),
	}
}

func (m *Metrics) ObserveJob(job string, d time.Duration, err error) {
	if m == nil {
		return
	}
	m.ReaperRuns.WithLabelValues(job).Inc()
	m.ReaperDuration.WithLabelValues(job).Observe(d.Seconds())
	if err != nil {
		m.ReaperErrors.WithLabelValues(job).Inc()
	}
}

// GinMiddleware records request counters and latency histograms.
func GinMiddleware(m *Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		if m == nil {
			return
		}
		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		m.HTTPRequests.WithLabelValues(c.Request.Method, path, strconv.Itoa(c.Writer.Status())).Inc()
		m.HTTPDuration.WithLabelValues(c.Request.Method, path).Observe(time.Since(start).Seconds())
	}
}
