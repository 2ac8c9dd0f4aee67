package pagecraft

import (
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/eringen/pagecraft/content"
)

// metrics is registered on a per-App registry so several Apps (and tests)
// can coexist in one process.
type metrics struct {
	registry *prometheus.Registry

	requests *prometheus.CounterVec
	latency  *prometheus.HistogramVec
	saved    *prometheus.CounterVec
	deleted  *prometheus.CounterVec
	uploads  prometheus.Counter
}

func newMetrics() *metrics {
	m := &metrics{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pagecraft_http_requests_total",
			Help: "HTTP requests by method, route and status code.",
		}, []string{"method", "route", "code"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "pagecraft_http_request_duration_seconds",
			Help:    "HTTP request latency by route.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route"}),
		saved: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pagecraft_documents_saved_total",
			Help: "Documents written to the store, by document type.",
		}, []string{"type"}),
		deleted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pagecraft_documents_deleted_total",
			Help: "Documents deleted from the store, by document type.",
		}, []string{"type"}),
		uploads: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pagecraft_media_uploads_total",
			Help: "Images uploaded to the media library.",
		}),
	}
	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.requests, m.latency, m.saved, m.deleted, m.uploads,
	)
	return m
}

func (m *metrics) documentSaved(t content.DocType)   { m.saved.WithLabelValues(string(t)).Inc() }
func (m *metrics) documentDeleted(t content.DocType) { m.deleted.WithLabelValues(string(t)).Inc() }

// middleware counts requests by route pattern rather than raw path to keep
// label cardinality bounded.
func (m *metrics) middleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		start := time.Now()
		err := next(c)

		route := c.Path()
		if route == "" {
			route = "unmatched"
		}
		code := c.Response().Status
		if err != nil {
			if he, ok := err.(*echo.HTTPError); ok {
				code = he.Code
			} else if !c.Response().Committed {
				code = 500
			}
		}
		m.requests.WithLabelValues(c.Request().Method, route, strconv.Itoa(code)).Inc()
		m.latency.WithLabelValues(route).Observe(time.Since(start).Seconds())
		return err
	}
}

func (m *metrics) handler() echo.HandlerFunc {
	return echo.WrapHandler(promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}))
}
