// Package metrics exposes prometheus collectors for the background service.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "mue"

// Upload outcomes.
const (
	OutcomeStored   = "stored"
	OutcomeFailed   = "failed"
	OutcomeRejected = "rejected"
)

// Collector owns a registry and the service's metrics. A nil *Collector is
// valid and records nothing.
type Collector struct {
	registry *prometheus.Registry

	uploads         *prometheus.CounterVec
	uploadBytes     prometheus.Counter
	quotaRejections prometheus.Counter
	enrichFailures  *prometheus.CounterVec
	backfilled      prometheus.Counter
	backgrounds     prometheus.Gauge
	storageUsage    prometheus.Gauge
	storageQuota    prometheus.Gauge
	httpDuration    *prometheus.HistogramVec
}

// New registers collectors on registry, or on a fresh registry when nil.
func New(registry *prometheus.Registry) *Collector {
	if registry == nil {
		registry = prometheus.NewRegistry()
		registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}

	c := &Collector{
		registry: registry,
		uploads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "uploads_total",
			Help:      "Background uploads by outcome.",
		}, []string{"outcome"}),
		uploadBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "upload_bytes_total",
			Help:      "Bytes stored by uploads after compression.",
		}),
		quotaRejections: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "quota_rejections_total",
			Help:      "Writes refused because the storage quota would be exceeded.",
		}),
		enrichFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "enrich_failures_total",
			Help:      "Metadata derivation failures by stage.",
		}, []string{"stage"}),
		backfilled: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "backfilled_total",
			Help:      "Backgrounds whose missing metadata was filled in.",
		}),
		backgrounds: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "backgrounds",
			Help:      "Stored backgrounds.",
		}),
		storageUsage: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "storage_usage_bytes",
			Help:      "Estimated storage usage.",
		}),
		storageQuota: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "storage_quota_bytes",
			Help:      "Estimated storage quota.",
		}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "API request latency.",
			Buckets:   []float64{0.005, 0.025, 0.1, 0.5, 1, 5, 30},
		}, []string{"method", "route", "status"}),
	}

	registry.MustRegister(
		c.uploads,
		c.uploadBytes,
		c.quotaRejections,
		c.enrichFailures,
		c.backfilled,
		c.backgrounds,
		c.storageUsage,
		c.storageQuota,
		c.httpDuration,
	)
	return c
}

// Registry returns the underlying registry.
func (c *Collector) Registry() *prometheus.Registry {
	if c == nil {
		return nil
	}
	return c.registry
}

// Handler serves the registry in the prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	if c == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
		ErrorHandling:     promhttp.ContinueOnError,
	})
}

func (c *Collector) UploadStored(bytes int64) {
	if c == nil {
		return
	}
	c.uploads.WithLabelValues(OutcomeStored).Inc()
	if bytes > 0 {
		c.uploadBytes.Add(float64(bytes))
	}
}

func (c *Collector) UploadFailed() {
	if c == nil {
		return
	}
	c.uploads.WithLabelValues(OutcomeFailed).Inc()
}

// QuotaRejected counts an upload refused for lack of space.
func (c *Collector) QuotaRejected() {
	if c == nil {
		return
	}
	c.uploads.WithLabelValues(OutcomeRejected).Inc()
	c.quotaRejections.Inc()
}

// EnrichFailed counts a failed metadata stage ("dimensions", "blurhash", "compress").
func (c *Collector) EnrichFailed(stage string) {
	if c == nil {
		return
	}
	c.enrichFailures.WithLabelValues(stage).Inc()
}

func (c *Collector) Backfilled(n int) {
	if c == nil || n <= 0 {
		return
	}
	c.backfilled.Add(float64(n))
}

func (c *Collector) SetBackgrounds(n int) {
	if c == nil {
		return
	}
	c.backgrounds.Set(float64(n))
}

func (c *Collector) SetStorage(usage, quota int64) {
	if c == nil {
		return
	}
	c.storageUsage.Set(float64(usage))
	c.storageQuota.Set(float64(quota))
}

// ObserveRequest records one API request.
func (c *Collector) ObserveRequest(method, route string, status int, elapsed time.Duration) {
	if c == nil {
		return
	}
	if route == "" {
		route = "unmatched"
	}
	c.httpDuration.WithLabelValues(method, route, strconv.Itoa(status)).Observe(elapsed.Seconds())
}
