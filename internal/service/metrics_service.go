package service

import (
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"os"
	"runtime"
	"sort"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	dto "github.com/prometheus/client_model/go"

	"github.com/noah-isme/news-api/internal/models"
)

// MetricsService owns the Prometheus registry with request, cache and
// business counters.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	cacheLatency    prometheus.Observer
	cacheWrite      prometheus.Observer
	cacheHitRatio   prometheus.Gauge
	cacheHits       prometheus.Counter
	cacheMisses     prometheus.Counter

	newsCreated         prometheus.Counter
	usersRegistered     prometheus.Counter
	notificationsSent   prometheus.Counter
	notificationsFailed prometheus.Counter
	digestsGenerated    prometheus.Counter
	authFailures        *prometheus.CounterVec

	cacheHitCount  uint64
	cacheMissCount uint64
}

// NewMetricsService registers core Prometheus collectors.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "endpoint", "status_code"})

	requestTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total HTTP requests",
	}, []string{"method", "endpoint", "status_code"})

	cacheLatency := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "cache_latency_seconds",
		Help:    "Latency for cache lookups",
		Buckets: prometheus.DefBuckets,
	})

	cacheWrite := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "cache_write_seconds",
		Help:    "Latency for cache set operations",
		Buckets: prometheus.DefBuckets,
	})

	cacheHitRatio := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "cache_hit_ratio",
		Help: "Ratio of cache hits to total cache lookups",
	})

	cacheHits := prometheus.NewCounter(prometheus.CounterOpts{Name: "cache_hits_total", Help: "Total cache hits"})
	cacheMisses := prometheus.NewCounter(prometheus.CounterOpts{Name: "cache_misses_total", Help: "Total cache misses"})

	newsCreated := prometheus.NewCounter(prometheus.CounterOpts{Name: "news_created_total", Help: "Total news created"})
	usersRegistered := prometheus.NewCounter(prometheus.CounterOpts{Name: "users_registered_total", Help: "Total users registered"})
	notificationsSent := prometheus.NewCounter(prometheus.CounterOpts{Name: "notifications_sent_total", Help: "Total notifications sent"})
	notificationsFailed := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "notifications_failed_total",
		Help: "Notification jobs that exhausted their retries",
	})
	digestsGenerated := prometheus.NewCounter(prometheus.CounterOpts{Name: "digests_generated_total", Help: "Weekly digests generated"})
	authFailures := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "auth_failures_total",
		Help: "Authentication failures by operation and error code",
	}, []string{"operation", "code"})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(
		requestDuration, requestTotal,
		cacheLatency, cacheWrite, cacheHitRatio, cacheHits, cacheMisses,
		newsCreated, usersRegistered, notificationsSent, notificationsFailed, digestsGenerated, authFailures,
		goroutines,
	)

	return &MetricsService{
		registry:            registry,
		handler:             promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration:     requestDuration,
		requestTotal:        requestTotal,
		cacheLatency:        cacheLatency,
		cacheWrite:          cacheWrite,
		cacheHitRatio:       cacheHitRatio,
		cacheHits:           cacheHits,
		cacheMisses:         cacheMisses,
		newsCreated:         newsCreated,
		usersRegistered:     usersRegistered,
		notificationsSent:   notificationsSent,
		notificationsFailed: notificationsFailed,
		digestsGenerated:    digestsGenerated,
		authFailures:        authFailures,
	}
}

// Handler exposes the Prometheus HTTP handler.
func (m *MetricsService) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// ObserveHTTPRequest records request count and latency.
func (m *MetricsService) ObserveHTTPRequest(method, endpoint string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	code := strconv.Itoa(status)
	m.requestDuration.WithLabelValues(method, endpoint, code).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, endpoint, code).Inc()
}

// RecordCacheOperation records cache hit/miss metrics and updates hit ratio.
func (m *MetricsService) RecordCacheOperation(hit bool, duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheLatency.Observe(duration.Seconds())
	if hit {
		m.cacheHits.Inc()
		atomic.AddUint64(&m.cacheHitCount, 1)
	} else {
		m.cacheMisses.Inc()
		atomic.AddUint64(&m.cacheMissCount, 1)
	}
	hits := atomic.LoadUint64(&m.cacheHitCount)
	total := hits + atomic.LoadUint64(&m.cacheMissCount)
	if total > 0 {
		m.cacheHitRatio.Set(float64(hits) / float64(total))
	}
}

// ObserveCacheWrite tracks the duration for cache write operations.
func (m *MetricsService) ObserveCacheWrite(duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheWrite.Observe(duration.Seconds())
}

func (m *MetricsService) IncNewsCreated() {
	if m != nil {
		m.newsCreated.Inc()
	}
}

func (m *MetricsService) IncUsersRegistered() {
	if m != nil {
		m.usersRegistered.Inc()
	}
}

func (m *MetricsService) AddNotificationsSent(n int) {
	if m != nil && n > 0 {
		m.notificationsSent.Add(float64(n))
	}
}

func (m *MetricsService) IncNotificationsFailed() {
	if m != nil {
		m.notificationsFailed.Inc()
	}
}

func (m *MetricsService) IncDigestsGenerated() {
	if m != nil {
		m.digestsGenerated.Inc()
	}
}

// IncAuthFailure counts a failed auth operation by error code.
func (m *MetricsService) IncAuthFailure(operation, code string) {
	if m != nil {
		m.authFailures.WithLabelValues(operation, code).Inc()
	}
}

// Export gathers the registry into flat samples and, when path is not
// empty, writes them to path as indented JSON.
func (m *MetricsService) Export(path string) (*models.MetricsExport, error) {
	if m == nil {
		return nil, fmt.Errorf("metrics disabled")
	}
	families, err := m.registry.Gather()
	if err != nil {
		return nil, fmt.Errorf("gather metrics: %w", err)
	}

	out := &models.MetricsExport{Timestamp: time.Now().UTC(), Metrics: []models.MetricSample{}}
	for _, mf := range families {
		out.Metrics = append(out.Metrics, flattenFamily(mf)...)
	}

	if path != "" {
		payload, err := json.MarshalIndent(out, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("encode metrics: %w", err)
		}
		if err := os.WriteFile(path, payload, 0o644); err != nil {
			return nil, fmt.Errorf("write metrics export: %w", err)
		}
	}
	return out, nil
}

func flattenFamily(mf *dto.MetricFamily) []models.MetricSample {
	name := mf.GetName()
	kind := metricType(mf.GetType())
	var samples []models.MetricSample
	for _, metric := range mf.GetMetric() {
		labels := make(map[string]string, len(metric.GetLabel()))
		for _, lp := range metric.GetLabel() {
			labels[lp.GetName()] = lp.GetValue()
		}
		switch mf.GetType() {
		case dto.MetricType_COUNTER:
			samples = append(samples, models.MetricSample{Name: name, Labels: labels, Value: metric.GetCounter().GetValue(), Type: kind})
		case dto.MetricType_GAUGE:
			samples = append(samples, models.MetricSample{Name: name, Labels: labels, Value: metric.GetGauge().GetValue(), Type: kind})
		case dto.MetricType_HISTOGRAM:
			h := metric.GetHistogram()
			buckets := h.GetBucket()
			sort.Slice(buckets, func(i, j int) bool { return buckets[i].GetUpperBound() < buckets[j].GetUpperBound() })
			for _, b := range buckets {
				if math.IsInf(b.GetUpperBound(), 1) {
					continue
				}
				samples = append(samples, models.MetricSample{
					Name:   name + "_bucket",
					Labels: withLabel(labels, "le", formatBound(b.GetUpperBound())),
					Value:  float64(b.GetCumulativeCount()),
					Type:   kind,
				})
			}
			samples = append(samples,
				models.MetricSample{Name: name + "_bucket", Labels: withLabel(labels, "le", "+Inf"), Value: float64(h.GetSampleCount()), Type: kind},
				models.MetricSample{Name: name + "_count", Labels: labels, Value: float64(h.GetSampleCount()), Type: kind},
				models.MetricSample{Name: name + "_sum", Labels: labels, Value: h.GetSampleSum(), Type: kind},
			)
		case dto.MetricType_UNTYPED:
			samples = append(samples, models.MetricSample{Name: name, Labels: labels, Value: metric.GetUntyped().GetValue(), Type: kind})
		}
	}
	return samples
}

func metricType(t dto.MetricType) string {
	switch t {
	case dto.MetricType_COUNTER:
		return "counter"
	case dto.MetricType_GAUGE:
		return "gauge"
	case dto.MetricType_HISTOGRAM:
		return "histogram"
	case dto.MetricType_SUMMARY:
		return "summary"
	default:
		return "unknown"
	}
}

func withLabel(labels map[string]string, k, v string) map[string]string {
	out := make(map[string]string, len(labels)+1)
	for lk, lv := range labels {
		out[lk] = lv
	}
	out[k] = v
	return out
}

func formatBound(b float64) string {
	if math.IsInf(b, 1) {
		return "+Inf"
	}
	return strconv.FormatFloat(b, 'g', -1, 64)
}
