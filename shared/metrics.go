package shared

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

// ServiceMetrics tracks in-process success metrics for a service, reported on /health
type ServiceMetrics struct {
	ServiceName           string        `json:"service_name"`
	TotalRequests         int64         `json:"total_requests"`
	SuccessfulRequests    int64         `json:"successful_requests"`
	FailedRequests        int64         `json:"failed_requests"`
	TotalProcessingTime   time.Duration `json:"total_processing_time"`
	AverageProcessingTime time.Duration `json:"average_processing_time"`
	LastUpdated           time.Time     `json:"last_updated"`
	mutex                 sync.RWMutex
}

// NewServiceMetrics creates a new metrics tracker for a service
func NewServiceMetrics(serviceName string) *ServiceMetrics {
	return &ServiceMetrics{
		ServiceName: serviceName,
		LastUpdated: time.Now(),
	}
}

// RecordRequest records a request with its success status and processing time
func (m *ServiceMetrics) RecordRequest(success bool, processingTime time.Duration) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	m.TotalRequests++
	m.TotalProcessingTime += processingTime
	m.AverageProcessingTime = time.Duration(int64(m.TotalProcessingTime) / m.TotalRequests)

	if success {
		m.SuccessfulRequests++
	} else {
		m.FailedRequests++
	}

	m.LastUpdated = time.Now()
}

// GetSnapshot returns a thread-safe snapshot of current metrics
func (m *ServiceMetrics) GetSnapshot() map[string]interface{} {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	successRate := 0.0
	if m.TotalRequests > 0 {
		successRate = float64(m.SuccessfulRequests) / float64(m.TotalRequests) * 100.0
	}

	return map[string]interface{}{
		"service_name":        m.ServiceName,
		"total_requests":      m.TotalRequests,
		"successful_requests": m.SuccessfulRequests,
		"failed_requests":     m.FailedRequests,
		"average_latency_ms":  m.AverageProcessingTime.Milliseconds(),
		"success_rate":        successRate,
		"last_updated":        m.LastUpdated,
	}
}

// LogSummary logs a summary of current metrics
func (m *ServiceMetrics) LogSummary() {
	logrus.WithFields(logrus.Fields(m.GetSnapshot())).Info("Service metrics summary")
}

// Metrics holds the prometheus collectors exported on /metrics
type Metrics struct {
	registry *prometheus.Registry

	BackendRequests   *prometheus.CounterVec
	BackendLatency    *prometheus.HistogramVec
	ValidationFailure *prometheus.CounterVec
	DraftsSaved       prometheus.Counter
	CacheLookups      *prometheus.CounterVec
}

// NewMetrics registers every collector on a fresh registry
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	m := &Metrics{
		registry: registry,
		BackendRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ipo_admin",
			Name:      "backend_requests_total",
			Help:      "Backend API calls by resource, method and outcome.",
		}, []string{"resource", "method", "outcome"}),
		BackendLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "ipo_admin",
			Name:      "backend_request_duration_seconds",
			Help:      "Backend API call latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"resource", "method"}),
		ValidationFailure: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ipo_admin",
			Name:      "validation_failures_total",
			Help:      "Submissions rejected by validation, by form.",
		}, []string{"form"}),
		DraftsSaved: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "ipo_admin",
			Name:      "drafts_saved_total",
			Help:      "Failed submissions kept as drafts.",
		}),
		CacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ipo_admin",
			Name:      "cache_lookups_total",
			Help:      "Read cache lookups by result.",
		}, []string{"result"}),
	}

	registry.MustRegister(
		m.BackendRequests,
		m.BackendLatency,
		m.ValidationFailure,
		m.DraftsSaved,
		m.CacheLookups,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// ObserveBackendCall records one backend call
func (m *Metrics) ObserveBackendCall(resource, method, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.BackendRequests.WithLabelValues(resource, method, outcome).Inc()
	m.BackendLatency.WithLabelValues(resource, method).Observe(elapsed.Seconds())
}

// ObserveValidationFailure counts a rejected submission
func (m *Metrics) ObserveValidationFailure(form string) {
	if m == nil {
		return
	}
	m.ValidationFailure.WithLabelValues(form).Inc()
}

// ObserveDraftSaved counts a saved draft
func (m *Metrics) ObserveDraftSaved() {
	if m == nil {
		return
	}
	m.DraftsSaved.Inc()
}

// ObserveCacheLookup counts a cache hit or miss
func (m *Metrics) ObserveCacheLookup(hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.CacheLookups.WithLabelValues(result).Inc()
}

// Handler exposes the registry in the prometheus text format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
