package service

import (
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsService encapsulates Prometheus instrumentation for the HTTP
// surface and the calendar sync engine.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	syncDuration    *prometheus.HistogramVec
	syncAttempts    *prometheus.CounterVec
	syncRetries     *prometheus.CounterVec
	eventStatus     *prometheus.GaugeVec
	dbQueryDuration *prometheus.HistogramVec
}

// NewMetricsService registers core Prometheus collectors.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	requestTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	syncDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "calendar_sync_duration_seconds",
		Help:    "Duration of calendar provider calls",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation", "outcome"})

	syncAttempts := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "calendar_sync_attempts_total",
		Help: "Calendar provider calls by operation and outcome",
	}, []string{"operation", "outcome"})

	syncRetries := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "calendar_sync_retries_total",
		Help: "Calendar provider calls scheduled for retry",
	}, []string{"operation"})

	eventStatus := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "calendar_events_status",
		Help: "Live calendar event rows per sync status",
	}, []string{"status"})

	dbQueryDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "db_query_duration_seconds",
		Help:    "Duration of database queries",
		Buckets: prometheus.DefBuckets,
	}, []string{"query"})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, syncDuration, syncAttempts, syncRetries, eventStatus, dbQueryDuration, goroutines)

	handler := promhttp.HandlerFor(registry, promhttp.HandlerOpts{})

	return &MetricsService{
		registry:        registry,
		handler:         handler,
		requestDuration: requestDuration,
		requestTotal:    requestTotal,
		syncDuration:    syncDuration,
		syncAttempts:    syncAttempts,
		syncRetries:     syncRetries,
		eventStatus:     eventStatus,
		dbQueryDuration: dbQueryDuration,
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

// ObserveHTTPRequest records request metrics.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := fmt.Sprintf("%d", status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
}

// ObserveSyncAttempt records one calendar provider round trip.
func (m *MetricsService) ObserveSyncAttempt(operation, outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	m.syncDuration.WithLabelValues(operation, outcome).Observe(duration.Seconds())
	m.syncAttempts.WithLabelValues(operation, outcome).Inc()
}

// AddSyncRetry counts a provider call scheduled for another attempt.
func (m *MetricsService) AddSyncRetry(operation string) {
	if m == nil {
		return
	}
	m.syncRetries.WithLabelValues(operation).Inc()
}

// SetEventStatusCount publishes the per-status backlog gauge.
func (m *MetricsService) SetEventStatusCount(status string, count int) {
	if m == nil {
		return
	}
	m.eventStatus.WithLabelValues(status).Set(float64(count))
}

// ObserveDBQuery records database query timing.
func (m *MetricsService) ObserveDBQuery(label string, duration time.Duration) {
	if m == nil {
		return
	}
	m.dbQueryDuration.WithLabelValues(label).Observe(duration.Seconds())
}
