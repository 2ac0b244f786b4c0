package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// Chat metrics
	ChatRequestsTotal   *prometheus.CounterVec
	ChatDurationSeconds *prometheus.HistogramVec

	// Retrieval metrics
	RetrievalDurationSeconds *prometheus.HistogramVec
	RetrievalResults         *prometheus.HistogramVec
	KnowledgeEntries         prometheus.Gauge
	KnowledgeReloadsTotal    *prometheus.CounterVec
	KnowledgeReloadDuration  prometheus.Histogram

	// LLM metrics
	LLMRequestsTotal   *prometheus.CounterVec
	LLMDurationSeconds *prometheus.HistogramVec
	LLMFallbackTotal   *prometheus.CounterVec

	// HTTP metrics
	HTTPRequestsTotal *prometheus.CounterVec
	HTTPErrorsTotal   *prometheus.CounterVec

	// Rate limiter metrics
	RateLimiterDropped *prometheus.CounterVec
	RateLimiterKeys    *prometheus.GaugeVec

	// Backup metrics
	BackupsTotal      *prometheus.CounterVec
	BackupSizeBytes   prometheus.Gauge
	BackupDurationSec prometheus.Histogram
}

// New creates a new Metrics instance with all metrics registered
func New(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		// Chat metrics
		ChatRequestsTotal: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "uts_chat_requests_total",
				Help: "Total number of answered questions by composer branch and web search suggestion",
			},
			[]string{"branch", "suggest_web"}, // branch: widget, teacher_single, evidence, llm, ...
		),

		ChatDurationSeconds: promauto.With(registry).NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "uts_chat_duration_seconds",
				Help:    "End-to-end question handling duration in seconds by branch",
				Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30},
			},
			[]string{"branch"},
		),

		// Retrieval metrics
		RetrievalDurationSeconds: promauto.With(registry).NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "uts_retrieval_duration_seconds",
				Help:    "Fuzzy retrieval duration in seconds by user type",
				Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5},
			},
			[]string{"user_type"},
		),

		RetrievalResults: promauto.With(registry).NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "uts_retrieval_results",
				Help:    "Number of chunks returned per retrieval by user type",
				Buckets: []float64{0, 1, 2, 3, 5, 10},
			},
			[]string{"user_type"},
		),

		KnowledgeEntries: promauto.With(registry).NewGauge(
			prometheus.GaugeOpts{
				Name: "uts_knowledge_entries",
				Help: "Number of entries in the active retrieval index",
			},
		),

		KnowledgeReloadsTotal: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "uts_knowledge_reloads_total",
				Help: "Total number of knowledge index reloads by status",
			},
			[]string{"status"}, // status: success, error
		),

		KnowledgeReloadDuration: promauto.With(registry).NewHistogram(
			prometheus.HistogramOpts{
				Name:    "uts_knowledge_reload_duration_seconds",
				Help:    "Knowledge index reload duration in seconds",
				Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10},
			},
		),

		// LLM metrics
		LLMRequestsTotal: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "uts_llm_requests_total",
				Help: "Total number of LLM calls by provider, model and status",
			},
			[]string{"provider", "model", "status"}, // status: success, error, retry
		),

		LLMDurationSeconds: promauto.With(registry).NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "uts_llm_duration_seconds",
				Help:    "LLM call duration in seconds by provider",
				Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 20, 30, 60},
			},
			[]string{"provider"},
		),

		LLMFallbackTotal: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "uts_llm_fallback_total",
				Help: "Total number of fallbacks between LLM generators",
			},
			[]string{"from", "to"},
		),

		// HTTP metrics
		HTTPRequestsTotal: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "uts_http_requests_total",
				Help: "Total HTTP requests by route and status code",
			},
			[]string{"route", "code"},
		),

		HTTPErrorsTotal: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "uts_http_errors_total",
				Help: "Total HTTP errors by type and module",
			},
			[]string{"error_type", "module"}, // error_type: invalid_input, rate_limit, upstream, timeout
		),

		// Rate limiter metrics
		RateLimiterDropped: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "uts_rate_limiter_dropped_total",
				Help: "Total number of requests dropped by rate limiter",
			},
			[]string{"limiter_type"}, // limiter_type: session, ip
		),

		RateLimiterKeys: promauto.With(registry).NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "uts_rate_limiter_active_keys",
				Help: "Number of keys tracked by rate limiter",
			},
			[]string{"limiter_type"},
		),

		// Backup metrics
		BackupsTotal: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "uts_backups_total",
				Help: "Total number of database backups by status",
			},
			[]string{"status"}, // status: success, error
		),

		BackupSizeBytes: promauto.With(registry).NewGauge(
			prometheus.GaugeOpts{
				Name: "uts_backup_size_bytes",
				Help: "Compressed size of the last successful backup",
			},
		),

		BackupDurationSec: promauto.With(registry).NewHistogram(
			prometheus.HistogramOpts{
				Name:    "uts_backup_duration_seconds",
				Help:    "Database backup duration in seconds",
				Buckets: []float64{0.1, 0.5, 1, 5, 10, 30, 60, 120},
			},
		),
	}

	return m
}

// RecordChat records an answered question
func (m *Metrics) RecordChat(branch string, suggestWeb bool, duration time.Duration) {
	m.ChatRequestsTotal.WithLabelValues(branch, strconv.FormatBool(suggestWeb)).Inc()
	m.ChatDurationSeconds.WithLabelValues(branch).Observe(duration.Seconds())
}

// RecordRetrieval records one top-k retrieval
func (m *Metrics) RecordRetrieval(userType string, results int, duration time.Duration) {
	m.RetrievalDurationSeconds.WithLabelValues(userType).Observe(duration.Seconds())
	m.RetrievalResults.WithLabelValues(userType).Observe(float64(results))
}

// RecordReload records a knowledge index reload. The entries gauge only
// moves on success.
func (m *Metrics) RecordReload(status string, entries int, duration time.Duration) {
	m.KnowledgeReloadsTotal.WithLabelValues(status).Inc()
	m.KnowledgeReloadDuration.Observe(duration.Seconds())
	if status == "success" {
		m.SetKnowledgeEntries(entries)
	}
}

// SetKnowledgeEntries sets the active index size
func (m *Metrics) SetKnowledgeEntries(n int) {
	m.KnowledgeEntries.Set(float64(n))
}

// RecordLLM records one LLM call attempt
func (m *Metrics) RecordLLM(provider, model, status string, duration time.Duration) {
	m.LLMRequestsTotal.WithLabelValues(provider, model, status).Inc()
	m.LLMDurationSeconds.WithLabelValues(provider).Observe(duration.Seconds())
}

// RecordLLMFallback records a switch to the next generator
func (m *Metrics) RecordLLMFallback(from, to string) {
	m.LLMFallbackTotal.WithLabelValues(from, to).Inc()
}

// RecordHTTPRequest records a served HTTP request
func (m *Metrics) RecordHTTPRequest(route string, code int) {
	m.HTTPRequestsTotal.WithLabelValues(route, strconv.Itoa(code)).Inc()
}

// RecordHTTPError records HTTP error metrics
func (m *Metrics) RecordHTTPError(errorType, module string) {
	m.HTTPErrorsTotal.WithLabelValues(errorType, module).Inc()
}

// RecordRateLimited records a request dropped by rate limiter
func (m *Metrics) RecordRateLimited(limiterType string) {
	m.RateLimiterDropped.WithLabelValues(limiterType).Inc()
}

// SetRateLimiterKeys sets the number of tracked limiter keys
func (m *Metrics) SetRateLimiterKeys(limiterType string, count int) {
	m.RateLimiterKeys.WithLabelValues(limiterType).Set(float64(count))
}

// RecordBackup records a backup run. size is ignored on failure.
func (m *Metrics) RecordBackup(status string, size int64, duration time.Duration) {
	m.BackupsTotal.WithLabelValues(status).Inc()
	m.BackupDurationSec.Observe(duration.Seconds())
	if status == "success" {
		m.BackupSizeBytes.Set(float64(size))
	}
}
