// Package metrics provides Prometheus metrics for the commission service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager owns every Prometheus collector of the service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	registry         prometheus.Registerer

	// Business metrics
	evaluations         *prometheus.CounterVec
	commissionsCreated  prometheus.Counter
	transitions         *prometheus.CounterVec
	transitionsRejected *prometheus.CounterVec
	ruleMutations       *prometheus.CounterVec
	commissionsByStatus *prometheus.GaugeVec
	amountByStatus      *prometheus.GaugeVec
	rulesTotal          prometheus.Gauge
	auditEntriesTotal   prometheus.Gauge

	// Persistence metrics
	storeLatency *prometheus.HistogramVec

	// HTTP metrics
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Error metrics
	errorRateByComponent *prometheus.CounterVec
	errorRateByType      *prometheus.CounterVec
	errorRateByEndpoint  *prometheus.CounterVec
	errorLatency         *prometheus.HistogramVec

	// System metrics
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // intentional global for singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // intentional global for metrics registry

func init() { //nolint:gochecknoinits // intentional init for global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a metrics manager and registers its collectors.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "commission",
		subsystem:        "ledger",
		histogramBuckets: prometheus.DefBuckets,
		registry:         prometheus.DefaultRegisterer,
	}

	for _, opt := range opts {
		opt(m)
	}

	m.initializeMetrics()

	return m
}

func (m *Manager) counterVec(name, help string, labels ...string) *prometheus.CounterVec {
	return promauto.With(m.registry).NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      name,
		Help:      help,
	}, labels)
}

func (m *Manager) gauge(name, help string) prometheus.Gauge {
	return promauto.With(m.registry).NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      name,
		Help:      help,
	})
}

func (m *Manager) histogramVec(name, help string, labels ...string) *prometheus.HistogramVec {
	return promauto.With(m.registry).NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      name,
		Help:      help,
		Buckets:   m.histogramBuckets,
	}, labels)
}

func (m *Manager) initializeMetrics() {
	auto := promauto.With(m.registry)

	m.evaluations = m.counterVec("evaluations_total", "Rule evaluations by rule type", "type")
	m.commissionsCreated = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "commissions_created_total",
		Help:      "Total number of commissions created",
	})
	m.transitions = m.counterVec("transitions_total", "Successful lifecycle transitions", "from", "to")
	m.transitionsRejected = m.counterVec("transitions_rejected_total", "Lifecycle transitions refused by the state machine", "from", "to")
	m.ruleMutations = m.counterVec("rule_mutations_total", "Rule create/update/delete/duplicate operations", "op")
	m.commissionsByStatus = auto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "commissions",
		Help:      "Current number of commissions per status",
	}, []string{"status"})
	m.amountByStatus = auto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "commission_amount",
		Help:      "Current commission amount per status",
	}, []string{"status"})
	m.rulesTotal = m.gauge("rules", "Current number of configured rules")
	m.auditEntriesTotal = m.gauge("audit_entries", "Current number of audit entries")

	m.storeLatency = m.histogramVec("store_latency_milliseconds", "Persistence latency by backend and operation", "backend", "op")

	m.httpRequests = m.counterVec("http_requests_total", "Total number of HTTP requests by endpoint and method", "endpoint", "method", "status_code")
	m.httpRequestDuration = m.histogramVec("http_request_duration_milliseconds", "HTTP request duration in milliseconds", "endpoint", "method", "status_code")

	m.errorRateByComponent = m.counterVec("errors_by_component_total", "Errors by component and type", "component", "error_type")
	m.errorRateByType = m.counterVec("errors_by_type_total", "Errors by type and severity", "error_type", "severity")
	m.errorRateByEndpoint = m.counterVec("errors_by_endpoint_total", "Errors by endpoint", "endpoint", "method", "error_type")
	m.errorLatency = m.histogramVec("error_latency_milliseconds", "Latency of operations that failed", "component", "error_type")

	m.systemMemoryUsage = m.gauge("system_memory_usage_bytes", "System memory usage in bytes")
	m.systemGoroutineCount = m.gauge("system_goroutine_count", "Number of goroutines")
}

// RecordEvaluation counts one rule evaluation.
func RecordEvaluation(kind string) {
	globalManager.evaluations.WithLabelValues(kind).Inc()
}

// RecordCommissionCreated counts one created commission.
func RecordCommissionCreated() {
	globalManager.commissionsCreated.Inc()
}

// RecordTransition counts a successful status change.
func RecordTransition(from, to string) {
	globalManager.transitions.WithLabelValues(from, to).Inc()
}

// RecordTransitionRejected counts a status change refused by the state machine.
func RecordTransitionRejected(from, to string) {
	globalManager.transitionsRejected.WithLabelValues(from, to).Inc()
}

// RecordRuleMutation counts a rule mutation by operation.
func RecordRuleMutation(op string) {
	globalManager.ruleMutations.WithLabelValues(op).Inc()
}

// UpdateCommissionStatus sets the count and amount gauges for one status.
func UpdateCommissionStatus(status string, count int, amount float64) {
	globalManager.commissionsByStatus.WithLabelValues(status).Set(float64(count))
	globalManager.amountByStatus.WithLabelValues(status).Set(amount)
}

// UpdateRuleCount sets the configured rule gauge.
func UpdateRuleCount(count int) {
	globalManager.rulesTotal.Set(float64(count))
}

// UpdateAuditEntryCount sets the audit entry gauge.
func UpdateAuditEntryCount(count int) {
	globalManager.auditEntriesTotal.Set(float64(count))
}

// RecordStoreLatency records a persistence call latency in milliseconds.
func RecordStoreLatency(backend, op string, latencyMs float64) {
	globalManager.storeLatency.WithLabelValues(backend, op).Observe(latencyMs)
}

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// RecordErrorByComponent records an error with component and type labels.
func RecordErrorByComponent(component, errorType string) {
	globalManager.errorRateByComponent.WithLabelValues(component, errorType).Inc()
}

// RecordErrorByType records an error with type and severity labels.
func RecordErrorByType(errorType, severity string) {
	globalManager.errorRateByType.WithLabelValues(errorType, severity).Inc()
}

// RecordErrorByEndpoint records an error with endpoint, method, and error type labels.
func RecordErrorByEndpoint(endpoint, method, errorType string) {
	globalManager.errorRateByEndpoint.WithLabelValues(endpoint, method, errorType).Inc()
}

// RecordErrorLatency records the latency of an operation that resulted in an error.
func RecordErrorLatency(component, errorType string, latencyMs float64) {
	globalManager.errorLatency.WithLabelValues(component, errorType).Observe(latencyMs)
}

// UpdateSystemMemoryUsage sets the system memory usage in bytes.
func UpdateSystemMemoryUsage(bytes uint64) {
	globalManager.systemMemoryUsage.Set(float64(bytes))
}

// UpdateSystemGoroutineCount sets the number of goroutines.
func UpdateSystemGoroutineCount(count int) {
	globalManager.systemGoroutineCount.Set(float64(count))
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
