// Package metrics provides Prometheus metrics for the matchday settlement service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager owns every Prometheus collector exported by matchday.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	registry         prometheus.Registerer

	// Settlement
	scoresApplied  prometheus.Counter
	scoresSkipped  prometheus.Counter
	proofsRejected prometheus.Counter
	oraclePending  prometheus.Counter
	currentPeriod  prometheus.Gauge

	// Commitments
	commitmentsBuilt    prometheus.Counter
	commitmentLeaves    prometheus.Gauge
	commitmentBuildTime prometheus.Histogram

	// Ledger
	ledgerOperations *prometheus.CounterVec
	activeSquads     prometheus.Gauge

	// Submission queue
	queueSize          prometheus.Gauge
	queueEnqueued      prometheus.Counter
	queueEnqueueErrors prometheus.Counter
	queueDequeued      prometheus.Counter
	submissions        *prometheus.CounterVec

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
}

var globalManager *Manager //nolint:gochecknoglobals // singleton metrics manager

var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // keeps default Go collectors out

func init() { //nolint:gochecknoinits // global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a metrics manager and registers its collectors.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "matchday",
		subsystem:        "settlement",
		histogramBuckets: prometheus.DefBuckets,
		registry:         prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.initializeMetrics()
	return m
}

func (m *Manager) initializeMetrics() {
	auto := promauto.With(m.registry)

	m.scoresApplied = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "scores_applied_total",
		Help:      "Verified leaves credited to squads",
	})
	m.scoresSkipped = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "scores_skipped_total",
		Help:      "Verified leaves skipped because the (owner, period) was already settled",
	})
	m.proofsRejected = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "proofs_rejected_total",
		Help:      "Settlement batches rejected on an invalid inclusion proof",
	})
	m.oraclePending = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "oracle_pending_total",
		Help:      "Settlement attempts made before the oracle finalized the root",
	})
	m.currentPeriod = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "current_period",
		Help:      "Most recently started period",
	})

	m.commitmentsBuilt = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: "commitment",
		Name:      "built_total",
		Help:      "Merkle commitments built",
	})
	m.commitmentLeaves = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: "commitment",
		Name:      "leaves",
		Help:      "Leaf count of the last built commitment",
	})
	m.commitmentBuildTime = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: "commitment",
		Name:      "build_duration_milliseconds",
		Help:      "Time to score squads and build a commitment",
		Buckets:   m.histogramBuckets,
	})

	m.ledgerOperations = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: "ledger",
		Name:      "operations_total",
		Help:      "Roster ledger operations by name and result",
	}, []string{"op", "result"})
	m.activeSquads = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: "ledger",
		Name:      "active_squads",
		Help:      "Squads in the Active state",
	})

	m.queueSize = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: "queue",
		Name:      "size",
		Help:      "Pending settlement submissions",
	})
	m.queueEnqueued = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: "queue",
		Name:      "enqueued_total",
		Help:      "Settlement submissions accepted into the queue",
	})
	m.queueEnqueueErrors = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: "queue",
		Name:      "enqueue_errors_total",
		Help:      "Settlement submissions rejected by the queue",
	})
	m.queueDequeued = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: "queue",
		Name:      "dequeued_total",
		Help:      "Settlement submissions handed to the worker",
	})
	m.submissions = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: "worker",
		Name:      "submissions_total",
		Help:      "Settlement submissions processed by final status",
	}, []string{"status"})

	m.httpRequests = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "HTTP requests by endpoint, method and status code",
	}, []string{"endpoint", "method", "status_code"})
	m.httpRequestDuration = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: "http",
		Name:      "request_duration_milliseconds",
		Help:      "HTTP request duration in milliseconds",
		Buckets:   m.histogramBuckets,
	}, []string{"endpoint", "method", "status_code"})
}

// RecordScoresApplied counts credited leaves.
func RecordScoresApplied(n int) { globalManager.scoresApplied.Add(float64(n)) }

// RecordScoresSkipped counts idempotently skipped leaves.
func RecordScoresSkipped(n int) { globalManager.scoresSkipped.Add(float64(n)) }

// RecordProofRejected counts a batch rejected on proof failure.
func RecordProofRejected() { globalManager.proofsRejected.Inc() }

// RecordOraclePending counts a settlement attempt against an unresolved root.
func RecordOraclePending() { globalManager.oraclePending.Inc() }

// UpdateCurrentPeriod sets the current period gauge.
func UpdateCurrentPeriod(p uint64) { globalManager.currentPeriod.Set(float64(p)) }

// RecordCommitmentBuilt records a commitment build.
func RecordCommitmentBuilt(leaves int, durationMs float64) {
	globalManager.commitmentsBuilt.Inc()
	globalManager.commitmentLeaves.Set(float64(leaves))
	globalManager.commitmentBuildTime.Observe(durationMs)
}

// RecordLedgerOperation counts a ledger operation outcome ("ok" or an error kind).
func RecordLedgerOperation(op, result string) {
	globalManager.ledgerOperations.WithLabelValues(op, result).Inc()
}

// UpdateActiveSquads sets the active squad gauge.
func UpdateActiveSquads(n int) { globalManager.activeSquads.Set(float64(n)) }

// UpdateQueueSize sets the queue backlog gauge.
func UpdateQueueSize(n int) { globalManager.queueSize.Set(float64(n)) }

// RecordQueueEnqueue counts an accepted submission.
func RecordQueueEnqueue() { globalManager.queueEnqueued.Inc() }

// RecordQueueEnqueueError counts a rejected submission.
func RecordQueueEnqueueError() { globalManager.queueEnqueueErrors.Inc() }

// RecordQueueDequeue counts a submission handed to the worker.
func RecordQueueDequeue() { globalManager.queueDequeued.Inc() }

// RecordSubmission counts a processed submission by final status.
func RecordSubmission(status string) {
	globalManager.submissions.WithLabelValues(status).Inc()
}

// RecordHTTPRequest counts an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration observes an HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, durationMs float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(durationMs)
}

// GetRegistry returns the registry backing the global manager.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
