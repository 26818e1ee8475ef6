package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// EngineMetrics contains the Prometheus metrics of the calculation engine,
// the batch orchestrator, the job queue and the embedding cache.
type EngineMetrics struct {
	Operations        *prometheus.CounterVec
	OperationDuration *prometheus.HistogramVec
	Errors            *prometheus.CounterVec
	Fallbacks         *prometheus.CounterVec
	Similarity        prometheus.Histogram
	EmbeddingCache    *prometheus.CounterVec
	registry          *prometheus.Registry
}

// NewEngineMetrics creates and registers the engine metrics.
func NewEngineMetrics(registry *prometheus.Registry) (*EngineMetrics, error) {
	m := &EngineMetrics{registry: registry}
	m.initMetrics()
	if err := registry.Register(m); err != nil {
		return nil, fmt.Errorf("failed to register engine metrics: %w", err)
	}
	return m, nil
}

func (m *EngineMetrics) initMetrics() {
	m.Operations = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "carbon_engine_operations_total",
		Help: "Total number of engine operations by operation and status.",
	}, []string{"operation", "status"})

	m.OperationDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "carbon_engine_operation_duration_seconds",
		Help:    "Duration of engine operations in seconds.",
		Buckets: prometheus.ExponentialBuckets(BucketStart10ms, BucketFactor2, BucketCount14),
	}, []string{"operation"})

	m.Errors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "carbon_engine_errors_total",
		Help: "Total number of failed operations by operation and error kind.",
	}, []string{"operation", "error_kind"})

	m.Fallbacks = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "carbon_engine_fallbacks_total",
		Help: "Total number of retrieval rejections that fell back to the generative path.",
	}, []string{"reason"})

	m.Similarity = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "carbon_engine_retrieval_similarity",
		Help:    "Best cosine similarity observed per retrieval attempt.",
		Buckets: prometheus.LinearBuckets(SimilarityBucketStart, SimilarityBucketWidth, SimilarityBucketCount),
	})

	m.EmbeddingCache = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "carbon_engine_embedding_cache_total",
		Help: "Embedding cache lookups by result.",
	}, []string{"result"})
}

// RecordOperation implements Recorder.
func (m *EngineMetrics) RecordOperation(operation, status string) {
	m.Operations.WithLabelValues(operation, status).Inc()
}

// RecordDuration implements Recorder.
func (m *EngineMetrics) RecordDuration(operation string, seconds float64) {
	m.OperationDuration.WithLabelValues(operation).Observe(seconds)
}

// RecordError implements Recorder.
func (m *EngineMetrics) RecordError(operation, errorKind string) {
	m.Errors.WithLabelValues(operation, errorKind).Inc()
}

// RecordFallback implements EngineRecorder.
func (m *EngineMetrics) RecordFallback(reason string) {
	m.Fallbacks.WithLabelValues(reason).Inc()
}

// ObserveSimilarity implements EngineRecorder.
func (m *EngineMetrics) ObserveSimilarity(score float64) {
	m.Similarity.Observe(score)
}

// RecordEmbeddingCache counts an embedding cache lookup.
func (m *EngineMetrics) RecordEmbeddingCache(hit bool) {
	result := StatusMiss
	if hit {
		result = StatusHit
	}
	m.EmbeddingCache.WithLabelValues(result).Inc()
}

// Collect implements the prometheus.Collector interface.
func (m *EngineMetrics) Collect(ch chan<- prometheus.Metric) {
	m.Operations.Collect(ch)
	m.OperationDuration.Collect(ch)
	m.Errors.Collect(ch)
	m.Fallbacks.Collect(ch)
	ch <- m.Similarity
	m.EmbeddingCache.Collect(ch)
}

// Describe implements the prometheus.Collector interface.
func (m *EngineMetrics) Describe(ch chan<- *prometheus.Desc) {
	m.Operations.Describe(ch)
	m.OperationDuration.Describe(ch)
	m.Errors.Describe(ch)
	m.Fallbacks.Describe(ch)
	ch <- m.Similarity.Desc()
	m.EmbeddingCache.Describe(ch)
}
