package metrics

import (
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEngineMetricsRecord(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	m, err := NewEngineMetrics(reg)
	require.NoError(t, err)

	m.RecordOperation(OpCalculate, "retrieval")
	m.RecordOperation(OpCalculate, "retrieval")
	m.RecordOperation(OpCalculate, "generative")
	m.RecordError(OpGenerative, "TIMEOUT")
	m.RecordFallback("below_threshold")
	m.ObserveSimilarity(0.82)
	m.RecordDuration(OpCalculate, 0.25)
	m.RecordEmbeddingCache(true)
	m.RecordEmbeddingCache(false)
	m.RecordEmbeddingCache(false)

	assert.InDelta(t, 2.0, testutil.ToFloat64(m.Operations.WithLabelValues(OpCalculate, "retrieval")), 1e-9)
	assert.InDelta(t, 1.0, testutil.ToFloat64(m.Operations.WithLabelValues(OpCalculate, "generative")), 1e-9)
	assert.InDelta(t, 1.0, testutil.ToFloat64(m.Errors.WithLabelValues(OpGenerative, "TIMEOUT")), 1e-9)
	assert.InDelta(t, 1.0, testutil.ToFloat64(m.Fallbacks.WithLabelValues("below_threshold")), 1e-9)
	assert.InDelta(t, 1.0, testutil.ToFloat64(m.EmbeddingCache.WithLabelValues(StatusHit)), 1e-9)
	assert.InDelta(t, 2.0, testutil.ToFloat64(m.EmbeddingCache.WithLabelValues(StatusMiss)), 1e-9)

	n, err := testutil.GatherAndCount(reg, "carbon_engine_retrieval_similarity")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestSimilarityHistogramBuckets(t *testing.T) {
	t.Parallel()

	m, err := NewEngineMetrics(prometheus.NewRegistry())
	require.NoError(t, err)
	for _, score := range []float64{0.2, 0.74, 0.91, 0.99} {
		m.ObserveSimilarity(score)
	}

	var out dto.Metric
	require.NoError(t, m.Similarity.Write(&out))
	h := out.GetHistogram()
	require.NotNil(t, h)
	assert.Equal(t, uint64(4), h.GetSampleCount())
	assert.InDelta(t, 2.84, h.GetSampleSum(), 1e-9)

	// Cumulative bucket counts never decrease and end at the sample count.
	var prev uint64
	for _, b := range h.GetBucket() {
		assert.GreaterOrEqual(t, b.GetCumulativeCount(), prev)
		prev = b.GetCumulativeCount()
	}
	assert.LessOrEqual(t, prev, h.GetSampleCount())
}

func TestEngineMetricsDoubleRegistration(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	_, err := NewEngineMetrics(reg)
	require.NoError(t, err)
	_, err = NewEngineMetrics(reg)
	assert.Error(t, err)
}

func TestTestRecorderConcurrent(t *testing.T) {
	t.Parallel()

	r := NewTestRecorder()
	var wg sync.WaitGroup
	for range 20 {
		wg.Go(func() {
			r.RecordOperation(OpBatchEntry, StatusSuccess)
			r.RecordFallback("no_candidates")
			r.ObserveSimilarity(0.5)
		})
	}
	wg.Wait()

	assert.Equal(t, 20, r.OperationCount(OpBatchEntry, StatusSuccess))
	assert.Equal(t, 20, r.FallbackCount("no_candidates"))
	assert.Len(t, r.Similarities(), 20)
	assert.True(t, r.HasRecordedMetrics())

	r.Reset()
	assert.False(t, r.HasRecordedMetrics())
	assert.Nil(t, r.Durations(OpCalculate))
}

func TestNoOpRecorderSatisfiesInterfaces(t *testing.T) {
	t.Parallel()

	var rec EngineRecorder = NewNoOpRecorder()
	rec.RecordOperation(OpRetrieval, StatusAccepted)
	rec.ObserveSimilarity(1)
}
