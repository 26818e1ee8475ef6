package metrics

import "sync"

// TestRecorder captures recorded metrics in memory for verification in tests.
type TestRecorder struct {
	mu           sync.RWMutex
	operations   map[string]map[string]int // operation -> status -> count
	durations    map[string][]float64
	errors       map[string]map[string]int // operation -> error kind -> count
	fallbacks    map[string]int
	similarities []float64
}

// NewTestRecorder creates an empty TestRecorder.
func NewTestRecorder() *TestRecorder {
	r := &TestRecorder{}
	r.Reset()
	return r
}

// RecordOperation implements Recorder.
func (r *TestRecorder) RecordOperation(operation, status string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.operations[operation] == nil {
		r.operations[operation] = make(map[string]int)
	}
	r.operations[operation][status]++
}

// RecordDuration implements Recorder.
func (r *TestRecorder) RecordDuration(operation string, seconds float64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.durations[operation] = append(r.durations[operation], seconds)
}

// RecordError implements Recorder.
func (r *TestRecorder) RecordError(operation, errorKind string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.errors[operation] == nil {
		r.errors[operation] = make(map[string]int)
	}
	r.errors[operation][errorKind]++
}

// RecordFallback implements EngineRecorder.
func (r *TestRecorder) RecordFallback(reason string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.fallbacks[reason]++
}

// ObserveSimilarity implements EngineRecorder.
func (r *TestRecorder) ObserveSimilarity(score float64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.similarities = append(r.similarities, score)
}

// OperationCount returns the count of an operation with the given status.
func (r *TestRecorder) OperationCount(operation, status string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.operations[operation][status]
}

// Durations returns a copy of the durations recorded for an operation.
func (r *TestRecorder) Durations(operation string) []float64 {
	r.mu.RLock()
	defer r.mu.RUnlock()

	d, ok := r.durations[operation]
	if !ok {
		return nil
	}
	out := make([]float64, len(d))
	copy(out, d)
	return out
}

// ErrorCount returns the count of an error kind for an operation.
func (r *TestRecorder) ErrorCount(operation, errorKind string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.errors[operation][errorKind]
}

// FallbackCount returns how many fallbacks were recorded for a reason.
func (r *TestRecorder) FallbackCount(reason string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.fallbacks[reason]
}

// Similarities returns a copy of the observed similarity scores.
func (r *TestRecorder) Similarities() []float64 {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]float64, len(r.similarities))
	copy(out, r.similarities)
	return out
}

// HasRecordedMetrics reports whether anything was recorded.
func (r *TestRecorder) HasRecordedMetrics() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.operations) > 0 || len(r.durations) > 0 || len(r.errors) > 0 ||
		len(r.fallbacks) > 0 || len(r.similarities) > 0
}

// Reset clears all recorded metrics.
func (r *TestRecorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.operations = make(map[string]map[string]int)
	r.durations = make(map[string][]float64)
	r.errors = make(map[string]map[string]int)
	r.fallbacks = make(map[string]int)
	r.similarities = nil
}

// NoOpRecorder discards everything. It is used when metrics are disabled.
type NoOpRecorder struct{}

// NewNoOpRecorder creates a NoOpRecorder.
func NewNoOpRecorder() *NoOpRecorder { return &NoOpRecorder{} }

func (*NoOpRecorder) RecordOperation(string, string) {}
func (*NoOpRecorder) RecordDuration(string, float64) {}
func (*NoOpRecorder) RecordError(string, string) {}
func (*NoOpRecorder) RecordFallback(string) {}
func (*NoOpRecorder) ObserveSimilarity(float64) {}
func (*NoOpRecorder) RecordEmbeddingCache(bool) {}
