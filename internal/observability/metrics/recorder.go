// Package metrics provides Prometheus collectors for the calculation engine.
package metrics

// Recorder defines a minimal interface for recording metrics.
// Components depend on it instead of a concrete collector so tests can
// substitute TestRecorder.
type Recorder interface {
	// RecordOperation counts an operation with its status (e.g. "retrieval", "accepted").
	RecordOperation(operation, status string)

	// RecordDuration records the duration of an operation in seconds.
	RecordDuration(operation string, seconds float64)

	// RecordError counts a failure of an operation by error kind.
	RecordError(operation, errorKind string)
}

// EngineRecorder adds the retrieval specific observations to Recorder.
type EngineRecorder interface {
	Recorder

	// RecordFallback counts a switch to the generative path by reason.
	RecordFallback(reason string)

	// ObserveSimilarity records the best retrieval similarity of an attempt.
	ObserveSimilarity(score float64)
}
