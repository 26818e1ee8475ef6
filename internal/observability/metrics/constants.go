package metrics

// Operation label values.
const (
	// OpCalculate is one end-to-end entry calculation; status is the method.
	OpCalculate = "calculate"
	// OpRetrieval is a retrieval attempt; status is accepted or rejected.
	OpRetrieval = "retrieval"
	// OpGenerative is a generative model call.
	OpGenerative = "generative"
	// OpBatchEntry is one entry processed by a batch; status is its outcome.
	OpBatchEntry = "batch_entry"
	// OpJob is an asynchronous batch job transition; status is the new state.
	OpJob = "job"
	// OpPersist is a result write.
	OpPersist = "persist"
)

// Status label values.
const (
	StatusSuccess  = "success"
	StatusError    = "error"
	StatusAccepted = "accepted"
	StatusRejected = "rejected"
	StatusHit      = "hit"
	StatusMiss     = "miss"
)

// Histogram bucket configuration.
const (
	// BucketStart10ms starts duration histograms at 10ms (10ms to ~80s).
	BucketStart10ms = 0.01
	BucketFactor2   = 2
	BucketCount14   = 14

	// Similarity buckets cover [0, 1] in steps of 0.05.
	SimilarityBucketStart = 0.0
	SimilarityBucketWidth = 0.05
	SimilarityBucketCount = 21
)
