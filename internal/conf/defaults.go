package conf

import (
	"time"

	"github.com/spf13/viper"

	"github.com/ecoledger/carbon-engine/internal/batch"
	"github.com/ecoledger/carbon-engine/internal/engine"
	"github.com/ecoledger/carbon-engine/internal/jobs"
)

// setDefaultConfig sets default values for every setting.
func setDefaultConfig(v *viper.Viper) {
	v.SetDefault("debug", false)

	v.SetDefault("engine.similarity_threshold", engine.DefaultSimilarityThreshold)
	v.SetDefault("engine.retrieval_concurrency", engine.DefaultRetrievalConcurrency)
	v.SetDefault("engine.generative_concurrency", engine.DefaultGenerativeConcurrency)
	v.SetDefault("engine.generative_timeout_ms", int(engine.DefaultGenerativeTimeout/time.Millisecond))
	v.SetDefault("engine.top_k", engine.DefaultTopK)
	v.SetDefault("engine.max_interactive_entries", batch.DefaultMaxEntries)
	v.SetDefault("engine.review_confidence", engine.DefaultReviewConfidence)

	v.SetDefault("embedding.endpoint", "https://api.openai.com/v1")
	v.SetDefault("embedding.model", "text-embedding-3-small")
	v.SetDefault("embedding.api_key", "")
	v.SetDefault("embedding.api_key_file", "")
	v.SetDefault("embedding.dimensions", 0)
	v.SetDefault("embedding.timeout", 30*time.Second)
	v.SetDefault("embedding.requests_per_second", 20.0)
	v.SetDefault("embedding.burst", 10)
	v.SetDefault("embedding.cache_ttl", 24*time.Hour)

	v.SetDefault("generative.enabled", true)
	v.SetDefault("generative.endpoint", "https://api.openai.com/v1")
	v.SetDefault("generative.model", "gpt-4o-mini")
	v.SetDefault("generative.api_key", "")
	v.SetDefault("generative.api_key_file", "")
	v.SetDefault("generative.requests_per_second", 2.0)
	v.SetDefault("generative.burst", 3)

	v.SetDefault("database.type", "sqlite")
	v.SetDefault("database.sqlite.path", "data/carbon.db")
	v.SetDefault("database.mysql.host", "localhost")
	v.SetDefault("database.mysql.port", "3306")
	v.SetDefault("database.mysql.username", "")
	v.SetDefault("database.mysql.password", "")
	v.SetDefault("database.mysql.password_file", "")
	v.SetDefault("database.mysql.database", "carbon")
	v.SetDefault("database.slow_query_threshold", 200*time.Millisecond)
	v.SetDefault("database.max_open_conns", 0)

	v.SetDefault("jobs.max_pending", jobs.DefaultMaxPending)
	v.SetDefault("jobs.max_archived", jobs.DefaultMaxArchived)
	v.SetDefault("jobs.chunk_size", jobs.DefaultChunkSize)

	v.SetDefault("api.listen", "127.0.0.1:8080")
	v.SetDefault("api.shutdown_timeout", 10*time.Second)
	v.SetDefault("api.metrics", true)

	v.SetDefault("logging.default_level", "info")
	v.SetDefault("logging.timezone", "Local")
	v.SetDefault("logging.console.enabled", true)
	v.SetDefault("logging.console.level", "info")
	v.SetDefault("logging.file_output.enabled", false)
	v.SetDefault("logging.file_output.path", "logs/carbon-engine.log")
	v.SetDefault("logging.file_output.level", "debug")

	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("telemetry.sentry_dsn", "")
	v.SetDefault("telemetry.environment", "production")
}
