package conf

import (
	"time"

	"github.com/ecoledger/carbon-engine/internal/batch"
	"github.com/ecoledger/carbon-engine/internal/datastore"
	"github.com/ecoledger/carbon-engine/internal/embedding"
	"github.com/ecoledger/carbon-engine/internal/engine"
	"github.com/ecoledger/carbon-engine/internal/generative"
	"github.com/ecoledger/carbon-engine/internal/jobs"
)

// EngineConfig returns the decision policy.
func (s *Settings) EngineConfig() engine.Config {
	e := s.Engine
	return engine.Config{
		SimilarityThreshold:   e.SimilarityThreshold,
		RetrievalConcurrency:  e.RetrievalConcurrency,
		GenerativeConcurrency: e.GenerativeConcurrency,
		GenerativeTimeout:     time.Duration(e.GenerativeTimeoutMs) * time.Millisecond,
		TopK:                  e.TopK,
		ReviewConfidence:      e.ReviewConfidence,
	}
}

// BatchConfig returns the interactive batch limits.
func (s *Settings) BatchConfig() batch.Config {
	return batch.Config{
		MaxEntries:            s.Engine.MaxInteractiveEntries,
		RetrievalConcurrency:  s.Engine.RetrievalConcurrency,
		GenerativeConcurrency: s.Engine.GenerativeConcurrency,
	}
}

// JobOptions returns the job queue limits.
func (s *Settings) JobOptions() jobs.Options {
	opts := jobs.DefaultOptions()
	opts.ChunkSize = s.Jobs.ChunkSize
	opts.MaxPending = s.Jobs.MaxPending
	opts.MaxArchived = s.Jobs.MaxArchived
	return opts
}

// DatabaseConfig returns the datastore connection settings.
func (s *Settings) DatabaseConfig() datastore.Config {
	d := s.Database
	return datastore.Config{
		Type:       d.Type,
		SQLitePath: d.SQLite.Path,
		MySQL: datastore.MySQLConfig{
			Host:     d.MySQL.Host,
			Port:     d.MySQL.Port,
			Username: d.MySQL.Username,
			Password: d.MySQL.Password,
			Database: d.MySQL.Database,
		},
		SlowQueryThreshold: d.SlowQueryThreshold,
		MaxOpenConns:       d.MaxOpenConns,
	}
}

// EmbeddingConfig returns the embedding client settings.
func (s *Settings) EmbeddingConfig() embedding.Config {
	e := s.Embedding
	return embedding.Config{
		Endpoint:          e.Endpoint,
		Model:             e.Model,
		APIKey:            e.APIKey,
		Dimensions:        e.Dimensions,
		Timeout:           e.Timeout,
		RequestsPerSecond: e.RequestsPerSecond,
		Burst:             e.Burst,
		CacheTTL:          e.CacheTTL,
	}
}

// GenerativeConfig returns the generative client settings. The client's own
// timeout tracks the engine's so a single call is never cut short twice.
func (s *Settings) GenerativeConfig() generative.Config {
	g := s.Generative
	return generative.Config{
		Endpoint:          g.Endpoint,
		Model:             g.Model,
		APIKey:            g.APIKey,
		Timeout:           time.Duration(s.Engine.GenerativeTimeoutMs) * time.Millisecond,
		RequestsPerSecond: g.RequestsPerSecond,
		Burst:             g.Burst,
	}
}
