// Package service wires the engine, the batch orchestrator, the job queue and
// their stores into one façade shared by the CLI and the HTTP API.
package service

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/ecoledger/carbon-engine/internal/batch"
	"github.com/ecoledger/carbon-engine/internal/buildinfo"
	"github.com/ecoledger/carbon-engine/internal/conf"
	"github.com/ecoledger/carbon-engine/internal/corpus"
	"github.com/ecoledger/carbon-engine/internal/datastore"
	"github.com/ecoledger/carbon-engine/internal/datastore/repository"
	"github.com/ecoledger/carbon-engine/internal/embedding"
	"github.com/ecoledger/carbon-engine/internal/engine"
	"github.com/ecoledger/carbon-engine/internal/errors"
	"github.com/ecoledger/carbon-engine/internal/generative"
	"github.com/ecoledger/carbon-engine/internal/jobs"
	"github.com/ecoledger/carbon-engine/internal/logger"
	"github.com/ecoledger/carbon-engine/internal/model"
	"github.com/ecoledger/carbon-engine/internal/observability"
	"github.com/ecoledger/carbon-engine/internal/retrieval"
)

const (
	defaultStopTimeout = 10 * time.Second
	sentryFlushTimeout = 2 * time.Second
)

// Service is the application façade. Create it with New and release it with Close.
type Service struct {
	settings *conf.Settings
	build    *buildinfo.Context
	base     logger.Logger
	log      logger.Logger

	db         *gorm.DB
	ownsDB     bool
	results    repository.CalculationRepository
	activities repository.ActivityRepository
	corpus     *corpus.Store

	embedder   embedding.Generator
	calculator generative.Calculator
	closers    []func()

	engine  *engine.Engine
	batch   *batch.Orchestrator
	queue   *jobs.Queue
	metrics *observability.Metrics

	reporter *errors.SentryReporter
}

// Option configures a Service.
type Option func(*Service)

// WithDB uses an open database instead of opening one from settings.
// The caller keeps ownership of db.
func WithDB(db *gorm.DB) Option {
	return func(s *Service) { s.db = db }
}

// WithEmbedder replaces the HTTP embedding client.
func WithEmbedder(g embedding.Generator) Option {
	return func(s *Service) { s.embedder = g }
}

// WithCalculator replaces the HTTP generative client.
func WithCalculator(c generative.Calculator) Option {
	return func(s *Service) { s.calculator = c }
}

// WithMetrics shares an existing metrics registry.
func WithMetrics(m *observability.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithBuildInfo sets the version reported to telemetry and health checks.
func WithBuildInfo(b *buildinfo.Context) Option {
	return func(s *Service) { s.build = b }
}

// New builds the service from settings. The job queue is not started; call Start.
func New(settings *conf.Settings, log logger.Logger, opts ...Option) (svc *Service, err error) {
	if settings == nil {
		return nil, errors.Newf("settings are required").
			Component("service").
			Category(errors.CategoryConfiguration).
			Build()
	}

	s := &Service{settings: settings, base: log, log: logger.Or(log, "service")}
	for _, opt := range opts {
		opt(s)
	}
	if s.build == nil {
		s.build = buildinfo.NewContext("", "")
	}
	// Release whatever was opened if a later step fails.
	defer func() {
		if err != nil {
			s.release()
		}
	}()

	if err := s.initTelemetry(); err != nil {
		return nil, err
	}
	if s.metrics == nil {
		if s.metrics, err = observability.NewMetrics(); err != nil {
			return nil, errors.New(err).Component("service").Category(errors.CategoryConfiguration).Build()
		}
	}
	if err := s.initStores(); err != nil {
		return nil, err
	}
	if err := s.initProviders(); err != nil {
		return nil, err
	}

	matcher := retrieval.NewMatcher(s.embedder, s.corpus, settings.Engine.TopK, s.logFor("retrieval"))
	s.engine, err = engine.New(settings.EngineConfig(), matcher, s.calculator, s.logFor("engine"),
		engine.WithMetrics(s.metrics.Engine))
	if err != nil {
		return nil, err
	}

	s.batch = batch.NewOrchestrator(settings.BatchConfig(), s.engine, s.results, s.logFor("batch"),
		batch.WithActivityRepository(s.activities),
		batch.WithMetrics(s.metrics.Engine))
	s.queue = jobs.NewQueue(s.batch, settings.JobOptions(), s.logFor("jobs"), jobs.WithMetrics(s.metrics.Engine))

	s.log.Info("service ready",
		logger.String("version", s.build.GetVersion()),
		logger.String("database", settings.Database.Type),
		logger.Bool("generative_enabled", s.calculator != nil),
		logger.Float64("similarity_threshold", settings.Engine.SimilarityThreshold))
	return s, nil
}

// logFor scopes the caller's logger to a module. A nil base leaves each
// component on its global module logger.
func (s *Service) logFor(module string) logger.Logger {
	if s.base == nil {
		return nil
	}
	return s.base.Module(module)
}

func (s *Service) initTelemetry() error {
	t := s.settings.Telemetry
	if !t.Enabled {
		return nil
	}
	reporter, err := errors.InitSentry(t.SentryDSN, t.Environment, s.build.Release())
	if err != nil {
		return err
	}
	errors.SetTelemetryReporter(reporter)
	s.reporter = reporter
	return nil
}

func (s *Service) initStores() error {
	if s.db == nil {
		db, err := datastore.Open(s.settings.DatabaseConfig(), s.logFor("datastore"))
		if err != nil {
			return err
		}
		s.db = db
		s.ownsDB = true
	}
	s.results = repository.NewCalculationRepository(s.db)
	s.activities = repository.NewActivityRepository(s.db)
	s.corpus = corpus.NewStore(repository.NewFactorRepository(s.db), s.logFor("corpus"))
	return nil
}

func (s *Service) initProviders() error {
	if s.embedder == nil {
		client, err := embedding.NewClient(s.settings.EmbeddingConfig(), s.logFor("embedding"),
			embedding.WithCacheObserver(s.metrics.Engine))
		if err != nil {
			return err
		}
		s.embedder = client
		s.closers = append(s.closers, client.Close)
	}

	if s.calculator == nil && s.settings.Generative.Enabled {
		client, err := generative.NewClient(s.settings.GenerativeConfig(), s.logFor("generative"))
		if err != nil {
			return err
		}
		s.calculator = client
		s.closers = append(s.closers, client.Close)
	}
	return nil
}

// Start launches the background job worker.
func (s *Service) Start(ctx context.Context) {
	s.queue.Start(ctx)
}

// Close stops the job worker and releases providers and the database.
func (s *Service) Close() error {
	var errs []error
	if s.queue != nil {
		if err := s.queue.Stop(defaultStopTimeout); err != nil {
			errs = append(errs, err)
		}
	}
	if err := s.release(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (s *Service) release() error {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
	s.closers = nil

	var err error
	if s.ownsDB && s.db != nil {
		err = datastore.Close(s.db)
		s.db = nil
	}
	if s.reporter != nil {
		s.reporter.Flush(sentryFlushTimeout)
	}
	return err
}

// Settings returns the settings the service was built from.
func (s *Service) Settings() *conf.Settings { return s.settings }

// BuildInfo returns the build metadata.
func (s *Service) BuildInfo() *buildinfo.Context { return s.build }

// Metrics returns the metrics registry.
func (s *Service) Metrics() *observability.Metrics { return s.metrics }

// MaxBatchEntries is the interactive batch cap.
func (s *Service) MaxBatchEntries() int { return s.batch.MaxEntries() }

// CalculateSingle estimates one entry without persisting it. It never fails;
// errors are carried on the FAILED result.
func (s *Service) CalculateSingle(ctx context.Context, entry *model.ActivityEntry) *model.CalculationResult {
	return s.engine.CalculateSingle(ctx, entry)
}

// CalculateBatch processes up to MaxBatchEntries entries and persists their
// results. Larger inputs return batch.ErrBatchTooLarge and belong in SubmitJob.
func (s *Service) CalculateBatch(ctx context.Context, entries []model.ActivityEntry, onProgress batch.ProgressFunc) (*model.BatchSummary, error) {
	return s.batch.Run(ctx, entries, onProgress)
}

// SubmitJob queues entries for asynchronous processing.
func (s *Service) SubmitJob(tenantID string, entries []model.ActivityEntry) (jobs.Job, error) {
	return s.queue.Submit(tenantID, entries)
}

// Job returns the current state of a job.
func (s *Service) Job(id string) (jobs.Job, error) {
	return s.queue.Get(id)
}

// Jobs lists known jobs, oldest first.
func (s *Service) Jobs() []jobs.Job {
	return s.queue.List()
}

// JobStats returns queue statistics.
func (s *Service) JobStats() jobs.Stats {
	return s.queue.Stats()
}

// Results lists stored calculation results, newest first.
func (s *Service) Results(ctx context.Context, filter repository.ResultFilter) ([]model.CalculationResult, error) {
	if filter.TenantID == "" {
		return nil, errors.ValidationError("tenant is required")
	}
	return s.results.ListByCompany(ctx, filter)
}

// TotalEmissions sums the successful results of a tenant in kg CO2e.
func (s *Service) TotalEmissions(ctx context.Context, tenantID string) (decimal.Decimal, error) {
	if tenantID == "" {
		return decimal.Zero, errors.ValidationError("tenant is required")
	}
	return s.results.SumByCompany(ctx, tenantID)
}

// ImportCorpus adds the factors of a seed file to the reference corpus.
func (s *Service) ImportCorpus(ctx context.Context, path string) (int, error) {
	return s.corpus.Import(ctx, path, s.embedder)
}

// CorpusSize returns the number of reference factors.
func (s *Service) CorpusSize(ctx context.Context) (int64, error) {
	return s.corpus.Count(ctx)
}
