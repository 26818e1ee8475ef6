// Package batch runs the decision engine over many activity entries with
// deduplication, bounded parallelism and partial-failure isolation.
package batch

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/ecoledger/carbon-engine/internal/datastore/repository"
	"github.com/ecoledger/carbon-engine/internal/engine"
	"github.com/ecoledger/carbon-engine/internal/errors"
	"github.com/ecoledger/carbon-engine/internal/logger"
	"github.com/ecoledger/carbon-engine/internal/model"
	"github.com/ecoledger/carbon-engine/internal/observability/metrics"
)

// DefaultMaxEntries caps one interactive batch.
const DefaultMaxEntries = 500

// Entry outcomes recorded in metrics.
const (
	OutcomeSucceeded         = "succeeded"
	OutcomeFailed            = "failed"
	OutcomeAlreadyCalculated = "already_calculated"
)

// ErrBatchTooLarge is returned when a batch exceeds MaxEntries. Such volumes
// belong in an asynchronous job.
var ErrBatchTooLarge = errors.NewStd("batch exceeds the interactive entry limit")

// ProgressFunc is called after each entry reaches a terminal outcome. Calls are
// serialized and completed increases by one each time.
type ProgressFunc func(completed, total int)

// Engine is the part of the decision engine the orchestrator drives pass by pass.
type Engine interface {
	TryRetrieval(ctx context.Context, entry *model.ActivityEntry) engine.Outcome
	TryGenerative(ctx context.Context, entry *model.ActivityEntry, rejection *engine.Rejection) *model.CalculationResult
}

// Config bounds a batch.
type Config struct {
	MaxEntries            int
	RetrievalConcurrency  int
	GenerativeConcurrency int
}

// Orchestrator processes batches. It is safe for concurrent use; each Run
// keeps its own state.
type Orchestrator struct {
	cfg        Config
	engine     Engine
	store      repository.CalculationRepository
	activities repository.ActivityRepository
	metrics    metrics.Recorder
	log        logger.Logger
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithActivityRepository enables status transitions on stored entries.
func WithActivityRepository(repo repository.ActivityRepository) Option {
	return func(o *Orchestrator) { o.activities = repo }
}

// WithMetrics records per-entry outcomes.
func WithMetrics(rec metrics.Recorder) Option {
	return func(o *Orchestrator) {
		if rec != nil {
			o.metrics = rec
		}
	}
}

// NewOrchestrator creates an Orchestrator. Zero limits fall back to defaults.
func NewOrchestrator(cfg Config, eng Engine, store repository.CalculationRepository, log logger.Logger, opts ...Option) *Orchestrator {
	if cfg.MaxEntries <= 0 {
		cfg.MaxEntries = DefaultMaxEntries
	}
	if cfg.RetrievalConcurrency <= 0 {
		cfg.RetrievalConcurrency = engine.DefaultRetrievalConcurrency
	}
	if cfg.GenerativeConcurrency <= 0 {
		cfg.GenerativeConcurrency = engine.DefaultGenerativeConcurrency
	}
	o := &Orchestrator{
		cfg:     cfg,
		engine:  eng,
		store:   store,
		metrics: metrics.NewNoOpRecorder(),
		log:     logger.Or(log, "batch"),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// MaxEntries returns the interactive cap.
func (o *Orchestrator) MaxEntries() int {
	return o.cfg.MaxEntries
}

// run is the state of one Run call.
type run struct {
	o          *Orchestrator
	summary    *model.BatchSummary
	mu         sync.Mutex
	completed  int
	onProgress ProgressFunc
}

type rejected struct {
	entry     *model.ActivityEntry
	rejection *engine.Rejection
}

// Run processes entries and returns the summary once every entry has settled.
// Individual failures never abort the batch; the only error is ErrBatchTooLarge.
func (o *Orchestrator) Run(ctx context.Context, entries []model.ActivityEntry, onProgress ProgressFunc) (*model.BatchSummary, error) {
	if len(entries) > o.cfg.MaxEntries {
		return nil, errors.Newf("%w: %d entries, limit %d", ErrBatchTooLarge, len(entries), o.cfg.MaxEntries).
			Component("batch").
			Category(errors.CategoryLimit).
			Context("entries", len(entries)).
			Context("max_entries", o.cfg.MaxEntries).
			Build()
	}

	r := &run{o: o, summary: model.NewBatchSummary(len(entries)), onProgress: onProgress}
	log := o.log.With(logger.Int("entries", len(entries)))
	log.Info("batch started")

	pending := r.admit(ctx, entries)

	// Pass 1: retrieval for every pending entry.
	var (
		rejMu    sync.Mutex
		fallback []rejected
	)
	g := new(errgroup.Group)
	g.SetLimit(o.cfg.RetrievalConcurrency)
	for _, entry := range pending {
		g.Go(func() error {
			outcome := o.engine.TryRetrieval(ctx, entry)
			if outcome.Accepted() {
				r.commit(ctx, entry, outcome.Result)
				return nil
			}
			rejMu.Lock()
			fallback = append(fallback, rejected{entry: entry, rejection: outcome.Rejection})
			rejMu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	// Pass 2: generative fallback for the rejected ones.
	g = new(errgroup.Group)
	g.SetLimit(o.cfg.GenerativeConcurrency)
	for _, rj := range fallback {
		g.Go(func() error {
			r.commit(ctx, rj.entry, o.engine.TryGenerative(ctx, rj.entry, rj.rejection))
			return nil
		})
	}
	_ = g.Wait()

	s := r.summary
	if !s.Consistent() {
		log.Error("batch summary counts are inconsistent",
			logger.Int("succeeded", s.Succeeded),
			logger.Int("failed", s.Failed),
			logger.Int("already_calculated", s.AlreadyCalculated))
	}
	log.Info("batch completed",
		logger.Int("succeeded", s.Succeeded),
		logger.Int("failed", s.Failed),
		logger.Int("already_calculated", s.AlreadyCalculated),
		logger.Int("fallbacks", len(fallback)),
		logger.String("total_emissions", s.TotalEmissions.String()))
	return s, nil
}

// entryKey identifies an entry; client IDs are only unique within a tenant.
type entryKey struct {
	tenantID string
	entryID  string
}

func keyOf(entry *model.ActivityEntry) entryKey {
	return entryKey{tenantID: entry.TenantID, entryID: entry.ID}
}

// admit validates entries, drops in-batch duplicates and skips entries the
// store already holds a result for. It returns the entries left to process.
func (r *run) admit(ctx context.Context, entries []model.ActivityEntry) []*model.ActivityEntry {
	seen := make(map[entryKey]struct{}, len(entries))
	candidates := make([]*model.ActivityEntry, 0, len(entries))
	byTenant := make(map[string][]string)
	var tenants []string

	for i := range entries {
		entry := &entries[i]
		if err := entry.Validate(); err != nil {
			r.settle(model.Failed(entry, model.ErrorKindInvalidEntry, err.Error(), model.FallbackNone))
			continue
		}
		key := keyOf(entry)
		if _, dup := seen[key]; dup {
			r.o.log.Debug("duplicate entry in batch",
				logger.String("tenant_id", entry.TenantID),
				logger.String("entry_id", entry.ID))
			r.settleAlreadyCalculated(entry.ID)
			continue
		}
		seen[key] = struct{}{}
		candidates = append(candidates, entry)
		if _, ok := byTenant[entry.TenantID]; !ok {
			tenants = append(tenants, entry.TenantID)
		}
		byTenant[entry.TenantID] = append(byTenant[entry.TenantID], entry.ID)
	}
	if len(candidates) == 0 {
		return nil
	}

	existing := make(map[entryKey]struct{})
	for _, tenantID := range tenants {
		found, err := r.o.store.ExistingEntryIDs(ctx, tenantID, byTenant[tenantID])
		if err != nil {
			// Without the dedup check nothing can be written safely.
			r.o.log.Error("deduplication lookup failed",
				logger.String("tenant_id", tenantID),
				logger.Error(err))
			for _, entry := range candidates {
				r.settle(model.Failed(entry, model.ErrorKindPersistence, err.Error(), model.FallbackNone))
			}
			return nil
		}
		for id := range found {
			existing[entryKey{tenantID: tenantID, entryID: id}] = struct{}{}
		}
	}

	pending := candidates[:0]
	for _, entry := range candidates {
		if _, ok := existing[keyOf(entry)]; ok {
			r.markStatus(ctx, entry, model.StatusMatched)
			r.settleAlreadyCalculated(entry.ID)
			continue
		}
		pending = append(pending, entry)
	}
	return pending
}

// commit re-checks the store, writes the result and transitions the entry.
func (r *run) commit(ctx context.Context, entry *model.ActivityEntry, res *model.CalculationResult) {
	store := r.o.store

	if res.Succeeded() {
		exists, err := store.Exists(ctx, entry.TenantID, entry.ID)
		switch {
		case err != nil:
			res = model.Failed(entry, model.ErrorKindPersistence, err.Error(), res.FallbackReason)
		case exists:
			r.markStatus(ctx, entry, model.StatusMatched)
			r.settleAlreadyCalculated(entry.ID)
			return
		}
	}

	_, err := store.Insert(ctx, res)
	switch {
	case errors.Is(err, repository.ErrDuplicateKey):
		r.markStatus(ctx, entry, model.StatusMatched)
		r.settleAlreadyCalculated(entry.ID)
		return
	case err != nil:
		r.o.metrics.RecordOperation(metrics.OpPersist, metrics.StatusError)
		r.o.log.Warn("result not persisted",
			logger.String("entry_id", entry.ID),
			logger.String("method", res.Method.String()),
			logger.Error(err))
		if res.Succeeded() {
			res = model.Failed(entry, model.ErrorKindPersistence, err.Error(), res.FallbackReason)
		}
	default:
		r.o.metrics.RecordOperation(metrics.OpPersist, metrics.StatusSuccess)
	}

	r.transition(ctx, entry, res)
	r.settle(res)
}

func (r *run) transition(ctx context.Context, entry *model.ActivityEntry, res *model.CalculationResult) {
	status := model.StatusFailed
	if res.Succeeded() {
		status = model.StatusMatched
	}
	r.markStatus(ctx, entry, status)
}

// markStatus records a terminal status on the stored entry, if there is one.
// An entry already holding a result is matched even when this run skipped it.
func (r *run) markStatus(ctx context.Context, entry *model.ActivityEntry, status model.EntryStatus) {
	if r.o.activities == nil {
		return
	}
	err := r.o.activities.UpdateStatus(ctx, entry.TenantID, entry.ID, status)
	switch {
	case err == nil:
	case errors.Is(err, repository.ErrActivityNotFound):
		r.o.log.Debug("entry not stored, status not tracked",
			logger.String("tenant_id", entry.TenantID),
			logger.String("entry_id", entry.ID))
	default:
		r.o.log.Warn("entry status not updated",
			logger.String("tenant_id", entry.TenantID),
			logger.String("entry_id", entry.ID),
			logger.String("status", string(status)),
			logger.Error(err))
	}
}

func (r *run) settle(res *model.CalculationResult) {
	outcome := OutcomeFailed
	if res.Succeeded() {
		outcome = OutcomeSucceeded
	}
	r.o.metrics.RecordOperation(metrics.OpBatchEntry, outcome)

	r.mu.Lock()
	defer r.mu.Unlock()
	r.summary.Record(res)
	r.progress()
}

func (r *run) settleAlreadyCalculated(entryID string) {
	r.o.metrics.RecordOperation(metrics.OpBatchEntry, OutcomeAlreadyCalculated)
	r.o.log.Debug("entry already calculated", logger.String("entry_id", entryID))

	r.mu.Lock()
	defer r.mu.Unlock()
	r.summary.RecordAlreadyCalculated()
	r.progress()
}

// progress must be called with r.mu held.
func (r *run) progress() {
	r.completed++
	if r.onProgress != nil {
		r.onProgress(r.completed, r.summary.Total)
	}
}

// FormatSummary renders a one-line summary for CLI output.
func FormatSummary(s *model.BatchSummary) string {
	return fmt.Sprintf("total=%d succeeded=%d failed=%d already_calculated=%d retrieval=%d generative=%d emissions=%s %s",
		s.Total, s.Succeeded, s.Failed, s.AlreadyCalculated,
		s.ByMethod[model.MethodRetrieval], s.ByMethod[model.MethodGenerative],
		s.TotalEmissions.String(), model.EmissionsUnit)
}
