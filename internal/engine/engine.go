// Package engine implements the accept-or-fallback policy that turns one
// activity entry into exactly one normalized CalculationResult.
//
// Every entry walks the same states: retrieval is tried first; an accepted
// candidate ends the walk, a rejection hands the entry to the generative
// calculator once. Nothing is retried inside a single call.
package engine

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ecoledger/carbon-engine/internal/embedding"
	"github.com/ecoledger/carbon-engine/internal/errors"
	"github.com/ecoledger/carbon-engine/internal/generative"
	"github.com/ecoledger/carbon-engine/internal/logger"
	"github.com/ecoledger/carbon-engine/internal/model"
	"github.com/ecoledger/carbon-engine/internal/observability/metrics"
	"github.com/ecoledger/carbon-engine/internal/retrieval"
	"github.com/ecoledger/carbon-engine/internal/units"
)

// totalTolerance is the relative difference between the model's own total and
// the recomputed one above which a warning is attached.
const totalTolerance = 0.01

// generativeSource is the attribution used when the model names no source.
const generativeSource = "generative estimate"

// Matcher ranks corpus candidates for a description.
type Matcher interface {
	Match(ctx context.Context, description string) ([]retrieval.Candidate, error)
}

// Engine applies the decision policy. It is safe for concurrent use.
type Engine struct {
	cfg        Config
	matcher    Matcher
	calculator generative.Calculator
	metrics    metrics.EngineRecorder
	log        logger.Logger
	now        func() time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithMetrics records engine metrics on rec.
func WithMetrics(rec metrics.EngineRecorder) Option {
	return func(e *Engine) {
		if rec != nil {
			e.metrics = rec
		}
	}
}

// New creates an Engine. calculator may be nil, in which case every rejected
// entry fails.
func New(cfg Config, matcher Matcher, calculator generative.Calculator, log logger.Logger, opts ...Option) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if matcher == nil {
		return nil, errors.Newf("engine requires a retrieval matcher").
			Component("engine").
			Category(errors.CategoryConfiguration).
			Build()
	}

	e := &Engine{
		cfg:        cfg,
		matcher:    matcher,
		calculator: calculator,
		metrics:    metrics.NewNoOpRecorder(),
		log:        logger.Or(log, "engine"),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Config returns the policy the engine was built with.
func (e *Engine) Config() Config {
	return e.cfg
}

// CalculateSingle runs the full policy for one entry. It never returns an
// error: failures are reported as a FAILED result.
func (e *Engine) CalculateSingle(ctx context.Context, entry *model.ActivityEntry) *model.CalculationResult {
	start := e.now()

	if err := entry.Validate(); err != nil {
		res := model.Failed(entry, model.ErrorKindInvalidEntry, err.Error(), model.FallbackNone)
		return e.finish(res, start)
	}

	outcome := e.TryRetrieval(ctx, entry)
	if outcome.Accepted() {
		return outcome.Result
	}
	res := e.TryGenerative(ctx, entry, outcome.Rejection)
	res.Duration = e.now().Sub(start)
	return res
}

// TryRetrieval runs the retrieval pass. A non-accepted outcome carries the
// reason the generative pass must record.
func (e *Engine) TryRetrieval(ctx context.Context, entry *model.ActivityEntry) Outcome {
	start := e.now()

	candidates, err := e.matcher.Match(ctx, entry.Description)
	if err != nil {
		reason := model.FallbackRetrievalError
		if errors.Is(err, embedding.ErrEmbeddingUnavailable) {
			reason = model.FallbackEmbeddingUnavailable
		}
		return e.reject(entry, &Rejection{Reason: reason, Err: err})
	}
	if len(candidates) == 0 {
		return e.reject(entry, &Rejection{Reason: model.FallbackNoCandidates})
	}

	top := candidates[0]
	similarity := clamp01(top.Similarity)
	e.metrics.ObserveSimilarity(similarity)

	if similarity < e.cfg.SimilarityThreshold {
		return e.reject(entry, &Rejection{Reason: model.FallbackBelowThreshold, TopSimilarity: similarity})
	}

	total, err := units.Total(entry.Quantity, entry.Unit, top.Factor.Value, top.Factor.Unit)
	if err != nil {
		reason := model.FallbackUnitMismatch
		if errors.Is(err, units.ErrNonFinite) {
			e.log.Warn("corpus factor has a non-finite value",
				logger.Int64("factor_id", int64(top.Factor.ID)))
			reason = model.FallbackRetrievalError
		}
		return e.reject(entry, &Rejection{Reason: reason, Err: err, TopSimilarity: similarity})
	}

	factorUnit := top.Factor.Unit
	if fu, err := units.ParseFactorUnit(top.Factor.Unit); err == nil {
		factorUnit = fu.String()
	}

	res := &model.CalculationResult{
		EntryID:        entry.ID,
		TenantID:       entry.TenantID,
		TotalEmissions: total,
		EmissionsUnit:  model.EmissionsUnit,
		Method:         model.MethodRetrieval,
		Confidence:     similarity,
		Source:         top.Factor.Attribution(),
		FactorID:       top.Factor.ID,
		FactorValue:    decimal.NewFromFloat(top.Factor.Value),
		FactorUnit:     factorUnit,
		Scope:          entry.Scope,
		RequiresReview: similarity < e.cfg.ReviewConfidence,
		Alternates:     alternates(candidates[1:]),
	}

	e.metrics.RecordOperation(metrics.OpRetrieval, metrics.StatusAccepted)
	e.log.Debug("retrieval accepted",
		logger.String("entry_id", entry.ID),
		logger.Int64("factor_id", int64(top.Factor.ID)),
		logger.Float64("similarity", similarity),
		logger.String("total", total.String()))

	return Outcome{Result: e.finish(res, start)}
}

// TryGenerative runs the generative pass for an entry whose retrieval was
// rejected. The rejection reason is kept on the result either way.
func (e *Engine) TryGenerative(ctx context.Context, entry *model.ActivityEntry, rejection *Rejection) *model.CalculationResult {
	start := e.now()

	reason := model.FallbackNone
	if rejection != nil {
		reason = rejection.Reason
	}

	if e.calculator == nil {
		return e.finish(e.withoutFallback(entry, rejection), start)
	}

	callCtx, cancel := context.WithTimeout(ctx, e.cfg.GenerativeTimeout)
	defer cancel()

	est, err := e.calculator.Estimate(callCtx, generative.Request{
		Description: entry.Description,
		Quantity:    entry.Quantity,
		Unit:        entry.Unit,
		ScopeHint:   entry.Scope,
		Category:    entry.Category,
	})
	e.metrics.RecordDuration(metrics.OpGenerative, e.now().Sub(start).Seconds())
	if err != nil {
		if ctx.Err() == nil && errors.Is(callCtx.Err(), context.DeadlineExceeded) && !errors.Is(err, generative.ErrTimeout) {
			err = errors.Newf("%w after %s: %v", generative.ErrTimeout, e.cfg.GenerativeTimeout, err).
				Component("engine").
				Category(errors.CategoryTimeout).
				Build()
		}
		kind := generativeErrorKind(err)
		if kind == model.ErrorKindBothMethodsFailed {
			err = bothMethodsFailed(entry, reason, err)
		}
		e.metrics.RecordOperation(metrics.OpGenerative, metrics.StatusError)
		e.log.Warn("generative fallback failed",
			logger.String("entry_id", entry.ID),
			logger.String("fallback_reason", string(reason)),
			logger.String("error_kind", string(kind)),
			logger.Error(err))
		res := model.Failed(entry, kind, err.Error(), reason)
		if rejection != nil && rejection.Err != nil {
			res.Warnings = append(res.Warnings, "retrieval: "+rejection.Err.Error())
		}
		return e.finish(res, start)
	}
	e.metrics.RecordOperation(metrics.OpGenerative, metrics.StatusSuccess)

	res, err := e.fromEstimate(entry, est)
	if err != nil {
		e.log.Warn("generative estimate unusable",
			logger.String("entry_id", entry.ID),
			logger.Error(err))
		return e.finish(model.Failed(entry, model.ErrorKindMalformedResponse, err.Error(), reason), start)
	}
	res.FallbackReason = reason
	return e.finish(res, start)
}

// fromEstimate normalizes a schema-valid estimate. The total is recomputed
// from the model's factor whenever its activity unit is compatible with the
// entry; otherwise the model's own total is used and flagged.
func (e *Engine) fromEstimate(entry *model.ActivityEntry, est *generative.Estimate) (*model.CalculationResult, error) {
	if math.IsNaN(est.EmissionFactor) || math.IsInf(est.EmissionFactor, 0) {
		return nil, errors.Newf("%w: emission_factor is %v", generative.ErrMalformedResponse, est.EmissionFactor).
			Component("engine").
			Category(errors.CategoryMalformedResponse).
			Context("entry_id", entry.ID).
			Build()
	}

	var warnings []string
	warnings = append(warnings, est.Warnings...)

	modelTotal, modelTotalErr := units.MassToKg(est.TotalEmissions, est.EmissionsUnit)

	factorUnit := est.EmissionFactorUnit
	total, err := units.Total(entry.Quantity, entry.Unit, est.EmissionFactor, est.EmissionFactorUnit)
	switch {
	case err == nil:
		if fu, perr := units.ParseFactorUnit(est.EmissionFactorUnit); perr == nil {
			factorUnit = fu.String()
		}
		if modelTotalErr == nil && diverges(total, modelTotal) {
			warnings = append(warnings, fmt.Sprintf(
				"model total %s kg CO2e differs from quantity × factor %s kg CO2e; recomputed value used",
				modelTotal.String(), total.String()))
		}
	case modelTotalErr == nil:
		total = modelTotal
		warnings = append(warnings, fmt.Sprintf(
			"factor unit %q cannot be applied to %q; model total used", est.EmissionFactorUnit, entry.Unit))
	default:
		return nil, errors.Newf("%w: no usable total (%v; %v)", generative.ErrMalformedResponse, err, modelTotalErr).
			Component("engine").
			Category(errors.CategoryMalformedResponse).
			Context("entry_id", entry.ID).
			Build()
	}

	scope := est.Scope
	if entry.Scope != nil && *entry.Scope != scope {
		warnings = append(warnings, fmt.Sprintf("model assigned scope %d, entry hint was scope %d", scope, *entry.Scope))
	}

	source := est.Source
	if source == "" {
		source = generativeSource
	}

	confidence := clamp01(est.Confidence)
	return &model.CalculationResult{
		EntryID:        entry.ID,
		TenantID:       entry.TenantID,
		TotalEmissions: total,
		EmissionsUnit:  model.EmissionsUnit,
		Method:         model.MethodGenerative,
		Confidence:     confidence,
		Source:         source,
		FactorValue:    decimal.NewFromFloat(est.EmissionFactor),
		FactorUnit:     factorUnit,
		Scope:          scope.Ptr(),
		Warnings:       warnings,
		RequiresReview: confidence < e.cfg.ReviewConfidence || len(warnings) > 0,
	}, nil
}

func (e *Engine) withoutFallback(entry *model.ActivityEntry, rejection *Rejection) *model.CalculationResult {
	if rejection != nil && rejection.Reason == model.FallbackEmbeddingUnavailable && rejection.Err != nil {
		return model.Failed(entry, model.ErrorKindEmbeddingUnavailable, rejection.Err.Error(), rejection.Reason)
	}

	reason := model.FallbackNone
	cause := errors.NewStd("generative fallback is disabled")
	if rejection != nil {
		reason = rejection.Reason
		cause = fmt.Errorf("generative fallback is disabled; %w", rejection)
	}
	err := bothMethodsFailed(entry, reason, cause)
	return model.Failed(entry, model.ErrorKindBothMethodsFailed, err.Error(), reason)
}

// bothMethodsFailed tags a terminal failure that followed a retrieval rejection.
func bothMethodsFailed(entry *model.ActivityEntry, reason model.FallbackReason, err error) error {
	return errors.New(err).
		Component("engine").
		Category(errors.CategoryBothMethodsFailed).
		Context("entry_id", entry.ID).
		Context("fallback_reason", string(reason)).
		Build()
}

func (e *Engine) reject(entry *model.ActivityEntry, r *Rejection) Outcome {
	e.metrics.RecordOperation(metrics.OpRetrieval, metrics.StatusRejected)
	e.metrics.RecordFallback(string(r.Reason))
	e.log.Debug("retrieval rejected",
		logger.String("entry_id", entry.ID),
		logger.String("reason", string(r.Reason)),
		logger.Float64("top_similarity", r.TopSimilarity))
	return Outcome{Rejection: r}
}

// finish stamps the duration and records the terminal outcome.
func (e *Engine) finish(res *model.CalculationResult, start time.Time) *model.CalculationResult {
	res.Duration = e.now().Sub(start)
	e.metrics.RecordOperation(metrics.OpCalculate, res.Method.String())
	e.metrics.RecordDuration(metrics.OpCalculate, res.Duration.Seconds())
	if res.Error != nil {
		e.metrics.RecordError(metrics.OpCalculate, string(res.Error.Kind))
	}
	return res
}

func generativeErrorKind(err error) model.ErrorKind {
	switch {
	case errors.Is(err, generative.ErrTimeout):
		return model.ErrorKindTimeout
	case errors.Is(err, generative.ErrMalformedResponse):
		return model.ErrorKindMalformedResponse
	}
	return model.ErrorKindBothMethodsFailed
}

func alternates(candidates []retrieval.Candidate) []model.Alternate {
	if len(candidates) == 0 {
		return nil
	}
	out := make([]model.Alternate, len(candidates))
	for i := range candidates {
		out[i] = model.Alternate{
			FactorID:    candidates[i].Factor.ID,
			Description: candidates[i].Factor.Description,
			Source:      candidates[i].Factor.Attribution(),
			Similarity:  clamp01(candidates[i].Similarity),
		}
	}
	return out
}

func diverges(recomputed, reported decimal.Decimal) bool {
	if recomputed.IsZero() {
		return !reported.IsZero()
	}
	diff := recomputed.Sub(reported).Abs().Div(recomputed.Abs())
	return diff.GreaterThan(decimal.NewFromFloat(totalTolerance))
}

func clamp01(v float64) float64 {
	switch {
	case math.IsNaN(v), v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}
