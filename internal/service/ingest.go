package service

import (
	"context"
	"strings"

	"github.com/ecoledger/carbon-engine/internal/errors"
	"github.com/ecoledger/carbon-engine/internal/jobs"
	"github.com/ecoledger/carbon-engine/internal/logger"
	"github.com/ecoledger/carbon-engine/internal/model"
)

// DefaultPendingLimit bounds ProcessPending when no limit is given.
const DefaultPendingLimit = 5000

// Ingest stores entries as unprocessed. Nothing is stored unless every entry
// is valid.
func (s *Service) Ingest(ctx context.Context, entries []model.ActivityEntry) (int, error) {
	var problems []string
	rows := make([]*model.ActivityEntry, 0, len(entries))
	for i := range entries {
		entry := &entries[i]
		if err := entry.Validate(); err != nil {
			problems = append(problems, err.Error())
			continue
		}
		entry.Status = model.StatusUnprocessed
		rows = append(rows, entry)
	}
	if len(problems) > 0 {
		return 0, errors.Newf("%d invalid entries: %s", len(problems), strings.Join(problems, "; ")).
			Component("service").
			Category(errors.CategoryValidation).
			Context("invalid", len(problems)).
			Build()
	}

	if err := s.activities.Save(ctx, rows...); err != nil {
		return 0, err
	}
	s.log.Info("entries ingested", logger.Int("count", len(rows)))
	return len(rows), nil
}

// ProcessPending submits a job for the unprocessed entries of a tenant,
// oldest first. limit <= 0 uses DefaultPendingLimit.
func (s *Service) ProcessPending(ctx context.Context, tenantID string, limit int) (jobs.Job, error) {
	if tenantID == "" {
		return jobs.Job{}, errors.ValidationError("tenant is required")
	}
	if limit <= 0 {
		limit = DefaultPendingLimit
	}
	entries, err := s.activities.ListUnprocessed(ctx, tenantID, limit)
	if err != nil {
		return jobs.Job{}, err
	}
	if len(entries) == 0 {
		return jobs.Job{}, errors.Newf("%w: tenant %s has no unprocessed entries", jobs.ErrEmptyJob, tenantID).
			Component("service").
			Category(errors.CategoryNotFound).
			Build()
	}
	return s.queue.Submit(tenantID, entries)
}
