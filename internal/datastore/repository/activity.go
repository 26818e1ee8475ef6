package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/ecoledger/carbon-engine/internal/datastore/entities"
	"github.com/ecoledger/carbon-engine/internal/errors"
	"github.com/ecoledger/carbon-engine/internal/model"
)

// ActivityRepository stores ingested activity entries.
type ActivityRepository interface {
	// Save inserts or replaces entries by tenant and ID.
	Save(ctx context.Context, entries ...*model.ActivityEntry) error
	Get(ctx context.Context, tenantID, id string) (*model.ActivityEntry, error)
	// ListUnprocessed returns up to limit unprocessed entries of a tenant, oldest first.
	ListUnprocessed(ctx context.Context, tenantID string, limit int) ([]model.ActivityEntry, error)
	// UpdateStatus returns ErrActivityNotFound when the entry was never stored.
	UpdateStatus(ctx context.Context, tenantID, id string, status model.EntryStatus) error
}

const saveBatchSize = 200

type activityRepository struct {
	db *gorm.DB
}

// NewActivityRepository creates a new ActivityRepository.
func NewActivityRepository(db *gorm.DB) ActivityRepository {
	return &activityRepository{db: db}
}

func (r *activityRepository) Save(ctx context.Context, entries ...*model.ActivityEntry) error {
	if len(entries) == 0 {
		return nil
	}
	rows := make([]*entities.ActivityEntry, 0, len(entries))
	for _, e := range entries {
		if e == nil || e.ID == "" || e.TenantID == "" {
			return invalidInput("activity entry needs an id and a tenant")
		}
		rows = append(rows, activityToEntity(e))
	}

	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "tenant_id"}, {Name: "entry_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"description", "quantity", "unit", "scope",
				"category", "activity_date", "status", "updated_at",
			}),
		}).
		CreateInBatches(rows, saveBatchSize).Error
	if err != nil {
		return persistenceError("save activity entries", err)
	}
	return nil
}

func (r *activityRepository) Get(ctx context.Context, tenantID, id string) (*model.ActivityEntry, error) {
	var row entities.ActivityEntry
	err := r.db.WithContext(ctx).Where("tenant_id = ? AND entry_id = ?", tenantID, id).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrActivityNotFound
	}
	if err != nil {
		return nil, persistenceError("get activity entry", err)
	}
	entry := activityFromEntity(&row)
	return &entry, nil
}

func (r *activityRepository) ListUnprocessed(ctx context.Context, tenantID string, limit int) ([]model.ActivityEntry, error) {
	q := r.db.WithContext(ctx).
		Where("status = ?", string(model.StatusUnprocessed)).
		Order("created_at").Order("row_id")
	if tenantID != "" {
		q = q.Where("tenant_id = ?", tenantID)
	}
	if limit > 0 {
		q = q.Limit(limit)
	}

	var rows []entities.ActivityEntry
	if err := q.Find(&rows).Error; err != nil {
		return nil, persistenceError("list unprocessed entries", err)
	}
	out := make([]model.ActivityEntry, 0, len(rows))
	for i := range rows {
		out = append(out, activityFromEntity(&rows[i]))
	}
	return out, nil
}

func (r *activityRepository) UpdateStatus(ctx context.Context, tenantID, id string, status model.EntryStatus) error {
	tx := r.db.WithContext(ctx).Model(&entities.ActivityEntry{}).
		Where("tenant_id = ? AND entry_id = ?", tenantID, id).
		Update("status", string(status))
	if tx.Error != nil {
		return persistenceError("update entry status", tx.Error)
	}
	if tx.RowsAffected == 0 {
		return ErrActivityNotFound
	}
	return nil
}
