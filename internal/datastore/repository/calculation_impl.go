package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/ecoledger/carbon-engine/internal/datastore/entities"
	"github.com/ecoledger/carbon-engine/internal/model"
)

// existsChunkSize bounds the IN list of ExistingEntryIDs.
const existsChunkSize = 500

const defaultListLimit = 1000

// calculationRepository implements CalculationRepository.
type calculationRepository struct {
	db *gorm.DB
}

// NewCalculationRepository creates a new CalculationRepository.
func NewCalculationRepository(db *gorm.DB) CalculationRepository {
	return &calculationRepository{db: db}
}

func (r *calculationRepository) Exists(ctx context.Context, tenantID, entryID string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&entities.Calculation{}).
		Where("tenant_id = ? AND settled_entry_id = ?", tenantID, entryID).
		Count(&count).Error
	if err != nil {
		return false, persistenceError("check calculation exists", err)
	}
	return count > 0, nil
}

func (r *calculationRepository) ExistingEntryIDs(ctx context.Context, tenantID string, entryIDs []string) (map[string]struct{}, error) {
	found := make(map[string]struct{})
	for start := 0; start < len(entryIDs); start += existsChunkSize {
		end := min(start+existsChunkSize, len(entryIDs))

		var ids []string
		err := r.db.WithContext(ctx).Model(&entities.Calculation{}).
			Where("tenant_id = ? AND settled_entry_id IN ?", tenantID, entryIDs[start:end]).
			Pluck("settled_entry_id", &ids).Error
		if err != nil {
			return nil, persistenceError("list existing calculations", err)
		}
		for _, id := range ids {
			found[id] = struct{}{}
		}
	}
	return found, nil
}

func (r *calculationRepository) Insert(ctx context.Context, result *model.CalculationResult) (string, error) {
	if result == nil || result.EntryID == "" || result.TenantID == "" {
		return "", invalidInput("calculation result needs an entry id and a tenant")
	}
	if err := result.Validate(); err != nil {
		return "", invalidInput(err.Error())
	}

	if result.ID == "" {
		result.ID = uuid.NewString()
	}
	if result.CreatedAt.IsZero() {
		result.CreatedAt = time.Now().UTC()
	}

	row, err := calculationToEntity(result)
	if err != nil {
		return "", persistenceError("encode calculation", err)
	}

	tx := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "tenant_id"}, {Name: "settled_entry_id"}},
			DoNothing: true,
		}).
		Create(row)
	if tx.Error != nil {
		return "", persistenceError("insert calculation", tx.Error)
	}
	if tx.RowsAffected == 0 {
		return "", ErrDuplicateKey
	}
	return row.ID, nil
}

func (r *calculationRepository) ListByCompany(ctx context.Context, filter ResultFilter) ([]model.CalculationResult, error) {
	if filter.TenantID == "" {
		return nil, invalidInput("tenant id is required")
	}

	q := r.db.WithContext(ctx).Model(&entities.Calculation{}).Where("tenant_id = ?", filter.TenantID)
	if filter.EntryID != "" {
		q = q.Where("entry_id = ?", filter.EntryID)
	}
	if filter.Method != "" {
		q = q.Where("method = ?", string(filter.Method))
	}
	if !filter.Since.IsZero() {
		q = q.Where("created_at >= ?", filter.Since)
	}
	if !filter.Until.IsZero() {
		q = q.Where("created_at < ?", filter.Until)
	}
	if filter.SucceededOnly {
		q = q.Where("settled_entry_id IS NOT NULL")
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}

	var rows []entities.Calculation
	err := q.Order("created_at DESC").Order("id").
		Limit(limit).Offset(filter.Offset).
		Find(&rows).Error
	if err != nil {
		return nil, persistenceError("list calculations", err)
	}

	results := make([]model.CalculationResult, 0, len(rows))
	for i := range rows {
		results = append(results, calculationFromEntity(&rows[i]))
	}
	return results, nil
}

func (r *calculationRepository) SumByCompany(ctx context.Context, tenantID string) (decimal.Decimal, error) {
	var sum decimal.NullDecimal
	err := r.db.WithContext(ctx).Model(&entities.Calculation{}).
		Select("SUM(total_emissions)").
		Where("tenant_id = ? AND settled_entry_id IS NOT NULL", tenantID).
		Row().Scan(&sum)
	if err != nil {
		return decimal.Zero, persistenceError("sum calculations", err)
	}
	if !sum.Valid {
		return decimal.Zero, nil
	}
	return sum.Decimal, nil
}
