package repository

import (
	"context"
	"math"

	"gorm.io/gorm"

	"github.com/ecoledger/carbon-engine/internal/datastore/entities"
	"github.com/ecoledger/carbon-engine/internal/model"
)

// FactorRepository stores the reference corpus.
type FactorRepository interface {
	// Create appends factors and assigns their IDs in order.
	Create(ctx context.Context, factors []*model.EmissionFactor) error
	// All returns every factor in insertion (ID) order.
	All(ctx context.Context) ([]model.EmissionFactor, error)
	Count(ctx context.Context) (int64, error)
}

type factorRepository struct {
	db *gorm.DB
}

// NewFactorRepository creates a new FactorRepository.
func NewFactorRepository(db *gorm.DB) FactorRepository {
	return &factorRepository{db: db}
}

func (r *factorRepository) Create(ctx context.Context, factors []*model.EmissionFactor) error {
	if len(factors) == 0 {
		return nil
	}
	rows := make([]*entities.EmissionFactor, 0, len(factors))
	for _, f := range factors {
		if f == nil || f.Description == "" {
			return invalidInput("emission factor needs a description")
		}
		if math.IsNaN(f.Value) || math.IsInf(f.Value, 0) || f.Value < 0 {
			return invalidInput("emission factor value must be a finite non-negative number")
		}
		row, err := factorToEntity(f)
		if err != nil {
			return persistenceError("encode emission factor", err)
		}
		row.ID = 0
		rows = append(rows, row)
	}

	// one statement per row keeps ID order equal to slice order on every dialect
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, row := range rows {
			if err := tx.Create(row).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return persistenceError("create emission factors", err)
	}

	for i, row := range rows {
		factors[i].ID = row.ID
	}
	return nil
}

func (r *factorRepository) All(ctx context.Context) ([]model.EmissionFactor, error) {
	var rows []entities.EmissionFactor
	if err := r.db.WithContext(ctx).Order("id").Find(&rows).Error; err != nil {
		return nil, persistenceError("load emission factors", err)
	}
	out := make([]model.EmissionFactor, 0, len(rows))
	for i := range rows {
		f, err := factorFromEntity(&rows[i])
		if err != nil {
			return nil, persistenceError("decode emission factor embedding", err)
		}
		out = append(out, f)
	}
	return out, nil
}

func (r *factorRepository) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := r.db.WithContext(ctx).Model(&entities.EmissionFactor{}).Count(&n).Error; err != nil {
		return 0, persistenceError("count emission factors", err)
	}
	return n, nil
}
