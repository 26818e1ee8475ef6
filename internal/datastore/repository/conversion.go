package repository

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"

	"github.com/ecoledger/carbon-engine/internal/datastore/entities"
	"github.com/ecoledger/carbon-engine/internal/model"
)

func scopeToInt(s *model.Scope) *int {
	if s == nil {
		return nil
	}
	v := int(*s)
	return &v
}

func intToScope(v *int) *model.Scope {
	if v == nil {
		return nil
	}
	s := model.Scope(*v)
	return &s
}

func marshalJSON(v any) (datatypes.JSON, error) {
	if v == nil {
		return nil, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(data), nil
}

func calculationToEntity(r *model.CalculationResult) (*entities.Calculation, error) {
	warnings, err := marshalJSON(r.Warnings)
	if err != nil {
		return nil, err
	}
	alternates, err := marshalJSON(r.Alternates)
	if err != nil {
		return nil, err
	}

	e := &entities.Calculation{
		ID:             r.ID,
		EntryID:        r.EntryID,
		TenantID:       r.TenantID,
		TotalEmissions: r.TotalEmissions,
		EmissionsUnit:  r.EmissionsUnit,
		Method:         string(r.Method),
		Confidence:     r.Confidence,
		Source:         r.Source,
		FactorValue:    r.FactorValue,
		FactorUnit:     r.FactorUnit,
		Scope:          scopeToInt(r.Scope),
		DurationMs:     r.Duration.Milliseconds(),
		FallbackReason: string(r.FallbackReason),
		Warnings:       warnings,
		RequiresReview: r.RequiresReview,
		Alternates:     alternates,
		CreatedAt:      r.CreatedAt,
	}
	if r.FactorID != 0 {
		id := r.FactorID
		e.FactorID = &id
	}
	if r.Error != nil {
		e.ErrorKind = string(r.Error.Kind)
		e.ErrorMessage = r.Error.Message
	}
	if r.Succeeded() {
		settled := r.EntryID
		e.SettledEntryID = &settled
	}
	return e, nil
}

func calculationFromEntity(e *entities.Calculation) model.CalculationResult {
	r := model.CalculationResult{
		ID:             e.ID,
		EntryID:        e.EntryID,
		TenantID:       e.TenantID,
		TotalEmissions: e.TotalEmissions,
		EmissionsUnit:  e.EmissionsUnit,
		Method:         model.Method(e.Method),
		Confidence:     e.Confidence,
		Source:         e.Source,
		FactorValue:    e.FactorValue,
		FactorUnit:     e.FactorUnit,
		Scope:          intToScope(e.Scope),
		Duration:       time.Duration(e.DurationMs) * time.Millisecond,
		FallbackReason: model.FallbackReason(e.FallbackReason),
		RequiresReview: e.RequiresReview,
		CreatedAt:      e.CreatedAt,
	}
	if e.FactorID != nil {
		r.FactorID = *e.FactorID
	}
	if e.ErrorKind != "" || e.Method == string(model.MethodFailed) {
		r.Error = &model.ResultError{Kind: model.ErrorKind(e.ErrorKind), Message: e.ErrorMessage}
	}
	// Malformed JSON columns are dropped rather than failing the listing.
	if len(e.Warnings) > 0 {
		_ = json.Unmarshal(e.Warnings, &r.Warnings)
	}
	if len(e.Alternates) > 0 {
		_ = json.Unmarshal(e.Alternates, &r.Alternates)
	}
	return r
}

func activityToEntity(a *model.ActivityEntry) *entities.ActivityEntry {
	status := a.Status
	if status == "" {
		status = model.StatusUnprocessed
	}
	return &entities.ActivityEntry{
		EntryID:      a.ID,
		TenantID:     a.TenantID,
		Description:  a.Description,
		Quantity:     a.Quantity,
		Unit:         a.Unit,
		Scope:        scopeToInt(a.Scope),
		Category:     a.Category,
		ActivityDate: a.ActivityDate,
		Status:       string(status),
	}
}

func activityFromEntity(e *entities.ActivityEntry) model.ActivityEntry {
	return model.ActivityEntry{
		ID:           e.EntryID,
		TenantID:     e.TenantID,
		Description:  e.Description,
		Quantity:     e.Quantity,
		Unit:         e.Unit,
		Scope:        intToScope(e.Scope),
		Category:     e.Category,
		ActivityDate: e.ActivityDate,
		Status:       model.EntryStatus(e.Status),
	}
}

func factorToEntity(f *model.EmissionFactor) (*entities.EmissionFactor, error) {
	var embedding datatypes.JSON
	if len(f.Embedding) > 0 {
		var err error
		if embedding, err = marshalJSON(f.Embedding); err != nil {
			return nil, err
		}
	}
	return &entities.EmissionFactor{
		ID:          f.ID,
		Description: f.Description,
		Source:      f.Source,
		Value:       f.Value,
		Unit:        f.Unit,
		Region:      f.Region,
		Year:        f.Year,
		Category:    f.Category,
		Embedding:   embedding,
		Dimensions:  len(f.Embedding),
	}, nil
}

func factorFromEntity(e *entities.EmissionFactor) (model.EmissionFactor, error) {
	f := model.EmissionFactor{
		ID:          e.ID,
		Description: e.Description,
		Source:      e.Source,
		Value:       e.Value,
		Unit:        e.Unit,
		Region:      e.Region,
		Year:        e.Year,
		Category:    e.Category,
	}
	if len(e.Embedding) > 0 {
		if err := json.Unmarshal(e.Embedding, &f.Embedding); err != nil {
			return f, err
		}
	}
	return f, nil
}
