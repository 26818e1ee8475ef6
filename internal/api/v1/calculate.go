package api

import (
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/ecoledger/carbon-engine/internal/model"
)

// EntriesRequest carries a list of activity entries.
type EntriesRequest struct {
	TenantID string                `json:"tenant_id,omitempty"`
	Entries  []model.ActivityEntry `json:"entries"`
}

// withTenant fills a missing tenant on each entry from the request.
func (r *EntriesRequest) withTenant() []model.ActivityEntry {
	if r.TenantID == "" {
		return r.Entries
	}
	for i := range r.Entries {
		if r.Entries[i].TenantID == "" {
			r.Entries[i].TenantID = r.TenantID
		}
	}
	return r.Entries
}

// Calculate handles POST /api/v1/calculate. The result is returned as-is,
// FAILED results included; nothing is stored.
func (c *Controller) Calculate(ctx echo.Context) error {
	var entry model.ActivityEntry
	if err := ctx.Bind(&entry); err != nil {
		return c.HandleError(ctx, err, "Invalid request body", http.StatusBadRequest)
	}
	res := c.service.CalculateSingle(ctx.Request().Context(), &entry)
	return ctx.JSON(http.StatusOK, res)
}

// CalculateBatch handles POST /api/v1/batch.
func (c *Controller) CalculateBatch(ctx echo.Context) error {
	var req EntriesRequest
	if err := ctx.Bind(&req); err != nil {
		return c.HandleError(ctx, err, "Invalid request body", http.StatusBadRequest)
	}
	if len(req.Entries) == 0 {
		return c.HandleError(ctx, nil, "No entries given", http.StatusBadRequest)
	}

	summary, err := c.service.CalculateBatch(ctx.Request().Context(), req.withTenant(), nil)
	if err != nil {
		msg := "Batch failed"
		if code := statusFor(err); code == http.StatusRequestEntityTooLarge {
			msg = fmt.Sprintf("Batches are limited to %d entries; submit larger volumes to /api/v1/jobs", c.service.MaxBatchEntries())
		}
		return c.HandleError(ctx, err, msg, statusFor(err))
	}
	return ctx.JSON(http.StatusOK, summary)
}
