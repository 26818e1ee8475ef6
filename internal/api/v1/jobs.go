package api

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// SubmitJob handles POST /api/v1/jobs.
func (c *Controller) SubmitJob(ctx echo.Context) error {
	var req EntriesRequest
	if err := ctx.Bind(&req); err != nil {
		return c.HandleError(ctx, err, "Invalid request body", http.StatusBadRequest)
	}
	if req.TenantID == "" {
		return c.HandleError(ctx, nil, "tenant_id is required", http.StatusBadRequest)
	}

	job, err := c.service.SubmitJob(req.TenantID, req.withTenant())
	if err != nil {
		return c.HandleError(ctx, err, "Job not accepted", statusFor(err))
	}
	ctx.Response().Header().Set(echo.HeaderLocation, "/api/v1/jobs/"+job.ID)
	return ctx.JSON(http.StatusAccepted, job)
}

// ListJobs handles GET /api/v1/jobs.
func (c *Controller) ListJobs(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, c.service.Jobs())
}

// GetJob handles GET /api/v1/jobs/:id.
func (c *Controller) GetJob(ctx echo.Context) error {
	job, err := c.service.Job(ctx.Param("id"))
	if err != nil {
		return c.HandleError(ctx, err, "Job not found", statusFor(err))
	}
	return ctx.JSON(http.StatusOK, job)
}

// ProcessRequest selects the stored entries to process.
type ProcessRequest struct {
	TenantID string `json:"tenant_id"`
	Limit    int    `json:"limit,omitempty"`
}

// IngestEntries handles POST /api/v1/entries.
func (c *Controller) IngestEntries(ctx echo.Context) error {
	var req EntriesRequest
	if err := ctx.Bind(&req); err != nil {
		return c.HandleError(ctx, err, "Invalid request body", http.StatusBadRequest)
	}
	n, err := c.service.Ingest(ctx.Request().Context(), req.withTenant())
	if err != nil {
		return c.HandleError(ctx, err, "Entries not stored", statusFor(err))
	}
	return ctx.JSON(http.StatusCreated, map[string]int{"ingested": n})
}

// ProcessPending handles POST /api/v1/entries/process.
func (c *Controller) ProcessPending(ctx echo.Context) error {
	var req ProcessRequest
	if err := ctx.Bind(&req); err != nil {
		return c.HandleError(ctx, err, "Invalid request body", http.StatusBadRequest)
	}
	job, err := c.service.ProcessPending(ctx.Request().Context(), req.TenantID, req.Limit)
	if err != nil {
		return c.HandleError(ctx, err, "Job not accepted", statusFor(err))
	}
	ctx.Response().Header().Set(echo.HeaderLocation, "/api/v1/jobs/"+job.ID)
	return ctx.JSON(http.StatusAccepted, job)
}
