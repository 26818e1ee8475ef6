package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/ecoledger/carbon-engine/internal/datastore/repository"
	"github.com/ecoledger/carbon-engine/internal/model"
)

const maxResultsLimit = 1000

// ResultsResponse wraps a page of results.
type ResultsResponse struct {
	Results []model.CalculationResult `json:"results"`
	Count   int                       `json:"count"`
	Limit   int                       `json:"limit"`
	Offset  int                       `json:"offset"`
}

// TotalResponse is the summed emissions of a tenant.
type TotalResponse struct {
	TenantID       string `json:"tenant_id"`
	TotalEmissions string `json:"total_emissions"`
	EmissionsUnit  string `json:"emissions_unit"`
}

// ListResults handles GET /api/v1/results.
//
// Query parameters: tenant (required), entry_id, method, since and until
// (RFC3339), succeeded_only, limit, offset.
func (c *Controller) ListResults(ctx echo.Context) error {
	filter, err := parseResultFilter(ctx)
	if err != nil {
		return c.HandleError(ctx, err, "Invalid query parameters", http.StatusBadRequest)
	}

	results, err := c.service.Results(ctx.Request().Context(), filter)
	if err != nil {
		return c.HandleError(ctx, err, "Failed to list results", statusFor(err))
	}
	return ctx.JSON(http.StatusOK, ResultsResponse{
		Results: results,
		Count:   len(results),
		Limit:   filter.Limit,
		Offset:  filter.Offset,
	})
}

// TotalEmissions handles GET /api/v1/results/total.
func (c *Controller) TotalEmissions(ctx echo.Context) error {
	tenant := ctx.QueryParam("tenant")
	total, err := c.service.TotalEmissions(ctx.Request().Context(), tenant)
	if err != nil {
		return c.HandleError(ctx, err, "Failed to sum emissions", statusFor(err))
	}
	return ctx.JSON(http.StatusOK, TotalResponse{
		TenantID:       tenant,
		TotalEmissions: total.String(),
		EmissionsUnit:  model.EmissionsUnit,
	})
}

func parseResultFilter(ctx echo.Context) (repository.ResultFilter, error) {
	filter := repository.ResultFilter{
		TenantID: ctx.QueryParam("tenant"),
		EntryID:  ctx.QueryParam("entry_id"),
		Limit:    100,
	}

	err := echo.QueryParamsBinder(ctx).
		Int("limit", &filter.Limit).
		Int("offset", &filter.Offset).
		Bool("succeeded_only", &filter.SucceededOnly).
		CustomFunc("since", timeParam(&filter.Since)).
		CustomFunc("until", timeParam(&filter.Until)).
		BindError()
	if err != nil {
		return filter, err
	}

	if m := ctx.QueryParam("method"); m != "" {
		filter.Method = model.Method(m)
		if !filter.Method.Valid() {
			return filter, echo.NewHTTPError(http.StatusBadRequest, "unknown method "+strconv.Quote(m))
		}
	}
	if filter.Limit <= 0 || filter.Limit > maxResultsLimit {
		filter.Limit = maxResultsLimit
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}
	return filter, nil
}

func timeParam(dst *time.Time) func([]string) []error {
	return func(values []string) []error {
		t, err := time.Parse(time.RFC3339, values[0])
		if err != nil {
			return []error{err}
		}
		*dst = t
		return nil
	}
}
