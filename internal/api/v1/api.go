// internal/api/v1/api.go
package api

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"

	"github.com/ecoledger/carbon-engine/internal/batch"
	"github.com/ecoledger/carbon-engine/internal/datastore/repository"
	"github.com/ecoledger/carbon-engine/internal/errors"
	"github.com/ecoledger/carbon-engine/internal/jobs"
	"github.com/ecoledger/carbon-engine/internal/logger"
	"github.com/ecoledger/carbon-engine/internal/model"
)

// Service is the application surface the handlers call. *service.Service
// implements it.
type Service interface {
	CalculateSingle(ctx context.Context, entry *model.ActivityEntry) *model.CalculationResult
	CalculateBatch(ctx context.Context, entries []model.ActivityEntry, onProgress batch.ProgressFunc) (*model.BatchSummary, error)
	MaxBatchEntries() int

	SubmitJob(tenantID string, entries []model.ActivityEntry) (jobs.Job, error)
	Job(id string) (jobs.Job, error)
	Jobs() []jobs.Job

	Ingest(ctx context.Context, entries []model.ActivityEntry) (int, error)
	ProcessPending(ctx context.Context, tenantID string, limit int) (jobs.Job, error)

	Results(ctx context.Context, filter repository.ResultFilter) ([]model.CalculationResult, error)
	TotalEmissions(ctx context.Context, tenantID string) (decimal.Decimal, error)
}

// Controller manages the API routes and handlers.
type Controller struct {
	Echo    *echo.Echo
	Group   *echo.Group
	service Service
	log     logger.Logger
}

// New creates a controller and registers its routes under /api/v1.
func New(e *echo.Echo, svc Service, log logger.Logger) *Controller {
	c := &Controller{
		Echo:    e,
		Group:   e.Group("/api/v1"),
		service: svc,
		log:     logger.Or(log, "api"),
	}
	c.initRoutes()
	return c
}

func (c *Controller) initRoutes() {
	c.Group.POST("/calculate", c.Calculate)
	c.Group.POST("/batch", c.CalculateBatch)

	c.Group.POST("/jobs", c.SubmitJob)
	c.Group.GET("/jobs", c.ListJobs)
	c.Group.GET("/jobs/:id", c.GetJob)

	c.Group.POST("/entries", c.IngestEntries)
	c.Group.POST("/entries/process", c.ProcessPending)

	c.Group.GET("/results", c.ListResults)
	c.Group.GET("/results/total", c.TotalEmissions)
}

// ErrorResponse is the body of every error reply.
type ErrorResponse struct {
	Error         string `json:"error"`
	Message       string `json:"message"`
	Code          int    `json:"code"`
	CorrelationID string `json:"correlation_id"`
}

// HandleError logs err and replies with an ErrorResponse. The correlation ID
// ties the reply to the log line.
func (c *Controller) HandleError(ctx echo.Context, err error, message string, code int) error {
	resp := &ErrorResponse{
		Message:       message,
		Code:          code,
		CorrelationID: correlationID(ctx),
	}
	if err != nil {
		resp.Error = errors.ScrubMessage(err.Error())
	} else {
		resp.Error = message
	}

	fields := []logger.Field{
		logger.String("correlation_id", resp.CorrelationID),
		logger.String("path", ctx.Request().URL.Path),
		logger.String("method", ctx.Request().Method),
		logger.Int("code", code),
		logger.String("ip", ctx.RealIP()),
	}
	if err != nil {
		fields = append(fields, logger.Error(err))
	}
	if code >= http.StatusInternalServerError {
		c.log.Error(message, fields...)
	} else {
		c.log.Debug(message, fields...)
	}
	return ctx.JSON(code, resp)
}

// statusFor maps service errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, batch.ErrBatchTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, jobs.ErrQueueFull):
		return http.StatusTooManyRequests
	case errors.Is(err, jobs.ErrQueueStopped):
		return http.StatusServiceUnavailable
	case errors.IsNotFound(err):
		return http.StatusNotFound
	case errors.IsCategory(err, errors.CategoryValidation):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func correlationID(ctx echo.Context) string {
	if id := ctx.Response().Header().Get(echo.HeaderXRequestID); id != "" {
		return id
	}
	return ctx.Request().Header.Get(echo.HeaderXRequestID)
}
