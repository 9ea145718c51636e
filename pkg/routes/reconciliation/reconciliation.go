package reconciliation

import (
	"net/http"
	"strconv"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	appctx "github.com/Ramsey-B/clover/internal/context"
	"github.com/Ramsey-B/clover/internal/repositories/reconjob"
	"github.com/Ramsey-B/clover/internal/tracing"
	"github.com/Ramsey-B/clover/pkg/matching"
	"github.com/Ramsey-B/clover/pkg/models"
)

var validate = validator.New()

// Handler handles reconciliation API requests
type Handler struct {
	service *matching.Service
	jobs    *reconjob.Repository
	logger  ectologger.Logger
}

// NewHandler creates a new reconciliation handler
func NewHandler(service *matching.Service, jobs *reconjob.Repository, logger ectologger.Logger) *Handler {
	return &Handler{
		service: service,
		jobs:    jobs,
		logger:  logger,
	}
}

// RegisterRoutes registers the reconciliation routes
func (h *Handler) RegisterRoutes(g *echo.Group) {
	reconciliations := g.Group("/reconciliations")
	reconciliations.POST("", h.Reconcile)
	reconciliations.GET("", h.List)
	reconciliations.GET("/:id", h.Get)
}

// Reconcile handles POST /reconciliations. It runs the full reconciliation
// synchronously and returns the result.
func (h *Handler) Reconcile(c echo.Context) error {
	ctx := c.Request().Context()
	ctx, span := tracing.StartSpan(ctx, "reconciliation_handler.Reconcile")
	defer span.End()

	tenantID := appctx.GetTenantID(ctx)
	if tenantID == "" {
		return httperror.NewHTTPError(http.StatusUnauthorized, "tenant_id is required")
	}

	var req models.ReconcileRequest
	if err := c.Bind(&req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	if err := validate.Struct(&req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	if len(req.SourceRecords) == 0 && len(req.TargetRecords) == 0 {
		return httperror.NewHTTPError(http.StatusBadRequest, "at least one of source_records or target_records must be non-empty")
	}

	result, err := h.service.Reconcile(ctx, tenantID, &req)
	if err != nil {
		if httperror.IsHTTPError(err) {
			return err
		}
		h.logger.WithContext(ctx).WithError(err).Error("Reconciliation run failed")
		return httperror.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	return c.JSON(http.StatusOK, result)
}

// Get handles GET /reconciliations/:id
func (h *Handler) Get(c echo.Context) error {
	ctx := c.Request().Context()
	ctx, span := tracing.StartSpan(ctx, "reconciliation_handler.Get")
	defer span.End()

	tenantID := appctx.GetTenantID(ctx)
	if tenantID == "" {
		return httperror.NewHTTPError(http.StatusUnauthorized, "tenant_id is required")
	}

	jobID := c.Param("id")
	if jobID == "" {
		return httperror.NewHTTPError(http.StatusBadRequest, "id is required")
	}

	job, err := h.jobs.Get(ctx, tenantID, jobID)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, job)
}

// List handles GET /reconciliations
func (h *Handler) List(c echo.Context) error {
	ctx := c.Request().Context()
	ctx, span := tracing.StartSpan(ctx, "reconciliation_handler.List")
	defer span.End()

	tenantID := appctx.GetTenantID(ctx)
	if tenantID == "" {
		return httperror.NewHTTPError(http.StatusUnauthorized, "tenant_id is required")
	}

	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	if limit < 1 {
		limit = 100
	}

	jobs, err := h.jobs.List(ctx, tenantID, limit)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, models.JobListResponse{
		Items:      jobs,
		TotalCount: len(jobs),
		Page:       1,
		PageSize:   limit,
	})
}
