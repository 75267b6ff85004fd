package fraud

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/richxcame/fraud-investigator/pkg/common"
	"github.com/richxcame/fraud-investigator/pkg/logger"
	"github.com/richxcame/fraud-investigator/pkg/middleware"
	"github.com/richxcame/fraud-investigator/pkg/pagination"
	"github.com/richxcame/fraud-investigator/pkg/validation"
	"go.uber.org/zap"
)

// CaseService is what the HTTP layer needs from the pipeline service
type CaseService interface {
	ProcessTransaction(ctx context.Context, txn *Transaction) (*ProcessResult, error)
	GetCase(ctx context.Context, caseID string) (*Case, error)
	ListCases(ctx context.Context, limit, offset int) ([]CaseSummary, int64, error)
	GetReport(ctx context.Context, caseID string) ([]byte, error)
	RegenerateReport(ctx context.Context, caseID string) (*Case, error)
	DailyVolume(ctx context.Context, days int, tz string) ([]DailyCount, error)
	HourlyToday(ctx context.Context, tz string) ([]HourlyCount, error)
	SystemMetrics(ctx context.Context, tz string) (*SystemMetrics, error)
}

// Handler handles HTTP requests for fraud cases
type Handler struct {
	service CaseService
}

// NewHandler creates a new fraud case handler
func NewHandler(service CaseService) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes registers fraud routes. A nil auth handler leaves the API open,
// otherwise analysts and admins may read and ingest and only admins regenerate reports.
// ingest runs in front of the transaction endpoint only, e.g. a rate limiter.
func (h *Handler) RegisterRoutes(router gin.IRouter, auth gin.HandlerFunc, ingest ...gin.HandlerFunc) {
	api := router.Group("/api/v1/fraud")
	adminOnly := func(c *gin.Context) { c.Next() }
	if auth != nil {
		api.Use(auth, middleware.RequireRole(middleware.RoleAnalyst, middleware.RoleAdmin))
		adminOnly = middleware.RequireRole(middleware.RoleAdmin)
	}
	{
		ingestChain := append(append([]gin.HandlerFunc{}, ingest...), h.IngestTransaction)
		api.POST("/transactions", ingestChain...)

		api.GET("/cases", h.ListCases)
		api.GET("/cases/:id", h.GetCase)
		api.GET("/cases/:id/report", h.GetReport)
		api.POST("/cases/:id/report/regenerate", adminOnly, h.RegenerateReport)

		api.GET("/stats/daily-volume", h.DailyVolume)
		api.GET("/stats/hourly-today", h.HourlyToday)
		api.GET("/stats/system", h.SystemMetrics)
	}
}

// IngestTransaction runs one transaction through the pipeline
func (h *Handler) IngestTransaction(c *gin.Context) {
	var txn Transaction
	if !common.BindJSON(c, &txn) {
		return
	}
	if err := validation.ValidateStruct(&txn); err != nil {
		common.AppErrorResponse(c, common.NewValidationError(err.Error()))
		return
	}

	result, err := h.service.ProcessTransaction(c.Request.Context(), &txn)
	if common.HandleServiceError(c, err, "failed to process transaction") {
		return
	}

	common.CreatedResponse(c, result)
}

// ListCases lists cases newest first
func (h *Handler) ListCases(c *gin.Context) {
	params := pagination.ParseParams(c)

	cases, total, err := h.service.ListCases(c.Request.Context(), params.Limit, params.Offset)
	if common.HandleServiceError(c, err, "failed to list cases") {
		return
	}

	common.SuccessResponseWithMeta(c, cases, pagination.BuildMeta(params, total))
}

// GetCase retrieves a specific case
func (h *Handler) GetCase(c *gin.Context) {
	caseID, ok := common.RequireParam(c, "id", "case id")
	if !ok {
		return
	}

	fc, err := h.service.GetCase(c.Request.Context(), caseID)
	if common.HandleServiceError(c, err, "failed to get case") {
		return
	}

	common.SuccessResponse(c, fc)
}

// GetReport returns the markdown report of a case; ?download=1 sends it as an attachment
func (h *Handler) GetReport(c *gin.Context) {
	caseID, ok := common.RequireParam(c, "id", "case id")
	if !ok {
		return
	}

	body, err := h.service.GetReport(c.Request.Context(), caseID)
	if common.HandleServiceError(c, err, "failed to get case report") {
		return
	}

	if c.Query("download") == "1" {
		c.Header("Content-Disposition", `attachment; filename="`+caseID+`.md"`)
	}
	c.Data(http.StatusOK, "text/markdown; charset=utf-8", body)
}

// RegenerateReport re-renders and re-uploads a case report
func (h *Handler) RegenerateReport(c *gin.Context) {
	caseID, ok := common.RequireParam(c, "id", "case id")
	if !ok {
		return
	}

	fc, err := h.service.RegenerateReport(c.Request.Context(), caseID)
	if common.HandleServiceError(c, err, "failed to regenerate case report") {
		return
	}

	actor, _ := middleware.GetUserID(c)
	logger.InfoContext(c.Request.Context(), "report regeneration requested",
		zap.String("case_id", caseID),
		zap.String("actor", actor),
	)

	common.SuccessResponse(c, gin.H{
		"case_id":    fc.CaseID,
		"report_key": fc.ReportKey,
		"report_url": ReportURL(fc.CaseID),
	})
}

// DailyVolume returns transaction counts per local day
func (h *Handler) DailyVolume(c *gin.Context) {
	var req validation.DailyVolumeRequest
	if !bindStatsQuery(c, &req) {
		return
	}

	days, err := h.service.DailyVolume(c.Request.Context(), req.Days, req.TZ)
	if common.HandleServiceError(c, err, "failed to get daily volume") {
		return
	}

	common.SuccessResponse(c, days)
}

// HourlyToday returns transaction counts per local hour of today
func (h *Handler) HourlyToday(c *gin.Context) {
	var req validation.TimezoneRequest
	if !bindStatsQuery(c, &req) {
		return
	}

	hours, err := h.service.HourlyToday(c.Request.Context(), req.TZ)
	if common.HandleServiceError(c, err, "failed to get hourly volume") {
		return
	}

	common.SuccessResponse(c, hours)
}

// SystemMetrics returns database counters combined with live telemetry
func (h *Handler) SystemMetrics(c *gin.Context) {
	var req validation.TimezoneRequest
	if !bindStatsQuery(c, &req) {
		return
	}

	m, err := h.service.SystemMetrics(c.Request.Context(), req.TZ)
	if common.HandleServiceError(c, err, "failed to get system metrics") {
		return
	}

	common.SuccessResponse(c, m)
}

func bindStatsQuery(c *gin.Context, req interface{}) bool {
	if !common.BindQuery(c, req) {
		return false
	}
	if err := validation.ValidateStruct(req); err != nil {
		common.AppErrorResponse(c, common.NewValidationError(err.Error()))
		return false
	}
	return true
}
