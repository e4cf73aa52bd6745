package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-attendance-api/internal/insight"
	"github.com/noah-isme/sma-attendance-api/internal/models"
	"github.com/noah-isme/sma-attendance-api/internal/service"
	appErrors "github.com/noah-isme/sma-attendance-api/pkg/errors"
	"github.com/noah-isme/sma-attendance-api/pkg/response"
)

type analyticsService interface {
	Overview(ctx context.Context, req service.OverviewRequest) (*insight.Overview, bool, error)
	SystemMetrics() models.AnalyticsSystemMetrics
}

type reportService interface {
	Export(ctx context.Context, req service.ExportReportRequest) (*service.ReportFile, error)
}

// AnalyticsHandler exposes dashboard-ready analytics endpoints.
type AnalyticsHandler struct {
	analytics analyticsService
	reports   reportService
}

// NewAnalyticsHandler constructs the analytics handler.
func NewAnalyticsHandler(analytics analyticsService, reports reportService) *AnalyticsHandler {
	return &AnalyticsHandler{analytics: analytics, reports: reports}
}

// Overview godoc
// @Summary Attendance overview
// @Description Overall rate, daily and weekly series, section ranking, absentees and trend.
// @Tags Analytics
// @Produce json
// @Param section_id query string false "Section ID"
// @Param date_from query string false "Start date (YYYY-MM-DD)"
// @Param date_to query string false "End date (YYYY-MM-DD)"
// @Success 200 {object} response.Envelope
// @Failure 503 {object} response.Envelope
// @Router /analytics/overview [get]
func (h *AnalyticsHandler) Overview(c *gin.Context) {
	if h.analytics == nil {
		response.Error(c, appErrors.ErrInternal)
		return
	}
	var req service.OverviewRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid query"))
		return
	}
	start := time.Now()
	overview, cacheHit, err := h.analytics.Overview(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	meta := withMeta(c, cacheHit)
	meta["processing_time_ms"] = time.Since(start).Milliseconds()
	response.JSON(c, http.StatusOK, overview, nil, meta)
}

// Export godoc
// @Summary Export attendance report
// @Tags Analytics
// @Produce text/csv
// @Produce application/pdf
// @Param section_id query string false "Section ID"
// @Param date_from query string false "Start date (YYYY-MM-DD)"
// @Param date_to query string false "End date (YYYY-MM-DD)"
// @Param format query string false "csv, xlsx or pdf"
// @Success 200 {file} file
// @Router /analytics/reports/export [get]
func (h *AnalyticsHandler) Export(c *gin.Context) {
	if h.reports == nil {
		response.Error(c, appErrors.ErrInternal)
		return
	}
	var req service.ExportReportRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid query"))
		return
	}
	file, err := h.reports.Export(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, file.FileName, file.ContentType, file.Body)
}

// System returns instrumentation metrics snapshots.
func (h *AnalyticsHandler) System(c *gin.Context) {
	if h.analytics == nil {
		response.Error(c, appErrors.ErrInternal)
		return
	}
	start := time.Now()
	metrics := h.analytics.SystemMetrics()
	meta := withMeta(c, false)
	meta["processing_time_ms"] = time.Since(start).Milliseconds()
	response.JSON(c, http.StatusOK, metrics, nil, meta)
}
