package handler

import (
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-attendance-api/internal/middleware"
	"github.com/noah-isme/sma-attendance-api/internal/models"
	"github.com/noah-isme/sma-attendance-api/internal/service"
)

// Handlers groups every HTTP handler mounted by RegisterRoutes.
type Handlers struct {
	Auth       *AuthHandler
	Sections   *SectionHandler
	Students   *StudentHandler
	Attendance *AttendanceHandler
	Insights   *InsightHandler
	Analytics  *AnalyticsHandler
	Metrics    *MetricsHandler
}

// RouteDeps carries the middleware collaborators shared by protected routes.
type RouteDeps struct {
	Tokens  middleware.TokenValidator
	Audit   middleware.AuditWriter
	Metrics *service.MetricsService
	Logger  *zap.Logger
}

var (
	anyRole  = []models.UserRole{models.RoleBeadle, models.RoleAdviser, models.RoleCoordinator, models.RoleAdmin}
	staff    = []models.UserRole{models.RoleAdviser, models.RoleCoordinator, models.RoleAdmin}
	managers = []models.UserRole{models.RoleCoordinator, models.RoleAdmin}
	takers   = []models.UserRole{models.RoleBeadle, models.RoleAdviser, models.RoleAdmin}
)

// RegisterRoutes mounts the operational endpoints at the root and the API under prefix.
func RegisterRoutes(r *gin.Engine, prefix string, h Handlers, deps RouteDeps) {
	r.GET("/health", h.Metrics.Health)
	r.GET("/ready", h.Metrics.Ready)
	r.GET("/metrics", h.Metrics.Prometheus)

	prefix = "/" + strings.Trim(prefix, "/")
	api := r.Group(prefix)
	api.Use(middleware.Metrics(deps.Metrics), middleware.WithResponseMeta())

	api.POST("/auth/login", h.Auth.Login)
	api.GET("/attendance/proofs/download", h.Attendance.DownloadProof)

	secured := api.Group("")
	secured.Use(middleware.JWT(deps.Tokens), middleware.RequireRoles(anyRole...))

	secured.GET("/auth/me", h.Auth.Me)

	sections := secured.Group("/sections")
	sections.GET("", h.Sections.List)
	sections.GET("/:id", h.Sections.Get)
	sections.POST("", middleware.RequireRoles(managers...), h.Sections.Create)
	sections.PUT("/:id", middleware.RequireRoles(managers...), h.Sections.Update)
	sections.DELETE("/:id", middleware.RequireRoles(models.RoleAdmin), h.Sections.Delete)

	students := secured.Group("/students")
	students.GET("", h.Students.List)
	students.POST("/import", middleware.RequireRoles(staff...), h.Students.Import)
	students.GET("/:id", h.Students.Get)
	students.POST("", middleware.RequireRoles(staff...), h.Students.Create)
	students.PUT("/:id", middleware.RequireRoles(staff...), h.Students.Update)
	students.DELETE("/:id", middleware.RequireRoles(managers...), h.Students.Delete)

	attendance := secured.Group("/attendance")
	attendance.GET("", h.Attendance.List)
	attendance.POST("/submissions", middleware.RequireRoles(takers...), h.Attendance.Submit)
	attendance.GET("/students/:id/history", h.Attendance.History)
	attendance.POST("/proofs", middleware.RequireRoles(takers...), h.Attendance.UploadProof)
	attendance.GET("/proofs/:id/url", h.Attendance.ProofURL)

	analytics := secured.Group("/analytics", middleware.RequireRoles(staff...))
	analytics.GET("/overview", h.Analytics.Overview)
	analytics.GET("/system", middleware.RequireRoles(models.RoleAdmin), h.Analytics.System)
	analytics.GET("/reports/export",
		middleware.Audit(deps.Audit, deps.Logger, models.AuditActionReportExport, "attendance_report"),
		h.Analytics.Export)

	insights := secured.Group("/insights")
	insights.POST("/query", h.Insights.Query)
	insights.GET("/history", h.Insights.History)
}
