package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-attendance-api/internal/insight"
	"github.com/noah-isme/sma-attendance-api/internal/models"
	"github.com/noah-isme/sma-attendance-api/internal/service"
	appErrors "github.com/noah-isme/sma-attendance-api/pkg/errors"
)

type tokenTable map[string]models.UserRole

func (t tokenTable) ValidateToken(token string) (*models.JWTClaims, error) {
	role, ok := t[token]
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid token")
	}
	return &models.JWTClaims{UserID: "user-" + string(role), Role: role}, nil
}

type auditRecorder struct {
	entries []*models.AuditLog
}

func (a *auditRecorder) CreateAuditLog(_ context.Context, log *models.AuditLog) error {
	a.entries = append(a.entries, log)
	return nil
}

func newTestRouter(audit *auditRecorder) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	analytics := NewAnalyticsHandler(
		&fakeAnalyticsSrv{overview: &insight.Overview{Label: "good"}},
		&fakeReportSrv{file: &service.ReportFile{FileName: "attendance.csv", ContentType: "text/csv", Body: []byte("x")}},
	)
	RegisterRoutes(r, "/api/v1", Handlers{
		Auth:       NewAuthHandler(nil),
		Sections:   NewSectionHandler(&fakeSectionSrv{}),
		Students:   NewStudentHandler(&fakeStudentSrv{}),
		Attendance: NewAttendanceHandler(&fakeAttendanceSrv{}, &fakeProofSrv{}, "/api/v1"),
		Insights:   NewInsightHandler(&fakeInsightSrv{result: &insight.Insight{Intent: insight.IntentDefault}}),
		Analytics:  analytics,
		Metrics:    NewMetricsHandler(nil, nil),
	}, RouteDeps{
		Tokens: tokenTable{
			"beadle":  models.RoleBeadle,
			"adviser": models.RoleAdviser,
			"admin":   models.RoleAdmin,
		},
		Audit: audit,
	})
	return r
}

func serve(r *gin.Engine, method, path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestRouterEnforcesRoles(t *testing.T) {
	r := newTestRouter(&auditRecorder{})

	cases := []struct {
		name   string
		method string
		path   string
		token  string
		status int
	}{
		{"health is public", http.MethodGet, "/health", "", http.StatusOK},
		{"overview needs token", http.MethodGet, "/api/v1/analytics/overview", "", http.StatusUnauthorized},
		{"unknown token", http.MethodGet, "/api/v1/analytics/overview", "forged", http.StatusUnauthorized},
		{"beadle cannot see analytics", http.MethodGet, "/api/v1/analytics/overview", "beadle", http.StatusForbidden},
		{"adviser sees analytics", http.MethodGet, "/api/v1/analytics/overview", "adviser", http.StatusOK},
		{"system is admin only", http.MethodGet, "/api/v1/analytics/system", "adviser", http.StatusForbidden},
		{"admin sees system", http.MethodGet, "/api/v1/analytics/system", "admin", http.StatusOK},
		{"beadle lists sections", http.MethodGet, "/api/v1/sections", "beadle", http.StatusOK},
		{"beadle cannot delete sections", http.MethodDelete, "/api/v1/sections/sec-1", "beadle", http.StatusForbidden},
		{"download link is public", http.MethodGet, "/api/v1/attendance/proofs/download?token=tok", "", http.StatusOK},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := serve(r, tc.method, tc.path, tc.token)
			assert.Equal(t, tc.status, rec.Code)
		})
	}
}

func TestRouterAuditsReportExport(t *testing.T) {
	audit := &auditRecorder{}
	r := newTestRouter(audit)

	rec := serve(r, http.MethodGet, "/api/v1/analytics/reports/export?format=csv", "admin")
	require.Equal(t, http.StatusOK, rec.Code)

	require.Len(t, audit.entries, 1)
	entry := audit.entries[0]
	assert.Equal(t, models.AuditActionReportExport, entry.Action)
	require.NotNil(t, entry.UserID)
	assert.Equal(t, "user-ADMIN", *entry.UserID)
	assert.Contains(t, string(entry.NewValues), "format=csv")
}
