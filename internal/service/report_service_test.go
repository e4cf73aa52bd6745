package service

import (
	"bytes"
	"context"
	"encoding/csv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-attendance-api/internal/models"
	appErrors "github.com/noah-isme/sma-attendance-api/pkg/errors"
)

func newReportFixture(records []models.AttendanceRecord) (*ReportService, *fakeAttendanceRepo) {
	repo := &fakeAttendanceRepo{window: records}
	loader := NewWindowLoader(repo, insightStudents(), newFakeSectionRepo(models.Section{ID: "sec-1", Name: "Rizal"}), nil, nil)
	svc := NewReportService(loader, nil, nil, ReportOptions{DefaultLookback: 7, MaxRangeDays: 31})
	svc.now = func() time.Time { return time.Date(2024, 3, 5, 9, 0, 0, 0, time.UTC) }
	return svc, repo
}

func TestReportServiceExportCSV(t *testing.T) {
	svc, _ := newReportFixture(fiveStudentWindow())

	file, err := svc.Export(context.Background(), ExportReportRequest{SectionID: "sec-1", DateFrom: "2024-03-04", DateTo: "2024-03-05"})
	require.NoError(t, err)
	assert.Equal(t, "attendance_sec-1_20240304_20240305.csv", file.FileName)
	assert.Equal(t, "text/csv", file.ContentType)

	rows, err := csv.NewReader(bytes.NewReader(file.Body)).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 6)
	assert.Equal(t, reportHeaders, rows[0])
	assert.Equal(t, []string{"Ana Cruz", "Rizal", "2", "0", "2", "100.0%", "excellent"}, rows[1])
	assert.Equal(t, []string{"Ben Reyes", "Rizal", "1", "1", "2", "50.0%", "needs attention"}, rows[2])
}

func TestReportServiceExportPDF(t *testing.T) {
	svc, _ := newReportFixture(fiveStudentWindow())

	file, err := svc.Export(context.Background(), ExportReportRequest{Format: "PDF"})
	require.NoError(t, err)
	assert.Equal(t, "application/pdf", file.ContentType)
	assert.Equal(t, "attendance_20240228_20240305.pdf", file.FileName)
	assert.True(t, bytes.HasPrefix(file.Body, []byte("%PDF")))
}

func TestReportServiceExportEmptyWindow(t *testing.T) {
	svc, _ := newReportFixture(nil)

	file, err := svc.Export(context.Background(), ExportReportRequest{Format: "xlsx"})
	require.NoError(t, err)
	assert.Equal(t, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", file.ContentType)
	assert.NotEmpty(t, file.Body)
}

func TestReportServiceExportRejections(t *testing.T) {
	svc, repo := newReportFixture(nil)

	cases := map[string]ExportReportRequest{
		"format":   {Format: "docx"},
		"range":    {DateFrom: "2024-01-01", DateTo: "2024-03-05"},
		"bad date": {DateFrom: "03/01/2024"},
		"reversed": {DateFrom: "2024-03-05", DateTo: "2024-03-04"},
	}
	for name, req := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := svc.Export(context.Background(), req)
			require.Error(t, err)
			assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
		})
	}
	assert.Empty(t, repo.windowCalls)
}
