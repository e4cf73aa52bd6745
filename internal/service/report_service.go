package service

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/sma-attendance-api/internal/insight"
	"github.com/noah-isme/sma-attendance-api/internal/models"
	appErrors "github.com/noah-isme/sma-attendance-api/pkg/errors"
	"github.com/noah-isme/sma-attendance-api/pkg/export"
)

var reportHeaders = []string{"Student", "Section", "Present", "Absent", "Total", "Attendance Rate", "Status"}

// ExportReportRequest selects the window and encoding of an attendance report.
type ExportReportRequest struct {
	SectionID string `form:"section_id"`
	DateFrom  string `form:"date_from"`
	DateTo    string `form:"date_to"`
	Format    string `form:"format"`
}

// ReportFile is a rendered report ready to send.
type ReportFile struct {
	FileName    string
	ContentType string
	Body        []byte
}

// ReportOptions bounds report windows.
type ReportOptions struct {
	DefaultLookback int
	MaxRangeDays    int
	Location        *time.Location
}

// ReportService renders per-student attendance summaries.
type ReportService struct {
	loader *WindowLoader
	engine *insight.Engine
	logger *zap.Logger
	opts   ReportOptions
	now    func() time.Time
}

// NewReportService constructs a ReportService.
func NewReportService(loader *WindowLoader, engine *insight.Engine, logger *zap.Logger, opts ReportOptions) *ReportService {
	if engine == nil {
		engine = insight.NewEngine(insight.Options{})
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.MaxRangeDays <= 0 {
		opts.MaxRangeDays = 366
	}
	return &ReportService{loader: loader, engine: engine, logger: logger, opts: opts, now: schoolClock(opts.Location)}
}

// Export renders the attendance summary of every student in the window.
func (s *ReportService) Export(ctx context.Context, req ExportReportRequest) (*ReportFile, error) {
	format, err := export.ParseFormat(req.Format)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, err.Error())
	}
	exporter, err := export.New(format)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, err.Error())
	}
	scope, err := buildScope(req.SectionID, "", req.DateFrom, req.DateTo, s.now(), s.opts.DefaultLookback, s.opts.MaxRangeDays)
	if err != nil {
		return nil, err
	}

	window, lookups, err := s.loader.Load(ctx, scope)
	if err != nil {
		return nil, err
	}
	dataset := s.buildDataset(window, lookups)
	body, err := exporter.Render(dataset)
	if err != nil {
		s.logger.Error("failed to render attendance report", zap.String("format", string(format)), zap.Error(err))
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render report")
	}
	return &ReportFile{
		FileName:    reportFileName(scope, exporter.Extension()),
		ContentType: exporter.ContentType(),
		Body:        body,
	}, nil
}

func (s *ReportService) buildDataset(window insight.Window, lookups insight.Lookups) export.Dataset {
	thresholds := s.engine.Thresholds()
	dataset := export.Dataset{
		Title: fmt.Sprintf("Attendance Summary %s to %s",
			window.Start.Format(models.DateLayout), window.End.Format(models.DateLayout)),
		Headers: reportHeaders,
		Rows:    []map[string]string{},
	}
	if window.Empty() {
		dataset.Notes = []string{insight.NoDataMessage}
		return dataset
	}

	sectionOf := make(map[string]string)
	for _, rec := range window.Records {
		sectionOf[rec.StudentID] = rec.SectionID
	}
	buckets := make([]insight.Bucket, 0)
	for _, bucket := range insight.Aggregate(window.Records, insight.GroupStudent, lookups) {
		buckets = append(buckets, bucket)
	}
	sort.Slice(buckets, func(i, j int) bool {
		si, sj := lookups.SectionName(sectionOf[buckets[i].Key]), lookups.SectionName(sectionOf[buckets[j].Key])
		if si != sj {
			return si < sj
		}
		if buckets[i].DisplayName != buckets[j].DisplayName {
			return buckets[i].DisplayName < buckets[j].DisplayName
		}
		return buckets[i].Key < buckets[j].Key
	})

	for _, bucket := range buckets {
		dataset.Rows = append(dataset.Rows, map[string]string{
			"Student":         bucket.DisplayName,
			"Section":         lookups.SectionName(sectionOf[bucket.Key]),
			"Present":         strconv.Itoa(bucket.Present),
			"Absent":          strconv.Itoa(bucket.Absent),
			"Total":           strconv.Itoa(bucket.Total),
			"Attendance Rate": insight.Percent(bucket.Rate),
			"Status":          thresholds.Label(bucket.Rate),
		})
	}

	overall := insight.Overall(window.Records)
	dataset.Notes = append(dataset.Notes, fmt.Sprintf("Overall attendance rate %s (%s) across %d records.",
		insight.Percent(overall.Rate), thresholds.Label(overall.Rate), overall.Total))
	return dataset
}

func reportFileName(scope WindowScope, ext string) string {
	parts := []string{"attendance"}
	if scope.SectionID != "" {
		parts = append(parts, sanitizeFilename(scope.SectionID))
	}
	parts = append(parts, scope.From.Format("20060102"), scope.To.Format("20060102"))
	return strings.Join(parts, "_") + "." + ext
}

func sanitizeFilename(raw string) string {
	replacer := strings.NewReplacer(" ", "_", "/", "-", "\\", "-", ":", "-", "..", ".", "\"", "")
	result := replacer.Replace(raw)
	if len(result) > 100 {
		return result[:100]
	}
	return result
}
