package service

import (
	"context"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/sma-attendance-api/internal/insight"
	"github.com/noah-isme/sma-attendance-api/internal/models"
	appErrors "github.com/noah-isme/sma-attendance-api/pkg/errors"
)

type attendanceWindowRepository interface {
	Window(ctx context.Context, filter models.AttendanceWindowFilter) ([]models.AttendanceRecord, error)
}

type studentNameRepository interface {
	ListByIDs(ctx context.Context, ids []string) ([]models.Student, error)
}

type sectionNameRepository interface {
	ListByIDs(ctx context.Context, ids []string) ([]models.Section, error)
}

// WindowScope bounds the records loaded for one computation. Dates are calendar
// days and inclusive.
type WindowScope struct {
	SectionID string
	StudentID string
	From      time.Time
	To        time.Time
}

// WindowLoader fetches attendance windows and the display names they reference.
type WindowLoader struct {
	records  attendanceWindowRepository
	students studentNameRepository
	sections sectionNameRepository
	metrics  *MetricsService
	logger   *zap.Logger
}

// NewWindowLoader constructs a WindowLoader.
func NewWindowLoader(records attendanceWindowRepository, students studentNameRepository, sections sectionNameRepository, metrics *MetricsService, logger *zap.Logger) *WindowLoader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WindowLoader{records: records, students: students, sections: sections, metrics: metrics, logger: logger}
}

// Load returns the record window for scope. A failed fetch is reported as
// DATA_UNAVAILABLE so callers never mistake it for an empty window. Failed name
// lookups fall back to raw identifiers.
func (l *WindowLoader) Load(ctx context.Context, scope WindowScope) (insight.Window, insight.Lookups, error) {
	from, to := insight.CalendarDay(scope.From), insight.CalendarDay(scope.To)
	start := time.Now()
	records, err := l.records.Window(ctx, models.AttendanceWindowFilter{
		SectionID: scope.SectionID,
		StudentID: scope.StudentID,
		DateFrom:  from,
		DateTo:    to,
	})
	l.metrics.ObserveDBQuery("attendance_window", time.Since(start))
	if err != nil {
		return insight.Window{}, insight.Lookups{}, appErrors.Wrap(err, appErrors.ErrDataUnavailable.Code, appErrors.ErrDataUnavailable.Status, appErrors.ErrDataUnavailable.Message)
	}
	return insight.NewWindow(from, to, records), l.lookups(ctx, records), nil
}

func (l *WindowLoader) lookups(ctx context.Context, records []models.AttendanceRecord) insight.Lookups {
	studentIDs, sectionIDs := distinctIDs(records)
	lookups := insight.Lookups{
		Students: make(map[string]string, len(studentIDs)),
		Sections: make(map[string]string, len(sectionIDs)),
	}
	if len(studentIDs) > 0 {
		students, err := l.students.ListByIDs(ctx, studentIDs)
		if err != nil {
			l.logger.Warn("student name lookup failed", zap.Error(err))
		}
		for _, st := range students {
			lookups.Students[st.ID] = st.DisplayName()
		}
	}
	if len(sectionIDs) > 0 {
		sections, err := l.sections.ListByIDs(ctx, sectionIDs)
		if err != nil {
			l.logger.Warn("section name lookup failed", zap.Error(err))
		}
		for _, sec := range sections {
			lookups.Sections[sec.ID] = sec.Name
		}
	}
	return lookups
}

func distinctIDs(records []models.AttendanceRecord) (students, sections []string) {
	seenStudents := make(map[string]struct{})
	seenSections := make(map[string]struct{})
	for _, rec := range records {
		if _, ok := seenStudents[rec.StudentID]; !ok {
			seenStudents[rec.StudentID] = struct{}{}
			students = append(students, rec.StudentID)
		}
		if _, ok := seenSections[rec.SectionID]; !ok {
			seenSections[rec.SectionID] = struct{}{}
			sections = append(sections, rec.SectionID)
		}
	}
	sort.Strings(students)
	sort.Strings(sections)
	return students, sections
}

// buildScope parses optional date bounds, fills defaults and enforces the range limit.
func buildScope(sectionID, studentID, fromRaw, toRaw string, now time.Time, lookback, maxDays int) (WindowScope, error) {
	from, to, err := parseRange(fromRaw, toRaw)
	if err != nil {
		return WindowScope{}, err
	}
	scope := WindowScope{SectionID: sectionID, StudentID: studentID}
	if from != nil {
		scope.From = *from
	}
	if to != nil {
		scope.To = *to
	}
	scope = defaultScope(scope, now, lookback)
	if scope.To.Before(scope.From) {
		return WindowScope{}, appErrors.Clone(appErrors.ErrValidation, "date_to must not be before date_from")
	}
	if maxDays > 0 && int(scope.To.Sub(scope.From).Hours()/24)+1 > maxDays {
		return WindowScope{}, appErrors.Clone(appErrors.ErrValidation, "date range is too long")
	}
	return scope, nil
}

// defaultScope fills missing bounds: To defaults to today and From to lookback
// days ending on To.
func defaultScope(scope WindowScope, now time.Time, lookback int) WindowScope {
	if lookback <= 0 {
		lookback = 30
	}
	if scope.To.IsZero() {
		scope.To = insight.CalendarDay(now)
	}
	if scope.From.IsZero() {
		scope.From = insight.CalendarDay(scope.To).AddDate(0, 0, -(lookback - 1))
	}
	return scope
}
