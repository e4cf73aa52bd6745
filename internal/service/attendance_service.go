package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-attendance-api/internal/insight"
	"github.com/noah-isme/sma-attendance-api/internal/models"
	appErrors "github.com/noah-isme/sma-attendance-api/pkg/errors"
)

type attendanceRepository interface {
	List(ctx context.Context, filter models.AttendanceFilter) ([]models.AttendanceRecordDetail, int, error)
	ReplaceSubmission(ctx context.Context, submission models.AttendanceSubmission) (int, error)
	StudentHistory(ctx context.Context, studentID string, from, to *time.Time) ([]models.AttendanceHistoryRow, error)
}

type rosterReader interface {
	FindByID(ctx context.Context, id string) (*models.StudentDetail, error)
	ListBySection(ctx context.Context, sectionID string) ([]models.Student, error)
}

type proofFinder interface {
	FindByID(ctx context.Context, id string) (*models.AttendanceProof, error)
}

// AttendanceItem is one student's status within a submission.
type AttendanceItem struct {
	StudentID string  `json:"student_id" validate:"required"`
	Status    string  `json:"status" validate:"required,attendance_status"`
	Notes     *string `json:"notes" validate:"omitempty,max=500"`
}

// SubmitAttendanceRequest replaces a section's attendance for one day.
type SubmitAttendanceRequest struct {
	SectionID string           `json:"section_id" validate:"required"`
	Date      string           `json:"date" validate:"required"`
	ProofID   *string          `json:"proof_id"`
	Items     []AttendanceItem `json:"items" validate:"required,min=1,dive"`
}

// SubmissionResult summarises a stored submission.
type SubmissionResult struct {
	SectionID string    `json:"section_id"`
	Date      time.Time `json:"date"`
	Recorded  int       `json:"recorded"`
	Replaced  int       `json:"replaced"`
	Present   int       `json:"present"`
	Absent    int       `json:"absent"`
}

// AttendanceListRequest describes list filters.
type AttendanceListRequest struct {
	SectionID string  `json:"section_id"`
	StudentID string  `json:"student_id"`
	Status    *string `json:"status" validate:"omitempty,attendance_status"`
	DateFrom  string  `json:"date_from"`
	DateTo    string  `json:"date_to"`
	Page      int     `json:"page"`
	PageSize  int     `json:"page_size"`
	SortBy    string  `json:"sort_by"`
	SortOrder string  `json:"sort_order"`
}

// AttendanceOptions configures AttendanceService. Location is the school's
// timezone and decides which calendar day is "today".
type AttendanceOptions struct {
	Location *time.Location
}

// AttendanceService coordinates attendance submissions and lookups.
type AttendanceService struct {
	repo      attendanceRepository
	students  rosterReader
	sections  sectionFinder
	proofs    proofFinder
	cache     *CacheService
	audit     auditRecorder
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
}

// NewAttendanceService constructs the attendance service.
func NewAttendanceService(repo attendanceRepository, students rosterReader, sections sectionFinder, proofs proofFinder, cache *CacheService, audit auditRecorder, validate *validator.Validate, logger *zap.Logger, opts AttendanceOptions) *AttendanceService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	svc := &AttendanceService{
		repo:      repo,
		students:  students,
		sections:  sections,
		proofs:    proofs,
		cache:     cache,
		audit:     audit,
		validator: validate,
		logger:    logger,
		now:       schoolClock(opts.Location),
	}
	svc.validator.RegisterValidation("attendance_status", func(fl validator.FieldLevel) bool {
		return parseStatus(fl.Field().String()).Valid()
	})
	return svc
}

// Submit stores the attendance of every listed student for a section and day,
// replacing any earlier submission for that section and day.
func (s *AttendanceService) Submit(ctx context.Context, actor Actor, req SubmitAttendanceRequest) (*SubmissionResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid attendance payload")
	}
	date, err := parseDay(req.Date)
	if err != nil {
		return nil, err
	}
	if date.After(insight.CalendarDay(s.now())) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "attendance cannot be recorded for a future date")
	}
	if _, err := s.sections.FindByID(ctx, req.SectionID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "section not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load section")
	}
	if dups := duplicateStudents(req.Items); len(dups) > 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "students listed more than once: "+strings.Join(dups, ", "))
	}
	if err := s.ensureRoster(ctx, req.SectionID, req.Items); err != nil {
		return nil, err
	}
	if err := s.ensureProof(ctx, req.ProofID, req.SectionID, date); err != nil {
		return nil, err
	}

	result := &SubmissionResult{SectionID: req.SectionID, Date: date, Recorded: len(req.Items)}
	records := make([]models.AttendanceRecord, 0, len(req.Items))
	for _, item := range req.Items {
		status := parseStatus(item.Status)
		if status == models.AttendanceStatusPresent {
			result.Present++
		} else {
			result.Absent++
		}
		records = append(records, models.AttendanceRecord{
			StudentID: item.StudentID,
			Status:    status,
			Notes:     trimmedOrNil(item.Notes),
		})
	}

	replaced, err := s.repo.ReplaceSubmission(ctx, models.AttendanceSubmission{
		SectionID:  req.SectionID,
		Date:       date,
		RecordedBy: actor.UserID,
		ProofID:    req.ProofID,
		Records:    records,
	})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store attendance")
	}
	result.Replaced = replaced

	if err := s.cache.InvalidateSection(ctx, req.SectionID); err != nil {
		s.logger.Warn("failed to invalidate analytics cache", zap.String("section_id", req.SectionID), zap.Error(err))
	}
	if s.audit != nil {
		entry := actor.auditLog(models.AuditActionAttendanceSubmit, "section", req.SectionID, map[string]interface{}{
			"date":     date.Format(models.DateLayout),
			"recorded": result.Recorded,
			"replaced": replaced,
		})
		if err := s.audit.CreateAuditLog(ctx, entry); err != nil {
			s.logger.Warn("failed to record attendance audit log", zap.Error(err))
		}
	}
	return result, nil
}

// List returns attendance records with pagination.
func (s *AttendanceService) List(ctx context.Context, req AttendanceListRequest) ([]models.AttendanceRecordDetail, *models.Pagination, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid filter")
	}
	from, to, err := parseRange(req.DateFrom, req.DateTo)
	if err != nil {
		return nil, nil, err
	}
	filter := models.AttendanceFilter{
		SectionID: req.SectionID,
		StudentID: req.StudentID,
		DateFrom:  from,
		DateTo:    to,
		Page:      req.Page,
		PageSize:  req.PageSize,
		SortBy:    req.SortBy,
		SortOrder: req.SortOrder,
	}
	if req.Status != nil {
		status := parseStatus(*req.Status)
		filter.Status = &status
	}
	rows, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list attendance")
	}
	return rows, pagination(req.Page, req.PageSize, 50, total), nil
}

// StudentHistory returns a student's attendance between optional bounds.
func (s *AttendanceService) StudentHistory(ctx context.Context, studentID, dateFrom, dateTo string) ([]models.AttendanceHistoryRow, error) {
	from, to, err := parseRange(dateFrom, dateTo)
	if err != nil {
		return nil, err
	}
	if _, err := s.students.FindByID(ctx, studentID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	rows, err := s.repo.StudentHistory(ctx, studentID, from, to)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load attendance history")
	}
	return rows, nil
}

func (s *AttendanceService) ensureRoster(ctx context.Context, sectionID string, items []AttendanceItem) error {
	roster, err := s.students.ListBySection(ctx, sectionID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load section roster")
	}
	members := make(map[string]struct{}, len(roster))
	for _, st := range roster {
		members[st.ID] = struct{}{}
	}
	var outsiders []string
	for _, item := range items {
		if _, ok := members[item.StudentID]; !ok {
			outsiders = append(outsiders, item.StudentID)
		}
	}
	if len(outsiders) > 0 {
		return appErrors.Clone(appErrors.ErrValidation, "students not enrolled in section: "+strings.Join(outsiders, ", "))
	}
	return nil
}

func (s *AttendanceService) ensureProof(ctx context.Context, proofID *string, sectionID string, date time.Time) error {
	if proofID == nil {
		return nil
	}
	proof, err := s.proofs.FindByID(ctx, *proofID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrValidation, "proof does not exist")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load proof")
	}
	if proof.SectionID != sectionID || !insight.CalendarDay(proof.Date).Equal(date) {
		return appErrors.Clone(appErrors.ErrValidation, "proof belongs to a different section or date")
	}
	return nil
}

func duplicateStudents(items []AttendanceItem) []string {
	seen := make(map[string]int, len(items))
	for _, item := range items {
		seen[item.StudentID]++
	}
	var dups []string
	for id, count := range seen {
		if count > 1 {
			dups = append(dups, id)
		}
	}
	sort.Strings(dups)
	return dups
}

func parseStatus(raw string) models.AttendanceStatus {
	return models.AttendanceStatus(strings.ToLower(strings.TrimSpace(raw)))
}

func parseDay(raw string) (time.Time, error) {
	date, err := time.Parse(models.DateLayout, strings.TrimSpace(raw))
	if err != nil {
		return time.Time{}, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("invalid date %q, expected YYYY-MM-DD", raw))
	}
	return date, nil
}

func parseRange(fromRaw, toRaw string) (*time.Time, *time.Time, error) {
	var from, to *time.Time
	if strings.TrimSpace(fromRaw) != "" {
		d, err := parseDay(fromRaw)
		if err != nil {
			return nil, nil, err
		}
		from = &d
	}
	if strings.TrimSpace(toRaw) != "" {
		d, err := parseDay(toRaw)
		if err != nil {
			return nil, nil, err
		}
		to = &d
	}
	if from != nil && to != nil && to.Before(*from) {
		return nil, nil, appErrors.Clone(appErrors.ErrValidation, "date_to must not be before date_from")
	}
	return from, to, nil
}
