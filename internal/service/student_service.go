package service

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"io"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-attendance-api/internal/models"
	appErrors "github.com/noah-isme/sma-attendance-api/pkg/errors"
	"github.com/noah-isme/sma-attendance-api/pkg/roster"
)

type studentRepository interface {
	List(ctx context.Context, filter models.StudentFilter) ([]models.StudentDetail, int, error)
	FindByID(ctx context.Context, id string) (*models.StudentDetail, error)
	ExistsByExternalNumber(ctx context.Context, number, excludeID string) (bool, error)
	Create(ctx context.Context, student *models.Student) error
	Update(ctx context.Context, student *models.Student) error
	Deactivate(ctx context.Context, id string) error
	UpsertRoster(ctx context.Context, students []models.Student) (created, updated int, err error)
}

type sectionFinder interface {
	FindByID(ctx context.Context, id string) (*models.SectionDetail, error)
}

type auditRecorder interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

// StudentRequest holds the payload for creating or updating students.
type StudentRequest struct {
	ExternalNumber string  `json:"external_number" validate:"required,max=50"`
	FirstName      string  `json:"first_name" validate:"required,max=100"`
	LastName       string  `json:"last_name" validate:"required,max=100"`
	MiddleName     *string `json:"middle_name" validate:"omitempty,max=100"`
	SectionID      string  `json:"section_id" validate:"required"`
	Active         *bool   `json:"active"`
}

// RosterImportRequest describes an uploaded roster file.
type RosterImportRequest struct {
	SectionID string
	FileName  string
	Body      io.Reader
	Actor     Actor
}

// RosterOptions limits roster imports.
type RosterOptions struct {
	MaxRows      int
	MaxFileBytes int64
}

// StudentService handles student use-cases.
type StudentService struct {
	repo      studentRepository
	sections  sectionFinder
	audit     auditRecorder
	validator *validator.Validate
	logger    *zap.Logger
	roster    RosterOptions
}

// NewStudentService constructs the student service.
func NewStudentService(repo studentRepository, sections sectionFinder, audit auditRecorder, validate *validator.Validate, logger *zap.Logger, opts RosterOptions) *StudentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.MaxRows <= 0 {
		opts.MaxRows = 2000
	}
	if opts.MaxFileBytes <= 0 {
		opts.MaxFileBytes = 5 << 20
	}
	return &StudentService{repo: repo, sections: sections, audit: audit, validator: validate, logger: logger, roster: opts}
}

// List returns students and pagination metadata.
func (s *StudentService) List(ctx context.Context, filter models.StudentFilter) ([]models.StudentDetail, *models.Pagination, error) {
	students, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list students")
	}
	return students, pagination(filter.Page, filter.PageSize, 20, total), nil
}

// Get returns detailed student information.
func (s *StudentService) Get(ctx context.Context, id string) (*models.StudentDetail, error) {
	student, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	return student, nil
}

// Create registers a new student.
func (s *StudentService) Create(ctx context.Context, req StudentRequest) (*models.Student, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid student payload")
	}
	if err := s.ensureSection(ctx, req.SectionID); err != nil {
		return nil, err
	}
	number := strings.TrimSpace(req.ExternalNumber)
	if err := s.ensureUniqueNumber(ctx, number, ""); err != nil {
		return nil, err
	}
	student := &models.Student{
		ExternalNumber: number,
		FirstName:      strings.TrimSpace(req.FirstName),
		LastName:       strings.TrimSpace(req.LastName),
		MiddleName:     trimmedOrNil(req.MiddleName),
		SectionID:      req.SectionID,
		Active:         true,
	}
	if err := s.repo.Create(ctx, student); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create student")
	}
	return student, nil
}

// Update changes student attributes.
func (s *StudentService) Update(ctx context.Context, id string, req StudentRequest) (*models.Student, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid student payload")
	}
	existing, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if req.SectionID != existing.SectionID {
		if err := s.ensureSection(ctx, req.SectionID); err != nil {
			return nil, err
		}
	}
	number := strings.TrimSpace(req.ExternalNumber)
	if err := s.ensureUniqueNumber(ctx, number, id); err != nil {
		return nil, err
	}
	student := existing.Student
	student.ExternalNumber = number
	student.FirstName = strings.TrimSpace(req.FirstName)
	student.LastName = strings.TrimSpace(req.LastName)
	student.MiddleName = trimmedOrNil(req.MiddleName)
	student.SectionID = req.SectionID
	if req.Active != nil {
		student.Active = *req.Active
	}
	if err := s.repo.Update(ctx, &student); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update student")
	}
	return &student, nil
}

// Deactivate marks a student inactive.
func (s *StudentService) Deactivate(ctx context.Context, id string) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	if err := s.repo.Deactivate(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to deactivate student")
	}
	return nil
}

// ImportRoster upserts the rows of a CSV or XLSX roster into a section. Rejected
// rows are reported in the result and do not stop the import.
func (s *StudentService) ImportRoster(ctx context.Context, req RosterImportRequest) (*models.RosterImportResult, error) {
	if strings.TrimSpace(req.SectionID) == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "section_id is required")
	}
	if err := s.ensureSection(ctx, req.SectionID); err != nil {
		return nil, err
	}

	body, err := io.ReadAll(io.LimitReader(req.Body, s.roster.MaxFileBytes+1))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "failed to read roster file")
	}
	if int64(len(body)) > s.roster.MaxFileBytes {
		return nil, appErrors.Clone(appErrors.ErrPayloadTooLarge, "roster file is too large")
	}

	parsed, err := roster.Parse(req.FileName, bytes.NewReader(body), s.roster.MaxRows)
	if err != nil {
		return nil, rosterError(err)
	}

	students := make([]models.Student, 0, len(parsed.Rows))
	for _, row := range parsed.Rows {
		middle := row.MiddleName
		students = append(students, models.Student{
			ExternalNumber: row.ExternalNumber,
			FirstName:      row.FirstName,
			LastName:       row.LastName,
			MiddleName:     trimmedOrNil(&middle),
			SectionID:      req.SectionID,
			Active:         true,
		})
	}

	created, updated, err := s.repo.UpsertRoster(ctx, students)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to import roster")
	}

	result := &models.RosterImportResult{
		SectionID: req.SectionID,
		Processed: len(parsed.Rows) + len(parsed.Errors),
		Created:   created,
		Updated:   updated,
	}
	for _, rowErr := range parsed.Errors {
		result.Errors = append(result.Errors, models.RosterRowError{Row: rowErr.Line, Reason: rowErr.Reason})
	}

	s.recordImport(ctx, req, result)
	s.logger.Info("roster imported",
		zap.String("section_id", req.SectionID),
		zap.Int("created", created),
		zap.Int("updated", updated),
		zap.Int("rejected", len(result.Errors)))
	return result, nil
}

func (s *StudentService) recordImport(ctx context.Context, req RosterImportRequest, result *models.RosterImportResult) {
	if s.audit == nil {
		return
	}
	entry := req.Actor.auditLog(models.AuditActionRosterImport, "section", req.SectionID, map[string]interface{}{
		"file":     req.FileName,
		"created":  result.Created,
		"updated":  result.Updated,
		"rejected": len(result.Errors),
	})
	if err := s.audit.CreateAuditLog(ctx, entry); err != nil {
		s.logger.Warn("failed to record roster import audit log", zap.Error(err))
	}
}

func (s *StudentService) ensureSection(ctx context.Context, sectionID string) error {
	if s.sections == nil {
		return nil
	}
	if _, err := s.sections.FindByID(ctx, sectionID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrValidation, "section does not exist")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load section")
	}
	return nil
}

func (s *StudentService) ensureUniqueNumber(ctx context.Context, number, excludeID string) error {
	exists, err := s.repo.ExistsByExternalNumber(ctx, number, excludeID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to validate external number")
	}
	if exists {
		return appErrors.Clone(appErrors.ErrConflict, "external number already used")
	}
	return nil
}

func rosterError(err error) error {
	switch {
	case errors.Is(err, roster.ErrUnsupportedFormat):
		return appErrors.Wrap(err, appErrors.ErrUnsupportedMedia.Code, appErrors.ErrUnsupportedMedia.Status, "roster must be a .csv or .xlsx file")
	case errors.Is(err, roster.ErrTooManyRows):
		return appErrors.Wrap(err, appErrors.ErrPayloadTooLarge.Code, appErrors.ErrPayloadTooLarge.Status, err.Error())
	default:
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, err.Error())
	}
}

func trimmedOrNil(v *string) *string {
	if v == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*v)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
