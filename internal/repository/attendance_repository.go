package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sma-attendance-api/internal/models"
)

const attendanceDetailFrom = `FROM attendance_records ar
JOIN students s ON s.id = ar.student_id
JOIN sections sec ON sec.id = ar.section_id`

// AttendanceRepository handles persistence for daily attendance records.
type AttendanceRepository struct {
	db *sqlx.DB
}

// NewAttendanceRepository constructs the repository.
func NewAttendanceRepository(db *sqlx.DB) *AttendanceRepository {
	return &AttendanceRepository{db: db}
}

// List returns attendance rows matching the provided filter.
func (r *AttendanceRepository) List(ctx context.Context, filter models.AttendanceFilter) ([]models.AttendanceRecordDetail, int, error) {
	where := &whereBuilder{}
	if filter.SectionID != "" {
		where.add("ar.section_id = $%d", filter.SectionID)
	}
	if filter.StudentID != "" {
		where.add("ar.student_id = $%d", filter.StudentID)
	}
	if filter.Status != nil && filter.Status.Valid() {
		where.add("ar.status = $%d", *filter.Status)
	}
	if filter.DateFrom != nil {
		where.add("ar.date >= $%d", *filter.DateFrom)
	}
	if filter.DateTo != nil {
		where.add("ar.date <= $%d", *filter.DateTo)
	}

	column := sortColumn(filter.SortBy, map[string]string{
		"date":       "ar.date",
		"status":     "ar.status",
		"student":    "s.last_name",
		"created_at": "ar.created_at",
	}, "date")
	order := sortOrder(filter.SortOrder, "DESC")
	_, size, offset := paging(filter.Page, filter.PageSize, 50, 200)

	query := fmt.Sprintf(`SELECT ar.id, ar.student_id, ar.section_id, ar.date, ar.status, ar.notes, ar.proof_id, ar.recorded_by, ar.created_at, ar.updated_at,
        CONCAT_WS(' ', s.first_name, NULLIF(s.middle_name, ''), s.last_name) AS student_name, s.external_number, sec.name AS section_name
        %s WHERE %s
        ORDER BY %s %s, s.last_name ASC
        LIMIT %d OFFSET %d`, attendanceDetailFrom, where.clause(), column, order, size, offset)

	var rows []models.AttendanceRecordDetail
	if err := r.db.SelectContext(ctx, &rows, query, where.args...); err != nil {
		return nil, 0, fmt.Errorf("list attendance: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s WHERE %s", attendanceDetailFrom, where.clause())
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, where.args...); err != nil {
		return nil, 0, fmt.Errorf("count attendance: %w", err)
	}
	return rows, total, nil
}

// Window returns the raw records for an analytics window, oldest first.
func (r *AttendanceRepository) Window(ctx context.Context, filter models.AttendanceWindowFilter) ([]models.AttendanceRecord, error) {
	where := &whereBuilder{}
	where.add("date >= $%d", filter.DateFrom)
	where.add("date <= $%d", filter.DateTo)
	if filter.SectionID != "" {
		where.add("section_id = $%d", filter.SectionID)
	}
	if filter.StudentID != "" {
		where.add("student_id = $%d", filter.StudentID)
	}

	query := fmt.Sprintf(`SELECT id, student_id, section_id, date, status, notes, proof_id, recorded_by, created_at, updated_at
        FROM attendance_records WHERE %s ORDER BY date ASC, student_id ASC`, where.clause())
	records := []models.AttendanceRecord{}
	if err := r.db.SelectContext(ctx, &records, query, where.args...); err != nil {
		return nil, fmt.Errorf("attendance window: %w", err)
	}
	return records, nil
}

// ReplaceSubmission deletes every record of the section for the day and inserts the
// submitted ones in a single transaction.
func (r *AttendanceRepository) ReplaceSubmission(ctx context.Context, submission models.AttendanceSubmission) (replaced int, err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin attendance submission: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	res, err := tx.ExecContext(ctx, `DELETE FROM attendance_records WHERE section_id = $1 AND date = $2`, submission.SectionID, submission.Date)
	if err != nil {
		return 0, fmt.Errorf("clear attendance submission: %w", err)
	}
	deleted, _ := res.RowsAffected()

	const insert = `INSERT INTO attendance_records (id, student_id, section_id, date, status, notes, proof_id, recorded_by, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $9)`
	now := time.Now().UTC()
	for i := range submission.Records {
		rec := &submission.Records[i]
		if rec.ID == "" {
			rec.ID = uuid.NewString()
		}
		rec.SectionID = submission.SectionID
		rec.Date = submission.Date
		rec.RecordedBy = submission.RecordedBy
		if rec.ProofID == nil {
			rec.ProofID = submission.ProofID
		}
		rec.CreatedAt, rec.UpdatedAt = now, now
		if _, err = tx.ExecContext(ctx, insert, rec.ID, rec.StudentID, rec.SectionID, rec.Date, rec.Status, rec.Notes, rec.ProofID, rec.RecordedBy, now); err != nil {
			return 0, fmt.Errorf("insert attendance for student %s: %w", rec.StudentID, err)
		}
	}
	if err = tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit attendance submission: %w", err)
	}
	return int(deleted), nil
}

// StudentHistory returns attendance history for a student, newest first.
func (r *AttendanceRepository) StudentHistory(ctx context.Context, studentID string, from, to *time.Time) ([]models.AttendanceHistoryRow, error) {
	where := &whereBuilder{}
	where.add("student_id = $%d", studentID)
	if from != nil {
		where.add("date >= $%d", *from)
	}
	if to != nil {
		where.add("date <= $%d", *to)
	}
	query := fmt.Sprintf(`SELECT date, status, notes
FROM attendance_records
WHERE %s
ORDER BY date DESC`, where.clause())
	rows := []models.AttendanceHistoryRow{}
	if err := r.db.SelectContext(ctx, &rows, query, where.args...); err != nil {
		return nil, fmt.Errorf("student attendance history: %w", err)
	}
	return rows, nil
}
