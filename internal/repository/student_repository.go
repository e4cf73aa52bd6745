package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/sma-attendance-api/internal/models"
)

const studentColumns = `id, external_number, first_name, last_name, middle_name, section_id, active, created_at, updated_at`

const studentDetailSelect = `SELECT s.id, s.external_number, s.first_name, s.last_name, s.middle_name, s.section_id, s.active, s.created_at, s.updated_at,
        sec.name AS section_name
        FROM students s LEFT JOIN sections sec ON sec.id = s.section_id`

// StudentRepository manages persistence for student records.
type StudentRepository struct {
	db *sqlx.DB
}

// NewStudentRepository constructs a StudentRepository.
func NewStudentRepository(db *sqlx.DB) *StudentRepository {
	return &StudentRepository{db: db}
}

// List returns students matching the provided filters.
func (r *StudentRepository) List(ctx context.Context, filter models.StudentFilter) ([]models.StudentDetail, int, error) {
	where := &whereBuilder{}
	if filter.SectionID != "" {
		where.add("s.section_id = $%d", filter.SectionID)
	}
	if filter.Active != nil {
		where.add("s.active = $%d", *filter.Active)
	}
	if filter.Search != "" {
		search := "%" + strings.ToLower(filter.Search) + "%"
		where.args = append(where.args, search)
		n := len(where.args)
		where.conditions = append(where.conditions,
			fmt.Sprintf("(LOWER(s.last_name) LIKE $%d OR LOWER(s.first_name) LIKE $%d OR LOWER(s.external_number) LIKE $%d)", n, n, n))
	}

	column := sortColumn(filter.SortBy, map[string]string{
		"last_name":       "s.last_name",
		"external_number": "s.external_number",
		"created_at":      "s.created_at",
	}, "last_name")
	order := sortOrder(filter.SortOrder, "ASC")
	_, size, offset := paging(filter.Page, filter.PageSize, 20, 100)

	query := fmt.Sprintf("%s WHERE %s ORDER BY %s %s, s.first_name ASC LIMIT %d OFFSET %d", studentDetailSelect, where.clause(), column, order, size, offset)
	var students []models.StudentDetail
	if err := r.db.SelectContext(ctx, &students, query, where.args...); err != nil {
		return nil, 0, fmt.Errorf("list students: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM students s WHERE %s", where.clause())
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, where.args...); err != nil {
		return nil, 0, fmt.Errorf("count students: %w", err)
	}
	return students, total, nil
}

// FindByID fetches a student detail by ID.
func (r *StudentRepository) FindByID(ctx context.Context, id string) (*models.StudentDetail, error) {
	var detail models.StudentDetail
	if err := r.db.GetContext(ctx, &detail, studentDetailSelect+" WHERE s.id = $1", id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find student: %w", err)
	}
	return &detail, nil
}

// ListByIDs returns the students with the given identifiers, active or not.
func (r *StudentRepository) ListByIDs(ctx context.Context, ids []string) ([]models.Student, error) {
	if len(ids) == 0 {
		return []models.Student{}, nil
	}
	query := `SELECT ` + studentColumns + ` FROM students WHERE id = ANY($1)`
	var students []models.Student
	if err := r.db.SelectContext(ctx, &students, query, pq.Array(ids)); err != nil {
		return nil, fmt.Errorf("list students by ids: %w", err)
	}
	return students, nil
}

// ListBySection returns the active roster of a section.
func (r *StudentRepository) ListBySection(ctx context.Context, sectionID string) ([]models.Student, error) {
	query := `SELECT ` + studentColumns + ` FROM students WHERE section_id = $1 AND active = TRUE ORDER BY last_name, first_name`
	var students []models.Student
	if err := r.db.SelectContext(ctx, &students, query, sectionID); err != nil {
		return nil, fmt.Errorf("list section roster: %w", err)
	}
	return students, nil
}

// ExistsByExternalNumber checks if a student number is taken, optionally excluding an ID.
func (r *StudentRepository) ExistsByExternalNumber(ctx context.Context, number, excludeID string) (bool, error) {
	query := "SELECT 1 FROM students WHERE external_number = $1"
	args := []interface{}{number}
	if excludeID != "" {
		query += " AND id <> $2"
		args = append(args, excludeID)
	}
	var exists int
	if err := r.db.GetContext(ctx, &exists, query+" LIMIT 1", args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("check external number: %w", err)
	}
	return true, nil
}

// Create inserts a new student record.
func (r *StudentRepository) Create(ctx context.Context, student *models.Student) error {
	if student.ID == "" {
		student.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	student.CreatedAt = now
	student.UpdatedAt = now
	const query = `INSERT INTO students (id, external_number, first_name, last_name, middle_name, section_id, active, created_at, updated_at)
        VALUES (:id, :external_number, :first_name, :last_name, :middle_name, :section_id, :active, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, student); err != nil {
		return fmt.Errorf("create student: %w", err)
	}
	return nil
}

// Update modifies an existing student.
func (r *StudentRepository) Update(ctx context.Context, student *models.Student) error {
	student.UpdatedAt = time.Now().UTC()
	const query = `UPDATE students SET external_number = :external_number, first_name = :first_name, last_name = :last_name, middle_name = :middle_name, section_id = :section_id, active = :active, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, student); err != nil {
		return fmt.Errorf("update student: %w", err)
	}
	return nil
}

// Deactivate marks a student inactive; attendance history is kept.
func (r *StudentRepository) Deactivate(ctx context.Context, id string) error {
	const query = `UPDATE students SET active = FALSE, updated_at = $2 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, time.Now().UTC()); err != nil {
		return fmt.Errorf("deactivate student: %w", err)
	}
	return nil
}

// UpsertRoster inserts or updates students by external number inside one transaction
// and reports how many rows were created and updated.
func (r *StudentRepository) UpsertRoster(ctx context.Context, students []models.Student) (created, updated int, err error) {
	if len(students) == 0 {
		return 0, 0, nil
	}
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, 0, fmt.Errorf("begin roster upsert: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	const query = `INSERT INTO students (id, external_number, first_name, last_name, middle_name, section_id, active, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, TRUE, $7, $7)
        ON CONFLICT (external_number) DO UPDATE SET first_name = EXCLUDED.first_name, last_name = EXCLUDED.last_name,
        middle_name = EXCLUDED.middle_name, section_id = EXCLUDED.section_id, active = TRUE, updated_at = EXCLUDED.updated_at
        RETURNING (xmax = 0) AS inserted`
	now := time.Now().UTC()
	for i := range students {
		st := &students[i]
		if st.ID == "" {
			st.ID = uuid.NewString()
		}
		var inserted bool
		if err = tx.QueryRowxContext(ctx, query, st.ID, st.ExternalNumber, st.FirstName, st.LastName, st.MiddleName, st.SectionID, now).Scan(&inserted); err != nil {
			return 0, 0, fmt.Errorf("upsert student %s: %w", st.ExternalNumber, err)
		}
		if inserted {
			created++
		} else {
			updated++
		}
	}
	if err = tx.Commit(); err != nil {
		return 0, 0, fmt.Errorf("commit roster upsert: %w", err)
	}
	return created, updated, nil
}
