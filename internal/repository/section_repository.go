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

const sectionDetailSelect = `SELECT sec.id, sec.name, sec.grade_level, sec.school_year, sec.adviser_id, sec.created_at, sec.updated_at,
        u.full_name AS adviser_name, u.email AS adviser_email
        FROM sections sec LEFT JOIN users u ON u.id = sec.adviser_id`

// SectionRepository manages persistence for class sections.
type SectionRepository struct {
	db *sqlx.DB
}

// NewSectionRepository constructs a SectionRepository.
func NewSectionRepository(db *sqlx.DB) *SectionRepository {
	return &SectionRepository{db: db}
}

// List returns sections matching the filter with the total count.
func (r *SectionRepository) List(ctx context.Context, filter models.SectionFilter) ([]models.SectionDetail, int, error) {
	where := &whereBuilder{}
	if filter.GradeLevel != "" {
		where.add("sec.grade_level = $%d", filter.GradeLevel)
	}
	if filter.SchoolYear != "" {
		where.add("sec.school_year = $%d", filter.SchoolYear)
	}
	if filter.AdviserID != "" {
		where.add("sec.adviser_id = $%d", filter.AdviserID)
	}
	if filter.Search != "" {
		where.add("LOWER(sec.name) LIKE $%d", "%"+strings.ToLower(filter.Search)+"%")
	}

	column := sortColumn(filter.SortBy, map[string]string{
		"name":        "sec.name",
		"grade_level": "sec.grade_level",
		"created_at":  "sec.created_at",
	}, "name")
	order := sortOrder(filter.SortOrder, "ASC")
	_, size, offset := paging(filter.Page, filter.PageSize, 20, 100)

	query := fmt.Sprintf("%s WHERE %s ORDER BY %s %s LIMIT %d OFFSET %d", sectionDetailSelect, where.clause(), column, order, size, offset)
	var sections []models.SectionDetail
	if err := r.db.SelectContext(ctx, &sections, query, where.args...); err != nil {
		return nil, 0, fmt.Errorf("list sections: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM sections sec WHERE %s", where.clause())
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, where.args...); err != nil {
		return nil, 0, fmt.Errorf("count sections: %w", err)
	}
	return sections, total, nil
}

// All returns every section with adviser contact details, ordered by name.
func (r *SectionRepository) All(ctx context.Context) ([]models.SectionDetail, error) {
	var sections []models.SectionDetail
	if err := r.db.SelectContext(ctx, &sections, sectionDetailSelect+" ORDER BY sec.name ASC"); err != nil {
		return nil, fmt.Errorf("list all sections: %w", err)
	}
	return sections, nil
}

// FindByID fetches a section by identifier.
func (r *SectionRepository) FindByID(ctx context.Context, id string) (*models.SectionDetail, error) {
	var section models.SectionDetail
	if err := r.db.GetContext(ctx, &section, sectionDetailSelect+" WHERE sec.id = $1", id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find section: %w", err)
	}
	return &section, nil
}

// ListByIDs returns the sections with the given identifiers.
func (r *SectionRepository) ListByIDs(ctx context.Context, ids []string) ([]models.Section, error) {
	if len(ids) == 0 {
		return []models.Section{}, nil
	}
	const query = `SELECT id, name, grade_level, school_year, adviser_id, created_at, updated_at FROM sections WHERE id = ANY($1)`
	var sections []models.Section
	if err := r.db.SelectContext(ctx, &sections, query, pq.Array(ids)); err != nil {
		return nil, fmt.Errorf("list sections by ids: %w", err)
	}
	return sections, nil
}

// AdvisedSectionIDs returns the ids of sections the user advises.
func (r *SectionRepository) AdvisedSectionIDs(ctx context.Context, adviserID string) ([]string, error) {
	ids := []string{}
	if err := r.db.SelectContext(ctx, &ids, `SELECT id FROM sections WHERE adviser_id = $1 ORDER BY name`, adviserID); err != nil {
		return nil, fmt.Errorf("list advised sections: %w", err)
	}
	return ids, nil
}

// ExistsByName reports whether a section name is taken, optionally ignoring one id.
func (r *SectionRepository) ExistsByName(ctx context.Context, name, excludeID string) (bool, error) {
	query := "SELECT 1 FROM sections WHERE LOWER(name) = LOWER($1)"
	args := []interface{}{name}
	if excludeID != "" {
		query += " AND id <> $2"
		args = append(args, excludeID)
	}
	var exists int
	if err := r.db.GetContext(ctx, &exists, query+" LIMIT 1", args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("check section name: %w", err)
	}
	return true, nil
}

// HasStudents reports whether any student is rostered into the section.
func (r *SectionRepository) HasStudents(ctx context.Context, id string) (bool, error) {
	var exists bool
	if err := r.db.GetContext(ctx, &exists, `SELECT EXISTS (SELECT 1 FROM students WHERE section_id = $1)`, id); err != nil {
		return false, fmt.Errorf("check section students: %w", err)
	}
	return exists, nil
}

// Create inserts a section.
func (r *SectionRepository) Create(ctx context.Context, section *models.Section) error {
	if section.ID == "" {
		section.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	section.CreatedAt = now
	section.UpdatedAt = now
	const query = `INSERT INTO sections (id, name, grade_level, school_year, adviser_id, created_at, updated_at)
        VALUES (:id, :name, :grade_level, :school_year, :adviser_id, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, section); err != nil {
		return fmt.Errorf("create section: %w", err)
	}
	return nil
}

// Update modifies a section.
func (r *SectionRepository) Update(ctx context.Context, section *models.Section) error {
	section.UpdatedAt = time.Now().UTC()
	const query = `UPDATE sections SET name = :name, grade_level = :grade_level, school_year = :school_year, adviser_id = :adviser_id, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, section); err != nil {
		return fmt.Errorf("update section: %w", err)
	}
	return nil
}

// Delete removes a section.
func (r *SectionRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM sections WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete section: %w", err)
	}
	return nil
}
