package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-attendance-api/internal/models"
)

var sectionDetailColumns = []string{"id", "name", "grade_level", "school_year", "adviser_id", "created_at", "updated_at", "adviser_name", "adviser_email"}

func TestSectionRepositoryList(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewSectionRepository(db)

	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("WHERE sec.grade_level = $1 AND LOWER(sec.name) LIKE $2 ORDER BY sec.name ASC LIMIT 20 OFFSET 0")).
		WithArgs("11", "%riz%").
		WillReturnRows(sqlmock.NewRows(sectionDetailColumns).
			AddRow("sec-1", "Rizal", "11", "2024-2025", "u-1", now, now, "Maria Reyes", "adviser@school.test"))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM sections sec WHERE sec.grade_level = $1 AND LOWER(sec.name) LIKE $2")).
		WithArgs("11", "%riz%").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	sections, total, err := repo.List(context.Background(), models.SectionFilter{GradeLevel: "11", Search: "Riz"})
	require.NoError(t, err)
	require.Len(t, sections, 1)
	assert.Equal(t, 1, total)
	require.NotNil(t, sections[0].AdviserEmail)
	assert.Equal(t, "adviser@school.test", *sections[0].AdviserEmail)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSectionRepositoryExistsByName(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewSectionRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT 1 FROM sections WHERE LOWER(name) = LOWER($1) AND id <> $2 LIMIT 1")).
		WithArgs("Rizal", "sec-2").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(1))
	exists, err := repo.ExistsByName(context.Background(), "Rizal", "sec-2")
	require.NoError(t, err)
	assert.True(t, exists)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT 1 FROM sections WHERE LOWER(name) = LOWER($1) LIMIT 1")).
		WithArgs("Bonifacio").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}))
	exists, err = repo.ExistsByName(context.Background(), "Bonifacio", "")
	require.NoError(t, err)
	assert.False(t, exists)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSectionRepositoryListByIDs(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewSectionRepository(db)

	empty, err := repo.ListByIDs(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, empty)

	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("FROM sections WHERE id = ANY($1)")).
		WithArgs(sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "grade_level", "school_year", "adviser_id", "created_at", "updated_at"}).
			AddRow("sec-1", "Rizal", "11", "2024-2025", nil, now, now))
	sections, err := repo.ListByIDs(context.Background(), []string{"sec-1"})
	require.NoError(t, err)
	require.Len(t, sections, 1)
	assert.Nil(t, sections[0].AdviserID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSectionRepositoryAdvisedSectionIDs(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewSectionRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id FROM sections WHERE adviser_id = $1 ORDER BY name")).
		WithArgs("u-1").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("sec-1").AddRow("sec-2"))

	ids, err := repo.AdvisedSectionIDs(context.Background(), "u-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"sec-1", "sec-2"}, ids)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSectionRepositoryCreateAndDelete(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewSectionRepository(db)

	mock.ExpectExec("INSERT INTO sections").WillReturnResult(sqlmock.NewResult(1, 1))
	section := &models.Section{Name: "Rizal", GradeLevel: "11", SchoolYear: "2024-2025"}
	require.NoError(t, repo.Create(context.Background(), section))
	assert.NotEmpty(t, section.ID)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT EXISTS (SELECT 1 FROM students WHERE section_id = $1)")).
		WithArgs(section.ID).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
	has, err := repo.HasStudents(context.Background(), section.ID)
	require.NoError(t, err)
	assert.False(t, has)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM sections WHERE id = $1")).
		WithArgs(section.ID).
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, repo.Delete(context.Background(), section.ID))
	assert.NoError(t, mock.ExpectationsWereMet())
}
