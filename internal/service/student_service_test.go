package service

import (
	"context"
	"database/sql"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-attendance-api/internal/models"
	appErrors "github.com/noah-isme/sma-attendance-api/pkg/errors"
)

type fakeStudentRepo struct {
	students    map[string]*models.StudentDetail
	numbers     map[string]string
	upserted    []models.Student
	deactivated []string
}

func newFakeStudentRepo(students ...models.Student) *fakeStudentRepo {
	repo := &fakeStudentRepo{students: map[string]*models.StudentDetail{}, numbers: map[string]string{}}
	for _, st := range students {
		repo.students[st.ID] = &models.StudentDetail{Student: st}
		repo.numbers[st.ExternalNumber] = st.ID
	}
	return repo
}

func (f *fakeStudentRepo) List(ctx context.Context, filter models.StudentFilter) ([]models.StudentDetail, int, error) {
	out := []models.StudentDetail{}
	for _, st := range f.students {
		if filter.SectionID == "" || st.SectionID == filter.SectionID {
			out = append(out, *st)
		}
	}
	return out, len(out), nil
}

func (f *fakeStudentRepo) FindByID(ctx context.Context, id string) (*models.StudentDetail, error) {
	st, ok := f.students[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	out := *st
	return &out, nil
}

func (f *fakeStudentRepo) ListByIDs(ctx context.Context, ids []string) ([]models.Student, error) {
	out := []models.Student{}
	for _, id := range ids {
		if st, ok := f.students[id]; ok {
			out = append(out, st.Student)
		}
	}
	return out, nil
}

func (f *fakeStudentRepo) ListBySection(ctx context.Context, sectionID string) ([]models.Student, error) {
	out := []models.Student{}
	for _, st := range f.students {
		if st.SectionID == sectionID && st.Active {
			out = append(out, st.Student)
		}
	}
	return out, nil
}

func (f *fakeStudentRepo) ExistsByExternalNumber(ctx context.Context, number, excludeID string) (bool, error) {
	id, ok := f.numbers[number]
	return ok && id != excludeID, nil
}

func (f *fakeStudentRepo) Create(ctx context.Context, student *models.Student) error {
	student.ID = "stu-new"
	f.students[student.ID] = &models.StudentDetail{Student: *student}
	f.numbers[student.ExternalNumber] = student.ID
	return nil
}

func (f *fakeStudentRepo) Update(ctx context.Context, student *models.Student) error {
	f.students[student.ID] = &models.StudentDetail{Student: *student}
	return nil
}

func (f *fakeStudentRepo) Deactivate(ctx context.Context, id string) error {
	f.deactivated = append(f.deactivated, id)
	return nil
}

func (f *fakeStudentRepo) UpsertRoster(ctx context.Context, students []models.Student) (int, int, error) {
	f.upserted = append(f.upserted, students...)
	created, updated := 0, 0
	for _, st := range students {
		if _, ok := f.numbers[st.ExternalNumber]; ok {
			updated++
		} else {
			created++
		}
	}
	return created, updated, nil
}

type fakeAudit struct {
	logs []*models.AuditLog
}

func (f *fakeAudit) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	f.logs = append(f.logs, log)
	return nil
}

func newStudentFixture(students ...models.Student) (*StudentService, *fakeStudentRepo, *fakeAudit) {
	repo := newFakeStudentRepo(students...)
	sections := newFakeSectionRepo(models.Section{ID: "sec-1", Name: "Rizal"}, models.Section{ID: "sec-2", Name: "Mabini"})
	audit := &fakeAudit{}
	return NewStudentService(repo, sections, audit, nil, nil, RosterOptions{MaxRows: 10, MaxFileBytes: 1024}), repo, audit
}

func TestStudentServiceCreate(t *testing.T) {
	svc, _, _ := newStudentFixture(models.Student{ID: "stu-1", ExternalNumber: "2024-001", SectionID: "sec-1"})
	middle := "  "

	created, err := svc.Create(context.Background(), StudentRequest{ExternalNumber: "2024-002", FirstName: "Ana", LastName: "Cruz", MiddleName: &middle, SectionID: "sec-1"})
	require.NoError(t, err)
	assert.Equal(t, "stu-new", created.ID)
	assert.Nil(t, created.MiddleName)
	assert.True(t, created.Active)

	_, err = svc.Create(context.Background(), StudentRequest{ExternalNumber: "2024-001", FirstName: "Ana", LastName: "Cruz", SectionID: "sec-1"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)

	_, err = svc.Create(context.Background(), StudentRequest{ExternalNumber: "2024-003", FirstName: "Ana", LastName: "Cruz", SectionID: "sec-9"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestStudentServiceUpdateAndDeactivate(t *testing.T) {
	svc, repo, _ := newStudentFixture(models.Student{ID: "stu-1", ExternalNumber: "2024-001", FirstName: "Ana", LastName: "Cruz", SectionID: "sec-1", Active: true})
	inactive := false

	updated, err := svc.Update(context.Background(), "stu-1", StudentRequest{ExternalNumber: "2024-001", FirstName: "Ana", LastName: "Reyes", SectionID: "sec-2", Active: &inactive})
	require.NoError(t, err)
	assert.Equal(t, "Reyes", updated.LastName)
	assert.Equal(t, "sec-2", updated.SectionID)
	assert.False(t, updated.Active)

	require.NoError(t, svc.Deactivate(context.Background(), "stu-1"))
	assert.Equal(t, []string{"stu-1"}, repo.deactivated)

	err = svc.Deactivate(context.Background(), "missing")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestStudentServiceImportRosterPartial(t *testing.T) {
	svc, repo, audit := newStudentFixture(models.Student{ID: "stu-1", ExternalNumber: "2024-001", SectionID: "sec-1"})
	csv := "external_number,last_name,first_name,middle_name\n" +
		"2024-001,Cruz,Ana,\n" +
		"2024-002,Reyes,Ben,Luna\n" +
		"2024-003,,Carl,\n" +
		"2024-002,Reyes,Ben,\n"

	result, err := svc.ImportRoster(context.Background(), RosterImportRequest{
		SectionID: "sec-1",
		FileName:  "roster.csv",
		Body:      strings.NewReader(csv),
		Actor:     Actor{UserID: "u-1", IP: "10.0.0.2"},
	})
	require.NoError(t, err)
	assert.Equal(t, 4, result.Processed)
	assert.Equal(t, 1, result.Created)
	assert.Equal(t, 1, result.Updated)
	require.Len(t, result.Errors, 2)
	assert.Equal(t, 3, result.Errors[0].Row)
	assert.Equal(t, "missing last_name", result.Errors[0].Reason)
	assert.Contains(t, result.Errors[1].Reason, "duplicate external_number 2024-002")

	require.Len(t, repo.upserted, 2)
	assert.Nil(t, repo.upserted[0].MiddleName)
	require.NotNil(t, repo.upserted[1].MiddleName)
	assert.Equal(t, "Luna", *repo.upserted[1].MiddleName)
	assert.Equal(t, "sec-1", repo.upserted[1].SectionID)

	require.Len(t, audit.logs, 1)
	assert.Equal(t, models.AuditActionRosterImport, audit.logs[0].Action)
	assert.Equal(t, "sec-1", *audit.logs[0].ResourceID)
}

func TestStudentServiceImportRosterRejections(t *testing.T) {
	svc, _, audit := newStudentFixture()

	_, err := svc.ImportRoster(context.Background(), RosterImportRequest{SectionID: "sec-1", FileName: "roster.txt", Body: strings.NewReader("x")})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrUnsupportedMedia.Code, appErrors.FromError(err).Code)

	_, err = svc.ImportRoster(context.Background(), RosterImportRequest{SectionID: "sec-1", FileName: "roster.csv", Body: strings.NewReader("first_name\nAna\n")})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	_, err = svc.ImportRoster(context.Background(), RosterImportRequest{SectionID: "sec-1", FileName: "roster.csv", Body: strings.NewReader(strings.Repeat("a", 2048))})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrPayloadTooLarge.Code, appErrors.FromError(err).Code)

	_, err = svc.ImportRoster(context.Background(), RosterImportRequest{SectionID: "sec-9", FileName: "roster.csv", Body: strings.NewReader("")})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	assert.Empty(t, audit.logs)
}
