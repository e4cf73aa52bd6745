package service

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-attendance-api/internal/models"
	appErrors "github.com/noah-isme/sma-attendance-api/pkg/errors"
)

type fakeAttendanceRepo struct {
	submissions []models.AttendanceSubmission
	replaced    int
	replaceErr  error
	listFilter  models.AttendanceFilter
	history     []models.AttendanceHistoryRow
	window      []models.AttendanceRecord
	windowErr   error
	windowCalls []models.AttendanceWindowFilter
}

func (f *fakeAttendanceRepo) List(ctx context.Context, filter models.AttendanceFilter) ([]models.AttendanceRecordDetail, int, error) {
	f.listFilter = filter
	return []models.AttendanceRecordDetail{}, 0, nil
}

func (f *fakeAttendanceRepo) ReplaceSubmission(ctx context.Context, submission models.AttendanceSubmission) (int, error) {
	if f.replaceErr != nil {
		return 0, f.replaceErr
	}
	f.submissions = append(f.submissions, submission)
	return f.replaced, nil
}

func (f *fakeAttendanceRepo) StudentHistory(ctx context.Context, studentID string, from, to *time.Time) ([]models.AttendanceHistoryRow, error) {
	return f.history, nil
}

func (f *fakeAttendanceRepo) Window(ctx context.Context, filter models.AttendanceWindowFilter) ([]models.AttendanceRecord, error) {
	f.windowCalls = append(f.windowCalls, filter)
	if f.windowErr != nil {
		return nil, f.windowErr
	}
	out := []models.AttendanceRecord{}
	for _, rec := range f.window {
		if filter.SectionID != "" && rec.SectionID != filter.SectionID {
			continue
		}
		if filter.StudentID != "" && rec.StudentID != filter.StudentID {
			continue
		}
		out = append(out, rec)
	}
	return out, nil
}

type fakeProofRepo struct {
	proofs  map[string]*models.AttendanceProof
	created []*models.AttendanceProof
}

func (f *fakeProofRepo) FindByID(ctx context.Context, id string) (*models.AttendanceProof, error) {
	proof, ok := f.proofs[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return proof, nil
}

func (f *fakeProofRepo) Create(ctx context.Context, proof *models.AttendanceProof) error {
	proof.ID = "proof-new"
	f.created = append(f.created, proof)
	if f.proofs == nil {
		f.proofs = map[string]*models.AttendanceProof{}
	}
	f.proofs[proof.ID] = proof
	return nil
}

type fakeCacheRepo struct {
	values   map[string]interface{}
	patterns []string
}

func (f *fakeCacheRepo) Get(ctx context.Context, key string, dest interface{}) error {
	return appErrors.ErrCacheMiss
}

func (f *fakeCacheRepo) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if f.values == nil {
		f.values = map[string]interface{}{}
	}
	f.values[key] = value
	return nil
}

func (f *fakeCacheRepo) DeleteByPattern(ctx context.Context, pattern string) error {
	f.patterns = append(f.patterns, pattern)
	return nil
}

type attendanceFixture struct {
	svc    *AttendanceService
	repo   *fakeAttendanceRepo
	proofs *fakeProofRepo
	cache  *fakeCacheRepo
	audit  *fakeAudit
}

func newAttendanceFixture() attendanceFixture {
	repo := &fakeAttendanceRepo{replaced: 2}
	students := newFakeStudentRepo(
		models.Student{ID: "stu-1", ExternalNumber: "1", SectionID: "sec-1", Active: true},
		models.Student{ID: "stu-2", ExternalNumber: "2", SectionID: "sec-1", Active: true},
		models.Student{ID: "stu-3", ExternalNumber: "3", SectionID: "sec-2", Active: true},
	)
	sections := newFakeSectionRepo(models.Section{ID: "sec-1", Name: "Rizal"}, models.Section{ID: "sec-2", Name: "Mabini"})
	proofs := &fakeProofRepo{proofs: map[string]*models.AttendanceProof{
		"proof-1": {ID: "proof-1", SectionID: "sec-1", Date: time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)},
	}}
	cacheRepo := &fakeCacheRepo{}
	cache := NewCacheService(cacheRepo, nil, time.Minute, nil, true)
	audit := &fakeAudit{}
	svc := NewAttendanceService(repo, students, sections, proofs, cache, audit, nil, nil, AttendanceOptions{})
	svc.now = func() time.Time { return time.Date(2024, 3, 5, 9, 0, 0, 0, time.UTC) }
	return attendanceFixture{svc: svc, repo: repo, proofs: proofs, cache: cacheRepo, audit: audit}
}

func TestAttendanceServiceSubmit(t *testing.T) {
	fx := newAttendanceFixture()
	proofID := "proof-1"
	note := " sick "

	result, err := fx.svc.Submit(context.Background(), Actor{UserID: "u-1"}, SubmitAttendanceRequest{
		SectionID: "sec-1",
		Date:      "2024-03-04",
		ProofID:   &proofID,
		Items: []AttendanceItem{
			{StudentID: "stu-1", Status: "PRESENT"},
			{StudentID: "stu-2", Status: "absent", Notes: &note},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, result.Recorded)
	assert.Equal(t, 2, result.Replaced)
	assert.Equal(t, 1, result.Present)
	assert.Equal(t, 1, result.Absent)

	require.Len(t, fx.repo.submissions, 1)
	sub := fx.repo.submissions[0]
	assert.Equal(t, "u-1", sub.RecordedBy)
	assert.Equal(t, time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC), sub.Date)
	assert.Equal(t, models.AttendanceStatusPresent, sub.Records[0].Status)
	require.NotNil(t, sub.Records[1].Notes)
	assert.Equal(t, "sick", *sub.Records[1].Notes)

	assert.Equal(t, []string{"analytics:sec-1*", "analytics:all*"}, fx.cache.patterns)
	require.Len(t, fx.audit.logs, 1)
	assert.Equal(t, models.AuditActionAttendanceSubmit, fx.audit.logs[0].Action)
}

func TestAttendanceServiceSubmitRejectsDuplicates(t *testing.T) {
	fx := newAttendanceFixture()

	_, err := fx.svc.Submit(context.Background(), Actor{UserID: "u-1"}, SubmitAttendanceRequest{
		SectionID: "sec-1",
		Date:      "2024-03-04",
		Items: []AttendanceItem{
			{StudentID: "stu-1", Status: "present"},
			{StudentID: "stu-1", Status: "absent"},
		},
	})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
	assert.Contains(t, appErr.Message, "stu-1")
	assert.Empty(t, fx.repo.submissions)
}

func TestAttendanceServiceSubmitRejectsOutsiders(t *testing.T) {
	fx := newAttendanceFixture()

	_, err := fx.svc.Submit(context.Background(), Actor{UserID: "u-1"}, SubmitAttendanceRequest{
		SectionID: "sec-1",
		Date:      "2024-03-04",
		Items:     []AttendanceItem{{StudentID: "stu-3", Status: "present"}},
	})
	require.Error(t, err)
	assert.Contains(t, appErrors.FromError(err).Message, "not enrolled")
	assert.Empty(t, fx.repo.submissions)
}

func TestAttendanceServiceSubmitValidation(t *testing.T) {
	fx := newAttendanceFixture()
	otherProof := "proof-1"

	cases := map[string]SubmitAttendanceRequest{
		"bad status":     {SectionID: "sec-1", Date: "2024-03-04", Items: []AttendanceItem{{StudentID: "stu-1", Status: "late"}}},
		"bad date":       {SectionID: "sec-1", Date: "04/03/2024", Items: []AttendanceItem{{StudentID: "stu-1", Status: "present"}}},
		"future date":    {SectionID: "sec-1", Date: "2024-03-06", Items: []AttendanceItem{{StudentID: "stu-1", Status: "present"}}},
		"no items":       {SectionID: "sec-1", Date: "2024-03-04"},
		"proof mismatch": {SectionID: "sec-1", Date: "2024-03-05", ProofID: &otherProof, Items: []AttendanceItem{{StudentID: "stu-1", Status: "present"}}},
	}
	for name, req := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := fx.svc.Submit(context.Background(), Actor{UserID: "u-1"}, req)
			require.Error(t, err)
			assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
		})
	}
	assert.Empty(t, fx.repo.submissions)
}

func TestAttendanceServiceSubmitUnknownSection(t *testing.T) {
	fx := newAttendanceFixture()

	_, err := fx.svc.Submit(context.Background(), Actor{}, SubmitAttendanceRequest{
		SectionID: "sec-9",
		Date:      "2024-03-04",
		Items:     []AttendanceItem{{StudentID: "stu-1", Status: "present"}},
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestAttendanceServiceSubmitStoreFailure(t *testing.T) {
	fx := newAttendanceFixture()
	fx.repo.replaceErr = errors.New("tx aborted")

	_, err := fx.svc.Submit(context.Background(), Actor{}, SubmitAttendanceRequest{
		SectionID: "sec-1",
		Date:      "2024-03-04",
		Items:     []AttendanceItem{{StudentID: "stu-1", Status: "present"}},
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInternal.Code, appErrors.FromError(err).Code)
	assert.Empty(t, fx.cache.patterns)
}

func TestAttendanceServiceList(t *testing.T) {
	fx := newAttendanceFixture()
	status := "Absent"

	_, page, err := fx.svc.List(context.Background(), AttendanceListRequest{SectionID: "sec-1", Status: &status, DateFrom: "2024-03-01", DateTo: "2024-03-05"})
	require.NoError(t, err)
	assert.Equal(t, 50, page.PageSize)
	require.NotNil(t, fx.repo.listFilter.Status)
	assert.Equal(t, models.AttendanceStatusAbsent, *fx.repo.listFilter.Status)
	assert.Equal(t, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), *fx.repo.listFilter.DateFrom)

	_, _, err = fx.svc.List(context.Background(), AttendanceListRequest{DateFrom: "2024-03-05", DateTo: "2024-03-01"})
	require.Error(t, err)
}

func TestAttendanceServiceStudentHistory(t *testing.T) {
	fx := newAttendanceFixture()
	fx.repo.history = []models.AttendanceHistoryRow{{Status: models.AttendanceStatusPresent}}

	rows, err := fx.svc.StudentHistory(context.Background(), "stu-1", "", "")
	require.NoError(t, err)
	assert.Len(t, rows, 1)

	_, err = fx.svc.StudentHistory(context.Background(), "stu-9", "", "")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestAttendanceServiceSubmitUsesSchoolCalendarDay(t *testing.T) {
	fx := newAttendanceFixture()
	manila := time.FixedZone("PHT", 8*3600)
	// 07:30 on the 6th in Manila is still the 5th in UTC.
	fx.svc.now = func() time.Time { return time.Date(2024, 3, 6, 7, 30, 0, 0, manila) }

	result, err := fx.svc.Submit(context.Background(), Actor{UserID: "u-1"}, SubmitAttendanceRequest{
		SectionID: "sec-1",
		Date:      "2024-03-06",
		Items:     []AttendanceItem{{StudentID: "stu-1", Status: "present"}},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Recorded)
	require.Len(t, fx.repo.submissions, 1)
	assert.Equal(t, time.Date(2024, 3, 6, 0, 0, 0, 0, time.UTC), fx.repo.submissions[0].Date)

	_, err = fx.svc.Submit(context.Background(), Actor{UserID: "u-1"}, SubmitAttendanceRequest{
		SectionID: "sec-1",
		Date:      "2024-03-07",
		Items:     []AttendanceItem{{StudentID: "stu-1", Status: "present"}},
	})
	require.Error(t, err)
	assert.Contains(t, appErrors.FromError(err).Message, "future date")
}
