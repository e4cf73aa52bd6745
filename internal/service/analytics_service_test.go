package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-attendance-api/internal/insight"
	"github.com/noah-isme/sma-attendance-api/internal/models"
	appErrors "github.com/noah-isme/sma-attendance-api/pkg/errors"
	"github.com/noah-isme/sma-attendance-api/pkg/jobs"
)

type stubCacheRepo struct {
	store map[string][]byte
}

func (s *stubCacheRepo) Get(_ context.Context, key string, dest interface{}) error {
	if s.store == nil {
		return appErrors.ErrCacheMiss
	}
	payload, ok := s.store[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(payload, dest)
}

func (s *stubCacheRepo) Set(_ context.Context, key string, value interface{}, _ time.Duration) error {
	if s.store == nil {
		s.store = make(map[string][]byte)
	}
	payload, err := json.Marshal(value)
	if err != nil {
		return err
	}
	s.store[key] = payload
	return nil
}

func (s *stubCacheRepo) DeleteByPattern(_ context.Context, pattern string) error {
	prefix := strings.TrimSuffix(pattern, "*")
	for key := range s.store {
		if strings.HasPrefix(key, prefix) {
			delete(s.store, key)
		}
	}
	return nil
}

func newAnalyticsFixture(records []models.AttendanceRecord, cacheRepo CacheRepository) (*AnalyticsService, *fakeAttendanceRepo, *CacheService) {
	repo := &fakeAttendanceRepo{window: records}
	metrics := NewMetricsService()
	loader := NewWindowLoader(repo, insightStudents(), newFakeSectionRepo(models.Section{ID: "sec-1", Name: "Rizal"}), metrics, nil)
	cacheSvc := NewCacheService(cacheRepo, metrics, time.Minute, zap.NewNop(), cacheRepo != nil)
	svc := NewAnalyticsService(loader, insight.NewEngine(insight.Options{}), cacheSvc, metrics, zap.NewNop(), AnalyticsOptions{DefaultLookback: 7})
	svc.now = func() time.Time { return time.Date(2024, 3, 5, 9, 0, 0, 0, time.UTC) }
	return svc, repo, cacheSvc
}

func TestAnalyticsServiceOverviewCaching(t *testing.T) {
	cacheRepo := &stubCacheRepo{}
	svc, repo, _ := newAnalyticsFixture(fiveStudentWindow(), cacheRepo)
	req := OverviewRequest{SectionID: "sec-1", DateFrom: "2024-03-04", DateTo: "2024-03-05"}
	ctx := context.Background()

	result, cacheHit, err := svc.Overview(ctx, req)
	require.NoError(t, err)
	assert.False(t, cacheHit)
	assert.Len(t, repo.windowCalls, 1)
	assert.InDelta(t, 60.0, result.Overall.Rate, 1e-9)
	assert.Len(t, result.Daily, 2)
	assert.Contains(t, cacheRepo.store, "analytics:sec-1:overview:2024-03-04:2024-03-05")

	cached, cacheHit, err := svc.Overview(ctx, req)
	require.NoError(t, err)
	assert.True(t, cacheHit)
	assert.Len(t, repo.windowCalls, 1)
	assert.Equal(t, result.Overall, cached.Overall)
	assert.Equal(t, result.TopAbsentees, cached.TopAbsentees)
}

func TestAnalyticsServiceOverviewInvalidatedBySection(t *testing.T) {
	cacheRepo := &stubCacheRepo{}
	svc, repo, cacheSvc := newAnalyticsFixture(fiveStudentWindow(), cacheRepo)
	ctx := context.Background()

	_, _, err := svc.Overview(ctx, OverviewRequest{})
	require.NoError(t, err)
	assert.Contains(t, cacheRepo.store, "analytics:all:overview:2024-02-28:2024-03-05")

	require.NoError(t, cacheSvc.InvalidateSection(ctx, "sec-1"))
	_, cacheHit, err := svc.Overview(ctx, OverviewRequest{})
	require.NoError(t, err)
	assert.False(t, cacheHit)
	assert.Len(t, repo.windowCalls, 2)
}

func TestAnalyticsServiceOverviewUnavailable(t *testing.T) {
	svc, repo, _ := newAnalyticsFixture(nil, nil)
	repo.windowErr = errors.New("timeout")

	_, _, err := svc.Overview(context.Background(), OverviewRequest{})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrDataUnavailable.Code, appErrors.FromError(err).Code)
}

func TestAnalyticsServiceOverviewRejectsBadRange(t *testing.T) {
	svc, repo, _ := newAnalyticsFixture(nil, nil)

	_, _, err := svc.Overview(context.Background(), OverviewRequest{DateFrom: "2024-03-05", DateTo: "2024-03-01"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
	assert.Empty(t, repo.windowCalls)
}

func TestAnalyticsServiceSystemMetrics(t *testing.T) {
	svc, _, _ := newAnalyticsFixture(fiveStudentWindow(), nil)
	_, _, err := svc.Overview(context.Background(), OverviewRequest{})
	require.NoError(t, err)

	snapshot := svc.SystemMetrics()
	assert.Equal(t, uint64(1), snapshot.DBQueryCount)
	assert.False(t, snapshot.GeneratedAt.IsZero())
	assert.Nil(t, snapshot.NotificationQueue)

	svc.WithNotificationQueue(stubQueueStats{stats: jobs.Stats{Enqueued: 3, Succeeded: 2, Pending: 1}})
	snapshot = svc.SystemMetrics()
	require.NotNil(t, snapshot.NotificationQueue)
	assert.Equal(t, uint64(3), snapshot.NotificationQueue.Enqueued)
	assert.Equal(t, 1, snapshot.NotificationQueue.Pending)
}

type stubQueueStats struct{ stats jobs.Stats }

func (s stubQueueStats) Stats() jobs.Stats { return s.stats }
