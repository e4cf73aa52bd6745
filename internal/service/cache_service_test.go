package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	appErrors "github.com/noah-isme/sma-attendance-api/pkg/errors"
)

type memoryCache struct {
	values   map[string][]byte
	getErr   error
	ttls     map[string]time.Duration
	patterns []string
}

func newMemoryCache() *memoryCache {
	return &memoryCache{values: map[string][]byte{}, ttls: map[string]time.Duration{}}
}

func (m *memoryCache) Get(_ context.Context, key string, dest interface{}) error {
	if m.getErr != nil {
		return m.getErr
	}
	raw, ok := m.values[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(raw, dest)
}

func (m *memoryCache) Set(_ context.Context, key string, value interface{}, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.values[key] = raw
	m.ttls[key] = ttl
	return nil
}

func (m *memoryCache) DeleteByPattern(_ context.Context, pattern string) error {
	m.patterns = append(m.patterns, pattern)
	return nil
}

func TestCacheServiceHitAndMiss(t *testing.T) {
	repo := newMemoryCache()
	metrics := NewMetricsService()
	svc := NewCacheService(repo, metrics, time.Minute, zap.NewNop(), true)
	ctx := context.Background()

	var out map[string]int
	hit, err := svc.Get(ctx, "analytics:sec-1", &out)
	require.NoError(t, err)
	assert.False(t, hit)

	require.NoError(t, svc.Set(ctx, "analytics:sec-1", map[string]int{"present": 4}, 0))
	assert.Equal(t, time.Minute, repo.ttls["analytics:sec-1"])

	hit, err = svc.Get(ctx, "analytics:sec-1", &out)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, 4, out["present"])
}

func TestCacheServiceBackendFailureIsReported(t *testing.T) {
	repo := newMemoryCache()
	repo.getErr = errors.New("connection refused")
	svc := NewCacheService(repo, nil, 0, nil, true)

	var out map[string]int
	hit, err := svc.Get(context.Background(), "analytics:all", &out)
	assert.False(t, hit)
	assert.Error(t, err)
}

func TestCacheServiceDisabledIsNoop(t *testing.T) {
	repo := newMemoryCache()
	svc := NewCacheService(repo, nil, time.Minute, nil, false)
	ctx := context.Background()

	require.NoError(t, svc.Set(ctx, "k", 1, 0))
	assert.Empty(t, repo.values)
	require.NoError(t, svc.InvalidateSection(ctx, "sec-1"))
	assert.Empty(t, repo.patterns)

	var nilSvc *CacheService
	assert.False(t, nilSvc.Enabled())
}

func TestCacheServiceInvalidateSection(t *testing.T) {
	repo := newMemoryCache()
	svc := NewCacheService(repo, nil, time.Minute, nil, true)

	require.NoError(t, svc.InvalidateSection(context.Background(), "sec-1"))
	assert.Equal(t, []string{"analytics:sec-1*", "analytics:all*"}, repo.patterns)
}

func TestCacheKey(t *testing.T) {
	assert.Equal(t, "analytics:sec-1:2024-05-01", CacheKey("analytics", "sec-1", "", "2024-05-01"))
	assert.Equal(t, "analytics:a|b", CacheKey("analytics", "a:b"))
}
