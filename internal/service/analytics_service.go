package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/sma-attendance-api/internal/insight"
	"github.com/noah-isme/sma-attendance-api/internal/models"
	"github.com/noah-isme/sma-attendance-api/pkg/jobs"
)

type queueStatsReader interface {
	Stats() jobs.Stats
}

// OverviewRequest scopes the dashboard overview. Empty dates use the default lookback.
type OverviewRequest struct {
	SectionID string `form:"section_id"`
	DateFrom  string `form:"date_from"`
	DateTo    string `form:"date_to"`
}

// AnalyticsService provides read-optimised access to attendance analytics with cache integration.
type AnalyticsService struct {
	loader   *WindowLoader
	engine   *insight.Engine
	cache    *CacheService
	metrics  *MetricsService
	queue    queueStatsReader
	logger   *zap.Logger
	lookback int
	maxRange int
	cacheTTL time.Duration
	now      func() time.Time
}

// AnalyticsOptions configures window defaults and caching.
type AnalyticsOptions struct {
	DefaultLookback int
	MaxRangeDays    int
	CacheTTL        time.Duration
	Location        *time.Location
}

// NewAnalyticsService constructs an analytics service sharing the insight engine.
func NewAnalyticsService(loader *WindowLoader, engine *insight.Engine, cache *CacheService, metrics *MetricsService, logger *zap.Logger, opts AnalyticsOptions) *AnalyticsService {
	if engine == nil {
		engine = insight.NewEngine(insight.Options{})
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.MaxRangeDays <= 0 {
		opts.MaxRangeDays = 366
	}
	return &AnalyticsService{
		loader:   loader,
		engine:   engine,
		cache:    cache,
		metrics:  metrics,
		logger:   logger,
		lookback: opts.DefaultLookback,
		maxRange: opts.MaxRangeDays,
		cacheTTL: opts.CacheTTL,
		now:      schoolClock(opts.Location),
	}
}

// Overview returns aggregated attendance analytics. The boolean indicates whether data originated from cache.
func (s *AnalyticsService) Overview(ctx context.Context, req OverviewRequest) (*insight.Overview, bool, error) {
	scope, err := s.scope(req)
	if err != nil {
		return nil, false, err
	}

	cacheKey := overviewCacheKey(scope)
	var cached insight.Overview
	if hit, err := s.cache.Get(ctx, cacheKey, &cached); err == nil && hit {
		return &cached, true, nil
	}

	window, lookups, err := s.loader.Load(ctx, scope)
	if err != nil {
		s.logger.Error("analytics overview unavailable", zap.String("section_id", scope.SectionID), zap.Error(err))
		return nil, false, err
	}
	overview := s.engine.Overview(window, lookups)
	if err := s.cache.Set(ctx, cacheKey, overview, s.cacheTTL); err != nil {
		s.logger.Warn("cache analytics overview", zap.Error(err))
	}
	return &overview, false, nil
}

// WithNotificationQueue includes the queue counters in SystemMetrics.
func (s *AnalyticsService) WithNotificationQueue(queue queueStatsReader) *AnalyticsService {
	s.queue = queue
	return s
}

// SystemMetrics returns system instrumentation snapshot.
func (s *AnalyticsService) SystemMetrics() models.AnalyticsSystemMetrics {
	snapshot := s.metrics.Snapshot()
	if s.queue != nil {
		stats := s.queue.Stats()
		snapshot.NotificationQueue = &models.QueueStats{
			Enqueued:  stats.Enqueued,
			Succeeded: stats.Succeeded,
			Retried:   stats.Retried,
			Dropped:   stats.Dropped,
			Pending:   stats.Pending,
		}
	}
	return snapshot
}

func (s *AnalyticsService) scope(req OverviewRequest) (WindowScope, error) {
	return buildScope(req.SectionID, "", req.DateFrom, req.DateTo, s.now(), s.lookback, s.maxRange)
}

// overviewCacheKey is rooted at the section so attendance submissions can drop it.
func overviewCacheKey(scope WindowScope) string {
	section := scope.SectionID
	if section == "" {
		section = allSectionsKey
	}
	return CacheKey(analyticsCachePrefix, section, "overview",
		scope.From.Format(models.DateLayout), scope.To.Format(models.DateLayout))
}
