package service

import (
	"context"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-attendance-api/internal/insight"
	"github.com/noah-isme/sma-attendance-api/internal/models"
	appErrors "github.com/noah-isme/sma-attendance-api/pkg/errors"
)

type transcriptRepository interface {
	Create(ctx context.Context, entry *models.InsightTranscript) error
	ListByUser(ctx context.Context, userID string, limit int) ([]models.InsightTranscript, error)
}

// InsightOptions tunes the insight engine and its defaults.
type InsightOptions struct {
	Thresholds      insight.Thresholds
	TrendWindow     int
	RankLimit       int
	DefaultLookback int
	MaxRangeDays    int
	HistoryLimit    int
	Location        *time.Location
}

// InsightQueryRequest is a free-text question about attendance in a window.
type InsightQueryRequest struct {
	Query     string `json:"query" validate:"required,max=500"`
	SectionID string `json:"section_id"`
	StudentID string `json:"student_id"`
	DateFrom  string `json:"date_from"`
	DateTo    string `json:"date_to"`
}

// InsightService answers attendance questions and keeps a per-user transcript.
type InsightService struct {
	loader      *WindowLoader
	transcripts transcriptRepository
	engine      *insight.Engine
	enrichers   []insight.Enricher
	metrics     *MetricsService
	validator   *validator.Validate
	logger      *zap.Logger
	opts        InsightOptions
	now         func() time.Time
}

// NewInsightService constructs the insight service. Enrichers run in order after
// the engine.
func NewInsightService(loader *WindowLoader, transcripts transcriptRepository, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger, opts InsightOptions, enrichers ...insight.Enricher) *InsightService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.DefaultLookback <= 0 {
		opts.DefaultLookback = 30
	}
	if opts.MaxRangeDays <= 0 {
		opts.MaxRangeDays = 366
	}
	if opts.HistoryLimit <= 0 {
		opts.HistoryLimit = 20
	}
	return &InsightService{
		loader:      loader,
		transcripts: transcripts,
		engine: insight.NewEngine(insight.Options{
			Thresholds:  opts.Thresholds,
			TrendWindow: opts.TrendWindow,
			RankLimit:   opts.RankLimit,
		}),
		enrichers: enrichers,
		metrics:   metrics,
		validator: validate,
		logger:    logger,
		opts:      opts,
		now:       schoolClock(opts.Location),
	}
}

// Engine exposes the configured engine.
func (s *InsightService) Engine() *insight.Engine {
	return s.engine
}

// Ask answers a question for the authenticated user and records it in their history.
func (s *InsightService) Ask(ctx context.Context, actor Actor, req InsightQueryRequest) (*insight.Insight, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid insight query")
	}
	scope, err := s.scope(req)
	if err != nil {
		return nil, err
	}

	result, err := s.Compute(ctx, req.Query, scope)
	if err != nil {
		return nil, err
	}

	entry := &models.InsightTranscript{
		UserID:  actor.UserID,
		Query:   strings.TrimSpace(req.Query),
		Intent:  string(result.Intent),
		Summary: result.Summary,
	}
	if req.SectionID != "" {
		sectionID := req.SectionID
		entry.SectionID = &sectionID
	}
	if err := s.transcripts.Create(ctx, entry); err != nil {
		s.logger.Warn("failed to store insight transcript", zap.String("user_id", actor.UserID), zap.Error(err))
	}
	return &result, nil
}

// Compute loads the window for scope and answers query without touching history.
func (s *InsightService) Compute(ctx context.Context, query string, scope WindowScope) (insight.Insight, error) {
	window, lookups, err := s.loader.Load(ctx, scope)
	if err != nil {
		s.logger.Error("attendance window unavailable", zap.String("section_id", scope.SectionID), zap.Error(err))
		return insight.Insight{}, err
	}
	start := time.Now()
	result := s.engine.Compute(query, window, lookups)
	s.metrics.ObserveInsight(string(result.Intent), time.Since(start))
	return s.enrich(ctx, result), nil
}

// History returns the user's most recent questions.
func (s *InsightService) History(ctx context.Context, userID string, limit int) ([]models.InsightTranscript, error) {
	if limit <= 0 {
		limit = s.opts.HistoryLimit
	}
	entries, err := s.transcripts.ListByUser(ctx, userID, limit)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load insight history")
	}
	return entries, nil
}

// enrich applies each enricher in turn. A failing enricher is skipped and the
// insight it received is kept.
func (s *InsightService) enrich(ctx context.Context, in insight.Insight) insight.Insight {
	current := in
	for _, enricher := range s.enrichers {
		out, err := enricher.Enrich(ctx, current)
		if err != nil {
			s.metrics.RecordEnrichFailure()
			s.logger.Warn("insight enrichment failed", zap.String("intent", string(current.Intent)), zap.Error(err))
			continue
		}
		current = out
	}
	return current
}

func (s *InsightService) scope(req InsightQueryRequest) (WindowScope, error) {
	return buildScope(req.SectionID, req.StudentID, req.DateFrom, req.DateTo, s.now(), s.opts.DefaultLookback, s.opts.MaxRangeDays)
}
