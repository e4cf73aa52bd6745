package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-attendance-api/internal/insight"
	"github.com/noah-isme/sma-attendance-api/internal/models"
	appErrors "github.com/noah-isme/sma-attendance-api/pkg/errors"
	"github.com/noah-isme/sma-attendance-api/pkg/notify"
)

const digestQuery = "attendance summary"

type sectionLister interface {
	All(ctx context.Context) ([]models.SectionDetail, error)
}

type insightComputer interface {
	Compute(ctx context.Context, query string, scope WindowScope) (insight.Insight, error)
}

type notificationEnqueuer interface {
	Enqueue(ctx context.Context, msg notify.Message) (string, error)
}

// DigestConfig configures the scheduled section digest.
type DigestConfig struct {
	Schedule     string
	LookbackDays int
	RunTimeout   time.Duration
	Location     *time.Location
}

// DigestScheduler periodically reviews every section and alerts its adviser.
type DigestScheduler struct {
	sections      sectionLister
	insights      insightComputer
	notifications notificationEnqueuer
	logger        *zap.Logger
	cfg           DigestConfig
	cron          *cron.Cron
	now           func() time.Time
}

// NewDigestScheduler constructs a scheduler. Call Start to register the cron job.
func NewDigestScheduler(sections sectionLister, insights insightComputer, notifications notificationEnqueuer, logger *zap.Logger, cfg DigestConfig) *DigestScheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Schedule == "" {
		cfg.Schedule = "0 7 * * 1-5"
	}
	if cfg.LookbackDays <= 0 {
		cfg.LookbackDays = 7
	}
	if cfg.RunTimeout <= 0 {
		cfg.RunTimeout = 4 * time.Minute
	}
	return &DigestScheduler{
		sections:      sections,
		insights:      insights,
		notifications: notifications,
		logger:        logger,
		cfg:           cfg,
		cron:          newDigestCron(cfg.Location, logger),
		now:           schoolClock(cfg.Location),
	}
}

func newDigestCron(loc *time.Location, logger *zap.Logger) *cron.Cron {
	if loc == nil {
		loc = time.UTC
	}
	cronLog := cronLogger{logger: logger.Sugar().Named("cron")}
	return cron.New(
		cron.WithLocation(loc),
		cron.WithLogger(cronLog),
		cron.WithChain(cron.Recover(cronLog), cron.SkipIfStillRunning(cronLog)),
	)
}

// cronLogger sends robfig/cron diagnostics to zap. Scheduler chatter goes to debug.
type cronLogger struct {
	logger *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Errorw(msg, append(keysAndValues, "error", err)...)
}

// Start registers the digest job and starts the cron runner.
func (d *DigestScheduler) Start() error {
	_, err := d.cron.AddFunc(d.cfg.Schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), d.cfg.RunTimeout)
		defer cancel()
		if _, err := d.RunOnce(ctx); err != nil {
			d.logger.Error("attendance digest failed", zap.Error(err))
		}
	})
	if err != nil {
		return fmt.Errorf("register digest schedule %q: %w", d.cfg.Schedule, err)
	}
	d.cron.Start()
	d.logger.Info("attendance digest scheduled", zap.String("schedule", d.cfg.Schedule), zap.Int("lookback_days", d.cfg.LookbackDays))
	return nil
}

// Stop halts the scheduler and waits for a running digest to finish or ctx to end.
func (d *DigestScheduler) Stop(ctx context.Context) {
	select {
	case <-d.cron.Stop().Done():
	case <-ctx.Done():
	}
}

// RunOnce reviews every section once and returns the number of alerts queued.
func (d *DigestScheduler) RunOnce(ctx context.Context) (int, error) {
	sections, err := d.sections.All(ctx)
	if err != nil {
		return 0, fmt.Errorf("list sections: %w", err)
	}
	to := insight.CalendarDay(d.now())
	from := to.AddDate(0, 0, -(d.cfg.LookbackDays - 1))

	queued := 0
	for _, section := range sections {
		if err := ctx.Err(); err != nil {
			return queued, err
		}
		result, err := d.insights.Compute(ctx, digestQuery, WindowScope{SectionID: section.ID, From: from, To: to})
		if err != nil {
			if errors.Is(err, appErrors.ErrDataUnavailable) {
				d.logger.Warn("attendance data unavailable, digest skipped section", zap.String("section_id", section.ID), zap.Error(err))
			} else {
				d.logger.Error("digest failed for section", zap.String("section_id", section.ID), zap.Error(err))
			}
			continue
		}
		if len(result.Alerts) == 0 {
			continue
		}
		if section.AdviserEmail == nil || strings.TrimSpace(*section.AdviserEmail) == "" {
			d.logger.Info("section has alerts but no adviser email", zap.String("section_id", section.ID), zap.Int("alerts", len(result.Alerts)))
			continue
		}
		if _, err := d.notifications.Enqueue(ctx, digestMessage(section, result)); err != nil {
			d.logger.Warn("failed to queue digest", zap.String("section_id", section.ID), zap.Error(err))
			continue
		}
		queued++
	}
	d.logger.Info("attendance digest completed", zap.Int("sections", len(sections)), zap.Int("queued", queued))
	return queued, nil
}

func digestMessage(section models.SectionDetail, result insight.Insight) notify.Message {
	name := ""
	if section.AdviserName != nil {
		name = *section.AdviserName
	}
	var body strings.Builder
	fmt.Fprintf(&body, "%s\n\n", result.Summary)
	body.WriteString("Alerts:\n")
	for _, alert := range result.Alerts {
		fmt.Fprintf(&body, "- %s\n", alert)
	}
	if len(result.Recommendations) > 0 {
		body.WriteString("\nSuggested actions:\n")
		for _, rec := range result.Recommendations {
			fmt.Fprintf(&body, "- %s\n", rec)
		}
	}
	return notify.Message{
		To:      []notify.Recipient{{Name: name, Email: *section.AdviserEmail}},
		Subject: fmt.Sprintf("Attendance alerts for %s", section.Name),
		Text:    body.String(),
	}
}
