package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/noah-isme/sma-attendance-api/pkg/jobs"
	"github.com/noah-isme/sma-attendance-api/pkg/notify"
)

// NotificationJobType tags queued alert emails.
const NotificationJobType = "attendance_alert"

type jobDispatcher interface {
	Enqueue(job jobs.Job) (string, error)
}

// NotificationService queues attendance alert emails for asynchronous delivery.
type NotificationService struct {
	queue   jobDispatcher
	metrics *MetricsService
	logger  *zap.Logger
}

// NewNotificationService constructs a NotificationService. A nil queue disables delivery.
func NewNotificationService(queue jobDispatcher, metrics *MetricsService, logger *zap.Logger) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationService{queue: queue, metrics: metrics, logger: logger}
}

// Enqueue schedules msg for delivery and returns the job id.
func (s *NotificationService) Enqueue(ctx context.Context, msg notify.Message) (string, error) {
	if len(msg.To) == 0 {
		return "", fmt.Errorf("notification has no recipients")
	}
	if s.queue == nil {
		s.metrics.RecordNotification("disabled")
		return "", nil
	}
	id, err := s.queue.Enqueue(jobs.Job{Type: NotificationJobType, Payload: msg})
	if err != nil {
		s.metrics.RecordNotification("dropped")
		s.logger.Warn("failed to queue notification", zap.String("subject", msg.Subject), zap.Error(err))
		return "", err
	}
	s.metrics.RecordNotification("queued")
	return id, nil
}

// NotificationWorker bridges queue jobs to a Notifier.
type NotificationWorker struct {
	notifier notify.Notifier
	metrics  *MetricsService
	logger   *zap.Logger
}

// NewNotificationWorker constructs a worker.
func NewNotificationWorker(notifier notify.Notifier, metrics *MetricsService, logger *zap.Logger) *NotificationWorker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationWorker{notifier: notifier, metrics: metrics, logger: logger}
}

// Handle processes a queue job. Returning an error lets the queue retry it.
func (w *NotificationWorker) Handle(ctx context.Context, job jobs.Job) error {
	msg, ok := job.Payload.(notify.Message)
	if !ok {
		w.metrics.RecordNotification("invalid")
		w.logger.Error("unexpected notification payload", zap.String("job_id", job.ID), zap.String("type", job.Type))
		return nil
	}
	if err := w.notifier.Send(ctx, msg); err != nil {
		w.metrics.RecordNotification("failed")
		w.logger.Warn("notification delivery failed",
			zap.String("job_id", job.ID),
			zap.Int("attempt", job.Attempt),
			zap.Error(err),
		)
		return err
	}
	w.metrics.RecordNotification("sent")
	return nil
}
