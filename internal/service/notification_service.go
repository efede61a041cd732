package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/news-api/internal/models"
	"github.com/noah-isme/news-api/pkg/jobs"
)

// JobTypeNewsNotification identifies news fan-out jobs on the queue.
const JobTypeNewsNotification = "news_notification"

type recipientLister interface {
	ListRecipients(ctx context.Context) ([]models.User, error)
}

type jobDispatcher interface {
	Enqueue(job jobs.Job) error
}

// Recipient is the contact data carried by a notification job.
type Recipient struct {
	ID    int64
	Name  string
	Email string
}

// NewsNotification is the article summary delivered to recipients.
type NewsNotification struct {
	NewsID          int64
	Title           string
	Content         string
	AuthorID        *int64
	PublicationDate time.Time
}

// NotificationPayload is the job payload. Pending shrinks as deliveries
// succeed, so a retried job only contacts the remaining recipients.
type NotificationPayload struct {
	News    NewsNotification
	Pending []Recipient
}

// Deliverer sends one notification to one recipient.
type Deliverer interface {
	Deliver(ctx context.Context, to Recipient, news NewsNotification) error
}

// LogDeliverer records deliveries in the log instead of sending mail.
type LogDeliverer struct {
	logger *zap.Logger
}

// NewLogDeliverer constructs a LogDeliverer.
func NewLogDeliverer(logger *zap.Logger) *LogDeliverer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogDeliverer{logger: logger}
}

// Deliver implements Deliverer.
func (d *LogDeliverer) Deliver(_ context.Context, to Recipient, news NewsNotification) error {
	d.logger.Info("news notification delivered",
		zap.Int64("user_id", to.ID),
		zap.String("name", to.Name),
		zap.Int64("news_id", news.NewsID),
		zap.String("title", news.Title),
	)
	return nil
}

// NotificationService schedules news notifications for every user.
type NotificationService struct {
	users  recipientLister
	queue  jobDispatcher
	logger *zap.Logger
}

// NewNotificationService constructs the notification scheduler.
func NewNotificationService(users recipientLister, queue jobDispatcher, logger *zap.Logger) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationService{users: users, queue: queue, logger: logger}
}

// NotifyNewsPublished enqueues one fan-out job for the article. It does not
// wait for delivery.
func (s *NotificationService) NotifyNewsPublished(ctx context.Context, news *models.News) error {
	users, err := s.users.ListRecipients(ctx)
	if err != nil {
		return fmt.Errorf("list recipients: %w", err)
	}
	if len(users) == 0 {
		return nil
	}

	recipients := make([]Recipient, 0, len(users))
	for _, u := range users {
		recipients = append(recipients, Recipient{ID: u.ID, Name: u.Name, Email: u.Email})
	}
	job := jobs.Job{
		ID:   uuid.NewString(),
		Type: JobTypeNewsNotification,
		Payload: &NotificationPayload{
			News: NewsNotification{
				NewsID:          news.ID,
				Title:           news.Title,
				Content:         news.Content,
				AuthorID:        news.AuthorID,
				PublicationDate: news.PublicationDate,
			},
			Pending: recipients,
		},
	}
	if err := s.queue.Enqueue(job); err != nil {
		return fmt.Errorf("enqueue notification: %w", err)
	}
	s.logger.Info("news notification scheduled", zap.String("job_id", job.ID), zap.Int64("news_id", news.ID), zap.Int("recipients", len(recipients)))
	return nil
}

// NotificationWorker bridges queue jobs to a Deliverer.
type NotificationWorker struct {
	deliverer Deliverer
	metrics   *MetricsService
	logger    *zap.Logger
}

// NewNotificationWorker constructs a worker.
func NewNotificationWorker(deliverer Deliverer, metrics *MetricsService, logger *zap.Logger) *NotificationWorker {
	if logger == nil {
		logger = zap.NewNop()
	}
	if deliverer == nil {
		deliverer = NewLogDeliverer(logger)
	}
	return &NotificationWorker{deliverer: deliverer, metrics: metrics, logger: logger}
}

// Handle delivers to every pending recipient. Failed recipients stay pending
// and the job is returned to the queue for a retry.
func (w *NotificationWorker) Handle(ctx context.Context, job jobs.Job) error {
	payload, ok := job.Payload.(*NotificationPayload)
	if !ok {
		w.logger.Error("dropping malformed notification job", zap.String("job_id", job.ID))
		return nil
	}

	w.logger.Info("news notification fan-out",
		zap.String("job_id", job.ID),
		zap.Int64("news_id", payload.News.NewsID),
		zap.Int("pending", len(payload.Pending)),
		zap.Int("attempt", job.Attempt),
	)

	var remaining []Recipient
	var firstErr error
	for _, to := range payload.Pending {
		if err := w.deliverer.Deliver(ctx, to, payload.News); err != nil {
			remaining = append(remaining, to)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	w.metrics.AddNotificationsSent(len(payload.Pending) - len(remaining))
	payload.Pending = remaining

	if firstErr != nil {
		return fmt.Errorf("%d deliveries failed: %w", len(remaining), firstErr)
	}
	return nil
}

// OnFailure records a job that exhausted its retries. The failure is final.
func (w *NotificationWorker) OnFailure(job jobs.Job, err error) {
	w.metrics.IncNotificationsFailed()
	fields := []zap.Field{zap.String("job_id", job.ID), zap.Int("attempts", job.Attempt), zap.Error(err)}
	if payload, ok := job.Payload.(*NotificationPayload); ok {
		fields = append(fields, zap.Int64("news_id", payload.News.NewsID), zap.Int("undelivered", len(payload.Pending)))
	}
	w.logger.Error("news notification failed", fields...)
}
