package service

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/noah-isme/news-api/internal/models"
)

type digestGenerator interface {
	Generate(ctx context.Context) (*models.Digest, error)
}

// DigestScheduler runs digest generation on a cron schedule.
type DigestScheduler struct {
	cron      *cron.Cron
	generator digestGenerator
	timeout   time.Duration
	logger    *zap.Logger
}

// NewDigestScheduler parses schedule (standard five-field cron) in loc.
func NewDigestScheduler(schedule string, loc *time.Location, generator digestGenerator, logger *zap.Logger) (*DigestScheduler, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if loc == nil {
		loc = time.UTC
	}
	s := &DigestScheduler{
		cron:      cron.New(cron.WithLocation(loc)),
		generator: generator,
		timeout:   5 * time.Minute,
		logger:    logger,
	}
	if _, err := s.cron.AddFunc(schedule, s.run); err != nil {
		return nil, fmt.Errorf("parse digest schedule %q: %w", schedule, err)
	}
	return s, nil
}

// Start begins scheduling in the background.
func (s *DigestScheduler) Start() {
	s.cron.Start()
	for _, entry := range s.cron.Entries() {
		s.logger.Info("digest scheduled", zap.Time("next_run", entry.Next))
	}
}

// Stop halts scheduling and waits for a running generation to finish.
func (s *DigestScheduler) Stop() {
	<-s.cron.Stop().Done()
}

func (s *DigestScheduler) run() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	digest, err := s.generator.Generate(ctx)
	if err != nil {
		s.logger.Error("weekly digest failed", zap.Error(err))
		return
	}
	s.logger.Info("weekly digest generated", zap.String("digest_id", digest.ID), zap.Int("news_count", digest.NewsCount))
}
