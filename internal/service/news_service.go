package service

import (
	"context"
	"database/sql"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/news-api/internal/models"
	appErrors "github.com/noah-isme/news-api/pkg/errors"
)

const newsListKey = "news_id:all"

func newsKey(id int64) string { return "news_id:" + strconv.FormatInt(id, 10) }

type newsRepository interface {
	List(ctx context.Context, filter models.NewsFilter) ([]models.News, error)
	FindByID(ctx context.Context, id int64) (*models.News, error)
	Create(ctx context.Context, item *models.News) error
	Update(ctx context.Context, item *models.News) error
	Delete(ctx context.Context, id int64) error
}

type newsNotifier interface {
	NotifyNewsPublished(ctx context.Context, news *models.News) error
}

type resourceAuthorizer interface {
	RequireVerifiedAuthor(user *models.User) (*models.User, error)
	AuthorizeOwnerOrAdmin(ownerID *int64, user *models.User) error
}

// NewsService manages articles. The default first page and single articles
// are read through the cache; the database stays authoritative.
type NewsService struct {
	repo      newsRepository
	cache     *CacheService
	access    resourceAuthorizer
	notifier  newsNotifier
	metrics   *MetricsService
	ttl       time.Duration
	validator *validator.Validate
	logger    *zap.Logger
}

// NewNewsService constructs a NewsService. cache and notifier may be nil.
func NewNewsService(repo newsRepository, cache *CacheService, access resourceAuthorizer, notifier newsNotifier, metrics *MetricsService, ttl time.Duration, validate *validator.Validate, logger *zap.Logger) *NewsService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	if ttl <= 0 {
		ttl = 300 * time.Second
	}
	return &NewsService{
		repo:      repo,
		cache:     cache,
		access:    access,
		notifier:  notifier,
		metrics:   metrics,
		ttl:       ttl,
		validator: validate,
		logger:    logger,
	}
}

// List returns a page of news ordered by publication date.
func (s *NewsService) List(ctx context.Context, skip, limit int) ([]models.News, error) {
	skip, limit = models.ClampPage(skip, limit)
	cacheable := skip == 0 && limit == 100

	if cacheable {
		var cached []models.News
		if hit, _ := s.cache.Get(ctx, newsListKey, &cached); hit {
			return cached, nil
		}
	}

	items, err := s.repo.List(ctx, models.NewsFilter{Skip: skip, Limit: limit})
	if err != nil {
		return nil, appErrors.Internal(err, "failed to list news")
	}

	if cacheable {
		_ = s.cache.Set(ctx, newsListKey, items, s.ttl)
	}
	return items, nil
}

// ListBetween returns every article published in [from, to).
func (s *NewsService) ListBetween(ctx context.Context, from, to time.Time) ([]models.News, error) {
	var out []models.News
	for skip := 0; ; skip += 100 {
		page, err := s.repo.List(ctx, models.NewsFilter{From: &from, To: &to, Skip: skip, Limit: 100})
		if err != nil {
			return nil, appErrors.Internal(err, "failed to list news")
		}
		out = append(out, page...)
		if len(page) < 100 {
			return out, nil
		}
	}
}

// Get returns a single article.
func (s *NewsService) Get(ctx context.Context, id int64) (*models.News, error) {
	var cached models.News
	if hit, _ := s.cache.Get(ctx, newsKey(id), &cached); hit {
		return &cached, nil
	}

	item, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "news not found")
		}
		return nil, appErrors.Internal(err, "failed to fetch news")
	}

	_ = s.cache.Set(ctx, newsKey(id), item, s.ttl)
	return item, nil
}

// Create publishes an article by a verified author and schedules the
// subscriber notification.
func (s *NewsService) Create(ctx context.Context, user *models.User, req models.CreateNewsRequest) (*models.News, error) {
	if _, err := s.access.RequireVerifiedAuthor(user); err != nil {
		return nil, err
	}
	req.Title = strings.TrimSpace(req.Title)
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid news payload")
	}

	authorID := user.ID
	item := &models.News{Title: req.Title, Content: req.Content, CoverImage: req.CoverImage, AuthorID: &authorID}
	if err := s.repo.Create(ctx, item); err != nil {
		s.logger.Error("failed creating news", zap.Int64("author_id", user.ID), zap.Error(err))
		return nil, appErrors.Internal(err, "failed to create news")
	}

	s.metrics.IncNewsCreated()
	s.logger.Info("news created", zap.Int64("news_id", item.ID), zap.Int64("author_id", user.ID))

	_ = s.cache.Invalidate(ctx, newsListKey)
	if s.notifier != nil {
		if err := s.notifier.NotifyNewsPublished(ctx, item); err != nil {
			s.logger.Warn("failed to schedule news notification", zap.Int64("news_id", item.ID), zap.Error(err))
		}
	}
	return item, nil
}

// Update applies a partial update. Only the author or an admin may edit.
func (s *NewsService) Update(ctx context.Context, user *models.User, id int64, req models.UpdateNewsRequest) (*models.News, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid news payload")
	}

	item, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.access.AuthorizeOwnerOrAdmin(item.AuthorID, user); err != nil {
		return nil, err
	}

	if req.Title != nil {
		item.Title = strings.TrimSpace(*req.Title)
	}
	if req.Content != nil {
		item.Content = *req.Content
	}
	if req.CoverImage != nil {
		item.CoverImage = req.CoverImage
	}

	if err := s.repo.Update(ctx, item); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "news not found")
		}
		return nil, appErrors.Internal(err, "failed to update news")
	}

	_ = s.cache.Set(ctx, newsKey(id), item, s.ttl)
	_ = s.cache.Invalidate(ctx, newsListKey)
	return item, nil
}

// Delete removes an article together with its comments.
func (s *NewsService) Delete(ctx context.Context, user *models.User, id int64) error {
	item, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	if err := s.access.AuthorizeOwnerOrAdmin(item.AuthorID, user); err != nil {
		return err
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "news not found")
		}
		return appErrors.Internal(err, "failed to delete news")
	}

	_ = s.cache.Invalidate(ctx, newsKey(id), newsListKey)
	s.logger.Info("news deleted", zap.Int64("news_id", id), zap.Int64("user_id", user.ID))
	return nil
}

// load reads the authoritative row for mutations.
func (s *NewsService) load(ctx context.Context, id int64) (*models.News, error) {
	item, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "news not found")
		}
		return nil, appErrors.Internal(err, "failed to fetch news")
	}
	return item, nil
}
