package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/news-api/internal/models"
	appErrors "github.com/noah-isme/news-api/pkg/errors"
	"github.com/noah-isme/news-api/pkg/errreport"
)

type commentRepository interface {
	List(ctx context.Context, skip, limit int) ([]models.Comment, error)
	ListByNews(ctx context.Context, newsID int64, skip, limit int) ([]models.Comment, error)
	FindByID(ctx context.Context, id int64) (*models.Comment, error)
	Create(ctx context.Context, item *models.Comment) error
	UpdateText(ctx context.Context, id int64, text string) error
	Delete(ctx context.Context, id int64) error
}

type newsLookup interface {
	FindByID(ctx context.Context, id int64) (*models.News, error)
}

// CommentService manages reader comments on news.
type CommentService struct {
	repo      commentRepository
	news      newsLookup
	access    resourceAuthorizer
	reporter  errreport.Reporter
	validator *validator.Validate
	logger    *zap.Logger
}

// NewCommentService constructs a CommentService.
func NewCommentService(repo commentRepository, news newsLookup, access resourceAuthorizer, reporter errreport.Reporter, validate *validator.Validate, logger *zap.Logger) *CommentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	if reporter == nil {
		reporter = errreport.Nop{}
	}
	return &CommentService{repo: repo, news: news, access: access, reporter: reporter, validator: validate, logger: logger}
}

// List returns a page of all comments.
func (s *CommentService) List(ctx context.Context, skip, limit int) ([]models.Comment, error) {
	skip, limit = models.ClampPage(skip, limit)
	items, err := s.repo.List(ctx, skip, limit)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to list comments")
	}
	return items, nil
}

// ListByNews returns the comments of one article.
func (s *CommentService) ListByNews(ctx context.Context, newsID int64, skip, limit int) ([]models.Comment, error) {
	skip, limit = models.ClampPage(skip, limit)
	items, err := s.repo.ListByNews(ctx, newsID, skip, limit)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to list comments")
	}
	return items, nil
}

// Create attaches a comment by user to an existing article.
func (s *CommentService) Create(ctx context.Context, user *models.User, newsID int64, req models.CommentRequest) (*models.Comment, error) {
	if user == nil {
		return nil, appErrors.ErrUnauthorized
	}
	req.Text = strings.TrimSpace(req.Text)
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid comment payload")
	}

	if _, err := s.news.FindByID(ctx, newsID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			notFound := appErrors.Clone(appErrors.ErrNotFound, "news not found")
			s.logger.Warn("failed creating comment", zap.Int64("news_id", newsID), zap.Int64("author_id", user.ID))
			s.reporter.Report(ctx, notFound, map[string]string{"operation": "create_comment", "status_code": "404"})
			return nil, notFound
		}
		return nil, appErrors.Internal(err, "failed to fetch news")
	}

	authorID := user.ID
	item := &models.Comment{Text: req.Text, NewsID: &newsID, AuthorID: &authorID}
	if err := s.repo.Create(ctx, item); err != nil {
		return nil, appErrors.Internal(err, "failed to create comment")
	}
	return item, nil
}

// Update replaces the comment text. Only the author or an admin may edit.
func (s *CommentService) Update(ctx context.Context, user *models.User, id int64, req models.CommentRequest) (*models.Comment, error) {
	req.Text = strings.TrimSpace(req.Text)
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid comment payload")
	}

	item, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.access.AuthorizeOwnerOrAdmin(item.AuthorID, user); err != nil {
		return nil, err
	}

	if err := s.repo.UpdateText(ctx, id, req.Text); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "comment not found")
		}
		return nil, appErrors.Internal(err, "failed to update comment")
	}
	item.Text = req.Text
	return item, nil
}

// Delete removes a comment. Only the author or an admin may delete.
func (s *CommentService) Delete(ctx context.Context, user *models.User, id int64) error {
	item, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	if err := s.access.AuthorizeOwnerOrAdmin(item.AuthorID, user); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "comment not found")
		}
		return appErrors.Internal(err, "failed to delete comment")
	}
	return nil
}

func (s *CommentService) load(ctx context.Context, id int64) (*models.Comment, error) {
	item, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "comment not found")
		}
		return nil, appErrors.Internal(err, "failed to fetch comment")
	}
	return item, nil
}
