package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/news-api/internal/models"
	appErrors "github.com/noah-isme/news-api/pkg/errors"
	"github.com/noah-isme/news-api/pkg/token"
)

type identityUserRepository interface {
	FindByID(ctx context.Context, id int64) (*models.User, error)
}

type accessTokenVerifier interface {
	Verify(raw string) (*token.Claims, error)
}

// AccessService resolves bearer tokens to users and evaluates privileges.
// Users are read through the cache under user_id:<id> for the freshness
// window; the database stays authoritative.
type AccessService struct {
	users     identityUserRepository
	cache     SessionCache
	tokens    accessTokenVerifier
	freshness time.Duration
	metrics   *MetricsService
	logger    *zap.Logger
}

// NewAccessService constructs an AccessService.
func NewAccessService(users identityUserRepository, cache SessionCache, tokens accessTokenVerifier, freshness time.Duration, metrics *MetricsService, logger *zap.Logger) *AccessService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if freshness <= 0 {
		freshness = 300 * time.Second
	}
	return &AccessService{users: users, cache: cache, tokens: tokens, freshness: freshness, metrics: metrics, logger: logger}
}

// ResolveIdentity validates an access token and returns its user.
func (s *AccessService) ResolveIdentity(ctx context.Context, accessToken string) (*models.User, error) {
	if accessToken == "" {
		return nil, appErrors.ErrUnauthorized
	}
	claims, err := s.tokens.Verify(accessToken)
	if err != nil {
		return nil, appErrors.ErrTokenInvalid
	}
	if claims.Type != token.TypeAccess {
		return nil, appErrors.Clone(appErrors.ErrTokenInvalid, "access token required")
	}

	if user := s.cachedUser(ctx, claims.UserID); user != nil {
		return user, nil
	}

	user, err := s.users.FindByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrUnauthorized, "user not found")
		}
		return nil, appErrors.Upstream(err, "failed to load user")
	}

	s.storeUser(ctx, user)
	return user, nil
}

// InvalidateUser drops the cached projection after a profile change.
func (s *AccessService) InvalidateUser(ctx context.Context, userID int64) {
	if _, err := s.cache.Delete(ctx, userKey(userID)); err != nil {
		s.logger.Warn("failed to drop cached user", zap.Int64("user_id", userID), zap.Error(err))
	}
}

func (s *AccessService) cachedUser(ctx context.Context, userID int64) *models.User {
	start := time.Now()
	raw, err := s.cache.Get(ctx, userKey(userID))
	if err != nil {
		s.metrics.RecordCacheOperation(false, time.Since(start))
		if !errors.Is(err, appErrors.ErrCacheMiss) {
			s.logger.Warn("user cache read failed", zap.Int64("user_id", userID), zap.Error(err))
		}
		return nil
	}
	user, err := decodeUser(raw)
	if err != nil {
		s.metrics.RecordCacheOperation(false, time.Since(start))
		s.logger.Warn("discarding unreadable cached user", zap.Int64("user_id", userID), zap.Error(err))
		return nil
	}
	s.metrics.RecordCacheOperation(true, time.Since(start))
	return user
}

func (s *AccessService) storeUser(ctx context.Context, user *models.User) {
	payload, err := encodeUser(user)
	if err != nil {
		s.logger.Warn("failed to encode user for cache", zap.Int64("user_id", user.ID), zap.Error(err))
		return
	}
	start := time.Now()
	err = s.cache.Set(ctx, userKey(user.ID), payload, s.freshness)
	s.metrics.ObserveCacheWrite(time.Since(start))
	if err != nil {
		s.logger.Warn("failed to cache user", zap.Int64("user_id", user.ID), zap.Error(err))
	}
}

// RequireVerifiedAuthor passes verified authors and admins.
func (s *AccessService) RequireVerifiedAuthor(user *models.User) (*models.User, error) {
	if user == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if !user.CanPublish() {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "verified author required")
	}
	return user, nil
}

// RequireAdmin passes admins only.
func (s *AccessService) RequireAdmin(user *models.User) (*models.User, error) {
	if user == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if !user.IsAdmin {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "admin required")
	}
	return user, nil
}

// AuthorizeOwnerOrAdmin passes when user owns the resource or is an admin.
// A nil owner matches nobody.
func (s *AccessService) AuthorizeOwnerOrAdmin(ownerID *int64, user *models.User) error {
	if user == nil {
		return appErrors.ErrUnauthorized
	}
	if user.IsAdmin || (ownerID != nil && *ownerID == user.ID) {
		return nil
	}
	return appErrors.Clone(appErrors.ErrForbidden, "not the owner")
}
