package service

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"errors"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/news-api/internal/models"
	"github.com/noah-isme/news-api/internal/repository"
	appErrors "github.com/noah-isme/news-api/pkg/errors"
	"github.com/noah-isme/news-api/pkg/errreport"
	"github.com/noah-isme/news-api/pkg/oauth/github"
	"github.com/noah-isme/news-api/pkg/token"
)

const oauthStateTTL = 10 * time.Minute

type authUserRepository interface {
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	FindByID(ctx context.Context, id int64) (*models.User, error)
	FindByGitHubID(ctx context.Context, githubID string) (*models.User, error)
	Create(ctx context.Context, user *models.User) error
	UpdateProfile(ctx context.Context, user *models.User) error
}

type passwordHasher interface {
	Hash(password string) (string, error)
	Verify(hash, candidate string) bool
}

type tokenCodec interface {
	IssueAccess(userID int64, email string) (string, error)
	IssueRefresh(userID int64) (string, error)
	Verify(raw string) (*token.Claims, error)
	RefreshTTL() time.Duration
}

type oauthProvider interface {
	AuthCodeURL(state string) string
	Exchange(ctx context.Context, code string) (*github.Profile, error)
}

// AuthDeps groups the collaborators of AuthService. GitHub, Metrics and
// Reporter are optional.
type AuthDeps struct {
	Users    authUserRepository
	Sessions SessionCache
	Hasher   passwordHasher
	Tokens   tokenCodec
	GitHub   oauthProvider
	Metrics  *MetricsService
	Reporter errreport.Reporter
}

// AuthService owns the session lifecycle: none -> active -> rotated/revoked.
type AuthService struct {
	users     authUserRepository
	sessions  SessionCache
	hasher    passwordHasher
	tokens    tokenCodec
	github    oauthProvider
	metrics   *MetricsService
	reporter  errreport.Reporter
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
}

// NewAuthService constructs an AuthService instance.
func NewAuthService(deps AuthDeps, validate *validator.Validate, logger *zap.Logger) *AuthService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	if deps.Reporter == nil {
		deps.Reporter = errreport.Nop{}
	}
	return &AuthService{
		users:     deps.Users,
		sessions:  deps.Sessions,
		hasher:    deps.Hasher,
		tokens:    deps.Tokens,
		github:    deps.GitHub,
		metrics:   deps.Metrics,
		reporter:  deps.Reporter,
		validator: validate,
		logger:    logger,
		now:       time.Now,
	}
}

// GitHubEnabled reports whether the GitHub login flow is configured.
func (s *AuthService) GitHubEnabled() bool {
	return s.github != nil
}

// Register creates a password account and opens its first session.
func (s *AuthService) Register(ctx context.Context, req models.RegisterRequest, client models.ClientInfo) (*models.TokenPair, error) {
	req.Email = normalizeEmail(req.Email)
	req.Name = strings.TrimSpace(req.Name)
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid registration payload")
	}

	if _, err := s.users.FindByEmail(ctx, req.Email); err == nil {
		return nil, s.fail(ctx, "register", appErrors.Clone(appErrors.ErrConflict, "email already registered"), nil)
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Upstream(err, "failed to check email")
	}

	hash, err := s.hasher.Hash(req.Password)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to hash password")
	}

	user := &models.User{Name: req.Name, Email: req.Email, PasswordHash: &hash, Avatar: req.Avatar}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicateEmail) {
			return nil, s.fail(ctx, "register", appErrors.Clone(appErrors.ErrConflict, "email already registered"), err)
		}
		return nil, appErrors.Upstream(err, "failed to create user")
	}

	pair, err := s.CreateUserTokens(ctx, user, client)
	if err != nil {
		return nil, err
	}

	s.metrics.IncUsersRegistered()
	s.logger.Info("user registered", zap.Int64("user_id", user.ID))
	return pair, nil
}

// Login verifies credentials and opens a session. Every credential failure
// yields the same INVALID_CREDENTIALS error.
func (s *AuthService) Login(ctx context.Context, req models.LoginRequest, client models.ClientInfo) (*models.TokenPair, error) {
	req.Email = normalizeEmail(req.Email)
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid login payload")
	}

	user, err := s.users.FindByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, s.fail(ctx, "login", appErrors.ErrInvalidCredentials, errors.New("unknown email"))
		}
		return nil, appErrors.Upstream(err, "failed to fetch user")
	}

	if !user.HasPassword() {
		return nil, s.fail(ctx, "login", appErrors.ErrInvalidCredentials, errors.New("account has no password"))
	}
	if !s.hasher.Verify(*user.PasswordHash, req.Password) {
		return nil, s.fail(ctx, "login", appErrors.ErrInvalidCredentials, errors.New("password mismatch"))
	}

	return s.CreateUserTokens(ctx, user, client)
}

// CreateUserTokens issues a token pair and stores the session keyed by the
// refresh token. The session and its index entry live as long as the token.
func (s *AuthService) CreateUserTokens(ctx context.Context, user *models.User, client models.ClientInfo) (*models.TokenPair, error) {
	access, err := s.tokens.IssueAccess(user.ID, user.Email)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to create access token")
	}
	refresh, err := s.tokens.IssueRefresh(user.ID)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to create refresh token")
	}

	ttl := s.tokens.RefreshTTL()
	now := s.now().UTC()
	session := models.Session{
		UserID:       user.ID,
		RefreshToken: refresh,
		UserAgent:    client.UserAgent,
		CreatedAt:    now,
		ExpiresAt:    now.Add(ttl),
	}
	payload, err := encodeSession(session)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to encode session")
	}

	if err := s.sessions.Set(ctx, sessionKey(refresh), payload, ttl); err != nil {
		return nil, upstream(err, "failed to store session")
	}
	indexKey := sessionIndexKey(user.ID)
	if err := s.sessions.SetAdd(ctx, indexKey, refresh); err != nil {
		if _, delErr := s.sessions.Delete(ctx, sessionKey(refresh)); delErr != nil {
			s.logger.Warn("failed to roll back session after index failure", zap.Int64("user_id", user.ID), zap.Error(delErr))
		}
		return nil, upstream(err, "failed to index session")
	}
	if err := s.sessions.Expire(ctx, indexKey, ttl); err != nil {
		s.logger.Warn("failed to extend session index ttl", zap.Int64("user_id", user.ID), zap.Error(err))
	}

	return &models.TokenPair{AccessToken: access, RefreshToken: refresh, TokenType: models.TokenType}, nil
}

// Refresh rotates a refresh token: the presented session is revoked and a
// new pair is issued. A token can therefore be exchanged only once.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string, client models.ClientInfo) (*models.TokenPair, error) {
	if refreshToken == "" {
		return nil, s.fail(ctx, "refresh", appErrors.Clone(appErrors.ErrUnauthorized, "refresh token required"), nil)
	}

	claims, err := s.tokens.Verify(refreshToken)
	if err != nil {
		return nil, s.fail(ctx, "refresh", appErrors.Clone(appErrors.ErrTokenInvalid, "invalid refresh token"), err)
	}
	if claims.Type != token.TypeRefresh {
		return nil, s.fail(ctx, "refresh", appErrors.Clone(appErrors.ErrTokenInvalid, "refresh token required"), nil)
	}

	session, err := s.loadSession(ctx, refreshToken)
	if err != nil {
		return nil, s.fail(ctx, "refresh", err, nil)
	}
	if session.UserID != claims.UserID {
		return nil, s.fail(ctx, "refresh", appErrors.ErrSessionNotFound, errors.New("session owner mismatch"))
	}

	user, err := s.users.FindByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, s.fail(ctx, "refresh", appErrors.Clone(appErrors.ErrUnauthorized, "user not found"), err)
		}
		return nil, appErrors.Upstream(err, "failed to load user")
	}

	if err := s.revokeSession(ctx, session); err != nil {
		return nil, err
	}
	return s.CreateUserTokens(ctx, user, client)
}

// Logout revokes the session of the presented refresh token.
func (s *AuthService) Logout(ctx context.Context, refreshToken string) error {
	if refreshToken == "" {
		return appErrors.Clone(appErrors.ErrUnauthorized, "refresh token required")
	}
	session, err := s.loadSession(ctx, refreshToken)
	if err != nil {
		return s.fail(ctx, "logout", err, nil)
	}
	if err := s.revokeSession(ctx, session); err != nil {
		return s.fail(ctx, "logout", err, nil)
	}
	s.logger.Info("session revoked", zap.Int64("user_id", session.UserID))
	return nil
}

// ListSessions returns the user's live sessions, oldest first. Index members
// whose session has expired are skipped and pruned from the index.
func (s *AuthService) ListSessions(ctx context.Context, userID int64) ([]models.SessionInfo, error) {
	indexKey := sessionIndexKey(userID)
	members, err := s.sessions.SetMembers(ctx, indexKey)
	if err != nil {
		return nil, upstream(err, "failed to read session index")
	}

	now := s.now()
	out := make([]models.SessionInfo, 0, len(members))
	for _, member := range members {
		session, err := s.loadSession(ctx, member)
		if err != nil {
			if !errors.Is(err, appErrors.ErrSessionNotFound) {
				return nil, err
			}
			if remErr := s.sessions.SetRemove(ctx, indexKey, member); remErr != nil {
				s.logger.Warn("failed to prune stale session", zap.Int64("user_id", userID), zap.Error(remErr))
			}
			continue
		}
		if session.UserID != userID || !session.ExpiresAt.After(now) {
			continue
		}
		out = append(out, session.Info())
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// GitHubLoginURL returns the consent page URL with a fresh single-use state.
func (s *AuthService) GitHubLoginURL(ctx context.Context) (string, error) {
	if s.github == nil {
		return "", appErrors.Clone(appErrors.ErrUpstreamUnavailable, "github login is not configured")
	}
	state, err := randomState()
	if err != nil {
		return "", appErrors.Internal(err, "failed to generate oauth state")
	}
	if err := s.sessions.Set(ctx, oauthStateKey(state), []byte("1"), oauthStateTTL); err != nil {
		return "", upstream(err, "failed to store oauth state")
	}
	return s.github.AuthCodeURL(state), nil
}

// LoginWithGitHub completes the OAuth callback: the state is consumed, the
// code exchanged, the user created or updated by GitHub id, and a session opened.
func (s *AuthService) LoginWithGitHub(ctx context.Context, code, state string, client models.ClientInfo) (*models.TokenPair, error) {
	if s.github == nil {
		return nil, appErrors.Clone(appErrors.ErrUpstreamUnavailable, "github login is not configured")
	}
	if state == "" {
		return nil, s.fail(ctx, "github", appErrors.Clone(appErrors.ErrUnauthorized, "invalid oauth state"), nil)
	}
	existed, err := s.sessions.Delete(ctx, oauthStateKey(state))
	if err != nil {
		return nil, upstream(err, "failed to consume oauth state")
	}
	if !existed {
		return nil, s.fail(ctx, "github", appErrors.Clone(appErrors.ErrUnauthorized, "invalid oauth state"), nil)
	}

	profile, err := s.github.Exchange(ctx, code)
	if err != nil {
		return nil, s.fail(ctx, "github", appErrors.Wrap(err, appErrors.ErrUnauthorized.Code, appErrors.ErrUnauthorized.Status, "GitHub authentication failed"), err)
	}

	user, err := s.upsertGitHubUser(ctx, profile)
	if err != nil {
		return nil, s.fail(ctx, "github", err, nil)
	}
	return s.CreateUserTokens(ctx, user, client)
}

func (s *AuthService) upsertGitHubUser(ctx context.Context, profile *github.Profile) (*models.User, error) {
	name := profile.DisplayName()
	email := normalizeEmail(profile.Email)
	var avatar *string
	if profile.AvatarURL != "" {
		avatar = &profile.AvatarURL
	}

	user, err := s.users.FindByGitHubID(ctx, profile.ID)
	switch {
	case err == nil:
		changed := false
		if name != "" && user.Name != name {
			user.Name, changed = name, true
		}
		if avatar != nil && (user.Avatar == nil || *user.Avatar != *avatar) {
			user.Avatar, changed = avatar, true
		}
		if email != "" && user.Email != email {
			user.Email, changed = email, true
		}
		if !changed {
			return user, nil
		}
		if err := s.users.UpdateProfile(ctx, user); err != nil {
			if errors.Is(err, repository.ErrDuplicateEmail) {
				return nil, appErrors.Clone(appErrors.ErrConflict, "email already registered")
			}
			return nil, appErrors.Upstream(err, "failed to update user")
		}
		if _, err := s.sessions.Delete(ctx, userKey(user.ID)); err != nil {
			s.logger.Warn("failed to drop cached user", zap.Int64("user_id", user.ID), zap.Error(err))
		}
		return user, nil
	case errors.Is(err, sql.ErrNoRows):
	default:
		return nil, appErrors.Upstream(err, "failed to fetch user")
	}

	if email == "" {
		email = profile.ID + "@github.user"
	}
	githubID := profile.ID
	user = &models.User{Name: name, Email: email, Avatar: avatar, GitHubID: &githubID}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicateEmail) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "email already registered")
		}
		return nil, appErrors.Upstream(err, "failed to create user")
	}
	s.metrics.IncUsersRegistered()
	s.logger.Info("user registered via github", zap.Int64("user_id", user.ID))
	return user, nil
}

// loadSession resolves a refresh token to its session. Missing and
// unreadable records are both ErrSessionNotFound.
func (s *AuthService) loadSession(ctx context.Context, refreshToken string) (*models.Session, error) {
	raw, err := s.sessions.Get(ctx, sessionKey(refreshToken))
	if err != nil {
		if errors.Is(err, appErrors.ErrCacheMiss) {
			return nil, appErrors.ErrSessionNotFound
		}
		return nil, upstream(err, "failed to read session")
	}
	session, err := decodeSession(raw)
	if err != nil {
		s.logger.Warn("discarding unreadable session", zap.Error(err))
		return nil, appErrors.ErrSessionNotFound
	}
	return session, nil
}

// revokeSession deletes the primary record, then the index entry. Losing
// the delete race to a concurrent refresh or logout is SessionNotFound.
func (s *AuthService) revokeSession(ctx context.Context, session *models.Session) error {
	existed, err := s.sessions.Delete(ctx, sessionKey(session.RefreshToken))
	if err != nil {
		return upstream(err, "failed to delete session")
	}
	if err := s.sessions.SetRemove(ctx, sessionIndexKey(session.UserID), session.RefreshToken); err != nil {
		s.logger.Warn("failed to remove session from index", zap.Int64("user_id", session.UserID), zap.Error(err))
	}
	if !existed {
		return appErrors.ErrSessionNotFound
	}
	return nil
}

// fail reports an auth failure and returns it unchanged.
func (s *AuthService) fail(ctx context.Context, operation string, err error, cause error) error {
	appErr := appErrors.FromError(err)
	s.metrics.IncAuthFailure(operation, appErr.Code)
	reported := cause
	if reported == nil {
		reported = appErr
	}
	s.reporter.Report(ctx, reported, map[string]string{
		"operation":   operation,
		"code":        appErr.Code,
		"status_code": strconv.Itoa(appErr.Status),
	})
	return err
}

func upstream(err error, message string) error {
	var appErr *appErrors.Error
	if errors.As(err, &appErr) {
		return err
	}
	return appErrors.Upstream(err, message)
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func randomState() (string, error) {
	buf := make([]byte, 24)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
