package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/noah-isme/news-api/internal/models"
)

// SessionCache is the key/value and set store holding sessions and cached
// user projections. Get returns appErrors.ErrCacheMiss for absent keys; every
// other failure means the store is unreachable.
type SessionCache interface {
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Get(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) (bool, error)
	SetAdd(ctx context.Context, key, member string) error
	SetRemove(ctx context.Context, key, member string) error
	SetMembers(ctx context.Context, key string) ([]string, error)
	Expire(ctx context.Context, key string, ttl time.Duration) error
}

const cacheSchemaVersion = 1

func sessionKey(refreshToken string) string { return "refresh_session:" + refreshToken }

func sessionIndexKey(userID int64) string {
	return "sessions_for_user_id:" + strconv.FormatInt(userID, 10)
}

func userKey(userID int64) string { return "user_id:" + strconv.FormatInt(userID, 10) }

func oauthStateKey(state string) string { return "oauth_state:" + state }

type sessionEnvelope struct {
	V       int             `json:"v"`
	Session *models.Session `json:"session"`
}

func encodeSession(s models.Session) ([]byte, error) {
	return json.Marshal(sessionEnvelope{V: cacheSchemaVersion, Session: &s})
}

func decodeSession(raw []byte) (*models.Session, error) {
	var env sessionEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	if env.V != cacheSchemaVersion || env.Session == nil {
		return nil, fmt.Errorf("unsupported session schema version %d", env.V)
	}
	return env.Session, nil
}

// cachedUser is the cache projection of models.User used for identity
// resolution. The password hash never leaves the store.
type cachedUser struct {
	ID               int64     `json:"id"`
	Name             string    `json:"name"`
	Email            string    `json:"email"`
	IsVerifiedAuthor bool      `json:"is_verified_author"`
	IsAdmin          bool      `json:"is_admin"`
	Avatar           *string   `json:"avatar,omitempty"`
	GitHubID         *string   `json:"github_id,omitempty"`
	RegistrationDate time.Time `json:"registration_date"`
}

type userEnvelope struct {
	V    int         `json:"v"`
	User *cachedUser `json:"user"`
}

func encodeUser(u *models.User) ([]byte, error) {
	return json.Marshal(userEnvelope{V: cacheSchemaVersion, User: &cachedUser{
		ID:               u.ID,
		Name:             u.Name,
		Email:            u.Email,
		IsVerifiedAuthor: u.IsVerifiedAuthor,
		IsAdmin:          u.IsAdmin,
		Avatar:           u.Avatar,
		GitHubID:         u.GitHubID,
		RegistrationDate: u.RegistrationDate,
	}})
}

func decodeUser(raw []byte) (*models.User, error) {
	var env userEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("decode user: %w", err)
	}
	if env.V != cacheSchemaVersion || env.User == nil || env.User.ID == 0 {
		return nil, fmt.Errorf("unsupported user schema version %d", env.V)
	}
	c := env.User
	return &models.User{
		ID:               c.ID,
		Name:             c.Name,
		Email:            c.Email,
		IsVerifiedAuthor: c.IsVerifiedAuthor,
		IsAdmin:          c.IsAdmin,
		Avatar:           c.Avatar,
		GitHubID:         c.GitHubID,
		RegistrationDate: c.RegistrationDate,
	}, nil
}
