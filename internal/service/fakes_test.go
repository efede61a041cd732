package service

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-playground/validator/v10"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/news-api/internal/models"
	"github.com/noah-isme/news-api/internal/repository"
	"github.com/noah-isme/news-api/pkg/oauth/github"
	"github.com/noah-isme/news-api/pkg/password"
	"github.com/noah-isme/news-api/pkg/token"
)

type fakeUserRepo struct {
	mu      sync.Mutex
	users   map[int64]*models.User
	nextID  int64
	findErr error
	lookups int
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: map[int64]*models.User{}, nextID: 1}
}

func (f *fakeUserRepo) add(u models.User) *models.User {
	f.mu.Lock()
	defer f.mu.Unlock()
	if u.ID == 0 {
		u.ID = f.nextID
	}
	if u.ID >= f.nextID {
		f.nextID = u.ID + 1
	}
	stored := u
	f.users[u.ID] = &stored
	return &stored
}

func (f *fakeUserRepo) remove(id int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.users, id)
}

func (f *fakeUserRepo) find(match func(*models.User) bool) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lookups++
	if f.findErr != nil {
		return nil, f.findErr
	}
	for _, u := range f.users {
		if match(u) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (f *fakeUserRepo) FindByEmail(_ context.Context, email string) (*models.User, error) {
	return f.find(func(u *models.User) bool { return u.Email == email })
}

func (f *fakeUserRepo) FindByID(_ context.Context, id int64) (*models.User, error) {
	return f.find(func(u *models.User) bool { return u.ID == id })
}

func (f *fakeUserRepo) FindByGitHubID(_ context.Context, githubID string) (*models.User, error) {
	return f.find(func(u *models.User) bool { return u.GitHubID != nil && *u.GitHubID == githubID })
}

func (f *fakeUserRepo) Create(_ context.Context, user *models.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.Email == user.Email {
			return repository.ErrDuplicateEmail
		}
	}
	user.ID = f.nextID
	f.nextID++
	user.RegistrationDate = time.Now().UTC()
	stored := *user
	f.users[user.ID] = &stored
	return nil
}

func (f *fakeUserRepo) UpdateProfile(_ context.Context, user *models.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.users[user.ID]; !ok {
		return sql.ErrNoRows
	}
	stored := *user
	f.users[user.ID] = &stored
	return nil
}

func (f *fakeUserRepo) List(_ context.Context, filter models.UserFilter) ([]models.User, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.findErr != nil {
		return nil, 0, f.findErr
	}
	out := []models.User{}
	for id := int64(1); id < f.nextID; id++ {
		if u, ok := f.users[id]; ok {
			out = append(out, *u)
		}
	}
	total := len(out)
	skip, limit := models.ClampPage(filter.Skip, filter.Limit)
	if skip > len(out) {
		skip = len(out)
	}
	out = out[skip:]
	if len(out) > limit {
		out = out[:limit]
	}
	return out, total, nil
}

func (f *fakeUserRepo) ListRecipients(ctx context.Context) ([]models.User, error) {
	users, _, err := f.List(ctx, models.UserFilter{Limit: 100})
	return users, err
}

type fakeGitHub struct {
	profile *github.Profile
	err     error
}

func (f *fakeGitHub) AuthCodeURL(state string) string {
	return "https://github.com/login/oauth/authorize?state=" + state
}

func (f *fakeGitHub) Exchange(_ context.Context, code string) (*github.Profile, error) {
	if f.err != nil {
		return nil, f.err
	}
	if code != "good" {
		return nil, errors.New("bad_verification_code")
	}
	p := *f.profile
	return &p, nil
}

type authFixture struct {
	svc     *AuthService
	access  *AccessService
	users   *fakeUserRepo
	cache   *repository.SessionCacheRepository
	redis   *miniredis.Miniredis
	codec   *token.Codec
	hasher  *password.Hasher
	github  *fakeGitHub
	metrics *MetricsService
}

func newAuthFixture(t *testing.T) *authFixture {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = client.Close() })

	codec, err := token.NewCodec(token.Config{
		Secret:     "test-secret",
		Algorithm:  "HS256",
		AccessTTL:  30 * time.Minute,
		RefreshTTL: 7 * 24 * time.Hour,
	})
	require.NoError(t, err)

	users := newFakeUserRepo()
	cache := repository.NewSessionCacheRepository(client)
	hasher := password.NewHasher(password.Params{Time: 1, MemoryKB: 1024, Threads: 1})
	gh := &fakeGitHub{profile: &github.Profile{ID: "77", Login: "octo", Email: "octo@x.com", AvatarURL: "https://a/1.png"}}
	metrics := NewMetricsService()

	svc := NewAuthService(AuthDeps{
		Users:    users,
		Sessions: cache,
		Hasher:   hasher,
		Tokens:   codec,
		GitHub:   gh,
		Metrics:  metrics,
	}, validator.New(), zap.NewNop())
	access := NewAccessService(users, cache, codec, 300*time.Second, metrics, zap.NewNop())

	return &authFixture{svc: svc, access: access, users: users, cache: cache, redis: mr, codec: codec, hasher: hasher, github: gh, metrics: metrics}
}

func (f *authFixture) addPasswordUser(t *testing.T, email, plain string, mod func(*models.User)) *models.User {
	t.Helper()
	hash, err := f.hasher.Hash(plain)
	require.NoError(t, err)
	u := models.User{Name: "User", Email: email, PasswordHash: &hash}
	if mod != nil {
		mod(&u)
	}
	return f.users.add(u)
}
