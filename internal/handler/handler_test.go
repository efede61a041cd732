package handler

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/news-api/internal/middleware"
	"github.com/noah-isme/news-api/internal/models"
	"github.com/noah-isme/news-api/internal/service"
	"github.com/noah-isme/news-api/pkg/errreport"
)

type memUsers struct {
	users []models.User
}

func (m *memUsers) List(_ context.Context, filter models.UserFilter) ([]models.User, int, error) {
	out := m.users
	if filter.Skip < len(out) {
		out = out[filter.Skip:]
	} else {
		out = nil
	}
	if len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, len(m.users), nil
}

func (m *memUsers) FindByID(_ context.Context, id int64) (*models.User, error) {
	for i := range m.users {
		if m.users[i].ID == id {
			u := m.users[i]
			return &u, nil
		}
	}
	return nil, sql.ErrNoRows
}

type memNews struct {
	mu     sync.Mutex
	items  map[int64]*models.News
	nextID int64
}

func newMemNews() *memNews { return &memNews{items: map[int64]*models.News{}, nextID: 1} }

func (m *memNews) List(_ context.Context, _ models.NewsFilter) ([]models.News, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []models.News{}
	for id := int64(1); id < m.nextID; id++ {
		if item, ok := m.items[id]; ok {
			out = append(out, *item)
		}
	}
	return out, nil
}

func (m *memNews) FindByID(_ context.Context, id int64) (*models.News, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	item, ok := m.items[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	cp := *item
	return &cp, nil
}

func (m *memNews) Create(_ context.Context, item *models.News) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	item.ID = m.nextID
	item.PublicationDate = time.Now().UTC()
	m.nextID++
	cp := *item
	m.items[item.ID] = &cp
	return nil
}

func (m *memNews) Update(_ context.Context, item *models.News) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.items[item.ID]; !ok {
		return sql.ErrNoRows
	}
	cp := *item
	m.items[item.ID] = &cp
	return nil
}

func (m *memNews) Delete(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.items[id]; !ok {
		return sql.ErrNoRows
	}
	delete(m.items, id)
	return nil
}

type memComments struct {
	mu     sync.Mutex
	items  map[int64]*models.Comment
	nextID int64
}

func newMemComments() *memComments {
	return &memComments{items: map[int64]*models.Comment{}, nextID: 1}
}

func (m *memComments) List(_ context.Context, _, _ int) ([]models.Comment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []models.Comment{}
	for id := int64(1); id < m.nextID; id++ {
		if item, ok := m.items[id]; ok {
			out = append(out, *item)
		}
	}
	return out, nil
}

func (m *memComments) ListByNews(ctx context.Context, newsID int64, skip, limit int) ([]models.Comment, error) {
	all, _ := m.List(ctx, skip, limit)
	out := []models.Comment{}
	for _, c := range all {
		if c.NewsID != nil && *c.NewsID == newsID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (m *memComments) FindByID(_ context.Context, id int64) (*models.Comment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	item, ok := m.items[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	cp := *item
	return &cp, nil
}

func (m *memComments) Create(_ context.Context, item *models.Comment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	item.ID = m.nextID
	m.nextID++
	cp := *item
	m.items[item.ID] = &cp
	return nil
}

func (m *memComments) UpdateText(_ context.Context, id int64, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	item, ok := m.items[id]
	if !ok {
		return sql.ErrNoRows
	}
	item.Text = text
	return nil
}

func (m *memComments) Delete(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.items, id)
	return nil
}

var (
	readerUser = &models.User{ID: 1, Name: "Reader", Email: "reader@x.com"}
	authorUser = &models.User{ID: 2, Name: "Author", Email: "author@x.com", IsVerifiedAuthor: true}
	adminUser  = &models.User{ID: 3, Name: "Admin", Email: "admin@x.com", IsAdmin: true}
)

// actAs stands in for Authenticate. The user is read from the X-Test-User header.
func actAs(users ...*models.User) gin.HandlerFunc {
	return func(c *gin.Context) {
		for _, u := range users {
			if c.GetHeader("X-Test-User") == u.Email {
				c.Set(middleware.ContextUserKey, u)
			}
		}
		c.Next()
	}
}

type fixture struct {
	router   *gin.Engine
	news     *memNews
	comments *memComments
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	access := service.NewAccessService(nil, nil, nil, 0, nil, nil)
	newsRepo := newMemNews()
	commentRepo := newMemComments()
	users := &memUsers{users: []models.User{*readerUser, *authorUser, *adminUser}}

	newsSvc := service.NewNewsService(newsRepo, nil, access, nil, nil, 0, nil, nil)
	commentSvc := service.NewCommentService(commentRepo, newsRepo, access, errreport.Nop{}, nil, nil)

	userH := NewUserHandler(service.NewUserService(users, nil))
	newsH := NewNewsHandler(newsSvc)
	commentH := NewCommentHandler(commentSvc)

	r := gin.New()
	r.Use(actAs(readerUser, authorUser, adminUser))
	r.GET("/users", userH.List)
	r.GET("/users/:id", userH.Get)
	r.GET("/news", newsH.List)
	r.GET("/news/:id", newsH.Get)
	r.POST("/news", middleware.RequireVerifiedAuthor(access), newsH.Create)
	r.PUT("/news/:id", newsH.Update)
	r.DELETE("/news/:id", newsH.Delete)
	r.GET("/news/:id/comments", commentH.ListByNews)
	r.POST("/news/:id/comments", commentH.Create)
	r.GET("/comments", commentH.List)
	r.PUT("/comments/:id", commentH.Update)
	r.DELETE("/comments/:id", commentH.Delete)

	return &fixture{router: r, news: newsRepo, comments: commentRepo}
}

func (f *fixture) do(method, path, body string, as *models.User) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if as != nil {
		req.Header.Set("X-Test-User", as.Email)
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

type envelope struct {
	Data       json.RawMessage        `json:"data"`
	Error      *struct{ Code string } `json:"error"`
	Pagination *models.Pagination     `json:"pagination"`
}

func decode(t *testing.T, w *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	return env
}

func TestUsersListCarriesPagination(t *testing.T) {
	f := newFixture(t)
	w := f.do(http.MethodGet, "/users?skip=1&limit=500", "", readerUser)
	require.Equal(t, http.StatusOK, w.Code)

	env := decode(t, w)
	require.NotNil(t, env.Pagination)
	assert.Equal(t, 1, env.Pagination.Skip)
	assert.Equal(t, 100, env.Pagination.Limit)
	assert.Equal(t, 3, env.Pagination.TotalCount)

	var users []models.User
	require.NoError(t, json.Unmarshal(env.Data, &users))
	assert.Len(t, users, 2)
}

func TestUsersGet(t *testing.T) {
	f := newFixture(t)
	assert.Equal(t, http.StatusOK, f.do(http.MethodGet, "/users/2", "", readerUser).Code)

	w := f.do(http.MethodGet, "/users/99", "", readerUser)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "NOT_FOUND", decode(t, w).Error.Code)

	w = f.do(http.MethodGet, "/users/abc", "", readerUser)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "VALIDATION_ERROR", decode(t, w).Error.Code)
}

func TestNewsLifecycle(t *testing.T) {
	f := newFixture(t)

	w := f.do(http.MethodPost, "/news", `{"title":"  Hello  ","content":"World"}`, authorUser)
	require.Equal(t, http.StatusCreated, w.Code)
	var created models.News
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &created))
	assert.Equal(t, "Hello", created.Title)
	require.NotNil(t, created.AuthorID)
	assert.Equal(t, authorUser.ID, *created.AuthorID)

	w = f.do(http.MethodGet, "/news/1", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = f.do(http.MethodPut, "/news/1", `{"content":"Edited"}`, readerUser)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = f.do(http.MethodPut, "/news/1", `{"content":"Edited"}`, authorUser)
	require.Equal(t, http.StatusOK, w.Code)
	var updated models.News
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &updated))
	assert.Equal(t, "Edited", updated.Content)
	assert.Equal(t, "Hello", updated.Title)

	w = f.do(http.MethodDelete, "/news/1", "", adminUser)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, http.StatusNotFound, f.do(http.MethodGet, "/news/1", "", nil).Code)
}

func TestNewsCreateRequiresVerifiedAuthor(t *testing.T) {
	f := newFixture(t)

	w := f.do(http.MethodPost, "/news", `{"title":"t","content":"c"}`, readerUser)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "FORBIDDEN", decode(t, w).Error.Code)

	w = f.do(http.MethodPost, "/news", `{"title":"t","content":"c"}`, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestNewsCreateRejectsBadPayload(t *testing.T) {
	f := newFixture(t)

	w := f.do(http.MethodPost, "/news", `{"title":`, authorUser)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = f.do(http.MethodPost, "/news", `{"title":"   ","content":"c"}`, authorUser)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "VALIDATION_ERROR", decode(t, w).Error.Code)
}

func TestCommentsFlow(t *testing.T) {
	f := newFixture(t)
	require.Equal(t, http.StatusCreated, f.do(http.MethodPost, "/news", `{"title":"t","content":"c"}`, authorUser).Code)

	w := f.do(http.MethodPost, "/news/1/comments", `{"text":"nice"}`, readerUser)
	require.Equal(t, http.StatusCreated, w.Code)

	w = f.do(http.MethodPost, "/news/42/comments", `{"text":"lost"}`, readerUser)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = f.do(http.MethodPost, "/news/1/comments", `{"text":"anon"}`, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = f.do(http.MethodGet, "/news/1/comments", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var listed []models.Comment
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &listed))
	require.Len(t, listed, 1)
	assert.Equal(t, "nice", listed[0].Text)

	assert.Equal(t, http.StatusForbidden, f.do(http.MethodPut, "/comments/1", `{"text":"hijack"}`, authorUser).Code)
	assert.Equal(t, http.StatusOK, f.do(http.MethodPut, "/comments/1", `{"text":"edited"}`, readerUser).Code)
	assert.Equal(t, http.StatusNoContent, f.do(http.MethodDelete, "/comments/1", "", adminUser).Code)

	w = f.do(http.MethodGet, "/comments", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &listed))
	assert.Empty(t, listed)
}

func TestPageParamsDefaults(t *testing.T) {
	gin.SetMode(gin.TestMode)
	cases := map[string][2]int{
		"/":                 {0, 100},
		"/?skip=5&limit=10": {5, 10},
		"/?skip=-3&limit=0": {0, 100},
		"/?skip=x&limit=y":  {0, 100},
		"/?limit=1000":      {0, 100},
	}
	for target, want := range cases {
		c, _ := gin.CreateTestContext(httptest.NewRecorder())
		c.Request = httptest.NewRequest(http.MethodGet, target, nil)
		skip, limit := pageParams(c)
		assert.Equal(t, want[0], skip, target)
		assert.Equal(t, want[1], limit, target)
	}
}

func TestRefreshTokenSources(t *testing.T) {
	gin.SetMode(gin.TestMode)

	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"refresh_token":"from-body"}`))
	token, err := refreshToken(c)
	require.NoError(t, err)
	assert.Equal(t, "from-body", token)

	c, _ = gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest(http.MethodPost, "/", nil)
	c.Request.Header.Set("Authorization", "Bearer from-header")
	token, err = refreshToken(c)
	require.NoError(t, err)
	assert.Equal(t, "from-header", token)

	c, _ = gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest(http.MethodPost, "/", nil)
	_, err = refreshToken(c)
	assert.Error(t, err)
}

func TestHealthAndReady(t *testing.T) {
	gin.SetMode(gin.TestMode)
	ok := PingFunc(func(context.Context) error { return nil })
	down := PingFunc(func(context.Context) error { return errors.New("connection refused") })

	h := NewMetricsHandler(service.NewMetricsService(), "", map[string]Pinger{"postgres": ok, "redis": ok}, nil)
	r := gin.New()
	r.GET("/health", h.Health)
	r.GET("/ready", h.Ready)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.JSONEq(t, `{"status":"healthy"}`, w.Body.String())

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ready", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	h = NewMetricsHandler(service.NewMetricsService(), "", map[string]Pinger{"postgres": ok, "redis": down}, nil)
	r = gin.New()
	r.GET("/ready", h.Ready)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ready", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.JSONEq(t, `{"status":"not_ready","checks":{"postgres":"ok","redis":"unavailable"}}`, w.Body.String())
}

func TestMetricsExportWritesFile(t *testing.T) {
	gin.SetMode(gin.TestMode)
	metrics := service.NewMetricsService()
	metrics.IncNewsCreated()
	path := filepath.Join(t.TempDir(), "metrics.json")

	h := NewMetricsHandler(metrics, path, nil, nil)
	r := gin.New()
	r.GET("/metrics/export", h.Export)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics/export", nil))
	require.Equal(t, http.StatusOK, w.Code)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	var out models.MetricsExport
	require.NoError(t, json.Unmarshal(raw, &out))
	found := false
	for _, s := range out.Metrics {
		if s.Name == "news_created_total" {
			found = true
			assert.Equal(t, float64(1), s.Value)
		}
	}
	assert.True(t, found)
}

func TestRegisterRoutesGuardsWrites(t *testing.T) {
	gin.SetMode(gin.TestMode)
	access := service.NewAccessService(nil, nil, nil, 0, nil, nil)
	r := gin.New()
	RegisterRoutes(r, "/api", Handlers{
		Auth:     NewAuthHandler(nil),
		Users:    NewUserHandler(nil),
		News:     NewNewsHandler(nil),
		Comments: NewCommentHandler(nil),
		Metrics:  NewMetricsHandler(service.NewMetricsService(), "", nil, nil),
	}, access)

	cases := []struct {
		method, path string
		want         int
	}{
		{http.MethodGet, "/health", http.StatusOK},
		{http.MethodPost, "/api/news", http.StatusUnauthorized},
		{http.MethodDelete, "/api/news/1", http.StatusUnauthorized},
		{http.MethodGet, "/api/users", http.StatusUnauthorized},
		{http.MethodGet, "/api/auth/me", http.StatusUnauthorized},
		{http.MethodPost, "/api/news/1/comments", http.StatusUnauthorized},
		{http.MethodGet, "/api/digests/download", http.StatusNotFound},
	}
	for _, tc := range cases {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(tc.method, tc.path, nil))
		assert.Equal(t, tc.want, w.Code, tc.method+" "+tc.path)
	}
}
