package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/news-api/internal/models"
	appErrors "github.com/noah-isme/news-api/pkg/errors"
)

func int64Ptr(v int64) *int64 { return &v }

func TestResolveIdentityCachesUser(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()
	user := f.addPasswordUser(t, "a@x.com", "p1", nil)
	access, err := f.codec.IssueAccess(user.ID, user.Email)
	require.NoError(t, err)

	got, err := f.access.ResolveIdentity(ctx, access)
	require.NoError(t, err)
	assert.Equal(t, user.ID, got.ID)
	assert.Equal(t, 1, f.users.lookups)
	assert.Equal(t, 300*time.Second, f.redis.TTL("user_id:1"))

	cached, err := f.redis.Get("user_id:1")
	require.NoError(t, err)
	assert.NotContains(t, cached, "argon2id")

	got, err = f.access.ResolveIdentity(ctx, access)
	require.NoError(t, err)
	assert.Equal(t, "a@x.com", got.Email)
	assert.Equal(t, 1, f.users.lookups)
}

func TestResolveIdentityRereadsStoreAfterFreshnessWindow(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()
	user := f.addPasswordUser(t, "a@x.com", "p1", nil)
	access, err := f.codec.IssueAccess(user.ID, user.Email)
	require.NoError(t, err)

	_, err = f.access.ResolveIdentity(ctx, access)
	require.NoError(t, err)

	user.IsVerifiedAuthor = true
	f.users.add(*user)
	f.redis.FastForward(301 * time.Second)

	got, err := f.access.ResolveIdentity(ctx, access)
	require.NoError(t, err)
	assert.True(t, got.IsVerifiedAuthor)
	assert.Equal(t, 2, f.users.lookups)
}

func TestResolveIdentityFallsBackWhenCacheIsDown(t *testing.T) {
	f := newAuthFixture(t)
	user := f.addPasswordUser(t, "a@x.com", "p1", nil)
	access, err := f.codec.IssueAccess(user.ID, user.Email)
	require.NoError(t, err)
	f.redis.Close()

	got, err := f.access.ResolveIdentity(context.Background(), access)
	require.NoError(t, err)
	assert.Equal(t, user.ID, got.ID)
}

func TestResolveIdentityRejectsBadTokens(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()
	user := f.addPasswordUser(t, "a@x.com", "p1", nil)

	_, err := f.access.ResolveIdentity(ctx, "")
	assert.ErrorIs(t, err, appErrors.ErrUnauthorized)

	access, err := f.codec.IssueAccess(user.ID, user.Email)
	require.NoError(t, err)
	tampered := access[:len(access)-2] + "xx"
	_, err = f.access.ResolveIdentity(ctx, tampered)
	assert.ErrorIs(t, err, appErrors.ErrTokenInvalid)
	assert.Equal(t, 401, appErrors.FromError(err).Status)

	refresh, err := f.codec.IssueRefresh(user.ID)
	require.NoError(t, err)
	_, err = f.access.ResolveIdentity(ctx, refresh)
	assert.ErrorIs(t, err, appErrors.ErrTokenInvalid)
}

func TestResolveIdentityUnknownUser(t *testing.T) {
	f := newAuthFixture(t)
	access, err := f.codec.IssueAccess(42, "ghost@x.com")
	require.NoError(t, err)

	_, err = f.access.ResolveIdentity(context.Background(), access)
	assert.ErrorIs(t, err, appErrors.ErrUnauthorized)
}

func TestResolveIdentityStoreFailure(t *testing.T) {
	f := newAuthFixture(t)
	access, err := f.codec.IssueAccess(1, "a@x.com")
	require.NoError(t, err)
	f.users.findErr = errors.New("connection reset")

	_, err = f.access.ResolveIdentity(context.Background(), access)
	assert.ErrorIs(t, err, appErrors.ErrUpstreamUnavailable)
}

func TestInvalidateUserDropsProjection(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()
	user := f.addPasswordUser(t, "a@x.com", "p1", nil)
	access, err := f.codec.IssueAccess(user.ID, user.Email)
	require.NoError(t, err)
	_, err = f.access.ResolveIdentity(ctx, access)
	require.NoError(t, err)

	f.access.InvalidateUser(ctx, user.ID)
	assert.False(t, f.redis.Exists("user_id:1"))
}

func TestPrivilegeChecks(t *testing.T) {
	f := newAuthFixture(t)
	reader := &models.User{ID: 1}
	author := &models.User{ID: 2, IsVerifiedAuthor: true}
	admin := &models.User{ID: 3, IsAdmin: true}

	_, err := f.access.RequireVerifiedAuthor(reader)
	assert.ErrorIs(t, err, appErrors.ErrForbidden)
	_, err = f.access.RequireVerifiedAuthor(author)
	assert.NoError(t, err)
	_, err = f.access.RequireVerifiedAuthor(admin)
	assert.NoError(t, err)
	_, err = f.access.RequireVerifiedAuthor(nil)
	assert.ErrorIs(t, err, appErrors.ErrUnauthorized)

	_, err = f.access.RequireAdmin(author)
	assert.ErrorIs(t, err, appErrors.ErrForbidden)
	_, err = f.access.RequireAdmin(admin)
	assert.NoError(t, err)

	assert.NoError(t, f.access.AuthorizeOwnerOrAdmin(int64Ptr(2), author))
	assert.ErrorIs(t, f.access.AuthorizeOwnerOrAdmin(int64Ptr(1), author), appErrors.ErrForbidden)
	assert.ErrorIs(t, f.access.AuthorizeOwnerOrAdmin(nil, author), appErrors.ErrForbidden)
	assert.NoError(t, f.access.AuthorizeOwnerOrAdmin(nil, admin))
	assert.ErrorIs(t, f.access.AuthorizeOwnerOrAdmin(int64Ptr(1), nil), appErrors.ErrUnauthorized)
}
