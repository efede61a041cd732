package token

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newCodec(t *testing.T) *Codec {
	t.Helper()
	c, err := NewCodec(Config{Secret: "secret", Algorithm: "HS256", AccessTTL: 30 * time.Minute, RefreshTTL: 7 * 24 * time.Hour})
	require.NoError(t, err)
	return c
}

func TestAccessRoundTrip(t *testing.T) {
	c := newCodec(t)
	raw, err := c.IssueAccess(42, "a@x.com")
	require.NoError(t, err)

	claims, err := c.Verify(raw)
	require.NoError(t, err)
	assert.Equal(t, int64(42), claims.UserID)
	assert.Equal(t, "a@x.com", claims.Email)
	assert.Equal(t, TypeAccess, claims.Type)
}

func TestRefreshTokensAreUnique(t *testing.T) {
	c := newCodec(t)
	a, err := c.IssueRefresh(1)
	require.NoError(t, err)
	b, err := c.IssueRefresh(1)
	require.NoError(t, err)
	assert.NotEqual(t, a, b)

	claims, err := c.Verify(a)
	require.NoError(t, err)
	assert.Equal(t, TypeRefresh, claims.Type)
	assert.Empty(t, claims.Email)
}

func TestVerifyAfterExpiry(t *testing.T) {
	c := newCodec(t)
	raw, err := c.IssueAccess(1, "a@x.com")
	require.NoError(t, err)

	c.now = func() time.Time { return time.Now().Add(31 * time.Minute) }
	_, err = c.Verify(raw)
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestVerifyRejectsTampering(t *testing.T) {
	c := newCodec(t)
	raw, err := c.IssueAccess(1, "a@x.com")
	require.NoError(t, err)

	b := []byte(raw)
	b[len(b)/2] ^= 0x01
	_, err = c.Verify(string(b))
	assert.ErrorIs(t, err, ErrInvalid)

	_, err = c.Verify("not-a-jwt")
	assert.ErrorIs(t, err, ErrInvalid)
	_, err = c.Verify("")
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestVerifyRejectsOtherKeyAndAlgorithm(t *testing.T) {
	c := newCodec(t)
	other, err := NewCodec(Config{Secret: "other", AccessTTL: time.Minute, RefreshTTL: time.Hour})
	require.NoError(t, err)
	raw, err := other.IssueAccess(1, "a@x.com")
	require.NoError(t, err)
	_, err = c.Verify(raw)
	assert.ErrorIs(t, err, ErrInvalid)

	hs512, err := jwt.NewWithClaims(jwt.SigningMethodHS512, Claims{
		UserID: 1, Type: TypeAccess,
		RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))},
	}).SignedString([]byte("secret"))
	require.NoError(t, err)
	_, err = c.Verify(hs512)
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestVerifyRejectsUnknownType(t *testing.T) {
	c := newCodec(t)
	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		UserID: 1, Type: "reset",
		RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))},
	}).SignedString([]byte("secret"))
	require.NoError(t, err)
	_, err = c.Verify(raw)
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestNewCodecValidation(t *testing.T) {
	_, err := NewCodec(Config{Algorithm: "HS256", AccessTTL: time.Minute, RefreshTTL: time.Hour})
	assert.Error(t, err)
	_, err = NewCodec(Config{Secret: "s", Algorithm: "RS256", AccessTTL: time.Minute, RefreshTTL: time.Hour})
	assert.Error(t, err)
	_, err = NewCodec(Config{Secret: "s", Algorithm: "HS384"})
	assert.Error(t, err)
}
