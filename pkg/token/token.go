// Package token signs and verifies the access and refresh JWTs.
package token

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// ErrInvalid is returned by Verify for any decode, signature or expiry failure.
var ErrInvalid = errors.New("token invalid")

const (
	TypeAccess  = "access"
	TypeRefresh = "refresh"
)

// Claims is the payload of both token kinds. Email is only set on access tokens.
type Claims struct {
	UserID int64  `json:"user_id"`
	Email  string `json:"email,omitempty"`
	Type   string `json:"type"`
	jwt.RegisteredClaims
}

// Config carries the process-wide signing settings.
type Config struct {
	Secret     string
	Algorithm  string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

// Codec issues and verifies tokens with a single HMAC key.
type Codec struct {
	key        []byte
	method     jwt.SigningMethod
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

// NewCodec validates cfg and returns a Codec.
func NewCodec(cfg Config) (*Codec, error) {
	if cfg.Secret == "" {
		return nil, errors.New("token secret is required")
	}
	var method jwt.SigningMethod
	switch strings.ToUpper(cfg.Algorithm) {
	case "", "HS256":
		method = jwt.SigningMethodHS256
	case "HS384":
		method = jwt.SigningMethodHS384
	case "HS512":
		method = jwt.SigningMethodHS512
	default:
		return nil, fmt.Errorf("unsupported signing algorithm %q", cfg.Algorithm)
	}
	if cfg.AccessTTL <= 0 || cfg.RefreshTTL <= 0 {
		return nil, errors.New("token lifetimes must be positive")
	}
	return &Codec{
		key:        []byte(cfg.Secret),
		method:     method,
		accessTTL:  cfg.AccessTTL,
		refreshTTL: cfg.RefreshTTL,
		now:        time.Now,
	}, nil
}

// RefreshTTL is the lifetime of newly issued refresh tokens.
func (c *Codec) RefreshTTL() time.Duration { return c.refreshTTL }

// IssueAccess returns a signed access token for the user.
func (c *Codec) IssueAccess(userID int64, email string) (string, error) {
	return c.sign(Claims{UserID: userID, Email: email, Type: TypeAccess}, c.accessTTL)
}

// IssueRefresh returns a signed refresh token. Each token carries a random
// jti so two refresh tokens issued within the same second still differ.
func (c *Codec) IssueRefresh(userID int64) (string, error) {
	return c.sign(Claims{UserID: userID, Type: TypeRefresh}, c.refreshTTL)
}

// Verify checks signature, algorithm and expiry. Any failure yields ErrInvalid.
func (c *Codec) Verify(raw string) (*Claims, error) {
	if raw == "" {
		return nil, ErrInvalid
	}
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		return c.key, nil
	},
		jwt.WithValidMethods([]string{c.method.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(c.now),
	)
	if err != nil || !parsed.Valid {
		return nil, ErrInvalid
	}
	if claims.Type != TypeAccess && claims.Type != TypeRefresh {
		return nil, ErrInvalid
	}
	return claims, nil
}

func (c *Codec) sign(claims Claims, ttl time.Duration) (string, error) {
	issuedAt := c.now().UTC()
	claims.RegisteredClaims = jwt.RegisteredClaims{
		ID:        uuid.NewString(),
		IssuedAt:  jwt.NewNumericDate(issuedAt),
		ExpiresAt: jwt.NewNumericDate(issuedAt.Add(ttl)),
	}
	signed, err := jwt.NewWithClaims(c.method, claims).SignedString(c.key)
	if err != nil {
		return "", fmt.Errorf("sign %s token: %w", claims.Type, err)
	}
	return signed, nil
}
