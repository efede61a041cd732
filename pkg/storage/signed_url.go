package storage

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"strconv"
	"strings"
	"time"
)

var (
	ErrTokenMalformed = errors.New("malformed download token")
	ErrTokenSignature = errors.New("invalid download token signature")
	ErrTokenExpired   = errors.New("download token expired")
)

// Signer issues and checks HMAC-SHA256 download tokens of the form
// base64(name).expiry.signature.
type Signer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewSigner constructs a signer with the provided secret and TTL.
func NewSigner(secret string, ttl time.Duration) *Signer {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Signer{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// Sign returns a token granting access to name until the returned time.
func (s *Signer) Sign(name string) (string, time.Time, error) {
	if name == "" {
		return "", time.Time{}, ErrInvalidName
	}
	if len(s.secret) == 0 {
		return "", time.Time{}, errors.New("signing secret missing")
	}
	expiresAt := s.now().Add(s.ttl).Truncate(time.Second)
	encoded := base64.RawURLEncoding.EncodeToString([]byte(name))
	ts := strconv.FormatInt(expiresAt.Unix(), 10)
	return strings.Join([]string{encoded, ts, s.mac(encoded, ts)}, "."), expiresAt, nil
}

// Verify checks the signature and expiry and returns the file name.
func (s *Signer) Verify(token string) (string, error) {
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return "", ErrTokenMalformed
	}
	encoded, ts, sig := parts[0], parts[1], parts[2]
	if !hmac.Equal([]byte(s.mac(encoded, ts)), []byte(sig)) {
		return "", ErrTokenSignature
	}
	exp, err := strconv.ParseInt(ts, 10, 64)
	if err != nil {
		return "", ErrTokenMalformed
	}
	if s.now().After(time.Unix(exp, 0)) {
		return "", ErrTokenExpired
	}
	raw, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil {
		return "", ErrTokenMalformed
	}
	return string(raw), nil
}

func (s *Signer) mac(encoded, ts string) string {
	m := hmac.New(sha256.New, s.secret)
	_, _ = m.Write([]byte(encoded + "|" + ts))
	return hex.EncodeToString(m.Sum(nil))
}
