package models

import "time"

// Session binds a refresh token to its user and client. It lives only in
// the cache under refresh_session:<token>.
type Session struct {
	UserID       int64     `json:"user_id"`
	RefreshToken string    `json:"refresh_token"`
	UserAgent    string    `json:"user_agent,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// Info strips the token value for listing.
func (s Session) Info() SessionInfo {
	return SessionInfo{
		UserID:    s.UserID,
		UserAgent: s.UserAgent,
		CreatedAt: s.CreatedAt,
		ExpiresAt: s.ExpiresAt,
	}
}

// SessionInfo is the public summary of a session.
type SessionInfo struct {
	UserID    int64     `json:"user_id"`
	UserAgent string    `json:"user_agent,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}
