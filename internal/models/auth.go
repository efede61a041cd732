package models

// RegisterRequest is the payload for email/password registration.
type RegisterRequest struct {
	Name     string  `json:"name" validate:"required,max=100"`
	Email    string  `json:"email" validate:"required,email,max=100"`
	Password string  `json:"password" validate:"required,min=2,max=128"`
	Avatar   *string `json:"avatar,omitempty" validate:"omitempty,max=200"`
}

// LoginRequest holds credentials for authenticating a user.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// RefreshRequest carries a refresh token in the body. The token may also be
// sent as a Bearer header.
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// TokenType is always "bearer".
const TokenType = "bearer"

// TokenPair is returned by every successful sign-in, registration or refresh.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
}

// ClientInfo describes the client that opened a session.
type ClientInfo struct {
	UserAgent string
	IP        string
}

// GitHubLoginResponse carries the consent page URL.
type GitHubLoginResponse struct {
	URL string `json:"url"`
}
