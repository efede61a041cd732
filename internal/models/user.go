package models

import "time"

// User is the durable identity record stored in the users table.
type User struct {
	ID               int64     `db:"id" json:"id"`
	Name             string    `db:"name" json:"name"`
	Email            string    `db:"email" json:"email"`
	PasswordHash     *string   `db:"password" json:"-"`
	IsVerifiedAuthor bool      `db:"is_verified_author" json:"is_verified_author"`
	IsAdmin          bool      `db:"is_admin" json:"is_admin"`
	Avatar           *string   `db:"avatar" json:"avatar,omitempty"`
	GitHubID         *string   `db:"github_id" json:"-"`
	RegistrationDate time.Time `db:"registration_date" json:"registration_date"`
}

// HasPassword reports whether the account can sign in with a password.
// Accounts created through GitHub have none.
func (u *User) HasPassword() bool {
	return u != nil && u.PasswordHash != nil && *u.PasswordHash != ""
}

// CanPublish reports whether the user may create news.
func (u *User) CanPublish() bool {
	return u != nil && (u.IsVerifiedAuthor || u.IsAdmin)
}

// UserFilter captures paging for listing users.
type UserFilter struct {
	Skip  int
	Limit int
}

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Skip       int `json:"skip"`
	Limit      int `json:"limit"`
	TotalCount int `json:"total_count"`
}

// ClampPage normalises skip/limit query values.
func ClampPage(skip, limit int) (int, int) {
	if skip < 0 {
		skip = 0
	}
	if limit <= 0 {
		limit = 100
	}
	if limit > 100 {
		limit = 100
	}
	return skip, limit
}
