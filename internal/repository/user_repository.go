package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/news-api/internal/models"
)

// ErrDuplicateEmail is returned when the users.email unique index rejects a write.
var ErrDuplicateEmail = errors.New("email already registered")

const userColumns = `id, name, email, password, is_verified_author, is_admin, avatar, github_id, registration_date`

// UserRepository provides database access for users.
type UserRepository struct {
	db *sqlx.DB
}

// NewUserRepository creates a new instance of UserRepository.
func NewUserRepository(db *sqlx.DB) *UserRepository {
	return &UserRepository{db: db}
}

// FindByEmail returns a user by email address.
func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.findOne(ctx, "email", `SELECT `+userColumns+` FROM users WHERE email = $1 LIMIT 1`, email)
}

// FindByID returns a user by identifier.
func (r *UserRepository) FindByID(ctx context.Context, id int64) (*models.User, error) {
	return r.findOne(ctx, "id", `SELECT `+userColumns+` FROM users WHERE id = $1 LIMIT 1`, id)
}

// FindByGitHubID returns the user linked to a GitHub account.
func (r *UserRepository) FindByGitHubID(ctx context.Context, githubID string) (*models.User, error) {
	return r.findOne(ctx, "github id", `SELECT `+userColumns+` FROM users WHERE github_id = $1 LIMIT 1`, githubID)
}

func (r *UserRepository) findOne(ctx context.Context, by, query string, arg interface{}) (*models.User, error) {
	var user models.User
	if err := r.db.GetContext(ctx, &user, query, arg); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sql.ErrNoRows
		}
		return nil, fmt.Errorf("find user by %s: %w", by, err)
	}
	return &user, nil
}

// Create inserts the user and fills in the generated id and registration date.
func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	const query = `INSERT INTO users (name, email, password, is_verified_author, is_admin, avatar, github_id)
VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id, registration_date`
	row := r.db.QueryRowxContext(ctx, query,
		user.Name, user.Email, user.PasswordHash, user.IsVerifiedAuthor, user.IsAdmin, user.Avatar, user.GitHubID)
	if err := row.Scan(&user.ID, &user.RegistrationDate); err != nil {
		if isUniqueViolation(err, "users_email_key") {
			return ErrDuplicateEmail
		}
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

// UpdateProfile writes the name, email and avatar of an existing user.
func (r *UserRepository) UpdateProfile(ctx context.Context, user *models.User) error {
	const query = `UPDATE users SET name = $2, email = $3, avatar = $4 WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, user.ID, user.Name, user.Email, user.Avatar)
	if err != nil {
		if isUniqueViolation(err, "users_email_key") {
			return ErrDuplicateEmail
		}
		return fmt.Errorf("update user profile: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// List returns a page of users ordered by id with the total count.
func (r *UserRepository) List(ctx context.Context, filter models.UserFilter) ([]models.User, int, error) {
	skip, limit := models.ClampPage(filter.Skip, filter.Limit)

	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM users`); err != nil {
		return nil, 0, fmt.Errorf("count users: %w", err)
	}

	users := []models.User{}
	query := `SELECT ` + userColumns + ` FROM users ORDER BY id ASC LIMIT $1 OFFSET $2`
	if err := r.db.SelectContext(ctx, &users, query, limit, skip); err != nil {
		return nil, 0, fmt.Errorf("list users: %w", err)
	}
	return users, total, nil
}

// ListRecipients returns every user for notification fan-out.
func (r *UserRepository) ListRecipients(ctx context.Context) ([]models.User, error) {
	users := []models.User{}
	query := `SELECT ` + userColumns + ` FROM users ORDER BY id ASC`
	if err := r.db.SelectContext(ctx, &users, query); err != nil {
		return nil, fmt.Errorf("list recipients: %w", err)
	}
	return users, nil
}

// isUniqueViolation reports a Postgres 23505 error, optionally on a specific constraint.
func isUniqueViolation(err error, constraint string) bool {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) || pqErr.Code != "23505" {
		return false
	}
	return constraint == "" || pqErr.Constraint == "" || pqErr.Constraint == constraint
}
