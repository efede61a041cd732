package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/news-api/internal/models"
)

const commentColumns = `id, text, news_id, author_id, publication_date`

// CommentRepository provides database access for comments.
type CommentRepository struct {
	db *sqlx.DB
}

// NewCommentRepository constructs a CommentRepository.
func NewCommentRepository(db *sqlx.DB) *CommentRepository {
	return &CommentRepository{db: db}
}

// List returns a page of all comments, oldest first.
func (r *CommentRepository) List(ctx context.Context, skip, limit int) ([]models.Comment, error) {
	skip, limit = models.ClampPage(skip, limit)
	items := []models.Comment{}
	query := `SELECT ` + commentColumns + ` FROM comments ORDER BY publication_date ASC, id ASC LIMIT $1 OFFSET $2`
	if err := r.db.SelectContext(ctx, &items, query, limit, skip); err != nil {
		return nil, fmt.Errorf("list comments: %w", err)
	}
	return items, nil
}

// ListByNews returns the comments of a single article, oldest first.
func (r *CommentRepository) ListByNews(ctx context.Context, newsID int64, skip, limit int) ([]models.Comment, error) {
	skip, limit = models.ClampPage(skip, limit)
	items := []models.Comment{}
	query := `SELECT ` + commentColumns + ` FROM comments WHERE news_id = $1 ORDER BY publication_date ASC, id ASC LIMIT $2 OFFSET $3`
	if err := r.db.SelectContext(ctx, &items, query, newsID, limit, skip); err != nil {
		return nil, fmt.Errorf("list news comments: %w", err)
	}
	return items, nil
}

// FindByID returns a comment or sql.ErrNoRows.
func (r *CommentRepository) FindByID(ctx context.Context, id int64) (*models.Comment, error) {
	var item models.Comment
	if err := r.db.GetContext(ctx, &item, `SELECT `+commentColumns+` FROM comments WHERE id = $1`, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sql.ErrNoRows
		}
		return nil, fmt.Errorf("find comment: %w", err)
	}
	return &item, nil
}

// Create inserts a comment and fills its id and publication date.
func (r *CommentRepository) Create(ctx context.Context, item *models.Comment) error {
	const query = `INSERT INTO comments (text, news_id, author_id) VALUES ($1, $2, $3) RETURNING id, publication_date`
	if err := r.db.QueryRowxContext(ctx, query, item.Text, item.NewsID, item.AuthorID).
		Scan(&item.ID, &item.PublicationDate); err != nil {
		return fmt.Errorf("create comment: %w", err)
	}
	return nil
}

// UpdateText replaces the comment body.
func (r *CommentRepository) UpdateText(ctx context.Context, id int64, text string) error {
	res, err := r.db.ExecContext(ctx, `UPDATE comments SET text = $2 WHERE id = $1`, id, text)
	if err != nil {
		return fmt.Errorf("update comment: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Delete removes a comment.
func (r *CommentRepository) Delete(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM comments WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete comment: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return sql.ErrNoRows
	}
	return nil
}
