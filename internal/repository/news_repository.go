package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/news-api/internal/models"
)

const newsColumns = `id, title, content, publication_date, author_id, cover_image`

// NewsRepository provides database access for news articles.
type NewsRepository struct {
	db *sqlx.DB
}

// NewNewsRepository constructs a NewsRepository.
func NewNewsRepository(db *sqlx.DB) *NewsRepository {
	return &NewsRepository{db: db}
}

// List returns news ordered by publication date, optionally bounded to a window.
func (r *NewsRepository) List(ctx context.Context, filter models.NewsFilter) ([]models.News, error) {
	skip, limit := models.ClampPage(filter.Skip, filter.Limit)

	var conditions []string
	var args []interface{}
	if filter.From != nil {
		args = append(args, *filter.From)
		conditions = append(conditions, fmt.Sprintf("publication_date >= $%d", len(args)))
	}
	if filter.To != nil {
		args = append(args, *filter.To)
		conditions = append(conditions, fmt.Sprintf("publication_date < $%d", len(args)))
	}

	query := `SELECT ` + newsColumns + ` FROM news`
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	args = append(args, limit, skip)
	query += fmt.Sprintf(" ORDER BY publication_date ASC, id ASC LIMIT $%d OFFSET $%d", len(args)-1, len(args))

	items := []models.News{}
	if err := r.db.SelectContext(ctx, &items, query, args...); err != nil {
		return nil, fmt.Errorf("list news: %w", err)
	}
	return items, nil
}

// FindByID returns a news item or sql.ErrNoRows.
func (r *NewsRepository) FindByID(ctx context.Context, id int64) (*models.News, error) {
	var item models.News
	if err := r.db.GetContext(ctx, &item, `SELECT `+newsColumns+` FROM news WHERE id = $1`, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sql.ErrNoRows
		}
		return nil, fmt.Errorf("find news: %w", err)
	}
	return &item, nil
}

// Create inserts a news item and fills its id and publication date.
func (r *NewsRepository) Create(ctx context.Context, item *models.News) error {
	const query = `INSERT INTO news (title, content, author_id, cover_image) VALUES ($1, $2, $3, $4) RETURNING id, publication_date`
	if err := r.db.QueryRowxContext(ctx, query, item.Title, item.Content, item.AuthorID, item.CoverImage).
		Scan(&item.ID, &item.PublicationDate); err != nil {
		return fmt.Errorf("create news: %w", err)
	}
	return nil
}

// Update writes title, content and cover image.
func (r *NewsRepository) Update(ctx context.Context, item *models.News) error {
	const query = `UPDATE news SET title = $2, content = $3, cover_image = $4 WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, item.ID, item.Title, item.Content, item.CoverImage)
	if err != nil {
		return fmt.Errorf("update news: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Delete removes the news item and its comments in one transaction.
func (r *NewsRepository) Delete(ctx context.Context, id int64) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin delete news: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.ExecContext(ctx, `DELETE FROM comments WHERE news_id = $1`, id); err != nil {
		return fmt.Errorf("delete news comments: %w", err)
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM news WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete news: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return sql.ErrNoRows
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit delete news: %w", err)
	}
	return nil
}
