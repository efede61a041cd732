package models

import "time"

// News is a published article.
type News struct {
	ID              int64     `db:"id" json:"id"`
	Title           string    `db:"title" json:"title"`
	Content         string    `db:"content" json:"content"`
	PublicationDate time.Time `db:"publication_date" json:"publication_date"`
	AuthorID        *int64    `db:"author_id" json:"author_id"`
	CoverImage      *string   `db:"cover_image" json:"cover_image,omitempty"`
}

// OwnedBy reports whether userID authored the article.
func (n *News) OwnedBy(userID int64) bool {
	return n != nil && n.AuthorID != nil && *n.AuthorID == userID
}

// CreateNewsRequest is the payload for publishing news.
type CreateNewsRequest struct {
	Title      string  `json:"title" validate:"required,max=200"`
	Content    string  `json:"content" validate:"required"`
	CoverImage *string `json:"cover_image,omitempty" validate:"omitempty,max=200"`
}

// UpdateNewsRequest carries a partial update. Nil fields are left unchanged.
type UpdateNewsRequest struct {
	Title      *string `json:"title,omitempty" validate:"omitempty,min=1,max=200"`
	Content    *string `json:"content,omitempty" validate:"omitempty,min=1"`
	CoverImage *string `json:"cover_image,omitempty" validate:"omitempty,max=200"`
}

// NewsFilter selects news by publication window and page.
type NewsFilter struct {
	From  *time.Time
	To    *time.Time
	Skip  int
	Limit int
}
