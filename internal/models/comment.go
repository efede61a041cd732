package models

import "time"

// Comment is a reader comment attached to a news article.
type Comment struct {
	ID              int64     `db:"id" json:"id"`
	Text            string    `db:"text" json:"text"`
	NewsID          *int64    `db:"news_id" json:"news_id"`
	AuthorID        *int64    `db:"author_id" json:"author_id"`
	PublicationDate time.Time `db:"publication_date" json:"publication_date"`
}

// OwnedBy reports whether userID wrote the comment.
func (c *Comment) OwnedBy(userID int64) bool {
	return c != nil && c.AuthorID != nil && *c.AuthorID == userID
}

// CommentRequest is the payload for creating or editing a comment.
type CommentRequest struct {
	Text string `json:"text" validate:"required,max=5000"`
}
