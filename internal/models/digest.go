package models

import "time"

// Digest describes one generated weekly digest.
type Digest struct {
	ID          string    `json:"id"`
	WeekStart   time.Time `json:"week_start"`
	WeekEnd     time.Time `json:"week_end"`
	NewsCount   int       `json:"news_count"`
	GeneratedAt time.Time `json:"generated_at"`
	PDFFile     string    `json:"-"`
	CSVFile     string    `json:"-"`
}

// DigestLink is a signed download link for one digest artifact.
type DigestLink struct {
	Format    string    `json:"format"`
	File      string    `json:"file"`
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expires_at"`
}
