package service

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/news-api/internal/models"
	appErrors "github.com/noah-isme/news-api/pkg/errors"
	"github.com/noah-isme/news-api/pkg/export"
	"github.com/noah-isme/news-api/pkg/storage"
)

const (
	digestPrefix = "digest_"
	formatPDF    = "pdf"
	formatCSV    = "csv"
)

type weeklyNewsSource interface {
	ListBetween(ctx context.Context, from, to time.Time) ([]models.News, error)
}

type artifactStorage interface {
	Save(name string, data []byte) error
	Open(name string) (*os.File, error)
	Latest(suffix string) (string, error)
	CleanupOlderThan(ttl time.Duration) ([]string, error)
}

type downloadSigner interface {
	Sign(name string) (string, time.Time, error)
	Verify(token string) (string, error)
}

// DigestConfig tunes digest generation.
type DigestConfig struct {
	Location  *time.Location
	APIPrefix string
	Retention time.Duration
}

// DigestService builds the weekly news digest and serves its files.
type DigestService struct {
	news    weeklyNewsSource
	storage artifactStorage
	signer  downloadSigner
	metrics *MetricsService
	logger  *zap.Logger
	cfg     DigestConfig
	now     func() time.Time
}

// NewDigestService constructs a DigestService.
func NewDigestService(news weeklyNewsSource, store artifactStorage, signer downloadSigner, metrics *MetricsService, cfg DigestConfig, logger *zap.Logger) *DigestService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	return &DigestService{news: news, storage: store, signer: signer, metrics: metrics, logger: logger, cfg: cfg, now: time.Now}
}

// WeekBounds returns the Monday 00:00 starting the week of t and the
// following Monday, both in loc.
func WeekBounds(t time.Time, loc *time.Location) (time.Time, time.Time) {
	local := t.In(loc)
	offset := (int(local.Weekday()) + 6) % 7
	start := time.Date(local.Year(), local.Month(), local.Day()-offset, 0, 0, 0, 0, loc)
	return start, start.AddDate(0, 0, 7)
}

// Generate collects the current week's news and stores the digest as PDF and CSV.
func (s *DigestService) Generate(ctx context.Context) (*models.Digest, error) {
	now := s.now().In(s.cfg.Location)
	start, end := WeekBounds(now, s.cfg.Location)

	items, err := s.news.ListBetween(ctx, start, end)
	if err != nil {
		return nil, err
	}

	digest := &models.Digest{
		ID:          uuid.NewString(),
		WeekStart:   start,
		WeekEnd:     end.AddDate(0, 0, -1),
		NewsCount:   len(items),
		GeneratedAt: now,
	}
	s.logDigest(digest, items)

	table := digestTable(digest, items)
	base := fmt.Sprintf("%s%s_%s", digestPrefix, start.Format("20060102"), now.Format("20060102_150405"))

	pdf, err := export.RenderPDF(table)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to render digest pdf")
	}
	csv, err := export.RenderCSV(table)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to render digest csv")
	}

	digest.PDFFile = base + "." + formatPDF
	digest.CSVFile = base + "." + formatCSV
	if err := s.storage.Save(digest.CSVFile, csv); err != nil {
		return nil, appErrors.Internal(err, "failed to store digest csv")
	}
	if err := s.storage.Save(digest.PDFFile, pdf); err != nil {
		return nil, appErrors.Internal(err, "failed to store digest pdf")
	}

	s.metrics.IncDigestsGenerated()
	if s.cfg.Retention > 0 {
		if removed, err := s.storage.CleanupOlderThan(s.cfg.Retention); err != nil {
			s.logger.Warn("digest cleanup failed", zap.Error(err))
		} else if len(removed) > 0 {
			s.logger.Info("old digests removed", zap.Int("count", len(removed)))
		}
	}
	return digest, nil
}

// Latest returns signed download links for the most recent digest.
func (s *DigestService) Latest(_ context.Context) ([]models.DigestLink, error) {
	pdfName, err := s.storage.Latest("." + formatPDF)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "no digest generated yet")
		}
		return nil, appErrors.Internal(err, "failed to locate digest")
	}
	csvName := strings.TrimSuffix(pdfName, "."+formatPDF) + "." + formatCSV

	links := make([]models.DigestLink, 0, 2)
	for _, f := range []struct{ format, name string }{{formatPDF, pdfName}, {formatCSV, csvName}} {
		token, expiresAt, err := s.signer.Sign(f.name)
		if err != nil {
			return nil, appErrors.Internal(err, "failed to sign digest link")
		}
		links = append(links, models.DigestLink{
			Format:    f.format,
			File:      f.name,
			URL:       strings.TrimRight(s.cfg.APIPrefix, "/") + "/digests/download?token=" + url.QueryEscape(token),
			ExpiresAt: expiresAt,
		})
	}
	return links, nil
}

// Open resolves a signed download token to the stored file.
func (s *DigestService) Open(token string) (*os.File, string, error) {
	name, err := s.signer.Verify(token)
	if err != nil {
		if errors.Is(err, storage.ErrTokenExpired) {
			return nil, "", appErrors.Clone(appErrors.ErrForbidden, "download link expired")
		}
		return nil, "", appErrors.Clone(appErrors.ErrForbidden, "invalid download link")
	}
	f, err := s.storage.Open(name)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, "", appErrors.Clone(appErrors.ErrNotFound, "digest not found")
		}
		return nil, "", appErrors.Internal(err, "failed to open digest")
	}
	return f, name, nil
}

func (s *DigestService) logDigest(d *models.Digest, items []models.News) {
	s.logger.Info("weekly digest",
		zap.String("digest_id", d.ID),
		zap.String("week_start", d.WeekStart.Format("2006-01-02")),
		zap.String("week_end", d.WeekEnd.Format("2006-01-02")),
		zap.Int("news_count", d.NewsCount),
	)
	if len(items) == 0 {
		s.logger.Info("no news published this week", zap.String("digest_id", d.ID))
		return
	}
	for i, item := range items {
		s.logger.Info("weekly digest entry",
			zap.String("digest_id", d.ID),
			zap.Int("position", i+1),
			zap.Int64("news_id", item.ID),
			zap.String("title", item.Title),
			zap.String("published", item.PublicationDate.Format("2006-01-02")),
		)
	}
}

func digestTable(d *models.Digest, items []models.News) export.Table {
	table := export.Table{
		Title: fmt.Sprintf("Weekly digest %s - %s (%d news)", d.WeekStart.Format("02.01.2006"), d.WeekEnd.Format("02.01.2006"), d.NewsCount),
		Columns: []export.Column{
			{Header: "#", Weight: 0.5},
			{Header: "Title", Weight: 3},
			{Header: "Author", Weight: 1},
			{Header: "Published", Weight: 1.2},
			{Header: "Content", Weight: 5},
		},
		Rows: make([][]string, 0, len(items)),
	}
	for i, item := range items {
		author := ""
		if item.AuthorID != nil {
			author = strconv.FormatInt(*item.AuthorID, 10)
		}
		table.Rows = append(table.Rows, []string{
			strconv.Itoa(i + 1),
			item.Title,
			author,
			item.PublicationDate.Format("02.01.2006"),
			item.Content,
		})
	}
	return table
}
