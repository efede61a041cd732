// Package errreport forwards operational failures to an error-tracking sink.
package errreport

import (
	"context"

	"go.uber.org/zap"

	"github.com/noah-isme/news-api/pkg/middleware/requestid"
)

// Reporter receives failures worth tracking outside the request log.
type Reporter interface {
	Report(ctx context.Context, err error, fields map[string]string)
}

// ZapReporter writes reports as error-level log entries.
type ZapReporter struct {
	logger *zap.Logger
}

// NewZapReporter constructs a reporter backed by logger.
func NewZapReporter(logger *zap.Logger) *ZapReporter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ZapReporter{logger: logger.Named("errreport")}
}

// Report logs err with the provided fields and the request id, if any.
func (r *ZapReporter) Report(ctx context.Context, err error, fields map[string]string) {
	if err == nil {
		return
	}
	zf := make([]zap.Field, 0, len(fields)+2)
	zf = append(zf, zap.Error(err))
	for k, v := range fields {
		zf = append(zf, zap.String(k, v))
	}
	if id := requestid.FromContext(ctx); id != "" {
		zf = append(zf, zap.String("request_id", id))
	}
	r.logger.Error("error_reported", zf...)
}

// Nop discards every report.
type Nop struct{}

// Report implements Reporter.
func (Nop) Report(context.Context, error, map[string]string) {}
