package errreport

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/noah-isme/news-api/pkg/middleware/requestid"
)

func TestZapReporterLogsFields(t *testing.T) {
	core, logs := observer.New(zap.ErrorLevel)
	r := NewZapReporter(zap.New(core))

	ctx := requestid.WithContext(context.Background(), "req-1")
	r.Report(ctx, errors.New("couldn't login user"), map[string]string{"status_code": "401"})

	entries := logs.All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "couldn't login user", fields["error"])
	assert.Equal(t, "401", fields["status_code"])
	assert.Equal(t, "req-1", fields["request_id"])
}

func TestZapReporterIgnoresNil(t *testing.T) {
	core, logs := observer.New(zap.ErrorLevel)
	NewZapReporter(zap.New(core)).Report(context.Background(), nil, nil)
	assert.Zero(t, logs.Len())
}

func TestNopSatisfiesReporter(t *testing.T) {
	var r Reporter = Nop{}
	r.Report(context.Background(), errors.New("x"), nil)
}
