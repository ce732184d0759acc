package observability

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	otellog "go.opentelemetry.io/otel/log"
)

func TestInitMetrics_NoopProvider(t *testing.T) {
	m, err := InitMetrics()
	require.NoError(t, err)

	ctx := context.Background()
	assert.NotPanics(t, func() {
		RecordRequestMetric(ctx, m, "GET", "GET /health", 200, time.Millisecond)
		RecordDBMetric(ctx, m, "appointments.insert", time.Millisecond)
		RecordCacheHit(ctx, m, "user")
		RecordCacheMiss(ctx, m, "user")
		RecordBooking(ctx, m, "booked")
	})
}

func TestRecordHelpers_NilMetrics(t *testing.T) {
	assert.NotPanics(t, func() {
		RecordBooking(context.Background(), nil, "conflict")
		RecordCacheHit(context.Background(), nil, "user")
	})
}

func TestRequestID(t *testing.T) {
	ctx := WithRequestID(context.Background(), "req-42")
	assert.Equal(t, "req-42", RequestID(ctx))
	assert.Equal(t, "", RequestID(context.Background()))
	assert.NotNil(t, LoggerFromContext(ctx))
}

func TestSeverity(t *testing.T) {
	assert.Equal(t, otellog.SeverityInfo, severity(zerolog.InfoLevel))
	assert.Equal(t, otellog.SeverityWarn, severity(zerolog.WarnLevel))
	assert.Equal(t, otellog.SeverityError, severity(zerolog.ErrorLevel))
	assert.Equal(t, otellog.SeverityFatal, severity(zerolog.PanicLevel))
}
