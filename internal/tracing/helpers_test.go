package tracing

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func recorder(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()
	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() {
		otel.SetTracerProvider(prev)
		_ = tp.Shutdown(context.Background())
	})
	return rec
}

func TestStartSpanRecordsError(t *testing.T) {
	rec := recorder(t)

	_, end := StartSpan(context.Background(), "sweep.close_expired", attribute.Int("count", 2))
	end(errors.New("db down"))

	spans := rec.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "sweep.close_expired", spans[0].Name())
	assert.Equal(t, codes.Error, spans[0].Status().Code)
	assert.Contains(t, spans[0].Attributes(), attribute.Int("count", 2))
}

func TestStartGatewaySpanAttributes(t *testing.T) {
	rec := recorder(t)

	_, end := StartGatewaySpan(context.Background(), "validate", "TRIP-1-USER-2-AAAAAAAA")
	end(nil)

	spans := rec.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "gateway validate", spans[0].Name())
	assert.Contains(t, spans[0].Attributes(), attribute.String("payment.transaction_id", "TRIP-1-USER-2-AAAAAAAA"))
	assert.Equal(t, codes.Unset, spans[0].Status().Code)
}

func TestDisabledProvider(t *testing.T) {
	p, err := NewProvider(context.Background(), Config{ServiceName: "tripmate-api"})
	require.NoError(t, err)
	assert.NoError(t, p.Shutdown(context.Background()))
}
