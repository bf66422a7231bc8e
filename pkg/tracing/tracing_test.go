package tracing

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

func TestInit_NoEndpoint(t *testing.T) {
	shutdown, err := Init(context.Background(), Config{ServiceName: "thumbrelay"})
	require.NoError(t, err)
	assert.NoError(t, shutdown(context.Background()))
}

func TestInjectExtract(t *testing.T) {
	_, err := Init(context.Background(), Config{})
	require.NoError(t, err)

	tp := sdktrace.NewTracerProvider()
	defer tp.Shutdown(context.Background()) //nolint:errcheck

	ctx, span := tp.Tracer("test").Start(context.Background(), "publish")
	defer span.End()

	headers := map[string]string{}
	Inject(ctx, headers)
	require.Contains(t, headers, "traceparent")

	extracted := trace.SpanContextFromContext(Extract(context.Background(), headers))
	assert.Equal(t, span.SpanContext().TraceID(), extracted.TraceID())
	assert.True(t, extracted.IsRemote())
}

func TestExtract_NoHeaders(t *testing.T) {
	ctx := context.Background()
	assert.Equal(t, ctx, Extract(ctx, nil))
}
