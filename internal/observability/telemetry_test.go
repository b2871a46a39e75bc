package observability

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitTelemetryDisabled(t *testing.T) {
	shutdown, err := InitTelemetry(context.Background(), "test", false)
	require.NoError(t, err)
	assert.NoError(t, shutdown(context.Background()))

	// Без провайдера спаны no-op, но вызывать их безопасно
	_, span := Tracer("test").Start(context.Background(), "phase")
	span.End()
	assert.False(t, span.SpanContext().IsValid())
}
