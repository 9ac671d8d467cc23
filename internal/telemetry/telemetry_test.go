package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTracer_NoopProviderByDefault(t *testing.T) {
	_, span := Tracer().Start(context.Background(), "probe")
	defer span.End()
	assert.False(t, span.SpanContext().IsValid())
}

func TestSetup_DisabledWithoutEndpoint(t *testing.T) {
	shutdown, err := Setup(context.Background(), "ledger", "")
	require.NoError(t, err)
	require.NotNil(t, shutdown)
	assert.NoError(t, shutdown(context.Background()))
}
