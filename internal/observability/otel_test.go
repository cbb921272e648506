package observability_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"

	"github.com/DucAnhIT03/movie-serverside/internal/observability"
)

func TestSetupOTelInstallsPropagator(t *testing.T) {
	shutdown, err := observability.SetupOTel(context.Background(), "")
	require.NoError(t, err)
	defer shutdown()

	// Even without an exporter, incoming traceparent headers must be honored.
	fields := otel.GetTextMapPropagator().Fields()
	assert.Contains(t, fields, "traceparent")
	assert.Contains(t, fields, "baggage")
}
