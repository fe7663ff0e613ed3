package tracer

import (
	"context"
	"testing"

	"ai-notetaking-agent/internal/config"
	"ai-notetaking-agent/internal/pkg/logger"

	"github.com/stretchr/testify/assert"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
)

func TestInitDisabled(t *testing.T) {
	shutdown := Init(config.TracingConfig{Enabled: false}, "test", logger.NewNopLogger())
	assert.NoError(t, shutdown(context.Background()))
}

func TestResource(t *testing.T) {
	t.Run("Named service", func(t *testing.T) {
		res := Resource("notes-agent", "staging")
		name, ok := res.Set().Value(semconv.ServiceNameKey)
		assert.True(t, ok)
		assert.Equal(t, "notes-agent", name.AsString())
		env, ok := res.Set().Value(semconv.DeploymentEnvironmentKey)
		assert.True(t, ok)
		assert.Equal(t, "staging", env.AsString())
	})

	t.Run("Empty name falls back", func(t *testing.T) {
		name, _ := Resource("", "dev").Set().Value(semconv.ServiceNameKey)
		assert.Equal(t, "ai-notetaking-agent", name.AsString())
	})
}
