package observability

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestAnnounceListsExporterOnlyWhenEnabled(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	log := zap.New(core)

	announce(log, Config{ServiceName: "repuestos", Environment: "test"}, nil)
	announce(log, Config{
		ServiceName:          "repuestos",
		OtelEnabled:          true,
		OtelExporterEndpoint: "collector:4317",
		OtelExporterProtocol: "grpc",
		OtelSamplingRatio:    0.5,
	}, nil)

	entries := logs.FilterMessage("telemetry configured").All()
	require.Len(t, entries, 2)

	disabled := entries[0].ContextMap()
	assert.Equal(t, false, disabled["otel_enabled"])
	assert.NotContains(t, disabled, "otel_endpoint")

	enabled := entries[1].ContextMap()
	assert.Equal(t, "collector:4317", enabled["otel_endpoint"])
	assert.Equal(t, 0.5, enabled["otel_sampling_ratio"])
}
