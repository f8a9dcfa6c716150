package instrumentation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var configEnv = []string{
	"OTEL_SERVICE_NAME",
	"INSTRUMENTATION_ENABLED",
	"METRICS_EXPORTER",
	"TRACING_EXPORTER",
	"OTEL_EXPORTER_OTLP_ENDPOINT",
	"OTEL_TRACES_SAMPLER_ARG",
}

func TestDefaultConfig(t *testing.T) {
	for _, key := range configEnv {
		t.Setenv(key, "")
	}

	cfg := DefaultConfig()
	assert.Equal(t, "housemgr", cfg.ServiceName)
	assert.False(t, cfg.Enabled, "instrumentation is opt-in for the CLI")
	assert.Equal(t, ExporterPrometheus, cfg.MetricsExporter)
	assert.Equal(t, ExporterNone, cfg.TracingExporter)
	assert.Equal(t, 1.0, cfg.TraceSamplingRate)
	require.NoError(t, cfg.Validate())
}

func TestDefaultConfig_FromEnv(t *testing.T) {
	t.Setenv("OTEL_SERVICE_NAME", "housemgr-garage")
	t.Setenv("INSTRUMENTATION_ENABLED", "true")
	t.Setenv("METRICS_EXPORTER", ExporterOTLP)
	t.Setenv("TRACING_EXPORTER", ExporterStdout)
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "collector:4318")
	t.Setenv("OTEL_TRACES_SAMPLER_ARG", "0.25")

	cfg := DefaultConfig()
	assert.Equal(t, "housemgr-garage", cfg.ServiceName)
	assert.True(t, cfg.Enabled)
	assert.Equal(t, ExporterOTLP, cfg.MetricsExporter)
	assert.Equal(t, ExporterStdout, cfg.TracingExporter)
	assert.Equal(t, "collector:4318", cfg.OTLPEndpoint)
	assert.Equal(t, 0.25, cfg.TraceSamplingRate)
	require.NoError(t, cfg.Validate())
}

func TestConfig_Validate(t *testing.T) {
	tests := map[string]struct {
		cfg     Config
		wantErr string
	}{
		"prometheus metrics": {
			cfg: Config{Enabled: true, MetricsExporter: ExporterPrometheus, TracingExporter: ExporterNone, TraceSamplingRate: 1},
		},
		"otlp tracing with endpoint": {
			cfg: Config{Enabled: true, TracingExporter: ExporterOTLP, OTLPEndpoint: "localhost:4318"},
		},
		"empty exporters": {
			cfg: Config{},
		},
		"negative sampling rate": {
			cfg:     Config{TraceSamplingRate: -0.1},
			wantErr: "sampling rate",
		},
		"sampling rate above one": {
			cfg:     Config{TraceSamplingRate: 2},
			wantErr: "sampling rate",
		},
		"unknown metrics exporter": {
			cfg:     Config{MetricsExporter: "statsd"},
			wantErr: "invalid metrics exporter",
		},
		"unknown tracing exporter": {
			cfg:     Config{TracingExporter: "jaeger"},
			wantErr: "invalid tracing exporter",
		},
		"otlp metrics without endpoint": {
			cfg:     Config{MetricsExporter: ExporterOTLP},
			wantErr: "OTLP endpoint is required",
		},
		"otlp tracing without endpoint": {
			cfg:     Config{TracingExporter: ExporterOTLP},
			wantErr: "OTLP endpoint is required",
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestEnvHelpers(t *testing.T) {
	t.Setenv("HOUSEMGR_TEST_BOOL", "yes-please")
	t.Setenv("HOUSEMGR_TEST_TRUE", "1")
	t.Setenv("HOUSEMGR_TEST_FLOAT", "0.75")
	t.Setenv("HOUSEMGR_TEST_BAD_FLOAT", "three quarters")

	assert.True(t, getEnvBoolOrDefault("HOUSEMGR_TEST_TRUE", false))
	assert.True(t, getEnvBoolOrDefault("HOUSEMGR_TEST_BOOL", true), "unparsable values fall back")
	assert.False(t, getEnvBoolOrDefault("HOUSEMGR_TEST_UNSET", false))

	assert.Equal(t, 0.75, getEnvFloatOrDefault("HOUSEMGR_TEST_FLOAT", 0.5))
	assert.Equal(t, 0.5, getEnvFloatOrDefault("HOUSEMGR_TEST_BAD_FLOAT", 0.5))
	assert.Equal(t, 0.5, getEnvFloatOrDefault("HOUSEMGR_TEST_UNSET", 0.5))

	assert.Equal(t, "fallback", getEnvOrDefault("HOUSEMGR_TEST_UNSET", "fallback"))
}
