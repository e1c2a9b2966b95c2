package telemetry

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

var otelEnvKeys = []string{
	"OTEL_ENABLED",
	"OTEL_SERVICE_NAME",
	"OTEL_SERVICE_VERSION",
	"OTEL_EXPORTER_OTLP_ENDPOINT",
	"OTEL_EXPORTER_OTLP_PROTOCOL",
	"OTEL_EXPORTER_OTLP_HEADERS",
	"OTEL_EXPORTER_OTLP_INSECURE",
	"OTEL_TRACES_SAMPLER",
	"OTEL_TRACES_SAMPLER_ARG",
	"OTEL_RESOURCE_ATTRIBUTES",
}

// clearOTELEnv blanks every OTEL_* variable for the test. An empty value
// reads the same as unset, and t.Setenv restores the original afterwards.
func clearOTELEnv(t *testing.T) {
	t.Helper()
	for _, k := range otelEnvKeys {
		t.Setenv(k, "")
	}
}

func TestLoadFromEnv_Defaults(t *testing.T) {
	clearOTELEnv(t)

	cfg := LoadFromEnv()
	assert.False(t, cfg.Enabled)
	assert.Equal(t, "global-done", cfg.ServiceName)
	assert.Equal(t, "unknown", cfg.ServiceVersion)
	assert.Equal(t, "grpc", cfg.Protocol)
	assert.Empty(t, cfg.Endpoint)
}

func TestLoadFromEnv_Enabled(t *testing.T) {
	clearOTELEnv(t)

	t.Setenv("OTEL_ENABLED", "true")
	assert.True(t, LoadFromEnv().Enabled)

	// The flag is matched case-insensitively.
	t.Setenv("OTEL_ENABLED", "TRUE")
	assert.True(t, LoadFromEnv().Enabled)

	t.Setenv("OTEL_ENABLED", "1")
	assert.False(t, LoadFromEnv().Enabled)
}

func TestLoadFromEnv_Exporter(t *testing.T) {
	clearOTELEnv(t)
	t.Setenv("OTEL_SERVICE_NAME", "done-bench")
	t.Setenv("OTEL_SERVICE_VERSION", "1.2.0")
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "https://otel-gateway.cluster.local:4317")
	t.Setenv("OTEL_EXPORTER_OTLP_PROTOCOL", "http/protobuf")
	t.Setenv("OTEL_EXPORTER_OTLP_INSECURE", "true")
	t.Setenv("OTEL_EXPORTER_OTLP_HEADERS", "Authorization=Bearer token123,X-Scope-OrgID=hpc")
	t.Setenv("OTEL_RESOURCE_ATTRIBUTES", "cluster.partition=compute,service.namespace=shmem")

	cfg := LoadFromEnv()
	assert.Equal(t, "done-bench", cfg.ServiceName)
	assert.Equal(t, "1.2.0", cfg.ServiceVersion)
	assert.Equal(t, "https://otel-gateway.cluster.local:4317", cfg.Endpoint)
	assert.Equal(t, "http/protobuf", cfg.Protocol)
	assert.True(t, cfg.Insecure)
	assert.Equal(t, map[string]string{
		"Authorization": "Bearer token123",
		"X-Scope-OrgID": "hpc",
	}, cfg.Headers)
	assert.Equal(t, map[string]string{
		"cluster.partition": "compute",
		"service.namespace": "shmem",
	}, cfg.ResourceAttrs)
}

func TestParseKeyValuePairs(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected map[string]string
	}{
		{"empty", "", map[string]string{}},
		{"single pair", "job=smoke", map[string]string{"job": "smoke"}},
		{"multiple pairs", "job=sweep,npes=64", map[string]string{"job": "sweep", "npes": "64"}},
		{"spaces trimmed", " job = sweep , npes = 64 ", map[string]string{"job": "sweep", "npes": "64"}},
		{"value keeps equals", "Authorization=Bearer token=abc", map[string]string{"Authorization": "Bearer token=abc"}},
		{"empty value", "job=", map[string]string{"job": ""}},
		{"no equals skipped", "invalid", map[string]string{}},
		{"bad pair skipped among good", "valid=value,invalid,another=test", map[string]string{"valid": "value", "another": "test"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, parseKeyValuePairs(tt.input))
		})
	}
}
