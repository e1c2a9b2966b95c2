package telemetry

import (
	"os"
	"strings"
)

// Config is the OTLP exporter setup read from the environment. The fields
// mirror the standard OTEL_* variables so a run can be traced without
// touching the benchmark config file.
type Config struct {
	// Enabled comes from OTEL_ENABLED.
	Enabled bool

	// ServiceName comes from OTEL_SERVICE_NAME, default "global-done".
	ServiceName string

	// ServiceVersion comes from OTEL_SERVICE_VERSION, default "unknown".
	ServiceVersion string

	// Endpoint is the OTLP collector address, from OTEL_EXPORTER_OTLP_ENDPOINT.
	Endpoint string

	// Protocol is "grpc" or "http/protobuf", from OTEL_EXPORTER_OTLP_PROTOCOL.
	Protocol string

	// Headers holds extra exporter headers such as Authorization,
	// parsed from OTEL_EXPORTER_OTLP_HEADERS as "k1=v1,k2=v2".
	Headers map[string]string

	// Insecure disables TLS, from OTEL_EXPORTER_OTLP_INSECURE.
	Insecure bool

	// Sampler selects the trace sampler, from OTEL_TRACES_SAMPLER.
	// Supported: always_on, always_off, traceidratio and their
	// parentbased_ variants. Empty means always_on.
	Sampler string

	// SamplerArg is the ratio for traceidratio samplers,
	// from OTEL_TRACES_SAMPLER_ARG.
	SamplerArg string

	// ResourceAttrs holds extra resource attributes,
	// parsed from OTEL_RESOURCE_ATTRIBUTES as "k1=v1,k2=v2".
	ResourceAttrs map[string]string
}

// LoadFromEnv reads every OTEL_* variable into a Config.
func LoadFromEnv() *Config {
	return &Config{
		Enabled:        strings.ToLower(os.Getenv("OTEL_ENABLED")) == "true",
		ServiceName:    getEnvOrDefault("OTEL_SERVICE_NAME", "global-done"),
		ServiceVersion: getEnvOrDefault("OTEL_SERVICE_VERSION", "unknown"),
		Endpoint:       os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
		Protocol:       getEnvOrDefault("OTEL_EXPORTER_OTLP_PROTOCOL", "grpc"),
		Headers:        parseKeyValuePairs(os.Getenv("OTEL_EXPORTER_OTLP_HEADERS")),
		Insecure:       strings.ToLower(os.Getenv("OTEL_EXPORTER_OTLP_INSECURE")) == "true",
		Sampler:        os.Getenv("OTEL_TRACES_SAMPLER"),
		SamplerArg:     os.Getenv("OTEL_TRACES_SAMPLER_ARG"),
		ResourceAttrs:  parseKeyValuePairs(os.Getenv("OTEL_RESOURCE_ATTRIBUTES")),
	}
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// parseKeyValuePairs parses "k1=v1,k2=v2". Values may themselves contain
// '=' characters, which bearer tokens often do.
func parseKeyValuePairs(s string) map[string]string {
	result := make(map[string]string)
	if s == "" {
		return result
	}

	for _, pair := range strings.Split(s, ",") {
		key, value, ok := strings.Cut(pair, "=")
		if !ok {
			continue
		}
		if key = strings.TrimSpace(key); key != "" {
			result[key] = strings.TrimSpace(value)
		}
	}

	return result
}
